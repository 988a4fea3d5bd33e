package httpx

import (
	"net/http"
	"strings"

	"github.com/Fallenproud/create.xyzdashboard/internal/domain"
)

type sessionResponse struct {
	Authenticated bool         `json:"authenticated"`
	User          *domain.User `json:"user,omitempty"`
	Loading       bool         `json:"isLoading"`
	Error         string       `json:"error,omitempty"`
}

func (r *Router) writeSignedIn(w http.ResponseWriter, user domain.User) {
	writeJSON(w, http.StatusOK, map[string]any{
		"user":  user,
		"token": user.Token,
	})
}

// writeLoginError answers a failed sign-in with the session's user-facing message.
func (r *Router) writeLoginError(w http.ResponseWriter, req *http.Request, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		r.logger.Error("sign in failed", "path", req.URL.Path, "error", err)
	}
	msg := r.session.LastError()
	if msg == "" {
		msg = err.Error()
	}
	writeError(w, status, msg)
}

func (r *Router) handleLogin(w http.ResponseWriter, req *http.Request) {
	var payload struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if !decodeJSON(w, req, &payload) {
		return
	}
	var (
		user domain.User
		err  error
	)
	if payload.Password == "" {
		user, err = r.session.LoginWithEmail(req.Context(), payload.Email)
	} else {
		user, err = r.session.Login(req.Context(), payload.Email, payload.Password)
	}
	if err != nil {
		r.writeLoginError(w, req, err)
		return
	}
	r.writeSignedIn(w, user)
}

func (r *Router) handleDemoLogin(w http.ResponseWriter, req *http.Request) {
	var payload struct {
		Role string `json:"role"`
	}
	if !decodeJSON(w, req, &payload) {
		return
	}
	role := strings.TrimSpace(payload.Role)
	if role == "" {
		role = domain.RoleUser
	}
	user, err := r.session.LoginWithDemo(req.Context(), role)
	if err != nil {
		r.writeLoginError(w, req, err)
		return
	}
	r.writeSignedIn(w, user)
}

func (r *Router) handleOAuthLogin(w http.ResponseWriter, req *http.Request) {
	var payload struct {
		Provider string `json:"provider"`
	}
	if !decodeJSON(w, req, &payload) {
		return
	}
	user, err := r.session.LoginWithOAuth(req.Context(), payload.Provider)
	if err != nil {
		r.writeLoginError(w, req, err)
		return
	}
	r.writeSignedIn(w, user)
}

func (r *Router) handleMagicLinkRequest(w http.ResponseWriter, req *http.Request) {
	var payload struct {
		Email string `json:"email"`
	}
	if !decodeJSON(w, req, &payload) {
		return
	}
	if err := r.session.RequestMagicLink(req.Context(), payload.Email); err != nil {
		r.writeServiceError(w, req, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "sent"})
}

func (r *Router) handleMagicLinkVerify(w http.ResponseWriter, req *http.Request) {
	var payload struct {
		Token string `json:"token"`
	}
	if !decodeJSON(w, req, &payload) {
		return
	}
	token := strings.TrimSpace(payload.Token)
	if token == "" {
		token = strings.TrimSpace(req.URL.Query().Get("token"))
	}
	user, err := r.session.CompleteMagicLink(req.Context(), token)
	if err != nil {
		r.writeLoginError(w, req, err)
		return
	}
	r.writeSignedIn(w, user)
}

func (r *Router) handleLogout(w http.ResponseWriter, req *http.Request) {
	if err := r.session.Logout(req.Context()); err != nil {
		r.writeServiceError(w, req, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (r *Router) handleSession(w http.ResponseWriter, req *http.Request) {
	resp := sessionResponse{
		Loading: r.session.Loading(),
		Error:   r.session.LastError(),
	}
	if user, ok := r.session.Current(); ok {
		resp.Authenticated = true
		resp.User = &user
	}
	writeJSON(w, http.StatusOK, resp)
}
