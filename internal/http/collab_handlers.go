package httpx

import (
	"net/http"
	"strings"
)

func (r *Router) handleCollaborationState(w http.ResponseWriter, req *http.Request) {
	state := r.collab.Snapshot()
	if state.ProjectID != req.PathValue("id") {
		r.notFound(w)
		return
	}
	writeJSON(w, http.StatusOK, state)
}

// handleStartCollaboration replaces any running session. A failed initial
// collaborator load is reported in the returned state while polling continues.
func (r *Router) handleStartCollaboration(w http.ResponseWriter, req *http.Request) {
	if _, ok := r.projectOr404(w, req); !ok {
		return
	}
	if err := r.collab.StartCollaborationSession(req.Context(), req.PathValue("id")); err != nil {
		r.logger.Warn("collaboration session started degraded", "project_id", req.PathValue("id"), "error", err)
	}
	writeJSON(w, http.StatusOK, r.collab.Snapshot())
}

func (r *Router) handleEndCollaboration(w http.ResponseWriter, req *http.Request) {
	if state := r.collab.Snapshot(); state.Active && state.ProjectID == req.PathValue("id") {
		r.collab.EndCollaborationSession()
	}
	w.WriteHeader(http.StatusNoContent)
}

func (r *Router) handleListCollaborators(w http.ResponseWriter, req *http.Request) {
	id := req.PathValue("id")
	if err := r.collab.LoadCollaborators(req.Context(), id); err != nil {
		r.writeServiceError(w, req, err)
		return
	}
	state := r.collab.Snapshot()
	if state.Active && state.ProjectID != id {
		// Another project's session owns the container list.
		users, err := r.mock.GetCollaborators(req.Context(), id)
		if err != nil {
			r.writeServiceError(w, req, err)
			return
		}
		writeJSON(w, http.StatusOK, users)
		return
	}
	writeJSON(w, http.StatusOK, state.Collaborators)
}

func (r *Router) handleAddCollaborator(w http.ResponseWriter, req *http.Request) {
	var payload struct {
		Email string `json:"email"`
	}
	if !decodeJSON(w, req, &payload) {
		return
	}
	if strings.TrimSpace(payload.Email) == "" {
		writeError(w, http.StatusBadRequest, "email is required")
		return
	}
	user, err := r.collab.AddCollaborator(req.Context(), req.PathValue("id"), payload.Email)
	if err != nil {
		r.writeServiceError(w, req, err)
		return
	}
	writeJSON(w, http.StatusCreated, user)
}

func (r *Router) handleRemoveCollaborator(w http.ResponseWriter, req *http.Request) {
	if err := r.collab.RemoveCollaborator(req.Context(), req.PathValue("id"), req.PathValue("userID")); err != nil {
		r.writeServiceError(w, req, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (r *Router) handleAssistantGreeting(w http.ResponseWriter, req *http.Request) {
	writeJSON(w, http.StatusOK, r.assistant.Greeting(req.URL.Query().Get("project_name")))
}

func (r *Router) handleAssistantReply(w http.ResponseWriter, req *http.Request) {
	var payload struct {
		ProjectName string `json:"projectName"`
		Message     string `json:"message"`
	}
	if !decodeJSON(w, req, &payload) {
		return
	}
	msg, err := r.assistant.Reply(req.Context(), payload.ProjectName, payload.Message)
	if err != nil {
		r.writeServiceError(w, req, err)
		return
	}
	writeJSON(w, http.StatusOK, msg)
}
