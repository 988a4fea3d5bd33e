package httpx

import (
	"net/http"

	"github.com/Fallenproud/create.xyzdashboard/internal/domain"
	"github.com/Fallenproud/create.xyzdashboard/internal/service/mockapi"
)

// registerMock mounts the simulated backend directly, latency included, for
// clients that talk to it instead of the state container.
func (r *Router) registerMock() {
	if r.mock == nil {
		return
	}
	r.handle("GET /mock/projects", r.read("mock_projects", r.handleMockListProjects))
	r.handle("POST /mock/projects", r.write("mock_projects", r.handleMockCreateProject))
	r.handle("GET /mock/projects/{id}", r.read("mock_project", r.handleMockGetProject))
	r.handle("PATCH /mock/projects/{id}", r.write("mock_project", r.handleMockUpdateProject))
	r.handle("DELETE /mock/projects/{id}", r.write("mock_project", r.handleMockDeleteProject))
	r.handle("GET /mock/projects/{id}/files", r.read("mock_files", r.handleMockListFiles))
	r.handle("POST /mock/projects/{id}/files", r.write("mock_files", r.handleMockCreateFile))
	r.handle("PATCH /mock/files/{id}", r.write("mock_file", r.handleMockUpdateFile))
	r.handle("DELETE /mock/files/{id}", r.write("mock_file", r.handleMockDeleteFile))
	r.handle("GET /mock/projects/{id}/deployments", r.read("mock_deployments", r.handleMockListDeployments))
	r.handle("POST /mock/projects/{id}/deployments", r.write("mock_deployments", r.handleMockCreateDeployment))
	r.handle("GET /mock/projects/{id}/collaborators", r.read("mock_collaborators", r.handleMockCollaborators))
	r.handle("GET /mock/projects/{id}/online", r.read("mock_online", r.handleMockOnline))
}

func (r *Router) handleMockListProjects(w http.ResponseWriter, req *http.Request) {
	projects, err := r.mock.GetProjects(req.Context())
	if err != nil {
		r.writeServiceError(w, req, err)
		return
	}
	writeJSON(w, http.StatusOK, nonNil(projects))
}

func (r *Router) handleMockCreateProject(w http.ResponseWriter, req *http.Request) {
	var in mockapi.NewProject
	if !decodeJSON(w, req, &in) {
		return
	}
	if in.OwnerID == "" {
		if info, ok := authInfoFromContext(req.Context()); ok {
			in.OwnerID = info.UserID
		}
	}
	p, err := r.mock.CreateProject(req.Context(), in)
	if err != nil {
		r.writeServiceError(w, req, err)
		return
	}
	writeJSON(w, http.StatusCreated, p)
}

func (r *Router) handleMockGetProject(w http.ResponseWriter, req *http.Request) {
	p, err := r.mock.GetProject(req.Context(), req.PathValue("id"))
	if err != nil {
		r.writeServiceError(w, req, err)
		return
	}
	if p == nil {
		r.notFound(w)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (r *Router) handleMockUpdateProject(w http.ResponseWriter, req *http.Request) {
	var update domain.ProjectUpdate
	if !decodeJSON(w, req, &update) {
		return
	}
	update.UpdatedAt = nil
	p, err := r.mock.UpdateProject(req.Context(), req.PathValue("id"), update)
	if err != nil {
		r.writeServiceError(w, req, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (r *Router) handleMockDeleteProject(w http.ResponseWriter, req *http.Request) {
	if err := r.mock.DeleteProject(req.Context(), req.PathValue("id")); err != nil {
		r.writeServiceError(w, req, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (r *Router) handleMockListFiles(w http.ResponseWriter, req *http.Request) {
	files, err := r.mock.GetProjectFiles(req.Context(), req.PathValue("id"))
	if err != nil {
		r.writeServiceError(w, req, err)
		return
	}
	writeJSON(w, http.StatusOK, nonNil(files))
}

func (r *Router) handleMockCreateFile(w http.ResponseWriter, req *http.Request) {
	var in mockapi.NewFile
	if !decodeJSON(w, req, &in) {
		return
	}
	in.ProjectID = req.PathValue("id")
	f, err := r.mock.CreateFile(req.Context(), in)
	if err != nil {
		r.writeServiceError(w, req, err)
		return
	}
	writeJSON(w, http.StatusCreated, f)
}

func (r *Router) handleMockUpdateFile(w http.ResponseWriter, req *http.Request) {
	var update domain.FileUpdate
	if !decodeJSON(w, req, &update) {
		return
	}
	f, err := r.mock.UpdateFile(req.Context(), req.PathValue("id"), update)
	if err != nil {
		r.writeServiceError(w, req, err)
		return
	}
	writeJSON(w, http.StatusOK, f)
}

func (r *Router) handleMockDeleteFile(w http.ResponseWriter, req *http.Request) {
	if err := r.mock.DeleteFile(req.Context(), req.PathValue("id")); err != nil {
		r.writeServiceError(w, req, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (r *Router) handleMockListDeployments(w http.ResponseWriter, req *http.Request) {
	deployments, err := r.mock.GetProjectDeployments(req.Context(), req.PathValue("id"))
	if err != nil {
		r.writeServiceError(w, req, err)
		return
	}
	writeJSON(w, http.StatusOK, nonNil(deployments))
}

func (r *Router) handleMockCreateDeployment(w http.ResponseWriter, req *http.Request) {
	var payload struct {
		Environment string `json:"environment"`
	}
	if !decodeJSON(w, req, &payload) {
		return
	}
	d, err := r.mock.CreateDeployment(req.Context(), req.PathValue("id"), payload.Environment)
	if err != nil {
		r.writeServiceError(w, req, err)
		return
	}
	writeJSON(w, http.StatusCreated, d)
}

func (r *Router) handleMockCollaborators(w http.ResponseWriter, req *http.Request) {
	users, err := r.mock.GetCollaborators(req.Context(), req.PathValue("id"))
	if err != nil {
		r.writeServiceError(w, req, err)
		return
	}
	writeJSON(w, http.StatusOK, nonNil(users))
}

func (r *Router) handleMockOnline(w http.ResponseWriter, req *http.Request) {
	users, err := r.mock.GetOnlineUsers(req.Context(), req.PathValue("id"))
	if err != nil {
		r.writeServiceError(w, req, err)
		return
	}
	writeJSON(w, http.StatusOK, nonNil(users))
}

func nonNil[T any](items []T) []T {
	if items == nil {
		return []T{}
	}
	return items
}
