package httpx

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/Fallenproud/create.xyzdashboard/internal/domain"
	"github.com/Fallenproud/create.xyzdashboard/internal/service/project"
)

const maxUploadForm = project.MaxUploadBytes + 64<<10

// projectOr404 loads the {id} project, answering 404 when it does not exist.
func (r *Router) projectOr404(w http.ResponseWriter, req *http.Request) (domain.Project, bool) {
	p, ok := r.projects.GetProjectByID(req.PathValue("id"))
	if !ok {
		r.notFound(w)
	}
	return p, ok
}

func (r *Router) handleListProjects(w http.ResponseWriter, req *http.Request) {
	writeJSON(w, http.StatusOK, nonNil(r.projects.ListProjects()))
}

func (r *Router) handleCreateProject(w http.ResponseWriter, req *http.Request) {
	var payload struct {
		Name        string `json:"name"`
		Description string `json:"description"`
	}
	if !decodeJSON(w, req, &payload) {
		return
	}
	p, err := r.projects.CreateProject(req.Context(), payload.Name, payload.Description)
	if err != nil {
		r.writeServiceError(w, req, err)
		return
	}
	writeJSON(w, http.StatusCreated, p)
}

func (r *Router) handleGetProject(w http.ResponseWriter, req *http.Request) {
	p, ok := r.projectOr404(w, req)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (r *Router) handleUpdateProject(w http.ResponseWriter, req *http.Request) {
	if _, ok := r.projectOr404(w, req); !ok {
		return
	}
	var update domain.ProjectUpdate
	if !decodeJSON(w, req, &update) {
		return
	}
	// updatedAt is always stamped by the container.
	update.UpdatedAt = nil
	id := req.PathValue("id")
	if err := r.projects.UpdateProject(req.Context(), id, update); err != nil {
		r.writeServiceError(w, req, err)
		return
	}
	p, ok := r.projects.GetProjectByID(id)
	if !ok {
		r.notFound(w)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (r *Router) handleDeleteProject(w http.ResponseWriter, req *http.Request) {
	if _, ok := r.projectOr404(w, req); !ok {
		return
	}
	if err := r.projects.DeleteProject(req.Context(), req.PathValue("id")); err != nil {
		r.writeServiceError(w, req, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (r *Router) handleListFiles(w http.ResponseWriter, req *http.Request) {
	if _, ok := r.projectOr404(w, req); !ok {
		return
	}
	writeJSON(w, http.StatusOK, nonNil(r.projects.GetFilesByProjectID(req.PathValue("id"))))
}

func (r *Router) handleCreateFile(w http.ResponseWriter, req *http.Request) {
	p, ok := r.projectOr404(w, req)
	if !ok {
		return
	}
	var payload struct {
		Name    string `json:"name"`
		Content string `json:"content"`
		Type    string `json:"type"`
	}
	if !decodeJSON(w, req, &payload) {
		return
	}
	f, err := r.projects.CreateFile(req.Context(), p.ID, payload.Name, payload.Content, payload.Type)
	if err != nil {
		r.writeServiceError(w, req, err)
		return
	}
	writeJSON(w, http.StatusCreated, f)
}

func (r *Router) handleUploadFile(w http.ResponseWriter, req *http.Request) {
	p, ok := r.projectOr404(w, req)
	if !ok {
		return
	}
	req.Body = http.MaxBytesReader(w, req.Body, maxUploadForm)
	file, header, err := req.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "multipart field \"file\" is required")
		return
	}
	defer file.Close()

	name := strings.TrimSpace(req.FormValue("name"))
	if name == "" {
		name = header.Filename
	}
	f, err := r.projects.UploadFile(req.Context(), p.ID, name, file)
	if err != nil {
		r.writeServiceError(w, req, err)
		return
	}
	writeJSON(w, http.StatusCreated, f)
}

func (r *Router) handleGetFile(w http.ResponseWriter, req *http.Request) {
	f, ok := r.projects.GetFileByID(req.PathValue("id"))
	if !ok {
		r.notFound(w)
		return
	}
	writeJSON(w, http.StatusOK, f)
}

func (r *Router) handleUpdateFile(w http.ResponseWriter, req *http.Request) {
	id := req.PathValue("id")
	if _, ok := r.projects.GetFileByID(id); !ok {
		r.notFound(w)
		return
	}
	var update domain.FileUpdate
	if !decodeJSON(w, req, &update) {
		return
	}
	if err := r.projects.UpdateFile(req.Context(), id, update); err != nil {
		r.writeServiceError(w, req, err)
		return
	}
	f, ok := r.projects.GetFileByID(id)
	if !ok {
		r.notFound(w)
		return
	}
	writeJSON(w, http.StatusOK, f)
}

func (r *Router) handleDeleteFile(w http.ResponseWriter, req *http.Request) {
	id := req.PathValue("id")
	if _, ok := r.projects.GetFileByID(id); !ok {
		r.notFound(w)
		return
	}
	if err := r.projects.DeleteFile(req.Context(), id); err != nil {
		r.writeServiceError(w, req, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (r *Router) handleListDeployments(w http.ResponseWriter, req *http.Request) {
	if _, ok := r.projectOr404(w, req); !ok {
		return
	}
	writeJSON(w, http.StatusOK, nonNil(r.projects.GetDeploymentsByProjectID(req.PathValue("id"))))
}

func (r *Router) handleCreateDeployment(w http.ResponseWriter, req *http.Request) {
	var payload struct {
		Environment string `json:"environment"`
	}
	if !decodeJSON(w, req, &payload) {
		return
	}
	if payload.Environment == "" {
		payload.Environment = domain.EnvironmentProduction
	}
	d, err := r.projects.CreateDeployment(req.Context(), req.PathValue("id"), payload.Environment)
	if err != nil {
		r.writeServiceError(w, req, err)
		return
	}
	writeJSON(w, http.StatusCreated, d)
}

func (r *Router) handleGetDeployment(w http.ResponseWriter, req *http.Request) {
	d, ok := r.projects.GetDeploymentByID(req.PathValue("id"))
	if !ok {
		r.notFound(w)
		return
	}
	writeJSON(w, http.StatusOK, d)
}

func (r *Router) handleExport(w http.ResponseWriter, req *http.Request) {
	export, err := r.projects.ExportProject(req.Context(), req.PathValue("id"), req.URL.Query().Get("format"))
	if err != nil {
		r.writeServiceError(w, req, err)
		return
	}
	headers := w.Header()
	headers.Set("Content-Type", export.ContentType)
	headers.Set("Content-Disposition", "attachment; filename="+strconv.Quote(export.Filename))
	headers.Set("Content-Length", strconv.Itoa(len(export.Data)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(export.Data)
}
