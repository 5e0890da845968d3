package main

import (
	"errors"
	"net/http"
	"strings"
	"time"
)

// POST /api/projects
func (a *api) handleCreateProject(w http.ResponseWriter, r *http.Request) {
	p := principalFrom(r)
	var req struct {
		Name        string     `json:"name"`
		Description string     `json:"description"`
		Color       string     `json:"color"`
		Deadline    *time.Time `json:"deadline"`
	}
	if err := readJSON(w, r, &req); err != nil || strings.TrimSpace(req.Name) == "" {
		writeError(w, 400, "invalid payload")
		return
	}
	proj, err := a.store.CreateProject(r.Context(), p.ID, strings.TrimSpace(req.Name), req.Description, req.Color, req.Deadline)
	if err != nil {
		a.storeError(w, err, "create project")
		return
	}
	if err := a.store.PopulateProject(r.Context(), &proj); err != nil {
		a.log.Error("populate project", "err", err)
	}
	writeJSON(w, 201, map[string]any{"ok": true, "project": proj})
}

// GET /api/projects
func (a *api) handleListProjects(w http.ResponseWriter, r *http.Request) {
	p := principalFrom(r)
	items, err := a.store.ListProjects(r.Context(), p.ID, false)
	if err != nil {
		a.storeError(w, err, "list projects")
		return
	}
	writeJSON(w, 200, map[string]any{"ok": true, "count": len(items), "projects": items})
}

// GET /api/projects/archived
func (a *api) handleArchivedProjects(w http.ResponseWriter, r *http.Request) {
	p := principalFrom(r)
	items, err := a.store.ListProjects(r.Context(), p.ID, true)
	if err != nil {
		a.storeError(w, err, "archived projects")
		return
	}
	writeJSON(w, 200, map[string]any{"ok": true, "count": len(items), "projects": items})
}

// GET /api/projects/{id}
func (a *api) handleGetProject(w http.ResponseWriter, r *http.Request) {
	p := principalFrom(r)
	id, err := parseID(r.PathValue("id"))
	if err != nil {
		writeError(w, 400, "bad id")
		return
	}
	proj, err := a.store.GetProject(r.Context(), id)
	if err != nil {
		a.storeError(w, err, "project")
		return
	}
	if ok, err := a.store.CanAccessProject(r.Context(), id, p.ID); err != nil || !ok {
		if err != nil {
			a.log.Error("project access", "err", err)
		}
		writeError(w, 403, "not authorized to access this project")
		return
	}
	if err := a.store.PopulateProject(r.Context(), &proj); err != nil {
		a.log.Error("populate project", "err", err)
	}
	boards, err := a.store.ProjectBoards(r.Context(), id)
	if err != nil {
		a.log.Error("project boards", "err", err)
	}
	writeJSON(w, 200, map[string]any{"ok": true, "project": proj, "boards": boards})
}

// PUT /api/projects/{id}
func (a *api) handleUpdateProject(w http.ResponseWriter, r *http.Request) {
	p := principalFrom(r)
	id, err := parseID(r.PathValue("id"))
	if err != nil {
		writeError(w, 400, "bad id")
		return
	}
	if ok, err := a.store.IsProjectAdmin(r.Context(), id, p.ID); err != nil || !ok {
		if err != nil {
			a.log.Error("project admin check", "err", err)
		}
		writeError(w, 403, "not authorized to update this project")
		return
	}
	var req struct {
		Name        *string    `json:"name"`
		Description *string    `json:"description"`
		Color       *string    `json:"color"`
		Status      *string    `json:"status"`
		Progress    *int       `json:"progress"`
		Deadline    *time.Time `json:"deadline"`
	}
	if err := readJSON(w, r, &req); err != nil {
		writeError(w, 400, "invalid payload")
		return
	}
	if req.Status != nil && !validProjectStatus(*req.Status) {
		writeError(w, 400, "invalid status")
		return
	}
	if req.Progress != nil && (*req.Progress < 0 || *req.Progress > 100) {
		writeError(w, 400, "progress out of range")
		return
	}
	if err := a.store.UpdateProject(r.Context(), id, req.Name, req.Description, req.Color, req.Status, req.Progress, req.Deadline); err != nil {
		a.storeError(w, err, "project")
		return
	}
	proj, err := a.store.GetProject(r.Context(), id)
	if err != nil {
		a.storeError(w, err, "project")
		return
	}
	if err := a.store.PopulateProject(r.Context(), &proj); err != nil {
		a.log.Error("populate project", "err", err)
	}
	writeJSON(w, 200, map[string]any{"ok": true, "project": proj})
}

// DELETE /api/projects/{id} — owner only.
func (a *api) handleDeleteProject(w http.ResponseWriter, r *http.Request) {
	p := principalFrom(r)
	id, err := parseID(r.PathValue("id"))
	if err != nil {
		writeError(w, 400, "bad id")
		return
	}
	proj, err := a.store.GetProject(r.Context(), id)
	if err != nil {
		a.storeError(w, err, "project")
		return
	}
	if proj.OwnerID != p.ID {
		writeError(w, 403, "only the project owner can delete the project")
		return
	}
	if err := a.store.DeleteProject(r.Context(), id); err != nil {
		a.storeError(w, err, "project")
		return
	}
	writeJSON(w, 200, map[string]any{"ok": true})
}

// POST /api/projects/{id}/members adds a member looked up by email.
func (a *api) handleAddProjectMember(w http.ResponseWriter, r *http.Request) {
	p := principalFrom(r)
	id, err := parseID(r.PathValue("id"))
	if err != nil {
		writeError(w, 400, "bad id")
		return
	}
	if _, err := a.store.GetProject(r.Context(), id); err != nil {
		a.storeError(w, err, "project")
		return
	}
	if ok, err := a.store.IsProjectAdmin(r.Context(), id, p.ID); err != nil || !ok {
		writeError(w, 403, "not authorized")
		return
	}
	var req struct {
		Email string `json:"email"`
		Role  string `json:"role"`
	}
	if err := readJSON(w, r, &req); err != nil || req.Email == "" {
		writeError(w, 400, "invalid payload")
		return
	}
	if req.Role == "" {
		req.Role = RoleMember
	}
	if !validMemberRole(req.Role) {
		writeError(w, 400, "invalid role")
		return
	}
	u, err := a.store.UserByEmail(r.Context(), req.Email)
	if err != nil {
		a.storeError(w, err, "user")
		return
	}
	if err := a.store.AddProjectMember(r.Context(), id, u.ID, req.Role); err != nil {
		if errors.Is(err, ErrConflict) {
			writeError(w, 400, "user is already a member")
			return
		}
		a.storeError(w, err, "add member")
		return
	}
	members, err := a.store.ProjectMembers(r.Context(), id)
	if err != nil {
		a.storeError(w, err, "project members")
		return
	}
	writeJSON(w, 200, map[string]any{"ok": true, "members": members})
}

// POST /api/projects/{id}/complete
func (a *api) handleCompleteProject(w http.ResponseWriter, r *http.Request) {
	p := principalFrom(r)
	id, err := parseID(r.PathValue("id"))
	if err != nil {
		writeError(w, 400, "bad id")
		return
	}
	if _, err := a.store.GetProject(r.Context(), id); err != nil {
		a.storeError(w, err, "project")
		return
	}
	if ok, err := a.store.IsProjectAdmin(r.Context(), id, p.ID); err != nil || !ok {
		writeError(w, 403, "not authorized to complete this project")
		return
	}
	if err := a.store.CompleteProject(r.Context(), id, p.ID); err != nil {
		a.storeError(w, err, "project")
		return
	}
	proj, err := a.store.GetProject(r.Context(), id)
	if err != nil {
		a.storeError(w, err, "project")
		return
	}
	writeJSON(w, 200, map[string]any{"ok": true, "project": proj})
}

// POST /api/projects/{id}/reopen
func (a *api) handleReopenProject(w http.ResponseWriter, r *http.Request) {
	p := principalFrom(r)
	id, err := parseID(r.PathValue("id"))
	if err != nil {
		writeError(w, 400, "bad id")
		return
	}
	if ok, err := a.store.IsProjectAdmin(r.Context(), id, p.ID); err != nil || !ok {
		writeError(w, 403, "not authorized")
		return
	}
	if err := a.store.ReopenProject(r.Context(), id); err != nil {
		a.storeError(w, err, "project")
		return
	}
	proj, err := a.store.GetProject(r.Context(), id)
	if err != nil {
		a.storeError(w, err, "project")
		return
	}
	writeJSON(w, 200, map[string]any{"ok": true, "project": proj})
}

// POST /api/projects/{id}/archive
func (a *api) handleArchiveProject(w http.ResponseWriter, r *http.Request) {
	p := principalFrom(r)
	id, err := parseID(r.PathValue("id"))
	if err != nil {
		writeError(w, 400, "bad id")
		return
	}
	if ok, err := a.store.IsProjectAdmin(r.Context(), id, p.ID); err != nil || !ok {
		writeError(w, 403, "not authorized")
		return
	}
	if err := a.store.ArchiveProject(r.Context(), id); err != nil {
		a.storeError(w, err, "project")
		return
	}
	writeJSON(w, 200, map[string]any{"ok": true})
}
