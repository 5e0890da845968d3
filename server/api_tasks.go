package main

import (
	"net/http"
	"strings"
	"time"
)

// POST /api/tasks
func (a *api) handleCreateTask(w http.ResponseWriter, r *http.Request) {
	p := principalFrom(r)
	var req struct {
		Title       string     `json:"title"`
		Description string     `json:"description"`
		ProjectID   int64      `json:"project_id"`
		ListID      *int64     `json:"list_id"`
		Assignees   []int64    `json:"assignees"`
		Priority    string     `json:"priority"`
		Status      string     `json:"status"`
		DueDate     *time.Time `json:"due_date"`
	}
	if err := readJSON(w, r, &req); err != nil || strings.TrimSpace(req.Title) == "" || req.ProjectID == 0 {
		writeError(w, 400, "invalid payload")
		return
	}
	if req.Status == "" {
		req.Status = StatusTodo
	}
	if req.Priority == "" {
		req.Priority = PriorityMedium
	}
	if !validTaskStatus(req.Status) || !validPriority(req.Priority) {
		writeError(w, 400, "invalid status or priority")
		return
	}
	if _, err := a.store.GetProject(r.Context(), req.ProjectID); err != nil {
		a.storeError(w, err, "project")
		return
	}
	t, err := a.store.CreateTask(r.Context(), Task{
		ProjectID:   req.ProjectID,
		ListID:      req.ListID,
		Title:       strings.TrimSpace(req.Title),
		Description: req.Description,
		CreatorID:   p.ID,
		Priority:    req.Priority,
		Status:      req.Status,
		DueDate:     req.DueDate,
	}, req.Assignees)
	if err != nil {
		a.storeError(w, err, "create task")
		return
	}
	if err := a.store.PopulateTask(r.Context(), &t, false); err != nil {
		a.log.Error("populate task", "err", err)
	}
	writeJSON(w, 201, map[string]any{"ok": true, "task": t})
	a.hub.Publish(projectRoom(t.ProjectID), "task-created", t)
}

// GET /api/tasks
func (a *api) handleListTasks(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	var f TaskFilter
	if v := q.Get("project"); v != "" {
		id, err := parseID(v)
		if err != nil {
			writeError(w, 400, "bad project filter")
			return
		}
		f.ProjectID = &id
	}
	if v := q.Get("assignee"); v != "" {
		id, err := parseID(v)
		if err != nil {
			writeError(w, 400, "bad assignee filter")
			return
		}
		f.Assignee = &id
	}
	if v := q.Get("status"); v != "" {
		if !validTaskStatus(v) {
			writeError(w, 400, "invalid status")
			return
		}
		f.Status = &v
	}
	if v := q.Get("priority"); v != "" {
		if !validPriority(v) {
			writeError(w, 400, "invalid priority")
			return
		}
		f.Priority = &v
	}
	items, err := a.store.ListTasks(r.Context(), f)
	if err != nil {
		a.storeError(w, err, "list tasks")
		return
	}
	for i := range items {
		if err := a.store.PopulateTask(r.Context(), &items[i], false); err != nil {
			a.log.Error("populate task", "err", err)
			break
		}
	}
	writeJSON(w, 200, map[string]any{"ok": true, "count": len(items), "tasks": items})
}

// GET /api/tasks/{id}
func (a *api) handleGetTask(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r.PathValue("id"))
	if err != nil {
		writeError(w, 400, "bad id")
		return
	}
	t, err := a.store.GetTask(r.Context(), id)
	if err != nil {
		a.storeError(w, err, "task")
		return
	}
	if err := a.store.PopulateTask(r.Context(), &t, true); err != nil {
		a.log.Error("populate task", "err", err)
	}
	writeJSON(w, 200, map[string]any{"ok": true, "task": t})
}

// PUT /api/tasks/{id}
func (a *api) handleUpdateTask(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r.PathValue("id"))
	if err != nil {
		writeError(w, 400, "bad id")
		return
	}
	var req struct {
		Title       *string    `json:"title"`
		Description *string    `json:"description"`
		Status      *string    `json:"status"`
		Priority    *string    `json:"priority"`
		DueDate     *time.Time `json:"due_date"`
		ListID      *int64     `json:"list_id"`
		Assignees   []int64    `json:"assignees"`
	}
	if err := readJSON(w, r, &req); err != nil {
		writeError(w, 400, "invalid payload")
		return
	}
	if req.Status != nil && !validTaskStatus(*req.Status) {
		writeError(w, 400, "invalid status")
		return
	}
	if req.Priority != nil && !validPriority(*req.Priority) {
		writeError(w, 400, "invalid priority")
		return
	}
	if req.Title != nil && strings.TrimSpace(*req.Title) == "" {
		writeError(w, 400, "title cannot be empty")
		return
	}
	t, err := a.store.UpdateTask(r.Context(), id, TaskUpdate{
		Title:       req.Title,
		Description: req.Description,
		Status:      req.Status,
		Priority:    req.Priority,
		DueDate:     req.DueDate,
		ListID:      req.ListID,
		Assignees:   req.Assignees,
	})
	if err != nil {
		a.storeError(w, err, "task")
		return
	}
	if err := a.store.PopulateTask(r.Context(), &t, false); err != nil {
		a.log.Error("populate task", "err", err)
	}
	writeJSON(w, 200, map[string]any{"ok": true, "task": t})
	a.hub.Publish(projectRoom(t.ProjectID), "task-updated", t)
}

// DELETE /api/tasks/{id} — connected clients get a room event to evict it.
func (a *api) handleDeleteTask(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r.PathValue("id"))
	if err != nil {
		writeError(w, 400, "bad id")
		return
	}
	t, err := a.store.GetTask(r.Context(), id)
	if err != nil {
		a.storeError(w, err, "task")
		return
	}
	if err := a.store.DeleteTask(r.Context(), id); err != nil {
		a.storeError(w, err, "task")
		return
	}
	writeJSON(w, 200, map[string]any{"ok": true})
	a.hub.Publish(projectRoom(t.ProjectID), "task-deleted", map[string]any{"task_id": id})
}

// POST /api/tasks/{id}/comments
func (a *api) handleAddComment(w http.ResponseWriter, r *http.Request) {
	p := principalFrom(r)
	id, err := parseID(r.PathValue("id"))
	if err != nil {
		writeError(w, 400, "bad id")
		return
	}
	var req struct {
		Text string `json:"text"`
	}
	if err := readJSON(w, r, &req); err != nil || strings.TrimSpace(req.Text) == "" {
		writeError(w, 400, "comment text is required")
		return
	}
	t, err := a.store.GetTask(r.Context(), id)
	if err != nil {
		a.storeError(w, err, "task")
		return
	}
	c, err := a.store.AddComment(r.Context(), id, p.ID, strings.TrimSpace(req.Text))
	if err != nil {
		a.storeError(w, err, "add comment")
		return
	}
	writeJSON(w, 201, map[string]any{"ok": true, "comment": c})
	a.hub.Publish(projectRoom(t.ProjectID), "comment-added", map[string]any{"task_id": id, "comment": c})
}

// GET /api/tasks/{id}/comments
func (a *api) handleListComments(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r.PathValue("id"))
	if err != nil {
		writeError(w, 400, "bad id")
		return
	}
	if _, err := a.store.GetTask(r.Context(), id); err != nil {
		a.storeError(w, err, "task")
		return
	}
	items, err := a.store.CommentsByTask(r.Context(), id)
	if err != nil {
		a.storeError(w, err, "comments")
		return
	}
	writeJSON(w, 200, map[string]any{"ok": true, "count": len(items), "comments": items})
}
