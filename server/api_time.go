package main

import (
	"errors"
	"net/http"
	"time"
)

// parseDate accepts RFC3339 or a bare yyyy-mm-dd date.
func parseDate(s string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02", s)
}

// POST /api/time/start
func (a *api) handleStartTimer(w http.ResponseWriter, r *http.Request) {
	p := principalFrom(r)
	var req struct {
		TaskID      int64  `json:"task_id"`
		Description string `json:"description"`
	}
	if err := readJSON(w, r, &req); err != nil || req.TaskID == 0 {
		writeError(w, 400, "task_id is required")
		return
	}
	entry, err := a.store.StartTimer(r.Context(), p.ID, req.TaskID, req.Description)
	if err != nil {
		if errors.Is(err, ErrConflict) {
			writeError(w, 400, "you already have a running timer")
			return
		}
		a.storeError(w, err, "task")
		return
	}
	writeJSON(w, 201, map[string]any{"ok": true, "time_entry": entry})
	a.hub.Publish(userRoom(p.ID), "timer-started", entry)
}

// POST /api/time/stop/{id}
func (a *api) handleStopTimer(w http.ResponseWriter, r *http.Request) {
	p := principalFrom(r)
	id, err := parseID(r.PathValue("id"))
	if err != nil {
		writeError(w, 400, "bad id")
		return
	}
	entry, err := a.store.StopTimer(r.Context(), p.ID, id)
	if err != nil {
		if errors.Is(err, ErrInvalidState) {
			writeError(w, 400, "timer is not running")
			return
		}
		a.storeError(w, err, "time entry")
		return
	}
	writeJSON(w, 200, map[string]any{"ok": true, "time_entry": entry})
	a.hub.Publish(userRoom(p.ID), "timer-stopped", entry)
}

// GET /api/time
func (a *api) handleListTimeEntries(w http.ResponseWriter, r *http.Request) {
	p := principalFrom(r)
	q := r.URL.Query()
	var f TimeEntryFilter
	if v := q.Get("project"); v != "" {
		id, err := parseID(v)
		if err != nil {
			writeError(w, 400, "bad project filter")
			return
		}
		f.ProjectID = &id
	}
	if v := q.Get("task"); v != "" {
		id, err := parseID(v)
		if err != nil {
			writeError(w, 400, "bad task filter")
			return
		}
		f.TaskID = &id
	}
	if v := q.Get("startDate"); v != "" {
		t, err := parseDate(v)
		if err != nil {
			writeError(w, 400, "bad start date")
			return
		}
		f.From = &t
	}
	if v := q.Get("endDate"); v != "" {
		t, err := parseDate(v)
		if err != nil {
			writeError(w, 400, "bad end date")
			return
		}
		f.To = &t
	}
	entries, total, err := a.store.ListTimeEntries(r.Context(), p.ID, f)
	if err != nil {
		a.storeError(w, err, "time entries")
		return
	}
	writeJSON(w, 200, map[string]any{
		"ok":         true,
		"count":      len(entries),
		"total_time": total,
		"entries":    entries,
	})
}

// GET /api/time/active — null body when nothing is running.
func (a *api) handleActiveTimer(w http.ResponseWriter, r *http.Request) {
	p := principalFrom(r)
	entry, err := a.store.ActiveTimer(r.Context(), p.ID)
	if err != nil {
		a.storeError(w, err, "active timer")
		return
	}
	if entry == nil {
		writeJSON(w, 200, map[string]any{"ok": true, "active_timer": nil})
		return
	}
	writeJSON(w, 200, map[string]any{"ok": true, "active_timer": entry})
}

// DELETE /api/time/{id}
func (a *api) handleDeleteTimeEntry(w http.ResponseWriter, r *http.Request) {
	p := principalFrom(r)
	id, err := parseID(r.PathValue("id"))
	if err != nil {
		writeError(w, 400, "bad id")
		return
	}
	if err := a.store.DeleteTimeEntry(r.Context(), p.ID, id); err != nil {
		a.storeError(w, err, "time entry")
		return
	}
	writeJSON(w, 200, map[string]any{"ok": true})
}
