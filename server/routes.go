package main

import (
	"net/http"
	"time"
)

func (a *api) routes(mux *http.ServeMux) {
	// Auth endpoints
	mux.HandleFunc("POST /api/auth/register", a.withRateLimit("auth", 20, time.Minute, a.handleRegister))
	mux.HandleFunc("POST /api/auth/login", a.withRateLimit("auth", 30, time.Minute, a.handleLogin))
	mux.HandleFunc("POST /api/auth/refresh", a.withRateLimit("auth", 60, time.Minute, a.handleRefresh))
	mux.HandleFunc("POST /api/auth/logout", a.requireAuth(a.handleLogout))
	mux.HandleFunc("GET /api/auth/me", a.requireAuth(a.handleMe))

	mux.HandleFunc("GET /api/health", a.handleHealth)

	// Projects
	mux.HandleFunc("POST /api/projects", a.requireAuth(a.handleCreateProject))
	mux.HandleFunc("GET /api/projects", a.requireAuth(a.handleListProjects))
	mux.HandleFunc("GET /api/projects/archived", a.requireAuth(a.handleArchivedProjects))
	mux.HandleFunc("GET /api/projects/{id}", a.requireAuth(a.handleGetProject))
	mux.HandleFunc("PUT /api/projects/{id}", a.requireAuth(a.handleUpdateProject))
	mux.HandleFunc("DELETE /api/projects/{id}", a.requireAuth(a.handleDeleteProject))
	mux.HandleFunc("POST /api/projects/{id}/members", a.requireAuth(a.handleAddProjectMember))
	mux.HandleFunc("POST /api/projects/{id}/complete", a.requireAuth(a.handleCompleteProject))
	mux.HandleFunc("POST /api/projects/{id}/reopen", a.requireAuth(a.handleReopenProject))
	mux.HandleFunc("POST /api/projects/{id}/archive", a.requireAuth(a.handleArchiveProject))

	// Tasks and comments
	mux.HandleFunc("POST /api/tasks", a.requireAuth(a.handleCreateTask))
	mux.HandleFunc("GET /api/tasks", a.requireAuth(a.handleListTasks))
	mux.HandleFunc("GET /api/tasks/{id}", a.requireAuth(a.handleGetTask))
	mux.HandleFunc("PUT /api/tasks/{id}", a.requireAuth(a.handleUpdateTask))
	mux.HandleFunc("DELETE /api/tasks/{id}", a.requireAuth(a.handleDeleteTask))
	mux.HandleFunc("POST /api/tasks/{id}/comments", a.requireAuth(a.handleAddComment))
	mux.HandleFunc("GET /api/tasks/{id}/comments", a.requireAuth(a.handleListComments))

	// Time tracking
	mux.HandleFunc("POST /api/time/start", a.requireAuth(a.handleStartTimer))
	mux.HandleFunc("POST /api/time/stop/{id}", a.requireAuth(a.handleStopTimer))
	mux.HandleFunc("GET /api/time", a.requireAuth(a.handleListTimeEntries))
	mux.HandleFunc("GET /api/time/active", a.requireAuth(a.handleActiveTimer))
	mux.HandleFunc("DELETE /api/time/{id}", a.requireAuth(a.handleDeleteTimeEntry))

	// Analytics
	mux.HandleFunc("GET /api/analytics/overview", a.requireAuth(a.handleOverview))
	mux.HandleFunc("GET /api/analytics/project/{id}", a.requireAuth(a.handleProjectAnalytics))

	// Users
	mux.HandleFunc("GET /api/users", a.requireAuth(a.handleListUsers))
	mux.HandleFunc("GET /api/users/{id}", a.requireAuth(a.handleGetUser))

	// Realtime events. Clients authenticate in-band with a user-online
	// message after the upgrade.
	mux.HandleFunc("GET /ws", a.handleWS)
}

func (a *api) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, 200, map[string]any{"ok": true, "ts": time.Now().UTC().Format(time.RFC3339)})
}
