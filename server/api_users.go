package main

import "net/http"

// GET /api/users
func (a *api) handleListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := a.store.ListUsers(r.Context())
	if err != nil {
		a.storeError(w, err, "users")
		return
	}
	for i := range users {
		users[i].IsOnline = a.hub.IsOnline(users[i].ID)
	}
	writeJSON(w, 200, map[string]any{"ok": true, "count": len(users), "users": users})
}

// GET /api/users/{id}
func (a *api) handleGetUser(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r.PathValue("id"))
	if err != nil {
		writeError(w, 400, "bad id")
		return
	}
	u, err := a.store.UserByID(r.Context(), id)
	if err != nil {
		a.storeError(w, err, "user")
		return
	}
	u.IsOnline = a.hub.IsOnline(u.ID)
	projects, err := a.store.UserProjectRefs(r.Context(), id)
	if err != nil {
		a.storeError(w, err, "user projects")
		return
	}
	writeJSON(w, 200, map[string]any{"ok": true, "user": u, "projects": projects})
}
