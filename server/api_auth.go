package main

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"
)

func (a *api) issueTokens(w http.ResponseWriter, r *http.Request, u User, status int) {
	access, err := a.issueAccessToken(u.ID, u.Role)
	if err != nil {
		a.log.Error("sign token", "err", err)
		writeError(w, 500, "internal error")
		return
	}
	refresh, err := newRefreshToken()
	if err != nil {
		a.log.Error("refresh token", "err", err)
		writeError(w, 500, "internal error")
		return
	}
	if err := a.store.SetRefreshToken(r.Context(), u.ID, refresh, time.Now().Add(a.cfg.RefreshTTL)); err != nil {
		a.log.Error("store refresh token", "err", err)
		writeError(w, 500, "internal error")
		return
	}
	writeJSON(w, status, map[string]any{
		"ok": true, "user": u, "access_token": access, "refresh_token": refresh,
	})
}

// POST /api/auth/register
func (a *api) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req struct{ Name, Email, Password string }
	if err := readJSON(w, r, &req); err != nil {
		writeError(w, 400, "invalid payload")
		return
	}
	req.Name = strings.TrimSpace(req.Name)
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	if req.Name == "" || !strings.Contains(req.Email, "@") {
		writeError(w, 400, "invalid payload")
		return
	}
	if len(req.Password) < 6 {
		writeError(w, 400, "password too short")
		return
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		a.log.Error("bcrypt", "err", err)
		writeError(w, 500, "internal error")
		return
	}
	u, err := a.store.CreateUser(r.Context(), req.Email, string(hash), req.Name)
	if err != nil {
		if errors.Is(err, ErrConflict) {
			writeError(w, 400, "email already registered")
			return
		}
		a.storeError(w, err, "register")
		return
	}
	a.issueTokens(w, r, u, 201)
}

// POST /api/auth/login
func (a *api) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req struct{ Email, Password string }
	if err := readJSON(w, r, &req); err != nil || req.Email == "" || req.Password == "" {
		writeError(w, 400, "invalid payload")
		return
	}
	u, err := a.store.Authenticate(r.Context(), req.Email, req.Password)
	if err != nil {
		writeError(w, 401, "invalid credentials")
		return
	}
	a.issueTokens(w, r, u, 200)
}

// POST /api/auth/refresh rotates the refresh token and issues a new pair.
func (a *api) handleRefresh(w http.ResponseWriter, r *http.Request) {
	var req struct {
		RefreshToken string `json:"refresh_token"`
	}
	if err := readJSON(w, r, &req); err != nil || req.RefreshToken == "" {
		writeError(w, 400, "invalid payload")
		return
	}
	u, err := a.store.UserByRefreshToken(r.Context(), req.RefreshToken)
	if err != nil {
		writeError(w, 401, "invalid refresh token")
		return
	}
	a.issueTokens(w, r, u, 200)
}

// POST /api/auth/logout
func (a *api) handleLogout(w http.ResponseWriter, r *http.Request) {
	p := principalFrom(r)
	if err := a.store.SetRefreshToken(r.Context(), p.ID, "", time.Now()); err != nil {
		a.log.Error("logout", "err", err)
	}
	writeJSON(w, 200, map[string]any{"ok": true})
}

// GET /api/auth/me
func (a *api) handleMe(w http.ResponseWriter, r *http.Request) {
	p := principalFrom(r)
	u, err := a.store.UserByID(r.Context(), p.ID)
	if err != nil {
		a.storeError(w, err, "user")
		return
	}
	writeJSON(w, 200, map[string]any{"ok": true, "user": u})
}
