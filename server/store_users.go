package main

import (
	"context"
	"database/sql"
	"errors"
	"net/url"
	"time"

	"golang.org/x/crypto/bcrypt"
)

const userCols = `id, email, name, coalesce(avatar_url,''), role, is_online, last_active, created_at`

func scanUser(row interface{ Scan(...any) error }) (User, error) {
	var u User
	err := row.Scan(&u.ID, &u.Email, &u.Name, &u.AvatarURL, &u.Role, &u.IsOnline, &u.LastActive, &u.CreatedAt)
	return u, err
}

func (s *Store) CreateUser(ctx context.Context, email, passwordHash, name string) (User, error) {
	avatar := "https://ui-avatars.com/api/?background=00d4ff&color=000&name=" + url.QueryEscape(name)
	u, err := scanUser(s.db.QueryRowContext(ctx,
		`insert into users(email, password_hash, name, avatar_url) values($1,$2,$3,$4)
		 returning `+userCols, email, passwordHash, name, avatar))
	if isUniqueViolation(err) {
		return User{}, ErrConflict
	}
	return u, err
}

func (s *Store) UserByID(ctx context.Context, id int64) (User, error) {
	u, err := scanUser(s.db.QueryRowContext(ctx, `select `+userCols+` from users where id=$1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return User{}, ErrNotFound
	}
	return u, err
}

func (s *Store) UserByEmail(ctx context.Context, email string) (User, error) {
	u, err := scanUser(s.db.QueryRowContext(ctx,
		`select `+userCols+` from users where lower(email)=lower($1)`, email))
	if errors.Is(err, sql.ErrNoRows) {
		return User{}, ErrNotFound
	}
	return u, err
}

func (s *Store) ListUsers(ctx context.Context) ([]User, error) {
	rows, err := s.db.QueryContext(ctx, `select `+userCols+` from users order by name, id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	return out, rows.Err()
}

// Authenticate verifies the password for an email and returns the user.
func (s *Store) Authenticate(ctx context.Context, email, password string) (User, error) {
	var u User
	var hash string
	err := s.db.QueryRowContext(ctx,
		`select `+userCols+`, password_hash from users where lower(email)=lower($1)`, email).
		Scan(&u.ID, &u.Email, &u.Name, &u.AvatarURL, &u.Role, &u.IsOnline, &u.LastActive, &u.CreatedAt, &hash)
	if errors.Is(err, sql.ErrNoRows) {
		return User{}, ErrNotFound
	}
	if err != nil {
		return User{}, err
	}
	if bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) != nil {
		return User{}, ErrNotFound
	}
	return u, nil
}

// SetUserPresence mirrors the broker's online mapping into the user row so
// REST reads see the flag without a live connection.
func (s *Store) SetUserPresence(ctx context.Context, userID int64, online bool) error {
	_, err := s.db.ExecContext(ctx,
		`update users set is_online=$1, last_active=now() where id=$2`, online, userID)
	return err
}

// SetRefreshToken stores the opaque token with its expiry. Logout passes an
// empty token and a past expiry.
func (s *Store) SetRefreshToken(ctx context.Context, userID int64, token string, expires time.Time) error {
	res, err := s.db.ExecContext(ctx,
		`update users set refresh_token=$1, refresh_expires=$2 where id=$3`, token, expires, userID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// UserByRefreshToken resolves a live, unexpired refresh token.
func (s *Store) UserByRefreshToken(ctx context.Context, token string) (User, error) {
	if token == "" {
		return User{}, ErrNotFound
	}
	u, err := scanUser(s.db.QueryRowContext(ctx,
		`select `+userCols+` from users where refresh_token=$1 and refresh_expires > now()`, token))
	if errors.Is(err, sql.ErrNoRows) {
		return User{}, ErrNotFound
	}
	return u, err
}

// UserProjectRefs lists compact refs of projects the user owns or belongs to.
func (s *Store) UserProjectRefs(ctx context.Context, userID int64) ([]map[string]any, error) {
	rows, err := s.db.QueryContext(ctx,
		`select distinct p.id, p.name, p.color from projects p
		 left join project_members m on m.project_id=p.id
		 where p.owner_id=$1 or m.user_id=$1
		 order by p.id`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []map[string]any{}
	for rows.Next() {
		var id int64
		var name, color string
		if err := rows.Scan(&id, &name, &color); err != nil {
			return nil, err
		}
		out = append(out, map[string]any{"id": id, "name": name, "color": color})
	}
	return out, rows.Err()
}
