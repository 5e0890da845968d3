package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

const projectCols = `id, name, description, color, owner_id, status, progress, deadline, completed_at, completed_by, created_at, updated_at`

func scanProject(row interface{ Scan(...any) error }) (Project, error) {
	var p Project
	err := row.Scan(&p.ID, &p.Name, &p.Description, &p.Color, &p.OwnerID, &p.Status,
		&p.Progress, &p.Deadline, &p.CompletedAt, &p.CompletedBy, &p.CreatedAt, &p.UpdatedAt)
	return p, err
}

// CreateProject inserts the project, enrolls the owner as admin and scaffolds
// the default board with its three lists, all in one transaction.
func (s *Store) CreateProject(ctx context.Context, ownerID int64, name, description, color string, deadline *time.Time) (Project, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return Project{}, err
	}
	defer func() { _ = tx.Rollback() }()

	if color == "" {
		color = "#00d4ff"
	}
	p, err := scanProject(tx.QueryRowContext(ctx,
		`insert into projects(name, description, color, owner_id, deadline) values($1,$2,$3,$4,$5)
		 returning `+projectCols, name, description, color, ownerID, deadline))
	if err != nil {
		return Project{}, err
	}
	if _, err = tx.ExecContext(ctx,
		`insert into project_members(project_id, user_id, role) values($1,$2,$3)`,
		p.ID, ownerID, RoleAdmin); err != nil {
		return Project{}, err
	}
	var boardID int64
	if err = tx.QueryRowContext(ctx,
		`insert into boards(project_id, name) values($1,'Main Board') returning id`, p.ID).
		Scan(&boardID); err != nil {
		return Project{}, err
	}
	for i, list := range []string{"To Do", "In Progress", "Done"} {
		if _, err = tx.ExecContext(ctx,
			`insert into board_lists(board_id, name, pos) values($1,$2,$3)`,
			boardID, list, int64(i+1)*1000); err != nil {
			return Project{}, err
		}
	}
	if err = tx.Commit(); err != nil {
		return Project{}, err
	}
	return p, nil
}

func (s *Store) GetProject(ctx context.Context, id int64) (Project, error) {
	p, err := scanProject(s.db.QueryRowContext(ctx,
		`select `+projectCols+` from projects where id=$1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return Project{}, ErrNotFound
	}
	return p, err
}

// PopulateProject fills the owner ref and member list.
func (s *Store) PopulateProject(ctx context.Context, p *Project) error {
	owner, err := s.userRef(ctx, p.OwnerID)
	if err != nil {
		return err
	}
	p.Owner = &owner
	members, err := s.ProjectMembers(ctx, p.ID)
	if err != nil {
		return err
	}
	p.Members = members
	return nil
}

func (s *Store) userRef(ctx context.Context, id int64) (UserRef, error) {
	var u UserRef
	err := s.db.QueryRowContext(ctx,
		`select id, name, email, coalesce(avatar_url,'') from users where id=$1`, id).
		Scan(&u.ID, &u.Name, &u.Email, &u.AvatarURL)
	if errors.Is(err, sql.ErrNoRows) {
		return UserRef{}, ErrNotFound
	}
	return u, err
}

func (s *Store) ProjectMembers(ctx context.Context, projectID int64) ([]ProjectMember, error) {
	rows, err := s.db.QueryContext(ctx,
		`select u.id, u.name, u.email, coalesce(u.avatar_url,''), m.role, m.joined_at
		 from project_members m join users u on u.id=m.user_id
		 where m.project_id=$1 order by m.joined_at, u.id`, projectID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []ProjectMember
	for rows.Next() {
		var m ProjectMember
		if err := rows.Scan(&m.User.ID, &m.User.Name, &m.User.Email, &m.User.AvatarURL, &m.Role, &m.JoinedAt); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// ListProjects returns the user's projects. Archived ones only show up when
// archived is true, mirroring the separate archived listing.
func (s *Store) ListProjects(ctx context.Context, userID int64, archived bool) ([]Project, error) {
	cmp, order := "<>", "p.created_at desc"
	if archived {
		cmp, order = "=", "p.updated_at desc"
	}
	rows, err := s.db.QueryContext(ctx,
		`select distinct p.id, p.name, p.description, p.color, p.owner_id, p.status, p.progress,
		        p.deadline, p.completed_at, p.completed_by, p.created_at, p.updated_at
		 from projects p
		 left join project_members m on m.project_id=p.id
		 where (p.owner_id=$1 or m.user_id=$1) and p.status `+cmp+` 'archived'
		 order by `+order+`, p.id`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Project
	for rows.Next() {
		p, err := scanProject(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (s *Store) CanAccessProject(ctx context.Context, projectID, userID int64) (bool, error) {
	var ok bool
	err := s.db.QueryRowContext(ctx,
		`select exists(
		   select 1 from projects where id=$1 and owner_id=$2
		   union all
		   select 1 from project_members where project_id=$1 and user_id=$2)`,
		projectID, userID).Scan(&ok)
	return ok, err
}

// IsProjectAdmin covers the owner (implicitly admin) and admin-role members.
func (s *Store) IsProjectAdmin(ctx context.Context, projectID, userID int64) (bool, error) {
	var ok bool
	err := s.db.QueryRowContext(ctx,
		`select exists(
		   select 1 from projects where id=$1 and owner_id=$2
		   union all
		   select 1 from project_members where project_id=$1 and user_id=$2 and role='admin')`,
		projectID, userID).Scan(&ok)
	return ok, err
}

func (s *Store) UpdateProject(ctx context.Context, id int64, name, description, color, status *string, progress *int, deadline *time.Time) error {
	set := []string{"updated_at=now()"}
	args := []any{}
	idx := 1
	add := func(col string, v any) {
		set = append(set, fmt.Sprintf("%s=$%d", col, idx))
		args = append(args, v)
		idx++
	}
	if name != nil {
		add("name", *name)
	}
	if description != nil {
		add("description", *description)
	}
	if color != nil {
		add("color", *color)
	}
	if status != nil {
		add("status", *status)
	}
	if progress != nil {
		add("progress", *progress)
	}
	if deadline != nil {
		add("deadline", *deadline)
	}
	args = append(args, id)
	res, err := s.db.ExecContext(ctx,
		fmt.Sprintf("update projects set %s where id=$%d", joinComma(set), idx), args...)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *Store) DeleteProject(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, `delete from projects where id=$1`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *Store) AddProjectMember(ctx context.Context, projectID, userID int64, role string) error {
	_, err := s.db.ExecContext(ctx,
		`insert into project_members(project_id, user_id, role) values($1,$2,$3)`,
		projectID, userID, role)
	if isUniqueViolation(err) {
		return ErrConflict
	}
	return err
}

// CompleteProject marks the project done on behalf of a user.
func (s *Store) CompleteProject(ctx context.Context, id, byUserID int64) error {
	res, err := s.db.ExecContext(ctx,
		`update projects set status='completed', completed_at=now(), completed_by=$1,
		 progress=100, updated_at=now() where id=$2`, byUserID, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// ReopenProject clears the completion metadata.
func (s *Store) ReopenProject(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx,
		`update projects set status='active', completed_at=null, completed_by=null,
		 updated_at=now() where id=$1`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *Store) ArchiveProject(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx,
		`update projects set status='archived', updated_at=now() where id=$1`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// ProjectBoards returns the board scaffold with lists, for the project view.
func (s *Store) ProjectBoards(ctx context.Context, projectID int64) ([]Board, error) {
	rows, err := s.db.QueryContext(ctx,
		`select id, project_id, name, created_at from boards where project_id=$1 order by id`, projectID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var boards []Board
	for rows.Next() {
		var b Board
		if err := rows.Scan(&b.ID, &b.ProjectID, &b.Name, &b.CreatedAt); err != nil {
			return nil, err
		}
		boards = append(boards, b)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for i := range boards {
		lrows, err := s.db.QueryContext(ctx,
			`select id, board_id, name, pos from board_lists where board_id=$1 order by pos, id`, boards[i].ID)
		if err != nil {
			return nil, err
		}
		for lrows.Next() {
			var l BoardList
			if err := lrows.Scan(&l.ID, &l.BoardID, &l.Name, &l.Pos); err != nil {
				lrows.Close()
				return nil, err
			}
			boards[i].Lists = append(boards[i].Lists, l)
		}
		if err := lrows.Err(); err != nil {
			lrows.Close()
			return nil, err
		}
		lrows.Close()
	}
	return boards, nil
}

func joinComma(parts []string) string {
	if len(parts) == 0 {
		return ""
	}
	out := parts[0]
	for i := 1; i < len(parts); i++ {
		out += ", " + parts[i]
	}
	return out
}

