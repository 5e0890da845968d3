package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

const taskCols = `id, project_id, list_id, title, description, creator_id, priority, status, due_date, total_time_spent, completed_at, created_at, updated_at`

func scanTask(row interface{ Scan(...any) error }) (Task, error) {
	var t Task
	err := row.Scan(&t.ID, &t.ProjectID, &t.ListID, &t.Title, &t.Description, &t.CreatorID,
		&t.Priority, &t.Status, &t.DueDate, &t.TotalTimeSpent, &t.CompletedAt, &t.CreatedAt, &t.UpdatedAt)
	return t, err
}

func (s *Store) CreateTask(ctx context.Context, t Task, assignees []int64) (Task, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return Task{}, err
	}
	defer func() { _ = tx.Rollback() }()

	created, err := scanTask(tx.QueryRowContext(ctx,
		`insert into tasks(project_id, list_id, title, description, creator_id, priority, status, due_date)
		 values($1,$2,$3,$4,$5,$6,$7,$8) returning `+taskCols,
		t.ProjectID, t.ListID, t.Title, t.Description, t.CreatorID, t.Priority, t.Status, t.DueDate))
	if err != nil {
		return Task{}, err
	}
	for _, uid := range assignees {
		if _, err = tx.ExecContext(ctx,
			`insert into task_assignees(task_id, user_id) values($1,$2) on conflict do nothing`,
			created.ID, uid); err != nil {
			return Task{}, err
		}
	}
	if err = tx.Commit(); err != nil {
		return Task{}, err
	}
	return created, nil
}

func (s *Store) GetTask(ctx context.Context, id int64) (Task, error) {
	t, err := scanTask(s.db.QueryRowContext(ctx, `select `+taskCols+` from tasks where id=$1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return Task{}, ErrNotFound
	}
	return t, err
}

// TaskFilter narrows ListTasks. Nil fields are ignored.
type TaskFilter struct {
	ProjectID *int64
	Status    *string
	Assignee  *int64
	Priority  *string
}

func (s *Store) ListTasks(ctx context.Context, f TaskFilter) ([]Task, error) {
	where := []string{"true"}
	args := []any{}
	idx := 1
	if f.ProjectID != nil {
		where = append(where, fmt.Sprintf("t.project_id=$%d", idx))
		args = append(args, *f.ProjectID)
		idx++
	}
	if f.Status != nil {
		where = append(where, fmt.Sprintf("t.status=$%d", idx))
		args = append(args, *f.Status)
		idx++
	}
	if f.Priority != nil {
		where = append(where, fmt.Sprintf("t.priority=$%d", idx))
		args = append(args, *f.Priority)
		idx++
	}
	if f.Assignee != nil {
		where = append(where, fmt.Sprintf("exists(select 1 from task_assignees a where a.task_id=t.id and a.user_id=$%d)", idx))
		args = append(args, *f.Assignee)
		idx++
	}
	q := fmt.Sprintf(`select t.id, t.project_id, t.list_id, t.title, t.description, t.creator_id,
		t.priority, t.status, t.due_date, t.total_time_spent, t.completed_at, t.created_at, t.updated_at
		from tasks t where %s order by t.created_at desc, t.id desc`, joinAnd(where))
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Task
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// TaskUpdate carries the partial-update fields for UpdateTask.
type TaskUpdate struct {
	Title       *string
	Description *string
	Status      *string
	Priority    *string
	DueDate     *time.Time
	ListID      *int64
	Assignees   []int64 // nil means leave unchanged
}

// UpdateTask applies the partial update. A status transition into done stamps
// completed_at; leaving done clears it.
func (s *Store) UpdateTask(ctx context.Context, id int64, up TaskUpdate) (Task, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return Task{}, err
	}
	defer func() { _ = tx.Rollback() }()

	var current string
	err = tx.QueryRowContext(ctx, `select status from tasks where id=$1 for update`, id).Scan(&current)
	if errors.Is(err, sql.ErrNoRows) {
		return Task{}, ErrNotFound
	}
	if err != nil {
		return Task{}, err
	}

	set := []string{"updated_at=now()"}
	args := []any{}
	idx := 1
	add := func(col string, v any) {
		set = append(set, fmt.Sprintf("%s=$%d", col, idx))
		args = append(args, v)
		idx++
	}
	if up.Title != nil {
		add("title", *up.Title)
	}
	if up.Description != nil {
		add("description", *up.Description)
	}
	if up.Priority != nil {
		add("priority", *up.Priority)
	}
	if up.DueDate != nil {
		add("due_date", *up.DueDate)
	}
	if up.ListID != nil {
		add("list_id", *up.ListID)
	}
	if up.Status != nil {
		add("status", *up.Status)
		switch {
		case *up.Status == StatusDone && current != StatusDone:
			set = append(set, "completed_at=now()")
		case *up.Status != StatusDone && current == StatusDone:
			set = append(set, "completed_at=null")
		}
	}
	args = append(args, id)
	t, err := scanTask(tx.QueryRowContext(ctx,
		fmt.Sprintf("update tasks set %s where id=$%d returning %s", joinComma(set), idx, taskCols), args...))
	if err != nil {
		return Task{}, err
	}
	if up.Assignees != nil {
		if _, err = tx.ExecContext(ctx, `delete from task_assignees where task_id=$1`, id); err != nil {
			return Task{}, err
		}
		for _, uid := range up.Assignees {
			if _, err = tx.ExecContext(ctx,
				`insert into task_assignees(task_id, user_id) values($1,$2) on conflict do nothing`,
				id, uid); err != nil {
				return Task{}, err
			}
		}
	}
	if err = tx.Commit(); err != nil {
		return Task{}, err
	}
	return t, nil
}

func (s *Store) DeleteTask(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, `delete from tasks where id=$1`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// PopulateTask fills creator, assignees and the project name. With full set
// it also loads comments and time entries for the detail view.
func (s *Store) PopulateTask(ctx context.Context, t *Task, full bool) error {
	creator, err := s.userRef(ctx, t.CreatorID)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return err
	}
	if err == nil {
		t.Creator = &creator
	}
	if err := s.db.QueryRowContext(ctx,
		`select name from projects where id=$1`, t.ProjectID).Scan(&t.ProjectName); err != nil && !errors.Is(err, sql.ErrNoRows) {
		return err
	}
	rows, err := s.db.QueryContext(ctx,
		`select u.id, u.name, u.email, coalesce(u.avatar_url,'')
		 from task_assignees a join users u on u.id=a.user_id
		 where a.task_id=$1 order by u.id`, t.ID)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		var u UserRef
		if err := rows.Scan(&u.ID, &u.Name, &u.Email, &u.AvatarURL); err != nil {
			return err
		}
		t.Assignees = append(t.Assignees, u)
	}
	if err := rows.Err(); err != nil {
		return err
	}
	if !full {
		return nil
	}
	if t.Comments, err = s.CommentsByTask(ctx, t.ID); err != nil {
		return err
	}
	if t.TimeEntries, err = s.TimeEntriesByTask(ctx, t.ID); err != nil {
		return err
	}
	return nil
}

func (s *Store) AddComment(ctx context.Context, taskID, userID int64, text string) (Comment, error) {
	var c Comment
	err := s.db.QueryRowContext(ctx,
		`insert into comments(task_id, user_id, body) values($1,$2,$3)
		 returning id, task_id, user_id, body, created_at`, taskID, userID, text).
		Scan(&c.ID, &c.TaskID, &c.UserID, &c.Text, &c.CreatedAt)
	if err != nil {
		return Comment{}, err
	}
	author, err := s.userRef(ctx, userID)
	if err == nil {
		c.Author = &author
	}
	return c, nil
}

func (s *Store) CommentsByTask(ctx context.Context, taskID int64) ([]Comment, error) {
	rows, err := s.db.QueryContext(ctx,
		`select c.id, c.task_id, c.user_id, c.body, c.created_at,
		        u.id, u.name, u.email, coalesce(u.avatar_url,'')
		 from comments c join users u on u.id=c.user_id
		 where c.task_id=$1 order by c.id`, taskID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Comment
	for rows.Next() {
		var c Comment
		var u UserRef
		if err := rows.Scan(&c.ID, &c.TaskID, &c.UserID, &c.Text, &c.CreatedAt,
			&u.ID, &u.Name, &u.Email, &u.AvatarURL); err != nil {
			return nil, err
		}
		c.Author = &u
		out = append(out, c)
	}
	return out, rows.Err()
}

func joinAnd(parts []string) string {
	out := parts[0]
	for i := 1; i < len(parts); i++ {
		out += " and " + parts[i]
	}
	return out
}
