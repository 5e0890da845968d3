package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// durationSeconds is the authoritative duration rule: whole seconds between
// start and end, sub-second remainder truncated.
func durationSeconds(start, end time.Time) int64 {
	d := end.Sub(start)
	if d < 0 {
		return 0
	}
	return int64(d / time.Second)
}

func scanTimeEntry(row interface{ Scan(...any) error }) (TimeEntry, error) {
	var e TimeEntry
	err := row.Scan(&e.ID, &e.UserID, &e.TaskID, &e.ProjectID, &e.Description,
		&e.StartTime, &e.EndTime, &e.Duration, &e.IsRunning, &e.CreatedAt)
	return e, err
}

const entryCols = `id, user_id, task_id, project_id, description, start_time, end_time, duration, is_running, created_at`

// StartTimer creates a running entry for the user. The partial unique index
// on (user_id) where is_running makes the "no second running timer" check and
// the insert one atomic step: a concurrent start loses with ErrConflict.
func (s *Store) StartTimer(ctx context.Context, userID, taskID int64, description string) (TimeEntry, error) {
	var projectID int64
	var taskTitle, projectName string
	err := s.db.QueryRowContext(ctx,
		`select t.project_id, t.title, p.name from tasks t join projects p on p.id=t.project_id
		 where t.id=$1`, taskID).Scan(&projectID, &taskTitle, &projectName)
	if errors.Is(err, sql.ErrNoRows) {
		return TimeEntry{}, ErrNotFound
	}
	if err != nil {
		return TimeEntry{}, err
	}

	e, err := scanTimeEntry(s.db.QueryRowContext(ctx,
		`insert into time_entries(user_id, task_id, project_id, description, start_time, is_running)
		 values($1,$2,$3,$4,now(),true) returning `+entryCols,
		userID, taskID, projectID, description))
	if isUniqueViolation(err) {
		return TimeEntry{}, ErrConflict
	}
	if err != nil {
		return TimeEntry{}, err
	}
	e.TaskTitle, e.ProjectName = taskTitle, projectName
	return e, nil
}

// StopTimer finalizes the entry and credits the task total in one
// transaction. Calling it twice yields ErrInvalidState the second time and
// never double-increments the task.
func (s *Store) StopTimer(ctx context.Context, userID, entryID int64) (TimeEntry, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return TimeEntry{}, err
	}
	defer func() { _ = tx.Rollback() }()

	e, err := scanTimeEntry(tx.QueryRowContext(ctx,
		`select `+entryCols+` from time_entries where id=$1 for update`, entryID))
	if errors.Is(err, sql.ErrNoRows) {
		return TimeEntry{}, ErrNotFound
	}
	if err != nil {
		return TimeEntry{}, err
	}
	if e.UserID != userID {
		return TimeEntry{}, ErrForbidden
	}
	if !e.IsRunning {
		return TimeEntry{}, ErrInvalidState
	}

	end := time.Now()
	dur := durationSeconds(e.StartTime, end)
	if _, err = tx.ExecContext(ctx,
		`update time_entries set end_time=$1, duration=$2, is_running=false where id=$3`,
		end, dur, entryID); err != nil {
		return TimeEntry{}, err
	}
	// Historical deletes never roll this back, the task total only grows.
	if _, err = tx.ExecContext(ctx,
		`update tasks set total_time_spent=total_time_spent+$1, updated_at=now() where id=$2`,
		dur, e.TaskID); err != nil {
		return TimeEntry{}, err
	}
	if err = tx.Commit(); err != nil {
		return TimeEntry{}, err
	}

	e.EndTime = &end
	e.Duration = dur
	e.IsRunning = false
	s.fillEntryNames(ctx, &e)
	return e, nil
}

// ActiveTimer returns the user's running entry, or nil when there is none.
func (s *Store) ActiveTimer(ctx context.Context, userID int64) (*TimeEntry, error) {
	e, err := scanTimeEntry(s.db.QueryRowContext(ctx,
		`select `+entryCols+` from time_entries where user_id=$1 and is_running`, userID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	s.fillEntryNames(ctx, &e)
	return &e, nil
}

// TimeEntryFilter narrows ListTimeEntries. Date bounds apply to start_time.
type TimeEntryFilter struct {
	ProjectID *int64
	TaskID    *int64
	From      *time.Time
	To        *time.Time
}

// ListTimeEntries returns the user's entries ordered by start time
// descending, plus the summed duration of the returned set.
func (s *Store) ListTimeEntries(ctx context.Context, userID int64, f TimeEntryFilter) ([]TimeEntry, int64, error) {
	where := []string{"e.user_id=$1"}
	args := []any{userID}
	idx := 2
	if f.ProjectID != nil {
		where = append(where, fmt.Sprintf("e.project_id=$%d", idx))
		args = append(args, *f.ProjectID)
		idx++
	}
	if f.TaskID != nil {
		where = append(where, fmt.Sprintf("e.task_id=$%d", idx))
		args = append(args, *f.TaskID)
		idx++
	}
	if f.From != nil {
		where = append(where, fmt.Sprintf("e.start_time>=$%d", idx))
		args = append(args, *f.From)
		idx++
	}
	if f.To != nil {
		where = append(where, fmt.Sprintf("e.start_time<=$%d", idx))
		args = append(args, *f.To)
		idx++
	}
	q := fmt.Sprintf(`select e.id, e.user_id, e.task_id, e.project_id, e.description, e.start_time,
		e.end_time, e.duration, e.is_running, e.created_at,
		coalesce(t.title,''), coalesce(p.name,'')
		from time_entries e
		left join tasks t on t.id=e.task_id
		left join projects p on p.id=e.project_id
		where %s order by e.start_time desc, e.id desc`, joinAnd(where))
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var out []TimeEntry
	var total int64
	for rows.Next() {
		var e TimeEntry
		if err := rows.Scan(&e.ID, &e.UserID, &e.TaskID, &e.ProjectID, &e.Description,
			&e.StartTime, &e.EndTime, &e.Duration, &e.IsRunning, &e.CreatedAt,
			&e.TaskTitle, &e.ProjectName); err != nil {
			return nil, 0, err
		}
		total += e.Duration
		out = append(out, e)
	}
	return out, total, rows.Err()
}

// DeleteTimeEntry removes the entry without touching the owning task's
// accumulated total. Historical totals are not retroactively corrected.
func (s *Store) DeleteTimeEntry(ctx context.Context, userID, entryID int64) error {
	var owner int64
	err := s.db.QueryRowContext(ctx, `select user_id from time_entries where id=$1`, entryID).Scan(&owner)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return err
	}
	if owner != userID {
		return ErrForbidden
	}
	_, err = s.db.ExecContext(ctx, `delete from time_entries where id=$1`, entryID)
	return err
}

func (s *Store) TimeEntriesByTask(ctx context.Context, taskID int64) ([]TimeEntry, error) {
	rows, err := s.db.QueryContext(ctx,
		`select `+entryCols+` from time_entries where task_id=$1 order by start_time desc, id desc`, taskID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []TimeEntry
	for rows.Next() {
		e, err := scanTimeEntry(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// fillEntryNames is best-effort population; a deleted task just leaves the
// title empty.
func (s *Store) fillEntryNames(ctx context.Context, e *TimeEntry) {
	_ = s.db.QueryRowContext(ctx, `select title from tasks where id=$1`, e.TaskID).Scan(&e.TaskTitle)
	_ = s.db.QueryRowContext(ctx, `select name from projects where id=$1`, e.ProjectID).Scan(&e.ProjectName)
}
