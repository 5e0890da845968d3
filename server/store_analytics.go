package main

import (
	"context"
	"database/sql"
	"errors"
	"time"
)

// All aggregates here are computed fresh per request from current rows.
// Nothing is cached or incrementally maintained.

type OverviewFilter struct {
	From      *time.Time
	To        *time.Time
	ProjectID *int64
}

type TaskCounts struct {
	Total      int64 `json:"total"`
	Completed  int64 `json:"completed"`
	InProgress int64 `json:"in_progress"`
	Todo       int64 `json:"todo"`
}

type ProjectCounts struct {
	Total     int64 `json:"total"`
	Active    int64 `json:"active"`
	Completed int64 `json:"completed"`
	Archived  int64 `json:"archived"`
}

type DayCount struct {
	Day   string `json:"day"`
	Count int64  `json:"count"`
}

type PriorityCount struct {
	Priority string `json:"priority"`
	Count    int64  `json:"count"`
}

type OverviewStats struct {
	Tasks           TaskCounts
	Projects        ProjectCounts
	TotalSeconds    int64
	TasksByDay      []DayCount
	TasksByPriority []PriorityCount
}

const taskVisible = `(t.creator_id=$1 or exists(select 1 from task_assignees a where a.task_id=t.id and a.user_id=$1))`

// Overview aggregates the user's task, time and project statistics. The date
// bounds narrow the completed count (by creation date) and the time sums (by
// start time); the standing status counts are unfiltered.
func (s *Store) Overview(ctx context.Context, userID int64, f OverviewFilter) (OverviewStats, error) {
	var out OverviewStats

	rows, err := s.db.QueryContext(ctx,
		`select t.status, count(*) from tasks t
		 where `+taskVisible+` and ($2::bigint is null or t.project_id=$2)
		 group by t.status`, userID, f.ProjectID)
	if err != nil {
		return out, err
	}
	for rows.Next() {
		var status string
		var n int64
		if err := rows.Scan(&status, &n); err != nil {
			rows.Close()
			return out, err
		}
		out.Tasks.Total += n
		switch status {
		case StatusInProgress:
			out.Tasks.InProgress = n
		case StatusTodo:
			out.Tasks.Todo = n
		}
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return out, err
	}
	rows.Close()

	if err := s.db.QueryRowContext(ctx,
		`select count(*) from tasks t
		 where `+taskVisible+` and t.status='done'
		   and ($2::bigint is null or t.project_id=$2)
		   and ($3::timestamptz is null or t.created_at>=$3)
		   and ($4::timestamptz is null or t.created_at<=$4)`,
		userID, f.ProjectID, f.From, f.To).Scan(&out.Tasks.Completed); err != nil {
		return out, err
	}

	rows, err = s.db.QueryContext(ctx,
		`select extract(dow from t.completed_at)::int, count(*) from tasks t
		 where `+taskVisible+` and t.status='done' and t.completed_at is not null
		   and ($2::bigint is null or t.project_id=$2)
		   and ($3::timestamptz is null or t.created_at>=$3)
		   and ($4::timestamptz is null or t.created_at<=$4)
		 group by 1 order by 1`, userID, f.ProjectID, f.From, f.To)
	if err != nil {
		return out, err
	}
	for rows.Next() {
		var dow int
		var n int64
		if err := rows.Scan(&dow, &n); err != nil {
			rows.Close()
			return out, err
		}
		out.TasksByDay = append(out.TasksByDay, DayCount{Day: weekdayName(dow), Count: n})
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return out, err
	}
	rows.Close()

	rows, err = s.db.QueryContext(ctx,
		`select t.priority, count(*) from tasks t
		 where `+taskVisible+` and ($2::bigint is null or t.project_id=$2)
		 group by t.priority order by t.priority`, userID, f.ProjectID)
	if err != nil {
		return out, err
	}
	for rows.Next() {
		var pc PriorityCount
		if err := rows.Scan(&pc.Priority, &pc.Count); err != nil {
			rows.Close()
			return out, err
		}
		out.TasksByPriority = append(out.TasksByPriority, pc)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return out, err
	}
	rows.Close()

	if err := s.db.QueryRowContext(ctx,
		`select coalesce(sum(duration),0) from time_entries
		 where user_id=$1 and not is_running
		   and ($2::bigint is null or project_id=$2)
		   and ($3::timestamptz is null or start_time>=$3)
		   and ($4::timestamptz is null or start_time<=$4)`,
		userID, f.ProjectID, f.From, f.To).Scan(&out.TotalSeconds); err != nil {
		return out, err
	}

	rows, err = s.db.QueryContext(ctx,
		`select p.status, count(distinct p.id) from projects p
		 left join project_members m on m.project_id=p.id
		 where p.owner_id=$1 or m.user_id=$1
		 group by p.status`, userID)
	if err != nil {
		return out, err
	}
	defer rows.Close()
	for rows.Next() {
		var status string
		var n int64
		if err := rows.Scan(&status, &n); err != nil {
			return out, err
		}
		out.Projects.Total += n
		switch status {
		case ProjectActive:
			out.Projects.Active = n
		case ProjectCompleted:
			out.Projects.Completed = n
		case ProjectArchived:
			out.Projects.Archived = n
		}
	}
	return out, rows.Err()
}

type UserTime struct {
	Name    string
	Seconds int64
}

type ProjectStats struct {
	Name         string
	TotalTasks   int64
	Completed    int64
	TotalSeconds int64
	TimeByUser   []UserTime
}

// ProjectOverview aggregates one project's task and time statistics broken
// down by contributing user.
func (s *Store) ProjectOverview(ctx context.Context, projectID int64) (ProjectStats, error) {
	var out ProjectStats
	err := s.db.QueryRowContext(ctx, `select name from projects where id=$1`, projectID).Scan(&out.Name)
	if errors.Is(err, sql.ErrNoRows) {
		return out, ErrNotFound
	}
	if err != nil {
		return out, err
	}

	if err := s.db.QueryRowContext(ctx,
		`select count(*), count(*) filter (where status='done') from tasks where project_id=$1`,
		projectID).Scan(&out.TotalTasks, &out.Completed); err != nil {
		return out, err
	}

	rows, err := s.db.QueryContext(ctx,
		`select u.name, sum(e.duration) from time_entries e
		 join users u on u.id=e.user_id
		 where e.project_id=$1 and not e.is_running
		 group by u.name order by u.name`, projectID)
	if err != nil {
		return out, err
	}
	defer rows.Close()
	for rows.Next() {
		var ut UserTime
		if err := rows.Scan(&ut.Name, &ut.Seconds); err != nil {
			return out, err
		}
		out.TotalSeconds += ut.Seconds
		out.TimeByUser = append(out.TimeByUser, ut)
	}
	return out, rows.Err()
}

// weekdayName maps a Postgres dow (0=Sunday) to its name.
func weekdayName(dow int) string {
	if dow < 0 || dow > 6 {
		return "unknown"
	}
	return time.Weekday(dow).String()
}
