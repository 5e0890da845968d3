package main

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jackc/pgx/v5/pgconn"
)

// Error taxonomy surfaced by the store. Handlers map these to HTTP statuses;
// anything else is logged and collapsed to a generic 500.
var (
	ErrNotFound     = errors.New("not found")
	ErrForbidden    = errors.New("forbidden")
	ErrConflict     = errors.New("conflict")
	ErrInvalidState = errors.New("invalid state")
)

type Store struct {
	db *sql.DB
}

func NewStore(db *sql.DB) *Store { return &Store{db: db} }

func (s *Store) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, schema)
	return err
}

// isUniqueViolation reports whether err is a Postgres unique constraint
// failure (SQLSTATE 23505).
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

const schema = `
create table if not exists users(
    id bigserial primary key,
    email text unique not null,
    password_hash text not null default '',
    name text not null default '',
    avatar_url text,
    role text not null default 'member',
    is_online boolean not null default false,
    last_active timestamptz not null default now(),
    refresh_token text not null default '',
    refresh_expires timestamptz not null default now(),
    created_at timestamptz not null default now()
);
alter table users add column if not exists refresh_expires timestamptz not null default now();

create table if not exists projects(
    id bigserial primary key,
    name text not null check (length(name) > 0),
    description text not null default '',
    color text not null default '#00d4ff',
    owner_id bigint not null references users(id),
    status text not null default 'active',
    progress int not null default 0 check (progress between 0 and 100),
    deadline timestamptz,
    completed_at timestamptz,
    completed_by bigint references users(id),
    created_at timestamptz not null default now(),
    updated_at timestamptz not null default now()
);

create table if not exists project_members(
    project_id bigint not null references projects(id) on delete cascade,
    user_id bigint not null references users(id) on delete cascade,
    role text not null default 'member',
    joined_at timestamptz not null default now(),
    primary key(project_id, user_id)
);

create table if not exists boards(
    id bigserial primary key,
    project_id bigint not null references projects(id) on delete cascade,
    name text not null,
    created_at timestamptz not null default now()
);
create index if not exists boards_project_idx on boards(project_id);

create table if not exists board_lists(
    id bigserial primary key,
    board_id bigint not null references boards(id) on delete cascade,
    name text not null,
    pos bigint not null default 1000
);
create index if not exists board_lists_board_idx on board_lists(board_id);

create table if not exists tasks(
    id bigserial primary key,
    project_id bigint not null references projects(id) on delete cascade,
    list_id bigint references board_lists(id) on delete set null,
    title text not null check (length(title) > 0),
    description text not null default '',
    creator_id bigint not null references users(id),
    priority text not null default 'medium',
    status text not null default 'todo',
    due_date timestamptz,
    total_time_spent bigint not null default 0,
    completed_at timestamptz,
    created_at timestamptz not null default now(),
    updated_at timestamptz not null default now()
);
create index if not exists tasks_project_idx on tasks(project_id);
create index if not exists tasks_status_idx on tasks(status);

create table if not exists task_assignees(
    task_id bigint not null references tasks(id) on delete cascade,
    user_id bigint not null references users(id) on delete cascade,
    primary key(task_id, user_id)
);

create table if not exists comments(
    id bigserial primary key,
    task_id bigint not null references tasks(id) on delete cascade,
    user_id bigint not null references users(id),
    body text not null check (length(body) > 0),
    created_at timestamptz not null default now()
);
create index if not exists comments_task_idx on comments(task_id);

-- task_id/project_id carry no FK: historical entries survive task deletion.
create table if not exists time_entries(
    id bigserial primary key,
    user_id bigint not null references users(id),
    task_id bigint not null,
    project_id bigint not null,
    description text not null default '',
    start_time timestamptz not null default now(),
    end_time timestamptz,
    duration bigint not null default 0,
    is_running boolean not null default true,
    created_at timestamptz not null default now()
);
create index if not exists time_entries_user_idx on time_entries(user_id, start_time);
create index if not exists time_entries_project_idx on time_entries(project_id);

-- The single-running-timer guard: two concurrent starts for one user cannot
-- both commit, the second insert hits this index.
create unique index if not exists time_entries_one_running_idx
    on time_entries(user_id) where is_running;
`
