package main

import "time"

// Task status values.
const (
	StatusTodo       = "todo"
	StatusInProgress = "in-progress"
	StatusDone       = "done"
)

// Task priorities, lowest to highest.
const (
	PriorityLow    = "low"
	PriorityMedium = "medium"
	PriorityHigh   = "high"
	PriorityUrgent = "urgent"
)

// Project status values.
const (
	ProjectActive    = "active"
	ProjectCompleted = "completed"
	ProjectArchived  = "archived"
)

// Membership roles. The project owner is admin-equivalent regardless of
// the role stored in project_members.
const (
	RoleAdmin  = "admin"
	RoleMember = "member"
)

type User struct {
	ID         int64     `json:"id"`
	Email      string    `json:"email"`
	Name       string    `json:"name"`
	AvatarURL  string    `json:"avatar_url,omitempty"`
	Role       string    `json:"role"`
	IsOnline   bool      `json:"is_online"`
	LastActive time.Time `json:"last_active"`
	CreatedAt  time.Time `json:"created_at"`
}

// UserRef is the compact user shape embedded in populated responses.
type UserRef struct {
	ID        int64  `json:"id"`
	Name      string `json:"name"`
	Email     string `json:"email"`
	AvatarURL string `json:"avatar_url,omitempty"`
}

type Project struct {
	ID          int64           `json:"id"`
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	Color       string          `json:"color,omitempty"`
	OwnerID     int64           `json:"owner_id"`
	Owner       *UserRef        `json:"owner,omitempty"`
	Members     []ProjectMember `json:"members,omitempty"`
	Status      string          `json:"status"`
	Progress    int             `json:"progress"`
	Deadline    *time.Time      `json:"deadline,omitempty"`
	CompletedAt *time.Time      `json:"completed_at,omitempty"`
	CompletedBy *int64          `json:"completed_by,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

type ProjectMember struct {
	User     UserRef   `json:"user"`
	Role     string    `json:"role"`
	JoinedAt time.Time `json:"joined_at"`
}

// Board and BoardList form the default kanban scaffold created with each
// project. Tasks are referenced by list_id, never embedded.
type Board struct {
	ID        int64       `json:"id"`
	ProjectID int64       `json:"project_id"`
	Name      string      `json:"name"`
	Lists     []BoardList `json:"lists,omitempty"`
	CreatedAt time.Time   `json:"created_at"`
}

type BoardList struct {
	ID      int64  `json:"id"`
	BoardID int64  `json:"board_id"`
	Name    string `json:"name"`
	Pos     int64  `json:"pos"`
}

type Task struct {
	ID          int64      `json:"id"`
	ProjectID   int64      `json:"project_id"`
	ProjectName string     `json:"project_name,omitempty"`
	ListID      *int64     `json:"list_id,omitempty"`
	Title       string     `json:"title"`
	Description string     `json:"description,omitempty"`
	CreatorID   int64      `json:"creator_id"`
	Creator     *UserRef   `json:"creator,omitempty"`
	Assignees   []UserRef  `json:"assignees,omitempty"`
	Priority    string     `json:"priority"`
	Status      string     `json:"status"`
	DueDate     *time.Time `json:"due_date,omitempty"`
	// TotalTimeSpent is whole seconds, only ever incremented by timer stop.
	TotalTimeSpent int64       `json:"total_time_spent"`
	Comments       []Comment   `json:"comments,omitempty"`
	TimeEntries    []TimeEntry `json:"time_entries,omitempty"`
	CompletedAt    *time.Time  `json:"completed_at,omitempty"`
	CreatedAt      time.Time   `json:"created_at"`
	UpdatedAt      time.Time   `json:"updated_at"`
}

type Comment struct {
	ID        int64     `json:"id"`
	TaskID    int64     `json:"task_id"`
	UserID    int64     `json:"user_id"`
	Author    *UserRef  `json:"author,omitempty"`
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"created_at"`
}

type TimeEntry struct {
	ID          int64      `json:"id"`
	UserID      int64      `json:"user_id"`
	TaskID      int64      `json:"task_id"`
	TaskTitle   string     `json:"task_title,omitempty"`
	ProjectID   int64      `json:"project_id"`
	ProjectName string     `json:"project_name,omitempty"`
	Description string     `json:"description,omitempty"`
	StartTime   time.Time  `json:"start_time"`
	EndTime     *time.Time `json:"end_time,omitempty"`
	// Duration is whole seconds; authoritative only once IsRunning is false.
	Duration  int64     `json:"duration"`
	IsRunning bool      `json:"is_running"`
	CreatedAt time.Time `json:"created_at"`
}

func validTaskStatus(s string) bool {
	return s == StatusTodo || s == StatusInProgress || s == StatusDone
}

func validPriority(p string) bool {
	return p == PriorityLow || p == PriorityMedium || p == PriorityHigh || p == PriorityUrgent
}

func validProjectStatus(s string) bool {
	return s == ProjectActive || s == ProjectCompleted || s == ProjectArchived
}

func validMemberRole(r string) bool { return r == RoleAdmin || r == RoleMember }
