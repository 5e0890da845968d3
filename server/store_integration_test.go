package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"sync"
	"testing"
	"time"
)

// openTestStore connects to the database named by DATABASE_URL, or skips.
func openTestStore(t *testing.T) *Store {
	t.Helper()
	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		t.Skip("DATABASE_URL not set")
	}
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	store := NewStore(db)
	if err := store.Migrate(context.Background()); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return store
}

// newTimerFixture creates a user, a project and a task, and tears them all
// down when the test ends.
func newTimerFixture(t *testing.T, s *Store) (User, Task) {
	t.Helper()
	ctx := context.Background()
	email := fmt.Sprintf("timer-%d@test.local", time.Now().UnixNano())
	u, err := s.CreateUser(ctx, email, "x", "Timer Tester")
	if err != nil {
		t.Fatalf("create user: %v", err)
	}
	p, err := s.CreateProject(ctx, u.ID, "Timer Project", "", "", nil)
	if err != nil {
		t.Fatalf("create project: %v", err)
	}
	task, err := s.CreateTask(ctx, Task{
		ProjectID: p.ID, Title: "tracked work", CreatorID: u.ID,
		Priority: PriorityMedium, Status: StatusTodo,
	}, nil)
	if err != nil {
		t.Fatalf("create task: %v", err)
	}
	t.Cleanup(func() {
		_, _ = s.db.ExecContext(ctx, `delete from time_entries where user_id=$1`, u.ID)
		_, _ = s.db.ExecContext(ctx, `delete from projects where id=$1`, p.ID)
		_, _ = s.db.ExecContext(ctx, `delete from users where id=$1`, u.ID)
	})
	return u, task
}

func TestStopTimerDoubleStop(t *testing.T) {
	s := openTestStore(t)
	u, task := newTimerFixture(t, s)
	ctx := context.Background()

	entry, err := s.StartTimer(ctx, u.ID, task.ID, "")
	if err != nil {
		t.Fatalf("StartTimer() error = %v", err)
	}
	stopped, err := s.StopTimer(ctx, u.ID, entry.ID)
	if err != nil {
		t.Fatalf("StopTimer() error = %v", err)
	}
	if stopped.IsRunning {
		t.Error("entry still running after stop")
	}

	after, err := s.GetTask(ctx, task.ID)
	if err != nil {
		t.Fatalf("GetTask() error = %v", err)
	}
	if after.TotalTimeSpent != stopped.Duration {
		t.Errorf("total_time_spent = %d, want %d", after.TotalTimeSpent, stopped.Duration)
	}

	// A second stop must fail and must not credit the task again.
	if _, err := s.StopTimer(ctx, u.ID, entry.ID); !errors.Is(err, ErrInvalidState) {
		t.Fatalf("second StopTimer() error = %v, want ErrInvalidState", err)
	}
	again, err := s.GetTask(ctx, task.ID)
	if err != nil {
		t.Fatalf("GetTask() error = %v", err)
	}
	if again.TotalTimeSpent != after.TotalTimeSpent {
		t.Errorf("total_time_spent changed on double stop: %d -> %d", after.TotalTimeSpent, again.TotalTimeSpent)
	}
}

func TestStartTimerConcurrentSingleWinner(t *testing.T) {
	s := openTestStore(t)
	u, task := newTimerFixture(t, s)
	ctx := context.Background()

	var wg sync.WaitGroup
	errs := make(chan error, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.StartTimer(ctx, u.ID, task.ID, "race")
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	var ok, conflict int
	for err := range errs {
		switch {
		case err == nil:
			ok++
		case errors.Is(err, ErrConflict):
			conflict++
		default:
			t.Fatalf("StartTimer() error = %v", err)
		}
	}
	if ok != 1 || conflict != 1 {
		t.Errorf("got %d successes and %d conflicts, want exactly 1 of each", ok, conflict)
	}

	active, err := s.ActiveTimer(ctx, u.ID)
	if err != nil {
		t.Fatalf("ActiveTimer() error = %v", err)
	}
	if active == nil {
		t.Fatal("no running entry after the race")
	}
	if _, err := s.StopTimer(ctx, u.ID, active.ID); err != nil {
		t.Fatalf("StopTimer() error = %v", err)
	}
}

func TestRefreshTokenExpiry(t *testing.T) {
	s := openTestStore(t)
	u, _ := newTimerFixture(t, s)
	ctx := context.Background()

	tok, err := newRefreshToken()
	if err != nil {
		t.Fatalf("newRefreshToken() error = %v", err)
	}
	if err := s.SetRefreshToken(ctx, u.ID, tok, time.Now().Add(time.Hour)); err != nil {
		t.Fatalf("SetRefreshToken() error = %v", err)
	}
	got, err := s.UserByRefreshToken(ctx, tok)
	if err != nil {
		t.Fatalf("UserByRefreshToken() error = %v", err)
	}
	if got.ID != u.ID {
		t.Errorf("resolved user %d, want %d", got.ID, u.ID)
	}

	// Expired token no longer resolves.
	if err := s.SetRefreshToken(ctx, u.ID, tok, time.Now().Add(-time.Minute)); err != nil {
		t.Fatalf("SetRefreshToken() error = %v", err)
	}
	if _, err := s.UserByRefreshToken(ctx, tok); !errors.Is(err, ErrNotFound) {
		t.Errorf("UserByRefreshToken(expired) error = %v, want ErrNotFound", err)
	}
}
