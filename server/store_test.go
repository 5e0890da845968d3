package main

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
)

func TestDurationSeconds(t *testing.T) {
	base := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	cases := []struct {
		name string
		end  time.Time
		want int64
	}{
		{"exact minute", base.Add(time.Minute), 60},
		{"subsecond truncated", base.Add(90*time.Second + 999*time.Millisecond), 90},
		{"under one second", base.Add(400 * time.Millisecond), 0},
		{"zero", base, 0},
		{"clock skew clamps to zero", base.Add(-time.Hour), 0},
		{"long run", base.Add(27*time.Hour + 3*time.Second), 27*3600 + 3},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := durationSeconds(base, tc.end); got != tc.want {
				t.Errorf("durationSeconds() = %d, want %d", got, tc.want)
			}
		})
	}
}

func TestIsUniqueViolation(t *testing.T) {
	unique := &pgconn.PgError{Code: "23505", ConstraintName: "time_entries_one_running_idx"}
	cases := []struct {
		name string
		err  error
		want bool
	}{
		{"unique violation", unique, true},
		{"wrapped unique violation", fmt.Errorf("insert time entry: %w", unique), true},
		{"other pg error", &pgconn.PgError{Code: "23503"}, false},
		{"plain error", errors.New("connection reset"), false},
		{"nil", nil, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := isUniqueViolation(tc.err); got != tc.want {
				t.Errorf("isUniqueViolation() = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestErrorTaxonomyIsDistinct(t *testing.T) {
	errs := []error{ErrNotFound, ErrForbidden, ErrConflict, ErrInvalidState}
	for i, a := range errs {
		for j, b := range errs {
			if i != j && errors.Is(a, b) {
				t.Errorf("sentinel %v matches %v", a, b)
			}
		}
	}
}
