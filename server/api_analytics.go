package main

import (
	"fmt"
	"net/http"
)

// hoursString renders a second count as decimal hours, e.g. 5400 -> "1.50".
func hoursString(seconds int64) string {
	return fmt.Sprintf("%.2f", float64(seconds)/3600)
}

// rateString renders part/total as a percentage, "0.00" when total is zero.
func rateString(part, total int64) string {
	if total == 0 {
		return "0.00"
	}
	return fmt.Sprintf("%.2f", float64(part)/float64(total)*100)
}

// avgSecondsPerTask spreads tracked time over every visible task, not just
// the completed ones. Zero tasks yields zero.
func avgSecondsPerTask(totalSeconds, totalTasks int64) int64 {
	if totalTasks == 0 {
		return 0
	}
	return totalSeconds / totalTasks
}

// GET /api/analytics/overview
func (a *api) handleOverview(w http.ResponseWriter, r *http.Request) {
	p := principalFrom(r)
	q := r.URL.Query()
	var f OverviewFilter
	if v := q.Get("projectId"); v != "" {
		id, err := parseID(v)
		if err != nil {
			writeError(w, 400, "bad project filter")
			return
		}
		f.ProjectID = &id
	}
	if v := q.Get("startDate"); v != "" {
		t, err := parseDate(v)
		if err != nil {
			writeError(w, 400, "bad start date")
			return
		}
		f.From = &t
	}
	if v := q.Get("endDate"); v != "" {
		t, err := parseDate(v)
		if err != nil {
			writeError(w, 400, "bad end date")
			return
		}
		f.To = &t
	}
	stats, err := a.store.Overview(r.Context(), p.ID, f)
	if err != nil {
		a.storeError(w, err, "overview")
		return
	}
	avgSeconds := avgSecondsPerTask(stats.TotalSeconds, stats.Tasks.Total)
	writeJSON(w, 200, map[string]any{
		"ok": true,
		"overview": map[string]any{
			"tasks": map[string]any{
				"total":           stats.Tasks.Total,
				"completed":       stats.Tasks.Completed,
				"in_progress":     stats.Tasks.InProgress,
				"todo":            stats.Tasks.Todo,
				"completion_rate": rateString(stats.Tasks.Completed, stats.Tasks.Total),
			},
			"time": map[string]any{
				"total_seconds":      stats.TotalSeconds,
				"total_hours":        hoursString(stats.TotalSeconds),
				"avg_seconds_task":   avgSeconds,
				"avg_hours_per_task": hoursString(avgSeconds),
			},
			"projects":          stats.Projects,
			"tasks_by_day":      byDayOrEmpty(stats.TasksByDay),
			"tasks_by_priority": byPriorityOrEmpty(stats.TasksByPriority),
		},
	})
}

// GET /api/analytics/project/{id}
func (a *api) handleProjectAnalytics(w http.ResponseWriter, r *http.Request) {
	p := principalFrom(r)
	id, err := parseID(r.PathValue("id"))
	if err != nil {
		writeError(w, 400, "bad id")
		return
	}
	ok, err := a.store.CanAccessProject(r.Context(), id, p.ID)
	if err != nil {
		a.storeError(w, err, "project")
		return
	}
	if !ok {
		writeError(w, 403, "not authorized to access this project")
		return
	}
	stats, err := a.store.ProjectOverview(r.Context(), id)
	if err != nil {
		a.storeError(w, err, "project")
		return
	}
	byUser := make([]map[string]any, 0, len(stats.TimeByUser))
	for _, ut := range stats.TimeByUser {
		byUser = append(byUser, map[string]any{
			"name":    ut.Name,
			"seconds": ut.Seconds,
			"hours":   hoursString(ut.Seconds),
		})
	}
	writeJSON(w, 200, map[string]any{
		"ok": true,
		"analytics": map[string]any{
			"project":         stats.Name,
			"total_tasks":     stats.TotalTasks,
			"completed_tasks": stats.Completed,
			"completion_rate": rateString(stats.Completed, stats.TotalTasks),
			"total_seconds":   stats.TotalSeconds,
			"total_hours":     hoursString(stats.TotalSeconds),
			"time_by_user":    byUser,
		},
	})
}

func byDayOrEmpty(in []DayCount) []DayCount {
	if in == nil {
		return []DayCount{}
	}
	return in
}

func byPriorityOrEmpty(in []PriorityCount) []PriorityCount {
	if in == nil {
		return []PriorityCount{}
	}
	return in
}
