// Package health computes the derived 0-100 project health score. It is the
// single owner of the scoring formula, consumed by both the background
// scheduler and the dashboard recompute endpoint.
package health

import (
	"math"
	"time"

	"taskmate/internal/domain"
)

// Metrics are the intermediate counts behind a score, returned to dashboard
// callers alongside the result.
type Metrics struct {
	Total       int     `json:"total"`
	Todo        int     `json:"todo"`
	Doing       int     `json:"doing"`
	Done        int     `json:"done"`
	OverdueOpen int     `json:"overdueOpen"`
	OnTimeRate  float64 `json:"onTimeRate"`
}

// Result is a computed health snapshot.
type Result struct {
	Score   int     `json:"score"`
	Status  string  `json:"status"`
	Metrics Metrics `json:"metrics"`
}

// Compute scores a project's task set at the given instant.
//
// Score starts at 100, loses up to 40 points for the overdue-open share and
// up to 30 for the open-backlog share, and gains up to 10 for the on-time
// completion rate. An empty task set scores 100/green: nothing is overdue and
// the on-time rate defaults to 1.
func Compute(tasks []domain.Task, now time.Time) Result {
	var m Metrics
	m.Total = len(tasks)

	var doneWithDue, onTime int
	for _, t := range tasks {
		switch t.Status {
		case domain.TaskTodo:
			m.Todo++
		case domain.TaskDoing:
			m.Doing++
		case domain.TaskDone:
			m.Done++
		}
		if t.OverdueOpen(now) {
			m.OverdueOpen++
		}
		if t.Status == domain.TaskDone && t.DueDate != nil {
			doneWithDue++
			if t.OnTimeDone() {
				onTime++
			}
		}
	}

	m.OnTimeRate = 1
	if doneWithDue > 0 {
		m.OnTimeRate = float64(onTime) / float64(doneWithDue)
	}

	denom := float64(max(m.Total, 1))
	score := 100
	score -= min(40, roundHalfUp(float64(m.OverdueOpen)/denom*40))
	score -= min(30, roundHalfUp(float64(m.Todo+m.Doing)/denom*30))
	score += roundHalfUp(m.OnTimeRate * 10)
	score = min(100, max(0, score))

	return Result{Score: score, Status: StatusFor(score), Metrics: m}
}

// StatusFor maps a score to its zone: green >= 70, yellow >= 40, else red.
func StatusFor(score int) string {
	switch {
	case score >= 70:
		return domain.HealthGreen
	case score >= 40:
		return domain.HealthYellow
	default:
		return domain.HealthRed
	}
}

// roundHalfUp rounds a nonnegative value half-up (0.5 -> 1).
func roundHalfUp(x float64) int {
	return int(math.Floor(x + 0.5))
}
