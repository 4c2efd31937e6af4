package health

import (
	"testing"
	"time"

	"taskmate/internal/domain"
)

var now = time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

func ptr(t time.Time) *time.Time { return &t }

func TestCompute_EmptyProjectIsHealthy(t *testing.T) {
	got := Compute(nil, now)
	if got.Score != 100 || got.Status != domain.HealthGreen {
		t.Fatalf("empty set: got score=%d status=%s, want 100/green", got.Score, got.Status)
	}
	if got.Metrics.OnTimeRate != 1 {
		t.Errorf("empty set on-time rate = %v, want 1", got.Metrics.OnTimeRate)
	}
}

func TestCompute_MixedBacklog(t *testing.T) {
	// 10 tasks: 3 overdue-open, 4 in todo/doing total, rest done without due
	// dates. Penalties: round(0.3*40)=12, round(0.4*30)=12, bonus +10 => 86.
	yesterday := ptr(now.Add(-24 * time.Hour))
	tasks := []domain.Task{
		{Status: domain.TaskTodo, DueDate: yesterday},
		{Status: domain.TaskTodo, DueDate: yesterday},
		{Status: domain.TaskDoing, DueDate: yesterday},
		{Status: domain.TaskTodo},
		{Status: domain.TaskDone},
		{Status: domain.TaskDone},
		{Status: domain.TaskDone},
		{Status: domain.TaskDone},
		{Status: domain.TaskDone},
		{Status: domain.TaskDone},
	}
	got := Compute(tasks, now)
	if got.Score != 86 {
		t.Fatalf("score = %d, want 86", got.Score)
	}
	if got.Status != domain.HealthGreen {
		t.Errorf("status = %s, want green", got.Status)
	}
	if got.Metrics.OverdueOpen != 3 {
		t.Errorf("overdueOpen = %d, want 3", got.Metrics.OverdueOpen)
	}
}

func TestCompute_AllOnTimeGetsFullBonus(t *testing.T) {
	due := ptr(now.Add(48 * time.Hour))
	tasks := []domain.Task{
		{Status: domain.TaskDone, DueDate: due, CompletedAt: ptr(now.Add(-time.Hour))},
		{Status: domain.TaskDone, DueDate: due, CompletedAt: ptr(*due)}, // exactly on due
	}
	got := Compute(tasks, now)
	if got.Metrics.OnTimeRate != 1 {
		t.Fatalf("on-time rate = %v, want 1", got.Metrics.OnTimeRate)
	}
	if got.Score != 100 {
		t.Errorf("score = %d, want 100 (clamped)", got.Score)
	}
}

func TestCompute_LateCompletionsLoseBonus(t *testing.T) {
	due := ptr(now.Add(-48 * time.Hour))
	tasks := []domain.Task{
		{Status: domain.TaskDone, DueDate: due, CompletedAt: ptr(now.Add(-time.Hour))},
	}
	got := Compute(tasks, now)
	// No open tasks, no overdue-open; only the bonus term varies: 100 - 0 - 0 + 0.
	if got.Score != 100 {
		t.Fatalf("score = %d, want 100", got.Score)
	}
	if got.Metrics.OnTimeRate != 0 {
		t.Errorf("on-time rate = %v, want 0", got.Metrics.OnTimeRate)
	}
}

func TestCompute_EverythingOverdueHitsFloor(t *testing.T) {
	yesterday := ptr(now.Add(-24 * time.Hour))
	var tasks []domain.Task
	for i := 0; i < 5; i++ {
		tasks = append(tasks, domain.Task{Status: domain.TaskTodo, DueDate: yesterday})
	}
	got := Compute(tasks, now)
	// 100 - 40 - 30 + 10 = 40 -> yellow boundary.
	if got.Score != 40 {
		t.Fatalf("score = %d, want 40", got.Score)
	}
	if got.Status != domain.HealthYellow {
		t.Errorf("status = %s, want yellow", got.Status)
	}
}

func TestCompute_ScoreAlwaysInRange(t *testing.T) {
	yesterday := ptr(now.Add(-24 * time.Hour))
	cases := map[string][]domain.Task{
		"nil":     nil,
		"one":     {{Status: domain.TaskTodo}},
		"overdue": {{Status: domain.TaskDoing, DueDate: yesterday}},
		"late done": {
			{Status: domain.TaskDone, DueDate: yesterday, CompletedAt: ptr(now)},
			{Status: domain.TaskTodo, DueDate: yesterday},
		},
	}
	for name, tasks := range cases {
		t.Run(name, func(t *testing.T) {
			got := Compute(tasks, now)
			if got.Score < 0 || got.Score > 100 {
				t.Fatalf("score %d out of [0,100]", got.Score)
			}
			if got.Status != StatusFor(got.Score) {
				t.Errorf("status %s inconsistent with score %d", got.Status, got.Score)
			}
		})
	}
}

func TestStatusFor_Partitions(t *testing.T) {
	for score := 0; score <= 100; score++ {
		s := StatusFor(score)
		switch {
		case score >= 70 && s != domain.HealthGreen:
			t.Fatalf("score %d: got %s, want green", score, s)
		case score >= 40 && score < 70 && s != domain.HealthYellow:
			t.Fatalf("score %d: got %s, want yellow", score, s)
		case score < 40 && s != domain.HealthRed:
			t.Fatalf("score %d: got %s, want red", score, s)
		}
	}
}

func TestRoundHalfUp(t *testing.T) {
	cases := []struct {
		in   float64
		want int
	}{
		{0, 0}, {0.4, 0}, {0.5, 1}, {0.6, 1}, {1.5, 2}, {2.49, 2},
	}
	for _, c := range cases {
		if got := roundHalfUp(c.in); got != c.want {
			t.Errorf("roundHalfUp(%v) = %d, want %d", c.in, got, c.want)
		}
	}
}
