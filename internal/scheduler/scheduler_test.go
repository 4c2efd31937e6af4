package scheduler

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"taskmate/internal/config"
	"taskmate/internal/domain"
	"taskmate/internal/notify"
)

var testNow = time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

func ptr(t time.Time) *time.Time { return &t }

type fakeTasks struct {
	dueOpen    []domain.Task
	dueBetween []domain.Task
	stale      []domain.Task
	byProject  map[int64][]domain.Task

	dueOpenErr   error
	byProjectErr error
}

func (f *fakeTasks) DueOpen(context.Context, time.Time) ([]domain.Task, error) {
	return f.dueOpen, f.dueOpenErr
}
func (f *fakeTasks) DueBetween(context.Context, time.Time, time.Time) ([]domain.Task, error) {
	return f.dueBetween, nil
}
func (f *fakeTasks) Stale(context.Context, time.Time) ([]domain.Task, error) {
	return f.stale, nil
}
func (f *fakeTasks) ByProject(_ context.Context, id int64) ([]domain.Task, error) {
	return f.byProject[id], f.byProjectErr
}

type fakeProjects struct {
	projects map[int64]domain.Project

	healthWrites map[int64]domain.Health
	healthErr    error
}

func (f *fakeProjects) GetByID(_ context.Context, id int64) (domain.Project, error) {
	p, ok := f.projects[id]
	if !ok {
		return domain.Project{}, errors.New("no such project")
	}
	return p, nil
}

func (f *fakeProjects) ActiveOrOnHold(context.Context) ([]domain.Project, error) {
	var out []domain.Project
	for _, p := range f.projects {
		if p.Status == domain.ProjectActive || p.Status == domain.ProjectOnHold {
			out = append(out, p)
		}
	}
	return out, nil
}

func (f *fakeProjects) UpdateHealth(_ context.Context, id int64, h domain.Health) error {
	if f.healthErr != nil {
		return f.healthErr
	}
	if f.healthWrites == nil {
		f.healthWrites = map[int64]domain.Health{}
	}
	f.healthWrites[id] = h
	return nil
}

type recNotifier struct {
	payloads []notify.Payload
	created  bool
}

func (r *recNotifier) NotifyOnce(_ context.Context, p notify.Payload) (bool, error) {
	r.payloads = append(r.payloads, p)
	return r.created, nil
}

func newTestScheduler(tasks *fakeTasks, projects *fakeProjects, n Notifier) *Scheduler {
	s := New(tasks, projects, n, config.SchedulerConfig{})
	s.now = func() time.Time { return testNow }
	return s
}

func byUser(payloads []notify.Payload) map[int64]notify.Payload {
	m := make(map[int64]notify.Payload, len(payloads))
	for _, p := range payloads {
		m[p.UserID] = p
	}
	return m
}

func TestDueReminders_MembersFallbackAndManagerDedup(t *testing.T) {
	tasks := &fakeTasks{dueOpen: []domain.Task{{
		ID: 7, ProjectID: 1, Title: "Ship it", Status: domain.TaskTodo,
		DueDate: ptr(testNow.Add(-24 * time.Hour)),
	}}}
	projects := &fakeProjects{projects: map[int64]domain.Project{
		1: {ID: 1, ManagerID: 1, Members: []int64{1, 2}},
	}}
	n := &recNotifier{created: true}

	if err := newTestScheduler(tasks, projects, n).jobDueReminders(context.Background()); err != nil {
		t.Fatal(err)
	}

	// No assignees: members are the base set, the manager folds in as a set.
	if len(n.payloads) != 2 {
		t.Fatalf("payloads = %d, want 2 (manager deduplicated)", len(n.payloads))
	}
	got := byUser(n.payloads)
	for _, uid := range []int64{1, 2} {
		p, ok := got[uid]
		if !ok {
			t.Fatalf("missing payload for user %d", uid)
		}
		if p.Type != domain.NotifDueReminder {
			t.Errorf("type = %s, want due_reminder", p.Type)
		}
		if !strings.Contains(p.Body, "(overdue)") {
			t.Errorf("body %q should say (overdue) for a past-day due date", p.Body)
		}
		if p.Data[domain.DataTaskID] != "7" || p.Data[domain.DataProjectID] != "1" {
			t.Errorf("correlation keys wrong: %v", p.Data)
		}
	}
}

func TestDueReminders_AssigneesWinOverMembers(t *testing.T) {
	tasks := &fakeTasks{dueOpen: []domain.Task{{
		ID: 7, ProjectID: 1, Title: "Ship it", Status: domain.TaskTodo,
		Assignees: []int64{5},
		DueDate:   ptr(testNow.Add(-2 * time.Hour)), // earlier today
	}}}
	projects := &fakeProjects{projects: map[int64]domain.Project{
		1: {ID: 1, ManagerID: 9, Members: []int64{1, 2, 3}},
	}}
	n := &recNotifier{created: true}

	if err := newTestScheduler(tasks, projects, n).jobDueReminders(context.Background()); err != nil {
		t.Fatal(err)
	}

	got := byUser(n.payloads)
	if len(got) != 2 || got[5].UserID != 5 || got[9].UserID != 9 {
		t.Fatalf("recipients = %v, want assignee 5 + manager 9 only", got)
	}
	if !strings.Contains(got[5].Body, "today") {
		t.Errorf("body %q should say today for a same-day due date", got[5].Body)
	}
}

func TestInactivity_AssigneesPlusManager(t *testing.T) {
	tasks := &fakeTasks{stale: []domain.Task{{
		ID: 3, ProjectID: 1, Title: "Stuck", Status: domain.TaskDoing,
		Assignees: []int64{4},
	}}}
	projects := &fakeProjects{projects: map[int64]domain.Project{
		1: {ID: 1, ManagerID: 9, Members: []int64{1, 2}},
	}}
	n := &recNotifier{created: true}

	if err := newTestScheduler(tasks, projects, n).jobInactivity(context.Background()); err != nil {
		t.Fatal(err)
	}

	got := byUser(n.payloads)
	// Members never receive inactivity alerts, only assignees and the manager.
	if len(got) != 2 {
		t.Fatalf("recipients = %v, want assignee 4 + manager 9", got)
	}
	if got[4].Type != domain.NotifInactivity {
		t.Errorf("type = %s, want inactivity", got[4].Type)
	}
}

func TestHealthAlerts_PersistsEvenWithoutAlert(t *testing.T) {
	projects := &fakeProjects{projects: map[int64]domain.Project{
		1: {ID: 1, Title: "P", Status: domain.ProjectActive, ManagerID: 9,
			Health: domain.Health{Score: 100, Status: domain.HealthGreen, UpdatedAt: ptr(testNow.Add(-time.Hour))}},
	}}
	tasks := &fakeTasks{byProject: map[int64][]domain.Task{1: nil}} // empty => 100/green
	n := &recNotifier{created: true}

	if err := newTestScheduler(tasks, projects, n).jobHealthAlerts(context.Background()); err != nil {
		t.Fatal(err)
	}

	h, ok := projects.healthWrites[1]
	if !ok {
		t.Fatal("health refresh must be persisted on every cycle")
	}
	if h.Score != 100 || h.Status != domain.HealthGreen {
		t.Errorf("persisted health = %+v", h)
	}
	if len(n.payloads) != 0 {
		t.Errorf("no alert expected, got %v", n.payloads)
	}
}

func TestHealthAlerts_DropTriggersWithoutRed(t *testing.T) {
	// 5 tasks, 2 overdue-open, 4 open, no done-with-due:
	// 100 - round(0.4*40) - round(0.8*30) + 10 = 70. Stored 95 => drop 25.
	yesterday := ptr(testNow.Add(-24 * time.Hour))
	projects := &fakeProjects{projects: map[int64]domain.Project{
		1: {ID: 1, Title: "P", Status: domain.ProjectActive, ManagerID: 9,
			Health: domain.Health{Score: 95, Status: domain.HealthGreen, UpdatedAt: ptr(testNow.Add(-time.Hour))}},
	}}
	tasks := &fakeTasks{byProject: map[int64][]domain.Task{1: {
		{Status: domain.TaskTodo, DueDate: yesterday},
		{Status: domain.TaskTodo, DueDate: yesterday},
		{Status: domain.TaskDoing},
		{Status: domain.TaskDoing},
		{Status: domain.TaskDone},
	}}}
	n := &recNotifier{created: true}

	if err := newTestScheduler(tasks, projects, n).jobHealthAlerts(context.Background()); err != nil {
		t.Fatal(err)
	}

	if len(n.payloads) != 1 {
		t.Fatalf("alerts = %d, want 1", len(n.payloads))
	}
	p := n.payloads[0]
	if p.UserID != 9 || p.Type != domain.NotifHealthAlert {
		t.Errorf("alert = %+v", p)
	}
	if !strings.Contains(p.Body, "Trigger: drop ≥15.") {
		t.Errorf("body %q should name the drop trigger", p.Body)
	}
}

func TestHealthAlerts_RedZoneTriggersOnSmallDrop(t *testing.T) {
	// 8 overdue-open todos + 1 late completion (kills the bonus):
	// 100 - round(8/9*40)=36 - round(8/9*30)=27 + 0 = 37 -> red.
	// Stored 32 => drop is -5, so only the red-zone clause can fire.
	yesterday := ptr(testNow.Add(-24 * time.Hour))
	projects := &fakeProjects{projects: map[int64]domain.Project{
		1: {ID: 1, Title: "P", Status: domain.ProjectOnHold, ManagerID: 9,
			Health: domain.Health{Score: 32, Status: domain.HealthRed, UpdatedAt: ptr(testNow.Add(-time.Hour))}},
	}}
	overdueTodos := make([]domain.Task, 8)
	for i := range overdueTodos {
		overdueTodos[i] = domain.Task{Status: domain.TaskTodo, DueDate: yesterday}
	}
	tasks := &fakeTasks{byProject: map[int64][]domain.Task{1: append(overdueTodos,
		domain.Task{Status: domain.TaskDone, DueDate: yesterday, CompletedAt: ptr(testNow)},
	)}}
	n := &recNotifier{created: true}

	if err := newTestScheduler(tasks, projects, n).jobHealthAlerts(context.Background()); err != nil {
		t.Fatal(err)
	}

	if len(n.payloads) != 1 {
		t.Fatalf("alerts = %d, want 1 via red zone", len(n.payloads))
	}
	if !strings.Contains(n.payloads[0].Body, "red zone") {
		t.Errorf("body %q should name the red-zone trigger", n.payloads[0].Body)
	}
}

func TestHealthAlerts_PersistFailureSkipsProject(t *testing.T) {
	projects := &fakeProjects{
		projects: map[int64]domain.Project{
			1: {ID: 1, Status: domain.ProjectActive, ManagerID: 9,
				Health: domain.Health{Score: 100, UpdatedAt: ptr(testNow)}},
		},
		healthErr: errors.New("write refused"),
	}
	yesterday := ptr(testNow.Add(-24 * time.Hour))
	tasks := &fakeTasks{byProject: map[int64][]domain.Task{1: {
		{Status: domain.TaskTodo, DueDate: yesterday},
	}}}
	n := &recNotifier{created: true}

	if err := newTestScheduler(tasks, projects, n).jobHealthAlerts(context.Background()); err != nil {
		t.Fatal(err)
	}
	if len(n.payloads) != 0 {
		t.Errorf("failed persist must not alert, got %v", n.payloads)
	}
}

func TestHealthAlerts_UnsetPrevDefaultsTo100(t *testing.T) {
	yesterday := ptr(testNow.Add(-24 * time.Hour))
	projects := &fakeProjects{projects: map[int64]domain.Project{
		1: {ID: 1, Status: domain.ProjectActive, ManagerID: 9}, // no stored health
	}}
	tasks := &fakeTasks{byProject: map[int64][]domain.Task{1: {
		{Status: domain.TaskTodo, DueDate: yesterday},
		{Status: domain.TaskTodo, DueDate: yesterday},
		{Status: domain.TaskDoing},
		{Status: domain.TaskDoing},
		{Status: domain.TaskDone},
	}}}
	n := &recNotifier{created: true}

	if err := newTestScheduler(tasks, projects, n).jobHealthAlerts(context.Background()); err != nil {
		t.Fatal(err)
	}
	if len(n.payloads) != 1 {
		t.Fatalf("alerts = %d, want 1 (drop measured from default 100)", len(n.payloads))
	}
	if n.payloads[0].Data["prev"] != "100" {
		t.Errorf("prev = %s, want 100", n.payloads[0].Data["prev"])
	}
}

func TestRunAll_JobFailureIsIsolated(t *testing.T) {
	projects := &fakeProjects{projects: map[int64]domain.Project{
		1: {ID: 1, Status: domain.ProjectActive, ManagerID: 9,
			Health: domain.Health{Score: 100, UpdatedAt: ptr(testNow)}},
	}}
	tasks := &fakeTasks{
		dueOpenErr: errors.New("boom"),
		byProject:  map[int64][]domain.Task{1: nil},
	}
	n := &recNotifier{created: true}

	s := newTestScheduler(tasks, projects, n)
	s.RunAll(context.Background())

	// Due job failed, but the health job still persisted its refresh.
	if _, ok := projects.healthWrites[1]; !ok {
		t.Fatal("health job must run despite the due job failing")
	}
}

func TestRunAll_SkipsWhileCycleInFlight(t *testing.T) {
	tasks := &fakeTasks{dueOpen: []domain.Task{{ID: 1, ProjectID: 1, DueDate: ptr(testNow)}}}
	projects := &fakeProjects{projects: map[int64]domain.Project{1: {ID: 1, ManagerID: 9}}}
	n := &recNotifier{created: true}

	s := newTestScheduler(tasks, projects, n)
	s.inFlight.Store(true)
	s.RunAll(context.Background())
	if len(n.payloads) != 0 {
		t.Fatalf("overlapping cycle must be skipped, got %d payloads", len(n.payloads))
	}
}

func TestTriggerDue_CountsOnlyCreated(t *testing.T) {
	tasks := &fakeTasks{
		dueOpen: []domain.Task{
			{ID: 1, ProjectID: 1, Title: "a", Assignees: []int64{5, 6}},
			{ID: 2, ProjectID: 1, Title: "b", CreatedBy: 7}, // falls back to creator
		},
		dueBetween: []domain.Task{
			{ID: 3, ProjectID: 1, Title: "c", Assignees: []int64{5}},
		},
	}
	projects := &fakeProjects{projects: map[int64]domain.Project{1: {ID: 1}}}
	n := &recNotifier{created: true}

	s := newTestScheduler(tasks, projects, n)
	count, err := s.TriggerDue(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if count != 4 {
		t.Fatalf("count = %d, want 4", count)
	}

	n2 := &recNotifier{created: false} // everything already notified today
	s2 := newTestScheduler(tasks, projects, n2)
	count, err = s2.TriggerDue(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if count != 0 {
		t.Fatalf("suppressed notifications must not count, got %d", count)
	}
	if len(n2.payloads) != 4 {
		t.Errorf("attempts = %d, want 4", len(n2.payloads))
	}
}
