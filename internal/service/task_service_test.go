package service

import (
	"context"
	"errors"
	"sort"
	"testing"
	"time"

	dom "taskmate/internal/domain"
	"taskmate/internal/repo"

	"github.com/jackc/pgx/v5"
)

type memTasks struct {
	byID map[int64]dom.Task
	next int64
}

func newMemTasks() *memTasks { return &memTasks{byID: map[int64]dom.Task{}} }

func (m *memTasks) Create(_ context.Context, t dom.Task) (dom.Task, error) {
	m.next++
	t.ID = m.next
	t.CreatedAt = time.Now()
	t.UpdatedAt = t.CreatedAt
	m.byID[t.ID] = t
	return t, nil
}

func (m *memTasks) GetByID(_ context.Context, id int64) (dom.Task, error) {
	t, ok := m.byID[id]
	if !ok {
		return dom.Task{}, pgx.ErrNoRows
	}
	return t, nil
}

func (m *memTasks) GetByIDs(_ context.Context, ids []int64) ([]dom.Task, error) {
	var out []dom.Task
	for _, id := range ids {
		if t, ok := m.byID[id]; ok {
			out = append(out, t)
		}
	}
	return out, nil
}

func (m *memTasks) ListByProject(_ context.Context, projectID int64, _ repo.TaskFilter) ([]dom.Task, int, error) {
	var out []dom.Task
	for _, t := range m.byID {
		if t.ProjectID == projectID {
			out = append(out, t)
		}
	}
	return out, len(out), nil
}

func (m *memTasks) Board(_ context.Context, projectID int64) ([]dom.Task, error) {
	var out []dom.Task
	for _, t := range m.byID {
		if t.ProjectID == projectID {
			out = append(out, t)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Status != out[j].Status {
			return out[i].Status < out[j].Status
		}
		return out[i].Order < out[j].Order
	})
	return out, nil
}

func (m *memTasks) Update(_ context.Context, id int64, patch dom.Task) (dom.Task, error) {
	t, ok := m.byID[id]
	if !ok {
		return dom.Task{}, pgx.ErrNoRows
	}
	patch.ID = t.ID
	patch.ProjectID = t.ProjectID
	patch.CreatedAt = t.CreatedAt
	patch.UpdatedAt = time.Now()
	m.byID[id] = patch
	return patch, nil
}

func (m *memTasks) Delete(_ context.Context, id int64) error {
	delete(m.byID, id)
	return nil
}

func (m *memTasks) MaxOrder(_ context.Context, projectID int64, status string) (int, error) {
	max := -1
	for _, t := range m.byID {
		if t.ProjectID == projectID && t.Status == status && t.Order > max {
			max = t.Order
		}
	}
	return max, nil
}

func (m *memTasks) MakeRoom(_ context.Context, projectID int64, status string, from int) error {
	for id, t := range m.byID {
		if t.ProjectID == projectID && t.Status == status && t.Order >= from {
			t.Order++
			m.byID[id] = t
		}
	}
	return nil
}

func (m *memTasks) CompactAfter(_ context.Context, projectID int64, status string, after int) error {
	for id, t := range m.byID {
		if t.ProjectID == projectID && t.Status == status && t.Order > after {
			t.Order--
			m.byID[id] = t
		}
	}
	return nil
}

func (m *memTasks) ShiftDown(_ context.Context, projectID int64, status string, lo, hi int) error {
	for id, t := range m.byID {
		if t.ProjectID == projectID && t.Status == status && t.Order > lo && t.Order <= hi {
			t.Order--
			m.byID[id] = t
		}
	}
	return nil
}

func (m *memTasks) ShiftUp(_ context.Context, projectID int64, status string, lo, hi int) error {
	for id, t := range m.byID {
		if t.ProjectID == projectID && t.Status == status && t.Order >= lo && t.Order < hi {
			t.Order++
			m.byID[id] = t
		}
	}
	return nil
}

func (m *memTasks) SetPosition(_ context.Context, id int64, status string, order int) error {
	t, ok := m.byID[id]
	if !ok {
		return pgx.ErrNoRows
	}
	if status == dom.TaskDone {
		if t.CompletedAt == nil {
			now := time.Now()
			t.CompletedAt = &now
		}
	} else {
		t.CompletedAt = nil
	}
	t.Status = status
	t.Order = order
	t.UpdatedAt = time.Now()
	m.byID[id] = t
	return nil
}

func (m *memTasks) DueOpen(_ context.Context, now time.Time) ([]dom.Task, error) {
	var out []dom.Task
	for _, t := range m.byID {
		if t.OverdueOpen(now) {
			out = append(out, t)
		}
	}
	return out, nil
}

func (m *memTasks) DueBetween(context.Context, time.Time, time.Time) ([]dom.Task, error) {
	return nil, nil
}
func (m *memTasks) Stale(context.Context, time.Time) ([]dom.Task, error) { return nil, nil }
func (m *memTasks) ByProject(ctx context.Context, projectID int64) ([]dom.Task, error) {
	return m.Board(ctx, projectID)
}

type memProjects struct {
	byID map[int64]dom.Project
}

func (m *memProjects) GetByID(_ context.Context, id int64) (dom.Project, error) {
	p, ok := m.byID[id]
	if !ok {
		return dom.Project{}, pgx.ErrNoRows
	}
	return p, nil
}
func (m *memProjects) Create(_ context.Context, p dom.Project) (dom.Project, error) { return p, nil }
func (m *memProjects) List(context.Context, repo.ProjectFilter) ([]dom.Project, int, error) {
	return nil, 0, nil
}
func (m *memProjects) Update(_ context.Context, _ int64, p dom.Project) (dom.Project, error) {
	return p, nil
}
func (m *memProjects) Delete(context.Context, int64) error                    { return nil }
func (m *memProjects) ActiveOrOnHold(context.Context) ([]dom.Project, error)  { return nil, nil }
func (m *memProjects) UpdateHealth(context.Context, int64, dom.Health) error  { return nil }

type memActivities struct {
	rows []dom.Activity
}

func (m *memActivities) Create(_ context.Context, a dom.Activity) error {
	m.rows = append(m.rows, a)
	return nil
}
func (m *memActivities) ListByTask(context.Context, int64, int) ([]dom.Activity, error) {
	return m.rows, nil
}

type memComments struct {
	rows []dom.Comment
}

func (m *memComments) Create(_ context.Context, c dom.Comment) (dom.Comment, error) {
	c.ID = int64(len(m.rows) + 1)
	m.rows = append(m.rows, c)
	return c, nil
}
func (m *memComments) GetByID(_ context.Context, id int64) (dom.Comment, error) {
	for _, c := range m.rows {
		if c.ID == id {
			return c, nil
		}
	}
	return dom.Comment{}, pgx.ErrNoRows
}
func (m *memComments) ListByTask(context.Context, int64, int) ([]dom.Comment, error) {
	return m.rows, nil
}
func (m *memComments) Delete(context.Context, int64) error { return nil }

type memEntries struct {
	rows   []dom.TimeEntry
	totals map[int64]float64
}

func (m *memEntries) Create(_ context.Context, e dom.TimeEntry) (dom.TimeEntry, error) {
	e.ID = int64(len(m.rows) + 1)
	m.rows = append(m.rows, e)
	return e, nil
}
func (m *memEntries) GetByID(_ context.Context, id int64) (dom.TimeEntry, error) {
	for _, e := range m.rows {
		if e.ID == id {
			return e, nil
		}
	}
	return dom.TimeEntry{}, pgx.ErrNoRows
}
func (m *memEntries) ListByTask(context.Context, int64) ([]dom.TimeEntry, error) {
	return m.rows, nil
}
func (m *memEntries) Delete(_ context.Context, id int64) error {
	for i, e := range m.rows {
		if e.ID == id {
			m.rows = append(m.rows[:i], m.rows[i+1:]...)
			break
		}
	}
	return nil
}
func (m *memEntries) AddHours(_ context.Context, taskID int64, delta float64) (float64, error) {
	if m.totals == nil {
		m.totals = map[int64]float64{}
	}
	total := m.totals[taskID] + delta
	if total < 0 {
		total = 0
	}
	m.totals[taskID] = total
	return total, nil
}

var manager = Actor{ID: 10, Role: dom.RoleManager}

func newTestService() (*TaskService, *memTasks, *memActivities) {
	tasks := newMemTasks()
	projects := &memProjects{byID: map[int64]dom.Project{
		1: {ID: 1, Title: "Site", Status: dom.ProjectActive, ManagerID: 10, Members: []int64{10, 20}},
		2: {ID: 2, Title: "Other", Status: dom.ProjectActive, ManagerID: 11, Members: []int64{11}},
	}}
	acts := &memActivities{}
	svc := NewTaskService(tasks, projects, acts, &memComments{}, &memEntries{}, nil)
	return svc, tasks, acts
}

func mustCreate(t *testing.T, svc *TaskService, in CreateTaskInput) dom.Task {
	t.Helper()
	task, err := svc.Create(context.Background(), manager, in)
	if err != nil {
		t.Fatalf("create %q: %v", in.Title, err)
	}
	return task
}

func TestCreate_AppendsToTodoColumn(t *testing.T) {
	svc, _, _ := newTestService()
	a := mustCreate(t, svc, CreateTaskInput{ProjectID: 1, Title: "a"})
	b := mustCreate(t, svc, CreateTaskInput{ProjectID: 1, Title: "b"})
	if a.Order != 0 || b.Order != 1 {
		t.Errorf("orders = %d, %d, want 0, 1", a.Order, b.Order)
	}
	if a.Status != dom.TaskTodo || a.Priority != dom.PriorityMedium {
		t.Errorf("defaults wrong: status=%s priority=%s", a.Status, a.Priority)
	}
}

func TestCreate_PredecessorValidation(t *testing.T) {
	svc, _, _ := newTestService()
	inProject := mustCreate(t, svc, CreateTaskInput{ProjectID: 1, Title: "dep"})
	foreign := mustCreate(t, svc, CreateTaskInput{ProjectID: 2, Title: "elsewhere"})

	cases := []struct {
		name  string
		preds []int64
	}{
		{"unknown task", []int64{999}},
		{"other project", []int64{foreign.ID}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.Create(context.Background(), manager,
				CreateTaskInput{ProjectID: 1, Title: "x", Predecessors: tc.preds})
			if !errors.Is(err, ErrValidation) {
				t.Errorf("err = %v, want ErrValidation", err)
			}
		})
	}

	t.Run("self on update", func(t *testing.T) {
		preds := []int64{inProject.ID}
		if _, err := svc.Update(context.Background(), manager, inProject.ID,
			TaskPatch{Predecessors: &preds}); !errors.Is(err, ErrValidation) {
			t.Errorf("err = %v, want ErrValidation", err)
		}
	})

	t.Run("duplicates collapse", func(t *testing.T) {
		task, err := svc.Create(context.Background(), manager, CreateTaskInput{
			ProjectID: 1, Title: "dup", Predecessors: []int64{inProject.ID, inProject.ID},
		})
		if err != nil {
			t.Fatalf("create: %v", err)
		}
		if len(task.Predecessors) != 1 {
			t.Errorf("predecessors = %v, want one entry", task.Predecessors)
		}
	})
}

func TestUpdate_DependencyGate(t *testing.T) {
	svc, _, _ := newTestService()
	dep := mustCreate(t, svc, CreateTaskInput{ProjectID: 1, Title: "dep"})
	task := mustCreate(t, svc, CreateTaskInput{
		ProjectID: 1, Title: "blocked", Predecessors: []int64{dep.ID},
	})

	doing := dom.TaskDoing
	if _, err := svc.Update(context.Background(), manager, task.ID,
		TaskPatch{Status: &doing}); !errors.Is(err, ErrDependencyOpen) {
		t.Fatalf("err = %v, want ErrDependencyOpen", err)
	}

	done := dom.TaskDone
	if _, err := svc.Update(context.Background(), manager, dep.ID, TaskPatch{Status: &done}); err != nil {
		t.Fatalf("finish dep: %v", err)
	}
	got, err := svc.Update(context.Background(), manager, task.ID, TaskPatch{Status: &doing})
	if err != nil {
		t.Fatalf("after dep done: %v", err)
	}
	if got.Status != dom.TaskDoing {
		t.Errorf("status = %s, want doing", got.Status)
	}
}

func TestUpdate_CompletedAtStamping(t *testing.T) {
	svc, _, acts := newTestService()
	task := mustCreate(t, svc, CreateTaskInput{ProjectID: 1, Title: "t"})

	done := dom.TaskDone
	got, err := svc.Update(context.Background(), manager, task.ID, TaskPatch{Status: &done})
	if err != nil {
		t.Fatalf("to done: %v", err)
	}
	if got.CompletedAt == nil {
		t.Fatal("completedAt must be stamped on entering done")
	}

	todo := dom.TaskTodo
	got, err = svc.Update(context.Background(), manager, task.ID, TaskPatch{Status: &todo})
	if err != nil {
		t.Fatalf("back to todo: %v", err)
	}
	if got.CompletedAt != nil {
		t.Error("completedAt must be cleared on leaving done")
	}
	if len(acts.rows) != 2 {
		t.Errorf("activity rows = %d, want 2 status changes", len(acts.rows))
	}
}

func TestUpdate_ForbiddenForOutsiders(t *testing.T) {
	svc, _, _ := newTestService()
	task := mustCreate(t, svc, CreateTaskInput{ProjectID: 1, Title: "t", Assignees: []int64{20}})

	title := "renamed"
	outsider := Actor{ID: 99, Role: dom.RoleMember}
	if _, err := svc.Update(context.Background(), outsider, task.ID,
		TaskPatch{Title: &title}); !errors.Is(err, ErrForbidden) {
		t.Errorf("outsider: err = %v, want ErrForbidden", err)
	}

	assignee := Actor{ID: 20, Role: dom.RoleMember}
	if _, err := svc.Update(context.Background(), assignee, task.ID, TaskPatch{Title: &title}); err != nil {
		t.Errorf("assignee: %v", err)
	}
}

func TestCreatorCanEditAndDeleteOwnTask(t *testing.T) {
	svc, _, _ := newTestService()
	member := Actor{ID: 20, Role: dom.RoleMember}
	task, err := svc.Create(context.Background(), member, CreateTaskInput{ProjectID: 1, Title: "mine"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	title := "renamed"
	if _, err := svc.Update(context.Background(), member, task.ID, TaskPatch{Title: &title}); err != nil {
		t.Errorf("creator edit: %v", err)
	}
	if err := svc.Delete(context.Background(), member, task.ID); err != nil {
		t.Errorf("creator delete: %v", err)
	}
}

func columnOrders(t *testing.T, tasks *memTasks, projectID int64, status string) map[string]int {
	t.Helper()
	out := map[string]int{}
	for _, task := range tasks.byID {
		if task.ProjectID == projectID && task.Status == status {
			out[task.Title] = task.Order
		}
	}
	return out
}

func TestReorder_WithinColumn(t *testing.T) {
	svc, tasks, _ := newTestService()
	a := mustCreate(t, svc, CreateTaskInput{ProjectID: 1, Title: "a"})
	mustCreate(t, svc, CreateTaskInput{ProjectID: 1, Title: "b"})
	mustCreate(t, svc, CreateTaskInput{ProjectID: 1, Title: "c"})

	// a moves from slot 0 to slot 2; b and c close up.
	got, err := svc.Reorder(context.Background(), manager, a.ID, dom.TaskTodo, 2)
	if err != nil {
		t.Fatalf("reorder: %v", err)
	}
	if got.Order != 2 {
		t.Errorf("moved order = %d, want 2", got.Order)
	}
	want := map[string]int{"a": 2, "b": 0, "c": 1}
	if orders := columnOrders(t, tasks, 1, dom.TaskTodo); !equalOrders(orders, want) {
		t.Errorf("todo column = %v, want %v", orders, want)
	}
}

func TestReorder_AcrossColumns(t *testing.T) {
	svc, tasks, _ := newTestService()
	a := mustCreate(t, svc, CreateTaskInput{ProjectID: 1, Title: "a"})
	mustCreate(t, svc, CreateTaskInput{ProjectID: 1, Title: "b"})

	got, err := svc.Reorder(context.Background(), manager, a.ID, dom.TaskDoing, 0)
	if err != nil {
		t.Fatalf("reorder: %v", err)
	}
	if got.Status != dom.TaskDoing || got.Order != 0 {
		t.Errorf("moved to %s/%d, want doing/0", got.Status, got.Order)
	}
	// The old column compacts so b takes slot 0.
	if orders := columnOrders(t, tasks, 1, dom.TaskTodo); orders["b"] != 0 {
		t.Errorf("todo column = %v, want b at 0", orders)
	}
}

func TestReorder_IntoDoneStampsCompletion(t *testing.T) {
	svc, _, _ := newTestService()
	a := mustCreate(t, svc, CreateTaskInput{ProjectID: 1, Title: "a"})

	got, err := svc.Reorder(context.Background(), manager, a.ID, dom.TaskDone, 0)
	if err != nil {
		t.Fatalf("reorder: %v", err)
	}
	if got.CompletedAt == nil {
		t.Error("drag into done must stamp completedAt")
	}
}

func TestReorder_GatedByDependencies(t *testing.T) {
	svc, _, _ := newTestService()
	dep := mustCreate(t, svc, CreateTaskInput{ProjectID: 1, Title: "dep"})
	task := mustCreate(t, svc, CreateTaskInput{
		ProjectID: 1, Title: "blocked", Predecessors: []int64{dep.ID},
	})

	if _, err := svc.Reorder(context.Background(), manager, task.ID,
		dom.TaskDoing, 0); !errors.Is(err, ErrDependencyOpen) {
		t.Errorf("err = %v, want ErrDependencyOpen", err)
	}
}

func TestDelete_CompactsColumn(t *testing.T) {
	svc, tasks, _ := newTestService()
	a := mustCreate(t, svc, CreateTaskInput{ProjectID: 1, Title: "a"})
	mustCreate(t, svc, CreateTaskInput{ProjectID: 1, Title: "b"})
	mustCreate(t, svc, CreateTaskInput{ProjectID: 1, Title: "c"})

	if err := svc.Delete(context.Background(), manager, a.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	want := map[string]int{"b": 0, "c": 1}
	if orders := columnOrders(t, tasks, 1, dom.TaskTodo); !equalOrders(orders, want) {
		t.Errorf("todo column = %v, want %v", orders, want)
	}
}

func TestLogTime_MovesRunningTotal(t *testing.T) {
	svc, _, _ := newTestService()
	task := mustCreate(t, svc, CreateTaskInput{ProjectID: 1, Title: "t", Assignees: []int64{20}})

	assignee := Actor{ID: 20, Role: dom.RoleMember}
	_, total, err := svc.LogTime(context.Background(), assignee, task.ID, 2.5, "work", nil)
	if err != nil {
		t.Fatalf("log: %v", err)
	}
	if total != 2.5 {
		t.Errorf("total = %v, want 2.5", total)
	}
	if _, _, err := svc.LogTime(context.Background(), assignee, task.ID, 0, "", nil); !errors.Is(err, ErrValidation) {
		t.Errorf("zero hours: err = %v, want ErrValidation", err)
	}
}

func TestDeleteTimeEntry_RollsBackTotal(t *testing.T) {
	tasks := newMemTasks()
	projects := &memProjects{byID: map[int64]dom.Project{
		1: {ID: 1, Title: "Site", Status: dom.ProjectActive, ManagerID: 10, Members: []int64{10}},
	}}
	entries := &memEntries{}
	svc := NewTaskService(tasks, projects, &memActivities{}, &memComments{}, entries, nil)
	task := mustCreate(t, svc, CreateTaskInput{ProjectID: 1, Title: "t"})

	e, total, err := svc.LogTime(context.Background(), manager, task.ID, 4, "", nil)
	if err != nil {
		t.Fatalf("log: %v", err)
	}
	if total != 4 {
		t.Fatalf("total = %v, want 4", total)
	}
	total, err = svc.DeleteTimeEntry(context.Background(), manager, e.ID)
	if err != nil {
		t.Fatalf("delete: %v", err)
	}
	if total != 0 {
		t.Errorf("total after delete = %v, want 0", total)
	}
	if _, err := svc.DeleteTimeEntry(context.Background(), manager, e.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("second delete: err = %v, want ErrNotFound", err)
	}
}

func TestDependency_AddRemove(t *testing.T) {
	svc, _, _ := newTestService()
	dep := mustCreate(t, svc, CreateTaskInput{ProjectID: 1, Title: "dep"})
	task := mustCreate(t, svc, CreateTaskInput{ProjectID: 1, Title: "t"})

	got, err := svc.AddDependency(context.Background(), manager, task.ID, dep.ID)
	if err != nil {
		t.Fatalf("add: %v", err)
	}
	if len(got.Predecessors) != 1 || got.Predecessors[0] != dep.ID {
		t.Errorf("predecessors = %v, want [%d]", got.Predecessors, dep.ID)
	}

	got, err = svc.RemoveDependency(context.Background(), manager, task.ID, dep.ID)
	if err != nil {
		t.Fatalf("remove: %v", err)
	}
	if len(got.Predecessors) != 0 {
		t.Errorf("predecessors = %v, want empty", got.Predecessors)
	}
	if _, err := svc.RemoveDependency(context.Background(), manager, task.ID, dep.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("remove absent: err = %v, want ErrNotFound", err)
	}
}

func TestSummary_Aggregates(t *testing.T) {
	svc, _, _ := newTestService()
	yesterday := time.Now().UTC().Add(-24 * time.Hour)
	inThreeDays := time.Now().UTC().Add(72 * time.Hour)

	mustCreate(t, svc, CreateTaskInput{ProjectID: 1, Title: "late", DueDate: &yesterday, Assignees: []int64{20}})
	mustCreate(t, svc, CreateTaskInput{ProjectID: 1, Title: "soon", DueDate: &inThreeDays, Assignees: []int64{20}})
	finished := mustCreate(t, svc, CreateTaskInput{ProjectID: 1, Title: "done", DueDate: &inThreeDays})
	done := dom.TaskDone
	if _, err := svc.Update(context.Background(), manager, finished.ID, TaskPatch{Status: &done}); err != nil {
		t.Fatalf("finish: %v", err)
	}

	sum, err := svc.Summary(context.Background(), manager, 1)
	if err != nil {
		t.Fatalf("summary: %v", err)
	}
	if sum.Total != 3 || sum.Todo != 2 || sum.Done != 1 {
		t.Errorf("counts = %d/%d/%d, want 3 total, 2 todo, 1 done", sum.Total, sum.Todo, sum.Done)
	}
	if sum.OverdueOpen != 1 {
		t.Errorf("overdueOpen = %d, want 1", sum.OverdueOpen)
	}
	if sum.UpcomingWeek != 1 || sum.DueNext7[3] != 1 {
		t.Errorf("upcoming = %d, sparkline = %v, want the open task due in 3 days counted once",
			sum.UpcomingWeek, sum.DueNext7)
	}
	if sum.OnTimeRate != 1 {
		t.Errorf("onTimeRate = %v, want 1 (the only due+done task finished early)", sum.OnTimeRate)
	}
	if sum.ByAssignee[20] != 2 {
		t.Errorf("byAssignee[20] = %d, want 2", sum.ByAssignee[20])
	}
	if len(sum.Recent) != 3 {
		t.Errorf("recent = %d rows, want all 3", len(sum.Recent))
	}
}

func equalOrders(got, want map[string]int) bool {
	if len(got) != len(want) {
		return false
	}
	for k, v := range want {
		if got[k] != v {
			return false
		}
	}
	return true
}
