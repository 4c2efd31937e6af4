package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	dom "taskmate/internal/domain"
	"taskmate/internal/repo"

	"github.com/jackc/pgx/v5"
	"golang.org/x/sync/singleflight"

	"taskmate/internal/cache"
)

var (
	ErrNotFound       = errors.New("not found")
	ErrForbidden      = errors.New("insufficient permissions")
	ErrValidation     = errors.New("validation failed")
	ErrDependencyOpen = errors.New("predecessor tasks are not done")
)

// Actor is the authenticated caller every operation runs as.
type Actor struct {
	ID   int64
	Role string
}

func (a Actor) canManage() bool {
	return a.Role == dom.RoleAdmin || a.Role == dom.RoleManager
}

// CreateTaskInput is the writable task surface on create.
type CreateTaskInput struct {
	ProjectID    int64
	Title        string
	Description  string
	Priority     string
	Assignees    []int64
	Labels       []string
	Predecessors []int64
	DueDate      *time.Time
}

// TaskPatch carries partial updates; nil means "leave as is".
type TaskPatch struct {
	Title        *string
	Description  *string
	Status       *string
	Priority     *string
	Assignees    *[]int64
	Labels       *[]string
	Predecessors *[]int64
	DueDate      *time.Time
}

// ProjectSummary is the per-project analytics block.
type ProjectSummary struct {
	Total        int
	Todo         int
	Doing        int
	Done         int
	OverdueOpen  int
	UpcomingWeek int
	OnTimeRate   float64
	TotalHours   float64
	ByAssignee   map[int64]int
	DueNext7     [7]int
	Recent       []dom.Task
}

type TaskService struct {
	tasks      repo.TaskRepo
	projects   repo.ProjectRepo
	activities repo.ActivityRepo
	comments   repo.CommentRepo
	entries    repo.TimeEntryRepo
	cache      *cache.BoardCache
	sf         singleflight.Group
}

// NewTaskService creates a TaskService. If c is nil, caching is disabled.
func NewTaskService(tasks repo.TaskRepo, projects repo.ProjectRepo,
	activities repo.ActivityRepo, comments repo.CommentRepo,
	entries repo.TimeEntryRepo, c *cache.BoardCache) *TaskService {
	return &TaskService{
		tasks: tasks, projects: projects, activities: activities,
		comments: comments, entries: entries, cache: c,
	}
}

func (s *TaskService) Create(ctx context.Context, actor Actor, in CreateTaskInput) (dom.Task, error) {
	in.Title = strings.TrimSpace(in.Title)
	if in.Title == "" {
		return dom.Task{}, fmt.Errorf("%w: title is required", ErrValidation)
	}
	if in.Priority == "" {
		in.Priority = dom.PriorityMedium
	}
	if !validPriority(in.Priority) {
		return dom.Task{}, fmt.Errorf("%w: unknown priority %q", ErrValidation, in.Priority)
	}

	proj, err := s.loadProject(ctx, in.ProjectID)
	if err != nil {
		return dom.Task{}, err
	}
	if !canTouchProject(actor, proj) {
		return dom.Task{}, ErrForbidden
	}

	preds, err := s.validPredecessors(ctx, in.ProjectID, 0, in.Predecessors)
	if err != nil {
		return dom.Task{}, err
	}

	max, err := s.tasks.MaxOrder(ctx, in.ProjectID, dom.TaskTodo)
	if err != nil {
		return dom.Task{}, err
	}
	t, err := s.tasks.Create(ctx, dom.Task{
		ProjectID:    in.ProjectID,
		Title:        in.Title,
		Description:  strings.TrimSpace(in.Description),
		Status:       dom.TaskTodo,
		Priority:     in.Priority,
		Assignees:    in.Assignees,
		Labels:       in.Labels,
		Predecessors: preds,
		DueDate:      in.DueDate,
		Order:        max + 1,
		CreatedBy:    actor.ID,
	})
	if err != nil {
		return dom.Task{}, err
	}
	s.invalidate(ctx, in.ProjectID)
	return t, nil
}

func (s *TaskService) GetByID(ctx context.Context, actor Actor, id int64) (dom.Task, error) {
	t, proj, err := s.loadTask(ctx, id)
	if err != nil {
		return dom.Task{}, err
	}
	if !canTouchProject(actor, proj) {
		return dom.Task{}, ErrForbidden
	}
	return t, nil
}

// Update applies a partial patch. Status transitions into doing/done are
// blocked while any predecessor is still open; entering done stamps
// completedAt, leaving done clears it.
func (s *TaskService) Update(ctx context.Context, actor Actor, id int64, p TaskPatch) (dom.Task, error) {
	t, proj, err := s.loadTask(ctx, id)
	if err != nil {
		return dom.Task{}, err
	}
	if !canEditTask(actor, proj, t) {
		return dom.Task{}, ErrForbidden
	}

	patch := t
	if p.Title != nil {
		patch.Title = strings.TrimSpace(*p.Title)
		if patch.Title == "" {
			return dom.Task{}, fmt.Errorf("%w: title is required", ErrValidation)
		}
	}
	if p.Description != nil {
		patch.Description = strings.TrimSpace(*p.Description)
	}
	if p.Priority != nil {
		if !validPriority(*p.Priority) {
			return dom.Task{}, fmt.Errorf("%w: unknown priority %q", ErrValidation, *p.Priority)
		}
		patch.Priority = *p.Priority
	}
	if p.Assignees != nil {
		patch.Assignees = *p.Assignees
	}
	if p.Labels != nil {
		patch.Labels = *p.Labels
	}
	if p.Predecessors != nil {
		preds, err := s.validPredecessors(ctx, t.ProjectID, t.ID, *p.Predecessors)
		if err != nil {
			return dom.Task{}, err
		}
		patch.Predecessors = preds
	}
	if p.DueDate != nil {
		patch.DueDate = p.DueDate
	}
	if p.Status != nil && *p.Status != t.Status {
		if !validStatus(*p.Status) {
			return dom.Task{}, fmt.Errorf("%w: unknown status %q", ErrValidation, *p.Status)
		}
		if err := s.gateDependencies(ctx, patch.Predecessors, *p.Status); err != nil {
			return dom.Task{}, err
		}
		patch.Status = *p.Status
		if patch.Status == dom.TaskDone {
			now := time.Now().UTC()
			patch.CompletedAt = &now
		} else {
			patch.CompletedAt = nil
		}
	}

	updated, err := s.tasks.Update(ctx, id, patch)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return dom.Task{}, ErrNotFound
		}
		return dom.Task{}, err
	}
	if updated.Status != t.Status {
		_ = s.activities.Create(ctx, dom.Activity{
			UserID:     actor.ID,
			TaskID:     t.ID,
			Action:     dom.ActivityStatusChanged,
			FromStatus: t.Status,
			ToStatus:   updated.Status,
		})
	}
	s.invalidate(ctx, t.ProjectID)
	return updated, nil
}

// Reorder moves a task to a column slot. The neighboring orders are shifted so
// every column stays a dense 0..n-1 sequence.
func (s *TaskService) Reorder(ctx context.Context, actor Actor, id int64, status string, index int) (dom.Task, error) {
	t, proj, err := s.loadTask(ctx, id)
	if err != nil {
		return dom.Task{}, err
	}
	if !canEditTask(actor, proj, t) {
		return dom.Task{}, ErrForbidden
	}
	if !validStatus(status) {
		return dom.Task{}, fmt.Errorf("%w: unknown status %q", ErrValidation, status)
	}
	if status != t.Status {
		if err := s.gateDependencies(ctx, t.Predecessors, status); err != nil {
			return dom.Task{}, err
		}
	}

	max, err := s.tasks.MaxOrder(ctx, t.ProjectID, status)
	if err != nil {
		return dom.Task{}, err
	}
	limit := max
	if status != t.Status {
		limit = max + 1
	}
	if index < 0 {
		index = 0
	}
	if index > limit {
		index = limit
	}

	switch {
	case status != t.Status:
		if err := s.tasks.CompactAfter(ctx, t.ProjectID, t.Status, t.Order); err != nil {
			return dom.Task{}, err
		}
		if err := s.tasks.MakeRoom(ctx, t.ProjectID, status, index); err != nil {
			return dom.Task{}, err
		}
	case index > t.Order:
		if err := s.tasks.ShiftDown(ctx, t.ProjectID, status, t.Order, index); err != nil {
			return dom.Task{}, err
		}
	case index < t.Order:
		if err := s.tasks.ShiftUp(ctx, t.ProjectID, status, index, t.Order); err != nil {
			return dom.Task{}, err
		}
	default:
		return t, nil
	}
	if err := s.tasks.SetPosition(ctx, t.ID, status, index); err != nil {
		return dom.Task{}, err
	}
	if status != t.Status {
		_ = s.activities.Create(ctx, dom.Activity{
			UserID:     actor.ID,
			TaskID:     t.ID,
			Action:     dom.ActivityStatusChanged,
			FromStatus: t.Status,
			ToStatus:   status,
		})
	}
	s.invalidate(ctx, t.ProjectID)
	return s.tasks.GetByID(ctx, t.ID)
}

func (s *TaskService) Delete(ctx context.Context, actor Actor, id int64) error {
	t, proj, err := s.loadTask(ctx, id)
	if err != nil {
		return err
	}
	if !actor.canManage() && proj.ManagerID != actor.ID && t.CreatedBy != actor.ID {
		return ErrForbidden
	}
	_ = s.activities.Create(ctx, dom.Activity{
		UserID:     actor.ID,
		TaskID:     t.ID,
		Action:     dom.ActivityDeleted,
		FromStatus: t.Status,
	})
	// Close the gap the row leaves in its column.
	if err := s.tasks.Delete(ctx, id); err != nil {
		return err
	}
	if err := s.tasks.CompactAfter(ctx, t.ProjectID, t.Status, t.Order); err != nil {
		return err
	}
	s.invalidate(ctx, t.ProjectID)
	return nil
}

// Board returns all project tasks in column order, through the cache.
func (s *TaskService) Board(ctx context.Context, actor Actor, projectID int64) ([]dom.Task, error) {
	proj, err := s.loadProject(ctx, projectID)
	if err != nil {
		return nil, err
	}
	if !canTouchProject(actor, proj) {
		return nil, ErrForbidden
	}
	if s.cache == nil {
		return s.tasks.Board(ctx, projectID)
	}
	key := "board:" + fmt.Sprint(projectID)
	v, err, _ := s.sf.Do(key, func() (interface{}, error) {
		if list, err := s.cache.GetBoard(ctx, projectID); err == nil && list != nil {
			return list, nil
		}
		list, err := s.tasks.Board(ctx, projectID)
		if err != nil {
			return nil, err
		}
		_ = s.cache.SetBoard(ctx, projectID, list)
		return list, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]dom.Task), nil
}

// List returns a filtered, paginated task page, through the cache.
func (s *TaskService) List(ctx context.Context, actor Actor, projectID int64, f repo.TaskFilter) ([]dom.Task, int, error) {
	proj, err := s.loadProject(ctx, projectID)
	if err != nil {
		return nil, 0, err
	}
	if !canTouchProject(actor, proj) {
		return nil, 0, ErrForbidden
	}
	if f.Page < 1 {
		f.Page = 1
	}
	if f.Size < 1 {
		f.Size = 20
	}
	if f.Size > 100 {
		f.Size = 100
	}
	if s.cache == nil {
		return s.tasks.ListByProject(ctx, projectID, f)
	}
	sig := fmt.Sprintf("%s:%s:%s:%d:%d", f.Status, strings.ToLower(f.Query), f.Sort, f.Page, f.Size)
	type page struct {
		items []dom.Task
		total int
	}
	v, err, _ := s.sf.Do("list:"+fmt.Sprint(projectID)+":"+sig, func() (interface{}, error) {
		if items, total, ok, err := s.cache.GetList(ctx, projectID, sig); err == nil && ok {
			return page{items, total}, nil
		}
		items, total, err := s.tasks.ListByProject(ctx, projectID, f)
		if err != nil {
			return nil, err
		}
		_ = s.cache.SetList(ctx, projectID, sig, items, total)
		return page{items, total}, nil
	})
	if err != nil {
		return nil, 0, err
	}
	p := v.(page)
	return p.items, p.total, nil
}

// Summary aggregates the project board into the analytics block.
func (s *TaskService) Summary(ctx context.Context, actor Actor, projectID int64) (ProjectSummary, error) {
	proj, err := s.loadProject(ctx, projectID)
	if err != nil {
		return ProjectSummary{}, err
	}
	if !canTouchProject(actor, proj) {
		return ProjectSummary{}, ErrForbidden
	}
	tasks, err := s.tasks.ByProject(ctx, projectID)
	if err != nil {
		return ProjectSummary{}, err
	}
	now := time.Now().UTC()
	startOfDay := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	var sum ProjectSummary
	sum.Total = len(tasks)
	sum.ByAssignee = make(map[int64]int)
	var dueDone, onTime int
	for _, t := range tasks {
		switch t.Status {
		case dom.TaskTodo:
			sum.Todo++
		case dom.TaskDoing:
			sum.Doing++
		case dom.TaskDone:
			sum.Done++
		}
		if t.OverdueOpen(now) {
			sum.OverdueOpen++
		}
		if t.Status != dom.TaskDone && t.DueDate != nil && !t.DueDate.Before(startOfDay) {
			if d := int(t.DueDate.Sub(startOfDay).Hours() / 24); d < 7 {
				sum.DueNext7[d]++
				sum.UpcomingWeek++
			}
		}
		if t.Status == dom.TaskDone && t.DueDate != nil {
			dueDone++
			if t.OnTimeDone() {
				onTime++
			}
		}
		for _, uid := range t.Assignees {
			sum.ByAssignee[uid]++
		}
		sum.TotalHours += t.TotalHours
	}
	if dueDone > 0 {
		sum.OnTimeRate = float64(onTime) / float64(dueDone)
	}
	recent := make([]dom.Task, len(tasks))
	copy(recent, tasks)
	sort.Slice(recent, func(i, j int) bool { return recent[i].UpdatedAt.After(recent[j].UpdatedAt) })
	if len(recent) > 5 {
		recent = recent[:5]
	}
	sum.Recent = recent
	return sum, nil
}

// AddDependency appends one predecessor, with the same validation as a full
// predecessor patch.
func (s *TaskService) AddDependency(ctx context.Context, actor Actor, taskID, depID int64) (dom.Task, error) {
	t, proj, err := s.loadTask(ctx, taskID)
	if err != nil {
		return dom.Task{}, err
	}
	if !canEditTask(actor, proj, t) {
		return dom.Task{}, ErrForbidden
	}
	preds, err := s.validPredecessors(ctx, t.ProjectID, t.ID, append(append([]int64{}, t.Predecessors...), depID))
	if err != nil {
		return dom.Task{}, err
	}
	patch := t
	patch.Predecessors = preds
	updated, err := s.tasks.Update(ctx, taskID, patch)
	if err != nil {
		return dom.Task{}, err
	}
	s.invalidate(ctx, t.ProjectID)
	return updated, nil
}

func (s *TaskService) RemoveDependency(ctx context.Context, actor Actor, taskID, depID int64) (dom.Task, error) {
	t, proj, err := s.loadTask(ctx, taskID)
	if err != nil {
		return dom.Task{}, err
	}
	if !canEditTask(actor, proj, t) {
		return dom.Task{}, ErrForbidden
	}
	preds := make([]int64, 0, len(t.Predecessors))
	for _, id := range t.Predecessors {
		if id != depID {
			preds = append(preds, id)
		}
	}
	if len(preds) == len(t.Predecessors) {
		return dom.Task{}, ErrNotFound
	}
	patch := t
	patch.Predecessors = preds
	updated, err := s.tasks.Update(ctx, taskID, patch)
	if err != nil {
		return dom.Task{}, err
	}
	s.invalidate(ctx, t.ProjectID)
	return updated, nil
}

func (s *TaskService) AddComment(ctx context.Context, actor Actor, taskID int64, text string) (dom.Comment, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return dom.Comment{}, fmt.Errorf("%w: text is required", ErrValidation)
	}
	t, proj, err := s.loadTask(ctx, taskID)
	if err != nil {
		return dom.Comment{}, err
	}
	if !canTouchProject(actor, proj) {
		return dom.Comment{}, ErrForbidden
	}
	return s.comments.Create(ctx, dom.Comment{TaskID: t.ID, UserID: actor.ID, Text: text})
}

func (s *TaskService) Comments(ctx context.Context, actor Actor, taskID int64, limit int) ([]dom.Comment, error) {
	_, proj, err := s.loadTask(ctx, taskID)
	if err != nil {
		return nil, err
	}
	if !canTouchProject(actor, proj) {
		return nil, ErrForbidden
	}
	if limit < 1 || limit > 200 {
		limit = 50
	}
	return s.comments.ListByTask(ctx, taskID, limit)
}

func (s *TaskService) DeleteComment(ctx context.Context, actor Actor, id int64) error {
	c, err := s.comments.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrNotFound
		}
		return err
	}
	if c.UserID != actor.ID && !actor.canManage() {
		return ErrForbidden
	}
	return s.comments.Delete(ctx, id)
}

// LogTime records hours against a task and moves the denormalized total.
// Negative deltas are corrections; the running total never goes below zero.
func (s *TaskService) LogTime(ctx context.Context, actor Actor, taskID int64, hours float64, note string, at *time.Time) (dom.TimeEntry, float64, error) {
	if hours == 0 {
		return dom.TimeEntry{}, 0, fmt.Errorf("%w: hours must be non-zero", ErrValidation)
	}
	t, proj, err := s.loadTask(ctx, taskID)
	if err != nil {
		return dom.TimeEntry{}, 0, err
	}
	if !actor.canManage() && proj.ManagerID != actor.ID && !t.HasAssignee(actor.ID) {
		return dom.TimeEntry{}, 0, ErrForbidden
	}
	when := time.Now().UTC()
	if at != nil {
		when = *at
	}
	e, err := s.entries.Create(ctx, dom.TimeEntry{
		TaskID: t.ID, UserID: actor.ID, Hours: hours,
		Note: strings.TrimSpace(note), At: when,
	})
	if err != nil {
		return dom.TimeEntry{}, 0, err
	}
	total, err := s.entries.AddHours(ctx, t.ID, hours)
	if err != nil {
		return dom.TimeEntry{}, 0, err
	}
	s.invalidate(ctx, t.ProjectID)
	return e, total, nil
}

// DeleteTimeEntry removes an entry and rolls its hours out of the task total.
func (s *TaskService) DeleteTimeEntry(ctx context.Context, actor Actor, id int64) (float64, error) {
	e, err := s.entries.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, ErrNotFound
		}
		return 0, err
	}
	t, proj, err := s.loadTask(ctx, e.TaskID)
	if err != nil {
		return 0, err
	}
	if e.UserID != actor.ID && !actor.canManage() && proj.ManagerID != actor.ID {
		return 0, ErrForbidden
	}
	if err := s.entries.Delete(ctx, id); err != nil {
		return 0, err
	}
	total, err := s.entries.AddHours(ctx, e.TaskID, -e.Hours)
	if err != nil {
		return 0, err
	}
	s.invalidate(ctx, t.ProjectID)
	return total, nil
}

func (s *TaskService) TimeEntries(ctx context.Context, actor Actor, taskID int64) ([]dom.TimeEntry, error) {
	_, proj, err := s.loadTask(ctx, taskID)
	if err != nil {
		return nil, err
	}
	if !canTouchProject(actor, proj) {
		return nil, ErrForbidden
	}
	return s.entries.ListByTask(ctx, taskID)
}

func (s *TaskService) Activity(ctx context.Context, actor Actor, taskID int64, limit int) ([]dom.Activity, error) {
	_, proj, err := s.loadTask(ctx, taskID)
	if err != nil {
		return nil, err
	}
	if !canTouchProject(actor, proj) {
		return nil, ErrForbidden
	}
	if limit < 1 || limit > 200 {
		limit = 50
	}
	return s.activities.ListByTask(ctx, taskID, limit)
}

// validPredecessors de-duplicates and validates predecessor IDs: no self
// reference, every task must exist and live in the same project.
func (s *TaskService) validPredecessors(ctx context.Context, projectID, selfID int64, ids []int64) ([]int64, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	seen := make(map[int64]struct{}, len(ids))
	var uniq []int64
	for _, id := range ids {
		if id == selfID {
			return nil, fmt.Errorf("%w: task cannot depend on itself", ErrValidation)
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		uniq = append(uniq, id)
	}
	found, err := s.tasks.GetByIDs(ctx, uniq)
	if err != nil {
		return nil, err
	}
	if len(found) != len(uniq) {
		return nil, fmt.Errorf("%w: unknown predecessor task", ErrValidation)
	}
	for _, p := range found {
		if p.ProjectID != projectID {
			return nil, fmt.Errorf("%w: predecessor %d belongs to another project", ErrValidation, p.ID)
		}
	}
	return uniq, nil
}

// gateDependencies blocks a move into doing/done while a predecessor is open.
func (s *TaskService) gateDependencies(ctx context.Context, predecessors []int64, newStatus string) error {
	if newStatus == dom.TaskTodo || len(predecessors) == 0 {
		return nil
	}
	preds, err := s.tasks.GetByIDs(ctx, predecessors)
	if err != nil {
		return err
	}
	for _, p := range preds {
		if p.Status != dom.TaskDone {
			return fmt.Errorf("%w: %q is not done", ErrDependencyOpen, p.Title)
		}
	}
	return nil
}

func (s *TaskService) loadTask(ctx context.Context, id int64) (dom.Task, dom.Project, error) {
	t, err := s.tasks.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return dom.Task{}, dom.Project{}, ErrNotFound
		}
		return dom.Task{}, dom.Project{}, err
	}
	proj, err := s.loadProject(ctx, t.ProjectID)
	if err != nil {
		return dom.Task{}, dom.Project{}, err
	}
	return t, proj, nil
}

func (s *TaskService) loadProject(ctx context.Context, id int64) (dom.Project, error) {
	proj, err := s.projects.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return dom.Project{}, ErrNotFound
		}
		return dom.Project{}, err
	}
	return proj, nil
}

func (s *TaskService) invalidate(ctx context.Context, projectID int64) {
	if s.cache != nil {
		_ = s.cache.InvalidateProject(ctx, projectID)
	}
}

// canTouchProject is the read/create gate: admins and managers everywhere,
// everyone else only inside their projects.
func canTouchProject(actor Actor, p dom.Project) bool {
	return actor.canManage() || p.ManagerID == actor.ID || p.HasMember(actor.ID)
}

// canEditTask additionally lets the creator and assignees move their own tasks.
func canEditTask(actor Actor, p dom.Project, t dom.Task) bool {
	return actor.canManage() || p.ManagerID == actor.ID ||
		t.CreatedBy == actor.ID || t.HasAssignee(actor.ID)
}

func validStatus(s string) bool {
	return s == dom.TaskTodo || s == dom.TaskDoing || s == dom.TaskDone
}

func validPriority(p string) bool {
	return p == dom.PriorityHigh || p == dom.PriorityMedium || p == dom.PriorityLow
}
