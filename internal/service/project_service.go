package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	dom "taskmate/internal/domain"
	"taskmate/internal/health"
	"taskmate/internal/repo"

	"github.com/jackc/pgx/v5"
)

// CreateProjectInput is the writable project surface.
type CreateProjectInput struct {
	Title       string
	Description string
	StartDate   *time.Time
	EndDate     *time.Time
	Status      string
	ManagerID   int64
	Members     []int64
	GroupID     *int64
}

// HealthAgg is one bucket of the global dashboard: project count plus the
// average persisted health score.
type HealthAgg struct {
	Projects  int `json:"projects"`
	AvgHealth int `json:"avg_health"`
}

// GlobalSummary is the cross-project dashboard block. ByGroup skips projects
// without a group.
type GlobalSummary struct {
	Projects     int                 `json:"projects"`
	ByStatus     map[string]int      `json:"by_status"`
	ByGroup      map[int64]HealthAgg `json:"by_group"`
	ByManager    map[int64]HealthAgg `json:"by_manager"`
	Green        int                 `json:"green"`
	Yellow       int                 `json:"yellow"`
	Red          int                 `json:"red"`
	AvgHealth    int                 `json:"avg_health"`
	OverdueTasks int                 `json:"overdue_tasks"`
}

type ProjectService struct {
	projects repo.ProjectRepo
	groups   repo.GroupRepo
	tasks    repo.TaskRepo
}

func NewProjectService(projects repo.ProjectRepo, groups repo.GroupRepo, tasks repo.TaskRepo) *ProjectService {
	return &ProjectService{projects: projects, groups: groups, tasks: tasks}
}

func (s *ProjectService) Create(ctx context.Context, actor Actor, in CreateProjectInput) (dom.Project, error) {
	if !actor.canManage() {
		return dom.Project{}, ErrForbidden
	}
	in.Title = strings.TrimSpace(in.Title)
	if in.Title == "" {
		return dom.Project{}, fmt.Errorf("%w: title is required", ErrValidation)
	}
	if in.Status == "" {
		in.Status = dom.ProjectActive
	}
	if !validProjectStatus(in.Status) {
		return dom.Project{}, fmt.Errorf("%w: unknown status %q", ErrValidation, in.Status)
	}
	if in.ManagerID == 0 {
		in.ManagerID = actor.ID
	}
	if in.GroupID != nil {
		if _, err := s.groups.GetByID(ctx, *in.GroupID); err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return dom.Project{}, fmt.Errorf("%w: unknown group %d", ErrValidation, *in.GroupID)
			}
			return dom.Project{}, err
		}
	}
	return s.projects.Create(ctx, dom.Project{
		Title:       in.Title,
		Description: strings.TrimSpace(in.Description),
		StartDate:   in.StartDate,
		EndDate:     in.EndDate,
		Status:      in.Status,
		ManagerID:   in.ManagerID,
		Members:     foldMember(in.Members, in.ManagerID),
		GroupID:     in.GroupID,
	})
}

func (s *ProjectService) GetByID(ctx context.Context, actor Actor, id int64) (dom.Project, error) {
	p, err := s.projects.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return dom.Project{}, ErrNotFound
		}
		return dom.Project{}, err
	}
	if !canTouchProject(actor, p) {
		return dom.Project{}, ErrForbidden
	}
	return p, nil
}

func (s *ProjectService) List(ctx context.Context, actor Actor, f repo.ProjectFilter) ([]dom.Project, int, error) {
	if f.Page < 1 {
		f.Page = 1
	}
	if f.Size < 1 {
		f.Size = 20
	}
	if f.Size > 100 {
		f.Size = 100
	}
	list, total, err := s.projects.List(ctx, f)
	if err != nil {
		return nil, 0, err
	}
	if actor.canManage() {
		return list, total, nil
	}
	// Non-managers only see their projects. Paging totals follow the
	// unfiltered set; acceptable for the sizes involved.
	visible := list[:0]
	for _, p := range list {
		if canTouchProject(actor, p) {
			visible = append(visible, p)
		}
	}
	return visible, total, nil
}

func (s *ProjectService) Update(ctx context.Context, actor Actor, id int64, in CreateProjectInput) (dom.Project, error) {
	existing, err := s.projects.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return dom.Project{}, ErrNotFound
		}
		return dom.Project{}, err
	}
	if !actor.canManage() && existing.ManagerID != actor.ID {
		return dom.Project{}, ErrForbidden
	}
	in.Title = strings.TrimSpace(in.Title)
	if in.Title == "" {
		return dom.Project{}, fmt.Errorf("%w: title is required", ErrValidation)
	}
	if in.Status == "" {
		in.Status = existing.Status
	}
	if !validProjectStatus(in.Status) {
		return dom.Project{}, fmt.Errorf("%w: unknown status %q", ErrValidation, in.Status)
	}
	if in.ManagerID == 0 {
		in.ManagerID = existing.ManagerID
	}
	p, err := s.projects.Update(ctx, id, dom.Project{
		Title:       in.Title,
		Description: strings.TrimSpace(in.Description),
		StartDate:   in.StartDate,
		EndDate:     in.EndDate,
		Status:      in.Status,
		ManagerID:   in.ManagerID,
		Members:     foldMember(in.Members, in.ManagerID),
		GroupID:     in.GroupID,
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return dom.Project{}, ErrNotFound
		}
		return dom.Project{}, err
	}
	return p, nil
}

func (s *ProjectService) Delete(ctx context.Context, actor Actor, id int64) error {
	existing, err := s.projects.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrNotFound
		}
		return err
	}
	if actor.Role != dom.RoleAdmin && existing.ManagerID != actor.ID {
		return ErrForbidden
	}
	return s.projects.Delete(ctx, id)
}

// RecomputeHealth recalculates and persists health for one project on demand.
// Same math and storage path the periodic job uses.
func (s *ProjectService) RecomputeHealth(ctx context.Context, actor Actor, id int64) (health.Result, error) {
	p, err := s.projects.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return health.Result{}, ErrNotFound
		}
		return health.Result{}, err
	}
	if !canTouchProject(actor, p) {
		return health.Result{}, ErrForbidden
	}
	tasks, err := s.tasks.ByProject(ctx, id)
	if err != nil {
		return health.Result{}, err
	}
	now := time.Now().UTC()
	res := health.Compute(tasks, now)
	if err := s.projects.UpdateHealth(ctx, id, dom.Health{
		Score: res.Score, Status: res.Status, UpdatedAt: &now,
	}); err != nil {
		return health.Result{}, err
	}
	return res, nil
}

// Global aggregates health and overdue counts across all projects.
func (s *ProjectService) Global(ctx context.Context, actor Actor) (GlobalSummary, error) {
	if !actor.canManage() {
		return GlobalSummary{}, ErrForbidden
	}
	list, total, err := s.projects.List(ctx, repo.ProjectFilter{Page: 1, Size: 500})
	if err != nil {
		return GlobalSummary{}, err
	}
	sum := GlobalSummary{
		Projects:  total,
		ByStatus:  map[string]int{},
		ByGroup:   map[int64]HealthAgg{},
		ByManager: map[int64]HealthAgg{},
	}
	scoreSum := 0
	groupScores := map[int64]int{}
	managerScores := map[int64]int{}
	for _, p := range list {
		sum.ByStatus[p.Status]++
		scoreSum += p.Health.Score
		switch p.Health.Status {
		case dom.HealthGreen:
			sum.Green++
		case dom.HealthYellow:
			sum.Yellow++
		case dom.HealthRed:
			sum.Red++
		}
		if p.GroupID != nil {
			agg := sum.ByGroup[*p.GroupID]
			agg.Projects++
			sum.ByGroup[*p.GroupID] = agg
			groupScores[*p.GroupID] += p.Health.Score
		}
		if p.ManagerID != 0 {
			agg := sum.ByManager[p.ManagerID]
			agg.Projects++
			sum.ByManager[p.ManagerID] = agg
			managerScores[p.ManagerID] += p.Health.Score
		}
	}
	if len(list) > 0 {
		sum.AvgHealth = scoreSum / len(list)
	}
	for id, agg := range sum.ByGroup {
		agg.AvgHealth = groupScores[id] / agg.Projects
		sum.ByGroup[id] = agg
	}
	for id, agg := range sum.ByManager {
		agg.AvgHealth = managerScores[id] / agg.Projects
		sum.ByManager[id] = agg
	}
	overdue, err := s.tasks.DueOpen(ctx, time.Now().UTC())
	if err != nil {
		return GlobalSummary{}, err
	}
	sum.OverdueTasks = len(overdue)
	return sum, nil
}

// GroupService manages project groups. Manage-only across the board.
type GroupService struct {
	groups repo.GroupRepo
}

func NewGroupService(groups repo.GroupRepo) *GroupService {
	return &GroupService{groups: groups}
}

func (s *GroupService) Create(ctx context.Context, actor Actor, g dom.ProjectGroup) (dom.ProjectGroup, error) {
	if !actor.canManage() {
		return dom.ProjectGroup{}, ErrForbidden
	}
	g.Name = strings.TrimSpace(g.Name)
	if g.Name == "" {
		return dom.ProjectGroup{}, fmt.Errorf("%w: name is required", ErrValidation)
	}
	if g.Status == "" {
		g.Status = dom.ProjectActive
	}
	if g.ManagerID == 0 {
		g.ManagerID = actor.ID
	}
	g.Members = foldMember(g.Members, g.ManagerID)
	return s.groups.Create(ctx, g)
}

func (s *GroupService) List(ctx context.Context) ([]dom.ProjectGroup, error) {
	return s.groups.List(ctx)
}

func (s *GroupService) GetByID(ctx context.Context, id int64) (dom.ProjectGroup, error) {
	g, err := s.groups.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return dom.ProjectGroup{}, ErrNotFound
		}
		return dom.ProjectGroup{}, err
	}
	return g, nil
}

func (s *GroupService) Update(ctx context.Context, actor Actor, id int64, g dom.ProjectGroup) (dom.ProjectGroup, error) {
	if !actor.canManage() {
		return dom.ProjectGroup{}, ErrForbidden
	}
	g.Name = strings.TrimSpace(g.Name)
	if g.Name == "" {
		return dom.ProjectGroup{}, fmt.Errorf("%w: name is required", ErrValidation)
	}
	g.Members = foldMember(g.Members, g.ManagerID)
	out, err := s.groups.Update(ctx, id, g)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return dom.ProjectGroup{}, ErrNotFound
		}
		return dom.ProjectGroup{}, err
	}
	return out, nil
}

func (s *GroupService) Delete(ctx context.Context, actor Actor, id int64) error {
	if !actor.canManage() {
		return ErrForbidden
	}
	return s.groups.Delete(ctx, id)
}

// foldMember guarantees the manager appears in the member list exactly once.
func foldMember(members []int64, managerID int64) []int64 {
	seen := make(map[int64]struct{}, len(members)+1)
	out := make([]int64, 0, len(members)+1)
	for _, id := range append([]int64{managerID}, members...) {
		if id == 0 {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

func validProjectStatus(s string) bool {
	return s == dom.ProjectActive || s == dom.ProjectOnHold || s == dom.ProjectCompleted
}
