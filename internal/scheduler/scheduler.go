// Package scheduler drives the periodic notification jobs: due/overdue
// reminders, inactivity alerts and project health refresh/alerts. Jobs run
// sequentially on a fixed cadence; one job failing never stops the others.
package scheduler

import (
	"context"
	"log"
	"sort"
	"strconv"
	"sync/atomic"
	"time"

	"taskmate/internal/config"
	"taskmate/internal/domain"
	"taskmate/internal/health"
	"taskmate/internal/notify"
)

// TaskSource is the task read model the jobs consume.
type TaskSource interface {
	DueOpen(ctx context.Context, now time.Time) ([]domain.Task, error)
	DueBetween(ctx context.Context, from, to time.Time) ([]domain.Task, error)
	Stale(ctx context.Context, cutoff time.Time) ([]domain.Task, error)
	ByProject(ctx context.Context, projectID int64) ([]domain.Task, error)
}

// ProjectSource reads projects and persists refreshed health.
type ProjectSource interface {
	GetByID(ctx context.Context, id int64) (domain.Project, error)
	ActiveOrOnHold(ctx context.Context) ([]domain.Project, error)
	UpdateHealth(ctx context.Context, id int64, h domain.Health) error
}

// Notifier is the deduplicated delivery primitive.
type Notifier interface {
	NotifyOnce(ctx context.Context, p notify.Payload) (bool, error)
}

const inactivityCutoff = 3 * 24 * time.Hour

// healthDropThreshold is the score drop that triggers a manager alert even
// when the project is not in the red zone.
const healthDropThreshold = 15

type Scheduler struct {
	tasks    TaskSource
	projects ProjectSource
	notifier Notifier

	interval time.Duration
	warmup   time.Duration
	throttle time.Duration

	// inFlight keeps a slow cycle from overlapping the next tick.
	inFlight atomic.Bool

	now func() time.Time
}

func New(tasks TaskSource, projects ProjectSource, notifier Notifier, cfg config.SchedulerConfig) *Scheduler {
	return &Scheduler{
		tasks:    tasks,
		projects: projects,
		notifier: notifier,
		interval: cfg.Interval.Duration(),
		warmup:   cfg.Warmup.Duration(),
		throttle: cfg.Throttle.Duration(),
		now:      time.Now,
	}
}

// Start launches the cadence loop: one warm-up run shortly after process
// start, then a run every interval until ctx is cancelled.
func (s *Scheduler) Start(ctx context.Context) {
	go func() {
		warm := time.NewTimer(s.warmup)
		defer warm.Stop()
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-warm.C:
				s.RunAll(ctx)
			case <-ticker.C:
				s.RunAll(ctx)
			}
		}
	}()
	log.Printf("[scheduler] running every %s (warmup %s)", s.interval, s.warmup)
}

// RunAll executes the three jobs in sequence. At most one cycle runs at a
// time; an overlapping tick is skipped, not queued.
func (s *Scheduler) RunAll(ctx context.Context) {
	if !s.inFlight.CompareAndSwap(false, true) {
		log.Printf("[scheduler] previous cycle still running, skipping tick")
		return
	}
	defer s.inFlight.Store(false)

	s.runJob(ctx, "due", s.jobDueReminders)
	s.runJob(ctx, "inactivity", s.jobInactivity)
	s.runJob(ctx, "health", s.jobHealthAlerts)
}

func (s *Scheduler) runJob(ctx context.Context, name string, fn func(context.Context) error) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("[scheduler] %s: panic: %v", name, r)
		}
	}()
	if err := fn(ctx); err != nil {
		log.Printf("[scheduler] %s: %v", name, err)
	}
}

// jobDueReminders notifies about open tasks whose due date has arrived or
// passed. Recipients: assignees when present, otherwise all project members;
// the manager always.
func (s *Scheduler) jobDueReminders(ctx context.Context) error {
	now := s.now()
	startOfDay := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())

	tasks, err := s.tasks.DueOpen(ctx, now)
	if err != nil {
		return err
	}
	for _, t := range tasks {
		proj, err := s.projects.GetByID(ctx, t.ProjectID)
		if err != nil {
			log.Printf("[scheduler] due: project %d: %v", t.ProjectID, err)
			continue
		}
		when := " today"
		if t.DueDate.Before(startOfDay) {
			when = " (overdue)"
		}
		for _, uid := range recipients(t.Assignees, proj.Members, proj.ManagerID) {
			_, err := s.notifier.NotifyOnce(ctx, notify.Payload{
				UserID: uid,
				Type:   domain.NotifDueReminder,
				Title:  "Task due: " + t.Title,
				Body:   "Task \"" + t.Title + "\" is due" + when + ".",
				Data:   taskData(t),
			})
			if err != nil {
				log.Printf("[scheduler] due: notify user %d task %d: %v", uid, t.ID, err)
			}
		}
		s.pause(ctx)
	}
	return nil
}

// jobInactivity flags in-progress tasks with no updates for three days.
func (s *Scheduler) jobInactivity(ctx context.Context) error {
	cutoff := s.now().Add(-inactivityCutoff)
	tasks, err := s.tasks.Stale(ctx, cutoff)
	if err != nil {
		return err
	}
	for _, t := range tasks {
		proj, err := s.projects.GetByID(ctx, t.ProjectID)
		if err != nil {
			log.Printf("[scheduler] inactivity: project %d: %v", t.ProjectID, err)
			continue
		}
		for _, uid := range recipients(t.Assignees, nil, proj.ManagerID) {
			_, err := s.notifier.NotifyOnce(ctx, notify.Payload{
				UserID: uid,
				Type:   domain.NotifInactivity,
				Title:  "Inactivity: " + t.Title,
				Body:   "Task \"" + t.Title + "\" has had no updates for 3+ days.",
				Data:   taskData(t),
			})
			if err != nil {
				log.Printf("[scheduler] inactivity: notify user %d task %d: %v", uid, t.ID, err)
			}
		}
		s.pause(ctx)
	}
	return nil
}

// jobHealthAlerts recomputes and persists health for every active/on-hold
// project, then alerts the manager on a sharp drop or a red score. The
// persisted refresh happens whether or not an alert fires.
func (s *Scheduler) jobHealthAlerts(ctx context.Context) error {
	now := s.now()
	projects, err := s.projects.ActiveOrOnHold(ctx)
	if err != nil {
		return err
	}
	for _, p := range projects {
		tasks, err := s.tasks.ByProject(ctx, p.ID)
		if err != nil {
			log.Printf("[scheduler] health: tasks for project %d: %v", p.ID, err)
			continue
		}
		res := health.Compute(tasks, now)

		prev := p.Health.Score
		if p.Health.UpdatedAt == nil {
			prev = 100
		}
		if err := s.projects.UpdateHealth(ctx, p.ID, domain.Health{
			Score: res.Score, Status: res.Status, UpdatedAt: &now,
		}); err != nil {
			log.Printf("[scheduler] health: persist project %d: %v", p.ID, err)
			continue
		}

		drop := prev - res.Score
		if (drop < healthDropThreshold && res.Status != domain.HealthRed) || p.ManagerID == 0 {
			continue
		}
		reason := "red zone"
		if drop >= healthDropThreshold {
			reason = "drop ≥15"
		}
		_, err = s.notifier.NotifyOnce(ctx, notify.Payload{
			UserID: p.ManagerID,
			Type:   domain.NotifHealthAlert,
			Title:  "Project health alert: " + p.Title,
			Body: "Health " + strconv.Itoa(prev) + " -> " + strconv.Itoa(res.Score) +
				" (" + res.Status + "). Trigger: " + reason + ".",
			Data: map[string]string{
				domain.DataProjectID: strconv.FormatInt(p.ID, 10),
				"drop":               strconv.Itoa(drop),
				"prev":               strconv.Itoa(prev),
				"score":              strconv.Itoa(res.Score),
				"status":             res.Status,
			},
		})
		if err != nil {
			log.Printf("[scheduler] health: notify manager %d project %d: %v", p.ManagerID, p.ID, err)
		}
		s.pause(ctx)
	}
	return nil
}

// TriggerDue generates overdue and due-tomorrow notifications on demand,
// through the same dedup and eligibility rules as the periodic jobs. Returns
// the number of notifications actually created.
func (s *Scheduler) TriggerDue(ctx context.Context) (int, error) {
	now := s.now()
	overdue, err := s.tasks.DueOpen(ctx, now)
	if err != nil {
		return 0, err
	}
	dueSoon, err := s.tasks.DueBetween(ctx, now, now.Add(24*time.Hour))
	if err != nil {
		return 0, err
	}

	created := 0
	emit := func(t domain.Task, title string) {
		users := t.Assignees
		if len(users) == 0 && t.CreatedBy != 0 {
			users = []int64{t.CreatedBy}
		}
		for _, uid := range users {
			ok, err := s.notifier.NotifyOnce(ctx, notify.Payload{
				UserID: uid,
				Type:   domain.NotifAlert,
				Title:  title,
				Body:   t.Title,
				Data:   map[string]string{domain.DataTaskID: strconv.FormatInt(t.ID, 10)},
			})
			if err != nil {
				log.Printf("[scheduler] trigger: notify user %d task %d: %v", uid, t.ID, err)
				continue
			}
			if ok {
				created++
			}
		}
	}
	for _, t := range overdue {
		emit(t, "Task overdue")
	}
	for _, t := range dueSoon {
		emit(t, "Task due soon")
	}
	return created, nil
}

// pause is the courtesy throttle between processed items.
func (s *Scheduler) pause(ctx context.Context) {
	if s.throttle <= 0 {
		return
	}
	t := time.NewTimer(s.throttle)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}

// recipients builds the de-duplicated recipient set: base assignees, falling
// back to members when no one is assigned, plus the manager.
func recipients(assignees, members []int64, managerID int64) []int64 {
	base := assignees
	if len(base) == 0 {
		base = members
	}
	set := make(map[int64]struct{}, len(base)+1)
	for _, id := range base {
		set[id] = struct{}{}
	}
	if managerID != 0 {
		set[managerID] = struct{}{}
	}
	out := make([]int64, 0, len(set))
	for id := range set {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func taskData(t domain.Task) map[string]string {
	return map[string]string{
		domain.DataTaskID:    strconv.FormatInt(t.ID, 10),
		domain.DataProjectID: strconv.FormatInt(t.ProjectID, 10),
	}
}
