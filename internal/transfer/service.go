// Package transfer copies tasks between views and registers the copies as one
// linked task group. Service does the persistence; Client is the facade that
// also refreshes the affected view stores.
package transfer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/baiirun/viewlink/internal/db"
	"github.com/baiirun/viewlink/internal/model"
	"github.com/baiirun/viewlink/internal/propagate"
	"github.com/baiirun/viewlink/internal/store"
	"github.com/baiirun/viewlink/internal/telemetry"
)

const scopeName = "github.com/baiirun/viewlink/transfer"

// LinkRegistry is the part of the link repository a transfer writes through.
type LinkRegistry interface {
	FindLinkByViewAndOriginalID(ctx context.Context, view model.ViewType, originalID string) (*model.TaskLink, error)
	FindLinksByUnifiedID(ctx context.Context, id model.UnifiedID) ([]model.TaskLink, error)
	CreateLinkGroup(ctx context.Context, origin model.LinkRef, targets []model.LinkRef, syncEnabled bool) (*model.TaskLinkGroup, error)
	ExtendLinkGroup(ctx context.Context, id model.UnifiedID, targets []model.LinkRef, syncEnabled bool) (*model.TaskLinkGroup, error)
}

// Request asks for every task in TaskIDs to be copied into every view in
// TargetViews.
type Request struct {
	SourceView  model.ViewType   `json:"source_view"`
	TaskIDs     []string         `json:"task_ids"`
	TargetViews []model.ViewType `json:"target_views"`
	SyncEnabled bool             `json:"sync_enabled"`
}

// Transferred is one copy that was created and linked.
type Transferred struct {
	TaskID     string         `json:"task_id"`
	TargetView model.ViewType `json:"target_view"`
	NewID      string         `json:"new_id"`
}

// Result reports a transfer. Success means at least one copy was made;
// per-target failures are listed in Errors.
type Result struct {
	Success     bool          `json:"success"`
	Transferred []Transferred `json:"transferred"`
	Errors      []string      `json:"errors"`
}

type Options struct {
	// RejectDuplicateViews reports a target view the task's group already has
	// as an error. When false such targets are skipped quietly.
	RejectDuplicateViews bool
}

type Service struct {
	links  LinkRegistry
	stores *store.Registry
	mapper *propagate.Mapper
	opts   Options
	log    *slog.Logger
	now    func() time.Time

	tracer      trace.Tracer
	transferred metric.Int64Counter
	failed      metric.Int64Counter
}

func NewService(links LinkRegistry, stores *store.Registry, mapper *propagate.Mapper, opts Options, log *slog.Logger) *Service {
	if log == nil {
		log = slog.Default()
	}
	m := telemetry.Meter(scopeName)
	return &Service{
		links:       links,
		stores:      stores,
		mapper:      mapper,
		opts:        opts,
		log:         log,
		now:         time.Now,
		tracer:      telemetry.Tracer(scopeName),
		transferred: telemetry.Counter(m, "viewlink.transfer.tasks", "Task copies created by transfer"),
		failed:      telemetry.Counter(m, "viewlink.transfer.errors", "Transfer targets that failed"),
	}
}

// TransferTasks copies each task into each target view, task-major in the
// order given, and links every task with its copies.
//
// A failing target is recorded in Result.Errors and does not stop the other
// targets or tasks. If linking a task fails, the copies just made for it are
// deleted again. The returned error is reserved for storage failures, in
// which case the partial Result is returned alongside it.
func (s *Service) TransferTasks(ctx context.Context, req Request) (*Result, error) {
	ctx, span := s.tracer.Start(ctx, "transfer.TransferTasks", trace.WithAttributes(
		attribute.String("viewlink.source_view", string(req.SourceView)),
		attribute.Int("viewlink.task_count", len(req.TaskIDs)),
		attribute.Int("viewlink.target_count", len(req.TargetViews)),
	))
	defer span.End()

	res, err := s.transferTasks(ctx, req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return res, err
}

func (s *Service) transferTasks(ctx context.Context, req Request) (*Result, error) {
	res := &Result{Transferred: []Transferred{}, Errors: []string{}}

	src, err := s.stores.Store(req.SourceView)
	if err != nil {
		return res, err
	}

	for _, taskID := range req.TaskIDs {
		if err := s.transferOne(ctx, src, taskID, req, res); err != nil {
			res.Success = len(res.Transferred) > 0
			return res, err
		}
	}

	res.Success = len(res.Transferred) > 0
	s.log.Info("transfer finished",
		"source_view", req.SourceView,
		"tasks", len(req.TaskIDs),
		"transferred", len(res.Transferred),
		"errors", len(res.Errors))
	return res, nil
}

func (s *Service) transferOne(ctx context.Context, src store.Store, taskID string, req Request, res *Result) error {
	record, err := src.Get(ctx, taskID)
	if errors.Is(err, db.ErrNotFound) {
		s.fail(ctx, res, req.SourceView, fmt.Sprintf("%s task %s not found", req.SourceView, taskID))
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read %s task %s: %w", req.SourceView, taskID, err)
	}

	existing, present, err := s.existingGroup(ctx, req.SourceView, taskID)
	if err != nil {
		return err
	}

	var created []model.LinkRef
	for _, target := range req.TargetViews {
		if target == req.SourceView {
			continue
		}
		if present[target] {
			if s.opts.RejectDuplicateViews {
				s.fail(ctx, res, target, fmt.Sprintf("%s task %s is already in %s (group %s)",
					req.SourceView, taskID, target, existing.UnifiedID))
			}
			continue
		}

		newID, err := s.createCopy(ctx, record, target)
		if err != nil {
			s.log.Warn("transfer target failed",
				"view", target, "task_id", taskID, "error", err)
			s.fail(ctx, res, target, fmt.Sprintf("%s task %s -> %s: %v", req.SourceView, taskID, target, err))
			continue
		}
		created = append(created, model.LinkRef{ViewType: target, OriginalID: newID})
	}

	if len(created) == 0 {
		return nil
	}

	origin := model.LinkRef{ViewType: req.SourceView, OriginalID: taskID}
	var group *model.TaskLinkGroup
	if existing == nil {
		group, err = s.links.CreateLinkGroup(ctx, origin, created, req.SyncEnabled)
	} else {
		group, err = s.links.ExtendLinkGroup(ctx, existing.UnifiedID, created, req.SyncEnabled)
	}
	if err != nil {
		s.compensate(ctx, created)
		if errors.Is(err, db.ErrConstraintViolation) {
			s.fail(ctx, res, req.SourceView, fmt.Sprintf("%s task %s: %v", req.SourceView, taskID, err))
			return nil
		}
		return fmt.Errorf("failed to link %s task %s: %w", req.SourceView, taskID, err)
	}

	linked, unlinked := splitLinked(group, created)
	if len(unlinked) > 0 {
		s.compensate(ctx, unlinked)
		for _, c := range unlinked {
			s.fail(ctx, res, c.ViewType, fmt.Sprintf("%s task %s -> %s: copy was not linked",
				req.SourceView, taskID, c.ViewType))
		}
	}
	for _, c := range linked {
		res.Transferred = append(res.Transferred, Transferred{TaskID: taskID, TargetView: c.ViewType, NewID: c.OriginalID})
		s.transferred.Add(ctx, 1, metric.WithAttributes(
			attribute.String("viewlink.from", string(req.SourceView)),
			attribute.String("viewlink.to", string(c.ViewType)),
		))
	}
	return nil
}

// splitLinked separates the copies the group actually registered from those
// it skipped.
func splitLinked(group *model.TaskLinkGroup, created []model.LinkRef) (linked, unlinked []model.LinkRef) {
	members := map[model.LinkRef]bool{}
	if group != nil {
		for _, l := range group.Links {
			members[model.LinkRef{ViewType: l.ViewType, OriginalID: l.OriginalID}] = true
		}
	}
	for _, c := range created {
		if members[c] {
			linked = append(linked, c)
		} else {
			unlinked = append(unlinked, c)
		}
	}
	return linked, unlinked
}

// existingGroup returns the source's link and the views its group already
// covers. A task that was never transferred has neither.
func (s *Service) existingGroup(ctx context.Context, view model.ViewType, taskID string) (*model.TaskLink, map[model.ViewType]bool, error) {
	self, err := s.links.FindLinkByViewAndOriginalID(ctx, view, taskID)
	if err != nil {
		return nil, nil, err
	}
	if self == nil {
		return nil, nil, nil
	}
	links, err := s.links.FindLinksByUnifiedID(ctx, self.UnifiedID)
	if err != nil {
		return nil, nil, err
	}
	present := make(map[model.ViewType]bool, len(links))
	for _, l := range links {
		present[l.ViewType] = true
	}
	return self, present, nil
}

func (s *Service) createCopy(ctx context.Context, record model.Record, target model.ViewType) (string, error) {
	st, err := s.stores.Store(target)
	if err != nil {
		return "", err
	}
	draft, err := s.translate(ctx, record, target)
	if err != nil {
		return "", err
	}
	rec, err := st.Create(ctx, draft)
	if err != nil {
		return "", err
	}
	return rec.RecordID(), nil
}

// compensate removes copies whose link registration failed.
func (s *Service) compensate(ctx context.Context, created []model.LinkRef) {
	for _, c := range created {
		st, err := s.stores.Store(c.ViewType)
		if err == nil {
			err = st.Delete(ctx, c.OriginalID)
		}
		if err != nil {
			s.log.Error("failed to remove unlinked copy",
				"view", c.ViewType, "task_id", c.OriginalID, "error", err)
		}
	}
}

func (s *Service) fail(ctx context.Context, res *Result, view model.ViewType, msg string) {
	res.Errors = append(res.Errors, msg)
	s.failed.Add(ctx, 1, metric.WithAttributes(attribute.String("viewlink.view", string(view))))
}
