package propagate

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

	"github.com/baiirun/viewlink/internal/model"
	"github.com/baiirun/viewlink/internal/store"
	"github.com/baiirun/viewlink/internal/telemetry"
)

const scopeName = "github.com/baiirun/viewlink/propagate"

// LinkRepository is the part of the link registry propagation uses.
type LinkRepository interface {
	FindLinkByViewAndOriginalID(ctx context.Context, view model.ViewType, originalID string) (*model.TaskLink, error)
	FindLinksByUnifiedID(ctx context.Context, id model.UnifiedID) ([]model.TaskLink, error)
	UpdateLink(ctx context.Context, id string, upd model.LinkUpdate) (*model.TaskLink, error)
}

// SkipReason says why a sibling was not written.
type SkipReason string

const (
	SkipSyncDisabled SkipReason = "sync_disabled"
	SkipUnsupported  SkipReason = "unsupported_pair"
)

// Skipped is a sibling that propagation deliberately left alone.
type Skipped struct {
	Link   model.TaskLink
	Reason SkipReason
}

// Result reports what one propagation did to each sibling.
type Result struct {
	UnifiedID model.UnifiedID
	Synced    []model.TaskLink
	Skipped   []Skipped
	Failed    []Failure
}

// Failure is a sibling whose write failed.
type Failure struct {
	Link model.TaskLink
	Err  error
}

type propagationKey struct{}

// InPropagation reports whether ctx belongs to a write made by propagation.
func InPropagation(ctx context.Context) bool {
	v, _ := ctx.Value(propagationKey{}).(bool)
	return v
}

func withPropagation(ctx context.Context) context.Context {
	return context.WithValue(ctx, propagationKey{}, true)
}

// Propagator mirrors a changed record into its linked siblings.
type Propagator struct {
	links  LinkRepository
	stores *store.Registry
	mapper *Mapper
	log    *slog.Logger
	now    func() time.Time

	tracer  trace.Tracer
	synced  metric.Int64Counter
	skipped metric.Int64Counter
}

func NewPropagator(links LinkRepository, stores *store.Registry, mapper *Mapper, log *slog.Logger) *Propagator {
	if log == nil {
		log = slog.Default()
	}
	m := telemetry.Meter(scopeName)
	return &Propagator{
		links:   links,
		stores:  stores,
		mapper:  mapper,
		log:     log,
		now:     time.Now,
		tracer:  telemetry.Tracer(scopeName),
		synced:  telemetry.Counter(m, "viewlink.sync.propagations", "Sibling records written by sync"),
		skipped: telemetry.Counter(m, "viewlink.sync.skipped", "Siblings left alone by sync"),
	}
}

// Propagate mirrors the current state of (view, id) into every sibling whose
// link has sync enabled and whose view has a mapping from view.
//
// Propagation is one hop: writes it makes carry a context marker, and a
// Propagate call under that marker does nothing, so a todo linked to a WBS
// node linked back to the todo cannot ping-pong. Nothing happens if the
// record is unlinked or its own link has sync disabled.
//
// The returned error is non-nil for lookup failures, and joins the per-sibling
// failures (e.g. *LaneNotFoundError) when any sibling write failed.
func (p *Propagator) Propagate(ctx context.Context, view model.ViewType, id string) (*Result, error) {
	if InPropagation(ctx) {
		p.log.Debug("nested propagation suppressed", "view", view, "task_id", id)
		return &Result{}, nil
	}

	ctx, span := p.tracer.Start(ctx, "propagate.Propagate", trace.WithAttributes(
		attribute.String("viewlink.view", string(view)),
		attribute.String("viewlink.task_id", id),
	))
	defer span.End()

	res, err := p.propagate(ctx, view, id)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return res, err
}

func (p *Propagator) propagate(ctx context.Context, view model.ViewType, id string) (*Result, error) {
	self, err := p.links.FindLinkByViewAndOriginalID(ctx, view, id)
	if err != nil {
		return nil, err
	}
	if self == nil {
		return &Result{}, nil
	}

	res := &Result{UnifiedID: self.UnifiedID}
	if !self.SyncEnabled {
		p.log.Debug("source link has sync disabled", "view", view, "task_id", id)
		return res, nil
	}

	siblings, err := p.links.FindLinksByUnifiedID(ctx, self.UnifiedID)
	if err != nil {
		return nil, err
	}

	srcStore, err := p.stores.Store(view)
	if err != nil {
		return nil, err
	}
	src, err := srcStore.Get(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s %s: %w", view, id, err)
	}

	writeCtx := withPropagation(ctx)
	for _, sib := range siblings {
		if sib.ID == self.ID {
			continue
		}
		attrs := metric.WithAttributes(
			attribute.String("viewlink.from", string(view)),
			attribute.String("viewlink.to", string(sib.ViewType)),
		)
		if !sib.SyncEnabled {
			res.Skipped = append(res.Skipped, Skipped{Link: sib, Reason: SkipSyncDisabled})
			p.skipped.Add(ctx, 1, attrs)
			continue
		}
		if !Supports(view, sib.ViewType) {
			res.Skipped = append(res.Skipped, Skipped{Link: sib, Reason: SkipUnsupported})
			p.skipped.Add(ctx, 1, attrs)
			continue
		}

		if err := p.write(writeCtx, src, sib); err != nil {
			p.log.Warn("sync to sibling failed",
				"unified_id", self.UnifiedID, "view", sib.ViewType, "task_id", sib.OriginalID, "error", err)
			res.Failed = append(res.Failed, Failure{Link: sib, Err: err})
			continue
		}
		res.Synced = append(res.Synced, sib)
		p.synced.Add(ctx, 1, attrs)
	}

	if len(res.Failed) > 0 {
		errs := make([]error, 0, len(res.Failed))
		for _, f := range res.Failed {
			errs = append(errs, fmt.Errorf("%s %s: %w", f.Link.ViewType, f.Link.OriginalID, f.Err))
		}
		return res, errors.Join(errs...)
	}
	return res, nil
}

func (p *Propagator) write(ctx context.Context, src model.Record, sib model.TaskLink) error {
	draft, err := p.mapper.Convert(ctx, src, sib.ViewType)
	if err != nil {
		return err
	}
	target, err := p.stores.Store(sib.ViewType)
	if err != nil {
		return err
	}
	if err := target.Apply(ctx, sib.OriginalID, draft); err != nil {
		return err
	}
	now := p.now()
	if _, err := p.links.UpdateLink(ctx, sib.ID, model.LinkUpdate{LastSyncedAt: &now}); err != nil {
		return fmt.Errorf("failed to stamp last sync: %w", err)
	}
	return nil
}
