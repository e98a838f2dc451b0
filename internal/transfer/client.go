package transfer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/baiirun/viewlink/internal/db"
	"github.com/baiirun/viewlink/internal/model"
	"github.com/baiirun/viewlink/internal/propagate"
	"github.com/baiirun/viewlink/internal/store"
)

// ClientLinks is the link repository surface the client needs beyond what
// the service writes through.
type ClientLinks interface {
	FindLinkByViewAndOriginalID(ctx context.Context, view model.ViewType, originalID string) (*model.TaskLink, error)
	FindLinksByUnifiedID(ctx context.Context, id model.UnifiedID) ([]model.TaskLink, error)
	UpdateLink(ctx context.Context, id string, upd model.LinkUpdate) (*model.TaskLink, error)
	UpdateSyncStatus(ctx context.Context, id model.UnifiedID, enabled bool) (int64, error)
	DeleteLinkByRef(ctx context.Context, view model.ViewType, originalID string) (bool, error)
	RestoreLink(ctx context.Context, link model.TaskLink) error
	DeleteLinksByUnifiedID(ctx context.Context, id model.UnifiedID) (int64, error)
}

// Client is the single entry point for transfer and sync. Every method
// persists first and then refreshes the view stores it touched. Failures come
// back as *UserError after being logged.
type Client struct {
	svc    *Service
	links  ClientLinks
	stores *store.Registry
	prop   *propagate.Propagator
	log    *slog.Logger
}

func NewClient(svc *Service, links ClientLinks, stores *store.Registry, prop *propagate.Propagator, log *slog.Logger) *Client {
	if log == nil {
		log = slog.Default()
	}
	return &Client{svc: svc, links: links, stores: stores, prop: prop, log: log}
}

// TransferTasks runs a transfer and, if anything was copied, refreshes the
// source view and every view that received a copy.
func (c *Client) TransferTasks(ctx context.Context, req Request) (*Result, error) {
	res, err := c.svc.TransferTasks(ctx, req)
	if err != nil {
		c.log.Error("transfer failed", "source_view", req.SourceView, "error", err)
		return res, userError("Failed to transfer tasks", err)
	}
	if !res.Success || len(res.Transferred) == 0 {
		return res, nil
	}

	affected := []model.ViewType{req.SourceView}
	for _, t := range res.Transferred {
		affected = append(affected, t.TargetView)
	}
	if err := c.refresh(ctx, affected); err != nil {
		c.log.Error("refresh after transfer failed", "source_view", req.SourceView, "error", err)
		return res, userError("Tasks were transferred but the views could not be refreshed", err)
	}
	return res, nil
}

// SyncTask mirrors (view, id) into its linked siblings. The views refreshed
// afterwards are those whose links had sync enabled when the group was read,
// before any write; a view with sync off keeps its stale state.
func (c *Client) SyncTask(ctx context.Context, view model.ViewType, id string) (*propagate.Result, error) {
	self, err := c.links.FindLinkByViewAndOriginalID(ctx, view, id)
	if err != nil {
		c.log.Error("sync lookup failed", "view", view, "task_id", id, "error", err)
		return nil, userError("Failed to sync task", err)
	}
	if self == nil {
		return &propagate.Result{}, nil
	}

	links, err := c.links.FindLinksByUnifiedID(ctx, self.UnifiedID)
	if err != nil {
		c.log.Error("sync lookup failed", "unified_id", self.UnifiedID, "error", err)
		return nil, userError("Failed to sync task", err)
	}
	var enabled []model.ViewType
	for _, l := range links {
		if l.SyncEnabled {
			enabled = append(enabled, l.ViewType)
		}
	}

	res, syncErr := c.prop.Propagate(ctx, view, id)
	if err := c.refresh(ctx, enabled); err != nil {
		c.log.Error("refresh after sync failed", "unified_id", self.UnifiedID, "error", err)
		if syncErr == nil {
			syncErr = err
		}
	}
	if syncErr != nil {
		c.log.Error("sync failed", "view", view, "task_id", id, "unified_id", self.UnifiedID, "error", syncErr)
		return res, userError("Failed to sync task", syncErr)
	}
	return res, nil
}

// ToggleSync turns sync on or off for one record's link. No store is
// refreshed since no view field changes.
func (c *Client) ToggleSync(ctx context.Context, view model.ViewType, id string, enabled bool) (*model.TaskLink, error) {
	link, err := c.links.FindLinkByViewAndOriginalID(ctx, view, id)
	if err == nil && link == nil {
		err = fmt.Errorf("%s task %s is not linked: %w", view, id, db.ErrNotFound)
	}
	if err == nil {
		link, err = c.links.UpdateLink(ctx, link.ID, model.LinkUpdate{SyncEnabled: &enabled})
		if err == nil && link == nil {
			err = fmt.Errorf("%s task %s was unlinked: %w", view, id, db.ErrNotFound)
		}
	}
	if err != nil {
		c.log.Error("toggle sync failed", "view", view, "task_id", id, "error", err)
		if errors.Is(err, db.ErrNotFound) {
			return nil, userError("Task is not linked to other views", err)
		}
		return nil, userError("Failed to change sync setting", err)
	}
	return link, nil
}

// ToggleGroupSync sets sync for every link of a group and returns how many
// links changed.
func (c *Client) ToggleGroupSync(ctx context.Context, id model.UnifiedID, enabled bool) (int64, error) {
	n, err := c.links.UpdateSyncStatus(ctx, id, enabled)
	if err == nil && n == 0 {
		err = fmt.Errorf("link group not found: %s: %w", id, db.ErrNotFound)
	}
	if err != nil {
		c.log.Error("toggle group sync failed", "unified_id", id, "error", err)
		if errors.Is(err, db.ErrNotFound) {
			return 0, userError("Link group not found", err)
		}
		return 0, userError("Failed to change sync setting", err)
	}
	return n, nil
}

// Group returns the link group of a record, or nil if it is not linked.
func (c *Client) Group(ctx context.Context, view model.ViewType, id string) (*model.TaskLinkGroup, error) {
	self, err := c.links.FindLinkByViewAndOriginalID(ctx, view, id)
	if err != nil {
		c.log.Error("link lookup failed", "view", view, "task_id", id, "error", err)
		return nil, userError("Failed to read links", err)
	}
	if self == nil {
		return nil, nil
	}
	links, err := c.links.FindLinksByUnifiedID(ctx, self.UnifiedID)
	if err != nil {
		c.log.Error("link lookup failed", "unified_id", self.UnifiedID, "error", err)
		return nil, userError("Failed to read links", err)
	}
	g := model.NewTaskLinkGroup(self.UnifiedID, links)
	return &g, nil
}

// DeleteTask deletes a view record together with its link. Siblings keep
// their records and stay linked to each other. The link goes first so no link
// ever points at a deleted record; it is put back if the record survives.
func (c *Client) DeleteTask(ctx context.Context, view model.ViewType, id string) error {
	st, err := c.stores.Store(view)
	var link *model.TaskLink
	if err == nil {
		link, err = c.links.FindLinkByViewAndOriginalID(ctx, view, id)
	}
	if err == nil && link != nil {
		_, err = c.links.DeleteLinkByRef(ctx, view, id)
	}
	if err == nil {
		if err = st.Delete(ctx, id); err != nil && link != nil {
			if rerr := c.links.RestoreLink(ctx, *link); rerr != nil {
				c.log.Error("failed to restore link", "view", view, "task_id", id, "error", rerr)
			}
		}
	}
	if err == nil {
		err = st.Fetch(ctx)
	}
	if err != nil {
		c.log.Error("delete task failed", "view", view, "task_id", id, "error", err)
		return userError("Failed to delete task", err)
	}
	return nil
}

// DeleteGroup unlinks every record of a group. The records themselves stay.
func (c *Client) DeleteGroup(ctx context.Context, id model.UnifiedID) (int64, error) {
	n, err := c.links.DeleteLinksByUnifiedID(ctx, id)
	if err != nil {
		c.log.Error("delete link group failed", "unified_id", id, "error", err)
		return 0, userError("Failed to delete link group", err)
	}
	return n, nil
}

// refresh fetches each distinct view's store concurrently.
func (c *Client) refresh(ctx context.Context, views []model.ViewType) error {
	seen := make(map[model.ViewType]bool, len(views))
	var targets []store.Store
	for _, v := range views {
		if seen[v] {
			continue
		}
		seen[v] = true
		st, err := c.stores.Store(v)
		if err != nil {
			return err
		}
		targets = append(targets, st)
	}

	g, gctx := errgroup.WithContext(ctx)
	for _, st := range targets {
		st := st
		g.Go(func() error {
			if err := st.Fetch(gctx); err != nil {
				return fmt.Errorf("failed to refresh %s: %w", st.View(), err)
			}
			return nil
		})
	}
	return g.Wait()
}
