package model

import (
	"fmt"
	"strings"
	"time"
)

// UnifiedID is the cross-view identity of a task group, rendered as
// "{originView}:{originOriginalId}". It never changes once minted.
type UnifiedID string

// NewUnifiedID mints the identity for a task first created in view.
func NewUnifiedID(view ViewType, originalID string) UnifiedID {
	return UnifiedID(string(view) + ":" + originalID)
}

// ParseUnifiedID splits a unified id into its origin view and record id.
func ParseUnifiedID(s string) (ViewType, string, error) {
	view, id, ok := strings.Cut(s, ":")
	if !ok || id == "" {
		return "", "", fmt.Errorf("invalid unified id: %q (want view:id)", s)
	}
	v := ViewType(view)
	if !v.IsValid() {
		return "", "", fmt.Errorf("invalid unified id: %q has unknown view %q", s, view)
	}
	return v, id, nil
}

func (u UnifiedID) String() string {
	return string(u)
}

// TaskLink records that one concrete record in one view belongs to a
// unified task group.
type TaskLink struct {
	ID           string
	UnifiedID    UnifiedID
	ViewType     ViewType
	OriginalID   string
	SyncEnabled  bool
	CreatedAt    time.Time
	LastSyncedAt time.Time
}

// NewLink is the input for creating a single TaskLink.
type NewLink struct {
	UnifiedID   UnifiedID
	ViewType    ViewType
	OriginalID  string
	SyncEnabled bool
}

// LinkRef points at a concrete view-native record.
type LinkRef struct {
	ViewType   ViewType
	OriginalID string
}

// LinkUpdate is a partial update. Only these two fields of a link are mutable.
type LinkUpdate struct {
	SyncEnabled  *bool
	LastSyncedAt *time.Time
}

// IsEmpty reports whether the update carries no mutable field.
func (u LinkUpdate) IsEmpty() bool {
	return u.SyncEnabled == nil && u.LastSyncedAt == nil
}

// TaskLinkGroup is the read-time aggregate of all links sharing a unified id.
// It is never stored on its own.
type TaskLinkGroup struct {
	UnifiedID UnifiedID
	Links     []TaskLink
	// SyncEnabled is true if any member link wants sync.
	SyncEnabled bool
}

// NewTaskLinkGroup builds a group from links already ordered oldest first.
func NewTaskLinkGroup(id UnifiedID, links []TaskLink) TaskLinkGroup {
	g := TaskLinkGroup{UnifiedID: id, Links: links}
	for _, l := range links {
		if l.SyncEnabled {
			g.SyncEnabled = true
			break
		}
	}
	return g
}

// Link returns the member link for view, if present.
func (g TaskLinkGroup) Link(view ViewType) (TaskLink, bool) {
	for _, l := range g.Links {
		if l.ViewType == view {
			return l, true
		}
	}
	return TaskLink{}, false
}

// Views returns the views present in the group, oldest link first.
func (g TaskLinkGroup) Views() []ViewType {
	views := make([]ViewType, 0, len(g.Links))
	for _, l := range g.Links {
		views = append(views, l.ViewType)
	}
	return views
}
