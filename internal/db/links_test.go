package db

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/baiirun/viewlink/internal/model"
)

func TestCreateLink(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	uid := model.NewUnifiedID(model.ViewTodo, "td-1")
	link, err := db.CreateLink(ctx, model.NewLink{
		UnifiedID: uid, ViewType: model.ViewTodo, OriginalID: "td-1", SyncEnabled: true,
	})
	require.NoError(t, err)
	assert.NotEmpty(t, link.ID)
	assert.Equal(t, uid, link.UnifiedID)
	assert.True(t, link.SyncEnabled)
	assert.False(t, link.CreatedAt.IsZero())
}

func TestCreateLink_Duplicate(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	in := model.NewLink{
		UnifiedID: model.NewUnifiedID(model.ViewTodo, "td-1"), ViewType: model.ViewTodo, OriginalID: "td-1",
	}
	_, err := db.CreateLink(ctx, in)
	require.NoError(t, err)

	// Same (view, original id) under another group is still a duplicate.
	in.UnifiedID = model.NewUnifiedID(model.ViewWBS, "wb-9")
	_, err = db.CreateLink(ctx, in)
	assert.ErrorIs(t, err, ErrConstraintViolation)
}

func TestCreateLink_SecondLinkForSameViewInGroup(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	uid := model.NewUnifiedID(model.ViewTodo, "td-1")
	_, err := db.CreateLink(ctx, model.NewLink{UnifiedID: uid, ViewType: model.ViewWBS, OriginalID: "wb-1"})
	require.NoError(t, err)

	_, err = db.CreateLink(ctx, model.NewLink{UnifiedID: uid, ViewType: model.ViewWBS, OriginalID: "wb-2"})
	assert.ErrorIs(t, err, ErrConstraintViolation)
}

func TestCreateLink_Invalid(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	tests := []struct {
		name string
		in   model.NewLink
	}{
		{"bad view", model.NewLink{UnifiedID: "todo:1", ViewType: "calendar", OriginalID: "1"}},
		{"no original id", model.NewLink{UnifiedID: "todo:1", ViewType: model.ViewTodo}},
		{"no unified id", model.NewLink{ViewType: model.ViewTodo, OriginalID: "1"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := db.CreateLink(ctx, tt.in)
			assert.Error(t, err)
		})
	}
}

func TestFindLinkByViewAndOriginalID_RoundTrip(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	created, err := db.CreateLink(ctx, model.NewLink{
		UnifiedID: model.NewUnifiedID(model.ViewKanban, "kb-1"), ViewType: model.ViewKanban, OriginalID: "kb-1",
	})
	require.NoError(t, err)

	got, err := db.FindLinkByViewAndOriginalID(ctx, model.ViewKanban, "kb-1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, created.ID, got.ID)
	assert.Equal(t, created.UnifiedID, got.UnifiedID)
	assert.Equal(t, created.SyncEnabled, got.SyncEnabled)
	assert.WithinDuration(t, created.CreatedAt, got.CreatedAt, time.Millisecond)

	group, err := db.FindLinksByUnifiedID(ctx, created.UnifiedID)
	require.NoError(t, err)
	require.Len(t, group, 1)
	assert.Equal(t, created.ID, group[0].ID)
}

func TestFindLinkByViewAndOriginalID_NotLinked(t *testing.T) {
	db := setupTestDB(t)

	got, err := db.FindLinkByViewAndOriginalID(context.Background(), model.ViewTodo, "nope")
	assert.NoError(t, err)
	assert.Nil(t, got)
}

func TestFindLinksByUnifiedID_Unknown(t *testing.T) {
	db := setupTestDB(t)

	links, err := db.FindLinksByUnifiedID(context.Background(), "todo:nope")
	assert.NoError(t, err)
	assert.Empty(t, links)
}

func TestUpdateLink(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	link, err := db.CreateLink(ctx, model.NewLink{
		UnifiedID: "todo:td-1", ViewType: model.ViewTodo, OriginalID: "td-1", SyncEnabled: true,
	})
	require.NoError(t, err)

	off := false
	synced := time.Now().Add(time.Hour).UTC()
	got, err := db.UpdateLink(ctx, link.ID, model.LinkUpdate{SyncEnabled: &off, LastSyncedAt: &synced})
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.False(t, got.SyncEnabled)
	assert.WithinDuration(t, synced, got.LastSyncedAt, time.Millisecond)
	// Untouched fields survive
	assert.Equal(t, link.OriginalID, got.OriginalID)
	assert.Equal(t, link.UnifiedID, got.UnifiedID)
}

func TestUpdateLink_EmptyIsNoop(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	link, err := db.CreateLink(ctx, model.NewLink{
		UnifiedID: "todo:td-1", ViewType: model.ViewTodo, OriginalID: "td-1", SyncEnabled: true,
	})
	require.NoError(t, err)

	got, err := db.UpdateLink(ctx, link.ID, model.LinkUpdate{})
	assert.NoError(t, err)
	assert.Nil(t, got)

	after, err := db.GetLink(ctx, link.ID)
	require.NoError(t, err)
	assert.True(t, after.SyncEnabled)
}

func TestUpdateLink_NotFound(t *testing.T) {
	db := setupTestDB(t)

	on := true
	got, err := db.UpdateLink(context.Background(), "missing", model.LinkUpdate{SyncEnabled: &on})
	assert.NoError(t, err)
	assert.Nil(t, got)
}

func TestUpdateSyncStatus(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	group, err := db.CreateLinkGroup(ctx,
		model.LinkRef{ViewType: model.ViewTodo, OriginalID: "td-1"},
		[]model.LinkRef{{ViewType: model.ViewWBS, OriginalID: "wb-1"}, {ViewType: model.ViewKanban, OriginalID: "kb-1"}},
		true)
	require.NoError(t, err)

	n, err := db.UpdateSyncStatus(ctx, group.UnifiedID, false)
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)

	after, err := db.FindGroup(ctx, group.UnifiedID)
	require.NoError(t, err)
	assert.False(t, after.SyncEnabled)
	for _, l := range after.Links {
		assert.False(t, l.SyncEnabled, "link %s", l.ViewType)
	}
}

func TestDeleteLink(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	link, err := db.CreateLink(ctx, model.NewLink{UnifiedID: "todo:td-1", ViewType: model.ViewTodo, OriginalID: "td-1"})
	require.NoError(t, err)

	require.NoError(t, db.DeleteLink(ctx, link.ID))
	assert.ErrorIs(t, db.DeleteLink(ctx, link.ID), ErrNotFound)

	got, err := db.FindLinkByViewAndOriginalID(ctx, model.ViewTodo, "td-1")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestDeleteLinksByUnifiedID_ReturnsCount(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	group, err := db.CreateLinkGroup(ctx,
		model.LinkRef{ViewType: model.ViewWBS, OriginalID: "wb-1"},
		[]model.LinkRef{{ViewType: model.ViewTodo, OriginalID: "td-1"}, {ViewType: model.ViewGantt, OriginalID: "gt-1"}},
		false)
	require.NoError(t, err)

	n, err := db.DeleteLinksByUnifiedID(ctx, group.UnifiedID)
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)

	n, err = db.DeleteLinksByUnifiedID(ctx, group.UnifiedID)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestDeleteLinkByRef(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	_, err := db.CreateLink(ctx, model.NewLink{UnifiedID: "todo:td-1", ViewType: model.ViewTodo, OriginalID: "td-1"})
	require.NoError(t, err)

	removed, err := db.DeleteLinkByRef(ctx, model.ViewTodo, "td-1")
	require.NoError(t, err)
	assert.True(t, removed)

	removed, err = db.DeleteLinkByRef(ctx, model.ViewTodo, "td-1")
	require.NoError(t, err)
	assert.False(t, removed)
}

func TestCreateLinkGroup_SelfLinkFirst(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	group, err := db.CreateLinkGroup(ctx,
		model.LinkRef{ViewType: model.ViewTodo, OriginalID: "td-1"},
		[]model.LinkRef{{ViewType: model.ViewWBS, OriginalID: "wb-1"}, {ViewType: model.ViewKanban, OriginalID: "kb-1"}},
		true)
	require.NoError(t, err)

	assert.Equal(t, model.UnifiedID("todo:td-1"), group.UnifiedID)
	assert.True(t, group.SyncEnabled)
	assert.Equal(t, []model.ViewType{model.ViewTodo, model.ViewWBS, model.ViewKanban}, group.Views())

	// Reads agree with the returned group
	links, err := db.FindLinksByUnifiedID(ctx, group.UnifiedID)
	require.NoError(t, err)
	assert.Equal(t, group.Links, links)
}

func TestCreateLinkGroup_SkipsOriginView(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	group, err := db.CreateLinkGroup(ctx,
		model.LinkRef{ViewType: model.ViewTodo, OriginalID: "td-1"},
		[]model.LinkRef{{ViewType: model.ViewTodo, OriginalID: "td-1"}, {ViewType: model.ViewWBS, OriginalID: "wb-1"}},
		true)
	require.NoError(t, err)

	var todoLinks int
	for _, l := range group.Links {
		if l.ViewType == model.ViewTodo {
			todoLinks++
		}
	}
	assert.Equal(t, 1, todoLinks)
	assert.Len(t, group.Links, 2)
}

func TestCreateLinkGroup_AtomicOnConflict(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	// wb-taken already belongs to another group
	_, err := db.CreateLink(ctx, model.NewLink{UnifiedID: "wbs:wb-taken", ViewType: model.ViewWBS, OriginalID: "wb-taken"})
	require.NoError(t, err)

	_, err = db.CreateLinkGroup(ctx,
		model.LinkRef{ViewType: model.ViewTodo, OriginalID: "td-1"},
		[]model.LinkRef{{ViewType: model.ViewKanban, OriginalID: "kb-1"}, {ViewType: model.ViewWBS, OriginalID: "wb-taken"}},
		true)
	require.ErrorIs(t, err, ErrConstraintViolation)

	// Zero links from the failed call survive
	links, err := db.FindLinksByUnifiedID(ctx, "todo:td-1")
	require.NoError(t, err)
	assert.Empty(t, links)

	kb, err := db.FindLinkByViewAndOriginalID(ctx, model.ViewKanban, "kb-1")
	require.NoError(t, err)
	assert.Nil(t, kb)
}

func TestCreateLinkGroup_TwoTargetsSameView(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	_, err := db.CreateLinkGroup(ctx,
		model.LinkRef{ViewType: model.ViewTodo, OriginalID: "td-1"},
		[]model.LinkRef{{ViewType: model.ViewWBS, OriginalID: "wb-1"}, {ViewType: model.ViewWBS, OriginalID: "wb-2"}},
		true)
	require.ErrorIs(t, err, ErrConstraintViolation)

	links, err := db.FindLinksByUnifiedID(ctx, "todo:td-1")
	require.NoError(t, err)
	assert.Empty(t, links)
}

func TestExtendLinkGroup(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	group, err := db.CreateLinkGroup(ctx,
		model.LinkRef{ViewType: model.ViewTodo, OriginalID: "td-1"},
		[]model.LinkRef{{ViewType: model.ViewWBS, OriginalID: "wb-1"}},
		true)
	require.NoError(t, err)

	extended, err := db.ExtendLinkGroup(ctx, group.UnifiedID,
		[]model.LinkRef{{ViewType: model.ViewGantt, OriginalID: "gt-1"}}, false)
	require.NoError(t, err)
	assert.Equal(t, []model.ViewType{model.ViewTodo, model.ViewWBS, model.ViewGantt}, extended.Views())

	gantt, ok := extended.Link(model.ViewGantt)
	require.True(t, ok)
	assert.False(t, gantt.SyncEnabled)
}

func TestExtendLinkGroup_UnknownGroup(t *testing.T) {
	db := setupTestDB(t)

	_, err := db.ExtendLinkGroup(context.Background(), "todo:nope",
		[]model.LinkRef{{ViewType: model.ViewWBS, OriginalID: "wb-1"}}, true)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestExtendLinkGroup_ExistingViewIsAtomic(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	group, err := db.CreateLinkGroup(ctx,
		model.LinkRef{ViewType: model.ViewTodo, OriginalID: "td-1"},
		[]model.LinkRef{{ViewType: model.ViewWBS, OriginalID: "wb-1"}},
		true)
	require.NoError(t, err)

	_, err = db.ExtendLinkGroup(ctx, group.UnifiedID,
		[]model.LinkRef{{ViewType: model.ViewGantt, OriginalID: "gt-1"}, {ViewType: model.ViewWBS, OriginalID: "wb-2"}}, true)
	require.ErrorIs(t, err, ErrConstraintViolation)

	after, err := db.FindGroup(ctx, group.UnifiedID)
	require.NoError(t, err)
	assert.Len(t, after.Links, 2)
}

func TestExtendLinkGroup_RelinksOriginViewAfterOriginRemoved(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	group, err := db.CreateLinkGroup(ctx,
		model.LinkRef{ViewType: model.ViewTodo, OriginalID: "td-1"},
		[]model.LinkRef{{ViewType: model.ViewWBS, OriginalID: "wb-1"}},
		true)
	require.NoError(t, err)

	removed, err := db.DeleteLinkByRef(ctx, model.ViewTodo, "td-1")
	require.NoError(t, err)
	require.True(t, removed)

	extended, err := db.ExtendLinkGroup(ctx, group.UnifiedID,
		[]model.LinkRef{{ViewType: model.ViewTodo, OriginalID: "td-2"}}, true)
	require.NoError(t, err)
	assert.Equal(t, []model.ViewType{model.ViewWBS, model.ViewTodo}, extended.Views())

	link, err := db.FindLinkByViewAndOriginalID(ctx, model.ViewTodo, "td-2")
	require.NoError(t, err)
	require.NotNil(t, link)
	assert.Equal(t, group.UnifiedID, link.UnifiedID)
}

func TestFindLinksByUnifiedID_OrdersByTimeAcrossFractionWidths(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	uid := model.NewUnifiedID(model.ViewTodo, "td-1")
	base := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	// .12 and .123 render as a prefix pair when trailing zeros are trimmed.
	links := []struct {
		view model.ViewType
		id   string
		at   time.Time
	}{
		{model.ViewTodo, "td-1", base.Add(120 * time.Millisecond)},
		{model.ViewWBS, "wb-1", base.Add(123 * time.Millisecond)},
		{model.ViewGantt, "gt-1", base.Add(time.Second)},
	}
	for _, l := range links {
		_, err := createLink(ctx, db.DB, model.NewLink{UnifiedID: uid, ViewType: l.view, OriginalID: l.id}, l.at)
		require.NoError(t, err)
	}

	got, err := db.FindLinksByUnifiedID(ctx, uid)
	require.NoError(t, err)
	require.Len(t, got, 3)
	for i, l := range links {
		assert.Equal(t, l.view, got[i].ViewType, "position %d", i)
		assert.True(t, l.at.Equal(got[i].CreatedAt), "position %d", i)
	}
}

func TestFormatTime_FixedWidth(t *testing.T) {
	tests := []struct {
		name string
		in   time.Time
		want string
	}{
		{"whole second", time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC), "2026-03-01T09:00:00.000000000Z"},
		{"trailing zeros kept", time.Date(2026, 3, 1, 9, 0, 0, 120_000_000, time.UTC), "2026-03-01T09:00:00.120000000Z"},
		{"converted to utc", time.Date(2026, 3, 1, 10, 0, 0, 5, time.FixedZone("CET", 3600)), "2026-03-01T09:00:00.000000005Z"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := formatTime(tt.in)
			assert.Equal(t, tt.want, got)

			back, err := parseTime(got)
			require.NoError(t, err)
			assert.True(t, tt.in.Equal(back))
		})
	}
}
