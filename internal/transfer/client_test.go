package transfer

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/baiirun/viewlink/internal/db"
	"github.com/baiirun/viewlink/internal/model"
	"github.com/baiirun/viewlink/internal/store"
)

func TestClient_TransferRefreshesAffectedViews(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, Options{})
	a := h.create(t, model.NewTodo{Title: "a"})

	res, err := h.client.TransferTasks(ctx, Request{
		SourceView: model.ViewTodo, TaskIDs: []string{a},
		TargetViews: []model.ViewType{model.ViewWBS, model.ViewKanban},
	})
	require.NoError(t, err)
	require.True(t, res.Success)

	assert.Equal(t, 1, h.fetches(model.ViewTodo))
	assert.Equal(t, 1, h.fetches(model.ViewWBS))
	assert.Equal(t, 0, h.fetches(model.ViewKanban), "kanban received no copy")
	assert.Equal(t, 0, h.fetches(model.ViewGantt))

	wbs := h.counts[model.ViewWBS].Store.(*store.WBSStore)
	assert.Len(t, wbs.Tasks(), 1)
}

func TestClient_TransferWithoutCopiesRefreshesNothing(t *testing.T) {
	h := newHarness(t, Options{})
	a := h.create(t, model.NewTodo{Title: "a"})

	res, err := h.client.TransferTasks(context.Background(), Request{
		SourceView: model.ViewTodo, TaskIDs: []string{a},
		TargetViews: []model.ViewType{model.ViewKanban},
	})
	require.NoError(t, err)
	assert.False(t, res.Success)
	for _, v := range model.AllViews {
		assert.Equal(t, 0, h.fetches(v), "view %s", v)
	}
}

func TestClient_TransferStorageFailureIsUserError(t *testing.T) {
	h := newHarness(t, Options{})
	boom := errors.New("database is closed")
	h.svc.links = failingLinks{LinkRegistry: h.db, err: boom}
	a := h.create(t, model.NewTodo{Title: "a"})

	_, err := h.client.TransferTasks(context.Background(), Request{
		SourceView: model.ViewTodo, TaskIDs: []string{a},
		TargetViews: []model.ViewType{model.ViewWBS},
	})
	var userErr *UserError
	require.ErrorAs(t, err, &userErr)
	assert.Equal(t, "Failed to transfer tasks", userErr.Message)
	assert.Equal(t, userErr.Message, err.Error())
	assert.NotContains(t, err.Error(), boom.Error())
	assert.ErrorIs(t, err, boom)
}

func TestClient_SyncTaskRespectsDisabledLinks(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, Options{})
	todoID := h.create(t, model.NewTodo{Title: "Buy milk"})

	res, err := h.client.TransferTasks(ctx, Request{
		SourceView: model.ViewTodo, TaskIDs: []string{todoID},
		TargetViews: []model.ViewType{model.ViewWBS}, SyncEnabled: true,
	})
	require.NoError(t, err)
	wbsID := res.Transferred[0].NewID

	_, err = h.client.ToggleSync(ctx, model.ViewWBS, wbsID, false)
	require.NoError(t, err)

	todos := h.counts[model.ViewTodo].Store.(*store.TodoStore)
	require.NoError(t, todos.SetCompleted(ctx, todoID, true))

	todoBefore, wbsBefore := h.fetches(model.ViewTodo), h.fetches(model.ViewWBS)
	sync, err := h.client.SyncTask(ctx, model.ViewTodo, todoID)
	require.NoError(t, err)
	assert.Empty(t, sync.Synced)

	assert.Equal(t, wbsBefore, h.fetches(model.ViewWBS), "disabled view must not refresh")
	assert.Equal(t, todoBefore+1, h.fetches(model.ViewTodo))
	assert.Equal(t, 0, h.get(t, model.ViewWBS, wbsID).(model.WBSTask).Progress)
}

func TestClient_SyncTaskWritesEnabledSiblings(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, Options{})
	todoID := h.create(t, model.NewTodo{Title: "Buy milk"})

	res, err := h.client.TransferTasks(ctx, Request{
		SourceView: model.ViewTodo, TaskIDs: []string{todoID},
		TargetViews: []model.ViewType{model.ViewWBS}, SyncEnabled: true,
	})
	require.NoError(t, err)
	wbsID := res.Transferred[0].NewID

	todos := h.counts[model.ViewTodo].Store.(*store.TodoStore)
	require.NoError(t, todos.SetCompleted(ctx, todoID, true))

	wbsBefore := h.fetches(model.ViewWBS)
	sync, err := h.client.SyncTask(ctx, model.ViewTodo, todoID)
	require.NoError(t, err)
	require.Len(t, sync.Synced, 1)
	assert.Equal(t, wbsBefore+1, h.fetches(model.ViewWBS))

	task := h.get(t, model.ViewWBS, wbsID).(model.WBSTask)
	assert.Equal(t, 100, task.Progress)
	assert.Equal(t, model.WBSCompleted, task.Status)
}

func TestClient_SyncTaskUnlinkedIsNoop(t *testing.T) {
	h := newHarness(t, Options{})
	id := h.create(t, model.NewTodo{Title: "solo"})

	res, err := h.client.SyncTask(context.Background(), model.ViewTodo, id)
	require.NoError(t, err)
	assert.Empty(t, res.Synced)
	assert.Equal(t, 0, h.fetches(model.ViewTodo))
}

func TestClient_LinkManagement(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, Options{})
	todoID := h.create(t, model.NewTodo{Title: "a"})

	_, err := h.client.ToggleSync(ctx, model.ViewTodo, todoID, false)
	assert.ErrorIs(t, err, db.ErrNotFound)

	g, err := h.client.Group(ctx, model.ViewTodo, todoID)
	require.NoError(t, err)
	assert.Nil(t, g)

	res, err := h.client.TransferTasks(ctx, Request{
		SourceView: model.ViewTodo, TaskIDs: []string{todoID},
		TargetViews: []model.ViewType{model.ViewWBS, model.ViewGantt}, SyncEnabled: true,
	})
	require.NoError(t, err)
	require.Len(t, res.Transferred, 2)

	g, err = h.client.Group(ctx, model.ViewWBS, res.Transferred[0].NewID)
	require.NoError(t, err)
	require.NotNil(t, g)
	assert.Equal(t, model.NewUnifiedID(model.ViewTodo, todoID), g.UnifiedID)
	assert.Len(t, g.Links, 3)

	n, err := h.client.ToggleGroupSync(ctx, g.UnifiedID, false)
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)
	g, err = h.client.Group(ctx, model.ViewTodo, todoID)
	require.NoError(t, err)
	assert.False(t, g.SyncEnabled)

	_, err = h.client.ToggleGroupSync(ctx, "todo:nope", true)
	assert.ErrorIs(t, err, db.ErrNotFound)

	require.NoError(t, h.client.DeleteTask(ctx, model.ViewGantt, res.Transferred[1].NewID))
	g, err = h.client.Group(ctx, model.ViewTodo, todoID)
	require.NoError(t, err)
	assert.Equal(t, []model.ViewType{model.ViewTodo, model.ViewWBS}, g.Views())

	n, err = h.client.DeleteGroup(ctx, g.UnifiedID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
	g, err = h.client.Group(ctx, model.ViewTodo, todoID)
	require.NoError(t, err)
	assert.Nil(t, g)
}

func TestClient_DeleteTaskKeepsLinkWhenRecordSurvives(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, Options{})
	parent := h.create(t, model.NewWBSTask{Name: "phase"})
	h.create(t, model.NewWBSTask{Name: "step", ParentID: &parent})

	res, err := h.client.TransferTasks(ctx, Request{
		SourceView: model.ViewWBS, TaskIDs: []string{parent},
		TargetViews: []model.ViewType{model.ViewTodo}, SyncEnabled: true,
	})
	require.NoError(t, err)
	require.Len(t, res.Transferred, 1)
	before, err := h.db.FindLinkByViewAndOriginalID(ctx, model.ViewWBS, parent)
	require.NoError(t, err)
	require.NotNil(t, before)

	err = h.client.DeleteTask(ctx, model.ViewWBS, parent)
	var userErr *UserError
	require.ErrorAs(t, err, &userErr)
	assert.Equal(t, "Failed to delete task", err.Error())

	after, err := h.db.FindLinkByViewAndOriginalID(ctx, model.ViewWBS, parent)
	require.NoError(t, err)
	require.NotNil(t, after, "link must survive when the record does")
	assert.Equal(t, before.ID, after.ID)
	assert.True(t, before.CreatedAt.Equal(after.CreatedAt))

	g, err := h.client.Group(ctx, model.ViewTodo, res.Transferred[0].NewID)
	require.NoError(t, err)
	assert.Equal(t, []model.ViewType{model.ViewWBS, model.ViewTodo}, g.Views())
}

func TestClient_DeleteTaskRemovesLinkBeforeRecord(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, Options{})
	a := h.create(t, model.NewTodo{Title: "a"})

	res, err := h.client.TransferTasks(ctx, Request{
		SourceView: model.ViewTodo, TaskIDs: []string{a},
		TargetViews: []model.ViewType{model.ViewWBS}, SyncEnabled: true,
	})
	require.NoError(t, err)
	require.Len(t, res.Transferred, 1)

	require.NoError(t, h.client.DeleteTask(ctx, model.ViewTodo, a))

	link, err := h.db.FindLinkByViewAndOriginalID(ctx, model.ViewTodo, a)
	require.NoError(t, err)
	assert.Nil(t, link)
	_, err = h.db.GetTodo(ctx, a)
	assert.ErrorIs(t, err, db.ErrNotFound)

	// The surviving sibling syncs without tripping over the deleted record.
	sync, err := h.client.SyncTask(ctx, model.ViewWBS, res.Transferred[0].NewID)
	require.NoError(t, err)
	assert.Empty(t, sync.Failed)
}
