package transfer

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/baiirun/viewlink/internal/db"
	"github.com/baiirun/viewlink/internal/model"
	"github.com/baiirun/viewlink/internal/propagate"
	"github.com/baiirun/viewlink/internal/store"
)

// countingStore records how often a view was refreshed.
type countingStore struct {
	store.Store
	fetches atomic.Int32
}

func (s *countingStore) Fetch(ctx context.Context) error {
	s.fetches.Add(1)
	return s.Store.Fetch(ctx)
}

type harness struct {
	db     *db.DB
	kanban *store.KanbanStore
	counts map[model.ViewType]*countingStore
	reg    *store.Registry
	svc    *Service
	client *Client
}

func newHarness(t *testing.T, opts Options) *harness {
	t.Helper()
	database, err := db.Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	require.NoError(t, database.Migrate(context.Background()))
	t.Cleanup(func() { _ = database.Close() })

	kanban := store.NewKanbanStore(database)
	h := &harness{
		db:     database,
		kanban: kanban,
		counts: map[model.ViewType]*countingStore{},
		reg:    store.NewRegistry(),
	}
	for _, s := range []store.Store{store.NewTodoStore(database), store.NewWBSStore(database), kanban, store.NewGanttStore(database)} {
		cs := &countingStore{Store: s}
		h.counts[s.View()] = cs
		h.reg.Register(cs)
	}

	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	mapper := propagate.NewMapper(kanban)
	h.svc = NewService(database, h.reg, mapper, opts, log)
	h.client = NewClient(h.svc, database, h.reg, propagate.NewPropagator(database, h.reg, mapper, log), log)
	return h
}

func (h *harness) addTodoLane(t *testing.T) {
	t.Helper()
	require.NoError(t, h.kanban.CreateLane(context.Background(), model.KanbanLane{ID: model.DefaultKanbanLane, Title: "To Do"}))
}

func (h *harness) create(t *testing.T, d model.Draft) string {
	t.Helper()
	s, err := h.reg.Store(d.View())
	require.NoError(t, err)
	rec, err := s.Create(context.Background(), d)
	require.NoError(t, err)
	return rec.RecordID()
}

func (h *harness) get(t *testing.T, view model.ViewType, id string) model.Record {
	t.Helper()
	s, err := h.reg.Store(view)
	require.NoError(t, err)
	rec, err := s.Get(context.Background(), id)
	require.NoError(t, err)
	return rec
}

func (h *harness) fetches(view model.ViewType) int {
	return int(h.counts[view].fetches.Load())
}

func date(t *testing.T, s string) *time.Time {
	t.Helper()
	d, err := time.Parse("2006-01-02", s)
	require.NoError(t, err)
	return &d
}
