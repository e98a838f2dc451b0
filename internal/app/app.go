// Package app wires the database, view stores, link registry, propagator and
// transfer client into one explicitly constructed application context.
package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/baiirun/viewlink/internal/config"
	"github.com/baiirun/viewlink/internal/db"
	"github.com/baiirun/viewlink/internal/propagate"
	"github.com/baiirun/viewlink/internal/store"
	"github.com/baiirun/viewlink/internal/transfer"
)

type App struct {
	Config *config.Config
	DB     *db.DB

	Todos  *store.TodoStore
	WBS    *store.WBSStore
	Kanban *store.KanbanStore
	Gantt  *store.GanttStore
	Stores *store.Registry

	Propagator *propagate.Propagator
	Transfers  *transfer.Service
	Client     *transfer.Client
}

// New opens the database, migrates it and builds every component on top.
func New(ctx context.Context, cfg *config.Config, log *slog.Logger) (*App, error) {
	if log == nil {
		log = slog.Default()
	}

	database, err := db.Open(cfg.DBPath)
	if err != nil {
		return nil, err
	}
	if err := database.Migrate(ctx); err != nil {
		_ = database.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	a := &App{
		Config: cfg,
		DB:     database,
		Todos:  store.NewTodoStore(database),
		WBS:    store.NewWBSStore(database),
		Kanban: store.NewKanbanStore(database),
		Gantt:  store.NewGanttStore(database),
	}
	a.Stores = store.NewRegistry(a.Todos, a.WBS, a.Kanban, a.Gantt)

	mapper := propagate.NewMapper(a.Kanban)
	a.Propagator = propagate.NewPropagator(database, a.Stores, mapper, log.With("component", "propagate"))
	a.Transfers = transfer.NewService(database, a.Stores, mapper,
		transfer.Options{RejectDuplicateViews: cfg.RejectDuplicateViews},
		log.With("component", "transfer"))
	a.Client = transfer.NewClient(a.Transfers, database, a.Stores, a.Propagator, log.With("component", "client"))
	return a, nil
}

// SeedLanes creates the configured default kanban lanes that are missing.
func (a *App) SeedLanes(ctx context.Context) error {
	for _, lane := range a.Config.DefaultLanes {
		if err := a.DB.EnsureLane(ctx, lane); err != nil {
			return err
		}
	}
	return nil
}

func (a *App) Close() error {
	return a.DB.Close()
}
