// Package store provides the persistence backends behind the game
// services: an in-memory store for tests and offline mode, a
// spreadsheet-backed store for production, and a sqlite store for local
// development.
package store

import "github.com/mckinnonit/mckinnonville/internal/services"

// Store is the union of every per-service persistence interface.
type Store interface {
	services.CitizenRegistryStore
	services.PlotStore
	services.QuizStore
	services.VoteStore
	services.WeekStore
	services.ScheduleStore
}

var (
	_ Store = (*MemoryStore)(nil)
	_ Store = (*SheetStore)(nil)
	_ Store = (*SQLiteStore)(nil)
)
