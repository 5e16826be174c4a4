package store

import (
	"context"
	"log/slog"

	"gorm.io/gorm"
)

// EventRecorder writes rollout events through gorm. Failures to persist an
// audit record are logged, not propagated: the rollout outcome stands on its
// own.
type EventRecorder struct {
	db     *gorm.DB
	logger *slog.Logger
}

// NewEventRecorder creates a recorder backed by the given database.
func NewEventRecorder(db *gorm.DB, logger *slog.Logger) *EventRecorder {
	if logger == nil {
		logger = slog.Default()
	}
	return &EventRecorder{db: db, logger: logger}
}

// Record persists one rollout event.
func (r *EventRecorder) Record(ctx context.Context, ev RolloutEvent) {
	if err := r.db.WithContext(ctx).Create(&ev).Error; err != nil {
		r.logger.Error("record rollout event", "cluster", ev.Cluster, "error", err)
	}
}
