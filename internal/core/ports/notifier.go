package ports

import (
	"context"

	"go.trai.ch/kiln/internal/core/domain"
)

// ReloadNotifier is told about changed outputs once per completed run.
//
//go:generate mockgen -source=notifier.go -destination=mocks/mock_notifier.go -package=mocks
type ReloadNotifier interface {
	// Notify delivers the changed outputs. Delivery is best effort.
	Notify(ctx context.Context, changed []domain.FileRecord) error
}
