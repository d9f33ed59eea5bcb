package ledger

import (
	"context"

	"github.com/italolelis/trackbot/internal/telemetry"
)

// InstrumentedStore wraps a Store with telemetry.
type InstrumentedStore struct {
	store     Store
	telemetry *telemetry.Telemetry
}

// NewInstrumentedStore creates a new instrumented ledger store.
func NewInstrumentedStore(store Store, tel *telemetry.Telemetry) *InstrumentedStore {
	return &InstrumentedStore{store: store, telemetry: tel}
}

// Load loads the ledger with telemetry.
func (s *InstrumentedStore) Load(ctx context.Context) (Stats, error) {
	var result Stats

	var err error

	instrumentedErr := s.telemetry.InstrumentLedgerOp(ctx, "load", func(ctx context.Context) error {
		result, err = s.store.Load(ctx)

		return err
	})

	if instrumentedErr != nil {
		return Stats{}, instrumentedErr
	}

	return result, nil
}

// RecordDownload records a download with telemetry.
func (s *InstrumentedStore) RecordDownload(ctx context.Context, userID int64, username string) error {
	return s.telemetry.InstrumentLedgerOp(ctx, "record_download", func(ctx context.Context) error {
		return s.store.RecordDownload(ctx, userID, username)
	})
}
