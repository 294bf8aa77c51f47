package market

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/alanyoungcy/b3stream/internal/domain"
)

// snapshotDoc is the object written to blob storage.
type snapshotDoc struct {
	TakenAt time.Time          `json:"taken_at"`
	Prices  map[string]float64 `json:"prices"`
}

// Snapshotter persists ledger prices to object storage and restores them on
// startup.
type Snapshotter struct {
	ledger *Ledger
	writer domain.BlobWriter
	reader domain.BlobReader
	path   string
	clock  clockwork.Clock
	logger *slog.Logger
}

// NewSnapshotter creates a Snapshotter writing to path.
func NewSnapshotter(ledger *Ledger, writer domain.BlobWriter, reader domain.BlobReader, path string, clock clockwork.Clock, logger *slog.Logger) *Snapshotter {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Snapshotter{
		ledger: ledger,
		writer: writer,
		reader: reader,
		path:   path,
		clock:  clock,
		logger: logger.With(slog.String("component", "snapshotter")),
	}
}

// Save writes the current ledger prices.
func (s *Snapshotter) Save(ctx context.Context) error {
	data, err := json.Marshal(snapshotDoc{
		TakenAt: s.clock.Now().UTC(),
		Prices:  s.ledger.Snapshot(),
	})
	if err != nil {
		return fmt.Errorf("snapshot: marshal: %w", err)
	}
	if err := s.writer.Put(ctx, s.path, bytes.NewReader(data), "application/json"); err != nil {
		return fmt.Errorf("snapshot: save: %w", err)
	}
	return nil
}

// Restore loads the last snapshot into the ledger. A missing snapshot is not
// an error; it returns 0.
func (s *Snapshotter) Restore(ctx context.Context) (int, error) {
	body, err := s.reader.Get(ctx, s.path)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return 0, nil
		}
		return 0, fmt.Errorf("snapshot: restore: %w", err)
	}
	defer body.Close()

	var doc snapshotDoc
	if err := json.NewDecoder(body).Decode(&doc); err != nil {
		return 0, fmt.Errorf("snapshot: decode: %w", err)
	}
	n := s.ledger.Restore(doc.Prices)
	s.logger.InfoContext(ctx, "ledger restored from snapshot",
		slog.Int("symbols", n),
		slog.Time("taken_at", doc.TakenAt),
	)
	return n, nil
}

// Run saves a snapshot every interval and once more when ctx is cancelled.
func (s *Snapshotter) Run(ctx context.Context, interval time.Duration) error {
	ticker := s.clock.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			// Final save on a fresh context; ctx is already done.
			saveCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			if err := s.Save(saveCtx); err != nil {
				s.logger.Warn("final snapshot failed", slog.String("error", err.Error()))
			}
			cancel()
			return ctx.Err()
		case <-ticker.Chan():
			if err := s.Save(ctx); err != nil {
				s.logger.WarnContext(ctx, "snapshot failed", slog.String("error", err.Error()))
			}
		}
	}
}
