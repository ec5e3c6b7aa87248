// Package series builds clean, time-ordered daily bar sequences for the
// indicator pipeline.
package series

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sort"

	"stock-analyzer/internal/model"
)

// ErrStoreUnavailable wraps store read failures so the orchestrator can
// distinguish infrastructure faults from empty results.
var ErrStoreUnavailable = errors.New("store unavailable")

// Loader produces clean ordered series from the time-series store.
// Read-only; it never mutates stored rows.
type Loader struct {
	reader model.BarReader
}

// NewLoader creates a Loader over the given store reader.
func NewLoader(reader model.BarReader) *Loader {
	return &Loader{reader: reader}
}

// Load fetches all bars for symbol, drops rows without a valid positive
// close, and returns the remainder sorted ascending by date.
//
// (symbol, date) uniqueness makes date ties impossible; if corrupt data
// produces one anyway, the stable sort keeps input order deterministically
// and the tie is logged.
func (l *Loader) Load(ctx context.Context, symbol string) ([]*model.DailyBar, error) {
	raw, err := l.reader.FindBySymbol(ctx, symbol)
	if err != nil {
		return nil, fmt.Errorf("%w: load %s: %v", ErrStoreUnavailable, symbol, err)
	}

	clean := make([]*model.DailyBar, 0, len(raw))
	dropped := 0
	for _, bar := range raw {
		if !bar.HasValidClose() {
			dropped++
			continue
		}
		clean = append(clean, bar)
	}
	if dropped > 0 {
		log.Printf("[series] %s: filtered %d bars with invalid close (%d remain)", symbol, dropped, len(clean))
	}

	sort.SliceStable(clean, func(i, j int) bool {
		return clean[i].Date.Before(clean[j].Date)
	})
	for i := 1; i < len(clean); i++ {
		if clean[i].Date.Equal(clean[i-1].Date) {
			log.Printf("[series] %s: duplicate date %s in store, keeping input order", symbol, clean[i].DateKey())
		}
	}

	return clean, nil
}

// CountClean returns the length of the clean series without keeping it.
// Used for eligibility checks and sufficiency reports.
func (l *Loader) CountClean(ctx context.Context, symbol string) (int, error) {
	bars, err := l.Load(ctx, symbol)
	if err != nil {
		return 0, err
	}
	return len(bars), nil
}
