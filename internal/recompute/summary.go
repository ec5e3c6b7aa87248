package recompute

import (
	"sync"
	"time"
)

// Summary aggregates one recompute run. Processed counts every symbol the
// run looked at; SufficientData counts those that actually received
// indicator writes. Errors maps symbol → failure reason; a non-empty map
// does not make the run itself a failure.
type Summary struct {
	Processed           int               `json:"processed"`
	SufficientData      int               `json:"sufficient_data"`
	SkippedInsufficient int               `json:"skipped_insufficient"`
	SkippedLocked       int               `json:"skipped_locked"`
	GoldenCrossDays     int               `json:"golden_cross_days"`
	Errors              map[string]string `json:"errors"`
	Duration            time.Duration     `json:"duration_ns"`

	mu sync.Mutex
}

// NewSummary returns an empty run summary.
func NewSummary() *Summary {
	return &Summary{Errors: make(map[string]string)}
}

func (s *Summary) recordProcessed(res *SymbolResult) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Processed++
	s.SufficientData++
	s.GoldenCrossDays += res.GoldenCrossDays
}

func (s *Summary) recordSkipped(symbol string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Processed++
	s.SkippedInsufficient++
}

func (s *Summary) recordLocked(symbol string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Processed++
	s.SkippedLocked++
}

func (s *Summary) recordError(symbol string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Processed++
	s.Errors[symbol] = err.Error()
}
