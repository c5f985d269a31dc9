// Package monitor detects how test results moved since the previous archived run.
//
// A shift is reported for a label present in both runs when either its significance
// verdict flipped or its statistic moved by at least the configured threshold.
// Flips are always reported regardless of the threshold.
//
// Use DetectShifts after a run has been archived to compare it with its predecessor.
package monitor

import (
	"context"
	"fmt"
	"math"
	"sort"

	"github.com/rewired-gh/macrocorr/internal/logger"
	"github.com/rewired-gh/macrocorr/internal/storage"
)

// Archive is the subset of the run archive the monitor reads.
type Archive interface {
	LatestRun(ctx context.Context, kind, excludeID string) (*storage.Run, error)
}

// Shift is a result that changed between two runs of the same kind.
type Shift struct {
	Label       string
	PreviousRun string
	Previous    storage.Result
	Current     storage.Result
}

// Delta is the change of the statistic.
func (s Shift) Delta() float64 {
	return s.Current.Statistic - s.Previous.Statistic
}

// Flipped reports whether the result crossed the significance threshold.
func (s Shift) Flipped() bool {
	return s.Previous.Significant != s.Current.Significant
}

// Direction describes the sign of Delta.
func (s Shift) Direction() string {
	switch d := s.Delta(); {
	case d > 0:
		return "increase"
	case d < 0:
		return "decrease"
	default:
		return "unchanged"
	}
}

func (s Shift) String() string {
	verdict := ""
	if s.Flipped() {
		if s.Current.Significant {
			verdict = ", now significant"
		} else {
			verdict = ", no longer significant"
		}
	}
	return fmt.Sprintf("%s: %.3f → %.3f (%+.3f%s)", s.Label, s.Previous.Statistic, s.Current.Statistic, s.Delta(), verdict)
}

// Monitor compares runs against the archive.
type Monitor struct {
	archive  Archive
	minDelta float64
}

// New creates a Monitor. minDelta is the smallest absolute statistic change reported
// for results whose verdict did not flip; 0 reports every change.
func New(archive Archive, minDelta float64) *Monitor {
	return &Monitor{archive: archive, minDelta: math.Abs(minDelta)}
}

// DetectShifts compares current with the latest archived run of kind other than runID.
// Shifts are ordered with flips first, then by absolute delta, then by label. A missing
// predecessor yields no shifts.
func (m *Monitor) DetectShifts(ctx context.Context, kind, runID string, current []storage.Result) ([]Shift, error) {
	prev, err := m.archive.LatestRun(ctx, kind, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to load previous %s run: %w", kind, err)
	}
	if prev == nil {
		logger.Debug("No previous %s run to compare with", kind)
		return nil, nil
	}

	previous := make(map[string]storage.Result, len(prev.Results))
	for _, r := range prev.Results {
		previous[r.Label] = r
	}

	var shifts []Shift
	for _, r := range current {
		old, ok := previous[r.Label]
		if !ok {
			continue
		}
		s := Shift{Label: r.Label, PreviousRun: prev.ID, Previous: old, Current: r}
		if !s.Flipped() && (s.Delta() == 0 || math.Abs(s.Delta()) < m.minDelta) {
			continue
		}
		shifts = append(shifts, s)
	}

	sort.Slice(shifts, func(i, j int) bool {
		if shifts[i].Flipped() != shifts[j].Flipped() {
			return shifts[i].Flipped()
		}
		di, dj := math.Abs(shifts[i].Delta()), math.Abs(shifts[j].Delta())
		if di != dj {
			return di > dj
		}
		return shifts[i].Label < shifts[j].Label
	})

	logger.Debug("Compared %d %s results with run %s: %d shift(s)", len(current), kind, prev.ID, len(shifts))
	return shifts, nil
}
