// Package slate loads the day's candidate legs from a slate file.
package slate

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/mwhitcomb/parlayd/pkg/bettor/circadian"
	"github.com/mwhitcomb/parlayd/pkg/bettor/parlay"
)

// legEntry is one leg in the slate file.
type legEntry struct {
	EventID        string  `json:"event_id"`
	Selection      string  `json:"selection"`
	Sport          string  `json:"sport"`
	Price          float64 `json:"price"`
	WinProbability float64 `json:"win_probability"`

	// Game context for the circadian model; optional.
	GameTimeUTC    *time.Time `json:"game_time_utc,omitempty"`
	HomeTZOffset   float64    `json:"home_tz_offset"`
	AwayTZOffset   float64    `json:"away_tz_offset"`
	AwayBackToBack bool       `json:"away_back_to_back"`
	HomeBackToBack bool       `json:"home_back_to_back"`
}

// FileSource reads legs from a JSON slate file on every call, so the file
// can be replaced between cycles without restarting the daemon.
type FileSource struct {
	path string
}

// NewFileSource creates a slate file source.
func NewFileSource(path string) *FileSource {
	return &FileSource{path: path}
}

// Legs loads the slate and returns legs for the requested sports.
func (s *FileSource) Legs(ctx context.Context, sports []string) ([]parlay.Leg, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	data, err := os.ReadFile(s.path)
	if err != nil {
		return nil, fmt.Errorf("read slate: %w", err)
	}

	var entries []legEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("parse slate %s: %w", s.path, err)
	}

	wanted := make(map[string]bool, len(sports))
	for _, sp := range sports {
		wanted[strings.ToLower(sp)] = true
	}

	legs := make([]parlay.Leg, 0, len(entries))
	for i, e := range entries {
		if e.EventID == "" || e.Selection == "" {
			return nil, fmt.Errorf("slate entry %d: event_id and selection are required", i)
		}
		if len(wanted) > 0 && !wanted[strings.ToLower(e.Sport)] {
			continue
		}

		leg := parlay.Leg{
			EventID:        e.EventID,
			Selection:      e.Selection,
			Price:          e.Price,
			WinProbability: e.WinProbability,
		}
		if e.GameTimeUTC != nil {
			leg.Context = &circadian.GameContext{
				GameTimeUTC:    *e.GameTimeUTC,
				HomeTZOffset:   e.HomeTZOffset,
				AwayTZOffset:   e.AwayTZOffset,
				Sport:          e.Sport,
				AwayBackToBack: e.AwayBackToBack,
				HomeBackToBack: e.HomeBackToBack,
			}
		}
		legs = append(legs, leg)
	}
	return legs, nil
}
