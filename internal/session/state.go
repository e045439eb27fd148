// Package session tracks per-session tag selections for label generation.
//
// Each browser session owns an ordered list of selected product names plus a
// bounded undo history. State is only ever touched within a single request:
// stores hand out copies, handlers mutate the copy and save it back, so live
// State values are never shared across goroutines.
package session

import (
	"errors"
	"fmt"
	"time"
)

const (
	// maxUndoDepth bounds the undo stack; older snapshots are discarded FIFO.
	maxUndoDepth = 5

	// jsonMatchGrace is how long after a JSON match Clear keeps the selection.
	// Users typically clear stale state right before acting on fresh matches.
	jsonMatchGrace = 5 * time.Minute
)

// ErrInvalidDirection is returned when a move direction is not a known value.
var ErrInvalidDirection = errors.New("invalid move direction")

// Direction indicates which list a move operation sends tags to.
type Direction string

const (
	// DirectionToSelected moves tags from the available list into the selection.
	DirectionToSelected Direction = "to_selected"
	// DirectionToAvailable removes tags from the selection.
	DirectionToAvailable Direction = "to_available"
)

// FilterMode selects which universe the available-tags list draws from.
type FilterMode string

const (
	// FilterModeFullExcel serves every row of the loaded table plus catalog names.
	FilterModeFullExcel FilterMode = "full_excel"
	// FilterModeJSONMatched restricts the list to names the last JSON match produced.
	FilterModeJSONMatched FilterMode = "json_matched"
)

// ValidDirections returns all valid move directions.
func ValidDirections() []Direction {
	return []Direction{DirectionToSelected, DirectionToAvailable}
}

// IsValid checks if the direction is a known value.
func (d Direction) IsValid() bool {
	switch d {
	case DirectionToSelected, DirectionToAvailable:
		return true
	default:
		return false
	}
}

// State is one session's selection: ordered product names, up to five prior
// selections for undo, the active filter mode, and the last JSON-match result.
type State struct {
	// Selected holds selected product names in display order.
	Selected []string `json:"selected"`
	// UndoStack holds prior selections, oldest first.
	UndoStack [][]string `json:"undo_stack,omitempty"`
	// FilterMode is the active tag-universe mode; empty means full_excel.
	FilterMode FilterMode `json:"filter_mode,omitempty"`
	// JSONMatched holds the target names the last JSON match produced.
	JSONMatched []string `json:"json_matched,omitempty"`
	// LastJSONMatch records when a JSON match last populated the selection.
	LastJSONMatch time.Time `json:"last_json_match,omitempty"`
}

// NewState returns an empty selection state.
func NewState() *State {
	return &State{}
}

// Clone returns a deep copy of the state.
func (s *State) Clone() *State {
	clone := &State{
		FilterMode:    s.FilterMode,
		LastJSONMatch: s.LastJSONMatch,
	}

	if s.Selected != nil {
		clone.Selected = append([]string(nil), s.Selected...)
	}

	if s.JSONMatched != nil {
		clone.JSONMatched = append([]string(nil), s.JSONMatched...)
	}

	if len(s.UndoStack) > 0 {
		clone.UndoStack = make([][]string, len(s.UndoStack))
		for i, snapshot := range s.UndoStack {
			clone.UndoStack[i] = append([]string(nil), snapshot...)
		}
	}

	return clone
}

// Mode returns the active filter mode, defaulting to full_excel.
func (s *State) Mode() FilterMode {
	if s.FilterMode == FilterModeJSONMatched {
		return FilterModeJSONMatched
	}

	return FilterModeFullExcel
}

// Move transfers tags between the available and selected lists, snapshotting
// the current selection first. universe is the ordered list of currently-known
// product names; names outside it are silently dropped. With selectAll set the
// tags argument is ignored and the whole universe moves.
func (s *State) Move(tags []string, direction Direction, selectAll bool, universe []string) error {
	if !direction.IsValid() {
		return fmt.Errorf("%w: %q", ErrInvalidDirection, direction)
	}

	s.SaveSnapshot()

	switch {
	case selectAll && direction == DirectionToSelected:
		s.Selected = append([]string(nil), universe...)

	case selectAll && direction == DirectionToAvailable:
		s.Selected = nil

	case direction == DirectionToSelected:
		known := make(map[string]struct{}, len(universe))
		for _, name := range universe {
			known[name] = struct{}{}
		}

		current := make(map[string]struct{}, len(s.Selected))
		for _, name := range s.Selected {
			current[name] = struct{}{}
		}

		for _, name := range tags {
			if _, ok := known[name]; !ok {
				continue
			}

			if _, ok := current[name]; ok {
				continue
			}

			s.Selected = append(s.Selected, name)
			current[name] = struct{}{}
		}

	default: // DirectionToAvailable
		drop := make(map[string]struct{}, len(tags))
		for _, name := range tags {
			drop[name] = struct{}{}
		}

		kept := s.Selected[:0]

		for _, name := range s.Selected {
			if _, ok := drop[name]; !ok {
				kept = append(kept, name)
			}
		}

		s.Selected = kept
	}

	return nil
}

// Reorder replaces the selection order. Entries not currently selected are
// dropped, duplicates collapse to their first occurrence, and selected names
// missing from newOrder keep their relative order at the end.
func (s *State) Reorder(newOrder []string) {
	current := make(map[string]struct{}, len(s.Selected))
	for _, name := range s.Selected {
		current[name] = struct{}{}
	}

	reordered := make([]string, 0, len(s.Selected))
	seen := make(map[string]struct{}, len(newOrder))

	for _, name := range newOrder {
		if _, ok := current[name]; !ok {
			continue
		}

		if _, ok := seen[name]; ok {
			continue
		}

		reordered = append(reordered, name)
		seen[name] = struct{}{}
	}

	for _, name := range s.Selected {
		if _, ok := seen[name]; !ok {
			reordered = append(reordered, name)
		}
	}

	s.Selected = reordered
}

// Undo restores the most recent snapshot. It reports false when the undo
// stack is empty and leaves the selection untouched.
func (s *State) Undo() bool {
	if len(s.UndoStack) == 0 {
		return false
	}

	last := len(s.UndoStack) - 1
	s.Selected = s.UndoStack[last]
	s.UndoStack = s.UndoStack[:last]

	return true
}

// SaveSnapshot pushes a copy of the current selection onto the undo stack,
// discarding the oldest entries beyond maxUndoDepth.
func (s *State) SaveSnapshot() {
	snapshot := append([]string(nil), s.Selected...)
	s.UndoStack = append(s.UndoStack, snapshot)

	if len(s.UndoStack) > maxUndoDepth {
		s.UndoStack = s.UndoStack[len(s.UndoStack)-maxUndoDepth:]
	}
}

// Clear empties the selection and undo stack. The selection and filter mode
// survive when a JSON match completed within the last five minutes, so users
// do not lose the matches they just generated.
func (s *State) Clear() {
	s.UndoStack = nil

	if time.Since(s.LastJSONMatch) < jsonMatchGrace {
		return
	}

	s.Selected = nil
	s.JSONMatched = nil
	s.FilterMode = FilterModeFullExcel
}

// MarkJSONMatch records the names a JSON match just produced and switches the
// filter mode over to them.
func (s *State) MarkJSONMatch(matched []string) {
	s.JSONMatched = append([]string(nil), matched...)
	s.FilterMode = FilterModeJSONMatched
	s.LastJSONMatch = time.Now()
}

// Prune drops selected names that are no longer in the known-name universe.
// Read paths call it so the selection stays a subset of what the loaded table
// and the catalog can actually serve.
func (s *State) Prune(universe []string) {
	if len(s.Selected) == 0 {
		return
	}

	known := make(map[string]struct{}, len(universe))
	for _, name := range universe {
		known[name] = struct{}{}
	}

	kept := s.Selected[:0]

	for _, name := range s.Selected {
		if _, ok := known[name]; ok {
			kept = append(kept, name)
		}
	}

	s.Selected = kept
}
