// Package rotation holds which routes the board cycles through and which one
// is on screen.
package rotation

import (
	"math"
	"sort"

	"stopboard.app/internal/feed"
)

// State is the display state machine. It is not safe for concurrent use.
type State struct {
	order        []string
	arrivals     map[string][]int
	currentIndex int
	label        string
}

// New returns an empty state whose placeholder shows initialLabel, or
// DefaultRouteLabel when initialLabel is empty.
func New(initialLabel string) *State {
	s := &State{arrivals: map[string][]int{}}
	s.SetLabel(initialLabel)
	return s
}

// Ingest replaces the rotation with a freshly normalized poll. An empty
// mapping leaves everything untouched and reports applied=false. Otherwise
// the routes are ordered by soonest arrival, the current index is kept when
// still in range, and the new leading route is returned.
func (s *State) Ingest(a feed.RouteArrivals) (leader string, applied bool) {
	if a.Empty() {
		return "", false
	}

	next := a.Clone()
	order := append([]string(nil), next.Routes...)
	sort.SliceStable(order, func(i, j int) bool {
		return soonest(next.Minutes[order[i]]) < soonest(next.Minutes[order[j]])
	})

	s.order = order
	s.arrivals = make(map[string][]int, len(order))
	for _, route := range order {
		s.arrivals[route] = next.Minutes[route]
	}
	if s.currentIndex >= len(s.order) {
		s.currentIndex = 0
	}
	return s.order[0], true
}

func soonest(minutes []int) int {
	if len(minutes) == 0 {
		return math.MaxInt
	}
	return minutes[0]
}

// Advance moves to the next route. With fewer than two routes it does
// nothing and returns false.
func (s *State) Advance() bool {
	if len(s.order) < 2 {
		return false
	}
	s.currentIndex = (s.currentIndex + 1) % len(s.order)
	return true
}

// SetLabel changes the label shown while no route has been ingested.
func (s *State) SetLabel(label string) {
	if label == "" {
		label = DefaultRouteLabel
	}
	s.label = label
}

// Len is the number of routes in the rotation.
func (s *State) Len() int {
	return len(s.order)
}

// ViewModel projects the current route, showing at most displayCount rows.
// With nothing to show it returns three placeholder rows.
func (s *State) ViewModel(displayCount int) ViewModel {
	if len(s.order) == 0 {
		return ViewModel{RouteLabel: s.label, ArrivalMinutes: placeholders()}
	}

	route := s.order[s.currentIndex]
	minutes := s.arrivals[route]
	if len(minutes) == 0 {
		return ViewModel{RouteLabel: route, ArrivalMinutes: placeholders()}
	}

	n := min(len(minutes), max(displayCount, 1))
	rows := make([]Arrival, n)
	for i := range rows {
		rows[i] = Arrival{Minutes: minutes[i]}
	}
	return ViewModel{RouteLabel: route, ArrivalMinutes: rows}
}

// Snapshot is a detached copy of the rotation for inspection.
type Snapshot struct {
	Order        []string         `json:"order"`
	Arrivals     map[string][]int `json:"arrivals"`
	CurrentIndex int              `json:"currentIndex"`
	Label        string           `json:"placeholderLabel"`
}

func (s *State) Snapshot() Snapshot {
	arrivals := make(map[string][]int, len(s.arrivals))
	for route, minutes := range s.arrivals {
		arrivals[route] = append([]int(nil), minutes...)
	}
	return Snapshot{
		Order:        append([]string{}, s.order...),
		Arrivals:     arrivals,
		CurrentIndex: s.currentIndex,
		Label:        s.label,
	}
}
