package reclaim

import (
	"sort"
	"time"
)

type Observation int

const (
	ObservedFirst Observation = iota
	ObservedSame
	ObservedChanged
)

func (o Observation) String() string {
	switch o {
	case ObservedFirst:
		return "first"
	case ObservedSame:
		return "same"
	case ObservedChanged:
		return "changed"
	default:
		return "unknown"
	}
}

// Transition describes what one successful observation did to the state.
type Transition struct {
	Function    string
	Observation Observation
	Prev        string
	New         string
	// NewlyReclaimed is set only the first time a function changes.
	NewlyReclaimed bool
	// PrevLifetime is how long the previous environment was known to be alive,
	// from its cold start to the last response it served. Zero when unknown.
	PrevLifetime time.Duration
}

// DriverState is owned by the driver loop and is not safe for concurrent use.
type DriverState struct {
	FirstID   map[string]string
	CurrentID map[string]string
	Reclaimed map[string]struct{}

	names        []string
	reclaimRound map[string]int
	changes      map[string]int
	envStart     map[string]time.Time
	envLastSeen  map[string]time.Time
	lifetime     map[string]time.Duration
}

func NewDriverState(names []string) *DriverState {
	sorted := append([]string(nil), names...)
	sort.Strings(sorted)
	return &DriverState{
		FirstID:      map[string]string{},
		CurrentID:    map[string]string{},
		Reclaimed:    map[string]struct{}{},
		names:        sorted,
		reclaimRound: map[string]int{},
		changes:      map[string]int{},
		envStart:     map[string]time.Time{},
		envLastSeen:  map[string]time.Time{},
		lifetime:     map[string]time.Duration{},
	}
}

// Observe applies one successful invocation result observed during round.
func (s *DriverState) Observe(round int, result *InvocationResult) Transition {
	name := result.FunctionName
	id := result.InstanceID
	t := Transition{Function: name, New: id}
	prev, seen := s.CurrentID[name]
	switch {
	case !seen:
		if _, ok := s.FirstID[name]; !ok {
			s.FirstID[name] = id
		}
		s.CurrentID[name] = id
		t.Observation = ObservedFirst
	case prev == id:
		t.Observation = ObservedSame
		t.Prev = prev
	default:
		t.Observation = ObservedChanged
		t.Prev = prev
		start, last := s.envStart[name], s.envLastSeen[name]
		if !start.IsZero() && !last.IsZero() && last.After(start) {
			t.PrevLifetime = last.Sub(start)
			s.lifetime[name] = t.PrevLifetime
		}
		s.CurrentID[name] = id
		s.changes[name]++
		if _, ok := s.Reclaimed[name]; !ok {
			s.Reclaimed[name] = struct{}{}
			s.reclaimRound[name] = round
			t.NewlyReclaimed = true
		}
	}
	if t.Observation != ObservedSame {
		s.envStart[name] = result.FirstSeen()
	}
	s.envLastSeen[name] = result.Now()
	return t
}

func (s *DriverState) Total() int {
	return len(s.names)
}

func (s *DriverState) ReclaimedCount() int {
	return len(s.Reclaimed)
}

func (s *DriverState) IsReclaimed(name string) bool {
	_, ok := s.Reclaimed[name]
	return ok
}

// Done reports whether every function was observed reclaimed at least once.
func (s *DriverState) Done() bool {
	return len(s.names) > 0 && len(s.Reclaimed) == len(s.names)
}

func (s *DriverState) Names() []string {
	return s.names
}

// ReclaimRound is the round the function was first seen changed, or 0.
func (s *DriverState) ReclaimRound(name string) int {
	return s.reclaimRound[name]
}

func (s *DriverState) Changes(name string) int {
	return s.changes[name]
}

func (s *DriverState) LastLifetime(name string) time.Duration {
	return s.lifetime[name]
}
