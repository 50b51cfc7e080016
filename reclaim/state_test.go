package reclaim

import (
	"testing"
	"time"
)

func result(function, id string) *InvocationResult {
	return &InvocationResult{FunctionName: function, InstanceID: id}
}

func TestObserveSequence(t *testing.T) {
	state := NewDriverState([]string{"f"})
	type test struct {
		id             string
		observation    Observation
		newlyReclaimed bool
	}
	tests := []test{
		{"A", ObservedFirst, false},
		{"A", ObservedSame, false},
		{"B", ObservedChanged, true},
		{"B", ObservedSame, false},
	}
	for i, test := range tests {
		round := i + 1
		tr := state.Observe(round, result("f", test.id))
		if tr.Observation != test.observation {
			t.Errorf("round %d got: %s, want: %s", round, tr.Observation, test.observation)
		}
		if tr.NewlyReclaimed != test.newlyReclaimed {
			t.Errorf("round %d got newly reclaimed: %v, want: %v", round, tr.NewlyReclaimed, test.newlyReclaimed)
		}
	}
	if !state.IsReclaimed("f") {
		t.Error("f should be reclaimed")
	}
	if state.ReclaimRound("f") != 3 {
		t.Errorf("got: %d, want: 3", state.ReclaimRound("f"))
	}
	if state.Changes("f") != 1 {
		t.Errorf("got: %d, want: 1", state.Changes("f"))
	}
}

func TestObserveFirstIDWriteOnceAndReclaimedMonotonic(t *testing.T) {
	state := NewDriverState([]string{"f", "g"})
	ids := []string{"A", "B", "C", "C", "D"}
	newly := 0
	for i, id := range ids {
		tr := state.Observe(i+1, result("f", id))
		if tr.NewlyReclaimed {
			newly++
		}
		if state.FirstID["f"] != "A" {
			t.Fatalf("first id overwritten: %s", state.FirstID["f"])
		}
		if i >= 1 && !state.IsReclaimed("f") {
			t.Fatalf("f left the reclaimed set at round %d", i+1)
		}
	}
	if newly != 1 {
		t.Errorf("got: %d newly reclaimed transitions, want: 1", newly)
	}
	if state.ReclaimedCount() != 1 {
		t.Errorf("got: %d, want: 1", state.ReclaimedCount())
	}
	if state.ReclaimRound("f") != 2 {
		t.Errorf("got: %d, want: 2", state.ReclaimRound("f"))
	}
	if state.Changes("f") != 3 {
		t.Errorf("got: %d, want: 3", state.Changes("f"))
	}
	if state.CurrentID["f"] != "D" {
		t.Errorf("got: %s, want: D", state.CurrentID["f"])
	}
	if state.Done() {
		t.Error("g was never reclaimed")
	}
}

func TestObservePrevLifetime(t *testing.T) {
	state := NewDriverState([]string{"f"})
	start := time.Unix(1000, 0)
	obs := func(round int, id string, firstSeen, now time.Time) Transition {
		return state.Observe(round, &InvocationResult{
			FunctionName:  "f",
			InstanceID:    id,
			FirstSeenUnix: UnixSeconds(firstSeen),
			NowUnix:       UnixSeconds(now),
		})
	}
	obs(1, "A", start, start.Add(time.Second))
	obs(2, "A", start, start.Add(10*time.Minute))
	tr := obs(3, "B", start.Add(20*time.Minute), start.Add(20*time.Minute))
	if tr.PrevLifetime != 10*time.Minute {
		t.Errorf("got: %s, want: 10m0s", tr.PrevLifetime)
	}
	if state.LastLifetime("f") != 10*time.Minute {
		t.Errorf("got: %s, want: 10m0s", state.LastLifetime("f"))
	}
}

func TestDoneRequiresEveryFunction(t *testing.T) {
	state := NewDriverState([]string{"a", "b"})
	for _, name := range []string{"a", "b"} {
		state.Observe(1, result(name, "1"))
	}
	state.Observe(2, result("a", "2"))
	if state.Done() {
		t.Error("should not be done with b pending")
	}
	state.Observe(2, result("b", "2"))
	if !state.Done() {
		t.Error("should be done")
	}
}
