package reclaim

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/nathants/lambda-reclaim/lib"
)

// step is what a function returns on one call. An empty id with no error is a malformed response.
type step struct {
	id  string
	err error
}

// scriptInvoker replays per function steps; the last step repeats once the script runs out.
type scriptInvoker struct {
	lock    sync.Mutex
	scripts map[string][]step
	calls   map[string]int
}

func newScriptInvoker(scripts map[string][]step) *scriptInvoker {
	return &scriptInvoker{scripts: scripts, calls: map[string]int{}}
}

func (s *scriptInvoker) Invoke(_ context.Context, function string) ([]byte, error) {
	s.lock.Lock()
	script := s.scripts[function]
	n := s.calls[function]
	s.calls[function]++
	s.lock.Unlock()
	if len(script) == 0 {
		return nil, fmt.Errorf("no script for %s", function)
	}
	if n >= len(script) {
		n = len(script) - 1
	}
	st := script[n]
	if st.err != nil {
		return nil, st.err
	}
	if st.id == "" {
		return []byte(`{"aws_request_id":"x"}`), nil
	}
	return json.Marshal(map[string]interface{}{"instance_id": st.id, "now_unix": 1})
}

func ids(xs ...string) []step {
	var steps []step
	for _, x := range xs {
		steps = append(steps, step{id: x})
	}
	return steps
}

type testRun struct {
	driver *Driver
	logs   *bytes.Buffer
	sleeps []time.Duration
}

func newTestRun(functions []string, invoker Invoker, maxRounds int) *testRun {
	run := &testRun{logs: &bytes.Buffer{}}
	logger := lib.NewTeeLogger(run.logs, nil, false)
	run.driver = NewDriver(Config{
		Prefix:    "test",
		Functions: functions,
		Interval:  time.Minute,
		MaxRounds: maxRounds,
		Workers:   4,
	}, invoker, logger)
	now := time.Unix(0, 0)
	run.driver.Now = func() time.Time {
		now = now.Add(time.Second)
		return now
	}
	run.driver.Sleep = func(_ context.Context, d time.Duration) error {
		run.sleeps = append(run.sleeps, d)
		return nil
	}
	return run
}

func TestRunStopsAtMaxRounds(t *testing.T) {
	invoker := newScriptInvoker(map[string][]step{
		"f-000": ids("A", "B"),
		"f-001": ids("C", "D"),
		"f-002": ids("E"),
	})
	run := newTestRun([]string{"f-000", "f-001", "f-002"}, invoker, 5)
	summary, err := run.driver.Run(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if summary.Rounds != 5 {
		t.Errorf("got: %d rounds, want: 5", summary.Rounds)
	}
	if summary.Reclaimed != 2 || summary.Total != 3 {
		t.Errorf("got: %d/%d, want: 2/3", summary.Reclaimed, summary.Total)
	}
	if summary.Reason != ReasonMaxRounds {
		t.Errorf("got: %s, want: %s", summary.Reason, ReasonMaxRounds)
	}
	if len(run.sleeps) != 4 {
		t.Errorf("got: %d sleeps, want: 4", len(run.sleeps))
	}
	if invoker.calls["f-002"] != 5 {
		t.Errorf("got: %d calls, want: 5", invoker.calls["f-002"])
	}
	if !strings.Contains(run.logs.String(), "STOP: reached MAX_ROUNDS=5. reclaimed 2/3.") {
		t.Errorf("missing stop line in:\n%s", run.logs.String())
	}
}

func TestRunDoneWithoutTrailingSleep(t *testing.T) {
	invoker := newScriptInvoker(map[string][]step{
		"f-000": ids("A", "B"),
		"f-001": ids("C", "D"),
		"f-002": ids("E", "F"),
	})
	run := newTestRun([]string{"f-000", "f-001", "f-002"}, invoker, 0)
	summary, err := run.driver.Run(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if summary.Rounds != 2 {
		t.Errorf("got: %d rounds, want: 2", summary.Rounds)
	}
	if summary.Reason != ReasonDone {
		t.Errorf("got: %s, want: %s", summary.Reason, ReasonDone)
	}
	if summary.Reclaimed != 3 {
		t.Errorf("got: %d, want: 3", summary.Reclaimed)
	}
	if len(run.sleeps) != 1 {
		t.Errorf("got: %d sleeps, want: 1", len(run.sleeps))
	}
	if !strings.Contains(run.logs.String(), "DONE: all 3 functions") {
		t.Errorf("missing done line in:\n%s", run.logs.String())
	}
}

func TestRunLogsTransitions(t *testing.T) {
	invoker := newScriptInvoker(map[string][]step{
		"f-000": ids("A", "A", "B", "B"),
	})
	run := newTestRun([]string{"f-000"}, invoker, 4)
	_, err := run.driver.Run(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	var got []string
	for _, line := range strings.Split(run.logs.String(), "\n") {
		switch {
		case strings.Contains(line, "f-000: FIRST"):
			got = append(got, "first")
		case strings.Contains(line, "f-000: same"):
			got = append(got, "same")
		case strings.Contains(line, "f-000: CHANGED"):
			got = append(got, "changed")
		}
	}
	want := []string{"first", "same", "changed"}
	if strings.Join(got, ",") != strings.Join(want, ",") {
		t.Errorf("got: %v, want: %v", got, want)
	}
	if run.driver.State.ReclaimRound("f-000") != 3 {
		t.Errorf("got: %d, want: 3", run.driver.State.ReclaimRound("f-000"))
	}
}

func TestRunSameAfterChange(t *testing.T) {
	invoker := newScriptInvoker(map[string][]step{
		"f-000": ids("A", "A", "B", "B"),
		"f-001": ids("X"),
	})
	run := newTestRun([]string{"f-000", "f-001"}, invoker, 4)
	_, err := run.driver.Run(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	lines := strings.Split(strings.TrimSpace(run.logs.String()), "\n")
	var f0 []string
	for _, line := range lines {
		if strings.Contains(line, "f-000:") {
			f0 = append(f0, line)
		}
	}
	if len(f0) != 4 {
		t.Fatalf("got: %d lines for f-000, want: 4\n%s", len(f0), strings.Join(f0, "\n"))
	}
	if !strings.Contains(f0[3], "f-000: same instance_id=B") {
		t.Errorf("got: %s", f0[3])
	}
}

func TestRunFailureThenChange(t *testing.T) {
	invoker := newScriptInvoker(map[string][]step{
		"f-000": {{id: "A"}, {err: errors.New("throttled")}, {id: "B"}},
	})
	run := newTestRun([]string{"f-000"}, invoker, 10)
	summary, err := run.driver.Run(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if summary.Reason != ReasonDone || summary.Rounds != 3 {
		t.Errorf("got: %s after %d rounds, want: done after 3", summary.Reason, summary.Rounds)
	}
	if run.driver.State.ReclaimRound("f-000") != 3 {
		t.Errorf("got: %d, want: 3", run.driver.State.ReclaimRound("f-000"))
	}
	if !strings.Contains(run.logs.String(), "f-000 invoke failed: throttled") {
		t.Errorf("missing failure line in:\n%s", run.logs.String())
	}
	if !strings.Contains(run.logs.String(), "round=2 changed_this_round=0 errors=1") {
		t.Errorf("missing round 2 summary in:\n%s", run.logs.String())
	}
}

func TestRoundMalformedLeavesStateUntouched(t *testing.T) {
	invoker := newScriptInvoker(map[string][]step{
		"f-000": {{id: "A"}, {id: ""}},
	})
	run := newTestRun([]string{"f-000"}, invoker, 0)
	ctx := context.Background()
	stats := run.driver.Round(ctx, 1)
	if stats.Errors != 0 {
		t.Fatalf("got: %d errors, want: 0", stats.Errors)
	}
	stats = run.driver.Round(ctx, 2)
	if stats.Errors != 1 {
		t.Errorf("got: %d errors, want: 1", stats.Errors)
	}
	if run.driver.State.CurrentID["f-000"] != "A" {
		t.Errorf("got: %s, want: A", run.driver.State.CurrentID["f-000"])
	}
	if !strings.Contains(run.logs.String(), "f-000 missing instance_id") {
		t.Errorf("missing malformed line in:\n%s", run.logs.String())
	}
}

func TestRunSleepsUntilNextInterval(t *testing.T) {
	invoker := newScriptInvoker(map[string][]step{"f-000": ids("A")})
	type test struct {
		roundTakes time.Duration
		want       time.Duration
	}
	tests := []test{
		{20 * time.Second, 40 * time.Second},
		{time.Minute, 0},
		{90 * time.Second, 0},
	}
	for _, test := range tests {
		run := newTestRun([]string{"f-000"}, invoker, 2)
		now := time.Unix(0, 0)
		calls := 0
		run.driver.Now = func() time.Time {
			calls++
			if calls%2 == 0 {
				now = now.Add(test.roundTakes)
			}
			return now
		}
		_, err := run.driver.Run(context.Background())
		if err != nil {
			t.Fatal(err)
		}
		if len(run.sleeps) != 1 || run.sleeps[0] != test.want {
			t.Errorf("round takes %s got: %v, want: [%s]", test.roundTakes, run.sleeps, test.want)
		}
	}
}

func TestPaceSleep(t *testing.T) {
	type test struct {
		interval time.Duration
		elapsed  time.Duration
		want     time.Duration
	}
	tests := []test{
		{time.Minute, 0, time.Minute},
		{time.Minute, 15 * time.Second, 45 * time.Second},
		{time.Minute, time.Minute, 0},
		{time.Minute, 2 * time.Minute, 0},
		{0, time.Second, 0},
	}
	for _, test := range tests {
		got := PaceSleep(test.interval, test.elapsed)
		if got != test.want {
			t.Errorf("PaceSleep(%s, %s) got: %s, want: %s", test.interval, test.elapsed, got, test.want)
		}
	}
}

func TestRunCanceledDuringSleep(t *testing.T) {
	invoker := newScriptInvoker(map[string][]step{"f-000": ids("A")})
	run := newTestRun([]string{"f-000"}, invoker, 0)
	ctx, cancel := context.WithCancel(context.Background())
	run.driver.Sleep = func(ctx context.Context, _ time.Duration) error {
		cancel()
		return ctx.Err()
	}
	summary, err := run.driver.Run(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if summary.Reason != ReasonCanceled || summary.Rounds != 1 {
		t.Errorf("got: %s after %d rounds, want: canceled after 1", summary.Reason, summary.Rounds)
	}
}

type recordingMetrics struct {
	rounds []RoundStats
	err    error
}

func (m *recordingMetrics) PutRound(_ context.Context, stats RoundStats) error {
	m.rounds = append(m.rounds, stats)
	return m.err
}

func TestRunPublishesMetricsEveryRound(t *testing.T) {
	invoker := newScriptInvoker(map[string][]step{"f-000": ids("A", "B")})
	run := newTestRun([]string{"f-000"}, invoker, 0)
	metrics := &recordingMetrics{err: errors.New("denied")}
	run.driver.Metrics = metrics
	_, err := run.driver.Run(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(metrics.rounds) != 2 {
		t.Fatalf("got: %d, want: 2", len(metrics.rounds))
	}
	last := metrics.rounds[1]
	if last.Changed != 1 || last.Reclaimed != 1 || last.Total != 1 {
		t.Errorf("got: %+v", last)
	}
	counts := RoundCounts(last)
	if counts["Reclaimed"] != 1 || counts["ChangedThisRound"] != 1 || counts["Errors"] != 0 {
		t.Errorf("got: %v", counts)
	}
	if !strings.Contains(run.logs.String(), "metrics publish failed: denied") {
		t.Errorf("missing metrics warning in:\n%s", run.logs.String())
	}
}

func TestRunRejectsNoFunctions(t *testing.T) {
	run := newTestRun(nil, newScriptInvoker(nil), 1)
	_, err := run.driver.Run(context.Background())
	if err == nil {
		t.Error("expected error")
	}
}

func TestReport(t *testing.T) {
	invoker := newScriptInvoker(map[string][]step{
		"f-000": ids("A", "B"),
		"f-001": ids("C"),
	})
	run := newTestRun([]string{"f-001", "f-000"}, invoker, 3)
	summary, err := run.driver.Run(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	report := NewReport(run.driver.Config, run.driver.State, summary, time.Unix(0, 0), time.Unix(60, 0))
	if report.Total != 2 || report.Reclaimed != 1 || report.Rounds != 3 || report.Reason != ReasonMaxRounds {
		t.Errorf("got: %+v", report)
	}
	if len(report.Functions) != 2 || report.Functions[0].Name != "f-000" {
		t.Fatalf("got: %+v", report.Functions)
	}
	f0 := report.Functions[0]
	if !f0.Reclaimed || f0.ReclaimRound != 2 || f0.FirstID != "A" || f0.CurrentID != "B" || f0.Changes != 1 {
		t.Errorf("got: %+v", f0)
	}
	if report.Functions[1].Reclaimed {
		t.Errorf("got: %+v", report.Functions[1])
	}
	data, err := report.JSON()
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), `"reclaim_round": 2`) {
		t.Errorf("got: %s", string(data))
	}
}
