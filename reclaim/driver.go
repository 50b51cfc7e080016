package reclaim

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/nathants/lambda-reclaim/lib"
)

const (
	ReasonDone      = "done"
	ReasonMaxRounds = "max-rounds"
	ReasonCanceled  = "canceled"
)

type Config struct {
	Region    string
	Prefix    string
	Functions []string
	Interval  time.Duration
	// MaxRounds of 0 means unbounded.
	MaxRounds     int
	Workers       int
	Retries       uint
	InvokeTimeout time.Duration
}

type RoundStats struct {
	Round     int
	Changed   int
	Errors    int
	Reclaimed int
	Total     int
	Elapsed   time.Duration
	Sleep     time.Duration
}

type Summary struct {
	Rounds    int
	Reclaimed int
	Total     int
	Reason    string
}

// MetricsSink receives one call per completed round.
type MetricsSink interface {
	PutRound(ctx context.Context, stats RoundStats) error
}

// Driver holds everything a run needs. Construct with NewDriver; Now and Sleep
// may be replaced before Run.
type Driver struct {
	Config  Config
	Invoker Invoker
	Logger  *lib.LoggerStruct
	Metrics MetricsSink
	State   *DriverState
	Now     func() time.Time
	Sleep   func(ctx context.Context, d time.Duration) error
}

func NewDriver(config Config, invoker Invoker, logger *lib.LoggerStruct) *Driver {
	return &Driver{
		Config:  config,
		Invoker: invoker,
		Logger:  logger,
		State:   NewDriverState(config.Functions),
		Now:     time.Now,
		Sleep:   sleepContext,
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// PaceSleep is how long to wait so rounds start on interval boundaries, never negative.
func PaceSleep(interval, elapsed time.Duration) time.Duration {
	if elapsed >= interval {
		return 0
	}
	return interval - elapsed
}

func (d *Driver) Run(ctx context.Context) (*Summary, error) {
	if len(d.Config.Functions) == 0 {
		return nil, fmt.Errorf("no functions to invoke")
	}
	if d.Config.Interval < 0 {
		return nil, fmt.Errorf("interval cannot be negative: %s", d.Config.Interval)
	}
	summary := &Summary{Total: d.State.Total()}
	for round := 1; ; round++ {
		start := d.Now()
		d.Logger.Infof("=== Round %d @ %s | reclaimed %d/%d ===", round, start.UTC().Format(time.RFC3339), d.State.ReclaimedCount(), d.State.Total())
		stats := d.Round(ctx, round)
		stats.Elapsed = d.Now().Sub(start)
		summary.Rounds = round
		summary.Reclaimed = stats.Reclaimed
		if ctx.Err() != nil {
			summary.Reason = ReasonCanceled
			d.Logger.Warnf("CANCELED: during round %d. reclaimed %d/%d.", round, stats.Reclaimed, stats.Total)
			return summary, nil
		}
		done := d.State.Done()
		capped := d.Config.MaxRounds > 0 && round >= d.Config.MaxRounds
		if !done && !capped {
			stats.Sleep = PaceSleep(d.Config.Interval, stats.Elapsed)
		}
		d.Logger.Infof("Round summary: round=%d changed_this_round=%d errors=%d reclaimed=%d/%d elapsed=%.1fs sleep=%.1fs",
			round, stats.Changed, stats.Errors, stats.Reclaimed, stats.Total, stats.Elapsed.Seconds(), stats.Sleep.Seconds())
		d.putMetrics(ctx, stats)
		if done {
			summary.Reason = ReasonDone
			d.Logger.Infof("DONE: all %d functions observed at least one reclaim (instance_id change).", stats.Total)
			return summary, nil
		}
		if capped {
			summary.Reason = ReasonMaxRounds
			d.Logger.Infof("STOP: reached MAX_ROUNDS=%d. reclaimed %d/%d.", d.Config.MaxRounds, stats.Reclaimed, stats.Total)
			return summary, nil
		}
		err := d.Sleep(ctx, stats.Sleep)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				summary.Reason = ReasonCanceled
				d.Logger.Warnf("CANCELED: after round %d. reclaimed %d/%d.", round, stats.Reclaimed, stats.Total)
				return summary, nil
			}
			return summary, err
		}
	}
}

// Round invokes every function once and applies the outcomes to the state.
func (d *Driver) Round(ctx context.Context, round int) RoundStats {
	stats := RoundStats{Round: round, Total: d.State.Total()}
	outcomes := InvokeAll(ctx, d.Invoker, d.Config.Functions, InvokeOptions{
		Workers: d.Config.Workers,
		Timeout: d.Config.InvokeTimeout,
		Retries: d.Config.Retries,
	})
	for _, outcome := range outcomes {
		if outcome.Err != nil {
			stats.Errors++
			d.Logger.Warnf("%s", outcome.Err)
			continue
		}
		t := d.State.Observe(round, outcome.Result)
		d.logTransition(t)
		if t.Observation == ObservedChanged {
			stats.Changed++
		}
	}
	stats.Reclaimed = d.State.ReclaimedCount()
	return stats
}

func (d *Driver) logTransition(t Transition) {
	switch t.Observation {
	case ObservedFirst:
		d.Logger.Infof("%s: FIRST instance_id=%s", t.Function, t.New)
	case ObservedSame:
		d.Logger.Infof("%s: same instance_id=%s", t.Function, t.New)
	case ObservedChanged:
		lived := ""
		if t.PrevLifetime > 0 {
			lived = fmt.Sprintf(" prev_alive>=%s", lifetimeString(t.PrevLifetime))
		}
		d.Logger.Infof("%s: CHANGED prev=%s new=%s  (reclaimed %d/%d)%s", t.Function, t.Prev, t.New, d.State.ReclaimedCount(), d.State.Total(), lived)
	}
}

func lifetimeString(lifetime time.Duration) string {
	now := time.Now()
	return strings.TrimSpace(humanize.RelTime(now.Add(-lifetime), now, "", ""))
}

func (d *Driver) putMetrics(ctx context.Context, stats RoundStats) {
	if d.Metrics == nil {
		return
	}
	err := d.Metrics.PutRound(ctx, stats)
	if err != nil {
		d.Logger.Warnf("metrics publish failed: %s", err)
	}
}
