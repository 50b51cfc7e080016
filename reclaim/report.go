package reclaim

import (
	"encoding/json"
	"time"
)

type FunctionReport struct {
	Name                string  `json:"name"`
	FirstID             string  `json:"first_id,omitempty"`
	CurrentID           string  `json:"current_id,omitempty"`
	Reclaimed           bool    `json:"reclaimed"`
	ReclaimRound        int     `json:"reclaim_round,omitempty"`
	Changes             int     `json:"changes"`
	LastLifetimeSeconds float64 `json:"last_lifetime_seconds,omitempty"`
}

type Report struct {
	Region     string           `json:"region"`
	Prefix     string           `json:"prefix"`
	Interval   string           `json:"interval"`
	Total      int              `json:"total"`
	Reclaimed  int              `json:"reclaimed"`
	Rounds     int              `json:"rounds"`
	Reason     string           `json:"reason"`
	StartedAt  time.Time        `json:"started_at"`
	FinishedAt time.Time        `json:"finished_at"`
	Functions  []FunctionReport `json:"functions"`
}

func NewReport(config Config, state *DriverState, summary *Summary, started, finished time.Time) *Report {
	report := &Report{
		Region:     config.Region,
		Prefix:     config.Prefix,
		Interval:   config.Interval.String(),
		Total:      state.Total(),
		Reclaimed:  state.ReclaimedCount(),
		StartedAt:  started.UTC(),
		FinishedAt: finished.UTC(),
	}
	if summary != nil {
		report.Rounds = summary.Rounds
		report.Reason = summary.Reason
	}
	for _, name := range state.Names() {
		report.Functions = append(report.Functions, FunctionReport{
			Name:                name,
			FirstID:             state.FirstID[name],
			CurrentID:           state.CurrentID[name],
			Reclaimed:           state.IsReclaimed(name),
			ReclaimRound:        state.ReclaimRound(name),
			Changes:             state.Changes(name),
			LastLifetimeSeconds: state.LastLifetime(name).Seconds(),
		})
	}
	return report
}

func (r *Report) JSON() ([]byte, error) {
	return json.MarshalIndent(r, "", "  ")
}
