package main

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/auvmap/analyzer/internal/align"
	"github.com/auvmap/analyzer/internal/analysis"
	"github.com/auvmap/analyzer/internal/config"
	"github.com/auvmap/analyzer/internal/report"
	"github.com/auvmap/analyzer/internal/session"
	"github.com/auvmap/analyzer/internal/stats"
	"github.com/auvmap/analyzer/pkg/core"
	"github.com/spf13/viper"
)

// outcome summarises a run for the exit code.
type outcome struct {
	payload      *core.ReportPayload
	failed       bool
	insufficient bool
}

func alignConfig(ac config.AnalysisConfig) align.Config {
	return align.Config{
		Mode:              core.AlignmentBasis(ac.AlignMode),
		TimeBasis:         align.TimeBasis(ac.TimeBasis),
		TimeTolerance:     ac.TimeTolerance,
		DistanceTolerance: ac.DistanceTolerance,
		SpatialTolerance:  ac.SpatialTolerance,
		Interpolate:       ac.Interpolate,
	}
}

func (a *app) run(ctx context.Context, opts options) int {
	engine, err := analysis.NewEngine(alignConfig(config.GetAnalysisConfig()), a.logger)
	if err != nil {
		a.logger.Error("Invalid analysis configuration", "error", err)
		return exitUsage
	}

	out, err := a.analyze(ctx, engine, opts.Sessions)
	if err != nil {
		a.logger.Error("Analysis aborted", "error", err)
		return exitFailure
	}

	if err := a.deliver(ctx, out.payload, opts); err != nil {
		a.logger.Error("Failed to write report", "error", err)
		out.failed = true
	}

	switch {
	case out.failed:
		a.logger.Error("Run finished with failures", "failures", len(out.payload.Failures))
		return exitFailure
	case out.insufficient:
		a.logger.Warn("Run finished with insufficient data for some statistics", "warnings", len(out.payload.Warnings))
		return exitOK
	default:
		a.logger.Info("Run finished", "sessions", len(out.payload.SessionIDs), "comparisons", len(out.payload.Comparisons))
		return exitOK
	}
}

// analyze loads ids and computes every statistic. ids[0] is the reference
// when more than one id is given. Session failures are recorded in the
// payload; only cancellation aborts.
func (a *app) analyze(ctx context.Context, engine *analysis.Engine, ids []string) (outcome, error) {
	ac := config.GetAnalysisConfig()
	loader, err := session.NewLoader(session.Options{
		Root:             viper.GetString("sessionsRoot"),
		GapThreshold:     ac.GapThreshold,
		ResampleInterval: ac.ResampleInterval,
		Workers:          viper.GetInt("workers"),
	}, a.logger)
	if err != nil {
		return outcome{}, err
	}

	results, err := loader.LoadAll(ctx, ids)
	if err != nil {
		return outcome{}, err
	}

	var out outcome
	in := report.Input{
		RunID:       a.runID,
		GeneratedAt: a.runStart.UTC(),
		Sessions:    make(map[string]report.SessionData, len(results)),
	}
	fail := func(id string, kind core.ErrorKind, err error) {
		out.failed = true
		in.Failures = append(in.Failures, core.SessionFailure{SessionID: id, Kind: kind, Message: err.Error()})
		a.logger.Error("Session failed", "session", id, "kind", kind, "error", err)
	}
	warnInsufficient := func(id, what string, err error) {
		out.insufficient = true
		msg := fmt.Sprintf("%s: %s: insufficient data for %s", id, what, strings.Join(stats.Insufficient(err), ", "))
		in.Warnings = append(in.Warnings, msg)
		a.logger.Warn("Insufficient data", "session", id, "stage", what, "fields", stats.Insufficient(err))
	}

	for _, r := range results {
		if r.Err != nil {
			fail(r.ID, session.Kind(r.Err), r.Err)
			continue
		}
		s := r.Session
		in.Warnings = append(in.Warnings, s.Warnings...)

		data := report.SessionData{
			Trajectory:  s.Trajectory,
			MissionName: s.MissionName,
			Plan:        s.Plan,
			Behaviours:  s.Behaviours,
		}
		data.Statistics, err = engine.SelfStatistics(s.Trajectory)
		if errors.Is(err, stats.ErrInsufficientData) {
			warnInsufficient(r.ID, "self statistics", err)
		} else if err != nil {
			fail(r.ID, core.KindOther, err)
			continue
		}

		if s.Plan != nil {
			acc, err := engine.PlanAccuracy(s.Trajectory, *s.Plan)
			switch {
			case errors.Is(err, analysis.ErrNoPlan):
			case errors.Is(err, stats.ErrInsufficientData):
				warnInsufficient(r.ID, "plan accuracy", err)
				data.PlanAccuracy = &acc
			case err != nil:
				in.Warnings = append(in.Warnings, fmt.Sprintf("%s: plan accuracy: %v", r.ID, err))
				a.logger.Warn("Plan accuracy failed", "session", r.ID, "error", err)
			default:
				data.PlanAccuracy = &acc
			}
		}

		in.SessionIDs = append(in.SessionIDs, r.ID)
		in.Sessions[r.ID] = data
	}

	if len(ids) > 1 {
		a.compare(engine, ids, &in, fail, warnInsufficient)
	}

	out.payload, err = report.Assemble(in)
	if err != nil {
		return outcome{}, err
	}
	return out, nil
}

// compare runs every candidate against ids[0].
func (a *app) compare(
	engine *analysis.Engine,
	ids []string,
	in *report.Input,
	fail func(string, core.ErrorKind, error),
	warnInsufficient func(string, string, error),
) {
	refID := ids[0]
	ref, ok := in.Sessions[refID]
	if !ok {
		for _, id := range ids[1:] {
			fail(id, core.KindMissingTrajectory,
				fmt.Errorf("comparison %s: reference %s: %w", core.ComparisonKey(refID, id), refID, report.ErrMissingTrajectory))
		}
		return
	}
	in.Reference = refID

	for _, id := range ids[1:] {
		candidate, ok := in.Sessions[id]
		if !ok {
			continue
		}
		c, err := engine.Compare(ref.Trajectory, candidate.Trajectory)
		switch {
		case errors.Is(err, stats.ErrInsufficientData):
			warnInsufficient(core.ComparisonKey(refID, id), "comparison", err)
		case err != nil:
			fail(id, core.KindOther, err)
			continue
		}
		if c.Unmatched > 0 {
			a.logger.Info("Comparison has unmatched samples",
				"comparison", core.ComparisonKey(refID, id),
				"unmatched", c.Unmatched,
				"coverage", c.Coverage,
				"reason", align.ErrToleranceExceeded)
		}
		in.Comparisons = append(in.Comparisons, c)
	}
}
