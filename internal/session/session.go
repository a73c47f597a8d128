// Package session loads recorded missions from their session folders.
//
// A session folder holds the telemetry of one mission:
//
//	<root>/<session>/videos/*.vtt               telemetry subtitle tracks
//	<root>/<session>/logs/navigation.csv        tabular navigation log
//	<root>/<session>/missions/mission.json      planned waypoints
//	<root>/<session>/missions/mission_name.txt  mission name
//	<root>/<session>/logs/behaviour_states.csv  behaviour timeline
//
// At least one telemetry file (VTT or navigation CSV) must exist; the rest
// are optional.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"time"

	"github.com/auvmap/analyzer/internal/parser"
	"github.com/auvmap/analyzer/internal/trajectory"
	"github.com/auvmap/analyzer/pkg/core"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"golang.org/x/sync/errgroup"
)

var (
	// ErrSessionNotFound is returned when the session folder or its
	// telemetry is missing.
	ErrSessionNotFound = errors.New("session not found")
	// ErrEmptyTrajectory is returned when a session has no valid samples.
	ErrEmptyTrajectory = trajectory.ErrEmptyTrajectory
)

// Error ties a load failure to its session.
type Error struct {
	SessionID string
	Err       error
}

func (e *Error) Error() string {
	return fmt.Sprintf("session %s: %v", e.SessionID, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Kind classifies err for the report payload.
func Kind(err error) core.ErrorKind {
	switch {
	case errors.Is(err, ErrSessionNotFound):
		return core.KindSessionNotFound
	case errors.Is(err, ErrEmptyTrajectory):
		return core.KindEmptyTrajectory
	default:
		return core.KindOther
	}
}

// Options configures a Loader.
type Options struct {
	Root         string
	GapThreshold time.Duration
	// ResampleInterval in meters; zero keeps every sample.
	ResampleInterval float64
	Workers          int
}

// Session is a loaded mission.
type Session struct {
	ID          string
	MissionName string
	Trajectory  *trajectory.Trajectory
	Plan        *core.MissionPlan
	Behaviours  []core.BehaviourState
	Warnings    []string
}

// Result is the outcome of loading one session. Exactly one of Session and
// Err is set.
type Result struct {
	ID      string
	Session *Session
	Err     error
}

// Loader reads session folders.
type Loader struct {
	opts   Options
	parser *parser.Parser
	logger *slog.Logger

	loaded   metric.Int64Counter
	rejected metric.Int64Counter
}

// NewLoader returns a Loader. A nil logger uses slog.Default().
func NewLoader(opts Options, logger *slog.Logger) (*Loader, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if opts.Workers < 1 {
		opts.Workers = 1
	}
	l := &Loader{
		opts:   opts,
		parser: parser.NewParser(logger),
		logger: logger,
	}

	m := meter()
	var err error
	l.loaded, err = m.Int64Counter(
		"session.samples.loaded",
		metric.WithDescription("Valid navigation samples loaded"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating loaded counter: %w", err)
	}
	l.rejected, err = m.Int64Counter(
		"session.samples.rejected",
		metric.WithDescription("Navigation records rejected"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating rejected counter: %w", err)
	}
	return l, nil
}

// LoadAll loads ids concurrently, at most Options.Workers at a time.
// Results are in the order of ids regardless of scheduling. A failing
// session does not stop the others; only ctx cancellation does.
func (l *Loader) LoadAll(ctx context.Context, ids []string) ([]Result, error) {
	results := make([]Result, len(ids))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(l.opts.Workers)

	for i, id := range ids {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			s, err := l.Load(gctx, id)
			results[i] = Result{ID: id, Session: s, Err: err}
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return err
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return results, err
	}
	return results, nil
}

// Load reads one session. Failures are returned as *Error.
func (l *Loader) Load(ctx context.Context, id string) (*Session, error) {
	dir := filepath.Join(l.opts.Root, id)
	if info, err := os.Stat(dir); err != nil || !info.IsDir() {
		return nil, &Error{SessionID: id, Err: ErrSessionNotFound}
	}

	files, err := telemetryFiles(dir)
	if err != nil {
		return nil, &Error{SessionID: id, Err: err}
	}
	if len(files) == 0 {
		return nil, &Error{SessionID: id, Err: fmt.Errorf("no telemetry in %s: %w", dir, ErrSessionNotFound)}
	}

	var sources [][]parser.Record
	for _, f := range files {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		records, err := l.readTelemetry(f)
		if err != nil {
			return nil, &Error{SessionID: id, Err: err}
		}
		sources = append(sources, records)
	}

	s := &Session{ID: id}
	merged := mergeClocks(sources)
	if merged.relative && len(sources) > 1 {
		s.Warnings = append(s.Warnings, fmt.Sprintf("session %s: %d telemetry files without a wall clock; offsets are per file", id, len(sources)))
	}
	s.MissionName = merged.mission

	attrs := metric.WithAttributes(attribute.String("session", id))
	l.loaded.Add(ctx, int64(len(merged.samples)), attrs)
	l.rejected.Add(ctx, int64(len(merged.rejected)), attrs)

	tr, err := trajectory.New(id, merged.samples, trajectory.Options{
		GapThreshold: l.opts.GapThreshold,
		ClockOrigin:  merged.origin,
		Rejected:     merged.rejected,
	})
	if errors.Is(err, trajectory.ErrEmptyTrajectory) {
		return nil, &Error{SessionID: id, Err: ErrEmptyTrajectory}
	}
	if err != nil {
		return nil, &Error{SessionID: id, Err: err}
	}
	if l.opts.ResampleInterval > 0 {
		if tr, err = tr.ResampleByDistance(l.opts.ResampleInterval); err != nil {
			return nil, &Error{SessionID: id, Err: err}
		}
	}
	s.Trajectory = tr

	l.readMission(dir, s)

	l.logger.Info("Loaded session",
		"session", id,
		"files", len(files),
		"samples", tr.Len(),
		"rejected", tr.RejectedCount(),
		"gaps", len(tr.Gaps()))
	for _, w := range s.Warnings {
		l.logger.Warn(w, "session", id)
	}
	return s, nil
}

// telemetryFiles lists VTT tracks in name order followed by the navigation
// log, when present.
func telemetryFiles(dir string) ([]string, error) {
	files, err := filepath.Glob(filepath.Join(dir, "videos", "*.vtt"))
	if err != nil {
		return nil, err
	}
	slices.Sort(files)
	nav := filepath.Join(dir, "logs", "navigation.csv")
	if _, err := os.Stat(nav); err == nil {
		files = append(files, nav)
	}
	return files, nil
}

func (l *Loader) readTelemetry(path string) ([]parser.Record, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("error opening %s: %w", path, err)
	}
	defer f.Close()

	name := filepath.Base(path)
	if filepath.Ext(path) == ".vtt" {
		return l.parser.ParseVTT(f, name)
	}
	return l.parser.ParseNavigationCSV(f, name)
}

// readMission loads the optional mission files. Problems become warnings.
func (l *Loader) readMission(dir string, s *Session) {
	missions := filepath.Join(dir, "missions")

	if f, err := os.Open(filepath.Join(missions, "mission_name.txt")); err == nil {
		name, err := l.parser.ParseMissionName(f)
		f.Close()
		if err != nil {
			s.Warnings = append(s.Warnings, fmt.Sprintf("mission_name.txt: %v", err))
		} else if name != "" {
			s.MissionName = name
		}
	}

	if f, err := os.Open(filepath.Join(missions, "mission.json")); err == nil {
		plan, err := l.parser.ParseMissionPlan(f)
		f.Close()
		switch {
		case err != nil:
			s.Warnings = append(s.Warnings, fmt.Sprintf("mission.json: %v", err))
		case len(plan.Waypoints) == 0:
			s.Warnings = append(s.Warnings, "mission.json: no usable waypoints")
		default:
			if plan.Name == "" {
				plan.Name = s.MissionName
			}
			s.Plan = &plan
		}
	}

	if f, err := os.Open(filepath.Join(dir, "logs", "behaviour_states.csv")); err == nil {
		states, err := l.parser.ParseBehaviourStates(f)
		f.Close()
		if err != nil {
			s.Warnings = append(s.Warnings, fmt.Sprintf("behaviour_states.csv: %v", err))
		} else {
			s.Behaviours = states
		}
	}
}
