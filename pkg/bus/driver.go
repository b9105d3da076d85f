package bus

import (
	"context"
	"strings"

	"github.com/charmbracelet/log"
)

// ContinuityWarning is appended to every report: replacement segments are
// not joined at corners, T-junctions or vias.
const ContinuityWarning = "Review corners, junctions and via connections for continuity: they are not adjusted."

// Result is the outcome for one selected segment.
type Result struct {
	Original Segment
	Cluster  *Cluster
	Applied  *Applied // nil on failure or in dry runs
	Err      error
}

// Summary aggregates a batch.
type Summary struct {
	Net       string
	Config    SplitConfig
	Selected  int
	Processed int
	Created   int
	Failed    int
	Failures  map[Code]int
	Results   []Result
	DryRun    bool
	Aborted   bool

	// Notice is set to an ErrNoMatchingSegments error when nothing was
	// selected. It is informational and never returned by Run.
	Notice error
}

// NoMatch reports whether the net had no straight segments.
func (s *Summary) NoMatch() bool {
	return s.Notice != nil
}

// Driver runs a split batch against a Model.
type Driver struct {
	logger    *log.Logger
	dryRun    bool
	groupName string
}

// Option configures a Driver.
type Option func(*Driver)

// WithLogger sets the logger. The default is log.Default().
func WithLogger(l *log.Logger) Option {
	return func(d *Driver) { d.logger = l }
}

// WithDryRun computes clusters without applying them.
func WithDryRun(dryRun bool) Option {
	return func(d *Driver) { d.dryRun = dryRun }
}

// WithGroupName sets the name given to every created group. "{net}" is
// replaced by the net name.
func WithGroupName(name string) Option {
	return func(d *Driver) { d.groupName = name }
}

// NewDriver creates a Driver.
func NewDriver(opts ...Option) *Driver {
	d := &Driver{}
	for _, opt := range opts {
		opt(d)
	}
	if d.logger == nil {
		d.logger = log.Default()
	}
	return d
}

// Run splits every straight segment of netName in m.
//
// Configuration errors are returned before the model is read. Degenerate
// segments and rejected transactions are counted in the summary and the
// batch continues. Cancelling ctx stops the batch before the next segment;
// transactions already applied stay applied and Run returns an
// ErrAborted error alongside the partial summary.
func (d *Driver) Run(ctx context.Context, m Model, netName string, cfg SplitConfig) (*Summary, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	summary := &Summary{
		Net:      netName,
		Config:   cfg,
		Failures: make(map[Code]int),
		DryRun:   d.dryRun,
	}

	selected := Select(m.Segments(), netName)
	summary.Selected = len(selected)
	if len(selected) == 0 {
		summary.Notice = newError(CodeNoMatchingSegments, "no straight segments found on net %q", netName)
		d.logger.Info("nothing to split", "net", netName)
		return summary, nil
	}

	d.logger.Debug("selected segments", "net", netName, "count", len(selected))

	group := GroupSpec{Name: strings.ReplaceAll(d.groupName, "{net}", netName)}

	for _, seg := range selected {
		if err := ctx.Err(); err != nil {
			summary.Aborted = true
			d.logger.Warn("batch aborted", "net", netName, "remaining", len(selected)-len(summary.Results))
			return summary, wrapError(CodeAborted, err, "aborted after %d of %d segments", len(summary.Results), len(selected))
		}

		result := d.splitOne(m, seg, cfg, group)
		summary.Results = append(summary.Results, result)

		if result.Err != nil {
			summary.Failed++
			summary.Failures[GetCode(result.Err)]++
			d.logger.Warn("segment skipped", "segment", seg.Handle, "err", result.Err)
			continue
		}
		summary.Processed++
		summary.Created += len(result.Cluster.Segments)
	}

	d.logger.Debug("batch finished",
		"net", netName,
		"processed", summary.Processed,
		"created", summary.Created,
		"failed", summary.Failed)

	return summary, nil
}

func (d *Driver) splitOne(m Model, seg Segment, cfg SplitConfig, group GroupSpec) Result {
	result := Result{Original: seg}

	cluster, err := Split(seg, cfg)
	if err != nil {
		result.Err = err
		return result
	}
	cluster.Group = group
	result.Cluster = cluster

	if d.dryRun {
		return result
	}

	applied, err := m.Apply(cluster.Transaction())
	if err != nil {
		result.Err = &Error{
			Code:    CodeTransactionRejected,
			Message: "not applied",
			Handle:  seg.Handle,
			Cause:   err,
		}
		return result
	}
	result.Applied = applied

	d.logger.Debug("segment split",
		"segment", seg.Handle,
		"layer", seg.Layer,
		"new", len(applied.Segments),
		"group", applied.Group)

	return result
}
