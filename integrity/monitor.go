package integrity

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"gitlab.com/stephen-fox/pagewatch/asmkit"
	"gitlab.com/stephen-fox/pagewatch/checksum"
	"gitlab.com/stephen-fox/pagewatch/diff"
	"gitlab.com/stephen-fox/pagewatch/memory"
	"gitlab.com/stephen-fox/pagewatch/patchscript"
)

const (
	// Idle is the state of a Monitor before its snapshots are built.
	Idle State = iota

	// Watching is the state of a Monitor once its snapshots are
	// built. A Monitor never leaves this state.
	Watching
)

// State is the state of a Monitor.
type State int32

func (o State) String() string {
	switch o {
	case Idle:
		return "idle"
	case Watching:
		return "watching"
	default:
		return fmt.Sprintf("unknown state %d", int32(o))
	}
}

// Target is the part of a memory.Space that a Monitor needs.
type Target interface {
	memory.ModuleResolver
	memory.RegionQuerier
	memory.Reader
}

// Config configures a Monitor.
type Config struct {
	// Target is the address space to watch.
	Target Target

	// Module is the name of the module to watch. An empty
	// string refers to the main module.
	Module string

	// Enumerator controls which regions are watched.
	Enumerator memory.Enumerator

	// PollInterval is the pause between two sweeps. Zero means
	// sweeps run back to back.
	PollInterval time.Duration

	// Disassembler optionally annotates each script instruction in
	// an executable region with the instruction it modifies. The
	// whole region is decoded each time a report is produced.
	Disassembler *asmkit.Disassembler

	// OnReport is called by Run for each report, on the
	// goroutine that called Run. It must not block for long.
	// Reports are logged when it is nil.
	OnReport func(Report)

	// OnError is called by Run for each per-region sweep error.
	// Errors are logged when it is nil.
	OnError func(error)

	// OnSweep is optionally called by Run with each complete sweep
	// result, after OnReport and OnError.
	OnSweep func(SweepResult)

	// Logger optionally overrides the logger. By default,
	// log.Default is used for reports and errors, and nothing
	// else is logged.
	Logger *log.Logger
}

func (o Config) validate() error {
	if o.Target == nil {
		return errors.New("target cannot be nil")
	}

	if o.PollInterval < 0 {
		return fmt.Errorf("poll interval cannot be negative - it is %s", o.PollInterval)
	}

	return nil
}

// NewMonitorOrExit calls NewMonitor. memory.DefaultExitFn is invoked
// if an error occurs.
func NewMonitorOrExit(config Config) *Monitor {
	m, err := NewMonitor(config)
	if err != nil {
		memory.DefaultExitFn(fmt.Errorf("failed to create monitor - %w", err))
	}
	return m
}

// NewMonitor creates an Idle *Monitor.
func NewMonitor(config Config) (*Monitor, error) {
	err := config.validate()
	if err != nil {
		return nil, err
	}

	return &Monitor{
		config: config,
	}, nil
}

// Monitor watches the monitored regions of one module.
//
// Init, Sweep and Run must be called from a single goroutine.
// State and Snapshots may be called from any goroutine.
type Monitor struct {
	config Config
	initMu sync.Mutex
	state  atomic.Int32
	set    *Set
	sweeps uint64
}

// State returns the monitor's current state.
func (o *Monitor) State() State {
	return State(o.state.Load())
}

// Snapshots returns the snapshot set, or nil while the monitor is Idle.
func (o *Monitor) Snapshots() *Set {
	if o.State() != Watching {
		return nil
	}

	return o.set
}

// Init enumerates the module's regions and captures them, moving the
// monitor from Idle to Watching. It fails if the monitor is already
// Watching.
//
// A *memory.ResolutionError, *memory.QueryError or *memory.ReadError
// is returned if the snapshot set cannot be built. The monitor stays
// Idle in that case.
func (o *Monitor) Init() error {
	o.initMu.Lock()
	defer o.initMu.Unlock()

	if o.State() != Idle {
		return fmt.Errorf("monitor is already %s", o.State())
	}

	regions, err := o.config.Enumerator.Enumerate(o.config.Target, o.config.Module)
	if err != nil {
		return err
	}

	set, err := BuildSet(o.config.Target, regions, o.config.Logger)
	if err != nil {
		return err
	}

	o.set = set
	o.state.Store(int32(Watching))

	o.debugf("watching %d region(s), 0x%x bytes", set.Len(), set.Size())

	return nil
}

// Run calls Init if the monitor is Idle and then sweeps until ctx is
// done, pausing for the configured poll interval between sweeps.
// Reports and errors are passed to the OnReport and OnError callbacks.
//
// Run returns nil when ctx is done, and an error only if Init fails.
func (o *Monitor) Run(ctx context.Context) error {
	if o.State() == Idle {
		err := o.Init()
		if err != nil {
			return err
		}
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		result, err := o.Sweep()
		if err != nil {
			return err
		}

		o.dispatch(result)

		if o.config.PollInterval <= 0 {
			continue
		}

		// The pause starts once the sweep is done, however long
		// the sweep took.
		timer := time.NewTimer(o.config.PollInterval)

		select {
		case <-ctx.Done():
			timer.Stop()
			return nil
		case <-timer.C:
		}
	}
}

// Sweep verifies every snapshot once, in order. A failure for one
// region is recorded in the result and does not stop the sweep.
// It fails only if the monitor is not Watching.
func (o *Monitor) Sweep() (SweepResult, error) {
	if o.State() != Watching {
		return SweepResult{}, fmt.Errorf("cannot sweep while %s", o.State())
	}

	o.sweeps++

	result := SweepResult{
		Number: o.sweeps,
	}

	for _, s := range o.set.snapshots {
		report, err := o.verify(s)
		if err != nil {
			result.Errors = append(result.Errors, err)
			continue
		}

		if report == nil {
			result.Clean = append(result.Clean, s.region.Base)
			continue
		}

		report.Sweep = result.Number
		result.Reports = append(result.Reports, *report)
	}

	return result, nil
}

func (o *Monitor) verify(s *Snapshot) (*Report, error) {
	base := s.region.Base

	live, err := o.config.Target.QueryRegion(base)
	if err != nil {
		return nil, &memory.QueryError{Address: base, Err: err}
	}

	if !live.Contains(base) {
		if live.Size > 0 && live.Overlaps(s.region) {
			// The region now starts after the captured base.
			return nil, &memory.RegionSizeMismatchError{
				Address: base,
				Want:    s.region.Size,
			}
		}

		return nil, &memory.QueryError{
			Address: base,
			Err:     fmt.Errorf("query returned region %s which does not contain the address", live),
		}
	}

	// Clipped snapshots may legitimately end before the live region.
	shrunk := live.End() < s.region.End()
	grew := live.End() > s.region.End() && o.config.Enumerator.Boundary != memory.BoundaryClip
	if shrunk || grew {
		return nil, &memory.RegionSizeMismatchError{
			Address: base,
			Want:    s.region.Size,
			Got:     uint64(live.End() - base),
		}
	}

	data, err := o.config.Target.ReadMemory(base, s.region.Size)
	if err != nil {
		return nil, &memory.ReadError{Address: base, Size: s.region.Size, Err: err}
	}

	actual := checksum.Sum(data)
	if actual == s.fingerprint {
		return nil, nil
	}

	changes, err := diff.Bytes(base, s.data, data)
	if err != nil {
		return nil, err
	}

	apply, undo := patchscript.SynthesizePair("", changes)

	if o.config.Disassembler != nil && s.region.Protection.IsExecutable() {
		o.annotate(s, data, changes, &apply, &undo)
	}

	return &Report{
		Region:   s.region,
		Expected: s.fingerprint,
		Actual:   actual,
		Changes:  changes,
		Apply:    apply,
		Undo:     undo,
	}, nil
}

func (o *Monitor) annotate(s *Snapshot, live []byte, changes []diff.Change, apply *patchscript.Script, undo *patchscript.Script) {
	offsets := diff.Offsets(s.region.Base, changes)

	liveInsts := o.config.Disassembler.Covering(live, offsets)
	origInsts := o.config.Disassembler.Covering(s.data, offsets)

	for i := range changes {
		apply.Instructions[i].Comment = describeInst(s.region.Base, liveInsts[i])
		undo.Instructions[i].Comment = describeInst(s.region.Base, origInsts[i])
	}
}

func describeInst(base memory.Address, inst asmkit.Inst) string {
	addr := base + memory.Address(inst.Index)

	if inst.Len == 0 {
		return addr.HexString() + ": (bad)"
	}

	return addr.HexString() + ": " + inst.Dis
}

func (o *Monitor) dispatch(result SweepResult) {
	for _, report := range result.Reports {
		if o.config.OnReport != nil {
			o.config.OnReport(report)
		} else {
			o.logger().Println(report)
		}
	}

	for _, err := range result.Errors {
		if o.config.OnError != nil {
			o.config.OnError(err)
		} else {
			o.logger().Printf("sweep %d: %v", result.Number, err)
		}
	}

	if o.config.OnSweep != nil {
		o.config.OnSweep(result)
	}
}

func (o *Monitor) logger() *log.Logger {
	if o.config.Logger != nil {
		return o.config.Logger
	}

	return log.Default()
}

func (o *Monitor) debugf(format string, args ...interface{}) {
	if o.config.Logger != nil {
		o.config.Logger.Printf(format, args...)
	}
}
