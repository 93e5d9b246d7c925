package runner

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"runtime"
	"sync"
	"time"

	"github.com/google/uuid"

	"isingsim/internal/catalog"
	"isingsim/internal/ising"
	"isingsim/internal/lattice"
	"isingsim/internal/logging"
	"isingsim/internal/output"
	"isingsim/internal/progress"
	prng "isingsim/pkg/core"
)

// ErrWorkerPanic wraps a panic recovered inside a worker.
var ErrWorkerPanic = errors.New("runner: worker panicked")

// Options configures what every worker writes and how progress is shown.
type Options struct {
	Root        string
	FramesEvery uint64
	FrameScale  int
	// Frames replaces the per-run PNG frame writer when set.
	Frames        ising.FrameSink
	StatusEvery   uint64
	EnergyPerSite bool
	Plot          bool
	// Linger keeps a finished worker alive briefly after its final status.
	Linger time.Duration

	// StatusOut receives the monitor view; nil disables drawing.
	StatusOut   io.Writer
	ClearScreen bool
	Logger      *slog.Logger
}

// Result is what a worker hands back when it exits.
type Result struct {
	Job            Job
	RunID          uuid.UUID
	Dir            string
	DescriptorPath string
	Summary        ising.Summary
	Started        time.Time
	Duration       time.Duration
	Err            error
}

// Entry converts the result into a catalog row.
func (r Result) Entry() catalog.Entry {
	e := catalog.Entry{
		ID:          r.RunID.String(),
		Name:        r.Job.Name,
		Protocol:    r.Job.Protocol.String(),
		Topology:    r.Job.Kind.String(),
		Size:        r.Job.Size,
		Seed:        r.Job.Seed,
		EqSteps:     r.Job.EqSteps,
		Temperature: r.Job.Temp,
		Dir:         r.Dir,
		Records:     r.Summary.Records,
		Forced:      r.Summary.Forced,
		FinalM:      r.Summary.Final.Magnetization,
		FinalE:      r.Summary.Final.Hamiltonian(),
		CreatedAt:   r.Started.UnixNano(),
		DurationMS:  r.Duration.Milliseconds(),
	}
	if r.Err != nil {
		e.Error = r.Err.Error()
	}
	return e
}

// Runner executes jobs concurrently.
type Runner struct {
	opts Options
	log  *slog.Logger
}

// New returns a Runner. A nil logger discards.
func New(opts Options) *Runner {
	log := opts.Logger
	if log == nil {
		log = logging.Discard()
	}
	if opts.FrameScale <= 0 {
		opts.FrameScale = 1
	}
	return &Runner{opts: opts, log: log}
}

// Run starts one goroutine per job and blocks until the monitor has seen a
// final status from every worker and all workers have exited. Results are
// returned in job order; the error joins every failed job.
func (r *Runner) Run(jobs []Job) ([]Result, error) {
	names := make([]string, len(jobs))
	index := make(map[string]int, len(jobs))
	for i, j := range jobs {
		if _, dup := index[j.Name]; dup || j.Name == "" {
			return nil, fmt.Errorf("runner: job names must be unique and non-empty, got %q", j.Name)
		}
		index[j.Name] = i
		names[i] = j.Name
	}

	status := make(chan progress.Status, 4*len(jobs)+1)
	results := make(chan Result, len(jobs))

	var wg sync.WaitGroup
	for _, job := range jobs {
		wg.Add(1)
		go func(job Job) {
			defer wg.Done()
			r.work(job, progress.NewReporter(job.Name, status), results)
		}(job)
	}

	progress.NewMonitor(names, r.opts.StatusOut, r.opts.ClearScreen).Run(status)
	wg.Wait()
	close(results)

	out := make([]Result, len(jobs))
	var errs []error
	for res := range results {
		out[index[res.Job.Name]] = res
		if res.Err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", res.Job.Name, res.Err))
		}
	}
	return out, errors.Join(errs...)
}

// work runs on its own OS thread. Every exit path, including a panic, puts
// exactly one Result on results and sends exactly one final status.
func (r *Runner) work(job Job, rep progress.Reporter, results chan<- Result) {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	log := r.log.With("worker", job.Name)
	res := Result{Job: job, RunID: uuid.New(), Started: time.Now()}
	defer func() {
		if p := recover(); p != nil {
			res.Err = fmt.Errorf("%w: %v", ErrWorkerPanic, p)
			r.finish(res, rep, log, results)
		}
	}()

	rep.Send("<building lattice>")
	res.Err = r.execute(job, rep, log, &res)
	r.finish(res, rep, log, results)
	time.Sleep(r.opts.Linger)
}

func (r *Runner) finish(res Result, rep progress.Reporter, log *slog.Logger, results chan<- Result) {
	res.Duration = time.Since(res.Started)
	results <- res
	if res.Err != nil {
		log.Error("run failed", "err", res.Err)
		rep.Fail(res.Err)
		return
	}
	log.Info("run finished", "dir", res.Dir, "records", res.Summary.Records, "forced", res.Summary.Forced,
		"duration", res.Duration.Round(time.Millisecond))
	rep.Done(res.DescriptorPath)
}

func (r *Runner) execute(job Job, rep progress.Reporter, log *slog.Logger, res *Result) error {
	rng := prng.NewRNG(job.Seed)
	topo, err := lattice.Build(job.Size, job.Kind, rng)
	if err != nil {
		return err
	}
	log.Debug("lattice built", "deg_avg", topo.DegAvg, "deg_mse", topo.DegMSE, "free", topo.FreeSites)

	res.Dir = output.RunDir(r.opts.Root, job.Params())
	dataPath := filepath.Join(res.Dir, output.DataFile)
	data, err := output.CreateData(dataPath, job.Protocol, topo.Sites(), r.opts.EnergyPerSite)
	if err != nil {
		return err
	}
	defer data.Close()

	frames := r.opts.Frames
	if frames == nil && r.opts.FramesEvery > 0 {
		pf, err := output.NewPNGFrames(filepath.Join(res.Dir, output.FramesDir), r.opts.FrameScale)
		if err != nil {
			return err
		}
		frames = pf
	}

	eng, err := ising.NewEngine(topo, job.EngineConfig(), rng, ising.Options{
		Reporter:    rep,
		Logger:      log,
		Frames:      frames,
		FrameEvery:  r.opts.FramesEvery,
		StatusEvery: r.opts.StatusEvery,
	})
	if err != nil {
		return err
	}

	curve := output.NewCurve(job.Protocol)
	sink := output.Tee{data, curve}

	var runErr error
	switch job.Protocol {
	case ising.Phase:
		res.Summary, runErr = ising.RunPhase(eng, job.Phase, sink)
	case ising.Hysteresis:
		res.Summary, runErr = ising.RunHysteresis(eng, job.Hysteresis, sink)
	case ising.Relaxation:
		res.Summary, runErr = ising.RunRelaxation(eng, job.Phase, sink)
	default:
		return fmt.Errorf("runner: unknown protocol %v", job.Protocol)
	}
	if res.Summary.Forced > 0 {
		log.Warn("equilibrium forced at the sweep cap", "steps", res.Summary.Forced, "cap", job.EqSteps)
	}

	if err := data.Close(); err != nil {
		return errors.Join(runErr, err)
	}

	info := output.NewRunInfo(job.Protocol, res.RunID, eng, job.Seed, dataPath, res.Summary)
	var desc output.Descriptor
	switch job.Protocol {
	case ising.Phase:
		desc = &output.PhaseDescriptor{RunInfo: info, Config: job.Phase}
	case ising.Hysteresis:
		desc = &output.HysteresisDescriptor{RunInfo: info, Temperature: job.Temp, Config: job.Hysteresis}
	default:
		desc = &output.RelaxDescriptor{RunInfo: info, Config: job.Phase}
	}
	descPath := filepath.Join(res.Dir, output.DescriptorFile)
	if err := desc.Save(descPath); err != nil {
		return errors.Join(runErr, err)
	}
	res.DescriptorPath = descPath

	if r.opts.Plot {
		if err := curve.Render(filepath.Join(res.Dir, output.PlotFile), job.Name); err != nil {
			log.Warn("plot skipped", "err", err)
		}
	}
	if topo.Kind == lattice.Irregular {
		if err := output.WriteDegreeMap(filepath.Join(res.Dir, output.DegreeFile), topo, r.opts.FrameScale); err != nil {
			log.Warn("degree map skipped", "err", err)
		}
	}
	return runErr
}
