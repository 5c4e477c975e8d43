package batch

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/JakeFAU/batch-screenshots/internal/admission"
	"github.com/JakeFAU/batch-screenshots/internal/capture"
	"github.com/JakeFAU/batch-screenshots/internal/clock/system"
	"github.com/JakeFAU/batch-screenshots/internal/events"
	"github.com/JakeFAU/batch-screenshots/internal/hash/sha256"
	iduuid "github.com/JakeFAU/batch-screenshots/internal/id/uuid"
	"github.com/JakeFAU/batch-screenshots/internal/metrics"
	"github.com/JakeFAU/batch-screenshots/internal/storage/local"
)

// Defaults applied when the matching Config field is zero.
const (
	DefaultSessionLimit  = 4
	DefaultPollInterval  = 4 * time.Second
	DefaultMaxPollErrors = 10
)

// Config controls Orchestrator behavior.
type Config struct {
	SessionLimit      int
	CaptureThumbnails bool
	PollInterval      time.Duration
	MaxPollErrors     int
	AdmissionBackoff  time.Duration
	MaxBrowsersPerJob int
}

// FileHasher digests in-memory payloads and files already on disk.
type FileHasher interface {
	capture.Hasher
	HashFile(path string) (string, error)
}

// BatchIDGenerator issues one identifier per RunBatch call.
type BatchIDGenerator interface {
	NewBatchID() (uuid.UUID, error)
}

// Option customizes an Orchestrator.
type Option func(*Orchestrator)

// WithLogger sets the logger; nil keeps the no-op logger.
func WithLogger(logger *zap.Logger) Option {
	return func(o *Orchestrator) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithEmitter routes lifecycle events to e.
func WithEmitter(e events.Emitter) Option {
	return func(o *Orchestrator) {
		if e != nil {
			o.emitter = e
		}
	}
}

// WithMirror copies every saved file to store under the same relative path.
func WithMirror(store capture.BlobStore) Option {
	return func(o *Orchestrator) { o.mirror = store }
}

// WithClock overrides the time source.
func WithClock(c capture.Clock) Option {
	return func(o *Orchestrator) {
		if c != nil {
			o.clock = c
		}
	}
}

// WithHasher overrides the digest implementation.
func WithHasher(h FileHasher) Option {
	return func(o *Orchestrator) {
		if h != nil {
			o.hasher = h
		}
	}
}

// WithBatchIDs overrides batch identifier generation.
func WithBatchIDs(g BatchIDGenerator) Option {
	return func(o *Orchestrator) {
		if g != nil {
			o.ids = g
		}
	}
}

// WithGateGauge reports admission occupancy to g in addition to the
// package metrics.
func WithGateGauge(g admission.Gauge) Option {
	return func(o *Orchestrator) { o.gauge = g }
}

// Orchestrator submits capture units, tracks their jobs and persists the
// resulting screenshots. A single Orchestrator may run several batches; they
// share the admission gate and the observable collections.
type Orchestrator struct {
	client  capture.RemoteJobClient
	cfg     Config
	logger  *zap.Logger
	emitter events.Emitter
	mirror  capture.BlobStore
	clock   capture.Clock
	hasher  FileHasher
	ids     BatchIDGenerator
	gauge   admission.Gauge
	gate    *admission.Gate

	jobs      *jobSet
	units     *unitIndex
	completed *artifactLog
}

// New constructs an Orchestrator around client.
func New(client capture.RemoteJobClient, cfg Config, opts ...Option) (*Orchestrator, error) {
	if client == nil {
		return nil, errors.New("remote job client is required")
	}
	if cfg.SessionLimit == 0 {
		cfg.SessionLimit = DefaultSessionLimit
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = DefaultPollInterval
	}
	if cfg.MaxPollErrors <= 0 {
		cfg.MaxPollErrors = DefaultMaxPollErrors
	}
	if cfg.AdmissionBackoff <= 0 {
		cfg.AdmissionBackoff = admission.DefaultBackoff
	}
	if cfg.MaxBrowsersPerJob <= 0 {
		cfg.MaxBrowsersPerJob = capture.DefaultBrowserLimit
	}

	o := &Orchestrator{
		client:    client,
		cfg:       cfg,
		logger:    zap.NewNop(),
		emitter:   events.Discard,
		clock:     system.New(),
		hasher:    sha256.New(),
		ids:       iduuid.NewGenerator(),
		jobs:      newJobSet(),
		units:     newUnitIndex(),
		completed: &artifactLog{},
	}
	for _, opt := range opts {
		opt(o)
	}

	gate, err := admission.New(cfg.SessionLimit,
		admission.WithBackoff(cfg.AdmissionBackoff),
		admission.WithGauge(gateGauge{metrics.AdmissionGauge(), o.gauge}),
	)
	if err != nil {
		return nil, fmt.Errorf("create admission gate: %w", err)
	}
	o.gate = gate
	o.logger = o.logger.Named("batch")
	return o, nil
}

// Jobs returns the latest snapshot of every submitted job in submission order.
func (o *Orchestrator) Jobs() []capture.Job {
	return o.jobs.snapshot()
}

// Job returns the latest snapshot of the job with the given ID.
func (o *Orchestrator) Job(id string) (capture.Job, bool) {
	return o.jobs.get(id)
}

// Unit returns the capture unit a job was submitted for.
func (o *Orchestrator) Unit(jobID string) (capture.CaptureUnit, bool) {
	return o.units.lookup(jobID)
}

// CompletedScreenshots returns every handled artifact in completion order.
func (o *Orchestrator) CompletedScreenshots() []capture.Artifact {
	return o.completed.snapshot()
}

// SessionsInUse reports how many remote jobs currently hold an admission slot.
func (o *Orchestrator) SessionsInUse() int {
	return o.gate.InUse()
}

// RunBatch captures every unit below root, which must not exist yet. Input
// problems are reported synchronously as *capture.ConfigurationError before
// any work starts; per-unit failures are reported only through events.
// RunBatch returns once every unit reached a terminal outcome, with ctx.Err()
// if the context was cancelled on the way.
func (o *Orchestrator) RunBatch(ctx context.Context, root string, useTunnel bool, units ...capture.CaptureUnit) error {
	if err := validateRoot(root); err != nil {
		return err
	}
	if len(units) == 0 {
		return &capture.ConfigurationError{Field: "units", Reason: "at least one capture unit is required"}
	}
	for i, unit := range units {
		if err := unit.Validate(); err != nil {
			return fmt.Errorf("unit %d: %w", i, err)
		}
	}

	store, err := local.New(local.Config{BaseDir: root})
	if err != nil {
		return &capture.ConfigurationError{Field: "root", Reason: fmt.Sprintf("cannot be created: %v", err)}
	}
	batchID, err := o.ids.NewBatchID()
	if err != nil {
		return fmt.Errorf("generate batch id: %w", err)
	}

	run := &batchRun{
		Orchestrator: o,
		id:           events.UUIDToBytes(batchID),
		store:        store,
		namer:        capture.FolderNamer{Root: store.BaseDir()},
		useTunnel:    useTunnel,
		logger:       o.logger.With(zap.String("batch_id", batchID.String())),
	}
	run.logger.Info("batch started", zap.String("root", store.BaseDir()), zap.Int("units", len(units)))

	var wg sync.WaitGroup
	submitted := 0
	for unit := range capture.SplitUnits(units, o.cfg.MaxBrowsersPerJob) {
		submitted++
		wg.Go(func() { run.runUnit(ctx, unit) })
	}
	wg.Wait()

	run.logger.Info("batch finished", zap.Int("jobs", submitted))
	return ctx.Err()
}

func validateRoot(root string) error {
	if strings.TrimSpace(root) == "" {
		return &capture.ConfigurationError{Field: "root", Reason: "is required"}
	}
	_, err := os.Stat(root)
	switch {
	case err == nil:
		return &capture.ConfigurationError{Field: "root", Reason: fmt.Sprintf("%q already exists", root)}
	case errors.Is(err, fs.ErrNotExist):
		return nil
	default:
		return &capture.ConfigurationError{Field: "root", Reason: fmt.Sprintf("cannot be inspected: %v", err)}
	}
}

// artifactStore is the local persistence target for one batch.
type artifactStore interface {
	capture.BlobStore
	Resolve(path string) (string, error)
}

// batchRun holds the state of a single RunBatch call.
type batchRun struct {
	*Orchestrator
	id        [16]byte
	store     artifactStore
	namer     capture.FolderNamer
	useTunnel bool
	logger    *zap.Logger
}

func (r *batchRun) emit(evt events.Event) {
	evt.BatchID = r.id
	evt.TS = r.clock.Now().UTC()
	r.emitter.Emit(evt)
}

// runUnit drives one unit from admission to a terminal event. The admission
// slot is held until polling and persistence have finished.
func (r *batchRun) runUnit(ctx context.Context, unit capture.CaptureUnit) {
	logger := r.logger.With(zap.String("url", unit.URL), zap.Int("browsers", len(unit.Browsers)))

	if err := r.gate.Admit(ctx); err != nil {
		logger.Warn("admission aborted", zap.Error(err))
		r.emit(events.Event{Type: events.JobFailedToStart, Unit: unit, Err: err})
		return
	}
	defer r.gate.Release()

	started := r.clock.Now()
	job, err := r.client.Submit(ctx, unit.URL, unit.Config, r.useTunnel, unit.Browsers)
	if err == nil && strings.TrimSpace(job.ID) == "" {
		err = errors.New("submit job: response carried no job id")
	}
	if err != nil {
		metrics.ObserveSubmission("rejected")
		logger.Error("job failed to start", zap.Error(err))
		r.emit(events.Event{Type: events.JobFailedToStart, Unit: unit, Err: err})
		return
	}
	metrics.ObserveSubmission("accepted")

	logger = logger.With(zap.String("job_id", job.ID))
	r.units.record(job.ID, unit)
	r.jobs.put(job)
	logger.Info("job started", zap.String("state", string(job.State)))
	r.emit(events.Event{Type: events.JobStarted, Job: job.Clone(), Unit: unit})

	final, err := r.poll(ctx, job, unit, logger)
	r.jobs.put(final)
	dur := r.clock.Now().Sub(started)
	if err != nil {
		logger.Error("job failed", zap.Error(err), zap.Duration("dur", dur))
		r.emit(events.Event{Type: events.JobFailed, Job: final.Clone(), Unit: unit, Err: err, Dur: dur})
		return
	}
	logger.Info("job completed", zap.String("state", string(final.State)), zap.Duration("dur", dur))
	r.emit(events.Event{Type: events.JobCompleted, Job: final.Clone(), Unit: unit, Dur: dur})
}

// gateGauge fans a single occupancy value out to every configured gauge.
type gateGauge []admission.Gauge

func (g gateGauge) Set(v float64) {
	for _, gauge := range g {
		if gauge != nil {
			gauge.Set(v)
		}
	}
}
