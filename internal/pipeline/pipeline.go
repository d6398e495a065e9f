// Package pipeline runs one source rejection pass: photometry for every
// candidate, the threshold decision, override reconciliation and the catalog,
// region and summary writes.
package pipeline

import (
	"context"
	"fmt"
	"runtime"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/afero"
	"golang.org/x/sync/errgroup"

	"github.com/tphakala/sourcefilter/internal/aperture"
	"github.com/tphakala/sourcefilter/internal/catalog"
	"github.com/tphakala/sourcefilter/internal/conf"
	"github.com/tphakala/sourcefilter/internal/decision"
	"github.com/tphakala/sourcefilter/internal/errors"
	"github.com/tphakala/sourcefilter/internal/logger"
	"github.com/tphakala/sourcefilter/internal/observability/metrics"
	"github.com/tphakala/sourcefilter/internal/overrides"
	"github.com/tphakala/sourcefilter/internal/photometry"
	"github.com/tphakala/sourcefilter/internal/prompt"
	"github.com/tphakala/sourcefilter/internal/runconfig"
	"github.com/tphakala/sourcefilter/internal/skyimage"
)

// Inputs are the in-memory inputs of one run.
type Inputs struct {
	Run         runconfig.RunConfig
	Image       *skyimage.Image
	Catalog     *catalog.Table
	CatalogPath string
}

// Report describes a completed run.
type Report struct {
	Summary  Summary
	Verdicts []decision.Verdict
	Catalog  *catalog.Table
	Paths    catalog.Paths
	Warnings []error
}

// Pipeline holds the collaborators shared by runs.
type Pipeline struct {
	settings  *conf.Settings
	fs        afero.Fs
	store     overrides.Store
	collector prompt.Collector
	metrics   *metrics.RejectionMetrics
	log       logger.Logger
	now       func() time.Time
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithCollector sets where newly submitted overrides come from.
func WithCollector(c prompt.Collector) Option {
	return func(p *Pipeline) { p.collector = c }
}

// WithMetrics records run metrics into m.
func WithMetrics(m *metrics.RejectionMetrics) Option {
	return func(p *Pipeline) { p.metrics = m }
}

// WithLogger replaces the module logger.
func WithLogger(l logger.Logger) Option {
	return func(p *Pipeline) { p.log = l }
}

// New creates a pipeline writing artifacts to fs and reading overrides from store.
func New(settings *conf.Settings, fs afero.Fs, store overrides.Store, opts ...Option) (*Pipeline, error) {
	if settings == nil || fs == nil || store == nil {
		return nil, errors.NewStd("pipeline requires settings, filesystem and override store")
	}
	p := &Pipeline{
		settings:  settings,
		fs:        fs,
		store:     store,
		collector: prompt.None{},
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.log == nil {
		p.log = logger.Global().Module("pipeline")
	}
	return p, nil
}

// measurement is the photometry outcome of one row; each worker writes only its own slot.
type measurement struct {
	result photometry.Result
	err    error
}

// Run executes one rejection pass.
func (p *Pipeline) Run(ctx context.Context, in Inputs) (*Report, error) {
	started := p.now()
	runID := uuid.NewString()
	ctx = logger.WithTraceID(ctx, runID)
	log := p.log.WithContext(ctx)

	if err := in.Run.Validate(); err != nil {
		return nil, err
	}
	if in.Image == nil || in.Catalog == nil {
		return nil, errors.NewStd("run requires an image and a catalog")
	}
	outputID := in.Run.OutputID()
	log = log.With(logger.String("output_id", outputID))
	log.Info("source rejection started",
		logger.String("region", in.Run.Region),
		logger.Int("band", in.Run.Band),
		logger.Int("candidates", in.Catalog.Len()),
		logger.Float64("threshold", p.settings.Rejection.Threshold))

	paths, err := catalog.OutputPaths(p.settings.Output.CatalogDir, p.settings.Output.RegionDir, outputID, in.CatalogPath)
	if err != nil {
		return nil, err
	}

	stage := p.now()
	candidates, err := catalog.Candidates(in.Catalog, in.Run.Band)
	if err != nil {
		return nil, err
	}
	persisted, warnings, err := p.store.Load(ctx, outputID)
	if err != nil {
		return nil, err
	}
	for _, w := range warnings {
		log.Warn("override entry skipped", logger.Error(w))
		p.observe(func(m *metrics.RejectionMetrics) { m.RecordOverrideWarning("malformed") })
	}
	log.Info("persisted overrides loaded",
		logger.Int("accepted", len(persisted.Accepted)),
		logger.Int("rejected", len(persisted.Rejected)))

	image := in.Image
	if image.PixelsPerBeam == 0 {
		if image, err = image.Normalize(); err != nil {
			return nil, err
		}
	}
	log.Debug("image normalized", logger.Float64("pixels_per_beam", image.PixelsPerBeam))
	p.observe(func(m *metrics.RejectionMetrics) { m.RecordStage(metrics.StageLoad, time.Since(stage)) })

	stage = p.now()
	results, err := p.measureAll(ctx, image, candidates)
	if err != nil {
		return nil, err
	}
	p.observe(func(m *metrics.RejectionMetrics) { m.RecordStage(metrics.StagePhotometry, time.Since(stage)) })

	stage = p.now()
	verdicts, summary, extraWarnings, err := p.decide(ctx, log, outputID, persisted, candidates, results)
	if err != nil {
		return nil, err
	}
	warnings = append(warnings, extraWarnings...)
	p.observe(func(m *metrics.RejectionMetrics) { m.RecordStage(metrics.StageDecision, time.Since(stage)) })

	stage = p.now()
	updated, err := catalog.Update(in.Catalog, in.Run.Band, candidates, verdicts)
	if err != nil {
		return nil, err
	}
	if err := catalog.WriteFile(p.fs, paths.Catalog, updated); err != nil {
		return nil, err
	}
	regions, err := catalog.WriteRegionFile(p.fs, paths.Regions, candidates, verdicts)
	if err != nil {
		return nil, err
	}

	summary.RunID = runID
	summary.OutputID = outputID
	summary.Threshold = p.settings.Rejection.Threshold
	summary.CatalogPath = paths.Catalog
	summary.RegionPath = paths.Regions
	summary.RegionsWritten = regions
	summary.OverrideWarnings = len(warnings)
	summary.StartedAt = started.UTC()
	summary.Duration = time.Since(started).Round(time.Millisecond).String()
	if p.settings.Output.Summary {
		if err := writeSummary(p.fs, paths.Summary, &summary); err != nil {
			return nil, err
		}
	}
	p.observe(func(m *metrics.RejectionMetrics) {
		m.RecordStage(metrics.StageWrite, time.Since(stage))
		m.RecordRunComplete(p.now(), p.settings.Rejection.Threshold)
	})

	log.Info("source rejection completed",
		logger.Int("accepted", summary.Accepted),
		logger.Int("rejected", summary.Rejected),
		logger.Int("unevaluable", summary.Unevaluable),
		logger.String("catalog", paths.Catalog),
		logger.String("regions", paths.Regions))

	return &Report{
		Summary:  summary,
		Verdicts: verdicts,
		Catalog:  updated,
		Paths:    paths,
		Warnings: warnings,
	}, nil
}

// measureAll runs photometry on a bounded worker pool. Empty apertures are
// recorded per row; any other error aborts the run.
func (p *Pipeline) measureAll(ctx context.Context, image *skyimage.Image, candidates []catalog.Candidate) ([]measurement, error) {
	builder, err := aperture.NewBuilder(image, aperture.Config{
		CenterDistance: p.settings.Rejection.CenterDistance,
		AnnulusWidth:   p.settings.Rejection.AnnulusWidth,
		CutoutScale:    p.settings.Rejection.CutoutScale,
		EllipseScale:   p.settings.Rejection.EllipseScale,
	})
	if err != nil {
		return nil, err
	}

	workers := p.settings.Rejection.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}

	results := make([]measurement, len(candidates))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i := range candidates {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			start := time.Now()
			res, err := measureOne(builder, &candidates[i])
			if err != nil && !errors.Is(err, errors.ErrEmptyAperture) {
				return err
			}
			results[i] = measurement{result: res, err: err}
			p.observe(func(m *metrics.RejectionMetrics) { m.RecordPhotometry(time.Since(start), res.SNR, err == nil) })
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		if ctx.Err() != nil {
			return nil, errors.New(fmt.Errorf("photometry aborted: %w", ctx.Err())).
				Component("pipeline").
				Category(errors.CategoryCancellation).
				Build()
		}
		return nil, err
	}
	return results, nil
}

func measureOne(builder *aperture.Builder, c *catalog.Candidate) (photometry.Result, error) {
	geom, err := builder.Build(aperture.Source{
		RA:            c.RA,
		Dec:           c.Dec,
		MajorFWHM:     c.MajorFWHM,
		MinorFWHM:     c.MinorFWHM,
		PositionAngle: c.PositionAngle,
	})
	if err != nil {
		return photometry.Result{}, err
	}
	return photometry.Measure(geom)
}

// decide scores every row, reconciles persisted and submitted overrides,
// appends the submitted ones to the store and finalizes the verdicts.
func (p *Pipeline) decide(ctx context.Context, log logger.Logger, outputID string, persisted overrides.Set,
	candidates []catalog.Candidate, results []measurement,
) ([]decision.Verdict, Summary, []error, error) {
	var summary Summary
	var warnings []error

	ids := make([]int, len(candidates))
	for i, c := range candidates {
		ids[i] = c.ID
	}
	engine, err := decision.NewEngine(p.settings.Rejection.Threshold, persisted, ids, log)
	if err != nil {
		return nil, summary, nil, err
	}

	for row, m := range results {
		if m.err != nil {
			log.Warn("candidate unevaluable",
				logger.Int("row", row),
				logger.Int("source_id", ids[row]),
				logger.Error(m.err))
			if err := engine.MarkUnevaluable(row, m.err); err != nil {
				return nil, summary, nil, err
			}
			continue
		}
		log.Trace("candidate scored",
			logger.Int("source_id", ids[row]),
			logger.Float64("snr", m.result.SNR),
			logger.Float64("rms", m.result.BackgroundRMS),
			logger.Int("annulus_pixels", m.result.AnnulusPixels))
		if err := engine.Score(row, m.result.SNR); err != nil {
			return nil, summary, nil, err
		}
	}

	conflicts := engine.Conflicts()
	for _, c := range conflicts {
		log.Warn("conflicting persisted override, reject wins", logger.Error(c))
	}
	summary.Conflicts = len(conflicts)
	p.observe(func(m *metrics.RejectionMetrics) { m.RecordConflicts(len(conflicts)) })
	if len(conflicts) > 0 && p.settings.Overrides.Strict {
		return nil, summary, nil, fmt.Errorf("%d conflicting persisted overrides: %w", len(conflicts), errors.Join(conflicts...))
	}
	warnings = append(warnings, conflicts...)

	if summary.PersistedApplied, err = engine.ApplyPersisted(); err != nil {
		return nil, summary, nil, err
	}

	submission, err := p.collector.Collect(ctx, prompt.Summary{
		OutputID:  outputID,
		Threshold: engine.Threshold(),
		Verdicts:  engine.Verdicts(),
	})
	if err != nil {
		return nil, summary, nil, err
	}
	for _, skipped := range submission.Skipped {
		log.Warn("malformed override token skipped", logger.Error(skipped))
		summary.SkippedOverrides = append(summary.SkippedOverrides, skipped.Error())
		p.observe(func(m *metrics.RejectionMetrics) { m.RecordOverrideWarning("malformed_token") })
	}
	warnings = append(warnings, submission.Skipped...)

	applied, err := engine.Apply(submission.Tokens)
	if err != nil {
		return nil, summary, nil, err
	}
	for _, tok := range applied.Unknown {
		summary.UnknownOverrides = append(summary.UnknownOverrides, tok.String())
	}
	for _, tok := range applied.Reversed {
		log.Warn("override reverses a persisted decision; both entries stay in the store",
			logger.String("token", tok.String()))
		summary.Reversals = append(summary.Reversals, tok.String())
		warnings = append(warnings, errors.New(fmt.Errorf("%w: %s reverses a persisted override, the id is now in both sets",
			errors.ErrConflictingOverride, tok)).
			Component("pipeline").
			Category(errors.CategoryConflict).
			Context("source_id", tok.ID).
			Build())
	}
	summary.SubmittedApplied = len(applied.Applied)

	if err := p.persist(ctx, log, outputID, applied.Applied); err != nil {
		return nil, summary, nil, err
	}

	verdicts, err := engine.Finalize()
	if err != nil {
		return nil, summary, nil, err
	}
	for _, v := range verdicts {
		outcome := metrics.OutcomeAccepted
		switch {
		case v.Unevaluable():
			summary.Unevaluable++
			outcome = metrics.OutcomeUnevaluable
		case v.Rejected:
			outcome = metrics.OutcomeRejected
		}
		if v.Rejected {
			summary.Rejected++
		} else {
			summary.Accepted++
		}
		p.observe(func(m *metrics.RejectionMetrics) { m.RecordVerdict(outcome, string(v.Provenance)) })
		switch v.Provenance {
		case decision.ProvenanceOverrideAccept:
			p.observe(func(m *metrics.RejectionMetrics) { m.RecordOverrideApplied(overrideSource(v, applied), string(overrides.KindAccept)) })
		case decision.ProvenanceOverrideReject:
			p.observe(func(m *metrics.RejectionMetrics) { m.RecordOverrideApplied(overrideSource(v, applied), string(overrides.KindReject)) })
		}
	}
	summary.Candidates = len(verdicts)
	return verdicts, summary, warnings, nil
}

// persist appends submitted overrides to the store, grouped by kind in submission order.
func (p *Pipeline) persist(ctx context.Context, log logger.Logger, outputID string, tokens []decision.Token) error {
	byKind := map[overrides.Kind][]int{}
	for _, tok := range tokens {
		byKind[tok.Kind] = append(byKind[tok.Kind], tok.ID)
	}
	for _, kind := range []overrides.Kind{overrides.KindAccept, overrides.KindReject} {
		ids := byKind[kind]
		if len(ids) == 0 {
			continue
		}
		if err := p.store.Append(ctx, outputID, kind, ids); err != nil {
			return err
		}
		log.Info("overrides persisted", logger.String("kind", string(kind)), logger.Int("count", len(ids)))
		p.observe(func(m *metrics.RejectionMetrics) { m.RecordOverridesPersisted(string(kind), len(ids)) })
	}
	return nil
}

func overrideSource(v decision.Verdict, applied decision.ApplyResult) string {
	for _, tok := range applied.Applied {
		if tok.ID == v.ID {
			return "submitted"
		}
	}
	return "persisted"
}

func (p *Pipeline) observe(record func(m *metrics.RejectionMetrics)) {
	if p.metrics != nil {
		record(p.metrics)
	}
}
