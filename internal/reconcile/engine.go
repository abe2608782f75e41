package reconcile

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"time"

	mapset "github.com/deckarep/golang-set/v2"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/zipsync/zipsync/internal/syncerr"
	"github.com/zipsync/zipsync/internal/telemetry"
)

// DefaultChunkPause spaces consecutive mutate requests.
const DefaultChunkPause = time.Second

// Options tunes a reconciliation run.
type Options struct {
	// ChunkSize is the maximum number of operations per mutate request.
	ChunkSize int
	// ChunkPause is the minimum spacing between mutate requests. Zero or
	// negative disables the pause.
	ChunkPause time.Duration
	// APIActive set to false turns the run into a plan: differences are
	// computed and reported as pending, nothing is written.
	APIActive bool
	// TestMode limits every campaign to at most one add and one remove.
	TestMode bool
	// StrictPartialFailure fails a chunk whose partial-failure payload
	// cannot be decoded instead of counting it as detail-unavailable.
	StrictPartialFailure bool
}

// DefaultOptions returns the production settings.
func DefaultOptions() Options {
	return Options{
		ChunkSize:  DefaultChunkSize,
		ChunkPause: DefaultChunkPause,
		APIActive:  true,
	}
}

// Engine converges the location criteria of a set of campaigns on a desired
// set. Campaigns and chunks are processed one at a time.
type Engine struct {
	Directory Directory
	Mutator   Mutator
	Options   Options
	Logger    *zap.Logger

	// OnEntity, if set, is called after each campaign reaches a final status.
	OnEntity func(EntityResult)

	now func() time.Time
}

// NewEngine creates an engine over the given collaborators.
func NewEngine(dir Directory, mut Mutator, opts Options, logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{
		Directory: dir,
		Mutator:   mut,
		Options:   opts,
		Logger:    logger,
		now:       time.Now,
	}
}

func (e *Engine) log() *zap.Logger {
	if e.Logger == nil {
		return zap.NewNop()
	}
	return e.Logger
}

func (e *Engine) clock() time.Time {
	if e.now == nil {
		return time.Now()
	}
	return e.now()
}

func (e *Engine) limiter() *rate.Limiter {
	if e.Options.ChunkPause <= 0 {
		return rate.NewLimiter(rate.Inf, 1)
	}
	return rate.NewLimiter(rate.Every(e.Options.ChunkPause), 1)
}

// Reconcile brings every campaign in campaignIDs in line with desired.
//
// The returned error is non-nil only for failures that stop the whole run:
// invalid options, a failed directory read, an unavailable remote, or a
// cancelled context. The summary gathered so far is returned alongside it.
// Failures confined to one campaign are recorded in the summary.
func (e *Engine) Reconcile(ctx context.Context, desired mapset.Set[string], campaignIDs []string) (*RunSummary, error) {
	if e.Options.ChunkSize <= 0 {
		return nil, syncerr.Configf("sync.chunk_size", "must be greater than zero, got %d", e.Options.ChunkSize)
	}
	engineMetricsOnce.Do(initEngineMetrics)

	tracer := telemetry.Tracer(scopeName)
	ctx, span := tracer.Start(ctx, "reconcile.run", trace.WithAttributes(
		attribute.Int("zipsync.campaigns", len(campaignIDs)),
		attribute.Int("zipsync.desired", desired.Cardinality()),
		attribute.Bool("zipsync.dry_run", !e.Options.APIActive),
	))
	defer span.End()

	summary := &RunSummary{
		DryRun:  !e.Options.APIActive,
		Desired: desired.Cardinality(),
		Started: e.clock(),
	}
	finish := func(err error) (*RunSummary, error) {
		summary.Finished = e.clock()
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		return summary, err
	}

	existing, err := e.Directory.ExistingCriteria(ctx, campaignIDs)
	if err != nil {
		var dre *syncerr.DirectoryReadError
		if !errors.As(err, &dre) && !errors.Is(err, syncerr.ErrUnavailable) && ctx.Err() == nil {
			err = &syncerr.DirectoryReadError{Targets: len(campaignIDs), Err: err}
		}
		e.log().Error("failed to read existing criteria", zap.Int("campaigns", len(campaignIDs)), zap.Error(err))
		return finish(err)
	}

	limiter := e.limiter()
	for _, id := range campaignIDs {
		if err := ctx.Err(); err != nil {
			return finish(err)
		}
		res, fatal := e.reconcileCampaign(ctx, limiter, desired, id, existing)
		if fatal != nil {
			e.log().Error("run aborted", zap.String("campaign_id", id), zap.Error(fatal))
			return finish(fatal)
		}
		summary.record(res)
		recordEntity(ctx, res.Status)
		if e.OnEntity != nil {
			e.OnEntity(res)
		}
	}

	e.log().Info("reconciliation finished",
		zap.Int("updated", summary.Updated),
		zap.Int("skipped", summary.Skipped),
		zap.Int("failed", summary.Failed),
		zap.Int("pending", summary.Pending),
		zap.Bool("dry_run", summary.DryRun))
	return finish(nil)
}

// reconcileCampaign converges one campaign. A non-nil fatal error aborts the
// run; every other problem is recorded on the result.
func (e *Engine) reconcileCampaign(ctx context.Context, limiter *rate.Limiter, desired mapset.Set[string], id string, existing map[string]map[string]string) (res EntityResult, fatal error) {
	ctx, span := telemetry.Tracer(scopeName).Start(ctx, "reconcile.campaign",
		trace.WithAttributes(attribute.String("zipsync.campaign_id", id)))
	defer span.End()

	logger := e.log().With(zap.String("campaign_id", id))
	res = EntityResult{CampaignID: id}

	defer func() {
		if r := recover(); r != nil {
			uerr := &syncerr.UnexpectedCollaboratorError{Target: id, Value: r, Stack: debug.Stack()}
			logger.Error("unexpected failure while reconciling campaign",
				zap.Any("panic", r),
				zap.ByteString("stack", uerr.Stack))
			res.Status = StatusFailed
			res.Err = uerr
			fatal = nil
		}
		if res.Err != nil {
			span.RecordError(res.Err)
			span.SetStatus(codes.Error, res.Err.Error())
		}
		span.SetAttributes(attribute.String("zipsync.status", string(res.Status)))
	}()

	current, ok := existing[id]
	if !ok {
		res.Status = StatusFailed
		res.Err = fmt.Errorf("campaign %s missing from directory result", id)
		logger.Error("campaign missing from directory result")
		return res, nil
	}

	plan := PlanFor(id, desired, current)
	for _, orphan := range plan.Orphans {
		logger.Warn("existing criterion has no resource name, not removing", zap.String("criterion_id", orphan))
	}
	if plan.Empty() {
		res.Status = StatusSkipped
		logger.Info("campaign already in sync")
		return res, nil
	}
	if e.Options.TestMode {
		plan = plan.Truncate()
	}
	res.ToAdd = plan.AddIDs()
	res.ToRemove = plan.RemoveIDs()

	logger.Info("campaign needs changes",
		zap.Int("add", len(plan.Add)),
		zap.Int("remove", len(plan.Remove)),
		zap.Bool("test_mode", e.Options.TestMode))

	if !e.Options.APIActive {
		res.Status = StatusPending
		return res, nil
	}

	for _, ops := range [][]Operation{plan.Add, plan.Remove} {
		if len(ops) == 0 {
			continue
		}
		outcomes, err := Dispatch(ctx, ops, e.Options.ChunkSize, e.applyChunk(limiter, id))
		res.Outcomes = append(res.Outcomes, outcomes...)
		if err != nil {
			if isFatal(ctx, err) {
				return res, err
			}
			res.Status = StatusFailed
			res.Err = err
			logger.Error("mutate request failed", zap.String("kind", ops[0].Kind.String()), zap.Error(err))
			return res, nil
		}
	}

	res.Status = StatusUpdated
	for _, out := range res.Outcomes {
		if out.Success {
			continue
		}
		res.Status = StatusFailed
		for _, oe := range out.Errors {
			logger.Warn("operation failed", zap.Int("index", oe.Index), zap.String("message", oe.Message))
		}
	}
	if res.Status == StatusFailed {
		res.Err = errors.New("one or more criterion operations failed")
		logger.Error("campaign partially synchronized")
	} else {
		logger.Info("campaign synchronized")
	}
	return res, nil
}

// applyChunk returns the ApplyFunc that submits one chunk for campaign id,
// honouring the shared pause between requests.
func (e *Engine) applyChunk(limiter *rate.Limiter, id string) ApplyFunc {
	return func(ctx context.Context, index int, chunk []Operation) (MutationOutcome, error) {
		if err := limiter.Wait(ctx); err != nil {
			return MutationOutcome{}, fmt.Errorf("waiting to submit chunk %d: %w", index, errors.Join(err, ctx.Err()))
		}

		kind := chunk[0].Kind
		start := time.Now()
		var (
			resp MutateResponse
			err  error
		)
		switch kind {
		case OpAdd:
			resp, err = e.Mutator.ApplyAdd(ctx, id, criterionIDs(chunk))
		case OpRemove:
			resp, err = e.Mutator.ApplyRemove(ctx, id, resourceNames(chunk))
		default:
			return MutationOutcome{}, fmt.Errorf("unknown operation kind %d", kind)
		}
		ms := float64(time.Since(start).Milliseconds())
		if err != nil {
			if isFatal(ctx, err) {
				return MutationOutcome{}, err
			}
			return MutationOutcome{}, &syncerr.MutationError{Target: id, Chunk: index, Err: err}
		}

		if resp.Submitted == 0 {
			resp.Submitted = len(chunk)
		}
		out, err := Aggregate(resp, e.Options.StrictPartialFailure)
		if err != nil {
			return out, &syncerr.MutationError{Target: id, Chunk: index, Err: err}
		}
		recordChunk(ctx, kind, ms, out)
		e.log().Debug("chunk submitted",
			zap.String("campaign_id", id),
			zap.String("kind", kind.String()),
			zap.Int("chunk", index),
			zap.Int("submitted", out.Submitted),
			zap.Int("failed", out.FailedCount))
		return out, nil
	}
}

// isFatal reports whether err must stop the whole run rather than one
// campaign: a run-fatal class from syncerr, or the run's own cancellation.
func isFatal(ctx context.Context, err error) bool {
	if syncerr.IsRunFatal(err) {
		return true
	}
	return ctx.Err() != nil && (errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded))
}

func resourceNames(ops []Operation) []string {
	names := make([]string, len(ops))
	for i, op := range ops {
		names[i] = op.ResourceName
	}
	return names
}
