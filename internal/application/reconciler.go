package application

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"golang.org/x/time/rate"

	"github.com/bnema/powertrack-cli/internal/domain"
	"github.com/bnema/powertrack-cli/internal/ports"
)

const (
	OpAdd    = "add"
	OpRemove = "remove"
)

// RuleTarget is the rules collection of one stream.
type RuleTarget struct {
	AccountName string
	URL         string
	Credentials domain.Credentials
}

type ReconcilerOptions struct {
	// BatchSize applies when a call passes maxBatch <= 0.
	BatchSize int
	// Limiter, when set, is waited on before every batch request.
	Limiter *rate.Limiter
	// Listener receives success, error, request_too_large and
	// unprocessable_entity events in addition to the returned values.
	Listener func(domain.Event)
	// Progress is called before each batch request is sent.
	Progress func(BatchProgress)
	Metrics  ports.RuleMetrics
	Logger   *slog.Logger
}

// BatchProgress locates one batch request within an add or remove run.
type BatchProgress struct {
	Op      string
	Batch   int
	Batches int
	Rules   int
}

type BatchReport struct {
	Batches int `json:"batches"`
	Rules   int `json:"rules"`
}

type UpdateReport struct {
	Plan    domain.Plan `json:"plan"`
	Added   BatchReport `json:"added"`
	Removed BatchReport `json:"removed"`
}

type rulesPayload struct {
	Rules domain.RuleSet `json:"rules"`
}

// Reconciler manages the rule set of a single stream. Batches are sent one at
// a time and the first failure stops the remaining ones.
type Reconciler struct {
	transport ports.Transport
	target    RuleTarget
	batchSize int
	limiter   *rate.Limiter
	listener  func(domain.Event)
	progress  func(BatchProgress)
	codec     ports.Codec
	metrics   ports.RuleMetrics
	logger    *slog.Logger
}

func NewReconciler(transport ports.Transport, codec ports.Codec, target RuleTarget, opts ReconcilerOptions) *Reconciler {
	if opts.BatchSize <= 0 {
		opts.BatchSize = domain.DefaultBatchSize
	}
	if opts.Metrics == nil {
		opts.Metrics = ports.NopMetrics{}
	}
	if opts.Logger == nil {
		opts.Logger = slog.New(slog.DiscardHandler)
	}

	return &Reconciler{
		transport: transport,
		target:    target,
		batchSize: opts.BatchSize,
		limiter:   opts.Limiter,
		listener:  opts.Listener,
		progress:  opts.Progress,
		codec:     codec,
		metrics:   opts.Metrics,
		logger:    opts.Logger,
	}
}

func (r *Reconciler) List(ctx context.Context) (domain.RuleSet, error) {
	rules, err := r.list(ctx)
	if err != nil {
		r.notifyFailure(err)
		return nil, err
	}
	r.notify(domain.Event{Channel: domain.SuccessChannel, Rules: rules})
	return rules, nil
}

func (r *Reconciler) Add(ctx context.Context, rules domain.RuleSet, maxBatch int) (BatchReport, error) {
	report, err := r.add(ctx, rules, maxBatch)
	if err != nil {
		r.notifyFailure(err)
		return report, err
	}
	r.notify(domain.Event{Channel: domain.SuccessChannel, Report: report})
	return report, nil
}

func (r *Reconciler) Remove(ctx context.Context, rules domain.RuleSet, maxBatch int) (BatchReport, error) {
	report, err := r.remove(ctx, rules, maxBatch)
	if err != nil {
		r.notifyFailure(err)
		return report, err
	}
	r.notify(domain.Event{Channel: domain.SuccessChannel, Report: report})
	return report, nil
}

// Plan lists the live rules and diffs them against desired without changing anything.
func (r *Reconciler) Plan(ctx context.Context, desired domain.RuleSet) (domain.Plan, error) {
	live, err := r.list(ctx)
	if err != nil {
		return domain.Plan{}, err
	}
	return domain.ComputePlan(desired, live), nil
}

// Update makes the live rule set equal to desired by value: missing rules are
// added first, then stale rules are removed. A failed add leaves the stale
// rules in place.
func (r *Reconciler) Update(ctx context.Context, desired domain.RuleSet, maxBatch int) (UpdateReport, error) {
	report, err := r.update(ctx, desired, maxBatch)
	if err != nil {
		r.notifyFailure(err)
		return report, err
	}
	r.notify(domain.Event{Channel: domain.SuccessChannel, Report: report})
	return report, nil
}

func (r *Reconciler) update(ctx context.Context, desired domain.RuleSet, maxBatch int) (UpdateReport, error) {
	plan, err := r.Plan(ctx, desired)
	if err != nil {
		return UpdateReport{}, err
	}

	report := UpdateReport{Plan: plan}
	r.logger.Debug("rule plan computed", "add", len(plan.ToAdd), "remove", len(plan.ToRemove), "keep", len(plan.ToKeep))

	if len(plan.ToAdd) > 0 {
		report.Added, err = r.add(ctx, plan.ToAdd, maxBatch)
		if err != nil {
			return report, err
		}
	}
	if len(plan.ToRemove) > 0 {
		report.Removed, err = r.remove(ctx, plan.ToRemove, maxBatch)
		if err != nil {
			return report, err
		}
	}
	return report, nil
}

func (r *Reconciler) list(ctx context.Context) (domain.RuleSet, error) {
	if err := r.validate(); err != nil {
		return nil, err
	}

	resp, err := r.transport.Do(ctx, ports.Request{
		Method:      http.MethodGet,
		URL:         r.target.URL,
		Credentials: r.target.Credentials,
	})
	if err != nil {
		return nil, &domain.RuleListError{Err: err}
	}
	if !isSuccess(resp.StatusCode) {
		return nil, &domain.RuleListError{Code: resp.StatusCode}
	}

	body := bytes.TrimSpace(resp.Body)
	if len(body) == 0 {
		return domain.RuleSet{}, nil
	}

	var payload rulesPayload
	if err := r.codec.Unmarshal(body, &payload); err != nil {
		return nil, &domain.RuleListError{Code: resp.StatusCode, Err: fmt.Errorf("decode rules response: %w", err)}
	}
	if payload.Rules == nil {
		payload.Rules = domain.RuleSet{}
	}
	return payload.Rules, nil
}

func (r *Reconciler) add(ctx context.Context, rules domain.RuleSet, maxBatch int) (BatchReport, error) {
	if err := r.validate(); err != nil {
		return BatchReport{}, err
	}

	return r.runBatches(ctx, OpAdd, rules, maxBatch, func(ctx context.Context, batch domain.RuleSet) error {
		resp, err := r.send(ctx, http.MethodPost, batch)
		if err != nil {
			return &domain.RuleAddError{Err: err}
		}
		switch {
		case isSuccess(resp.StatusCode):
			return nil
		case resp.StatusCode == http.StatusRequestEntityTooLarge:
			return &domain.PayloadTooLargeError{}
		case resp.StatusCode == http.StatusUnprocessableEntity:
			return &domain.InvalidRuleError{Body: string(resp.Body)}
		default:
			return &domain.RuleAddError{Code: resp.StatusCode}
		}
	})
}

func (r *Reconciler) remove(ctx context.Context, rules domain.RuleSet, maxBatch int) (BatchReport, error) {
	if err := r.validate(); err != nil {
		return BatchReport{}, err
	}

	return r.runBatches(ctx, OpRemove, rules, maxBatch, func(ctx context.Context, batch domain.RuleSet) error {
		resp, err := r.send(ctx, http.MethodDelete, batch)
		if err != nil {
			return &domain.RuleRemoveError{Err: err}
		}
		if !isSuccess(resp.StatusCode) {
			return &domain.RuleRemoveError{Code: resp.StatusCode}
		}
		return nil
	})
}

func (r *Reconciler) send(ctx context.Context, method string, batch domain.RuleSet) (ports.Response, error) {
	body, err := r.codec.Marshal(rulesPayload{Rules: batch})
	if err != nil {
		return ports.Response{}, fmt.Errorf("encode rules payload: %w", err)
	}

	header := http.Header{}
	header.Set("Content-Type", "application/json")
	return r.transport.Do(ctx, ports.Request{
		Method:      method,
		URL:         r.target.URL,
		Credentials: r.target.Credentials,
		Header:      header,
		Body:        body,
	})
}

// batchRun is the state threaded through one batched operation.
type batchRun struct {
	remaining domain.RuleSet
	report    BatchReport
}

// take splits off the next batch of at most size rules from the front.
func (b batchRun) take(size int) (domain.RuleSet, batchRun) {
	if len(b.remaining) <= size {
		return b.remaining, batchRun{report: b.report}
	}
	return b.remaining[:size], batchRun{remaining: b.remaining[size:], report: b.report}
}

func (b batchRun) completed(batch domain.RuleSet) batchRun {
	b.report.Batches++
	b.report.Rules += len(batch)
	return b
}

func (r *Reconciler) runBatches(ctx context.Context, op string, rules domain.RuleSet, maxBatch int, call func(context.Context, domain.RuleSet) error) (BatchReport, error) {
	size := maxBatch
	if size <= 0 {
		size = r.batchSize
	}

	batches := (len(rules) + size - 1) / size
	run := batchRun{remaining: rules}
	for len(run.remaining) > 0 {
		var batch domain.RuleSet
		batch, run = run.take(size)
		if r.progress != nil {
			r.progress(BatchProgress{Op: op, Batch: run.report.Batches + 1, Batches: batches, Rules: len(batch)})
		}

		if r.limiter != nil {
			if err := r.limiter.Wait(ctx); err != nil {
				return run.report, fmt.Errorf("wait for rules rate limit: %w", err)
			}
		}

		err := call(ctx, batch)
		r.metrics.RuleBatch(op, len(batch), err)
		if err != nil {
			r.logger.Debug("rule batch failed", "op", op, "size", len(batch), "rules", batch.Values(), "error", err)
			return run.report, err
		}

		run = run.completed(batch)
		r.logger.Debug("rule batch complete", "op", op, "size", len(batch), "remaining", len(run.remaining))
	}
	return run.report, nil
}

func (r *Reconciler) validate() error {
	return domain.ValidateIdentity(r.target.AccountName, r.target.Credentials)
}

func (r *Reconciler) notify(ev domain.Event) {
	if r.listener != nil {
		r.listener(ev)
	}
}

func (r *Reconciler) notifyFailure(err error) {
	if r.listener == nil {
		return
	}

	var (
		tooLarge *domain.PayloadTooLargeError
		invalid  *domain.InvalidRuleError
	)
	switch {
	case errors.As(err, &tooLarge):
		r.listener(domain.Event{Channel: domain.StaticChannel(domain.ChannelRequestTooLarge), Err: err})
	case errors.As(err, &invalid):
		r.listener(domain.Event{Channel: domain.StaticChannel(domain.ChannelUnprocessableEntity), Err: err})
	}
	r.listener(domain.ErrorEvent(err))
}

func isSuccess(code int) bool {
	return code >= http.StatusOK && code < http.StatusMultipleChoices
}
