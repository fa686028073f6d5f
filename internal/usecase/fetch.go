package usecase

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/semaphore"
	"golang.org/x/sync/singleflight"

	"github.com/totegamma/mediafetch/internal/domain"
)

var tracer = otel.Tracer("fetch")

type FetchOptions struct {
	// Concurrency bounds in-flight store calls across all items.
	Concurrency int64
	// Expires re-fetches objects older than this. Zero disables expiry.
	Expires time.Duration
	Now     func() time.Time
}

type FetchUsecase struct {
	store    StoreClient
	sem      *semaphore.Weighted
	inflight singleflight.Group
	expires  time.Duration
	now      func() time.Time
	logger   *slog.Logger
}

func NewFetchUsecase(store StoreClient, opts FetchOptions, logger *slog.Logger) *FetchUsecase {
	if opts.Concurrency <= 0 {
		opts.Concurrency = domain.DefaultConcurrency
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &FetchUsecase{
		store:   store,
		sem:     semaphore.NewWeighted(opts.Concurrency),
		expires: opts.Expires,
		now:     opts.Now,
		logger:  logger,
	}
}

// Pending is the in-flight resolution of one resource request.
type Pending struct {
	done    chan struct{}
	outcome domain.FetchOutcome
}

func (p *Pending) Done() <-chan struct{} {
	return p.done
}

// Wait blocks until the outcome is ready or ctx is cancelled.
func (p *Pending) Wait(ctx context.Context) (domain.FetchOutcome, error) {
	select {
	case <-p.done:
		return p.outcome, nil
	case <-ctx.Done():
		return domain.FetchOutcome{}, ctx.Err()
	}
}

// Acquire starts resolving req in the background.
func (uc *FetchUsecase) Acquire(ctx context.Context, req ResourceRequest) *Pending {
	p := &Pending{done: make(chan struct{})}
	go func() {
		defer close(p.done)
		p.outcome = uc.acquire(ctx, req)
	}()
	return p
}

func (uc *FetchUsecase) acquire(ctx context.Context, req ResourceRequest) domain.FetchOutcome {
	ctx, span := tracer.Start(ctx, "Fetch.Usecase.Acquire", trace.WithAttributes(attribute.String("url", req.URL)))
	defer span.End()

	outcome := domain.FetchOutcome{SourceURL: req.URL}

	dest, err := Resolve(req)
	if err != nil {
		span.RecordError(err)
		return uc.fail(outcome, err)
	}
	outcome.Destination = dest
	span.SetAttributes(attribute.String("bucket", dest.Bucket), attribute.String("key", dest.Key))

	obj, shared, err := uc.ensure(ctx, req.URL, dest)
	span.SetAttributes(attribute.Bool("shared", shared))
	if err != nil {
		span.RecordError(err)
		return uc.fail(outcome, err)
	}

	outcome.Status = obj.status
	outcome.Checksum = obj.stat.Checksum
	outcome.LastModified = obj.stat.LastModified
	uc.logger.Debug("resource stored", "url", req.URL, "bucket", dest.Bucket, "key", dest.Key, "cached", obj.status == domain.OutcomeCached, "shared", shared)
	return outcome
}

type stored struct {
	status domain.OutcomeStatus
	stat   domain.Stat
}

// ensure runs stat-then-fetch once per destination; concurrent callers for the
// same destination share the result.
func (uc *FetchUsecase) ensure(ctx context.Context, url string, dest domain.Destination) (stored, bool, error) {
	v, err, shared := uc.inflight.Do(dest.String(), func() (any, error) {
		stat, err := uc.stat(ctx, dest)
		if err != nil {
			return nil, err
		}
		if stat != nil && !uc.expired(stat) {
			return stored{status: domain.OutcomeCached, stat: *stat}, nil
		}

		fetched, err := uc.fetch(ctx, url, dest)
		if err != nil {
			return nil, err
		}
		return stored{status: domain.OutcomeFetched, stat: fetched}, nil
	})
	if err != nil {
		return stored{}, shared, err
	}
	return v.(stored), shared, nil
}

func (uc *FetchUsecase) stat(ctx context.Context, dest domain.Destination) (*domain.Stat, error) {
	if err := uc.sem.Acquire(ctx, 1); err != nil {
		return nil, &domain.StatError{Destination: dest, Cause: err}
	}
	defer uc.sem.Release(1)

	stat, err := uc.store.Stat(ctx, dest.Bucket, dest.Key)
	if err != nil {
		var statErr *domain.StatError
		if errors.As(err, &statErr) {
			return nil, err
		}
		return nil, &domain.StatError{Destination: dest, Cause: err}
	}
	return stat, nil
}

func (uc *FetchUsecase) fetch(ctx context.Context, url string, dest domain.Destination) (domain.Stat, error) {
	if err := uc.sem.Acquire(ctx, 1); err != nil {
		return domain.Stat{}, &domain.FetchError{URL: url, Destination: dest, Message: "not started", Cause: err}
	}
	defer uc.sem.Release(1)

	stat, err := uc.store.Fetch(ctx, url, dest.Bucket, dest.Key)
	if err != nil {
		var fetchErr *domain.FetchError
		if errors.As(err, &fetchErr) {
			return domain.Stat{}, err
		}
		return domain.Stat{}, &domain.FetchError{URL: url, Destination: dest, Message: "store call failed", Cause: err}
	}
	return stat, nil
}

func (uc *FetchUsecase) expired(stat *domain.Stat) bool {
	if uc.expires <= 0 || stat.LastModified == 0 {
		return false
	}
	return uc.now().Sub(time.Unix(stat.LastModified, 0)) > uc.expires
}

func (uc *FetchUsecase) fail(outcome domain.FetchOutcome, err error) domain.FetchOutcome {
	outcome.Status = domain.OutcomeFailed
	outcome.Err = err
	uc.logger.Warn("resource failed", "url", outcome.SourceURL, "bucket", outcome.Destination.Bucket, "key", outcome.Destination.Key, "error", err)
	return outcome
}

// Gather waits for every pending outcome, preserving order.
func Gather(ctx context.Context, pendings []*Pending) ([]domain.FetchOutcome, error) {
	outcomes := make([]domain.FetchOutcome, len(pendings))
	for i, p := range pendings {
		outcome, err := p.Wait(ctx)
		if err != nil {
			return nil, err
		}
		outcomes[i] = outcome
	}
	return outcomes, nil
}
