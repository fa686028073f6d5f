package usecase

import (
	"context"
	"encoding/hex"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/zeebo/xxh3"
	"go.opentelemetry.io/otel/attribute"

	"github.com/totegamma/mediafetch"
	"github.com/totegamma/mediafetch/internal/domain"
)

type ItemOptions struct {
	Fields domain.Fields
	Bucket string
	Prefix string
	Rules  KeyRules
}

type ItemUsecase struct {
	fetch   *FetchUsecase
	repo    ItemRepository
	signal  EventPublisher
	fields  domain.Fields
	bucket  string
	prefix  string
	rules   KeyRules
	logger  *slog.Logger
	channel string
}

// NewItemUsecase wires the orchestrator to optional persistence and event
// publishing; repo and signal may be nil.
func NewItemUsecase(fetch *FetchUsecase, repo ItemRepository, signal EventPublisher, opts ItemOptions, logger *slog.Logger) *ItemUsecase {
	if opts.Rules == nil {
		opts.Rules = BuiltinKeyRules()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &ItemUsecase{
		fetch:   fetch,
		repo:    repo,
		signal:  signal,
		fields:  opts.Fields.WithDefaults(),
		bucket:  opts.Bucket,
		prefix:  opts.Prefix,
		rules:   opts.Rules,
		logger:  logger,
		channel: mediafetch.ItemsChannel,
	}
}

func (uc *ItemUsecase) Fields() domain.Fields {
	return uc.fields
}

// Strategy picks the key strategy for an item from its key-generator field.
func (uc *ItemUsecase) Strategy(item mediafetch.Item) KeyStrategy {
	ref, ok := item[uc.fields.KeyGen]
	if !ok || ref == nil {
		return uc.defaultStrategy()
	}
	return uc.strategyFor(ref)
}

func (uc *ItemUsecase) strategyFor(ref any) KeyStrategy {
	switch r := ref.(type) {
	case KeyRule:
		return CustomStrategy{Bucket: uc.bucket, Rule: r}
	case func(string) (string, string):
		return CustomStrategy{Bucket: uc.bucket, Rule: r}
	case KeyStrategy:
		return r
	case string:
		if r == "" {
			return uc.defaultStrategy()
		}
		rule, ok := uc.rules[r]
		if !ok {
			uc.logger.Warn("unknown key rule, resources will fail", "rule", r)
		}
		return CustomStrategy{Name: r, Bucket: uc.bucket, Rule: rule}
	default:
		uc.logger.Warn("unsupported key rule reference, resources will fail", "field", uc.fields.KeyGen, "type", fmt.Sprintf("%T", r))
		return CustomStrategy{Name: fmt.Sprintf("%v", r), Bucket: uc.bucket}
	}
}

func (uc *ItemUsecase) defaultStrategy() KeyStrategy {
	return DefaultStrategy{Bucket: uc.bucket, Prefix: uc.prefix}
}

// Requests builds one request per URL listed on the item.
func (uc *ItemUsecase) Requests(item mediafetch.Item) []ResourceRequest {
	urls := URLsOf(item, uc.fields.URLs)
	strategy := uc.Strategy(item)

	requests := make([]ResourceRequest, 0, len(urls))
	for _, u := range urls {
		requests = append(requests, ResourceRequest{URL: u, Strategy: strategy})
	}
	return requests
}

// ResolveURL previews the destination of a single URL.
func (uc *ItemUsecase) ResolveURL(rawURL, rule string) (domain.Destination, error) {
	strategy := uc.defaultStrategy()
	if rule != "" {
		strategy = uc.strategyFor(rule)
	}
	return Resolve(ResourceRequest{URL: rawURL, Strategy: strategy})
}

// Process fetches every resource of item and annotates it with the results.
// Per-resource failures never fail the item; only cancellation does.
func (uc *ItemUsecase) Process(ctx context.Context, item mediafetch.Item) (mediafetch.Item, error) {
	ctx, span := tracer.Start(ctx, "Item.Usecase.Process")
	defer span.End()

	if item == nil {
		item = mediafetch.Item{}
	}

	id := ItemID(item, uc.fields.URLs)
	span.SetAttributes(attribute.String("item", id))

	requests := uc.Requests(item)
	pendings := make([]*Pending, len(requests))
	for i, req := range requests {
		pendings[i] = uc.fetch.Acquire(ctx, req)
	}

	outcomes, err := Gather(ctx, pendings)
	if err != nil {
		span.RecordError(err)
		return item, errors.Wrap(err, "item "+id+" abandoned")
	}

	Complete(item, uc.fields.Result, outcomes)

	succeeded := 0
	logs := make([]domain.FetchLog, 0, len(outcomes))
	for _, o := range outcomes {
		if o.OK() {
			succeeded++
		}
		logs = append(logs, domain.NewFetchLog(o))
	}
	failed := len(outcomes) - succeeded

	uc.logger.Info("item processed", "item", id, "resources", len(outcomes), "succeeded", succeeded, "failed", failed)

	if uc.repo != nil {
		record := domain.ItemRecord{
			ID:        id,
			Item:      uc.persistable(item),
			Succeeded: succeeded,
			Failed:    failed,
			Fetches:   logs,
		}
		if err := uc.repo.Save(ctx, record); err != nil {
			span.RecordError(errors.Wrap(err, "ItemUsecase.Process: repo.Save failed"))
			uc.logger.Error("failed to save item", "item", id, "error", err)
		}
	}

	if uc.signal != nil {
		event := mediafetch.Event{
			Type:      mediafetch.EventItemCompleted,
			ItemID:    id,
			Succeeded: succeeded,
			Failed:    failed,
			Files:     FileResults(outcomes),
			Timestamp: time.Now().UTC(),
		}
		if err := uc.signal.Publish(ctx, uc.channel, event); err != nil {
			span.RecordError(errors.Wrap(err, "ItemUsecase.Process: signal.Publish failed"))
			uc.logger.Error("failed to publish item event", "item", id, "error", err)
		}
	}

	return item, nil
}

// persistable drops a key rule carried as a Go value; only rule names survive
// serialisation.
func (uc *ItemUsecase) persistable(item mediafetch.Item) mediafetch.Item {
	ref, ok := item[uc.fields.KeyGen]
	if !ok {
		return item
	}
	if _, isName := ref.(string); isName {
		return item
	}

	out := make(mediafetch.Item, len(item))
	for k, v := range item {
		out[k] = v
	}
	delete(out, uc.fields.KeyGen)
	return out
}

func (uc *ItemUsecase) Get(ctx context.Context, id string) (domain.ItemRecord, error) {
	if uc.repo == nil {
		return domain.ItemRecord{}, domain.NotFoundError{Resource: "item"}
	}
	return uc.repo.Get(ctx, id)
}

// URLsOf reads the URL list of an item. Non-string entries are skipped.
func URLsOf(item mediafetch.Item, field string) []string {
	switch v := item[field].(type) {
	case []string:
		return v
	case []any:
		urls := make([]string, 0, len(v))
		for _, u := range v {
			if s, ok := u.(string); ok && s != "" {
				urls = append(urls, s)
			}
		}
		return urls
	case string:
		if v == "" {
			return nil
		}
		return []string{v}
	default:
		return nil
	}
}

// ItemID returns the item's own id, or a hash of its URL list.
func ItemID(item mediafetch.Item, urlsField string) string {
	switch v := item[domain.ItemIDField].(type) {
	case string:
		if v != "" {
			return v
		}
	case float64:
		return fmt.Sprintf("%.0f", v)
	case int:
		return fmt.Sprintf("%d", v)
	case int64:
		return fmt.Sprintf("%d", v)
	}

	sum := xxh3.HashString128(strings.Join(URLsOf(item, urlsField), "\n")).Bytes()
	return hex.EncodeToString(sum[:])
}
