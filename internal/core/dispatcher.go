package core

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/JonMunkholm/regionalert/internal/metrics"
)

// DefaultPublishTimeout bounds the enqueue phase of a dispatch.
const DefaultPublishTimeout = 5 * time.Second

// PhoneLookup resolves the phone numbers registered under a region code.
type PhoneLookup interface {
	LookupPhonesByRegion(ctx context.Context, regionCode string) ([]string, error)
}

// DispatcherConfig holds the dispatcher's timeouts. Zero values disable the
// lookup timeout and use DefaultPublishTimeout.
type DispatcherConfig struct {
	LookupTimeout  time.Duration
	PublishTimeout time.Duration
}

// Dispatcher fans an alert out to every recipient of a region code.
type Dispatcher struct {
	lookup    PhoneLookup
	publisher Publisher
	cfg       DispatcherConfig
	logger    *slog.Logger
	now       func() time.Time
}

// NewDispatcher creates a Dispatcher. A nil logger uses slog.Default().
func NewDispatcher(lookup PhoneLookup, publisher Publisher, cfg DispatcherConfig, logger *slog.Logger) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.PublishTimeout <= 0 {
		cfg.PublishTimeout = DefaultPublishTimeout
	}
	return &Dispatcher{
		lookup:    lookup,
		publisher: publisher,
		cfg:       cfg,
		logger:    logger,
		now:       time.Now,
	}
}

// Dispatch validates req, resolves its recipients and publishes one
// notification per recipient without waiting for delivery.
//
// Validation runs in a fixed order: missing region code, invalid region
// code, missing message. A region with no recipients succeeds with a zero
// SentCount. The lookup honors ctx; publishing does not, so a fan-out that
// has started is not abandoned halfway because the caller went away.
//
// If enqueueing fails, the returned result holds the number of notifications
// already published and the error has KindPublish.
func (d *Dispatcher) Dispatch(ctx context.Context, req AlertRequest) (DispatchResult, error) {
	regionCode, message, err := validateAlert(req)
	if err != nil {
		metrics.AlertsTotal.WithLabelValues("rejected").Inc()
		d.logger.Warn("alert rejected", "error", err)
		return DispatchResult{}, err
	}

	phones, err := d.resolve(ctx, regionCode)
	if err != nil {
		metrics.AlertsTotal.WithLabelValues("failed").Inc()
		return DispatchResult{}, err
	}

	d.logger.Debug("recipients resolved", "region_code", regionCode, "count", len(phones))

	pubCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), d.cfg.PublishTimeout)
	defer cancel()

	createdAt := d.now().UTC()
	for i, phone := range phones {
		msg := NotificationMessage{
			ID:          uuid.NewString(),
			RegionCode:  regionCode,
			Destination: phone,
			Body:        message,
			CreatedAt:   createdAt,
		}
		if err := d.publisher.Publish(pubCtx, msg); err != nil {
			metrics.AlertsTotal.WithLabelValues("failed").Inc()
			d.logger.Error("publish failed",
				"region_code", regionCode,
				"published", i,
				"total", len(phones),
				"error", err,
			)
			return DispatchResult{SentCount: i}, &Error{
				Kind:    KindPublish,
				Op:      "dispatch",
				Subject: regionCode,
				Err:     fmt.Errorf("%d of %d queued: %w", i, len(phones), err),
			}
		}
		metrics.NotificationsPublished.Inc()
	}

	metrics.AlertsTotal.WithLabelValues("dispatched").Inc()
	d.logger.Info("alert dispatched", "region_code", regionCode, "sent", len(phones))
	return DispatchResult{SentCount: len(phones)}, nil
}

func (d *Dispatcher) resolve(ctx context.Context, regionCode string) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if d.cfg.LookupTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.cfg.LookupTimeout)
		defer cancel()
	}

	phones, err := d.lookup.LookupPhonesByRegion(ctx, regionCode)
	if err != nil {
		if KindOf(err) == KindUnknown {
			err = PersistenceError("lookup phones", err)
		}
		return nil, err
	}
	return phones, nil
}

func validateAlert(req AlertRequest) (regionCode, message string, err error) {
	if req.RegionCode == nil {
		return "", "", &Error{Kind: KindMissingRegionCode, Op: "dispatch"}
	}
	if !IsValidRegionCode(*req.RegionCode) {
		return "", "", &Error{Kind: KindInvalidRegionCode, Op: "dispatch", Subject: *req.RegionCode}
	}
	if req.Message == nil {
		return "", "", &Error{Kind: KindMissingMessage, Op: "dispatch"}
	}
	return *req.RegionCode, *req.Message, nil
}
