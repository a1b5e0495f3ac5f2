// Package service delivers dispatch requests to target channels.
package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/prometheus/client_golang/prometheus"
	messageDomain "github.com/reshetovitsme/tg-forwarder/internal/modules/message/domain"
	"github.com/reshetovitsme/tg-forwarder/internal/shared/worker"
	"github.com/samber/oops"
)

const (
	DefaultMaxAttempts     = 3
	DefaultSendTimeout     = 10 * time.Second
	DefaultInitialInterval = 500 * time.Millisecond
)

// Sender performs one delivery attempt and returns the id of the message in the target channel.
// Errors wrapped with backoff.Permanent are not retried; backoff.RetryAfter sets the next delay.
type Sender interface {
	Send(ctx context.Context, req messageDomain.DispatchRequest) (int, error)
}

// Journal records delivery outcomes
type Journal interface {
	RecordDelivery(req messageDomain.DispatchRequest, forwardedMessageID int, sendErr error) error
}

type Options struct {
	Workers         int
	QueueSize       int
	MaxAttempts     int
	SendTimeout     time.Duration
	InitialInterval time.Duration
	Registerer      prometheus.Registerer
}

// Dispatcher queues requests and delivers them on a worker pool with retries.
// A slow or failing target only occupies the worker handling its request.
type Dispatcher struct {
	sender  Sender
	journal Journal
	opts    Options
	pool    *worker.Pool[messageDomain.DispatchRequest]
	metrics *dispatchMetrics
	logger  *slog.Logger
}

func New(sender Sender, journal Journal, opts Options, logger *slog.Logger) *Dispatcher {
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = DefaultMaxAttempts
	}
	if opts.SendTimeout <= 0 {
		opts.SendTimeout = DefaultSendTimeout
	}
	if opts.InitialInterval <= 0 {
		opts.InitialInterval = DefaultInitialInterval
	}
	if logger == nil {
		logger = slog.Default()
	}

	d := &Dispatcher{
		sender:  sender,
		journal: journal,
		opts:    opts,
		metrics: newDispatchMetrics(opts.Registerer),
		logger:  logger.With("component", "dispatcher"),
	}
	d.pool = worker.NewPool("dispatch", opts.Workers, opts.QueueSize, d.deliver,
		worker.WithMetrics[messageDomain.DispatchRequest](opts.Registerer))
	return d
}

func (d *Dispatcher) Start(ctx context.Context) error {
	return d.pool.Start(ctx)
}

// Enqueue hands req to the pool without waiting for delivery
func (d *Dispatcher) Enqueue(req messageDomain.DispatchRequest) error {
	if err := d.pool.Submit(req); err != nil {
		return oops.
			With("rule_name", req.Message.RuleName, "target_channel_id", req.TargetChannelID).
			Wrap(err)
	}
	return nil
}

// Stop refuses new requests and waits for queued deliveries
func (d *Dispatcher) Stop(timeout time.Duration) error {
	return d.pool.Stop(timeout)
}

func (d *Dispatcher) Stats() worker.PoolStats {
	return d.pool.Stats()
}

func (d *Dispatcher) deliver(ctx context.Context, req messageDomain.DispatchRequest) error {
	attempts := 0
	operation := func() (int, error) {
		attempts++
		sendCtx, cancel := context.WithTimeout(ctx, d.opts.SendTimeout)
		defer cancel()

		id, err := d.sender.Send(sendCtx, req)
		if err != nil {
			d.logger.Debug("delivery attempt failed",
				"rule_name", req.Message.RuleName,
				"target_channel_id", req.TargetChannelID,
				"attempt", attempts,
				"error", err,
			)
		}
		return id, err
	}

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = d.opts.InitialInterval

	id, err := backoff.Retry(ctx, operation,
		backoff.WithBackOff(policy),
		backoff.WithMaxTries(uint(d.opts.MaxAttempts)),
	)

	if d.metrics != nil {
		d.metrics.observe(err, attempts)
	}

	if jErr := d.journal.RecordDelivery(req, id, err); jErr != nil {
		d.logger.Warn("failed to journal delivery",
			"rule_name", req.Message.RuleName,
			"target_channel_id", req.TargetChannelID,
			"error", jErr,
		)
	}

	if err != nil {
		d.logger.Warn("delivery failed",
			"rule_name", req.Message.RuleName,
			"source_chat_id", req.Message.SourceChatID,
			"source_message_id", req.Message.SourceMessageID,
			"target_channel_id", req.TargetChannelID,
			"attempts", attempts,
			"error", err,
		)
		return oops.
			With("rule_name", req.Message.RuleName, "target_channel_id", req.TargetChannelID, "attempts", attempts).
			Wrap(err)
	}

	d.logger.Info("message forwarded",
		"rule_name", req.Message.RuleName,
		"source_chat_id", req.Message.SourceChatID,
		"source_message_id", req.Message.SourceMessageID,
		"target_channel_id", req.TargetChannelID,
		"forwarded_message_id", id,
		"truncated", req.Message.Truncated,
	)
	return nil
}
