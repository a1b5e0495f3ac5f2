package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	messageDomain "github.com/reshetovitsme/tg-forwarder/internal/modules/message/domain"
	"github.com/reshetovitsme/tg-forwarder/internal/shared/worker"
	"github.com/samber/oops"
)

// Sink accepts dispatch requests without waiting for delivery.
type Sink interface {
	Enqueue(req messageDomain.DispatchRequest) error
}

type ForwarderOptions struct {
	Workers    int
	QueueSize  int
	Registerer prometheus.Registerer
}

// Forwarder is the intake side: inbound messages are queued, evaluated concurrently
// by the engine and the resulting requests handed to the sink.
type Forwarder struct {
	engine *Engine
	sink   Sink
	pool   *worker.Pool[messageDomain.InboundMessage]
	logger *slog.Logger
}

func NewForwarder(engine *Engine, sink Sink, opts ForwarderOptions, logger *slog.Logger) *Forwarder {
	if logger == nil {
		logger = slog.Default()
	}
	f := &Forwarder{
		engine: engine,
		sink:   sink,
		logger: logger.With("component", "forwarder"),
	}
	f.pool = worker.NewPool("intake", opts.Workers, opts.QueueSize, f.process,
		worker.WithMetrics[messageDomain.InboundMessage](opts.Registerer))
	return f
}

func (f *Forwarder) Start(ctx context.Context) error {
	return f.pool.Start(ctx)
}

// Submit queues msg for evaluation. It never blocks; a saturated queue returns ErrQueueFull.
func (f *Forwarder) Submit(msg messageDomain.InboundMessage) error {
	if err := f.pool.Submit(msg); err != nil {
		return oops.With("chat_id", msg.ChatID, "message_id", msg.MessageID).Wrap(err)
	}
	return nil
}

// Stop refuses new messages and waits for queued and in-flight evaluations.
func (f *Forwarder) Stop(timeout time.Duration) error {
	return f.pool.Stop(timeout)
}

func (f *Forwarder) Stats() worker.PoolStats {
	return f.pool.Stats()
}

func (f *Forwarder) process(_ context.Context, msg messageDomain.InboundMessage) error {
	requests := f.engine.Process(msg)

	rejected := 0
	for _, req := range requests {
		if err := f.sink.Enqueue(req); err != nil {
			rejected++
			f.logger.Warn("dispatch request rejected",
				"rule_name", req.Message.RuleName,
				"target_channel_id", req.TargetChannelID,
				"error", err,
			)
		}
	}

	if rejected > 0 {
		return oops.
			With("chat_id", msg.ChatID, "message_id", msg.MessageID).
			Errorf("%d of %d dispatch requests rejected", rejected, len(requests))
	}
	return nil
}
