package service

import (
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/reshetovitsme/tg-forwarder/internal/modules/forwarding/filter"
	messageDomain "github.com/reshetovitsme/tg-forwarder/internal/modules/message/domain"
	ruleDomain "github.com/reshetovitsme/tg-forwarder/internal/modules/rule/domain"
	"github.com/samber/lo"
	"github.com/samber/oops"
)

// RuleSource is a read-only view of the current rule snapshot.
type RuleSource interface {
	GetEnabledRulesBySourceChannel(channelID int64) []ruleDomain.ForwardingRule
}

type Filter interface {
	Evaluate(msg messageDomain.InboundMessage, opts ruleDomain.FilterOptions) (bool, filter.Axis)
}

type Transformer interface {
	Transform(msg messageDomain.InboundMessage, opts ruleDomain.EditOptions) messageDomain.OutboundMessage
}

// Engine evaluates every rule of a message's source channel independently and
// turns each match into one dispatch request per target. It keeps no per-message state.
type Engine struct {
	rules       RuleSource
	filter      Filter
	transformer Transformer
	metrics     *engineMetrics
	logger      *slog.Logger
}

// NewEngine creates an engine. A nil registerer disables metrics.
func NewEngine(rules RuleSource, f Filter, t Transformer, reg prometheus.Registerer, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		rules:       rules,
		filter:      f,
		transformer: t,
		metrics:     newEngineMetrics(reg),
		logger:      logger.With("component", "rule-engine"),
	}
}

// Process returns the dispatch requests for msg in rule order, then target order.
// A failing rule is logged and skipped; it never affects the other rules.
func (e *Engine) Process(msg messageDomain.InboundMessage) []messageDomain.DispatchRequest {
	rules := e.rules.GetEnabledRulesBySourceChannel(msg.ChatID)
	if len(rules) == 0 {
		return nil
	}

	var requests []messageDomain.DispatchRequest
	for _, rule := range rules {
		requests = append(requests, e.processRule(msg, rule)...)
	}
	return requests
}

func (e *Engine) processRule(msg messageDomain.InboundMessage, rule ruleDomain.ForwardingRule) []messageDomain.DispatchRequest {
	var (
		requests []messageDomain.DispatchRequest
		result   string
	)

	start := time.Now()
	err := oops.
		With("rule_name", rule.RuleName, "chat_id", msg.ChatID, "message_id", msg.MessageID).
		Recover(func() {
			requests, result = e.evaluate(msg, rule)
		})
	duration := time.Since(start)

	if err != nil {
		e.logger.Error("rule evaluation failed",
			"rule_name", rule.RuleName,
			"chat_id", msg.ChatID,
			"message_id", msg.MessageID,
			"error", err,
		)
		requests, result = nil, resultError
		if e.metrics != nil {
			e.metrics.ruleErrors.WithLabelValues(rule.RuleName).Inc()
		}
	}

	if e.metrics != nil {
		e.metrics.evaluationsTotal.WithLabelValues(rule.RuleName, result).Inc()
		e.metrics.evaluationDuration.WithLabelValues(rule.RuleName).Observe(duration.Seconds())
		if len(requests) > 0 {
			e.metrics.dispatchRequests.WithLabelValues(rule.RuleName).Add(float64(len(requests)))
		}
	}

	return requests
}

func (e *Engine) evaluate(msg messageDomain.InboundMessage, rule ruleDomain.ForwardingRule) ([]messageDomain.DispatchRequest, string) {
	if !rule.IsEnabled {
		e.logger.Debug("rule disabled, skipping", "rule_name", rule.RuleName)
		return nil, resultSkipped
	}
	if len(rule.TargetChannelIDs) == 0 {
		e.logger.Warn("rule has no target channels, skipping", "rule_name", rule.RuleName)
		return nil, resultSkipped
	}

	if ok, axis := e.filter.Evaluate(msg, rule.FilterOptions); !ok {
		e.logger.Debug("message filtered out",
			"rule_name", rule.RuleName,
			"chat_id", msg.ChatID,
			"message_id", msg.MessageID,
			"axis", string(axis),
		)
		return nil, resultFiltered
	}

	out := e.transformer.Transform(msg, rule.EditOptions)
	out.RuleName = rule.RuleName

	if out.Truncated && e.metrics != nil {
		e.metrics.truncations.WithLabelValues(rule.RuleName).Inc()
	}

	requests := lo.Map(rule.TargetChannelIDs, func(target int64, _ int) messageDomain.DispatchRequest {
		return messageDomain.DispatchRequest{
			TargetChannelID: target,
			Message:         out,
			ProtectContent:  out.ProtectContent,
		}
	})

	return requests, resultMatched
}
