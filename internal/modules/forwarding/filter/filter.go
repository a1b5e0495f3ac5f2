// Package filter decides whether an inbound message satisfies a rule's filter options.
package filter

import (
	"log/slog"
	"strings"

	"github.com/dlclark/regexp2"
	messageDomain "github.com/reshetovitsme/tg-forwarder/internal/modules/message/domain"
	ruleDomain "github.com/reshetovitsme/tg-forwarder/internal/modules/rule/domain"
	"github.com/reshetovitsme/tg-forwarder/internal/shared/regexcache"
	"github.com/samber/lo"
)

// Axis names a filter condition. It is reported when the condition rejects a message.
type Axis string

const (
	AxisNone        Axis = ""
	AxisEdited      Axis = "edited"
	AxisService     Axis = "service"
	AxisMessageType Axis = "message_type"
	AxisMimeType    Axis = "mime_type"
	AxisSender      Axis = "sender"
	AxisLength      Axis = "length"
	AxisText        Axis = "contains_text"
)

// RegexProvider hands out compiled patterns, typically a *regexcache.Cache.
type RegexProvider interface {
	Get(pattern string, opts ruleDomain.RegexOptions) (*regexp2.Regexp, error)
}

type Evaluator struct {
	regexes RegexProvider
	logger  *slog.Logger
}

func New(regexes RegexProvider, logger *slog.Logger) *Evaluator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Evaluator{
		regexes: regexes,
		logger:  logger.With("component", "filter"),
	}
}

// Matches reports whether msg passes every configured axis of opts.
func (e *Evaluator) Matches(msg messageDomain.InboundMessage, opts ruleDomain.FilterOptions) bool {
	ok, _ := e.Evaluate(msg, opts)
	return ok
}

// Evaluate is Matches plus the first axis that rejected the message.
// Axes are checked in a fixed order and the first failure short-circuits.
func (e *Evaluator) Evaluate(msg messageDomain.InboundMessage, opts ruleDomain.FilterOptions) (bool, Axis) {
	if opts.IgnoreEditedMessages && msg.IsEdited {
		return false, AxisEdited
	}
	if opts.IgnoreServiceMessages && msg.IsService {
		return false, AxisService
	}
	if len(opts.AllowedMessageTypes) > 0 && !lo.Contains(opts.AllowedMessageTypes, msg.Type) {
		return false, AxisMessageType
	}
	if len(opts.AllowedMimeTypes) > 0 && !mimeAllowed(msg.MimeType, opts.AllowedMimeTypes) {
		return false, AxisMimeType
	}
	if !senderAllowed(msg.SenderID, opts.AllowedSenderUserIDs, opts.BlockedSenderUserIDs) {
		return false, AxisSender
	}
	if opts.MinMessageLength != nil && msg.Length < *opts.MinMessageLength {
		return false, AxisLength
	}
	if opts.MaxMessageLength != nil && msg.Length > *opts.MaxMessageLength {
		return false, AxisLength
	}
	if opts.ContainsText != "" && !e.containsText(msg.Text, opts) {
		return false, AxisText
	}
	return true, AxisNone
}

// senderAllowed applies deny before allow. An unknown sender (0) never matches a list entry.
func senderAllowed(sender int64, allowed, blocked []int64) bool {
	if sender != 0 && lo.Contains(blocked, sender) {
		return false
	}
	if len(allowed) == 0 {
		return true
	}
	return sender != 0 && lo.Contains(allowed, sender)
}

// mimeAllowed compares case-insensitively; an entry like "image/*" accepts any image subtype.
func mimeAllowed(mime string, allowed []string) bool {
	if mime == "" {
		return false
	}
	mime = strings.ToLower(mime)
	return lo.ContainsBy(allowed, func(a string) bool {
		a = strings.ToLower(strings.TrimSpace(a))
		if prefix, ok := strings.CutSuffix(a, "/*"); ok {
			return strings.HasPrefix(mime, prefix+"/")
		}
		return a == "*" || a == mime
	})
}

func (e *Evaluator) containsText(text string, opts ruleDomain.FilterOptions) bool {
	if !opts.IsRegex {
		return strings.Contains(strings.ToLower(text), strings.ToLower(opts.ContainsText))
	}

	re, err := e.regexes.Get(opts.ContainsText, opts.RegexOptions)
	if err != nil {
		e.logger.Warn("contains_text pattern unusable, rule will not match",
			"pattern", opts.ContainsText, "error", err)
		return false
	}

	ok, err := regexcache.MatchString(re, text)
	if err != nil {
		e.logger.Warn("contains_text match aborted, rule will not match",
			"pattern", opts.ContainsText, "error", err)
		return false
	}
	return ok
}
