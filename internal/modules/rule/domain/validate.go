package domain

import (
	"strings"

	messageDomain "github.com/reshetovitsme/tg-forwarder/internal/modules/message/domain"
	"github.com/reshetovitsme/tg-forwarder/internal/shared/errors"
	"github.com/samber/oops"
)

// Normalize returns a copy of the rule with message types in canonical form
// ("Photo" -> "photo") and mime types lowercased.
func (r ForwardingRule) Normalize() (ForwardingRule, error) {
	n := r.Clone()
	n.RuleName = strings.TrimSpace(n.RuleName)

	for i, t := range n.FilterOptions.AllowedMessageTypes {
		parsed, err := messageDomain.ParseMessageType(strings.TrimSpace(string(t)))
		if err != nil {
			return r, oops.
				With("rule_name", r.RuleName, "message_type", string(t)).
				Wrapf(errors.ErrInvalidRule, "unknown message type %q", t)
		}
		n.FilterOptions.AllowedMessageTypes[i] = parsed
	}

	for i, m := range n.FilterOptions.AllowedMimeTypes {
		n.FilterOptions.AllowedMimeTypes[i] = strings.ToLower(strings.TrimSpace(m))
	}

	return n, nil
}

// Validate checks the rule invariants. A rule that fails validation is inert.
func (r ForwardingRule) Validate() error {
	builder := oops.With("rule_name", r.RuleName)

	if strings.TrimSpace(r.RuleName) == "" {
		return builder.Wrapf(errors.ErrInvalidRule, "rule name is empty")
	}
	if r.SourceChannelID == 0 {
		return builder.Wrapf(errors.ErrInvalidRule, "source channel is not set")
	}
	if r.IsEnabled && len(r.TargetChannelIDs) == 0 {
		return builder.Wrapf(errors.ErrInvalidRule, "enabled rule has no target channels")
	}

	f := r.FilterOptions
	if f.MinMessageLength != nil && *f.MinMessageLength < 0 {
		return builder.With("min", *f.MinMessageLength).Wrapf(errors.ErrInvalidRule, "negative minimum length")
	}
	if f.MaxMessageLength != nil && *f.MaxMessageLength < 0 {
		return builder.With("max", *f.MaxMessageLength).Wrapf(errors.ErrInvalidRule, "negative maximum length")
	}
	if f.MinMessageLength != nil && f.MaxMessageLength != nil && *f.MinMessageLength > *f.MaxMessageLength {
		return builder.
			With("min", *f.MinMessageLength, "max", *f.MaxMessageLength).
			Wrapf(errors.ErrInvalidRule, "minimum length exceeds maximum length")
	}
	for _, t := range f.AllowedMessageTypes {
		if !t.IsValid() {
			return builder.With("message_type", string(t)).Wrapf(errors.ErrInvalidRule, "unknown message type %q", t)
		}
	}

	for i, rep := range r.EditOptions.TextReplacements {
		if rep.Find == "" {
			return builder.With("replacement_index", i).Wrapf(errors.ErrInvalidRule, "text replacement has empty find value")
		}
	}

	return nil
}
