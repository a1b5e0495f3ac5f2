package domain

import (
	"slices"
	"strconv"
	"strings"

	messageDomain "github.com/reshetovitsme/tg-forwarder/internal/modules/message/domain"
)

// ForwardingRule maps one source channel to one or more target channels
type ForwardingRule struct {
	RuleName         string        `json:"rule_name" koanf:"rule_name"`
	IsEnabled        bool          `json:"is_enabled" koanf:"is_enabled"`
	SourceChannelID  int64         `json:"source_channel_id" koanf:"source_channel_id"`
	TargetChannelIDs []int64       `json:"target_channel_ids" koanf:"target_channel_ids"`
	EditOptions      EditOptions   `json:"edit_options" koanf:"edit_options"`
	FilterOptions    FilterOptions `json:"filter_options" koanf:"filter_options"`
}

// EditOptions are the content transformations applied to a matched message
type EditOptions struct {
	PrependText               string `json:"prepend_text,omitempty" koanf:"prepend_text"`
	AppendText                string `json:"append_text,omitempty" koanf:"append_text"`
	CustomFooter              string `json:"custom_footer,omitempty" koanf:"custom_footer"`
	RemoveSourceForwardHeader bool   `json:"remove_source_forward_header" koanf:"remove_source_forward_header"`
	RemoveLinks               bool   `json:"remove_links" koanf:"remove_links"`
	StripFormatting           bool   `json:"strip_formatting" koanf:"strip_formatting"`
	DropAuthor                bool   `json:"drop_author" koanf:"drop_author"`
	DropMediaCaptions         bool   `json:"drop_media_captions" koanf:"drop_media_captions"`
	NoForwards                bool   `json:"no_forwards" koanf:"no_forwards"`
	// TextReplacements are applied in slice order, each on the previous one's output.
	TextReplacements []TextReplacement `json:"text_replacements,omitempty" koanf:"text_replacements"`
}

// TextReplacement is one find/replace step
type TextReplacement struct {
	Find         string       `json:"find" koanf:"find"`
	ReplaceWith  string       `json:"replace_with" koanf:"replace_with"`
	IsRegex      bool         `json:"is_regex" koanf:"is_regex"`
	RegexOptions RegexOptions `json:"regex_options" koanf:"regex_options"`
}

// FilterOptions are the conditions a message must satisfy for a rule to apply.
// Empty collections and nil bounds accept everything on their axis.
type FilterOptions struct {
	AllowedMessageTypes   []messageDomain.MessageType `json:"allowed_message_types,omitempty" koanf:"allowed_message_types"`
	AllowedMimeTypes      []string                    `json:"allowed_mime_types,omitempty" koanf:"allowed_mime_types"`
	ContainsText          string                      `json:"contains_text,omitempty" koanf:"contains_text"`
	IsRegex               bool                        `json:"is_regex" koanf:"is_regex"`
	RegexOptions          RegexOptions                `json:"regex_options" koanf:"regex_options"`
	AllowedSenderUserIDs  []int64                     `json:"allowed_sender_user_ids,omitempty" koanf:"allowed_sender_user_ids"`
	BlockedSenderUserIDs  []int64                     `json:"blocked_sender_user_ids,omitempty" koanf:"blocked_sender_user_ids"`
	IgnoreEditedMessages  bool                        `json:"ignore_edited_messages" koanf:"ignore_edited_messages"`
	IgnoreServiceMessages bool                        `json:"ignore_service_messages" koanf:"ignore_service_messages"`
	MinMessageLength      *int                        `json:"min_message_length,omitempty" koanf:"min_message_length"`
	MaxMessageLength      *int                        `json:"max_message_length,omitempty" koanf:"max_message_length"`
}

// RegexOptions is a portable set of regex behavior flags.
// CultureInvariant is accepted for compatibility; case folding is always culture-invariant.
type RegexOptions struct {
	IgnoreCase              bool `json:"ignore_case,omitempty" koanf:"ignore_case"`
	Multiline               bool `json:"multiline,omitempty" koanf:"multiline"`
	Singleline              bool `json:"singleline,omitempty" koanf:"singleline"`
	IgnorePatternWhitespace bool `json:"ignore_pattern_whitespace,omitempty" koanf:"ignore_pattern_whitespace"`
	ExplicitCapture         bool `json:"explicit_capture,omitempty" koanf:"explicit_capture"`
	CultureInvariant        bool `json:"culture_invariant,omitempty" koanf:"culture_invariant"`
}

// String renders the set flags in a stable order, e.g. "i,m".
func (o RegexOptions) String() string {
	flags := make([]string, 0, 6)
	for _, f := range []struct {
		on   bool
		name string
	}{
		{o.IgnoreCase, "i"},
		{o.Multiline, "m"},
		{o.Singleline, "s"},
		{o.IgnorePatternWhitespace, "x"},
		{o.ExplicitCapture, "n"},
		{o.CultureInvariant, "c"},
	} {
		if f.on {
			flags = append(flags, f.name)
		}
	}
	return strings.Join(flags, ",")
}

// Clone returns a deep copy so that snapshot consumers never share slices with the caller.
func (r ForwardingRule) Clone() ForwardingRule {
	c := r
	c.TargetChannelIDs = slices.Clone(r.TargetChannelIDs)
	c.EditOptions.TextReplacements = slices.Clone(r.EditOptions.TextReplacements)
	c.FilterOptions.AllowedMessageTypes = slices.Clone(r.FilterOptions.AllowedMessageTypes)
	c.FilterOptions.AllowedMimeTypes = slices.Clone(r.FilterOptions.AllowedMimeTypes)
	c.FilterOptions.AllowedSenderUserIDs = slices.Clone(r.FilterOptions.AllowedSenderUserIDs)
	c.FilterOptions.BlockedSenderUserIDs = slices.Clone(r.FilterOptions.BlockedSenderUserIDs)
	c.FilterOptions.MinMessageLength = clonePtr(r.FilterOptions.MinMessageLength)
	c.FilterOptions.MaxMessageLength = clonePtr(r.FilterOptions.MaxMessageLength)
	return c
}

// Summary is a short human readable description used by operator commands
func (r ForwardingRule) Summary() string {
	targets := make([]string, len(r.TargetChannelIDs))
	for i, id := range r.TargetChannelIDs {
		targets[i] = strconv.FormatInt(id, 10)
	}
	return strconv.FormatInt(r.SourceChannelID, 10) + " -> " + strings.Join(targets, ", ")
}

func clonePtr[T any](p *T) *T {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}
