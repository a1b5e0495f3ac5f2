// Package edit turns an inbound message into the outbound message of one rule.
package edit

import (
	"log/slog"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/dlclark/regexp2"
	messageDomain "github.com/reshetovitsme/tg-forwarder/internal/modules/message/domain"
	ruleDomain "github.com/reshetovitsme/tg-forwarder/internal/modules/rule/domain"
	"github.com/reshetovitsme/tg-forwarder/internal/shared/htmltext"
	"github.com/reshetovitsme/tg-forwarder/internal/shared/regexcache"
)

const (
	// Telegram Bot API limits, in characters.
	DefaultMaxTextLength    = 4096
	DefaultMaxCaptionLength = 1024

	lineSeparator   = "\n"
	footerSeparator = "\n\n"
)

type Limits struct {
	MaxTextLength    int
	MaxCaptionLength int
}

// RegexProvider hands out compiled patterns, typically a *regexcache.Cache.
type RegexProvider interface {
	Get(pattern string, opts ruleDomain.RegexOptions) (*regexp2.Regexp, error)
}

// Pipeline holds only read-only collaborators; Transform has no side effects besides logging.
type Pipeline struct {
	regexes RegexProvider
	limits  Limits
	logger  *slog.Logger
}

func New(regexes RegexProvider, limits Limits, logger *slog.Logger) *Pipeline {
	if limits.MaxTextLength <= 0 {
		limits.MaxTextLength = DefaultMaxTextLength
	}
	if limits.MaxCaptionLength <= 0 {
		limits.MaxCaptionLength = DefaultMaxCaptionLength
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{
		regexes: regexes,
		limits:  limits,
		logger:  logger.With("component", "edit-pipeline"),
	}
}

// Transform applies opts to msg in a fixed order:
// forward header, formatting, author, caption, links, replacements, prepend, append, footer, protection.
// Text is handled as Telegram HTML throughout. msg is never modified.
func (p *Pipeline) Transform(msg messageDomain.InboundMessage, opts ruleDomain.EditOptions) messageDomain.OutboundMessage {
	out := messageDomain.OutboundMessage{
		SourceChatID:    msg.ChatID,
		SourceMessageID: msg.MessageID,
		Type:            msg.Type,
		Text:            msg.FormattedText(),
		AuthorSignature: msg.AuthorSignature,
	}
	if msg.Media != nil {
		media := *msg.Media
		out.Media = &media
	}
	if msg.ForwardOrigin != nil {
		origin := *msg.ForwardOrigin
		out.ForwardOrigin = &origin
	}

	if opts.RemoveSourceForwardHeader {
		out.ForwardOrigin = nil
	}
	if opts.StripFormatting {
		out.Text = htmltext.Strip(out.Text)
	}
	if opts.DropAuthor {
		out.AuthorSignature = ""
	}
	if opts.DropMediaCaptions && msg.HasMedia() {
		out.Text = ""
	}
	if opts.RemoveLinks {
		out.Text = htmltext.RemoveLinks(out.Text)
		out.DisableLinkPreview = true
	}

	for i, rep := range opts.TextReplacements {
		out.Text = p.replace(out.Text, i, rep)
	}

	if opts.PrependText != "" {
		out.Text = join(opts.PrependText, out.Text, lineSeparator)
	}
	if opts.AppendText != "" {
		out.Text = join(out.Text, opts.AppendText, lineSeparator)
	}
	if opts.CustomFooter != "" {
		out.Text = join(out.Text, opts.CustomFooter, footerSeparator)
	}

	out.ProtectContent = opts.NoForwards

	limit := p.limits.MaxTextLength
	if msg.HasMedia() {
		limit = p.limits.MaxCaptionLength
	}
	if text, truncated := htmltext.Truncate(out.Text, limit); truncated {
		p.logger.Warn("outbound text truncated",
			"chat_id", msg.ChatID,
			"message_id", msg.MessageID,
			"limit", limit,
		)
		out.Text = text
		out.Truncated = true
	}

	return out
}

// replace runs one replacement over the visible text of html, so matches and anchors
// see the message as the reader does regardless of formatting tags. A pattern that
// cannot be compiled or times out leaves html unchanged.
func (p *Pipeline) replace(html string, index int, rep ruleDomain.TextReplacement) string {
	if rep.Find == "" {
		return html
	}

	plain := htmltext.Plain(html)

	if !rep.IsRegex {
		return htmltext.Splice(html, literalMatches(plain, rep.Find, rep.ReplaceWith))
	}

	re, err := p.regexes.Get(rep.Find, rep.RegexOptions)
	if err != nil {
		p.logger.Warn("text replacement skipped", "index", index, "pattern", rep.Find, "error", err)
		return html
	}

	found, err := regexcache.FindReplacements(re, plain, rep.ReplaceWith)
	if err != nil {
		p.logger.Warn("text replacement skipped", "index", index, "pattern", rep.Find, "error", err)
		return html
	}

	reps := make([]htmltext.Replacement, len(found))
	for i, f := range found {
		reps[i] = htmltext.Replacement{Start: f.Start, End: f.End, Text: f.Text}
	}
	return htmltext.Splice(html, reps)
}

// literalMatches finds every non-overlapping occurrence of find in plain, in rune offsets.
func literalMatches(plain, find, replaceWith string) []htmltext.Replacement {
	var (
		reps   []htmltext.Replacement
		runes  int
		offset int
	)
	findLen := utf8.RuneCountInString(find)

	for {
		i := strings.Index(plain[offset:], find)
		if i < 0 {
			return reps
		}
		runes += utf8.RuneCountInString(plain[offset : offset+i])
		reps = append(reps, htmltext.Replacement{Start: runes, End: runes + findLen, Text: replaceWith})
		runes += findLen
		offset += i + len(find)
	}
}

// join concatenates a and b with sep unless either side is empty or the boundary
// already carries whitespace.
func join(a, b, sep string) string {
	if a == "" {
		return b
	}
	if b == "" {
		return a
	}
	last, _ := utf8.DecodeLastRuneInString(a)
	first, _ := utf8.DecodeRuneInString(b)
	if unicode.IsSpace(last) || unicode.IsSpace(first) {
		return a + b
	}
	return a + sep + b
}
