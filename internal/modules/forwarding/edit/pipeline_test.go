package edit

import (
	"strings"
	"testing"
	"time"

	messageDomain "github.com/reshetovitsme/tg-forwarder/internal/modules/message/domain"
	ruleDomain "github.com/reshetovitsme/tg-forwarder/internal/modules/rule/domain"
	"github.com/reshetovitsme/tg-forwarder/internal/shared/htmltext"
	"github.com/reshetovitsme/tg-forwarder/internal/shared/regexcache"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newPipeline(t *testing.T, limits Limits) *Pipeline {
	t.Helper()
	cache, err := regexcache.New(regexcache.Options{})
	require.NoError(t, err)
	return New(cache, limits, nil)
}

func textMessage(text string) messageDomain.InboundMessage {
	return messageDomain.InboundMessage{
		ChatID:    100,
		MessageID: 7,
		Type:      messageDomain.MessageTypeText,
		Text:      text,
		Length:    len([]rune(text)),
	}
}

func photoMessage(caption, html string) messageDomain.InboundMessage {
	return messageDomain.InboundMessage{
		ChatID:          100,
		MessageID:       8,
		Type:            messageDomain.MessageTypePhoto,
		MimeType:        "image/jpeg",
		Text:            caption,
		HTML:            html,
		Media:           &messageDomain.Media{Type: messageDomain.MessageTypePhoto, FileID: "file-1"},
		AuthorSignature: "Alice",
		ForwardOrigin:   &messageDomain.ForwardOrigin{Type: "channel", Name: "Upstream", ChatID: -1001},
	}
}

func TestTransform_NoOptionsKeepsContent(t *testing.T) {
	p := newPipeline(t, Limits{})
	msg := photoMessage("Hello world", "<b>Hello</b> world")

	out := p.Transform(msg, ruleDomain.EditOptions{})

	assert.Equal(t, "<b>Hello</b> world", out.Text)
	assert.Equal(t, int64(100), out.SourceChatID)
	assert.Equal(t, 8, out.SourceMessageID)
	assert.Equal(t, messageDomain.MessageTypePhoto, out.Type)
	assert.Equal(t, "Alice", out.AuthorSignature)
	require.NotNil(t, out.ForwardOrigin)
	require.NotNil(t, out.Media)
	assert.Equal(t, "file-1", out.Media.FileID)
	assert.False(t, out.ProtectContent)
	assert.False(t, out.Truncated)
}

func TestTransform_PlainTextIsEscaped(t *testing.T) {
	p := newPipeline(t, Limits{})
	out := p.Transform(textMessage("a < b & c"), ruleDomain.EditOptions{})
	assert.Equal(t, "a &lt; b &amp; c", out.Text)
}

func TestTransform_PrependScenario(t *testing.T) {
	p := newPipeline(t, Limits{})
	out := p.Transform(textMessage("Hello"), ruleDomain.EditOptions{PrependText: "NEW: "})
	assert.Equal(t, "NEW: Hello", out.Text)
}

func TestTransform_Separators(t *testing.T) {
	p := newPipeline(t, Limits{})

	out := p.Transform(textMessage("Body"), ruleDomain.EditOptions{
		PrependText:  "Header",
		AppendText:   "Tail",
		CustomFooter: "Footer",
	})
	assert.Equal(t, "Header\nBody\nTail\n\nFooter", out.Text)

	out = p.Transform(textMessage(""), ruleDomain.EditOptions{AppendText: "Tail", CustomFooter: "Footer"})
	assert.Equal(t, "Tail\n\nFooter", out.Text)
}

func TestTransform_ReplacementsApplySequentially(t *testing.T) {
	p := newPipeline(t, Limits{})
	opts := ruleDomain.EditOptions{
		TextReplacements: []ruleDomain.TextReplacement{
			{Find: "a", ReplaceWith: "b"},
			{Find: "b", ReplaceWith: "c"},
		},
	}
	out := p.Transform(textMessage("a"), opts)
	assert.Equal(t, "c", out.Text)
}

func TestTransform_RegexReplacementWithBackReference(t *testing.T) {
	p := newPipeline(t, Limits{})
	opts := ruleDomain.EditOptions{
		TextReplacements: []ruleDomain.TextReplacement{
			{Find: `(?<coin>[A-Z]{3,4})/USDT`, ReplaceWith: "#${coin}", IsRegex: true},
			{Find: `target:\s*(\d+)`, ReplaceWith: "TP $1", IsRegex: true, RegexOptions: ruleDomain.RegexOptions{IgnoreCase: true}},
		},
	}
	out := p.Transform(textMessage("BTC/USDT Target: 70000"), opts)
	assert.Equal(t, "#BTC TP 70000", out.Text)
}

func TestTransform_InvalidReplacementSkipped(t *testing.T) {
	p := newPipeline(t, Limits{})
	opts := ruleDomain.EditOptions{
		TextReplacements: []ruleDomain.TextReplacement{
			{Find: "spam", ReplaceWith: "ham"},
			{Find: "(unclosed", ReplaceWith: "x", IsRegex: true},
			{Find: "ham", ReplaceWith: "eggs"},
		},
	}
	out := p.Transform(textMessage("spam and (unclosed"), opts)
	assert.Equal(t, "eggs and (unclosed", out.Text)
}

func TestTransform_TimedOutReplacementSkipped(t *testing.T) {
	cache, err := regexcache.New(regexcache.Options{MatchTimeout: time.Millisecond})
	require.NoError(t, err)
	p := New(cache, Limits{}, nil)

	text := strings.Repeat("a", 40) + "!"
	opts := ruleDomain.EditOptions{
		TextReplacements: []ruleDomain.TextReplacement{
			{Find: `^(a+)+$`, ReplaceWith: "boom", IsRegex: true},
			{Find: "!", ReplaceWith: "?"},
		},
	}
	out := p.Transform(textMessage(text), opts)
	assert.Equal(t, strings.Repeat("a", 40)+"?", out.Text)
}

func TestTransform_ReplacementDoesNotTouchTags(t *testing.T) {
	p := newPipeline(t, Limits{})
	msg := textMessage("b bold")
	msg.HTML = "<b>b</b> bold"

	out := p.Transform(msg, ruleDomain.EditOptions{
		TextReplacements: []ruleDomain.TextReplacement{{Find: "b", ReplaceWith: "B"}},
	})
	assert.Equal(t, "<b>B</b> Bold", out.Text)
}

func TestTransform_LiteralReplacementAcrossFormatting(t *testing.T) {
	p := newPipeline(t, Limits{})
	msg := textMessage("Hello, Hello")
	msg.HTML = "<b>Hel</b>lo, <i>He</i><u>llo</u>"

	out := p.Transform(msg, ruleDomain.EditOptions{
		TextReplacements: []ruleDomain.TextReplacement{{Find: "Hello", ReplaceWith: "Bye"}},
	})
	assert.Equal(t, "<b>Bye</b>, <i>Bye</i><u></u>", out.Text)
}

func TestTransform_RegexAnchorsSeeWholeText(t *testing.T) {
	p := newPipeline(t, Limits{})
	msg := textMessage("ab")
	msg.HTML = "<b>a</b>b"

	out := p.Transform(msg, ruleDomain.EditOptions{
		TextReplacements: []ruleDomain.TextReplacement{
			{Find: `^b`, ReplaceWith: "X", IsRegex: true},
			{Find: `a$`, ReplaceWith: "Y", IsRegex: true},
		},
	})
	assert.Equal(t, "<b>a</b>b", out.Text)

	out = p.Transform(msg, ruleDomain.EditOptions{
		TextReplacements: []ruleDomain.TextReplacement{{Find: `^ab$`, ReplaceWith: "Z", IsRegex: true}},
	})
	assert.Equal(t, "<b>Z</b>", out.Text)
}

func TestTransform_RegexLookaroundAcrossFormatting(t *testing.T) {
	p := newPipeline(t, Limits{})
	msg := textMessage("BTC/USDT")
	msg.HTML = "<b>BTC</b>/USDT"

	out := p.Transform(msg, ruleDomain.EditOptions{
		TextReplacements: []ruleDomain.TextReplacement{{Find: `(?<=BTC)/USDT`, ReplaceWith: " spot", IsRegex: true}},
	})
	assert.Equal(t, "<b>BTC</b> spot", out.Text)
}

func TestTransform_StripAndDropFlags(t *testing.T) {
	p := newPipeline(t, Limits{})
	msg := photoMessage("Hello world", "<b>Hello</b> <i>world</i>")

	out := p.Transform(msg, ruleDomain.EditOptions{
		RemoveSourceForwardHeader: true,
		StripFormatting:           true,
		DropAuthor:                true,
		NoForwards:                true,
	})

	assert.Equal(t, "Hello world", out.Text)
	assert.Nil(t, out.ForwardOrigin)
	assert.Empty(t, out.AuthorSignature)
	assert.True(t, out.ProtectContent)
	require.NotNil(t, out.Media)
}

func TestTransform_DropMediaCaptions(t *testing.T) {
	p := newPipeline(t, Limits{})

	out := p.Transform(photoMessage("Caption", ""), ruleDomain.EditOptions{DropMediaCaptions: true})
	assert.Empty(t, out.Text)

	out = p.Transform(photoMessage("Caption", ""), ruleDomain.EditOptions{DropMediaCaptions: true, AppendText: "via @relay"})
	assert.Equal(t, "via @relay", out.Text)

	// a text message has no caption to drop
	out = p.Transform(textMessage("Body"), ruleDomain.EditOptions{DropMediaCaptions: true})
	assert.Equal(t, "Body", out.Text)
}

func TestTransform_RemoveLinks(t *testing.T) {
	p := newPipeline(t, Limits{})
	msg := textMessage("Chart here: https://example.com/chart")
	msg.HTML = `<a href="https://example.com">Chart</a> here: https://example.com/chart`

	out := p.Transform(msg, ruleDomain.EditOptions{RemoveLinks: true})
	assert.Equal(t, "Chart here:", out.Text)
	assert.True(t, out.DisableLinkPreview)
}

func TestTransform_StepOrderLinksBeforeReplacements(t *testing.T) {
	p := newPipeline(t, Limits{})
	out := p.Transform(textMessage("see https://example.com"), ruleDomain.EditOptions{
		RemoveLinks: true,
		TextReplacements: []ruleDomain.TextReplacement{
			{Find: "example", ReplaceWith: "EXAMPLE"},
		},
		PrependText: "[relay]",
	})
	assert.Equal(t, "[relay]\nsee", out.Text)
}

func TestTransform_Truncation(t *testing.T) {
	p := newPipeline(t, Limits{MaxTextLength: 10, MaxCaptionLength: 5})

	out := p.Transform(textMessage("0123456789abc"), ruleDomain.EditOptions{})
	assert.True(t, out.Truncated)
	assert.Equal(t, "012345678…", out.Text)
	assert.Equal(t, 10, htmltext.VisibleLength(out.Text))

	out = p.Transform(photoMessage("caption text", ""), ruleDomain.EditOptions{})
	assert.True(t, out.Truncated)
	assert.Equal(t, "capt…", out.Text)

	out = p.Transform(textMessage("short"), ruleDomain.EditOptions{})
	assert.False(t, out.Truncated)
}

func TestTransform_IsPure(t *testing.T) {
	p := newPipeline(t, Limits{})
	msg := photoMessage("Hello https://example.com", "<b>Hello</b> https://example.com")
	opts := ruleDomain.EditOptions{
		PrependText:               "NEW:",
		CustomFooter:              "footer",
		RemoveSourceForwardHeader: true,
		RemoveLinks:               true,
		DropAuthor:                true,
		TextReplacements: []ruleDomain.TextReplacement{
			{Find: `H(e)llo`, ReplaceWith: "J$1llo", IsRegex: true},
		},
	}
	before := msg
	originBefore := *msg.ForwardOrigin

	first := p.Transform(msg, opts)
	second := p.Transform(msg, opts)

	assert.Equal(t, first, second)
	assert.Equal(t, before, msg)
	assert.Equal(t, originBefore, *msg.ForwardOrigin)
	assert.Equal(t, "Alice", msg.AuthorSignature)

	out := p.Transform(msg, ruleDomain.EditOptions{})
	out.Media.FileID = "changed"
	assert.Equal(t, "file-1", msg.Media.FileID)
}
