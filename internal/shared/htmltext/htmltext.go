// Package htmltext works on message text in Telegram's HTML dialect: escaping, stripping
// formatting, removing links, measuring and truncating by visible characters.
package htmltext

import (
	"regexp"
	"strings"
	"unicode/utf16"

	"github.com/microcosm-cc/bluemonday"
	"golang.org/x/net/html"
)

const (
	Ellipsis = "…"

	blanks = " \t"
)

var (
	plainPolicy = bluemonday.StrictPolicy()
	noLinks     = newNoLinksPolicy()

	bareURL = regexp.MustCompile(`(?i)\b(?:https?://|tg://|www\.|t\.me/)[^\s<>"]+`)

	escaper = strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;")
)

// newNoLinksPolicy keeps every formatting element Telegram understands except <a>.
func newNoLinksPolicy() *bluemonday.Policy {
	p := bluemonday.NewPolicy()
	p.AllowElements("b", "strong", "i", "em", "u", "ins", "s", "strike", "del",
		"code", "pre", "blockquote", "tg-spoiler", "tg-emoji", "span")
	p.AllowAttrs("class").Matching(regexp.MustCompile(`^tg-spoiler$`)).OnElements("span")
	p.AllowAttrs("class").Matching(regexp.MustCompile(`^language-[\w+#.-]+$`)).OnElements("code")
	p.AllowAttrs("emoji-id").Matching(regexp.MustCompile(`^\d+$`)).OnElements("tg-emoji")
	p.AllowAttrs("expandable").OnElements("blockquote")
	return p
}

// Escape escapes the three characters Telegram requires in HTML text.
func Escape(s string) string {
	return escaper.Replace(s)
}

// Strip removes every tag, leaving escaped plain text.
func Strip(s string) string {
	return plainPolicy.Sanitize(s)
}

// RemoveLinks unwraps <a> elements and deletes bare URLs from the text. Spacing is
// tidied only where a URL was cut out. Content of <pre> and <code> is left as is.
func RemoveLinks(s string) string {
	s = noLinks.Sanitize(s)

	var (
		b        strings.Builder
		verbatim int
		removed  bool
	)
	b.Grow(len(s))

	z := html.NewTokenizer(strings.NewReader(s))
	for {
		switch z.Next() {
		case html.ErrorToken:
			if removed {
				return strings.TrimSpace(b.String())
			}
			return b.String()
		case html.TextToken:
			text := string(z.Text())
			if verbatim == 0 {
				var cut bool
				text, cut = removeURLs(text)
				removed = removed || cut
			}
			b.WriteString(Escape(text))
		case html.StartTagToken:
			if isVerbatim(z) {
				verbatim++
			}
			b.Write(z.Raw())
		case html.EndTagToken:
			if isVerbatim(z) && verbatim > 0 {
				verbatim--
			}
			b.Write(z.Raw())
		default:
			b.Write(z.Raw())
		}
	}
}

func isVerbatim(z *html.Tokenizer) bool {
	name, _ := z.TagName()
	return string(name) == "pre" || string(name) == "code"
}

// removeURLs drops every bare URL in text and collapses the blanks around each cut
// into at most one space.
func removeURLs(text string) (string, bool) {
	spans := bareURL.FindAllStringIndex(text, -1)
	if len(spans) == 0 {
		return text, false
	}

	var b strings.Builder
	pos := 0
	for _, span := range spans {
		left := text[pos:span[0]]
		trimmed := strings.TrimRight(left, blanks)
		b.WriteString(trimmed)

		rest := text[span[1]:]
		next := strings.TrimLeft(rest, blanks)
		pos = len(text) - len(next)

		hadBlank := len(trimmed) < len(left) || len(next) < len(rest)
		if hadBlank && b.Len() > 0 && next != "" &&
			!strings.HasSuffix(b.String(), "\n") && !strings.HasPrefix(next, "\n") &&
			!startsWithURL(next) {
			b.WriteByte(' ')
		}
	}
	b.WriteString(text[pos:])
	return b.String(), true
}

func startsWithURL(s string) bool {
	loc := bareURL.FindStringIndex(s)
	return loc != nil && loc[0] == 0
}

// Replacement substitutes the visible characters [Start, End) of a text, counted in
// runes of Plain, with Text.
type Replacement struct {
	Start int
	End   int
	Text  string
}

// Splice applies reps, sorted and non-overlapping, to the visible text of s. A
// replacement that spans several text nodes is written into the first of them and
// the rest of the matched characters are removed, so tags stay balanced.
func Splice(s string, reps []Replacement) string {
	if len(reps) == 0 {
		return s
	}

	type token struct {
		raw  []byte
		text []rune
		leaf bool
	}

	var tokens []token
	lastText := -1
	z := html.NewTokenizer(strings.NewReader(s))
	for tt := z.Next(); tt != html.ErrorToken; tt = z.Next() {
		if tt == html.TextToken {
			lastText = len(tokens)
			tokens = append(tokens, token{text: []rune(string(z.Text())), leaf: true})
			continue
		}
		tokens = append(tokens, token{raw: append([]byte(nil), z.Raw()...)})
	}

	var b strings.Builder
	b.Grow(len(s))

	offset, next := 0, 0
	for i, t := range tokens {
		if !t.leaf {
			b.Write(t.raw)
			continue
		}

		start, end := offset, offset+len(t.text)
		pos := start
		for next < len(reps) {
			r := reps[next]
			owns := r.Start >= start && (r.Start < end || i == lastText)
			if r.Start >= start && !owns {
				break
			}
			if owns {
				if r.Start > pos {
					b.WriteString(Escape(string(t.text[pos-start : min(r.Start, end)-start])))
				}
				b.WriteString(Escape(r.Text))
			}
			if r.End > end {
				pos = end
				break
			}
			pos = max(pos, r.End)
			next++
		}
		if pos < end {
			b.WriteString(Escape(string(t.text[pos-start:])))
		}
		offset = end
	}

	return b.String()
}

// Plain returns the decoded text content of s.
func Plain(s string) string {
	var b strings.Builder

	z := html.NewTokenizer(strings.NewReader(s))
	for {
		switch z.Next() {
		case html.ErrorToken:
			return b.String()
		case html.TextToken:
			b.Write(z.Text())
		}
	}
}

// VisibleLength counts the characters a reader sees the way Telegram limits them:
// UTF-16 code units outside tags, entities decoded.
func VisibleLength(s string) int {
	return unitLen(Plain(s))
}

func unitLen(s string) int {
	n := 0
	for _, r := range s {
		n += utf16.RuneLen(r)
	}
	return n
}

// Truncate shortens s to max visible characters as counted by VisibleLength. The kept
// prefix has at most max-1 characters followed by Ellipsis, and tags left open by the
// cut are closed. A surrogate pair is never split.
func Truncate(s string, max int) (string, bool) {
	if VisibleLength(s) <= max {
		return s, false
	}

	keep := max - 1
	if keep < 0 {
		keep = 0
	}

	var (
		b    strings.Builder
		open []string
	)
	z := html.NewTokenizer(strings.NewReader(s))

loop:
	for keep > 0 {
		switch z.Next() {
		case html.ErrorToken:
			break loop
		case html.TextToken:
			text := string(z.Text())
			cut := len(text)
			for i, r := range text {
				n := utf16.RuneLen(r)
				if n > keep {
					cut = i
					keep = 0
					break
				}
				keep -= n
			}
			b.WriteString(Escape(text[:cut]))
		case html.StartTagToken:
			name, _ := z.TagName()
			open = append(open, string(name))
			b.Write(z.Raw())
		case html.EndTagToken:
			name, _ := z.TagName()
			for i := len(open) - 1; i >= 0; i-- {
				if open[i] == string(name) {
					open = open[:i]
					break
				}
			}
			b.Write(z.Raw())
		default:
			b.Write(z.Raw())
		}
	}

	b.WriteString(Ellipsis)
	for i := len(open) - 1; i >= 0; i-- {
		b.WriteString("</" + open[i] + ">")
	}

	return b.String(), true
}
