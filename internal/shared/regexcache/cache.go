// Package regexcache compiles and memoizes regular expressions keyed by pattern and options.
package regexcache

import (
	"log/slog"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/dlclark/regexp2"
	lru "github.com/hashicorp/golang-lru/v2"
	ruleDomain "github.com/reshetovitsme/tg-forwarder/internal/modules/rule/domain"
	"github.com/reshetovitsme/tg-forwarder/internal/shared/errors"
	"github.com/samber/oops"
	"golang.org/x/sync/singleflight"
)

const (
	DefaultSize             = 256
	DefaultMatchTimeout     = 100 * time.Millisecond
	DefaultMaxPatternLength = 500
)

type Options struct {
	Size             int
	MatchTimeout     time.Duration
	MaxPatternLength int
	Logger           *slog.Logger
}

// entry is either a compiled regex or the error that compiling it produced.
// Invalid patterns are cached too so they are never recompiled.
type entry struct {
	re  *regexp2.Regexp
	err error
}

// Cache is safe for concurrent use. Concurrent misses on the same key compile once.
type Cache struct {
	entries      *lru.Cache[string, entry]
	group        singleflight.Group
	matchTimeout time.Duration
	maxLength    int
	logger       *slog.Logger
}

func New(opts Options) (*Cache, error) {
	if opts.Size <= 0 {
		opts.Size = DefaultSize
	}
	if opts.MatchTimeout <= 0 {
		opts.MatchTimeout = DefaultMatchTimeout
	}
	if opts.MaxPatternLength <= 0 {
		opts.MaxPatternLength = DefaultMaxPatternLength
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	entries, err := lru.New[string, entry](opts.Size)
	if err != nil {
		return nil, oops.With("size", opts.Size).Wrap(err)
	}

	return &Cache{
		entries:      entries,
		matchTimeout: opts.MatchTimeout,
		maxLength:    opts.MaxPatternLength,
		logger:       opts.Logger.With("component", "regex-cache"),
	}, nil
}

// Get returns the compiled regex for pattern and opts. A pattern that failed to compile
// yields an error wrapping ErrInvalidPattern on this and every later call.
func (c *Cache) Get(pattern string, opts ruleDomain.RegexOptions) (*regexp2.Regexp, error) {
	key := cacheKey(pattern, opts)

	if e, ok := c.entries.Get(key); ok {
		return e.re, e.err
	}

	v, _, _ := c.group.Do(key, func() (any, error) {
		if e, ok := c.entries.Get(key); ok {
			return e, nil
		}
		e := c.compile(pattern, opts)
		c.entries.Add(key, e)
		return e, nil
	})

	e := v.(entry)
	return e.re, e.err
}

// MatchTimeout is the per-match limit applied to every compiled regex.
func (c *Cache) MatchTimeout() time.Duration {
	return c.matchTimeout
}

func (c *Cache) Len() int {
	return c.entries.Len()
}

func (c *Cache) Purge() {
	c.entries.Purge()
}

func (c *Cache) compile(pattern string, opts ruleDomain.RegexOptions) entry {
	if len(pattern) > c.maxLength {
		c.logger.Warn("regex pattern rejected", "length", len(pattern), "max_length", c.maxLength)
		return entry{err: oops.
			With("length", len(pattern), "max_length", c.maxLength).
			Wrapf(errors.ErrInvalidPattern, "pattern too long")}
	}

	re, err := regexp2.Compile(pattern, toRegexp2Options(opts))
	if err != nil {
		c.logger.Warn("regex pattern failed to compile", "pattern", pattern, "options", opts.String(), "error", err)
		return entry{err: oops.
			With("pattern", pattern, "options", opts.String(), "cause", err.Error()).
			Wrapf(errors.ErrInvalidPattern, "compile %q", pattern)}
	}
	re.MatchTimeout = c.matchTimeout

	return entry{re: re}
}

func cacheKey(pattern string, opts ruleDomain.RegexOptions) string {
	return opts.String() + "\x00" + pattern
}

// CultureInvariant has no regexp2 counterpart, its case folding is already invariant.
func toRegexp2Options(opts ruleDomain.RegexOptions) regexp2.RegexOptions {
	var o regexp2.RegexOptions
	if opts.IgnoreCase {
		o |= regexp2.IgnoreCase
	}
	if opts.Multiline {
		o |= regexp2.Multiline
	}
	if opts.Singleline {
		o |= regexp2.Singleline
	}
	if opts.IgnorePatternWhitespace {
		o |= regexp2.IgnorePatternWhitespace
	}
	if opts.ExplicitCapture {
		o |= regexp2.ExplicitCapture
	}
	return o
}

// MatchString runs re against s. A match error from regexp2 is always a timeout.
func MatchString(re *regexp2.Regexp, s string) (bool, error) {
	ok, err := re.MatchString(s)
	if err != nil {
		return false, oops.With("pattern", re.String(), "cause", err.Error()).Wrap(errors.ErrPatternTimeout)
	}
	return ok, nil
}

// Replacement is one match of a pattern, in rune offsets of the searched text,
// together with its expanded replacement.
type Replacement struct {
	Start int
	End   int
	Text  string
}

// FindReplacements returns every match of re in s in text order. The template
// supports $1, ${name}, $& and $$.
func FindReplacements(re *regexp2.Regexp, s, template string) ([]Replacement, error) {
	var out []Replacement

	m, err := re.FindStringMatch(s)
	for ; m != nil && err == nil; m, err = re.FindNextMatch(m) {
		out = append(out, Replacement{
			Start: m.Index,
			End:   m.Index + m.Length,
			Text:  expand(m, template),
		})
	}
	if err != nil {
		return nil, oops.With("pattern", re.String(), "cause", err.Error()).Wrap(errors.ErrPatternTimeout)
	}

	slices.SortFunc(out, func(a, b Replacement) int { return a.Start - b.Start })
	return out, nil
}

func expand(m *regexp2.Match, template string) string {
	if !strings.Contains(template, "$") {
		return template
	}

	var b strings.Builder
	for i := 0; i < len(template); i++ {
		c := template[i]
		if c != '$' || i+1 == len(template) {
			b.WriteByte(c)
			continue
		}

		next := template[i+1]
		switch {
		case next == '$':
			b.WriteByte('$')
			i++
		case next == '&':
			b.WriteString(m.String())
			i++
		case next == '{':
			end := strings.IndexByte(template[i+2:], '}')
			if end < 0 {
				b.WriteByte(c)
				continue
			}
			name := template[i+2 : i+2+end]
			group := m.GroupByName(name)
			if n, err := strconv.Atoi(name); err == nil {
				group = m.GroupByNumber(n)
			}
			if group == nil {
				b.WriteByte(c)
				continue
			}
			b.WriteString(group.String())
			i += end + 2
		case next >= '0' && next <= '9':
			j := i + 1
			for j < len(template) && template[j] >= '0' && template[j] <= '9' {
				j++
			}
			n, _ := strconv.Atoi(template[i+1 : j])
			group := m.GroupByNumber(n)
			if group == nil {
				b.WriteByte(c)
				continue
			}
			b.WriteString(group.String())
			i = j - 1
		default:
			b.WriteByte(c)
		}
	}
	return b.String()
}
