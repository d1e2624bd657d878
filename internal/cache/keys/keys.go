// Package keys builds cache keys for category fetches.
package keys

import (
	"fmt"
	"sort"
	"strings"
	"unicode"

	"github.com/cespare/xxhash/v2"
)

const maxParamTextLen = 120

// Key returns "<category>:<source>:p=<params>:h=<hash>". Params are
// serialized in sorted key order so map iteration order never matters.
func Key(category, source string, params map[string]string) string {
	text := CanonicalParams(params)
	safe := sanitize(text)
	if len(safe) > maxParamTextLen {
		safe = safe[:maxParamTextLen]
	}
	sum := xxhash.Sum64String(category + "\x00" + source + "\x00" + text)
	return fmt.Sprintf("%s%s:p=%s:h=%016x", Prefix(category), sanitize(source), safe, sum)
}

// Prefix is shared by every key of a category.
func Prefix(category string) string {
	return sanitize(strings.ToLower(strings.TrimSpace(category))) + ":"
}

// CanonicalParams serializes params as "k=v&k=v" sorted by key, with
// whitespace collapsed and keys lowercased.
func CanonicalParams(params map[string]string) string {
	if len(params) == 0 {
		return ""
	}
	ks := make([]string, 0, len(params))
	norm := make(map[string]string, len(params))
	for k, v := range params {
		nk := strings.ToLower(collapseASCIIWhitespace(k))
		if nk == "" {
			continue
		}
		ks = append(ks, nk)
		norm[nk] = collapseASCIIWhitespace(v)
	}
	sort.Strings(ks)
	var b strings.Builder
	for i, k := range ks {
		if i > 0 {
			b.WriteByte('&')
		}
		b.WriteString(k)
		b.WriteByte('=')
		b.WriteString(norm[k])
	}
	return b.String()
}

func sanitize(s string) string {
	if s == "" {
		return ""
	}
	var b strings.Builder
	b.Grow(len(s))

	var prev rune
	for _, r := range s {
		out := rune(0)
		switch {
		case r == ' ' || r == '\t' || r == '\n' || r == '\r' || r == '\v' || r == '\f':
			out = '_'
		case isAlphaNum(r) || r == '_' || r == '-' || r == '=' || r == '&' || r == '.':
			out = r
		default:
			// anything else, including ':' and non-ASCII, becomes '-'
			out = '-'
		}
		if (out == '_' || out == '-') && out == prev {
			continue
		}
		b.WriteRune(out)
		prev = out
	}
	return b.String()
}

// converts any run of ASCII whitespace to a single space.
func collapseASCIIWhitespace(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	wasWS := false
	for _, r := range s {
		if r == ' ' || r == '\t' || r == '\n' || r == '\r' || r == '\v' || r == '\f' {
			if !wasWS {
				b.WriteByte(' ')
				wasWS = true
			}
			continue
		}
		b.WriteRune(r)
		wasWS = false
	}
	return strings.TrimSpace(b.String())
}

func isAlphaNum(r rune) bool {
	return (r >= 'a' && r <= 'z') ||
		(r >= 'A' && r <= 'Z') ||
		unicode.IsDigit(r)
}
