package streaming

import (
	"regexp"
	"strconv"
	"strings"
	"unicode/utf16"
	"unicode/utf8"

	"github.com/tidwall/gjson"
)

// FieldExtractor incrementally pulls one named string field out of a
// partially-received JSON object, without waiting for the document to become
// parseable. Tool-call argument fragments are appended as they arrive; after
// each append the extractor matches a regex anchored on the field name that
// tolerates a still-unterminated string, unescapes the capture, and reports
// only the newly-appended suffix.
//
// Extracted content is monotonically non-decreasing and reported deltas never
// overlap: feeding the same buffer prefix-by-prefix and concatenating the
// deltas equals extracting the field once from the complete buffer.
type FieldExtractor struct {
	field   string
	pattern *regexp.Regexp
	buf     strings.Builder
	current string // unescaped field content seen so far
	emitted int    // bytes of current already reported as deltas
}

// NewFieldExtractor creates an extractor for the given field name
// ("content" for canvas, "code" for code mode).
func NewFieldExtractor(field string) *FieldExtractor {
	// Captures everything between the field's opening quote and either its
	// closing quote or the current end of buffer. A dangling backslash at the
	// buffer end matches neither alternative and is naturally held back until
	// its escape completes.
	pattern := regexp.MustCompile(`"` + regexp.QuoteMeta(field) + `"\s*:\s*"((?:[^"\\]|\\.)*)`)
	return &FieldExtractor{
		field:   field,
		pattern: pattern,
	}
}

// Append adds an arguments fragment and returns the newly extracted suffix of
// the field's unescaped content. Empty when the field has not started yet or
// the fragment added nothing visible.
func (e *FieldExtractor) Append(fragment string) string {
	e.buf.WriteString(fragment)

	m := e.pattern.FindStringSubmatch(e.buf.String())
	if m == nil {
		return ""
	}

	text := unescapeFragment(m[1])
	if len(text) <= len(e.current) {
		return ""
	}
	e.current = text

	delta := e.current[e.emitted:]
	e.emitted = len(e.current)
	return delta
}

// Current returns the unescaped content extracted so far.
func (e *FieldExtractor) Current() string {
	return e.current
}

// Buffer returns the raw accumulated arguments document.
func (e *FieldExtractor) Buffer() string {
	return e.buf.String()
}

// Final resolves the field from the complete buffer. It prefers a full JSON
// parse; when the gateway truncated the document mid-string it falls back to
// the partial extraction, recovering as much content as possible instead of
// discarding the generation. The second return is false when the fallback was
// used.
func (e *FieldExtractor) Final() (string, bool) {
	buf := e.buf.String()
	if gjson.Valid(buf) {
		if v := gjson.Get(buf, e.field); v.Exists() {
			return v.String(), true
		}
	}
	return e.current, false
}

// ExtractStringField does a one-shot extraction of a string field from a
// possibly-truncated JSON document. Used for secondary fields (label,
// language) that need no incremental diffing.
func ExtractStringField(doc, field string) string {
	if gjson.Valid(doc) {
		if v := gjson.Get(doc, field); v.Exists() {
			return v.String()
		}
	}
	pattern := regexp.MustCompile(`"` + regexp.QuoteMeta(field) + `"\s*:\s*"((?:[^"\\]|\\.)*)`)
	m := pattern.FindStringSubmatch(doc)
	if m == nil {
		return ""
	}
	return unescapeFragment(m[1])
}

// unescapeFragment decodes JSON string escapes in a fragment that may end
// mid-escape. An incomplete \u sequence at the tail is held back rather than
// emitted mangled.
func unescapeFragment(raw string) string {
	if !strings.ContainsRune(raw, '\\') {
		return raw
	}

	var b strings.Builder
	b.Grow(len(raw))

	for i := 0; i < len(raw); {
		c := raw[i]
		if c != '\\' {
			b.WriteByte(c)
			i++
			continue
		}
		if i+1 >= len(raw) {
			break // dangling backslash, wait for more input
		}

		switch raw[i+1] {
		case 'n':
			b.WriteByte('\n')
			i += 2
		case 't':
			b.WriteByte('\t')
			i += 2
		case 'r':
			b.WriteByte('\r')
			i += 2
		case '"':
			b.WriteByte('"')
			i += 2
		case '\\':
			b.WriteByte('\\')
			i += 2
		case '/':
			b.WriteByte('/')
			i += 2
		case 'u':
			if i+6 > len(raw) {
				return b.String() // incomplete \uXXXX, hold back
			}
			code, err := strconv.ParseUint(raw[i+2:i+6], 16, 32)
			if err != nil {
				// Not a valid escape; emit literally and move on.
				b.WriteString(raw[i : i+6])
				i += 6
				continue
			}
			r := rune(code)
			if utf16.IsSurrogate(r) {
				if i+12 > len(raw) {
					return b.String() // wait for the low surrogate
				}
				if raw[i+6] == '\\' && raw[i+7] == 'u' {
					if low, err := strconv.ParseUint(raw[i+8:i+12], 16, 32); err == nil {
						if combined := utf16.DecodeRune(r, rune(low)); combined != utf8.RuneError {
							b.WriteRune(combined)
							i += 12
							continue
						}
					}
				}
			}
			b.WriteRune(r)
			i += 6
		default:
			// Unknown escape: keep it verbatim.
			b.WriteByte(c)
			b.WriteByte(raw[i+1])
			i += 2
		}
	}

	return b.String()
}
