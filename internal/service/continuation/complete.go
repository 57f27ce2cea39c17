package continuation

import "strings"

// markupLanguages are judged by their closing root tag rather than bracket
// balance, since tags carry no brace structure.
var markupClosers = map[string]string{
	"html": "</html>",
	"svg":  "</svg>",
	"xml":  ">",
}

// IsComplete applies a cheap structural heuristic to decide whether generated
// content looks finished. It errs on the side of complete: a false positive
// costs one missing continuation, a false negative costs a wasted model call.
func IsComplete(content, language string) bool {
	content = strings.TrimSpace(content)
	if content == "" {
		return false
	}

	lang := strings.ToLower(strings.TrimSpace(language))
	if closer, ok := markupClosers[lang]; ok {
		return strings.HasSuffix(content, closer)
	}

	// Prose (canvas documents) is full of apostrophes and stray brackets, so
	// the only reliable truncation signal there is an unclosed code fence.
	if lang == "" || lang == "markdown" || lang == "md" || lang == "text" {
		return strings.Count(content, "```")%2 == 0
	}

	return balanced(content)
}

// balanced reports whether braces, brackets and parens close out, skipping
// over string literals and line comments where stray brackets are legal.
func balanced(content string) bool {
	var depth int
	var inString, inChar, escaped, inLineComment bool

	for i := 0; i < len(content); i++ {
		c := content[i]

		if inLineComment {
			if c == '\n' {
				inLineComment = false
			}
			continue
		}
		if inString || inChar {
			if escaped {
				escaped = false
			} else if c == '\\' {
				escaped = true
			} else if (inString && c == '"') || (inChar && c == '\'') {
				inString, inChar = false, false
			}
			continue
		}

		switch c {
		case '"':
			inString = true
		case '\'':
			inChar = true
		case '/':
			if i+1 < len(content) && content[i+1] == '/' {
				inLineComment = true
			}
		case '#':
			inLineComment = true
		case '{', '[', '(':
			depth++
		case '}', ']', ')':
			depth--
		}
	}

	// An unterminated string means the output stopped mid-literal.
	return depth <= 0 && !inString && !inChar
}
