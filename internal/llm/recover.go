package llm

import (
	"encoding/json"
	"regexp"
	"sort"
	"strings"

	"github.com/factura-ai/invoice-extractor/internal/common"
)

var (
	reFencedJSON    = regexp.MustCompile("```(?:json)?\\s*(\\{[\\s\\S]*?\\})\\s*```")
	reTrailingComma = regexp.MustCompile(`,\s*([}\]])`)
)

// RecoverJSON extracts exactly one JSON object from arbitrary model output.
// Ordered attempts, first success wins:
//
//  1. the whole trimmed text,
//  2. the contents of a triple-backtick fenced block,
//  3. every balanced `{...}` span found in the text, longest first.
//
// Each attempt also retries after stripping trailing commas before a closing
// brace or bracket, a common model artifact. This is a recovery heuristic for
// known model failure modes, not a general parser.
func RecoverJSON(text string) (json.RawMessage, error) {
	var candidates []string

	if trimmed := strings.TrimSpace(text); trimmed != "" {
		candidates = append(candidates, trimmed)
	}
	if m := reFencedJSON.FindStringSubmatch(text); m != nil {
		candidates = append(candidates, m[1])
	}
	spans := scanObjects(text)
	sort.SliceStable(spans, func(i, j int) bool { return len(spans[i]) > len(spans[j]) })
	candidates = append(candidates, spans...)

	for _, c := range candidates {
		if obj, ok := tryParseObject(c); ok {
			return obj, nil
		}
		if obj, ok := tryParseObject(stripTrailingCommas(c)); ok {
			return obj, nil
		}
	}

	return nil, &common.AppError{
		Kind:    common.ErrResponseUnparseable,
		Message: "no recoverable JSON object in model response",
		Cause:   &RawResponseError{Text: text},
	}
}

// RawResponseError preserves the original model text for operator diagnostics.
// It is logged, never returned to end callers.
type RawResponseError struct {
	Text string
}

func (e *RawResponseError) Error() string {
	return "raw model response: " + e.Text
}

// scanObjects returns every balanced top-level `{...}` span in the text.
// Brace depth is tracked outside string literals so braces inside values do
// not open or close a span.
func scanObjects(text string) []string {
	var spans []string
	for i := 0; i < len(text); i++ {
		if text[i] != '{' {
			continue
		}
		end := matchBrace(text, i)
		if end < 0 {
			continue
		}
		spans = append(spans, text[i:end+1])
		i = end
	}
	return spans
}

// matchBrace returns the index of the brace closing the one at start, or -1
// when the span never closes.
func matchBrace(text string, start int) int {
	depth := 0
	inString := false
	escaped := false
	for j := start; j < len(text); j++ {
		c := text[j]
		switch {
		case escaped:
			escaped = false
		case inString && c == '\\':
			escaped = true
		case c == '"':
			inString = !inString
		case inString:
		case c == '{':
			depth++
		case c == '}':
			depth--
			if depth == 0 {
				return j
			}
		}
	}
	return -1
}

func stripTrailingCommas(s string) string {
	return reTrailingComma.ReplaceAllString(s, "$1")
}

func tryParseObject(s string) (json.RawMessage, bool) {
	var m map[string]any
	if err := json.Unmarshal([]byte(s), &m); err != nil {
		return nil, false
	}
	return json.RawMessage(s), true
}
