package translation

import (
	"fmt"
	"regexp"
	"strings"
)

// buildPrompt frames one chunk for the provider. Title and body framing
// differ: a title must come back as a single concise line, a body must keep
// its paragraph and sentence structure. Both forbid touching placeholder
// tokens, which stand in for markup removed before chunking.
func buildPrompt(req Request) string {
	target := languageLabelFor(req.TargetLang)
	if req.Title {
		return fmt.Sprintf(
			"Translate the following headline into %s. Keep it concise and return a single line with only the translated headline, no quotes and no explanation.\n\n%s",
			target, req.Text,
		)
	}
	return fmt.Sprintf(
		"Translate the following text into %s. Preserve the meaning and tone, keep sentence boundaries, keep every HTML tag exactly as written, and keep paragraph breaks. Tokens of the form ⟦F0⟧, ⟦F1⟧ and so on must be copied to the output completely unchanged. Return only the translated text, no explanation.\n\n%s",
		target, req.Text,
	)
}

var (
	horizontalWhitespaceRun = regexp.MustCompile(`[ \t]+`)
	entityReplacer          = strings.NewReplacer(
		"&nbsp;", " ",
		" ", " ",
		"&amp;", "&",
		"&quot;", `"`,
		"&#8217;", "’",
		"&#8216;", "‘",
		"&#8220;", "“",
		"&#8221;", "”",
	)
)

// prepareSourceText collapses common HTML entities and runs of horizontal
// whitespace before a chunk is sent. Newlines are kept so the provider sees
// the original paragraph boundaries.
func prepareSourceText(text string) string {
	collapsed := entityReplacer.Replace(text)
	collapsed = horizontalWhitespaceRun.ReplaceAllString(collapsed, " ")
	return strings.TrimSpace(collapsed)
}

// ensureTerminalPunctuation appends a period when the text ends without a
// sentence terminator. Providers occasionally drop trailing punctuation on
// the last sentence of a chunk.
func ensureTerminalPunctuation(text string) string {
	trimmed := strings.TrimRight(text, " \t\n")
	if trimmed == "" {
		return trimmed
	}
	switch trimmed[len(trimmed)-1] {
	case '.', '!', '?':
		return trimmed
	}
	return trimmed + "."
}
