// Package segment protects non-translatable markup inside rich HTML bodies
// and splits the remaining text into provider-sized chunks.
package segment

import (
	"fmt"
	"regexp"
	"strings"
)

// Fragment classes that must never reach the translation provider. Paired
// containers come before self-closing tags so a figure wrapping an image is
// captured as one fragment.
var structuralPattern = regexp.MustCompile(`(?is)<figure\b.*?</figure>|<video\b.*?</video>|<audio\b.*?</audio>|<iframe\b.*?</iframe>|<object\b.*?</object>|<img\b[^>]*>|<embed\b[^>]*>|<!--.*?-->`)

var tokenPattern = regexp.MustCompile(`⟦F(\d+)⟧`)

// PlaceholderMap records the fragments removed from one body, keyed by the
// placeholder token that replaced each of them. Scoped to one extraction pass.
type PlaceholderMap struct {
	tokens    []string
	fragments map[string]string
}

// Len reports the number of extracted fragments.
func (pm *PlaceholderMap) Len() int {
	if pm == nil {
		return 0
	}
	return len(pm.tokens)
}

// Tokens returns placeholder tokens in order of appearance.
func (pm *PlaceholderMap) Tokens() []string {
	if pm == nil {
		return nil
	}
	out := make([]string, len(pm.tokens))
	copy(out, pm.tokens)
	return out
}

// Fragment returns the original markup for one token.
func (pm *PlaceholderMap) Fragment(token string) (string, bool) {
	if pm == nil {
		return "", false
	}
	fragment, ok := pm.fragments[token]
	return fragment, ok
}

func token(index int) string {
	return fmt.Sprintf("⟦F%d⟧", index)
}

// ExtractStructural replaces every image, video, embedded-frame, and comment
// fragment with an indexed placeholder token, in order of appearance. The
// returned text is safe to chunk and translate; tokens survive splitting
// because extraction happens before SplitChunks runs.
func ExtractStructural(html string) (string, *PlaceholderMap) {
	pm := &PlaceholderMap{fragments: make(map[string]string)}

	stripped := structuralPattern.ReplaceAllStringFunc(html, func(fragment string) string {
		tok := token(len(pm.tokens))
		pm.tokens = append(pm.tokens, tok)
		pm.fragments[tok] = fragment
		return tok
	})

	return stripped, pm
}

// RestoreStructural substitutes original fragments back for their tokens and
// returns the restored HTML plus any tokens the map expected but the text no
// longer contains. A missing token means the provider altered it; the caller
// logs it and keeps going.
func RestoreStructural(text string, pm *PlaceholderMap) (string, []string) {
	if pm == nil || len(pm.tokens) == 0 {
		return text, nil
	}

	seen := make(map[string]bool, len(pm.tokens))
	restored := tokenPattern.ReplaceAllStringFunc(text, func(tok string) string {
		fragment, ok := pm.fragments[tok]
		if !ok {
			// Unknown index: leave the literal token in place.
			return tok
		}
		seen[tok] = true
		return fragment
	})

	var missing []string
	for _, tok := range pm.tokens {
		if !seen[tok] {
			missing = append(missing, tok)
		}
	}
	return restored, missing
}

// SplitChunks slices text into ordered chunks of at most maxLen bytes,
// breaking only on blank-line paragraph boundaries. A single paragraph
// longer than maxLen is returned intact as its own oversized chunk; breaking
// a sentence (or a placeholder token) costs more than breaking the bound.
func SplitChunks(text string, maxLen int) []string {
	if maxLen <= 0 || len(text) <= maxLen {
		return []string{text}
	}

	paragraphs := strings.Split(text, paragraphSeparator)

	var chunks []string
	var current strings.Builder
	for _, paragraph := range paragraphs {
		if current.Len() == 0 {
			current.WriteString(paragraph)
			continue
		}
		if current.Len()+len(paragraphSeparator)+len(paragraph) > maxLen {
			chunks = append(chunks, current.String())
			current.Reset()
			current.WriteString(paragraph)
			continue
		}
		current.WriteString(paragraphSeparator)
		current.WriteString(paragraph)
	}
	if current.Len() > 0 || len(chunks) == 0 {
		chunks = append(chunks, current.String())
	}
	return chunks
}

// JoinChunks reassembles translated chunks in order.
func JoinChunks(chunks []string) string {
	return strings.Join(chunks, paragraphSeparator)
}

const paragraphSeparator = "\n\n"
