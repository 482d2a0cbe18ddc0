package segment

import (
	"strings"
	"testing"
)

func TestExtractRestoreRoundTrip(t *testing.T) {
	t.Parallel()

	html := `<p>Intro text.</p>
<img src="/a.jpg" alt="first">
<p>Between the pictures.</p>
<figure class="wp-block-image"><img src="/b.jpg"></figure>
<iframe src="https://player.example/v/9"></iframe>
<video controls><source src="/c.mp4"></video>
<!-- editor note -->
<p>Outro.</p>`

	stripped, pm := ExtractStructural(html)
	if pm.Len() != 5 {
		t.Fatalf("unexpected fragment count: got %d want 5", pm.Len())
	}
	if strings.Contains(stripped, "<img") || strings.Contains(stripped, "<iframe") {
		t.Fatalf("stripped text still contains structural markup: %q", stripped)
	}

	restored, missing := RestoreStructural(stripped, pm)
	if len(missing) != 0 {
		t.Fatalf("unexpected missing tokens: %v", missing)
	}
	if restored != html {
		t.Fatalf("round trip mismatch:\n got: %q\nwant: %q", restored, html)
	}
}

func TestExtractFigureWrappingImageIsOneFragment(t *testing.T) {
	t.Parallel()

	html := `<figure><img src="/x.png"><figcaption>cap</figcaption></figure>`
	_, pm := ExtractStructural(html)
	if pm.Len() != 1 {
		t.Fatalf("expected one fragment for figure+img, got %d", pm.Len())
	}
	fragment, ok := pm.Fragment(pm.Tokens()[0])
	if !ok || fragment != html {
		t.Fatalf("unexpected fragment: %q", fragment)
	}
}

func TestExtractOrderOfAppearance(t *testing.T) {
	t.Parallel()

	stripped, pm := ExtractStructural(`<img src="/1"> middle <img src="/2">`)
	tokens := pm.Tokens()
	if len(tokens) != 2 {
		t.Fatalf("unexpected token count: %d", len(tokens))
	}
	if strings.Index(stripped, tokens[0]) > strings.Index(stripped, tokens[1]) {
		t.Fatalf("tokens out of order in stripped text: %q", stripped)
	}
	first, _ := pm.Fragment(tokens[0])
	if !strings.Contains(first, "/1") {
		t.Fatalf("first token maps to wrong fragment: %q", first)
	}
}

func TestRestoreLeavesUnknownTokenLiteral(t *testing.T) {
	t.Parallel()

	stripped, pm := ExtractStructural(`<img src="/only.png">`)
	mangled := strings.Replace(stripped, "⟦F0⟧", "⟦F7⟧", 1)

	restored, missing := RestoreStructural(mangled, pm)
	if !strings.Contains(restored, "⟦F7⟧") {
		t.Fatalf("expected unknown token left literal, got %q", restored)
	}
	if len(missing) != 1 || missing[0] != "⟦F0⟧" {
		t.Fatalf("expected F0 reported missing, got %v", missing)
	}
}

func TestSplitChunksSingleChunkWhenTextFits(t *testing.T) {
	t.Parallel()

	chunks := SplitChunks("short text", 100)
	if len(chunks) != 1 || chunks[0] != "short text" {
		t.Fatalf("unexpected chunks: %#v", chunks)
	}
}

func TestSplitChunksRespectsBoundAndOrder(t *testing.T) {
	t.Parallel()

	paragraphs := []string{
		strings.Repeat("a", 40),
		strings.Repeat("b", 40),
		strings.Repeat("c", 40),
		strings.Repeat("d", 40),
	}
	text := strings.Join(paragraphs, "\n\n")

	chunks := SplitChunks(text, 90)
	if len(chunks) != 2 {
		t.Fatalf("unexpected chunk count: got %d want 2 (%#v)", len(chunks), chunks)
	}
	for i, chunk := range chunks {
		if len(chunk) > 90 {
			t.Fatalf("chunk %d exceeds bound: %d bytes", i, len(chunk))
		}
	}
	if JoinChunks(chunks) != text {
		t.Fatalf("concatenated chunks do not reproduce the original text")
	}
}

func TestSplitChunksKeepsOversizedParagraphIntact(t *testing.T) {
	t.Parallel()

	oversized := strings.Repeat("x", 300)
	text := "intro\n\n" + oversized + "\n\ntail"

	chunks := SplitChunks(text, 100)
	found := false
	for _, chunk := range chunks {
		if chunk == oversized {
			found = true
		}
	}
	if !found {
		t.Fatalf("oversized paragraph was split: %#v", chunks)
	}
	if JoinChunks(chunks) != text {
		t.Fatalf("chunk coverage violated")
	}
}

func TestSplitChunksNeverBreaksPlaceholderTokens(t *testing.T) {
	t.Parallel()

	html := strings.Repeat("lead paragraph text. ", 10) + "\n\n" +
		`<img src="/wide.png">` + "\n\n" +
		strings.Repeat("trailing paragraph text. ", 10)

	stripped, pm := ExtractStructural(html)
	chunks := SplitChunks(stripped, 120)

	for _, tok := range pm.Tokens() {
		hits := 0
		for _, chunk := range chunks {
			hits += strings.Count(chunk, tok)
		}
		if hits != 1 {
			t.Fatalf("token %s appears %d times across chunks, want exactly 1", tok, hits)
		}
	}
}

func TestPlainTextStripsMarkup(t *testing.T) {
	t.Parallel()

	got := PlainText(`<p>Hello   <strong>world</strong></p><script>ignored()</script>`)
	if got != "Hello world" {
		t.Fatalf("unexpected plain text: %q", got)
	}
}

func TestExcerptTruncatesOnWordBoundary(t *testing.T) {
	t.Parallel()

	got := Excerpt("<p>one two three four five</p>", 12)
	if got != "one two…" {
		t.Fatalf("unexpected excerpt: %q", got)
	}
	if full := Excerpt("<p>tiny</p>", 50); full != "tiny" {
		t.Fatalf("short text must not be truncated: %q", full)
	}
}
