// Package speech prepares explanation text for a text-to-speech
// engine. Every generation of the prompt template introduces new
// inline markup, so sanitization rules are versioned by markup
// dialect: a prompt-template change ships a new dialect instead of
// silently desynchronizing the sanitizer.
package speech

import (
	"regexp"
	"strings"
)

// Dialect identifies the inline markup vocabulary a prompt template
// generation emits.
type Dialect string

const (
	// DialectV1 matches the booster prompt family: HTML-ish tags,
	// **bold**, bullet glyphs, ruby glosses in parentheses, and the
	// :color[..] token.
	DialectV1 Dialect = "v1"
	// DialectLatest is the dialect current prompts emit.
	DialectLatest = DialectV1
)

// Pause is the punctuation substituted where markup implied a break.
const Pause = "、"

var (
	markupTagRegex   = regexp.MustCompile(`<[^<>]*>`)
	rubyRegex        = regexp.MustCompile(`《[^《》]*》`)
	boldRegex        = regexp.MustCompile(`\*\*`)
	bulletRegex      = regexp.MustCompile(`[・●○■◆▼▶►※]`)
	lineNumberRegex  = regexp.MustCompile(`([0-9０-９]+)行目`)
	parenRegex       = regexp.MustCompile(`（[^（）]*）|\([^()]*\)`)
	colorTokenRegex  = regexp.MustCompile(`:[a-z]+\[[^\[\]]*\]`)
	pauseSymbolRegex = regexp.MustCompile(`[/|｜]`)
	dropSymbolRegex  = regexp.MustCompile(`[#＃-]`)
	spaceRunRegex    = regexp.MustCompile(`[ \t]+`)
	pauseRunRegex    = regexp.MustCompile(`、{2,}`)
)

// Sanitizer turns display text into speech-safe text for one dialect.
type Sanitizer struct {
	dialect Dialect
}

// NewSanitizer returns a sanitizer for the given dialect. Unknown
// dialects fall back to the latest so new text still gets cleaned.
func NewSanitizer(dialect Dialect) *Sanitizer {
	if dialect != DialectV1 {
		dialect = DialectLatest
	}
	return &Sanitizer{dialect: dialect}
}

// Dialect reports which markup dialect this sanitizer handles.
func (s *Sanitizer) Dialect() Dialect {
	return s.dialect
}

// Clean applies the dialect's rules in a fixed order and returns
// speech-safe text. The output is handed to speech synthesis only and
// is never stored.
func (s *Sanitizer) Clean(text string) string {
	// 1. Markup tags and ruby annotations.
	text = markupTagRegex.ReplaceAllString(text, "")
	text = rubyRegex.ReplaceAllString(text, "")

	// 2. Bold emphasis markers.
	text = boldRegex.ReplaceAllString(text, "")

	// 3. Bullet and list glyphs.
	text = bulletRegex.ReplaceAllString(text, "")

	// 4. Line citations: "3行目" reads wrong unless the counter suffix
	// is spelled out phonetically.
	text = lineNumberRegex.ReplaceAllString(text, "${1}ぎょうめ")

	// 5. Parenthesized glosses, which the engine would read twice.
	text = parenRegex.ReplaceAllString(text, "")

	// 6. Color/slash markup tokens become a plain pause.
	text = colorTokenRegex.ReplaceAllString(text, Pause)

	// 7. Residual structural symbols: slashes and pipes pause, hashes
	// and hyphens vanish.
	text = pauseSymbolRegex.ReplaceAllString(text, Pause)
	text = dropSymbolRegex.ReplaceAllString(text, "")

	text = spaceRunRegex.ReplaceAllString(text, " ")
	text = pauseRunRegex.ReplaceAllString(text, Pause)

	return strings.TrimSpace(text)
}
