package book

import (
	"encoding/json"
	"errors"
	"regexp"
	"strings"

	"github.com/rgeddes/inkbound/pkg/effects"
)

// ErrNoPage is returned when no structurally valid page can be
// recovered from model output. Callers treat this as a recoverable
// generation failure, never a crash.
var ErrNoPage = errors.New("no page could be extracted")

var fencedBlockRe = regexp.MustCompile("(?is)```(?:json)?\\s*(.*?)```")

// pageWire mirrors Page but defers choice decoding so a malformed
// choices field degrades to an empty list instead of failing the
// whole extraction.
type pageWire struct {
	PageID             string           `json:"page_id"`
	Title              string           `json:"title"`
	Prose              string           `json:"prose"`
	IllustrationPrompt string           `json:"illustration_prompt"`
	Effects            *effects.Effects `json:"effects"`
	Choices            json.RawMessage  `json:"choices"`
}

// ExtractPage recovers a page object from freeform model text. The
// model is not contractually guaranteed to emit exact JSON, so
// candidate substrings are tried in strict priority order:
//
//  1. the entire trimmed text
//  2. the interior of a fenced code block
//  3. the interior of an explicit [JSON]...[/JSON] marker pair
//  4. the substring from the first "{" to the last "}"
//
// A candidate that parses but lacks page_id or prose is rejected and
// the next strategy is attempted.
func ExtractPage(text string) (*Page, error) {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return nil, ErrNoPage
	}

	for _, candidate := range extractionCandidates(trimmed) {
		if p, ok := decodePage(candidate); ok {
			return p, nil
		}
	}

	return nil, ErrNoPage
}

func extractionCandidates(text string) []string {
	candidates := []string{text}

	if m := fencedBlockRe.FindStringSubmatch(text); m != nil {
		candidates = append(candidates, strings.TrimSpace(m[1]))
	}

	if inner, ok := betweenMarkers(text, "[JSON]", "[/JSON]"); ok {
		candidates = append(candidates, inner)
	}

	if start := strings.Index(text, "{"); start >= 0 {
		if end := strings.LastIndex(text, "}"); end > start {
			candidates = append(candidates, text[start:end+1])
		}
	}

	return candidates
}

// betweenMarkers finds the interior of a case-insensitive marker pair.
func betweenMarkers(text, open, close string) (string, bool) {
	lower := strings.ToLower(text)
	start := strings.Index(lower, strings.ToLower(open))
	if start < 0 {
		return "", false
	}
	start += len(open)
	end := strings.Index(lower[start:], strings.ToLower(close))
	if end < 0 {
		return "", false
	}
	return strings.TrimSpace(text[start : start+end]), true
}

// decodePage parses a candidate and checks structural validity.
// Syntactic success without page_id and prose is still a failure.
func decodePage(candidate string) (*Page, bool) {
	var wire pageWire
	if err := json.Unmarshal([]byte(candidate), &wire); err != nil {
		return nil, false
	}
	if strings.TrimSpace(wire.PageID) == "" || strings.TrimSpace(wire.Prose) == "" {
		return nil, false
	}

	p := &Page{
		PageID:             wire.PageID,
		Title:              wire.Title,
		Prose:              wire.Prose,
		IllustrationPrompt: wire.IllustrationPrompt,
		Effects:            wire.Effects,
	}

	if len(wire.Choices) > 0 {
		var choices []Choice
		if err := json.Unmarshal(wire.Choices, &choices); err == nil {
			p.Choices = choices
		}
	}
	if p.Choices == nil {
		p.Choices = []Choice{}
	}

	return p, true
}
