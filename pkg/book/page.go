package book

import (
	"fmt"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/rgeddes/inkbound/pkg/effects"
)

// MaxChoices bounds how many branches a single page may offer.
// Model output beyond this is truncated during normalization.
const MaxChoices = 6

// Choice is a selectable branch on a page. Effects, when present,
// are applied immediately on selection, before the next page is
// requested, and independently of the next page's own effects.
type Choice struct {
	ID      string           `json:"id"`
	Label   string           `json:"label"`
	Effects *effects.Effects `json:"effects,omitempty"`
}

// Page is one generated narrative unit. An empty Choices slice
// marks a terminal page.
type Page struct {
	PageID             string           `json:"page_id"`
	Title              string           `json:"title,omitempty"`
	Prose              string           `json:"prose"`
	IllustrationPrompt string           `json:"illustration_prompt,omitempty"`
	Effects            *effects.Effects `json:"effects,omitempty"`
	Choices            []Choice         `json:"choices,omitempty"`
}

// IsTerminal reports whether the page offers no further branches.
func (p *Page) IsTerminal() bool {
	return len(p.Choices) == 0
}

// Normalize fills in a synthetic title when the model omitted one and
// truncates the choice list to MaxChoices. pageCount is the number of
// pages already stored in the session, used for title synthesis.
func (p *Page) Normalize(pageCount int) {
	if strings.TrimSpace(p.Title) == "" {
		p.Title = fmt.Sprintf("Page %d", pageCount+1)
	}
	if len(p.Choices) > MaxChoices {
		p.Choices = p.Choices[:MaxChoices]
	}
}

var titleCaser = cases.Title(language.English)

// TitleFromSlug derives a display title from a book identifier,
// e.g. "codex_paths" becomes "Codex Paths".
func TitleFromSlug(slug string) string {
	cleaned := strings.NewReplacer("_", " ", "-", " ").Replace(slug)
	cleaned = strings.Join(strings.Fields(cleaned), " ")
	if cleaned == "" {
		return "Untitled"
	}
	return titleCaser.String(cleaned)
}
