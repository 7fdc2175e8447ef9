package book

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

// SystemPromptTemplate frames the narrator role and the page schema
// the model must emit. The seed biases generation toward reproducible
// output for the same player and book, though the model makes no
// determinism guarantee.
const SystemPromptTemplate = `You are the narrator of an interactive book titled %q.
Generation seed: %s. Keep the story consistent with this seed.

Respond with a single JSON object and nothing else:
{
  "page_id": "short unique slug for this page",
  "title": "page title",
  "prose": "2-4 paragraphs of narrative",
  "illustration_prompt": "optional scene description for an illustrator",
  "effects": {"truth": 0.1, "quantum.coherence": 0.05, "shadow": -0.1, "insight": 1, "hp": -5, "give_item": "item_id"},
  "choices": [{"id": "slug", "label": "what the reader may do", "effects": {}}]
}

Effects are optional and sparse. Numeric values are deltas; a string
like "=0.3" sets the stat absolutely. Offer between 0 and %d choices;
an empty choices list ends the story.`

// AskSystemPrompt frames side questions, which must answer in plain
// prose instead of the page schema.
const AskSystemPrompt = `You are the narrator of an interactive book titled %q.
The reader is asking a question about the current page. Answer briefly,
in character, in plain prose. Do not emit JSON and do not advance the story.`

const msgPageRefuses = "The page refuses to resolve. Try again."

// PromptBuilder constructs the system and user prompts for a
// generation call. It separates prompt assembly from session state
// management.
type PromptBuilder struct {
	session  *Session
	choice   *Choice
	question string
}

// NewPrompt creates a builder scoped to one session.
func NewPrompt(s *Session) *PromptBuilder {
	return &PromptBuilder{session: s}
}

// WithChoice marks this as a next-page request following a selection.
func (b *PromptBuilder) WithChoice(c *Choice) *PromptBuilder {
	b.choice = c
	return b
}

// WithQuestion marks this as a side query about the current page.
func (b *PromptBuilder) WithQuestion(q string) *PromptBuilder {
	b.question = q
	return b
}

// BuildSystem returns the system prompt for the request.
func (b *PromptBuilder) BuildSystem() string {
	if b.question != "" {
		return fmt.Sprintf(AskSystemPrompt, b.session.Title())
	}
	return fmt.Sprintf(SystemPromptTemplate, b.session.Title(), b.session.Seed(), MaxChoices)
}

// BuildUser returns the user prompt: the accumulated choice path, the
// current page context, and the action being taken.
func (b *PromptBuilder) BuildUser() string {
	var sb strings.Builder

	path := b.session.Path()
	if len(path) > 0 {
		sb.WriteString("Choices taken so far: ")
		sb.WriteString(strings.Join(path, " -> "))
		sb.WriteString("\n\n")
	}

	if current := b.session.CurrentPage(); current != nil {
		sb.WriteString(fmt.Sprintf("Current page %q (%s):\n%s\n\n",
			current.Title, current.PageID, excerpt(current.Prose, 600)))
	}

	switch {
	case b.question != "":
		sb.WriteString("The reader asks: ")
		sb.WriteString(b.question)
	case b.choice != nil:
		sb.WriteString(fmt.Sprintf("The reader chose %q (%s). Write the next page.",
			b.choice.Label, b.choice.ID))
	default:
		sb.WriteString("Write the first page of the book.")
	}

	return sb.String()
}

// excerpt bounds prose included as context so prompts stay small. The
// cut backs up to a rune boundary so the result is always valid UTF-8.
func excerpt(text string, limit int) string {
	text = strings.TrimSpace(text)
	if len(text) <= limit {
		return text
	}
	cut := limit
	for cut > 0 && !utf8.RuneStart(text[cut]) {
		cut--
	}
	return text[:cut] + "..."
}
