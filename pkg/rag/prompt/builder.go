package prompt

import (
	"strings"
)

// ContextualBuilder assembles the generation prompt from the system
// instructions, the retrieved context and the user's question.
type ContextualBuilder struct {
	instructions string
	context      string
	query        string
	language     string
}

// NewContextualBuilder creates a new contextual prompt builder
func NewContextualBuilder(instructions, context, query, language string) *ContextualBuilder {
	return &ContextualBuilder{
		instructions: instructions,
		context:      context,
		query:        query,
		language:     language,
	}
}

// Build renders the full prompt in a fixed section order so the model
// sees instructions before material and material before the question.
func (b *ContextualBuilder) Build() string {
	var prompt strings.Builder

	b.writeInstructions(&prompt)
	b.writeLanguage(&prompt)
	b.writeContext(&prompt)
	b.writeUserQuery(&prompt)

	return prompt.String()
}

func (b *ContextualBuilder) writeInstructions(prompt *strings.Builder) {
	if b.instructions == "" {
		return
	}
	prompt.WriteString("<instructions>\n")
	prompt.WriteString(strings.TrimSpace(b.instructions))
	prompt.WriteString("\n</instructions>\n\n")
}

func (b *ContextualBuilder) writeLanguage(prompt *strings.Builder) {
	if b.language == "" {
		return
	}
	prompt.WriteString("Answer in the following language: ")
	prompt.WriteString(b.language)
	prompt.WriteString("\n\n")
}

func (b *ContextualBuilder) writeContext(prompt *strings.Builder) {
	if b.context == "" {
		return
	}
	prompt.WriteString("<reference_material>\n")
	prompt.WriteString(strings.TrimSpace(b.context))
	prompt.WriteString("\n</reference_material>\n\n")
}

func (b *ContextualBuilder) writeUserQuery(prompt *strings.Builder) {
	prompt.WriteString("<user_question>\n")
	prompt.WriteString(b.query)
	prompt.WriteString("\n</user_question>\n\n")
	prompt.WriteString("Now provide your complete response based on the reference material:")
}
