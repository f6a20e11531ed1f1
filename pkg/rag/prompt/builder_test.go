package prompt

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBuildOrdersSections(t *testing.T) {
	p := NewContextualBuilder(
		"You are a helpful assistant.",
		"Aspirin is an NSAID.",
		"What is aspirin?",
		"en",
	).Build()

	instrIdx := strings.Index(p, "You are a helpful assistant.")
	langIdx := strings.Index(p, "Answer in the following language: en")
	ctxIdx := strings.Index(p, "Aspirin is an NSAID.")
	questionIdx := strings.Index(p, "What is aspirin?")

	assert.GreaterOrEqual(t, instrIdx, 0)
	assert.Greater(t, langIdx, instrIdx)
	assert.Greater(t, ctxIdx, langIdx)
	assert.Greater(t, questionIdx, ctxIdx)
	assert.True(t, strings.HasSuffix(p, "Now provide your complete response based on the reference material:"))
}

func TestBuildOmitsEmptySections(t *testing.T) {
	p := NewContextualBuilder("", "", "What is aspirin?", "").Build()

	assert.NotContains(t, p, "<instructions>")
	assert.NotContains(t, p, "<reference_material>")
	assert.NotContains(t, p, "Answer in the following language")
	assert.Contains(t, p, "<user_question>\nWhat is aspirin?")
}
