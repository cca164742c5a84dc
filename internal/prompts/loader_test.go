package prompts

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoaderHasAllStageTemplates(t *testing.T) {
	l, err := NewLoader()
	require.NoError(t, err)

	for _, name := range []string{Expectation, Comparison, Interpretation, Exploration} {
		rendered, err := l.Render(name, nil)
		require.NoError(t, err, name)
		assert.NotEmpty(t, rendered, name)
	}
}

func TestRenderSubstitutesVariables(t *testing.T) {
	l, err := NewLoader()
	require.NoError(t, err)

	rendered, err := l.Render(Expectation, map[string]string{
		"domain":      "email",
		"world_model": `{"abstract_goals":[]}`,
		"context":     `{"day":"Monday"}`,
	})
	require.NoError(t, err)
	assert.Contains(t, rendered, "email")
	assert.NotContains(t, rendered, "{{domain}}")
	assert.NotContains(t, rendered, "{{world_model}}")
}

func TestRenderUnknownPlaceholderStaysVisible(t *testing.T) {
	l, err := NewLoader()
	require.NoError(t, err)

	rendered, err := l.Render(Comparison, map[string]string{"current_state": "{}"})
	require.NoError(t, err)
	// The expectation slot was not filled; the placeholder must remain
	// visible instead of silently vanishing.
	assert.Contains(t, rendered, "{{expectation}}")
}

func TestRenderUnknownTemplate(t *testing.T) {
	l, err := NewLoader()
	require.NoError(t, err)

	_, err = l.Render("negotiation", nil)
	assert.Error(t, err)
}
