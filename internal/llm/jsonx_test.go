package llm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type solutionDoc struct {
	Name       string `json:"name"`
	Complexity string `json:"complexity"`
}

func TestExtractJSONPlain(t *testing.T) {
	var out solutionDoc
	require.NoError(t, ExtractJSON(`{"name":"Auto-classification","complexity":"medium"}`, &out))
	assert.Equal(t, "Auto-classification", out.Name)
}

func TestExtractJSONFenced(t *testing.T) {
	raw := "Here is the result:\n```json\n{\"name\": \"Budget guard\"}\n```\nHope that helps!"
	var out solutionDoc
	require.NoError(t, ExtractJSON(raw, &out))
	assert.Equal(t, "Budget guard", out.Name)
}

func TestExtractJSONSurroundingProse(t *testing.T) {
	raw := `The gaps I found are [{"name":"first"},{"name":"second"}] as requested.`
	var out []solutionDoc
	require.NoError(t, ExtractJSON(raw, &out))
	require.Len(t, out, 2)
	assert.Equal(t, "second", out[1].Name)
}

func TestExtractJSONRepairsMalformed(t *testing.T) {
	// Trailing comma and single quotes, typical model sloppiness.
	raw := `{'name': 'Priority sort', 'complexity': 'medium',}`
	var out solutionDoc
	require.NoError(t, ExtractJSON(raw, &out))
	assert.Equal(t, "Priority sort", out.Name)
}

func TestExtractJSONUnrecoverable(t *testing.T) {
	var out solutionDoc
	err := ExtractJSON("sorry, I cannot help with that", &out)
	require.Error(t, err)

	var parseErr *ParseError
	require.ErrorAs(t, err, &parseErr)
	assert.Contains(t, parseErr.Raw, "sorry")
}
