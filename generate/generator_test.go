package generate

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ragmesh/ragmesh/core"
	"github.com/ragmesh/ragmesh/memory"
)

func TestBuildMessages_Ordering(t *testing.T) {
	conv := memory.Conversation{
		{Question: "first q", Answer: "first a"},
		{Question: "second q", Answer: "second a"},
	}
	messages := BuildMessages("be helpful", "[1] fact", conv, "current q")

	require.Len(t, messages, 7)
	assert.Equal(t, core.RoleSystem, messages[0].Role)
	assert.Equal(t, "be helpful", messages[0].Content)

	// Retrieved context comes before memory so the model treats it as
	// higher-priority grounding.
	assert.Equal(t, core.RoleSystem, messages[1].Role)
	assert.Contains(t, messages[1].Content, "[1] fact")

	// Memory turns are chronological, oldest first, alternating roles.
	assert.Equal(t, core.RoleUser, messages[2].Role)
	assert.Equal(t, "first q", messages[2].Content)
	assert.Equal(t, core.RoleAssistant, messages[3].Role)
	assert.Equal(t, "first a", messages[3].Content)
	assert.Equal(t, "second q", messages[4].Content)
	assert.Equal(t, "second a", messages[5].Content)

	assert.Equal(t, core.RoleUser, messages[6].Role)
	assert.Equal(t, "current q", messages[6].Content)
}

func TestBuildMessages_EmptyContextOmitted(t *testing.T) {
	messages := BuildMessages("sys", "", nil, "q")
	require.Len(t, messages, 2)
	assert.Equal(t, core.RoleSystem, messages[0].Role)
	assert.Equal(t, core.RoleUser, messages[1].Role)
}

func TestGenerator_Generate(t *testing.T) {
	var seen []core.Message
	completer := core.CompleterFunc(func(_ context.Context, messages []core.Message) (string, error) {
		seen = messages
		return "the answer", nil
	})
	g := NewGenerator(completer)

	answer, err := g.Generate(context.Background(), "sys", "[1] ctx", nil, "q")
	require.NoError(t, err)
	assert.Equal(t, "the answer", answer)
	require.Len(t, seen, 3)
	assert.Equal(t, "q", seen[2].Content)
}

func TestGenerator_FailureWrapsGenerationError(t *testing.T) {
	cause := errors.New("context length exceeded")
	completer := core.CompleterFunc(func(context.Context, []core.Message) (string, error) {
		return "", cause
	})
	g := NewGenerator(completer)

	_, err := g.Generate(context.Background(), "sys", "", nil, "q")
	var gerr *core.GenerationError
	require.ErrorAs(t, err, &gerr)
	assert.ErrorIs(t, err, cause)
}

func TestLoadPrompt(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "prompt.txt")
	require.NoError(t, os.WriteFile(path, []byte("  from file \n"), 0o644))

	t.Run("from file", func(t *testing.T) {
		got, err := LoadPrompt(path, "fallback")
		require.NoError(t, err)
		assert.Equal(t, "from file", got)
	})

	t.Run("missing file falls back", func(t *testing.T) {
		got, err := LoadPrompt(filepath.Join(dir, "absent.txt"), "fallback")
		require.NoError(t, err)
		assert.Equal(t, "fallback", got)
	})

	t.Run("no path uses fallback", func(t *testing.T) {
		got, err := LoadPrompt("", "inline prompt")
		require.NoError(t, err)
		assert.Equal(t, "inline prompt", got)
	})

	t.Run("default prompt", func(t *testing.T) {
		got, err := LoadPrompt("", "")
		require.NoError(t, err)
		assert.Equal(t, DefaultSystemPrompt, got)
	})
}
