package generate

import (
	"fmt"
	"os"
	"strings"
)

// DefaultSystemPrompt is used when no prompt file or inline prompt is
// configured.
const DefaultSystemPrompt = "You are a helpful assistant. Answer questions using only the " +
	"provided context. If you don't know the answer, say so honestly."

// LoadPrompt resolves the system prompt. With an empty path the fallback is
// returned (or DefaultSystemPrompt when the fallback is empty too). With a
// path, the file's trimmed contents win and a missing file falls back.
func LoadPrompt(path, fallback string) (string, error) {
	if fallback == "" {
		fallback = DefaultSystemPrompt
	}
	if path == "" {
		return fallback, nil
	}
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return fallback, nil
	}
	if err != nil {
		return "", fmt.Errorf("read system prompt %s: %w", path, err)
	}
	return strings.TrimSpace(string(data)), nil
}
