package pipeline

import (
	"fmt"
	"strings"

	"github.com/calebmt/groundwork/internal/models"
)

const systemInstructions = `You are a helpful assistant answering questions about a fixed set of documents.
Rules:
- Answer using ONLY the context passages provided. Do not use outside knowledge.
- If the context does not contain the answer, reply exactly: "` + FallbackAnswer + `"
- Mention the source document name when you use a passage.
- Be concise.`

// buildPrompt assembles the bounded grounding prompt: labeled context
// passages, a short trailing slice of prior turns, then the question.
func buildPrompt(query string, results []models.SearchResult, history []models.ChatTurn, historyTurns int) (system, prompt string) {
	var sb strings.Builder

	sb.WriteString("Context:\n")
	for _, r := range results {
		sb.WriteString(fmt.Sprintf("[%s (%.0f%% match)]\n", r.Meta.Source, r.Score*100))
		sb.WriteString(strings.TrimSpace(r.Text))
		sb.WriteString("\n\n")
	}

	if turns := lastTurns(history, historyTurns); len(turns) > 0 {
		sb.WriteString("Recent conversation:\n")
		for _, turn := range turns {
			sb.WriteString(fmt.Sprintf("%s: %s\n", roleLabel(turn.Role), turn.Content))
		}
		sb.WriteString("\n")
	}

	sb.WriteString("Question: ")
	sb.WriteString(query)

	return systemInstructions, sb.String()
}

func roleLabel(role string) string {
	switch role {
	case "user":
		return "User"
	case "assistant":
		return "Assistant"
	}
	return role
}

func lastTurns(history []models.ChatTurn, n int) []models.ChatTurn {
	if n <= 0 || len(history) == 0 {
		return nil
	}
	// A turn is a user/assistant exchange, so keep 2n messages.
	keep := 2 * n
	if keep > len(history) {
		keep = len(history)
	}
	return history[len(history)-keep:]
}
