package service

import (
	"fmt"
	"strings"

	"sage/internal/llm"
)

const (
	// maxContextChars bounds the fused context included in the prompt.
	maxContextChars = 4096
	// maxPromptFacts bounds the stored facts included in the prompt.
	maxPromptFacts = 5

	answerMaxTokens   = 1024
	answerTemperature = 0.5
)

const systemPromptTemplate = "You are Sage, a sharp assistant for technical queries. Answer the query below in concise, plain English. " +
	"Use these user facts if relevant: %s — mention them explicitly if applicable. " +
	"Focus solely on the query. Use context only if it directly applies, otherwise ignore it. " +
	"Do not repeat phrases or ramble. Provide one clear answer."

// BuildPrompt assembles the system and user messages for one query:
// system instructions carrying up to five stored facts, then the
// bounded fused context and the raw query.
func BuildPrompt(fusedContext string, userFacts []string, query string) []llm.Message {
	if len(userFacts) > maxPromptFacts {
		userFacts = userFacts[:maxPromptFacts]
	}
	factsStr := "No known user facts."
	if len(userFacts) > 0 {
		factsStr = strings.Join(userFacts, "\n")
	}

	// Truncate by characters, not bytes, so a multi-byte rune is never
	// split at the boundary.
	if runes := []rune(fusedContext); len(runes) > maxContextChars {
		fusedContext = string(runes[:maxContextChars])
	}

	return []llm.Message{
		{
			Role:    "system",
			Content: fmt.Sprintf(systemPromptTemplate, factsStr),
		},
		{
			Role:    "user",
			Content: "Context (optional, use only if directly relevant): " + fusedContext + "\n\nQuery: " + query,
		},
	}
}
