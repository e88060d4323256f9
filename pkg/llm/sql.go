package llm

import (
	"regexp"
	"strings"
)

// thinkTagPattern matches <think>...</think> tags that some models emit
// at the start of a response.
var thinkTagPattern = regexp.MustCompile(`(?s)^\s*<think>.*?</think>\s*`)

// fencePattern matches a markdown code fence with an optional language tag.
var fencePattern = regexp.MustCompile("(?s)```(?:sql|SQL)?\\s*(.*?)```")

// ExtractSQL pulls a SQL statement out of an LLM response that may wrap
// it in thinking tags, markdown fences, or surrounding prose.
func ExtractSQL(response string) string {
	cleaned := thinkTagPattern.ReplaceAllString(response, "")

	if m := fencePattern.FindStringSubmatch(cleaned); len(m) >= 2 {
		cleaned = m[1]
	}

	return strings.TrimSpace(cleaned)
}
