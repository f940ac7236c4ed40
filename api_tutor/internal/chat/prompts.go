package chat

import (
	"fmt"
	"os"
	"strings"
)

const SystemPrompt = `You are an AI assistant specialized in course materials and educational content, with access to tools for looking up course information.

Tools
- get_course_outline: use for questions about a course's structure, lesson list, link or instructor.
- search_course_content: use for questions about specific content or detailed educational material.
- Later reasoning rounds can build on the results of earlier ones.
- If a tool finds nothing, say so clearly instead of guessing.

Answering
- General knowledge questions: answer from what you know, without tools.
- Course questions: use the tools, then answer from their results.
- For outlines, present the get_course_outline output exactly as returned by the tool. Do not modify its structure or wording, and do not reformat or summarize it.
- Do not mention the tools, the search process or the reasoning rounds in the answer.
- Do not preface the answer with phrases like "based on the search results".

Every answer must be
- Brief and focused on the question.
- Educational, with clear explanations.
- Backed by examples when they help understanding.
`

// LoadSystemPrompt returns the prompt stored at path, or the built-in prompt
// when path is empty.
func LoadSystemPrompt(path string) (string, error) {
	if path == "" {
		return SystemPrompt, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read system prompt: %w", err)
	}
	prompt := strings.TrimSpace(string(data))
	if prompt == "" {
		return "", fmt.Errorf("system prompt file %s is empty", path)
	}
	return prompt, nil
}

// systemContent builds the system message for one round.
func systemContent(base string, rc *RoundContext, maxRounds int) string {
	var b strings.Builder
	b.WriteString(base)
	if rc.HistoryText != "" {
		b.WriteString("\n\nPrevious conversation:\n")
		b.WriteString(rc.HistoryText)
	}
	if rc.RoundIndex > 1 {
		if summary := rc.Summary(); summary != "" {
			b.WriteString("\n\nSequential Context (Previous Rounds):\n")
			b.WriteString(summary)
			fmt.Fprintf(&b, "\n\nCurrent Round: %d/%d - Build upon previous information to provide a comprehensive response.", rc.RoundIndex, maxRounds)
		}
	}
	return b.String()
}

// userContent is the user turn for one round: the query itself in round one,
// a continuation prompt carrying the round summary afterwards.
func userContent(rc *RoundContext) string {
	if rc.RoundIndex <= 1 {
		return rc.OriginalQuery
	}
	return "Original query: " + rc.OriginalQuery +
		"\n\nBased on information gathered in previous rounds, please continue with additional tool calls if needed to provide a complete response." +
		"\n\nPrevious rounds summary:\n" + rc.Summary() +
		"\n\nPlease synthesize all information or make additional tool calls as needed."
}
