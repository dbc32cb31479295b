package llm

import (
	"fmt"
	"strings"
)

// BuildSystemPrompt generates the system prompt for dictation cleanup from
// the enabled options.
func BuildSystemPrompt(cfg Config) string {
	var tasks []string

	if cfg.RemoveStutters {
		tasks = append(tasks, "Remove stutters and repeated words/phrases")
	}
	if cfg.AddPunctuation {
		tasks = append(tasks, "Add proper punctuation")
	}
	if cfg.FixGrammar {
		tasks = append(tasks, "Fix grammar errors")
	}
	if cfg.RemoveFillerWords {
		tasks = append(tasks, "Remove filler words (um, uh, like, you know, etc.)")
	}
	if len(tasks) == 0 {
		tasks = append(tasks, "Clean up the text while preserving meaning")
	}

	var b strings.Builder
	b.WriteString("You are a text cleanup assistant. Your job is to clean up speech-to-text transcriptions.\n\n")
	b.WriteString("Tasks:\n")
	for _, task := range tasks {
		fmt.Fprintf(&b, "- %s\n", task)
	}
	b.WriteString("\nRules:\n")
	b.WriteString("- Preserve the original meaning and intent\n")
	b.WriteString("- Keep the same language as the input\n")
	b.WriteString("- Do not add any new information\n")
	b.WriteString("- Do not remove meaningful content\n")
	b.WriteString("- Output ONLY the cleaned text, nothing else\n")
	b.WriteString("- If the input is empty or nonsensical, return it as-is\n")

	if len(cfg.Keywords) > 0 {
		fmt.Fprintf(&b, "\nContext keywords (use correct spelling for these terms): %s\n",
			strings.Join(cfg.Keywords, ", "))
	}

	return b.String()
}

// ResolveTemplate substitutes the transcription and optional context string
// into a prompt template. Recognized placeholders: {{transcription}} and
// {{context}}.
func ResolveTemplate(template, transcription, contextStr string) string {
	if template == "" {
		return transcription
	}
	out := strings.ReplaceAll(template, "{{transcription}}", transcription)
	out = strings.ReplaceAll(out, "{{context}}", contextStr)
	return out
}
