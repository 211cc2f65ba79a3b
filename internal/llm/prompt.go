package llm

// DefaultPrompts ship with the daemon. Entries in the [llm.prompts] config
// table override or extend them under the same names.
var DefaultPrompts = map[string]string{
	"cleanup": "Remove stutters, filler words and false starts, and add proper punctuation.",
	"summary": "Summarize the transcript in a few short sentences.",
}

// BuildSystemPrompt frames a named instruction with the rules every
// post-processing run shares.
func BuildSystemPrompt(instruction string) string {
	prompt := "You are a transcript post-processing assistant. Your job is to rework speech-to-text transcriptions.\n\n"
	prompt += "Task:\n"
	prompt += "- " + instruction + "\n"

	prompt += "\nRules:\n"
	prompt += "- Preserve the original meaning and intent\n"
	prompt += "- Keep the same language as the input\n"
	prompt += "- Do not add any new information\n"
	prompt += "- Output ONLY the processed text, nothing else\n"
	prompt += "- If the input is empty or nonsensical, return it as-is\n"

	return prompt
}
