package dispatcher

import (
	"fmt"
	"strings"
)

// buildSystemPrompt tells the model to transcribe the audio and translate it
// into each requested target language, one labeled line per language, which
// is exactly the shape ParseModelResponse expects back.
func buildSystemPrompt(targetLanguages []string) string {
	var b strings.Builder
	b.WriteString("You are an audio transcription and translation assistant. ")
	b.WriteString("Listen to the provided audio, transcribe it, and translate the transcription into each of the following languages. ")
	b.WriteString("Respond with exactly one line per language, formatted as \"Language: translated text\", and nothing else.\n\n")
	b.WriteString("Target languages:\n")
	for _, lang := range targetLanguages {
		fmt.Fprintf(&b, "- %s\n", lang)
	}
	return b.String()
}
