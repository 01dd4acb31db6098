package llm

import "strings"

// FallbackChatReply is the canned reply used when generation fails. When a
// suggestion is available it is appended as a gentle offer.
func FallbackChatReply(suggestion string) string {
	var b strings.Builder
	b.WriteString("Thank you for sharing that with me. It sounds like a lot to carry, and I'm here to listen. ")
	b.WriteString("Would you like to tell me a bit more about what's on your mind?")
	if suggestion != "" {
		b.WriteString(" If it helps, we could also try \"")
		b.WriteString(suggestion)
		b.WriteString("\" together.")
	}
	return b.String()
}
