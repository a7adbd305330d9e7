package nodes

import (
	"context"
	"strings"

	"github.com/sasya-arogya/engine/pkg/llm"
)

var goodbyePhrases = []string{
	"bye",
	"goodbye",
	"good bye",
	"see you",
	"that's all",
	"thats all",
	"that is all",
	"no more questions",
	"nothing else",
	"i'm done",
	"im done",
	"done for now",
	"end session",
	"end the session",
	"exit",
	"quit",
	"thanks, bye",
	"thank you, bye",
	"dhanyavad",
	"alvida",
}

// isGoodbye decides whether the message ends the conversation. The LLM
// call handles phrasing the keyword list misses; on any LLM failure the
// keyword result stands.
func isGoodbye(ctx context.Context, client *llm.Client, message string) bool {
	lower := strings.ToLower(strings.TrimSpace(message))
	if lower == "" {
		return false
	}
	for _, p := range goodbyePhrases {
		if lower == p || strings.HasPrefix(lower, p+" ") || strings.HasSuffix(lower, " "+p) {
			return true
		}
	}
	// Short messages with a thank-you and no question are goodbyes too.
	if len(lower) < 40 && strings.Contains(lower, "thank") && !strings.Contains(lower, "?") {
		if client == nil {
			return false
		}
		prompt := "A farmer using a crop advisory assistant said: \"" + message + "\"\n" +
			"Are they ending the conversation? Answer only yes or no."
		answer, err := client.Generate(ctx, prompt)
		if err != nil {
			return false
		}
		return strings.HasPrefix(strings.ToLower(strings.TrimSpace(answer)), "yes")
	}
	return false
}
