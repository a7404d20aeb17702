package analyzers

import (
	"strings"

	"github.com/Chative-core-poc-v1/assistant-core/internal/agent/model"
)

// BuildContext renders the trailing maxTurns of history plus the message under
// analysis into the analyzer's user message.
func BuildContext(in model.AnalyzerInput, maxTurns int) string {
	var b strings.Builder
	b.WriteString("<conversation_context>\n")
	for _, t := range model.LastTurns(in.History, maxTurns) {
		if t.UserInput != "" {
			b.WriteString("UserMessage(" + t.UserInput + ")\n")
		}
		if t.AgentResponse != "" {
			b.WriteString("AssistantMessage(" + t.AgentResponse + ")\n")
		}
	}
	b.WriteString("</conversation_context>\n")
	b.WriteString("<current_message_to_analyze>\n")
	b.WriteString("UserMessage(" + in.UserInput + ")\n")
	b.WriteString("</current_message_to_analyze>")
	return b.String()
}
