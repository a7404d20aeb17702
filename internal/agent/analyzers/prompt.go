package analyzers

import (
	_ "embed"
	"fmt"
	"slices"
	"strings"

	"github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/schema"
)

//go:embed template/analyzer_prompt.txt
var analyzerSystemPrompt string

// Role is a roster member's analysis perspective.
type Role struct {
	Name  string
	Focus string
}

var roles = map[string]Role{
	"analytical": {Name: "analytical", Focus: "Break the request into its logical goal and the exact parameters needed to act on it."},
	"creative":   {Name: "creative", Focus: "Look for the underlying need and alternative readings of ambiguous phrasing."},
	"practical":  {Name: "practical", Focus: "Pick the most direct action that completes the request with the tools available."},
	"scheduling": {Name: "scheduling", Focus: "Extract dates, times, durations and recurrence, and resolve relative time expressions."},
	"automation": {Name: "automation", Focus: "Decide whether the request describes a repeatable trigger and action sequence and spell it out."},
}

// LookupRole returns the named role.
func LookupRole(name string) (Role, error) {
	r, ok := roles[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return Role{}, fmt.Errorf("unknown analyzer role %q", name)
	}
	return r, nil
}

// RoleNames lists the known roles in sorted order.
func RoleNames() []string {
	names := make([]string, 0, len(roles))
	for n := range roles {
		names = append(names, n)
	}
	slices.Sort(names)
	return names
}

// renderSystemPrompt substitutes known tokens only so JSON braces in the
// template survive.
func renderSystemPrompt(role Role, skills []string) string {
	skillList := "none"
	if len(skills) > 0 {
		skillList = strings.Join(skills, ", ")
	}
	return strings.NewReplacer(
		"{TD}", tupDelim,
		"{RD}", recDelim,
		"{CD}", endDelim,
		"{role}", role.Name,
		"{focus}", role.Focus,
		"{skills}", skillList,
	).Replace(analyzerSystemPrompt)
}

// newChatTemplate uses a messages placeholder for the system prompt so the
// rendered template goes through prompt callbacks untouched.
func newChatTemplate() prompt.ChatTemplate {
	return prompt.FromMessages(
		schema.FString,
		schema.MessagesPlaceholder("system_messages", false),
		schema.MessagesPlaceholder("context_messages", false),
	)
}

func templateVars(system, conversationCtx string) map[string]any {
	return map[string]any{
		"system_messages":  []*schema.Message{schema.SystemMessage(system)},
		"context_messages": []*schema.Message{schema.UserMessage(conversationCtx)},
	}
}
