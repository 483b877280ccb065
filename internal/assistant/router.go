package assistant

import "strings"

// ParseDecision maps raw oracle output onto the closed decision set
// {reply, schedule, suggest_time, both}. It is the single seam between
// free-text oracle output and the deterministic workflow graph: all
// oracle non-determinism is absorbed here and nowhere else.
//
// The input is trimmed, lowercased, and stripped of surrounding quotes
// and trailing punctuation before matching. Anything that still does not
// match maps to ActionReply, so a message is never dropped without a
// planned response.
func ParseDecision(text string) Action {
	decision := strings.ToLower(strings.TrimSpace(text))
	decision = strings.Trim(decision, "\"'`.,!: ")

	switch Action(decision) {
	case ActionReply, ActionSchedule, ActionSuggestTime, ActionBoth:
		return Action(decision)
	default:
		return ActionReply
	}
}
