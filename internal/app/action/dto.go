package action

import (
	"mash/internal/domain/mud"
)

// Handler results are schemaless maps; these helpers pull typed params
// out of the decoded request body.

func strParam(params map[string]any, key string) string {
	s, _ := params[key].(string)
	return s
}

func intParam(params map[string]any, key string) (int, bool) {
	n, ok := mud.Num(params[key])
	if !ok {
		return 0, false
	}
	return int(n), true
}

func mapParam(params map[string]any, key string) map[string]any {
	m, _ := params[key].(map[string]any)
	return m
}

func listParam(params map[string]any, key string) []any {
	l, _ := params[key].([]any)
	return l
}

// errResult is the uniform in-band failure shape for handler results.
func errResult(reason string) map[string]any {
	return map[string]any{"error": reason}
}

// QueueConfirmation is returned to the caller when a verb is deferred
// to the tick.
type QueueConfirmation struct {
	Queued      bool   `json:"queued"`
	ActionID    int64  `json:"action_id"`
	TickNumber  int64  `json:"tick_number"`
	APRemaining int    `json:"ap_remaining"`
}

func agentCard(a mud.Agent) map[string]any {
	return map[string]any{
		"type":              "agent",
		"id":                a.ID,
		"username":          a.Username,
		"short_description": a.ShortDescription,
		"long_description":  a.LongDescription,
	}
}

func instanceCard(i mud.Instance) map[string]any {
	return map[string]any{
		"type":              string(i.Kind),
		"id":                i.ID,
		"short_description": i.ShortDescription,
		"long_description":  i.LongDescription,
	}
}

func instanceSummary(i mud.Instance) map[string]any {
	return map[string]any{
		"id":                i.ID,
		"short_description": i.ShortDescription,
	}
}
