package action

import (
	"context"

	"mash/internal/domain/mud"
)

// say broadcasts a chat event to everyone else in the caller's node who
// has broadcasts enabled, and reports the delivery count.
func (u UseCase) say(ctx context.Context, agent mud.Agent, params map[string]any) any {
	message := strParam(params, "message")
	if message == "" {
		return errResult("message required")
	}
	if agent.InLimbo() {
		return errResult("you are nowhere")
	}
	delivered, err := u.Bus.BroadcastToNode(ctx, agent.CurrentNodeID, mud.EventChat, map[string]any{
		"from":    agent.Username,
		"from_id": agent.ID,
		"message": message,
	}, agent.ID)
	if err != nil {
		return errResult("broadcast failed")
	}
	return map[string]any{"delivered": delivered}
}
