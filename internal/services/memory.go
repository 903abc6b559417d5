package services

import (
	"context"
	"strings"

	"github.com/cepa-dev/cepa-chat/internal/core"
	"github.com/cepa-dev/cepa-chat/internal/models"
)

// memoryWindow bounds conversation memory to the last 5 user/assistant pairs.
const memoryWindow = 10

// BuildConversationContext renders the session's recent history as a text
// block for prompt conditioning. Missing or unknown sessions yield an empty
// string, never an error.
func BuildConversationContext(ctx context.Context, dbclient core.DbClient, sessionID string) string {
	if sessionID == "" {
		return ""
	}

	session, err := dbclient.GetChatSessionByID(ctx, sessionID)
	if err != nil || session == nil {
		return ""
	}

	recent, err := dbclient.GetRecentMessages(ctx, sessionID, memoryWindow)
	if err != nil || len(recent) == 0 {
		return ""
	}

	var b strings.Builder
	b.WriteString("\n\nPrevious conversation:\n")
	// recent is newest first; replay in chronological order.
	for i := len(recent) - 1; i >= 0; i-- {
		msg := recent[i]
		role := "User"
		if msg.MessageType == models.MessageTypeAssistant {
			role = "Assistant"
		}
		b.WriteString(role)
		b.WriteString(": ")
		b.WriteString(msg.Content)
		b.WriteString("\n")
	}
	return b.String()
}
