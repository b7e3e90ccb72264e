package agent

import (
	"context"
	"log/slog"
	"regexp"
	"strings"

	"github.com/daybridge/daybridge/store"
)

// preferenceRe spots statements worth keeping across turns, e.g.
// "I prefer mornings" or "never schedule over lunch".
var preferenceRe = regexp.MustCompile(`(?i)\b(i prefer|i'd rather|i like to|i hate|always|never|don't schedule|no meetings)\b`)

// MemoryStore is the slice of the store the memory recorder needs.
type MemoryStore interface {
	CreateMemoryEntry(ctx context.Context, create *store.MemoryEntry) (*store.MemoryEntry, error)
	ListMemoryEntries(ctx context.Context, find *store.FindMemoryEntry) ([]*store.MemoryEntry, error)
}

// memories is the recalled session memory, one list per kind.
type memories struct {
	preferences   []string
	recentActions []string
	contexts      []string
}

// recallMemories loads every memory list for a conversation. A store
// failure degrades to empty memory rather than blocking the reply.
func recallMemories(ctx context.Context, memoryStore MemoryStore, conversationUID string) memories {
	var recalled memories
	entries, err := memoryStore.ListMemoryEntries(ctx, &store.FindMemoryEntry{ConversationUID: &conversationUID})
	if err != nil {
		slog.Warn("agent: failed to recall memories", "conversation", conversationUID, "error", err)
		return recalled
	}
	for _, entry := range entries {
		switch entry.Kind {
		case store.MemoryKindPreference:
			recalled.preferences = append(recalled.preferences, entry.Content)
		case store.MemoryKindRecentAction:
			recalled.recentActions = append(recalled.recentActions, entry.Content)
		case store.MemoryKindContext:
			recalled.contexts = append(recalled.contexts, entry.Content)
		}
	}
	return recalled
}

// rememberPreference records a preference-shaped user statement.
func rememberPreference(ctx context.Context, memoryStore MemoryStore, conversationUID, text string, createdTs int64) {
	if !preferenceRe.MatchString(text) {
		return
	}
	content := strings.TrimSpace(text)
	if _, err := memoryStore.CreateMemoryEntry(ctx, &store.MemoryEntry{
		ConversationUID: conversationUID,
		Kind:            store.MemoryKindPreference,
		Content:         content,
		CreatedTs:       createdTs,
	}); err != nil {
		slog.Warn("agent: failed to record preference", "error", err)
	}
}

// rememberAction records an applied calendar mutation.
func rememberAction(ctx context.Context, memoryStore MemoryStore, conversationUID, summary string, createdTs int64) {
	if _, err := memoryStore.CreateMemoryEntry(ctx, &store.MemoryEntry{
		ConversationUID: conversationUID,
		Kind:            store.MemoryKindRecentAction,
		Content:         summary,
		CreatedTs:       createdTs,
	}); err != nil {
		slog.Warn("agent: failed to record action memory", "error", err)
	}
}

// rememberContext records a detected schedule issue so later turns can
// refer back to it.
func rememberContext(ctx context.Context, memoryStore MemoryStore, conversationUID, content string, createdTs int64) {
	if _, err := memoryStore.CreateMemoryEntry(ctx, &store.MemoryEntry{
		ConversationUID: conversationUID,
		Kind:            store.MemoryKindContext,
		Content:         content,
		CreatedTs:       createdTs,
	}); err != nil {
		slog.Warn("agent: failed to record context memory", "error", err)
	}
}
