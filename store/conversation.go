package store

// Message roles. An "action" message owns exactly one proposed schedule
// action, serialized into Payload.
const (
	MessageRoleUser   = "user"
	MessageRoleAgent  = "agent"
	MessageRoleAction = "action"
)

// ConversationMessage is one entry of the append-only conversation log.
type ConversationMessage struct {
	ID              int32
	UID             string
	ConversationUID string
	Role            string
	Content         string
	// Payload holds the JSON-encoded schedule action for action messages,
	// empty otherwise.
	Payload   string
	CreatedTs int64
}

// FindConversationMessage filters ListConversationMessages. Results are
// always ordered by creation time ascending; the log is never reordered.
type FindConversationMessage struct {
	UID             *string
	ConversationUID *string
	Role            *string
}

// UpdateConversationMessage replaces the payload of an action message,
// used when the owned action transitions state.
type UpdateConversationMessage struct {
	UID     string
	Payload *string
}

// Memory entry kinds, one per append-only memory list.
const (
	MemoryKindPreference   = "preference"
	MemoryKindRecentAction = "recent_action"
	MemoryKindContext      = "context"
)

// MemoryEntry is one accumulated session memory fact. Entries are only
// removed by an explicit reset of the owning conversation.
type MemoryEntry struct {
	ID              int32
	ConversationUID string
	Kind            string
	Content         string
	CreatedTs       int64
}

// FindMemoryEntry filters ListMemoryEntries.
type FindMemoryEntry struct {
	ConversationUID *string
	Kind            *string
}
