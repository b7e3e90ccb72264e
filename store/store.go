// Package store provides database access to all persisted objects: the
// local calendar, the conversation log, session memory, cached knowledge
// embeddings, and per-resource fetch state.
package store

import (
	"context"
	"errors"

	"github.com/daybridge/daybridge/internal/profile"
)

// ErrNotFound is returned when a lookup or update targets a record that
// does not exist.
var ErrNotFound = errors.New("record not found")

// Driver is the storage backend interface.
type Driver interface {
	Migrate(ctx context.Context) error
	Close() error

	// Schedule store.
	CreateSchedule(ctx context.Context, create *Schedule) (*Schedule, error)
	ListSchedules(ctx context.Context, find *FindSchedule) ([]*Schedule, error)
	UpdateSchedule(ctx context.Context, update *UpdateSchedule) (*Schedule, error)
	DeleteSchedule(ctx context.Context, uid string) error

	// Conversation store.
	CreateConversationMessage(ctx context.Context, create *ConversationMessage) (*ConversationMessage, error)
	ListConversationMessages(ctx context.Context, find *FindConversationMessage) ([]*ConversationMessage, error)
	UpdateConversationMessage(ctx context.Context, update *UpdateConversationMessage) (*ConversationMessage, error)

	// Memory store.
	CreateMemoryEntry(ctx context.Context, create *MemoryEntry) (*MemoryEntry, error)
	ListMemoryEntries(ctx context.Context, find *FindMemoryEntry) ([]*MemoryEntry, error)
	DeleteMemoryEntries(ctx context.Context, conversationUID string) error

	// Knowledge embedding store.
	UpsertKnowledgeEmbedding(ctx context.Context, upsert *KnowledgeEmbedding) (*KnowledgeEmbedding, error)
	ListKnowledgeEmbeddings(ctx context.Context, find *FindKnowledgeEmbedding) ([]*KnowledgeEmbedding, error)
	DeleteKnowledgeEmbeddings(ctx context.Context, version string) error

	// Fetch state store.
	UpsertFetchState(ctx context.Context, upsert *FetchState) (*FetchState, error)
	GetFetchState(ctx context.Context, resourceKey string) (*FetchState, error)
}

// Store provides database access to all raw objects.
type Store struct {
	profile *profile.Profile
	driver  Driver
}

// New creates a new instance of Store.
func New(driver Driver, profile *profile.Profile) *Store {
	return &Store{
		driver:  driver,
		profile: profile,
	}
}

func (s *Store) Migrate(ctx context.Context) error {
	return s.driver.Migrate(ctx)
}

func (s *Store) Close() error {
	return s.driver.Close()
}

func (s *Store) CreateSchedule(ctx context.Context, create *Schedule) (*Schedule, error) {
	return s.driver.CreateSchedule(ctx, create)
}

func (s *Store) ListSchedules(ctx context.Context, find *FindSchedule) ([]*Schedule, error) {
	return s.driver.ListSchedules(ctx, find)
}

func (s *Store) UpdateSchedule(ctx context.Context, update *UpdateSchedule) (*Schedule, error) {
	return s.driver.UpdateSchedule(ctx, update)
}

func (s *Store) DeleteSchedule(ctx context.Context, uid string) error {
	return s.driver.DeleteSchedule(ctx, uid)
}

func (s *Store) CreateConversationMessage(ctx context.Context, create *ConversationMessage) (*ConversationMessage, error) {
	return s.driver.CreateConversationMessage(ctx, create)
}

func (s *Store) ListConversationMessages(ctx context.Context, find *FindConversationMessage) ([]*ConversationMessage, error) {
	return s.driver.ListConversationMessages(ctx, find)
}

func (s *Store) UpdateConversationMessage(ctx context.Context, update *UpdateConversationMessage) (*ConversationMessage, error) {
	return s.driver.UpdateConversationMessage(ctx, update)
}

func (s *Store) CreateMemoryEntry(ctx context.Context, create *MemoryEntry) (*MemoryEntry, error) {
	return s.driver.CreateMemoryEntry(ctx, create)
}

func (s *Store) ListMemoryEntries(ctx context.Context, find *FindMemoryEntry) ([]*MemoryEntry, error) {
	return s.driver.ListMemoryEntries(ctx, find)
}

func (s *Store) DeleteMemoryEntries(ctx context.Context, conversationUID string) error {
	return s.driver.DeleteMemoryEntries(ctx, conversationUID)
}

func (s *Store) UpsertKnowledgeEmbedding(ctx context.Context, upsert *KnowledgeEmbedding) (*KnowledgeEmbedding, error) {
	return s.driver.UpsertKnowledgeEmbedding(ctx, upsert)
}

func (s *Store) ListKnowledgeEmbeddings(ctx context.Context, find *FindKnowledgeEmbedding) ([]*KnowledgeEmbedding, error) {
	return s.driver.ListKnowledgeEmbeddings(ctx, find)
}

func (s *Store) DeleteKnowledgeEmbeddings(ctx context.Context, version string) error {
	return s.driver.DeleteKnowledgeEmbeddings(ctx, version)
}

func (s *Store) UpsertFetchState(ctx context.Context, upsert *FetchState) (*FetchState, error) {
	return s.driver.UpsertFetchState(ctx, upsert)
}

func (s *Store) GetFetchState(ctx context.Context, resourceKey string) (*FetchState, error) {
	return s.driver.GetFetchState(ctx, resourceKey)
}
