package agent

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/daybridge/daybridge/calendar"
	"github.com/daybridge/daybridge/fetch"
	"github.com/daybridge/daybridge/internal/clock"
	"github.com/daybridge/daybridge/knowledge"
	"github.com/daybridge/daybridge/llm"
	"github.com/daybridge/daybridge/schedule"
	"github.com/daybridge/daybridge/store"
)

// testNow is a Monday.
var testNow = time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)

type memConversationStore struct {
	mu       sync.Mutex
	messages []*store.ConversationMessage
	memory   []*store.MemoryEntry
	nextID   int32
}

func newMemConversationStore() *memConversationStore {
	return &memConversationStore{}
}

func (s *memConversationStore) CreateConversationMessage(_ context.Context, create *store.ConversationMessage) (*store.ConversationMessage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	create.ID = s.nextID
	s.messages = append(s.messages, create)
	return create, nil
}

func (s *memConversationStore) ListConversationMessages(_ context.Context, find *store.FindConversationMessage) ([]*store.ConversationMessage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []*store.ConversationMessage{}
	for _, message := range s.messages {
		if find.UID != nil && message.UID != *find.UID {
			continue
		}
		if find.ConversationUID != nil && message.ConversationUID != *find.ConversationUID {
			continue
		}
		if find.Role != nil && message.Role != *find.Role {
			continue
		}
		out = append(out, message)
	}
	return out, nil
}

func (s *memConversationStore) UpdateConversationMessage(_ context.Context, update *store.UpdateConversationMessage) (*store.ConversationMessage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, message := range s.messages {
		if message.UID == update.UID {
			if update.Payload != nil {
				message.Payload = *update.Payload
			}
			return message, nil
		}
	}
	return nil, store.ErrNotFound
}

func (s *memConversationStore) CreateMemoryEntry(_ context.Context, create *store.MemoryEntry) (*store.MemoryEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.memory = append(s.memory, create)
	return create, nil
}

func (s *memConversationStore) DeleteMemoryEntries(_ context.Context, conversationUID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	kept := s.memory[:0]
	for _, entry := range s.memory {
		if entry.ConversationUID != conversationUID {
			kept = append(kept, entry)
		}
	}
	s.memory = kept
	return nil
}

func (s *memConversationStore) ListMemoryEntries(_ context.Context, find *store.FindMemoryEntry) ([]*store.MemoryEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []*store.MemoryEntry{}
	for _, entry := range s.memory {
		if find.ConversationUID != nil && entry.ConversationUID != *find.ConversationUID {
			continue
		}
		if find.Kind != nil && entry.Kind != *find.Kind {
			continue
		}
		out = append(out, entry)
	}
	return out, nil
}

func (s *memConversationStore) lastMessage() *store.ConversationMessage {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.messages) == 0 {
		return nil
	}
	return s.messages[len(s.messages)-1]
}

type memFetchStateStore struct {
	mu     sync.Mutex
	states map[string]*store.FetchState
}

func (s *memFetchStateStore) UpsertFetchState(_ context.Context, upsert *store.FetchState) (*store.FetchState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.states == nil {
		s.states = map[string]*store.FetchState{}
	}
	s.states[upsert.ResourceKey] = upsert
	return upsert, nil
}

func (s *memFetchStateStore) GetFetchState(_ context.Context, resourceKey string) (*store.FetchState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.states[resourceKey], nil
}

// scriptedCompleter returns canned replies in order.
type scriptedCompleter struct {
	replies []string
	err     error
	calls   int
}

func (c *scriptedCompleter) Complete(_ context.Context, _ []llm.Message) (string, error) {
	if c.err != nil {
		return "", c.err
	}
	reply := c.replies[c.calls%len(c.replies)]
	c.calls++
	return reply, nil
}

type emptyRetriever struct{}

func (emptyRetriever) Search(context.Context, string, int, ...string) []knowledge.ScoredChunk {
	return nil
}

// fakeProvider is an in-memory read-write calendar.
type fakeProvider struct {
	mu        sync.Mutex
	events    map[string]calendar.EventSpec
	nextID    int
	failWith  error
	listCalls int
}

func newFakeProvider() *fakeProvider {
	return &fakeProvider{events: map[string]calendar.EventSpec{}}
}

func (p *fakeProvider) ListEvents(_ context.Context, start, end time.Time) ([]calendar.RawEvent, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.listCalls++
	out := []calendar.RawEvent{}
	for id, spec := range p.events {
		eventStart, eventEnd := spec.Start, spec.End
		if eventStart.Before(end) && start.Before(eventEnd) {
			out = append(out, calendar.RawEvent{ID: id, Title: spec.Title, Start: &eventStart, End: &eventEnd})
		}
	}
	return out, nil
}

func (p *fakeProvider) CreateEvent(_ context.Context, spec calendar.EventSpec) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.failWith != nil {
		return "", p.failWith
	}
	p.nextID++
	id := fmt.Sprintf("ev-%d", p.nextID)
	p.events[id] = spec
	return id, nil
}

func (p *fakeProvider) UpdateEvent(_ context.Context, id string, spec calendar.EventSpec) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.failWith != nil {
		return p.failWith
	}
	if _, ok := p.events[id]; !ok {
		return store.ErrNotFound
	}
	p.events[id] = spec
	return nil
}

func (p *fakeProvider) DeleteEvent(_ context.Context, id string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.failWith != nil {
		return p.failWith
	}
	delete(p.events, id)
	return nil
}

func newTestAgent(completer llm.Service, provider calendar.Provider) (*Agent, *memConversationStore) {
	conversationStore := newMemConversationStore()
	coordinator := fetch.NewCoordinator(&memFetchStateStore{}, clock.Fixed(testNow))
	return New(Config{
		Store:       conversationStore,
		Completer:   completer,
		Retriever:   emptyRetriever{},
		Coordinator: coordinator,
		Writer:      provider,
		Clock:       clock.Fixed(testNow),
	}), conversationStore
}

func TestHandleMessage_PlainAdvisoryReply(t *testing.T) {
	ctx := context.Background()
	completer := &scriptedCompleter{replies: []string{
		"Your afternoon looks manageable. Consider a short break after class.",
	}}
	agent, conversationStore := newTestAgent(completer, newFakeProvider())

	reply, err := agent.HandleMessage(ctx, "conv-1", "how does my day look?")
	require.NoError(t, err)
	assert.Nil(t, reply.Action)
	assert.Equal(t, store.MessageRoleAgent, reply.Message.Role)

	messages, err := conversationStore.ListConversationMessages(ctx, &store.FindConversationMessage{})
	require.NoError(t, err)
	require.Len(t, messages, 2)
	assert.Equal(t, store.MessageRoleUser, messages[0].Role)
}

func TestHandleMessage_ProposesAddAction(t *testing.T) {
	ctx := context.Background()
	completer := &scriptedCompleter{replies: []string{
		"I can block that time for you this afternoon.",
	}}
	agent, _ := newTestAgent(completer, newFakeProvider())

	reply, err := agent.HandleMessage(ctx, "conv-1", "Schedule time for valuation case study today at 2pm for 2 hours")
	require.NoError(t, err)

	require.NotNil(t, reply.Action)
	assert.Equal(t, ActionStatusPending, reply.Action.Status)
	assert.Equal(t, "Valuation Case Study", reply.Action.Title)
	assert.Equal(t, 120, reply.Action.DurationMinutes)
	require.NotNil(t, reply.Action.Start)
	assert.Equal(t, 14, reply.Action.Start.Hour())
	assert.Equal(t, store.MessageRoleAction, reply.Message.Role)
}

func TestHandleMessage_MoveWithoutTargetStaysPlain(t *testing.T) {
	ctx := context.Background()
	completer := &scriptedCompleter{replies: []string{
		"I can move that session to a quieter slot.",
	}}
	agent, _ := newTestAgent(completer, newFakeProvider())

	// There is no event matching "piano recital"; the proposal is
	// demoted to a plain message instead of a dangling action.
	reply, err := agent.HandleMessage(ctx, "conv-1", "move my piano recital to 6pm")
	require.NoError(t, err)
	assert.Nil(t, reply.Action)
	assert.Equal(t, store.MessageRoleAgent, reply.Message.Role)
}

func TestHandleMessage_CompleterFailureSurfacesMessage(t *testing.T) {
	ctx := context.Background()
	completer := &scriptedCompleter{err: errors.New("upstream timeout")}
	agent, _ := newTestAgent(completer, newFakeProvider())

	reply, err := agent.HandleMessage(ctx, "conv-1", "what should I do next?")
	require.NoError(t, err)
	assert.Nil(t, reply.Action)
	assert.Contains(t, reply.Message.Content, "unreachable")
	assert.Contains(t, reply.Message.Content, "try again")
}

func TestApprove_AddExecutesAndApplies(t *testing.T) {
	ctx := context.Background()
	completer := &scriptedCompleter{replies: []string{"I'll add a study block for you."}}
	provider := newFakeProvider()
	agent, _ := newTestAgent(completer, provider)

	proposal, err := agent.HandleMessage(ctx, "conv-1", "add a study block today at 4pm for 90 minutes")
	require.NoError(t, err)
	require.NotNil(t, proposal.Action)

	outcome, err := agent.Approve(ctx, "conv-1", proposal.Action.ID)
	require.NoError(t, err)
	assert.Equal(t, ActionStatusApplied, outcome.Action.Status)
	assert.Contains(t, outcome.Message.Content, "Done.")
	assert.Len(t, provider.events, 1)

	// Applied is terminal for approve.
	_, err = agent.Approve(ctx, "conv-1", proposal.Action.ID)
	var illegal *ErrIllegalTransition
	require.ErrorAs(t, err, &illegal)
	assert.Equal(t, ActionStatusApplied, illegal.From)
}

func TestApprove_FailureRevertsToPending(t *testing.T) {
	ctx := context.Background()
	provider := newFakeProvider()

	// Seed a gym event the proposal will target.
	gymStart := testNow.Add(3 * time.Hour)
	_, err := provider.CreateEvent(ctx, calendar.EventSpec{Title: "Gym", Start: gymStart, End: gymStart.Add(time.Hour)})
	require.NoError(t, err)

	completer := &scriptedCompleter{replies: []string{"I can move Gym to 18:00 for you."}}
	agent, conversationStore := newTestAgent(completer, provider)

	proposal, err := agent.HandleMessage(ctx, "conv-1", "move gym to 6pm")
	require.NoError(t, err)
	require.NotNil(t, proposal.Action)
	require.Equal(t, "Gym", proposal.Action.TargetTitle)

	// Writes start failing after the proposal was formed.
	provider.mu.Lock()
	provider.failWith = errors.New("provider rejected the write")
	provider.mu.Unlock()

	outcome, err := agent.Approve(ctx, "conv-1", proposal.Action.ID)
	require.NoError(t, err)

	assert.Equal(t, ActionStatusPending, outcome.Action.Status)
	assert.Contains(t, outcome.Action.LastError, "provider rejected the write")
	assert.Contains(t, outcome.Message.Content, "couldn't apply")
	assert.Contains(t, outcome.Message.Content, "retry")

	// The persisted action reverted too, so a later approve retries.
	persisted, err := agent.loadAction(ctx, proposal.Action.ID)
	require.NoError(t, err)
	assert.Equal(t, ActionStatusPending, persisted.Status)

	// The writes recover; re-approving succeeds.
	provider.mu.Lock()
	provider.failWith = nil
	provider.mu.Unlock()
	agent.coordinator.Invalidate(resourceKeyCalendar)

	outcome, err = agent.Approve(ctx, "conv-1", proposal.Action.ID)
	require.NoError(t, err)
	assert.Equal(t, ActionStatusApplied, outcome.Action.Status)

	messages, err := conversationStore.ListConversationMessages(ctx, &store.FindConversationMessage{})
	require.NoError(t, err)
	assert.GreaterOrEqual(t, len(messages), 4)
}

func TestReject_IsTerminal(t *testing.T) {
	ctx := context.Background()
	completer := &scriptedCompleter{replies: []string{"I can add a review session tomorrow."}}
	agent, _ := newTestAgent(completer, newFakeProvider())

	proposal, err := agent.HandleMessage(ctx, "conv-1", "add a review session tomorrow at 10am")
	require.NoError(t, err)
	require.NotNil(t, proposal.Action)

	outcome, err := agent.Reject(ctx, "conv-1", proposal.Action.ID)
	require.NoError(t, err)
	assert.Equal(t, ActionStatusRejected, outcome.Action.Status)

	_, err = agent.Approve(ctx, "conv-1", proposal.Action.ID)
	var illegal *ErrIllegalTransition
	require.ErrorAs(t, err, &illegal)

	persisted, err := agent.loadAction(ctx, proposal.Action.ID)
	require.NoError(t, err)
	assert.Equal(t, ActionStatusRejected, persisted.Status)
}

func TestResetMemory_ClearsAccumulatedEntries(t *testing.T) {
	ctx := context.Background()
	completer := &scriptedCompleter{replies: []string{"Noted, mornings it is."}}
	agent, conversationStore := newTestAgent(completer, newFakeProvider())

	_, err := agent.HandleMessage(ctx, "conv-1", "I prefer morning workouts")
	require.NoError(t, err)
	require.NotEmpty(t, conversationStore.memory)

	require.NoError(t, agent.ResetMemory(ctx, "conv-1"))
	assert.Empty(t, conversationStore.memory)
}

func TestRecommendations_SurfaceDetectedIssues(t *testing.T) {
	ctx := context.Background()
	provider := newFakeProvider()

	infoStart := time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC)
	_, err := provider.CreateEvent(ctx, calendar.EventSpec{Title: "Info Session", Start: infoStart, End: infoStart.Add(time.Hour)})
	require.NoError(t, err)
	_, err = provider.CreateEvent(ctx, calendar.EventSpec{Title: "Gym", Start: infoStart.Add(time.Hour), End: infoStart.Add(105 * time.Minute)})
	require.NoError(t, err)

	completer := &scriptedCompleter{replies: []string{"Watch out for the tight transition."}}
	agent, _ := newTestAgent(completer, provider)

	recommendations, err := agent.Recommendations(ctx)
	require.NoError(t, err)
	require.Len(t, recommendations, 1)
	assert.Equal(t, schedule.RecommendationBuffer, recommendations[0].Kind)
	assert.Equal(t, "Info Session ends at 13:00 and Gym starts immediately after.", recommendations[0].Message)
}
