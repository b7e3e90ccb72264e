package agent

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/lithammer/shortuuid/v4"

	"github.com/daybridge/daybridge/calendar"
	"github.com/daybridge/daybridge/fetch"
	"github.com/daybridge/daybridge/intent"
	"github.com/daybridge/daybridge/internal/clock"
	"github.com/daybridge/daybridge/knowledge"
	"github.com/daybridge/daybridge/llm"
	"github.com/daybridge/daybridge/schedule"
	"github.com/daybridge/daybridge/store"
)

const (
	resourceKeyCalendar    = "calendar"
	resourceKeyCourseItems = "canvas-items"

	// snapshotWindow bounds how far ahead the agent reads the calendar.
	snapshotWindow = 14 * 24 * time.Hour

	retrievalTopK   = 3
	historyMessages = 10
)

// ConversationStore is the slice of the store the agent needs.
type ConversationStore interface {
	MemoryStore
	CreateConversationMessage(ctx context.Context, create *store.ConversationMessage) (*store.ConversationMessage, error)
	ListConversationMessages(ctx context.Context, find *store.FindConversationMessage) ([]*store.ConversationMessage, error)
	UpdateConversationMessage(ctx context.Context, update *store.UpdateConversationMessage) (*store.ConversationMessage, error)
	DeleteMemoryEntries(ctx context.Context, conversationUID string) error
}

// Retriever serves grounded knowledge chunks for a query.
type Retriever interface {
	Search(ctx context.Context, query string, topK int, contextHints ...string) []knowledge.ScoredChunk
}

// Agent is the conversational orchestrator. One instance serves one
// user; transitions for the same action are serialized per action id.
type Agent struct {
	store       ConversationStore
	completer   llm.Service
	retriever   Retriever
	coordinator *fetch.Coordinator
	writer      calendar.Provider
	feeds       []calendar.Provider
	courses     calendar.CourseProvider
	detector    schedule.Detector
	clock       clock.Clock

	mu          sync.Mutex
	actionLocks map[string]*sync.Mutex
}

// Config wires the agent's collaborators. Writer is the read-write
// calendar mutations land on; Feeds are additional read-only sources.
type Config struct {
	Store       ConversationStore
	Completer   llm.Service
	Retriever   Retriever
	Coordinator *fetch.Coordinator
	Writer      calendar.Provider
	Feeds       []calendar.Provider
	Courses     calendar.CourseProvider
	Detector    schedule.Detector
	Clock       clock.Clock
}

func New(cfg Config) *Agent {
	if cfg.Clock == nil {
		cfg.Clock = clock.System()
	}
	return &Agent{
		store:       cfg.Store,
		completer:   cfg.Completer,
		retriever:   cfg.Retriever,
		coordinator: cfg.Coordinator,
		writer:      cfg.Writer,
		feeds:       cfg.Feeds,
		courses:     cfg.Courses,
		detector:    cfg.Detector,
		clock:       cfg.Clock,
		actionLocks: map[string]*sync.Mutex{},
	}
}

// Reply is the outcome of one agent turn.
type Reply struct {
	Message         *store.ConversationMessage
	Action          *ScheduleAction
	Recommendations []schedule.Recommendation
}

type snapshot struct {
	events []schedule.CalendarEvent
	items  []schedule.CourseItem
}

// HandleMessage runs one conversational turn: persist the user message,
// refresh the schedule snapshot, detect issues, retrieve guidance, ask
// the completion service, and classify the reply into a plain message
// or a pending action. Collaborator failures become conversation
// messages with a next step, never fabricated data.
func (a *Agent) HandleMessage(ctx context.Context, conversationUID, text string) (*Reply, error) {
	now := a.clock.Now()

	// History is read before the new user message lands; the prompt
	// assembly appends the message itself.
	history, err := a.loadHistory(ctx, conversationUID)
	if err != nil {
		slog.Warn("agent: failed to load history", "error", err)
	}

	if _, err := a.store.CreateConversationMessage(ctx, &store.ConversationMessage{
		UID:             shortuuid.New(),
		ConversationUID: conversationUID,
		Role:            store.MessageRoleUser,
		Content:         text,
		CreatedTs:       now.Unix(),
	}); err != nil {
		return nil, fmt.Errorf("persist user message: %w", err)
	}

	rememberPreference(ctx, a.store, conversationUID, text, now.Unix())

	snap, err := a.loadSnapshot(ctx, false)
	if err != nil {
		return a.appendAgentMessage(ctx, conversationUID,
			fmt.Sprintf("I couldn't reach your schedule data: %v. Check the connection and send your message again.", err))
	}

	recommendations := a.detector.DetectIssues(snap.events, snap.items, now)
	for _, rec := range recommendations {
		rememberContext(ctx, a.store, conversationUID, rec.Message, now.Unix())
	}

	hints := make([]string, 0, len(recommendations))
	for _, rec := range recommendations {
		hints = append(hints, rec.Message)
	}
	chunks := a.retriever.Search(ctx, text, retrievalTopK, hints...)
	recalled := recallMemories(ctx, a.store, conversationUID)

	systemPrompt := buildSystemPrompt(now, snap.events, snap.items, recommendations, chunks, recalled)
	replyText, err := a.completer.Complete(ctx, llm.FormatMessages(systemPrompt, text, history))
	if err != nil {
		reply, appendErr := a.appendAgentMessage(ctx, conversationUID,
			fmt.Sprintf("The assistant is unreachable right now: %v. Please try again in a moment.", err))
		if appendErr != nil {
			return nil, appendErr
		}
		reply.Recommendations = recommendations
		return reply, nil
	}

	if actionType, ok := classifyReply(replyText); ok {
		if action := a.buildAction(actionType, text, replyText, snap, now); action != nil {
			reply, err := a.appendActionMessage(ctx, conversationUID, replyText, action)
			if err != nil {
				return nil, err
			}
			reply.Recommendations = recommendations
			return reply, nil
		}
	}

	reply, err := a.appendAgentMessage(ctx, conversationUID, replyText)
	if err != nil {
		return nil, err
	}
	reply.Recommendations = recommendations
	return reply, nil
}

// buildAction extracts slots from the user text and binds a target
// event for move/cancel proposals. Returns nil when no safe action can
// be formed, which demotes the reply to a plain message.
func (a *Agent) buildAction(actionType intent.ActionType, userText, replyText string, snap snapshot, now time.Time) *ScheduleAction {
	draft := intent.Parse(userText, now)

	action := &ScheduleAction{
		ID:              shortuuid.New(),
		Type:            actionType,
		Status:          ActionStatusPending,
		Title:           draft.Title,
		DurationMinutes: draft.DurationMinutes,
		RawText:         userText,
	}
	if draft.HasTime {
		start, end := draft.StartEnd()
		action.Start = &start
		action.End = &end
	}

	if actionType == intent.ActionMove || actionType == intent.ActionCancel || actionType == intent.ActionReplace {
		target, ok := resolveTarget(snap.events, draft.Title)
		if !ok {
			slog.Debug("agent: no target event for proposal", "type", actionType, "title", draft.Title)
			return nil
		}
		action.TargetEventID = target.ID
		action.TargetTitle = target.Title
	}
	return action
}

// resolveTarget finds the event a move/cancel proposal refers to by
// case-insensitive title containment, preferring the earliest match.
func resolveTarget(events []schedule.CalendarEvent, title string) (schedule.CalendarEvent, bool) {
	needle := strings.ToLower(strings.TrimSpace(title))
	if needle == "" {
		return schedule.CalendarEvent{}, false
	}
	for _, event := range events {
		haystack := strings.ToLower(event.Title)
		if strings.Contains(haystack, needle) || strings.Contains(needle, haystack) {
			return event, true
		}
	}
	return schedule.CalendarEvent{}, false
}

// Approve moves a pending action to approved and executes it. On
// execution failure the action reverts to pending with the error
// recorded, so the user may approve again or reject.
func (a *Agent) Approve(ctx context.Context, conversationUID, actionID string) (*Reply, error) {
	unlock := a.lockAction(actionID)
	defer unlock()

	action, err := a.loadAction(ctx, actionID)
	if err != nil {
		return nil, err
	}
	if err := action.transition(ActionStatusApproved); err != nil {
		return nil, err
	}
	if err := a.saveAction(ctx, action); err != nil {
		return nil, err
	}

	now := a.clock.Now()
	summary, execErr := a.execute(ctx, action)
	if execErr != nil {
		// Revert; the pending action stays open for retry or decline.
		if err := action.transition(ActionStatusPending); err != nil {
			return nil, err
		}
		action.LastError = execErr.Error()
		if err := a.saveAction(ctx, action); err != nil {
			return nil, err
		}
		reply, err := a.appendAgentMessage(ctx, conversationUID,
			fmt.Sprintf("I couldn't apply %q: %v. Approve again to retry, or reject the change.", action.Title, execErr))
		if err != nil {
			return nil, err
		}
		reply.Action = action
		return reply, nil
	}

	if err := action.transition(ActionStatusApplied); err != nil {
		return nil, err
	}
	action.LastError = ""
	if err := a.saveAction(ctx, action); err != nil {
		return nil, err
	}

	a.coordinator.Invalidate(resourceKeyCalendar)
	rememberAction(ctx, a.store, conversationUID, summary, now.Unix())

	reply, err := a.appendAgentMessage(ctx, conversationUID, summary)
	if err != nil {
		return nil, err
	}
	reply.Action = action
	return reply, nil
}

// Reject declines a pending action. Rejected is terminal.
func (a *Agent) Reject(ctx context.Context, conversationUID, actionID string) (*Reply, error) {
	unlock := a.lockAction(actionID)
	defer unlock()

	action, err := a.loadAction(ctx, actionID)
	if err != nil {
		return nil, err
	}
	if err := action.transition(ActionStatusRejected); err != nil {
		return nil, err
	}
	if err := a.saveAction(ctx, action); err != nil {
		return nil, err
	}

	reply, err := a.appendAgentMessage(ctx, conversationUID,
		fmt.Sprintf("Okay, I won't change %q.", action.Title))
	if err != nil {
		return nil, err
	}
	reply.Action = action
	return reply, nil
}

// execute re-reads the calendar before mutating and performs the
// action's mutation against the writer provider. Returns a user-facing
// confirmation on success.
func (a *Agent) execute(ctx context.Context, action *ScheduleAction) (string, error) {
	// Fresh snapshot: another approved action may have landed since
	// this one was proposed.
	snap, err := a.loadSnapshot(ctx, true)
	if err != nil {
		return "", err
	}
	for _, rec := range a.detector.DetectIssues(snap.events, snap.items, a.clock.Now()) {
		slog.Info("agent: issue present at execution time", "action", action.ID, "kind", rec.Kind, "message", rec.Message)
	}

	var spec calendar.EventSpec
	var start time.Time
	if action.Type != intent.ActionCancel {
		var end time.Time
		start, end, err = a.resolveInstants(action)
		if err != nil {
			return "", err
		}
		spec = calendar.EventSpec{Title: action.Title, Start: start, End: end}
	}

	switch action.Type {
	case intent.ActionAdd:
		if _, err := a.writer.CreateEvent(ctx, spec); err != nil {
			return "", err
		}
		return fmt.Sprintf("Done. %q is on your calendar for %s.", action.Title, start.Format("Monday 15:04")), nil

	case intent.ActionMove:
		targetID, err := a.resolveTargetID(action, snap)
		if err != nil {
			return "", err
		}
		spec.Title = action.TargetTitle
		if err := a.writer.UpdateEvent(ctx, targetID, spec); err != nil {
			return "", err
		}
		return fmt.Sprintf("Done. %q now starts at %s.", action.TargetTitle, start.Format("Monday 15:04")), nil

	case intent.ActionCancel:
		targetID, err := a.resolveTargetID(action, snap)
		if err != nil {
			return "", err
		}
		if err := a.writer.DeleteEvent(ctx, targetID); err != nil {
			return "", err
		}
		return fmt.Sprintf("Done. %q has been removed from your calendar.", action.TargetTitle), nil

	case intent.ActionReplace:
		targetID, err := a.resolveTargetID(action, snap)
		if err != nil {
			return "", err
		}
		if err := a.writer.DeleteEvent(ctx, targetID); err != nil {
			return "", err
		}
		if _, err := a.writer.CreateEvent(ctx, spec); err != nil {
			return "", fmt.Errorf("removed %q but creating the replacement failed: %w", action.TargetTitle, err)
		}
		return fmt.Sprintf("Done. Replaced %q with %q at %s.", action.TargetTitle, action.Title, start.Format("Monday 15:04")), nil
	}
	return "", fmt.Errorf("unknown action type %q", action.Type)
}

// resolveInstants returns the concrete start/end for execution, falling
// back to re-parsing the original user text when slots are incomplete.
func (a *Agent) resolveInstants(action *ScheduleAction) (time.Time, time.Time, error) {
	if action.Start != nil && action.End != nil {
		return *action.Start, *action.End, nil
	}
	draft := intent.Parse(action.RawText, a.clock.Now())
	start, end := draft.StartEnd()
	if start.IsZero() {
		return time.Time{}, time.Time{}, fmt.Errorf("no usable time in %q", action.RawText)
	}
	return start, end, nil
}

// resolveTargetID re-binds the target against the fresh snapshot; the
// originally bound event may have moved or vanished since proposal.
func (a *Agent) resolveTargetID(action *ScheduleAction, snap snapshot) (string, error) {
	for _, event := range snap.events {
		if event.ID == action.TargetEventID {
			return event.ID, nil
		}
	}
	if target, ok := resolveTarget(snap.events, action.TargetTitle); ok {
		return target.ID, nil
	}
	return "", fmt.Errorf("event %q no longer exists", action.TargetTitle)
}

// loadSnapshot fetches raw events and course items through the fetch
// coordinator and normalizes them.
func (a *Agent) loadSnapshot(ctx context.Context, force bool) (snapshot, error) {
	now := a.clock.Now()
	windowStart := now.Add(-24 * time.Hour)
	windowEnd := now.Add(snapshotWindow)

	rawEvents, err := fetch.Do(ctx, a.coordinator, resourceKeyCalendar, fetch.DefaultTTL, force,
		func(ctx context.Context) ([]calendar.RawEvent, error) {
			merged := []calendar.RawEvent{}
			providers := append([]calendar.Provider{a.writer}, a.feeds...)
			for _, provider := range providers {
				events, err := provider.ListEvents(ctx, windowStart, windowEnd)
				if err != nil {
					return nil, err
				}
				merged = append(merged, events...)
			}
			return merged, nil
		})
	if err != nil {
		return snapshot{}, err
	}

	var rawItems []calendar.RawItem
	if a.courses != nil {
		rawItems, err = fetch.Do(ctx, a.coordinator, resourceKeyCourseItems, fetch.DefaultTTL, force,
			func(ctx context.Context) ([]calendar.RawItem, error) {
				return a.courses.ListCourseItems(ctx)
			})
		if err != nil {
			return snapshot{}, err
		}
	}

	return snapshot{
		events: schedule.NormalizeEvents(rawEvents),
		items:  schedule.NormalizeItems(rawItems),
	}, nil
}

// Refresh forces the next snapshot to hit the providers. Used by the
// periodic refresher.
func (a *Agent) Refresh(ctx context.Context) error {
	_, err := a.loadSnapshot(ctx, true)
	return err
}

// Recommendations returns the current detector output for the snapshot.
func (a *Agent) Recommendations(ctx context.Context) ([]schedule.Recommendation, error) {
	snap, err := a.loadSnapshot(ctx, false)
	if err != nil {
		return nil, err
	}
	return a.detector.DetectIssues(snap.events, snap.items, a.clock.Now()), nil
}

// Events returns the normalized calendar snapshot.
func (a *Agent) Events(ctx context.Context) ([]schedule.CalendarEvent, error) {
	snap, err := a.loadSnapshot(ctx, false)
	if err != nil {
		return nil, err
	}
	return snap.events, nil
}

// CourseItems returns the normalized course items. A non-nil from
// restricts the list to items anchored in that month or later, which
// necessarily excludes undated items.
func (a *Agent) CourseItems(ctx context.Context, from *time.Time) ([]schedule.CourseItem, error) {
	snap, err := a.loadSnapshot(ctx, false)
	if err != nil {
		return nil, err
	}
	if from == nil {
		return snap.items, nil
	}
	return schedule.FilterItemsFrom(snap.items, *from), nil
}

// ResetMemory clears every accumulated memory list for a conversation.
// This is the only way memory entries are removed.
func (a *Agent) ResetMemory(ctx context.Context, conversationUID string) error {
	return a.store.DeleteMemoryEntries(ctx, conversationUID)
}

// Messages returns the conversation log in receipt order.
func (a *Agent) Messages(ctx context.Context, conversationUID string) ([]*store.ConversationMessage, error) {
	return a.store.ListConversationMessages(ctx, &store.FindConversationMessage{ConversationUID: &conversationUID})
}

func (a *Agent) loadHistory(ctx context.Context, conversationUID string) ([]llm.Message, error) {
	messages, err := a.store.ListConversationMessages(ctx, &store.FindConversationMessage{ConversationUID: &conversationUID})
	if err != nil {
		return nil, err
	}
	if len(messages) > historyMessages {
		messages = messages[len(messages)-historyMessages:]
	}
	history := make([]llm.Message, 0, len(messages))
	for _, message := range messages {
		switch message.Role {
		case store.MessageRoleUser:
			history = append(history, llm.UserMessage(message.Content))
		case store.MessageRoleAgent, store.MessageRoleAction:
			history = append(history, llm.AssistantMessage(message.Content))
		}
	}
	return history, nil
}

func (a *Agent) appendAgentMessage(ctx context.Context, conversationUID, content string) (*Reply, error) {
	message, err := a.store.CreateConversationMessage(ctx, &store.ConversationMessage{
		UID:             shortuuid.New(),
		ConversationUID: conversationUID,
		Role:            store.MessageRoleAgent,
		Content:         content,
		CreatedTs:       a.clock.Now().Unix(),
	})
	if err != nil {
		return nil, fmt.Errorf("persist agent message: %w", err)
	}
	return &Reply{Message: message}, nil
}

func (a *Agent) appendActionMessage(ctx context.Context, conversationUID, content string, action *ScheduleAction) (*Reply, error) {
	payload, err := action.marshal()
	if err != nil {
		return nil, err
	}
	message, err := a.store.CreateConversationMessage(ctx, &store.ConversationMessage{
		UID:             action.ID,
		ConversationUID: conversationUID,
		Role:            store.MessageRoleAction,
		Content:         content,
		Payload:         payload,
		CreatedTs:       a.clock.Now().Unix(),
	})
	if err != nil {
		return nil, fmt.Errorf("persist action message: %w", err)
	}
	return &Reply{Message: message, Action: action}, nil
}

// loadAction reads an action back from its conversation message.
func (a *Agent) loadAction(ctx context.Context, actionID string) (*ScheduleAction, error) {
	messages, err := a.store.ListConversationMessages(ctx, &store.FindConversationMessage{UID: &actionID})
	if err != nil {
		return nil, fmt.Errorf("load action %s: %w", actionID, err)
	}
	if len(messages) == 0 || messages[0].Payload == "" {
		return nil, fmt.Errorf("action %s: %w", actionID, store.ErrNotFound)
	}
	return unmarshalAction(messages[0].Payload)
}

func (a *Agent) saveAction(ctx context.Context, action *ScheduleAction) error {
	payload, err := action.marshal()
	if err != nil {
		return err
	}
	if _, err := a.store.UpdateConversationMessage(ctx, &store.UpdateConversationMessage{
		UID:     action.ID,
		Payload: &payload,
	}); err != nil {
		return fmt.Errorf("save action %s: %w", action.ID, err)
	}
	return nil
}

// lockAction serializes transitions per action id.
func (a *Agent) lockAction(actionID string) func() {
	a.mu.Lock()
	lock, ok := a.actionLocks[actionID]
	if !ok {
		lock = &sync.Mutex{}
		a.actionLocks[actionID] = lock
	}
	a.mu.Unlock()
	lock.Lock()
	return lock.Unlock
}
