package workflow

import (
	"cmp"
	"context"
	"slices"
	"sync"

	"github.com/Chative-core-poc-v1/assistant-core/internal/agent/model"
	errx "github.com/Chative-core-poc-v1/assistant-core/internal/core/error"
)

type componentKey struct {
	typ     model.ComponentType
	service string
	name    string
}

// MemoryRegistry is an in-process component catalog, safe for concurrent reads.
type MemoryRegistry struct {
	mu         sync.RWMutex
	components map[componentKey]model.ComponentDescriptor
}

func NewMemoryRegistry(components ...model.ComponentDescriptor) *MemoryRegistry {
	r := &MemoryRegistry{components: make(map[componentKey]model.ComponentDescriptor)}
	for _, c := range components {
		r.Register(c)
	}
	return r
}

func (r *MemoryRegistry) Register(c model.ComponentDescriptor) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.components[componentKey{c.Type, c.Service, c.Name}] = c
}

func (r *MemoryRegistry) Find(_ context.Context, service, name string, typ model.ComponentType) (*model.ComponentDescriptor, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	c, ok := r.components[componentKey{typ, service, name}]
	if !ok {
		return nil, errx.ErrComponentNotFound
	}
	return &c, nil
}

// List returns every component ordered by type, service and name.
func (r *MemoryRegistry) List(_ context.Context) ([]model.ComponentDescriptor, error) {
	r.mu.RLock()
	out := make([]model.ComponentDescriptor, 0, len(r.components))
	for _, c := range r.components {
		out = append(out, c)
	}
	r.mu.RUnlock()

	slices.SortFunc(out, func(a, b model.ComponentDescriptor) int {
		return cmp.Or(
			cmp.Compare(a.Type, b.Type),
			cmp.Compare(a.Service, b.Service),
			cmp.Compare(a.Name, b.Name),
		)
	})
	return out, nil
}

var _ model.ComponentCatalog = (*MemoryRegistry)(nil)

// DefaultCatalog is the starter set of components seeded into a fresh registry.
func DefaultCatalog() []model.ComponentDescriptor {
	str := map[string]any{"type": "string"}
	return []model.ComponentDescriptor{
		{Service: "gmail", Name: "new_email", Type: model.ComponentTrigger, Description: "Fires when a new email arrives",
			InputSchema: map[string]any{"from": str, "label": str}},
		{Service: "google_calendar", Name: "event_created", Type: model.ComponentTrigger, Description: "Fires when a calendar event is created",
			InputSchema: map[string]any{"calendar_id": str}},
		{Service: "google_calendar", Name: "event_starting", Type: model.ComponentTrigger, Description: "Fires shortly before an event starts",
			InputSchema: map[string]any{"minutes_before": map[string]any{"type": "number"}}},
		{Service: "schedule", Name: "daily", Type: model.ComponentTrigger, Description: "Fires once a day at a fixed time",
			InputSchema: map[string]any{"time": str}},
		{Service: "ai", Name: "extract_action_items", Type: model.ComponentAction, Description: "Extracts action items from text"},
		{Service: "ai", Name: "summarize", Type: model.ComponentAction, Description: "Summarizes the incoming payload"},
		{Service: "notion", Name: "create_task", Type: model.ComponentAction, Description: "Creates a task in a Notion database",
			InputSchema: map[string]any{"database_id": str, "title": str}},
		{Service: "slack", Name: "send_message", Type: model.ComponentAction, Description: "Posts a message to a Slack channel",
			InputSchema: map[string]any{"channel": str, "text": str}},
		{Service: "google_calendar", Name: "create_event", Type: model.ComponentAction, Description: "Creates a calendar event",
			InputSchema: map[string]any{"title": str, "start": str, "duration_minutes": map[string]any{"type": "number"}}},
		{Service: "gmail", Name: "send_email", Type: model.ComponentAction, Description: "Sends an email",
			InputSchema: map[string]any{"to": str, "subject": str, "body": str}},
	}
}
