package model

import "context"

type ComponentType string

const (
	ComponentTrigger ComponentType = "trigger"
	ComponentAction  ComponentType = "action"
)

// ComponentDescriptor is a registry entry that can back a workflow node.
type ComponentDescriptor struct {
	ID          string         `json:"id,omitempty"`
	Service     string         `json:"service"`
	Name        string         `json:"name"`
	Type        ComponentType  `json:"type"`
	Description string         `json:"description,omitempty"`
	InputSchema map[string]any `json:"input_schema,omitempty"`
}

// Ref is the stable reference stored on graph nodes.
func (c ComponentDescriptor) Ref() string {
	if c.ID != "" {
		return c.ID
	}
	return string(c.Type) + ":" + c.Service + ":" + c.Name
}

// ComponentRegistry resolves components. Find returns errx.ErrComponentNotFound for unknown keys.
type ComponentRegistry interface {
	Find(ctx context.Context, service, name string, typ ComponentType) (*ComponentDescriptor, error)
}

// ComponentCatalog is a registry that can also enumerate its entries.
type ComponentCatalog interface {
	ComponentRegistry
	List(ctx context.Context) ([]ComponentDescriptor, error)
}

type Position struct {
	X int `json:"x"`
	Y int `json:"y"`
}

type Node struct {
	ID           string         `json:"id"`
	ComponentRef string         `json:"component_ref"`
	Type         ComponentType  `json:"type"`
	Label        string         `json:"label"`
	Parameters   map[string]any `json:"parameters"`
	Position     Position       `json:"position"`
}

type Edge struct {
	ID     string `json:"id"`
	Source string `json:"source"`
	Target string `json:"target"`
}

// WorkflowGraph is a linear chain rooted at a single trigger node.
type WorkflowGraph struct {
	Nodes []Node `json:"nodes"`
	Edges []Edge `json:"edges"`
}

// StoredWorkflow is a persisted graph.
type StoredWorkflow struct {
	ID      string        `json:"id"`
	OwnerID string        `json:"owner_id,omitempty"`
	Graph   WorkflowGraph `json:"graph"`
}

// GraphRepository persists compiled graphs.
type GraphRepository interface {
	SaveGraph(ctx context.Context, ownerID string, graph WorkflowGraph) (string, error)
	LoadGraph(ctx context.Context, id string) (*StoredWorkflow, error)
}
