// Package workflow compiles a trigger + action sequence into a linear node graph.
package workflow

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"strconv"

	"github.com/Chative-core-poc-v1/assistant-core/internal/agent/model"
	errx "github.com/Chative-core-poc-v1/assistant-core/internal/core/error"
	"github.com/Chative-core-poc-v1/assistant-core/internal/metrics"
	logx "github.com/Chative-core-poc-v1/assistant-core/pkg/logger"
)

const (
	originX           = 250
	originY           = 50
	DefaultLayoutStep = 100
)

type CompilerOption func(*Compiler)

func WithLayoutStep(step int) CompilerOption {
	return func(c *Compiler) {
		if step > 0 {
			c.layoutStep = step
		}
	}
}

func WithMetrics(m *metrics.Metrics) CompilerOption {
	return func(c *Compiler) { c.metrics = m }
}

// Compiler resolves components from a read-only registry and never writes;
// it can be shared between goroutines.
type Compiler struct {
	registry   model.ComponentRegistry
	layoutStep int
	metrics    *metrics.Metrics
}

func NewCompiler(registry model.ComponentRegistry, opts ...CompilerOption) *Compiler {
	c := &Compiler{registry: registry, layoutStep: DefaultLayoutStep}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Compile builds the graph. Unknown actions are skipped; a missing spec or an
// unresolvable trigger fails without a partial graph.
func (c *Compiler) Compile(ctx context.Context, spec model.WorkflowSpec) (*model.WorkflowGraph, error) {
	graph, err := c.compile(ctx, spec)
	c.metrics.WorkflowCompiled(err)
	return graph, err
}

func (c *Compiler) compile(ctx context.Context, spec model.WorkflowSpec) (*model.WorkflowGraph, error) {
	if spec.Trigger == nil || spec.Actions == nil {
		logx.Error().Bool("has_trigger", spec.Trigger != nil).Bool("has_actions", spec.Actions != nil).
			Msg("workflow spec incomplete")
		return nil, errx.MissingWorkflowSpec()
	}

	trigger, err := c.registry.Find(ctx, spec.Trigger.Service, spec.Trigger.Event, model.ComponentTrigger)
	if err != nil {
		if errors.Is(err, errx.ErrComponentNotFound) {
			logx.Error().Str("service", spec.Trigger.Service).Str("event", spec.Trigger.Event).Msg("unknown workflow trigger")
			return nil, errx.UnknownTrigger(spec.Trigger.Service, spec.Trigger.Event)
		}
		return nil, fmt.Errorf("resolve trigger %s/%s: %w", spec.Trigger.Service, spec.Trigger.Event, err)
	}

	graph := &model.WorkflowGraph{
		Nodes: []model.Node{newNode(1, *trigger, spec.Trigger.Parameters, model.Position{X: originX, Y: originY})},
		Edges: []model.Edge{},
	}

	prev := graph.Nodes[0]
	for i, step := range spec.Actions {
		action, err := c.registry.Find(ctx, step.Service, step.Action, model.ComponentAction)
		if err != nil {
			if errors.Is(err, errx.ErrComponentNotFound) {
				c.metrics.ActionSkipped()
				logx.Warn().Int("index", i).Str("service", step.Service).Str("action", step.Action).
					Msg("unknown workflow action, skipping")
				continue
			}
			return nil, fmt.Errorf("resolve action %s/%s: %w", step.Service, step.Action, err)
		}

		id := len(graph.Nodes) + 1
		node := newNode(id, *action, step.Parameters, model.Position{X: originX, Y: prev.Position.Y + c.layoutStep})
		graph.Nodes = append(graph.Nodes, node)
		graph.Edges = append(graph.Edges, model.Edge{
			ID:     "e" + prev.ID + "-" + node.ID,
			Source: prev.ID,
			Target: node.ID,
		})
		prev = node
	}

	logx.Debug().Int("nodes", len(graph.Nodes)).Int("edges", len(graph.Edges)).
		Int("requested_actions", len(spec.Actions)).Msg("workflow compiled")
	return graph, nil
}

func newNode(id int, c model.ComponentDescriptor, params map[string]any, pos model.Position) model.Node {
	p := maps.Clone(params)
	if p == nil {
		p = map[string]any{}
	}
	return model.Node{
		ID:           strconv.Itoa(id),
		ComponentRef: c.Ref(),
		Type:         c.Type,
		Label:        c.Service + "." + c.Name,
		Parameters:   p,
		Position:     pos,
	}
}
