// Package skills exposes eino tools that the orchestrator can invoke as a
// decision's follow-up.
package skills

import (
	"context"
	"encoding/json"
	"fmt"
	"slices"

	"github.com/cloudwego/eino/components/tool"
	"github.com/cloudwego/eino/schema"

	logx "github.com/Chative-core-poc-v1/assistant-core/pkg/logger"
)

// Registry maps skill ids to invokable tools. It is read-only after construction.
type Registry struct {
	tools map[string]tool.InvokableTool
	infos []*schema.ToolInfo
}

func NewRegistry(ctx context.Context, tools ...tool.InvokableTool) (*Registry, error) {
	r := &Registry{tools: make(map[string]tool.InvokableTool, len(tools))}
	for _, t := range tools {
		info, err := t.Info(ctx)
		if err != nil {
			return nil, fmt.Errorf("tool info: %w", err)
		}
		if _, dup := r.tools[info.Name]; dup {
			return nil, fmt.Errorf("duplicate skill %q", info.Name)
		}
		r.tools[info.Name] = t
		r.infos = append(r.infos, info)
	}
	return r, nil
}

func (r *Registry) Has(id string) bool {
	_, ok := r.tools[id]
	return ok
}

// IDs returns the registered skill ids in sorted order.
func (r *Registry) IDs() []string {
	ids := make([]string, 0, len(r.tools))
	for id := range r.tools {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

// Infos returns the tool descriptions, e.g. for binding to a chat model.
func (r *Registry) Infos() []*schema.ToolInfo {
	return slices.Clone(r.infos)
}

// Invoke runs skill id with params encoded as the tool's JSON arguments.
func (r *Registry) Invoke(ctx context.Context, id string, params map[string]any) (string, error) {
	t, ok := r.tools[id]
	if !ok {
		return "", fmt.Errorf("unknown skill %q", id)
	}
	if params == nil {
		params = map[string]any{}
	}
	args, err := json.Marshal(params)
	if err != nil {
		return "", fmt.Errorf("encode %s arguments: %w", id, err)
	}

	out, err := t.InvokableRun(ctx, string(args))
	if err != nil {
		logx.Warn().Err(err).Str("skill", id).Msg("skill invocation failed")
		return "", fmt.Errorf("invoke %s: %w", id, err)
	}
	logx.Debug().Str("skill", id).Int("result_len", len(out)).Msg("skill invoked")
	return out, nil
}
