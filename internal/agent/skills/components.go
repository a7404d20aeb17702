package skills

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/cloudwego/eino/components/tool"
	"github.com/cloudwego/eino/components/tool/utils"
	"github.com/cloudwego/eino/schema"

	"github.com/Chative-core-poc-v1/assistant-core/internal/agent/model"
	errx "github.com/Chative-core-poc-v1/assistant-core/internal/core/error"
)

const (
	SkillSearchComponents  = "search_components"
	SkillDescribeComponent = "describe_component"

	defaultMaxResults = 10
	maxResultsLimit   = 50
)

type SearchComponentsInput struct {
	Query      string `json:"query,omitempty"`
	Type       string `json:"type,omitempty"`
	MaxResults int    `json:"max_results,omitempty"`
}

type SearchComponentsOutput struct {
	Components []model.ComponentDescriptor `json:"components"`
	Total      int                         `json:"total"`
}

func NewSearchComponentsTool(catalog model.ComponentCatalog) tool.InvokableTool {
	return utils.NewTool(
		&schema.ToolInfo{
			Name: SkillSearchComponents,
			Desc: "Search the automation component catalog. Matches service, name and description. Use it when the user asks which triggers or actions are available.",
			ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{
				"query": {
					Type: "string",
					Desc: "Keywords such as a service name (gmail, slack) or a capability (summarize).",
				},
				"type": {
					Type: "string",
					Desc: "Optional filter: trigger or action.",
					Enum: []string{string(model.ComponentTrigger), string(model.ComponentAction)},
				},
				"max_results": {
					Type: "number",
					Desc: "Maximum number of components to return (default: 10, max: 50)",
				},
			}),
		},
		func(ctx context.Context, in *SearchComponentsInput) (*SearchComponentsOutput, error) {
			all, err := catalog.List(ctx)
			if err != nil {
				return nil, fmt.Errorf("list components: %w", err)
			}

			limit := in.MaxResults
			if limit <= 0 {
				limit = defaultMaxResults
			}
			limit = min(limit, maxResultsLimit)

			q := strings.ToLower(strings.TrimSpace(in.Query))
			matched := []model.ComponentDescriptor{}
			for _, c := range all {
				if in.Type != "" && !strings.EqualFold(string(c.Type), in.Type) {
					continue
				}
				if q != "" &&
					!strings.Contains(strings.ToLower(c.Service), q) &&
					!strings.Contains(strings.ToLower(c.Name), q) &&
					!strings.Contains(strings.ToLower(c.Description), q) {
					continue
				}
				matched = append(matched, c)
			}

			total := len(matched)
			if len(matched) > limit {
				matched = matched[:limit]
			}
			return &SearchComponentsOutput{Components: matched, Total: total}, nil
		},
	)
}

type DescribeComponentInput struct {
	Service string `json:"service"`
	Name    string `json:"name"`
	Type    string `json:"type,omitempty"`
}

type DescribeComponentOutput struct {
	Found     bool                       `json:"found"`
	Component *model.ComponentDescriptor `json:"component,omitempty"`
}

func NewDescribeComponentTool(registry model.ComponentRegistry) tool.InvokableTool {
	return utils.NewTool(
		&schema.ToolInfo{
			Name: SkillDescribeComponent,
			Desc: "Look up one automation component by service and name and return its description and input schema.",
			ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{
				"service": {Type: "string", Desc: "Service id, e.g. gmail", Required: true},
				"name":    {Type: "string", Desc: "Event or action name, e.g. new_email", Required: true},
				"type": {
					Type: "string",
					Desc: "trigger or action; both are tried when omitted",
					Enum: []string{string(model.ComponentTrigger), string(model.ComponentAction)},
				},
			}),
		},
		func(ctx context.Context, in *DescribeComponentInput) (*DescribeComponentOutput, error) {
			if in.Service == "" || in.Name == "" {
				return nil, fmt.Errorf("service and name are required")
			}
			types := []model.ComponentType{model.ComponentTrigger, model.ComponentAction}
			if in.Type != "" {
				types = []model.ComponentType{model.ComponentType(strings.ToLower(in.Type))}
			}
			for _, typ := range types {
				c, err := registry.Find(ctx, in.Service, in.Name, typ)
				if errors.Is(err, errx.ErrComponentNotFound) {
					continue
				}
				if err != nil {
					return nil, err
				}
				return &DescribeComponentOutput{Found: true, Component: c}, nil
			}
			return &DescribeComponentOutput{Found: false}, nil
		},
	)
}

// CatalogTools returns every catalog-backed skill.
func CatalogTools(catalog model.ComponentCatalog) []tool.InvokableTool {
	return []tool.InvokableTool{
		NewSearchComponentsTool(catalog),
		NewDescribeComponentTool(catalog),
	}
}
