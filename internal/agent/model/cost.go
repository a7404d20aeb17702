package model

import (
	"github.com/cloudwego/eino/schema"
)

// Pricing defines USD cost per 1M tokens for input/output.
type Pricing struct {
	InputPerM  float64
	OutputPerM float64
}

// defaultPricing provides USD pricing per 1M text tokens.
var defaultPricing = map[string]Pricing{
	"gemini-2.5-flash":      {InputPerM: 0.30, OutputPerM: 2.50},
	"gemini-2.5-flash-lite": {InputPerM: 0.10, OutputPerM: 0.40},
	"gemini-2.5-pro":        {InputPerM: 1.25, OutputPerM: 10.00},
}

// ResolvePricing returns pricing for a model, zero for unknown models.
func ResolvePricing(model string) Pricing {
	return defaultPricing[model]
}

// UsageCost is the cost breakdown attached to analyzer metadata.
type UsageCost struct {
	Model            string  `json:"model"`
	PromptTokens     int     `json:"prompt_tokens"`
	CompletionTokens int     `json:"completion_tokens"`
	InputCost        float64 `json:"input_cost"`
	OutputCost       float64 `json:"output_cost"`
	TotalCost        float64 `json:"total_cost"`
}

// ComputeCost converts token usage to USD cost using per-1M Pricing.
func ComputeCost(modelName string, usage *schema.TokenUsage) *UsageCost {
	if usage == nil {
		return nil
	}
	p := ResolvePricing(modelName)
	in := p.InputPerM * float64(usage.PromptTokens) / 1_000_000.0
	out := p.OutputPerM * float64(usage.CompletionTokens) / 1_000_000.0
	return &UsageCost{
		Model:            modelName,
		PromptTokens:     usage.PromptTokens,
		CompletionTokens: usage.CompletionTokens,
		InputCost:        in,
		OutputCost:       out,
		TotalCost:        in + out,
	}
}
