package model

import "time"

// ================ Config ================
type ConversationConfig struct {
	IdleTimeout    time.Duration `envconfig:"CONVERSATION_IDLE_TIMEOUT" default:"30s"`
	MaxTurns       int           `envconfig:"CONVERSATION_MAX_TURNS" default:"20"`
	ShortTermTurns int           `envconfig:"CONVERSATION_SHORT_TERM_TURNS" default:"10"`
	SnapshotTTL    time.Duration `envconfig:"CONVERSATION_SNAPSHOT_TTL" default:"15m"`
}

type AnalyzerModelConfig struct {
	Model          string  `envconfig:"ANALYZER_MODEL" default:"gemini-2.5-flash-lite"`
	MaxTokens      int     `envconfig:"ANALYZER_MAX_TOKENS" default:"2000"`
	Temperature    float32 `envconfig:"ANALYZER_TEMPERATURE" default:"0.2"`
	ThinkingBudget int32   `envconfig:"ANALYZER_THINKING_BUDGET" default:"0"`
}

type OrchestratorConfig struct {
	Roster          []string           `envconfig:"ANALYZER_ROSTER" default:"analytical,creative,practical,scheduling,automation"`
	AnalyzerTimeout time.Duration      `envconfig:"ANALYZER_TIMEOUT" default:"20s"`
	Weights         map[string]float64 `envconfig:"ANALYZER_WEIGHTS" default:"analytical:1.2,practical:1.0,creative:0.8"`
	MinConfidence   float64            `envconfig:"SYNTHESIS_MIN_CONFIDENCE" default:"0.35"`
}

type WorkflowConfig struct {
	LayoutStep  int           `envconfig:"WORKFLOW_LAYOUT_STEP" default:"100"`
	SeedCatalog bool          `envconfig:"WORKFLOW_SEED_CATALOG" default:"true"`
	GraphTTL    time.Duration `envconfig:"WORKFLOW_GRAPH_TTL" default:"0"`
}
