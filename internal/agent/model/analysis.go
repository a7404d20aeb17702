package model

import "time"

type Intent struct {
	Name       string         `json:"name"`
	Confidence float64        `json:"confidence"`
	Priority   float64        `json:"priority"`
	Metadata   map[string]any `json:"metadata,omitempty"`
}

type Entity struct {
	Type       string         `json:"type"`
	Value      string         `json:"value"`
	Confidence float64        `json:"confidence"`
	Position   []int          `json:"position,omitempty"`
	Metadata   map[string]any `json:"metadata,omitempty"`
}

type Sentiment struct {
	Label      string         `json:"label"`
	Confidence float64        `json:"confidence"`
	Metadata   map[string]any `json:"metadata,omitempty"`
}

// Ambiguity flags a term the analyzer could read more than one way.
type Ambiguity struct {
	Term   string `json:"term"`
	Reason string `json:"reason,omitempty"`
}

// AnalysisPayload is one analyzer's opinion about an utterance.
type AnalysisPayload struct {
	Goal             string         `json:"goal"`
	Confidence       float64        `json:"confidence"`
	Tasks            []string       `json:"tasks,omitempty"`
	AlternativeGoals []string       `json:"alternative_goals,omitempty"`
	Ambiguities      []Ambiguity    `json:"ambiguities,omitempty"`
	Intents          []Intent       `json:"intents,omitempty"`
	Entities         []Entity       `json:"entities,omitempty"`
	Sentiment        Sentiment      `json:"sentiment"`
	Parameters       map[string]any `json:"parameters,omitempty"`
	SuggestedAction  *NextAction    `json:"suggested_action,omitempty"`
	Metadata         map[string]any `json:"metadata,omitempty"`
	ParsingMetadata  map[string]any `json:"parsing_metadata,omitempty"`
	Timestamp        time.Time      `json:"timestamp"`
}

type ResultStatus string

const (
	ResultSuccess ResultStatus = "success"
	ResultFailure ResultStatus = "failure"
)

// AnalyzerResult is either a Success carrying Payload or a Failure carrying Reason.
type AnalyzerResult struct {
	Worker   string           `json:"worker"`
	Status   ResultStatus     `json:"status"`
	Payload  *AnalysisPayload `json:"payload,omitempty"`
	Reason   string           `json:"reason,omitempty"`
	Duration time.Duration    `json:"duration"`
}

func Success(worker string, payload *AnalysisPayload, d time.Duration) AnalyzerResult {
	return AnalyzerResult{Worker: worker, Status: ResultSuccess, Payload: payload, Duration: d}
}

func Failure(worker, reason string, d time.Duration) AnalyzerResult {
	return AnalyzerResult{Worker: worker, Status: ResultFailure, Reason: reason, Duration: d}
}

// OK reports whether the result is a Success with a payload.
func (r AnalyzerResult) OK() bool {
	return r.Status == ResultSuccess && r.Payload != nil
}
