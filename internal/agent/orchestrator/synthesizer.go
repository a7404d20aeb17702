package orchestrator

import (
	"cmp"
	"context"
	"fmt"
	"maps"
	"slices"
	"strings"

	"github.com/Chative-core-poc-v1/assistant-core/internal/agent/model"
	errx "github.com/Chative-core-poc-v1/assistant-core/internal/core/error"
)

const (
	DefaultMinConfidence = 0.35
	defaultWeight        = 1.0
)

// WeightedSynthesizer votes on the primary goal. Each successful analyzer adds
// confidence x weight to its goal; the highest score wins and ties go to the
// lexicographically smaller goal.
type WeightedSynthesizer struct {
	weights       map[string]float64
	minConfidence float64
}

// NewWeightedSynthesizer treats a missing or non-positive weight as 1. Decisions
// scoring below minConfidence fall back to a clarifying question.
func NewWeightedSynthesizer(weights map[string]float64, minConfidence float64) *WeightedSynthesizer {
	return &WeightedSynthesizer{weights: maps.Clone(weights), minConfidence: minConfidence}
}

func (s *WeightedSynthesizer) weight(worker string) float64 {
	if w, ok := s.weights[worker]; ok && w > 0 {
		return w
	}
	return defaultWeight
}

func (s *WeightedSynthesizer) Synthesize(_ context.Context, in model.AnalyzerInput, results map[string]model.AnalyzerResult) (*model.Decision, error) {
	workers := slices.Sorted(maps.Keys(results))

	d := &model.Decision{ExtractedParameters: map[string]any{}}

	scores := map[string]float64{}
	votes := map[string]string{}
	var total float64
	for _, w := range workers {
		r := results[w]
		if !r.OK() {
			d.Log(fmt.Sprintf("%s failed: %s", w, r.Reason))
			continue
		}
		goal := normalizeGoal(r.Payload.Goal)
		if goal == "" {
			d.Log(fmt.Sprintf("%s returned no goal", w))
			continue
		}
		weight := s.weight(w)
		conf := clamp01(r.Payload.Confidence)
		scores[goal] += conf * weight
		total += weight
		votes[w] = goal
		d.Log(fmt.Sprintf("%s voted %s (confidence %.2f, weight %.2f)", w, goal, conf, weight))
	}
	if len(votes) == 0 {
		return nil, errx.ErrNoAnalyses
	}

	var winner string
	for _, goal := range slices.Sorted(maps.Keys(scores)) {
		if winner == "" || scores[goal] > scores[winner] {
			winner = goal
		}
	}
	d.PrimaryGoal = winner
	d.Confidence = scores[winner] / total
	d.Log(fmt.Sprintf("winner %s with score %.2f of %.2f", winner, scores[winner], total))

	var supporters []*model.AnalysisPayload
	for _, w := range workers {
		if votes[w] == winner {
			supporters = append(supporters, results[w].Payload)
		}
	}

	for _, p := range supporters {
		for k, v := range p.Parameters {
			if _, ok := d.ExtractedParameters[k]; !ok {
				d.ExtractedParameters[k] = v
			}
		}
	}
	for _, p := range supporters {
		for _, e := range p.Entities {
			if _, ok := d.ExtractedParameters[e.Type]; !ok {
				d.ExtractedParameters[e.Type] = e.Value
			}
		}
	}

	d.IdentifiedTasks = mergeTasks(supporters)
	d.AlternativeInterpretations = alternatives(winner, scores, workers, results, votes)
	d.PotentialAmbiguities = mergeAmbiguities(workers, results, votes)

	d.SuggestedNextAction = pickAction(supporters)
	if d.Confidence < s.minConfidence {
		d.SuggestedNextAction = model.NextAction{
			ActionType: model.ActionClarify,
			Reason:     fmt.Sprintf("confidence %.2f below %.2f", d.Confidence, s.minConfidence),
		}
	}
	d.Log("action " + string(d.SuggestedNextAction.ActionType))
	return d, nil
}

// pickAction takes the action of the most confident supporter that proposed
// one; earlier supporters win ties.
func pickAction(supporters []*model.AnalysisPayload) model.NextAction {
	var best *model.AnalysisPayload
	for _, p := range supporters {
		if p.SuggestedAction == nil {
			continue
		}
		if best == nil || p.Confidence > best.Confidence {
			best = p
		}
	}
	if best == nil {
		return model.NextAction{ActionType: model.ActionRespond}
	}
	a := *best.SuggestedAction
	a.Actions = slices.Clone(a.Actions)
	return a
}

// mergeTasks keeps the first wording of each task across supporters.
func mergeTasks(supporters []*model.AnalysisPayload) []string {
	var tasks []string
	seen := map[string]bool{}
	for _, p := range supporters {
		for _, t := range p.Tasks {
			key := normalizeGoal(t)
			if key == "" || seen[key] {
				continue
			}
			seen[key] = true
			tasks = append(tasks, strings.TrimSpace(t))
		}
	}
	return tasks
}

// alternatives lists the losing goals by descending score, then any other
// goal an analyzer proposed as an alternative reading.
func alternatives(winner string, scores map[string]float64, workers []string, results map[string]model.AnalyzerResult, votes map[string]string) []string {
	losers := slices.Collect(maps.Keys(scores))
	losers = slices.DeleteFunc(losers, func(g string) bool { return g == winner })
	slices.SortFunc(losers, func(a, b string) int {
		if c := cmp.Compare(scores[b], scores[a]); c != 0 {
			return c
		}
		return cmp.Compare(a, b)
	})

	seen := map[string]bool{winner: true}
	var out []string
	for _, g := range losers {
		seen[g] = true
		out = append(out, g)
	}
	for _, w := range workers {
		if _, voted := votes[w]; !voted {
			continue
		}
		for _, alt := range results[w].Payload.AlternativeGoals {
			g := normalizeGoal(alt)
			if g == "" || seen[g] {
				continue
			}
			seen[g] = true
			out = append(out, g)
		}
	}
	return out
}

// mergeAmbiguities collects flags from every voter; the first reason for a
// term wins.
func mergeAmbiguities(workers []string, results map[string]model.AnalyzerResult, votes map[string]string) []model.Ambiguity {
	var out []model.Ambiguity
	seen := map[string]bool{}
	for _, w := range workers {
		if _, voted := votes[w]; !voted {
			continue
		}
		for _, a := range results[w].Payload.Ambiguities {
			key := normalizeGoal(a.Term)
			if key == "" || seen[key] {
				continue
			}
			seen[key] = true
			out = append(out, model.Ambiguity{Term: strings.TrimSpace(a.Term), Reason: a.Reason})
		}
	}
	return out
}

func normalizeGoal(g string) string {
	return strings.ToLower(strings.TrimSpace(g))
}

func clamp01(v float64) float64 {
	return min(max(v, 0), 1)
}
