package analyzers

import (
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/Chative-core-poc-v1/assistant-core/internal/agent/model"
	errx "github.com/Chative-core-poc-v1/assistant-core/internal/core/error"
	logx "github.com/Chative-core-poc-v1/assistant-core/pkg/logger"
)

const (
	recDelim = "##"
	tupDelim = "<||>"
	endDelim = "<|COMPLETE|>"
)

// basic safety limits to avoid pathological inputs
const (
	maxContentLen = 128 * 1024
	maxRecords    = 500
	maxTupleLen   = 8 * 1024
	maxMetaLen    = 4 * 1024
	maxErrSnippet = 200
)

type rawTuple struct {
	Type  string
	Parts []string
}

func parseRawTuple(s string) (*rawTuple, error) {
	if s == "" {
		return nil, fmt.Errorf("empty tuple")
	}
	if len(s) > maxTupleLen {
		return nil, fmt.Errorf("tuple too large")
	}

	s = strings.TrimSpace(s)
	if len(s) < 2 || s[0] != '(' || s[len(s)-1] != ')' {
		return nil, fmt.Errorf("invalid tuple parens")
	}
	inner := s[1 : len(s)-1]
	// at most 5 segments so trailing JSON can contain delimiters
	parts := strings.SplitN(inner, tupDelim, 5)
	if len(parts) < 2 {
		return nil, fmt.Errorf("invalid tuple parts")
	}
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	return &rawTuple{Type: parts[0], Parts: parts}, nil
}

func validText(s string) bool {
	return s != "" && utf8.ValidString(s)
}

func parseFloatInRange(s string, min, max float64) (float64, error) {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0, err
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, fmt.Errorf("invalid number")
	}
	if v < min || v > max {
		return 0, fmt.Errorf("out of range")
	}
	return v, nil
}

func parseMeta(s string) (map[string]any, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return map[string]any{}, nil
	}
	if len(s) > maxMetaLen {
		return nil, fmt.Errorf("metadata too large")
	}
	if !strings.HasPrefix(s, "{") || !strings.HasSuffix(s, "}") {
		return nil, fmt.Errorf("metadata not json object")
	}
	var m map[string]any
	if err := json.Unmarshal([]byte(s), &m); err != nil {
		return nil, err
	}
	return m, nil
}

// parseValue keeps JSON scalars typed and falls back to the raw string.
func parseValue(s string) any {
	var v any
	if err := json.Unmarshal([]byte(s), &v); err == nil {
		return v
	}
	return s
}

func optionalPart(parts []string, i int) string {
	if i < len(parts) {
		return parts[i]
	}
	return ""
}

// ParseAnalysis decodes the tuple record format an analyzer model emits.
// Bad records are reported in ParsingMetadata and skipped; the analysis only
// fails when it carries neither a goal nor an intent.
func ParseAnalysis(content string) (resp *model.AnalysisPayload, err error) {
	defer func() {
		if r := recover(); r != nil {
			logx.Error().Str("component", "analysis_parser").Msgf("panic recovered: %v", r)
			err = errx.New(fmt.Errorf("analysis parser panic"), http.StatusInternalServerError, errx.SystemErrorMessage)
			resp = nil
		}
	}()

	truncated := false
	if len(content) > maxContentLen {
		logx.Warn().
			Str("component", "analysis_parser").
			Int("max_len", maxContentLen).
			Int("orig_len", len(content)).
			Msg("content truncated due to size limit")
		content = content[:maxContentLen]
		truncated = true
	}
	if idx := strings.Index(content, endDelim); idx >= 0 {
		content = content[:idx]
	}

	resp = &model.AnalysisPayload{
		Intents:         []model.Intent{},
		Entities:        []model.Entity{},
		Parameters:      map[string]any{},
		Metadata:        map[string]any{"parser": "tuple"},
		ParsingMetadata: map[string]any{},
		Timestamp:       time.Now().UTC(),
	}

	var errs []string
	addErr := func(msg string) { errs = append(errs, msg) }

	if truncated {
		resp.ParsingMetadata["truncated"] = true
	}

	var (
		goalSet  bool
		action   *model.NextAction
		trigger  *model.TriggerSpec
		steps    []model.ActionSpec
		hasSteps bool
	)

	processed := 0
	for _, rec := range strings.Split(content, recDelim) {
		if processed >= maxRecords {
			resp.ParsingMetadata["records_capped"] = true
			logx.Warn().Str("component", "analysis_parser").Int("max_records", maxRecords).Msg("record processing capped")
			break
		}
		rec = strings.TrimSpace(rec)
		if rec == "" {
			continue
		}
		processed++

		rt, rerr := parseRawTuple(rec)
		if rerr != nil {
			addErr("bad_record: " + safeSnippet(rec))
			continue
		}

		switch rt.Type {
		case "goal":
			if len(rt.Parts) < 3 {
				addErr("goal: insufficient parts")
				continue
			}
			if !validText(rt.Parts[1]) {
				addErr("goal: invalid name")
				continue
			}
			conf, err := parseFloatInRange(rt.Parts[2], 0, 1)
			if err != nil {
				addErr("goal: invalid confidence")
				continue
			}
			if goalSet {
				addErr("goal: duplicate ignored")
				continue
			}
			resp.Goal, resp.Confidence, goalSet = rt.Parts[1], conf, true

		case "task":
			if !validText(optionalPart(rt.Parts, 1)) {
				addErr("task: invalid description")
				continue
			}
			resp.Tasks = append(resp.Tasks, rt.Parts[1])

		case "alternative":
			if !validText(optionalPart(rt.Parts, 1)) {
				addErr("alternative: invalid goal")
				continue
			}
			resp.AlternativeGoals = append(resp.AlternativeGoals, rt.Parts[1])

		case "ambiguity":
			if !validText(optionalPart(rt.Parts, 1)) {
				addErr("ambiguity: invalid term")
				continue
			}
			resp.Ambiguities = append(resp.Ambiguities, model.Ambiguity{Term: rt.Parts[1], Reason: optionalPart(rt.Parts, 2)})

		case "intent":
			if len(rt.Parts) < 4 {
				addErr("intent: insufficient parts")
				continue
			}
			if !validText(rt.Parts[1]) {
				addErr("intent: invalid name")
				continue
			}
			conf, err := parseFloatInRange(rt.Parts[2], 0, 1)
			if err != nil {
				addErr("intent: invalid confidence")
				continue
			}
			prio, err := parseFloatInRange(rt.Parts[3], 0, 1)
			if err != nil {
				addErr("intent: invalid priority")
				continue
			}
			meta, err := parseMeta(optionalPart(rt.Parts, 4))
			if err != nil {
				addErr("intent: invalid metadata json")
				meta = map[string]any{}
			}
			resp.Intents = append(resp.Intents, model.Intent{Name: rt.Parts[1], Confidence: conf, Priority: prio, Metadata: meta})

		case "entity":
			if len(rt.Parts) < 4 {
				addErr("entity: insufficient parts")
				continue
			}
			if !validText(rt.Parts[1]) || !validText(rt.Parts[2]) {
				addErr("entity: invalid type or value")
				continue
			}
			conf, err := parseFloatInRange(rt.Parts[3], 0, 1)
			if err != nil {
				addErr("entity: invalid confidence")
				continue
			}
			meta, err := parseMeta(optionalPart(rt.Parts, 4))
			if err != nil {
				addErr("entity: invalid metadata json")
				meta = map[string]any{}
			}
			e := model.Entity{Type: rt.Parts[1], Value: rt.Parts[2], Confidence: conf, Metadata: meta}
			if pos := normalizeEntityPosition(meta); len(pos) == 2 {
				e.Position = pos
			}
			resp.Entities = append(resp.Entities, e)

		case "sentiment":
			if len(rt.Parts) < 3 {
				addErr("sentiment: insufficient parts")
				continue
			}
			if !validText(rt.Parts[1]) {
				addErr("sentiment: invalid label")
				continue
			}
			conf, err := parseFloatInRange(rt.Parts[2], 0, 1)
			if err != nil {
				addErr("sentiment: invalid confidence")
				continue
			}
			meta, err := parseMeta(optionalPart(rt.Parts, 3))
			if err != nil {
				addErr("sentiment: invalid metadata json")
				meta = map[string]any{}
			}
			sanitizeSentimentMeta(meta)
			resp.Sentiment = model.Sentiment{Label: rt.Parts[1], Confidence: conf, Metadata: meta}

		case "parameter":
			if len(rt.Parts) < 3 || !validText(rt.Parts[1]) {
				addErr("parameter: invalid key")
				continue
			}
			resp.Parameters[rt.Parts[1]] = parseValue(rt.Parts[2])

		case "action":
			at := model.ActionType(rt.Parts[1])
			if !knownAction(at) {
				addErr("action: unknown type " + safeSnippet(rt.Parts[1]))
				continue
			}
			action = &model.NextAction{
				ActionType: at,
				SkillID:    optionalPart(rt.Parts, 2),
				Reason:     optionalPart(rt.Parts, 3),
			}

		case "trigger":
			if len(rt.Parts) < 3 || !validText(rt.Parts[1]) || !validText(rt.Parts[2]) {
				addErr("trigger: invalid service or event")
				continue
			}
			params, err := parseMeta(optionalPart(rt.Parts, 3))
			if err != nil {
				addErr("trigger: invalid parameters json")
				params = map[string]any{}
			}
			trigger = &model.TriggerSpec{Service: rt.Parts[1], Event: rt.Parts[2], Parameters: params}

		case "step":
			if len(rt.Parts) < 3 || !validText(rt.Parts[1]) || !validText(rt.Parts[2]) {
				addErr("step: invalid service or action")
				continue
			}
			params, err := parseMeta(optionalPart(rt.Parts, 3))
			if err != nil {
				addErr("step: invalid parameters json")
				params = map[string]any{}
			}
			steps = append(steps, model.ActionSpec{Service: rt.Parts[1], Action: rt.Parts[2], Parameters: params})
			hasSteps = true

		default:
			addErr("unknown tuple type")
		}
	}

	if len(errs) > 0 {
		resp.ParsingMetadata["parsing_errors"] = errs
	}

	// Without a goal record the primary intent stands in for it.
	if !goalSet {
		best := -1.0
		for _, it := range resp.Intents {
			if it.Confidence > best {
				best = it.Confidence
				resp.Goal, resp.Confidence = it.Name, it.Confidence
			}
		}
	}
	if resp.Goal == "" {
		return nil, fmt.Errorf("%w: no goal or intent records", errx.ErrEmptyAnalysis)
	}

	if action == nil && trigger != nil {
		action = &model.NextAction{ActionType: model.ActionCreateWorkflow}
	}
	if action != nil && action.ActionType == model.ActionCreateWorkflow {
		action.Trigger = trigger
		if hasSteps {
			action.Actions = steps
		}
	}
	resp.SuggestedAction = action

	return resp, nil
}

func knownAction(at model.ActionType) bool {
	switch at {
	case model.ActionInvokeSkill, model.ActionCreateWorkflow, model.ActionClarify, model.ActionRespond:
		return true
	}
	return false
}

func safeSnippet(s string) string {
	s = strings.TrimSpace(s)
	if len(s) <= maxErrSnippet {
		return s
	}
	return s[:maxErrSnippet]
}

func normalizeEntityPosition(meta map[string]any) []int {
	raw, ok := meta["entity_position"]
	if !ok {
		return nil
	}
	arr, ok := raw.([]any)
	if !ok || len(arr) != 2 {
		return nil
	}
	a, aok := arr[0].(float64)
	b, bok := arr[1].(float64)
	if !aok || !bok {
		return nil
	}
	start, end := int(a), int(b)
	if start < 0 || end < 0 || start > end {
		return nil
	}
	return []int{start, end}
}

func sanitizeSentimentMeta(m map[string]any) {
	if v, ok := m["polarity"].(float64); !ok || v < -1 || v > 1 || math.IsNaN(v) {
		delete(m, "polarity")
	}
	if v, ok := m["subjectivity"].(float64); !ok || v < 0 || v > 1 || math.IsNaN(v) {
		delete(m, "subjectivity")
	}
}
