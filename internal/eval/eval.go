// Package eval asks a backend to score how well a reply satisfied its
// prompt and parses the verdict, tolerating backends that answer in
// prose instead of the requested JSON.
package eval

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/avaricia/agentflow/internal/adapter"
	"github.com/avaricia/agentflow/internal/plan"
)

const judgePromptFormat = `You are an impartial self-evaluation judge. Score how well the assistant's reply satisfies the original prompt. The score must be a float between 0.0 and 1.0 inclusive, where 1.0 represents a perfect answer.
Respond STRICTLY with a single-line JSON object of the form {"score": <float>, "justification": "<concise reasoning>"}.
Do not emit any extra text, markdown, or code fences. If you cannot evaluate, still return JSON with score 0.0.
Conversation to evaluate:
User:
<<<
%s
>>>
Assistant:
<<<
%s
>>>
`

// Verdict is the parsed outcome of a self-evaluation.
type Verdict struct {
	// Score is in [0, 1]; nil when the judge's reply carried no score.
	Score *float64

	// Justification is the judge's reasoning, when present.
	Justification string

	// RawMessage is the judge's reply verbatim.
	RawMessage string

	// Usage carries the judge invocation's token accounting.
	Usage map[string]any

	// Err describes a judge invocation or parse failure. Evaluation
	// failures never fail the evaluated node.
	Err string
}

// JudgePrompt renders the evaluation prompt for a prompt/response pair.
func JudgePrompt(prompt, response string) string {
	return fmt.Sprintf(judgePromptFormat, prompt, response)
}

// Evaluate runs the judge against the backend and parses its verdict.
// The returned Verdict is never nil.
func Evaluate(ctx context.Context, backend adapter.Adapter, prompt, response string) *Verdict {
	result, err := backend.Run(ctx, plan.Payload{Prompt: JudgePrompt(prompt, response)}, adapter.Options{})
	if err != nil {
		return &Verdict{Err: fmt.Sprintf("self-evaluation failed: %v", err)}
	}

	verdict := ParsePayload(result.Message)
	verdict.RawMessage = result.Message
	verdict.Usage = result.Usage
	return verdict
}

// Outputs flattens the verdict into a node result outputs map.
func (v *Verdict) Outputs() map[string]any {
	outputs := map[string]any{"raw_message": v.RawMessage}
	if v.Score != nil {
		outputs["score"] = *v.Score
	}
	if v.Justification != "" {
		outputs["justification"] = v.Justification
	}
	if v.Err != "" {
		outputs["error"] = v.Err
	}
	if len(v.Usage) > 0 {
		outputs["usage"] = v.Usage
	}
	return outputs
}

type jsonVerdict struct {
	Score         any    `json:"score"`
	Justification string `json:"justification"`
	Reasoning     string `json:"reasoning"`
}

// ParsePayload reads a verdict from the judge's reply. A fenced or bare
// JSON object wins; otherwise plaintext heuristics look for score and
// justification lines.
func ParsePayload(message string) *Verdict {
	candidate := strings.TrimSpace(message)
	if strings.HasPrefix(candidate, "```") {
		candidate = strings.Trim(candidate, "`")
		if idx := strings.Index(candidate, "\n"); idx >= 0 {
			candidate = candidate[idx+1:]
		}
	}

	var parsed jsonVerdict
	if err := json.Unmarshal([]byte(candidate), &parsed); err != nil {
		if verdict := parsePlaintext(message); verdict != nil {
			return verdict
		}
		return &Verdict{Err: "self-evaluation response was not valid JSON"}
	}

	verdict := &Verdict{}
	switch score := parsed.Score.(type) {
	case float64:
		verdict.Score = &score
	case string:
		if value, err := strconv.ParseFloat(score, 64); err == nil {
			verdict.Score = &value
		}
	}

	justification := parsed.Justification
	if justification == "" {
		justification = parsed.Reasoning
	}
	verdict.Justification = strings.TrimSpace(justification)
	return verdict
}

var numberPattern = regexp.MustCompile(`[0-9]+(?:\.[0-9]+)?`)

func parsePlaintext(message string) *Verdict {
	var score *float64
	var justificationParts []string

	lines := strings.Split(message, "\n")
	for index, rawLine := range lines {
		line := strings.TrimSpace(rawLine)
		if line == "" {
			continue
		}
		normalized := strings.TrimSpace(strings.TrimLeft(line, "-*"))
		lower := strings.ToLower(normalized)

		if strings.HasPrefix(lower, "score") {
			if match := numberPattern.FindString(normalized); match != "" {
				if value, err := strconv.ParseFloat(match, 64); err == nil {
					score = &value
				}
			}
			continue
		}

		if numberPattern.FindString(normalized) == normalized {
			if value, err := strconv.ParseFloat(normalized, 64); err == nil {
				score = &value
			}
			continue
		}

		if hasJustificationPrefix(lower) {
			text := normalized
			if idx := strings.Index(normalized, ":"); idx >= 0 {
				text = strings.TrimSpace(normalized[idx+1:])
			}
			if text != "" {
				justificationParts = append(justificationParts, text)
			}
			for _, follow := range lines[index+1:] {
				followLine := strings.TrimSpace(follow)
				if followLine == "" {
					continue
				}
				followNormalized := strings.TrimSpace(strings.TrimLeft(followLine, "-*"))
				followLower := strings.ToLower(followNormalized)
				if strings.HasPrefix(followLower, "score") || hasJustificationPrefix(followLower) {
					break
				}
				justificationParts = append(justificationParts, followNormalized)
			}
			break
		}
	}

	if score == nil {
		return nil
	}
	return &Verdict{
		Score:         score,
		Justification: strings.TrimSpace(strings.Join(justificationParts, " ")),
	}
}

func hasJustificationPrefix(lower string) bool {
	return strings.HasPrefix(lower, "reason") ||
		strings.HasPrefix(lower, "justification") ||
		strings.HasPrefix(lower, "rationale")
}
