package agents

import (
	"encoding/json"
	"fmt"
	"strings"

	"startupops/internal/stage"
)

var systemPrompts = map[stage.Name]string{
	stage.Product: `You are the product co-founder of an early-stage startup.
Turn the founder's goal into an MVP scope and an ordered list of product tasks.
Return JSON with "core_concept", "mvp_features", "tasks" and
"recommended_launch_timeline_days".`,
	stage.Tech: `You are the technical co-founder of an early-stage startup.
Given the product output, choose a tech stack and list the engineering tasks.
Return JSON with "tech_stack", "tasks" and "technical_risks".`,
	stage.Marketing: `You are the marketing lead of an early-stage startup.
Given the product output and launch timeline, plan the go-to-market work.
Return JSON with "positioning", "target_segments", "kpis" and "tasks".`,
	stage.Finance: `You are the finance lead of an early-stage startup.
Given the combined product and engineering tasks, estimate budget and runway.
Return JSON with "budget_allocation", "burn_rate", "runway", "kpis" and "tasks".`,
	stage.Advisor: `You are a seasoned startup advisor reviewing a complete launch plan.
Assess execution health and raise the risks the founders should act on.
Return JSON with "execution_health", "alerts" and "recommendations".`,
}

const taskContract = `
Every entry of "tasks" is an object with "title", "description", "priority"
(1-5), "estimated_days" (> 0) and "dependencies": a list of 0-based indices
of earlier tasks in the same list. Output ONLY valid JSON, no markdown.`

// SystemPrompt returns the system prompt for a stage.
func SystemPrompt(name stage.Name) string {
	return strings.TrimSpace(systemPrompts[name]) + "\n" + strings.TrimSpace(taskContract)
}

// UserPrompt renders the stage input for the model.
func UserPrompt(input map[string]any) (string, error) {
	data, err := json.MarshalIndent(input, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal input: %w", err)
	}
	return "Analyze the following input and provide your structured JSON response:\n\n" + string(data), nil
}

// resultSchema is the JSON schema every stage result must satisfy.
const resultSchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "additionalProperties": true,
  "properties": {
    "tasks": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["title"],
        "properties": {
          "title": { "type": "string" },
          "description": { "type": "string" },
          "priority": { "type": "integer", "minimum": 1, "maximum": 5 },
          "estimated_days": { "type": "number", "exclusiveMinimum": 0 },
          "dependencies": { "type": "array", "items": { "type": "integer", "minimum": 0 } }
        }
      }
    }
  }
}
`

// parseContent decodes a model reply, tolerating a fenced code block around
// the JSON object.
func parseContent(content string) (stage.Result, error) {
	s := strings.TrimSpace(content)
	if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```json")
		s = strings.TrimPrefix(s, "```")
		s = strings.TrimSuffix(strings.TrimSpace(s), "```")
		s = strings.TrimSpace(s)
	}
	var r stage.Result
	if err := json.Unmarshal([]byte(s), &r); err != nil {
		preview := s
		if len(preview) > 200 {
			preview = preview[:200]
		}
		return nil, fmt.Errorf("invalid JSON response: %w (content: %q)", err, preview)
	}
	if r == nil {
		return nil, fmt.Errorf("invalid JSON response: not an object")
	}
	return r, nil
}
