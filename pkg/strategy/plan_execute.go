// Copyright 2025 Kadir Pekel
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package strategy

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/fenwick-ai/agentrt/pkg/agentrt/errkind"
	"github.com/fenwick-ai/agentrt/pkg/llm"
	"github.com/fenwick-ai/agentrt/pkg/runctx"
)

// Task is one node of a Plan's dependency graph (§4.5.3).
type Task struct {
	ID           string   `json:"id"`
	Title        string   `json:"title"`
	Description  string   `json:"description"`
	Dependencies []string `json:"dependencies"`
}

// Plan is the parsed reply of the planning step (§4.5.3:
// "{goal, tasks: [{id, title, description, dependencies}]}").
type Plan struct {
	Goal  string `json:"goal"`
	Tasks []Task `json:"tasks"`
}

var planSchema = map[string]any{
	"type": "object",
	"properties": map[string]any{
		"goal": map[string]any{"type": "string"},
		"tasks": map[string]any{
			"type": "array",
			"items": map[string]any{
				"type": "object",
				"properties": map[string]any{
					"id":           map[string]any{"type": "string"},
					"title":        map[string]any{"type": "string"},
					"description":  map[string]any{"type": "string"},
					"dependencies": map[string]any{"type": "array", "items": map[string]any{"type": "string"}},
				},
				"required": []string{"id", "title"},
			},
		},
	},
	"required": []string{"goal", "tasks"},
}

// PlanAndExecute is the plan/execute/synthesize strategy of §4.5.3.
type PlanAndExecute struct {
	Tools                []llm.ToolDefinition
	Params               llm.Params
	MaxIterationsPerTask int
}

func (p *PlanAndExecute) Prepare(rc *runctx.RunContext) error { return nil }

func (p *PlanAndExecute) Step(rc *runctx.RunContext) Sequence {
	return func(yield func(Action, error) bool) {
		plan, ok := p.planPhase(rc, yield)
		if !ok {
			return
		}
		if rc.Cancelled() {
			return
		}

		order, err := topoSort(plan.Tasks)
		if err != nil {
			yield(Action{}, errkind.New(errkind.PlanParseError, err))
			return
		}

		outputs := make(map[string]string, len(order))
		for _, task := range order {
			if rc.Cancelled() {
				return
			}
			output, ok := p.executeTask(rc, task, plan.Tasks, outputs, yield)
			if !ok {
				return
			}
			outputs[task.ID] = output
		}

		if !p.synthesize(rc, plan, order, outputs, yield) {
			return
		}
	}
}

// planPhase runs the planning step, retrying once with a stricter prompt
// on a parse failure (§4.5.3: "Parse failure → retry once with a stricter
// reformat prompt; second failure → RunError with kind PlanParseError").
func (p *PlanAndExecute) planPhase(rc *runctx.RunContext, yield func(Action, error) bool) (Plan, bool) {
	const step = "planning"
	if !yield(stepStart(step), nil) {
		return Plan{}, false
	}

	prompt := "Produce a plan to satisfy the user's request, as a JSON object matching the given schema: a goal and a list of tasks, each with an id, title, description, and the ids of tasks it depends on."
	plan, raw, ok := p.requestPlan(rc, step, prompt, yield)
	if !ok {
		return Plan{}, false
	}
	if plan == nil {
		stricter := "Your previous reply could not be parsed as JSON matching the required plan schema. Reply with ONLY a single JSON object: {\"goal\": string, \"tasks\": [{\"id\": string, \"title\": string, \"description\": string, \"dependencies\": [string]}]}. No prose, no markdown fences."
		plan, raw, ok = p.requestPlan(rc, step, stricter, yield)
		if !ok {
			return Plan{}, false
		}
		if plan == nil {
			yield(Action{}, errkind.New(errkind.PlanParseError, fmt.Errorf("could not parse plan from reply: %s", raw)))
			return Plan{}, false
		}
	}

	if !yield(stepEnd(step), nil) {
		return Plan{}, false
	}
	return *plan, true
}

func (p *PlanAndExecute) requestPlan(rc *runctx.RunContext, step, prompt string, yield func(Action, error) bool) (*Plan, string, bool) {
	messages := append(rc.Messages(), llm.Message{Role: "user", Content: prompt})
	params := p.Params
	params.StructuredOut = &llm.StructuredOutput{Name: "plan", Schema: planSchema}

	turn, ok := streamTurn(rc, step, messages, nil, params, yield)
	if !ok {
		return nil, "", false
	}
	rc.AddUsage(turn.usage)

	// The plan is emitted as the step content verbatim (§4.5.3) via the
	// StepContent deltas streamTurn already yielded; nothing further to
	// emit here.

	var plan Plan
	if err := json.Unmarshal([]byte(turn.text), &plan); err != nil || plan.Goal == "" {
		return nil, turn.text, true
	}
	return &plan, turn.text, true
}

// executeTask runs an inner think/act sub-loop for one task, with the
// completed tasks' outputs folded into the prompt as context (§4.5.3).
func (p *PlanAndExecute) executeTask(rc *runctx.RunContext, task Task, all []Task, outputs map[string]string, yield func(Action, error) bool) (string, bool) {
	step := "executing:" + task.ID

	var context string
	for _, dep := range task.Dependencies {
		if out, ok := outputs[dep]; ok {
			context += fmt.Sprintf("Result of %q: %s\n", dep, out)
		}
	}
	instruction := fmt.Sprintf("Task: %s\n%s", task.Title, task.Description)
	if context != "" {
		instruction = context + "\n" + instruction
	}
	rc.AppendMessage(llm.Message{Role: "user", Content: instruction})

	text, truncated, ok := executeLoop(rc, step, p.Tools, p.Params, p.maxIterationsPerTask(), yield)
	if !ok {
		return "", false
	}
	if truncated {
		text = "(task truncated before completion)"
	}
	rc.AppendMessage(llm.Message{Role: "assistant", Content: text})
	return text, true
}

func (p *PlanAndExecute) maxIterationsPerTask() int {
	if p.MaxIterationsPerTask > 0 {
		return p.MaxIterationsPerTask
	}
	return DefaultMaxIterations
}

// synthesize combines task outputs into the run's final answer (§4.5.3
// phase 3).
func (p *PlanAndExecute) synthesize(rc *runctx.RunContext, plan Plan, order []Task, outputs map[string]string, yield func(Action, error) bool) bool {
	const step = "synthesis"
	if !yield(stepStart(step), nil) {
		return false
	}

	var summary string
	for _, task := range order {
		summary += fmt.Sprintf("- %s: %s\n", task.Title, outputs[task.ID])
	}
	prompt := fmt.Sprintf("Combine the following task results into one final answer for the goal %q:\n%s", plan.Goal, summary)
	messages := append(rc.Messages(), llm.Message{Role: "user", Content: prompt})

	turn, ok := streamTurn(rc, step, messages, nil, p.Params, yield)
	if !ok {
		return false
	}
	rc.AddUsage(turn.usage)

	if !yield(stepEnd(step), nil) {
		return false
	}

	rc.AppendMessage(llm.Message{Role: "assistant", Content: turn.text})
	messageID := uuid.NewString()
	if !yield(finalStart(messageID), nil) {
		return false
	}
	if !yield(finalChunk(messageID, turn.text), nil) {
		return false
	}
	if !yield(finalEnd(messageID), nil) {
		return false
	}
	return yield(done(rc.Usage(), false), nil)
}

// topoSort orders tasks so each appears after every task it depends on,
// erroring on an unknown dependency or a cycle.
func topoSort(tasks []Task) ([]Task, error) {
	byID := make(map[string]Task, len(tasks))
	for _, t := range tasks {
		byID[t.ID] = t
	}

	var order []Task
	state := make(map[string]int) // 0=unvisited, 1=visiting, 2=done
	var visit func(id string) error
	visit = func(id string) error {
		switch state[id] {
		case 2:
			return nil
		case 1:
			return fmt.Errorf("cyclic task dependency involving %q", id)
		}
		task, ok := byID[id]
		if !ok {
			return fmt.Errorf("task references unknown dependency %q", id)
		}
		state[id] = 1
		for _, dep := range task.Dependencies {
			if err := visit(dep); err != nil {
				return err
			}
		}
		state[id] = 2
		order = append(order, task)
		return nil
	}

	for _, t := range tasks {
		if err := visit(t.ID); err != nil {
			return nil, err
		}
	}
	return order, nil
}
