//go:build js && wasm

// Package main provides WASM bindings for survey task assembly and navigation.
// This allows a web study client to drive the same task logic as native apps.
package main

import (
	"syscall/js"

	"github.com/goccy/go-json"

	"github.com/dlovans/surveytask/pkg/lint"
	"github.com/dlovans/surveytask/pkg/survey"
	"github.com/dlovans/surveytask/pkg/task"
)

func main() {
	// Export SurveyAssemble function to JavaScript
	js.Global().Set("SurveyAssemble", js.FuncOf(surveyAssemble))

	// Export SurveyNext function to JavaScript
	js.Global().Set("SurveyNext", js.FuncOf(surveyNext))

	// Export SurveyWalk function to JavaScript
	js.Global().Set("SurveyWalk", js.FuncOf(surveyWalk))

	// Export SurveyLint function to JavaScript
	js.Global().Set("SurveyLint", js.FuncOf(surveyLint))

	// Keep the Go runtime alive
	select {}
}

// surveyAssemble is the JS-callable wrapper for Factory.AssembleDocument
// Usage: SurveyAssemble(documentText) -> { result: task, warnings: [...], error?: string }
func surveyAssemble(this js.Value, args []js.Value) any {
	if len(args) < 1 {
		return makeError("SurveyAssemble requires 1 argument: documentText")
	}

	t, warns, err := assemble(args[0].String())
	if err != nil {
		return makeError(err.Error())
	}

	resp := makeResult(t)
	resp["warnings"] = toJS(warns)
	return resp
}

// surveyNext is the JS-callable wrapper for Navigator.StepAfter
// Usage: SurveyNext(documentText, currentId, answersJson, stateJson) -> { result: step|null, position, total, error?: string }
func surveyNext(this js.Value, args []js.Value) any {
	if len(args) < 3 {
		return makeError("SurveyNext requires at least 3 arguments: documentText, currentId, answersJson")
	}

	t, _, err := assemble(args[0].String())
	if err != nil {
		return makeError(err.Error())
	}
	answers, state, err := session(args[2:])
	if err != nil {
		return makeError(err.Error())
	}

	nav := task.NewNavigator(t, state, nil)
	results := task.NewSynthesizer(nil).Replay(t, answers, task.PolicySkip)
	step := nav.StepAfter(args[1].String(), results)
	if step == nil {
		return map[string]any{"result": nil}
	}

	position, total := nav.Progress(step.Identifier)
	resp := makeResult(step)
	resp["position"] = position
	resp["total"] = total
	return resp
}

// surveyWalk is the JS-callable wrapper for Synthesizer.Walk
// Usage: SurveyWalk(documentText, answersJson, stateJson?, policy?) -> { result: run, answers, error?: string }
func surveyWalk(this js.Value, args []js.Value) any {
	if len(args) < 2 {
		return makeError("SurveyWalk requires at least 2 arguments: documentText, answersJson")
	}

	t, _, err := assemble(args[0].String())
	if err != nil {
		return makeError(err.Error())
	}
	answers, state, err := session(args[1:])
	if err != nil {
		return makeError(err.Error())
	}

	policyName := ""
	if len(args) > 3 {
		policyName = args[3].String()
	}
	policy, err := task.ParsePolicy(policyName)
	if err != nil {
		return makeError(err.Error())
	}

	run := task.NewSynthesizer(nil).Walk(task.NewNavigator(t, state, nil), answers, policy, 0)
	resp := makeResult(run)
	resp["answers"] = toJS(run.Results.Answers())
	return resp
}

// surveyLint is the JS-callable wrapper for lint.Run
// Usage: SurveyLint(documentText) -> { result: { valid, issues }, error?: string }
func surveyLint(this js.Value, args []js.Value) any {
	if len(args) < 1 {
		return makeError("SurveyLint requires 1 argument: documentText")
	}

	result, err := lint.Run(args[0].String(), lint.Options{})
	if err != nil {
		return makeError(err.Error())
	}
	return makeResult(result)
}

func assemble(text string) (*task.Task, []task.Warning, error) {
	data := []byte(text)
	doc, err := survey.ParseDocument(data, survey.DetectFormat("", data))
	if err != nil {
		return nil, nil, err
	}
	t, warns := task.NewFactory(nil, nil, nil).AssembleDocument(doc)
	return t, warns, nil
}

// session decodes the answers argument and the optional state argument after it.
func session(args []js.Value) (map[string]any, *task.SessionState, error) {
	answers := make(map[string]any)
	if s := args[0].String(); s != "" {
		if err := json.Unmarshal([]byte(s), &answers); err != nil {
			return nil, nil, err
		}
	}
	state := &task.SessionState{}
	if len(args) > 1 && args[1].Type() == js.TypeString && args[1].String() != "" {
		if err := json.Unmarshal([]byte(args[1].String()), state); err != nil {
			return nil, nil, err
		}
	}
	return answers, state, nil
}

// makeError creates a JS-friendly error response
func makeError(msg string) map[string]any {
	return map[string]any{
		"error": msg,
	}
}

// makeResult creates a JS-friendly success response
func makeResult(v any) map[string]any {
	return map[string]any{
		"result": toJS(v),
	}
}

// toJS round-trips v through JSON so that js.ValueOf receives only maps, slices and scalars.
func toJS(v any) any {
	data, err := json.Marshal(v)
	if err != nil {
		return nil
	}
	var out any
	if err := json.Unmarshal(data, &out); err != nil {
		return string(data)
	}
	return out
}
