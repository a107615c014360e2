// Package main provides a CLI tool for survey task documents.
// This is useful for checking configuration and replaying navigation offline.
package main

import (
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/goccy/go-json"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/dlovans/surveytask/internal/config"
	"github.com/dlovans/surveytask/internal/logger"
	"github.com/dlovans/surveytask/pkg/lint"
	"github.com/dlovans/surveytask/pkg/resource"
	"github.com/dlovans/surveytask/pkg/survey"
	"github.com/dlovans/surveytask/pkg/task"
)

func main() {
	cfg := config.Load()
	log, err := logger.New(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()
	for _, w := range cfg.Warnings {
		log.Warn(w)
	}

	assembleCmd := flag.NewFlagSet("assemble", flag.ExitOnError)
	assembleFile := assembleCmd.String("file", "", "Survey document (JSON or YAML, or use stdin)")
	assembleInsert := assembleCmd.String("insert", "", "Document whose steps are inserted after the first step")

	walkCmd := flag.NewFlagSet("walk", flag.ExitOnError)
	walkFile := walkCmd.String("file", "", "Survey document (JSON or YAML, or use stdin)")
	walkInsert := walkCmd.String("insert", "", "Document whose steps are inserted after the first step")
	walkAnswers := walkCmd.String("answers", "", "Answers keyed by step identifier (JSON or YAML)")
	walkState := walkCmd.String("state", "", "Session state (JSON or YAML)")
	walkPolicy := walkCmd.String("policy", cfg.DefaultPolicy, "Policy for missing answers: first, last, defaultValue, skip")
	walkLimit := walkCmd.Int("limit", cfg.WalkLimit, "Maximum number of steps to visit")

	nextCmd := flag.NewFlagSet("next", flag.ExitOnError)
	nextFile := nextCmd.String("file", "", "Survey document (JSON or YAML, or use stdin)")
	nextCurrent := nextCmd.String("current", "", "Identifier of the current step (empty for the first step)")
	nextAnswers := nextCmd.String("answers", "", "Answers keyed by step identifier (JSON or YAML)")
	nextState := nextCmd.String("state", "", "Session state (JSON or YAML)")

	lintCmd := flag.NewFlagSet("lint", flag.ExitOnError)
	lintFile := lintCmd.String("file", "", "Survey document to lint")

	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	c := &cli{log: log, resources: bundles(cfg.ResourceDirs)}

	switch os.Args[1] {
	case "assemble":
		assembleCmd.Parse(os.Args[2:])
		c.handleAssemble(*assembleFile, *assembleInsert)

	case "walk":
		walkCmd.Parse(os.Args[2:])
		c.handleWalk(*walkFile, *walkInsert, *walkAnswers, *walkState, *walkPolicy, *walkLimit)

	case "next":
		nextCmd.Parse(os.Args[2:])
		c.handleNext(*nextFile, *nextCurrent, *nextAnswers, *nextState)

	case "lint":
		lintCmd.Parse(os.Args[2:])
		c.handleLint(*lintFile)

	default:
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println("surveytask - Declarative survey task assembly and navigation")
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Println("  surveytask assemble [-file survey.json] [-insert extra.json]")
	fmt.Println("  surveytask walk [-file survey.json] [-answers answers.json] [-state state.json] [-policy skip] [-limit 1000]")
	fmt.Println("  surveytask next [-file survey.json] [-current id] [-answers answers.json] [-state state.json]")
	fmt.Println("  surveytask lint [-file survey.yaml]")
	fmt.Println()
	fmt.Println("Environment:")
	fmt.Println("  SURVEYTASK_ENV, SURVEYTASK_LOG_LEVEL, SURVEYTASK_RESOURCE_DIRS,")
	fmt.Println("  SURVEYTASK_DEFAULT_POLICY, SURVEYTASK_WALK_LIMIT (also read from .env)")
	fmt.Println()
	fmt.Println("Examples:")
	fmt.Println("  surveytask assemble -file onboarding.yaml")
	fmt.Println("  cat survey.json | surveytask walk -answers answers.json -policy first")
	fmt.Println("  surveytask next -file survey.json -current q1 -answers answers.json")
}

type cli struct {
	log       *zap.Logger
	resources resource.Resolver
}

// bundles searches the configured directories in order.
func bundles(dirs []string) resource.Resolver {
	if len(dirs) == 0 {
		return resource.Nop{}
	}
	list := make([]resource.Bundle, 0, len(dirs))
	for _, dir := range dirs {
		list = append(list, resource.Bundle{Name: filepath.Base(dir), FS: os.DirFS(dir)})
	}
	return resource.NewChain(list...)
}

func (c *cli) handleAssemble(filePath, insertPath string) {
	t := c.assemble(filePath, insertPath)
	printJSON(t)
}

func (c *cli) handleWalk(filePath, insertPath, answersPath, statePath, policyName string, limit int) {
	policy, err := task.ParsePolicy(policyName)
	if err != nil {
		fail("Error: %v", err)
	}

	t := c.assemble(filePath, insertPath)
	answers := readAnswers(answersPath)
	state := readState(statePath)

	nav := task.NewNavigator(t, state, c.log)
	run := task.NewSynthesizer(c.log).Walk(nav, answers, policy, limit)

	printJSON(struct {
		*task.Run
		Answers map[string]any `json:"answers"`
	}{run, run.Results.Answers()})

	if run.Truncated {
		os.Exit(2)
	}
}

func (c *cli) handleNext(filePath, current, answersPath, statePath string) {
	t := c.assemble(filePath, "")
	answers := readAnswers(answersPath)
	state := readState(statePath)

	results := task.NewSynthesizer(c.log).Replay(t, answers, task.PolicySkip)

	nav := task.NewNavigator(t, state, c.log)
	if current != "" && t.Step(current) == nil {
		fail("Error: unknown step '%s'", current)
	}
	step := nav.StepAfter(current, results)
	if step == nil {
		fmt.Println("✓ Task complete")
		return
	}
	done, total := nav.Progress(step.Identifier)
	printJSON(struct {
		Step     *task.Step `json:"step"`
		Position int        `json:"position"`
		Total    int        `json:"total"`
	}{step, done, total})
}

func (c *cli) handleLint(filePath string) {
	data := readInput(filePath)

	doc, err := survey.ParseDocument(data, survey.DetectFormat(filePath, data))
	if err != nil {
		fail("Lint error: parse error: %v", err)
	}
	result := lint.Document(doc, lint.Options{Resources: c.resources})

	if len(result.Issues) == 0 {
		fmt.Println("✓ No issues found")
		return
	}

	for _, issue := range result.Issues {
		icon := "⚠"
		switch issue.Severity {
		case "error":
			icon = "✗"
		case "info":
			icon = "ℹ"
		}
		location := ""
		if issue.Identifier != "" {
			location = fmt.Sprintf(" [step: %s]", issue.Identifier)
		}
		fmt.Printf("%s %s%s [%s]: %s\n", icon, issue.Severity, location, issue.Check, issue.Message)
	}

	if !result.Valid {
		os.Exit(1)
	}
}

func (c *cli) assemble(filePath, insertPath string) *task.Task {
	data := readInput(filePath)
	doc, err := survey.ParseDocument(data, survey.DetectFormat(filePath, data))
	if err != nil {
		fail("Error: %v", err)
	}

	if insertPath != "" {
		insData, err := os.ReadFile(insertPath)
		if err != nil {
			fail("Error reading insert file: %v", err)
		}
		ins, err := survey.ParseDocument(insData, survey.DetectFormat(insertPath, insData))
		if err != nil {
			fail("Error: %v", err)
		}
		doc.InsertSteps = append(doc.InsertSteps, ins.Steps...)
	}

	if doc.Identifier == "" && filePath != "" {
		base := filepath.Base(filePath)
		doc.Identifier = base[:len(base)-len(filepath.Ext(base))]
	}

	f := task.NewFactory(c.resources, nil, c.log)
	t, warns := f.AssembleDocument(doc)
	for _, w := range warns {
		fmt.Fprintf(os.Stderr, "⚠ %s\n", w)
	}
	return t
}

func readInput(filePath string) []byte {
	var input []byte
	var err error

	if filePath != "" {
		input, err = os.ReadFile(filePath)
	} else {
		input, err = io.ReadAll(os.Stdin)
	}

	if err != nil {
		fail("Error reading input: %v", err)
	}
	return input
}

func readAnswers(path string) map[string]any {
	answers := make(map[string]any)
	if path == "" {
		return answers
	}
	if err := decodeFile(path, &answers); err != nil {
		fail("Error reading answers: %v", err)
	}
	return answers
}

func readState(path string) *task.SessionState {
	state := &task.SessionState{}
	if path == "" {
		return state
	}
	if err := decodeFile(path, state); err != nil {
		fail("Error reading state: %v", err)
	}
	return state
}

// decodeFile decodes JSON or YAML into v. YAML is routed through JSON so that
// json struct tags apply to both.
func decodeFile(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if survey.DetectFormat(path, data) == survey.FormatYAML {
		var doc any
		if err := yaml.Unmarshal(data, &doc); err != nil {
			return err
		}
		if data, err = json.Marshal(doc); err != nil {
			return err
		}
	}
	return json.Unmarshal(data, v)
}

func printJSON(v any) {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		fail("Error: %v", err)
	}
	fmt.Println(string(out))
}

func fail(format string, args ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}
