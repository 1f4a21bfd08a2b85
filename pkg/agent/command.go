package agent

import (
	"fmt"
	"strings"

	"github.com/docbot-dev/docbot/pkg/llm"
)

// Tool names form a closed set. Anything else is rejected at parse time with
// a message the LLM can act on.
const (
	ToolReadFile          = "read_file"
	ToolListDirectory     = "list_directory"
	ToolReadNotepad       = "read_notepad"
	ToolWriteNotepad      = "write_notepad"
	ToolListNotepadTopics = "list_notepad_topics"
	ToolDelegate          = "delegate"
	ToolFinish            = "finish"
)

// command is one validated tool invocation. The sum of implementations is the
// whole tool vocabulary; dispatch switches on the concrete type.
type command interface {
	toolName() string
}

type readFileCmd struct{ Path string }
type listDirectoryCmd struct{ Path string }
type readNotepadCmd struct{ Topic string }
type writeNotepadCmd struct{ Topic, Content string }
type listTopicsCmd struct{}
type delegateCmd struct{ Target, Purpose, Context string }
type finishCmd struct{ Summary string }

func (readFileCmd) toolName() string      { return ToolReadFile }
func (listDirectoryCmd) toolName() string { return ToolListDirectory }
func (readNotepadCmd) toolName() string   { return ToolReadNotepad }
func (writeNotepadCmd) toolName() string  { return ToolWriteNotepad }
func (listTopicsCmd) toolName() string    { return ToolListNotepadTopics }
func (delegateCmd) toolName() string      { return ToolDelegate }
func (finishCmd) toolName() string        { return ToolFinish }

// parseCommand validates a raw tool call into a typed command. Arguments are
// repaired before decoding, so near-JSON from the model still parses.
func parseCommand(name, rawArgs string) (command, error) {
	args := map[string]any{}
	if err := llm.DecodeLoose(llm.RepairArguments(rawArgs), &args); err != nil {
		return nil, fmt.Errorf("arguments for %s are not a JSON object: %w", name, err)
	}

	str := func(key string) string {
		v, _ := args[key].(string)
		return strings.TrimSpace(v)
	}

	switch name {
	case ToolReadFile:
		path := str("path")
		if path == "" {
			return nil, fmt.Errorf("%s requires a \"path\" argument", name)
		}
		return readFileCmd{Path: path}, nil

	case ToolListDirectory:
		path := str("path")
		if path == "" {
			path = "."
		}
		return listDirectoryCmd{Path: path}, nil

	case ToolReadNotepad:
		topic := str("topic")
		if topic == "" {
			return nil, fmt.Errorf("%s requires a \"topic\" argument", name)
		}
		return readNotepadCmd{Topic: topic}, nil

	case ToolWriteNotepad:
		topic, content := str("topic"), str("content")
		if topic == "" || content == "" {
			return nil, fmt.Errorf("%s requires \"topic\" and \"content\" arguments", name)
		}
		return writeNotepadCmd{Topic: topic, Content: content}, nil

	case ToolListNotepadTopics:
		return listTopicsCmd{}, nil

	case ToolDelegate:
		target, purpose := str("target"), str("purpose")
		if target == "" || purpose == "" {
			return nil, fmt.Errorf("%s requires \"target\" and \"purpose\" arguments", name)
		}
		return delegateCmd{Target: target, Purpose: purpose, Context: str("context")}, nil

	case ToolFinish:
		return finishCmd{Summary: str("summary")}, nil

	default:
		return nil, fmt.Errorf("unknown tool %q; available tools: %s", name,
			strings.Join(toolNames(), ", "))
	}
}

func toolNames() []string {
	return []string{
		ToolReadFile, ToolListDirectory, ToolReadNotepad, ToolWriteNotepad,
		ToolListNotepadTopics, ToolDelegate, ToolFinish,
	}
}

// toolDefinitions enumerates the vocabulary handed to the LLM adapter.
func toolDefinitions(delegationOpen bool) []llm.ToolDefinition {
	defs := []llm.ToolDefinition{
		{
			Name:        ToolReadFile,
			Description: "Read a file from the repository. Content is truncated past 12000 characters.",
			ParametersSchema: `{"type":"object","required":["path"],"properties":{
				"path":{"type":"string","description":"Repo-relative path of the file to read"}}}`,
		},
		{
			Name:        ToolListDirectory,
			Description: "List a repository directory. Noise directories and dotfiles are hidden.",
			ParametersSchema: `{"type":"object","properties":{
				"path":{"type":"string","description":"Repo-relative directory, default repository root"}}}`,
		},
		{
			Name:        ToolReadNotepad,
			Description: "Read all shared-notepad entries under one topic.",
			ParametersSchema: `{"type":"object","required":["topic"],"properties":{
				"topic":{"type":"string","description":"Dot-path topic, e.g. architecture.layers"}}}`,
		},
		{
			Name:        ToolWriteNotepad,
			Description: "Append a finding to the shared notepad so other agents can build on it.",
			ParametersSchema: `{"type":"object","required":["topic","content"],"properties":{
				"topic":{"type":"string"},"content":{"type":"string"}}}`,
		},
		{
			Name:             ToolListNotepadTopics,
			Description:      "List the shared notepad's topics with entry counts.",
			ParametersSchema: `{"type":"object","properties":{}}`,
		},
		{
			Name:        ToolFinish,
			Description: "Conclude this agent with a final summary of everything learned.",
			ParametersSchema: `{"type":"object","required":["summary"],"properties":{
				"summary":{"type":"string"}}}`,
		},
	}
	if delegationOpen {
		defs = append(defs, llm.ToolDefinition{
			Name: ToolDelegate,
			Description: "Schedule a child agent to explore a narrower target in the background. " +
				"Returns immediately; the child's summary arrives later as a tool result.",
			ParametersSchema: `{"type":"object","required":["target","purpose"],"properties":{
				"target":{"type":"string","description":"Repo-relative directory or file to explore"},
				"purpose":{"type":"string","description":"What the child should find out"},
				"context":{"type":"string","description":"Optional prior knowledge to pass down"}}}`,
		})
	}
	return defs
}
