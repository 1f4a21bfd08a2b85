package agent

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/docbot-dev/docbot/pkg/notepad"
	"github.com/docbot-dev/docbot/pkg/scan"
)

// ReadFileLimit caps read_file output, with an explicit truncation marker.
const ReadFileLimit = 12000

const truncationMarker = "\n... [truncated: file continues beyond 12000 characters]"

// Toolkit executes the synchronous tools against the sandboxed repository
// and the shared notepad. Delegation and finish are engine concerns and
// never reach Execute.
type Toolkit struct {
	sandbox *sandbox
	notes   *notepad.Notepad
}

// NewToolkit builds a toolkit rooted at repoRoot.
func NewToolkit(repoRoot string, notes *notepad.Notepad) (*Toolkit, error) {
	sb, err := newSandbox(repoRoot)
	if err != nil {
		return nil, err
	}
	return &Toolkit{sandbox: sb, notes: notes}, nil
}

// Execute runs one synchronous command on behalf of author (the agent id
// used for notepad attribution). The returned string is the tool result for
// the LLM; ok=false marks it as an error result.
func (t *Toolkit) Execute(cmd command, author string) (result string, ok bool) {
	switch c := cmd.(type) {
	case readFileCmd:
		return t.readFile(c.Path)
	case listDirectoryCmd:
		return t.listDirectory(c.Path)
	case readNotepadCmd:
		return t.notes.Read(c.Topic), true
	case writeNotepadCmd:
		return t.notes.Write(c.Topic, c.Content, author), true
	case listTopicsCmd:
		return t.notes.Topics(), true
	default:
		return fmt.Sprintf("Error: tool %s cannot be executed directly.", cmd.toolName()), false
	}
}

func (t *Toolkit) readFile(path string) (string, bool) {
	abs, errResult, ok := t.sandbox.resolve(path)
	if !ok {
		return errResult, false
	}

	info, err := os.Stat(abs)
	if err != nil {
		return fmt.Sprintf("Error: cannot read %q: %v", path, err), false
	}
	if info.IsDir() {
		return fmt.Sprintf("Error: %q is a directory; use %s instead.", path, ToolListDirectory), false
	}

	data, err := os.ReadFile(abs)
	if err != nil {
		return fmt.Sprintf("Error: cannot read %q: %v", path, err), false
	}

	content := string(data)
	if len(content) > ReadFileLimit {
		content = content[:ReadFileLimit] + truncationMarker
	}
	return content, true
}

func (t *Toolkit) listDirectory(path string) (string, bool) {
	abs, errResult, ok := t.sandbox.resolve(path)
	if !ok {
		return errResult, false
	}

	entries, err := os.ReadDir(abs)
	if err != nil {
		return fmt.Sprintf("Error: cannot list %q: %v", path, err), false
	}

	var names []string
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() {
			if scan.NoiseDirs[name] || strings.HasPrefix(name, ".") {
				continue
			}
			names = append(names, name+"/")
			continue
		}
		if strings.HasPrefix(name, ".") && name != ".gitignore" {
			continue
		}
		size := "?"
		if info, err := entry.Info(); err == nil {
			size = fmt.Sprintf("%d", info.Size())
		}
		names = append(names, fmt.Sprintf("%s (%s bytes)", name, size))
	}
	sort.Strings(names)

	if len(names) == 0 {
		return fmt.Sprintf("(directory %q is empty)", filepath.ToSlash(path)), true
	}
	return strings.Join(names, "\n"), true
}
