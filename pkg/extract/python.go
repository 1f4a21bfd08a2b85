package extract

import (
	"regexp"
	"strings"

	"github.com/docbot-dev/docbot/pkg/models"
)

var (
	pyDefPattern    = regexp.MustCompile(`^(async\s+)?def\s+([A-Za-z_][A-Za-z0-9_]*)\s*\((.*)$`)
	pyClassPattern  = regexp.MustCompile(`^class\s+([A-Za-z_][A-Za-z0-9_]*)`)
	pyImportPattern = regexp.MustCompile(`^(?:import\s+([\w.]+)|from\s+([\w.]+)\s+import\b)`)
	pyEnvPattern    = regexp.MustCompile(`os\.(?:environ(?:\.get)?|getenv)\s*[\(\[]\s*['"]([A-Z_][A-Z0-9_]*)['"](?:\s*,\s*['"]?([^'")\]]*)['"]?)?`)
	pyDocPattern    = regexp.MustCompile(`^\s*(?:"""|''')(.*)`)
)

type pythonExtractor struct{}

func (e *pythonExtractor) Extract(absPath, relPath, _ string) (*models.FileExtraction, error) {
	lines, err := readLines(absPath)
	if err != nil {
		return nil, err
	}

	b := newBuilder(relPath)
	currentClass := ""
	classIndent := 0

	for i, raw := range lines {
		line := strings.TrimRight(raw, " \t")
		trimmed := strings.TrimSpace(line)
		lineNo := i + 1
		indent := indentOf(line)

		if indent == 0 && trimmed != "" {
			currentClass = ""
		}

		if m := pyImportPattern.FindStringSubmatch(trimmed); m != nil && indent == 0 {
			if m[1] != "" {
				b.importPath(strings.Fields(m[1])[0])
			} else {
				b.importPath(m[2])
			}
		}

		if m := pyClassPattern.FindStringSubmatch(trimmed); m != nil && indent == 0 {
			name := m[1]
			currentClass = name
			classIndent = indent
			if !strings.HasPrefix(name, "_") {
				b.symbol(name, models.KindClass, trimmed, pyDocBelow(lines, i), lineNo)
			}
			continue
		}

		if m := pyDefPattern.FindStringSubmatch(trimmed); m != nil {
			name := m[2]
			if strings.HasPrefix(name, "_") {
				continue
			}
			sig := strings.TrimSuffix(trimmed, ":")
			doc := pyDocBelow(lines, i)
			switch {
			case indent == 0:
				b.symbol(name, models.KindFunction, sig, doc, lineNo)
			case currentClass != "" && indent > classIndent:
				b.symbol(currentClass+"."+name, models.KindMethod, sig, doc, lineNo)
			}
			continue
		}

		for _, m := range pyEnvPattern.FindAllStringSubmatch(line, -1) {
			b.envVar(m[1], m[2], lineNo, trimmed)
		}

		if strings.HasPrefix(trimmed, "raise ") || trimmed == "raise" {
			b.raised(trimmed, lineNo)
		}
	}

	return b.build(), nil
}

// pyDocBelow returns the first line of a docstring opening directly under
// lines[idx], or "".
func pyDocBelow(lines []string, idx int) string {
	for j := idx + 1; j < len(lines) && j <= idx+2; j++ {
		trimmed := strings.TrimSpace(lines[j])
		if trimmed == "" {
			continue
		}
		if m := pyDocPattern.FindStringSubmatch(lines[j]); m != nil {
			doc := strings.TrimSpace(m[1])
			doc = strings.TrimSuffix(doc, `"""`)
			doc = strings.TrimSuffix(doc, `'''`)
			return strings.TrimSpace(doc)
		}
		return ""
	}
	return ""
}
