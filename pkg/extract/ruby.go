package extract

import (
	"regexp"
	"strings"

	"github.com/docbot-dev/docbot/pkg/models"
)

var (
	rubyDef     = regexp.MustCompile(`^def\s+(?:self\.)?([a-zA-Z_][\w?!]*)`)
	rubyClass   = regexp.MustCompile(`^(class|module)\s+([A-Z][\w:]*)`)
	rubyRequire = regexp.MustCompile(`^require(?:_relative)?\s+['"]([^'"]+)['"]`)
	rubyEnv     = regexp.MustCompile(`ENV(?:\.fetch\(|\[)\s*['"]([A-Z_][A-Z0-9_]*)['"](?:\s*,\s*['"]?([^'")\]]*)['"]?)?`)
)

type rubyExtractor struct{}

func (e *rubyExtractor) Extract(absPath, relPath, _ string) (*models.FileExtraction, error) {
	lines, err := readLines(absPath)
	if err != nil {
		return nil, err
	}

	b := newBuilder(relPath)
	currentClass := ""

	for i, raw := range lines {
		trimmed := strings.TrimSpace(raw)
		lineNo := i + 1
		indent := indentOf(raw)

		if m := rubyRequire.FindStringSubmatch(trimmed); m != nil {
			b.importPath(m[1])
			continue
		}

		if m := rubyClass.FindStringSubmatch(trimmed); m != nil && indent == 0 {
			kind := models.KindClass
			if m[1] == "module" {
				kind = models.KindType
			}
			currentClass = m[2]
			b.symbol(m[2], kind, trimmed, docAbove(lines, i, "#"), lineNo)
			continue
		}
		if indent == 0 && trimmed == "end" {
			currentClass = ""
		}

		if m := rubyDef.FindStringSubmatch(trimmed); m != nil {
			name := m[1]
			if strings.HasPrefix(name, "_") {
				continue
			}
			doc := docAbove(lines, i, "#")
			if indent > 0 && currentClass != "" {
				b.symbol(currentClass+"#"+name, models.KindMethod, trimmed, doc, lineNo)
			} else if indent == 0 {
				b.symbol(name, models.KindFunction, trimmed, doc, lineNo)
			}
			continue
		}

		for _, m := range rubyEnv.FindAllStringSubmatch(raw, -1) {
			b.envVar(m[1], m[2], lineNo, trimmed)
		}
		if strings.HasPrefix(trimmed, "raise ") || trimmed == "raise" {
			b.raised(trimmed, lineNo)
		}
	}

	return b.build(), nil
}
