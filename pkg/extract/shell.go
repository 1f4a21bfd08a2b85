package extract

import (
	"regexp"
	"strings"

	"github.com/docbot-dev/docbot/pkg/models"
)

var (
	shFuncParen  = regexp.MustCompile(`^([A-Za-z_][\w]*)\s*\(\)\s*\{?`)
	shFuncKeywd  = regexp.MustCompile(`^function\s+([A-Za-z_][\w]*)`)
	shSource     = regexp.MustCompile(`^(?:source|\.)\s+(\S+)`)
	shEnvBraced  = regexp.MustCompile(`\$\{([A-Z_][A-Z0-9_]*)(?::?[-=]([^}]*))?\}`)
	shEnvPlain   = regexp.MustCompile(`\$([A-Z_][A-Z0-9_]*)`)
	shExportAsgn = regexp.MustCompile(`^export\s+([A-Z_][A-Z0-9_]*)=(.*)$`)
)

type shellExtractor struct{}

func (e *shellExtractor) Extract(absPath, relPath, _ string) (*models.FileExtraction, error) {
	lines, err := readLines(absPath)
	if err != nil {
		return nil, err
	}

	b := newBuilder(relPath)
	for i, raw := range lines {
		trimmed := strings.TrimSpace(raw)
		lineNo := i + 1
		if strings.HasPrefix(trimmed, "#") {
			continue
		}

		if m := shSource.FindStringSubmatch(trimmed); m != nil {
			b.importPath(m[1])
			continue
		}

		doc := docAbove(lines, i, "#")
		if m := shFuncKeywd.FindStringSubmatch(trimmed); m != nil {
			if !strings.HasPrefix(m[1], "_") {
				b.symbol(m[1], models.KindFunction, trimmed, doc, lineNo)
			}
			continue
		}
		if m := shFuncParen.FindStringSubmatch(trimmed); m != nil {
			if !strings.HasPrefix(m[1], "_") {
				b.symbol(m[1], models.KindFunction, trimmed, doc, lineNo)
			}
			continue
		}

		if m := shExportAsgn.FindStringSubmatch(trimmed); m != nil {
			b.envVar(m[1], strings.Trim(m[2], `"'`), lineNo, trimmed)
		}
		for _, m := range shEnvBraced.FindAllStringSubmatch(raw, -1) {
			b.envVar(m[1], m[2], lineNo, trimmed)
		}
		for _, m := range shEnvPlain.FindAllStringSubmatch(raw, -1) {
			b.envVar(m[1], "", lineNo, trimmed)
		}
	}

	return b.build(), nil
}
