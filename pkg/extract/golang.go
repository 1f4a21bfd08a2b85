package extract

import (
	"regexp"
	"strings"
	"unicode"

	"github.com/docbot-dev/docbot/pkg/models"
)

var (
	goFuncPattern   = regexp.MustCompile(`^func\s+([A-Za-z_][A-Za-z0-9_]*)\s*\(`)
	goMethodPattern = regexp.MustCompile(`^func\s+\(\s*\w+\s+\*?([A-Za-z_][A-Za-z0-9_]*)\s*\)\s+([A-Za-z_][A-Za-z0-9_]*)\s*\(`)
	goTypePattern   = regexp.MustCompile(`^type\s+([A-Za-z_][A-Za-z0-9_]*)\s+(\S+)`)
	goImportPattern = regexp.MustCompile(`^import\s+(?:\w+\s+)?"([^"]+)"`)
	goImportLine    = regexp.MustCompile(`^(?:\w+\s+)?"([^"]+)"`)
	goEnvPattern    = regexp.MustCompile(`os\.(?:Getenv|LookupEnv)\(\s*"([A-Z_][A-Z0-9_]*)"`)
	goPanicPattern  = regexp.MustCompile(`^\s*panic\(`)
)

type goExtractor struct{}

func (e *goExtractor) Extract(absPath, relPath, _ string) (*models.FileExtraction, error) {
	lines, err := readLines(absPath)
	if err != nil {
		return nil, err
	}

	b := newBuilder(relPath)
	inImportBlock := false

	for i, raw := range lines {
		trimmed := strings.TrimSpace(raw)
		lineNo := i + 1

		if inImportBlock {
			if trimmed == ")" {
				inImportBlock = false
				continue
			}
			if m := goImportLine.FindStringSubmatch(trimmed); m != nil {
				b.importPath(m[1])
			}
			continue
		}
		if trimmed == "import (" || strings.HasPrefix(trimmed, "import (") {
			inImportBlock = true
			continue
		}
		if m := goImportPattern.FindStringSubmatch(trimmed); m != nil {
			b.importPath(m[1])
		}

		doc := docAbove(lines, i, "//")
		sig := strings.TrimSuffix(trimmed, " {")

		if m := goMethodPattern.FindStringSubmatch(raw); m != nil {
			recv, name := m[1], m[2]
			if goExported(name) && goExported(recv) {
				b.symbol(recv+"."+name, models.KindMethod, sig, doc, lineNo)
			}
			continue
		}
		if m := goFuncPattern.FindStringSubmatch(raw); m != nil {
			if goExported(m[1]) {
				b.symbol(m[1], models.KindFunction, sig, doc, lineNo)
			}
			continue
		}
		if m := goTypePattern.FindStringSubmatch(raw); m != nil {
			name, rest := m[1], m[2]
			if goExported(name) {
				kind := models.KindType
				switch {
				case strings.HasPrefix(rest, "struct"):
					kind = models.KindStruct
				case strings.HasPrefix(rest, "interface"):
					kind = models.KindInterface
				}
				b.symbol(name, kind, sig, doc, lineNo)
			}
			continue
		}

		for _, m := range goEnvPattern.FindAllStringSubmatch(raw, -1) {
			b.envVar(m[1], "", lineNo, trimmed)
		}
		if goPanicPattern.MatchString(raw) {
			b.raised(trimmed, lineNo)
		}
	}

	return b.build(), nil
}

func goExported(name string) bool {
	if name == "" {
		return false
	}
	return unicode.IsUpper(rune(name[0]))
}
