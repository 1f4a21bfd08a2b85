package extract

import (
	"regexp"
	"strings"

	"github.com/docbot-dev/docbot/pkg/models"
)

var (
	javaTypeDecl = regexp.MustCompile(`^public\s+(?:final\s+|abstract\s+|static\s+)*(class|interface|enum|record)\s+([A-Za-z_$][\w$]*)`)
	javaMethod   = regexp.MustCompile(`^public\s+(?:static\s+|final\s+|synchronized\s+|abstract\s+)*[\w<>\[\],.\s]+\s+([a-z][\w$]*)\s*\(`)
	javaImport   = regexp.MustCompile(`^import\s+(?:static\s+)?([\w.]+(?:\.\*)?);`)
	javaEnv      = regexp.MustCompile(`System\.getenv\(\s*"([A-Z_][A-Z0-9_]*)"`)
)

type javaExtractor struct{}

func (e *javaExtractor) Extract(absPath, relPath, _ string) (*models.FileExtraction, error) {
	lines, err := readLines(absPath)
	if err != nil {
		return nil, err
	}

	b := newBuilder(relPath)
	currentType := ""

	for i, raw := range lines {
		trimmed := strings.TrimSpace(raw)
		lineNo := i + 1
		doc := docAbove(lines, i, "//", "*", "/**")
		sig := strings.TrimSuffix(strings.TrimSuffix(trimmed, "{"), " ")

		if m := javaImport.FindStringSubmatch(trimmed); m != nil {
			b.importPath(m[1])
			continue
		}

		if m := javaTypeDecl.FindStringSubmatch(trimmed); m != nil {
			kind := models.KindClass
			switch m[1] {
			case "interface":
				kind = models.KindInterface
			case "enum":
				kind = models.KindEnum
			case "record":
				kind = models.KindStruct
			}
			currentType = m[2]
			b.symbol(m[2], kind, sig, doc, lineNo)
			continue
		}

		if m := javaMethod.FindStringSubmatch(trimmed); m != nil && currentType != "" {
			b.symbol(currentType+"."+m[1], models.KindMethod, sig, doc, lineNo)
		}

		for _, m := range javaEnv.FindAllStringSubmatch(raw, -1) {
			b.envVar(m[1], "", lineNo, trimmed)
		}
		if strings.HasPrefix(trimmed, "throw ") {
			b.raised(trimmed, lineNo)
		}
	}

	return b.build(), nil
}
