package extract

import (
	"regexp"
	"strings"

	"github.com/docbot-dev/docbot/pkg/models"
)

var (
	rustPubItem = regexp.MustCompile(`^pub(?:\([^)]*\))?\s+(?:async\s+|unsafe\s+|const\s+)*(fn|struct|enum|trait|type|mod)\s+([A-Za-z_][A-Za-z0-9_]*)`)
	rustUse     = regexp.MustCompile(`^use\s+([^;]+);`)
	rustEnvVar  = regexp.MustCompile(`(?:std::)?env::var(?:_os)?\(\s*"([A-Z_][A-Z0-9_]*)"`)
	rustEnvMac  = regexp.MustCompile(`(?:option_)?env!\(\s*"([A-Z_][A-Z0-9_]*)"`)
	rustPanic   = regexp.MustCompile(`^\s*(?:panic!|unreachable!|todo!|unimplemented!)\(`)
)

type rustExtractor struct{}

func (e *rustExtractor) Extract(absPath, relPath, _ string) (*models.FileExtraction, error) {
	lines, err := readLines(absPath)
	if err != nil {
		return nil, err
	}

	b := newBuilder(relPath)
	for i, raw := range lines {
		trimmed := strings.TrimSpace(raw)
		lineNo := i + 1

		if m := rustUse.FindStringSubmatch(trimmed); m != nil {
			b.importPath(strings.TrimSpace(m[1]))
		}

		if m := rustPubItem.FindStringSubmatch(trimmed); m != nil {
			kind := models.KindType
			switch m[1] {
			case "fn":
				kind = models.KindFunction
			case "struct":
				kind = models.KindStruct
			case "enum":
				kind = models.KindEnum
			case "trait":
				kind = models.KindTrait
			}
			sig := strings.TrimSuffix(strings.TrimSuffix(trimmed, "{"), " ")
			b.symbol(m[2], kind, sig, docAbove(lines, i, "///"), lineNo)
		}

		for _, m := range rustEnvVar.FindAllStringSubmatch(raw, -1) {
			b.envVar(m[1], "", lineNo, trimmed)
		}
		for _, m := range rustEnvMac.FindAllStringSubmatch(raw, -1) {
			b.envVar(m[1], "", lineNo, trimmed)
		}
		if rustPanic.MatchString(raw) {
			b.raised(trimmed, lineNo)
		}
	}

	return b.build(), nil
}
