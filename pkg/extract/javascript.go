package extract

import (
	"regexp"
	"strings"

	"github.com/docbot-dev/docbot/pkg/models"
)

var (
	jsExportFunc  = regexp.MustCompile(`^export\s+(?:default\s+)?(?:async\s+)?function\s*\*?\s*([A-Za-z_$][\w$]*)?\s*\(`)
	jsExportClass = regexp.MustCompile(`^export\s+(?:default\s+)?class\s+([A-Za-z_$][\w$]*)`)
	jsExportConst = regexp.MustCompile(`^export\s+(?:const|let|var)\s+([A-Za-z_$][\w$]*)`)
	jsModuleExp   = regexp.MustCompile(`^module\.exports\.([A-Za-z_$][\w$]*)\s*=`)
	tsInterface   = regexp.MustCompile(`^export\s+interface\s+([A-Za-z_$][\w$]*)`)
	tsTypeAlias   = regexp.MustCompile(`^export\s+type\s+([A-Za-z_$][\w$]*)`)
	tsEnum        = regexp.MustCompile(`^export\s+(?:const\s+)?enum\s+([A-Za-z_$][\w$]*)`)
	jsImportFrom  = regexp.MustCompile(`^import\s+(?:.+\s+from\s+)?['"]([^'"]+)['"]`)
	jsRequire     = regexp.MustCompile(`require\(\s*['"]([^'"]+)['"]\s*\)`)
	jsEnvPattern  = regexp.MustCompile(`process\.env(?:\.([A-Z_][A-Z0-9_]*)|\[\s*['"]([A-Z_][A-Z0-9_]*)['"]\s*\])`)
)

// scriptExtractor covers JavaScript and, with the flag set, TypeScript's
// extra declaration forms.
type scriptExtractor struct {
	typescript bool
}

func (e *scriptExtractor) Extract(absPath, relPath, _ string) (*models.FileExtraction, error) {
	lines, err := readLines(absPath)
	if err != nil {
		return nil, err
	}

	b := newBuilder(relPath)
	for i, raw := range lines {
		trimmed := strings.TrimSpace(raw)
		lineNo := i + 1
		doc := docAbove(lines, i, "//", "*", "/**")
		sig := strings.TrimSuffix(strings.TrimSuffix(trimmed, "{"), " ")

		if m := jsImportFrom.FindStringSubmatch(trimmed); m != nil {
			b.importPath(m[1])
		}
		for _, m := range jsRequire.FindAllStringSubmatch(raw, -1) {
			b.importPath(m[1])
		}

		switch {
		case e.typescript && tsInterface.MatchString(trimmed):
			b.symbol(tsInterface.FindStringSubmatch(trimmed)[1], models.KindInterface, sig, doc, lineNo)
		case e.typescript && tsEnum.MatchString(trimmed):
			b.symbol(tsEnum.FindStringSubmatch(trimmed)[1], models.KindEnum, sig, doc, lineNo)
		case e.typescript && tsTypeAlias.MatchString(trimmed):
			b.symbol(tsTypeAlias.FindStringSubmatch(trimmed)[1], models.KindType, sig, doc, lineNo)
		case jsExportClass.MatchString(trimmed):
			b.symbol(jsExportClass.FindStringSubmatch(trimmed)[1], models.KindClass, sig, doc, lineNo)
		case jsExportFunc.MatchString(trimmed):
			if name := jsExportFunc.FindStringSubmatch(trimmed)[1]; name != "" {
				b.symbol(name, models.KindFunction, sig, doc, lineNo)
			}
		case jsExportConst.MatchString(trimmed):
			kind := models.KindType
			if strings.Contains(trimmed, "=>") || strings.Contains(trimmed, "function") {
				kind = models.KindFunction
			}
			b.symbol(jsExportConst.FindStringSubmatch(trimmed)[1], kind, sig, doc, lineNo)
		case jsModuleExp.MatchString(trimmed):
			b.symbol(jsModuleExp.FindStringSubmatch(trimmed)[1], models.KindFunction, sig, doc, lineNo)
		}

		for _, m := range jsEnvPattern.FindAllStringSubmatch(raw, -1) {
			name := m[1]
			if name == "" {
				name = m[2]
			}
			b.envVar(name, "", lineNo, trimmed)
		}
		if strings.HasPrefix(trimmed, "throw ") {
			b.raised(trimmed, lineNo)
		}
	}

	return b.build(), nil
}
