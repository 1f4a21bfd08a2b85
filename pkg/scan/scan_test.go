package scan

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/docbot-dev/docbot/pkg/models"
)

func writeTree(t *testing.T, root string, files map[string]string) {
	t.Helper()
	for rel, content := range files {
		abs := filepath.Join(root, filepath.FromSlash(rel))
		require.NoError(t, os.MkdirAll(filepath.Dir(abs), 0o755))
		require.NoError(t, os.WriteFile(abs, []byte(content), 0o644))
	}
}

func paths(files []models.SourceFile) []string {
	out := make([]string, 0, len(files))
	for _, f := range files {
		out = append(out, f.Path)
	}
	return out
}

func TestScanDetectsLanguagesAndSorts(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, map[string]string{
		"main.py":           "print('hi')\n",
		"core/engine.go":    "package core\n",
		"web/app.ts":        "export const x = 1;\n",
		"scripts/deploy.sh": "#!/bin/bash\necho hi\n",
		"README.txt":        "plain text\n",
	})

	got, err := New(nil).Scan(root)
	require.NoError(t, err)

	assert.Equal(t, []string{
		"core/engine.go",
		"main.py",
		"scripts/deploy.sh",
		"web/app.ts",
	}, paths(got))

	byPath := map[string]string{}
	for _, f := range got {
		byPath[f.Path] = f.Language
	}
	assert.Equal(t, "Go", byPath["core/engine.go"])
	assert.Equal(t, "Python", byPath["main.py"])
	assert.Equal(t, "TypeScript", byPath["web/app.ts"])
	assert.Equal(t, "Shell", byPath["scripts/deploy.sh"])
}

func TestScanSkipsNoiseDirs(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, map[string]string{
		"app.py":                    "x = 1\n",
		"node_modules/dep/index.js": "module.exports = {};\n",
		"__pycache__/cache.py":      "cached\n",
		".docbot/docs/index.py":     "ignored\n",
		".git/hook.py":              "hook\n",
		"src/target/gen.java":       "public class X {}\n",
		"src/feature.py":            "y = 2\n",
	})

	got, err := New(nil).Scan(root)
	require.NoError(t, err)
	assert.Equal(t, []string{"app.py", "src/feature.py"}, paths(got))
}

func TestScanHonorsIgnoreGlobs(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, map[string]string{
		"keep.py":           "a = 1\n",
		"gen/schema_gen.py": "b = 2\n",
		"proto/thing.pb.go": "package proto\n",
	})

	got, err := New([]string{"gen/**", "**/*.pb.go"}).Scan(root)
	require.NoError(t, err)
	assert.Equal(t, []string{"keep.py"}, paths(got))
}

func TestScanHonorsGitignore(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, map[string]string{
		".gitignore":     "secret/\n*.generated.py\n",
		"app.py":         "x = 1\n",
		"secret/key.py":  "k = 1\n",
		"a.generated.py": "g = 1\n",
	})

	got, err := New(nil).Scan(root)
	require.NoError(t, err)
	assert.Equal(t, []string{"app.py"}, paths(got))
}

func TestScanEmptyRepoIsNotAnError(t *testing.T) {
	got, err := New(nil).Scan(t.TempDir())
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestScanSkipsBinaryFiles(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, map[string]string{"app.py": "x = 1\n"})
	require.NoError(t, os.WriteFile(
		filepath.Join(root, "blob.bin"),
		[]byte{0x00, 0x01, 0x02, 0xff, 0xfe, 0x00},
		0o644,
	))

	got, err := New(nil).Scan(root)
	require.NoError(t, err)
	assert.Equal(t, []string{"app.py"}, paths(got))
}
