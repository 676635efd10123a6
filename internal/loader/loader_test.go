package loader

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// writeFiles creates the given files under a fresh temp directory and
// returns the directory.
func writeFiles(t *testing.T, files map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	for name, content := range files {
		path := filepath.Join(dir, name)
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	}
	return dir
}

func TestLoadSingleFile(t *testing.T) {
	dir := writeFiles(t, map[string]string{
		"main.em": "def square dup * end  5 square print",
	})

	result, err := New().Load(filepath.Join(dir, "main.em"))
	require.NoError(t, err)

	require.Contains(t, result.Words, "square")
	assert.Empty(t, result.Words["square"].Module)
	assert.Len(t, result.Exprs, 3)
}

func TestModuleRegistration(t *testing.T) {
	dir := writeFiles(t, map[string]string{
		"main.em": "module M def sq dup * end def cube dup dup * * end end",
	})

	result, err := New().Load(filepath.Join(dir, "main.em"))
	require.NoError(t, err)

	require.Contains(t, result.Words, "M.sq")
	require.Contains(t, result.Words, "M.cube")
	assert.Equal(t, "M", result.Words["M.sq"].Module)
	assert.NotContains(t, result.Words, "sq")
}

func TestImportRelativeToImporter(t *testing.T) {
	dir := writeFiles(t, map[string]string{
		"main.em":     `import "lib/math.em"  3 Math.sq print`,
		"lib/math.em": "module Math def sq dup * end end",
	})

	result, err := New().Load(filepath.Join(dir, "main.em"))
	require.NoError(t, err)

	assert.Contains(t, result.Words, "Math.sq")
	// Imported files contribute no top-level expressions.
	assert.Len(t, result.Exprs, 3)
}

func TestImportWithoutExtension(t *testing.T) {
	dir := writeFiles(t, map[string]string{
		"main.em": "import util  1 print",
		"util.em": "def noop end",
	})

	result, err := New().Load(filepath.Join(dir, "main.em"))
	require.NoError(t, err)
	assert.Contains(t, result.Words, "noop")
}

func TestImportStdlibFallback(t *testing.T) {
	stdlib := writeFiles(t, map[string]string{
		"strings.em": "module Strings def shout upper end end",
	})
	dir := writeFiles(t, map[string]string{
		"main.em": `import strings  "hi" Strings.shout print`,
	})

	result, err := New(WithStdlibDir(stdlib)).Load(filepath.Join(dir, "main.em"))
	require.NoError(t, err)
	assert.Contains(t, result.Words, "Strings.shout")
}

func TestDuplicateImportLoadedOnce(t *testing.T) {
	dir := writeFiles(t, map[string]string{
		"main.em": "import a\nimport b\n1 print",
		"a.em":    "import shared\ndef from-a end",
		"b.em":    "import shared\ndef from-b end",
		"shared.em": "def shared-word end",
	})

	result, err := New().Load(filepath.Join(dir, "main.em"))
	require.NoError(t, err)
	assert.Contains(t, result.Words, "shared-word")
	assert.Contains(t, result.Words, "from-a")
	assert.Contains(t, result.Words, "from-b")
}

func TestImportCycleDetected(t *testing.T) {
	dir := writeFiles(t, map[string]string{
		"main.em": "import a",
		"a.em":    "import b",
		"b.em":    "import a",
	})

	_, err := New().Load(filepath.Join(dir, "main.em"))
	require.Error(t, err)
	loadErr := &LoadError{}
	require.ErrorAs(t, err, &loadErr)
	assert.Equal(t, ImportCycle, loadErr.Kind)
}

func TestSelfImportIsACycle(t *testing.T) {
	dir := writeFiles(t, map[string]string{
		"main.em": "import main",
	})

	_, err := New().Load(filepath.Join(dir, "main.em"))
	require.Error(t, err)
	loadErr := &LoadError{}
	require.ErrorAs(t, err, &loadErr)
	assert.Equal(t, ImportCycle, loadErr.Kind)
}

func TestFileNotFound(t *testing.T) {
	dir := writeFiles(t, map[string]string{
		"main.em": "import missing",
	})

	_, err := New().Load(filepath.Join(dir, "main.em"))
	require.Error(t, err)
	loadErr := &LoadError{}
	require.ErrorAs(t, err, &loadErr)
	assert.Equal(t, FileNotFound, loadErr.Kind)

	_, err = New().Load(filepath.Join(dir, "nonexistent.em"))
	require.Error(t, err)
	require.ErrorAs(t, err, &loadErr)
	assert.Equal(t, FileNotFound, loadErr.Kind)
}

func TestDuplicateDefinition(t *testing.T) {
	tests := []string{
		"def x 1 end def x 2 end",
		"module M def x 1 end def x 2 end end",
		"module M def x 1 end end module M def x 2 end end",
	}
	for _, src := range tests {
		dir := writeFiles(t, map[string]string{"main.em": src})
		_, err := New().Load(filepath.Join(dir, "main.em"))
		require.Error(t, err, "source: %s", src)
		loadErr := &LoadError{}
		require.ErrorAs(t, err, &loadErr)
		assert.Equal(t, DuplicateDefinition, loadErr.Kind)
	}
}

func TestUseAliases(t *testing.T) {
	dir := writeFiles(t, map[string]string{
		"main.em": "module M def sq dup * end end  use M sq  7 sq print",
	})

	result, err := New().Load(filepath.Join(dir, "main.em"))
	require.NoError(t, err)
	assert.Equal(t, "M.sq", result.Aliases["sq"])
}

func TestUseWildcardSeesOnlyCurrentNames(t *testing.T) {
	dir := writeFiles(t, map[string]string{
		"main.em": "module M def a end end  use M *  module M def late end end",
	})

	result, err := New().Load(filepath.Join(dir, "main.em"))
	require.NoError(t, err)
	assert.Equal(t, "M.a", result.Aliases["a"])
	// Names defined after the use directive are not retroactively aliased.
	assert.NotContains(t, result.Aliases, "late")
}

func TestAmbiguousAlias(t *testing.T) {
	dir := writeFiles(t, map[string]string{
		"main.em": "module A def x end end  module B def x end end  use A x  use B x",
	})

	_, err := New().Load(filepath.Join(dir, "main.em"))
	require.Error(t, err)
	loadErr := &LoadError{}
	require.ErrorAs(t, err, &loadErr)
	assert.Equal(t, AmbiguousAlias, loadErr.Kind)
}

func TestRepeatedIdenticalAliasAllowed(t *testing.T) {
	dir := writeFiles(t, map[string]string{
		"main.em": "module A def x end end  use A x  use A x",
	})

	_, err := New().Load(filepath.Join(dir, "main.em"))
	assert.NoError(t, err)
}

func TestImportedTopLevelExpressionsIgnored(t *testing.T) {
	dir := writeFiles(t, map[string]string{
		"main.em": "import noisy  1 print",
		"noisy.em": "def quiet end  99 print",
	})

	var warnings bytes.Buffer
	result, err := New(WithWarnings(&warnings)).Load(filepath.Join(dir, "main.em"))
	require.NoError(t, err)

	// Only the root file's expressions survive.
	assert.Len(t, result.Exprs, 2)
	assert.Contains(t, warnings.String(), "ignored")
}
