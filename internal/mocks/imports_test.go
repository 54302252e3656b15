package mocks

import (
	"go/parser"
	"go/token"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// The task and service tests import this package, so it must stay below
// both of them in the import graph.
func TestMocksStayBelowConsumers(t *testing.T) {
	t.Parallel()

	files, err := filepath.Glob("*.go")
	require.NoError(t, err)

	imports := map[string]string{}
	fset := token.NewFileSet()
	for _, name := range files {
		if strings.HasSuffix(name, "_test.go") {
			continue
		}
		f, err := parser.ParseFile(fset, name, nil, parser.ImportsOnly)
		require.NoError(t, err)
		for _, imp := range f.Imports {
			path, err := strconv.Unquote(imp.Path.Value)
			require.NoError(t, err)
			imports[path] = name
		}
	}
	require.NotEmpty(t, imports)

	forbidden := []struct {
		name string
		path string
	}{
		{"task package", "github.com/kunoai/kuno-engine/internal/task"},
		{"service package", "github.com/kunoai/kuno-engine/internal/service"},
		{"api package", "github.com/kunoai/kuno-engine/internal/api"},
	}

	for _, tc := range forbidden {
		t.Run(tc.name, func(t *testing.T) {
			file, found := imports[tc.path]
			assert.False(t, found, "%s imports %s", file, tc.path)
		})
	}
}
