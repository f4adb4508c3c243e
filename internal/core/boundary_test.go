//go:build unit

package core_test

import (
	"go/parser"
	"go/token"
	"io/fs"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
)

const modulePath = "github.com/philiph/saml-fedcheck"

// sourceImports maps every non-test Go file below dir to its imports.
func sourceImports(t *testing.T, dir string) map[string][]string {
	t.Helper()
	out := make(map[string][]string)
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !strings.HasSuffix(path, ".go") || strings.HasSuffix(path, "_test.go") {
			return nil
		}
		file, err := parser.ParseFile(token.NewFileSet(), path, nil, parser.ImportsOnly)
		if err != nil {
			return err
		}
		for _, imp := range file.Imports {
			p, err := strconv.Unquote(imp.Path.Value)
			if err != nil {
				return err
			}
			out[path] = append(out[path], p)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("walk %s: %v", dir, err)
	}
	if len(out) == 0 {
		t.Fatalf("no Go files below %s", dir)
	}
	return out
}

func isStdlib(path string) bool {
	first, _, _ := strings.Cut(path, "/")
	return !strings.Contains(first, ".")
}

// TestCoreDoesNotImportOuterLayers keeps the core independent of adapters,
// built-in checks, configuration and the CLI.
func TestCoreDoesNotImportOuterLayers(t *testing.T) {
	forbidden := []string{
		modulePath + "/internal/adapters/",
		modulePath + "/internal/checks",
		modulePath + "/internal/config",
		modulePath + "/cmd/",
		modulePath + "/testfixtures/",
	}
	for file, imports := range sourceImports(t, ".") {
		for _, imp := range imports {
			for _, prefix := range forbidden {
				if strings.HasPrefix(imp, prefix) {
					t.Errorf("%s imports %s", file, imp)
				}
			}
		}
	}
}

// TestDomainUsesStandardLibraryOnly keeps the domain model free of
// third-party and internal dependencies.
func TestDomainUsesStandardLibraryOnly(t *testing.T) {
	for file, imports := range sourceImports(t, "domain") {
		for _, imp := range imports {
			if !isStdlib(imp) {
				t.Errorf("%s imports %s", file, imp)
			}
		}
	}
}

// TestAdaptersDoNotImportDrivingCode keeps driven adapters independent of
// the verification engine, the checks and the configuration file format.
func TestAdaptersDoNotImportDrivingCode(t *testing.T) {
	forbidden := []string{
		modulePath + "/internal/core/verification",
		modulePath + "/internal/checks",
		modulePath + "/internal/config",
		modulePath + "/testfixtures/",
	}
	for file, imports := range sourceImports(t, filepath.Join("..", "adapters")) {
		for _, imp := range imports {
			for _, prefix := range forbidden {
				if strings.HasPrefix(imp, prefix) {
					t.Errorf("%s imports %s", file, imp)
				}
			}
		}
	}
}
