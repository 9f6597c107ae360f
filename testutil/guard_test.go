package testutil

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeGoFile(t *testing.T, dir, name, src string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte(src), 0o600); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
}

func TestDirectImportViolations(t *testing.T) {
	dir := t.TempDir()
	writeGoFile(t, dir, "clean.go", "package p\n\nimport \"fmt\"\n\nvar _ = fmt.Sprint\n")
	writeGoFile(t, dir, "dirty.go", "package p\n\nimport _ \"example.com/internal/hidden\"\n")
	writeGoFile(t, dir, "dirty_test.go", "package p\n\nimport _ \"example.com/internal/other\"\n")

	viols, err := directImportViolations(dir, InternalImportForbidden)
	if err != nil {
		t.Fatalf("directImportViolations: %v", err)
	}
	if len(viols) != 1 {
		t.Fatalf("violations = %v, want one", viols)
	}
	if !strings.Contains(viols[0], "dirty.go") {
		t.Fatalf("violation should name dirty.go: %s", viols[0])
	}
}

func TestInternalImportForbidden(t *testing.T) {
	if !InternalImportForbidden("tracecore/internal/lims") {
		t.Fatalf("internal path should be forbidden")
	}
	if InternalImportForbidden("tracecore/pkg/wells") {
		t.Fatalf("pkg path should be allowed")
	}
}
