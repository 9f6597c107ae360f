package domain

import (
	"testing"

	"tracecore/testutil"
)

// TestDomainDoesNotImportInternal enforces the architectural rule that the
// domain layer must not depend on any internal implementation packages. The
// graph factory, repair rules, and exporters all import domain; an import in
// the other direction would create a cycle.
func TestDomainDoesNotImportInternal(t *testing.T) {
	testutil.AssertNoDirectImports(t, ".", testutil.InternalImportForbidden,
		"domain package must not import internal packages")
}
