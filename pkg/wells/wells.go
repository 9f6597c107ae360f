// Package wells provides the plate-well coordinate vocabulary shared by the
// trace graph builder and the repair rules.
//
// A well label is the usual row-letter/column-number form ("A1", "H12"): the
// row index maps to a letter starting at 'A' and the column index is
// one-based. Some upstream records carry the legacy bracket form "[[i,j]]"
// with zero-based numeric indices; NormalizeWell folds both spellings into
// the canonical label so every map keyed by well uses a single form.
package wells

import (
	"fmt"
	"strconv"
	"strings"
)

// Label returns the canonical well label for zero-based row i and column j.
func Label(i, j int) string {
	return fmt.Sprintf("%c%d", 'A'+rune(i), j+1)
}

// Coordinates returns the zero-based row and column for a canonical well
// label. It rejects labels whose row letter is outside A-Z or whose column
// part is not a positive integer.
func Coordinates(well string) (row, col int, err error) {
	if len(well) < 2 {
		return 0, 0, fmt.Errorf("wells: malformed well label %q", well)
	}
	r := well[0]
	if r < 'A' || r > 'Z' {
		return 0, 0, fmt.Errorf("wells: malformed well label %q", well)
	}
	n, convErr := strconv.Atoi(well[1:])
	if convErr != nil || n < 1 {
		return 0, 0, fmt.Errorf("wells: malformed well label %q", well)
	}
	return int(r - 'A'), n - 1, nil
}

// NormalizeWell converts any accepted well spelling into the canonical
// label. Canonical labels pass through unchanged; the legacy bracket form
// "[[i,j]]" is decoded from its zero-based indices. Anything else is an
// error.
func NormalizeWell(well string) (string, error) {
	if strings.HasPrefix(well, "[[") && strings.HasSuffix(well, "]]") {
		body := well[2 : len(well)-2]
		parts := strings.Split(body, ",")
		if len(parts) != 2 {
			return "", fmt.Errorf("wells: malformed bracket well %q", well)
		}
		i, err := strconv.Atoi(strings.TrimSpace(parts[0]))
		if err != nil {
			return "", fmt.Errorf("wells: malformed bracket well %q", well)
		}
		j, err := strconv.Atoi(strings.TrimSpace(parts[1]))
		if err != nil {
			return "", fmt.Errorf("wells: malformed bracket well %q", well)
		}
		if i < 0 || j < 0 {
			return "", fmt.Errorf("wells: malformed bracket well %q", well)
		}
		return Label(i, j), nil
	}
	if _, _, err := Coordinates(well); err != nil {
		return "", err
	}
	return well, nil
}
