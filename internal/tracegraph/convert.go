package tracegraph

import (
	"encoding/json"
	"strconv"
	"strings"

	"tracecore/pkg/domain"
)

// routingSourceID extracts the source reference from a routing matrix
// entry. The "source" value is either a list of objects carrying an "id"
// or a bare scalar reference.
func routingSourceID(entry map[string]any) string {
	source, ok := entry["source"]
	if !ok {
		return ""
	}
	if list, ok := source.([]any); ok {
		if len(list) == 0 {
			return ""
		}
		if obj, ok := list[0].(map[string]any); ok {
			return anyToString(obj["id"])
		}
		return ""
	}
	return anyToString(source)
}

func splitRef(ref string) []string {
	return strings.Split(ref, "/")
}

// sampleOf returns the sample of an item or part entity, or nil.
func sampleOf(entity domain.Entity) *domain.Sample {
	switch e := entity.(type) {
	case *domain.Item:
		if e.Sample.ID == "" {
			return nil
		}
		s := e.Sample
		return &s
	case *domain.Part:
		return e.Sample
	}
	return nil
}

// anyToString renders a decoded JSON scalar as a string. Integral floats
// drop the fraction, so numeric IDs keep their canonical form.
func anyToString(v any) string {
	switch n := v.(type) {
	case string:
		return n
	case json.Number:
		return n.String()
	case float64:
		if n == float64(int64(n)) {
			return strconv.FormatInt(int64(n), 10)
		}
		return strconv.FormatFloat(n, 'f', -1, 64)
	case int:
		return strconv.Itoa(n)
	case bool:
		return strconv.FormatBool(n)
	}
	return ""
}

// anyToInt converts a decoded JSON scalar to an int.
func anyToInt(v any) (int, bool) {
	switch n := v.(type) {
	case float64:
		return int(n), true
	case int:
		return n, true
	case json.Number:
		i, err := n.Int64()
		if err != nil {
			return 0, false
		}
		return int(i), true
	case string:
		i, err := strconv.Atoi(n)
		if err != nil {
			return 0, false
		}
		return i, true
	}
	return 0, false
}

// asMatrix converts a decoded JSON value into a matrix of rows.
func asMatrix(v any) [][]any {
	rows, ok := v.([]any)
	if !ok {
		return nil
	}
	out := make([][]any, 0, len(rows))
	for _, raw := range rows {
		if row, ok := raw.([]any); ok {
			out = append(out, row)
		}
	}
	return out
}
