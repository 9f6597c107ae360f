package export

import (
	"encoding/csv"
	"fmt"
	"io"

	"tracecore/pkg/domain"
)

// plateColumns is the fixed header downstream sample-transfer sheets expect.
// Columns with no value for a part are left empty.
var plateColumns = []string{
	"Refname", "Well", "OD 600.0:nanometer", "Container ID",
	"Aliquot ID", "Aliquot Name", "OD600-48h",
	"pick_replicate", "TargetOD", "Sample_ID", "Gate",
	"control_replicate", "RNA Container ID",
}

// WritePlateCSV writes one row per part of the named collection. The
// collection must be registered in the trace.
func WritePlateCSV(w io.Writer, trace *domain.Trace, collectionID string) error {
	coll, ok := trace.Item(collectionID).(*domain.Collection)
	if !ok {
		return fmt.Errorf("collection %s not in trace", collectionID)
	}

	out := csv.NewWriter(w)
	if err := out.Write(plateColumns); err != nil {
		return err
	}
	for _, part := range coll.Parts() {
		row := map[string]string{
			"Refname":      "flow-plate",
			"Well":         part.Ref,
			"Container ID": coll.ID,
			"Aliquot ID":   part.ID,
		}
		if part.Sample != nil {
			row["Sample_ID"] = part.Sample.ID
			row["Aliquot Name"] = part.Sample.Name
		}
		if od, ok := part.Attributes.Get("od600").(float64); ok {
			row["OD 600.0:nanometer"] = fmt.Sprintf("%g", od)
		}
		record := make([]string, len(plateColumns))
		for i, col := range plateColumns {
			record[i] = row[col]
		}
		if err := out.Write(record); err != nil {
			return err
		}
	}
	out.Flush()
	return out.Error()
}
