package conflate

import (
	"sort"
)

// TransferOptions configures TransferAttributes.
type TransferOptions struct {
	// Fields lists the merge field names (see AssembleOptions.Fields).
	Fields FieldNames

	// NewTag prefixes transferred names that collide with a base field.
	NewTag string

	// KeepFields, when set, prunes every row to these names plus the merge
	// fields before transfer.
	KeepFields []string

	// Only, when set, restricts which new-feature attributes are copied.
	Only []string
}

// TransferReport summarises TransferAttributes.
type TransferReport struct {
	Joined  int
	Missing []int64 // NewIDs referenced by rows but absent from the new layer
	Renamed []string
}

// TransferAttributes copies new-feature attributes onto merged rows labelled
// New or Split that carry a NewID. Copied names that collide with a field
// already present in merged are written as <NewTag>_<name>.
func TransferAttributes(merged, newLayer *Layer, opts TransferOptions) TransferReport {
	var report TransferReport
	if len(opts.KeepFields) > 0 {
		merged.KeepFields(append(append([]string(nil), opts.KeepFields...), opts.Fields.Reserved()...)...)
	}
	existing := make(map[string]bool)
	for _, n := range merged.Fields() {
		existing[n] = true
	}
	byID := newLayer.ByID()
	only := make(map[string]bool, len(opts.Only))
	for _, n := range opts.Only {
		only[n] = true
	}
	missing := make(map[int64]bool)
	renamed := make(map[string]bool)

	for _, row := range merged.Features {
		rel := stringAttr(row, opts.Fields.Relationship)
		if rel != RelationshipNew.String() && rel != RelationshipSplit.String() {
			continue
		}
		newID := int64Attr(row, opts.Fields.NewID)
		if newID == 0 {
			continue
		}
		src, ok := byID[newID]
		if !ok {
			missing[newID] = true
			continue
		}
		names := make([]string, 0, len(src.Attrs))
		for k := range src.Attrs {
			if len(only) > 0 && !only[k] {
				continue
			}
			names = append(names, k)
		}
		sort.Strings(names)
		for _, k := range names {
			dst := k
			if existing[k] {
				dst = opts.NewTag + "_" + k
				renamed[dst] = true
			}
			row.Attrs[dst] = src.Attrs[k]
		}
		report.Joined++
	}

	for id := range missing {
		report.Missing = append(report.Missing, id)
	}
	sort.Slice(report.Missing, func(i, j int) bool { return report.Missing[i] < report.Missing[j] })
	for n := range renamed {
		report.Renamed = append(report.Renamed, n)
	}
	sort.Strings(report.Renamed)
	return report
}
