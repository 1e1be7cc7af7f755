package basemerge

import (
	"github.com/beetlebugorg/basemerge/internal/layerio"
)

// LookupTable is a CSV table whose first row names the columns.
type LookupTable = layerio.LookupTable

// JoinReport counts matched and unmatched features of a lookup join.
type JoinReport = layerio.JoinReport

// ReadLookupTable loads a CSV lookup table. Numeric cells are float64.
func ReadLookupTable(path string) (*LookupTable, error) {
	return layerio.ReadLookupTable(path)
}

// JoinLookup copies table columns onto the features of l whose layerField
// matches the table's tableKey column. All columns but the key are copied
// when none are listed.
func JoinLookup(l *Layer, t *LookupTable, layerField, tableKey string, columns ...string) (JoinReport, error) {
	return layerio.JoinLookup(l.l, t, layerField, tableKey, columns...)
}
