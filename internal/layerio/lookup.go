package layerio

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/beetlebugorg/basemerge/internal/conflate"
)

// LookupTable is a keyed CSV table. The first row holds the column names.
type LookupTable struct {
	Columns []string
	Rows    []map[string]interface{}
}

// ReadLookupTable loads a CSV lookup table from path.
func ReadLookupTable(path string) (*LookupTable, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	t, err := ParseLookupTable(f)
	if err != nil {
		return nil, &FormatError{Path: path, Err: err}
	}
	return t, nil
}

// ParseLookupTable reads CSV from r. Numeric cells become float64.
func ParseLookupTable(r io.Reader) (*LookupTable, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true
	header, err := cr.Read()
	if err == io.EOF {
		return nil, fmt.Errorf("empty lookup table")
	}
	if err != nil {
		return nil, err
	}
	t := &LookupTable{Columns: make([]string, len(header))}
	for i, h := range header {
		t.Columns[i] = strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))
	}
	for {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		row := make(map[string]interface{}, len(rec))
		for i, cell := range rec {
			row[t.Columns[i]] = parseCell(cell)
		}
		t.Rows = append(t.Rows, row)
	}
	return t, nil
}

// JoinReport summarises JoinLookup.
type JoinReport struct {
	Matched   int
	Unmatched int
}

// JoinLookup copies the columns of the table row whose tableKey equals each
// feature's layerField onto the feature. Keys are compared as trimmed text
// so that 12 and "12" match. The first table row wins on duplicate keys.
// Only the listed columns are copied when columns is non-empty.
func JoinLookup(l *conflate.Layer, t *LookupTable, layerField, tableKey string, columns ...string) (JoinReport, error) {
	var report JoinReport
	found := false
	for _, c := range t.Columns {
		if c == tableKey {
			found = true
			break
		}
	}
	if !found {
		return report, fmt.Errorf("lookup table has no column %q", tableKey)
	}

	index := make(map[string]map[string]interface{}, len(t.Rows))
	for _, row := range t.Rows {
		k := keyString(row[tableKey])
		if _, dup := index[k]; !dup {
			index[k] = row
		}
	}
	copyCols := columns
	if len(copyCols) == 0 {
		for _, c := range t.Columns {
			if c != tableKey {
				copyCols = append(copyCols, c)
			}
		}
	}

	for _, f := range l.Features {
		row, ok := index[keyString(f.Attrs[layerField])]
		if !ok {
			report.Unmatched++
			continue
		}
		for _, c := range copyCols {
			f.Attrs[c] = row[c]
		}
		report.Matched++
	}
	return report, nil
}

func keyString(v interface{}) string {
	switch k := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(k)
	case float64:
		return strings.TrimSpace(fmt.Sprintf("%v", k))
	}
	return strings.TrimSpace(fmt.Sprint(v))
}
