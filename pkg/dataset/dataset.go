// Package dataset loads the population CSV into memory and answers the
// filter queries the map page needs.
//
// The CSV is the system of record: every load produces an immutable Table
// that callers treat as read-only, so concurrent request handlers never
// see a half-updated dataset. Numeric cells are coerced best-effort —
// a cell that does not parse becomes "missing" rather than killing the
// whole import, mirroring how operators actually maintain these files.
package dataset

import (
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/samber/lo"
)

// Required CSV columns, matched case-insensitively against the header.
var requiredColumns = []string{"nama", "lat", "lon", "populasi"}

// Location is one row of the dataset. Lat, Lon and Population use NaN as
// the missing marker so a row can stay in the table even when a cell did
// not parse; the rendering layer decides what a missing value means.
type Location struct {
	Name       string
	Lat        float64
	Lon        float64
	Population float64
}

// HasCoords reports whether the row can be placed on the map.
func (l Location) HasCoords() bool {
	return !math.IsNaN(l.Lat) && !math.IsNaN(l.Lon)
}

// HasPopulation reports whether the populasi cell parsed.
func (l Location) HasPopulation() bool {
	return !math.IsNaN(l.Population)
}

// Table is an immutable snapshot of the loaded CSV.
type Table struct {
	Rows  []Location
	names []string // sorted distinct non-empty names, computed once at load
}

// Names returns the sorted distinct location names for the dropdown.
// The slice is shared; callers must not mutate it.
func (t *Table) Names() []string {
	if t == nil {
		return nil
	}
	return t.names
}

// Len returns the number of rows, tolerating a nil table so handlers can
// log sizes without guarding.
func (t *Table) Len() int {
	if t == nil {
		return 0
	}
	return len(t.Rows)
}

// Load reads the CSV at path into a Table.
func Load(path string) (*Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open dataset: %w", err)
	}
	defer f.Close()
	return Parse(f)
}

// Parse consumes CSV from r. Split out from Load so tests and future
// upload paths can feed data without touching the filesystem.
func Parse(r io.Reader) (*Table, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}

	cols := make(map[string]int, len(header))
	for i, h := range header {
		cols[strings.ToLower(strings.TrimSpace(h))] = i
	}

	var missing []string
	for _, want := range requiredColumns {
		if _, ok := cols[want]; !ok {
			missing = append(missing, want)
		}
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return nil, fmt.Errorf("dataset is missing required columns: %s (need %s)",
			strings.Join(missing, ", "), strings.Join(requiredColumns, ", "))
	}

	var rows []Location
	for {
		record, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read row %d: %w", len(rows)+2, err)
		}
		rows = append(rows, Location{
			Name:       strings.TrimSpace(record[cols["nama"]]),
			Lat:        coerceNumeric(record[cols["lat"]]),
			Lon:        coerceNumeric(record[cols["lon"]]),
			Population: coerceNumeric(record[cols["populasi"]]),
		})
	}

	names := lo.Uniq(lo.FilterMap(rows, func(l Location, _ int) (string, bool) {
		return l.Name, l.Name != ""
	}))
	sort.Strings(names)

	return &Table{Rows: rows, names: names}, nil
}

// coerceNumeric parses a cell as float64, returning NaN for anything that
// does not parse. Whitespace-only cells count as missing too.
func coerceNumeric(s string) float64 {
	s = strings.TrimSpace(s)
	if s == "" {
		return math.NaN()
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return math.NaN()
	}
	return v
}
