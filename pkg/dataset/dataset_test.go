package dataset

import (
	"math"
	"reflect"
	"strings"
	"testing"
)

const sampleCSV = `nama,lat,lon,populasi
Bandung,-6.9147,107.6098,2444160
Bekasi,-6.2383,106.9756,2543676
Bandung,-6.9147,107.6098,2444160
Cimahi,-6.8841,107.5413,
Misty,abc,107.1,1000
,-6.5,107.0,500
`

func TestParseCoercion(t *testing.T) {
	t.Parallel()

	table, err := Parse(strings.NewReader(sampleCSV))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if got := table.Len(); got != 6 {
		t.Fatalf("Len = %d, want 6", got)
	}

	// Blank populasi coerces to missing, the row stays.
	cimahi := table.Rows[3]
	if cimahi.Name != "Cimahi" || cimahi.HasPopulation() {
		t.Errorf("Cimahi = %+v, want missing population", cimahi)
	}
	// Garbage lat coerces to missing too.
	misty := table.Rows[4]
	if !math.IsNaN(misty.Lat) {
		t.Errorf("Misty.Lat = %f, want NaN", misty.Lat)
	}
	if misty.HasCoords() {
		t.Error("Misty.HasCoords() = true, want false")
	}
	if !table.Rows[0].HasCoords() {
		t.Error("Bandung.HasCoords() = false, want true")
	}
}

func TestParseNamesSortedUnique(t *testing.T) {
	t.Parallel()

	table, err := Parse(strings.NewReader(sampleCSV))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	want := []string{"Bandung", "Bekasi", "Cimahi", "Misty"}
	if got := table.Names(); !reflect.DeepEqual(got, want) {
		t.Fatalf("Names() = %v, want %v", got, want)
	}
}

func TestParseHeaderCaseInsensitive(t *testing.T) {
	t.Parallel()

	table, err := Parse(strings.NewReader("Nama,LAT,Lon,Populasi\nBogor,-6.5971,106.8060,1043070\n"))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if table.Len() != 1 || table.Rows[0].Name != "Bogor" {
		t.Fatalf("unexpected table: %+v", table.Rows)
	}
}

func TestParseMissingColumns(t *testing.T) {
	t.Parallel()

	_, err := Parse(strings.NewReader("nama,lat\nBogor,-6.6\n"))
	if err == nil {
		t.Fatal("Parse accepted a header without lon/populasi")
	}
	for _, col := range []string{"lon", "populasi"} {
		if !strings.Contains(err.Error(), col) {
			t.Errorf("error %q does not name missing column %q", err, col)
		}
	}
}

func TestSnapshotReplace(t *testing.T) {
	t.Parallel()

	first := &Table{Rows: []Location{{Name: "A"}}}
	second := &Table{Rows: []Location{{Name: "B"}, {Name: "C"}}}

	snap := NewSnapshot(first)
	if got := snap.Current(); got.Len() != 1 {
		t.Fatalf("initial snapshot has %d rows, want 1", got.Len())
	}
	snap.Replace(second)
	if got := snap.Current(); got.Len() != 2 {
		t.Fatalf("replaced snapshot has %d rows, want 2", got.Len())
	}
}
