package filter

import (
	"testing"

	"github.com/conwatch/conwatch/internal/catalog"
)

func testCatalog() []catalog.Conjunction {
	return []catalog.Conjunction{
		{AlertLevel: catalog.AlertRed, DistanceKm: 0.8,
			Sat1: catalog.Satellite{Name: "A", CatalogNumber: 100},
			Sat2: catalog.Satellite{Name: "B", CatalogNumber: 200}},
		{AlertLevel: catalog.AlertYellow, DistanceKm: 15.0,
			Sat1: catalog.Satellite{Name: "C", CatalogNumber: 300},
			Sat2: catalog.Satellite{Name: "D", CatalogNumber: 400}},
		{AlertLevel: catalog.AlertGreen, DistanceKm: 42.7,
			Sat1: catalog.Satellite{Name: "E", CatalogNumber: 500},
			Sat2: catalog.Satellite{Name: "F", CatalogNumber: 600}},
		{AlertLevel: catalog.AlertRed, DistanceKm: 9.9,
			Sat1: catalog.Satellite{Name: "G", CatalogNumber: 700},
			Sat2: catalog.Satellite{Name: "H", CatalogNumber: 800}},
	}
}

// TestApplyLevels verifies independent alert level gating.
func TestApplyLevels(t *testing.T) {
	conjunctions := testCatalog()

	tests := []struct {
		name     string
		criteria Criteria
		want     []int // expected sat1 catalog numbers, in order
	}{
		{"all levels", DefaultCriteria(), []int{100, 300, 500, 700}},
		{"red only", Criteria{ShowHigh: true}, []int{100, 700}},
		{"yellow only", Criteria{ShowMedium: true}, []int{300}},
		{"green only", Criteria{ShowLow: true}, []int{500}},
		{"red and green", Criteria{ShowHigh: true, ShowLow: true}, []int{100, 500, 700}},
		{"none", Criteria{}, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Apply(tt.criteria, conjunctions)
			if len(got) != len(tt.want) {
				t.Fatalf("got %d results, want %d", len(got), len(tt.want))
			}
			for i, conj := range got {
				if conj.Sat1.CatalogNumber != tt.want[i] {
					t.Errorf("result[%d]: got catalog %d, want %d", i, conj.Sat1.CatalogNumber, tt.want[i])
				}
			}
		})
	}
}

// TestApplyDistanceBound verifies the inclusive maximum distance bound.
func TestApplyDistanceBound(t *testing.T) {
	conjunctions := testCatalog()

	criteria := DefaultCriteria()
	criteria.MaxDistanceKm = 15.0
	got := Apply(criteria, conjunctions)
	if len(got) != 3 {
		t.Fatalf("got %d results, want 3", len(got))
	}
	// The 15.0 km record sits exactly on the bound and must survive.
	if got[1].DistanceKm != 15.0 {
		t.Errorf("record on the bound was excluded")
	}

	// Zero means unbounded, not "nothing closer than zero".
	criteria.MaxDistanceKm = 0
	if got := Apply(criteria, conjunctions); len(got) != 4 {
		t.Errorf("zero bound should be unbounded, got %d results", len(got))
	}
}

// TestApplyOrderPreserving verifies the result is a subsequence of the input.
func TestApplyOrderPreserving(t *testing.T) {
	conjunctions := testCatalog()
	got := Apply(Criteria{ShowHigh: true, ShowMedium: true}, conjunctions)

	i := 0
	for _, conj := range conjunctions {
		if i < len(got) && got[i].Sat1.CatalogNumber == conj.Sat1.CatalogNumber {
			i++
		}
	}
	if i != len(got) {
		t.Error("result is not an ordered subsequence of the input")
	}
}

// TestApplyDoesNotMutate verifies the input slice is untouched.
func TestApplyDoesNotMutate(t *testing.T) {
	conjunctions := testCatalog()
	before := make([]catalog.Conjunction, len(conjunctions))
	copy(before, conjunctions)

	Apply(Criteria{ShowHigh: true, MaxDistanceKm: 1}, conjunctions)

	for i := range conjunctions {
		if conjunctions[i].Sat1.CatalogNumber != before[i].Sat1.CatalogNumber {
			t.Fatal("input slice mutated")
		}
	}
}

// TestIsEmpty verifies the all-off short circuit.
func TestIsEmpty(t *testing.T) {
	if !(Criteria{}).IsEmpty() {
		t.Error("all-off criteria should be empty")
	}
	if (Criteria{ShowLow: true}).IsEmpty() {
		t.Error("criteria with one level on should not be empty")
	}
	if DefaultCriteria().IsEmpty() {
		t.Error("default criteria should not be empty")
	}
}
