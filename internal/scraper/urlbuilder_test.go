package scraper

import (
	"strings"
	"testing"
)

const testBase = "https://www.hepsiemlak.com"

func TestSearchURL(t *testing.T) {
	tests := []struct {
		name          string
		district      string
		status        string
		category      string
		neighborhoods []string
		want          string
	}{
		{
			name:     "basic sale search",
			district: "Kadıköy",
			status:   StatusForSale,
			want:     testBase + "/kadikoy-satilik",
		},
		{
			name:     "rent search",
			district: "Çankaya",
			status:   StatusForRent,
			want:     testBase + "/cankaya-kiralik",
		},
		{
			name:     "housing category omitted from path",
			district: "Kadıköy",
			status:   StatusForSale,
			category: CategoryHousing,
			want:     testBase + "/kadikoy-satilik",
		},
		{
			name:     "land category in path",
			district: "Silivri",
			status:   StatusForSale,
			category: CategoryLand,
			want:     testBase + "/silivri-satilik/arsa",
		},
		{
			name:          "neighborhood filter",
			district:      "Kadıköy",
			status:        StatusForSale,
			neighborhoods: []string{"Fenerbahçe", "Göztepe"},
			want:          testBase + "/kadikoy-satilik?districts=kadikoy-fenerbahce,kadikoy-goztepe",
		},
		{
			name:          "multi word neighborhood slugged",
			district:      "Şişli",
			status:        StatusForRent,
			category:      CategoryWorkplace,
			neighborhoods: []string{"Merkez Mahallesi"},
			want:          testBase + "/sisli-kiralik/isyeri?districts=sisli-merkez-mahallesi",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := SearchURL(testBase, tt.district, tt.status, tt.category, tt.neighborhoods)
			if got != tt.want {
				t.Errorf("SearchURL() = %q; want %q", got, tt.want)
			}
			if strings.ContainsAny(got, " \t\n") {
				t.Errorf("SearchURL() contains raw whitespace: %q", got)
			}
		})
	}
}

func TestSearchURLDeterministic(t *testing.T) {
	hoods := []string{"Caferağa", "Moda"}
	first := SearchURL(testBase, "Kadıköy", StatusForSale, CategoryHousing, hoods)
	for i := 0; i < 5; i++ {
		if got := SearchURL(testBase, "Kadıköy", StatusForSale, CategoryHousing, hoods); got != first {
			t.Fatalf("SearchURL not stable: %q vs %q", first, got)
		}
	}
}

func TestSearchURLTrimsBaseSlash(t *testing.T) {
	got := SearchURL(testBase+"/", "Bornova", StatusForSale, "", nil)
	want := testBase + "/bornova-satilik"
	if got != want {
		t.Errorf("SearchURL() = %q; want %q", got, want)
	}
}

func TestPageURL(t *testing.T) {
	tests := []struct {
		search string
		page   int
		want   string
	}{
		{testBase + "/kadikoy-satilik", 1, testBase + "/kadikoy-satilik"},
		{testBase + "/kadikoy-satilik", 0, testBase + "/kadikoy-satilik"},
		{testBase + "/kadikoy-satilik", 2, testBase + "/kadikoy-satilik?page=2"},
		{testBase + "/kadikoy-satilik?districts=kadikoy-moda", 3, testBase + "/kadikoy-satilik?districts=kadikoy-moda&page=3"},
	}

	for _, tt := range tests {
		if got := PageURL(tt.search, tt.page); got != tt.want {
			t.Errorf("PageURL(%q, %d) = %q; want %q", tt.search, tt.page, got, tt.want)
		}
	}
}

func TestValidStatus(t *testing.T) {
	if !ValidStatus(StatusForSale) || !ValidStatus(StatusForRent) {
		t.Error("expected known statuses to validate")
	}
	if ValidStatus("sold") || ValidStatus("") {
		t.Error("expected unknown statuses to fail validation")
	}
}
