package airports

import (
	"errors"
	"testing"
)

func TestResolve(t *testing.T) {
	tests := []struct {
		in   string
		want []string
	}{
		{"Bangkok", []string{"BKK", "DMK"}},
		{"กรุงเทพ", []string{"BKK", "DMK"}},
		{"BKK", []string{"BKK"}},
		{"dmk", []string{"DMK"}},
		{"Phuket", []string{"HKT"}},
		{"ภูเก็ต", []string{"HKT"}},
		{"Chiang Mai", []string{"CNX"}},
		{"hat yai", []string{"HDY"}},
	}
	for _, tt := range tests {
		got, err := Resolve(tt.in)
		if err != nil {
			t.Errorf("Resolve(%q): %v", tt.in, err)
			continue
		}
		if len(got) != len(tt.want) {
			t.Errorf("Resolve(%q) = %v, want %v", tt.in, got, tt.want)
			continue
		}
		for i := range got {
			if got[i] != tt.want[i] {
				t.Errorf("Resolve(%q) = %v, want %v", tt.in, got, tt.want)
				break
			}
		}
	}
}

func TestResolveUnknown(t *testing.T) {
	for _, in := range []string{"", "Atlantis", "XXX"} {
		_, err := Resolve(in)
		if !errors.Is(err, ErrUnresolved) {
			t.Errorf("Resolve(%q) err = %v, want ErrUnresolved", in, err)
		}
	}
}

func TestProvinceFor(t *testing.T) {
	p, ok := ProvinceFor("HKT")
	if !ok || p.Name != "Phuket" {
		t.Fatalf("ProvinceFor(HKT) = %+v, %v", p, ok)
	}
	if p.Latitude == 0 || p.Longitude == 0 {
		t.Error("province coordinates are zero")
	}
	if _, ok := ProvinceFor("XXX"); ok {
		t.Error("unknown airport resolved to a province")
	}
	// Both Bangkok airports share a province.
	a, _ := ProvinceFor("BKK")
	b, _ := ProvinceFor("DMK")
	if a.Name != b.Name {
		t.Errorf("BKK province %q != DMK province %q", a.Name, b.Name)
	}
}

func TestAllProvincesDistinct(t *testing.T) {
	seen := make(map[string]bool)
	for _, p := range AllProvinces() {
		if seen[p.Name] {
			t.Errorf("duplicate province %q", p.Name)
		}
		seen[p.Name] = true
	}
	if len(seen) < 10 {
		t.Errorf("only %d provinces known", len(seen))
	}
}
