// Package airports resolves user-supplied locations to Thai airport codes
// and maps airports to the province used for weather lookups.
package airports

import (
	"errors"
	"fmt"
	"strings"
)

// ErrUnresolved is returned when a location cannot be mapped to any airport.
var ErrUnresolved = errors.New("unresolved location")

// Province describes the province an airport sits in, with the coordinates
// used by the weather ingestion pipeline.
type Province struct {
	Name      string
	Latitude  float64
	Longitude float64
}

type airport struct {
	code     string
	province string
	aliases  []string
}

// The alias table covers city and airport names in English and Thai plus the
// IATA codes themselves.
var airportTable = []airport{
	{"BKK", "Bangkok", []string{"suvarnabhumi", "สุวรรณภูมิ"}},
	{"DMK", "Bangkok", []string{"don mueang", "don muang", "ดอนเมือง"}},
	{"HKT", "Phuket", []string{"phuket", "ภูเก็ต"}},
	{"CNX", "Chiang Mai", []string{"chiang mai", "chiangmai", "เชียงใหม่"}},
	{"CEI", "Chiang Rai", []string{"chiang rai", "chiangrai", "เชียงราย"}},
	{"KBV", "Krabi", []string{"krabi", "กระบี่"}},
	{"USM", "Surat Thani", []string{"samui", "koh samui", "สมุย", "เกาะสมุย"}},
	{"URT", "Surat Thani", []string{"surat thani", "สุราษฎร์ธานี"}},
	{"HDY", "Songkhla", []string{"hat yai", "hatyai", "หาดใหญ่"}},
	{"UTH", "Udon Thani", []string{"udon thani", "อุดรธานี"}},
	{"KKC", "Khon Kaen", []string{"khon kaen", "ขอนแก่น"}},
	{"UBP", "Ubon Ratchathani", []string{"ubon ratchathani", "ubon", "อุบลราชธานี"}},
	{"NST", "Nakhon Si Thammarat", []string{"nakhon si thammarat", "นครศรีธรรมราช"}},
	{"TST", "Trang", []string{"trang", "ตรัง"}},
	{"NAW", "Narathiwat", []string{"narathiwat", "นราธิวาส"}},
	{"PHS", "Phitsanulok", []string{"phitsanulok", "พิษณุโลก"}},
}

// cityAliases maps city-level names to the full airport set serving the
// city. Multi-airport expansion is a policy list; only Bangkok has more than
// one airport today.
var cityAliases = map[string][]string{
	"bangkok":       {"BKK", "DMK"},
	"กรุงเทพ":       {"BKK", "DMK"},
	"กรุงเทพฯ":      {"BKK", "DMK"},
	"กรุงเทพมหานคร": {"BKK", "DMK"},
}

var provinceTable = map[string]Province{
	"Bangkok":             {"Bangkok", 13.7563, 100.5018},
	"Phuket":              {"Phuket", 7.8804, 98.3923},
	"Chiang Mai":          {"Chiang Mai", 18.7883, 98.9853},
	"Chiang Rai":          {"Chiang Rai", 19.9105, 99.8406},
	"Krabi":               {"Krabi", 8.0863, 98.9063},
	"Surat Thani":         {"Surat Thani", 9.1382, 99.3215},
	"Songkhla":            {"Songkhla", 7.1756, 100.6142},
	"Udon Thani":          {"Udon Thani", 17.4138, 102.7870},
	"Khon Kaen":           {"Khon Kaen", 16.4419, 102.8360},
	"Ubon Ratchathani":    {"Ubon Ratchathani", 15.2286, 104.8564},
	"Nakhon Si Thammarat": {"Nakhon Si Thammarat", 8.4304, 99.9631},
	"Trang":               {"Trang", 7.5563, 99.6114},
	"Narathiwat":          {"Narathiwat", 6.4251, 101.8253},
	"Phitsanulok":         {"Phitsanulok", 16.8211, 100.2659},
}

// Resolve maps a textual location (city name, airport name, or IATA code, in
// English or Thai) to one or more airport codes. City-level names of
// multi-airport cities expand to the full set; an explicit airport code
// stays a single airport.
func Resolve(location string) ([]string, error) {
	loc := strings.ToLower(strings.TrimSpace(location))
	if loc == "" {
		return nil, fmt.Errorf("%w: empty location", ErrUnresolved)
	}

	if codes, ok := cityAliases[loc]; ok {
		return append([]string(nil), codes...), nil
	}

	upper := strings.ToUpper(loc)
	for _, a := range airportTable {
		if a.code == upper {
			return []string{a.code}, nil
		}
	}

	for _, a := range airportTable {
		for _, alias := range a.aliases {
			if alias == loc {
				return []string{a.code}, nil
			}
		}
	}

	return nil, fmt.Errorf("%w: %q", ErrUnresolved, location)
}

// ProvinceFor returns the province of an airport code, when known.
func ProvinceFor(code string) (Province, bool) {
	for _, a := range airportTable {
		if a.code == strings.ToUpper(code) {
			p, ok := provinceTable[a.province]
			return p, ok
		}
	}
	return Province{}, false
}

// AllProvinces returns every province with a known airport, for the weather
// ingestion default set.
func AllProvinces() []Province {
	seen := make(map[string]bool)
	var out []Province
	for _, a := range airportTable {
		if seen[a.province] {
			continue
		}
		seen[a.province] = true
		if p, ok := provinceTable[a.province]; ok {
			out = append(out, p)
		}
	}
	return out
}

// ProvinceByName looks a province up by its English name.
func ProvinceByName(name string) (Province, bool) {
	p, ok := provinceTable[name]
	return p, ok
}
