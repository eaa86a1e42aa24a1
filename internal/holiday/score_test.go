package holiday

import (
	"context"
	"testing"
	"time"

	"fare_analytics/internal/storage"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		want int
	}{
		{"วันสงกรานต์", tierMajorFestival},
		{"Songkran Festival", tierMajorFestival},
		{"วันขึ้นปีใหม่", tierMajorFestival},
		{"Christmas Day", tierMajorFestival},
		{"วันมาฆบูชา", tierImportant},
		{"Visakha Bucha Day", tierImportant},
		{"วันแม่แห่งชาติ", tierImportant},
		{"วันลอยกระทง", tierSpecial},
		{"วันรัฐธรรมนูญ", tierRegular},
		{"Chakri Memorial Day", tierRegular},
	}
	for _, tt := range tests {
		if got := classify(tt.name); got != tt.want {
			t.Errorf("classify(%q) = %d, want %d", tt.name, got, tt.want)
		}
	}
}

// A Songkran holiday on Monday April 13 scores the major-festival bonus,
// the long-weekend bonus, and the peak-month bonus.
func TestScoreSongkranLongWeekend(t *testing.T) {
	entries := []Entry{
		{Date: time.Date(2026, 4, 13, 0, 0, 0, 0, time.UTC), Name: "วันสงกรานต์", Category: CategoryNational},
	}
	got := Score(entries)
	want := 50.0 + 20 + 5 + 20 // base + major + long weekend + peak month
	if got != want {
		t.Errorf("Score = %v, want %v", got, want)
	}
}

func TestScoreClamped(t *testing.T) {
	var entries []Entry
	for day := 1; day <= 20; day++ {
		entries = append(entries, Entry{
			Date: time.Date(2026, 4, day, 0, 0, 0, 0, time.UTC),
			Name: "วันสงกรานต์",
		})
	}
	if got := Score(entries); got != 100 {
		t.Errorf("Score = %v, want clamp at 100", got)
	}
	if got := Score(nil); got != 50 {
		t.Errorf("Score(nil) = %v, want 50", got)
	}
}

func TestBuildStatFridayHoliday(t *testing.T) {
	// April 10 2026 is a Friday.
	entries := []Entry{
		{Date: time.Date(2026, 4, 10, 0, 0, 0, 0, time.UTC), Name: "วันสงกรานต์", Category: CategoryNational},
		{Date: time.Date(2026, 4, 6, 0, 0, 0, 0, time.UTC), Name: "Chakri Memorial Day", Category: CategoryNational},
	}
	stat := BuildStat("2026-04", entries)

	if stat.HolidaysCount != 2 {
		t.Errorf("HolidaysCount = %d", stat.HolidaysCount)
	}
	if stat.LongWeekendsCount < 1 {
		t.Errorf("LongWeekendsCount = %d, want >= 1 for a Friday holiday", stat.LongWeekendsCount)
	}
	// Major festival + long weekend + peak month, minimum.
	if stat.HolidayScore < 95 {
		t.Errorf("HolidayScore = %v, want >= 95", stat.HolidayScore)
	}
	if len(stat.Detail) != 2 || stat.Detail[0].Date != "2026-04-10" {
		t.Errorf("Detail = %+v", stat.Detail)
	}
}

// Regional (financial) holidays still count toward long weekends.
func TestCountLongWeekendsIncludesRegional(t *testing.T) {
	entries := []Entry{
		{Date: time.Date(2026, 7, 3, 0, 0, 0, 0, time.UTC), Name: "วันหยุดธนาคาร", Category: CategoryRegional}, // Friday
	}
	if got := CountLongWeekends(entries); got != 1 {
		t.Errorf("CountLongWeekends = %d, want 1", got)
	}
}

type statRecorder struct {
	stats []storage.HolidayStat
}

func (r *statRecorder) UpsertHolidayStat(ctx context.Context, s storage.HolidayStat) error {
	r.stats = append(r.stats, s)
	return nil
}

func TestStoreStatsGroupsByPeriod(t *testing.T) {
	rec := &statRecorder{}
	in := &Ingestor{Store: rec, Sleep: func(time.Duration) {}}

	entries := []Entry{
		{Date: time.Date(2026, 4, 13, 0, 0, 0, 0, time.UTC), Name: "วันสงกรานต์"},
		{Date: time.Date(2026, 4, 14, 0, 0, 0, 0, time.UTC), Name: "วันสงกรานต์"},
		{Date: time.Date(2026, 12, 31, 0, 0, 0, 0, time.UTC), Name: "วันสิ้นปี"},
	}
	if err := in.StoreStats(context.Background(), entries); err != nil {
		t.Fatal(err)
	}
	if len(rec.stats) != 2 {
		t.Fatalf("stats = %d, want 2 periods", len(rec.stats))
	}
	if rec.stats[0].Period != "2026-04" || rec.stats[0].HolidaysCount != 2 {
		t.Errorf("first stat = %+v", rec.stats[0])
	}
	if rec.stats[1].Period != "2026-12" || rec.stats[1].HolidaysCount != 1 {
		t.Errorf("second stat = %+v", rec.stats[1])
	}
}

func TestMapCategory(t *testing.T) {
	if mapCategory("public") != CategoryNational {
		t.Error("public should map to national")
	}
	if mapCategory("financial") != CategoryRegional {
		t.Error("financial should map to regional")
	}
}
