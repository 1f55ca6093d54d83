package match

import (
	"encoding/json"
	"sort"
	"strings"
	"testing"
	"time"
)

func TestArenas(t *testing.T) {
	records := []MatchRecord{
		{VenueName: "Мегаспорт"},
		{VenueName: ""},
		{VenueName: "Arena X"},
		{VenueName: "Мегаспорт"},
		{VenueName: "Arena A"},
	}

	got := Arenas(records)
	want := []string{"Arena A", "Arena X", "Мегаспорт"}
	if strings.Join(got, "|") != strings.Join(want, "|") {
		t.Errorf("Arenas() = %v, want %v", got, want)
	}
	if !sort.StringsAreSorted(got) {
		t.Error("Arenas() not sorted")
	}
	for _, a := range got {
		if a == "" {
			t.Error("Arenas() contains empty string")
		}
	}
}

func TestArenas_Empty(t *testing.T) {
	got := Arenas(nil)
	if got == nil || len(got) != 0 {
		t.Errorf("Arenas(nil) = %#v, want empty non-nil slice", got)
	}
}

func TestNewSnapshot(t *testing.T) {
	at := time.Date(2026, 10, 17, 12, 0, 0, 0, time.UTC)
	records := []MatchRecord{
		{Date: Date{2099, time.January, 1}, VenueName: "B"},
		{Date: Date{2099, time.January, 2}, VenueName: "A"},
	}

	s := NewSnapshot(records, at)
	if s.TotalMatches != 2 || len(s.Matches) != 2 {
		t.Errorf("TotalMatches = %d, len(Matches) = %d", s.TotalMatches, len(s.Matches))
	}
	if strings.Join(s.Arenas, ",") != "A,B" {
		t.Errorf("Arenas = %v", s.Arenas)
	}
	if s.Failed() {
		t.Error("new snapshot should not be failed")
	}
	if !s.LastUpdate.Equal(at) {
		t.Errorf("LastUpdate = %v", s.LastUpdate)
	}
}

func TestFailedSnapshot_JSON(t *testing.T) {
	at := time.Date(2026, 10, 17, 12, 0, 0, 0, time.UTC)
	s := FailedSnapshot("table_not_found: all strategies exhausted", at)

	b, err := json.Marshal(s)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}

	var doc map[string]any
	if err := json.Unmarshal(b, &doc); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}

	if m, ok := doc["matches"].([]any); !ok || len(m) != 0 {
		t.Errorf("matches = %#v, want []", doc["matches"])
	}
	if a, ok := doc["arenas"].([]any); !ok || len(a) != 0 {
		t.Errorf("arenas = %#v, want []", doc["arenas"])
	}
	if doc["total_matches"] != float64(0) {
		t.Errorf("total_matches = %v, want 0", doc["total_matches"])
	}
	if doc["error"] == "" || doc["error"] == nil {
		t.Error("error field missing")
	}
}

func TestSnapshot_ErrorOmittedOnSuccess(t *testing.T) {
	b, err := json.Marshal(NewSnapshot(nil, time.Now()))
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	if strings.Contains(string(b), `"error"`) {
		t.Errorf("successful snapshot should omit error: %s", b)
	}
	if !strings.Contains(string(b), `"matches":[]`) {
		t.Errorf("matches should encode as []: %s", b)
	}
}

func TestSnapshot_RecordJSONFields(t *testing.T) {
	rec := MatchRecord{
		Weekday: "Сб", Date: Date{2099, time.January, 1}, Tour: "1", GameNumber: "5",
		Time: "18:00", Year: "2012", Pair: "A – B", VenueName: "Arena X",
		MapLink: "https://yandex.ru/maps/", Address: "Addr 1",
	}
	b, err := json.Marshal(rec)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	for _, key := range []string{`"day"`, `"date":"01.01.2099"`, `"tour"`, `"game_number"`, `"time"`, `"year"`, `"pair"`, `"venue_name"`, `"map_link"`, `"address"`} {
		if !strings.Contains(string(b), key) {
			t.Errorf("encoded record missing %s: %s", key, b)
		}
	}
}
