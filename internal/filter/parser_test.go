package filter

import (
	"testing"
	"time"

	"github.com/vsporte/fhm-matches/internal/match"
)

func TestParseDateRange(t *testing.T) {
	today := match.Date{Year: 2099, Month: time.May, Day: 10}

	tests := []struct {
		name     string
		input    string
		wantFrom string
		wantTo   string
		wantErr  bool
	}{
		{name: "explicit range", input: "01.03.2099 - 15.03.2099", wantFrom: "01.03.2099", wantTo: "15.03.2099"},
		{name: "range without spaces", input: "1.3.2099-5.4.2099", wantFrom: "01.03.2099", wantTo: "05.04.2099"},
		{name: "single day", input: "07.06.2099", wantFrom: "07.06.2099", wantTo: "07.06.2099"},
		{name: "numeric month", input: "02.2100", wantFrom: "01.02.2100", wantTo: "28.02.2100"},
		{name: "leap february", input: "2.2096", wantFrom: "01.02.2096", wantTo: "29.02.2096"},
		{name: "month name this year", input: "июнь", wantFrom: "01.06.2099", wantTo: "30.06.2099"},
		{name: "genitive month name", input: "Мая", wantFrom: "01.05.2099", wantTo: "31.05.2099"},
		{name: "past month rolls over", input: "март", wantFrom: "01.03.2100", wantTo: "31.03.2100"},
		{name: "english month with year", input: "December 2099", wantFrom: "01.12.2099", wantTo: "31.12.2099"},
		{name: "reversed range", input: "15.03.2099 - 01.03.2099", wantErr: true},
		{name: "invalid day in range", input: "31.02.2099 - 01.03.2099", wantErr: true},
		{name: "month out of range", input: "13.2099", wantErr: true},
		{name: "unknown month name", input: "смарт", wantErr: true},
		{name: "empty", input: "  ", wantErr: true},
		{name: "garbage", input: "next week", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			from, to, err := ParseDateRange(tt.input, today)
			if tt.wantErr {
				if err == nil {
					t.Errorf("ParseDateRange(%q) expected error, got %s - %s", tt.input, from, to)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseDateRange(%q) unexpected error: %v", tt.input, err)
			}
			if from.String() != tt.wantFrom || to.String() != tt.wantTo {
				t.Errorf("ParseDateRange(%q) = %s - %s, want %s - %s", tt.input, from, to, tt.wantFrom, tt.wantTo)
			}
		})
	}
}

func TestParams_Filter(t *testing.T) {
	today := match.Date{Year: 2099, Month: time.May, Day: 10}

	t.Run("empty params give empty filter", func(t *testing.T) {
		f, err := Params{}.Filter(today)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !f.IsEmpty() {
			t.Errorf("filter = %s, want empty", f)
		}
	})

	t.Run("all fields", func(t *testing.T) {
		f, err := Params{Arena: " Арена ", Team: "Спартак", From: "1.6.2099", To: "30.6.2099", Weekends: true}.Filter(today)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		want := "From: 01.06.2099 | To: 30.06.2099 | Arenas: Арена | Teams: Спартак | Weekends only"
		if f.String() != want {
			t.Errorf("filter = %q, want %q", f.String(), want)
		}
	})

	t.Run("explicit from overrides range start", func(t *testing.T) {
		f, err := Params{Range: "июнь", From: "10.06.2099"}.Filter(today)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if f.DateFrom.String() != "10.06.2099" || f.DateTo.String() != "30.06.2099" {
			t.Errorf("range = %s - %s", f.DateFrom, f.DateTo)
		}
	})

	errCases := map[string]Params{
		"bad from":      {From: "2099-06-01"},
		"bad to":        {To: "yesterday"},
		"from after to": {From: "2.6.2099", To: "1.6.2099"},
		"bad range":     {Range: "soon"},
	}
	for name, p := range errCases {
		t.Run(name, func(t *testing.T) {
			if _, err := p.Filter(today); err == nil {
				t.Errorf("Params%+v.Filter() expected error", p)
			}
		})
	}
}
