package fiscal

import (
	"errors"
	"testing"
	"time"
)

func date(y int, m time.Month, d int) *time.Time {
	t := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	return &t
}

func TestDerive(t *testing.T) {
	tests := []struct {
		name     string
		date     *time.Time
		fallback string
		want     string
		wantErr  error
	}{
		{name: "May starts the year", date: date(2023, time.May, 1), want: "2023/24"},
		{name: "February belongs to previous year", date: date(2023, time.February, 1), want: "2022/23"},
		{name: "April first boundary", date: date(2023, time.April, 1), want: "2023/24"},
		{name: "March last day", date: date(2024, time.March, 31), want: "2023/24"},
		{name: "Date wins over fallback", date: date(2019, time.June, 1), fallback: "2023/24", want: "2019/20"},
		{name: "Calendar year fallback", fallback: "2023", want: "2023/24"},
		{name: "Label fallback", fallback: "2021/22", want: "2021/22"},
		{name: "Sheet tag fallback", fallback: "202122", want: "2021/22"},
		{name: "Century rollover", date: date(1999, time.December, 1), want: "1999/00"},
		{name: "Neither present", wantErr: ErrMissingTemporalKey},
		{name: "Garbage fallback", fallback: "sometime", wantErr: ErrMissingTemporalKey},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Derive(tt.date, tt.fallback)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("Derive() error = %v, want %v", err, tt.wantErr)
				}

				return
			}

			if err != nil {
				t.Fatalf("Derive() unexpected error: %v", err)
			}

			if got.Label() != tt.want {
				t.Errorf("Derive() = %s, want %s", got.Label(), tt.want)
			}
		})
	}
}

func TestParseLabel_Rejects(t *testing.T) {
	for _, s := range []string{"2023/25", "2023-2025", "23/24", ""} {
		if _, err := ParseLabel(s); !errors.Is(err, ErrInvalidLabel) {
			t.Errorf("ParseLabel(%q) error = %v, want ErrInvalidLabel", s, err)
		}
	}

	y, err := ParseLabel("2023/2024")
	if err != nil || y.Start != 2023 {
		t.Errorf("ParseLabel(2023/2024) = %v, %v", y, err)
	}
}

func TestYearOrdering(t *testing.T) {
	a := Year{Start: 2021}
	b := Year{Start: 2022}

	if !a.Before(b) || b.Before(a) {
		t.Error("Before ordering broken")
	}

	if a.Compare(b) != -1 || b.Compare(a) != 1 || a.Compare(a) != 0 {
		t.Error("Compare ordering broken")
	}

	years := Range(a, Year{Start: 2024})
	if len(years) != 4 || years[3].Label() != "2024/25" {
		t.Errorf("Range() = %v", years)
	}

	if Range(b, a) != nil {
		t.Error("Range with inverted bounds should be empty")
	}
}

func TestParseDate(t *testing.T) {
	tests := map[string]string{
		"2023-05-01":          "2023/24",
		"01/02/2023":          "2022/23",
		"2023-05-01 14:30:00": "2023/24",
		"15 March 2020":       "2019/20",
	}

	for in, want := range tests {
		d, err := ParseDate(in)
		if err != nil {
			t.Errorf("ParseDate(%q) error: %v", in, err)
			continue
		}

		if got := FromDate(d).Label(); got != want {
			t.Errorf("ParseDate(%q) -> %s, want %s", in, got, want)
		}
	}

	if _, err := ParseDate("not a date"); !errors.Is(err, ErrUnrecognisedDate) {
		t.Errorf("ParseDate() error = %v", err)
	}
}
