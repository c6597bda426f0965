package utils

import "testing"

func TestStandardiseHeader(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Incident Date", "incident_date"},
		{"  FRS_Name ", "frs_name"},
		{"Response Time (mins)", "response_time_mins"},
		{"p_vehicles", "p_vehicles"},
		{"--Odd--Header--", "odd_header"},
	}

	for _, tt := range tests {
		if got := StandardiseHeader(tt.in); got != tt.want {
			t.Errorf("StandardiseHeader(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestStandardiseLookupHeader(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"LAD22CD", "lad22cd"},
		{"p_LSOA21NM", "lsoa21nm"},
		{"c_FRA23 CD", "fra23_cd"},
	}

	for _, tt := range tests {
		if got := StandardiseLookupHeader(tt.in); got != tt.want {
			t.Errorf("StandardiseLookupHeader(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestTitleWords(t *testing.T) {
	if got := TitleWords("other_non-fire_incidents"); got != "Other Non Fire Incidents" {
		t.Errorf("TitleWords() = %q", got)
	}

	if got := NormalizeKey("  Kent   FRS "); got != "kent frs" {
		t.Errorf("NormalizeKey() = %q", got)
	}
}
