package storage

import "testing"

func TestParseDate(t *testing.T) {
	tests := []struct {
		in      string
		wantErr bool
	}{
		{"2026-03-14", false},
		{"2026-02-30", true},
		{"14/03/2026", true},
		{"", true},
	}
	for _, tt := range tests {
		d, err := parseDate(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("parseDate(%q) err = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if err == nil && d.Format("2006-01-02") != tt.in {
			t.Errorf("parseDate(%q) = %s", tt.in, d)
		}
	}
}
