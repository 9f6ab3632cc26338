package utils

import (
	"testing"
	"time"
)

// ============================================================
// Тесты LocalDate - бакетирование по календарным дням
// ============================================================

func TestLocalDate(t *testing.T) {
	// 2024-01-31T23:30:00Z
	ms := time.Date(2024, 1, 31, 23, 30, 0, 0, time.UTC).UnixMilli()

	tests := []struct {
		name string
		tz   string
		want string
	}{
		// Граничный случай из требований: в UTC-5 сделка, закрытая
		// 31-го в 23:30 UTC, относится ещё к 31-му января
		{"UTC-5 stays on previous day", "America/New_York", "2024-01-31"},
		{"UTC keeps the date", "UTC", "2024-01-31"},
		{"UTC+9 rolls to next day", "Asia/Tokyo", "2024-02-01"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			loc, err := time.LoadLocation(tt.tz)
			if err != nil {
				t.Fatalf("failed to load tz %s: %v", tt.tz, err)
			}
			if got := LocalDate(ms, loc); got != tt.want {
				t.Errorf("LocalDate() = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestLocalDateNilLocation(t *testing.T) {
	ms := time.Date(2024, 6, 15, 12, 0, 0, 0, time.UTC).UnixMilli()
	if got := LocalDate(ms, nil); got != "2024-06-15" {
		t.Errorf("nil location should default to UTC, got %s", got)
	}
}

func TestMillisRoundTrip(t *testing.T) {
	now := time.Now().Truncate(time.Millisecond).UTC()
	if got := MillisToTime(TimeToMillis(now)); !got.Equal(now) {
		t.Errorf("round trip mismatch: got %v, want %v", got, now)
	}
}

func TestParseTimezone(t *testing.T) {
	loc, err := ParseTimezone("")
	if err != nil || loc != time.UTC {
		t.Errorf("empty timezone should be UTC, got %v, %v", loc, err)
	}

	if _, err := ParseTimezone("America/New_York"); err != nil {
		t.Errorf("valid IANA name failed: %v", err)
	}

	if _, err := ParseTimezone("Not/AZone"); err == nil {
		t.Error("expected error for unknown timezone")
	}
}

func TestDateRange(t *testing.T) {
	from := time.Date(2024, 1, 30, 10, 0, 0, 0, time.UTC).UnixMilli()
	to := time.Date(2024, 2, 2, 10, 0, 0, 0, time.UTC).UnixMilli()

	got := DateRange(from, to, time.UTC)
	want := []string{"2024-01-30", "2024-01-31", "2024-02-01", "2024-02-02"}

	if len(got) != len(want) {
		t.Fatalf("expected %d dates, got %d: %v", len(want), len(got), got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("date[%d] = %s, want %s", i, got[i], want[i])
		}
	}
}

func TestDateRangeInverted(t *testing.T) {
	if got := DateRange(100, 50, time.UTC); got != nil {
		t.Errorf("inverted range should return nil, got %v", got)
	}
}
