package orders

import (
	"testing"
	"time"
)

func at(hhmmss string) time.Time {
	t, err := time.Parse("2006-01-02 15:04:05", "2025-03-10 "+hhmmss)
	if err != nil {
		panic(err)
	}
	return t
}

func TestScheduleWindowIsOpenAt(t *testing.T) {
	cases := []struct {
		name   string
		window ScheduleWindow
		local  time.Time
		open   bool
	}{
		{"before opening", ScheduleWindow{Opening: "09:00:00", Closing: "22:00:00"}, at("03:15:00"), false},
		{"exactly at opening", ScheduleWindow{Opening: "09:00:00", Closing: "22:00:00"}, at("09:00:00"), true},
		{"mid service", ScheduleWindow{Opening: "09:00:00", Closing: "22:00:00"}, at("13:30:00"), true},
		{"one second before close", ScheduleWindow{Opening: "09:00:00", Closing: "22:00:00"}, at("21:59:59"), true},
		{"closing second is closed", ScheduleWindow{Opening: "09:00:00", Closing: "22:00:00"}, at("22:00:00"), false},
		{"after closing", ScheduleWindow{Opening: "09:00:00", Closing: "22:00:00"}, at("23:00:00"), false},
		{"day marked closed", ScheduleWindow{Opening: "09:00:00", Closing: "22:00:00", IsClosed: true}, at("13:00:00"), false},
		{"24h sentinel open at midnight", ScheduleWindow{Opening: "00:00:00", Closing: "23:59:59"}, at("00:00:00"), true},
		{"24h sentinel open at last second", ScheduleWindow{Opening: "00:00:00", Closing: "23:59:59"}, at("23:59:59"), true},
		{"24h sentinel but closed flag wins", ScheduleWindow{Opening: "00:00:00", Closing: "23:59:59", IsClosed: true}, at("12:00:00"), false},
		{"inverted window never opens", ScheduleWindow{Opening: "22:00:00", Closing: "09:00:00"}, at("23:00:00"), false},
		{"hh:mm rows tolerated", ScheduleWindow{Opening: "09:00", Closing: "22:00"}, at("10:00:00"), true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := tc.window.IsOpenAt(tc.local); got != tc.open {
				t.Fatalf("IsOpenAt(%s) = %v, expected %v", tc.local.Format("15:04:05"), got, tc.open)
			}
		})
	}
}

func TestBranchLocalTimeFallsBackToUTC(t *testing.T) {
	instant := time.Date(2025, 3, 10, 3, 15, 0, 0, time.UTC)

	if got := BranchLocalTime("", instant); !got.Equal(instant) || got.Location() != time.UTC {
		t.Fatalf("expected UTC fallback, got %v", got)
	}
	if got := BranchLocalTime("Not/AZone", instant); got.Location() != time.UTC {
		t.Fatalf("expected UTC fallback for unknown zone, got %v", got)
	}

	mx := BranchLocalTime("America/Mexico_City", instant)
	if mx.Location().String() != "America/Mexico_City" {
		t.Fatalf("expected America/Mexico_City, got %v", mx.Location())
	}
}
