package logparse

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"

	"logdrain-agent/internal/model"
)

func TestParseScalingEvent(t *testing.T) {
	tests := []struct {
		line string
		want []model.ScalingEvent
		user string
	}{
		{
			line: "Scaled to web@4:Standard-1X by user heroku.hirefire.api@example.com",
			want: []model.ScalingEvent{{Proc: "web", Count: 4, Size: "Standard-1X"}},
			user: "heroku.hirefire.api@example.com",
		},
		{
			line: "Scaled to celerybeat@1:Standard-1X celeryworkerhighmemory@1:Performance-M " +
				"celeryworkerhighprio@3:Standard-2X release@0:Standard-2X web@5:Performance-M " +
				"by user heroku.hirefire.api@example.com",
			want: []model.ScalingEvent{
				{Proc: "celerybeat", Count: 1, Size: "Standard-1X"},
				{Proc: "celeryworkerhighmemory", Count: 1, Size: "Performance-M"},
				{Proc: "celeryworkerhighprio", Count: 3, Size: "Standard-2X"},
				{Proc: "release", Count: 0, Size: "Standard-2X"},
				{Proc: "web", Count: 5, Size: "Performance-M"},
			},
			user: "heroku.hirefire.api@example.com",
		},
	}
	for _, tt := range tests {
		events, user, err := ParseScalingEvent(tt.line)
		if err != nil {
			t.Fatalf("ParseScalingEvent(%q): %v", tt.line, err)
		}
		if diff := cmp.Diff(tt.want, events); diff != "" {
			t.Fatalf("events mismatch (-want +got):\n%s", diff)
		}
		if user != tt.user {
			t.Fatalf("user = %q, want %q", user, tt.user)
		}
	}
}

func TestParseScalingEventRejects(t *testing.T) {
	for _, line := range []string{
		"",
		"Scaled to by user x@y.com",
		"Scaled to web@4:Standard-1X",
		"Scaled to web@70000:Standard-1X by user x@y.com",
		"Scaled to web@-1:Standard-1X by user x@y.com",
		"Scaled to web@4 by user x@y.com",
		"Scaled to web@4:Standard-1X by someone",
	} {
		if _, _, err := ParseScalingEvent(line); !errors.Is(err, ErrNotScalingEvent) {
			t.Errorf("ParseScalingEvent(%q) error = %v, want ErrNotScalingEvent", line, err)
		}
	}
}

func TestParseDynoError(t *testing.T) {
	tests := []struct {
		line string
		want DynoError
	}{
		{
			"Error R10 (Boot timeout) -> Web process failed to bind to $PORT within 60 seconds of launch",
			DynoError{"R10", "Boot timeout", "Web process failed to bind to $PORT within 60 seconds of launch"},
		},
		{
			"Error R12 (Exit timeout) -> Process failed to exit within 30 seconds of SIGTERM",
			DynoError{"R12", "Exit timeout", "Process failed to exit within 30 seconds of SIGTERM"},
		},
		{"Error R14 (Memory quota exceeded)", DynoError{"R14", "Memory quota exceeded", ""}},
		{"Error R15 (Memory quota vastly exceeded)", DynoError{"R15", "Memory quota vastly exceeded", ""}},
		{
			"Error R17 (Checksum error) -> Checksum does match expected value. Expected: SHA256:ed57",
			DynoError{"R17", "Checksum error", "Checksum does match expected value. Expected: SHA256:ed57"},
		},
	}
	for _, tt := range tests {
		got, err := ParseDynoError(tt.line)
		if err != nil {
			t.Fatalf("ParseDynoError(%q): %v", tt.line, err)
		}
		if got != tt.want {
			t.Fatalf("ParseDynoError(%q) = %+v, want %+v", tt.line, got, tt.want)
		}
	}
}

func TestParseDynoErrorRejects(t *testing.T) {
	for _, line := range []string{
		"",
		"Errors R10 (Boot timeout)",
		"Error R10 Boot timeout",
		"Error R10 (Boot timeout",
		"Error R10 (Boot timeout) trailing",
		"at=error code=H12",
	} {
		if _, err := ParseDynoError(line); !errors.Is(err, ErrNotDynoError) {
			t.Errorf("ParseDynoError(%q) error = %v, want ErrNotDynoError", line, err)
		}
	}
}
