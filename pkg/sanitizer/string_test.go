package sanitizer

import "testing"

func TestNormalizeLabel(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{
			name:  "trim spaces",
			input: "  Dental checkup  ",
			want:  "Dental checkup",
		},
		{
			name:  "multiple spaces between words",
			input: "Dental    checkup",
			want:  "Dental checkup",
		},
		{
			name:  "tabs and newlines",
			input: "Dental\t\ncheckup",
			want:  "Dental checkup",
		},
		{
			name:  "empty string",
			input: "",
			want:  "",
		},
		{
			name:  "only whitespace",
			input: "   \t\n  ",
			want:  "",
		},
		{
			name:  "preserve special characters",
			input: " Café & Spa™ ",
			want:  "Café & Spa™",
		},
		{
			name:  "hebrew characters",
			input: " תספורת יוסי ",
			want:  "תספורת יוסי",
		},
		{
			name:  "control characters dropped",
			input: "Stand\x00up\x1b call",
			want:  "Standup call",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := NormalizeLabel(tt.input)
			if got != tt.want {
				t.Errorf("NormalizeLabel(%q) = %q, want %q", tt.input, got, tt.want)
			}
			if again := NormalizeLabel(got); again != got {
				t.Errorf("NormalizeLabel is not idempotent: %q -> %q", got, again)
			}
		})
	}
}

func TestSanitizeOwnerType(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"lowercase", "Room", "room"},
		{"spaces become underscores", " Meeting Room ", "meeting_room"},
		{"punctuation collapses", "staff--member!!", "staff_member"},
		{"digits kept", "Desk 42", "desk_42"},
		{"empty", "   ", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := SanitizeOwnerType(tt.input); got != tt.want {
				t.Errorf("SanitizeOwnerType(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestSanitizeTimeZone(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"trim", " America/Vancouver ", "America/Vancouver"},
		{"double slash", "America//Argentina//Buenos_Aires", "America/Argentina/Buenos_Aires"},
		{"trailing slash", "Europe/Paris/", "Europe/Paris"},
		{"offset zone", "Etc/GMT+5", "Etc/GMT+5"},
		{"invalid left for validator", "Not a zone", "Not a zone"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := SanitizeTimeZone(tt.input); got != tt.want {
				t.Errorf("SanitizeTimeZone(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestSanitizeRecurrence(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"empty", "", ""},
		{"bare rule", " FREQ=DAILY ", "FREQ=DAILY"},
		{"crlf lines", "rrule:FREQ=WEEKLY;BYDAY=MO\r\nexdate:20240311T090000\r\n", "RRULE:FREQ=WEEKLY;BYDAY=MO\nEXDATE:20240311T090000"},
		{"blank lines dropped", "RRULE:FREQ=DAILY\n\n  \nRDATE:20240301T080000", "RRULE:FREQ=DAILY\nRDATE:20240301T080000"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := SanitizeRecurrence(tt.input)
			if got != tt.want {
				t.Errorf("SanitizeRecurrence(%q) = %q, want %q", tt.input, got, tt.want)
			}
			if again := SanitizeRecurrence(got); again != got {
				t.Errorf("SanitizeRecurrence is not idempotent: %q -> %q", got, again)
			}
		})
	}
}
