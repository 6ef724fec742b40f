package meeting

import (
	"regexp"
	"strings"
	"testing"
)

func TestDetectKnownProviders(t *testing.T) {
	tests := []struct {
		name    string
		text    string
		service Service
	}{
		{"zoom", "join: https://company.zoom.us/j/123456789?pwd=abc", ServiceZoom},
		{"zoomgov", "https://example.zoomgov.com/j/123456789", ServiceZoomGov},
		{"meet", "https://meet.google.com/abc-defg-hij", ServiceMeet},
		{"teams", "https://teams.microsoft.com/l/meetup-join/19%3ameeting_abc", ServiceTeams},
		{"jitsi", "https://meet.jit.si/daily-standup", ServiceJitsi},
		{"chime", "https://chime.aws/1234567890", ServiceChime},
		{"whereby", "https://whereby.com/our-room", ServiceWhereby},
		{"facetime", "https://facetime.apple.com/join#v=1&p=abc", ServiceFaceTime},
		{"slack huddle", "https://app.slack.com/huddle/T0123/C0456", ServiceSlackHuddle},
		{"pumble", "https://meet.pumble.com/some-room", ServicePumble},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l := Detect([]string{tt.text}, Options{})
			if l == nil {
				t.Fatalf("no link detected in %q", tt.text)
			}
			if l.Service != tt.service {
				t.Errorf("Service = %v, want %v", l.Service, tt.service)
			}
		})
	}
}

func TestDetectFieldOrder(t *testing.T) {
	fields := []string{
		"",
		"https://company.zoom.us/j/111111111",
		"https://meet.google.com/abc-defg-hij",
	}
	l := Detect(fields, Options{})
	if l == nil {
		t.Fatal("expected a link")
	}
	if l.Service != ServiceZoom {
		t.Errorf("Service = %v, want zoom (earlier field wins)", l.Service)
	}
}

func TestDetectNoMatch(t *testing.T) {
	if l := Detect([]string{"room 4B, second floor"}, Options{}); l != nil {
		t.Errorf("expected nil, got %v", l)
	}
}

func TestDetectCustomRegex(t *testing.T) {
	opts := Options{CustomRegex: regexp.MustCompile(`https://vc\.internal\.example\.com/\d+`)}
	l := Detect([]string{"dial in via https://vc.internal.example.com/4711"}, opts)
	if l == nil {
		t.Fatal("expected custom link")
	}
	if l.Service != ServiceOther {
		t.Errorf("Service = %v, want other", l.Service)
	}
}

func TestDetectAnyLinkFallback(t *testing.T) {
	text := "details: https://intranet.example.com/meetings/42"

	if l := Detect([]string{text}, Options{}); l != nil {
		t.Fatalf("fallback disabled, got %v", l)
	}

	l := Detect([]string{text}, Options{DetectAnyLink: true})
	if l == nil {
		t.Fatal("expected any-link fallback")
	}
	if l.Service != ServiceAnyLink {
		t.Errorf("Service = %v, want any_link", l.Service)
	}
}

func TestDetectMeetAuthUser(t *testing.T) {
	l := Detect([]string{"https://meet.google.com/abc-defg-hij"}, Options{AccountEmail: "me@example.com"})
	if l == nil {
		t.Fatal("expected a link")
	}
	if got := l.URL.Query().Get("authuser"); got != "me@example.com" {
		t.Errorf("authuser = %q, want me@example.com", got)
	}

	// Other services stay untouched.
	l = Detect([]string{"https://company.zoom.us/j/123456789"}, Options{AccountEmail: "me@example.com"})
	if l == nil {
		t.Fatal("expected a link")
	}
	if got := l.URL.Query().Get("authuser"); got != "" {
		t.Errorf("zoom link got authuser = %q", got)
	}
}

func TestStripHTML(t *testing.T) {
	in := `<div>Agenda<br/><a href="https://meet.google.com/abc-defg-hij">Join</a> &amp; notes</div>`
	out := StripHTML(in)

	if want := "https://meet.google.com/abc-defg-hij"; !strings.Contains(out, want) {
		t.Errorf("StripHTML lost the anchor href: %q", out)
	}
	if strings.Contains(out, "<div>") || strings.Contains(out, "<a") {
		t.Errorf("StripHTML left markup behind: %q", out)
	}
}
