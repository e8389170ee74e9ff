package utils

import (
	"strings"
	"testing"
)

func TestGeneratePermlink(t *testing.T) {
	permlink := GeneratePermlink("Will Inter beat Milan on Sunday?")
	if !strings.HasPrefix(permlink, "will-inter-beat-milan-on-sunday-") {
		t.Errorf("unexpected permlink %q", permlink)
	}

	// Unique per call even for identical titles.
	other := GeneratePermlink("Will Inter beat Milan on Sunday?")
	if permlink == other {
		t.Errorf("expected unique permlinks, got %q twice", permlink)
	}
}

func TestGeneratePermlinkFallback(t *testing.T) {
	permlink := GeneratePermlink("???!!!")
	if !strings.HasPrefix(permlink, "prediction-") {
		t.Errorf("expected fallback slug, got %q", permlink)
	}
}

func TestSlugify(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"Hello World", "hello-world"},
		{"  spaced   out  ", "spaced-out"},
		{"UPPER case 123", "upper-case-123"},
		{"émoji ☃ stuff", "moji-stuff"},
		{"", ""},
	}
	for _, tc := range cases {
		if got := slugify(tc.in); got != tc.want {
			t.Errorf("slugify(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}

	long := slugify(strings.Repeat("abcde ", 30))
	if len(long) > maxSlugLen {
		t.Errorf("slug length %d exceeds %d", len(long), maxSlugLen)
	}
}
