package triage

import (
	"strings"
	"testing"
	"unicode/utf8"
)

func TestTruncateKeepsRuneBoundaries(t *testing.T) {
	s := strings.Repeat("ação não é instalação ", 100)
	for max := 1; max < 64; max++ {
		got := truncate(s, max)
		if !utf8.ValidString(got) {
			t.Fatalf("truncate(%d) produced invalid UTF-8: %q", max, got)
		}
		if len(got) > max+len("...") {
			t.Fatalf("truncate(%d) returned %d bytes", max, len(got))
		}
	}
}

func TestTruncateShortStringUnchanged(t *testing.T) {
	if got := truncate("acentuação", 100); got != "acentuação" {
		t.Errorf("short string must pass through, got %q", got)
	}
}
