package invoice

import (
	"strings"
	"testing"
	"time"
)

func TestNextEncodesTimestamp(t *testing.T) {
	at := time.Date(2026, 8, 28, 13, 45, 9, 0, time.UTC)
	got := Next(at)
	if !strings.HasPrefix(got, "FAC-20260828134509-") {
		t.Fatalf("unexpected invoice number %s", got)
	}
}

func TestNextIsUniqueWithinSameSecond(t *testing.T) {
	at := time.Date(2026, 8, 28, 13, 45, 9, 0, time.UTC)
	seen := make(map[string]bool, 64)
	for i := 0; i < 64; i++ {
		n := Next(at)
		if seen[n] {
			t.Fatalf("duplicate invoice number %s", n)
		}
		seen[n] = true
	}
}
