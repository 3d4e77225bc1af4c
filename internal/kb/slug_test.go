package kb

import (
	"strings"
	"testing"
)

func TestSlugify(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"Distributed Systems", "distributed-systems"},
		{"  Go / Concurrency!  ", "go-concurrency"},
		{"Café Déjà Vu", "cafe-deja-vu"},
		{"already-slugged", "already-slugged"},
		{"___", ""},
		{"", ""},
		{"a--b", "a-b"},
	}
	for _, tc := range cases {
		if got := Slugify(tc.in); got != tc.want {
			t.Errorf("Slugify(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestSlugifyLength(t *testing.T) {
	long := strings.Repeat("word ", 40)
	slug := Slugify(long)
	if len(slug) > maxSlugLen {
		t.Fatalf("slug length %d exceeds %d", len(slug), maxSlugLen)
	}
	if strings.HasSuffix(slug, "-") || strings.HasPrefix(slug, "-") {
		t.Fatalf("slug has dangling dash: %q", slug)
	}
}
