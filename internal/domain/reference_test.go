package domain

import (
	"errors"
	"testing"
)

func TestParsePostReference(t *testing.T) {
	t.Parallel()
	accepted := map[string]PostReference{
		"https://instagram.com/p/ABC123/":             {URL: "https://www.instagram.com/p/ABC123/", Shortcode: "ABC123", Kind: PostKindPost},
		"www.instagram.com/reel/Cx_9-z":               {URL: "https://www.instagram.com/reel/Cx_9-z/", Shortcode: "Cx_9-z", Kind: PostKindReel},
		"https://www.instagram.com/someone/p/XYZ?x=1": {URL: "https://www.instagram.com/p/XYZ/", Shortcode: "XYZ", Kind: PostKindPost},
	}
	for raw, want := range accepted {
		got, err := ParsePostReference(raw)
		if err != nil {
			t.Fatalf("ParsePostReference(%q): %v", raw, err)
		}
		if got != want {
			t.Fatalf("ParsePostReference(%q) = %+v, want %+v", raw, got, want)
		}
	}

	rejected := []string{
		"",
		"https://instagram.com/notavalidpath",
		"https://example.com/p/ABC123/",
		"https://instagram.com/p/",
	}
	for _, raw := range rejected {
		if _, err := ParsePostReference(raw); !errors.Is(err, ErrMalformedReference) {
			t.Fatalf("ParsePostReference(%q) err = %v, want ErrMalformedReference", raw, err)
		}
	}
}

func TestSnapshotValueAndZeroBaseline(t *testing.T) {
	t.Parallel()
	s := ZeroSnapshot(snap(0, 0, 0).CapturedAt)
	if s.Quality != SnapshotQualityBaseline || s.Value(MetricViews) != 0 {
		t.Fatalf("zero snapshot = %+v", s)
	}
	if snap(3, 2, 1).Value("reach") != 0 {
		t.Fatalf("untracked metric should read as zero")
	}
}
