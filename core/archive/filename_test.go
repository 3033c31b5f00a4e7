package archive

import (
	"strings"
	"testing"
)

func TestSanitizeBase(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"song.mp3", "song"},
		{"my.song.final.mp3", "my"},
		{"../../etc/passwd.mp3", "passwd"},
		{`C:\Users\me\Music\track.mp3`, "track"},
		{"Café del Mar.mp3", "Cafe_del_Mar"},
		{"a/b/", "b"},
		{".mp3", "audio"},
		{"..", "audio"},
		{"", "audio"},
		{"曲.mp3", "audio"},
		{"rock & roll!.mp3", "rock__roll"},
	}
	for _, tc := range cases {
		if got := SanitizeBase(tc.in); got != tc.want {
			t.Errorf("SanitizeBase(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestSanitizeBaseNeverContainsSeparators(t *testing.T) {
	for _, in := range []string{"../x.mp3", "..\\..\\x.mp3", "/abs/x", "x/../../y.mp3"} {
		got := SanitizeBase(in)
		if strings.ContainsAny(got, `/\.`) {
			t.Fatalf("SanitizeBase(%q) = %q contains path characters", in, got)
		}
	}
}

func TestSanitizeBaseCapsLength(t *testing.T) {
	got := SanitizeBase(strings.Repeat("a", 400) + ".mp3")
	if len(got) != maxBaseLength {
		t.Fatalf("expected length %d, got %d", maxBaseLength, len(got))
	}
}

func TestDownloadName(t *testing.T) {
	if got := DownloadName("song.mp3"); got != "song_hls.zip" {
		t.Fatalf("unexpected download name %q", got)
	}
}
