package s3

import (
	"io"
	"strings"
	"testing"
)

func TestApplyPrefix(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		prefix string
		key    string
		want   string
	}{
		{name: "no prefix", prefix: "", key: "ns/clip.mp4", want: "ns/clip.mp4"},
		{name: "simple prefix", prefix: "videos", key: "ns/clip.mp4", want: "videos/ns/clip.mp4"},
		{name: "prefix trailing slash", prefix: "videos/", key: "ns/clip.mp4", want: "videos/ns/clip.mp4"},
		{name: "prefix and key slashes", prefix: "/videos/", key: "/ns/clip.mp4", want: "videos/ns/clip.mp4"},
		{name: "empty key", prefix: "videos", key: "", want: "videos"},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := applyPrefix(tt.prefix, tt.key); got != tt.want {
				t.Fatalf("applyPrefix(%q, %q) = %q, want %q", tt.prefix, tt.key, got, tt.want)
			}
		})
	}
}

func TestCountingReader(t *testing.T) {
	c := &countingReader{r: strings.NewReader("0123456789")}
	if _, err := io.Copy(io.Discard, c); err != nil {
		t.Fatalf("copy: %v", err)
	}
	if c.n != 10 {
		t.Fatalf("expected 10 bytes counted, got %d", c.n)
	}
}
