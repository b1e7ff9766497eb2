package audionorm

import (
	"context"
	"testing"

	"github.com/Lingualink-VRChat/Lingualink-Server/internal/apierr"
)

func newTestNormalizer(t *testing.T) *Normalizer {
	t.Helper()
	n := New(Config{
		FFmpegPath:        "ffmpeg",
		TempDir:           t.TempDir(),
		Slots:             2,
		Workers:           2,
		AllowedExtensions: []string{"wav", "opus"},
	})
	t.Cleanup(n.Close)
	return n
}

func TestAllowedExtensionIsCaseInsensitive(t *testing.T) {
	n := newTestNormalizer(t)
	if !n.AllowedExtension("WAV") {
		t.Error("expected WAV to be allowed")
	}
	if n.AllowedExtension("mp4") {
		t.Error("expected mp4 to be rejected")
	}
}

func TestNormalizeRejectsUnsupportedFormat(t *testing.T) {
	n := newTestNormalizer(t)
	_, err := n.Normalize(context.Background(), "/tmp/whatever.mp4", "mp4")
	apiErr, ok := err.(*apierr.Error)
	if !ok || apiErr.Kind != apierr.UnsupportedFormat {
		t.Fatalf("expected UnsupportedFormat error, got %v", err)
	}
}

func TestBuildFFmpegArgsAddsOggOpusHintForOpusInput(t *testing.T) {
	args := buildFFmpegArgs("/tmp/in.opus", "/tmp/out.wav", "opus")
	want := []string{"-y", "-f", "ogg", "-acodec", "libopus", "-i", "/tmp/in.opus", "-ar", "16000", "-ac", "1", "-sample_fmt", "s16", "-f", "wav", "/tmp/out.wav"}
	if len(args) != len(want) {
		t.Fatalf("unexpected arg count: got %v want %v", args, want)
	}
	for i := range want {
		if args[i] != want[i] {
			t.Fatalf("arg %d: got %q want %q (full: %v)", i, args[i], want[i], args)
		}
	}
}

func TestBuildFFmpegArgsUsesNaturalContainerForOtherFormats(t *testing.T) {
	args := buildFFmpegArgs("/tmp/in.wav", "/tmp/out.wav", "wav")
	for _, a := range args {
		if a == "libopus" {
			t.Fatalf("did not expect an opus codec hint for a wav input: %v", args)
		}
	}
	if args[0] != "-y" || args[1] != "-i" {
		t.Fatalf("expected the natural-container path to start with -y -i, got %v", args)
	}
}

func TestNormalizeShortCircuitsCanonicalWAV(t *testing.T) {
	n := newTestNormalizer(t)
	path := writeTempWAV(t, buildWAV(t, 16000, 1, 16))

	out, err := n.Normalize(context.Background(), path, "wav")
	if err != nil {
		t.Fatalf("Normalize: %v", err)
	}
	if out != path {
		t.Fatalf("expected canonical WAV to pass through unchanged, got %s", out)
	}
	active, total := n.Metrics()
	if active != 0 || total != 0 {
		t.Fatalf("expected no conversions to have run, got active=%d total=%d", active, total)
	}
}
