package audionorm

import (
	"bytes"
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"
)

func buildWAV(t *testing.T, sampleRate uint32, channels, bitsPerSample uint16) []byte {
	t.Helper()
	var fmtChunk bytes.Buffer
	binary.Write(&fmtChunk, binary.LittleEndian, uint16(1)) // PCM
	binary.Write(&fmtChunk, binary.LittleEndian, channels)
	binary.Write(&fmtChunk, binary.LittleEndian, sampleRate)
	byteRate := sampleRate * uint32(channels) * uint32(bitsPerSample) / 8
	binary.Write(&fmtChunk, binary.LittleEndian, byteRate)
	blockAlign := channels * bitsPerSample / 8
	binary.Write(&fmtChunk, binary.LittleEndian, blockAlign)
	binary.Write(&fmtChunk, binary.LittleEndian, bitsPerSample)

	data := make([]byte, 8) // a couple of silent samples
	var riff bytes.Buffer
	riff.WriteString("RIFF")
	binary.Write(&riff, binary.LittleEndian, uint32(4+8+fmtChunk.Len()+8+len(data)))
	riff.WriteString("WAVE")
	riff.WriteString("fmt ")
	binary.Write(&riff, binary.LittleEndian, uint32(fmtChunk.Len()))
	riff.Write(fmtChunk.Bytes())
	riff.WriteString("data")
	binary.Write(&riff, binary.LittleEndian, uint32(len(data)))
	riff.Write(data)
	return riff.Bytes()
}

func writeTempWAV(t *testing.T, content []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "sample.wav")
	if err := os.WriteFile(path, content, 0o644); err != nil {
		t.Fatalf("writing temp wav: %v", err)
	}
	return path
}

func TestIsCanonicalWAVTrue(t *testing.T) {
	path := writeTempWAV(t, buildWAV(t, 16000, 1, 16))
	ok, err := isCanonicalWAV(path)
	if err != nil {
		t.Fatalf("isCanonicalWAV: %v", err)
	}
	if !ok {
		t.Fatal("expected canonical WAV to be recognized as canonical")
	}
}

func TestIsCanonicalWAVFalseForWrongSampleRate(t *testing.T) {
	path := writeTempWAV(t, buildWAV(t, 44100, 2, 16))
	ok, err := isCanonicalWAV(path)
	if err != nil {
		t.Fatalf("isCanonicalWAV: %v", err)
	}
	if ok {
		t.Fatal("expected non-canonical WAV to be rejected")
	}
}

func TestIsCanonicalWAVRejectsNonRIFF(t *testing.T) {
	path := writeTempWAV(t, []byte("not a wav file at all"))
	if _, err := isCanonicalWAV(path); err == nil {
		t.Fatal("expected an error for a non-RIFF file")
	}
}
