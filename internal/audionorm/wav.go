package audionorm

import (
	"encoding/binary"
	"fmt"
	"io"
	"os"
)

// wavFormat is the decoded "fmt " chunk of a RIFF/WAVE file, enough of it to
// decide whether the file already matches the canonical waveform the
// dispatcher requires: 16kHz, mono, 16-bit PCM.
type wavFormat struct {
	AudioFormat   uint16
	NumChannels   uint16
	SampleRate    uint32
	BitsPerSample uint16
}

const (
	canonicalSampleRate    = 16000
	canonicalChannels      = 1
	canonicalBitsPerSample = 16
	pcmAudioFormat         = 1
)

// isCanonical reports whether a parsed format already matches the canonical
// waveform, so a conversion pass can be skipped entirely.
func (f wavFormat) isCanonical() bool {
	return f.AudioFormat == pcmAudioFormat &&
		f.NumChannels == canonicalChannels &&
		f.SampleRate == canonicalSampleRate &&
		f.BitsPerSample == canonicalBitsPerSample
}

// readWAVFormat walks a RIFF/WAVE container by hand, looking for the "fmt "
// chunk. There is no audio container library in the dependency pack, so this
// one parse is done directly against the documented RIFF layout rather than
// shelling out to ffprobe for a check this cheap.
func readWAVFormat(r io.Reader) (wavFormat, error) {
	var header [12]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		return wavFormat{}, fmt.Errorf("audionorm: reading RIFF header: %w", err)
	}
	if string(header[0:4]) != "RIFF" || string(header[8:12]) != "WAVE" {
		return wavFormat{}, fmt.Errorf("audionorm: not a RIFF/WAVE file")
	}

	for {
		var chunkHeader [8]byte
		if _, err := io.ReadFull(r, chunkHeader[:]); err != nil {
			if err == io.EOF || err == io.ErrUnexpectedEOF {
				return wavFormat{}, fmt.Errorf("audionorm: fmt chunk not found")
			}
			return wavFormat{}, fmt.Errorf("audionorm: reading chunk header: %w", err)
		}
		chunkID := string(chunkHeader[0:4])
		chunkSize := binary.LittleEndian.Uint32(chunkHeader[4:8])

		if chunkID == "fmt " {
			body := make([]byte, chunkSize)
			if _, err := io.ReadFull(r, body); err != nil {
				return wavFormat{}, fmt.Errorf("audionorm: reading fmt chunk: %w", err)
			}
			if len(body) < 16 {
				return wavFormat{}, fmt.Errorf("audionorm: fmt chunk too short")
			}
			return wavFormat{
				AudioFormat:   binary.LittleEndian.Uint16(body[0:2]),
				NumChannels:   binary.LittleEndian.Uint16(body[2:4]),
				SampleRate:    binary.LittleEndian.Uint32(body[4:8]),
				BitsPerSample: binary.LittleEndian.Uint16(body[14:16]),
			}, nil
		}

		skip := int64(chunkSize)
		if chunkSize%2 == 1 {
			skip++ // chunks are word-aligned; odd-sized chunks carry a pad byte
		}
		if seeker, ok := r.(io.Seeker); ok {
			if _, err := seeker.Seek(skip, io.SeekCurrent); err != nil {
				return wavFormat{}, fmt.Errorf("audionorm: seeking past %s chunk: %w", chunkID, err)
			}
			continue
		}
		if _, err := io.CopyN(io.Discard, r, skip); err != nil {
			return wavFormat{}, fmt.Errorf("audionorm: skipping %s chunk: %w", chunkID, err)
		}
	}
}

// isCanonicalWAV reports whether the file at path is already a canonical
// 16kHz mono 16-bit PCM WAV, short-circuiting a conversion pass when true.
func isCanonicalWAV(path string) (bool, error) {
	f, err := os.Open(path)
	if err != nil {
		return false, fmt.Errorf("audionorm: opening %s: %w", path, err)
	}
	defer f.Close()

	format, err := readWAVFormat(f)
	if err != nil {
		return false, err
	}
	return format.isCanonical(), nil
}
