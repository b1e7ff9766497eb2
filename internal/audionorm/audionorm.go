// Package audionorm converts uploaded audio into the canonical waveform the
// dispatcher sends upstream: 16kHz mono 16-bit PCM WAV. Concurrency is
// two-tier: a semaphore bounds how many conversions run at once, and a
// fixed pool of worker goroutines actually runs them.
package audionorm

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/Lingualink-VRChat/Lingualink-Server/internal/apierr"
)

type Config struct {
	FFmpegPath        string
	TempDir           string
	Slots             int
	Workers           int
	AllowedExtensions []string
}

type Normalizer struct {
	ffmpegPath string
	tempDir    string
	allowedExt map[string]struct{}

	sem  chan struct{}
	jobs chan func()
	wg   sync.WaitGroup

	mu                sync.Mutex
	activeConversions int
	totalConversions   int64
}

type normalizeResult struct {
	path string
	err  error
}

func New(cfg Config) *Normalizer {
	if cfg.Slots <= 0 {
		cfg.Slots = 10
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 5
	}
	allowed := make(map[string]struct{}, len(cfg.AllowedExtensions))
	for _, ext := range cfg.AllowedExtensions {
		allowed[strings.ToLower(ext)] = struct{}{}
	}

	n := &Normalizer{
		ffmpegPath: cfg.FFmpegPath,
		tempDir:    cfg.TempDir,
		allowedExt: allowed,
		sem:        make(chan struct{}, cfg.Slots),
		jobs:       make(chan func()),
	}
	for i := 0; i < cfg.Workers; i++ {
		n.wg.Add(1)
		go n.worker()
	}
	return n
}

func (n *Normalizer) worker() {
	defer n.wg.Done()
	for job := range n.jobs {
		job()
	}
}

// Close stops accepting new jobs and waits for in-flight workers to drain.
func (n *Normalizer) Close() {
	close(n.jobs)
	n.wg.Wait()
}

// AllowedExtension reports whether ext (without the leading dot) is one of
// the configured input formats.
func (n *Normalizer) AllowedExtension(ext string) bool {
	_, ok := n.allowedExt[strings.ToLower(ext)]
	return ok
}

// Normalize converts inputPath (an upload of the given extension) to the
// canonical waveform, returning the path of the resulting file. If the input
// is already a canonical WAV it is returned unchanged and no worker slot is
// consumed beyond the format check.
func (n *Normalizer) Normalize(ctx context.Context, inputPath, ext string) (string, error) {
	ext = strings.ToLower(strings.TrimPrefix(ext, "."))
	if !n.AllowedExtension(ext) {
		return "", apierr.New(apierr.UnsupportedFormat, fmt.Sprintf("unsupported audio format: %s", ext))
	}

	if ext == "wav" {
		if ok, err := isCanonicalWAV(inputPath); err == nil && ok {
			return inputPath, nil
		}
		// Malformed or non-canonical WAV falls through to a real ffmpeg pass.
	}

	select {
	case n.sem <- struct{}{}:
	case <-ctx.Done():
		return "", apierr.Wrap(apierr.Timeout, "waiting for a conversion slot", ctx.Err())
	}
	defer func() { <-n.sem }()

	n.mu.Lock()
	n.activeConversions++
	n.mu.Unlock()
	defer func() {
		n.mu.Lock()
		n.activeConversions--
		n.totalConversions++
		n.mu.Unlock()
	}()

	resultCh := make(chan normalizeResult, 1)
	submit := func() {
		path, err := n.convert(ctx, inputPath, ext)
		resultCh <- normalizeResult{path: path, err: err}
	}

	select {
	case n.jobs <- submit:
	case <-ctx.Done():
		return "", apierr.Wrap(apierr.Timeout, "waiting for a free conversion worker", ctx.Err())
	}

	select {
	case res := <-resultCh:
		return res.path, res.err
	case <-ctx.Done():
		return "", apierr.Wrap(apierr.Timeout, "waiting for conversion to finish", ctx.Err())
	}
}

func (n *Normalizer) convert(ctx context.Context, inputPath, ext string) (string, error) {
	outputPath := filepath.Join(n.tempDir, uuid.NewString()+".wav")

	cmd := exec.CommandContext(ctx, n.ffmpegPath, buildFFmpegArgs(inputPath, outputPath, ext)...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return "", apierr.Wrap(apierr.TranscodeFailed, "ffmpeg: "+firstLine(stderr.String()), err)
	}
	if ok, err := isCanonicalWAV(outputPath); err != nil || !ok {
		_ = os.Remove(outputPath)
		return "", apierr.New(apierr.TranscodeFailed, "ffmpeg output did not match the canonical waveform")
	}
	return outputPath, nil
}

// buildFFmpegArgs builds the ffmpeg argument list for one conversion. opus
// input is ogg-containered with no native extension of its own, so it needs
// an explicit demuxer and codec hint; every other recognized format decodes
// fine from its natural container with no extra flags.
func buildFFmpegArgs(inputPath, outputPath, ext string) []string {
	args := []string{"-y"}
	if ext == "opus" {
		args = append(args, "-f", "ogg", "-acodec", "libopus")
	}
	args = append(args,
		"-i", inputPath,
		"-ar", "16000",
		"-ac", "1",
		"-sample_fmt", "s16",
		"-f", "wav",
		outputPath,
	)
	return args
}

// RemoveIfConverted deletes outputPath unless it is the same file as
// inputPath, which happens when Normalize short-circuited an already-canonical
// WAV. Callers should invoke this once the dispatcher is done with the file.
func (n *Normalizer) RemoveIfConverted(inputPath, outputPath string) {
	if outputPath == "" || outputPath == inputPath {
		return
	}
	_ = os.Remove(outputPath)
}

// Metrics reports how many conversions are running right now and how many
// have completed since startup.
func (n *Normalizer) Metrics() (active int, total int64) {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.activeConversions, n.totalConversions
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}
