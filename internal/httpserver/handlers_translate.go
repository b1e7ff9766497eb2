package httpserver

import (
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/Lingualink-VRChat/Lingualink-Server/internal/apierr"
	"github.com/Lingualink-VRChat/Lingualink-Server/internal/dispatcher"
)

func (s *Server) handleSupportedFormats(w http.ResponseWriter, _ *http.Request) {
	writeOK(w, map[string]any{
		"formats": s.cfg.AllowedExtensions,
		"canonical": map[string]any{
			"sample_rate": 16000,
			"channels":    1,
			"bit_depth":   16,
		},
	})
}

// handleTranslateAudio accepts a multipart upload, normalizes it to the
// canonical waveform, dispatches it to a backend, and returns the parsed
// translation fields. It mirrors audio_routes.translate_audio's shape:
// upload -> convert -> call model -> parse -> respond.
func (s *Server) handleTranslateAudio(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.UploadCapBytes)
	if err := r.ParseMultipartForm(s.cfg.UploadCapBytes); err != nil {
		writeError(w, apierr.Wrap(apierr.InvalidUpload, "request too large or malformed", err))
		return
	}

	file, header, err := r.FormFile("audio")
	if err != nil {
		writeError(w, apierr.Wrap(apierr.InvalidUpload, "missing \"audio\" file field", err))
		return
	}
	defer file.Close()

	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(header.Filename), "."))
	if !s.normalizer.AllowedExtension(ext) {
		writeError(w, apierr.New(apierr.UnsupportedFormat, "unsupported audio format: "+ext))
		return
	}

	inputPath, err := s.stageUpload(file, ext)
	if err != nil {
		writeError(w, apierr.Wrap(apierr.IO, "staging upload", err))
		return
	}
	defer os.Remove(inputPath)

	targetLanguages := s.cfg.DefaultTargetLanguages
	if v := strings.TrimSpace(r.FormValue("target_languages")); v != "" {
		targetLanguages = splitCommaList(v)
	}
	userPrompt := r.FormValue("user_prompt")

	normalizedPath, err := s.normalizer.Normalize(r.Context(), inputPath, ext)
	if err != nil {
		writeError(w, err)
		return
	}
	defer s.normalizer.RemoveIfConverted(inputPath, normalizedPath)

	cred, _ := principalFrom(r.Context())
	result := s.dispatch.Dispatch(r.Context(), dispatcher.Request{
		AudioPath:       normalizedPath,
		TargetLanguages: targetLanguages,
		UserPrompt:      userPrompt,
		HashKey:         cred.Secret,
	})
	if !result.Success {
		writeError(w, result.Err)
		return
	}

	writeOK(w, map[string]any{
		"backend_used": result.BackendUsed,
		"attempts":     result.Attempts,
		"raw_text":     result.RawText,
		"translations": result.Fields,
		"field_order":  result.FieldOrder,
	})
}

func (s *Server) stageUpload(src io.Reader, ext string) (string, error) {
	path := filepath.Join(s.cfg.TempDir, uuid.NewString()+"."+ext)
	dst, err := os.Create(path)
	if err != nil {
		return "", err
	}
	defer dst.Close()
	if _, err := io.Copy(dst, src); err != nil {
		os.Remove(path)
		return "", err
	}
	return path, nil
}

func splitCommaList(v string) []string {
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
