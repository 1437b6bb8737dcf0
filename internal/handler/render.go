package handler

import (
	"bytes"
	"embed"
	"encoding/base64"
	"html/template"
	"image"
	"image/jpeg"
	"net/http"

	"malariascope/internal/config"
	"malariascope/internal/dto"
	"malariascope/internal/logger"
	"malariascope/internal/session"
	"malariascope/internal/theme"
)

// Title is shown on every page.
const Title = "Malaria Detection"

//go:embed templates/*.html
var templateFS embed.FS

var templates = template.Must(template.ParseFS(templateFS, "templates/*.html"))

// newPage fills the parts of PageData every view shares.
func newPage(cfg *config.Config, sess *session.Session) *dto.PageData {
	return &dto.PageData{
		Title:      Title,
		Style:      theme.Apply(sess.DarkMode),
		DarkMode:   sess.DarkMode,
		User:       sess.User,
		Confidence: cfg.DefaultConfidence,
		IoU:        cfg.DefaultIoU,
		Processing: "Analyzing blood sample...",
	}
}

// render executes a page template into a buffer first so a template error
// never leaves a half written response.
func render(w http.ResponseWriter, logger *logger.Logger, status int, name string, data *dto.PageData) {
	var buf bytes.Buffer
	if err := templates.ExecuteTemplate(&buf, name, data); err != nil {
		logger.Error("Error rendering %s: %v", name, err)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	w.Write(buf.Bytes())
}

// dataURI inlines img as a base64 JPEG.
func dataURI(img image.Image) (template.URL, error) {
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: 90}); err != nil {
		return "", err
	}
	return template.URL("data:image/jpeg;base64," + base64.StdEncoding.EncodeToString(buf.Bytes())), nil
}

// currentSession returns the session SessionMiddleware attached.
func currentSession(w http.ResponseWriter, r *http.Request) (*session.Session, bool) {
	sess, ok := session.FromContext(r.Context())
	if !ok {
		http.Error(w, "Session required", http.StatusInternalServerError)
		return nil, false
	}
	return sess, true
}
