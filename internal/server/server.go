package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jsulmar/yarm/internal/config"
	"github.com/jsulmar/yarm/internal/upload"
)

// validName is the only shape of file name the server stores.
var validName = regexp.MustCompile(`^[A-Za-z0-9_\-]+\.[A-Za-z0-9]+$`)

// Server is the collection endpoint recordings are uploaded to
type Server struct {
	uploadDir string
	port      string
	maxBytes  int64
	now       func() time.Time
}

// CatchResponse is the JSON answer to an upload
type CatchResponse struct {
	Status string `json:"status"`
	Name   string `json:"name,omitempty"`
	URL    string `json:"url,omitempty"`
	Err    string `json:"err,omitempty"`
}

// FileInfo describes one stored upload
type FileInfo struct {
	Name         string    `json:"name"`
	Size         int64     `json:"size"`
	SizeHuman    string    `json:"size_human"`
	ModTime      time.Time `json:"mod_time"`
	ModTimeHuman string    `json:"mod_time_human"`
	URL          string    `json:"url"`
}

// FilesResponse lists stored uploads, newest first
type FilesResponse struct {
	Files      []FileInfo `json:"files"`
	TotalCount int        `json:"total_count"`
}

// New creates a new catch server instance
func New(cfg config.ServerConfig) *Server {
	return &Server{
		uploadDir: cfg.UploadDirectory,
		port:      cfg.Port,
		maxBytes:  int64(cfg.MaxUploadMB) << 20,
		now:       time.Now,
	}
}

// Handler returns the routes of the server
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/catch", s.handleCatch)
	mux.HandleFunc("/uploads/", s.handleUploads)
	return withRequestID(mux)
}

// Start serves until ctx is cancelled
func (s *Server) Start(ctx context.Context) error {
	if err := os.MkdirAll(s.uploadDir, 0755); err != nil {
		return fmt.Errorf("failed to create upload directory: %w", err)
	}

	srv := &http.Server{
		Addr:              ":" + s.port,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	slog.Info("Starting yarm catch server",
		"port", s.port,
		"upload_directory", s.uploadDir,
		"local_url", fmt.Sprintf("http://%s:%s/catch", getLocalIP(), s.port),
		"localhost_url", fmt.Sprintf("http://localhost:%s/catch", s.port))

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		slog.Info("Shutting down catch server")
		return srv.Shutdown(shutdownCtx)
	}
}

// withRequestID tags every request with an id for the logs
func withRequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get("X-Request-ID")
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set("X-Request-ID", id)
		slog.Debug("Request", "id", id, "method", r.Method, "path", r.URL.Path, "remote", r.RemoteAddr)
		next.ServeHTTP(w, r)
	})
}

// handleCatch stores the file sent in the upload field
func (s *Server) handleCatch(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.sendJSON(w, http.StatusMethodNotAllowed, CatchResponse{Status: "fail", Err: "method not allowed"})
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, s.maxBytes)
	if err := r.ParseMultipartForm(s.maxBytes); err != nil {
		s.fail(w, "bad request", "reason", "failed to parse multipart form", "error", err)
		return
	}

	file, handler, err := r.FormFile(upload.FieldName)
	if err != nil {
		s.fail(w, "bad request", "reason", "no upload file", "error", err)
		return
	}
	defer file.Close()

	name := filepath.Base(handler.Filename)
	if !validName.MatchString(name) {
		s.fail(w, "bad filename or extension: "+name)
		return
	}

	if err := os.MkdirAll(s.uploadDir, 0755); err != nil {
		s.fail(w, "failed to create upload directory", "error", err)
		return
	}

	// Never overwrite an earlier upload
	destPath := filepath.Join(s.uploadDir, name)
	if _, err := os.Stat(destPath); err == nil {
		ext := filepath.Ext(name)
		name = fmt.Sprintf("%s_%s%s", strings.TrimSuffix(name, ext), s.now().Format("20060102_150405"), ext)
		destPath = filepath.Join(s.uploadDir, name)
	}

	destFile, err := os.OpenFile(destPath, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0644)
	if err != nil {
		s.fail(w, "failed to store "+name, "error", err)
		return
	}
	fileSize, err := io.Copy(destFile, file)
	closeErr := destFile.Close()
	if err == nil {
		err = closeErr
	}
	if err != nil {
		os.Remove(destPath)
		s.fail(w, "failed to store "+name, "error", err)
		return
	}

	slog.Info("File uploaded successfully", "filename", name, "size", fileSize)

	s.sendJSON(w, http.StatusOK, CatchResponse{
		Status: "success",
		Name:   name,
		URL:    "/uploads/" + name,
	})
}

// handleUploads serves a stored file, or lists them all at /uploads/
func (s *Server) handleUploads(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		s.sendJSON(w, http.StatusMethodNotAllowed, CatchResponse{Status: "fail", Err: "method not allowed"})
		return
	}

	filename := strings.TrimPrefix(r.URL.Path, "/uploads/")
	if filename == "" {
		s.handleList(w)
		return
	}

	// Validate filename (prevent path traversal)
	if !validName.MatchString(filename) {
		http.Error(w, "Invalid filename", http.StatusBadRequest)
		return
	}

	filePath := filepath.Join(s.uploadDir, filename)
	file, err := os.Open(filePath)
	if err != nil {
		if os.IsNotExist(err) {
			http.Error(w, "File not found", http.StatusNotFound)
		} else {
			http.Error(w, "Error accessing file", http.StatusInternalServerError)
		}
		return
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		http.Error(w, "Error accessing file", http.StatusInternalServerError)
		return
	}

	if contentType := mime.TypeByExtension(filepath.Ext(filename)); contentType != "" {
		w.Header().Set("Content-Type", contentType)
	}
	w.Header().Set("Accept-Ranges", "bytes")
	http.ServeContent(w, r, filename, info.ModTime(), file)
}

func (s *Server) handleList(w http.ResponseWriter) {
	entries, err := os.ReadDir(s.uploadDir)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		s.sendJSON(w, http.StatusInternalServerError, CatchResponse{Status: "fail", Err: "failed to read upload directory"})
		return
	}

	files := []FileInfo{}
	for _, entry := range entries {
		if entry.IsDir() || !validName.MatchString(entry.Name()) {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			slog.Warn("Failed to get file info", "file", entry.Name(), "error", err)
			continue
		}
		files = append(files, FileInfo{
			Name:         entry.Name(),
			Size:         info.Size(),
			SizeHuman:    formatBytes(info.Size()),
			ModTime:      info.ModTime(),
			ModTimeHuman: info.ModTime().Format("2006-01-02 15:04:05"),
			URL:          "/uploads/" + entry.Name(),
		})
	}

	sort.Slice(files, func(i, j int) bool {
		return files[i].ModTime.After(files[j].ModTime)
	})

	s.sendJSON(w, http.StatusOK, FilesResponse{Files: files, TotalCount: len(files)})
}

// fail answers a well-formed rejection, which upload clients report as such
func (s *Server) fail(w http.ResponseWriter, msg string, logContext ...interface{}) {
	logFields := append([]interface{}{"error_message", msg}, logContext...)
	slog.Warn("Upload rejected", logFields...)
	s.sendJSON(w, http.StatusOK, CatchResponse{Status: "fail", Err: msg})
}

func (s *Server) sendJSON(w http.ResponseWriter, statusCode int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("Failed to encode response", "error", err)
	}
}

func formatBytes(bytes int64) string {
	const unit = 1024
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}
	div, exp := int64(unit), 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(bytes)/float64(div), "KMGTPE"[exp])
}

func getLocalIP() string {
	// Try to connect to a remote address to determine local IP
	conn, err := net.Dial("udp", "8.8.8.8:80")
	if err != nil {
		return "localhost"
	}
	defer conn.Close()

	localAddr := conn.LocalAddr().(*net.UDPAddr)
	return localAddr.IP.String()
}
