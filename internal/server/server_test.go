package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/jsulmar/yarm/internal/config"
	"github.com/jsulmar/yarm/internal/recording"
	"github.com/jsulmar/yarm/internal/upload"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T) (*Server, *httptest.Server) {
	t.Helper()
	s := New(config.ServerConfig{Port: "0", UploadDirectory: t.TempDir(), MaxUploadMB: 1})
	s.now = func() time.Time { return time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC) }
	ts := httptest.NewServer(s.Handler())
	t.Cleanup(ts.Close)
	return s, ts
}

func postFile(t *testing.T, url, field, name string, data []byte) (*http.Response, CatchResponse) {
	t.Helper()
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	part, err := writer.CreateFormFile(field, name)
	require.NoError(t, err)
	_, err = part.Write(data)
	require.NoError(t, err)
	require.NoError(t, writer.Close())

	resp, err := http.Post(url, writer.FormDataContentType(), body)
	require.NoError(t, err)
	defer resp.Body.Close()

	var out CatchResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return resp, out
}

func TestCatch_StoresUpload(t *testing.T) {
	s, ts := newTestServer(t)

	resp, out := postFile(t, ts.URL+"/catch", upload.FieldName, "1700000000000.ogg", []byte("OggS"))

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))
	assert.NotEmpty(t, resp.Header.Get("X-Request-ID"))
	assert.Equal(t, CatchResponse{Status: "success", Name: "1700000000000.ogg", URL: "/uploads/1700000000000.ogg"}, out)

	data, err := os.ReadFile(filepath.Join(s.uploadDir, "1700000000000.ogg"))
	require.NoError(t, err)
	assert.Equal(t, "OggS", string(data))

	get, err := http.Get(ts.URL + out.URL)
	require.NoError(t, err)
	defer get.Body.Close()
	served, _ := io.ReadAll(get.Body)
	assert.Equal(t, http.StatusOK, get.StatusCode)
	assert.Equal(t, "OggS", string(served))
}

func TestCatch_DuplicateNameIsNotOverwritten(t *testing.T) {
	s, ts := newTestServer(t)

	postFile(t, ts.URL+"/catch", upload.FieldName, "1.ogg", []byte("first"))
	_, out := postFile(t, ts.URL+"/catch", upload.FieldName, "1.ogg", []byte("second"))

	assert.Equal(t, "1_20240501_120000.ogg", out.Name)
	first, _ := os.ReadFile(filepath.Join(s.uploadDir, "1.ogg"))
	assert.Equal(t, "first", string(first))
}

func TestCatch_Rejections(t *testing.T) {
	_, ts := newTestServer(t)

	tests := []struct {
		name     string
		field    string
		filename string
		wantErr  string
	}{
		{"wrong field", "audio_file", "1.ogg", "bad request"},
		{"no extension", upload.FieldName, "recording", "bad filename or extension: recording"},
		{"spaces", upload.FieldName, "my song.ogg", "bad filename or extension: my song.ogg"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, out := postFile(t, ts.URL+"/catch", tt.field, tt.filename, []byte("x"))
			assert.Equal(t, http.StatusOK, resp.StatusCode)
			assert.Equal(t, "fail", out.Status)
			assert.Equal(t, tt.wantErr, out.Err)
		})
	}
}

func TestCatch_MethodNotAllowed(t *testing.T) {
	_, ts := newTestServer(t)

	resp, err := http.Get(ts.URL + "/catch")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
	assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))
}

func TestUploads_NotFoundAndTraversal(t *testing.T) {
	_, ts := newTestServer(t)

	resp, err := http.Get(ts.URL + "/uploads/missing.ogg")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, err = http.Get(ts.URL + "/uploads/.env")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestUploads_List(t *testing.T) {
	_, ts := newTestServer(t)
	postFile(t, ts.URL+"/catch", upload.FieldName, "2.ogg", []byte("abc"))

	resp, err := http.Get(ts.URL + "/uploads/")
	require.NoError(t, err)
	defer resp.Body.Close()

	var list FilesResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&list))
	require.Equal(t, 1, list.TotalCount)
	assert.Equal(t, "2.ogg", list.Files[0].Name)
	assert.Equal(t, "3 B", list.Files[0].SizeHuman)
}

func TestCatch_WithUploadClient(t *testing.T) {
	_, ts := newTestServer(t)

	res := upload.NewClient(5*time.Second).Post(context.Background(),
		recording.Artifact{Blob: []byte("OggS"), Name: "42.ogg", MimeType: "audio/ogg"}, ts.URL+"/catch")

	require.True(t, res.OK, res.Error)
	assert.Equal(t, "/uploads/42.ogg", res.Location)
}

func TestFormatBytes(t *testing.T) {
	assert.Equal(t, "512 B", formatBytes(512))
	assert.Equal(t, "1.5 KB", formatBytes(1536))
	assert.Equal(t, "2.0 MB", formatBytes(2<<20))
}
