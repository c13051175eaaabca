package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"html/template"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/klauspost/compress/zip"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"video-splitter/config"
	"video-splitter/constant"
	"video-splitter/dto"
	"video-splitter/pkg/caption"
	"video-splitter/pkg/media"
	"video-splitter/pkg/storage"
	"video-splitter/repository"
	"video-splitter/service"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func writeScript(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\n"+body+"\n"), 0o755))
	return path
}

func segmentingScript(n int) string {
	return fmt.Sprintf(`for last; do :; done
dir=$(dirname "$last")
i=0
while [ $i -lt %d ]; do
  printf 'data' > "$(printf '%%s/segment_%%03d.mp4' "$dir" $i)"
  i=$((i+1))
done`, n)
}

type unreachableGenerator struct{}

func (unreachableGenerator) Name() string { return "unreachable" }

func (unreachableGenerator) Generate(context.Context, string) (string, error) {
	return "", errors.New("dial tcp 203.0.113.1:443: i/o timeout")
}

type testServer struct {
	router *gin.Engine
	cfg    *config.Config
}

type serverOptions struct {
	probe     string
	ffmpeg    string
	generator caption.TextGenerator
	bodyLimit int64
	drive     *storage.Drive
}

func newTestServer(t *testing.T, opts serverOptions) *testServer {
	t.Helper()
	root := t.TempDir()
	cfg := &config.Config{
		Paths: config.Paths{UploadDir: filepath.Join(root, "uploads"), TempDir: filepath.Join(root, "temp")},
		Media: config.Media{
			SegmentSeconds: 120,
			SegmentFormat:  "mp4",
			ProbeTimeout:   5 * time.Second,
			SegmentTimeout: 10 * time.Second,
		},
		Redis: config.Redis{LeaseTTL: time.Hour},
	}
	require.NoError(t, os.MkdirAll(cfg.Paths.TempDir, 0o755))

	captioner, err := caption.New(opts.generator, cfg.Media.SegmentSeconds)
	require.NoError(t, err)
	local := storage.NewLocal(cfg.Paths.TempDir, "/download")

	svc := service.NewService(cfg, service.Dependencies{
		Repo:      repository.NewMemoryRepo(),
		Prober:    media.NewProber(writeScript(t, "ffprobe", "echo "+opts.probe), cfg.Media.ProbeTimeout),
		Segmenter: media.NewSegmenter(writeScript(t, "ffmpeg", opts.ffmpeg), "mp4", cfg.Media.SegmentTimeout),
		Captioner: captioner,
		Backend:   local,
		Local:     local,
		Drive:     opts.drive,
	})

	limit := opts.bodyLimit
	if limit == 0 {
		limit = cfg.Server.BodyLimit(false)
	}
	r := gin.New()
	r.SetHTMLTemplate(template.Must(template.New(IndexTemplate).Parse(`ai={{.AIEnabled}} storage={{.Storage}}`)))
	r.Use(RequestLogger(zerolog.Nop()), LimitBody(limit))
	NewHandler(svc, false).Register(r)
	return &testServer{router: r, cfg: cfg}
}

func (s *testServer) do(req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func multipartRequest(t *testing.T, path, field, filename string, content []byte) *http.Request {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile(field, filename)
	require.NoError(t, err)
	_, err = part.Write(content)
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, path, &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v), w.Body.String())
	return v
}

func TestUploadSplitsIntoSegments(t *testing.T) {
	s := newTestServer(t, serverOptions{probe: "250.0", ffmpeg: segmentingScript(3)})

	w := s.do(multipartRequest(t, "/upload", "video", "holiday.mp4", []byte("video bytes")))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	resp := decode[dto.UploadResponse](t, w)
	assert.True(t, resp.Success)
	assert.Equal(t, 3, resp.SegmentCount)
	assert.Equal(t, "250.00 seconds", resp.TotalDuration)
	assert.Equal(t, constant.ArchiveName(resp.SessionID.String()), resp.ZipFilename)
	assert.Equal(t, "/download/"+resp.ZipFilename, resp.DownloadURL)
	assert.False(t, resp.AIEnabled)
	assert.EqualValues(t, len("video bytes"), resp.FileSize)
	assert.NotEmpty(t, w.Header().Get(requestIDHeader))

	dl := s.do(httptest.NewRequest(http.MethodGet, "/download/"+resp.ZipFilename, nil))
	require.Equal(t, http.StatusOK, dl.Code)
	assert.Contains(t, dl.Header().Get("Content-Disposition"), constant.DownloadNamePrefix)

	zr, err := zip.NewReader(bytes.NewReader(dl.Body.Bytes()), int64(dl.Body.Len()))
	require.NoError(t, err)
	var segments int
	var doc struct {
		SegmentCount int `json:"segment_count"`
	}
	for _, f := range zr.File {
		if strings.HasPrefix(f.Name, constant.SegmentPrefix) {
			segments++
		}
		if f.Name == constant.MetadataFileName {
			rc, err := f.Open()
			require.NoError(t, err)
			require.NoError(t, json.NewDecoder(rc).Decode(&doc))
			rc.Close()
		}
	}
	assert.Len(t, zr.File, 4)
	assert.Equal(t, 3, segments)
	assert.Equal(t, segments, doc.SegmentCount)

	sess := s.do(httptest.NewRequest(http.MethodGet, "/api/sessions/"+resp.SessionID.String(), nil))
	require.Equal(t, http.StatusOK, sess.Code)
	assert.Contains(t, sess.Body.String(), `"status":"COMPLETED"`)
}

func TestUploadAcceptsFileField(t *testing.T) {
	s := newTestServer(t, serverOptions{probe: "60", ffmpeg: segmentingScript(1)})

	w := s.do(multipartRequest(t, "/upload", "file", "clip.webm", []byte("x")))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, 1, decode[dto.UploadResponse](t, w).SegmentCount)
}

func TestUploadRejectsDisallowedExtension(t *testing.T) {
	s := newTestServer(t, serverOptions{probe: "250", ffmpeg: segmentingScript(3)})

	w := s.do(multipartRequest(t, "/upload", "video", "notes.txt", []byte("hello")))
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, decode[dto.ErrorResponse](t, w).Error, "Supported: MP4, AVI, MOV, MKV, WMV, FLV, WebM, M4V")
}

func TestUploadWithoutFile(t *testing.T) {
	s := newTestServer(t, serverOptions{probe: "250", ffmpeg: segmentingScript(3)})

	w := s.do(multipartRequest(t, "/upload", "other", "clip.mp4", []byte("x")))
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "No file selected", decode[dto.ErrorResponse](t, w).Error)

	w = s.do(httptest.NewRequest(http.MethodPost, "/upload", strings.NewReader("plain")))
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestUploadCorruptVideo(t *testing.T) {
	marker := filepath.Join(t.TempDir(), "segmenter-ran")
	s := newTestServer(t, serverOptions{probe: "0", ffmpeg: fmt.Sprintf("touch %q", marker)})

	w := s.do(multipartRequest(t, "/upload", "video", "corrupt.mp4", []byte("garbage")))
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "Could not process video file. Please try another format.", decode[dto.ErrorResponse](t, w).Error)

	assert.NoFileExists(t, marker)
	archives, err := filepath.Glob(filepath.Join(s.cfg.Paths.TempDir, "*.zip"))
	require.NoError(t, err)
	assert.Empty(t, archives)
}

func TestUploadSegmenterFailure(t *testing.T) {
	s := newTestServer(t, serverOptions{
		probe:  "250",
		ffmpeg: `echo "Invalid data found when processing input" >&2; exit 1`,
	})

	w := s.do(multipartRequest(t, "/upload", "video", "clip.avi", []byte("x")))
	assert.Equal(t, http.StatusBadRequest, w.Code)
	msg := decode[dto.ErrorResponse](t, w).Error
	assert.True(t, strings.HasPrefix(msg, "Video processing failed: "), msg)
	assert.Contains(t, msg, "Invalid data found when processing input")
}

func TestUploadWithGeneratorUnreachable(t *testing.T) {
	s := newTestServer(t, serverOptions{probe: "250", ffmpeg: segmentingScript(3), generator: unreachableGenerator{}})

	w := s.do(multipartRequest(t, "/upload", "video", "clip.mp4", []byte("x")))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	resp := decode[dto.UploadResponse](t, w)
	assert.True(t, resp.AIEnabled)
	assert.Equal(t, string(caption.StatusFailed), resp.AIStatus)
	assert.Equal(t, caption.FallbackAnalysis(3), resp.AIAnalysis)
}

func TestUploadTooLarge(t *testing.T) {
	s := newTestServer(t, serverOptions{probe: "250", ffmpeg: segmentingScript(3), bodyLimit: 1024})

	w := s.do(multipartRequest(t, "/upload", "video", "big.mp4", bytes.Repeat([]byte("x"), 4096)))
	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
	assert.Contains(t, decode[dto.ErrorResponse](t, w).Error, "File too large")
}

func TestAnalyze(t *testing.T) {
	s := newTestServer(t, serverOptions{probe: "0", ffmpeg: "exit 1"})

	w := s.do(multipartRequest(t, "/analyze", "video", "clip.mkv", []byte("x")))
	require.Equal(t, http.StatusOK, w.Code)
	resp := decode[dto.AnalyzeResponse](t, w)
	assert.Equal(t, 1, resp.EstimatedSegments)
	assert.Equal(t, "ready", resp.Status)
	assert.Equal(t, caption.FallbackTitle, resp.AIAnalysis.VideoTitle)
	assert.Equal(t, []string{"Part 1: Engaging Content"}, resp.AIAnalysis.Segments)
}

func TestDownloadMissing(t *testing.T) {
	s := newTestServer(t, serverOptions{probe: "0", ffmpeg: "exit 1"})

	for _, name := range []string{"missing.zip", ".."} {
		w := s.do(httptest.NewRequest(http.MethodGet, "/download/"+name, nil))
		assert.Equal(t, http.StatusNotFound, w.Code, name)
		assert.Equal(t, "File not found or expired", decode[dto.ErrorResponse](t, w).Error)
	}
}

func TestStatusAndIndex(t *testing.T) {
	s := newTestServer(t, serverOptions{probe: "0", ffmpeg: "exit 1"})

	w := s.do(httptest.NewRequest(http.MethodGet, "/api/status", nil))
	require.Equal(t, http.StatusOK, w.Code)
	status := decode[dto.StatusResponse](t, w)
	assert.Equal(t, "operational", status.Status)
	assert.False(t, status.AIEnabled)
	assert.False(t, status.S3Enabled)
	assert.Equal(t, storage.LocalBackend, status.Storage)
	assert.False(t, status.DriveEnabled)
	assert.False(t, status.DriveAuthorized)
	assert.WithinDuration(t, time.Now(), status.Timestamp, time.Minute)

	w = s.do(httptest.NewRequest(http.MethodGet, "/", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "ai=false storage=local", w.Body.String())
}

func TestObjectStorageRoutesWithoutBucket(t *testing.T) {
	s := newTestServer(t, serverOptions{probe: "0", ffmpeg: "exit 1"})

	req := httptest.NewRequest(http.MethodPost, "/generate_presigned_url", strings.NewReader(`{"filename":"clip.mp4"}`))
	req.Header.Set("Content-Type", "application/json")
	w := s.do(req)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, "S3 storage not configured", decode[dto.ErrorResponse](t, w).Error)

	req = httptest.NewRequest(http.MethodPost, "/process_video", strings.NewReader(`{"object_name":"uploads/x/clip.mp4"}`))
	req.Header.Set("Content-Type", "application/json")
	w = s.do(req)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestSessionLookup(t *testing.T) {
	s := newTestServer(t, serverOptions{probe: "0", ffmpeg: "exit 1"})

	w := s.do(httptest.NewRequest(http.MethodGet, "/api/sessions/not-a-uuid", nil))
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.do(httptest.NewRequest(http.MethodGet, "/api/sessions/1b4e28ba-2fa1-11d2-883f-0016d3cca427", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestStatusReportsDriveAuthorization(t *testing.T) {
	dir := t.TempDir()
	secrets := filepath.Join(dir, "client_secret.json")
	require.NoError(t, os.WriteFile(secrets, []byte(`{"web":{"client_id":"id","client_secret":"secret",`+
		`"auth_uri":"https://accounts.google.com/o/oauth2/auth","token_uri":"https://oauth2.googleapis.com/token",`+
		`"redirect_uris":["http://localhost:5000/oauth2callback"]}}`), 0o600))
	tokenFile := filepath.Join(dir, "token.json")
	drive, err := storage.NewDrive(secrets, tokenFile, "", "state-key")
	require.NoError(t, err)
	s := newTestServer(t, serverOptions{probe: "0", ffmpeg: "exit 1", drive: drive})

	status := decode[dto.StatusResponse](t, s.do(httptest.NewRequest(http.MethodGet, "/api/status", nil)))
	assert.True(t, status.DriveEnabled)
	assert.False(t, status.DriveAuthorized)

	require.NoError(t, os.WriteFile(tokenFile, []byte(`{"access_token":"a","refresh_token":"r"}`), 0o600))
	status = decode[dto.StatusResponse](t, s.do(httptest.NewRequest(http.MethodGet, "/api/status", nil)))
	assert.True(t, status.DriveAuthorized)
}

func TestDriveRoutesWithoutDrive(t *testing.T) {
	s := newTestServer(t, serverOptions{probe: "0", ffmpeg: "exit 1"})

	for _, path := range []string{"/authorize", "/upload_drive/x.zip", "/oauth2callback?state=s&code=c"} {
		w := s.do(httptest.NewRequest(http.MethodGet, path, nil))
		assert.Equal(t, http.StatusInternalServerError, w.Code, path)
		assert.Equal(t, "Google Drive not configured", decode[dto.ErrorResponse](t, w).Error)
	}

	w := s.do(httptest.NewRequest(http.MethodGet, "/oauth2callback?error=access_denied", nil))
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestClassifySessionInUse(t *testing.T) {
	code, msg := classify(errors.Join(service.ErrSessionInUse, errors.New("session lease already held")))
	assert.Equal(t, http.StatusConflict, code)
	assert.Equal(t, "Session already processing or completed", msg)
}
