package media

import (
	"bytes"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mediavault/service/internal/middleware"
	"github.com/mediavault/service/internal/ratelimit"
)

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   string          `json:"error"`
}

func newTestServer(svc *Service, limiter ratelimit.Limiter) http.Handler {
	h := NewHandler(svc, testConfig())
	r := chi.NewRouter()
	r.Route("/api/v1/media", func(r chi.Router) {
		r.Use(middleware.RequireAuth("test-secret"))
		r.With(middleware.RateLimit(limiter)).Post("/upload", h.Upload)
		r.With(middleware.RateLimit(limiter)).Post("/presign", h.Presign)
		r.Get("/", h.List)
		r.Get("/{id}", h.Get)
		r.Delete("/{id}", h.Delete)
	})
	return r
}

func defaultLimiter() ratelimit.Limiter {
	return ratelimit.NewMemoryLimiter(time.Minute, 1000)
}

type filePart struct {
	name        string
	contentType string
	data        []byte
}

func multipartBody(t *testing.T, parts []filePart) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	for _, p := range parts {
		header := make(textproto.MIMEHeader)
		header.Set("Content-Disposition", `form-data; name="file"; filename="`+p.name+`"`)
		if p.contentType != "" {
			header.Set("Content-Type", p.contentType)
		}
		part, err := w.CreatePart(header)
		require.NoError(t, err)
		_, err = part.Write(p.data)
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())
	return &buf, w.FormDataContentType()
}

func doUpload(t *testing.T, srv http.Handler, userID string, parts []filePart) *httptest.ResponseRecorder {
	t.Helper()
	body, contentType := multipartBody(t, parts)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/media/upload", body)
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("x-user-id", userID)
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)
	return rec
}

func decodeEnvelope(t *testing.T, rec *httptest.ResponseRecorder) envelope {
	t.Helper()
	var env envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	return env
}

func TestUploadSingleFileRespondsWithObject(t *testing.T) {
	svc, _, _, _ := newTestService()
	srv := newTestServer(svc, defaultLimiter())

	rec := doUpload(t, srv, "alice", []filePart{{"one.png", "image/png", pngBytes(t)}})
	require.Equal(t, http.StatusCreated, rec.Code)

	env := decodeEnvelope(t, rec)
	require.True(t, env.Success)
	var item View
	require.NoError(t, json.Unmarshal(env.Data, &item))
	assert.Equal(t, "one.png", item.OriginalName)
	assert.NotEmpty(t, item.URL)
}

func TestUploadBatchRespondsWithItemsAndFailed(t *testing.T) {
	svc, _, _, _ := newTestService()
	srv := newTestServer(svc, defaultLimiter())

	rec := doUpload(t, srv, "alice", []filePart{
		{"a.png", "image/png", pngBytes(t)},
		{"b.txt", "text/plain", []byte("nope")},
		{"c.png", "image/png", pngBytes(t)},
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	var result BatchResult
	env := decodeEnvelope(t, rec)
	require.NoError(t, json.Unmarshal(env.Data, &result))
	assert.Len(t, result.Items, 2)
	require.Len(t, result.Failed, 1)
	assert.Equal(t, "b.txt", result.Failed[0].FileName)
}

func TestUploadAllFailedIsBatchLevelError(t *testing.T) {
	svc, _, _, _ := newTestService()
	srv := newTestServer(svc, defaultLimiter())

	rec := doUpload(t, srv, "alice", []filePart{
		{"a.txt", "text/plain", []byte("x")},
		{"b.txt", "text/plain", []byte("y")},
	})
	require.Equal(t, http.StatusBadRequest, rec.Code)

	env := decodeEnvelope(t, rec)
	assert.False(t, env.Success)
	assert.Equal(t, "unsupported mime type", env.Error)
	var result BatchResult
	require.NoError(t, json.Unmarshal(env.Data, &result))
	assert.Len(t, result.Failed, 2)
}

func TestUploadNoFile(t *testing.T) {
	svc, _, _, _ := newTestService()
	srv := newTestServer(svc, defaultLimiter())

	rec := doUpload(t, srv, "alice", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestUploadOversizeFile(t *testing.T) {
	svc, _, _, _ := newTestService()
	srv := newTestServer(svc, defaultLimiter())

	big := bytes.Repeat([]byte{0xAB}, int(testConfig().MaxUploadBytes)+1)
	rec := doUpload(t, srv, "alice", []filePart{{"big.png", "image/png", big}})
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
}

func TestUploadRequiresAuthentication(t *testing.T) {
	svc, _, _, _ := newTestService()
	srv := newTestServer(svc, defaultLimiter())

	body, contentType := multipartBody(t, []filePart{{"a.png", "image/png", pngBytes(t)}})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/media/upload", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestUploadRateLimited(t *testing.T) {
	svc, _, _, _ := newTestService()
	srv := newTestServer(svc, ratelimit.NewMemoryLimiter(time.Minute, 1))

	first := doUpload(t, srv, "alice", []filePart{{"a.png", "image/png", pngBytes(t)}})
	assert.Equal(t, http.StatusCreated, first.Code)

	second := doUpload(t, srv, "alice", []filePart{{"b.png", "image/png", pngBytes(t)}})
	assert.Equal(t, http.StatusTooManyRequests, second.Code)
}

func TestPresignEndpoint(t *testing.T) {
	svc, _, _, _ := newTestService()
	srv := newTestServer(svc, defaultLimiter())

	body, _ := json.Marshal(PresignRequest{FileName: "big.png", MimeType: "image/png", SizeBytes: 512})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/media/presign", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-user-id", "alice")
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)
	require.Equal(t, http.StatusCreated, rec.Code)

	var result PresignResult
	env := decodeEnvelope(t, rec)
	require.NoError(t, json.Unmarshal(env.Data, &result))
	assert.NotEmpty(t, result.UploadURL)
	assert.NotEmpty(t, result.Key)
	assert.Equal(t, 600, result.ExpiresIn)
}

func TestListQueryValidation(t *testing.T) {
	svc, _, _, _ := newTestService()
	srv := newTestServer(svc, defaultLimiter())

	for _, query := range []string{"?limit=0", "?limit=51", "?limit=abc", "?scope=bogus"} {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/media"+query, nil)
		req.Header.Set("x-user-id", "alice")
		rec := httptest.NewRecorder()
		srv.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusBadRequest, rec.Code, "query %s", query)
	}
}

func TestGetDeleteFlow(t *testing.T) {
	svc, repo, store, _ := newTestService()
	srv := newTestServer(svc, defaultLimiter())
	seeded := repo.seed("alice", StatusActive, time.Now().UTC())
	store.objects[seeded.StoredKey] = []byte("bytes")

	req := httptest.NewRequest(http.MethodGet, "/api/v1/media/"+seeded.ID+"?presign=true", nil)
	req.Header.Set("x-user-id", "alice")
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var view View
	env := decodeEnvelope(t, rec)
	require.NoError(t, json.Unmarshal(env.Data, &view))
	assert.NotEmpty(t, view.URL)
	assert.NotEmpty(t, view.PresignedURL)

	req = httptest.NewRequest(http.MethodDelete, "/api/v1/media/"+seeded.ID+"?purge=true", nil)
	req.Header.Set("x-user-id", "alice")
	rec = httptest.NewRecorder()
	srv.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotContains(t, store.objects, seeded.StoredKey)

	// Gone for the owner afterward.
	req = httptest.NewRequest(http.MethodGet, "/api/v1/media/"+seeded.ID, nil)
	req.Header.Set("x-user-id", "alice")
	rec = httptest.NewRecorder()
	srv.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestGetForbiddenForOtherUser(t *testing.T) {
	svc, repo, _, _ := newTestService()
	srv := newTestServer(svc, defaultLimiter())
	seeded := repo.seed("alice", StatusActive, time.Now().UTC())

	req := httptest.NewRequest(http.MethodGet, "/api/v1/media/"+seeded.ID, nil)
	req.Header.Set("x-user-id", "mallory")
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}
