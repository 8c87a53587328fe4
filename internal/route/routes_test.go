package route

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"trafficanalyzer/internal/analysis"
	"trafficanalyzer/internal/config"
	"trafficanalyzer/internal/lifecycle"
	"trafficanalyzer/internal/logger"
	"trafficanalyzer/internal/repository/sqlite"
	"trafficanalyzer/internal/service/history"
	"trafficanalyzer/internal/service/websocket"
	"trafficanalyzer/internal/session"
	"trafficanalyzer/internal/web"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeService mimics the vehicle counting service.
func fakeService(t *testing.T, status int) *httptest.Server {
	t.Helper()

	mux := http.NewServeMux()
	mux.HandleFunc("POST /process_video", func(w http.ResponseWriter, r *http.Request) {
		if status != http.StatusOK {
			w.WriteHeader(status)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `{"summary":{"car":5,"truck":2},"video_url":"/videos/out.mp4"}`)
	})
	mux.HandleFunc("GET /videos/out.mp4", func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, "annotated")
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func newServer(t *testing.T, cfg *config.Config) *httptest.Server {
	t.Helper()

	log := logger.NewNop()

	db, err := sqlite.New(filepath.Join(t.TempDir(), "reports.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	client, err := analysis.NewClient(cfg, log)
	require.NoError(t, err)

	pages, err := web.ParsePages()
	require.NoError(t, err)

	hist := history.NewService(sqlite.NewReportRepository(db), log)
	hub := websocket.NewHubService(log)
	ctx, cancel := context.WithCancel(context.Background())
	go hub.Run(ctx)
	t.Cleanup(cancel)

	sessions := session.NewStore(func(id string) *lifecycle.Controller {
		return lifecycle.NewController(lifecycle.Options{
			Analyzer: client,
			Notifier: hub.Notifier(id),
			Recorder: hist,
			Logger:   log,
		})
	}, time.Hour, log)
	t.Cleanup(sessions.Close)

	srv := httptest.NewServer(SetupRoutes(Dependencies{
		Config:   cfg,
		Logger:   log,
		Pages:    pages,
		Sessions: sessions,
		Hub:      hub,
		Reports:  hist,
		Videos:   client,
		Endpoint: client.Endpoint(),
	}))
	t.Cleanup(srv.Close)
	return srv
}

func newBrowser(t *testing.T) *http.Client {
	t.Helper()
	jar, err := cookiejar.New(nil)
	require.NoError(t, err)
	return &http.Client{
		Jar: jar,
		CheckRedirect: func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}
}

func get(t *testing.T, c *http.Client, u string) (*http.Response, string) {
	t.Helper()
	resp, err := c.Get(u)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, string(body)
}

func upload(t *testing.T, c *http.Client, base, name string, content []byte) *http.Response {
	t.Helper()

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("video", name)
	require.NoError(t, err)
	part.Write(content)
	require.NoError(t, mw.Close())

	resp, err := c.Post(base+"/api/video", mw.FormDataContentType(), &body)
	require.NoError(t, err)
	resp.Body.Close()
	return resp
}

func state(t *testing.T, c *http.Client, base string) lifecycle.Snapshot {
	t.Helper()
	_, body := get(t, c, base+"/api/state")
	var snap lifecycle.Snapshot
	require.NoError(t, json.Unmarshal([]byte(body), &snap))
	return snap
}

func waitComplete(t *testing.T, c *http.Client, base string) lifecycle.Snapshot {
	t.Helper()
	var snap lifecycle.Snapshot
	require.Eventually(t, func() bool {
		snap = state(t, c, base)
		return snap.State == lifecycle.StateComplete
	}, 5*time.Second, 20*time.Millisecond)
	return snap
}

func TestRoutes_FullLifecycle(t *testing.T) {
	service := fakeService(t, http.StatusOK)
	cfg := &config.Config{AnalysisURL: service.URL, MaxUploadMB: 1, UploadDirectory: t.TempDir()}
	srv := newServer(t, cfg)
	browser := newBrowser(t)

	resp, page := get(t, browser, srv.URL+"/")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, page, "Analyze Traffic Flow")
	assert.Contains(t, page, "Motorcycles")

	resp, _ = get(t, browser, srv.URL+"/api/export/csv")
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	resp, err := browser.Post(srv.URL+"/api/analysis", "", nil)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusConflict, resp.StatusCode, "nothing selected")

	require.Equal(t, http.StatusOK, upload(t, browser, srv.URL, "clip.mp4", []byte("video")).StatusCode)
	assert.Equal(t, lifecycle.StateReady, state(t, browser, srv.URL).State)

	resp, err = browser.Post(srv.URL+"/api/analysis", "", nil)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusAccepted, resp.StatusCode)

	snap := waitComplete(t, browser, srv.URL)
	assert.False(t, snap.Loading)
	assert.Equal(t, 5, snap.Counts.Get("car"))
	assert.Equal(t, service.URL+"/videos/out.mp4", snap.VideoURL)

	resp, csv := get(t, browser, srv.URL+"/api/export/csv")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "Vehicle Type,Count\ncar,5\ntruck,2", csv)

	resp, video := get(t, browser, srv.URL+"/api/export/video")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, `attachment; filename="processed_video.mp4"`, resp.Header.Get("Content-Disposition"))
	assert.Equal(t, "annotated", video)

	resp, reports := get(t, browser, srv.URL+"/api/reports")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, reports, `"fileName":"clip.mp4"`)
	assert.Contains(t, reports, `"length":1`)
}

func TestRoutes_FailureKeepsPreviousResults(t *testing.T) {
	service := fakeService(t, http.StatusInternalServerError)
	cfg := &config.Config{AnalysisURL: service.URL, MaxUploadMB: 1, UploadDirectory: t.TempDir()}
	srv := newServer(t, cfg)
	browser := newBrowser(t)

	upload(t, browser, srv.URL, "clip.mp4", []byte("video"))
	resp, err := browser.Post(srv.URL+"/api/analysis", "", nil)
	require.NoError(t, err)
	resp.Body.Close()

	snap := waitComplete(t, browser, srv.URL)
	assert.Zero(t, snap.Counts.Len())
	assert.Empty(t, snap.VideoURL)
	assert.Equal(t, uint64(1), snap.Failures)
	assert.Equal(t, "Processing failed – status 500", snap.LastError)

	_, page := get(t, browser, srv.URL+"/")
	assert.Contains(t, page, "Processing failed – status 500", "reloaded page still shows the failure")

	_, reports := get(t, browser, srv.URL+"/api/reports")
	assert.Contains(t, reports, `"length":0`, "failures are not recorded")
}

func TestRoutes_SessionsAreIsolated(t *testing.T) {
	service := fakeService(t, http.StatusOK)
	cfg := &config.Config{AnalysisURL: service.URL, MaxUploadMB: 1, UploadDirectory: t.TempDir()}
	srv := newServer(t, cfg)

	alice, bob := newBrowser(t), newBrowser(t)
	upload(t, alice, srv.URL, "clip.mp4", []byte("video"))

	assert.Equal(t, lifecycle.StateReady, state(t, alice, srv.URL).State)
	assert.Equal(t, lifecycle.StateIdle, state(t, bob, srv.URL).State)
}

func TestRoutes_Monitoring(t *testing.T) {
	service := fakeService(t, http.StatusOK)
	srv := newServer(t, &config.Config{AnalysisURL: service.URL, MaxUploadMB: 1, Password: "secret"})

	resp, body := get(t, http.DefaultClient, srv.URL+"/healthz")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "ok", body)
	assert.Empty(t, resp.Cookies(), "no session for monitoring")

	resp, body = get(t, http.DefaultClient, srv.URL+"/metrics")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body, "traffic_active_sessions")
}

func TestRoutes_PasswordLogin(t *testing.T) {
	service := fakeService(t, http.StatusOK)
	srv := newServer(t, &config.Config{AnalysisURL: service.URL, MaxUploadMB: 1, Password: "secret"})
	browser := newBrowser(t)

	resp, _ := get(t, browser, srv.URL+"/")
	assert.Equal(t, http.StatusSeeOther, resp.StatusCode)
	assert.Equal(t, "/login", resp.Header.Get("Location"))

	resp, _ = get(t, browser, srv.URL+"/api/state")
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp, page := get(t, browser, srv.URL+"/login")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, page, `name="password"`)

	resp, err := browser.PostForm(srv.URL+"/auth/login", url.Values{"password": {"wrong"}})
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp, err = browser.PostForm(srv.URL+"/auth/login", url.Values{"password": {"secret"}})
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusSeeOther, resp.StatusCode)

	resp, page = get(t, browser, srv.URL+"/")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.True(t, strings.Contains(page, "Logout"))

	resp, _ = get(t, browser, srv.URL+"/auth/logout")
	assert.Equal(t, http.StatusSeeOther, resp.StatusCode)
	resp, _ = get(t, browser, srv.URL+"/api/state")
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestRoutes_Pages(t *testing.T) {
	service := fakeService(t, http.StatusOK)
	srv := newServer(t, &config.Config{AnalysisURL: service.URL, MaxUploadMB: 1, SessionTTL: time.Hour})
	browser := newBrowser(t)

	tests := []struct {
		path     string
		status   int
		contains string
	}{
		{"/reports", http.StatusOK, "Clear history"},
		{"/settings", http.StatusOK, service.URL + "/process_video"},
		{"/login", http.StatusSeeOther, ""},
		{"/static/app.js", http.StatusOK, "/api/ws"},
		{"/nope", http.StatusNotFound, ""},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			resp, body := get(t, browser, srv.URL+tt.path)
			assert.Equal(t, tt.status, resp.StatusCode)
			if tt.contains != "" {
				assert.Contains(t, body, tt.contains)
			}
		})
	}
}
