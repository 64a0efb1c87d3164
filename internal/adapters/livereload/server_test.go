package livereload_test

import (
	"bufio"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.trai.ch/kiln/internal/adapters/livereload"
	"go.trai.ch/kiln/internal/core/domain"
	"go.trai.ch/kiln/internal/core/ports/mocks"
	"go.uber.org/mock/gomock"
)

func newServer(t *testing.T) (*livereload.Server, string) {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "index.html"),
		[]byte("<html><body><h1>hi</h1></body></html>"), 0o600))
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "css"), 0o750))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "css", "main.css"), []byte("a{}"), 0o600))

	ctrl := gomock.NewController(t)
	return livereload.New(dir, "127.0.0.1:0", mocks.NewMockLogger(ctrl)), dir
}

func get(t *testing.T, url string) (string, *http.Response) {
	t.Helper()
	resp, err := http.Get(url) //nolint:noctx // test helper
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return string(body), resp
}

func TestServer_InjectsScriptIntoHTML(t *testing.T) {
	s, _ := newServer(t)
	ts := httptest.NewServer(s.Handler())
	defer ts.Close()

	body, resp := get(t, ts.URL+"/")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, `<html><body><h1>hi</h1><script src="/__kiln/reload.js"></script></body></html>`, body)

	body, _ = get(t, ts.URL+"/css/main.css")
	assert.Equal(t, "a{}", body)

	body, resp = get(t, ts.URL+livereload.ScriptPath)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body, "EventSource")

	_, resp = get(t, ts.URL+"/missing.html")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestInjectScript_WithoutBody(t *testing.T) {
	assert.Equal(t, `<p>x</p><script src="/__kiln/reload.js"></script>`,
		string(livereload.InjectScript([]byte("<p>x</p>"))))
}

func TestServer_NotifyReachesSubscribers(t *testing.T) {
	s, _ := newServer(t)
	ts := httptest.NewServer(s.Handler())
	defer ts.Close()

	resp, err := http.Get(ts.URL + livereload.EventsPath) //nolint:noctx // closed by the test server
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	require.Eventually(t, func() bool { return s.Clients() == 1 }, 2*time.Second, 5*time.Millisecond)

	require.NoError(t, s.Notify(t.Context(), []domain.FileRecord{
		domain.NewFileRecord("dest/css/main.css", "dest", nil),
	}))

	reader := bufio.NewReader(resp.Body)
	var data string
	for {
		line, err := reader.ReadString('\n')
		require.NoError(t, err)
		if rest, ok := strings.CutPrefix(line, "data: "); ok {
			data = strings.TrimSpace(rest)
			break
		}
	}

	var msg livereload.Message
	require.NoError(t, json.Unmarshal([]byte(data), &msg))
	assert.Equal(t, []string{"dest/css/main.css"}, msg.Paths)
	assert.True(t, msg.CSSOnly)
}

func TestServer_NotifyWithoutClients(t *testing.T) {
	s, _ := newServer(t)
	require.NoError(t, s.Notify(t.Context(), []domain.FileRecord{domain.NewFileRecord("a.html", ".", nil)}))
}

func TestServer_StartStop(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "index.html"), []byte("ok"), 0o600))

	ctrl := gomock.NewController(t)
	log := mocks.NewMockLogger(ctrl)
	log.EXPECT().Info(gomock.Any()).Times(1)

	s := livereload.New(dir, "127.0.0.1:0", log)
	require.NoError(t, s.Start(t.Context()))
	require.NotEmpty(t, s.Addr())

	body, _ := get(t, "http://"+s.Addr()+"/index.html")
	assert.Equal(t, `ok<script src="/__kiln/reload.js"></script>`, body)

	require.NoError(t, s.Stop(t.Context()))
	require.NoError(t, s.Stop(t.Context()))
}

func TestServer_StartFailsOnBadAddr(t *testing.T) {
	ctrl := gomock.NewController(t)
	s := livereload.New(t.TempDir(), "256.0.0.1:-1", mocks.NewMockLogger(ctrl))
	err := s.Start(t.Context())
	require.ErrorContains(t, err, domain.ErrServerFailed.Error())
}
