// Package livereload serves the build output over HTTP and pushes reload events to browsers.
package livereload

import (
	"bytes"
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"go.trai.ch/kiln/internal/core/domain"
	"go.trai.ch/kiln/internal/core/ports"
	"go.trai.ch/zerr"
)

const (
	// EventsPath is the server-sent events endpoint browsers subscribe to.
	EventsPath = "/__kiln/events"
	// ScriptPath serves the client script injected into html pages.
	ScriptPath = "/__kiln/reload.js"

	clientBuffer      = 4
	readHeaderTimeout = 5 * time.Second
)

//go:embed reload.js
var clientScript []byte

var scriptTag = []byte(`<script src="` + ScriptPath + `"></script>`)

var _ ports.ReloadNotifier = (*Server)(nil)

// Message is the payload of a reload event.
type Message struct {
	Paths []string `json:"paths"`
	// CSSOnly is set when every changed file is a stylesheet, so pages can swap them in place.
	CSSOnly bool `json:"cssOnly"`
}

// Server is a static file server for dir with live reload.
type Server struct {
	dir    string
	addr   string
	logger ports.Logger

	mu      sync.Mutex
	clients map[chan []byte]struct{}
	srv     *http.Server
	bound   string
}

// New creates a Server for dir listening on addr. Nothing is served until Start.
func New(dir, addr string, logger ports.Logger) *Server {
	return &Server{
		dir:     dir,
		addr:    addr,
		logger:  logger,
		clients: make(map[chan []byte]struct{}),
	}
}

// Handler returns the HTTP handler of the server.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET "+EventsPath, s.serveEvents)
	mux.HandleFunc("GET "+ScriptPath, func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/javascript; charset=utf-8")
		_, _ = w.Write(clientScript)
	})
	mux.HandleFunc("GET /", s.serveFile)
	return mux
}

// Start binds the listener and serves in the background until Stop or ctx is done.
func (s *Server) Start(ctx context.Context) error {
	var lc net.ListenConfig
	ln, err := lc.Listen(ctx, "tcp", s.addr)
	if err != nil {
		return zerr.With(zerr.Wrap(err, domain.ErrServerFailed.Error()), "addr", s.addr)
	}

	srv := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: readHeaderTimeout,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	s.mu.Lock()
	s.srv = srv
	s.bound = ln.Addr().String()
	s.mu.Unlock()

	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error(zerr.Wrap(err, domain.ErrServerFailed.Error()))
		}
	}()

	s.logger.Info(fmt.Sprintf("serving %s at http://%s", s.dir, s.bound))
	return nil
}

// Addr returns the bound address once started.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.bound
}

// Stop shuts the server down and disconnects every client.
func (s *Server) Stop(ctx context.Context) error {
	s.mu.Lock()
	srv := s.srv
	s.srv = nil
	for ch := range s.clients {
		close(ch)
		delete(s.clients, ch)
	}
	s.mu.Unlock()

	if srv == nil {
		return nil
	}
	return srv.Shutdown(ctx)
}

// Clients returns the number of connected browsers.
func (s *Server) Clients() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.clients)
}

// Notify broadcasts one reload event. Slow clients miss the event rather than block the run.
func (s *Server) Notify(_ context.Context, changed []domain.FileRecord) error {
	msg := Message{Paths: make([]string, 0, len(changed)), CSSOnly: len(changed) > 0}
	for _, rec := range changed {
		msg.Paths = append(msg.Paths, rec.Path)
		if !strings.EqualFold(rec.Ext(), ".css") {
			msg.CSSOnly = false
		}
	}
	payload, err := json.Marshal(msg)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for ch := range s.clients {
		select {
		case ch <- payload:
		default:
		}
	}
	return nil
}

func (s *Server) subscribe() chan []byte {
	ch := make(chan []byte, clientBuffer)
	s.mu.Lock()
	s.clients[ch] = struct{}{}
	s.mu.Unlock()
	return ch
}

func (s *Server) unsubscribe(ch chan []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.clients[ch]; ok {
		delete(s.clients, ch)
		close(ch)
	}
}

func (s *Server) serveEvents(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	ch := s.subscribe()
	defer s.unsubscribe(ch)

	_, _ = fmt.Fprint(w, ": connected\n\n")
	flusher.Flush()

	for {
		select {
		case <-r.Context().Done():
			return
		case payload, open := <-ch:
			if !open {
				return
			}
			if _, err := fmt.Fprintf(w, "event: reload\ndata: %s\n\n", payload); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}

func (s *Server) serveFile(w http.ResponseWriter, r *http.Request) {
	name := path.Clean("/" + r.URL.Path)
	if strings.HasSuffix(r.URL.Path, "/") {
		name = path.Join(name, "index.html")
	}

	ext := strings.ToLower(path.Ext(name))
	if ext != ".html" && ext != ".htm" {
		http.FileServer(http.Dir(s.dir)).ServeHTTP(w, r)
		return
	}

	// #nosec G304 -- name is cleaned and rooted at the serve directory
	body, err := os.ReadFile(filepath.Join(s.dir, filepath.FromSlash(name)))
	if err != nil {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-cache")
	_, _ = w.Write(InjectScript(body))
}

// InjectScript inserts the client script tag before the closing body tag, or appends it.
func InjectScript(page []byte) []byte {
	i := bytes.LastIndex(bytes.ToLower(page), []byte("</body>"))
	if i < 0 {
		return append(append([]byte(nil), page...), scriptTag...)
	}
	out := make([]byte, 0, len(page)+len(scriptTag))
	out = append(out, page[:i]...)
	out = append(out, scriptTag...)
	return append(out, page[i:]...)
}
