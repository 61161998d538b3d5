// Package apitest runs an in-process stand-in for the guide backend so client,
// session and poller tests can exercise real HTTP round trips.
package apitest

import (
	"bytes"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/go-chi/chi/v5"

	"renewguide/internal/jsonx"
)

// Request is one request observed by the backend.
type Request struct {
	Method      string
	Path        string
	RawQuery    string
	ContentType string
	Header      http.Header
	Body        []byte
}

// Reply is a canned response.
type Reply struct {
	Code int
	// Body is encoded as JSON unless it is a string or []byte, which are written verbatim.
	Body any
}

// Backend is a fake backend served by httptest.
type Backend struct {
	server *httptest.Server

	mu       sync.Mutex
	replies  map[string]Reply
	handlers map[string]http.HandlerFunc
	requests []Request
}

// New starts a backend and registers its shutdown with t.
func New(t testing.TB) *Backend {
	t.Helper()
	b := &Backend{
		replies:  defaultReplies(),
		handlers: map[string]http.HandlerFunc{},
	}
	r := chi.NewRouter()
	r.Use(b.record)
	r.Get("/health", b.serve)
	r.Get("/api/chatbot/status", b.serve)
	r.Get("/api/system/info", b.serve)
	r.Get("/api/rag/search", b.serve)
	r.Post("/api/chat", b.serveChat)
	b.server = httptest.NewServer(r)
	t.Cleanup(b.server.Close)
	return b
}

func defaultReplies() map[string]Reply {
	return map[string]Reply{
		key(http.MethodGet, "/health"): {Code: http.StatusOK, Body: map[string]any{
			"status":   "success",
			"services": map[string]string{"fastapi": "running", "chroma": "running"},
		}},
		key(http.MethodGet, "/api/chatbot/status"): {Code: http.StatusOK, Body: map[string]any{
			"status": "success",
		}},
		key(http.MethodGet, "/api/system/info"): {Code: http.StatusOK, Body: map[string]any{
			"status": "success",
			"data": map[string]any{"system_info": map[string]string{
				"embedding_model":  "jhgan/ko-sroberta-multitask",
				"vectorstore_path": "./data/vectorstore",
				"collection_name":  "knrec_faq",
			}},
		}},
		key(http.MethodGet, "/api/rag/search"): {Code: http.StatusOK, Body: map[string]any{
			"status": "success",
			"query":  "",
			"result": map[string]any{"answer": "stub", "sources": []string{}},
		}},
	}
}

func key(method, path string) string {
	return method + " " + path
}

// URL returns the backend base URL.
func (b *Backend) URL() string {
	return b.server.URL
}

// Respond sets the canned reply for method and path.
func (b *Backend) Respond(method, path string, code int, body any) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.handlers, key(method, path))
	b.replies[key(method, path)] = Reply{Code: code, Body: body}
}

// Handle installs a custom handler for method and path, replacing any canned reply.
func (b *Backend) Handle(method, path string, h http.HandlerFunc) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers[key(method, path)] = h
}

// Requests returns a copy of every request seen so far.
func (b *Backend) Requests() []Request {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]Request(nil), b.requests...)
}

// Count returns how many requests hit path.
func (b *Backend) Count(path string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	n := 0
	for _, req := range b.requests {
		if req.Path == path {
			n++
		}
	}
	return n
}

func (b *Backend) record(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		_ = r.Body.Close()
		r.Body = io.NopCloser(bytes.NewReader(body))
		b.mu.Lock()
		b.requests = append(b.requests, Request{
			Method:      r.Method,
			Path:        r.URL.Path,
			RawQuery:    r.URL.RawQuery,
			ContentType: r.Header.Get("Content-Type"),
			Header:      r.Header.Clone(),
			Body:        body,
		})
		b.mu.Unlock()
		next.ServeHTTP(w, r)
	})
}

func (b *Backend) lookup(r *http.Request) (http.HandlerFunc, Reply, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	k := key(r.Method, r.URL.Path)
	if h, ok := b.handlers[k]; ok {
		return h, Reply{}, true
	}
	reply, ok := b.replies[k]
	return nil, reply, ok
}

func (b *Backend) serve(w http.ResponseWriter, r *http.Request) {
	h, reply, ok := b.lookup(r)
	if h != nil {
		h(w, r)
		return
	}
	if !ok {
		http.NotFound(w, r)
		return
	}
	write(w, reply)
}

// serveChat echoes the message back unless a reply or handler was installed.
func (b *Backend) serveChat(w http.ResponseWriter, r *http.Request) {
	h, reply, ok := b.lookup(r)
	if h != nil {
		h(w, r)
		return
	}
	if ok {
		write(w, reply)
		return
	}
	var req struct {
		Message string `json:"message"`
	}
	body, _ := io.ReadAll(r.Body)
	if err := jsonx.Unmarshal(body, &req); err != nil {
		write(w, Reply{Code: http.StatusUnprocessableEntity, Body: map[string]any{"detail": err.Error()}})
		return
	}
	write(w, Reply{Code: http.StatusOK, Body: map[string]any{
		"status":   "success",
		"message":  req.Message,
		"response": "echo: " + req.Message,
	}})
}

func write(w http.ResponseWriter, reply Reply) {
	code := reply.Code
	if code == 0 {
		code = http.StatusOK
	}
	var payload []byte
	switch body := reply.Body.(type) {
	case string:
		payload = []byte(body)
	case []byte:
		payload = body
	default:
		encoded, err := jsonx.Marshal(body)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		payload = encoded
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_, _ = w.Write(payload)
}
