// Package crudytest provides an in-memory backend speaking the {c, m, d}
// envelope protocol, for testing code built on the crudy client.
//
// Every resource registered with [Server.Seed] or created by a PUT is served
// under /{resource} with the all, count, page, one, save and delete
// endpoints. Files POSTed under /files/ are stored by digest. Application
// errors are answered with HTTP 200 and a non-"0" envelope code, the way the
// real backend does.
package crudytest

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"path"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/go-chi/chi/v5"
)

const (
	CodeOK         = "0"
	CodeBadRequest = "400"
	CodeNotFound   = "404"

	headerFileDigest = "X-File-Digest"
)

// Item is a stored resource. Its "id" field is a JSON number.
type Item map[string]any

// Request is a request the server received.
type Request struct {
	Method   string
	Path     string
	RawQuery string
	Header   http.Header
	Body     []byte
}

type fault struct {
	status int
	code   string
	msg    string
}

type collection struct {
	nextID int
	items  map[string]Item
}

// Server is an httptest.Server backed by in-memory collections.
type Server struct {
	*httptest.Server

	mu          sync.Mutex
	collections map[string]*collection
	files       map[string][]byte
	faults      []fault
	requests    []Request
}

// NewServer starts a server. Callers must Close it.
func NewServer() *Server {
	s := &Server{
		collections: make(map[string]*collection),
		files:       make(map[string][]byte),
	}
	s.Server = httptest.NewServer(s.routes())
	return s
}

func (s *Server) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(s.record, s.inject)

	r.Post("/files/*", s.upload)

	r.Route("/{resource}", func(r chi.Router) {
		r.Get("/", s.one)
		r.Put("/", s.save)
		r.Delete("/", s.delete)
		r.Get("/all", s.all)
		r.Get("/count", s.count)
		r.Get("/{page}/{size}", s.page)
	})

	return r
}

// ResourceURL returns the base URL of the named resource.
func (s *Server) ResourceURL(resource string) string {
	return s.URL + "/" + resource
}

// Seed stores items in the named resource. Items without an id get one.
func (s *Server) Seed(resource string, items ...Item) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c := s.collection(resource)
	for _, item := range items {
		c.put(item)
	}
}

// FailNext makes the next request fail with an HTTP status and a plain text
// body. Queued failures are consumed in order.
func (s *Server) FailNext(status int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.faults = append(s.faults, fault{status: status})
}

// FailNextEnvelope makes the next request answer with an error envelope.
func (s *Server) FailNextEnvelope(code, message string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.faults = append(s.faults, fault{status: http.StatusOK, code: code, msg: message})
}

// Requests returns the requests received so far.
func (s *Server) Requests() []Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Request(nil), s.requests...)
}

// File returns the content stored under an upload identifier.
func (s *Server) File(id string) ([]byte, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	content, ok := s.files[id]
	return content, ok
}

func (s *Server) record(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(r.Body)
		_ = r.Body.Close()
		if err != nil {
			writeError(w, CodeBadRequest, err.Error())
			return
		}
		r.Body = io.NopCloser(bytes.NewReader(body))

		s.mu.Lock()
		s.requests = append(s.requests, Request{
			Method:   r.Method,
			Path:     r.URL.Path,
			RawQuery: r.URL.RawQuery,
			Header:   r.Header.Clone(),
			Body:     body,
		})
		s.mu.Unlock()

		next.ServeHTTP(w, r)
	})
}

func (s *Server) inject(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		var f *fault
		if len(s.faults) > 0 {
			f = &s.faults[0]
			s.faults = s.faults[1:]
		}
		s.mu.Unlock()

		switch {
		case f == nil:
			next.ServeHTTP(w, r)
		case f.code != "":
			writeError(w, f.code, f.msg)
		default:
			http.Error(w, http.StatusText(f.status), f.status)
		}
	})
}

func (s *Server) all(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	items := s.collection(chi.URLParam(r, "resource")).filter(r)
	s.mu.Unlock()

	writeData(w, items)
}

func (s *Server) count(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	n := len(s.collection(chi.URLParam(r, "resource")).filter(r))
	s.mu.Unlock()

	writeData(w, n)
}

func (s *Server) page(w http.ResponseWriter, r *http.Request) {
	page, err1 := strconv.Atoi(chi.URLParam(r, "page"))
	size, err2 := strconv.Atoi(chi.URLParam(r, "size"))
	if err1 != nil || err2 != nil || page < 1 || size < 1 {
		writeError(w, CodeBadRequest, "invalid page or size")
		return
	}

	s.mu.Lock()
	items := s.collection(chi.URLParam(r, "resource")).filter(r)
	s.mu.Unlock()

	start := min((page-1)*size, len(items))
	end := min(start+size, len(items))
	writeData(w, items[start:end])
}

func (s *Server) one(w http.ResponseWriter, r *http.Request) {
	id := r.URL.Query().Get("id")
	if id == "" {
		writeError(w, CodeBadRequest, "invalid ID")
		return
	}

	s.mu.Lock()
	item, ok := s.collection(chi.URLParam(r, "resource")).items[id]
	s.mu.Unlock()

	if !ok {
		writeError(w, CodeNotFound, "record not found")
		return
	}
	writeData(w, item)
}

func (s *Server) save(w http.ResponseWriter, r *http.Request) {
	var item Item
	if err := json.NewDecoder(r.Body).Decode(&item); err != nil {
		writeError(w, CodeBadRequest, err.Error())
		return
	}

	s.mu.Lock()
	saved := s.collection(chi.URLParam(r, "resource")).put(item)
	s.mu.Unlock()

	writeData(w, saved)
}

func (s *Server) delete(w http.ResponseWriter, r *http.Request) {
	id := r.URL.Query().Get("id")
	if id == "" {
		writeError(w, CodeBadRequest, "invalid ID")
		return
	}

	s.mu.Lock()
	c := s.collection(chi.URLParam(r, "resource"))
	_, ok := c.items[id]
	delete(c.items, id)
	s.mu.Unlock()

	writeData(w, ok)
}

func (s *Server) upload(w http.ResponseWriter, r *http.Request) {
	content, err := io.ReadAll(r.Body)
	if err != nil {
		writeError(w, CodeBadRequest, err.Error())
		return
	}

	sum := sha256.Sum256(content)
	digest := hex.EncodeToString(sum[:])

	if claimed := r.Header.Get(headerFileDigest); claimed != "" && !strings.EqualFold(claimed, digest) {
		writeError(w, CodeBadRequest, "digest mismatch")
		return
	}

	id := path.Join("/", digest[:2], digest[2:4], digest+path.Ext(chi.URLParam(r, "*")))

	s.mu.Lock()
	s.files[id] = content
	s.mu.Unlock()

	writeData(w, id)
}

// collection must be called with s.mu held.
func (s *Server) collection(name string) *collection {
	c, ok := s.collections[name]
	if !ok {
		c = &collection{items: make(map[string]Item)}
		s.collections[name] = c
	}
	return c
}

func (c *collection) put(item Item) Item {
	stored := make(Item, len(item)+1)
	for k, v := range item {
		stored[k] = v
	}

	switch id := stored["id"].(type) {
	case nil:
		c.nextID++
		stored["id"] = float64(c.nextID)
	case int:
		stored["id"] = float64(id)
		c.nextID = max(c.nextID, id)
	case float64:
		c.nextID = max(c.nextID, int(id))
	}

	key := fmt.Sprint(stored["id"])
	if existing, ok := c.items[key]; ok {
		merged := make(Item, len(existing)+len(stored))
		for k, v := range existing {
			merged[k] = v
		}
		for k, v := range stored {
			merged[k] = v
		}
		stored = merged
	}
	c.items[key] = stored

	return stored
}

// filter returns the items whose fields equal every query parameter, ordered
// by id.
func (c *collection) filter(r *http.Request) []Item {
	query := r.URL.Query()

	items := make([]Item, 0, len(c.items))
	for _, item := range c.items {
		if matches(item, query) {
			items = append(items, item)
		}
	}

	sort.Slice(items, func(i, j int) bool {
		return idOrder(items[i]) < idOrder(items[j])
	})

	return items
}

func matches(item Item, query map[string][]string) bool {
	for key, values := range query {
		if len(values) == 0 || values[0] == "" {
			continue
		}
		if fmt.Sprint(item[key]) != values[0] {
			return false
		}
	}
	return true
}

func idOrder(item Item) float64 {
	n, _ := item["id"].(float64)
	return n
}

type envelope struct {
	Code    string `json:"c"`
	Message string `json:"m"`
	Data    any    `json:"d"`
}

func writeData(w http.ResponseWriter, data any) {
	writeJSON(w, envelope{Code: CodeOK, Data: data})
}

func writeError(w http.ResponseWriter, code, message string) {
	writeJSON(w, envelope{Code: code, Message: message})
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(v)
}
