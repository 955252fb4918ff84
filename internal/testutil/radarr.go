package testutil

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
)

// RecordedRequest is one request seen by FakeRadarr.
type RecordedRequest struct {
	Method string
	Path   string
	Body   map[string]interface{}
}

type fakeCommand struct {
	id      int64
	name    string
	movieID int64
	polls   int
}

// FakeRadarr is an httptest-backed stand-in for the Radarr API endpoints the hook uses.
type FakeRadarr struct {
	Server *httptest.Server
	APIKey string

	mu       sync.Mutex
	movies   map[int64]map[string]interface{}
	commands map[int64]*fakeCommand
	nextID   int64
	requests []RecordedRequest
	rescans  map[int64]int

	// CommandState decides the state reported for a command. poll is 0 for the
	// dispatch response and n for the n-th GET. Defaults to "queued" then "completed".
	CommandState func(name string, poll int) string

	// WrapInArray makes POST /api/command answer with a one-element array.
	WrapInArray bool

	// OnRescan runs when the n-th RescanMovie for a movie is dispatched.
	// It may mutate the stored movie (for example to flip hasFile).
	OnRescan func(movie map[string]interface{}, n int)

	// FailPath makes "METHOD /path" answer with the given status code.
	FailPath map[string]int

	// PutResponse, when set, replaces the echoed record for PUT /api/movie/{id}.
	PutResponse func(body map[string]interface{}) interface{}
}

// NewFakeRadarr starts a fake Radarr. Close it with t.Cleanup(f.Close).
func NewFakeRadarr(apiKey string) *FakeRadarr {
	f := &FakeRadarr{
		APIKey:   apiKey,
		movies:   make(map[int64]map[string]interface{}),
		commands: make(map[int64]*fakeCommand),
		rescans:  make(map[int64]int),
		FailPath: make(map[string]int),
	}
	f.Server = httptest.NewServer(http.HandlerFunc(f.handle))
	return f
}

// URL returns the server base URL (no /api suffix).
func (f *FakeRadarr) URL() string { return f.Server.URL }

// Close shuts the server down.
func (f *FakeRadarr) Close() { f.Server.Close() }

// AddMovie stores a movie record. The map is copied.
func (f *FakeRadarr) AddMovie(id int64, record map[string]interface{}) {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := make(map[string]interface{}, len(record)+1)
	for k, v := range record {
		cp[k] = v
	}
	cp["id"] = id
	f.movies[id] = cp
}

// Movie returns a copy of the stored movie record.
func (f *FakeRadarr) Movie(id int64) map[string]interface{} {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := make(map[string]interface{}, len(f.movies[id]))
	for k, v := range f.movies[id] {
		cp[k] = v
	}
	return cp
}

// Requests returns every recorded request in order.
func (f *FakeRadarr) Requests() []RecordedRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]RecordedRequest, len(f.requests))
	copy(out, f.requests)
	return out
}

// CountRequests counts requests matching method and a path prefix.
func (f *FakeRadarr) CountRequests(method, pathPrefix string) int {
	n := 0
	for _, r := range f.Requests() {
		if r.Method == method && strings.HasPrefix(r.Path, pathPrefix) {
			n++
		}
	}
	return n
}

// Commands returns the names of dispatched commands in order.
func (f *FakeRadarr) Commands() []string {
	var names []string
	for _, r := range f.Requests() {
		if r.Method == http.MethodPost && r.Path == "/api/command" {
			name, _ := r.Body["name"].(string)
			names = append(names, name)
		}
	}
	return names
}

// Puts returns the bodies of every PUT /api/movie request.
func (f *FakeRadarr) Puts() []map[string]interface{} {
	var puts []map[string]interface{}
	for _, r := range f.Requests() {
		if r.Method == http.MethodPut && strings.HasPrefix(r.Path, "/api/movie/") {
			puts = append(puts, r.Body)
		}
	}
	return puts
}

func (f *FakeRadarr) state(cmd *fakeCommand) string {
	if f.CommandState != nil {
		return f.CommandState(cmd.name, cmd.polls)
	}
	if cmd.polls == 0 {
		return "queued"
	}
	return "completed"
}

func (f *FakeRadarr) handle(w http.ResponseWriter, r *http.Request) {
	var body map[string]interface{}
	if data, _ := io.ReadAll(r.Body); len(data) > 0 {
		_ = json.Unmarshal(data, &body)
	}

	f.mu.Lock()
	f.requests = append(f.requests, RecordedRequest{Method: r.Method, Path: r.URL.Path, Body: body})
	status, fail := f.FailPath[r.Method+" "+r.URL.Path]
	f.mu.Unlock()

	if r.Header.Get("X-Api-Key") != f.APIKey {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "Unauthorized"})
		return
	}
	if fail {
		writeJSON(w, status, map[string]string{"message": "injected failure"})
		return
	}

	switch {
	case r.Method == http.MethodPost && r.URL.Path == "/api/command":
		f.handleDispatch(w, body)
	case r.Method == http.MethodGet && strings.HasPrefix(r.URL.Path, "/api/command/"):
		f.handleGetCommand(w, strings.TrimPrefix(r.URL.Path, "/api/command/"))
	case r.Method == http.MethodGet && strings.HasPrefix(r.URL.Path, "/api/movie/"):
		f.handleGetMovie(w, strings.TrimPrefix(r.URL.Path, "/api/movie/"))
	case r.Method == http.MethodPut && strings.HasPrefix(r.URL.Path, "/api/movie/"):
		f.handlePutMovie(w, strings.TrimPrefix(r.URL.Path, "/api/movie/"), body)
	default:
		writeJSON(w, http.StatusNotFound, map[string]string{"message": "NotFound"})
	}
}

func (f *FakeRadarr) handleDispatch(w http.ResponseWriter, body map[string]interface{}) {
	f.mu.Lock()
	f.nextID++
	cmd := &fakeCommand{id: f.nextID}
	cmd.name, _ = body["name"].(string)
	if v, ok := body["movieId"].(float64); ok {
		cmd.movieID = int64(v)
	}
	f.commands[cmd.id] = cmd

	if cmd.name == "RescanMovie" {
		f.rescans[cmd.movieID]++
		if f.OnRescan != nil {
			if movie, ok := f.movies[cmd.movieID]; ok {
				f.OnRescan(movie, f.rescans[cmd.movieID])
			}
		}
	}
	resp := map[string]interface{}{"id": cmd.id, "name": cmd.name, "state": f.state(cmd)}
	wrap := f.WrapInArray
	f.mu.Unlock()

	if wrap {
		writeJSON(w, http.StatusCreated, []interface{}{resp})
		return
	}
	writeJSON(w, http.StatusCreated, resp)
}

func (f *FakeRadarr) handleGetCommand(w http.ResponseWriter, idStr string) {
	id, _ := strconv.ParseInt(idStr, 10, 64)
	f.mu.Lock()
	cmd, ok := f.commands[id]
	if ok {
		cmd.polls++
	}
	var resp map[string]interface{}
	if ok {
		resp = map[string]interface{}{"id": cmd.id, "name": cmd.name, "state": f.state(cmd)}
	}
	f.mu.Unlock()

	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"message": "NotFound"})
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (f *FakeRadarr) handleGetMovie(w http.ResponseWriter, idStr string) {
	id, _ := strconv.ParseInt(idStr, 10, 64)
	f.mu.Lock()
	movie, ok := f.movies[id]
	var data []byte
	if ok {
		data, _ = json.Marshal(movie)
	}
	f.mu.Unlock()

	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"message": "NotFound"})
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

func (f *FakeRadarr) handlePutMovie(w http.ResponseWriter, idStr string, body map[string]interface{}) {
	id, _ := strconv.ParseInt(idStr, 10, 64)
	f.mu.Lock()
	_, ok := f.movies[id]
	if ok {
		f.movies[id] = body
	}
	override := f.PutResponse
	f.mu.Unlock()

	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"message": "NotFound"})
		return
	}
	if override != nil {
		writeJSON(w, http.StatusAccepted, override(body))
		return
	}
	writeJSON(w, http.StatusAccepted, body)
}

func writeJSON(w http.ResponseWriter, code int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(data)
}
