// Package testutil provides testing utilities for stac-siphon.
package testutil

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"time"
)

// MockResponse defines the behavior for a mock endpoint response.
type MockResponse struct {
	StatusCode int
	Body       string
	Headers    map[string]string
	Delay      time.Duration
}

// RecordedRequest is a request received by the mock catalog.
type RecordedRequest struct {
	Method string
	Path   string
	Query  string
	Body   []byte
}

// ID returns the "id" member of a JSON request body, or "".
func (r RecordedRequest) ID() string {
	var doc struct {
		ID string `json:"id"`
	}
	_ = json.Unmarshal(r.Body, &doc)
	return doc.ID
}

// MockCatalog is a configurable STAC API used as both source and destination
// in tests.
//
// Without explicit configuration it accepts collection creation at
// POST /collections and item creation at POST /collections/{id}/items with
// 201 Created, and answers every other request with 404.
type MockCatalog struct {
	server   *httptest.Server
	mu       sync.RWMutex
	handlers map[string]func(w http.ResponseWriter, r *http.Request)

	itemStatus       map[string]int
	collectionStatus int
	requests         []RecordedRequest
}

// NewMockCatalog creates and starts a new mock catalog.
func NewMockCatalog() *MockCatalog {
	mock := &MockCatalog{
		handlers:         make(map[string]func(w http.ResponseWriter, r *http.Request)),
		itemStatus:       make(map[string]int),
		collectionStatus: http.StatusCreated,
	}

	mock.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)

		mock.mu.Lock()
		mock.requests = append(mock.requests, RecordedRequest{
			Method: r.Method,
			Path:   r.URL.Path,
			Query:  r.URL.RawQuery,
			Body:   body,
		})
		handler, exists := mock.handlers[r.Method+" "+r.URL.Path]
		mock.mu.Unlock()

		if exists {
			handler(w, r)
			return
		}

		mock.defaultHandler(w, r, body)
	}))

	return mock
}

// URL returns the mock server URL.
func (m *MockCatalog) URL() string {
	return m.server.URL
}

// Close shuts down the mock server.
func (m *MockCatalog) Close() {
	m.server.Close()
}

// Reset forgets all recorded requests.
func (m *MockCatalog) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requests = nil
}

// SetHandler sets a custom handler for a method and path.
func (m *MockCatalog) SetHandler(method, path string, handler func(w http.ResponseWriter, r *http.Request)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handlers[method+" "+path] = handler
}

// SetResponse configures a fixed response for a method and path.
func (m *MockCatalog) SetResponse(method, path string, resp MockResponse) {
	m.SetHandler(method, path, func(w http.ResponseWriter, r *http.Request) {
		if resp.Delay > 0 {
			time.Sleep(resp.Delay)
		}

		for key, value := range resp.Headers {
			w.Header().Set(key, value)
		}

		w.WriteHeader(resp.StatusCode)
		if resp.Body != "" {
			w.Write([]byte(resp.Body))
		}
	})
}

// SetPage serves body as a GeoJSON page at GET path.
func (m *MockCatalog) SetPage(path, body string) {
	m.SetResponse(http.MethodGet, path, NewPageResponse(body))
}

// SetCollectionStatus sets the status returned for POST /collections.
func (m *MockCatalog) SetCollectionStatus(status int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.collectionStatus = status
}

// FailItem makes item creation for id answer with status.
func (m *MockCatalog) FailItem(id string, status int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.itemStatus[id] = status
}

// AcceptItem undoes FailItem for id.
func (m *MockCatalog) AcceptItem(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.itemStatus, id)
}

// Requests returns a copy of all recorded requests in arrival order.
func (m *MockCatalog) Requests() []RecordedRequest {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]RecordedRequest, len(m.requests))
	copy(out, m.requests)
	return out
}

// Posts returns the recorded POST requests in arrival order.
func (m *MockCatalog) Posts() []RecordedRequest {
	var out []RecordedRequest
	for _, r := range m.Requests() {
		if r.Method == http.MethodPost {
			out = append(out, r)
		}
	}
	return out
}

// WrittenItemIDs returns the ids of items POSTed to any items endpoint, in
// arrival order, whether or not the write succeeded.
func (m *MockCatalog) WrittenItemIDs() []string {
	var ids []string
	for _, r := range m.Posts() {
		if strings.HasSuffix(r.Path, "/items") {
			ids = append(ids, r.ID())
		}
	}
	return ids
}

// GetRequestCount returns the number of requests made to the server.
func (m *MockCatalog) GetRequestCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.requests)
}

func (m *MockCatalog) defaultHandler(w http.ResponseWriter, r *http.Request, body []byte) {
	w.Header().Set("Content-Type", "application/json")

	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{"code":"NotFoundError","description":"not found"}`))
		return
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	switch {
	case r.URL.Path == "/collections":
		w.WriteHeader(m.collectionStatus)
		w.Write(body)
	case strings.HasPrefix(r.URL.Path, "/collections/") && strings.HasSuffix(r.URL.Path, "/items"):
		id := RecordedRequest{Body: body}.ID()
		if status, ok := m.itemStatus[id]; ok {
			w.WriteHeader(status)
			fmt.Fprintf(w, `{"code":"ItemError","description":"item %s rejected"}`, id)
			return
		}
		w.WriteHeader(http.StatusCreated)
		w.Write(body)
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

// NewPageResponse creates a 200 OK GeoJSON response.
func NewPageResponse(body string) MockResponse {
	return MockResponse{
		StatusCode: http.StatusOK,
		Body:       body,
		Headers: map[string]string{
			"Content-Type": "application/geo+json",
		},
	}
}

// NewServerErrorResponse creates a 500 Internal Server Error response.
func NewServerErrorResponse() MockResponse {
	return MockResponse{
		StatusCode: http.StatusInternalServerError,
		Body:       `{"code":"InternalError","description":"internal server error"}`,
		Headers: map[string]string{
			"Content-Type": "application/json",
		},
	}
}

// PageJSON renders a feature collection holding one minimal item per id and,
// if next is not empty, a next link to it.
func PageJSON(ids []string, next string) string {
	features := make([]map[string]any, len(ids))
	for i, id := range ids {
		features[i] = map[string]any{
			"type":       "Feature",
			"id":         id,
			"geometry":   nil,
			"properties": map[string]any{},
		}
	}

	links := []map[string]string{}
	if next != "" {
		links = append(links, map[string]string{"rel": "next", "href": next})
	}

	data, _ := json.Marshal(map[string]any{
		"type":     "FeatureCollection",
		"features": features,
		"links":    links,
	})
	return string(data)
}
