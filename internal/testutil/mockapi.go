// Package testutil provides a configurable mock campaign API server for
// tests and for running the binary in mock mode.
package testutil

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
)

// Campaign mirrors the remote API's campaign payload.
type Campaign struct {
	ID          string  `json:"id"`
	Name        string  `json:"name"`
	Status      string  `json:"status"`
	Impressions int64   `json:"impressions"`
	Clicks      int64   `json:"clicks"`
	Spend       float64 `json:"spend"`
}

// MockAPI is a scriptable campaign API server. By default it serves a
// token endpoint, a paginated campaign list, and per-campaign sync
// triggers; individual paths can be overridden or given scripted status
// sequences.
type MockAPI struct {
	server *httptest.Server

	mu        sync.Mutex
	campaigns []Campaign
	handlers  map[string]http.HandlerFunc
	scripts   map[string][]int
	expiresIn int

	// Tracking
	requestCount int
	authCount    int
	syncedIDs    []string
	pathCounts   map[string]int
}

// NewMockAPI creates a mock server seeded with the given campaigns.
func NewMockAPI(campaigns []Campaign) *MockAPI {
	m := &MockAPI{
		campaigns:  campaigns,
		handlers:   make(map[string]http.HandlerFunc),
		scripts:    make(map[string][]int),
		expiresIn:  3600,
		pathCounts: make(map[string]int),
	}

	m.server = httptest.NewServer(http.HandlerFunc(m.route))
	return m
}

// URL returns the mock server base URL.
func (m *MockAPI) URL() string {
	return m.server.URL
}

// Close shuts down the mock server.
func (m *MockAPI) Close() {
	m.server.Close()
}

// SetExpiresIn overrides the token lifetime reported by the auth endpoint.
// A negative value omits expires_in from the response entirely.
func (m *MockAPI) SetExpiresIn(seconds int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.expiresIn = seconds
}

// SetHandler replaces the handler for a specific path.
func (m *MockAPI) SetHandler(path string, handler http.HandlerFunc) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handlers[path] = handler
}

// ScriptStatuses makes a path answer with the given status codes, one per
// request, before falling through to the default behavior.
func (m *MockAPI) ScriptStatuses(path string, statuses ...int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.scripts[path] = append(m.scripts[path], statuses...)
}

// RequestCount returns the total number of requests served.
func (m *MockAPI) RequestCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.requestCount
}

// PathCount returns how many requests hit the given path.
func (m *MockAPI) PathCount(path string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.pathCounts[path]
}

// AuthCount returns the number of token exchanges performed.
func (m *MockAPI) AuthCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.authCount
}

// SyncedIDs returns the campaign IDs whose sync trigger was called.
func (m *MockAPI) SyncedIDs() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.syncedIDs...)
}

func (m *MockAPI) route(w http.ResponseWriter, r *http.Request) {
	m.mu.Lock()
	m.requestCount++
	m.pathCounts[r.URL.Path]++

	if statuses := m.scripts[r.URL.Path]; len(statuses) > 0 {
		status := statuses[0]
		m.scripts[r.URL.Path] = statuses[1:]
		m.mu.Unlock()
		w.WriteHeader(status)
		return
	}

	handler := m.handlers[r.URL.Path]
	m.mu.Unlock()

	if handler != nil {
		handler(w, r)
		return
	}

	switch {
	case r.URL.Path == "/auth/token":
		m.handleToken(w, r)
	case r.URL.Path == "/campaigns":
		m.handleCampaigns(w, r)
	case strings.HasPrefix(r.URL.Path, "/campaigns/") && strings.HasSuffix(r.URL.Path, "/sync"):
		m.handleSync(w, r)
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func (m *MockAPI) handleToken(w http.ResponseWriter, r *http.Request) {
	if _, _, ok := r.BasicAuth(); !ok {
		w.WriteHeader(http.StatusUnauthorized)
		return
	}

	m.mu.Lock()
	m.authCount++
	token := fmt.Sprintf("mock-token-%d", m.authCount)
	expiresIn := m.expiresIn
	m.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	if expiresIn < 0 {
		fmt.Fprintf(w, `{"access_token":%q}`, token)
		return
	}
	fmt.Fprintf(w, `{"access_token":%q,"expires_in":%d}`, token, expiresIn)
}

func (m *MockAPI) handleCampaigns(w http.ResponseWriter, r *http.Request) {
	if !bearerPresent(r) {
		w.WriteHeader(http.StatusUnauthorized)
		return
	}

	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = 50
	}

	m.mu.Lock()
	total := len(m.campaigns)
	start := (page - 1) * limit
	end := start + limit
	if start > total {
		start = total
	}
	if end > total {
		end = total
	}
	records := append([]Campaign(nil), m.campaigns[start:end]...)
	m.mu.Unlock()

	resp := map[string]any{
		"data": records,
		"pagination": map[string]any{
			"page":     page,
			"limit":    limit,
			"has_more": end < total,
		},
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}

func (m *MockAPI) handleSync(w http.ResponseWriter, r *http.Request) {
	if !bearerPresent(r) {
		w.WriteHeader(http.StatusUnauthorized)
		return
	}

	id := strings.TrimSuffix(strings.TrimPrefix(r.URL.Path, "/campaigns/"), "/sync")

	m.mu.Lock()
	m.syncedIDs = append(m.syncedIDs, id)
	m.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	fmt.Fprintf(w, `{"campaign_id":%q,"status":"queued"}`, id)
}

func bearerPresent(r *http.Request) bool {
	return strings.HasPrefix(r.Header.Get("Authorization"), "Bearer ")
}

// SeedCampaigns builds n deterministic campaigns for tests and mock mode.
func SeedCampaigns(n int) []Campaign {
	campaigns := make([]Campaign, n)
	for i := range campaigns {
		campaigns[i] = Campaign{
			ID:          fmt.Sprintf("c-%04d", i+1),
			Name:        fmt.Sprintf("Campaign %d", i+1),
			Status:      "active",
			Impressions: int64(1000 * (i + 1)),
			Clicks:      int64(10 * (i + 1)),
			Spend:       float64(i+1) * 2.5,
		}
	}
	return campaigns
}
