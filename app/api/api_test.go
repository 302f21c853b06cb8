package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/Fiszcz/OLX-flats-notificator/app/database"
	"github.com/Fiszcz/OLX-flats-notificator/app/subscription"
	"github.com/Fiszcz/OLX-flats-notificator/app/tasks"
)

const testAPIKey = "secret"

type mockScheduler struct {
	polls []string
	err   error
}

func (m *mockScheduler) Start() {}
func (m *mockScheduler) Stop()  {}

func (m *mockScheduler) EnqueueTask(task tasks.TaskInterface) error {
	return m.err
}

func (m *mockScheduler) EnqueuePoll(name string) error {
	if m.err != nil {
		return m.err
	}
	m.polls = append(m.polls, name)
	return nil
}

type testEnv struct {
	router      *gin.Engine
	scheduler   *mockScheduler
	subRepo     database.SubscriptionRepository
	listingRepo database.ListingRepository
	outboxRepo  database.OutboxRepository
}

type mockCache struct {
	status string
}

func (m *mockCache) Health(ctx context.Context) map[string]interface{} {
	return map[string]interface{}{"status": m.status, "type": "redis"}
}

func newTestEnv(t *testing.T, apiKey string) *testEnv {
	t.Helper()
	return newTestEnvWithCache(t, apiKey, nil)
}

func newTestEnvWithCache(t *testing.T, apiKey string, cache HealthChecker) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db, err := database.NewConnection(database.DriverSQLite, ":memory:")
	if err != nil {
		t.Fatalf("Failed to open database: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	if _, _, err := database.RunMigrations(db); err != nil {
		t.Fatalf("Failed to run migrations: %v", err)
	}

	dir := t.TempDir()
	files := map[string]string{
		"mokotow": `url: "https://www.olx.pl/nieruchomosci/mieszkania/wynajem/mokotow/"`,
		"wola":    "url: \"https://www.olx.pl/nieruchomosci/mieszkania/wynajem/wola/\"\nsettings:\n  enabled: false\n",
	}
	for name, content := range files {
		if err := os.WriteFile(filepath.Join(dir, name+".yml"), []byte(content), 0644); err != nil {
			t.Fatal(err)
		}
	}
	configCache := subscription.NewConfigCache(dir)
	if err := configCache.Run(); err != nil {
		t.Fatalf("Failed to load configs: %v", err)
	}

	env := &testEnv{
		scheduler:   &mockScheduler{},
		subRepo:     database.NewSubscriptionRepository(db),
		listingRepo: database.NewListingRepository(db),
		outboxRepo:  database.NewOutboxRepository(db),
	}
	handler := NewHandler(configCache, env.subRepo, env.listingRepo, env.outboxRepo, env.scheduler, cache)
	env.router = NewServer(handler, apiKey)
	return env
}

func (e *testEnv) do(t *testing.T, method, path string, withKey bool) (*httptest.ResponseRecorder, map[string]interface{}) {
	t.Helper()
	req := httptest.NewRequest(method, path, nil)
	if withKey {
		req.Header.Set("X-API-Key", testAPIKey)
	}
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)

	var body map[string]interface{}
	if strings.HasPrefix(w.Header().Get("Content-Type"), "application/json") {
		if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
			t.Fatalf("Failed to decode response %q: %v", w.Body.String(), err)
		}
	}
	return w, body
}

func TestGetHealth(t *testing.T) {
	env := newTestEnv(t, "")
	env.subRepo.UpsertSubscription("mokotow", "https://www.olx.pl/")

	w, body := env.do(t, "GET", "/health", false)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", w.Code)
	}
	if body["loaded_configurations"] != float64(2) {
		t.Errorf("Expected 2 loaded configurations, got %v", body["loaded_configurations"])
	}
	if body["subscriptions"] != float64(1) {
		t.Errorf("Expected 1 subscription, got %v", body["subscriptions"])
	}
}

func TestGetHealthReportsCache(t *testing.T) {
	_, body := newTestEnv(t, "").do(t, "GET", "/health", false)
	if _, ok := body["cache"]; ok {
		t.Errorf("Expected no cache section without a cache, got %v", body["cache"])
	}

	env := newTestEnvWithCache(t, "", &mockCache{status: "unhealthy"})
	w, body := env.do(t, "GET", "/health", false)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", w.Code)
	}
	cache, ok := body["cache"].(map[string]interface{})
	if !ok {
		t.Fatalf("Expected cache section, got %v", body["cache"])
	}
	if cache["status"] != "unhealthy" {
		t.Errorf("Expected cache status 'unhealthy', got %v", cache["status"])
	}
}

func TestAPIDisabledWithoutKey(t *testing.T) {
	env := newTestEnv(t, "")

	w, _ := env.do(t, "GET", "/api/subscriptions", false)
	if w.Code != http.StatusNotFound {
		t.Errorf("Expected 404 with API disabled, got %d", w.Code)
	}
}

func TestAuthMiddleware(t *testing.T) {
	env := newTestEnv(t, testAPIKey)

	tests := []struct {
		name     string
		header   string
		value    string
		expected int
	}{
		{"missing key", "", "", http.StatusUnauthorized},
		{"wrong key", "X-API-Key", "nope", http.StatusUnauthorized},
		{"header key", "X-API-Key", testAPIKey, http.StatusOK},
		{"bearer key", "Authorization", "Bearer " + testAPIKey, http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("GET", "/api/subscriptions", nil)
			if tt.header != "" {
				req.Header.Set(tt.header, tt.value)
			}
			w := httptest.NewRecorder()
			env.router.ServeHTTP(w, req)

			if w.Code != tt.expected {
				t.Errorf("Expected status %d, got %d", tt.expected, w.Code)
			}
		})
	}
}

func TestAPIListSubscriptions(t *testing.T) {
	env := newTestEnv(t, testAPIKey)

	w, body := env.do(t, "GET", "/api/subscriptions", true)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", w.Code)
	}
	if body["total"] != float64(2) {
		t.Errorf("Expected 2 subscriptions, got %v", body["total"])
	}

	subs := body["subscriptions"].([]interface{})
	first := subs[0].(map[string]interface{})
	if first["name"] != "mokotow" || first["enabled"] != true {
		t.Errorf("Expected enabled mokotow first, got %v", first)
	}
	if first["check_interval"] != "10m0s" {
		t.Errorf("Expected check interval '10m0s', got %v", first["check_interval"])
	}
}

func TestAPIGetSubscriptionListings(t *testing.T) {
	env := newTestEnv(t, testAPIKey)

	price := int64(250000)
	for _, l := range []database.Listing{
		{Subscription: "mokotow", ListingID: "https://www.olx.pl/d/oferta/a", Title: "A", PriceCents: &price, Notified: true},
		{Subscription: "mokotow", ListingID: "https://www.olx.pl/d/oferta/b", Title: "B", IsWorse: true, Reasons: []string{"rent 1500 zł exceeds 1000 zł"}},
	} {
		if err := env.listingRepo.UpsertListing(l); err != nil {
			t.Fatalf("UpsertListing failed: %v", err)
		}
	}

	w, body := env.do(t, "GET", "/api/subscriptions/mokotow/listings?limit=10", true)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", w.Code)
	}

	listings := body["listings"].([]interface{})
	if len(listings) != 2 {
		t.Errorf("Expected 2 listings, got %d", len(listings))
	}

	stats := body["stats"].(map[string]interface{})
	if stats["total"] != float64(2) || stats["worse"] != float64(1) || stats["notified"] != float64(1) {
		t.Errorf("Unexpected stats: %v", stats)
	}

	if w, _ := env.do(t, "GET", "/api/subscriptions/unknown/listings", true); w.Code != http.StatusNotFound {
		t.Errorf("Expected 404 for unknown subscription, got %d", w.Code)
	}
	if w, _ := env.do(t, "GET", "/api/subscriptions/mokotow/listings?limit=abc", true); w.Code != http.StatusBadRequest {
		t.Errorf("Expected 400 for invalid limit, got %d", w.Code)
	}
}

func TestAPIPollSubscription(t *testing.T) {
	env := newTestEnv(t, testAPIKey)

	w, _ := env.do(t, "POST", "/api/subscriptions/mokotow/poll", true)
	if w.Code != http.StatusAccepted {
		t.Fatalf("Expected status 202, got %d", w.Code)
	}
	if len(env.scheduler.polls) != 1 || env.scheduler.polls[0] != "mokotow" {
		t.Errorf("Expected poll of mokotow, got %v", env.scheduler.polls)
	}

	if w, _ := env.do(t, "POST", "/api/subscriptions/wola/poll", true); w.Code != http.StatusConflict {
		t.Errorf("Expected 409 for disabled subscription, got %d", w.Code)
	}
	if w, _ := env.do(t, "POST", "/api/subscriptions/unknown/poll", true); w.Code != http.StatusNotFound {
		t.Errorf("Expected 404 for unknown subscription, got %d", w.Code)
	}

	env.scheduler.err = errors.New("task queue is full")
	if w, _ := env.do(t, "POST", "/api/subscriptions/mokotow/poll", true); w.Code != http.StatusInternalServerError {
		t.Errorf("Expected 500 when the queue is full, got %d", w.Code)
	}
}

func TestAPIOutbox(t *testing.T) {
	env := newTestEnv(t, testAPIKey)

	id, err := env.outboxRepo.EnqueueMessage(database.OutboxMessage{
		Subscription: "mokotow",
		BatchTitle:   "1 listing",
		Subject:      "[10:15] - Flat A",
		HTML:         "<p>Flat A</p>",
		ListingIDs:   []string{"https://www.olx.pl/d/oferta/a"},
	})
	if err != nil {
		t.Fatalf("EnqueueMessage failed: %v", err)
	}

	w, body := env.do(t, "GET", "/api/outbox", true)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", w.Code)
	}
	if body["total"] != float64(1) {
		t.Errorf("Expected 1 pending message, got %v", body["total"])
	}

	ackPath := "/api/outbox/" + strconv.FormatInt(id, 10) + "/ack"
	if w, _ := env.do(t, "POST", ackPath, true); w.Code != http.StatusOK {
		t.Errorf("Expected 200 on ack, got %d", w.Code)
	}
	if w, _ := env.do(t, "POST", ackPath, true); w.Code != http.StatusNotFound {
		t.Errorf("Expected 404 on second ack, got %d", w.Code)
	}
	if w, _ := env.do(t, "POST", "/api/outbox/abc/ack", true); w.Code != http.StatusBadRequest {
		t.Errorf("Expected 400 for invalid id, got %d", w.Code)
	}

	_, body = env.do(t, "GET", "/api/outbox", true)
	if body["total"] != float64(0) {
		t.Errorf("Expected no pending messages after ack, got %v", body["total"])
	}
}
