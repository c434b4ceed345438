package server

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/threadforge/threadforge/internal/analytics"
	"github.com/threadforge/threadforge/internal/billing"
	"github.com/threadforge/threadforge/internal/db/models"
	"github.com/threadforge/threadforge/internal/generate"
	"github.com/threadforge/threadforge/internal/imagegen"
	"github.com/threadforge/threadforge/internal/quota"
	"github.com/threadforge/threadforge/internal/session"
	"github.com/threadforge/threadforge/internal/social"
	"github.com/threadforge/threadforge/internal/social/sidechannel"
	"gorm.io/gorm"
)

// testEnv wires the full application against fake upstreams.
type testEnv struct {
	srv    *httptest.Server
	client *http.Client
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	database, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{})
	if err != nil {
		t.Fatalf("failed to open db: %v", err)
	}
	if err := database.AutoMigrate(
		&models.UsageCounter{},
		&models.OAuthSession{},
		&models.AnalyticsProfile{},
		&models.PostedArtifact{},
	); err != nil {
		t.Fatalf("failed to migrate: %v", err)
	}

	// Billing: pro@example.com has a $12 subscription, everyone else is free.
	billingMux := http.NewServeMux()
	billingMux.HandleFunc("/customers", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("email") == "pro@example.com" {
			fmt.Fprint(w, `{"data":[{"id":"cus_1"}]}`)
			return
		}
		fmt.Fprint(w, `{"data":[]}`)
	})
	billingMux.HandleFunc("/subscriptions", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"data":[{"id":"sub_1","items":{"data":[{"price":{"unit_amount":1200}}]}}]}`)
	})
	billingSrv := httptest.NewServer(billingMux)
	t.Cleanup(billingSrv.Close)

	genSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"candidates":[{"content":{"parts":[{"text":"1/ Hook\n2/ Value\n3/ CTA"}]}}]}`)
	}))
	t.Cleanup(genSrv.Close)

	oauthStore := sidechannel.NewStore(database, time.Minute)
	sessions := session.NewManager("test-secret", func() *social.Connector {
		return social.NewConnector(social.Options{
			ConsumerKey:    "ck",
			ConsumerSecret: "cs",
			CallbackURL:    "http://localhost/auth/x/callback",
			Store:          oauthStore,
		})
	})

	router := NewRouter(Deps{
		Sessions: sessions,
		Billing: billing.NewClient(billing.Options{
			BaseURL:   billingSrv.URL,
			SecretKey: "sk_test",
			Timeout:   2 * time.Second,
		}),
		Gate:                 quota.NewGate(database),
		Generator:            generate.NewClient(genSrv.URL, "key", []string{"flash"}, 2*time.Second),
		Images:               imagegen.NewClient("http://unused", "key", time.Second),
		Analytics:            analytics.NewStore(database),
		FreeDailyLimit:       3,
		CarouselMonthlyLimit: 30,
	})

	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)

	jar, err := cookiejar.New(nil)
	if err != nil {
		t.Fatalf("cookie jar: %v", err)
	}
	return &testEnv{srv: srv, client: &http.Client{Jar: jar}}
}

func (e *testEnv) postJSON(t *testing.T, path string, payload interface{}) (*http.Response, map[string]interface{}) {
	t.Helper()
	body, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	resp, err := e.client.Post(e.srv.URL+path, "application/json", bytes.NewReader(body))
	if err != nil {
		t.Fatalf("POST %s: %v", path, err)
	}
	defer resp.Body.Close()

	var parsed map[string]interface{}
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		t.Fatalf("decode %s response: %v", path, err)
	}
	return resp, parsed
}

func (e *testEnv) getJSON(t *testing.T, path string) (*http.Response, map[string]interface{}) {
	t.Helper()
	resp, err := e.client.Get(e.srv.URL + path)
	if err != nil {
		t.Fatalf("GET %s: %v", path, err)
	}
	defer resp.Body.Close()

	var parsed map[string]interface{}
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		t.Fatalf("decode %s response: %v", path, err)
	}
	return resp, parsed
}

func TestFreeIdentityQuotaLifecycle(t *testing.T) {
	e := newTestEnv(t)

	resp, me := e.getJSON(t, "/api/me")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("/api/me status = %d", resp.StatusCode)
	}
	if me["tier"] != "free" {
		t.Fatalf("blank identity tier = %v, want free", me["tier"])
	}

	gen := map[string]interface{}{"platform": "X Thread", "topic": "Go testing", "tone": "Casual"}
	for i, wantRemaining := range []float64{2, 1, 0} {
		resp, body := e.postJSON(t, "/api/generate", gen)
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("generation %d status = %d (%v)", i+1, resp.StatusCode, body)
		}
		if body["remaining"] != wantRemaining {
			t.Fatalf("generation %d remaining = %v, want %v", i+1, body["remaining"], wantRemaining)
		}
		if body["content"] == "" {
			t.Fatalf("generation %d returned empty content", i+1)
		}
	}

	resp, body := e.postJSON(t, "/api/generate", gen)
	if resp.StatusCode != http.StatusTooManyRequests {
		t.Fatalf("fourth generation status = %d, want 429", resp.StatusCode)
	}
	if body["error"] != "limit_reached" {
		t.Fatalf("fourth generation error = %v, want limit_reached", body["error"])
	}
}

func TestProIdentityIsUnlimitedWithoutCarousel(t *testing.T) {
	e := newTestEnv(t)

	resp, view := e.postJSON(t, "/api/identity", map[string]string{"email": "pro@example.com"})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("/api/identity status = %d", resp.StatusCode)
	}
	if view["tier"] != "pro" {
		t.Fatalf("tier = %v, want pro", view["tier"])
	}
	if view["remaining_today"] != float64(-1) {
		t.Fatalf("remaining = %v, want -1", view["remaining_today"])
	}
	platforms, _ := view["platforms"].([]interface{})
	for _, p := range platforms {
		if p == "Instagram Carousel" {
			t.Fatal("pro tier must not see the carousel platform")
		}
	}

	// Well past the free limit.
	gen := map[string]interface{}{"platform": "X Thread", "topic": "Scaling", "tone": "Professional"}
	for i := 0; i < 5; i++ {
		if resp, _ := e.postJSON(t, "/api/generate", gen); resp.StatusCode != http.StatusOK {
			t.Fatalf("pro generation %d status = %d", i+1, resp.StatusCode)
		}
	}

	// Carousel stays gated behind the visual pack.
	carousel := map[string]interface{}{"topic": "Scaling", "tone": "Professional"}
	resp, body := e.postJSON(t, "/api/carousel", carousel)
	if resp.StatusCode != http.StatusForbidden || body["error"] != "tier_required" {
		t.Fatalf("carousel for pro = %d %v, want 403 tier_required", resp.StatusCode, body)
	}
}

func TestGenerateValidation(t *testing.T) {
	e := newTestEnv(t)

	resp, body := e.postJSON(t, "/api/generate", map[string]interface{}{"platform": "X Thread"})
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("missing fields status = %d (%v)", resp.StatusCode, body)
	}
}

func TestCarouselPlatformBlockedForFree(t *testing.T) {
	e := newTestEnv(t)

	gen := map[string]interface{}{"platform": "Instagram Carousel", "topic": "Gym", "tone": "Casual"}
	resp, body := e.postJSON(t, "/api/generate", gen)
	if resp.StatusCode != http.StatusForbidden || body["error"] != "tier_required" {
		t.Fatalf("carousel generation for free = %d %v, want 403 tier_required", resp.StatusCode, body)
	}
}

func TestTemplatesVisibilityFollowsTier(t *testing.T) {
	e := newTestEnv(t)

	_, free := e.getJSON(t, "/api/templates")
	freeList, _ := free["templates"].([]interface{})

	e.postJSON(t, "/api/identity", map[string]string{"email": "pro@example.com"})
	_, pro := e.getJSON(t, "/api/templates")
	proList, _ := pro["templates"].([]interface{})

	if len(proList) <= len(freeList) {
		t.Fatalf("pro should see more templates: free=%d pro=%d", len(freeList), len(proList))
	}
}

func TestFillTemplateEndpoint(t *testing.T) {
	e := newTestEnv(t)

	resp, body := e.postJSON(t, "/api/templates/saas_launch/fill", map[string]interface{}{
		"values": map[string]string{"product_name": "ThreadForge"},
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("fill status = %d (%v)", resp.StatusCode, body)
	}
	missing, _ := body["missing"].([]interface{})
	if len(missing) == 0 {
		t.Fatal("partial fill should report missing placeholders")
	}

	resp, _ = e.postJSON(t, "/api/templates/nope/fill", map[string]interface{}{
		"values": map[string]string{},
	})
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("unknown template status = %d, want 404", resp.StatusCode)
	}

	// Pro template is refused for the free tier.
	resp, body = e.postJSON(t, "/api/templates/saas_milestone/fill", map[string]interface{}{
		"values": map[string]string{},
	})
	if resp.StatusCode != http.StatusForbidden || body["error"] != "tier_required" {
		t.Fatalf("pro template for free = %d %v, want 403 tier_required", resp.StatusCode, body)
	}
}

func TestPublishRequiresConnection(t *testing.T) {
	e := newTestEnv(t)

	resp, body := e.postJSON(t, "/api/publish", map[string]interface{}{"lines": []string{"t1"}})
	if resp.StatusCode != http.StatusUnauthorized || body["error"] != "auth_expired" {
		t.Fatalf("publish while disconnected = %d %v, want 401 auth_expired", resp.StatusCode, body)
	}
}

func TestAnalyticsSummaryReflectsGenerations(t *testing.T) {
	e := newTestEnv(t)
	e.postJSON(t, "/api/identity", map[string]string{"email": "pro@example.com"})

	gen := map[string]interface{}{"platform": "X Thread", "topic": "Growth", "tone": "Witty"}
	for i := 0; i < 2; i++ {
		if resp, _ := e.postJSON(t, "/api/generate", gen); resp.StatusCode != http.StatusOK {
			t.Fatalf("generation %d failed", i+1)
		}
	}

	_, summary := e.getJSON(t, "/api/analytics/summary")
	if summary["total_generations"] != float64(2) {
		t.Fatalf("total_generations = %v, want 2", summary["total_generations"])
	}
	if summary["most_used_platform"] != "X Thread" {
		t.Fatalf("most_used_platform = %v", summary["most_used_platform"])
	}

	_, history := e.getJSON(t, "/api/analytics/history")
	entries, _ := history["history"].([]interface{})
	if len(entries) != 2 {
		t.Fatalf("history entries = %d, want 2", len(entries))
	}

	_, activity := e.getJSON(t, "/api/analytics/activity?days=3")
	series, _ := activity["activity"].([]interface{})
	if len(series) != 3 {
		t.Fatalf("activity series length = %d, want 3", len(series))
	}

	// Wipe and confirm.
	req, err := http.NewRequest(http.MethodDelete, e.srv.URL+"/api/analytics/", nil)
	if err != nil {
		t.Fatalf("build delete: %v", err)
	}
	resp, err := e.client.Do(req)
	if err != nil {
		t.Fatalf("delete: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("clear status = %d", resp.StatusCode)
	}

	_, summary = e.getJSON(t, "/api/analytics/summary")
	if summary["total_generations"] != float64(0) {
		t.Fatalf("post-clear total = %v, want 0", summary["total_generations"])
	}
}

func TestAnonymousSessionsDoNotShareAnalytics(t *testing.T) {
	e := newTestEnv(t)

	gen := map[string]interface{}{"platform": "X Thread", "topic": "private idea", "tone": "Casual"}
	if resp, _ := e.postJSON(t, "/api/generate", gen); resp.StatusCode != http.StatusOK {
		t.Fatalf("anonymous generation failed: %d", resp.StatusCode)
	}

	// A different browser with no identity must see nothing of the first.
	jar, err := cookiejar.New(nil)
	if err != nil {
		t.Fatalf("cookie jar: %v", err)
	}
	other := &testEnv{srv: e.srv, client: &http.Client{Jar: jar}}

	_, summary := other.getJSON(t, "/api/analytics/summary")
	if summary["total_generations"] != float64(0) {
		t.Fatalf("stranger sees total_generations = %v, want 0", summary["total_generations"])
	}
	_, history := other.getJSON(t, "/api/analytics/history")
	if entries, _ := history["history"].([]interface{}); len(entries) != 0 {
		t.Fatalf("stranger sees history entries: %v", entries)
	}
}

func TestHealthEndpoint(t *testing.T) {
	e := newTestEnv(t)

	resp, body := e.getJSON(t, "/health")
	if resp.StatusCode != http.StatusOK || body["status"] != "ok" {
		t.Fatalf("health = %d %v", resp.StatusCode, body)
	}
	if resp.Header.Get("X-Request-ID") == "" {
		t.Fatal("responses should carry a request id")
	}
}
