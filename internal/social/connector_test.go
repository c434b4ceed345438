package social

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/dghubble/oauth1"
	"github.com/glebarez/sqlite"
	"github.com/threadforge/threadforge/internal/db/models"
	"github.com/threadforge/threadforge/internal/faults"
	"github.com/threadforge/threadforge/internal/social/sidechannel"
	"gorm.io/gorm"
)

type postedTweet struct {
	Text    string
	ReplyTo string
}

// fakeX stands in for the X OAuth and v2 API endpoints.
type fakeX struct {
	srv      *httptest.Server
	posted   []postedTweet
	failAt   int // index of the post to reject, -1 for none
	failWith int
	attempts int
}

func newFakeX(t *testing.T) *fakeX {
	t.Helper()
	f := &fakeX{failAt: -1}

	mux := http.NewServeMux()
	mux.HandleFunc("/oauth/request_token", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "oauth_token=req-tok&oauth_token_secret=req-sec&oauth_callback_confirmed=true")
	})
	mux.HandleFunc("/oauth/access_token", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "oauth_token=acc-tok&oauth_token_secret=acc-sec")
	})
	mux.HandleFunc("/2/users/me", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"data":{"id":"42","username":"forgeuser"}}`)
	})
	mux.HandleFunc("/2/tweets", func(w http.ResponseWriter, r *http.Request) {
		if len(f.posted) == f.failAt {
			f.attempts++
			http.Error(w, "nope", f.failWith)
			return
		}
		var payload struct {
			Text  string `json:"text"`
			Reply struct {
				InReplyTo string `json:"in_reply_to_tweet_id"`
			} `json:"reply"`
		}
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			t.Errorf("decode tweet payload: %v", err)
		}
		f.posted = append(f.posted, postedTweet{Text: payload.Text, ReplyTo: payload.Reply.InReplyTo})
		fmt.Fprintf(w, `{"data":{"id":"id-%d"}}`, len(f.posted))
	})
	mux.HandleFunc("/2/tweets/", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"data":{"id":"id-1","public_metrics":{"like_count":10,"retweet_count":3,"reply_count":2,"impression_count":500,"bookmark_count":1}}}`)
	})

	f.srv = httptest.NewServer(mux)
	t.Cleanup(f.srv.Close)
	return f
}

func newTestConnector(t *testing.T, f *fakeX) *Connector {
	t.Helper()
	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{})
	if err != nil {
		t.Fatalf("failed to open db: %v", err)
	}
	if err := db.AutoMigrate(&models.OAuthSession{}); err != nil {
		t.Fatalf("failed to migrate: %v", err)
	}

	return NewConnector(Options{
		ConsumerKey:    "ck",
		ConsumerSecret: "cs",
		CallbackURL:    "http://localhost/callback",
		Store:          sidechannel.NewStore(db, time.Minute),
		APIBase:        f.srv.URL,
		Endpoint: &oauth1.Endpoint{
			RequestTokenURL: f.srv.URL + "/oauth/request_token",
			AuthorizeURL:    f.srv.URL + "/oauth/authorize",
			AccessTokenURL:  f.srv.URL + "/oauth/access_token",
		},
	})
}

func connect(t *testing.T, c *Connector) {
	t.Helper()
	if _, err := c.BeginAuthorization(); err != nil {
		t.Fatalf("begin authorization: %v", err)
	}
	if err := c.CompleteAuthorization(context.Background(), "req-tok", "verifier"); err != nil {
		t.Fatalf("complete authorization: %v", err)
	}
}

func TestAuthorizationFlow(t *testing.T) {
	f := newFakeX(t)
	c := newTestConnector(t, f)

	if c.State() != StateDisconnected {
		t.Fatalf("fresh connector state = %s", c.State())
	}

	authURL, err := c.BeginAuthorization()
	if err != nil {
		t.Fatalf("begin authorization: %v", err)
	}
	if !strings.Contains(authURL, "oauth_token=req-tok") {
		t.Fatalf("authorization URL missing request token: %s", authURL)
	}
	if c.State() != StateAwaitingCallback {
		t.Fatalf("state after begin = %s", c.State())
	}

	if err := c.CompleteAuthorization(context.Background(), "req-tok", "verifier"); err != nil {
		t.Fatalf("complete authorization: %v", err)
	}
	if c.State() != StateConnected {
		t.Fatalf("state after callback = %s", c.State())
	}
	cred, ok := c.Credential()
	if !ok || cred.Username != "forgeuser" || cred.Token != "acc-tok" {
		t.Fatalf("unexpected credential: %+v ok=%v", cred, ok)
	}
}

func TestCallbackReplayFails(t *testing.T) {
	f := newFakeX(t)
	c := newTestConnector(t, f)
	connect(t, c)

	err := c.CompleteAuthorization(context.Background(), "req-tok", "verifier")
	if !errors.Is(err, faults.ErrSessionExpired) {
		t.Fatalf("replayed callback should fail with session expired, got %v", err)
	}
	if c.State() != StateDisconnected {
		t.Fatalf("state after replayed callback = %s, want disconnected", c.State())
	}
}

func TestFailedCallbackDisconnects(t *testing.T) {
	f := newFakeX(t)
	c := newTestConnector(t, f)

	if _, err := c.BeginAuthorization(); err != nil {
		t.Fatalf("begin authorization: %v", err)
	}
	if c.State() != StateAwaitingCallback {
		t.Fatalf("state after begin = %s", c.State())
	}

	err := c.CompleteAuthorization(context.Background(), "unknown-tok", "verifier")
	if !errors.Is(err, faults.ErrSessionExpired) {
		t.Fatalf("unknown token should fail with session expired, got %v", err)
	}
	// A dead handshake must not linger in awaiting_callback.
	if c.State() != StateDisconnected {
		t.Fatalf("state after failed callback = %s, want disconnected", c.State())
	}
	if _, ok := c.Credential(); ok {
		t.Fatal("failed callback must not leave a credential behind")
	}
}

func TestPublishChainsReplies(t *testing.T) {
	f := newFakeX(t)
	c := newTestConnector(t, f)
	connect(t, c)

	result, err := c.Publish(context.Background(), []string{"t1", "  ", "t2", "t3"})
	if err != nil {
		t.Fatalf("publish: %v", err)
	}
	if result.Posted != 3 || result.Total != 3 {
		t.Fatalf("unexpected result: %+v", result)
	}
	if result.RootID != "id-1" {
		t.Fatalf("root id = %s", result.RootID)
	}
	if result.Permalink != "https://x.com/forgeuser/status/id-1" {
		t.Fatalf("permalink = %s", result.Permalink)
	}

	want := []postedTweet{
		{Text: "t1"},
		{Text: "t2", ReplyTo: "id-1"},
		{Text: "t3", ReplyTo: "id-2"},
	}
	if len(f.posted) != len(want) {
		t.Fatalf("posted %d tweets, want %d", len(f.posted), len(want))
	}
	for i, p := range f.posted {
		if p != want[i] {
			t.Fatalf("tweet %d: got %+v, want %+v", i, p, want[i])
		}
	}
}

func TestPublishStopsAtFirstFailure(t *testing.T) {
	f := newFakeX(t)
	f.failAt = 1
	f.failWith = http.StatusServiceUnavailable
	c := newTestConnector(t, f)
	connect(t, c)

	result, err := c.Publish(context.Background(), []string{"t1", "t2", "t3"})
	if err == nil {
		t.Fatal("expected publish error")
	}
	if !errors.Is(err, faults.ErrTransient) {
		t.Fatalf("expected transient failure, got %v", err)
	}
	if result.Posted != 1 || result.Total != 3 {
		t.Fatalf("partial result = %+v", result)
	}
	// The transient post gets exactly one retry, and t3 is never attempted.
	if f.attempts != 2 {
		t.Fatalf("failed post attempted %d times, want 2", f.attempts)
	}
	if len(f.posted) != 1 {
		t.Fatalf("posted %d tweets after failure, want 1", len(f.posted))
	}
}

func TestPublishAuthRejectionDisconnects(t *testing.T) {
	f := newFakeX(t)
	f.failAt = 0
	f.failWith = http.StatusUnauthorized
	c := newTestConnector(t, f)
	connect(t, c)

	_, err := c.Publish(context.Background(), []string{"t1"})
	if !errors.Is(err, faults.ErrAuthExpired) {
		t.Fatalf("expected auth expired, got %v", err)
	}
	if c.State() != StateDisconnected {
		t.Fatalf("connector should disconnect on credential rejection, state = %s", c.State())
	}
	// Auth rejections are not retried.
	if f.attempts != 1 {
		t.Fatalf("401 attempted %d times, want 1", f.attempts)
	}
}

func TestPublishEmptyContent(t *testing.T) {
	f := newFakeX(t)
	c := newTestConnector(t, f)
	connect(t, c)

	if _, err := c.Publish(context.Background(), []string{"  ", "\n"}); !errors.Is(err, faults.ErrEmptyContent) {
		t.Fatalf("expected empty content error, got %v", err)
	}
}

func TestPublishWhileDisconnected(t *testing.T) {
	f := newFakeX(t)
	c := newTestConnector(t, f)

	if _, err := c.Publish(context.Background(), []string{"t1"}); !errors.Is(err, faults.ErrAuthExpired) {
		t.Fatalf("expected auth expired while disconnected, got %v", err)
	}
}

func TestDisconnectIsIdempotent(t *testing.T) {
	f := newFakeX(t)
	c := newTestConnector(t, f)
	connect(t, c)

	c.Disconnect()
	c.Disconnect()
	if c.State() != StateDisconnected {
		t.Fatalf("state = %s", c.State())
	}
	if _, ok := c.Credential(); ok {
		t.Fatal("credential should be gone after disconnect")
	}
}

func TestFetchMetrics(t *testing.T) {
	f := newFakeX(t)
	c := newTestConnector(t, f)
	connect(t, c)

	m, err := c.FetchMetrics(context.Background(), "id-1")
	if err != nil {
		t.Fatalf("fetch metrics: %v", err)
	}
	want := Metrics{Likes: 10, Retweets: 3, Replies: 2, Views: 500, Bookmarks: 1}
	if m != want {
		t.Fatalf("metrics = %+v, want %+v", m, want)
	}
}
