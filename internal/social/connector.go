// Package social connects an account to X over OAuth 1.0a and publishes
// generated threads through the v2 API. A Connector walks a three-state
// machine: disconnected, awaiting the authorization callback, connected.
package social

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/dghubble/oauth1"
	"github.com/dghubble/oauth1/twitter"
	"github.com/threadforge/threadforge/internal/faults"
	"github.com/threadforge/threadforge/internal/social/sidechannel"
)

// State is the connector's position in the authorization lifecycle.
type State string

const (
	StateDisconnected     State = "disconnected"
	StateAwaitingCallback State = "awaiting_callback"
	StateConnected        State = "connected"
)

// Credential holds the access token pair and the resolved account identity.
type Credential struct {
	Token    string
	Secret   string
	UserID   string
	Username string
}

// PublishResult reports how far a thread publish got.
type PublishResult struct {
	Posted    int    `json:"posted"`
	Total     int    `json:"total"`
	RootID    string `json:"root_id,omitempty"`
	Permalink string `json:"permalink,omitempty"`
}

// Metrics is the public engagement snapshot for one posted artifact.
type Metrics struct {
	Likes     int64 `json:"likes"`
	Retweets  int64 `json:"retweets"`
	Replies   int64 `json:"replies"`
	Views     int64 `json:"views"`
	Bookmarks int64 `json:"bookmarks"`
}

// Options configures a Connector. APIBase and Endpoint default to the real
// X endpoints and exist so tests can point at a local server.
type Options struct {
	ConsumerKey    string
	ConsumerSecret string
	CallbackURL    string
	Store          *sidechannel.Store
	APIBase        string
	Endpoint       *oauth1.Endpoint
	Timeout        time.Duration
}

// Connector manages one account's authorization and publishing.
type Connector struct {
	mu    sync.Mutex
	state State
	cred  *Credential

	cfg     *oauth1.Config
	store   *sidechannel.Store
	apiBase string

	// clientFor builds the signed HTTP client for an access token. Tests
	// swap it for an unsigned client.
	clientFor func(token *oauth1.Token) *http.Client
}

// NewConnector builds a disconnected connector.
func NewConnector(opts Options) *Connector {
	endpoint := twitter.AuthorizeEndpoint
	if opts.Endpoint != nil {
		endpoint = *opts.Endpoint
	}
	apiBase := opts.APIBase
	if apiBase == "" {
		apiBase = "https://api.x.com"
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}

	cfg := &oauth1.Config{
		ConsumerKey:    opts.ConsumerKey,
		ConsumerSecret: opts.ConsumerSecret,
		CallbackURL:    opts.CallbackURL,
		Endpoint:       endpoint,
	}
	return &Connector{
		state:   StateDisconnected,
		cfg:     cfg,
		store:   opts.Store,
		apiBase: strings.TrimRight(apiBase, "/"),
		clientFor: func(token *oauth1.Token) *http.Client {
			client := cfg.Client(oauth1.NoContext, token)
			client.Timeout = timeout
			return client
		},
	}
}

// State returns the current lifecycle state.
func (c *Connector) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Credential returns a copy of the active credential, or false when
// disconnected.
func (c *Connector) Credential() (Credential, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cred == nil {
		return Credential{}, false
	}
	return *c.cred, true
}

// BeginAuthorization obtains a request token, stashes its secret in the
// side channel, and returns the URL to send the user to.
func (c *Connector) BeginAuthorization() (string, error) {
	requestToken, requestSecret, err := c.cfg.RequestToken()
	if err != nil {
		return "", faults.Transientf("request token: %v", err)
	}
	if err := c.store.Put(requestToken, requestSecret); err != nil {
		return "", fmt.Errorf("save handshake state: %w", err)
	}
	authURL, err := c.cfg.AuthorizationURL(requestToken)
	if err != nil {
		return "", fmt.Errorf("build authorization URL: %w", err)
	}

	c.mu.Lock()
	c.state = StateAwaitingCallback
	c.mu.Unlock()
	return authURL.String(), nil
}

// CompleteAuthorization redeems the callback token and verifier for an
// access token, resolves the account's username, and moves to connected.
// A replayed or stale callback fails with ErrSessionExpired. Any failure
// ends the handshake: the connector drops back to disconnected and the
// user has to start over.
func (c *Connector) CompleteAuthorization(ctx context.Context, requestToken, verifier string) (err error) {
	defer func() {
		if err != nil {
			c.Disconnect()
		}
	}()

	requestSecret, err := c.store.Take(requestToken)
	if err != nil {
		return err
	}

	accessToken, accessSecret, err := c.cfg.AccessToken(requestToken, requestSecret, verifier)
	if err != nil {
		if faults.IsAuthRejection(err) {
			return fmt.Errorf("%w: access token exchange: %v", faults.ErrAuthExpired, err)
		}
		return faults.Transientf("access token exchange: %v", err)
	}

	cred := &Credential{Token: accessToken, Secret: accessSecret}
	client := c.clientFor(oauth1.NewToken(accessToken, accessSecret))
	userID, username, err := c.fetchIdentity(ctx, client)
	if err != nil {
		return err
	}
	cred.UserID = userID
	cred.Username = username

	c.mu.Lock()
	c.cred = cred
	c.state = StateConnected
	c.mu.Unlock()
	return nil
}

// Disconnect drops the credential. Safe to call in any state.
func (c *Connector) Disconnect() {
	c.mu.Lock()
	c.cred = nil
	c.state = StateDisconnected
	c.mu.Unlock()
}

// Publish posts the lines as a thread: the first line is the root, each
// following line replies to the previous one. Blank lines are dropped
// before posting. On failure the chain stops and the result reports how
// many posts made it out; a credential rejection also disconnects.
func (c *Connector) Publish(ctx context.Context, lines []string) (PublishResult, error) {
	content := make([]string, 0, len(lines))
	for _, line := range lines {
		if trimmed := strings.TrimSpace(line); trimmed != "" {
			content = append(content, trimmed)
		}
	}
	if len(content) == 0 {
		return PublishResult{}, faults.ErrEmptyContent
	}

	c.mu.Lock()
	cred := c.cred
	c.mu.Unlock()
	if cred == nil {
		return PublishResult{Total: len(content)}, faults.ErrAuthExpired
	}
	client := c.clientFor(oauth1.NewToken(cred.Token, cred.Secret))

	result := PublishResult{Total: len(content)}
	previousID := ""
	for _, text := range content {
		id, err := c.postTweet(ctx, client, text, previousID)
		if err != nil && faults.IsRetryable(err) {
			id, err = c.postTweet(ctx, client, text, previousID)
		}
		if err != nil {
			if faults.IsAuthRejection(err) {
				c.Disconnect()
				return result, fmt.Errorf("%w: %v", faults.ErrAuthExpired, err)
			}
			return result, err
		}
		if result.RootID == "" {
			result.RootID = id
			result.Permalink = fmt.Sprintf("https://x.com/%s/status/%s", cred.Username, id)
		}
		previousID = id
		result.Posted++
	}
	return result, nil
}

// FetchMetrics reads the public engagement counters for one post.
func (c *Connector) FetchMetrics(ctx context.Context, tweetID string) (Metrics, error) {
	c.mu.Lock()
	cred := c.cred
	c.mu.Unlock()
	if cred == nil {
		return Metrics{}, faults.ErrAuthExpired
	}
	client := c.clientFor(oauth1.NewToken(cred.Token, cred.Secret))

	url := fmt.Sprintf("%s/2/tweets/%s?tweet.fields=public_metrics", c.apiBase, tweetID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return Metrics{}, fmt.Errorf("create request: %w", err)
	}
	resp, err := client.Do(req)
	if err != nil {
		return Metrics{}, faults.Transientf("fetch metrics: %v", err)
	}
	defer resp.Body.Close()

	if err := classifyResponse(resp); err != nil {
		return Metrics{}, err
	}

	var parsed struct {
		Data struct {
			PublicMetrics struct {
				Likes     int64 `json:"like_count"`
				Retweets  int64 `json:"retweet_count"`
				Replies   int64 `json:"reply_count"`
				Views     int64 `json:"impression_count"`
				Bookmarks int64 `json:"bookmark_count"`
			} `json:"public_metrics"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return Metrics{}, fmt.Errorf("decode metrics: %w", err)
	}
	m := parsed.Data.PublicMetrics
	return Metrics{
		Likes:     m.Likes,
		Retweets:  m.Retweets,
		Replies:   m.Replies,
		Views:     m.Views,
		Bookmarks: m.Bookmarks,
	}, nil
}

func (c *Connector) fetchIdentity(ctx context.Context, client *http.Client) (id, username string, err error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.apiBase+"/2/users/me", nil)
	if err != nil {
		return "", "", fmt.Errorf("create request: %w", err)
	}
	resp, err := client.Do(req)
	if err != nil {
		return "", "", faults.Transientf("fetch identity: %v", err)
	}
	defer resp.Body.Close()

	if err := classifyResponse(resp); err != nil {
		return "", "", err
	}

	var parsed struct {
		Data struct {
			ID       string `json:"id"`
			Username string `json:"username"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", "", fmt.Errorf("decode identity: %w", err)
	}
	if parsed.Data.Username == "" {
		return "", "", fmt.Errorf("identity response missing username")
	}
	return parsed.Data.ID, parsed.Data.Username, nil
}

func (c *Connector) postTweet(ctx context.Context, client *http.Client, text, inReplyTo string) (string, error) {
	payload := map[string]interface{}{"text": text}
	if inReplyTo != "" {
		payload["reply"] = map[string]string{"in_reply_to_tweet_id": inReplyTo}
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("marshal tweet: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.apiBase+"/2/tweets", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return "", faults.Transientf("post tweet: %v", err)
	}
	defer resp.Body.Close()

	if err := classifyResponse(resp); err != nil {
		return "", err
	}

	var parsed struct {
		Data struct {
			ID string `json:"id"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", fmt.Errorf("decode tweet response: %w", err)
	}
	if parsed.Data.ID == "" {
		return "", fmt.Errorf("tweet response missing id")
	}
	return parsed.Data.ID, nil
}

func classifyResponse(resp *http.Response) error {
	if classified := faults.ClassifyStatus(resp.StatusCode); classified != nil {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("%w: API returned %d: %s", classified, resp.StatusCode, string(snippet))
	}
	if resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("API returned %d: %s", resp.StatusCode, string(snippet))
	}
	return nil
}
