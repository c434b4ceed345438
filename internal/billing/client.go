package billing

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/coocood/freecache"
)

const tierCacheSize = 512 * 1024

// Client looks up active subscriptions for an email and maps the highest
// price found to a Tier. Results are cached briefly so repeated page loads
// do not hammer the billing API.
type Client struct {
	baseURL   string
	secretKey string

	proCents    int64
	visualCents int64

	httpClient *http.Client
	cache      *freecache.Cache
	cacheTTL   time.Duration
}

// Options configures a billing client.
type Options struct {
	BaseURL     string
	SecretKey   string
	ProCents    int64
	VisualCents int64
	Timeout     time.Duration
	CacheTTL    time.Duration
}

// NewClient creates a billing client. Every outbound call shares one bounded
// timeout; a timed-out lookup degrades to the free tier.
func NewClient(opts Options) *Client {
	if opts.Timeout <= 0 {
		opts.Timeout = 10 * time.Second
	}
	if opts.ProCents <= 0 {
		opts.ProCents = 1200
	}
	if opts.VisualCents <= 0 {
		opts.VisualCents = 1700
	}
	return &Client{
		baseURL:     strings.TrimRight(opts.BaseURL, "/"),
		secretKey:   opts.SecretKey,
		proCents:    opts.ProCents,
		visualCents: opts.VisualCents,
		httpClient:  &http.Client{Timeout: opts.Timeout},
		cache:       freecache.NewCache(tierCacheSize),
		cacheTTL:    opts.CacheTTL,
	}
}

// ResolveTier maps an identity to its entitlement tier.
//
// Asymmetry is deliberate: a subscription whose price cannot be parsed is
// treated as evidence of payment (pro), while an unreachable billing service
// or an absent subscription degrades to free.
func (c *Client) ResolveTier(ctx context.Context, email string) Tier {
	email = strings.TrimSpace(email)
	if email == "" {
		return TierFree
	}

	if c.cacheTTL > 0 {
		if v, err := c.cache.Get([]byte(email)); err == nil {
			return Tier(v)
		}
	}

	tier := c.resolve(ctx, email)

	if c.cacheTTL > 0 {
		_ = c.cache.Set([]byte(email), []byte(tier), int(c.cacheTTL.Seconds()))
	}
	return tier
}

func (c *Client) resolve(ctx context.Context, email string) Tier {
	customers, err := c.listCustomers(ctx, email)
	if err != nil {
		log.Printf("⚠️ Billing lookup failed for %s: %v", email, err)
		return TierFree
	}
	if len(customers) == 0 {
		return TierFree
	}

	highest := int64(-1)
	sawUnparseable := false

	for _, cust := range customers {
		subs, err := c.listActiveSubscriptions(ctx, cust.ID)
		if err != nil {
			log.Printf("⚠️ Subscription lookup failed for customer %s: %v", cust.ID, err)
			return TierFree
		}
		for _, sub := range subs {
			cents, ok := sub.priceCents()
			if !ok {
				sawUnparseable = true
				continue
			}
			if cents > highest {
				highest = cents
			}
		}
	}

	switch {
	case highest >= c.visualCents:
		return TierVisualPack
	case highest >= c.proCents:
		return TierPro
	case sawUnparseable:
		// A subscription exists but its price is opaque: fail open.
		return TierPro
	default:
		return TierFree
	}
}

type customer struct {
	ID string `json:"id"`
}

type subscription struct {
	Plan *struct {
		Amount *int64 `json:"amount"`
	} `json:"plan"`
	Items struct {
		Data []struct {
			Price *struct {
				UnitAmount *int64 `json:"unit_amount"`
			} `json:"price"`
		} `json:"data"`
	} `json:"items"`
}

// priceCents extracts the subscription price in minor currency units,
// preferring the modern items/price shape over the legacy plan field.
func (s subscription) priceCents() (int64, bool) {
	for _, item := range s.Items.Data {
		if item.Price != nil && item.Price.UnitAmount != nil {
			return *item.Price.UnitAmount, true
		}
	}
	if s.Plan != nil && s.Plan.Amount != nil {
		return *s.Plan.Amount, true
	}
	return 0, false
}

func (c *Client) listCustomers(ctx context.Context, email string) ([]customer, error) {
	q := url.Values{"email": {email}}
	var out struct {
		Data []customer `json:"data"`
	}
	if err := c.getJSON(ctx, "/customers", q, &out); err != nil {
		return nil, err
	}
	return out.Data, nil
}

func (c *Client) listActiveSubscriptions(ctx context.Context, customerID string) ([]subscription, error) {
	q := url.Values{"customer": {customerID}, "status": {"active"}}
	var out struct {
		Data []subscription `json:"data"`
	}
	if err := c.getJSON(ctx, "/subscriptions", q, &out); err != nil {
		return nil, err
	}
	return out.Data, nil
}

func (c *Client) getJSON(ctx context.Context, path string, query url.Values, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path+"?"+query.Encode(), nil)
	if err != nil {
		return err
	}
	// Stripe-style auth: secret key as basic-auth user, empty password.
	req.SetBasicAuth(c.secretKey, "")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("billing API returned %d: %s", resp.StatusCode, string(body))
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
