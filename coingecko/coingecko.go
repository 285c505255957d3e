// Package coingecko reads the current price of a coin from the CoinGecko
// simple price API.
package coingecko

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PaesslerAG/jsonpath"
	"github.com/etnz/dca"
)

// DefaultEndpoint is the public simple price endpoint.
const DefaultEndpoint = "https://api.coingecko.com/api/v3/simple/price"

// DefaultTimeout bounds a single fetch when the client has no timeout of its own.
const DefaultTimeout = 10 * time.Second

// Client fetches quotes of one asset. It implements dca.Feed.
type Client struct {
	HTTP     *http.Client
	Endpoint string
	APIKey   string // APIKey is the optional demo key, sent as x-cg-demo-api-key.
	Asset    dca.Asset
	Now      func() time.Time
}

// New returns a Client of asset on the public endpoint.
func New(asset dca.Asset, apiKey string) *Client {
	return &Client{
		HTTP:     &http.Client{Timeout: DefaultTimeout},
		Endpoint: DefaultEndpoint,
		APIKey:   apiKey,
		Asset:    asset,
		Now:      time.Now,
	}
}

// URL returns the address of the price request.
func (c *Client) URL() string {
	q := url.Values{}
	q.Set("ids", c.Asset.FeedID)
	q.Set("vs_currencies", strings.ToLower(c.Asset.Base)+","+strings.ToLower(c.Asset.Secondary))
	return c.Endpoint + "?" + q.Encode()
}

// Fetch returns the current quote. Every failure is a *dca.FeedError.
//
//	{"bitcoin":{"idr":1650000000,"usd":101234.56}}
func (c *Client) Fetch(ctx context.Context) (dca.Quote, error) {
	source := c.Endpoint
	if u, err := url.Parse(c.Endpoint); err == nil && u.Host != "" {
		source = u.Host
	}
	fail := func(err error) (dca.Quote, error) { return dca.Quote{}, &dca.FeedError{Source: source, Err: err} }

	doc, err := c.get(ctx)
	if err != nil {
		return fail(err)
	}
	base, err := c.price(doc, c.Asset.Base)
	if err != nil {
		return fail(err)
	}
	secondary, err := c.price(doc, c.Asset.Secondary)
	if err != nil {
		return fail(err)
	}
	q, err := dca.NewQuote(base, secondary, c.Now())
	if err != nil {
		return fail(err)
	}
	return q, nil
}

// get performs the request and decodes the body, numbers are kept as json.Number.
func (c *Client) get(ctx context.Context) (any, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.URL(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	if c.APIKey != "" {
		req.Header.Set("x-cg-demo-api-key", c.APIKey)
	}
	client := c.HTTP
	if client == nil {
		client = &http.Client{Timeout: DefaultTimeout}
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("cannot http GET %v%v: %v", resp.Request.URL.Host, resp.Request.URL.Path, resp.Status)
	}
	var buf bytes.Buffer
	if _, err := io.Copy(&buf, resp.Body); err != nil {
		return nil, err
	}
	dec := json.NewDecoder(&buf)
	dec.UseNumber()
	var doc any
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("invalid price payload: %w", err)
	}
	return doc, nil
}

// price extracts the unit price in currency from the decoded payload.
func (c *Client) price(doc any, currency string) (dca.Money, error) {
	path := fmt.Sprintf("$[%q][%q]", c.Asset.FeedID, strings.ToLower(currency))
	v, err := jsonpath.Get(path, doc)
	if err != nil {
		return dca.Money{}, fmt.Errorf("missing %s price at %s: %w", currency, path, err)
	}
	// jsonpath may wrap a single answer in a list
	if list, ok := v.([]any); ok && len(list) > 0 {
		v = list[0]
	}
	n, ok := v.(json.Number)
	if !ok {
		return dca.Money{}, fmt.Errorf("%s price at %s is not a number: %v", currency, path, v)
	}
	m, err := dca.ParseMoney(n.String(), currency)
	if err != nil {
		return dca.Money{}, err
	}
	if !m.IsPositive() {
		return dca.Money{}, errors.New(currency + " price is not positive: " + n.String())
	}
	return m, nil
}
