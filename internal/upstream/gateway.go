package upstream

import (
	"net/http"
	"strings"
	"time"

	"github.com/2beens/cfdnsadmin/internal/accounts"
	"github.com/2beens/cfdnsadmin/internal/telemetry/metrics"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

const (
	DefaultBaseURL = "https://api.cloudflare.com/client/v4"
	DefaultTimeout = 15 * time.Second
)

type credentials interface {
	Get(id string) (accounts.Record, bool)
	First() (accounts.Record, bool)
}

type GatewayParams struct {
	BaseURL string
	Timeout time.Duration
	// HTTPClient is optional; its Timeout is set from Timeout when left zero
	HTTPClient *http.Client
	Metrics    *metrics.Manager
}

// Gateway hands out cloudflare api clients bound to one stored credential.
type Gateway struct {
	store          credentials
	baseURL        string
	timeout        time.Duration
	httpClient     *http.Client
	metricsManager *metrics.Manager
}

func NewGateway(store credentials, params GatewayParams) *Gateway {
	baseURL := strings.TrimSuffix(params.BaseURL, "/")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	timeout := params.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	var httpClient *http.Client
	if params.HTTPClient != nil {
		clientCopy := *params.HTTPClient
		httpClient = &clientCopy
	} else {
		httpClient = &http.Client{
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		}
	}
	if httpClient.Timeout == 0 {
		httpClient.Timeout = timeout
	}

	return &Gateway{
		store:          store,
		baseURL:        baseURL,
		timeout:        timeout,
		httpClient:     httpClient,
		metricsManager: params.Metrics,
	}
}

func (g *Gateway) newClient(record accounts.Record) *Client {
	return &Client{
		accountID:      record.ID,
		token:          record.Token,
		baseURL:        g.baseURL,
		httpClient:     g.httpClient,
		metricsManager: g.metricsManager,
	}
}

// ForAccount returns a client authenticated with the given account's token.
func (g *Gateway) ForAccount(accountID string) (*Client, error) {
	record, ok := g.store.Get(accountID)
	if !ok {
		return nil, ErrAccountNotFound
	}
	return g.newClient(record), nil
}

// FirstAccount returns a client for the oldest stored account.
func (g *Gateway) FirstAccount() (*Client, error) {
	record, ok := g.store.First()
	if !ok {
		return nil, ErrNoAccounts
	}
	return g.newClient(record), nil
}
