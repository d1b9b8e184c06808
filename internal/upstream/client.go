package upstream

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/2beens/cfdnsadmin/internal/telemetry/metrics"
	"github.com/2beens/cfdnsadmin/internal/telemetry/tracing"

	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

const maxResponseBytes = 10 << 20

// Client calls the cloudflare api on behalf of one account. The token is
// attached to every request and is never logged.
type Client struct {
	accountID      string
	token          string
	baseURL        string
	httpClient     *http.Client
	metricsManager *metrics.Manager
}

type envelope struct {
	Success  bool            `json:"success"`
	Errors   any             `json:"errors"`
	Messages any             `json:"messages"`
	Result   json.RawMessage `json:"result"`
}

func (c *Client) AccountID() string {
	return c.accountID
}

func (c *Client) ListZones(ctx context.Context, query url.Values) (json.RawMessage, error) {
	return c.do(ctx, "list_zones", http.MethodGet, "/zones", query, nil)
}

func (c *Client) ListRecords(ctx context.Context, zoneID string, query url.Values) (json.RawMessage, error) {
	return c.do(ctx, "list_records", http.MethodGet, recordsPath(zoneID), query, nil)
}

func (c *Client) CreateRecord(ctx context.Context, zoneID string, record json.RawMessage) (json.RawMessage, error) {
	return c.do(ctx, "create_record", http.MethodPost, recordsPath(zoneID), nil, record)
}

func (c *Client) UpdateRecord(ctx context.Context, zoneID, recordID string, record json.RawMessage) (json.RawMessage, error) {
	return c.do(ctx, "update_record", http.MethodPut, recordPath(zoneID, recordID), nil, record)
}

func (c *Client) DeleteRecord(ctx context.Context, zoneID, recordID string) (json.RawMessage, error) {
	return c.do(ctx, "delete_record", http.MethodDelete, recordPath(zoneID, recordID), nil, nil)
}

func recordsPath(zoneID string) string {
	return fmt.Sprintf("/zones/%s/dns_records", url.PathEscape(zoneID))
}

func recordPath(zoneID, recordID string) string {
	return fmt.Sprintf("%s/%s", recordsPath(zoneID), url.PathEscape(recordID))
}

func (c *Client) observe(operation, status string, begin time.Time) {
	if c.metricsManager == nil {
		return
	}
	c.metricsManager.CounterUpstreamCalls.WithLabelValues(operation, status).Inc()
	c.metricsManager.HistogramUpstreamDuration.WithLabelValues(operation).Observe(time.Since(begin).Seconds())
}

func (c *Client) do(
	ctx context.Context,
	operation, method, path string,
	query url.Values,
	body []byte,
) (_ json.RawMessage, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "cloudflare."+operation)
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()
	span.SetAttributes(
		attribute.String("account.id", c.accountID),
		attribute.String("cloudflare.path", path),
	)

	begin := time.Now()

	endpoint := c.baseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	var bodyReader io.Reader
	if body != nil {
		bodyReader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("build %s request: %w", operation, err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if isTimeout(err) {
			c.observe(operation, "timeout", begin)
			log.Errorf("cloudflare %s for account [%s]: timeout", operation, c.accountID)
			return nil, fmt.Errorf("%w: %s", ErrTimeout, operation)
		}
		c.observe(operation, "network_error", begin)
		log.Errorf("cloudflare %s for account [%s]: %s", operation, c.accountID, err)
		return nil, &Error{
			StatusCode: networkFailureStatus,
			Message:    defaultErrorMessage,
			Detail:     "failed to reach the cloudflare api",
		}
	}
	defer resp.Body.Close()

	span.SetAttributes(attribute.Int("http.status_code", resp.StatusCode))
	c.observe(operation, strconv.Itoa(resp.StatusCode), begin)

	respBytes, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		if isTimeout(err) {
			return nil, fmt.Errorf("%w: %s", ErrTimeout, operation)
		}
		return nil, &Error{
			StatusCode: networkFailureStatus,
			Message:    defaultErrorMessage,
			Detail:     "failed to read the cloudflare api response",
		}
	}

	var env envelope
	decodeErr := json.Unmarshal(respBytes, &env)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := &Error{
			StatusCode: resp.StatusCode,
			Message:    defaultErrorMessage,
			Detail:     defaultErrorDetail,
		}
		if decodeErr == nil {
			if msg := Stringify(env.Errors); msg != "" {
				apiErr.Message = msg
			}
			if detail := Stringify(env.Messages); detail != "" {
				apiErr.Detail = detail
			}
		}
		log.Debugf("cloudflare %s for account [%s]: %s", operation, c.accountID, apiErr)
		span.SetStatus(codes.Error, apiErr.Message)
		return nil, apiErr
	}

	if decodeErr != nil {
		return nil, &Error{
			StatusCode: networkFailureStatus,
			Message:    defaultErrorMessage,
			Detail:     "malformed cloudflare api response",
		}
	}

	if len(env.Result) == 0 {
		return json.RawMessage("null"), nil
	}

	return env.Result, nil
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
