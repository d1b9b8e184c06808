package upstream

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/2beens/cfdnsadmin/internal/telemetry/tracing"

	"github.com/cloudflare/cloudflare-go/v4"
	"github.com/cloudflare/cloudflare-go/v4/option"
	log "github.com/sirupsen/logrus"
)

const tokenStatusActive = "active"

// VerifyNewToken checks a candidate api token against /user/tokens/verify
// before it is stored. A nil error means the token is active.
func (g *Gateway) VerifyNewToken(ctx context.Context, token string) (err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "cloudflare.verify_token")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()

	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	client := cloudflare.NewClient(
		option.WithAPIToken(token),
		option.WithBaseURL(g.baseURL+"/"),
		option.WithHTTPClient(g.httpClient),
		option.WithMaxRetries(0),
		// the sdk also picks up CLOUDFLARE_API_KEY and friends from the environment
		option.WithHeaderDel("X-Auth-Key"),
		option.WithHeaderDel("X-Auth-Email"),
		option.WithHeaderDel("X-Auth-User-Service-Key"),
	)

	begin := time.Now()
	resp, err := client.User.Tokens.Verify(ctx)
	if err != nil {
		verr := classifyVerifyError(err)
		g.observeVerify(fmt.Sprint(verr.StatusCode), begin)
		log.Debugf("token verification failed: %s", verr)
		return verr
	}
	g.observeVerify("200", begin)

	if string(resp.Status) != tokenStatusActive {
		return &VerificationError{
			Reason:     ReasonInvalidToken,
			StatusCode: http.StatusOK,
			Err:        fmt.Errorf("token status is %s", resp.Status),
		}
	}

	return nil
}

func (g *Gateway) observeVerify(status string, begin time.Time) {
	if g.metricsManager == nil {
		return
	}
	g.metricsManager.CounterUpstreamCalls.WithLabelValues("verify_token", status).Inc()
	g.metricsManager.HistogramUpstreamDuration.WithLabelValues("verify_token").Observe(time.Since(begin).Seconds())
}

func classifyVerifyError(err error) *VerificationError {
	if isTimeout(err) {
		return &VerificationError{Reason: ReasonTimeout, Err: ErrTimeout}
	}

	var apiErr *cloudflare.Error
	if !errors.As(err, &apiErr) {
		return &VerificationError{
			Reason:     ReasonUpstream,
			StatusCode: networkFailureStatus,
			Err:        errors.New("failed to reach the cloudflare api"),
		}
	}

	verr := &VerificationError{
		StatusCode: apiErr.StatusCode,
		Err:        fmt.Errorf("cloudflare api responded with %d", apiErr.StatusCode),
	}
	switch apiErr.StatusCode {
	case http.StatusUnauthorized:
		verr.Reason = ReasonInvalidToken
	case http.StatusForbidden:
		verr.Reason = ReasonInsufficientPermission
	case http.StatusBadRequest:
		verr.Reason = ReasonWrongTokenType
	default:
		verr.Reason = ReasonUpstream
	}
	return verr
}
