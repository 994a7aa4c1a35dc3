// internal/settlement/http_gateway.go
package settlement

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/redapplexx/cpay-sub003/internal/util"
)

const statusSettled = "SETTLED"

type settleResponse struct {
	Reference string    `json:"reference"`
	Status    string    `json:"status"`
	Reason    string    `json:"reason,omitempty"`
	SettledAt time.Time `json:"settled_at"`
}

// HTTPGateway posts instructions to a settlement provider's REST API.
type HTTPGateway struct {
	client *resty.Client
}

// NewHTTPGateway creates a gateway for the provider at baseURL. Retries are left
// to the provider's idempotency on transaction id, so the client does not retry.
func NewHTTPGateway(baseURL string, timeout time.Duration) *HTTPGateway {
	client := resty.New().
		SetBaseURL(strings.TrimSuffix(baseURL, "/")).
		SetTimeout(timeout).
		SetHeader("Accept", "application/json").
		SetHeader("User-Agent", "cpay-wallet-ledger")
	return &HTTPGateway{client: client}
}

func (g *HTTPGateway) Settle(ctx context.Context, in Instruction) (*Receipt, error) {
	var out settleResponse
	resp, err := g.client.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetHeader("Idempotency-Key", in.TransactionID.String()).
		SetBody(in).
		SetResult(&out).
		Post("/settlements")
	if err != nil {
		if isTimeout(ctx, err) {
			return nil, fmt.Errorf("settlement of %s: %w", in.TransactionID, util.ErrSettlementTimeout)
		}
		return nil, fmt.Errorf("settlement of %s: %v: %w", in.TransactionID, err, util.ErrExternalProviderFailure)
	}
	if !resp.IsSuccess() {
		return nil, fmt.Errorf("settlement of %s: provider returned %s: %w", in.TransactionID, resp.Status(), util.ErrExternalProviderFailure)
	}
	if out.Status != statusSettled {
		return nil, fmt.Errorf("settlement of %s: provider status %q %s: %w", in.TransactionID, out.Status, out.Reason, util.ErrExternalProviderFailure)
	}

	settledAt := out.SettledAt
	if settledAt.IsZero() {
		settledAt = time.Now()
	}
	return &Receipt{Reference: out.Reference, SettledAt: settledAt.UTC()}, nil
}

func isTimeout(ctx context.Context, err error) bool {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
