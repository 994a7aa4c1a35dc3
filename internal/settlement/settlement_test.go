// internal/settlement/settlement_test.go
package settlement

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/redapplexx/cpay-sub003/internal/domain"
	"github.com/redapplexx/cpay-sub003/internal/util"
)

func testInstruction() Instruction {
	return Instruction{
		TransactionID: uuid.New(),
		Channel:       domain.TransactionTypeCashOut,
		Direction:     DirectionPayout,
		Amount:        decimal.RequireFromString("250.00"),
		Currency:      "PHP",
		Method:        domain.FundingMethodBankTransfer,
		Counterparty:  "0012-3456-78",
	}
}

func TestHTTPGateway(t *testing.T) {
	t.Run("Settled", func(t *testing.T) {
		in := testInstruction()
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, http.MethodPost, r.Method)
			assert.Equal(t, "/settlements", r.URL.Path)
			assert.Equal(t, in.TransactionID.String(), r.Header.Get("Idempotency-Key"))

			var got Instruction
			require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
			assert.True(t, in.Amount.Equal(got.Amount))
			assert.Equal(t, DirectionPayout, got.Direction)

			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"reference":"PRV-1","status":"SETTLED","settled_at":"2026-01-02T03:04:05Z"}`))
		}))
		defer server.Close()

		receipt, err := NewHTTPGateway(server.URL+"/", time.Second).Settle(context.Background(), in)
		require.NoError(t, err)
		assert.Equal(t, "PRV-1", receipt.Reference)
		assert.Equal(t, time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC), receipt.SettledAt)
	})

	t.Run("Rejected", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"reference":"PRV-2","status":"REJECTED","reason":"account closed"}`))
		}))
		defer server.Close()

		_, err := NewHTTPGateway(server.URL, time.Second).Settle(context.Background(), testInstruction())
		assert.ErrorIs(t, err, util.ErrExternalProviderFailure)
		assert.NotErrorIs(t, err, util.ErrSettlementTimeout)
	})

	t.Run("ServerError", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadGateway)
		}))
		defer server.Close()

		_, err := NewHTTPGateway(server.URL, time.Second).Settle(context.Background(), testInstruction())
		assert.ErrorIs(t, err, util.ErrExternalProviderFailure)
	})

	t.Run("Timeout", func(t *testing.T) {
		release := make(chan struct{})
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			select {
			case <-release:
			case <-r.Context().Done():
			}
		}))
		defer server.Close()
		defer close(release)

		ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
		defer cancel()
		_, err := NewHTTPGateway(server.URL, 5*time.Second).Settle(ctx, testInstruction())
		assert.ErrorIs(t, err, util.ErrSettlementTimeout)
		assert.ErrorIs(t, err, util.ErrExternalProviderFailure)
	})
}

func TestSimulatedGateway(t *testing.T) {
	g := NewSimulatedGateway(time.Millisecond)

	receipt, err := g.Settle(context.Background(), testInstruction())
	require.NoError(t, err)
	assert.NotEmpty(t, receipt.Reference)

	g.SetOutcome(OutcomeReject)
	_, err = g.Settle(context.Background(), testInstruction())
	assert.ErrorIs(t, err, util.ErrExternalProviderFailure)
	assert.NotErrorIs(t, err, util.ErrSettlementTimeout)

	g.SetOutcome(OutcomeTimeout)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, err = g.Settle(ctx, testInstruction())
	assert.ErrorIs(t, err, util.ErrSettlementTimeout)

	assert.Len(t, g.Calls(), 3)
}
