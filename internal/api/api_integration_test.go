// internal/api/api_integration_test.go
package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	app "github.com/redapplexx/cpay-sub003/internal"
	"github.com/redapplexx/cpay-sub003/internal/api/handler"
	"github.com/redapplexx/cpay-sub003/internal/api/middleware"
	"github.com/redapplexx/cpay-sub003/internal/domain"
	"github.com/redapplexx/cpay-sub003/internal/service"
)

const testSecret = "integration-test-secret"

// testApp is the global application instance for testing.
var testApp *app.Application

// testServer is the httptest server.
var testServer *httptest.Server

// TestMain boots the whole application on an in-memory sqlite database.
func TestMain(m *testing.M) {
	setupEnvVars()

	testApp = app.NewApplication()
	if err := testApp.Initialize(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize test application: %v\n", err)
		os.Exit(1)
	}

	testServer = httptest.NewServer(testApp.HTTPHandler)

	code := m.Run()

	testServer.Close()
	if err := testApp.Shutdown(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to shutdown test application: %v\n", err)
		os.Exit(1)
	}

	os.Exit(code)
}

func setupEnvVars() {
	os.Setenv("DB_DRIVER", "sqlite")
	os.Setenv("DB_PATH", ":memory:")
	os.Setenv("JWT_SECRET", testSecret)
	os.Setenv("LOG_LEVEL", "error")
	os.Setenv("REDIS_ADDR", "")
	os.Setenv("SETTLEMENT_URL", "")
	os.Setenv("SETTLEMENT_TIMEOUT", "2s")
}

// transactionView is the subset of a journal record the tests inspect.
type transactionView struct {
	ID            uuid.UUID       `json:"id"`
	Type          string          `json:"type"`
	Status        string          `json:"status"`
	Amount        decimal.Decimal `json:"amount"`
	Currency      string          `json:"currency"`
	FailureReason *string         `json:"failure_reason"`
}

type transactionEnvelope struct {
	Transaction transactionView `json:"transaction"`
	ChallengeID *uuid.UUID      `json:"challenge_id"`
	Duplicate   bool            `json:"duplicate"`
}

type errorEnvelope struct {
	Error       string           `json:"error"`
	Code        string           `json:"code"`
	Transaction *transactionView `json:"transaction"`
}

type registerResponse struct {
	Account struct {
		ID uuid.UUID `json:"id"`
	} `json:"account"`
	Token string `json:"token"`
}

type client struct {
	id    uuid.UUID
	token string
}

func do(t *testing.T, method, path, token string, body interface{}, headers map[string]string) (int, []byte) {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req, err := http.NewRequest(method, testServer.URL+path, reader)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, raw
}

func decode[T any](t *testing.T, raw []byte) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(raw, &v), string(raw))
	return v
}

func register(t *testing.T, prefix string, kind domain.AccountKind) client {
	t.Helper()
	handle := prefix + "-" + uuid.NewString()[:8]
	status, raw := do(t, http.MethodPost, "/accounts", "", map[string]interface{}{"handle": handle, "kind": kind}, nil)
	require.Equal(t, http.StatusCreated, status, string(raw))

	resp := decode[registerResponse](t, raw)
	require.NotEmpty(t, resp.Token)
	return client{id: resp.Account.ID, token: resp.Token}
}

func cashIn(t *testing.T, c client, amount string) {
	t.Helper()
	status, raw := do(t, http.MethodPost, "/cash-in", c.token, map[string]interface{}{
		"amount":           amount,
		"currency":         "PHP",
		"method":           domain.FundingMethodBankTransfer,
		"source_reference": "BDO-001",
	}, nil)
	require.Equal(t, http.StatusCreated, status, string(raw))
	env := decode[transactionEnvelope](t, raw)
	require.Equal(t, string(domain.TransactionStatusCompleted), env.Transaction.Status)
}

func balance(t *testing.T, c client, currency string) decimal.Decimal {
	t.Helper()
	status, raw := do(t, http.MethodGet, fmt.Sprintf("/accounts/%s/balances/%s", c.id, currency), c.token, nil, nil)
	require.Equal(t, http.StatusOK, status, string(raw))
	wallet := decode[struct {
		Balance decimal.Decimal `json:"balance"`
	}](t, raw)
	return wallet.Balance
}

func assertBalance(t *testing.T, c client, currency, want string) {
	t.Helper()
	got := balance(t, c, currency)
	assert.True(t, decimal.RequireFromString(want).Equal(got), "balance: want %s, got %s", want, got)
}

func TestHealth(t *testing.T) {
	status, raw := do(t, http.MethodGet, "/health", "", nil, nil)
	assert.Equal(t, http.StatusOK, status)
	assert.NotEmpty(t, raw)
}

func TestWriteTimeoutCoversCommit(t *testing.T) {
	assert.Greater(t, testApp.WriteTimeout(), handler.DefaultTimeout+2*time.Second)
}

func TestAuthentication(t *testing.T) {
	alice := register(t, "alice", domain.AccountKindUser)

	t.Run("MissingToken", func(t *testing.T) {
		status, _ := do(t, http.MethodGet, fmt.Sprintf("/accounts/%s/balances", alice.id), "", nil, nil)
		assert.Equal(t, http.StatusUnauthorized, status)
	})

	t.Run("ForgedToken", func(t *testing.T) {
		forged, err := middleware.IssueToken("another-secret", alice.id, middleware.RoleUser, time.Hour)
		require.NoError(t, err)
		status, _ := do(t, http.MethodGet, fmt.Sprintf("/accounts/%s/balances", alice.id), forged, nil, nil)
		assert.Equal(t, http.StatusUnauthorized, status)
	})

	t.Run("OtherAccountsBalances", func(t *testing.T) {
		bob := register(t, "bob", domain.AccountKindUser)
		status, raw := do(t, http.MethodGet, fmt.Sprintf("/accounts/%s/balances", alice.id), bob.token, nil, nil)
		assert.Equal(t, http.StatusForbidden, status)
		assert.Equal(t, "forbidden", decode[errorEnvelope](t, raw).Code)
	})

	t.Run("DuplicateHandle", func(t *testing.T) {
		handle := "carol-" + uuid.NewString()[:8]
		status, _ := do(t, http.MethodPost, "/accounts", "", map[string]interface{}{"handle": handle, "kind": domain.AccountKindUser}, nil)
		require.Equal(t, http.StatusCreated, status)
		status, _ = do(t, http.MethodPost, "/accounts", "", map[string]interface{}{"handle": handle, "kind": domain.AccountKindUser}, nil)
		assert.Equal(t, http.StatusConflict, status)
	})
}

func TestCashInAndQRPayment(t *testing.T) {
	payer := register(t, "payer", domain.AccountKindUser)
	merchant := register(t, "kiosk", domain.AccountKindMerchant)
	cashIn(t, payer, "1000")
	assertBalance(t, payer, "PHP", "1000")

	payload := service.MerchantQR{MerchantID: merchant.id, Reference: "order-42"}.String()
	body := map[string]interface{}{"payload": payload, "amount": "250.75", "currency": "PHP"}
	nonce := map[string]string{"Idempotency-Key": "qr-" + uuid.NewString()}

	status, raw := do(t, http.MethodPost, "/qr-payments", payer.token, body, nonce)
	require.Equal(t, http.StatusCreated, status, string(raw))
	first := decode[transactionEnvelope](t, raw)
	assert.Equal(t, string(domain.TransactionStatusCompleted), first.Transaction.Status)
	assertBalance(t, payer, "PHP", "749.25")
	assertBalance(t, merchant, "PHP", "250.75")

	t.Run("RetryIsIdempotent", func(t *testing.T) {
		status, raw := do(t, http.MethodPost, "/qr-payments", payer.token, body, nonce)
		require.Equal(t, http.StatusOK, status, string(raw))
		again := decode[transactionEnvelope](t, raw)
		assert.True(t, again.Duplicate)
		assert.Equal(t, first.Transaction.ID, again.Transaction.ID)
		assertBalance(t, payer, "PHP", "749.25")
	})

	t.Run("InsufficientFunds", func(t *testing.T) {
		status, raw := do(t, http.MethodPost, "/qr-payments", payer.token,
			map[string]interface{}{"payload": payload, "amount": "5000", "currency": "PHP"}, nil)
		require.Equal(t, http.StatusPaymentRequired, status, string(raw))
		env := decode[errorEnvelope](t, raw)
		assert.Equal(t, "insufficient_funds", env.Code)
		require.NotNil(t, env.Transaction)
		assert.Equal(t, string(domain.TransactionStatusFailed), env.Transaction.Status)
		assertBalance(t, payer, "PHP", "749.25")
	})

	t.Run("MalformedPayload", func(t *testing.T) {
		status, _ := do(t, http.MethodPost, "/qr-payments", payer.token,
			map[string]interface{}{"payload": "not-a-qr", "amount": "1", "currency": "PHP"}, nil)
		assert.Equal(t, http.StatusBadRequest, status)
	})

	t.Run("UnknownField", func(t *testing.T) {
		status, _ := do(t, http.MethodPost, "/qr-payments", payer.token,
			map[string]interface{}{"payload": payload, "amount": "1", "currency": "PHP", "tip": "5"}, nil)
		assert.Equal(t, http.StatusBadRequest, status)
	})

	t.Run("ReadTransaction", func(t *testing.T) {
		path := fmt.Sprintf("/transactions/%s/", first.Transaction.ID)
		status, raw := do(t, http.MethodGet, path, merchant.token, nil, nil)
		require.Equal(t, http.StatusOK, status, string(raw))

		stranger := register(t, "stranger", domain.AccountKindUser)
		status, _ = do(t, http.MethodGet, path, stranger.token, nil, nil)
		assert.Equal(t, http.StatusForbidden, status)
	})
}

func TestP2PTransferFlow(t *testing.T) {
	alice := register(t, "alice", domain.AccountKindUser)
	bob := register(t, "bob", domain.AccountKindUser)
	cashIn(t, alice, "30000")

	t.Run("AwaitsConfirmationThenCancel", func(t *testing.T) {
		status, raw := do(t, http.MethodPost, "/transfers/p2p", alice.token,
			map[string]interface{}{"recipient": bob.id.String(), "amount": "100", "currency": "PHP"}, nil)
		require.Equal(t, http.StatusAccepted, status, string(raw))
		env := decode[transactionEnvelope](t, raw)
		assert.Equal(t, string(domain.TransactionStatusAwaitingConfirmation), env.Transaction.Status)
		require.NotNil(t, env.ChallengeID)

		status, raw = do(t, http.MethodPost, fmt.Sprintf("/transactions/%s/confirm", env.Transaction.ID), alice.token,
			map[string]interface{}{"code": "not-the-code"}, nil)
		assert.Equal(t, http.StatusUnprocessableEntity, status, string(raw))

		status, raw = do(t, http.MethodPost, fmt.Sprintf("/transactions/%s/cancel", env.Transaction.ID), alice.token, nil, nil)
		require.Equal(t, http.StatusOK, status, string(raw))
		assert.Equal(t, string(domain.TransactionStatusCancelled), decode[transactionView](t, raw).Status)
		assertBalance(t, alice, "PHP", "30000")
	})

	t.Run("HeldForReviewAndReleased", func(t *testing.T) {
		status, raw := do(t, http.MethodPost, "/transfers/p2p", alice.token,
			map[string]interface{}{"recipient": bob.id.String(), "amount": "20000", "currency": "PHP"}, nil)
		require.Equal(t, http.StatusAccepted, status, string(raw))
		env := decode[transactionEnvelope](t, raw)
		assert.Equal(t, string(domain.TransactionStatusHeld), env.Transaction.Status)
		releasePath := fmt.Sprintf("/transactions/%s/release", env.Transaction.ID)

		status, _ = do(t, http.MethodPost, releasePath, alice.token, map[string]interface{}{"approve": true}, nil)
		assert.Equal(t, http.StatusForbidden, status)

		reviewer, err := middleware.IssueToken(testSecret, uuid.New(), middleware.RoleCompliance, time.Hour)
		require.NoError(t, err)
		status, raw = do(t, http.MethodPost, releasePath, reviewer, map[string]interface{}{"approve": false, "note": "kyc mismatch"}, nil)
		require.Equal(t, http.StatusOK, status, string(raw))
		released := decode[transactionEnvelope](t, raw)
		assert.Equal(t, string(domain.TransactionStatusFailed), released.Transaction.Status)
		assertBalance(t, alice, "PHP", "30000")
	})

	t.Run("SelfPayment", func(t *testing.T) {
		status, raw := do(t, http.MethodPost, "/transfers/p2p", alice.token,
			map[string]interface{}{"recipient": alice.id.String(), "amount": "1", "currency": "PHP"}, nil)
		assert.Equal(t, http.StatusBadRequest, status)
		assert.Equal(t, "self_payment", decode[errorEnvelope](t, raw).Code)
	})

	t.Run("History", func(t *testing.T) {
		status, raw := do(t, http.MethodGet, fmt.Sprintf("/accounts/%s/transactions?limit=2", alice.id), alice.token, nil, nil)
		require.Equal(t, http.StatusOK, status, string(raw))
		page := decode[struct {
			Data       []transactionView `json:"data"`
			NextCursor string            `json:"next_cursor"`
		}](t, raw)
		assert.Len(t, page.Data, 2)
		assert.NotEmpty(t, page.NextCursor)

		status, raw = do(t, http.MethodGet, fmt.Sprintf("/accounts/%s/transactions?limit=10&cursor=%s", alice.id, page.NextCursor), alice.token, nil, nil)
		require.Equal(t, http.StatusOK, status, string(raw))
		rest := decode[struct {
			Data []transactionView `json:"data"`
		}](t, raw)
		// cash-in, cancelled transfer, released transfer
		assert.Len(t, rest.Data, 1)
	})
}

func TestComplianceAccountControls(t *testing.T) {
	alice := register(t, "alice", domain.AccountKindUser)
	bob := register(t, "bob", domain.AccountKindUser)
	cashIn(t, alice, "500")
	reviewer, err := middleware.IssueToken(testSecret, uuid.New(), middleware.RoleCompliance, time.Hour)
	require.NoError(t, err)
	archivePath := fmt.Sprintf("/accounts/%s/archive", bob.id)
	scorePath := fmt.Sprintf("/accounts/%s/risk-score", alice.id)

	t.Run("UsersCannotArchive", func(t *testing.T) {
		status, _ := do(t, http.MethodPost, archivePath, bob.token, nil, nil)
		assert.Equal(t, http.StatusForbidden, status)
	})

	t.Run("UsersCannotScore", func(t *testing.T) {
		status, _ := do(t, http.MethodPut, scorePath, alice.token, map[string]interface{}{"risk_score": 0}, nil)
		assert.Equal(t, http.StatusForbidden, status)
	})

	t.Run("ScoreValidation", func(t *testing.T) {
		status, _ := do(t, http.MethodPut, scorePath, reviewer, map[string]interface{}{}, nil)
		assert.Equal(t, http.StatusBadRequest, status)
		status, _ = do(t, http.MethodPut, scorePath, reviewer, map[string]interface{}{"risk_score": 3}, nil)
		assert.Equal(t, http.StatusBadRequest, status)
	})

	t.Run("ArchivedRecipient", func(t *testing.T) {
		status, raw := do(t, http.MethodPost, archivePath, reviewer, nil, nil)
		require.Equal(t, http.StatusOK, status, string(raw))
		assert.NotNil(t, decode[map[string]interface{}](t, raw)["archived_at"])

		status, raw = do(t, http.MethodPost, "/transfers/p2p", alice.token,
			map[string]interface{}{"recipient": bob.id.String(), "amount": "10", "currency": "PHP"}, nil)
		assert.Equal(t, http.StatusNotFound, status)
		assert.Equal(t, "recipient_not_found", decode[errorEnvelope](t, raw).Code)
	})

	t.Run("RaisedScoreHolds", func(t *testing.T) {
		carol := register(t, "carol", domain.AccountKindUser)
		status, raw := do(t, http.MethodPut, scorePath, reviewer, map[string]interface{}{"risk_score": 0.99}, nil)
		require.Equal(t, http.StatusOK, status, string(raw))

		status, raw = do(t, http.MethodPost, "/transfers/p2p", alice.token,
			map[string]interface{}{"recipient": carol.id.String(), "amount": "10", "currency": "PHP"}, nil)
		require.Equal(t, http.StatusAccepted, status, string(raw))
		assert.Equal(t, string(domain.TransactionStatusHeld), decode[transactionEnvelope](t, raw).Transaction.Status)
		assertBalance(t, alice, "PHP", "500")
	})
}

func TestFxQuote(t *testing.T) {
	status, raw := do(t, http.MethodGet, "/fx/quote?amount=100&from=USD&to=PHP", "", nil, nil)
	require.Equal(t, http.StatusOK, status, string(raw))
	quote := decode[map[string]interface{}](t, raw)
	assert.Equal(t, "USD", quote["source_currency"])

	status, _ = do(t, http.MethodGet, "/fx/quote?amount=100&from=USD&to=XYZ", "", nil, nil)
	assert.Equal(t, http.StatusBadRequest, status)
}
