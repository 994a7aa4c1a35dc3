// internal/service/qr.go
package service

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/redapplexx/cpay-sub003/internal/util"
)

const (
	qrScheme = "walletqr"
	qrAction = "pay"
)

// MerchantQR is a decoded merchant QR payload of the form
// walletqr://pay?merchant=<uuid>&ref=<reference>&amount=<decimal>&currency=<code>.
// Only merchant is mandatory.
type MerchantQR struct {
	MerchantID uuid.UUID
	Reference  string
	Amount     *decimal.Decimal
	Currency   string
}

// String encodes the payload.
func (q MerchantQR) String() string {
	values := url.Values{}
	values.Set("merchant", q.MerchantID.String())
	if q.Reference != "" {
		values.Set("ref", q.Reference)
	}
	if q.Amount != nil {
		values.Set("amount", q.Amount.String())
	}
	if q.Currency != "" {
		values.Set("currency", q.Currency)
	}
	return (&url.URL{Scheme: qrScheme, Host: qrAction, RawQuery: values.Encode()}).String()
}

// ParseMerchantQR decodes a merchant QR payload.
func ParseMerchantQR(payload string) (*MerchantQR, error) {
	u, err := url.Parse(strings.TrimSpace(payload))
	if err != nil {
		return nil, fmt.Errorf("%w: malformed QR payload", util.ErrInvalidInput)
	}
	if u.Scheme != qrScheme || u.Host != qrAction {
		return nil, fmt.Errorf("%w: not a merchant payment QR", util.ErrInvalidInput)
	}

	query := u.Query()
	merchantID, err := uuid.Parse(query.Get("merchant"))
	if err != nil {
		return nil, fmt.Errorf("%w: QR payload has no valid merchant", util.ErrInvalidInput)
	}
	qr := &MerchantQR{
		MerchantID: merchantID,
		Reference:  query.Get("ref"),
		Currency:   strings.ToUpper(query.Get("currency")),
	}
	if raw := query.Get("amount"); raw != "" {
		amount, err := decimal.NewFromString(raw)
		if err != nil {
			return nil, fmt.Errorf("%w: QR amount %q", util.ErrInvalidInput, raw)
		}
		qr.Amount = &amount
	}
	return qr, nil
}
