// Package upi builds UPI deep links and QR code URLs for manual payment
// collection. There is no PSP integration; the payer scans the QR or opens
// the deep link in their UPI app and transfers directly to the payee VPA.
package upi

import (
	"fmt"
	"net/url"

	"github.com/shopspring/decimal"
)

const qrServiceBase = "https://api.qrserver.com/v1/create-qr-code/"

// Payment describes a single UPI collect request.
type Payment struct {
	PayeeVPA  string
	PayeeName string
	Amount    decimal.Decimal
	Currency  string
	Note      string
}

// DeepLink renders the upi://pay URI understood by UPI apps.
func DeepLink(p Payment) (string, error) {
	if p.PayeeVPA == "" {
		return "", fmt.Errorf("payee vpa is required")
	}
	if p.Amount.IsNegative() {
		return "", fmt.Errorf("amount must not be negative")
	}
	currency := p.Currency
	if currency == "" {
		currency = "INR"
	}

	q := url.Values{}
	q.Set("pa", p.PayeeVPA)
	if p.PayeeName != "" {
		q.Set("pn", p.PayeeName)
	}
	q.Set("am", p.Amount.StringFixed(2))
	if p.Note != "" {
		q.Set("tn", p.Note)
	}
	q.Set("cu", currency)

	return "upi://pay?" + q.Encode(), nil
}

// QRCodeURL returns a hosted QR image encoding the deep link for p.
func QRCodeURL(p Payment) (string, error) {
	link, err := DeepLink(p)
	if err != nil {
		return "", err
	}
	q := url.Values{}
	q.Set("size", "300x300")
	q.Set("data", link)
	return qrServiceBase + "?" + q.Encode(), nil
}
