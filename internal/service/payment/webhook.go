package payment

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
)

// WebhookPayload is the gateway confirmation, delivered as JSON on POST or as
// query parameters on GET.
type WebhookPayload struct {
	RefPayco       string `json:"x_ref_payco" form:"x_ref_payco"`
	TransactionID  string `json:"x_transaction_id" form:"x_transaction_id"`
	CodResponse    string `json:"x_cod_response" form:"x_cod_response"`
	ResponseReason string `json:"x_response_reason_text" form:"x_response_reason_text"`
	Amount         string `json:"x_amount" form:"x_amount"`
	CurrencyCode   string `json:"x_currency_code" form:"x_currency_code"`
	Extra1         string `json:"x_extra1" form:"x_extra1"`
	Extra2         string `json:"x_extra2" form:"x_extra2"`
	Signature      string `json:"x_signature" form:"x_signature"`
}

// VerifySignature checks the payload against
// SHA256(merchantID^secret^ref^txID^amount^currency).
func (s *Service) VerifySignature(p *WebhookPayload) bool {
	if p.Signature == "" {
		return false
	}
	expected := ComputeSignature(s.merchantID, s.secret, p.RefPayco, p.TransactionID, p.Amount, p.CurrencyCode)
	return subtle.ConstantTimeCompare([]byte(expected), []byte(p.Signature)) == 1
}

// ComputeSignature builds the webhook signature the gateway uses.
func ComputeSignature(merchantID, secret, ref, txID, amount, currency string) string {
	payload := fmt.Sprintf("%s^%s^%s^%s^%s^%s", merchantID, secret, ref, txID, amount, currency)
	sum := sha256.Sum256([]byte(payload))
	return hex.EncodeToString(sum[:])
}
