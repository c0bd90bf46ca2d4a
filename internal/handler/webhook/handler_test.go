package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clinova/booking-api/internal/model"
	"github.com/clinova/booking-api/internal/service/payment"
	apperrors "github.com/clinova/booking-api/pkg/errors"
)

const (
	merchantID = "merchant-1"
	secret     = "p_key"
)

type stubPaymentRepo struct {
	sessions map[uuid.UUID]*model.PaymentSession
}

func (s *stubPaymentRepo) GetSessionByAppointment(_ context.Context, id uuid.UUID) (*model.PaymentSession, error) {
	session, ok := s.sessions[id]
	if !ok {
		return nil, apperrors.NotFound("payment session not found")
	}
	return session, nil
}

func (s *stubPaymentRepo) ListStalePending(_ context.Context, _ time.Time, _ int) ([]*model.PaymentSession, error) {
	return nil, nil
}

func (s *stubPaymentRepo) ApplyOutcome(_ context.Context, rec *model.OutcomeRecord) (model.ApplyResult, error) {
	session, ok := s.sessions[rec.AppointmentID]
	if !ok {
		return model.ApplyResultNotFound, nil
	}
	if session.Status.Terminal() {
		return model.ApplyResultAlreadyFinalized, nil
	}
	session.Status = rec.Outcome.SessionStatus()
	return model.ApplyResultApplied, nil
}

func (s *stubPaymentRepo) GetInvoiceByAppointment(_ context.Context, _ uuid.UUID) (*model.Invoice, error) {
	return nil, apperrors.NotFound("invoice not found")
}

func (s *stubPaymentRepo) CreateInvoiceForAppointment(_ context.Context, _ *model.Appointment, _ model.PaymentMethod, _ string) (*model.Invoice, error) {
	return &model.Invoice{}, nil
}

func setupRouter(repo *stubPaymentRepo) *gin.Engine {
	gin.SetMode(gin.TestMode)
	svc := payment.NewService(repo, nil, nil, nil, merchantID, secret)
	engine := gin.New()
	NewHandler(svc).RegisterRoutes(engine.Group("/api/v1"))
	return engine
}

func signedBody(appointmentID uuid.UUID, code string) map[string]string {
	body := map[string]string{
		"x_ref_payco":      "ref-1",
		"x_transaction_id": "tx-1",
		"x_cod_response":   code,
		"x_amount":         "1500.00",
		"x_currency_code":  "COP",
		"x_extra1":         appointmentID.String(),
	}
	body["x_signature"] = payment.ComputeSignature(merchantID, secret, body["x_ref_payco"], body["x_transaction_id"], body["x_amount"], body["x_currency_code"])
	return body
}

func postWebhook(t *testing.T, engine *gin.Engine, body map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	payload, err := json.Marshal(body)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/payments/webhooks/gateway", bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	engine.ServeHTTP(w, req)
	return w
}

func TestHandle_ValidWebhook(t *testing.T) {
	appointmentID := uuid.New()
	repo := &stubPaymentRepo{sessions: map[uuid.UUID]*model.PaymentSession{
		appointmentID: {AppointmentID: appointmentID, Status: model.PaymentSessionStatusPending},
	}}
	engine := setupRouter(repo)

	w := postWebhook(t, engine, signedBody(appointmentID, "1"))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "applied")
	assert.Equal(t, model.PaymentSessionStatusApproved, repo.sessions[appointmentID].Status)
}

func TestHandle_BadSignatureStillAcked(t *testing.T) {
	appointmentID := uuid.New()
	repo := &stubPaymentRepo{sessions: map[uuid.UUID]*model.PaymentSession{
		appointmentID: {AppointmentID: appointmentID, Status: model.PaymentSessionStatusPending},
	}}
	engine := setupRouter(repo)

	body := signedBody(appointmentID, "1")
	body["x_signature"] = "tampered"
	w := postWebhook(t, engine, body)

	// The gateway gets 200 so it stops retrying; the delivery is discarded.
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "discarded")
	assert.Equal(t, model.PaymentSessionStatusPending, repo.sessions[appointmentID].Status)
}

func TestHandle_GetDeliveryWithQueryParams(t *testing.T) {
	appointmentID := uuid.New()
	repo := &stubPaymentRepo{sessions: map[uuid.UUID]*model.PaymentSession{
		appointmentID: {AppointmentID: appointmentID, Status: model.PaymentSessionStatusPending},
	}}
	engine := setupRouter(repo)

	body := signedBody(appointmentID, "2")
	req := httptest.NewRequest(http.MethodGet, "/api/v1/payments/webhooks/gateway", nil)
	q := req.URL.Query()
	for k, v := range body {
		q.Set(k, v)
	}
	req.URL.RawQuery = q.Encode()
	w := httptest.NewRecorder()
	engine.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, model.PaymentSessionStatusRejected, repo.sessions[appointmentID].Status)
}

func TestHandle_RedeliveryIsIdempotent(t *testing.T) {
	appointmentID := uuid.New()
	repo := &stubPaymentRepo{sessions: map[uuid.UUID]*model.PaymentSession{
		appointmentID: {AppointmentID: appointmentID, Status: model.PaymentSessionStatusPending},
	}}
	engine := setupRouter(repo)

	first := postWebhook(t, engine, signedBody(appointmentID, "1"))
	assert.Contains(t, first.Body.String(), "applied")

	second := postWebhook(t, engine, signedBody(appointmentID, "1"))
	assert.Equal(t, http.StatusOK, second.Code)
	assert.Contains(t, second.Body.String(), "already_finalized")
}

func TestHandle_UnparseablePayload(t *testing.T) {
	engine := setupRouter(&stubPaymentRepo{sessions: map[uuid.UUID]*model.PaymentSession{}})

	req := httptest.NewRequest(http.MethodPost, "/api/v1/payments/webhooks/gateway", bytes.NewReader([]byte("{not json")))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	engine.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHandle_UnknownAppointmentAcked(t *testing.T) {
	engine := setupRouter(&stubPaymentRepo{sessions: map[uuid.UUID]*model.PaymentSession{}})

	w := postWebhook(t, engine, signedBody(uuid.New(), "1"))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "not_found")
}
