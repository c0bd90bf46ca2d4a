package payment

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clinova/booking-api/internal/model"
	apperrors "github.com/clinova/booking-api/pkg/errors"
)

const (
	testMerchantID = "merchant-123"
	testSecret     = "p_key_secret"
)

// fakePaymentRepo mimics the transactional finalization guards: the first
// terminal outcome wins, everything after reports AlreadyFinalized.
type fakePaymentRepo struct {
	mu       sync.Mutex
	sessions map[uuid.UUID]*model.PaymentSession
	invoices map[uuid.UUID]int
	applied  []*model.OutcomeRecord
}

func newFakePaymentRepo() *fakePaymentRepo {
	return &fakePaymentRepo{
		sessions: make(map[uuid.UUID]*model.PaymentSession),
		invoices: make(map[uuid.UUID]int),
	}
}

func (f *fakePaymentRepo) addPendingSession(appointmentID uuid.UUID) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sessions[appointmentID] = &model.PaymentSession{
		ID:            uuid.New(),
		AppointmentID: appointmentID,
		Status:        model.PaymentSessionStatusPending,
		AmountCents:   150000,
		Currency:      "COP",
	}
}

func (f *fakePaymentRepo) GetSessionByAppointment(_ context.Context, appointmentID uuid.UUID) (*model.PaymentSession, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	session, ok := f.sessions[appointmentID]
	if !ok {
		return nil, apperrors.NotFound("payment session not found")
	}
	return session, nil
}

func (f *fakePaymentRepo) ListStalePending(_ context.Context, olderThan time.Time, limit int) ([]*model.PaymentSession, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	sessions := make([]*model.PaymentSession, 0)
	for _, s := range f.sessions {
		if s.Status == model.PaymentSessionStatusPending && s.CreatedAt.Before(olderThan) && len(sessions) < limit {
			sessions = append(sessions, s)
		}
	}
	return sessions, nil
}

func (f *fakePaymentRepo) ApplyOutcome(_ context.Context, rec *model.OutcomeRecord) (model.ApplyResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	session, ok := f.sessions[rec.AppointmentID]
	if !ok {
		return model.ApplyResultNotFound, nil
	}
	if session.Status.Terminal() {
		return model.ApplyResultAlreadyFinalized, nil
	}

	session.Status = rec.Outcome.SessionStatus()
	f.applied = append(f.applied, rec)
	if rec.Outcome == model.OutcomeApproved {
		f.invoices[rec.AppointmentID]++
	}
	return model.ApplyResultApplied, nil
}

func (f *fakePaymentRepo) GetInvoiceByAppointment(_ context.Context, appointmentID uuid.UUID) (*model.Invoice, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.invoices[appointmentID] == 0 {
		return nil, apperrors.NotFound("invoice not found")
	}
	return &model.Invoice{}, nil
}

func (f *fakePaymentRepo) CreateInvoiceForAppointment(_ context.Context, appointment *model.Appointment, _ model.PaymentMethod, _ string) (*model.Invoice, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.invoices[appointment.ID]++
	return &model.Invoice{}, nil
}

type recordingNotifier struct {
	mu    sync.Mutex
	calls []model.GatewayOutcome
}

func (n *recordingNotifier) PaymentOutcome(_ context.Context, _ uuid.UUID, outcome model.GatewayOutcome) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.calls = append(n.calls, outcome)
}

func newTestService(repo *fakePaymentRepo, notifier Notifier) *Service {
	return NewService(repo, notifier, nil, nil, testMerchantID, testSecret)
}

func signedPayload(appointmentID uuid.UUID, code string) *WebhookPayload {
	p := &WebhookPayload{
		RefPayco:      "ref-100",
		TransactionID: "tx-100",
		CodResponse:   code,
		Amount:        "1500.00",
		CurrencyCode:  "COP",
		Extra1:        appointmentID.String(),
	}
	p.Signature = ComputeSignature(testMerchantID, testSecret, p.RefPayco, p.TransactionID, p.Amount, p.CurrencyCode)
	return p
}

func TestVerifySignature(t *testing.T) {
	svc := newTestService(newFakePaymentRepo(), nil)
	payload := signedPayload(uuid.New(), "1")

	assert.True(t, svc.VerifySignature(payload))

	payload.Amount = "9999.00"
	assert.False(t, svc.VerifySignature(payload))

	payload.Signature = ""
	assert.False(t, svc.VerifySignature(payload))
}

func TestHandleWebhook_TamperedPayloadChangesNothing(t *testing.T) {
	repo := newFakePaymentRepo()
	appointmentID := uuid.New()
	repo.addPendingSession(appointmentID)
	svc := newTestService(repo, nil)

	payload := signedPayload(appointmentID, "1")
	payload.Amount = "0.01"

	_, err := svc.HandleWebhook(context.Background(), payload)
	require.Error(t, err)
	assert.True(t, apperrors.Is(err, apperrors.ErrSecurity))

	session, err := repo.GetSessionByAppointment(context.Background(), appointmentID)
	require.NoError(t, err)
	assert.Equal(t, model.PaymentSessionStatusPending, session.Status)
	assert.Empty(t, repo.applied)
}

func TestHandleWebhook_ApprovedSchedulesAndBillsOnce(t *testing.T) {
	repo := newFakePaymentRepo()
	appointmentID := uuid.New()
	repo.addPendingSession(appointmentID)
	notifier := &recordingNotifier{}
	svc := newTestService(repo, notifier)

	result, err := svc.HandleWebhook(context.Background(), signedPayload(appointmentID, "1"))
	require.NoError(t, err)
	assert.Equal(t, model.ApplyResultApplied, result)
	assert.Equal(t, 1, repo.invoices[appointmentID])
	assert.Equal(t, []model.GatewayOutcome{model.OutcomeApproved}, notifier.calls)

	// Redelivery of the same webhook is a no-op.
	result, err = svc.HandleWebhook(context.Background(), signedPayload(appointmentID, "1"))
	require.NoError(t, err)
	assert.Equal(t, model.ApplyResultAlreadyFinalized, result)
	assert.Equal(t, 1, repo.invoices[appointmentID])
	assert.Len(t, notifier.calls, 1)
}

func TestHandleWebhook_RejectedCancelsWithoutBilling(t *testing.T) {
	repo := newFakePaymentRepo()
	appointmentID := uuid.New()
	repo.addPendingSession(appointmentID)
	svc := newTestService(repo, nil)

	result, err := svc.HandleWebhook(context.Background(), signedPayload(appointmentID, "2"))
	require.NoError(t, err)
	assert.Equal(t, model.ApplyResultApplied, result)
	assert.Equal(t, 0, repo.invoices[appointmentID])

	session, err := repo.GetSessionByAppointment(context.Background(), appointmentID)
	require.NoError(t, err)
	assert.Equal(t, model.PaymentSessionStatusRejected, session.Status)
}

func TestHandleWebhook_PendingCodeIsIgnored(t *testing.T) {
	repo := newFakePaymentRepo()
	appointmentID := uuid.New()
	repo.addPendingSession(appointmentID)
	svc := newTestService(repo, nil)

	result, err := svc.HandleWebhook(context.Background(), signedPayload(appointmentID, "3"))
	require.NoError(t, err)
	assert.Equal(t, model.ApplyResultIgnoredNonTerminal, result)
	assert.Empty(t, repo.applied)
}

func TestHandleWebhook_UnknownCodeStaysPending(t *testing.T) {
	repo := newFakePaymentRepo()
	appointmentID := uuid.New()
	repo.addPendingSession(appointmentID)
	svc := newTestService(repo, nil)

	result, err := svc.HandleWebhook(context.Background(), signedPayload(appointmentID, "77"))
	require.NoError(t, err)
	assert.Equal(t, model.ApplyResultIgnoredNonTerminal, result)

	session, err := repo.GetSessionByAppointment(context.Background(), appointmentID)
	require.NoError(t, err)
	assert.Equal(t, model.PaymentSessionStatusPending, session.Status)
}

func TestApply_CompetingDeliveriesFirstWins(t *testing.T) {
	repo := newFakePaymentRepo()
	appointmentID := uuid.New()
	repo.addPendingSession(appointmentID)
	svc := newTestService(repo, nil)

	// Approved lands first via polling, the rejected webhook arrives later.
	first, err := svc.Apply(context.Background(), &model.OutcomeRecord{
		AppointmentID: appointmentID,
		Outcome:       model.OutcomeApproved,
	})
	require.NoError(t, err)
	assert.Equal(t, model.ApplyResultApplied, first)

	second, err := svc.Apply(context.Background(), &model.OutcomeRecord{
		AppointmentID: appointmentID,
		Outcome:       model.OutcomeRejected,
	})
	require.NoError(t, err)
	assert.Equal(t, model.ApplyResultAlreadyFinalized, second)

	session, err := repo.GetSessionByAppointment(context.Background(), appointmentID)
	require.NoError(t, err)
	assert.Equal(t, model.PaymentSessionStatusApproved, session.Status)
	assert.Equal(t, 1, repo.invoices[appointmentID])
}

func TestApply_UnknownAppointment(t *testing.T) {
	svc := newTestService(newFakePaymentRepo(), nil)

	result, err := svc.Apply(context.Background(), &model.OutcomeRecord{
		AppointmentID: uuid.New(),
		Outcome:       model.OutcomeApproved,
	})
	require.NoError(t, err)
	assert.Equal(t, model.ApplyResultNotFound, result)
}

func TestOutcomeFromCode(t *testing.T) {
	assert.Equal(t, model.OutcomeApproved, model.OutcomeFromCode("1"))
	assert.Equal(t, model.OutcomeRejected, model.OutcomeFromCode("2"))
	assert.Equal(t, model.OutcomePending, model.OutcomeFromCode("3"))
	assert.Equal(t, model.OutcomeFailed, model.OutcomeFromCode("4"))
	assert.Equal(t, model.OutcomeUnknown, model.OutcomeFromCode("5"))
	assert.Equal(t, model.OutcomeUnknown, model.OutcomeFromCode(""))
}
