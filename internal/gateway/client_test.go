package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clinova/booking-api/internal/model"
)

type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time { return c.now }

func (c *fakeClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

func newTestClient(t *testing.T, baseURL string, clock *fakeClock) *Client {
	t.Helper()
	client, err := NewClient(Config{
		BaseURL:    baseURL,
		PublicKey:  "pub_test",
		PrivateKey: "priv_test",
		TestMode:   true,
		TokenTTL:   10 * time.Minute,
	}, nil, nil, WithClock(clock.Now))
	require.NoError(t, err)
	return client
}

func TestNewClient_RequiresCredentials(t *testing.T) {
	_, err := NewClient(Config{}, nil, nil)
	assert.ErrorIs(t, err, ErrAuth)
}

func TestToken_CachedUntilMarginExpires(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		user, pass, ok := r.BasicAuth()
		require.True(t, ok)
		assert.Equal(t, "pub_test", user)
		assert.Equal(t, "priv_test", pass)
		json.NewEncoder(w).Encode(map[string]string{"token": "tok-1"})
	}))
	defer srv.Close()

	clock := &fakeClock{now: time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)}
	client := newTestClient(t, srv.URL, clock)

	token, err := client.Token(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "tok-1", token)

	// Still inside the 9-minute cache window.
	clock.Advance(8 * time.Minute)
	_, err = client.Token(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))

	// Past 90% of the TTL the token is re-fetched.
	clock.Advance(2 * time.Minute)
	_, err = client.Token(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func TestToken_RejectedCredentials(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	clock := &fakeClock{now: time.Now()}
	client := newTestClient(t, srv.URL, clock)

	_, err := client.Token(context.Background())
	assert.ErrorIs(t, err, ErrAuth)
}

func TestValidateCallbackURL(t *testing.T) {
	tests := []struct {
		name       string
		url        string
		production bool
		wantErr    bool
	}{
		{"https in production", "https://clinic.example.com/confirm", true, false},
		{"http in production", "http://clinic.example.com/confirm", true, true},
		{"localhost in production", "https://localhost/confirm", true, true},
		{"loopback in production", "https://127.0.0.1/confirm", true, true},
		{"private 192.168 in production", "https://192.168.1.5/confirm", true, true},
		{"private 10.x in production", "https://10.0.0.8/confirm", true, true},
		{"private 172.16 in production", "https://172.16.4.20/confirm", true, true},
		{"ipv6 loopback in production", "https://[::1]/confirm", true, true},
		{"unspecified in production", "https://0.0.0.0/confirm", true, true},
		{"mdns host in production", "https://clinic.local/confirm", true, true},
		{"http in test mode", "http://localhost:3000/confirm", false, false},
		{"empty", "", true, true},
		{"bad scheme", "ftp://clinic.example.com", false, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateCallbackURL(tt.url, tt.production)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidCallbackURL)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestCreateSession_InvalidCallbackFailsBeforeAnyRequest(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
	}))
	defer srv.Close()

	client, err := NewClient(Config{
		BaseURL:         srv.URL,
		PublicKey:       "pub",
		PrivateKey:      "priv",
		TestMode:        false,
		ResponseURL:     "http://localhost:3000/response",
		ConfirmationURL: "https://clinic.example.com/confirm",
	}, nil, nil)
	require.NoError(t, err)

	apt := &model.Appointment{CostCents: 150000}
	_, err = client.CreateSession(context.Background(), apt, &model.Patient{})
	assert.ErrorIs(t, err, ErrInvalidCallbackURL)
	assert.Equal(t, int32(0), atomic.LoadInt32(&hits))
}

func TestCreateSession(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/login", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{"token": "tok"})
	})
	mux.HandleFunc("/payment/session/create", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))

		var payload map[string]interface{}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
		assert.Equal(t, "1500.00", payload["amount"])

		json.NewEncoder(w).Encode(map[string]interface{}{
			"success": true,
			"data": map[string]string{
				"sessionId": "sess-42",
				"routeLink": "https://checkout.example.com/sess-42",
			},
		})
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	clock := &fakeClock{now: time.Now()}
	client := newTestClient(t, srv.URL, clock)

	apt := &model.Appointment{CostCents: 150000, Reason: "Consulta general"}
	handle, err := client.CreateSession(context.Background(), apt, &model.Patient{
		FirstName: "Ana", LastName: "Ruiz", Email: "ana@example.com",
		DocumentType: "CC", DocumentID: "1234567",
	})
	require.NoError(t, err)
	assert.Equal(t, "sess-42", handle.SessionID)
	assert.Equal(t, "https://checkout.example.com/sess-42", handle.CheckoutURL)
}

func TestPollStatus_MapsResponseCodes(t *testing.T) {
	tests := []struct {
		code string
		want model.GatewayOutcome
	}{
		{"1", model.OutcomeApproved},
		{"2", model.OutcomeRejected},
		{"3", model.OutcomePending},
		{"4", model.OutcomeFailed},
		{"99", model.OutcomeUnknown},
	}
	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			mux := http.NewServeMux()
			mux.HandleFunc("/login", func(w http.ResponseWriter, r *http.Request) {
				json.NewEncoder(w).Encode(map[string]string{"token": "tok"})
			})
			mux.HandleFunc("/transaction/detail", func(w http.ResponseWriter, r *http.Request) {
				json.NewEncoder(w).Encode(map[string]interface{}{
					"data": map[string]interface{}{
						"x_cod_response":   json.Number(tt.code),
						"x_ref_payco":      "ref-1",
						"x_transaction_id": "tx-1",
					},
				})
			})
			srv := httptest.NewServer(mux)
			defer srv.Close()

			clock := &fakeClock{now: time.Now()}
			client := newTestClient(t, srv.URL, clock)

			result, err := client.PollStatus(context.Background(), "sess-1")
			require.NoError(t, err)
			assert.Equal(t, tt.want, result.Outcome)
			assert.Equal(t, "ref-1", result.GatewayRef)
		})
	}
}

func TestPollStatus_UnknownTransactionIsPending(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/login", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{"token": "tok"})
	})
	mux.HandleFunc("/transaction/detail", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	clock := &fakeClock{now: time.Now()}
	client := newTestClient(t, srv.URL, clock)

	result, err := client.PollStatus(context.Background(), "sess-unknown")
	require.NoError(t, err)
	assert.Equal(t, model.OutcomePending, result.Outcome)
}

func TestDo_RetriesTransientFailures(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		json.NewEncoder(w).Encode(map[string]string{"token": "tok"})
	}))
	defer srv.Close()

	clock := &fakeClock{now: time.Now()}
	client, err := NewClient(Config{
		BaseURL:    srv.URL,
		PublicKey:  "pub",
		PrivateKey: "priv",
		MaxRetries: 2,
	}, nil, nil, WithClock(clock.Now))
	require.NoError(t, err)

	token, err := client.Token(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "tok", token)
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}
