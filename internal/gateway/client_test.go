package gateway_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/smallbiznis/paygate/internal/config"
	"github.com/smallbiznis/paygate/internal/gateway"
	gatewaydomain "github.com/smallbiznis/paygate/internal/gateway/domain"
	obsmetrics "github.com/smallbiznis/paygate/internal/observability/metrics"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestClient(t *testing.T, handler http.Handler) gatewaydomain.Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	cfg := config.Config{
		GatewayBaseURL:   srv.URL,
		GatewayKeyID:     "key_id",
		GatewayKeySecret: "key_secret",
	}
	return gateway.NewClient(cfg, zap.NewNop(), obsmetrics.New(nil))
}

func TestCapturePaymentSendsBasicAuthAndBody(t *testing.T) {
	var gotPath, gotUser string
	var gotBody map[string]any

	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotUser, _, _ = r.BasicAuth()
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		_ = json.NewEncoder(w).Encode(map[string]any{"id": "pay_1", "status": "captured"})
	}))

	out, err := client.CapturePayment(context.Background(), "pay_1", 1000, "INR")
	require.NoError(t, err)
	require.Equal(t, "/v1/payments/pay_1/capture", gotPath)
	require.Equal(t, "key_id", gotUser)
	require.EqualValues(t, 1000, gotBody["amount"])
	require.Equal(t, "captured", out["status"])
}

func TestGatewayErrorCarriesProviderMessage(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"error": map[string]any{"code": "BAD_REQUEST_ERROR", "description": "payment already captured"},
		})
	}))

	_, err := client.CapturePayment(context.Background(), "pay_1", 1000, "INR")
	require.Error(t, err)

	var gwErr *gatewaydomain.Error
	require.True(t, errors.As(err, &gwErr))
	require.Equal(t, http.StatusBadRequest, gwErr.Status)
	require.Equal(t, "BAD_REQUEST_ERROR", gwErr.Code)
	require.Contains(t, gwErr.Message, "already captured")
}

func TestMissingCredentialsFailBeforeRequest(t *testing.T) {
	client := gateway.NewClient(config.Config{GatewayBaseURL: "http://unreachable"}, zap.NewNop(), obsmetrics.New(nil))
	_, err := client.CreateOrder(context.Background(), gatewaydomain.CreateOrderRequest{Amount: 1000, Currency: "INR"})
	require.ErrorIs(t, err, gatewaydomain.ErrMissingCredentials)
}
