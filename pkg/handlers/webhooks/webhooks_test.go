package webhooks

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/aws/aws-lambda-go/events"
	"github.com/chris/escrow-settlement/pkg/api"
	"github.com/chris/escrow-settlement/pkg/escrow"
	"github.com/chris/escrow-settlement/pkg/handlers/mocks"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

const header = "X-Paystack-Signature"

func TestHandlePaymentWebhook(t *testing.T) {
	body := []byte(`{"event":"charge.success","data":{"reference":"pay-1"}}`)

	tests := []struct {
		name       string
		result     escrow.WebhookResult
		err        error
		wantStatus int
		wantBody   string
	}{
		{name: "Applied", result: escrow.WebhookApplied, wantStatus: http.StatusOK, wantBody: "applied"},
		{name: "Replay", result: escrow.WebhookIgnored, wantStatus: http.StatusOK, wantBody: "ignored"},
		{name: "Unknown Reference", result: escrow.WebhookUnknownReference, wantStatus: http.StatusOK, wantBody: "unknown_reference"},
		{name: "Bad Signature", err: escrow.ErrSignature, wantStatus: http.StatusUnauthorized, wantBody: "invalid signature"},
		{name: "Unparseable", err: escrow.ErrValidation, wantStatus: http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			service := mocks.NewWebhookService(t)
			handler := NewWebhooksHandler(service)
			service.On("SignatureHeader", "paystack").Return(header)
			service.On("HandlePaymentWebhook", mock.Anything, "paystack", body, "sig-123").Return(tt.result, tt.err)

			req := httptest.NewRequest(http.MethodPost, "/webhooks/paystack/payments", bytes.NewReader(body))
			req.Header.Set(header, "sig-123")
			rr := httptest.NewRecorder()

			handler.HandlePaymentWebhook(rr, req, "paystack")

			assert.Equal(t, tt.wantStatus, rr.Code)
			if tt.wantBody != "" {
				assert.Contains(t, rr.Body.String(), tt.wantBody)
			}
			if tt.err == nil {
				var ack api.WebhookAck
				require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &ack))
				assert.True(t, ack.Received)
			}
		})
	}
}

func TestHandlePayoutWebhook_UnknownGateway(t *testing.T) {
	service := mocks.NewWebhookService(t)
	handler := NewWebhooksHandler(service)
	service.On("SignatureHeader", "stripe").Return("")
	service.On("HandlePayoutWebhook", mock.Anything, "stripe", mock.Anything, "").Return(escrow.WebhookResult(""), escrow.ErrNotFound)

	rr := httptest.NewRecorder()
	handler.HandlePayoutWebhook(rr, httptest.NewRequest(http.MethodPost, "/webhooks/stripe/payouts", strings.NewReader("{}")), "stripe")

	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestHandleWebhook_BodyTooLarge(t *testing.T) {
	// The service is never reached.
	handler := NewWebhooksHandler(mocks.NewWebhookService(t))

	body := bytes.Repeat([]byte("a"), MaxBodyBytes+1)
	rr := httptest.NewRecorder()
	handler.HandlePaymentWebhook(rr, httptest.NewRequest(http.MethodPost, "/webhooks/paystack/payments", bytes.NewReader(body)), "paystack")

	assert.Equal(t, http.StatusRequestEntityTooLarge, rr.Code)
}

func TestHandleLambda(t *testing.T) {
	body := `{"event":"transfer.success","data":{"reference":"wd-1"}}`

	t.Run("Payout Route With Lowercase Header", func(t *testing.T) {
		service := mocks.NewWebhookService(t)
		handler := NewWebhooksHandler(service)
		service.On("SignatureHeader", "paystack").Return(header)
		service.On("HandlePayoutWebhook", mock.Anything, "paystack", []byte(body), "sig-123").Return(escrow.WebhookApplied, nil)

		resp, err := handler.HandleLambda(context.Background(), events.APIGatewayProxyRequest{
			Path:           "/webhooks/paystack/payouts",
			PathParameters: map[string]string{"gateway": "paystack"},
			Headers:        map[string]string{"x-paystack-signature": "sig-123"},
			Body:           body,
		})

		require.NoError(t, err)
		assert.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Contains(t, resp.Body, `"result":"applied"`)
	})

	t.Run("Base64 Payment Body With Bad Signature", func(t *testing.T) {
		service := mocks.NewWebhookService(t)
		handler := NewWebhooksHandler(service)
		service.On("SignatureHeader", "paystack").Return(header)
		service.On("HandlePaymentWebhook", mock.Anything, "paystack", []byte(body), "forged").
			Return(escrow.WebhookResult(""), fmt.Errorf("paystack: %w", escrow.ErrSignature))

		resp, err := handler.HandleLambda(context.Background(), events.APIGatewayProxyRequest{
			Path:            "/webhooks/paystack/payments",
			PathParameters:  map[string]string{"gateway": "paystack"},
			Headers:         map[string]string{header: "forged"},
			Body:            base64.StdEncoding.EncodeToString([]byte(body)),
			IsBase64Encoded: true,
		})

		require.NoError(t, err)
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
		assert.Contains(t, resp.Body, "invalid signature")
	})
}
