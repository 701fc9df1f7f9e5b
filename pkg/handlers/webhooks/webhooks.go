package webhooks

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/aws/aws-lambda-go/events"
	"github.com/chris/escrow-settlement/pkg/api"
	"github.com/chris/escrow-settlement/pkg/escrow"
	"github.com/chris/escrow-settlement/pkg/handlers/respond"
)

// MaxBodyBytes caps webhook bodies. Gateways send small JSON documents.
const MaxBodyBytes = 1 << 20

// WebhookService authenticates and applies raw gateway callbacks.
type WebhookService interface {
	SignatureHeader(gatewayName string) string
	HandlePaymentWebhook(ctx context.Context, gatewayName string, body []byte, signature string) (escrow.WebhookResult, error)
	HandlePayoutWebhook(ctx context.Context, gatewayName string, body []byte, signature string) (escrow.WebhookResult, error)
}

// WebhooksHandler receives payment and payout callbacks. Every authenticated
// callback is acknowledged with a 200, including ones that changed nothing, so
// gateways stop retrying.
type WebhooksHandler struct {
	Service WebhookService
}

// NewWebhooksHandler creates a new WebhooksHandler.
func NewWebhooksHandler(service WebhookService) *WebhooksHandler {
	return &WebhooksHandler{Service: service}
}

func (h *WebhooksHandler) HandlePaymentWebhook(w http.ResponseWriter, r *http.Request, gateway string) {
	h.handle(w, r, gateway, h.Service.HandlePaymentWebhook)
}

func (h *WebhooksHandler) HandlePayoutWebhook(w http.ResponseWriter, r *http.Request, gateway string) {
	h.handle(w, r, gateway, h.Service.HandlePayoutWebhook)
}

type applyFunc func(ctx context.Context, gatewayName string, body []byte, signature string) (escrow.WebhookResult, error)

func (h *WebhooksHandler) handle(w http.ResponseWriter, r *http.Request, gateway string, apply applyFunc) {
	// The signature covers the exact bytes, so the body is read raw and never re-encoded.
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, MaxBodyBytes))
	if err != nil {
		respond.Error(w, r, err)
		return
	}

	var signature string
	if header := h.Service.SignatureHeader(gateway); header != "" {
		signature = r.Header.Get(header)
	}

	result, err := apply(r.Context(), gateway, body, signature)
	if err != nil {
		respond.Error(w, r, err)
		return
	}

	slog.Debug("webhook acknowledged", "gateway", gateway, "path", r.URL.Path, "result", result)
	respond.JSON(w, http.StatusOK, api.WebhookAck{Received: true, Result: string(result)})
}

// HandleLambda serves the same two routes behind API Gateway. The route is taken
// from the {gateway} path parameter and whether the path ends in /payouts.
func (h *WebhooksHandler) HandleLambda(ctx context.Context, request events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	gateway := request.PathParameters["gateway"]
	apply := h.Service.HandlePaymentWebhook
	if strings.HasSuffix(strings.TrimRight(request.Path, "/"), "/payouts") {
		apply = h.Service.HandlePayoutWebhook
	}

	body := []byte(request.Body)
	if request.IsBase64Encoded {
		decoded, err := base64.StdEncoding.DecodeString(request.Body)
		if err != nil {
			return lambdaResponse(http.StatusBadRequest, api.Error{Message: "invalid body encoding"}), nil
		}
		body = decoded
	}
	if len(body) > MaxBodyBytes {
		return lambdaResponse(http.StatusRequestEntityTooLarge, api.Error{Message: "request body too large"}), nil
	}

	var signature string
	if header := h.Service.SignatureHeader(gateway); header != "" {
		signature = headerValue(request.Headers, header)
	}

	result, err := apply(ctx, gateway, body, signature)
	if err != nil {
		status := respond.Status(err)
		message := err.Error()
		switch {
		case status == http.StatusUnauthorized:
			message = "invalid signature"
		case status >= http.StatusInternalServerError:
			slog.Error("webhook failed", "gateway", gateway, "path", request.Path, "error", err)
			message = "internal server error"
		}
		return lambdaResponse(status, api.Error{Message: message}), nil
	}
	return lambdaResponse(http.StatusOK, api.WebhookAck{Received: true, Result: string(result)}), nil
}

// headerValue looks a header up case-insensitively; API Gateway passes them as sent.
func headerValue(headers map[string]string, name string) string {
	if v, ok := headers[name]; ok {
		return v
	}
	for k, v := range headers {
		if strings.EqualFold(k, name) {
			return v
		}
	}
	return ""
}

func lambdaResponse(status int, body any) events.APIGatewayProxyResponse {
	data, err := json.Marshal(body)
	if err != nil {
		data = []byte(fmt.Sprintf(`{"message":%q}`, http.StatusText(status)))
	}
	return events.APIGatewayProxyResponse{
		StatusCode: status,
		Headers:    map[string]string{"Content-Type": "application/json"},
		Body:       string(data),
	}
}
