package websockets

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/aws/aws-lambda-go/events"
	"github.com/chris/escrow-settlement/pkg/middleware"
	"github.com/chris/escrow-settlement/pkg/models"
	"github.com/chris/escrow-settlement/pkg/websockets"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// Browsers cannot set headers on a WebSocket upgrade, so the token travels as a query parameter.
const tokenParam = "token"

// Handler handles WebSocket connections. Every connection belongs to an
// authenticated user so notifications can be routed to them.
type Handler struct {
	connManager websockets.ConnectionManager
	hub         *websockets.Hub
	secret      []byte
}

// NewHandler creates a new Handler. connManager backs API Gateway connections and
// hub backs connections held by the local server; either may be nil when unused.
func NewHandler(connManager websockets.ConnectionManager, hub *websockets.Hub, secret []byte) *Handler {
	return &Handler{
		connManager: connManager,
		hub:         hub,
		secret:      secret,
	}
}

func (h *Handler) identify(ctx context.Context, token string) (models.Identity, bool) {
	if id := middleware.IdentityFromContext(ctx); id.UserId != "" {
		return id, true
	}
	if token == "" {
		return models.Identity{}, false
	}
	id, err := middleware.ParseToken(h.secret, "Bearer "+token)
	if err != nil {
		slog.Debug("rejected websocket token", "error", err)
		return models.Identity{}, false
	}
	return id, true
}

// HandleConnect handles new client connections.
func (h *Handler) HandleConnect(ctx context.Context, request events.APIGatewayWebsocketProxyRequest) (events.APIGatewayProxyResponse, error) {
	connectionID := request.RequestContext.ConnectionID
	id, ok := h.identify(ctx, request.QueryStringParameters[tokenParam])
	if !ok {
		slog.Warn("Rejected unauthenticated connection", "connectionId", connectionID)
		return events.APIGatewayProxyResponse{StatusCode: http.StatusUnauthorized}, nil
	}
	slog.Info("Client connected", "connectionId", connectionID, "user_id", id.UserId)

	if err := h.connManager.AddConnection(ctx, connectionID, id.UserId); err != nil {
		slog.Error("failed to save connection ID", "error", err)
		return events.APIGatewayProxyResponse{StatusCode: http.StatusInternalServerError}, err
	}

	return events.APIGatewayProxyResponse{StatusCode: http.StatusOK}, nil
}

// HandleDisconnect handles client disconnections.
func (h *Handler) HandleDisconnect(ctx context.Context, request events.APIGatewayWebsocketProxyRequest) (events.APIGatewayProxyResponse, error) {
	slog.Info("Client disconnected", "connectionId", request.RequestContext.ConnectionID)

	if err := h.connManager.RemoveConnection(ctx, request.RequestContext.ConnectionID); err != nil {
		slog.Error("failed to delete connection ID", "error", err)
		return events.APIGatewayProxyResponse{StatusCode: http.StatusInternalServerError}, err
	}

	return events.APIGatewayProxyResponse{StatusCode: http.StatusOK}, nil
}

// HandleDefault handles messages sent from a client. Clients only listen, so they are just logged.
func (h *Handler) HandleDefault(ctx context.Context, request events.APIGatewayWebsocketProxyRequest) (events.APIGatewayProxyResponse, error) {
	slog.Info("Received message", "connectionId", request.RequestContext.ConnectionID, "bytes", len(request.Body))
	return events.APIGatewayProxyResponse{StatusCode: http.StatusOK}, nil
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		// Allow all connections by default for local development.
		return true
	},
}

// ServeHTTP handles WebSocket requests for the local development server.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	id, ok := h.identify(r.Context(), r.URL.Query().Get(tokenParam))
	if !ok {
		http.Error(w, "authentication required", http.StatusUnauthorized)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Error("failed to upgrade connection", "error", err)
		return
	}
	defer conn.Close()

	connectionID := uuid.New().String()
	slog.Info("Client connected locally", "connectionId", connectionID, "user_id", id.UserId)

	h.hub.Register(id.UserId, connectionID, conn)
	defer func() {
		slog.Info("Client disconnected locally", "connectionId", connectionID)
		h.hub.Unregister(id.UserId, connectionID)
	}()

	// The read loop only exists to notice when the client goes away.
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				slog.Error("unexpected close error", "error", err)
			}
			break
		}
	}
}
