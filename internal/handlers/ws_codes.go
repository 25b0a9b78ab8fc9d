// internal/handlers/ws_codes.go
package handlers

// Custom WebSocket close codes used by the game socket.
const (
	BadSubprotocolError   = 3000 // Client asked for a subprotocol other than Subprotocol.
	InvalidAuthTokenError = 3001 // Token was invalid or expired, or missing while auth is required.
)

// Subprotocol is the optional websocket subprotocol clients may negotiate.
const Subprotocol = "keldurben"
