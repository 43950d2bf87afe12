// Package server manages individual WebSocket clients, handling read/write
// pumps, rate limiting, and lifecycle control for each connection.
package server

import (
	"errors"
	"fmt"
	"io"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/chatwire/chatwire/internal/auth"
	"github.com/chatwire/chatwire/internal/protocol"
)

// Client represents one WebSocket connection. It owns the socket and the
// outbound frame queue; rooms and the registry only see it through the
// Member interface. Until the connection authenticates it carries a stable
// guest display name.
type Client struct {
	conn     *websocket.Conn
	send     chan []byte
	registry *Registry
	accounts *auth.Store
	conns    *connSet
	addr     string

	// name is written by the read pump on login and read by room
	// goroutines during broadcasts, hence the mutex.
	name   string
	nameMu sync.RWMutex

	maxMessageSize int64
	rateLimiter    *rateLimiter
	rateLimit      RateLimitConfig
}

// NewClient creates a Client for an upgraded connection. The send channel is
// buffered so room broadcasts never block on a slow socket.
func NewClient(conn *websocket.Conn, registry *Registry, accounts *auth.Store, conns *connSet, addr string) *Client {
	cfg := currentConfig()
	if conn != nil {
		conn.SetReadLimit(cfg.MaxMessageSize)
	}
	limiter := newRateLimiter(cfg.RateLimit.Burst, cfg.RateLimit.RefillInterval)

	return &Client{
		conn:           conn,
		send:           make(chan []byte, 256),
		registry:       registry,
		accounts:       accounts,
		conns:          conns,
		addr:           addr,
		name:           "guest-" + uuid.NewString()[:8],
		maxMessageSize: cfg.MaxMessageSize,
		rateLimiter:    limiter,
		rateLimit:      cfg.RateLimit,
	}
}

// DisplayName returns the name used for this connection in user messages:
// the account name once authenticated, a guest name before that.
func (c *Client) DisplayName() string {
	c.nameMu.RLock()
	defer c.nameMu.RUnlock()
	return c.name
}

func (c *Client) setDisplayName(name string) {
	c.nameMu.Lock()
	c.name = name
	c.nameMu.Unlock()
}

// Deliver encodes a response and queues it for the write pump. It never
// blocks: a connection that cannot keep up has the frame dropped, and a
// connection that has been closed swallows it silently.
func (c *Client) Deliver(res protocol.Response) {
	data, err := protocol.Encode(res)
	if err != nil {
		log.Printf("Error encoding frame for %s: %v", c.addr, err)
		return
	}
	if !c.conns.send(c, data) {
		log.Printf("Dropped frame for %s: send buffer full or connection closed", c.addr)
	}
}

// setupReadConnection configures read deadlines and pong handler for the WebSocket connection
func (c *Client) setupReadConnection() {
	if err := c.conn.SetReadDeadline(time.Now().Add(60 * time.Second)); err != nil {
		log.Printf("Error setting initial read deadline for %s: %v", c.addr, err)
	}
	c.conn.SetPongHandler(func(string) error {
		if err := c.conn.SetReadDeadline(time.Now().Add(60 * time.Second)); err != nil {
			log.Printf("Error setting read deadline in pong handler for %s: %v", c.addr, err)
		}
		return nil
	})
}

// handleReadError logs appropriate error messages based on the error type
// and returns true if the read loop should break
func (c *Client) handleReadError(err error) bool {
	if err == nil {
		return false
	}

	if errors.Is(err, websocket.ErrReadLimit) {
		log.Printf("Message from %s exceeded maximum size of %d bytes", c.addr, c.maxMessageSize)
		return true
	}

	if websocket.IsCloseError(err,
		websocket.CloseNormalClosure,
		websocket.CloseGoingAway,
		websocket.CloseAbnormalClosure) {
		log.Printf("Client %s disconnected: %v", c.addr, err)
		return true
	}

	if errors.Is(err, io.EOF) || isExpectedCloseError(err) {
		log.Printf("Client %s connection closed: %v", c.addr, err)
		return true
	}

	if websocket.IsUnexpectedCloseError(err,
		websocket.CloseGoingAway,
		websocket.CloseAbnormalClosure,
		websocket.CloseMessageTooBig) {
		log.Printf("Unexpected WebSocket error from %s: %v", c.addr, err)
		return true
	}

	log.Printf("WebSocket read error from %s: %v", c.addr, err)
	return true
}

// checkRateLimit verifies if the client has exceeded rate limits
// and returns true if the message should be processed
func (c *Client) checkRateLimit() bool {
	if c.rateLimiter != nil && !c.rateLimiter.allow() {
		log.Printf("Rate limit exceeded for %s (%d messages per %s); discarding message", c.addr, c.rateLimit.Burst, c.rateLimit.RefillInterval)
		return false
	}
	return true
}

// processMessage decodes one inbound frame and dispatches it. A decode
// failure is answered with an error frame and never tears down the
// connection.
func (c *Client) processMessage(rawMessage []byte) {
	req, err := protocol.Decode(rawMessage)
	if err != nil {
		log.Printf("Invalid frame from %s: %v", c.addr, err)
		c.Deliver(decodeFailure(err))
		return
	}
	c.dispatch(req)
}

// decodeFailure converts a decode error into the error frame reported back
// to the sender.
func decodeFailure(err error) protocol.ProtocolError {
	resource := "protocol"

	var unknown *protocol.UnknownResourceError
	var schema *protocol.SchemaError
	switch {
	case errors.As(err, &unknown):
		if unknown.Resource != "" {
			resource = unknown.Resource
		}
	case errors.As(err, &schema):
		if schema.Resource != "" {
			resource = schema.Resource
		}
	}

	return protocol.ProtocolError{Resource: resource, Reason: err.Error()}
}

// dispatch routes a decoded request: account operations are answered here,
// room-scoped operations go to the registry, and pings are echoed.
func (c *Client) dispatch(req protocol.Request) {
	switch req := req.(type) {
	case protocol.Registration:
		c.handleRegistration(req)
	case protocol.Login:
		c.handleLogin(req)
	case protocol.Logout:
		revoked := c.accounts.Logout(req.Tokens)
		c.Deliver(protocol.ProtocolOk{
			Resource: protocol.ResourceLogout,
			Content:  fmt.Sprintf("Revoked %d token(s).", revoked),
		})
	case protocol.Identity:
		c.handleIdentity(req)
	case protocol.Join:
		c.registry.Join(c, req.Room)
	case protocol.Chat:
		c.registry.Chat(c, req.Room, req.Content)
	case protocol.Disconnect:
		c.registry.Disconnect(c, req.Room)
	case protocol.ImageInit:
		c.registry.ImageInit(c, req.ID, req.Room, req.Parts)
	case protocol.ImagePart:
		c.registry.ImagePart(c, req.ID, req.Part, req.Room, req.Data)
	case protocol.Ping:
		c.Deliver(protocol.Ping{})
	default:
		log.Printf("Unhandled request type %T from %s", req, c.addr)
	}
}

func (c *Client) handleRegistration(req protocol.Registration) {
	token, err := c.accounts.Register(req.Name, req.Password)
	if err != nil {
		c.Deliver(protocol.ProtocolError{Resource: protocol.ResourceRegistration, Reason: err.Error()})
		return
	}
	c.setDisplayName(req.Name)
	c.Deliver(protocol.UserIdentity{Name: req.Name, Tokens: []string{token}})
}

func (c *Client) handleLogin(req protocol.Login) {
	token, err := c.accounts.Login(req.Name, req.Password)
	if err != nil {
		c.Deliver(protocol.ProtocolError{Resource: protocol.ResourceLogin, Reason: err.Error()})
		return
	}
	c.setDisplayName(req.Name)
	c.Deliver(protocol.UserIdentity{Name: req.Name, Tokens: []string{token}})
}

func (c *Client) handleIdentity(req protocol.Identity) {
	name, tokens, err := c.accounts.Resolve(req.Tokens, req.WithAllTokens)
	if err != nil {
		c.Deliver(protocol.ProtocolError{Resource: protocol.ResourceIdentity, Reason: err.Error()})
		return
	}
	c.setDisplayName(name)
	c.Deliver(protocol.UserIdentity{Name: name, Tokens: tokens})
}

func (c *Client) readPump() {
	defer func() {
		// Leave every room silently; the ok replies would be dropped
		// anyway once the connection is untracked.
		c.conns.remove(c)
		c.registry.Disconnect(c, nil)
		if err := c.conn.Close(); err != nil {
			if !isExpectedCloseError(err) {
				log.Printf("Error closing connection in readPump: %v", err)
			}
		}
	}()

	c.setupReadConnection()

	for {
		_, rawMessage, err := c.conn.ReadMessage()
		if err != nil {
			if c.handleReadError(err) {
				break
			}
			continue
		}

		if !c.checkRateLimit() {
			continue
		}

		c.processMessage(rawMessage)
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(54 * time.Second)
	defer func() {
		ticker.Stop()
		c.closeConnection()
	}()

	for c.processWriteEvent(ticker) {
	}
}

// processWriteEvent waits for the next write event and returns false when the
// pump should stop processing.
func (c *Client) processWriteEvent(ticker *time.Ticker) bool {
	select {
	case message, ok := <-c.send:
		return c.handleMessage(message, ok)
	case <-ticker.C:
		return c.handlePing()
	}
}

// closeConnection safely closes the WebSocket connection with proper error handling
func (c *Client) closeConnection() {
	if err := c.conn.Close(); err != nil {
		if !isExpectedCloseError(err) {
			log.Printf("Error closing connection in writePump: %v", err)
		}
	}
}

// handleMessage processes outgoing messages and returns false if the connection should be closed
func (c *Client) handleMessage(message []byte, ok bool) bool {
	if err := c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second)); err != nil {
		log.Printf("Error setting write deadline for %s: %v", c.addr, err)
		return false
	}

	if !ok {
		return c.writeCloseMessage()
	}

	return c.writeTextMessage(message)
}

// writeCloseMessage sends a close message to the client
func (c *Client) writeCloseMessage() bool {
	if err := c.conn.WriteMessage(websocket.CloseMessage, []byte{}); err != nil {
		if !isExpectedCloseError(err) {
			log.Printf("Error writing close message to %s: %v", c.addr, err)
		}
	}
	return false
}

// writeTextMessage writes a text message and any queued messages
func (c *Client) writeTextMessage(message []byte) bool {
	w, err := c.conn.NextWriter(websocket.TextMessage)
	if err != nil {
		log.Printf("Error creating writer for %s: %v", c.addr, err)
		return false
	}

	if _, err := w.Write(message); err != nil {
		log.Printf("Error writing message to %s: %v", c.addr, err)
		return false
	}

	// One frame per protocol message: queued responses get their own
	// writer invocation on the next loop iteration.
	if err := w.Close(); err != nil {
		log.Printf("Error closing writer for %s: %v", c.addr, err)
		return false
	}
	return true
}

// handlePing sends a ping message to keep the connection alive
func (c *Client) handlePing() bool {
	if err := c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second)); err != nil {
		log.Printf("Error setting write deadline for ping to %s: %v", c.addr, err)
		return false
	}
	if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
		log.Printf("Error writing ping message to %s: %v", c.addr, err)
		return false
	}
	return true
}

// isExpectedCloseError checks if an error is expected during connection closure.
func isExpectedCloseError(err error) bool {
	if err == nil {
		return true
	}
	errStr := err.Error()
	return strings.Contains(errStr, "use of closed network connection") ||
		strings.Contains(errStr, "websocket: close sent") ||
		strings.Contains(errStr, "broken pipe")
}
