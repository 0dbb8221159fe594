package engine

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/vektah/gqlparser/v2/gqlerror"

	"github.com/spiffcs/gqlc/internal/constants"
	"github.com/spiffcs/gqlc/internal/log"
)

// graphql-transport-ws message types.
const (
	msgConnectionInit = "connection_init"
	msgConnectionAck  = "connection_ack"
	msgPing           = "ping"
	msgPong           = "pong"
	msgSubscribe      = "subscribe"
	msgNext           = "next"
	msgError          = "error"
	msgComplete       = "complete"
)

// ErrProtocol is returned when the server violates graphql-transport-ws.
var ErrProtocol = errors.New("subscription protocol error")

type wsMessage struct {
	ID      string          `json:"id,omitempty"`
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// wsConn serialises writes; gorilla allows one concurrent writer.
type wsConn struct {
	conn *websocket.Conn
	wmu  sync.Mutex
}

func (c *wsConn) send(msg wsMessage) error {
	c.wmu.Lock()
	defer c.wmu.Unlock()
	return c.conn.WriteJSON(msg)
}

func (c *wsConn) closeGracefully(id string) {
	c.wmu.Lock()
	defer c.wmu.Unlock()
	deadline := time.Now().Add(constants.CloseGracePeriod)
	_ = c.conn.SetWriteDeadline(deadline)
	if id != "" {
		_ = c.conn.WriteJSON(wsMessage{ID: id, Type: msgComplete})
	}
	_ = c.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), deadline)
	_ = c.conn.Close()
}

// subscribeStage is the terminal stage for subscriptions. It opens the
// socket, completes the connection handshake and sends the subscribe
// message; the open socket is handed back through conn.
type subscribeStage struct {
	engine *HTTPEngine
	id     string
	conn   *wsConn
}

func (s *subscribeStage) Intercept(ctx context.Context, req *Request, _ Chain) (*Response, error) {
	dialer := *s.engine.dialer
	dialer.Subprotocols = []string{constants.SubscriptionProtocol}

	conn, httpResp, err := dialer.DialContext(ctx, s.engine.wsEndpoint, req.Header)
	if err != nil {
		if httpResp != nil {
			body, _ := io.ReadAll(io.LimitReader(httpResp.Body, 4096))
			httpResp.Body.Close()
			return nil, &HTTPError{
				StatusCode: httpResp.StatusCode,
				Status:     httpResp.Status,
				Header:     httpResp.Header,
				Body:       string(body),
			}
		}
		return nil, fmt.Errorf("failed to dial subscription endpoint: %w", err)
	}
	ws := &wsConn{conn: conn}

	if err := handshake(ctx, ws, req.Header); err != nil {
		ws.closeGracefully("")
		return nil, err
	}

	sub, err := json.Marshal(req.payload())
	if err != nil {
		ws.closeGracefully("")
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}
	if err := ws.send(wsMessage{ID: s.id, Type: msgSubscribe, Payload: sub}); err != nil {
		ws.closeGracefully("")
		return nil, fmt.Errorf("failed to send subscribe: %w", err)
	}

	s.conn = ws
	return &Response{StatusCode: httpResp.StatusCode, Header: httpResp.Header}, nil
}

// handshake sends connection_init, carrying the request headers as its
// payload for servers that authenticate there, and waits for the ack.
func handshake(ctx context.Context, ws *wsConn, header http.Header) error {
	init := make(map[string]string, len(header))
	for k := range header {
		init[k] = header.Get(k)
	}
	initPayload, err := json.Marshal(init)
	if err != nil {
		return err
	}
	if err := ws.send(wsMessage{Type: msgConnectionInit, Payload: initPayload}); err != nil {
		return fmt.Errorf("failed to send connection_init: %w", err)
	}

	deadline := time.Now().Add(constants.ConnectionAckTimeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	_ = ws.conn.SetReadDeadline(deadline)
	defer ws.conn.SetReadDeadline(time.Time{})

	for {
		var msg wsMessage
		if err := ws.conn.ReadJSON(&msg); err != nil {
			return fmt.Errorf("failed waiting for connection_ack: %w", err)
		}
		switch msg.Type {
		case msgConnectionAck:
			return nil
		case msgPing:
			if err := ws.send(wsMessage{Type: msgPong}); err != nil {
				return err
			}
		default:
			return fmt.Errorf("%w: expected %s, got %s", ErrProtocol, msgConnectionAck, msg.Type)
		}
	}
}

// Subscribe opens one socket for this subscription and streams its events.
func (e *HTTPEngine) Subscribe(ctx context.Context, req *Request, handler Handler) error {
	if e.isClosed() {
		return ErrClosed
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	stopOnClose := context.AfterFunc(e.ctx, cancel)
	defer stopOnClose()

	id := uuid.NewString()
	logger := log.With("subscription", id, "operation", req.OperationName)

	stage := &subscribeStage{engine: e, id: id}
	if _, err := e.chain(nil, stage).Proceed(ctx, req.Clone()); err != nil {
		return err
	}
	ws := stage.conn
	logger.Debug("subscription started")

	// A stream the server ended needs no complete message from us.
	var serverDone atomic.Bool
	var closeOnce sync.Once
	closeConn := func() {
		closeOnce.Do(func() {
			if serverDone.Load() {
				ws.closeGracefully("")
				return
			}
			ws.closeGracefully(id)
		})
	}
	stopOnCancel := context.AfterFunc(ctx, closeConn)
	defer stopOnCancel()
	defer closeConn()

	for {
		var msg wsMessage
		if err := ws.conn.ReadJSON(&msg); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if websocket.IsCloseError(err, websocket.CloseNormalClosure) {
				logger.Debug("server closed subscription socket")
				return nil
			}
			return fmt.Errorf("subscription transport failed: %w", err)
		}
		log.Trace("frame received", "subscription", id, "type", msg.Type)

		switch msg.Type {
		case msgPing:
			if err := ws.send(wsMessage{Type: msgPong}); err != nil {
				return fmt.Errorf("failed to send pong: %w", err)
			}
		case msgPong:
		case msgNext:
			if msg.ID != id {
				continue
			}
			resp, err := decodeResponse(msg.Payload)
			handler(resp, err)
		case msgError:
			if msg.ID != id {
				continue
			}
			var errs gqlerror.List
			if err := json.Unmarshal(msg.Payload, &errs); err != nil {
				serverDone.Store(true)
				handler(nil, fmt.Errorf("%w: %v", ErrInvalidResponse, err))
				return nil
			}
			serverDone.Store(true)
			handler(&Response{Errors: errs}, nil)
			return nil
		case msgComplete:
			if msg.ID != id {
				continue
			}
			serverDone.Store(true)
			logger.Debug("subscription completed by server")
			return nil
		default:
			return fmt.Errorf("%w: unexpected message %s", ErrProtocol, msg.Type)
		}
	}
}
