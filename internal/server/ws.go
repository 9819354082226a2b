package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"

	eventbus "github.com/hanpama/restgraph/internal/eventbus"
	events "github.com/hanpama/restgraph/internal/events"
	"github.com/hanpama/restgraph/internal/httprt"
	language "github.com/hanpama/restgraph/internal/language"
	reqid "github.com/hanpama/restgraph/internal/reqid"
)

// Subprotocols. graphql-ws is the legacy subscriptions-transport-ws name.
const (
	protocolTransportWS = "graphql-transport-ws"
	protocolLegacyWS    = "graphql-ws"
)

const (
	msgConnectionInit = "connection_init"
	msgConnectionAck  = "connection_ack"

	msgPing      = "ping"
	msgPong      = "pong"
	msgSubscribe = "subscribe"
	msgNext      = "next"
	msgError     = "error"
	msgComplete  = "complete"

	msgKeepAlive           = "ka"
	msgStart               = "start"
	msgData                = "data"
	msgStop                = "stop"
	msgConnectionTerminate = "connection_terminate"
)

// Close codes of graphql-transport-ws.
const (
	closeInvalidMessage   websocket.StatusCode = 4400
	closeUnauthorized     websocket.StatusCode = 4401
	closeDuplicateID      websocket.StatusCode = 4409
	closeTooManyInitCalls websocket.StatusCode = 4429
)

const wsWriteTimeout = 5 * time.Second

type wsMessage struct {
	ID      string          `json:"id,omitempty"`
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// wsConn is one client connection and its running operations.
type wsConn struct {
	id       string
	conn     *websocket.Conn
	protocol string
	header   http.Header

	mu     sync.Mutex
	acked  bool
	values map[string]any
	subs   map[string]context.CancelFunc
}

func isWebSocketUpgrade(r *http.Request) bool {
	return strings.EqualFold(r.Header.Get("Upgrade"), "websocket")
}

func (h *Handler) acceptOptions() *websocket.AcceptOptions {
	opts := &websocket.AcceptOptions{Subprotocols: []string{protocolTransportWS, protocolLegacyWS}}
	origins := h.opt.CORS.AllowedOrigins
	if slices.Contains(origins, "*") {
		opts.InsecureSkipVerify = true
		return opts
	}
	for _, o := range origins {
		if u, err := url.Parse(o); err == nil && u.Host != "" {
			opts.OriginPatterns = append(opts.OriginPatterns, u.Host)
		} else {
			opts.OriginPatterns = append(opts.OriginPatterns, o)
		}
	}
	return opts
}

func (h *Handler) serveWS(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, h.acceptOptions())
	if err != nil {
		h.log.DebugContext(r.Context(), "websocket upgrade failed", "error", err)
		return
	}
	protocol := conn.Subprotocol()
	if protocol == "" {
		protocol = protocolTransportWS
	}
	sc := &wsConn{
		id:       uuid.NewString(),
		conn:     conn,
		protocol: protocol,
		header:   r.Header.Clone(),
		subs:     make(map[string]context.CancelFunc),
	}
	ctx, cancel := context.WithCancel(r.Context())
	ctx, _ = reqid.NewContext(ctx, r.Header.Get(reqid.Header))
	log := h.log.With("conn", sc.id, "protocol", protocol)
	log.DebugContext(ctx, "websocket connected")

	defer func() {
		cancel()
		sc.mu.Lock()
		for _, c := range sc.subs {
			c()
		}
		sc.subs = map[string]context.CancelFunc{}
		sc.mu.Unlock()
		_ = conn.Close(websocket.StatusNormalClosure, "")
		log.DebugContext(ctx, "websocket closed")
	}()

	for {
		typ, data, err := conn.Read(ctx)
		if err != nil {
			return
		}
		if typ != websocket.MessageText {
			continue
		}
		var msg wsMessage
		if err := json.Unmarshal(data, &msg); err != nil || msg.Type == "" {
			_ = conn.Close(closeInvalidMessage, "invalid message")
			return
		}
		if !h.handleWS(ctx, sc, &msg) {
			return
		}
	}
}

// handleWS processes one client message. It returns false when the
// connection must be closed.
func (h *Handler) handleWS(ctx context.Context, sc *wsConn, msg *wsMessage) bool {
	switch msg.Type {
	case msgConnectionInit:
		var params map[string]any
		if len(msg.Payload) > 0 {
			_ = decodeJSON(msg.Payload, &params)
		}
		sc.mu.Lock()
		again := sc.acked
		sc.acked = true
		sc.values = requestValues(sc.header, h.opt.ForwardHeaders, params)
		sc.mu.Unlock()
		if again && sc.protocol == protocolTransportWS {
			_ = sc.conn.Close(closeTooManyInitCalls, "too many initialisation requests")
			return false
		}
		_ = sc.send(&wsMessage{Type: msgConnectionAck})
		if sc.protocol == protocolLegacyWS {
			_ = sc.send(&wsMessage{Type: msgKeepAlive})
		}

	case msgPing:
		_ = sc.send(&wsMessage{Type: msgPong, Payload: msg.Payload})

	case msgPong:

	case msgSubscribe, msgStart:
		return h.startOperation(ctx, sc, msg)

	case msgComplete, msgStop:
		sc.mu.Lock()
		cancel := sc.subs[msg.ID]
		delete(sc.subs, msg.ID)
		sc.mu.Unlock()
		if cancel != nil {
			cancel()
		}

	case msgConnectionTerminate:
		return false

	default:
		if sc.protocol == protocolTransportWS {
			_ = sc.conn.Close(closeInvalidMessage, fmt.Sprintf("unknown message type %q", msg.Type))
			return false
		}
	}
	return true
}

func (h *Handler) startOperation(ctx context.Context, sc *wsConn, msg *wsMessage) bool {
	sc.mu.Lock()
	acked, values := sc.acked, sc.values
	sc.mu.Unlock()
	if !acked && sc.protocol == protocolTransportWS {
		_ = sc.conn.Close(closeUnauthorized, "unauthorized")
		return false
	}
	if msg.ID == "" {
		_ = sc.conn.Close(closeInvalidMessage, "operation id is required")
		return false
	}
	var req GraphQLRequest
	if err := decodeJSON(msg.Payload, &req); err != nil || req.Query == "" {
		sc.sendErrors(msg.ID, []specError{{Message: "invalid subscribe payload"}})
		return true
	}
	doc, opDef, errs := h.prepare(req)
	if errs != nil {
		sc.sendErrors(msg.ID, errs)
		return true
	}

	opCtx, cancel := context.WithCancel(ctx)
	sc.mu.Lock()
	if _, dup := sc.subs[msg.ID]; dup {
		sc.mu.Unlock()
		cancel()
		if sc.protocol == protocolTransportWS {
			_ = sc.conn.Close(closeDuplicateID, fmt.Sprintf("subscriber for %s already exists", msg.ID))
			return false
		}
		return true
	}
	sc.subs[msg.ID] = cancel
	sc.mu.Unlock()

	if values == nil {
		values = requestValues(sc.header, h.opt.ForwardHeaders, nil)
	}
	opCtx, _ = reqid.NewContext(opCtx, sc.id+":"+msg.ID)
	opCtx = httprt.WithRequestValues(opCtx, values)
	go h.runOperation(opCtx, sc, msg.ID, req, doc, opDef)
	return true
}

// runOperation streams the results of one operation. Queries and mutations
// produce a single result.
func (h *Handler) runOperation(ctx context.Context, sc *wsConn, id string, req GraphQLRequest, doc *language.QueryDocument, opDef *language.OperationDefinition) {
	opType := string(opDef.Operation)
	start := time.Now()
	rid, _ := reqid.FromContext(ctx)
	eventbus.Publish(ctx, events.GraphQLStart{ID: rid, Transport: "ws", Query: req.Query, OperationName: opDef.Name, OperationType: opType})
	var failures []error
	failedToStart := false
	defer func() {
		d := time.Since(start)
		eventbus.Publish(ctx, events.GraphQLFinish{ID: rid, Transport: "ws", OperationName: opDef.Name, OperationType: opType, Errors: failures, Duration: d})
		outcome := "ok"
		if len(failures) > 0 {
			outcome = "error"
		}
		h.opt.Metrics.ObserveGraphQL(opType, outcome, d)

		sc.mu.Lock()
		cancel := sc.subs[id]
		delete(sc.subs, id)
		sc.mu.Unlock()
		// A nil cancel means a client-side complete already ended the
		// operation.
		if cancel == nil {
			return
		}
		cancel()
		if !failedToStart {
			_ = sc.send(&wsMessage{ID: id, Type: msgComplete})
		}
	}()

	if opDef.Operation != language.Subscription {
		res := h.exec.ExecuteRequest(ctx, doc, opDef.Name, req.Variables, nil)
		for _, e := range res.Errors {
			failures = append(failures, e)
		}
		_ = sc.sendResult(id, toSpecResult(res))
		return
	}

	results, err := h.exec.Subscribe(ctx, doc, opDef.Name, req.Variables)
	if err != nil {
		failures = append(failures, err)
		sc.sendErrors(id, []specError{{Message: err.Error()}})
		failedToStart = true
		return
	}
	closed := h.opt.Metrics.SubscriptionOpened()
	defer closed()
	h.log.DebugContext(ctx, "subscription started", "conn", sc.id, "id", id, "name", opDef.Name)
	for res := range results {
		for _, e := range res.Errors {
			failures = append(failures, e)
		}
		if err := sc.sendResult(id, toSpecResult(res)); err != nil {
			return
		}
	}
}

func (sc *wsConn) send(msg *wsMessage) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(context.Background(), wsWriteTimeout)
	defer cancel()
	return sc.conn.Write(ctx, websocket.MessageText, data)
}

func (sc *wsConn) sendResult(id string, res specResult) error {
	payload, err := json.Marshal(res)
	if err != nil {
		return err
	}
	typ := msgNext
	if sc.protocol == protocolLegacyWS {
		typ = msgData
	}
	return sc.send(&wsMessage{ID: id, Type: typ, Payload: payload})
}

// sendErrors reports an operation that could not start. The legacy protocol
// carries a single error object.
func (sc *wsConn) sendErrors(id string, errs []specError) {
	var payload []byte
	if sc.protocol == protocolLegacyWS && len(errs) > 0 {
		payload, _ = json.Marshal(errs[0])
	} else {
		payload, _ = json.Marshal(errs)
	}
	_ = sc.send(&wsMessage{ID: id, Type: msgError, Payload: payload})
}
