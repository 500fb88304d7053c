package ws

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
)

// internal (untyped) handler signature.
type rawHandler func(ctx context.Context, c *clientConn, raw json.RawMessage) error

// Router keeps a map[messageType]handler, à-la gin.Engine.
type Router struct {
	mu       sync.RWMutex
	handlers map[string]rawHandler
}

func NewRouter() *Router { return &Router{handlers: make(map[string]rawHandler)} }

// Register binds a message type to a strongly-typed handler. The handler
// receives the whole frame decoded into Req; the type discriminant rides
// along inside it.
func Register[Req any](
	r *Router,
	msgType string,
	h func(ctx context.Context, c *clientConn, req Req) error,
) {
	if msgType == "" {
		panic("ws router: empty message type")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.handlers[msgType] = func(ctx context.Context, c *clientConn, raw json.RawMessage) error {
		var req Req
		if len(raw) > 0 {
			if err := json.Unmarshal(raw, &req); err != nil {
				return err
			}
		}
		return h(ctx, c, req)
	}
}

var errUnknownType = errors.New("unknown_type")

// dispatch is called by the server's reader loop. An unknown type is an
// error so the caller can log and drop the frame.
func (r *Router) dispatch(ctx context.Context, c *clientConn, msgType string, raw json.RawMessage) error {
	r.mu.RLock()
	h, ok := r.handlers[msgType]
	r.mu.RUnlock()
	if !ok {
		return errUnknownType
	}
	return h(ctx, c, raw)
}
