package ws

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"turnroomgo/internal/services/game"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10 // must be < pongWait

	maxFrameSize    = 4096
	dispatchTimeout = 2 * time.Second
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(*http.Request) bool { return true }, // dev-only
}

type WsServer struct {
	hub     *Hub
	router  *Router
	subMgr  *subscriptionManager // nil in single-instance deployments
	gameSvc game.IGameService
}

func NewWsServer(h *Hub, rdc *redis.Client, gameSvc game.IGameService) *WsServer {
	srv := &WsServer{
		hub:     h,
		router:  NewRouter(),
		gameSvc: gameSvc,
	}
	if rdc != nil {
		srv.subMgr = newSubscriptionManager(rdc, h)
	}
	srv.registerHandlers() // ← all WS message types configured here
	return srv
}

// ---------------------------------------------------------------------------
//  Public: Gin entry-point
// ---------------------------------------------------------------------------

func (s *WsServer) Handle(ginCtx *gin.Context) {
	rawConn, err := upgrader.Upgrade(ginCtx.Writer, ginCtx.Request, nil)
	if err != nil {
		zap.L().Warn("ws.accept", zap.Error(err))
		return
	}
	rawConn.SetReadLimit(maxFrameSize)

	conn := newClientConn(rawConn)
	go s.reader(conn)
	go conn.writePump()
}

// ---------------------------------------------------------------------------
//  Private helpers
// ---------------------------------------------------------------------------

func (s *WsServer) registerHandlers() {
	// 🔹 join --------------------------------------------------------------
	Register(s.router, "join",
		func(ctx context.Context, c *clientConn, req JoinRequest) error {
			if req.RoomID == "" {
				return errors.New("missing_room_id")
			}
			if c.roomID != "" {
				return errors.New("already_joined")
			}
			c.roomID = req.RoomID

			n := s.hub.Join(req.RoomID, c)
			if s.subMgr != nil {
				s.subMgr.Subscribe(req.RoomID) // may be a no-op (already subscribed)
			}
			s.gameSvc.Join(ctx, req.RoomID, req.TotalTurns, req.GameID, n == 1)

			zap.L().Info("ws.join",
				zap.String("room", req.RoomID),
				zap.String("conn", c.id),
				zap.Int("clients", n))
			return nil
		})

	// 🔹 start -------------------------------------------------------------
	Register(s.router, "start",
		func(ctx context.Context, _ *clientConn, req StartRequest) error {
			if req.RoomID == "" {
				return errors.New("missing_room_id")
			}
			s.gameSvc.Start(ctx, req.RoomID)
			return nil
		})

	// 🔹 turnEnd (client report) -------------------------------------------
	Register(s.router, "turnEnd",
		func(ctx context.Context, _ *clientConn, req TurnEndReport) error {
			if req.RoomID == "" {
				return errors.New("missing_room_id")
			}
			s.gameSvc.ReportTurnResult(ctx, req.RoomID, req.AnalysisData)
			return nil
		})

	// 🔹 requestTimer ------------------------------------------------------
	Register(s.router, "requestTimer",
		func(ctx context.Context, _ *clientConn, req RequestTimerRequest) error {
			if req.RoomID == "" {
				return errors.New("missing_room_id")
			}
			s.gameSvc.RequestTimer(ctx, req.RoomID)
			return nil
		})
}

func (s *WsServer) reader(conn *clientConn) {
	defer func() {
		if conn.roomID != "" {
			if emptied := s.hub.Leave(conn.roomID, conn); emptied {
				s.gameSvc.DestroyRoom(conn.roomID)
			}
			if s.subMgr != nil {
				s.subMgr.Unsubscribe(conn.roomID)
			}
		}
		conn.close()
	}()

	_ = conn.rawConn.SetReadDeadline(time.Now().Add(pongWait))
	conn.rawConn.SetPongHandler(func(string) error {
		return conn.rawConn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := conn.rawConn.ReadMessage()
		if err != nil {
			return // client closed or errored
		}

		var env inboundEnvelope
		if err := json.Unmarshal(data, &env); err != nil {
			// Protocol errors never tear the connection down.
			zap.L().Debug("ws.bad_frame", zap.String("conn", conn.id), zap.Error(err))
			continue
		}

		ctx, cancel := context.WithTimeout(context.Background(), dispatchTimeout)
		if err := s.router.dispatch(ctx, conn, env.Type, data); err != nil {
			zap.L().Debug("ws.dispatch",
				zap.String("type", env.Type),
				zap.String("conn", conn.id),
				zap.Error(err))
		}
		cancel()
	}
}
