package relay

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// Result is one transcription hypothesis from the speech backend.
type Result struct {
	Text  string
	Final bool
}

// RecognizerStream is a live transcription session: audio frames in,
// interim and final results out. Results is closed when the session ends.
type RecognizerStream interface {
	Write(frame []byte) error
	Results() <-chan Result
	Close() error
}

// Recognizer opens transcription sessions against the external speech
// service. The service itself stays outside this process.
type Recognizer interface {
	NewStream(ctx context.Context) (RecognizerStream, error)
}

// TranscriptEvent is the wire shape fanned out to listeners.
type TranscriptEvent struct {
	Type  string `json:"type"` // "stt"
	Text  string `json:"text"`
	Final bool   `json:"final"`
}

// SttRelay pumps each client's audio into its own recognizer stream and
// fans every transcript out to all connected listeners, the speaking
// client included.
type SttRelay struct {
	recognizer Recognizer

	mu    sync.RWMutex
	peers map[*peer]struct{}
}

func NewSttRelay(recognizer Recognizer) *SttRelay {
	return &SttRelay{
		recognizer: recognizer,
		peers:      make(map[*peer]struct{}),
	}
}

func (s *SttRelay) Handle(ginCtx *gin.Context) {
	rawConn, err := upgrader.Upgrade(ginCtx.Writer, ginCtx.Request, nil)
	if err != nil {
		zap.L().Warn("relay.stt_accept", zap.Error(err))
		return
	}

	// The session lives as long as the connection, not the HTTP request.
	ctx, cancel := context.WithCancel(context.Background())
	stream, err := s.recognizer.NewStream(ctx)
	if err != nil {
		zap.L().Error("relay.stt_stream", zap.Error(err))
		cancel()
		rawConn.Close()
		return
	}

	p := &peer{rawConn: rawConn}
	s.addPeer(p)
	zap.L().Info("relay.stt_join")

	go s.fanResults(stream)
	go s.pumpAudio(p, stream, cancel)
}

// pumpAudio forwards inbound audio frames into the recognizer until the
// client disconnects.
func (s *SttRelay) pumpAudio(p *peer, stream RecognizerStream, cancel context.CancelFunc) {
	defer func() {
		s.removePeer(p)
		p.rawConn.Close()
		_ = stream.Close()
		cancel()
		zap.L().Info("relay.stt_leave")
	}()

	for {
		_, data, err := p.rawConn.ReadMessage()
		if err != nil {
			return
		}
		if err := stream.Write(data); err != nil {
			zap.L().Warn("relay.stt_write", zap.Error(err))
			return
		}
	}
}

// fanResults broadcasts every hypothesis to all current listeners until
// the stream's result channel closes.
func (s *SttRelay) fanResults(stream RecognizerStream) {
	for res := range stream.Results() {
		data, err := json.Marshal(TranscriptEvent{Type: "stt", Text: res.Text, Final: res.Final})
		if err != nil {
			zap.L().Warn("relay.stt_marshal", zap.Error(err))
			continue
		}

		s.mu.RLock()
		peers := make([]*peer, 0, len(s.peers))
		for p := range s.peers {
			peers = append(peers, p)
		}
		s.mu.RUnlock()

		for _, p := range peers {
			if err := p.send(websocket.TextMessage, data); err != nil {
				s.removePeer(p)
				p.rawConn.Close()
			}
		}
	}
}

func (s *SttRelay) addPeer(p *peer) {
	s.mu.Lock()
	s.peers[p] = struct{}{}
	s.mu.Unlock()
}

func (s *SttRelay) removePeer(p *peer) {
	s.mu.Lock()
	delete(s.peers, p)
	s.mu.Unlock()
}
