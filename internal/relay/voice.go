package relay

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const relayWriteWait = 10 * time.Second

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin:     func(*http.Request) bool { return true }, // dev-only
}

// peer serializes writes to one relay connection; frames from several
// senders fan in concurrently.
type peer struct {
	mu      sync.Mutex
	rawConn *websocket.Conn
}

func (p *peer) send(mt int, data []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	_ = p.rawConn.SetWriteDeadline(time.Now().Add(relayWriteWait))
	return p.rawConn.WriteMessage(mt, data)
}

// VoiceRelay forwards opaque audio frames between the clients of a group.
// The sender never receives its own frames back, and the relay knows
// nothing about rooms or turns.
type VoiceRelay struct {
	mu     sync.RWMutex
	groups map[string]map[*peer]struct{}
}

func NewVoiceRelay() *VoiceRelay {
	return &VoiceRelay{groups: make(map[string]map[*peer]struct{})}
}

func (v *VoiceRelay) Handle(ginCtx *gin.Context) {
	group := ginCtx.DefaultQuery("group", "default")

	rawConn, err := upgrader.Upgrade(ginCtx.Writer, ginCtx.Request, nil)
	if err != nil {
		zap.L().Warn("relay.voice_accept", zap.Error(err))
		return
	}

	p := &peer{rawConn: rawConn}
	v.add(group, p)
	zap.L().Info("relay.voice_join", zap.String("group", group))

	go v.pump(group, p)
}

func (v *VoiceRelay) pump(group string, p *peer) {
	defer func() {
		v.remove(group, p)
		p.rawConn.Close()
		zap.L().Info("relay.voice_leave", zap.String("group", group))
	}()

	for {
		mt, data, err := p.rawConn.ReadMessage()
		if err != nil {
			return
		}
		v.fanout(group, p, mt, data)
	}
}

func (v *VoiceRelay) fanout(group string, from *peer, mt int, data []byte) {
	v.mu.RLock()
	peers := make([]*peer, 0, len(v.groups[group]))
	for p := range v.groups[group] {
		if p != from {
			peers = append(peers, p)
		}
	}
	v.mu.RUnlock()

	var stale []*peer
	for _, p := range peers {
		if err := p.send(mt, data); err != nil {
			stale = append(stale, p)
		}
	}
	for _, p := range stale {
		v.remove(group, p)
		p.rawConn.Close()
	}
}

func (v *VoiceRelay) add(group string, p *peer) {
	v.mu.Lock()
	defer v.mu.Unlock()
	set, ok := v.groups[group]
	if !ok {
		set = make(map[*peer]struct{})
		v.groups[group] = set
	}
	set[p] = struct{}{}
}

func (v *VoiceRelay) remove(group string, p *peer) {
	v.mu.Lock()
	defer v.mu.Unlock()
	set, ok := v.groups[group]
	if !ok {
		return
	}
	delete(set, p)
	if len(set) == 0 {
		delete(v.groups, group)
	}
}
