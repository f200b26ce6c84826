package progress

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const writeWait = 10 * time.Second

var upgrader = websocket.Upgrader{
	CheckOrigin:     func(r *http.Request) bool { return true },
	ReadBufferSize:  1024,
	WriteBufferSize: 64 * 1024,
}

// Broadcaster streams bus events to WebSocket clients as JSON. A "run" query
// parameter restricts a client to one run's events.
type Broadcaster struct {
	bus *Bus
	log *zap.Logger
}

func NewBroadcaster(bus *Bus, log *zap.Logger) *Broadcaster {
	if log == nil {
		log = zap.NewNop()
	}
	return &Broadcaster{bus: bus, log: log}
}

func (b *Broadcaster) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ws, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		b.log.Warn("websocket upgrade failed", zap.Error(err))
		return
	}
	defer ws.Close()

	runID := r.URL.Query().Get("run")
	failed := make(chan struct{})
	var broken bool
	unsubscribe := b.bus.Subscribe(func(e Event) {
		if broken || (runID != "" && e.RunID != runID) {
			return
		}
		ws.SetWriteDeadline(time.Now().Add(writeWait))
		if err := ws.WriteJSON(e); err != nil {
			b.log.Debug("websocket write failed", zap.Error(err))
			broken = true
			close(failed)
		}
	})
	defer unsubscribe()
	b.log.Debug("websocket client connected", zap.String("run", runID))

	// Reads only detect the peer going away; clients send nothing meaningful.
	readErr := make(chan error, 1)
	go func() {
		for {
			if _, _, err := ws.ReadMessage(); err != nil {
				readErr <- err
				return
			}
		}
	}()

	select {
	case <-failed:
	case err := <-readErr:
		b.log.Debug("websocket client disconnected", zap.Error(err))
	case <-r.Context().Done():
	}
}
