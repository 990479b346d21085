package httpapi

import (
	"net/http"

	"github.com/gorilla/websocket"

	"orchestrator/internal/eventbus"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// wsControlMessage is the client->server subscription protocol of spec §6.
type wsControlMessage struct {
	Action  string `json:"action"` // subscribe | unsubscribe
	Channel string `json:"channel"`
}

// ServeWS upgrades the connection and streams events for whatever channel
// the client subscribes to, grounded on the gorilla/websocket usage in
// PedroCLI's cmd/web-server.
func (b *Broadcaster) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	control := make(chan wsControlMessage)
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			var msg wsControlMessage
			if err := conn.ReadJSON(&msg); err != nil {
				return
			}
			select {
			case control <- msg:
			case <-closed:
				return
			}
		}
	}()

	var active *sseClient
	defer func() {
		if active != nil {
			b.RemoveClient(active.id)
		}
	}()

	for {
		var eventCh chan eventbus.Event
		if active != nil {
			eventCh = active.ch
		}
		select {
		case <-closed:
			return
		case msg := <-control:
			switch msg.Action {
			case "subscribe":
				if active != nil {
					b.RemoveClient(active.id)
				}
				active = b.AddClient(msg.Channel)
			case "unsubscribe":
				if active != nil {
					b.RemoveClient(active.id)
					active = nil
				}
			}
		case ev := <-eventCh:
			if err := conn.WriteJSON(ev); err != nil {
				return
			}
		}
	}
}
