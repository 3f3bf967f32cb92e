package dashboard

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/wave-portal/pkg/feed"
	"github.com/wave-portal/pkg/wave"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = pongWait * 9 / 10
)

// liveMessage is pushed to websocket clients. A "snapshot" carries the whole
// feed, a "wave" one newly accepted record.
type liveMessage struct {
	Type  string        `json:"type"`
	Wave  *wave.Record  `json:"wave,omitempty"`
	Waves []wave.Record `json:"waves,omitempty"`
	Total uint64        `json:"total"`
	Ready bool          `json:"ready"`
}

func snapshotMessage(st feed.State) liveMessage {
	return liveMessage{Type: "snapshot", Waves: st.Records, Total: st.Total, Ready: st.Ready}
}

func (d *Dashboard) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := d.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Debug().Err(err).Msg("websocket upgrade")
		return
	}
	defer conn.Close()

	updates, cancel := d.watcher.Watch()
	defer cancel()

	// reader: handles pongs and notices the client leaving
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		conn.SetReadLimit(512)
		conn.SetReadDeadline(time.Now().Add(pongWait))
		conn.SetPongHandler(func(string) error {
			return conn.SetReadDeadline(time.Now().Add(pongWait))
		})
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	first := d.backend.State().Feed
	if err := d.push(conn, snapshotMessage(first)); err != nil {
		return
	}
	sent := first.Total

	ping := time.NewTicker(pingPeriod)
	defer ping.Stop()
	for {
		select {
		case u, ok := <-updates:
			if !ok {
				return
			}
			msg, send := nextFrame(sent, u)
			if !send {
				continue
			}
			sent = u.State.Total
			if err := d.push(conn, msg); err != nil {
				log.Debug().Err(err).Msg("websocket client dropped")
				return
			}
		case <-ping.C:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-closed:
			return
		case <-r.Context().Done():
			return
		}
	}
}

// nextFrame picks the frame for u given the total the client already has.
// An added wave the client already holds is skipped. A gap, from updates the
// watcher missed, is closed with a full snapshot.
func nextFrame(sent uint64, u feed.Update) (liveMessage, bool) {
	if u.Kind != feed.Added {
		return snapshotMessage(u.State), true
	}
	switch {
	case u.State.Total <= sent:
		return liveMessage{}, false
	case u.State.Total == sent+1:
		rec := u.Record
		return liveMessage{Type: "wave", Wave: &rec, Total: u.State.Total, Ready: u.State.Ready}, true
	default:
		return snapshotMessage(u.State), true
	}
}

func (d *Dashboard) push(conn *websocket.Conn, msg liveMessage) error {
	conn.SetWriteDeadline(time.Now().Add(writeWait))
	return conn.WriteJSON(msg)
}
