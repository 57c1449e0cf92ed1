package webd

import (
	"encoding/json"
	"time"

	"github.com/olahol/melody"
	"github.com/rotblauer/trajd/geo/trajectory"
)

// BatchEvent announces a computed batch.
type BatchEvent struct {
	BatchID string                `json:"batch_id"`
	Created time.Time             `json:"created"`
	Source  string                `json:"source"`
	Points  int                   `json:"points"`
	Stats   trajectory.BatchStats `json:"stats"`
}

type websocketAction string

var websocketActionComputed websocketAction = "computed"

type broadcast struct {
	Action websocketAction `json:"action"`
	Batch  BatchEvent      `json:"batch"`
}

// initMelody sets up the websocket handler.
// New connections get the last batch, if any; all connections get every batch after.
func (s *WebDaemon) initMelody() {
	s.melodyInstance = melody.New()

	s.melodyInstance.HandleConnect(func(session *melody.Session) {
		s.logger.Info("Websocket connected", "remote", session.Request.RemoteAddr)
		if item := s.lastBatch.Get(lastBatchKey); item != nil {
			b, err := json.Marshal(broadcast{Action: websocketActionComputed, Batch: item.Value()})
			if err == nil {
				_ = session.Write(b)
			}
		}
	})

	// Incoming messages are not part of the protocol. Log and drop.
	s.melodyInstance.HandleMessage(func(session *melody.Session, msg []byte) {
		s.logger.Debug("Websocket message", "remote", session.Request.RemoteAddr, "message", string(msg))
	})

	s.melodyInstance.HandleDisconnect(func(session *melody.Session) {
		s.logger.Info("Websocket disconnected", "remote", session.Request.RemoteAddr)
	})

	s.melodyInstance.HandleError(func(session *melody.Session, e error) {
		s.logger.Warn("Websocket error", "remote", session.Request.RemoteAddr, "error", e)
	})

	computed := make(chan BatchEvent)
	sub := s.feedComputed.Subscribe(computed)
	go func() {
		defer sub.Unsubscribe()
		for {
			select {
			case ev := <-computed:
				b, err := json.Marshal(broadcast{Action: websocketActionComputed, Batch: ev})
				if err != nil {
					s.logger.Error("Failed to marshal batch event", "error", err)
					continue
				}
				if s.melodyInstance.IsClosed() {
					return
				}
				if err := s.melodyInstance.Broadcast(b); err != nil {
					s.logger.Warn("Failed to broadcast batch event", "error", err)
				}
			case err := <-sub.Err():
				if err != nil {
					s.logger.Error("Batch feed subscription failed", "error", err)
				}
				return
			}
		}
	}()
}
