package monitor

import (
	"encoding/json"
	"sync/atomic"
	"time"

	"github.com/harun/bglane/pkg/lanes"
	"github.com/rs/zerolog"
)

// EventBroadcaster fans scheduler events out to every connected client
type EventBroadcaster struct {
	clients *ClientRegistry
	logger  zerolog.Logger
	seq     uint64
}

// NewEventBroadcaster creates a broadcaster over clients
func NewEventBroadcaster(clients *ClientRegistry, logger zerolog.Logger) *EventBroadcaster {
	return &EventBroadcaster{
		clients: clients,
		logger:  logger,
	}
}

// HandleEvent converts a scheduler event and broadcasts it. It is registered
// as a lanes.EventHandler, so it runs on scheduler goroutines and must not block.
func (b *EventBroadcaster) HandleEvent(event lanes.Event) {
	b.Broadcast(EventMessage{
		Event:     event.Type,
		LaneID:    event.LaneID,
		ItemID:    event.ItemID,
		Data:      event.Data,
		Timestamp: event.Timestamp.UnixMilli(),
	})
}

// Broadcast stamps msg with the next sequence number and queues it for every
// client. Clients whose buffer is full are disconnected.
func (b *EventBroadcaster) Broadcast(msg EventMessage) {
	msg.Type = "event"
	msg.Seq = b.nextSeq()
	if msg.Timestamp == 0 {
		msg.Timestamp = time.Now().UnixMilli()
	}

	jsonData, err := json.Marshal(msg)
	if err != nil {
		b.logger.Error().
			Err(err).
			Str("event", msg.Event).
			Int64("seq", msg.Seq).
			Msg("Failed to marshal event")
		return
	}

	clients := b.clients.GetAll()
	if len(clients) == 0 {
		return
	}

	dropped := 0
	for _, client := range clients {
		if !client.Send(jsonData) {
			b.logger.Warn().
				Str("clientId", client.ID).
				Str("event", msg.Event).
				Int64("seq", msg.Seq).
				Msg("Client not keeping up, disconnecting")
			b.clients.Remove(client.ID)
			client.Close()
			dropped++
		}
	}

	b.logger.Debug().
		Str("event", msg.Event).
		Int64("seq", msg.Seq).
		Int("clients", len(clients)).
		Int("dropped", dropped).
		Msg("Event queued for clients")
}

func (b *EventBroadcaster) nextSeq() int64 {
	return int64(atomic.AddUint64(&b.seq, 1))
}
