package domain

import (
	"time"

	"github.com/google/uuid"
)

// SockEventType определяет тип складского события.
type SockEventType string

const (
	SockEventAdded   SockEventType = "sock.added"
	SockEventSold    SockEventType = "sock.sold"
	SockEventRemoved SockEventType = "sock.removed"
)

// SockEvent описывает изменение складского остатка.
// Delta — изменение количества: положительное при приходе, отрицательное при списании.
type SockEvent struct {
	EventID          string        `json:"event_id"`
	EventType        SockEventType `json:"event_type"`
	SockID           int64         `json:"sock_id"`
	Color            Color         `json:"color"`
	Size             Size          `json:"size"`
	CottonPercentage int           `json:"cotton_percentage"`
	Quantity         int           `json:"quantity"`
	Delta            int           `json:"delta"`
	Timestamp        time.Time     `json:"timestamp"`
}

// NewSockEvent создаёт событие по состоянию партии после изменения.
func NewSockEvent(eventType SockEventType, sock Sock, delta int) SockEvent {
	return SockEvent{
		EventID:          uuid.NewString(),
		EventType:        eventType,
		SockID:           sock.ID,
		Color:            sock.Color,
		Size:             sock.Size,
		CottonPercentage: sock.Composition.CottonPercentage,
		Quantity:         sock.Quantity,
		Delta:            delta,
		Timestamp:        time.Now().UTC(),
	}
}
