package kafka

// DefaultTopic — топик складских событий по умолчанию.
const DefaultTopic = "socks.inventory.events"

// Заголовки сообщений; позволяют фильтровать события без разбора тела.
const (
	HeaderEventType = "x-event-type"
	HeaderEventID   = "x-event-id"
)
