package domain

import "time"

// SockRepository описывает складское хранилище носков.
//
// Три операции "по id" сопоставляют записи по-разному и не взаимозаменяемы:
// GetByID сравнивает поле Sock.ID, Sell ищет по тройке (цвет, размер, состав),
// Delete удаляет по ключу хранилища.
type SockRepository interface {
	// Add присваивает партии следующий ID и сохраняет её. Дубликаты допускаются.
	Add(sock Sock) (Sock, error)
	// GetByID возвращает партию, у которой поле ID равно id.
	GetByID(id int64) (Sock, error)
	// GetByColor возвращает первую партию указанного цвета.
	GetByColor(color Color) (Sock, error)
	// GetBySize возвращает первую партию указанного размера.
	GetBySize(size Size) (Sock, error)
	// GetByComposition возвращает первую партию с точно таким составом.
	GetByComposition(composition Composition) (Sock, error)
	// List возвращает копию всех партий.
	List() ([]Sock, error)
	// AggregateQuantity суммирует количество по партиям, попавшим под фильтр.
	AggregateQuantity(filter QuantityFilter) (int, error)
	// Sell списывает requested.Quantity с первой партии с теми же параметрами.
	// id принимается для симметрии интерфейса и в поиске не участвует.
	Sell(id int64, requested Sock) (Sock, error)
	// Delete удаляет партию по ключу хранилища и возвращает удалённую запись.
	Delete(id int64) (Sock, error)
}

// EventPublisher публикует события изменения склада во внешнюю систему.
type EventPublisher interface {
	Publish(event SockEvent) error
}

// IdempotencyRepository хранит состояние обработки запросов по idempotency-key.
type IdempotencyRepository interface {
	CreateProcessing(key, requestHash string, ttlAt time.Time) (IdempotencyRecord, error)
	Get(key string) (IdempotencyRecord, error)
	MarkDone(key string, responseBody []byte, statusCode int) error
	MarkFailed(key string, responseBody []byte, statusCode int) error
	// Delete освобождает ключ, чтобы запрос можно было повторить.
	Delete(key string) error
	DeleteExpired(before time.Time, limit int) (int, error)
}
