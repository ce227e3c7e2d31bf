package memory

import (
	"fmt"
	"sync"

	"github.com/vladislavdragonenkov/sockstore/internal/domain"
)

// sockRepositoryInMemory — складское хранилище в памяти процесса.
// order хранит ключи в порядке вставки: "первая подходящая" партия
// определяется по нему, а не по случайному порядку обхода map.
type sockRepositoryInMemory struct {
	mu     sync.RWMutex
	items  map[int64]domain.Sock
	order  []int64
	nextID int64
}

// NewSockRepository возвращает пустой склад; счётчик ID начинается с 1.
func NewSockRepository() domain.SockRepository {
	return &sockRepositoryInMemory{
		items:  make(map[int64]domain.Sock),
		nextID: 1,
	}
}

// Add сохраняет копию партии под следующим ID и записывает этот ID в саму партию.
func (r *sockRepositoryInMemory) Add(sock domain.Sock) (domain.Sock, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	sock.ID = r.nextID
	r.nextID++
	r.items[sock.ID] = sock
	r.order = append(r.order, sock.ID)
	return sock, nil
}

func (r *sockRepositoryInMemory) GetByID(id int64) (domain.Sock, error) {
	sock, ok := r.first(func(s domain.Sock) bool { return s.ID == id })
	if !ok {
		return domain.Sock{}, fmt.Errorf("%w by id %d", domain.ErrSockNotFound, id)
	}
	return sock, nil
}

func (r *sockRepositoryInMemory) GetByColor(color domain.Color) (domain.Sock, error) {
	sock, ok := r.first(func(s domain.Sock) bool { return s.Color == color })
	if !ok {
		return domain.Sock{}, fmt.Errorf("%w by color %s", domain.ErrSockNotFound, color)
	}
	return sock, nil
}

func (r *sockRepositoryInMemory) GetBySize(size domain.Size) (domain.Sock, error) {
	sock, ok := r.first(func(s domain.Sock) bool { return s.Size == size })
	if !ok {
		return domain.Sock{}, fmt.Errorf("%w by size %s", domain.ErrSockNotFound, size)
	}
	return sock, nil
}

func (r *sockRepositoryInMemory) GetByComposition(composition domain.Composition) (domain.Sock, error) {
	sock, ok := r.first(func(s domain.Sock) bool { return s.Composition == composition })
	if !ok {
		return domain.Sock{}, fmt.Errorf("%w by composition cotton=%d%%", domain.ErrSockNotFound, composition.CottonPercentage)
	}
	return sock, nil
}

// List возвращает партии в порядке добавления.
func (r *sockRepositoryInMemory) List() ([]domain.Sock, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]domain.Sock, 0, len(r.order))
	for _, id := range r.order {
		result = append(result, r.items[id])
	}
	return result, nil
}

func (r *sockRepositoryInMemory) AggregateQuantity(filter domain.QuantityFilter) (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	total := 0
	for _, id := range r.order {
		if sock := r.items[id]; filter.Matches(sock) {
			total += sock.Quantity
		}
	}
	return total, nil
}

// Sell ищет партию по параметрам, проверяет остаток и только затем списывает.
func (r *sockRepositoryInMemory) Sell(_ int64, requested domain.Sock) (domain.Sock, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, key := range r.order {
		stored := r.items[key]
		if !stored.SameParameters(requested) {
			continue
		}
		if requested.Quantity > stored.Quantity {
			return domain.Sock{}, fmt.Errorf("%w: requested %d, available %d",
				domain.ErrInsufficientStock, requested.Quantity, stored.Quantity)
		}
		stored.Quantity -= requested.Quantity
		r.items[key] = stored
		return stored, nil
	}

	return domain.Sock{}, fmt.Errorf("%w by parameters color=%s size=%s cotton=%d%%",
		domain.ErrSockNotFound, requested.Color, requested.Size, requested.Composition.CottonPercentage)
}

// Delete удаляет запись по ключу хранилища.
func (r *sockRepositoryInMemory) Delete(id int64) (domain.Sock, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	sock, ok := r.items[id]
	if !ok {
		return domain.Sock{}, fmt.Errorf("%w by id %d", domain.ErrSockNotFound, id)
	}
	delete(r.items, id)
	for i, key := range r.order {
		if key == id {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	return sock, nil
}

func (r *sockRepositoryInMemory) first(match func(domain.Sock) bool) (domain.Sock, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, id := range r.order {
		if sock := r.items[id]; match(sock) {
			return sock, true
		}
	}
	return domain.Sock{}, false
}

var _ domain.SockRepository = (*sockRepositoryInMemory)(nil)
