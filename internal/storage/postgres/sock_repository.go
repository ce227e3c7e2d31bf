package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/vladislavdragonenkov/sockstore/internal/domain"
)

const sockColumns = `id, color, size, cotton_percentage, quantity`

type sockRepository struct {
	db *sql.DB
}

// NewSockRepository создаёт PostgreSQL-реализацию SockRepository.
// ID выдаёт BIGSERIAL: значения монотонны и после удаления не переиспользуются.
func NewSockRepository(store *Store) domain.SockRepository {
	return &sockRepository{db: store.DB()}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSock(row rowScanner) (domain.Sock, error) {
	var (
		sock   domain.Sock
		color  string
		size   string
		cotton int
	)
	if err := row.Scan(&sock.ID, &color, &size, &cotton, &sock.Quantity); err != nil {
		return domain.Sock{}, err
	}
	sock.Color = domain.Color(color)
	sock.Size = domain.Size(size)
	sock.Composition = domain.Composition{CottonPercentage: cotton}
	return sock, nil
}

func (r *sockRepository) Add(sock domain.Sock) (domain.Sock, error) {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	err := r.db.QueryRowContext(ctx, `
		INSERT INTO socks (color, size, cotton_percentage, quantity)
		VALUES ($1, $2, $3, $4)
		RETURNING id
	`, string(sock.Color), string(sock.Size), sock.Composition.CottonPercentage, sock.Quantity).Scan(&sock.ID)
	if err != nil {
		return domain.Sock{}, fmt.Errorf("insert sock: %w", err)
	}
	return sock, nil
}

func (r *sockRepository) GetByID(id int64) (domain.Sock, error) {
	return r.first(fmt.Sprintf("by id %d", id), `id = $1`, id)
}

func (r *sockRepository) GetByColor(color domain.Color) (domain.Sock, error) {
	return r.first(fmt.Sprintf("by color %s", color), `color = $1`, string(color))
}

func (r *sockRepository) GetBySize(size domain.Size) (domain.Sock, error) {
	return r.first(fmt.Sprintf("by size %s", size), `size = $1`, string(size))
}

func (r *sockRepository) GetByComposition(composition domain.Composition) (domain.Sock, error) {
	return r.first(
		fmt.Sprintf("by composition cotton=%d%%", composition.CottonPercentage),
		`cotton_percentage = $1`, composition.CottonPercentage,
	)
}

// first возвращает партию с наименьшим id, удовлетворяющую условию where.
func (r *sockRepository) first(criterion, where string, args ...any) (domain.Sock, error) {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	row := r.db.QueryRowContext(ctx,
		`SELECT `+sockColumns+` FROM socks WHERE `+where+` ORDER BY id LIMIT 1`, args...)
	sock, err := scanSock(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Sock{}, fmt.Errorf("%w %s", domain.ErrSockNotFound, criterion)
		}
		return domain.Sock{}, fmt.Errorf("select sock %s: %w", criterion, err)
	}
	return sock, nil
}

func (r *sockRepository) List() ([]domain.Sock, error) {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	rows, err := r.db.QueryContext(ctx, `SELECT `+sockColumns+` FROM socks ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list socks: %w", err)
	}
	defer rows.Close()

	result := make([]domain.Sock, 0)
	for rows.Next() {
		sock, err := scanSock(rows)
		if err != nil {
			return nil, fmt.Errorf("scan sock: %w", err)
		}
		result = append(result, sock)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate socks: %w", err)
	}
	return result, nil
}

func (r *sockRepository) AggregateQuantity(filter domain.QuantityFilter) (int, error) {
	lo, hi := filter.Bounds()

	var color, size sql.NullString
	if filter.Color != nil {
		color = sql.NullString{String: string(*filter.Color), Valid: true}
	}
	if filter.Size != nil {
		size = sql.NullString{String: string(*filter.Size), Valid: true}
	}

	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	var total int64
	err := r.db.QueryRowContext(ctx, `
		SELECT COALESCE(SUM(quantity), 0)
		FROM socks
		WHERE ($1::text IS NULL OR color = $1)
		  AND ($2::text IS NULL OR size = $2)
		  AND cotton_percentage BETWEEN $3 AND $4
	`, color, size, lo, hi).Scan(&total)
	if err != nil {
		return 0, fmt.Errorf("aggregate sock quantity: %w", err)
	}
	return int(total), nil
}

// Sell блокирует первую партию с теми же параметрами (FOR UPDATE),
// проверяет остаток и списывает в той же транзакции.
func (r *sockRepository) Sell(_ int64, requested domain.Sock) (domain.Sock, error) {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return domain.Sock{}, fmt.Errorf("begin sell tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stored, err := scanSock(tx.QueryRowContext(ctx, `
		SELECT `+sockColumns+`
		FROM socks
		WHERE color = $1 AND size = $2 AND cotton_percentage = $3
		ORDER BY id
		LIMIT 1
		FOR UPDATE
	`, string(requested.Color), string(requested.Size), requested.Composition.CottonPercentage))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Sock{}, fmt.Errorf("%w by parameters color=%s size=%s cotton=%d%%",
				domain.ErrSockNotFound, requested.Color, requested.Size, requested.Composition.CottonPercentage)
		}
		return domain.Sock{}, fmt.Errorf("select sock for sell: %w", err)
	}

	if requested.Quantity > stored.Quantity {
		return domain.Sock{}, fmt.Errorf("%w: requested %d, available %d",
			domain.ErrInsufficientStock, requested.Quantity, stored.Quantity)
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE socks SET quantity = quantity - $1 WHERE id = $2`,
		requested.Quantity, stored.ID,
	); err != nil {
		return domain.Sock{}, fmt.Errorf("decrement sock quantity: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return domain.Sock{}, fmt.Errorf("commit sell tx: %w", err)
	}

	stored.Quantity -= requested.Quantity
	return stored, nil
}

func (r *sockRepository) Delete(id int64) (domain.Sock, error) {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	sock, err := scanSock(r.db.QueryRowContext(ctx,
		`DELETE FROM socks WHERE id = $1 RETURNING `+sockColumns, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Sock{}, fmt.Errorf("%w by id %d", domain.ErrSockNotFound, id)
		}
		return domain.Sock{}, fmt.Errorf("delete sock: %w", err)
	}
	return sock, nil
}

var _ domain.SockRepository = (*sockRepository)(nil)
