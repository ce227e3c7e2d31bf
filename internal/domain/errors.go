package domain

import "errors"

var (
	// ErrSockNotFound — партия не найдена по указанному критерию.
	// Критерий добавляется при оборачивании: "sock not found by color GRAY".
	ErrSockNotFound = errors.New("sock not found")
	// ErrInsufficientStock — на складе меньше носков, чем запрошено к продаже.
	ErrInsufficientStock = errors.New("insufficient stock for requested sock parameters")

	// Ошибка неизвестного цвета.
	ErrColorInvalid = errors.New("color is invalid")
	// Ошибка неизвестного размера.
	ErrSizeInvalid = errors.New("size is invalid")
	// Ошибка процента хлопка вне диапазона 0..100.
	ErrCottonPercentageInvalid = errors.New("cotton percentage must be within 0..100")
	// Ошибка отрицательного количества.
	ErrQuantityNegative = errors.New("quantity must be non-negative")
	// ErrCottonRangeInvalid — минимальный процент хлопка больше максимального.
	ErrCottonRangeInvalid = errors.New("minimum cotton percentage must be less than or equal to maximum")
)

// IsNotFound проверяет, что ошибка означает отсутствие партии.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrSockNotFound)
}

// IsInsufficientStock проверяет, что продажа отклонена из-за нехватки остатка.
func IsInsufficientStock(err error) bool {
	return errors.Is(err, ErrInsufficientStock)
}

// IsValidation сообщает, относится ли ошибка к некорректным входным данным.
func IsValidation(err error) bool {
	return errors.Is(err, ErrColorInvalid) ||
		errors.Is(err, ErrSizeInvalid) ||
		errors.Is(err, ErrCottonPercentageInvalid) ||
		errors.Is(err, ErrQuantityNegative) ||
		errors.Is(err, ErrCottonRangeInvalid)
}
