package domain

import (
	"fmt"
	"strings"
)

// Color — закрытый набор цветов носков.
type Color string

const (
	ColorBlack  Color = "BLACK"
	ColorWhite  Color = "WHITE"
	ColorGray   Color = "GRAY"
	ColorRed    Color = "RED"
	ColorBlue   Color = "BLUE"
	ColorGreen  Color = "GREEN"
	ColorYellow Color = "YELLOW"
	ColorBrown  Color = "BROWN"
)

// Colors возвращает все допустимые цвета в порядке объявления.
func Colors() []Color {
	return []Color{ColorBlack, ColorWhite, ColorGray, ColorRed, ColorBlue, ColorGreen, ColorYellow, ColorBrown}
}

// Valid проверяет, что цвет относится к поддерживаемым значениям.
func (c Color) Valid() bool {
	switch c {
	case ColorBlack, ColorWhite, ColorGray, ColorRed, ColorBlue, ColorGreen, ColorYellow, ColorBrown:
		return true
	default:
		return false
	}
}

// ParseColor разбирает цвет без учёта регистра и пробелов по краям.
func ParseColor(raw string) (Color, error) {
	c := Color(strings.ToUpper(strings.TrimSpace(raw)))
	if !c.Valid() {
		return "", fmt.Errorf("%w: %q", ErrColorInvalid, raw)
	}
	return c, nil
}

// Size — закрытый набор размеров.
type Size string

const (
	SizeXS  Size = "XS"
	SizeS   Size = "S"
	SizeM   Size = "M"
	SizeL   Size = "L"
	SizeXL  Size = "XL"
	SizeXXL Size = "XXL"
)

// Sizes возвращает все допустимые размеры от меньшего к большему.
func Sizes() []Size {
	return []Size{SizeXS, SizeS, SizeM, SizeL, SizeXL, SizeXXL}
}

// Valid проверяет, что размер относится к поддерживаемым значениям.
func (s Size) Valid() bool {
	switch s {
	case SizeXS, SizeS, SizeM, SizeL, SizeXL, SizeXXL:
		return true
	default:
		return false
	}
}

// ParseSize разбирает размер без учёта регистра и пробелов по краям.
func ParseSize(raw string) (Size, error) {
	s := Size(strings.ToUpper(strings.TrimSpace(raw)))
	if !s.Valid() {
		return "", fmt.Errorf("%w: %q", ErrSizeInvalid, raw)
	}
	return s, nil
}

const (
	MinCottonPercentage = 0
	MaxCottonPercentage = 100
)

// Composition описывает состав материала. Сравнивается по всем полям.
type Composition struct {
	CottonPercentage int `json:"cottonPercentage"`
}

// Sock — партия носков на складе.
type Sock struct {
	ID          int64       `json:"id"`
	Color       Color       `json:"color"`
	Size        Size        `json:"size"`
	Composition Composition `json:"composition"`
	Quantity    int         `json:"quantity"`
}

// Validate проверяет значения перечислений и числовые диапазоны.
func (s *Sock) Validate() []error {
	var errs []error

	if !s.Color.Valid() {
		errs = append(errs, ErrColorInvalid)
	}
	if !s.Size.Valid() {
		errs = append(errs, ErrSizeInvalid)
	}
	if p := s.Composition.CottonPercentage; p < MinCottonPercentage || p > MaxCottonPercentage {
		errs = append(errs, ErrCottonPercentageInvalid)
	}
	if s.Quantity < 0 {
		errs = append(errs, ErrQuantityNegative)
	}

	return errs
}

// SameParameters сообщает, совпадает ли тройка (цвет, размер, состав).
// Именно по ней продажа находит складскую позицию, а не по ID.
func (s Sock) SameParameters(other Sock) bool {
	return s.Color == other.Color && s.Size == other.Size && s.Composition == other.Composition
}

// QuantityFilter задаёт необязательные критерии подсчёта остатков.
type QuantityFilter struct {
	Color     *Color
	Size      *Size
	CottonMin *int
	CottonMax *int
}

// Validate отклоняет фильтр, у которого минимум хлопка больше максимума.
func (f QuantityFilter) Validate() error {
	if f.CottonMin != nil && f.CottonMax != nil && *f.CottonMin > *f.CottonMax {
		return ErrCottonRangeInvalid
	}
	return nil
}

// Bounds возвращает нижнюю и верхнюю границу процента хлопка с учётом значений по умолчанию.
func (f QuantityFilter) Bounds() (int, int) {
	lo, hi := MinCottonPercentage, MaxCottonPercentage
	if f.CottonMin != nil {
		lo = *f.CottonMin
	}
	if f.CottonMax != nil {
		hi = *f.CottonMax
	}
	return lo, hi
}

// Matches проверяет, попадает ли партия под фильтр.
func (f QuantityFilter) Matches(s Sock) bool {
	if f.Color != nil && *f.Color != s.Color {
		return false
	}
	if f.Size != nil && *f.Size != s.Size {
		return false
	}
	lo, hi := f.Bounds()
	cotton := s.Composition.CottonPercentage
	return cotton >= lo && cotton <= hi
}
