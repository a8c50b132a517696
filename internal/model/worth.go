package model

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// WorthRange — необязательный фильтр по стоимости заказа, обе границы включительно
// один и тот же предикат используется и при агрегации, и при чтении снапшота
type WorthRange struct {
	Min *decimal.Decimal
	Max *decimal.Decimal
}

// ParseWorthRange разбирает границы из строк, пустая строка означает отсутствие границы
func ParseWorthRange(minStr, maxStr string) (WorthRange, error) {
	var rng WorthRange

	if minStr != "" {
		v, err := decimal.NewFromString(minStr)
		if err != nil {
			return WorthRange{}, fmt.Errorf("invalid minWorth %q: %w", minStr, err)
		}
		rng.Min = &v
	}

	if maxStr != "" {
		v, err := decimal.NewFromString(maxStr)
		if err != nil {
			return WorthRange{}, fmt.Errorf("invalid maxWorth %q: %w", maxStr, err)
		}
		rng.Max = &v
	}

	return rng, nil
}

// Contains проверяет, попадает ли стоимость в диапазон
func (r WorthRange) Contains(worth decimal.Decimal) bool {
	if r.Min != nil && worth.LessThan(*r.Min) {
		return false
	}
	if r.Max != nil && worth.GreaterThan(*r.Max) {
		return false
	}
	return true
}

// Filter возвращает заказы, прошедшие фильтр, сохраняя исходный порядок
// результат никогда не nil, чтобы пустой ответ сериализовался как []
func (r WorthRange) Filter(orders []OrderDetail) []OrderDetail {
	out := make([]OrderDetail, 0, len(orders))
	for _, o := range orders {
		if r.Contains(o.OrderWorth) {
			out = append(out, o)
		}
	}
	return out
}

// IsZero сообщает, что фильтр не задан
func (r WorthRange) IsZero() bool {
	return r.Min == nil && r.Max == nil
}
