package model

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/shopspring/decimal"
)

func init() {
	// в снапшоте стоимость заказа хранится числом, а не строкой
	decimal.MarshalJSONWithoutQuotes = true
}

// ID — непрозрачный идентификатор из внешнего API
// API отдаёт идентификаторы то строкой, то числом, поэтому принимаем оба варианта
type ID string

// UnmarshalJSON принимает как строку, так и число
func (id *ID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*id = ""
		return nil
	}

	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*id = ID(s)
		return nil
	}

	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("id must be a string or a number: %w", err)
	}
	*id = ID(n.String())
	return nil
}

// String возвращает идентификатор как строку
func (id ID) String() string {
	return string(id)
}

// Product — позиция заказа
type Product struct {
	ProductID ID  `json:"productID"`
	Quantity  int `json:"quantity"`
}

// OrderDetail — обогащённый заказ, именно он попадает в снапшот
// OrderWorth всегда вычисляется шлюзом как сумма стоимости товаров и доставки
// если детали заказа получить не удалось, запись деградирует:
// товаров нет, стоимость 0, в Error — причина
type OrderDetail struct {
	OrderID    ID              `json:"orderID"`
	Products   []Product       `json:"products"`
	OrderWorth decimal.Decimal `json:"orderWorth"`
	Error      string          `json:"error,omitempty"`
}

// Degraded сообщает, что запись получена не полностью
func (o OrderDetail) Degraded() bool {
	return o.Error != ""
}

// DegradedOrder создаёт запись-заглушку для заказа, детали которого получить не удалось
func DegradedOrder(id ID, err error) OrderDetail {
	return OrderDetail{
		OrderID:    id,
		Products:   []Product{},
		OrderWorth: decimal.Zero,
		Error:      err.Error(),
	}
}

// TotalWorth суммирует стоимость всех заказов
func TotalWorth(orders []OrderDetail) decimal.Decimal {
	total := decimal.Zero
	for _, o := range orders {
		total = total.Add(o.OrderWorth)
	}
	return total
}

// CountDegraded считает деградировавшие записи
func CountDegraded(orders []OrderDetail) int {
	n := 0
	for _, o := range orders {
		if o.Degraded() {
			n++
		}
	}
	return n
}
