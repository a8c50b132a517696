package gateway

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/asquebay/order-sync-service/internal/model"
)

// тела запросов и ответов внешнего API
// теги validate описывают минимально необходимую форму ответа

type searchRequest struct {
	Params searchParams `json:"params"`
}

type searchParams struct {
	OrdersRange  ordersRange `json:"ordersRange"`
	ResultsPage  int         `json:"resultsPage"`
	ResultsLimit int         `json:"resultsLimit"`
}

type ordersRange struct {
	DateConfirmedFrom string `json:"dateConfirmedFrom"`
	DateConfirmedTo   string `json:"dateConfirmedTo"`
}

type searchResponse struct {
	Results []orderStub `json:"Results" validate:"required"`
}

type orderStub struct {
	OrderID model.ID `json:"orderId"`
}

type detailResponse struct {
	Results []remoteOrder `json:"Results" validate:"required"`
}

type remoteOrder struct {
	OrderID      model.ID      `json:"orderId"`
	OrderDetails *orderDetails `json:"orderDetails" validate:"required"`
}

type orderDetails struct {
	Payments *payments `json:"payments" validate:"required"`
	// разбирается отдельно в products()
	ProductsResults json.RawMessage `json:"productsResults"`
}

type payments struct {
	OrderCurrency *orderCurrency `json:"orderCurrency" validate:"required"`
}

type orderCurrency struct {
	OrderProductsCost *decimal.Decimal `json:"orderProductsCost" validate:"required"`
	OrderDeliveryCost *decimal.Decimal `json:"orderDeliveryCost" validate:"required"`
}

type productsResult struct {
	ProductID       model.ID `json:"productId"`
	ProductQuantity int      `json:"productQuantity" validate:"gte=0"`
}

var validate = validator.New()

var errNoProducts = errors.New("no product list")

// products разбирает и проверяет список товаров заказа
func (d *orderDetails) products() ([]productsResult, error) {
	raw := bytes.TrimSpace(d.ProductsResults)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil, errNoProducts
	}

	var list []productsResult
	if err := json.Unmarshal(raw, &list); err != nil {
		return nil, fmt.Errorf("%w: %v", errNoProducts, err)
	}
	if err := validate.Var(list, "dive"); err != nil {
		return nil, err
	}

	return list, nil
}

// toOrderDetail переводит заказ из формата внешнего API в OrderDetail
// стоимость всегда считается здесь, готовым итоговым полям API не доверяем
func (o remoteOrder) toOrderDetail(items []productsResult) model.OrderDetail {
	cur := o.OrderDetails.Payments.OrderCurrency
	products := make([]model.Product, 0, len(items))
	for _, p := range items {
		products = append(products, model.Product{
			ProductID: p.ProductID,
			Quantity:  p.ProductQuantity,
		})
	}

	return model.OrderDetail{
		OrderID:    o.OrderID,
		Products:   products,
		OrderWorth: cur.OrderProductsCost.Add(*cur.OrderDeliveryCost),
	}
}
