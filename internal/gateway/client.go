package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/asquebay/order-sync-service/internal/model"
)

const (
	searchPath = "/orders/orders/search"
	ordersPath = "/orders/orders"

	// API принимает даты подтверждения в этом формате
	remoteDateLayout = "2006-01-02 15:04:05"

	// запрашивается только первая страница, пагинация не поддерживается
	searchResultsPage  = 0
	searchResultsLimit = 100

	maxResponseSize = 10 * 1024 * 1024
)

var (
	// ErrRemote — ошибка транспорта или протокола при обращении к API
	ErrRemote = errors.New("remote api error")
	// ErrNotFound — API не вернул ни одного заказа с таким ID
	ErrNotFound = errors.New("order not found in remote api")
	// ErrMissingData — в ответе API не хватает обязательных полей заказа
	ErrMissingData = errors.New("remote order is missing required data")
)

// Client — шлюз к внешнему API заказов
// ретраев и собственных таймаутов нет, используется таймаут транспорта по умолчанию
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// NewClient создаёт шлюз, baseURL и apiKey используются как есть
func NewClient(baseURL, apiKey string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		httpClient: httpClient,
	}
}

// SearchOrderIDs ищет ID заказов, подтверждённых в заданном окне
// порядок ID совпадает с порядком в ответе API
func (c *Client) SearchOrderIDs(ctx context.Context, window model.DateWindow) ([]model.ID, error) {
	const op = "gateway.Client.SearchOrderIDs"

	body := searchRequest{
		Params: searchParams{
			OrdersRange: ordersRange{
				DateConfirmedFrom: window.From.Format(remoteDateLayout),
				DateConfirmedTo:   window.To.Format(remoteDateLayout),
			},
			ResultsPage:  searchResultsPage,
			ResultsLimit: searchResultsLimit,
		},
	}

	var resp searchResponse
	if err := c.do(ctx, http.MethodPost, c.baseURL+searchPath, body, &resp); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if err := validate.Struct(resp); err != nil {
		return nil, fmt.Errorf("%s: %w: no results collection in response: %v", op, ErrRemote, err)
	}

	ids := make([]model.ID, 0, len(resp.Results))
	for _, stub := range resp.Results {
		ids = append(ids, stub.OrderID)
	}

	return ids, nil
}

// FetchOrderDetail получает полный заказ по ID и вычисляет его стоимость
func (c *Client) FetchOrderDetail(ctx context.Context, id model.ID) (model.OrderDetail, error) {
	const op = "gateway.Client.FetchOrderDetail"

	q := url.Values{}
	q.Set("ordersIds", id.String())

	var resp detailResponse
	if err := c.do(ctx, http.MethodGet, c.baseURL+ordersPath+"?"+q.Encode(), nil, &resp); err != nil {
		return model.OrderDetail{}, fmt.Errorf("%s: %w", op, err)
	}

	if resp.Results == nil {
		return model.OrderDetail{}, fmt.Errorf("%s: %w: no results collection in response", op, ErrRemote)
	}
	if len(resp.Results) == 0 {
		return model.OrderDetail{}, fmt.Errorf("%s: %w: %s", op, ErrNotFound, id)
	}

	order := resp.Results[0]
	if err := validate.Struct(order); err != nil {
		return model.OrderDetail{}, fmt.Errorf("%s: %w: order %s: %v", op, ErrMissingData, id, err)
	}

	items, err := order.OrderDetails.products()
	if err != nil {
		return model.OrderDetail{}, fmt.Errorf("%s: %w: order %s: %v", op, ErrMissingData, id, err)
	}

	return order.toOrderDetail(items), nil
}

// do выполняет запрос с заголовками авторизации и разбирает JSON-ответ в out
func (c *Client) do(ctx context.Context, method, rawURL string, in, out any) error {
	var reqBody io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("%w: failed to encode request: %v", ErrRemote, err)
		}
		reqBody = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, rawURL, reqBody)
	if err != nil {
		return fmt.Errorf("%w: failed to build request: %v", ErrRemote, err)
	}
	req.Header.Set("X-API-KEY", c.apiKey)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrRemote, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return fmt.Errorf("%w: failed to read response: %v", ErrRemote, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("%w: unexpected status %d", ErrRemote, resp.StatusCode)
	}

	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("%w: failed to decode response: %v", ErrRemote, err)
	}

	return nil
}
