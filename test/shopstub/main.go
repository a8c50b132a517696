// этот код не зависит от приложения,
// и нужен только для локального запуска сервиса без настоящего магазина
// отдаёт фиксированный набор заказов, часть из них намеренно битая
package main

import (
	"encoding/json"
	"flag"
	"log/slog"
	"net/http"
	"os"

	"github.com/gorilla/mux"
)

type product struct {
	ProductID       string `json:"productId"`
	ProductQuantity int    `json:"productQuantity"`
}

type order struct {
	id       string
	products []product
	cost     float64
	delivery float64
	// нет блока payments, сервис должен сохранить деградировавшую запись
	broken bool
	// есть в поиске, но не отдаётся деталями
	missing bool
}

var orders = []order{
	{id: "1001", products: []product{{"P-1", 2}, {"P-7", 1}}, cost: 60.5, delivery: 14.5},
	{id: "1002", products: []product{{"P-3", 1}}, cost: 120, delivery: 0},
	{id: "1003", products: []product{}, cost: 0, delivery: 9.99},
	{id: "1004", broken: true},
	{id: "1005", missing: true},
}

func main() {
	addr := flag.String("addr", ":8081", "listen address")
	apiKey := flag.String("api-key", "dev-key", "expected X-API-KEY")
	flag.Parse()

	log := slog.New(slog.NewTextHandler(os.Stdout, nil))

	r := mux.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			log.Info("request", slog.String("method", req.Method), slog.String("url", req.URL.String()))
			if req.Header.Get("X-API-KEY") != *apiKey {
				w.WriteHeader(http.StatusForbidden)
				return
			}
			next.ServeHTTP(w, req)
		})
	})
	r.HandleFunc("/orders/orders/search", search).Methods(http.MethodPost)
	r.HandleFunc("/orders/orders", details).Methods(http.MethodGet).Queries("ordersIds", "{id}")

	log.Info("shop stub listening", slog.String("addr", *addr))
	if err := http.ListenAndServe(*addr, r); err != nil {
		log.Error("shop stub stopped", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

func search(w http.ResponseWriter, _ *http.Request) {
	results := make([]map[string]string, 0, len(orders))
	for _, o := range orders {
		results = append(results, map[string]string{"orderId": o.id})
	}
	respond(w, map[string]any{"Results": results})
}

func details(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	results := []any{}
	for _, o := range orders {
		if o.id != id || o.missing {
			continue
		}
		if o.broken {
			results = append(results, map[string]any{
				"orderId":      o.id,
				"orderDetails": map[string]any{"productsResults": []product{}},
			})
			continue
		}
		results = append(results, map[string]any{
			"orderId": o.id,
			"orderDetails": map[string]any{
				"payments": map[string]any{
					"orderCurrency": map[string]any{
						"orderProductsCost": o.cost,
						"orderDeliveryCost": o.delivery,
					},
				},
				"productsResults": o.products,
			},
		})
	}
	respond(w, map[string]any{"Results": results})
}

func respond(w http.ResponseWriter, payload any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(payload)
}
