// этот код не зависит от приложения,
// и нужен только для ручной проверки запуска синхронизации через кафку
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"

	"github.com/segmentio/kafka-go"
)

func main() {
	// значения по умолчанию совпадают с config.yaml
	brokerAddress := flag.String("broker", "localhost:9092", "kafka broker address")
	topic := flag.String("topic", "orders.sync.requests", "sync request topic")
	from := flag.String("from", "", "window start, YYYY-MM-DD")
	to := flag.String("to", "", "window end, YYYY-MM-DD")
	minWorth := flag.String("min-worth", "", "minimum order worth")
	maxWorth := flag.String("max-worth", "", "maximum order worth")
	flag.Parse()

	message, err := json.Marshal(map[string]string{
		"from":     *from,
		"to":       *to,
		"minWorth": *minWorth,
		"maxWorth": *maxWorth,
	})
	if err != nil {
		log.Fatalf("Failed to marshal request: %v", err)
	}

	// настройки писателя (producer-а)
	writer := &kafka.Writer{
		Addr:     kafka.TCP(*brokerAddress),
		Topic:    *topic,
		Balancer: &kafka.LeastBytes{},
	}
	defer writer.Close()

	log.Println("Sending sync request to Kafka...")
	err = writer.WriteMessages(context.Background(),
		kafka.Message{
			Value: message,
		},
	)
	if err != nil {
		log.Fatalf("Failed to write message: %v", err)
	}
	fmt.Println("Sync request sent successfully!")
}
