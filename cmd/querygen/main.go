// Command querygen publishes sample location queries to the source topic so
// the batch resolution pipeline can be exercised end to end against a local
// Kafka broker.
//
// Usage:
//
//	go run ./cmd/querygen -count 50
//	go run ./cmd/querygen -queries "hotels in mami,NYC,Paris"
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"strings"
	"time"

	kafkago "github.com/segmentio/kafka-go"

	"github.com/roamstack/place-resolver/internal/config"
	"github.com/roamstack/place-resolver/internal/domain"
)

// sampleQueries mixes clean place names, filler-heavy travel phrases,
// abbreviations, typos, and ambiguous names, roughly in the proportions
// production traffic shows them.
var sampleQueries = []string{
	"Tokyo",
	"hotels in Paris",
	"places to stay near NYC",
	"airbnb sf downtown",
	"vacation rentals in vegas",
	"Barcelona",
	"trip to Amsterdam",
	"mami beach",
	"chigaco",
	"pheonix az",
	"sandiego",
	"London",
	"Springfield",
	"Portland",
	"St Petersburg",
	"hotels close to cdmx",
	"new yrok city",
	"Kyoto",
	"Lisbon",
	"accommodation in bcn",
}

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	count := flag.Int("count", len(sampleQueries), "number of query messages to publish")
	queries := flag.String("queries", "", "comma-separated queries to publish instead of the built-in samples")
	alternatives := flag.Bool("alternatives", true, "request disambiguation alternatives")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	pool := sampleQueries
	if *queries != "" {
		pool = strings.Split(*queries, ",")
	}

	writer := &kafkago.Writer{
		Addr:         kafkago.TCP(cfg.KafkaBrokers...),
		Topic:        cfg.KafkaSourceTopic,
		Balancer:     &kafkago.LeastBytes{},
		RequiredAcks: kafkago.RequireAll,
	}
	defer writer.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	msgs := make([]kafkago.Message, 0, *count)
	for i := 0; i < *count; i++ {
		requestID := fmt.Sprintf("querygen-%d-%d", time.Now().Unix(), i)
		event := domain.QueryEvent{
			Query:               strings.TrimSpace(pool[i%len(pool)]),
			IncludeAlternatives: *alternatives,
			RequestID:           requestID,
		}
		payload, err := json.Marshal(event)
		if err != nil {
			return fmt.Errorf("marshal query event: %w", err)
		}
		msgs = append(msgs, kafkago.Message{
			Key:   []byte(requestID),
			Value: payload,
		})
	}

	if err := writer.WriteMessages(ctx, msgs...); err != nil {
		return fmt.Errorf("publish queries: %w", err)
	}

	log.Printf("published %d queries to %s", len(msgs), cfg.KafkaSourceTopic)
	return nil
}
