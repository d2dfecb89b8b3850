package poller

import (
	"context"
	"encoding/json"
	"errors"
	"log"

	"github.com/Yousefa7medmaher/cart-service/internal/domain"
	"github.com/Yousefa7medmaher/cart-service/internal/repository"
	"github.com/segmentio/kafka-go"
)

// cartClearer is the slice of the cart service the poller needs.
type cartClearer interface {
	ClearCart(ctx context.Context, ownerID string) (*domain.Cart, error)
}

// messageReader abstracts the kafka reader for testing.
type messageReader interface {
	ReadMessage(ctx context.Context) (kafka.Message, error)
	Close() error
}

// Poller empties a user's cart once checkout for it has completed. The cart
// record survives with zero totals; carts are never deleted.
type Poller struct {
	service cartClearer
	reader  messageReader
}

func NewPoller(service cartClearer, brokers ...string) *Poller {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  brokers,
		Topic:    "checkout-completed",
		GroupID:  "cart-service-consumer",
		MaxBytes: 10e6, // 10MB
	})
	return &Poller{service: service, reader: reader}
}

func (p *Poller) Run(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			return
		}
		p.consumeOne(ctx)
	}
}

func (p *Poller) Close() {
	if err := p.reader.Close(); err != nil {
		log.Printf("error closing reader: %v", err)
	}
}

func (p *Poller) consumeOne(ctx context.Context) {
	m, err := p.reader.ReadMessage(ctx)
	if err != nil {
		if ctx.Err() == nil {
			log.Printf("error reading message: %v", err)
		}
		return
	}

	var payload map[string]interface{}
	if err := json.Unmarshal(m.Value, &payload); err != nil {
		log.Printf("error parsing message: %v", err)
		return
	}
	ownerID, ok := payload["owner_id"].(string)
	if !ok || ownerID == "" {
		log.Println("missing or invalid owner_id")
		return
	}

	// A checkout event for an owner with no cart is stale, not an error.
	if _, err := p.service.ClearCart(ctx, ownerID); err != nil && !errors.Is(err, repository.ErrCartNotFound) {
		log.Printf("failed to clear cart for %s: %v", ownerID, err)
	}
}
