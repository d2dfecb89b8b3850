package poller

import (
	"context"
	"testing"

	"github.com/Yousefa7medmaher/cart-service/internal/domain"
	"github.com/Yousefa7medmaher/cart-service/internal/repository"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
)

type fakeReader struct {
	messages []kafka.Message
	err      error
}

func (f *fakeReader) ReadMessage(context.Context) (kafka.Message, error) {
	if f.err != nil {
		return kafka.Message{}, f.err
	}
	if len(f.messages) == 0 {
		return kafka.Message{}, context.Canceled
	}
	m := f.messages[0]
	f.messages = f.messages[1:]
	return m, nil
}

func (f *fakeReader) Close() error { return nil }

type fakeClearer struct {
	cleared []string
	err     error
}

func (f *fakeClearer) ClearCart(_ context.Context, ownerID string) (*domain.Cart, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.cleared = append(f.cleared, ownerID)
	return domain.NewCart(ownerID), nil
}

func TestConsumeOne_ClearsCart(t *testing.T) {
	clearer := &fakeClearer{}
	p := &Poller{
		service: clearer,
		reader:  &fakeReader{messages: []kafka.Message{{Value: []byte(`{"owner_id":"user1"}`)}}},
	}

	p.consumeOne(context.Background())

	assert.Equal(t, []string{"user1"}, clearer.cleared)
}

func TestConsumeOne_MalformedMessageSkipped(t *testing.T) {
	clearer := &fakeClearer{}
	p := &Poller{
		service: clearer,
		reader:  &fakeReader{messages: []kafka.Message{{Value: []byte(`not json`)}}},
	}

	p.consumeOne(context.Background())

	assert.Empty(t, clearer.cleared)
}

func TestConsumeOne_MissingOwnerIDSkipped(t *testing.T) {
	clearer := &fakeClearer{}
	p := &Poller{
		service: clearer,
		reader:  &fakeReader{messages: []kafka.Message{{Value: []byte(`{"status":"completed"}`)}}},
	}

	p.consumeOne(context.Background())

	assert.Empty(t, clearer.cleared)
}

func TestConsumeOne_AbsentCartIsFine(t *testing.T) {
	clearer := &fakeClearer{err: repository.ErrCartNotFound}
	p := &Poller{
		service: clearer,
		reader:  &fakeReader{messages: []kafka.Message{{Value: []byte(`{"owner_id":"ghost"}`)}}},
	}

	// Must not panic or loop; stale events are ignored.
	p.consumeOne(context.Background())

	assert.Empty(t, clearer.cleared)
}
