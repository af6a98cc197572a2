package notifier

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/angelmondragon/storefront-checkout/pkg/db/dbtest"
	"github.com/angelmondragon/storefront-checkout/pkg/db/models"
	"github.com/angelmondragon/storefront-checkout/pkg/enums"
	"github.com/angelmondragon/storefront-checkout/pkg/logger"
	"github.com/angelmondragon/storefront-checkout/pkg/outbox"
	"github.com/angelmondragon/storefront-checkout/pkg/outbox/idempotency"
	"github.com/angelmondragon/storefront-checkout/pkg/outbox/payloads"
	pkgredis "github.com/angelmondragon/storefront-checkout/pkg/redis"
	"github.com/redis/go-redis/v9"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type captureSender struct {
	sent []Email
	err  error
}

func (s *captureSender) Send(_ context.Context, email Email) error {
	if s.err != nil {
		return s.err
	}
	s.sent = append(s.sent, email)
	return nil
}

type failingRepo struct{}

func (failingRepo) Create(context.Context, *models.EmailLog) error { return errors.New("db down") }
func (failingRepo) ListByOrderNumber(context.Context, string) ([]models.EmailLog, error) {
	return nil, nil
}

type harness struct {
	redis     *pkgredis.Client
	repo      Repository
	sender    *captureSender
	processor *Processor
}

func newHarness(t *testing.T, repo Repository) *harness {
	t.Helper()
	srv := miniredis.RunT(t)
	client := pkgredis.Wrap(redis.NewClient(&redis.Options{Addr: srv.Addr()}))
	t.Cleanup(func() { _ = client.Close() })
	dedup, err := idempotency.NewDeduper(client, time.Hour)
	require.NoError(t, err)
	if repo == nil {
		repo = NewRepository(dbtest.Open(t))
	}
	sender := &captureSender{}
	p, err := NewProcessor(ProcessorParams{
		Repository:  repo,
		Sender:      sender,
		Idempotency: dedup,
		Logger:      logger.New(logger.Options{ServiceName: "notifier-test", Output: io.Discard}),
		FromAddress: "orders@storefront.local",
	})
	require.NoError(t, err)
	return &harness{redis: client, repo: repo, sender: sender, processor: p}
}

func envelopeFor(t *testing.T, email string) []byte {
	t.Helper()
	env, err := outbox.NewEnvelope(payloads.OrderCreatedEvent{
		OrderNumber: "K7Q2M9X4B1ZP",
		Email:       email,
		Status:      "paid",
		Subtotal:    "200.00",
		Tax:         "10.00",
		Shipping:    "5.00",
		Total:       "215.00",
		Items: []payloads.OrderCreatedItem{{
			ProductID: 1, ProductName: "Widget", UnitPrice: "100.00", Quantity: 2, LineTotal: "200.00",
		}},
	}, time.Now())
	require.NoError(t, err)
	raw, err := json.Marshal(env)
	require.NoError(t, err)
	return raw
}

func TestProcessorSendsConfirmationOnce(t *testing.T) {
	t.Parallel()
	h := newHarness(t, nil)
	ctx := context.Background()
	msg := Inbound{Data: envelopeFor(t, "ada@example.com"), Attributes: map[string]string{"event_type": "order_created"}}

	res := h.processor.Handle(ctx, msg)
	assert.True(t, res.Ack)
	assert.Equal(t, outcomeSent, res.Outcome)

	res = h.processor.Handle(ctx, msg)
	assert.True(t, res.Ack)
	assert.Equal(t, outcomeDuplicate, res.Outcome)

	require.Len(t, h.sender.sent, 1)
	assert.Equal(t, "Order confirmation K7Q2M9X4B1ZP", h.sender.sent[0].Subject)
	assert.Contains(t, h.sender.sent[0].Body, "Total: 215.00")

	rows, err := h.repo.ListByOrderNumber(ctx, "K7Q2M9X4B1ZP")
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, enums.EmailStatusSent, rows[0].Status)
	assert.Equal(t, enums.EmailTypeOrderConfirmation, rows[0].Type)
	require.NotNil(t, rows[0].Recipient)
	assert.Equal(t, "ada@example.com", *rows[0].Recipient)
	assert.NotNil(t, rows[0].SentAt)
}

func TestProcessorMissingEmailLogsFailure(t *testing.T) {
	t.Parallel()
	h := newHarness(t, nil)

	res := h.processor.Handle(context.Background(), Inbound{Data: envelopeFor(t, " ")})
	assert.True(t, res.Ack)
	assert.Equal(t, outcomeFailed, res.Outcome)
	assert.Empty(t, h.sender.sent)

	rows, err := h.repo.ListByOrderNumber(context.Background(), "K7Q2M9X4B1ZP")
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, enums.EmailStatusFailed, rows[0].Status)
	require.NotNil(t, rows[0].ErrorMessage)
	assert.Equal(t, "Missing recipient email on OrderCreated payload.", *rows[0].ErrorMessage)
}

func TestProcessorSenderFailureIsRecorded(t *testing.T) {
	t.Parallel()
	h := newHarness(t, nil)
	h.sender.err = errors.New("smtp unavailable")

	res := h.processor.Handle(context.Background(), Inbound{Data: envelopeFor(t, "ada@example.com")})
	assert.Equal(t, outcomeFailed, res.Outcome)

	rows, err := h.repo.ListByOrderNumber(context.Background(), "K7Q2M9X4B1ZP")
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "smtp unavailable", *rows[0].ErrorMessage)
}

func TestProcessorRetriesWhenStorageFails(t *testing.T) {
	t.Parallel()
	h := newHarness(t, failingRepo{})
	msg := Inbound{Data: envelopeFor(t, "ada@example.com")}

	res := h.processor.Handle(context.Background(), msg)
	assert.False(t, res.Ack)
	assert.Equal(t, outcomeRetry, res.Outcome)

	res = h.processor.Handle(context.Background(), msg)
	assert.Equal(t, outcomeRetry, res.Outcome, "dedup key must be released after a storage failure")
}

func TestProcessorSkipsAndDropsBadInput(t *testing.T) {
	t.Parallel()
	h := newHarness(t, nil)

	res := h.processor.Handle(context.Background(), Inbound{Data: []byte(`{}`), Attributes: map[string]string{"event_type": "cart_abandoned"}})
	assert.Equal(t, outcomeSkipped, res.Outcome)

	res = h.processor.Handle(context.Background(), Inbound{Data: []byte(`not json`)})
	assert.True(t, res.Ack)
	assert.Equal(t, outcomeMalformed, res.Outcome)
}

func TestRedisSourceDeliversQueuedMessages(t *testing.T) {
	t.Parallel()
	h := newHarness(t, nil)
	require.NoError(t, h.redis.PushQueue(context.Background(), "order-events", envelopeFor(t, "ada@example.com")))

	source, err := NewRedisSource(h.redis, "order-events", nil)
	require.NoError(t, err)
	source.wait = 50 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- source.Run(ctx, func(ctx context.Context, msg Inbound) Result {
			res := h.processor.Handle(ctx, msg)
			cancel()
			return res
		})
	}()

	select {
	case err := <-done:
		require.ErrorIs(t, err, context.Canceled)
	case <-time.After(5 * time.Second):
		t.Fatal("redis source did not stop")
	}
	assert.Len(t, h.sender.sent, 1)
}

type stubReader struct {
	records   []kafka.Message
	committed []kafka.Message
	closed    bool
}

func (r *stubReader) FetchMessage(ctx context.Context) (kafka.Message, error) {
	if len(r.records) == 0 {
		<-ctx.Done()
		return kafka.Message{}, ctx.Err()
	}
	next := r.records[0]
	r.records = r.records[1:]
	return next, nil
}

func (r *stubReader) CommitMessages(_ context.Context, msgs ...kafka.Message) error {
	r.committed = append(r.committed, msgs...)
	return nil
}

func (r *stubReader) Close() error {
	r.closed = true
	return nil
}

func TestKafkaSourceCommitsHandledRecords(t *testing.T) {
	t.Parallel()
	h := newHarness(t, nil)
	reader := &stubReader{records: []kafka.Message{{
		Topic:   "order-events",
		Value:   envelopeFor(t, "ada@example.com"),
		Headers: []kafka.Header{{Key: "event_type", Value: []byte("order_created")}},
	}}}
	source, err := NewKafkaSource(reader, nil)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()
	err = source.Run(ctx, h.processor.Handle)
	require.ErrorIs(t, err, context.DeadlineExceeded)

	assert.Len(t, reader.committed, 1)
	assert.True(t, reader.closed)
	assert.Len(t, h.sender.sent, 1)
}
