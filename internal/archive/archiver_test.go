package archive

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/cuongbtq/video-gen-service/internal/events"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type ackRecord struct {
	tag     uint64
	ack     bool
	requeue bool
}

type fakeAcknowledger struct {
	mu      sync.Mutex
	records []ackRecord
}

func (f *fakeAcknowledger) Ack(tag uint64, _ bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.records = append(f.records, ackRecord{tag: tag, ack: true})
	return nil
}

func (f *fakeAcknowledger) Nack(tag uint64, _ bool, requeue bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.records = append(f.records, ackRecord{tag: tag, requeue: requeue})
	return nil
}

func (f *fakeAcknowledger) Reject(tag uint64, requeue bool) error {
	return f.Nack(tag, false, requeue)
}

func (f *fakeAcknowledger) byTag() map[uint64]ackRecord {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make(map[uint64]ackRecord, len(f.records))
	for _, r := range f.records {
		out[r.tag] = r
	}
	return out
}

type fakeRepo struct {
	mu    sync.Mutex
	saved []string
	fail  map[string]error
}

func (f *fakeRepo) SaveJob(_ context.Context, ev events.JobFinished) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.fail[ev.VideoID]; err != nil {
		return false, err
	}
	f.saved = append(f.saved, ev.VideoID)
	return true, nil
}

type fakeSource struct {
	ch  chan amqp.Delivery
	err error
}

func (f *fakeSource) Consume(string) (<-chan amqp.Delivery, error) {
	return f.ch, f.err
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func eventBody(t *testing.T, id string) []byte {
	t.Helper()
	body, err := json.Marshal(events.JobFinished{
		VideoID:   id,
		Status:    "completed",
		Progress:  100,
		VideoURL:  "https://cdn.example.com/" + id + ".mp4",
		Prompt:    "a fox",
		CreatedAt: time.Now().UTC(),
	})
	require.NoError(t, err)
	return body
}

const (
	idOK    = "6f1c2a5e-8d4b-4c1e-9f3a-2b7d5e6a9c10"
	idDBErr = "6f1c2a5e-8d4b-4c1e-9f3a-2b7d5e6a9c11"
)

func TestArchiver_AckNackPolicy(t *testing.T) {
	acker := &fakeAcknowledger{}
	repo := &fakeRepo{fail: map[string]error{idDBErr: errors.New("connection reset")}}
	source := &fakeSource{ch: make(chan amqp.Delivery, 4)}

	deliveries := []amqp.Delivery{
		{Acknowledger: acker, DeliveryTag: 1, Body: eventBody(t, idOK)},
		{Acknowledger: acker, DeliveryTag: 2, Body: []byte(`not json`)},
		{Acknowledger: acker, DeliveryTag: 3, Body: eventBody(t, idDBErr)},
		{Acknowledger: acker, DeliveryTag: 4, Body: []byte(`{"video_id":"abc","status":"completed"}`)},
	}
	for _, d := range deliveries {
		source.ch <- d
	}
	close(source.ch)

	a := New(&Config{
		Logger:      discardLogger(),
		Repository:  repo,
		Source:      source,
		Concurrency: 2,
	})

	err := a.Run(context.Background())
	require.ErrorIs(t, err, ErrDeliveriesClosed)

	got := acker.byTag()
	require.Len(t, got, 4)

	assert.True(t, got[1].ack, "stored event is acked")
	assert.False(t, got[2].ack)
	assert.False(t, got[2].requeue, "malformed json is dropped")
	assert.False(t, got[3].ack)
	assert.True(t, got[3].requeue, "database error is requeued")
	assert.False(t, got[4].ack)
	assert.False(t, got[4].requeue, "invalid id is dropped")

	assert.Equal(t, []string{idOK}, repo.saved)
}

func TestArchiver_StopsOnCancel(t *testing.T) {
	source := &fakeSource{ch: make(chan amqp.Delivery)}
	a := New(&Config{
		Logger:     discardLogger(),
		Repository: &fakeRepo{},
		Source:     source,
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- a.Run(ctx) }()

	cancel()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("archiver did not stop")
	}
}

func TestArchiver_ConsumeError(t *testing.T) {
	a := New(&Config{
		Logger:     discardLogger(),
		Repository: &fakeRepo{},
		Source:     &fakeSource{err: errors.New("channel closed")},
	})

	err := a.Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to start consuming")
}

func TestShouldRequeue(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{name: "invalid event", err: events.ErrInvalidEvent, want: false},
		{name: "wrapped invalid event", err: errors.Join(errors.New("ctx"), events.ErrInvalidEvent), want: false},
		{name: "database error", err: errors.New("connection reset"), want: true},
		{name: "deadline", err: context.DeadlineExceeded, want: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, shouldRequeue(tt.err))
		})
	}
}

func TestNew_Defaults(t *testing.T) {
	a := New(&Config{})
	assert.Equal(t, DefaultConcurrency, a.concurrency)
	assert.Equal(t, DefaultWriteTimeout, a.writeTimeout)
	assert.Equal(t, DefaultConsumerTag, a.consumerTag)
}
