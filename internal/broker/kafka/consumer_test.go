package kafka

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/require"
)

type fakeReader struct {
	msgs      []kafka.Message
	i         int
	committed []kafka.Message
}

func (r *fakeReader) FetchMessage(ctx context.Context) (kafka.Message, error) {
	if r.i < len(r.msgs) {
		m := r.msgs[r.i]
		r.i++
		return m, nil
	}
	return kafka.Message{}, context.Canceled
}

func (r *fakeReader) CommitMessages(ctx context.Context, msgs ...kafka.Message) error {
	r.committed = append(r.committed, msgs...)
	return nil
}

func (r *fakeReader) Close() error { return nil }

func feed() []kafka.Message {
	at := time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)
	return []kafka.Message{
		{Key: []byte("A1"), Value: []byte(`{"status":10}`), Offset: 7, Time: at,
			Headers: []kafka.Header{{Key: HeaderSource, Value: []byte("details")}}},
		{Key: []byte("B2"), Value: []byte(`{"status":40}`), Offset: 8, Time: at},
	}
}

func TestConsumer_GroupCommitsAfterHandler(t *testing.T) {
	fr := &fakeReader{msgs: feed()}
	c := newConsumerWithReader(fr, true)

	var got []Record
	err := c.Consume(context.Background(), func(_ context.Context, rec Record) error {
		got = append(got, rec)
		return nil
	})
	require.ErrorIs(t, err, context.Canceled)
	require.Contains(t, err.Error(), "fetch message")

	require.Len(t, got, 2)
	require.Equal(t, "A1", string(got[0].Key))
	require.Equal(t, int64(7), got[0].Offset)
	require.Equal(t, map[string]string{HeaderSource: "details"}, got[0].Headers)
	require.Nil(t, got[1].Headers)
	require.Len(t, fr.committed, 2)
}

func TestConsumer_TailNeverCommits(t *testing.T) {
	fr := &fakeReader{msgs: feed()}
	c := newConsumerWithReader(fr, false)

	n := 0
	err := c.Consume(context.Background(), func(context.Context, Record) error {
		n++
		return nil
	})
	require.ErrorIs(t, err, context.Canceled)
	require.Equal(t, 2, n)
	require.Empty(t, fr.committed)
}

func TestConsumer_HandlerErrorStopsWithoutCommit(t *testing.T) {
	fr := &fakeReader{msgs: feed()}
	c := newConsumerWithReader(fr, true)

	want := errors.New("handler failed")
	err := c.Consume(context.Background(), func(context.Context, Record) error { return want })
	require.ErrorIs(t, err, want)
	require.Contains(t, err.Error(), "handle offset 7")
	require.Empty(t, fr.committed)
}

func TestNewConsumer_Close(t *testing.T) {
	for _, cfg := range []ConsumerConfig{
		{Brokers: []string{"localhost:0"}, Topic: "package.updated", GroupID: "parceldesk-watch"},
		{Brokers: []string{"localhost:0"}, Topic: "package.updated", FromStart: true},
	} {
		c := NewConsumer(cfg)
		require.NotNil(t, c)
		require.NoError(t, c.Close())
	}
}
