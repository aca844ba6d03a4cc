package kafka

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/BearBump/CargoTrack/internal/broker/messages"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/require"
)

const statusTopic = "cargo.status_changed"

type fakeReader struct {
	msgs      []kafka.Message
	err       error
	i         int
	committed []kafka.Message
}

func (r *fakeReader) FetchMessage(ctx context.Context) (kafka.Message, error) {
	if err := ctx.Err(); err != nil {
		return kafka.Message{}, err
	}
	if r.i < len(r.msgs) {
		m := r.msgs[r.i]
		r.i++
		return m, nil
	}
	if r.err != nil {
		return kafka.Message{}, r.err
	}
	return kafka.Message{}, errors.New("eof")
}

func (r *fakeReader) CommitMessages(ctx context.Context, msgs ...kafka.Message) error {
	r.committed = append(r.committed, msgs...)
	return nil
}

func (r *fakeReader) Close() error { return nil }

func statusMessage(t *testing.T, ev messages.StatusChanged, offset int64) kafka.Message {
	t.Helper()
	b, err := ev.Encode()
	require.NoError(t, err)
	return kafka.Message{Topic: statusTopic, Key: ev.Key(), Value: b, Offset: offset}
}

func TestConsumer_DecodesAndCommits(t *testing.T) {
	branch := int64(3)
	prev := "SENT_TO_DESTINATION_COUNTRY"
	ev := messages.NewStatusChanged(42, "KH-1", &branch, &prev, "ARRIVED_BRANCH", "MANUAL", 7, time.Now().UTC())

	fr := &fakeReader{msgs: []kafka.Message{statusMessage(t, ev, 0)}, err: errors.New("stop")}
	c := newConsumerWithReader(fr, statusTopic)

	var got []messages.StatusChanged
	err := c.ConsumeStatusChanges(context.Background(), func(_ context.Context, m messages.StatusChanged) error {
		got = append(got, m)
		return nil
	})
	require.Error(t, err)
	require.Contains(t, err.Error(), "fetch "+statusTopic)
	require.Len(t, got, 1)
	require.Equal(t, ev.EventID, got[0].EventID)
	require.Equal(t, int64(42), got[0].TrackingItemID)
	require.Equal(t, branch, *got[0].BranchID)
	require.Equal(t, prev, *got[0].PreviousStatus)
	require.Len(t, fr.committed, 1)
}

func TestConsumer_SkipsMalformedAndCommits(t *testing.T) {
	ev := messages.NewStatusChanged(1, "KH-2", nil, nil, "PICKED_UP", "EXCEL_IMPORT", 1, time.Now().UTC())
	fr := &fakeReader{
		msgs: []kafka.Message{
			{Topic: statusTopic, Key: []byte("9"), Value: []byte("{broken"), Offset: 0},
			{Topic: statusTopic, Key: []byte("10"), Value: []byte(`{"tracking_item_id":10}`), Offset: 1},
			statusMessage(t, ev, 2),
		},
		err: errors.New("stop"),
	}
	c := newConsumerWithReader(fr, statusTopic)

	calls := 0
	_ = c.ConsumeStatusChanges(context.Background(), func(_ context.Context, m messages.StatusChanged) error {
		calls++
		require.Equal(t, "PICKED_UP", m.NewStatus)
		return nil
	})
	require.Equal(t, 1, calls)
	require.Len(t, fr.committed, 3)
}

func TestConsumer_HandlerErrorStopsWithoutCommit(t *testing.T) {
	ev := messages.NewStatusChanged(5, "KH-5", nil, nil, "ARRIVED_BRANCH", "MANUAL", 1, time.Now().UTC())
	fr := &fakeReader{msgs: []kafka.Message{statusMessage(t, ev, 0)}}
	c := newConsumerWithReader(fr, statusTopic)

	want := errors.New("handler failed")
	err := c.ConsumeStatusChanges(context.Background(), func(context.Context, messages.StatusChanged) error { return want })
	require.ErrorIs(t, err, want)
	require.Contains(t, err.Error(), ev.EventID)
	require.Empty(t, fr.committed)
}

func TestConsumer_CancelledContext(t *testing.T) {
	c := newConsumerWithReader(&fakeReader{}, statusTopic)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.NoError(t, c.ConsumeStatusChanges(ctx, func(context.Context, messages.StatusChanged) error { return nil }))
}

func TestNewConsumer_Close(t *testing.T) {
	for _, group := range []string{"cargo-worker", ""} {
		c := NewConsumer(ConsumerConfig{Brokers: []string{"localhost:0"}, Topic: statusTopic, GroupID: group})
		require.NotNil(t, c)
		require.NoError(t, c.Close())
	}
}
