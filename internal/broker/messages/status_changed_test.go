package messages

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func TestStatusChanged_EncodeDecode(t *testing.T) {
	branch := int64(4)
	prev := "REGISTERED"
	m := NewStatusChanged(42, "KH-1", &branch, &prev, "ARRIVED_BRANCH", "MANUAL", 7, time.Now().UTC())

	_, err := uuid.Parse(m.EventID)
	require.NoError(t, err)
	require.Equal(t, []byte("42"), m.Key())

	b, err := m.Encode()
	require.NoError(t, err)

	got, err := DecodeStatusChanged(b)
	require.NoError(t, err)
	require.Equal(t, m.EventID, got.EventID)
	require.Equal(t, int64(4), *got.BranchID)
	require.Equal(t, "ARRIVED_BRANCH", got.NewStatus)
}

func TestDecodeStatusChanged_Rejects(t *testing.T) {
	_, err := DecodeStatusChanged([]byte("{"))
	require.Error(t, err)

	_, err = DecodeStatusChanged([]byte(`{"tracking_item_id":1}`))
	require.Error(t, err)
}
