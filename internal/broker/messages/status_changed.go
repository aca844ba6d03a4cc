package messages

import (
	"encoding/json"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
)

// StatusChanged публикуется после каждого принятого перехода статуса.
type StatusChanged struct {
	EventID        string    `json:"event_id"`
	TrackingItemID int64     `json:"tracking_item_id"`
	TrackingCode   string    `json:"tracking_code"`
	BranchID       *int64    `json:"branch_id,omitempty"`
	PreviousStatus *string   `json:"previous_status,omitempty"`
	NewStatus      string    `json:"new_status"`
	Source         string    `json:"source"`
	ChangedBy      int64     `json:"changed_by"`
	ChangedAt      time.Time `json:"changed_at"`
}

func NewStatusChanged(itemID int64, code string, branchID *int64, prev *string, next, source string, by int64, at time.Time) StatusChanged {
	return StatusChanged{
		EventID:        uuid.NewString(),
		TrackingItemID: itemID,
		TrackingCode:   code,
		BranchID:       branchID,
		PreviousStatus: prev,
		NewStatus:      next,
		Source:         source,
		ChangedBy:      by,
		ChangedAt:      at,
	}
}

// Key: события одной посылки попадают в одну партицию.
func (m StatusChanged) Key() []byte {
	return []byte(strconv.FormatInt(m.TrackingItemID, 10))
}

func (m StatusChanged) Encode() ([]byte, error) {
	b, err := json.Marshal(m)
	return b, errors.Wrap(err, "encode status changed")
}

func DecodeStatusChanged(b []byte) (StatusChanged, error) {
	var m StatusChanged
	if err := json.Unmarshal(b, &m); err != nil {
		return StatusChanged{}, errors.Wrap(err, "decode status changed")
	}
	if m.EventID == "" || m.NewStatus == "" {
		return StatusChanged{}, errors.New("decode status changed: missing event_id or new_status")
	}
	return m, nil
}
