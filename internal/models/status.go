package models

import "time"

type TrackingStatus string

const (
	StatusRegistered               TrackingStatus = "REGISTERED"
	StatusArrivedOriginWarehouse   TrackingStatus = "ARRIVED_ORIGIN_WAREHOUSE"
	StatusSentToDestinationCountry TrackingStatus = "SENT_TO_DESTINATION_COUNTRY"
	StatusArrivedBranch            TrackingStatus = "ARRIVED_BRANCH"
	StatusReadyForPickup           TrackingStatus = "READY_FOR_PICKUP"
	StatusPickedUp                 TrackingStatus = "PICKED_UP"
	StatusCancelled                TrackingStatus = "CANCELLED"
)

// cancelledOrder вне основной шкалы, для отображения CANCELLED "позже всех",
// но в проверке IsForward не участвует.
const cancelledOrder = 99

var statusOrder = map[TrackingStatus]int{
	StatusRegistered:               0,
	StatusArrivedOriginWarehouse:   1,
	StatusSentToDestinationCountry: 2,
	StatusArrivedBranch:            3,
	StatusReadyForPickup:           4,
	StatusPickedUp:                 5,
	StatusCancelled:                cancelledOrder,
}

// OrderedStatuses: основной жизненный цикл посылки, без CANCELLED.
var OrderedStatuses = []TrackingStatus{
	StatusRegistered,
	StatusArrivedOriginWarehouse,
	StatusSentToDestinationCountry,
	StatusArrivedBranch,
	StatusReadyForPickup,
	StatusPickedUp,
}

// BranchSettableStatuses: что сотрудник филиала может выставить вручную.
var BranchSettableStatuses = []TrackingStatus{
	StatusReadyForPickup,
	StatusPickedUp,
}

func ParseTrackingStatus(s string) (TrackingStatus, bool) {
	st := TrackingStatus(s)
	return st, st.Valid()
}

func (s TrackingStatus) Valid() bool {
	_, ok := statusOrder[s]
	return ok
}

// Order returns the display rank of a status; unknown statuses rank -1.
func (s TrackingStatus) Order() int {
	o, ok := statusOrder[s]
	if !ok {
		return -1
	}
	return o
}

func (s TrackingStatus) String() string { return string(s) }

// IsForward reports whether moving from -> to is a strictly forward step of the
// lifecycle. CANCELLED is never part of a forward step.
func IsForward(from, to TrackingStatus) bool {
	if from == StatusCancelled || to == StatusCancelled {
		return false
	}
	if !from.Valid() || !to.Valid() {
		return false
	}
	return to.Order() > from.Order()
}

// AtOrBeyond: current уже на target или дальше. Отменённая посылка считается
// "дальше" любого статуса, импорт её не трогает.
func AtOrBeyond(current, target TrackingStatus) bool {
	if current == StatusCancelled {
		return true
	}
	return current.Order() >= target.Order()
}

type Milestone string

const (
	MilestoneOriginWarehouse Milestone = "ORIGIN_WAREHOUSE"
	MilestoneBranch          Milestone = "BRANCH"
	MilestoneDelivery        Milestone = "DELIVERY"
)

// Milestone returns the arrival milestone a status stamps, if any.
func (s TrackingStatus) Milestone() (Milestone, bool) {
	switch s {
	case StatusArrivedOriginWarehouse:
		return MilestoneOriginWarehouse, true
	case StatusArrivedBranch:
		return MilestoneBranch, true
	case StatusPickedUp:
		return MilestoneDelivery, true
	default:
		return "", false
	}
}

// MilestoneDates: три даты прибытия, общие для TrackingItem и ManifestEntry.
type MilestoneDates struct {
	OriginArrivalAt *time.Time `json:"originArrivalAt,omitempty"`
	BranchArrivalAt *time.Time `json:"branchArrivalAt,omitempty"`
	DeliveredAt     *time.Time `json:"deliveredAt,omitempty"`
}

func (d MilestoneDates) Get(m Milestone) *time.Time {
	switch m {
	case MilestoneOriginWarehouse:
		return d.OriginArrivalAt
	case MilestoneBranch:
		return d.BranchArrivalAt
	case MilestoneDelivery:
		return d.DeliveredAt
	}
	return nil
}

func (d *MilestoneDates) Set(m Milestone, at *time.Time) {
	switch m {
	case MilestoneOriginWarehouse:
		d.OriginArrivalAt = at
	case MilestoneBranch:
		d.BranchArrivalAt = at
	case MilestoneDelivery:
		d.DeliveredAt = at
	}
}

// MostAdvancedStatus maps the latest recorded milestone to a status.
func (d MilestoneDates) MostAdvancedStatus() TrackingStatus {
	switch {
	case d.DeliveredAt != nil:
		return StatusPickedUp
	case d.BranchArrivalAt != nil:
		return StatusArrivedBranch
	case d.OriginArrivalAt != nil:
		return StatusArrivedOriginWarehouse
	default:
		return StatusRegistered
	}
}

// FillMissing copies dates present in src but absent in d. Existing dates are
// never overwritten. Returns true if anything changed.
func (d *MilestoneDates) FillMissing(src MilestoneDates) bool {
	changed := false
	if src.OriginArrivalAt != nil && d.OriginArrivalAt == nil {
		d.OriginArrivalAt = copyTime(src.OriginArrivalAt)
		changed = true
	}
	if src.BranchArrivalAt != nil && d.BranchArrivalAt == nil {
		d.BranchArrivalAt = copyTime(src.BranchArrivalAt)
		changed = true
	}
	if src.DeliveredAt != nil && d.DeliveredAt == nil {
		d.DeliveredAt = copyTime(src.DeliveredAt)
		changed = true
	}
	return changed
}

func copyTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}
