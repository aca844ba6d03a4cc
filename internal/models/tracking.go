package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type StatusSource string

const (
	SourceManual      StatusSource = "MANUAL"
	SourceExcelImport StatusSource = "EXCEL_IMPORT"
)

type TrackingItem struct {
	ID            int64                `json:"id"`
	TrackingCode  string               `json:"trackingCode"`
	Description   string               `json:"description"`
	BranchID      *int64               `json:"branchId,omitempty"`
	CreatedBy     int64                `json:"createdByUserId"`
	CurrentStatus TrackingStatus       `json:"currentStatus"`
	Weight        *decimal.Decimal     `json:"weight,omitempty"`
	MilestoneDates
	Notified  bool       `json:"notified"`
	CreatedAt time.Time  `json:"createdAt"`
	UpdatedAt time.Time  `json:"updatedAt"`
	DeletedAt *time.Time `json:"deletedAt,omitempty"`
}

// ItemPatch: поля, которые меняет одна операция над посылкой. Хранилище пишет
// только их; notified и незатронутые даты остаются как в строке.
type ItemPatch struct {
	Status        TrackingStatus   // равен expected, если статус не меняется
	Weight        *decimal.Decimal // nil: не трогать
	BranchIfUnset *int64           // ставится, только если филиала ещё нет
	// FillDates пишутся только в пустые даты, SetDates перезаписывают.
	FillDates MilestoneDates
	SetDates  MilestoneDates
}

// Apply применяет патч к копии посылки с той же семантикой, что и хранилище.
func (p ItemPatch) Apply(it *TrackingItem) {
	it.CurrentStatus = p.Status
	if p.Weight != nil {
		w := *p.Weight
		it.Weight = &w
	}
	if it.BranchID == nil && p.BranchIfUnset != nil {
		b := *p.BranchIfUnset
		it.BranchID = &b
	}
	for _, m := range []Milestone{MilestoneOriginWarehouse, MilestoneBranch, MilestoneDelivery} {
		if at := p.SetDates.Get(m); at != nil {
			it.Set(m, copyTime(at))
		}
	}
	it.FillMissing(p.FillDates)
}

// ManifestEntry: запись мастер-листа, ключ только трек-код, без владельца.
type ManifestEntry struct {
	ID           int64  `json:"id"`
	TrackingCode string `json:"trackingCode"`
	MilestoneDates
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

type StatusHistoryRecord struct {
	ID             int64           `json:"id"`
	TrackingItemID int64           `json:"trackingItemId"`
	PreviousStatus *TrackingStatus `json:"previousStatus"`
	NewStatus      TrackingStatus  `json:"newStatus"`
	ChangedBy      int64           `json:"changedByUserId"`
	Source         StatusSource    `json:"source"`
	Note           *string         `json:"note,omitempty"`
	CreatedAt      time.Time       `json:"createdAt"`
}

type ImportIssue struct {
	Code   string `json:"code" csv:"code"`
	Reason string `json:"reason" csv:"reason"`
}

type ImportLog struct {
	ID           int64          `json:"id"`
	FileName     string         `json:"fileName"`
	UploadedBy   int64          `json:"uploadedByUserId"`
	TargetStatus TrackingStatus `json:"targetStatus"`
	TotalRows    int            `json:"totalRows"`
	SuccessCount int            `json:"successCount"`
	ErrorCount   int            `json:"errorCount"`
	SkippedCount int            `json:"skippedCount"`
	Errors       []ImportIssue  `json:"errors"`
	Skipped      []ImportIssue  `json:"skipped"`
	CreatedAt    time.Time      `json:"createdAt"`
}

// SyncResult: итог прохода мастер-листа. Failed: посылки и коды, которые не
// удалось обработать; проход при этом продолжается.
type SyncResult struct {
	ItemsUpdated int `json:"itemsUpdated"`
	Failed       int `json:"failed"`
}

type ItemFilter struct {
	CodeLike string
	Status   TrackingStatus
	BranchID *int64
	Page     Page
}

type Page struct {
	Number int
	Limit  int
}

// Normalize: page с 1, limit 1..500, по умолчанию 20.
func (p Page) Normalize() Page {
	if p.Number < 1 {
		p.Number = 1
	}
	if p.Limit <= 0 {
		p.Limit = 20
	}
	if p.Limit > 500 {
		p.Limit = 500
	}
	return p
}

func (p Page) Offset() int {
	n := p.Normalize()
	return (n.Number - 1) * n.Limit
}

type PageMeta struct {
	Page     int `json:"page"`
	Limit    int `json:"limit"`
	Total    int `json:"total"`
	LastPage int `json:"lastPage"`
}

func NewPageMeta(p Page, total int) PageMeta {
	p = p.Normalize()
	last := (total + p.Limit - 1) / p.Limit
	return PageMeta{Page: p.Number, Limit: p.Limit, Total: total, LastPage: last}
}

type StatusCount struct {
	Status TrackingStatus `json:"status"`
	Count  int            `json:"count"`
}
