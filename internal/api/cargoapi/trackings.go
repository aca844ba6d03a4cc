package cargoapi

import (
	"net/http"
	"strings"

	"github.com/BearBump/CargoTrack/internal/models"
	"github.com/BearBump/CargoTrack/internal/services/trackings"
	"github.com/shopspring/decimal"
)

type registerReq struct {
	TrackingCode string `json:"trackingCode"`
	Description  string `json:"description"`
}

func (a *API) registerItem(w http.ResponseWriter, r *http.Request, _ map[string]string) {
	act, ok := actor(w, r)
	if !ok {
		return
	}
	var req registerReq
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	item, err := a.trackings.Register(r.Context(), trackings.RegisterInput{
		TrackingCode: req.TrackingCode,
		Description:  req.Description,
	}, act)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, item)
}

func (a *API) listItems(w http.ResponseWriter, r *http.Request, _ map[string]string) {
	act, ok := actor(w, r)
	if !ok {
		return
	}
	branch, err := queryInt64(r, "branchId")
	if err != nil {
		writeError(w, err)
		return
	}
	q := r.URL.Query()
	f := models.ItemFilter{
		CodeLike: strings.TrimSpace(q.Get("trackingCode")),
		Status:   models.TrackingStatus(q.Get("status")),
		BranchID: branch,
		Page:     pageFrom(r),
	}
	items, meta, err := a.trackings.List(r.Context(), f, act)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, pageResponse[*models.TrackingItem]{Data: items, Meta: meta})
}

func (a *API) searchItem(w http.ResponseWriter, r *http.Request, _ map[string]string) {
	if _, ok := actor(w, r); !ok {
		return
	}
	code := r.URL.Query().Get("code")
	if code == "" {
		code = r.URL.Query().Get("trackingCode")
	}
	d, err := a.trackings.SearchByCode(r.Context(), code)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, d)
}

func (a *API) dashboard(w http.ResponseWriter, r *http.Request, _ map[string]string) {
	act, ok := actor(w, r)
	if !ok {
		return
	}
	counts, err := a.trackings.Dashboard(r.Context(), act)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, counts)
}

func (a *API) getItem(w http.ResponseWriter, r *http.Request, p map[string]string) {
	act, ok := actor(w, r)
	if !ok {
		return
	}
	id, err := pathID(p, "id")
	if err != nil {
		writeError(w, err)
		return
	}
	d, err := a.trackings.Get(r.Context(), id, act)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, d)
}

func (a *API) itemHistory(w http.ResponseWriter, r *http.Request, p map[string]string) {
	act, ok := actor(w, r)
	if !ok {
		return
	}
	id, err := pathID(p, "id")
	if err != nil {
		writeError(w, err)
		return
	}
	hist, err := a.trackings.History(r.Context(), id, act)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, hist)
}

type updateStatusReq struct {
	Status models.TrackingStatus `json:"status"`
	Weight *decimal.Decimal      `json:"weight,omitempty"`
	Note   *string               `json:"note,omitempty"`
}

func (a *API) updateStatus(w http.ResponseWriter, r *http.Request, p map[string]string) {
	act, ok := actor(w, r)
	if !ok {
		return
	}
	id, err := pathID(p, "id")
	if err != nil {
		writeError(w, err)
		return
	}
	var req updateStatusReq
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	item, err := a.trackings.UpdateStatus(r.Context(), id, trackings.UpdateStatusInput{
		Status: req.Status,
		Weight: req.Weight,
		Note:   req.Note,
	}, act)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, item)
}

type cancelReq struct {
	Note *string `json:"note,omitempty"`
}

func (a *API) cancelItem(w http.ResponseWriter, r *http.Request, p map[string]string) {
	act, ok := actor(w, r)
	if !ok {
		return
	}
	id, err := pathID(p, "id")
	if err != nil {
		writeError(w, err)
		return
	}
	var req cancelReq
	if r.ContentLength != 0 {
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, err)
			return
		}
	}
	item, err := a.trackings.Cancel(r.Context(), id, req.Note, act)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, item)
}

func (a *API) deleteItem(w http.ResponseWriter, r *http.Request, p map[string]string) {
	act, ok := actor(w, r)
	if !ok {
		return
	}
	id, err := pathID(p, "id")
	if err != nil {
		writeError(w, err)
		return
	}
	if err := a.trackings.Delete(r.Context(), id, act); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type quickUpdateReq struct {
	TrackingCode string                 `json:"trackingCode"`
	Status       *models.TrackingStatus `json:"status,omitempty"`
	Weight       *decimal.Decimal       `json:"weight,omitempty"`
}

func (a *API) quickUpdate(w http.ResponseWriter, r *http.Request, _ map[string]string) {
	act, ok := actor(w, r)
	if !ok {
		return
	}
	var req quickUpdateReq
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	item, err := a.trackings.QuickUpdateByCode(r.Context(), trackings.QuickUpdateInput{
		TrackingCode: req.TrackingCode,
		Status:       req.Status,
		Weight:       req.Weight,
	}, act)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, item)
}
