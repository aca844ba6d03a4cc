package cargoapi

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/BearBump/CargoTrack/internal/importer"
	"github.com/BearBump/CargoTrack/internal/models"
	"github.com/go-chi/chi/v5"
	"github.com/pkg/errors"
)

func (a *API) importFile(w http.ResponseWriter, r *http.Request, _ map[string]string) {
	act, ok := actor(w, r)
	if !ok {
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		writeError(w, errors.Wrapf(models.ErrInvalidArgument, "multipart form: %v", err))
		return
	}
	f, hdr, err := r.FormFile("file")
	if err != nil {
		writeError(w, errors.Wrap(models.ErrInvalidArgument, "file is required"))
		return
	}
	defer f.Close()

	target := models.TrackingStatus(r.FormValue("targetStatus"))
	res, err := a.reconcile.ImportFile(r.Context(), hdr.Filename, f, target, act)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (a *API) listImports(w http.ResponseWriter, r *http.Request, _ map[string]string) {
	act, ok := actor(w, r)
	if !ok {
		return
	}
	logs, meta, err := a.reconcile.ImportLogs(r.Context(), pageFrom(r), act)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, pageResponse[*models.ImportLog]{Data: logs, Meta: meta})
}

func (a *API) getImport(w http.ResponseWriter, r *http.Request, p map[string]string) {
	act, ok := actor(w, r)
	if !ok {
		return
	}
	id, err := pathID(p, "id")
	if err != nil {
		writeError(w, err)
		return
	}
	log, err := a.reconcile.ImportLog(r.Context(), id, act)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, log)
}

// importReport отдаёт CSV с отклонёнными кодами. Висит на chi, а не на ServeMux.
func (a *API) importReport(w http.ResponseWriter, r *http.Request) {
	act, ok := actor(w, r)
	if !ok {
		return
	}
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		writeError(w, errors.Wrap(models.ErrInvalidArgument, "id must be a positive integer"))
		return
	}
	log, err := a.reconcile.ImportLog(r.Context(), id, act)
	if err != nil {
		writeError(w, err)
		return
	}
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="import-%d-report.csv"`, id))
	if err := importer.WriteReportCSV(w, log); err != nil {
		// заголовки уже ушли, остаётся только лог
		writeErrorLogOnly(err)
	}
}

func (a *API) listMaster(w http.ResponseWriter, r *http.Request, _ map[string]string) {
	act, ok := actor(w, r)
	if !ok {
		return
	}
	entries, meta, err := a.reconcile.MasterEntries(r.Context(), pageFrom(r), act)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, pageResponse[*models.ManifestEntry]{Data: entries, Meta: meta})
}

func (a *API) getMaster(w http.ResponseWriter, r *http.Request, p map[string]string) {
	act, ok := actor(w, r)
	if !ok {
		return
	}
	e, err := a.reconcile.MasterEntry(r.Context(), p["code"], act)
	if err != nil {
		writeError(w, err)
		return
	}
	if e == nil {
		writeError(w, errors.Wrapf(models.ErrNotFound, "manifest entry %q", p["code"]))
		return
	}
	writeJSON(w, http.StatusOK, e)
}

type masterStatusReq struct {
	TrackingCode string                `json:"trackingCode"`
	Status       models.TrackingStatus `json:"status"`
}

func (a *API) updateMaster(w http.ResponseWriter, r *http.Request, _ map[string]string) {
	act, ok := actor(w, r)
	if !ok {
		return
	}
	var req masterStatusReq
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	res, err := a.reconcile.UpdateMasterStatus(r.Context(), req.TrackingCode, req.Status, act)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (a *API) syncMaster(w http.ResponseWriter, r *http.Request, _ map[string]string) {
	act, ok := actor(w, r)
	if !ok {
		return
	}
	res, err := a.reconcile.SyncAllAs(r.Context(), act)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}
