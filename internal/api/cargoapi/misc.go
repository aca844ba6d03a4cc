package cargoapi

import (
	"net/http"

	"github.com/BearBump/CargoTrack/internal/models"
	"github.com/pkg/errors"
)

// notifyBranch: сотрудник рассылает по своему филиалу, SUPERADMIN может указать ?branchId=.
func (a *API) notifyBranch(w http.ResponseWriter, r *http.Request, _ map[string]string) {
	act, ok := actor(w, r)
	if !ok {
		return
	}
	branch, err := queryInt64(r, "branchId")
	if err != nil {
		writeError(w, err)
		return
	}
	if branch != nil {
		if !act.IsSuperAdmin() {
			writeError(w, errors.Wrapf(models.ErrForbidden, "role %s", act.Role))
			return
		}
		res, err := a.notifier.NotifyBranchArrivals(r.Context(), *branch)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, res)
		return
	}
	res, err := a.notifier.NotifyActorBranch(r.Context(), act)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (a *API) listSettings(w http.ResponseWriter, r *http.Request, _ map[string]string) {
	act, ok := actor(w, r)
	if !ok {
		return
	}
	all, err := a.settings.All(r.Context(), act)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, all)
}

type settingReq struct {
	Value string `json:"value"`
}

func (a *API) putSetting(w http.ResponseWriter, r *http.Request, p map[string]string) {
	act, ok := actor(w, r)
	if !ok {
		return
	}
	var req settingReq
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	st, err := a.settings.Set(r.Context(), p["key"], req.Value, act)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}
