// Package cargoapi exposes the tracking ledger, reconciliation, notification
// and settings operations as a JSON HTTP API under /v1.
package cargoapi

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/BearBump/CargoTrack/internal/models"
	"github.com/BearBump/CargoTrack/internal/services/notifier"
	"github.com/BearBump/CargoTrack/internal/services/reconcile"
	"github.com/BearBump/CargoTrack/internal/services/settings"
	"github.com/BearBump/CargoTrack/internal/services/trackings"
	"github.com/grpc-ecosystem/grpc-gateway/v2/runtime"
	"github.com/pkg/errors"
)

const maxUploadBytes = 20 << 20

type API struct {
	trackings *trackings.Service
	reconcile *reconcile.Service
	notifier  *notifier.Service
	settings  *settings.Service
}

func New(t *trackings.Service, rc *reconcile.Service, n *notifier.Service, st *settings.Service) *API {
	return &API{trackings: t, reconcile: rc, notifier: n, settings: st}
}

type route struct {
	method  string
	pattern string
	h       runtime.HandlerFunc
}

// Mux собирает /v1 маршруты. ServeMux проверяет последние добавленные
// обработчики первыми, поэтому литеральные пути идут после шаблонных.
func (a *API) Mux() (*runtime.ServeMux, error) {
	mux := runtime.NewServeMux()
	routes := []route{
		{http.MethodGet, "/v1/trackings/{id}", a.getItem},
		{http.MethodDelete, "/v1/trackings/{id}", a.deleteItem},
		{http.MethodGet, "/v1/trackings/{id}/history", a.itemHistory},
		{http.MethodPatch, "/v1/trackings/{id}/status", a.updateStatus},
		{http.MethodPost, "/v1/trackings/{id}/cancel", a.cancelItem},
		{http.MethodPost, "/v1/trackings", a.registerItem},
		{http.MethodGet, "/v1/trackings", a.listItems},
		{http.MethodGet, "/v1/trackings/search", a.searchItem},
		{http.MethodGet, "/v1/trackings/dashboard", a.dashboard},
		{http.MethodPatch, "/v1/trackings/quick-update", a.quickUpdate},

		{http.MethodGet, "/v1/imports/{id}", a.getImport},
		{http.MethodPost, "/v1/imports", a.importFile},
		{http.MethodGet, "/v1/imports", a.listImports},

		{http.MethodGet, "/v1/master/{code}", a.getMaster},
		{http.MethodGet, "/v1/master", a.listMaster},
		{http.MethodPost, "/v1/master/status", a.updateMaster},
		{http.MethodPost, "/v1/master/sync", a.syncMaster},

		{http.MethodPost, "/v1/notifications/branch-arrivals", a.notifyBranch},

		{http.MethodPut, "/v1/settings/{key}", a.putSetting},
		{http.MethodGet, "/v1/settings", a.listSettings},
	}
	for _, rt := range routes {
		if err := mux.HandlePath(rt.method, rt.pattern, rt.h); err != nil {
			return nil, errors.Wrapf(err, "register %s %s", rt.method, rt.pattern)
		}
	}
	return mux, nil
}

func pathID(params map[string]string, name string) (int64, error) {
	id, err := strconv.ParseInt(params[name], 10, 64)
	if err != nil || id <= 0 {
		return 0, errors.Wrapf(models.ErrInvalidArgument, "%s must be a positive integer", name)
	}
	return id, nil
}

func pageFrom(r *http.Request) models.Page {
	q := r.URL.Query()
	n, _ := strconv.Atoi(q.Get("page"))
	l, _ := strconv.Atoi(q.Get("limit"))
	return models.Page{Number: n, Limit: l}.Normalize()
}

// actor достаёт вызывающего; без него запрос не должен был пройти middleware.
func actor(w http.ResponseWriter, r *http.Request) (models.Actor, bool) {
	a, ok := actorFrom(r.Context())
	if !ok {
		writeError(w, errors.Wrap(errUnauthorized, "no actor"))
	}
	return a, ok
}

func queryInt64(r *http.Request, name string) (*int64, error) {
	v := strings.TrimSpace(r.URL.Query().Get(name))
	if v == "" {
		return nil, nil
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return nil, errors.Wrapf(models.ErrInvalidArgument, "%s must be an integer", name)
	}
	return &n, nil
}
