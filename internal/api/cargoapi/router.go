package cargoapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// Router вешает /v1 за JWT-middleware. Документация и healthz открыты.
func (a *API) Router(auth *Authenticator, swaggerPath string) (http.Handler, error) {
	mux, err := a.Mux()
	if err != nil {
		return nil, err
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	mountDocs(r, swaggerPath)

	r.Group(func(r chi.Router) {
		r.Use(auth.Middleware)
		r.Get("/v1/imports/{id}/report.csv", a.importReport)
		r.Handle("/v1/*", mux)
	})
	return r, nil
}
