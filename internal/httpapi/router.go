package httpapi

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"dinesafe/internal/bootstrap/logging"
	"dinesafe/internal/errs"
	"dinesafe/internal/ports"
	"dinesafe/internal/usecase/summary"
)

// NewRouter exposes the summary read endpoint to the presentation layer.
// Responses are marked uncacheable: freshness is this subsystem's own
// responsibility, an intermediate HTTP cache must not second-guess it.
func NewRouter(svc *summary.Service) chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Get("/healthz", handleHealth)
	r.Get("/api/establishments/{license}/summary", handleSummary(svc))

	return r
}

func handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write([]byte(`{"status":"ok"}`))
}

func handleSummary(svc *summary.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		license := chi.URLParam(r, "license")

		result, err := svc.GetSummary(ctx, license)
		if err != nil {
			if errors.Is(err, ports.ErrEstablishmentNotFound) {
				writeError(w, http.StatusNotFound, "establishment not found")
				return
			}
			logging.Error(ctx, "summary read failed",
				slog.String("component", "httpapi"),
				slog.String("license_no", license),
				slog.Any("err", errs.Loggable(err)),
			)
			writeError(w, http.StatusInternalServerError, "internal error")
			return
		}

		if result.Themes == nil {
			result.Themes = []string{}
		}

		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("Cache-Control", "no-store")
		if err := json.NewEncoder(w).Encode(result); err != nil {
			logging.Error(ctx, "encode summary response failed",
				slog.String("component", "httpapi"),
				slog.Any("err", errs.Loggable(err)),
			)
		}
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
