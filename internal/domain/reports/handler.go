package reports

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"dental-clinic/internal/middleware"
	"dental-clinic/internal/ports/auth"

	"github.com/go-chi/chi/v5"
)

func RegisterRoutes(r chi.Router, svc *Service) {
	r.Route("/admin/reports", func(ar chi.Router) {
		ar.Use(middleware.RequireRole(auth.RoleAdmin))
		ar.Get("/summary", summaryHandler(svc))
		ar.Get("/export", exportHandler(svc))
	})
}

// summaryHandler godoc
// @Summary Indicadores del período
// @Tags reports
// @Produce json
// @Param from query string false "YYYY-MM-DD (default: hace 30 días)"
// @Param to query string false "YYYY-MM-DD inclusive"
// @Success 200 {object} Summary
// @Router /admin/reports/summary [get]
func summaryHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		from, to, err := svc.Range(r.URL.Query().Get("from"), r.URL.Query().Get("to"))
		if err != nil {
			writeError(w, err)
			return
		}
		sum, err := svc.Summary(r.Context(), from, to)
		if err != nil {
			writeError(w, err)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(sum)
	}
}

// exportHandler godoc
// @Summary Exportar reporte a Excel
// @Tags reports
// @Produce application/vnd.openxmlformats-officedocument.spreadsheetml.sheet
// @Param from query string false "YYYY-MM-DD"
// @Param to query string false "YYYY-MM-DD inclusive"
// @Success 200 {file} file
// @Router /admin/reports/export [get]
func exportHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		from, to, err := svc.Range(r.URL.Query().Get("from"), r.URL.Query().Get("to"))
		if err != nil {
			writeError(w, err)
			return
		}
		name := fmt.Sprintf("clinic-report-%s.xlsx", from.Format("20060102"))
		w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
		w.Header().Set("Content-Disposition", `attachment; filename="`+name+`"`)
		if err := svc.ExportXLSX(r.Context(), from, to, w); err != nil {
			writeError(w, err)
		}
	}
}

func writeError(w http.ResponseWriter, err error) {
	if errors.Is(err, ErrInvalidInput) {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	http.Error(w, "internal error", http.StatusInternalServerError)
}
