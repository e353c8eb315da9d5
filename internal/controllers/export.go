package controllers

import (
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/drstein77/hostfront/internal/catalog"
	"github.com/drstein77/hostfront/internal/compress"
	"github.com/drstein77/hostfront/internal/models"
)

const priceSheetName = "prices.csv"

// exportPrices downloads the price sheet of the request's market, packed
// as archiveType: zip by default, tar, or a bare csv.
func (h *BaseController) exportPrices(w http.ResponseWriter, r *http.Request) {
	archiveType := strings.ToLower(r.URL.Query().Get("archiveType"))
	if archiveType == "" {
		archiveType = compress.FormatZip
	}
	contentType, ok := compress.ContentType(archiveType)
	if archiveType == "csv" {
		contentType, ok = "text/csv; charset=utf-8", true
	}
	if !ok {
		h.writeJSON(w, http.StatusBadRequest, models.Envelope{Error: "archiveType must be zip, tar or csv"})
		return
	}

	m, _ := h.market(r)
	res := h.catalog.Products(r.Context(), m)
	if res.Fallback {
		w.Header().Set("X-Fallback", "true")
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", `attachment; filename="prices.`+archiveType+`"`)

	if archiveType == "csv" {
		if err := catalog.ExportCSV(w, res.Data); err != nil {
			h.log.Error("failed to write price sheet", zap.Error(err))
		}
		return
	}

	aw, err := compress.NewArchiveWriter(w, archiveType, priceSheetName)
	if err != nil {
		h.log.Error("failed to start archive", zap.Error(err))
		return
	}
	if err := catalog.ExportCSV(aw, res.Data); err != nil {
		h.log.Error("failed to write price sheet", zap.Error(err))
	}
	if err := aw.Close(); err != nil {
		h.log.Error("failed to close archive", zap.Error(err))
	}
}
