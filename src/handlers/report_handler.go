package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/username/boxshift/backend/src/logger"
	"github.com/username/boxshift/backend/src/reports"
	"github.com/username/boxshift/backend/src/services"
	"github.com/username/boxshift/backend/src/utils"
)

type ReportHandler struct {
	reportService services.ReportService
}

func NewReportHandler(reportService services.ReportService) *ReportHandler {
	return &ReportHandler{reportService: reportService}
}

// yearFromRequest reads the {year} path value. Years before 2000 or more than
// one year ahead are rejected, those are always client mistakes.
func yearFromRequest(w http.ResponseWriter, r *http.Request) (int, bool) {
	yearStr := r.PathValue("year")
	year, err := strconv.Atoi(yearStr)
	if err != nil {
		utils.SendJSONError(w, "year must be an integer", http.StatusBadRequest)
		return 0, false
	}
	if year < 2000 || year > time.Now().Year()+1 {
		utils.SendJSONError(w, "year out of range", http.StatusBadRequest)
		return 0, false
	}
	return year, true
}

// HandleGenerateReport builds (or rebuilds) the jaarrekening and VPB filing
// for one boekjaar.
func (h *ReportHandler) HandleGenerateReport(w http.ResponseWriter, r *http.Request) {
	company, ok := companyForRequest(w, r)
	if !ok {
		return
	}
	year, ok := yearFromRequest(w, r)
	if !ok {
		return
	}

	report, filing, err := h.reportService.GenerateReport(company.ID, year)
	if err != nil {
		logger.L.Error("Failed to generate annual report", "companyID", company.ID, "year", year, "error", err)
		utils.SendJSONError(w, "Failed to generate annual report", http.StatusInternalServerError)
		return
	}

	logger.L.Info("Annual report generated", "companyID", company.ID, "year", year)
	utils.SendJSON(w, map[string]interface{}{
		"report": report,
		"filing": filing,
	}, http.StatusOK)
}

func (h *ReportHandler) HandleGetReport(w http.ResponseWriter, r *http.Request) {
	company, ok := companyForRequest(w, r)
	if !ok {
		return
	}
	year, ok := yearFromRequest(w, r)
	if !ok {
		return
	}

	report, err := h.reportService.GetReport(company.ID, year)
	if errors.Is(err, reports.ErrReportNotFound) {
		utils.SendJSONError(w, "No report for that year. Generate it first.", http.StatusNotFound)
		return
	}
	if err != nil {
		logger.L.Error("Failed to load annual report", "companyID", company.ID, "year", year, "error", err)
		utils.SendJSONError(w, "Failed to load annual report", http.StatusInternalServerError)
		return
	}
	utils.SendJSON(w, report, http.StatusOK)
}

func (h *ReportHandler) HandleGetFiling(w http.ResponseWriter, r *http.Request) {
	company, ok := companyForRequest(w, r)
	if !ok {
		return
	}
	year, ok := yearFromRequest(w, r)
	if !ok {
		return
	}

	filing, err := h.reportService.GetFiling(company.ID, year)
	if errors.Is(err, reports.ErrFilingNotFound) {
		utils.SendJSONError(w, "No VPB filing for that year. Generate the report first.", http.StatusNotFound)
		return
	}
	if err != nil {
		logger.L.Error("Failed to load VPB filing", "companyID", company.ID, "year", year, "error", err)
		utils.SendJSONError(w, "Failed to load VPB filing", http.StatusInternalServerError)
		return
	}

	breakdown := reports.BreakdownVPB(filing.TaxableProfit)
	utils.SendJSON(w, map[string]interface{}{
		"filing":    filing,
		"breakdown": breakdown,
		"deadline":  reports.FilingDeadline(filing.Year).Format("2006-01-02"),
	}, http.StatusOK)
}

// HandleCalculateVPB recomputes the VPB filing for a year. It regenerates
// the full report (the tax depends on the P&L) and returns the bracket
// breakdown with the filing deadline.
func (h *ReportHandler) HandleCalculateVPB(w http.ResponseWriter, r *http.Request) {
	company, ok := companyForRequest(w, r)
	if !ok {
		return
	}

	var payload struct {
		Year int `json:"year"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		utils.SendJSONError(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if payload.Year < 2000 || payload.Year > time.Now().Year()+1 {
		utils.SendJSONError(w, "year out of range", http.StatusBadRequest)
		return
	}

	_, filing, err := h.reportService.GenerateReport(company.ID, payload.Year)
	if err != nil {
		logger.L.Error("Failed to recompute VPB", "companyID", company.ID, "year", payload.Year, "error", err)
		utils.SendJSONError(w, "Failed to recompute VPB", http.StatusInternalServerError)
		return
	}

	utils.SendJSON(w, map[string]interface{}{
		"filing":    filing,
		"breakdown": reports.BreakdownVPB(filing.TaxableProfit),
		"deadline":  reports.FilingDeadline(filing.Year).Format("2006-01-02"),
	}, http.StatusOK)
}

// HandleGetAangifte returns the filled aangifte document for the accountant
// or the Belastingdienst portal.
func (h *ReportHandler) HandleGetAangifte(w http.ResponseWriter, r *http.Request) {
	company, ok := companyForRequest(w, r)
	if !ok {
		return
	}
	year, ok := yearFromRequest(w, r)
	if !ok {
		return
	}

	aangifte, err := h.reportService.GetAangifte(company.ID, year)
	if errors.Is(err, reports.ErrReportNotFound) {
		utils.SendJSONError(w, "No report for that year. Generate it first.", http.StatusNotFound)
		return
	}
	if err != nil {
		logger.L.Error("Failed to build aangifte", "companyID", company.ID, "year", year, "error", err)
		utils.SendJSONError(w, "Failed to build aangifte", http.StatusInternalServerError)
		return
	}
	utils.SendJSON(w, aangifte, http.StatusOK)
}
