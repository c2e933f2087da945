package handlers

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/username/boxshift/backend/src/database"
	"github.com/username/boxshift/backend/src/logger"
	"github.com/username/boxshift/backend/src/models"
	"github.com/username/boxshift/backend/src/services"
	"github.com/username/boxshift/backend/src/utils"
)

type TransactionHandler struct {
	importService services.ImportService
}

func NewTransactionHandler(importService services.ImportService) *TransactionHandler {
	return &TransactionHandler{importService: importService}
}

// HandleGetTransactions lists the company's ledger, newest first. Optional
// query parameters: type (buy/sell/dividend/...) and year.
func (h *TransactionHandler) HandleGetTransactions(w http.ResponseWriter, r *http.Request) {
	company, ok := companyForRequest(w, r)
	if !ok {
		return
	}

	txType := r.URL.Query().Get("type")
	if txType != "" && !models.ValidTxTypes[txType] {
		utils.SendJSONError(w, fmt.Sprintf("unknown transaction type %q", txType), http.StatusBadRequest)
		return
	}

	year := 0
	if yearStr := r.URL.Query().Get("year"); yearStr != "" {
		parsed, err := strconv.Atoi(yearStr)
		if err != nil {
			utils.SendJSONError(w, "year must be an integer", http.StatusBadRequest)
			return
		}
		year = parsed
	}

	transactions, err := models.ListTransactions(database.DB, company.ID, txType, year)
	if err != nil {
		logger.L.Error("Failed to list transactions", "companyID", company.ID, "error", err)
		utils.SendJSONError(w, fmt.Sprintf("Error querying transactions: %v", err), http.StatusInternalServerError)
		return
	}
	if transactions == nil {
		transactions = []models.Transaction{}
	}
	utils.SendJSON(w, transactions, http.StatusOK)
}

// HandleGetTransactionYears returns the years with ledger activity, for the
// frontend's year picker.
func (h *TransactionHandler) HandleGetTransactionYears(w http.ResponseWriter, r *http.Request) {
	company, ok := companyForRequest(w, r)
	if !ok {
		return
	}

	years, err := models.TransactionYears(database.DB, company.ID)
	if err != nil {
		logger.L.Error("Failed to list transaction years", "companyID", company.ID, "error", err)
		utils.SendJSONError(w, "Error querying transaction years", http.StatusInternalServerError)
		return
	}
	if years == nil {
		years = []int{}
	}
	utils.SendJSON(w, years, http.StatusOK)
}

func (h *TransactionHandler) HandleGetHoldings(w http.ResponseWriter, r *http.Request) {
	company, ok := companyForRequest(w, r)
	if !ok {
		return
	}

	summary, err := h.importService.GetHoldingsSummary(company.ID)
	if err != nil {
		logger.L.Error("Failed to build holdings summary", "companyID", company.ID, "error", err)
		utils.SendJSONError(w, "Error querying holdings", http.StatusInternalServerError)
		return
	}
	utils.SendJSON(w, summary, http.StatusOK)
}

func (h *TransactionHandler) HandleGetDashboardSummary(w http.ResponseWriter, r *http.Request) {
	company, ok := companyForRequest(w, r)
	if !ok {
		return
	}

	summary, err := h.importService.GetDashboardSummary(company.ID)
	if err != nil {
		logger.L.Error("Failed to build dashboard summary", "companyID", company.ID, "error", err)
		utils.SendJSONError(w, "Error building dashboard summary", http.StatusInternalServerError)
		return
	}
	utils.SendJSON(w, summary, http.StatusOK)
}
