package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/mlafleur/paycalc-helpers/internal/calculator"
	"github.com/mlafleur/paycalc-helpers/internal/database"
	"github.com/mlafleur/paycalc-helpers/internal/logger"
)

// PreferencesSession is the cookie name for saved form preferences
const PreferencesSession = "paycalc_prefs"

// Handler holds dependencies for HTTP handlers
type Handler struct {
	db       *database.DB
	sessions *database.SessionStore
	logger   *zap.Logger
}

// NewHandler creates a new handler
func NewHandler(db *database.DB, sessions *database.SessionStore) *Handler {
	return &Handler{
		db:       db,
		sessions: sessions,
		logger:   logger.Log,
	}
}

// JSON response helper
func (h *Handler) jsonResponse(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("encoding JSON response", zap.Error(err))
	}
}

// Error response helper
func (h *Handler) errorResponse(w http.ResponseWriter, status int, message string) {
	h.jsonResponse(w, status, map[string]string{"error": message})
}

// HealthCheck returns API health status
func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	dbOK := h.db.Ping() == nil
	h.jsonResponse(w, http.StatusOK, map[string]interface{}{
		"status":   "ok",
		"database": dbOK,
	})
}

// GetProvinces returns all supported jurisdictions, sorted
func (h *Handler) GetProvinces(w http.ResponseWriter, r *http.Request) {
	provinces := calculator.Provinces()
	h.jsonResponse(w, http.StatusOK, map[string]interface{}{
		"provinces": provinces,
		"total":     len(provinces),
	})
}

// GetFrequencies returns the supported output cadences
func (h *Handler) GetFrequencies(w http.ResponseWriter, r *http.Request) {
	h.jsonResponse(w, http.StatusOK, map[string]interface{}{
		"frequencies": calculator.Frequencies(),
	})
}

// CalculateRequest is the request body for the calculate endpoint. Income
// may be entered per month or per year; IncomePeriod says which.
type CalculateRequest struct {
	Province          string  `json:"province"`
	Income            float64 `json:"income"`
	IncomePeriod      string  `json:"incomePeriod"` // "annual" (default) or "monthly"
	Frequency         string  `json:"frequency"`
	ShowFederalTax    bool    `json:"showFederalTax"`
	ShowProvincialTax bool    `json:"showProvincialTax"`
	ShowCPP           bool    `json:"showCPP"`
	ShowEI            bool    `json:"showEI"`
}

// Calculate runs a full tax calculation
func (h *Handler) Calculate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		h.errorResponse(w, http.StatusMethodNotAllowed, "POST required")
		return
	}

	var req CalculateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.errorResponse(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	// Normalize income to annual before it reaches the calculator
	annualIncome := req.Income
	switch strings.ToLower(req.IncomePeriod) {
	case "", "annual":
	case "monthly":
		annualIncome *= 12
	default:
		h.errorResponse(w, http.StatusBadRequest, "incomePeriod must be \"annual\" or \"monthly\"")
		return
	}

	frequency := calculator.Frequency(req.Frequency)
	if req.Frequency == "" {
		frequency = calculator.Yearly
	}
	if !frequency.Valid() {
		h.errorResponse(w, http.StatusBadRequest, "frequency must be one of Yearly, Monthly, Biweekly")
		return
	}

	result, err := calculator.Calculate(calculator.Query{
		Province:          req.Province,
		AnnualIncome:      annualIncome,
		Frequency:         frequency,
		ShowFederalTax:    req.ShowFederalTax,
		ShowProvincialTax: req.ShowProvincialTax,
		ShowCPP:           req.ShowCPP,
		ShowEI:            req.ShowEI,
	})
	if err != nil {
		if errors.Is(err, calculator.ErrInvalidIncome) || errors.Is(err, calculator.ErrUnknownProvince) {
			h.errorResponse(w, http.StatusBadRequest, err.Error())
			return
		}
		h.logger.Error("calculation failed", zap.Error(err))
		h.errorResponse(w, http.StatusInternalServerError, err.Error())
		return
	}

	// History and preferences are best effort; the calculation is already
	// complete and pure, so a store fault never fails the request
	record := &database.Calculation{
		Province:        result.Inputs.Province,
		AnnualIncome:    result.Inputs.AnnualIncome,
		Frequency:       string(result.Inputs.Frequency),
		FederalTax:      result.Deductions.FederalTax,
		ProvincialTax:   result.Deductions.ProvincialTax,
		CPPContribution: result.Deductions.CPPContribution,
		EIContribution:  result.Deductions.EIContribution,
		NetIncome:       result.NetIncome,
	}
	if err := h.db.SaveCalculation(record); err != nil {
		h.logger.Warn("saving calculation history", zap.Error(err))
	}
	h.savePreferences(w, r, req)

	h.logger.Info("calculation",
		zap.String("province", result.Inputs.Province),
		zap.Float64("annual_income", result.Inputs.AnnualIncome),
		zap.String("frequency", string(result.Inputs.Frequency)))

	h.jsonResponse(w, http.StatusOK, result)
}

// GetHistory returns recent calculations
func (h *Handler) GetHistory(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	if limit <= 0 || limit > 100 {
		limit = 20
	}

	history, err := h.db.GetRecentCalculations(limit)
	if err != nil {
		h.logger.Error("loading history", zap.Error(err))
		h.errorResponse(w, http.StatusInternalServerError, err.Error())
		return
	}
	if history == nil {
		history = []database.Calculation{}
	}

	h.jsonResponse(w, http.StatusOK, map[string]interface{}{
		"history": history,
		"total":   len(history),
	})
}

// Preferences are the remembered form inputs
type Preferences struct {
	Province          string `json:"province"`
	IncomePeriod      string `json:"incomePeriod"`
	Frequency         string `json:"frequency"`
	ShowFederalTax    bool   `json:"showFederalTax"`
	ShowProvincialTax bool   `json:"showProvincialTax"`
	ShowCPP           bool   `json:"showCPP"`
	ShowEI            bool   `json:"showEI"`
}

func defaultPreferences() Preferences {
	return Preferences{
		Province:          "Alberta",
		IncomePeriod:      "annual",
		Frequency:         string(calculator.Yearly),
		ShowFederalTax:    true,
		ShowProvincialTax: true,
		ShowCPP:           true,
		ShowEI:            true,
	}
}

// HandlePreferences reads (GET) or saves (POST) the form preferences
func (h *Handler) HandlePreferences(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		h.jsonResponse(w, http.StatusOK, h.loadPreferences(r))
	case http.MethodPost:
		var req CalculateRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			h.errorResponse(w, http.StatusBadRequest, "Invalid request body")
			return
		}
		// Only known provinces and frequencies may be remembered;
		// Calculate already guarantees this for its own submissions
		if req.Province != "" {
			if _, ok := calculator.ProvincialTaxTables[req.Province]; !ok {
				h.errorResponse(w, http.StatusBadRequest, "unknown province: "+req.Province)
				return
			}
		}
		if req.Frequency != "" && !calculator.Frequency(req.Frequency).Valid() {
			h.errorResponse(w, http.StatusBadRequest, "frequency must be one of Yearly, Monthly, Biweekly")
			return
		}
		h.savePreferences(w, r, req)
		prefs := defaultPreferences()
		if req.Province != "" {
			prefs.Province = req.Province
		}
		if req.IncomePeriod != "" {
			prefs.IncomePeriod = strings.ToLower(req.IncomePeriod)
		}
		if req.Frequency != "" {
			prefs.Frequency = req.Frequency
		}
		prefs.ShowFederalTax = req.ShowFederalTax
		prefs.ShowProvincialTax = req.ShowProvincialTax
		prefs.ShowCPP = req.ShowCPP
		prefs.ShowEI = req.ShowEI
		h.jsonResponse(w, http.StatusOK, prefs)
	default:
		h.errorResponse(w, http.StatusMethodNotAllowed, "GET or POST required")
	}
}

// loadPreferences reads the saved preferences from the session, falling
// back to defaults for anything missing
func (h *Handler) loadPreferences(r *http.Request) Preferences {
	prefs := defaultPreferences()

	session, err := h.sessions.Get(r, PreferencesSession)
	if err != nil || session.IsNew {
		return prefs
	}

	if v, ok := session.Values["province"].(string); ok {
		prefs.Province = v
	}
	if v, ok := session.Values["incomePeriod"].(string); ok {
		prefs.IncomePeriod = v
	}
	if v, ok := session.Values["frequency"].(string); ok {
		prefs.Frequency = v
	}
	if v, ok := session.Values["showFederalTax"].(bool); ok {
		prefs.ShowFederalTax = v
	}
	if v, ok := session.Values["showProvincialTax"].(bool); ok {
		prefs.ShowProvincialTax = v
	}
	if v, ok := session.Values["showCPP"].(bool); ok {
		prefs.ShowCPP = v
	}
	if v, ok := session.Values["showEI"].(bool); ok {
		prefs.ShowEI = v
	}
	return prefs
}

// savePreferences writes the submitted form inputs to the session.
// Failures are logged and dropped.
func (h *Handler) savePreferences(w http.ResponseWriter, r *http.Request, req CalculateRequest) {
	session, err := h.sessions.Get(r, PreferencesSession)
	if err != nil {
		h.logger.Warn("opening preferences session", zap.Error(err))
		return
	}

	if req.Province != "" {
		session.Values["province"] = req.Province
	}
	if req.IncomePeriod != "" {
		session.Values["incomePeriod"] = strings.ToLower(req.IncomePeriod)
	}
	if req.Frequency != "" {
		session.Values["frequency"] = req.Frequency
	}
	session.Values["showFederalTax"] = req.ShowFederalTax
	session.Values["showProvincialTax"] = req.ShowProvincialTax
	session.Values["showCPP"] = req.ShowCPP
	session.Values["showEI"] = req.ShowEI

	if err := h.sessions.Save(r, w, session); err != nil {
		h.logger.Warn("saving preferences session", zap.Error(err))
	}
}
