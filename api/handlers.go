/*
handlers.go - HTTP API handlers for the reimbursement engine

PURPOSE:
  Exposes the engine via REST. Handles HTTP request/response, JSON
  serialization, and delegates everything else to the domain layer.

ENDPOINTS:
  Employees:
    GET    /api/employees                    List employees
    POST   /api/employees                    Add employee (HR)
    GET    /api/employees/{id}               Employee detail
    POST   /api/employees/{id}/trajectories  Approve trajectory (HR)
    POST   /api/employees/{id}/exceptions    Grant deadline exception (HR)
    GET    /api/employees/{id}/totals        Dashboard totals
    GET    /api/employees/{id}/rides         Ride history

  Rides:
    POST   /api/rides                        Submit a ride

  Configuration:
    GET    /api/config                       Current config + warnings
    PUT    /api/config                       Save config (HR)

  Exports:
    GET    /api/exports                      Export history
    GET    /api/exports/pending              Preview of the next batch
    POST   /api/exports                      Process an export batch
    GET    /api/exports/{id}/csv             Download the payroll file

ERROR HANDLING:
  - 400: validation errors, invalid input
  - 404: broken references (unknown employee/trajectory/batch)
  - 409: duplicates, empty export
  - 500: internal errors
  A rejected ride submission is NOT an error: it returns 200 with
  accepted=false and the explanatory messages, mirroring what the
  employee portal shows.
*/
package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/warp/commute-engine/engine"
	"github.com/warp/commute-engine/payroll"
)

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Service  *engine.Service
	validate *validator.Validate
}

func NewHandler(svc *engine.Service) *Handler {
	return &Handler{
		Service:  svc,
		validate: validator.New(),
	}
}

// =============================================================================
// EMPLOYEE HANDLERS
// =============================================================================

func (h *Handler) ListEmployees(w http.ResponseWriter, r *http.Request) {
	employees, err := h.Service.Employees(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list employees", err)
		return
	}
	dtos := make([]EmployeeDTO, len(employees))
	for i := range employees {
		dtos[i] = toEmployeeDTO(&employees[i])
	}
	writeJSON(w, http.StatusOK, dtos)
}

func (h *Handler) GetEmployee(w http.ResponseWriter, r *http.Request) {
	id := engine.EmployeeID(chi.URLParam(r, "id"))
	e, err := h.Service.Employee(r.Context(), id)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toEmployeeDTO(e))
}

func (h *Handler) CreateEmployee(w http.ResponseWriter, r *http.Request) {
	var req CreateEmployeeRequest
	if !h.decode(w, r, &req) {
		return
	}

	e := engine.Employee{
		ID:           engine.EmployeeID(req.ID),
		Name:         req.Name,
		Country:      engine.Country(req.Country),
		BikeType:     engine.BikeType(req.BikeType),
		Trajectories: map[string]decimal.Decimal{},
	}
	if req.TrajectoryName != "" {
		e.Trajectories[req.TrajectoryName] = decimal.NewFromFloat(req.TrajectoryKM)
	}

	if err := h.Service.AddEmployee(r.Context(), e); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toEmployeeDTO(&e))
}

func (h *Handler) ApproveTrajectory(w http.ResponseWriter, r *http.Request) {
	id := engine.EmployeeID(chi.URLParam(r, "id"))
	var req ApproveTrajectoryRequest
	if !h.decode(w, r, &req) {
		return
	}

	err := h.Service.ApproveTrajectory(r.Context(), id, req.Name,
		decimal.NewFromFloat(req.OneWayKM), req.DeclarationReceived)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) GrantException(w http.ResponseWriter, r *http.Request) {
	id := engine.EmployeeID(chi.URLParam(r, "id"))
	var req GrantExceptionRequest
	if !h.decode(w, r, &req) {
		return
	}

	expires, err := engine.ParseDate(req.ExpiresOn)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid expires_on", err)
		return
	}
	if err := h.Service.GrantDeadlineException(r.Context(), id, expires); err != nil {
		writeDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) GetTotals(w http.ResponseWriter, r *http.Request) {
	id := engine.EmployeeID(chi.URLParam(r, "id"))
	totals, err := h.Service.Totals(r.Context(), id)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	dto := TotalsDTO{
		EmployeeID: string(totals.EmployeeID),
		Rate:       totals.Rate.StringFixed(2),
		MonthTotal: totals.MonthTotal.StringFixed(2),
		YearTotal:  totals.YearTotal.StringFixed(2),
	}
	if totals.Limit != nil {
		dto.Limit = totals.Limit.StringFixed(2)
		dto.Remaining = totals.Remaining.StringFixed(2)
	}
	writeJSON(w, http.StatusOK, dto)
}

func (h *Handler) ListRides(w http.ResponseWriter, r *http.Request) {
	id := engine.EmployeeID(chi.URLParam(r, "id"))
	rides, err := h.Service.Rides(r.Context(), id)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toRideDTOs(rides))
}

// =============================================================================
// RIDE SUBMISSION
// =============================================================================

func (h *Handler) SubmitRide(w http.ResponseWriter, r *http.Request) {
	var req SubmitRideRequest
	if !h.decode(w, r, &req) {
		return
	}

	date, err := engine.ParseDate(req.Date)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid date", err)
		return
	}

	result, err := h.Service.SubmitRide(r.Context(),
		engine.EmployeeID(req.EmployeeID), date, req.Trajectory, engine.RideType(req.RideType))
	if err != nil {
		writeDomainError(w, err)
		return
	}

	dto := SubmissionResultDTO{
		Accepted: result.Accepted,
		Messages: result.Messages,
		Amount:   result.Amount.StringFixed(2),
	}
	if result.Ride != nil {
		rd := toRideDTO(*result.Ride)
		dto.Ride = &rd
	}
	writeJSON(w, http.StatusOK, dto)
}

// =============================================================================
// CONFIGURATION HANDLERS
// =============================================================================

func (h *Handler) GetConfig(w http.ResponseWriter, r *http.Request) {
	cfg, err := h.Service.Config(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to load config", err)
		return
	}
	writeJSON(w, http.StatusOK, toConfigDTO(cfg))
}

func (h *Handler) SaveConfig(w http.ResponseWriter, r *http.Request) {
	var req SaveConfigRequest
	if !h.decode(w, r, &req) {
		return
	}

	cfg := engine.Config{
		BELimitType:    engine.LimitType(req.BELimitType),
		BEEnforceMode:  engine.EnforceMode(req.BEEnforceMode),
		DeadlineDay:    req.DeadlineDay,
		MaxRidesPerDay: req.MaxRidesPerDay,
	}
	for _, f := range []struct {
		dst *decimal.Decimal
		src string
	}{
		{&cfg.BERate, req.BERate},
		{&cfg.BEYearlyLimit, req.BEYearlyLimit},
		{&cfg.BEMonthlyLimit, req.BEMonthlyLimit},
		{&cfg.NLOwnRate, req.NLOwnRate},
		{&cfg.NLCompanyRate, req.NLCompanyRate},
	} {
		d, err := decimal.NewFromString(f.src)
		if err != nil {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("Invalid decimal %q", f.src), err)
			return
		}
		*f.dst = d
	}

	if err := h.Service.SaveConfig(r.Context(), cfg); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toConfigDTO(cfg))
}

// =============================================================================
// EXPORT HANDLERS
// =============================================================================

func (h *Handler) ListExports(w http.ResponseWriter, r *http.Request) {
	batches, err := h.Service.ExportHistory(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list exports", err)
		return
	}
	dtos := make([]ExportBatchDTO, len(batches))
	for i, b := range batches {
		dtos[i] = toBatchDTO(b)
	}
	writeJSON(w, http.StatusOK, dtos)
}

func (h *Handler) PendingExport(w http.ResponseWriter, r *http.Request) {
	rides, total, err := h.Service.PendingExport(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to load pending rides", err)
		return
	}
	writeJSON(w, http.StatusOK, PendingExportDTO{
		Rides:       toRideDTOs(rides),
		RideCount:   len(rides),
		TotalAmount: total.StringFixed(2),
	})
}

func (h *Handler) ProcessExport(w http.ResponseWriter, r *http.Request) {
	batch, _, err := h.Service.Export(r.Context())
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toBatchDTO(*batch))
}

func (h *Handler) DownloadExport(w http.ResponseWriter, r *http.Request) {
	batchID, err := strconv.Atoi(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid batch id", err)
		return
	}

	batch, rides, err := h.Service.ExportedRides(r.Context(), batchID)
	if err != nil {
		writeError(w, http.StatusNotFound, "Export batch not found", err)
		return
	}

	data, err := payroll.Render(rides)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to render export", err)
		return
	}

	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition",
		fmt.Sprintf("attachment; filename=%q", payroll.Filename(*batch)))
	w.Write(data)
}

// =============================================================================
// DTO MAPPING
// =============================================================================

func toEmployeeDTO(e *engine.Employee) EmployeeDTO {
	trajectories := make(map[string]string, len(e.Trajectories))
	for name, km := range e.Trajectories {
		trajectories[name] = km.String()
	}
	return EmployeeDTO{
		ID:           string(e.ID),
		Name:         e.Name,
		Country:      string(e.Country),
		BikeType:     string(e.BikeType),
		Trajectories: trajectories,
	}
}

func toConfigDTO(cfg engine.Config) ConfigDTO {
	return ConfigDTO{
		BERate:         cfg.BERate.StringFixed(2),
		BELimitType:    string(cfg.BELimitType),
		BEYearlyLimit:  cfg.BEYearlyLimit.StringFixed(2),
		BEMonthlyLimit: cfg.BEMonthlyLimit.StringFixed(2),
		BEEnforceMode:  string(cfg.BEEnforceMode),
		NLOwnRate:      cfg.NLOwnRate.StringFixed(2),
		NLCompanyRate:  cfg.NLCompanyRate.StringFixed(2),
		DeadlineDay:    cfg.DeadlineDay,
		MaxRidesPerDay: cfg.MaxRidesPerDay,
		Warnings:       cfg.Warnings(),
	}
}

func toRideDTO(r engine.Ride) RideDTO {
	return RideDTO{
		ID:            string(r.ID),
		EmployeeID:    string(r.EmployeeID),
		EmployeeName:  r.EmployeeName,
		Date:          r.Date.String(),
		Trajectory:    r.Trajectory,
		RideType:      string(r.RideType),
		DistanceKM:    r.DistanceKM.String(),
		Amount:        r.Amount.StringFixed(2),
		RateApplied:   r.RateApplied.StringFixed(2),
		Processed:     r.Processed,
		ExportBatchID: r.ExportBatchID,
	}
}

func toRideDTOs(rides []engine.Ride) []RideDTO {
	dtos := make([]RideDTO, len(rides))
	for i, r := range rides {
		dtos[i] = toRideDTO(r)
	}
	return dtos
}

func toBatchDTO(b engine.ExportBatch) ExportBatchDTO {
	return ExportBatchDTO{
		BatchID:     b.BatchID,
		ExportedAt:  b.ExportedAt.Format("2006-01-02T15:04:05Z07:00"),
		PeriodStart: b.PeriodStart.String(),
		PeriodEnd:   b.PeriodEnd.String(),
		RideCount:   b.RideCount,
		TotalAmount: b.TotalAmount.StringFixed(2),
		Filename:    payroll.Filename(b),
	}
}

// =============================================================================
// HELPERS
// =============================================================================

// decode parses and validates a JSON request body. Writes the error
// response itself and returns false when the body is unusable.
func (h *Handler) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return false
	}
	if err := h.validate.Struct(dst); err != nil {
		writeError(w, http.StatusBadRequest, "Validation failed", err)
		return false
	}
	return true
}

// writeDomainError maps engine errors to HTTP status codes.
func writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case engine.IsNotFound(err):
		writeError(w, http.StatusNotFound, "Not found", err)
	case errors.Is(err, engine.ErrDuplicateEmployee),
		errors.Is(err, engine.ErrDuplicateTrajectory),
		errors.Is(err, engine.ErrEmptyExport):
		writeError(w, http.StatusConflict, "Conflict", err)
	case engine.IsClientError(err):
		writeError(w, http.StatusBadRequest, "Invalid request", err)
	default:
		writeError(w, http.StatusInternalServerError, "Internal error", err)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string, err error) {
	resp := ErrorResponse{Error: msg}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}
