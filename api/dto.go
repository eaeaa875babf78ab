/*
dto.go - Request/response data structures for the HTTP API

Request bodies carry validate tags (go-playground/validator); the handler
rejects malformed input before it reaches the domain layer.
*/
package api

// =============================================================================
// REQUESTS
// =============================================================================

type CreateEmployeeRequest struct {
	ID       string `json:"id" validate:"required"`
	Name     string `json:"name" validate:"required"`
	Country  string `json:"country" validate:"required,oneof=BE NL"`
	BikeType string `json:"bike_type" validate:"required,oneof=own company"`

	// Optional initial trajectory.
	TrajectoryName string  `json:"trajectory_name" validate:"required_with=TrajectoryKM"`
	TrajectoryKM   float64 `json:"trajectory_km" validate:"omitempty,gt=0"`
}

type ApproveTrajectoryRequest struct {
	Name                string  `json:"name" validate:"required"`
	OneWayKM            float64 `json:"one_way_km" validate:"required,gt=0"`
	DeclarationReceived bool    `json:"declaration_received"`
}

type GrantExceptionRequest struct {
	ExpiresOn string `json:"expires_on" validate:"required"` // YYYY-MM-DD
}

type SubmitRideRequest struct {
	EmployeeID string `json:"employee_id" validate:"required"`
	Date       string `json:"date" validate:"required"` // YYYY-MM-DD
	Trajectory string `json:"trajectory" validate:"required"`
	RideType   string `json:"ride_type" validate:"required,oneof=ONE_WAY ROUND_TRIP"`
}

type SaveConfigRequest struct {
	BERate         string `json:"be_rate" validate:"required"`
	BELimitType    string `json:"be_limit_type" validate:"required,oneof=YEARLY MONTHLY"`
	BEYearlyLimit  string `json:"be_yearly_limit" validate:"required"`
	BEMonthlyLimit string `json:"be_monthly_limit" validate:"required"`
	BEEnforceMode  string `json:"be_enforce_mode" validate:"required,oneof=BLOCK CAP"`
	NLOwnRate      string `json:"nl_own_rate" validate:"required"`
	NLCompanyRate  string `json:"nl_company_rate" validate:"required"`
	DeadlineDay    int    `json:"deadline_day" validate:"required,min=1,max=28"`
	MaxRidesPerDay int    `json:"max_rides_per_day" validate:"required,min=1"`
}

// =============================================================================
// RESPONSES
// =============================================================================

type EmployeeDTO struct {
	ID           string            `json:"id"`
	Name         string            `json:"name"`
	Country      string            `json:"country"`
	BikeType     string            `json:"bike_type"`
	Trajectories map[string]string `json:"trajectories"`
}

type ConfigDTO struct {
	BERate         string   `json:"be_rate"`
	BELimitType    string   `json:"be_limit_type"`
	BEYearlyLimit  string   `json:"be_yearly_limit"`
	BEMonthlyLimit string   `json:"be_monthly_limit"`
	BEEnforceMode  string   `json:"be_enforce_mode"`
	NLOwnRate      string   `json:"nl_own_rate"`
	NLCompanyRate  string   `json:"nl_company_rate"`
	DeadlineDay    int      `json:"deadline_day"`
	MaxRidesPerDay int      `json:"max_rides_per_day"`
	Warnings       []string `json:"warnings,omitempty"`
}

type RideDTO struct {
	ID            string `json:"id"`
	EmployeeID    string `json:"employee_id"`
	EmployeeName  string `json:"employee_name"`
	Date          string `json:"date"`
	Trajectory    string `json:"trajectory"`
	RideType      string `json:"ride_type"`
	DistanceKM    string `json:"distance_km"`
	Amount        string `json:"amount"`
	RateApplied   string `json:"rate_applied"`
	Processed     bool   `json:"processed"`
	ExportBatchID int    `json:"export_batch_id,omitempty"`
}

type SubmissionResultDTO struct {
	Accepted bool     `json:"accepted"`
	Messages []string `json:"messages"`
	Amount   string   `json:"amount"`
	Ride     *RideDTO `json:"ride,omitempty"`
}

type TotalsDTO struct {
	EmployeeID string `json:"employee_id"`
	Rate       string `json:"rate"`
	MonthTotal string `json:"month_total"`
	YearTotal  string `json:"year_total"`
	Limit      string `json:"limit,omitempty"`
	Remaining  string `json:"remaining,omitempty"`
}

type ExportBatchDTO struct {
	BatchID     int    `json:"batch_id"`
	ExportedAt  string `json:"exported_at"`
	PeriodStart string `json:"period_start"`
	PeriodEnd   string `json:"period_end"`
	RideCount   int    `json:"ride_count"`
	TotalAmount string `json:"total_amount"`
	Filename    string `json:"filename"`
}

type PendingExportDTO struct {
	Rides       []RideDTO `json:"rides"`
	RideCount   int       `json:"ride_count"`
	TotalAmount string    `json:"total_amount"`
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}
