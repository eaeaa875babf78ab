/*
Package payroll renders export batches into the payroll file format.

PURPOSE:
  One semicolon-delimited row per exported ride, with a derived fiscal
  status per row. The payroll system consumes this file; the engine only
  produces it.

FISCAL STATUS:
  A ride is tagged "taxable" when it belongs to a Dutch employee on a
  company bike - regardless of the configured company-bike rate, even
  when the reimbursed amount is zero. The tag reflects the bike policy,
  not the paid amount. Everything else is "non-taxable".
*/
package payroll

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"

	"github.com/warp/commute-engine/engine"
)

const (
	StatusTaxable    = "taxable"
	StatusNonTaxable = "non-taxable"
)

var header = []string{
	"date", "employee_id", "employee_name", "trajectory", "ride_type",
	"distance_km", "amount", "rate_applied", "fiscal_status",
}

// FiscalStatus derives the tax tag for a ride from its bike-policy
// snapshot. Unconditional for NL company bikes, by bike policy rather
// than by amount.
func FiscalStatus(country engine.Country, bike engine.BikeType) string {
	if country == engine.CountryNL && bike == engine.BikeCompany {
		return StatusTaxable
	}
	return StatusNonTaxable
}

// Filename encodes the batch id and export timestamp.
func Filename(b engine.ExportBatch) string {
	return fmt.Sprintf("payroll_batch_%d_%s.csv", b.BatchID, b.ExportedAt.Format("20060102_150405"))
}

// Write renders the rides of one batch as semicolon-delimited rows.
func Write(w io.Writer, rides []engine.Ride) error {
	cw := csv.NewWriter(w)
	cw.Comma = ';'

	if err := cw.Write(header); err != nil {
		return err
	}
	for _, r := range rides {
		row := []string{
			r.Date.Format("02-01-2006"),
			string(r.EmployeeID),
			r.EmployeeName,
			r.Trajectory,
			string(r.RideType),
			r.DistanceKM.String(),
			r.Amount.StringFixed(2),
			r.RateApplied.StringFixed(2),
			FiscalStatus(r.Country, r.BikeType),
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// Render returns the complete file contents for a batch.
func Render(rides []engine.Ride) ([]byte, error) {
	var buf bytes.Buffer
	if err := Write(&buf, rides); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
