package workflow

import (
	"fmt"
	"strings"

	"github.com/garyjia/travel-claims/internal/domain/apperr"
	"github.com/garyjia/travel-claims/internal/domain/entity"
)

// validateSubmission trims the free-text fields of a new claim in place and
// reports every missing or malformed field at once
func validateSubmission(c *entity.Claim) error {
	verr := &apperr.ValidationError{}

	required := []struct {
		field string
		value *string
	}{
		{"employeeName", &c.EmployeeName},
		{"employeeId", &c.EmployeeID},
		{"department", &c.Department},
		{"company", &c.Company},
		{"travelFrom", &c.TravelFrom},
		{"travelTo", &c.TravelTo},
		{"purpose", &c.Purpose},
	}
	for _, r := range required {
		*r.value = strings.TrimSpace(*r.value)
		if *r.value == "" {
			verr.Add(r.field, "is required")
		}
	}

	if c.TravelDate.IsZero() {
		verr.Add("travelDate", "is required")
	}
	if c.ReturnDate.IsZero() {
		verr.Add("returnDate", "is required")
	}
	if !c.TravelDate.IsZero() && !c.ReturnDate.IsZero() && c.ReturnDate.Before(c.TravelDate) {
		verr.Add("returnDate", "must not be before travelDate")
	}

	if len(c.Expenses) == 0 {
		verr.Add("expenses", "at least one expense is required")
	}
	for i := range c.Expenses {
		exp := &c.Expenses[i]
		exp.Type = strings.TrimSpace(exp.Type)
		exp.Description = strings.TrimSpace(exp.Description)
		if exp.Type == "" {
			verr.Add(fmt.Sprintf("expenses[%d].type", i), "is required")
		}
		if !exp.Amount.IsPositive() {
			verr.Add(fmt.Sprintf("expenses[%d].amount", i), "must be a positive amount")
		}
	}

	return verr.OrNil()
}
