package entity

// Actor is the verified caller identity handed over by the identity oracle
type Actor struct {
	UserID     string `json:"userId"`
	EmployeeID string `json:"employeeId"`
	Name       string `json:"name"`
	Role       Role   `json:"role"`
}

// ID returns the identifier recorded in the claim history
func (a Actor) ID() string {
	if a.EmployeeID != "" {
		return a.EmployeeID
	}
	return a.UserID
}
