package domain

import "errors"

// CostCenter represents an accounting dimension synchronized from the
// external accounting system. Toll transactions are attributed to a cost
// center by exact match of the license plate against Name; the relation
// is resolved at migration time, never stored.
type CostCenter struct {
	ID     int
	Code   string
	Name   string
	Active bool
}

// Validate ensures the cost center adheres to domain rules
func (c *CostCenter) Validate() error {
	if c.ID == 0 {
		return errors.New("cost center must have an external id")
	}
	if c.Name == "" {
		return errors.New("cost center name cannot be empty")
	}
	return nil
}
