// Package store provides access to the finance data backing the agent's
// tools: employees, reimbursements, and work orders.
package store

import (
	"context"
	"errors"
)

// ErrNotFound is returned when a lookup matches no rows.
var ErrNotFound = errors.New("record not found")

// Employee is one row of the employee directory.
type Employee struct {
	EmployeeID string
	Name       string
	Department string
	Position   string
	Email      string
	Phone      string
}

// Reimbursement is one reimbursement claim.
type Reimbursement struct {
	ID              int64
	ReimbursementID string
	EmployeeID      string
	EmployeeName    string
	Amount          float64
	Category        string
	Description     string
	Status          string
	ApplyDate       string
	ApproveDate     string
}

// Summary aggregates an employee's reimbursements over a date range.
type Summary struct {
	EmployeeID   string
	EmployeeName string
	TotalAmount  float64
	Count        int
	ByCategory   map[string]float64
	ByStatus     map[string]int
}

// WorkOrder is one work-order row. Status is one of open, in_progress,
// closed.
type WorkOrder struct {
	WorkOrderID string
	Title       string
	Description string
	AssigneeID  string
	Priority    string
	Category    string
	Status      string
	CreatedAt   string
}

// EmployeeFilter narrows an employee search. Name matches as a substring;
// the other fields match exactly.
type EmployeeFilter struct {
	EmployeeID string
	Name       string
	Department string
}

// ReimbursementFilter narrows a reimbursement listing.
type ReimbursementFilter struct {
	EmployeeID      string
	ReimbursementID string
	StartDate       string
	EndDate         string
	Status          string
	Limit           int
}

// Store is the finance data access contract used by the agent's tools.
type Store interface {
	// FindEmployees returns employees matching the filter.
	FindEmployees(ctx context.Context, filter EmployeeFilter) ([]Employee, error)

	// FindEmployeeByNameOrID resolves an assignee reference that may be an
	// employee ID or an exact name. Returns ErrNotFound when neither
	// matches.
	FindEmployeeByNameOrID(ctx context.Context, ref string) (Employee, error)

	// ListReimbursements returns claims matching the filter, newest first.
	ListReimbursements(ctx context.Context, filter ReimbursementFilter) ([]Reimbursement, error)

	// SummarizeReimbursements aggregates an employee's claims in a date
	// range, optionally limited to one category.
	SummarizeReimbursements(ctx context.Context, employeeID, startDate, endDate, category string) (Summary, error)

	// FindOpenWorkOrder returns the newest open or in-progress work order
	// with the given assignee and title, or ErrNotFound.
	FindOpenWorkOrder(ctx context.Context, assigneeID, title string) (WorkOrder, error)

	// CreateWorkOrder inserts a new work order.
	CreateWorkOrder(ctx context.Context, order WorkOrder) error

	// UpdateWorkOrder rewrites the mutable fields of an existing order.
	UpdateWorkOrder(ctx context.Context, workOrderID, description, priority, category string) error

	// Close releases the underlying connections.
	Close()
}
