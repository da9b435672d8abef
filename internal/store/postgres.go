package store

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore is the production Store backed by a pgx connection pool.
type PostgresStore struct {
	pool *pgxpool.Pool
}

var _ Store = (*PostgresStore)(nil)

// NewPostgresStore connects to Postgres using the given connection string.
func NewPostgresStore(ctx context.Context, connStr string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to Postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping Postgres: %w", err)
	}
	return &PostgresStore{pool: pool}, nil
}

// CreateSchema ensures the finance tables exist.
func (ps *PostgresStore) CreateSchema(ctx context.Context) error {
	_, err := ps.pool.Exec(ctx, financeSchema)
	if err != nil {
		return fmt.Errorf("failed to execute schema: %w", err)
	}
	return nil
}

func (ps *PostgresStore) FindEmployees(ctx context.Context, filter EmployeeFilter) ([]Employee, error) {
	query := `SELECT employee_id, name, department, position, email, phone FROM employees WHERE 1=1`
	var args []any
	if filter.EmployeeID != "" {
		args = append(args, filter.EmployeeID)
		query += fmt.Sprintf(" AND employee_id = $%d", len(args))
	}
	if filter.Name != "" {
		args = append(args, "%"+filter.Name+"%")
		query += fmt.Sprintf(" AND name LIKE $%d", len(args))
	}
	if filter.Department != "" {
		args = append(args, "%"+filter.Department+"%")
		query += fmt.Sprintf(" AND department LIKE $%d", len(args))
	}
	query += " ORDER BY employee_id"

	rows, err := ps.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var employees []Employee
	for rows.Next() {
		var e Employee
		if err := rows.Scan(&e.EmployeeID, &e.Name, &e.Department, &e.Position, &e.Email, &e.Phone); err != nil {
			return nil, err
		}
		employees = append(employees, e)
	}
	return employees, rows.Err()
}

func (ps *PostgresStore) FindEmployeeByNameOrID(ctx context.Context, ref string) (Employee, error) {
	var e Employee
	err := ps.pool.QueryRow(ctx, `
		SELECT employee_id, name, department, position, email, phone
		FROM employees
		WHERE UPPER(employee_id) = UPPER($1) OR name = $1
		LIMIT 1
	`, ref).Scan(&e.EmployeeID, &e.Name, &e.Department, &e.Position, &e.Email, &e.Phone)
	if errors.Is(err, pgx.ErrNoRows) {
		return Employee{}, ErrNotFound
	}
	if err != nil {
		return Employee{}, err
	}
	return e, nil
}

func (ps *PostgresStore) ListReimbursements(ctx context.Context, filter ReimbursementFilter) ([]Reimbursement, error) {
	query := `
		SELECT r.id, r.reimbursement_id, r.employee_id, COALESCE(e.name, ''),
		       r.amount, r.category, r.description, r.status,
		       r.apply_date, COALESCE(r.approve_date, '')
		FROM reimbursements r
		LEFT JOIN employees e ON e.employee_id = r.employee_id
		WHERE 1=1`
	var args []any
	if filter.EmployeeID != "" {
		args = append(args, filter.EmployeeID)
		query += fmt.Sprintf(" AND r.employee_id = $%d", len(args))
	}
	if filter.ReimbursementID != "" {
		args = append(args, filter.ReimbursementID)
		query += fmt.Sprintf(" AND r.reimbursement_id = $%d", len(args))
	}
	if filter.Status != "" {
		args = append(args, filter.Status)
		query += fmt.Sprintf(" AND r.status = $%d", len(args))
	}
	if filter.StartDate != "" {
		args = append(args, filter.StartDate)
		query += fmt.Sprintf(" AND r.apply_date >= $%d", len(args))
	}
	if filter.EndDate != "" {
		args = append(args, filter.EndDate)
		query += fmt.Sprintf(" AND r.apply_date <= $%d", len(args))
	}
	query += " ORDER BY r.apply_date DESC, r.id DESC"
	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}

	rows, err := ps.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []Reimbursement
	for rows.Next() {
		var r Reimbursement
		if err := rows.Scan(&r.ID, &r.ReimbursementID, &r.EmployeeID, &r.EmployeeName,
			&r.Amount, &r.Category, &r.Description, &r.Status,
			&r.ApplyDate, &r.ApproveDate); err != nil {
			return nil, err
		}
		records = append(records, r)
	}
	return records, rows.Err()
}

func (ps *PostgresStore) SummarizeReimbursements(ctx context.Context, employeeID, startDate, endDate, category string) (Summary, error) {
	query := `
		SELECT r.category, r.status, SUM(r.amount), COUNT(*)
		FROM reimbursements r
		WHERE r.employee_id = $1`
	args := []any{employeeID}
	if startDate != "" {
		args = append(args, startDate)
		query += fmt.Sprintf(" AND r.apply_date >= $%d", len(args))
	}
	if endDate != "" {
		args = append(args, endDate)
		query += fmt.Sprintf(" AND r.apply_date <= $%d", len(args))
	}
	if category != "" {
		args = append(args, category)
		query += fmt.Sprintf(" AND r.category = $%d", len(args))
	}
	query += " GROUP BY r.category, r.status"

	rows, err := ps.pool.Query(ctx, query, args...)
	if err != nil {
		return Summary{}, err
	}
	defer rows.Close()

	summary := Summary{
		EmployeeID: employeeID,
		ByCategory: map[string]float64{},
		ByStatus:   map[string]int{},
	}
	for rows.Next() {
		var cat, status string
		var amount float64
		var count int
		if err := rows.Scan(&cat, &status, &amount, &count); err != nil {
			return Summary{}, err
		}
		summary.TotalAmount += amount
		summary.Count += count
		summary.ByCategory[cat] += amount
		summary.ByStatus[status] += count
	}
	if err := rows.Err(); err != nil {
		return Summary{}, err
	}

	var name string
	err = ps.pool.QueryRow(ctx, `SELECT name FROM employees WHERE employee_id = $1`, employeeID).Scan(&name)
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return Summary{}, err
	}
	summary.EmployeeName = name
	return summary, nil
}

func (ps *PostgresStore) FindOpenWorkOrder(ctx context.Context, assigneeID, title string) (WorkOrder, error) {
	var w WorkOrder
	err := ps.pool.QueryRow(ctx, `
		SELECT work_order_id, title, description, assignee_id, priority, category, status, created_at
		FROM work_orders
		WHERE assignee_id = $1 AND title = $2 AND status IN ('open', 'in_progress')
		ORDER BY created_at DESC
		LIMIT 1
	`, assigneeID, title).Scan(&w.WorkOrderID, &w.Title, &w.Description, &w.AssigneeID, &w.Priority, &w.Category, &w.Status, &w.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return WorkOrder{}, ErrNotFound
	}
	if err != nil {
		return WorkOrder{}, err
	}
	return w, nil
}

func (ps *PostgresStore) CreateWorkOrder(ctx context.Context, order WorkOrder) error {
	_, err := ps.pool.Exec(ctx, `
		INSERT INTO work_orders (work_order_id, title, description, assignee_id, priority, category, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, order.WorkOrderID, order.Title, order.Description, order.AssigneeID, order.Priority, order.Category, order.Status, order.CreatedAt)
	return err
}

func (ps *PostgresStore) UpdateWorkOrder(ctx context.Context, workOrderID, description, priority, category string) error {
	sets := []string{"description = $2"}
	args := []any{workOrderID, description}
	if priority != "" {
		args = append(args, priority)
		sets = append(sets, fmt.Sprintf("priority = $%d", len(args)))
	}
	if category != "" {
		args = append(args, category)
		sets = append(sets, fmt.Sprintf("category = $%d", len(args)))
	}

	tag, err := ps.pool.Exec(ctx,
		fmt.Sprintf(`UPDATE work_orders SET %s WHERE work_order_id = $1`, strings.Join(sets, ", ")),
		args...)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// Close releases the connection pool.
func (ps *PostgresStore) Close() {
	ps.pool.Close()
}

const financeSchema = `
CREATE TABLE IF NOT EXISTS employees (
    employee_id TEXT PRIMARY KEY,
    name TEXT NOT NULL,
    department TEXT NOT NULL DEFAULT '',
    position TEXT NOT NULL DEFAULT '',
    email TEXT NOT NULL DEFAULT '',
    phone TEXT NOT NULL DEFAULT ''
);

CREATE INDEX IF NOT EXISTS employees_name_idx ON employees (name);

CREATE TABLE IF NOT EXISTS reimbursements (
    id BIGSERIAL PRIMARY KEY,
    reimbursement_id TEXT NOT NULL UNIQUE,
    employee_id TEXT NOT NULL REFERENCES employees(employee_id),
    amount NUMERIC(12,2) NOT NULL,
    category TEXT NOT NULL DEFAULT '',
    description TEXT NOT NULL DEFAULT '',
    status TEXT NOT NULL DEFAULT 'pending',
    apply_date TEXT NOT NULL,
    approve_date TEXT
);

CREATE INDEX IF NOT EXISTS reimbursements_employee_idx ON reimbursements (employee_id, apply_date);

CREATE TABLE IF NOT EXISTS work_orders (
    work_order_id TEXT PRIMARY KEY,
    title TEXT NOT NULL,
    description TEXT NOT NULL DEFAULT '',
    assignee_id TEXT NOT NULL REFERENCES employees(employee_id),
    priority TEXT NOT NULL DEFAULT 'medium',
    category TEXT NOT NULL DEFAULT '',
    status TEXT NOT NULL DEFAULT 'open',
    created_at TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS work_orders_assignee_idx ON work_orders (assignee_id, title, status);
`
