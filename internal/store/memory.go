package store

import (
	"context"
	"sort"
	"strings"
	"sync"
)

// MemoryStore is an in-memory Store used by the dev CLI and tests. It
// ships with a small seeded dataset so the agent is usable without a
// database.
type MemoryStore struct {
	mu             sync.RWMutex
	employees      []Employee
	reimbursements []Reimbursement
	workOrders     []WorkOrder
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore returns an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

// NewSeededMemoryStore returns a store preloaded with demo employees and
// reimbursements.
func NewSeededMemoryStore() *MemoryStore {
	s := NewMemoryStore()
	s.employees = []Employee{
		{EmployeeID: "E001", Name: "张三", Department: "技术部", Position: "高级工程师", Email: "zhangsan@example.com", Phone: "13800000001"},
		{EmployeeID: "E002", Name: "李四", Department: "财务部", Position: "会计", Email: "lisi@example.com", Phone: "13800000002"},
		{EmployeeID: "E003", Name: "王五", Department: "市场部", Position: "市场经理", Email: "wangwu@example.com", Phone: "13800000003"},
		{EmployeeID: "E004", Name: "赵六", Department: "人事部", Position: "人事专员", Email: "zhaoliu@example.com", Phone: "13800000004"},
	}
	s.reimbursements = []Reimbursement{
		{ID: 1, ReimbursementID: "R20250301", EmployeeID: "E001", Amount: 1250.50, Category: "差旅费", Description: "北京出差高铁及住宿", Status: "approved", ApplyDate: "2025-03-05", ApproveDate: "2025-03-08"},
		{ID: 2, ReimbursementID: "R20250302", EmployeeID: "E001", Amount: 380.00, Category: "餐饮费", Description: "客户招待", Status: "pending", ApplyDate: "2025-03-12"},
		{ID: 3, ReimbursementID: "R20250303", EmployeeID: "E002", Amount: 99.00, Category: "办公用品", Description: "打印纸与墨盒", Status: "paid", ApplyDate: "2025-02-20", ApproveDate: "2025-02-22"},
		{ID: 4, ReimbursementID: "R20250304", EmployeeID: "E003", Amount: 2600.00, Category: "差旅费", Description: "上海展会差旅", Status: "rejected", ApplyDate: "2025-01-15", ApproveDate: "2025-01-18"},
	}
	return s
}

// AddEmployee appends an employee row. Test helper.
func (s *MemoryStore) AddEmployee(e Employee) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.employees = append(s.employees, e)
}

// AddReimbursement appends a reimbursement row. Test helper.
func (s *MemoryStore) AddReimbursement(r Reimbursement) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reimbursements = append(s.reimbursements, r)
}

func (s *MemoryStore) FindEmployees(ctx context.Context, filter EmployeeFilter) ([]Employee, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	var matched []Employee
	for _, e := range s.employees {
		if filter.EmployeeID != "" && e.EmployeeID != filter.EmployeeID {
			continue
		}
		if filter.Name != "" && !strings.Contains(e.Name, filter.Name) {
			continue
		}
		if filter.Department != "" && !strings.Contains(e.Department, filter.Department) {
			continue
		}
		matched = append(matched, e)
	}
	return matched, nil
}

func (s *MemoryStore) FindEmployeeByNameOrID(ctx context.Context, ref string) (Employee, error) {
	if err := ctx.Err(); err != nil {
		return Employee{}, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, e := range s.employees {
		if strings.EqualFold(e.EmployeeID, ref) {
			return e, nil
		}
	}
	for _, e := range s.employees {
		if e.Name == ref {
			return e, nil
		}
	}
	return Employee{}, ErrNotFound
}

func (s *MemoryStore) ListReimbursements(ctx context.Context, filter ReimbursementFilter) ([]Reimbursement, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	var matched []Reimbursement
	for _, r := range s.reimbursements {
		if filter.EmployeeID != "" && r.EmployeeID != filter.EmployeeID {
			continue
		}
		if filter.ReimbursementID != "" && r.ReimbursementID != filter.ReimbursementID {
			continue
		}
		if filter.Status != "" && r.Status != filter.Status {
			continue
		}
		if filter.StartDate != "" && r.ApplyDate < filter.StartDate {
			continue
		}
		if filter.EndDate != "" && r.ApplyDate > filter.EndDate {
			continue
		}
		r.EmployeeName = s.employeeNameLocked(r.EmployeeID)
		matched = append(matched, r)
	}
	sort.Slice(matched, func(i, j int) bool {
		if matched[i].ApplyDate != matched[j].ApplyDate {
			return matched[i].ApplyDate > matched[j].ApplyDate
		}
		return matched[i].ID > matched[j].ID
	})
	if filter.Limit > 0 && len(matched) > filter.Limit {
		matched = matched[:filter.Limit]
	}
	return matched, nil
}

func (s *MemoryStore) SummarizeReimbursements(ctx context.Context, employeeID, startDate, endDate, category string) (Summary, error) {
	rows, err := s.ListReimbursements(ctx, ReimbursementFilter{
		EmployeeID: employeeID,
		StartDate:  startDate,
		EndDate:    endDate,
	})
	if err != nil {
		return Summary{}, err
	}

	summary := Summary{
		EmployeeID: employeeID,
		ByCategory: map[string]float64{},
		ByStatus:   map[string]int{},
	}
	s.mu.RLock()
	summary.EmployeeName = s.employeeNameLocked(employeeID)
	s.mu.RUnlock()

	for _, r := range rows {
		if category != "" && r.Category != category {
			continue
		}
		summary.TotalAmount += r.Amount
		summary.Count++
		summary.ByCategory[r.Category] += r.Amount
		summary.ByStatus[r.Status]++
	}
	return summary, nil
}

func (s *MemoryStore) FindOpenWorkOrder(ctx context.Context, assigneeID, title string) (WorkOrder, error) {
	if err := ctx.Err(); err != nil {
		return WorkOrder{}, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	var newest WorkOrder
	found := false
	for _, w := range s.workOrders {
		if w.AssigneeID != assigneeID || w.Title != title {
			continue
		}
		if w.Status != "open" && w.Status != "in_progress" {
			continue
		}
		if !found || w.CreatedAt > newest.CreatedAt {
			newest = w
			found = true
		}
	}
	if !found {
		return WorkOrder{}, ErrNotFound
	}
	return newest, nil
}

func (s *MemoryStore) CreateWorkOrder(ctx context.Context, order WorkOrder) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.workOrders = append(s.workOrders, order)
	return nil
}

func (s *MemoryStore) UpdateWorkOrder(ctx context.Context, workOrderID, description, priority, category string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.workOrders {
		if s.workOrders[i].WorkOrderID != workOrderID {
			continue
		}
		s.workOrders[i].Description = description
		if priority != "" {
			s.workOrders[i].Priority = priority
		}
		if category != "" {
			s.workOrders[i].Category = category
		}
		return nil
	}
	return ErrNotFound
}

// WorkOrders returns a copy of all work orders. Test helper.
func (s *MemoryStore) WorkOrders() []WorkOrder {
	s.mu.RLock()
	defer s.mu.RUnlock()
	orders := make([]WorkOrder, len(s.workOrders))
	copy(orders, s.workOrders)
	return orders
}

func (s *MemoryStore) Close() {}

// employeeNameLocked resolves an ID to a name. Caller holds s.mu.
func (s *MemoryStore) employeeNameLocked(employeeID string) string {
	for _, e := range s.employees {
		if e.EmployeeID == employeeID {
			return e.Name
		}
	}
	return ""
}
