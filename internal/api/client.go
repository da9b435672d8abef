// Package api exposes the reimbursement query service: an HTTP server over
// the finance store and clients the agent's tools call through.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net/http"
	"net/url"
	"time"

	"github.com/finagent-ai/finagent/internal/store"
)

// StatusRequest filters a reimbursement status query.
type StatusRequest struct {
	EmployeeID      string
	ReimbursementID string
	StartDate       string
	EndDate         string
}

// StatusRecord is one claim as returned by the status endpoint.
type StatusRecord struct {
	ReimbursementID string  `json:"reimbursement_id"`
	EmployeeID      string  `json:"employee_id"`
	EmployeeName    string  `json:"employee_name"`
	Amount          float64 `json:"amount"`
	Status          string  `json:"status"`
	ApplyDate       string  `json:"apply_date"`
	Category        string  `json:"category"`
}

// StatusResponse is the status endpoint payload.
type StatusResponse struct {
	Success     bool           `json:"success"`
	Data        []StatusRecord `json:"data"`
	TotalAmount float64        `json:"total_amount"`
	Message     string         `json:"message"`
}

// SummaryData is the summary endpoint payload body.
type SummaryData struct {
	EmployeeID   string             `json:"employee_id"`
	EmployeeName string             `json:"employee_name"`
	TotalAmount  float64            `json:"total_amount"`
	Count        int                `json:"count"`
	ByCategory   map[string]float64 `json:"by_category"`
	ByStatus     map[string]int     `json:"by_status"`
}

// SummaryResponse is the summary endpoint payload.
type SummaryResponse struct {
	Success bool        `json:"success"`
	Data    SummaryData `json:"data"`
	Message string      `json:"message"`
}

// ReimbursementClient queries the reimbursement service. The agent's tools
// go through this interface so they work both in-process and against a
// remote deployment.
type ReimbursementClient interface {
	Status(ctx context.Context, req StatusRequest) (StatusResponse, error)
	Summary(ctx context.Context, employeeID, startDate, endDate, category string) (SummaryResponse, error)
}

// LocalClient serves reimbursement queries directly from the store.
type LocalClient struct {
	store store.Store
}

var _ ReimbursementClient = (*LocalClient)(nil)

// NewLocalClient wraps a store as an in-process ReimbursementClient.
func NewLocalClient(st store.Store) *LocalClient {
	return &LocalClient{store: st}
}

func (c *LocalClient) Status(ctx context.Context, req StatusRequest) (StatusResponse, error) {
	if req.EmployeeID == "" {
		return StatusResponse{Message: "缺少必需参数: employee_id"}, nil
	}

	rows, err := c.store.ListReimbursements(ctx, store.ReimbursementFilter{
		EmployeeID:      req.EmployeeID,
		ReimbursementID: req.ReimbursementID,
		StartDate:       req.StartDate,
		EndDate:         req.EndDate,
	})
	if err != nil {
		return StatusResponse{}, err
	}

	resp := StatusResponse{Success: true, Data: []StatusRecord{}}
	for _, r := range rows {
		resp.Data = append(resp.Data, StatusRecord{
			ReimbursementID: r.ReimbursementID,
			EmployeeID:      r.EmployeeID,
			EmployeeName:    r.EmployeeName,
			Amount:          r.Amount,
			Status:          r.Status,
			ApplyDate:       r.ApplyDate,
			Category:        r.Category,
		})
		resp.TotalAmount += r.Amount
	}
	resp.TotalAmount = round2(resp.TotalAmount)
	resp.Message = fmt.Sprintf("查询成功，找到 %d 条记录", len(resp.Data))
	return resp, nil
}

func (c *LocalClient) Summary(ctx context.Context, employeeID, startDate, endDate, category string) (SummaryResponse, error) {
	if employeeID == "" || startDate == "" || endDate == "" {
		return SummaryResponse{Message: "缺少必需参数: employee_id, start_date, end_date"}, nil
	}

	employees, err := c.store.FindEmployees(ctx, store.EmployeeFilter{EmployeeID: employeeID})
	if err != nil {
		return SummaryResponse{}, err
	}
	if len(employees) == 0 {
		return SummaryResponse{Message: fmt.Sprintf("员工 %s 不存在", employeeID)}, nil
	}

	summary, err := c.store.SummarizeReimbursements(ctx, employeeID, startDate, endDate, category)
	if err != nil {
		return SummaryResponse{}, err
	}

	byCategory := make(map[string]float64, len(summary.ByCategory))
	for cat, amount := range summary.ByCategory {
		byCategory[cat] = round2(amount)
	}
	return SummaryResponse{
		Success: true,
		Data: SummaryData{
			EmployeeID:   employeeID,
			EmployeeName: employees[0].Name,
			TotalAmount:  round2(summary.TotalAmount),
			Count:        summary.Count,
			ByCategory:   byCategory,
			ByStatus:     summary.ByStatus,
		},
		Message: "统计查询成功",
	}, nil
}

// HTTPClient talks to a remote reimbursement service.
type HTTPClient struct {
	baseURL string
	client  *http.Client
}

var _ ReimbursementClient = (*HTTPClient)(nil)

// NewHTTPClient builds a client for the service at baseURL.
func NewHTTPClient(baseURL string) *HTTPClient {
	return &HTTPClient{
		baseURL: baseURL,
		client:  &http.Client{Timeout: 10 * time.Second},
	}
}

func (c *HTTPClient) Status(ctx context.Context, req StatusRequest) (StatusResponse, error) {
	params := url.Values{}
	params.Set("employee_id", req.EmployeeID)
	if req.ReimbursementID != "" {
		params.Set("reimbursement_id", req.ReimbursementID)
	}
	if req.StartDate != "" {
		params.Set("start_date", req.StartDate)
	}
	if req.EndDate != "" {
		params.Set("end_date", req.EndDate)
	}

	var resp StatusResponse
	if err := c.getJSON(ctx, "/api/reimbursement/status", params, &resp); err != nil {
		return StatusResponse{}, err
	}
	return resp, nil
}

func (c *HTTPClient) Summary(ctx context.Context, employeeID, startDate, endDate, category string) (SummaryResponse, error) {
	params := url.Values{}
	params.Set("employee_id", employeeID)
	params.Set("start_date", startDate)
	params.Set("end_date", endDate)
	if category != "" {
		params.Set("category", category)
	}

	var resp SummaryResponse
	if err := c.getJSON(ctx, "/api/reimbursement/summary", params, &resp); err != nil {
		return SummaryResponse{}, err
	}
	return resp, nil
}

// getJSON decodes the body on every status code: the service carries its
// error text in the same JSON envelope.
func (c *HTTPClient) getJSON(ctx context.Context, path string, params url.Values, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path+"?"+params.Encode(), nil)
	if err != nil {
		return err
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("HTTP请求失败: %w", err)
	}
	defer resp.Body.Close()

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		if resp.StatusCode >= 400 {
			return fmt.Errorf("HTTP请求失败: 状态码 %d", resp.StatusCode)
		}
		return errors.New("HTTP请求失败: 响应格式错误")
	}
	return nil
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
