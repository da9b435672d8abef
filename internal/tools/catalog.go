package tools

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/finagent-ai/finagent"
	"github.com/finagent-ai/finagent/internal/api"
	"github.com/finagent-ai/finagent/internal/mail"
	"github.com/finagent-ai/finagent/internal/store"
)

// statusNames translates claim statuses for user-facing output.
var statusNames = map[string]string{
	"pending":  "待审批",
	"approved": "已通过",
	"rejected": "已拒绝",
	"paid":     "已支付",
}

// priorityNames translates work-order priorities.
var priorityNames = map[string]string{
	"low":    "低",
	"medium": "中",
	"high":   "高",
	"urgent": "紧急",
}

// DefaultDependencies is the tool dependency graph: every tool that takes
// an employee identity may need the lookup to run first.
func DefaultDependencies() map[string][]string {
	return map[string][]string{
		"query_reimbursement_summary": {"query_employee_info"},
		"query_reimbursement_status":  {"query_employee_info"},
		"query_reimbursement_records": {"query_employee_info"},
		"create_work_order":           {"query_employee_info"},
		"send_email":                  {"query_employee_info"},
	}
}

// DefaultPriorities orders tools for the planner: identity first, rules
// second, data queries third, then side effects, email last.
func DefaultPriorities() map[string]int {
	return map[string]int{
		"query_employee_info":         1,
		"rag_search":                  2,
		"query_reimbursement_summary": 3,
		"query_reimbursement_status":  3,
		"query_reimbursement_records": 3,
		"create_work_order":           4,
		"send_email":                  5,
	}
}

// DependenciesFor restricts the default dependency graph to the tools
// present in catalog. An omitted tool (disabled email, no retriever) must
// not leave a dangling graph entry, which registry construction rejects.
func DependenciesFor(catalog []finagent.Tool) map[string][]string {
	registered := toolNames(catalog)
	deps := make(map[string][]string)
	for name, depList := range DefaultDependencies() {
		if !registered[name] {
			continue
		}
		var kept []string
		for _, dep := range depList {
			if registered[dep] {
				kept = append(kept, dep)
			}
		}
		if len(kept) > 0 {
			deps[name] = kept
		}
	}
	return deps
}

// PrioritiesFor restricts the default priorities to the tools present in
// catalog.
func PrioritiesFor(catalog []finagent.Tool) map[string]int {
	registered := toolNames(catalog)
	priorities := make(map[string]int)
	for name, priority := range DefaultPriorities() {
		if registered[name] {
			priorities[name] = priority
		}
	}
	return priorities
}

func toolNames(catalog []finagent.Tool) map[string]bool {
	names := make(map[string]bool, len(catalog))
	for _, tool := range catalog {
		names[tool.Name()] = true
	}
	return names
}

// Catalog builds the full tool set. Any dependency may be nil; the
// corresponding tools are then omitted.
func Catalog(retriever finagent.Retriever, st store.Store, reimb api.ReimbursementClient, sender mail.Sender) []finagent.Tool {
	var catalog []finagent.Tool
	if retriever != nil {
		catalog = append(catalog, NewRAGSearchTool(retriever))
	}
	if st != nil {
		catalog = append(catalog,
			NewEmployeeInfoTool(st),
			NewReimbursementRecordsTool(st),
			NewWorkOrderTool(st),
		)
	}
	if reimb != nil {
		catalog = append(catalog,
			NewReimbursementStatusTool(reimb),
			NewReimbursementSummaryTool(reimb),
		)
	}
	if sender != nil {
		catalog = append(catalog, NewSendEmailTool(sender))
	}
	return catalog
}

// NewRAGSearchTool retrieves policy text from the knowledge base.
func NewRAGSearchTool(retriever finagent.Retriever) finagent.Tool {
	return NewFuncTool("rag_search",
		func(ctx context.Context, args map[string]any) (*finagent.ToolResult, error) {
			if !retriever.Ready() {
				return nil, finagent.NewIndexNotReadyError()
			}
			query := stringArg(args, "query")

			sources, err := retriever.Retrieve(ctx, query, 3)
			if err != nil {
				return nil, finagent.NewToolExecutionError("rag_search", err)
			}
			if len(sources) == 0 {
				return &finagent.ToolResult{
					Success: true,
					Data:    map[string]any{"query": query, "count": 0},
					Message: "未找到相关制度文档",
				}, nil
			}

			var b strings.Builder
			b.WriteString("检索到以下制度信息：\n\n")
			for i, source := range sources {
				docName := source.Metadata["file_name"]
				if docName == "" {
					docName = "未知文档"
				}
				fmt.Fprintf(&b, "%d. 【%s】\n", i+1, docName)
				fmt.Fprintf(&b, "   内容：%s...\n", truncateRunes(source.Text, 300))
				fmt.Fprintf(&b, "   相关度：%.2f\n\n", source.Score)
			}
			return &finagent.ToolResult{
				Success: true,
				Data:    map[string]any{"query": query, "count": len(sources)},
				Message: b.String(),
			}, nil
		},
		WithCategory(finagent.CategoryRAG),
		WithDescription("检索企业财务知识库，查询报销政策、财务制度、流程规定等。输入应该是关于制度、规则的问题。"),
		WithParameters(map[string]string{
			"query": "关于制度、规则的问题（必需）",
		}),
		WithValidator(requireArgs("rag_search", "query")),
	)
}

// NewEmployeeInfoTool looks employees up by ID, name, or department.
func NewEmployeeInfoTool(st store.Store) finagent.Tool {
	return NewFuncTool("query_employee_info",
		func(ctx context.Context, args map[string]any) (*finagent.ToolResult, error) {
			filter := store.EmployeeFilter{
				EmployeeID: stringArg(args, "employee_id"),
				Name:       stringArg(args, "name"),
				Department: stringArg(args, "department"),
			}

			employees, err := st.FindEmployees(ctx, filter)
			if err != nil {
				return nil, finagent.NewToolExecutionError("query_employee_info", err)
			}
			if len(employees) == 0 {
				return nil, finagent.NewDataNotFoundError("query_employee_info", "未找到匹配的员工信息")
			}

			var b strings.Builder
			fmt.Fprintf(&b, "找到 %d 条员工记录：\n\n", len(employees))
			for _, e := range employees {
				fmt.Fprintf(&b, "工号：%s\n", e.EmployeeID)
				fmt.Fprintf(&b, "姓名：%s\n", e.Name)
				fmt.Fprintf(&b, "部门：%s\n", e.Department)
				fmt.Fprintf(&b, "职位：%s\n", e.Position)
				fmt.Fprintf(&b, "邮箱：%s\n", e.Email)
				fmt.Fprintf(&b, "电话：%s\n\n", e.Phone)
			}

			// The first match feeds identity into the run context.
			first := employees[0]
			return &finagent.ToolResult{
				Success: true,
				Data: map[string]any{
					"employee_id":   first.EmployeeID,
					"employee_name": first.Name,
					"department":    first.Department,
					"email":         first.Email,
					"count":         len(employees),
				},
				Message: b.String(),
			}, nil
		},
		WithCategory(finagent.CategoryDB),
		WithDescription("从员工表中查询员工的基本信息，包括姓名、部门、职位等。输入参数：employee_id（可选）、name（可选）、department（可选）。"),
		WithParameters(map[string]string{
			"employee_id": "员工工号（可选），例如：E001",
			"name":        "员工姓名（可选），用于模糊查询",
			"department":  "部门名称（可选）",
		}),
		WithValidator(func(args map[string]any) error {
			if stringArg(args, "employee_id") == "" && stringArg(args, "name") == "" && stringArg(args, "department") == "" {
				return finagent.NewToolArgumentError("query_employee_info", "缺少查询条件: employee_id、name 或 department")
			}
			return nil
		}),
	)
}

// NewReimbursementStatusTool queries claim status through the
// reimbursement service.
func NewReimbursementStatusTool(client api.ReimbursementClient) finagent.Tool {
	return NewFuncTool("query_reimbursement_status",
		func(ctx context.Context, args map[string]any) (*finagent.ToolResult, error) {
			employeeID := stringArg(args, "employee_id")
			statusFilter := strings.ToLower(stringArg(args, "status"))

			resp, err := client.Status(ctx, api.StatusRequest{
				EmployeeID:      employeeID,
				ReimbursementID: stringArg(args, "reimbursement_id"),
				StartDate:       stringArg(args, "start_date"),
				EndDate:         stringArg(args, "end_date"),
			})
			if err != nil {
				return nil, finagent.NewToolExecutionError("query_reimbursement_status", err)
			}
			if !resp.Success {
				return nil, finagent.NewToolExecutionError("query_reimbursement_status",
					fmt.Errorf("查询失败: %s", orText(resp.Message, "未知错误")))
			}

			records := resp.Data
			if statusFilter != "" {
				filtered := records[:0:0]
				for _, r := range records {
					if strings.ToLower(r.Status) == statusFilter {
						filtered = append(filtered, r)
					}
				}
				records = filtered
			}
			if len(records) == 0 {
				if statusFilter != "" {
					return nil, finagent.NewDataNotFoundError("query_reimbursement_status",
						fmt.Sprintf("未找到员工 %s 状态为 %s 的报销记录", employeeID, statusFilter))
				}
				return nil, finagent.NewDataNotFoundError("query_reimbursement_status",
					fmt.Sprintf("未找到员工 %s 的报销记录", employeeID))
			}

			employeeName := records[0].EmployeeName
			if employeeName == "" {
				employeeName = employeeID
			}
			var b strings.Builder
			fmt.Fprintf(&b, "员工 %s 的报销记录（共 %d 条，总计 %s 元）：\n\n",
				employeeName, len(records), formatAmount(resp.TotalAmount))
			for _, r := range records {
				fmt.Fprintf(&b, "• 报销单号：%s\n", r.ReimbursementID)
				fmt.Fprintf(&b, "  类别：%s\n", r.Category)
				fmt.Fprintf(&b, "  金额：%s 元\n", formatAmount(r.Amount))
				fmt.Fprintf(&b, "  状态：%s\n", statusName(r.Status))
				fmt.Fprintf(&b, "  申请日期：%s\n\n", r.ApplyDate)
			}
			return &finagent.ToolResult{
				Success: true,
				Data: map[string]any{
					"employee_id":  employeeID,
					"count":        len(records),
					"total_amount": resp.TotalAmount,
				},
				Message: b.String(),
			}, nil
		},
		WithCategory(finagent.CategoryAPI),
		WithDescription("查询指定员工的报销申请状态。输入参数：employee_id（必需）、start_date（可选）、end_date（可选）、status（可选）。"),
		WithParameters(map[string]string{
			"employee_id":      "员工工号（必需），例如：E001",
			"reimbursement_id": "报销单号（可选）",
			"start_date":       "开始日期（可选），格式：YYYY-MM-DD",
			"end_date":         "结束日期（可选），格式：YYYY-MM-DD",
			"status":           "状态过滤（可选）：pending/approved/rejected/paid",
		}),
		WithValidator(requireArgs("query_reimbursement_status", "employee_id")),
	)
}

// NewReimbursementSummaryTool aggregates claim amounts over a date range.
func NewReimbursementSummaryTool(client api.ReimbursementClient) finagent.Tool {
	return NewFuncTool("query_reimbursement_summary",
		func(ctx context.Context, args map[string]any) (*finagent.ToolResult, error) {
			employeeID := stringArg(args, "employee_id")
			startDate := stringArg(args, "start_date")
			endDate := stringArg(args, "end_date")

			resp, err := client.Summary(ctx, employeeID, startDate, endDate, stringArg(args, "category"))
			if err != nil {
				return nil, finagent.NewToolExecutionError("query_reimbursement_summary", err)
			}
			if !resp.Success {
				if strings.Contains(resp.Message, "不存在") {
					return nil, finagent.NewDataNotFoundError("query_reimbursement_summary", resp.Message)
				}
				return nil, finagent.NewToolExecutionError("query_reimbursement_summary",
					fmt.Errorf("查询失败: %s", orText(resp.Message, "未知错误")))
			}

			data := resp.Data
			employeeName := data.EmployeeName
			if employeeName == "" {
				employeeName = employeeID
			}
			var b strings.Builder
			fmt.Fprintf(&b, "员工 %s (%s) 在 %s 至 %s 期间的报销统计：\n\n",
				employeeName, employeeID, startDate, endDate)
			fmt.Fprintf(&b, "总金额：%s 元\n", formatAmount(data.TotalAmount))
			fmt.Fprintf(&b, "报销单数：%d 条\n\n", data.Count)

			if len(data.ByCategory) > 0 {
				b.WriteString("按类别统计：\n")
				for _, cat := range sortedKeys(data.ByCategory) {
					fmt.Fprintf(&b, "  • %s：%s 元\n", cat, formatAmount(data.ByCategory[cat]))
				}
				b.WriteString("\n")
			}
			if len(data.ByStatus) > 0 {
				b.WriteString("按状态统计：\n")
				for _, status := range sortedKeys(data.ByStatus) {
					fmt.Fprintf(&b, "  • %s：%d 条\n", statusName(status), data.ByStatus[status])
				}
			}
			return &finagent.ToolResult{
				Success: true,
				Data: map[string]any{
					"employee_id":  employeeID,
					"total_amount": data.TotalAmount,
					"count":        data.Count,
				},
				Message: b.String(),
			}, nil
		},
		WithCategory(finagent.CategoryAPI),
		WithDescription("查询指定员工在指定时间范围内的报销总金额统计。输入参数：employee_id（必需）、start_date（必需）、end_date（必需）、category（可选）。"),
		WithParameters(map[string]string{
			"employee_id": "员工工号（必需），例如：E001",
			"start_date":  "开始日期（必需），格式：YYYY-MM-DD",
			"end_date":    "结束日期（必需），格式：YYYY-MM-DD",
			"category":    "报销类别（可选），例如：差旅费、餐饮费",
		}),
		WithValidator(requireArgs("query_reimbursement_summary", "employee_id", "start_date", "end_date")),
	)
}

// NewReimbursementRecordsTool lists full claim records from the store.
func NewReimbursementRecordsTool(st store.Store) finagent.Tool {
	return NewFuncTool("query_reimbursement_records",
		func(ctx context.Context, args map[string]any) (*finagent.ToolResult, error) {
			employeeID := stringArg(args, "employee_id")
			limit := intArg(args, "limit", 100)

			rows, err := st.ListReimbursements(ctx, store.ReimbursementFilter{
				EmployeeID: employeeID,
				StartDate:  stringArg(args, "start_date"),
				EndDate:    stringArg(args, "end_date"),
				Status:     stringArg(args, "status"),
				Limit:      limit,
			})
			if err != nil {
				return nil, finagent.NewToolExecutionError("query_reimbursement_records", err)
			}
			if len(rows) == 0 {
				return nil, finagent.NewDataNotFoundError("query_reimbursement_records",
					fmt.Sprintf("未找到员工 %s 的报销记录", employeeID))
			}

			employeeName := rows[0].EmployeeName
			if employeeName == "" {
				employeeName = "未知"
			}
			var b strings.Builder
			fmt.Fprintf(&b, "员工 %s (%s) 的报销记录（共 %d 条）：\n\n", employeeName, employeeID, len(rows))
			for _, r := range rows {
				fmt.Fprintf(&b, "报销单号：%s\n", r.ReimbursementID)
				fmt.Fprintf(&b, "类别：%s\n", r.Category)
				fmt.Fprintf(&b, "金额：%s 元\n", formatAmount(r.Amount))
				fmt.Fprintf(&b, "说明：%s\n", r.Description)
				fmt.Fprintf(&b, "状态：%s\n", statusName(r.Status))
				fmt.Fprintf(&b, "申请日期：%s\n", r.ApplyDate)
				if r.ApproveDate != "" {
					fmt.Fprintf(&b, "审批日期：%s\n", r.ApproveDate)
				}
				b.WriteString("\n")
			}
			return &finagent.ToolResult{
				Success: true,
				Data: map[string]any{
					"employee_id": employeeID,
					"count":       len(rows),
				},
				Message: b.String(),
			}, nil
		},
		WithCategory(finagent.CategoryDB),
		WithDescription("从报销记录表中查询详细的报销记录信息。输入参数：employee_id（必需）、start_date（可选）、end_date（可选）、status（可选）。"),
		WithParameters(map[string]string{
			"employee_id": "员工工号（必需）",
			"start_date":  "开始日期（可选），格式：YYYY-MM-DD",
			"end_date":    "结束日期（可选），格式：YYYY-MM-DD",
			"status":      "状态筛选（可选）：pending, approved, rejected, paid",
			"limit":       "返回记录数限制，默认100",
		}),
		WithValidator(requireArgs("query_reimbursement_records", "employee_id")),
	)
}

// NewWorkOrderTool creates work orders with duplicate detection. An open or
// in-progress order with the same assignee and title blocks creation unless
// the caller explicitly opts out.
func NewWorkOrderTool(st store.Store) finagent.Tool {
	return NewFuncTool("create_work_order",
		func(ctx context.Context, args map[string]any) (*finagent.ToolResult, error) {
			return createWorkOrder(ctx, st, args, time.Now())
		},
		WithCategory(finagent.CategoryDB),
		WithDescription("在数据库中创建一条工单或任务记录。输入参数：title（必需）、assignee_id（必需）、priority（可选）、category（可选）。"),
		WithParameters(map[string]string{
			"title":            "工单标题（必需）",
			"assignee_id":      "负责人工号或姓名（必需）",
			"description":      "工单描述（可选）",
			"priority":         "优先级（可选）：low, medium, high, urgent，默认：medium",
			"category":         "工单类别（可选），例如：财务、IT、人事",
			"duplicate_reason": "重复创建原因（可选），存在相同工单时必须提供",
			"request_id":       "关联请求编号（可选）",
			"action":           "冲突处理方式（可选）：auto/create_new/update_existing，默认：auto",
		}),
		WithValidator(requireArgs("create_work_order", "title", "assignee_id")),
	)
}

func createWorkOrder(ctx context.Context, st store.Store, args map[string]any, now time.Time) (*finagent.ToolResult, error) {
	title := stringArg(args, "title")
	assigneeRef := stringArg(args, "assignee_id")
	description := stringArg(args, "description")
	priority := stringArg(args, "priority")
	if priority == "" {
		priority = "medium"
	}
	category := stringArg(args, "category")
	duplicateReason := stringArg(args, "duplicate_reason")
	requestID := stringArg(args, "request_id")
	action := strings.ToLower(stringArg(args, "action"))
	if action == "" {
		action = "auto"
	}
	if action != "auto" && action != "create_new" && action != "update_existing" {
		return nil, finagent.NewToolArgumentError("create_work_order",
			fmt.Sprintf("action 参数无效：%s，可选值：auto/create_new/update_existing。", action))
	}

	assignee, err := st.FindEmployeeByNameOrID(ctx, assigneeRef)
	if errors.Is(err, store.ErrNotFound) {
		return nil, finagent.NewDataNotFoundError("create_work_order",
			fmt.Sprintf("员工 %s 不存在，无法创建工单", assigneeRef))
	}
	if err != nil {
		return nil, finagent.NewToolExecutionError("create_work_order", err)
	}

	existing, err := st.FindOpenWorkOrder(ctx, assignee.EmployeeID, title)
	switch {
	case err == nil:
		existingInfo := fmt.Sprintf(
			"已存在匹配工单：\n- 工单号：%s\n- 状态：%s\n- 负责人：%s (%s)\n- 优先级：%s\n- 类别：%s\n- 创建时间：%s\n",
			existing.WorkOrderID, existing.Status, assignee.Name, assignee.EmployeeID,
			existing.Priority, orText(existing.Category, "未设置"), existing.CreatedAt)

		switch {
		case action == "update_existing":
			var noteParts []string
			if description != "" {
				noteParts = append(noteParts, description)
			}
			if duplicateReason != "" {
				noteParts = append(noteParts, "重复原因："+duplicateReason)
			}
			if requestID != "" {
				noteParts = append(noteParts, "关联请求："+requestID)
			}
			newDescription := existing.Description
			if len(noteParts) > 0 {
				addition := fmt.Sprintf("[更新 %s] %s", now.Format("2006-01-02 15:04"), strings.Join(noteParts, " "))
				newDescription = strings.TrimSpace(existing.Description + "\n" + addition)
			}
			if err := st.UpdateWorkOrder(ctx, existing.WorkOrderID, newDescription, priority, category); err != nil {
				return nil, finagent.NewToolExecutionError("create_work_order", err)
			}
			return &finagent.ToolResult{
				Success: true,
				Data: map[string]any{
					"work_order_id": existing.WorkOrderID,
					"updated":       true,
				},
				Message: fmt.Sprintf("✅ 已更新现有工单 %s。\n%s如需新增工单，可设置 action=\"create_new\" 并提供 duplicate_reason。",
					existing.WorkOrderID, existingInfo),
			}, nil

		case action == "create_new" && duplicateReason == "":
			return &finagent.ToolResult{
				Success: true,
				Data: map[string]any{
					"work_order_id":     existing.WorkOrderID,
					"blocked_duplicate": true,
				},
				Message: existingInfo + "已存在相同工单。如仍需创建新的工单，请提供 duplicate_reason 说明。",
			}, nil

		case action == "auto" && duplicateReason == "":
			return &finagent.ToolResult{
				Success: true,
				Data: map[string]any{
					"work_order_id":     existing.WorkOrderID,
					"blocked_duplicate": true,
				},
				Message: existingInfo +
					"系统已阻止重复创建。\n" +
					"如需更新此工单，请设置 action=\"update_existing\" 并提供新的描述或优先级。\n" +
					"如确需新建，请设置 action=\"create_new\" 并提供 duplicate_reason。",
			}, nil
		}
	case !errors.Is(err, store.ErrNotFound):
		return nil, finagent.NewToolExecutionError("create_work_order", err)
	}

	workOrderID := newWorkOrderID(now)

	// Tracking metadata rides in the description.
	var metaLines []string
	if requestID != "" {
		metaLines = append(metaLines, fmt.Sprintf("[RequestID: %s]", requestID))
	}
	if duplicateReason != "" {
		metaLines = append(metaLines, fmt.Sprintf("[DuplicateReason: %s]", duplicateReason))
	}
	finalDescription := description
	if len(metaLines) > 0 {
		finalDescription = strings.TrimSpace(finalDescription + "\n" + strings.Join(metaLines, "\n"))
	}

	if err := st.CreateWorkOrder(ctx, store.WorkOrder{
		WorkOrderID: workOrderID,
		Title:       title,
		Description: finalDescription,
		AssigneeID:  assignee.EmployeeID,
		Priority:    priority,
		Category:    category,
		Status:      "open",
		CreatedAt:   now.Format("2006-01-02 15:04:05"),
	}); err != nil {
		return nil, finagent.NewToolExecutionError("create_work_order", err)
	}

	extraNote := ""
	if duplicateReason != "" {
		extraNote = "\n备注：重复工单原因 - " + duplicateReason
	}
	if requestID != "" {
		extraNote += "\n关联请求：" + requestID
	}
	return &finagent.ToolResult{
		Success: true,
		Data: map[string]any{
			"work_order_id": workOrderID,
			"assignee_id":   assignee.EmployeeID,
		},
		Message: fmt.Sprintf("✅ 工单创建成功！\n\n工单号：%s\n标题：%s\n负责人：%s (%s)\n优先级：%s\n状态：待处理%s",
			workOrderID, title, assignee.Name, assignee.EmployeeID, priorityName(priority), extraNote),
	}, nil
}

// newWorkOrderID builds a WO + timestamp + random-suffix identifier.
func newWorkOrderID(now time.Time) string {
	u := uuid.New()
	suffix := strings.ToUpper(hex.EncodeToString(u[:3]))
	return "WO" + now.Format("20060102150405") + suffix
}

// NewSendEmailTool sends notification emails.
func NewSendEmailTool(sender mail.Sender) finagent.Tool {
	return NewFuncTool("send_email",
		func(ctx context.Context, args map[string]any) (*finagent.ToolResult, error) {
			msg := mail.Message{
				To:      stringArg(args, "to_email"),
				Cc:      stringArg(args, "cc_email"),
				Bcc:     stringArg(args, "bcc_email"),
				Subject: stringArg(args, "subject"),
				Body:    stringArg(args, "body"),
				IsHTML:  boolArg(args, "is_html"),
			}
			if err := sender.Send(ctx, msg); err != nil {
				return nil, finagent.NewToolExecutionError("send_email", err)
			}
			return &finagent.ToolResult{
				Success: true,
				Data:    map[string]any{"to_email": msg.To},
				Message: fmt.Sprintf("✅ 邮件发送成功！\n\n收件人：%s\n主题：%s", msg.To, msg.Subject),
			}, nil
		},
		WithCategory(finagent.CategoryEmail),
		WithDescription("通过 SMTP 服务器发送邮件。输入参数：to_email（必需，收件人邮箱）、subject（必需，邮件主题）、body（必需，邮件正文）、cc_email（可选，抄送）、bcc_email（可选，密送）、is_html（可选，是否为HTML格式，默认false）。"),
		WithParameters(map[string]string{
			"to_email":  "收件人邮箱（必需）",
			"subject":   "邮件主题（必需）",
			"body":      "邮件正文（必需）",
			"cc_email":  "抄送邮箱（可选）",
			"bcc_email": "密送邮箱（可选）",
			"is_html":   "是否为HTML格式（可选），默认false",
		}),
		WithValidator(requireArgs("send_email", "to_email", "subject", "body")),
	)
}

// requireArgs builds a validator that rejects missing or empty required
// string arguments.
func requireArgs(toolName string, required ...string) func(map[string]any) error {
	return func(args map[string]any) error {
		if args == nil {
			return finagent.NewToolArgumentError(toolName, "缺少必需参数: "+strings.Join(required, ", "))
		}
		for _, key := range required {
			if stringArg(args, key) == "" {
				return finagent.NewToolArgumentError(toolName, "缺少必需参数: "+key)
			}
		}
		return nil
	}
}

func statusName(status string) string {
	if cn, ok := statusNames[status]; ok {
		return cn
	}
	return status
}

func priorityName(priority string) string {
	if cn, ok := priorityNames[priority]; ok {
		return cn
	}
	return priority
}

// formatAmount renders amounts without trailing zeros, e.g. 1250.5.
func formatAmount(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func truncateRunes(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}

// sortedKeys gives stable ordering to map-driven output.
func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func orText(s, fallback string) string {
	if s == "" {
		return fallback
	}
	return s
}

func intArg(args map[string]any, key string, fallback int) int {
	switch v := args[key].(type) {
	case int:
		return v
	case float64:
		return int(v)
	case string:
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func boolArg(args map[string]any, key string) bool {
	switch v := args[key].(type) {
	case bool:
		return v
	case string:
		return strings.EqualFold(v, "true")
	}
	return false
}
