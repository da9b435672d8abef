package api

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/finagent-ai/finagent"
)

// AgentRunner answers questions. Satisfied by the agent.
type AgentRunner interface {
	Run(ctx context.Context, question string) (finagent.RunResult, error)
}

// Server is the HTTP front of the assistant: the reimbursement query
// endpoints backed by the store, plus the question endpoint backed by the
// agent.
type Server struct {
	client ReimbursementClient
	agent  AgentRunner
	engine *gin.Engine
}

// NewServer wires the routes. agent may be nil, in which case /api/ask is
// not registered.
func NewServer(client ReimbursementClient, agent AgentRunner) *Server {
	gin.SetMode(gin.ReleaseMode)
	s := &Server{
		client: client,
		agent:  agent,
		engine: gin.New(),
	}
	s.engine.Use(gin.Logger(), gin.Recovery())

	s.engine.GET("/api/health", s.handleHealth)
	s.engine.GET("/api/reimbursement/status", s.handleStatus)
	s.engine.GET("/api/reimbursement/summary", s.handleSummary)
	if agent != nil {
		s.engine.POST("/api/ask", s.handleAsk)
	}
	return s
}

// Handler exposes the router for net/http servers and tests.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Run serves on addr until the listener fails.
func (s *Server) Run(addr string) error {
	return s.engine.Run(addr)
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "ok",
		"service": "finagent reimbursement API",
		"message": "服务运行正常",
	})
}

func (s *Server) handleStatus(c *gin.Context) {
	employeeID := c.Query("employee_id")
	if employeeID == "" {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"message": "缺少必需参数: employee_id",
		})
		return
	}

	resp, err := s.client.Status(c.Request.Context(), StatusRequest{
		EmployeeID:      employeeID,
		ReimbursementID: c.Query("reimbursement_id"),
		StartDate:       c.Query("start_date"),
		EndDate:         c.Query("end_date"),
	})
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"message": "查询失败: " + err.Error(),
		})
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (s *Server) handleSummary(c *gin.Context) {
	employeeID := c.Query("employee_id")
	startDate := c.Query("start_date")
	endDate := c.Query("end_date")
	if employeeID == "" || startDate == "" || endDate == "" {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"message": "缺少必需参数: employee_id, start_date, end_date",
		})
		return
	}

	resp, err := s.client.Summary(c.Request.Context(), employeeID, startDate, endDate, c.Query("category"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"message": "查询失败: " + err.Error(),
		})
		return
	}
	if !resp.Success {
		status := http.StatusBadRequest
		if resp.Data.EmployeeName == "" && resp.Message != "" {
			status = http.StatusNotFound
		}
		c.JSON(status, resp)
		return
	}
	c.JSON(http.StatusOK, resp)
}

type askRequest struct {
	Question string `json:"question" binding:"required"`
}

func (s *Server) handleAsk(c *gin.Context) {
	var req askRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"message": "缺少必需参数: question",
		})
		return
	}

	result, err := s.agent.Run(c.Request.Context(), req.Question)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"message": "处理失败: " + err.Error(),
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"answer":  result.Answer,
		"steps":   result.Steps,
		"sources": result.Sources,
	})
}
