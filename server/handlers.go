package server

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/jonwraymond/taskexec/agent"
	"github.com/jonwraymond/taskexec/code"
)

// errorBody is the JSON error envelope.
type errorBody struct {
	Error string `json:"error"`
}

// fail writes err with the status it maps to: 400 for input errors, 404 for
// missing tasks or tools, 500 otherwise.
func (s *Server) fail(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch {
	case agent.IsInvalid(err), errors.Is(err, code.ErrEmptyInput):
		status = http.StatusBadRequest
	case agent.IsNotFound(err):
		status = http.StatusNotFound
	}
	if status == http.StatusInternalServerError {
		s.logger.Error("request failed", "path", c.Request.URL.Path, "error", err)
	}
	c.AbortWithStatusJSON(status, errorBody{Error: err.Error()})
}

func badRequest(c *gin.Context, format string, args ...any) {
	c.AbortWithStatusJSON(http.StatusBadRequest, errorBody{Error: fmt.Sprintf(format, args...)})
}

// bindArgs decodes a JSON object body. An empty body is an empty object.
func bindArgs(c *gin.Context) (map[string]any, bool) {
	args := map[string]any{}
	if c.Request.ContentLength == 0 {
		return args, true
	}
	if err := c.ShouldBindJSON(&args); err != nil {
		badRequest(c, "invalid JSON body: %v", err)
		return nil, false
	}
	return args, true
}

// queryArgs copies the non-empty query parameters named in keys.
func queryArgs(c *gin.Context, keys ...string) map[string]any {
	args := map[string]any{}
	for _, k := range keys {
		if v := strings.TrimSpace(c.Query(k)); v != "" {
			args[k] = v
		}
	}
	return args
}

func (s *Server) run(c *gin.Context, status int, tool string, args map[string]any) {
	out, err := s.cfg.Agent.Execute(c.Request.Context(), tool, args)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(status, out)
}

func (s *Server) health(c *gin.Context) {
	tools, err := s.cfg.Agent.Tools(c.Request.Context())
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"status":    "healthy",
		"version":   s.cfg.Version,
		"tools":     len(tools),
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

func (s *Server) listTasks(c *gin.Context) {
	s.run(c, http.StatusOK, "get_all_tasks", queryArgs(c, "status", "assignee", "tag", "priority"))
}

func (s *Server) createTask(c *gin.Context) {
	args, ok := bindArgs(c)
	if !ok {
		return
	}
	s.run(c, http.StatusCreated, "create_task", args)
}

func (s *Server) getTask(c *gin.Context) {
	s.run(c, http.StatusOK, "get_task", map[string]any{"task_id": c.Param("id")})
}

func (s *Server) updateTask(c *gin.Context) {
	args, ok := bindArgs(c)
	if !ok {
		return
	}
	args["task_id"] = c.Param("id")
	s.run(c, http.StatusOK, "update_task", args)
}

func (s *Server) deleteTask(c *gin.Context) {
	s.run(c, http.StatusOK, "delete_task", map[string]any{"task_id": c.Param("id")})
}

func (s *Server) logHours(c *gin.Context) {
	args, ok := bindArgs(c)
	if !ok {
		return
	}
	s.run(c, http.StatusCreated, "log_working_hours", args)
}

func (s *Server) listHours(c *gin.Context) {
	s.run(c, http.StatusOK, "get_working_hours", queryArgs(c, "task_id", "user_id", "from_date", "to_date"))
}

func (s *Server) productivityReport(c *gin.Context) {
	days := 30
	if v := c.Query("days"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			badRequest(c, "days must be an integer, got %q", v)
			return
		}
		days = n
	}
	m, err := s.cfg.Agent.Metrics(c.Request.Context(), c.Query("assignee"), days)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, m)
}

type requestBody struct {
	Request string `json:"request"`
}

func (s *Server) process(c *gin.Context) {
	var body requestBody
	if err := c.ShouldBindJSON(&body); err != nil {
		badRequest(c, "invalid JSON body: %v", err)
		return
	}
	resp, err := s.cfg.Agent.Process(c.Request.Context(), body.Request)
	if err != nil {
		s.fail(c, err)
		return
	}
	switch {
	case resp.Query != nil:
		s.cfg.Metrics.ObserveFault(resp.Query.Fault)
	case resp.Chart != nil:
		s.cfg.Metrics.ObserveFault(resp.Chart.Fault)
	}
	c.JSON(http.StatusOK, resp)
}

func (s *Server) query(c *gin.Context) {
	var body requestBody
	if err := c.ShouldBindJSON(&body); err != nil {
		badRequest(c, "invalid JSON body: %v", err)
		return
	}
	s.run(c, http.StatusOK, "query_tasks_with_code", map[string]any{"request": body.Request})
}

type executeBody struct {
	Code      string `json:"code"`
	Request   string `json:"request"`
	Variant   string `json:"variant"`
	TimeoutMs int64  `json:"timeout_ms"`
}

// execute runs a snippet directly. Faults are reported in the result with
// status 200.
func (s *Server) execute(c *gin.Context) {
	var body executeBody
	if err := c.ShouldBindJSON(&body); err != nil {
		badRequest(c, "invalid JSON body: %v", err)
		return
	}
	variant := code.VariantQuery
	switch strings.ToLower(body.Variant) {
	case "", string(code.VariantQuery):
	case string(code.VariantChart):
		variant = code.VariantChart
	default:
		badRequest(c, "variant must be query or chart, got %q", body.Variant)
		return
	}

	if body.TimeoutMs < 0 {
		badRequest(c, "timeout_ms must not be negative, got %d", body.TimeoutMs)
		return
	}
	timeout := s.cfg.MaxExecTimeout
	if body.TimeoutMs < s.cfg.MaxExecTimeout.Milliseconds() {
		timeout = time.Duration(body.TimeoutMs) * time.Millisecond
	}

	res, err := s.cfg.Executor.Execute(c.Request.Context(), body.Code,
		code.WithRequest(body.Request),
		code.WithVariant(variant),
		code.WithTimeout(timeout))
	if err != nil {
		s.fail(c, err)
		return
	}
	s.cfg.Metrics.ObserveExecution(res)
	c.JSON(http.StatusOK, res)
}

func (s *Server) listTools(c *gin.Context) {
	if q := c.Query("q"); q != "" {
		limit, _ := strconv.Atoi(c.Query("limit"))
		ids, err := s.cfg.Agent.Suggest(q, limit)
		if err != nil {
			s.fail(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"query": q, "tools": ids})
		return
	}
	tools, err := s.cfg.Agent.Tools(c.Request.Context())
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"count": len(tools), "tools": tools})
}

func (s *Server) integrationsStatus(c *gin.Context) {
	webhooks := map[string]bool{}
	if s.cfg.Webhooks != nil {
		webhooks = s.cfg.Webhooks.Destinations()
	}
	c.JSON(http.StatusOK, gin.H{
		"webhooks": webhooks,
		"email":    s.cfg.EmailEnabled,
		"generator": gin.H{
			"enabled": s.cfg.GeneratorEnabled,
			"model":   s.cfg.GeneratorModel,
		},
		"backends": s.cfg.Agent.Backends(c.Request.Context()),
	})
}
