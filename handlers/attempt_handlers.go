package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"pyqtest-server-go/models"
)

type startAttemptRequest struct {
	StudentID string `json:"studentId" binding:"required"`
}

type responsesRequest struct {
	Responses map[string]models.Response `json:"responses"`
}

// StartAttempt handles POST /api/papers/:id/attempts
func (h *APIHandler) StartAttempt(c *gin.Context) {
	var req startAttemptRequest
	if !h.bindJSON(c, &req) {
		return
	}
	a, err := h.Store.StartAttempt(c.Request.Context(), c.Param("id"), req.StudentID)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, a)
}

// GetAttempt handles GET /api/attempts/:id
func (h *APIHandler) GetAttempt(c *gin.Context) {
	a, err := h.Store.GetAttempt(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, a)
}

// SaveResponses handles PUT /api/attempts/:id/answers
func (h *APIHandler) SaveResponses(c *gin.Context) {
	var req responsesRequest
	if !h.bindJSON(c, &req) {
		return
	}
	a, err := h.Store.SaveResponses(c.Request.Context(), c.Param("id"), req.Responses)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, a)
}

// SubmitAttempt handles POST /api/attempts/:id/submit. The body is optional
// and may carry final responses.
func (h *APIHandler) SubmitAttempt(c *gin.Context) {
	var req responsesRequest
	if c.Request.ContentLength != 0 && !h.bindJSON(c, &req) {
		return
	}
	res, err := h.Store.SubmitAttempt(c.Request.Context(), c.Param("id"), req.Responses, h.Grader)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// GetResult handles GET /api/attempts/:id/result
func (h *APIHandler) GetResult(c *gin.Context) {
	res, err := h.Store.GetResult(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// ListStudentResults handles GET /api/students/:id/results
func (h *APIHandler) ListStudentResults(c *gin.Context) {
	results, err := h.Store.ListResultsByStudent(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, results)
}

// GetStudentAnalytics handles GET /api/students/:id/analytics
func (h *APIHandler) GetStudentAnalytics(c *gin.Context) {
	an, err := h.Store.StudentAnalytics(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, an)
}
