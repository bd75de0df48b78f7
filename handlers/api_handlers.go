package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"pyqtest-server-go/ai"
	"pyqtest-server-go/apierr"
	"pyqtest-server-go/db"
	"pyqtest-server-go/grading"
	"pyqtest-server-go/logger"
	"pyqtest-server-go/models"
	"pyqtest-server-go/normalize"
)

// QuestionExtractor recovers questions from the parsed text of a paper;
// ai.Client implements it.
type QuestionExtractor interface {
	ExtractQuestions(ctx context.Context, text string, expected int) ([]ai.ExtractedQuestion, error)
}

// APIHandler holds the dependencies for API handlers
type APIHandler struct {
	Store     *db.RedisService
	Grader    db.Grader
	Comparer  grading.AnswerComparer // optional, used by answer checks on request
	Extractor QuestionExtractor      // optional, extraction fails with 503 without it
	log       *logger.Logger
}

// NewAPIHandler creates a new APIHandler
func NewAPIHandler(store *db.RedisService, grader db.Grader, comparer grading.AnswerComparer, extractor QuestionExtractor, log *logger.Logger) *APIHandler {
	if log == nil {
		log = logger.Nop()
	}
	return &APIHandler{
		Store:     store,
		Grader:    grader,
		Comparer:  comparer,
		Extractor: extractor,
		log:       log,
	}
}

type apiError struct {
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

type errorEnvelope struct {
	Error apiError `json:"error"`
}

// respondError writes err as a JSON error envelope. Unexpected errors are
// logged and replaced by a generic message.
func (h *APIHandler) respondError(c *gin.Context, err error) {
	e := apierr.From(err)
	if e.Status >= http.StatusInternalServerError {
		h.log.Error("request failed", "path", c.FullPath(), "error", err)
	}
	_ = c.Error(err)
	c.JSON(e.Status, errorEnvelope{Error: apiError{Message: e.Error(), Code: e.Code}})
}

// bindJSON decodes the request body into v and reports a validation error
// when that fails.
func (h *APIHandler) bindJSON(c *gin.Context, v interface{}) bool {
	if err := c.ShouldBindJSON(v); err != nil {
		h.respondError(c, apierr.Validationf("invalid request body: %v", err))
		return false
	}
	return true
}

// PingHandler handles GET /api/ping. It also checks the Redis connection.
func (h *APIHandler) PingHandler(c *gin.Context) {
	if err := h.Store.Client.Ping(c.Request.Context()).Err(); err != nil {
		h.log.Warn("redis ping failed", "error", err)
		c.JSON(http.StatusServiceUnavailable, gin.H{"message": "Redis unavailable"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Pong!"})
}

type checkAnswerRequest struct {
	User     string `json:"user"`
	Correct  string `json:"correct"`
	Question string `json:"question"`
	UseAI    bool   `json:"useAi"`
}

type checkAnswerResponse struct {
	Equivalent       bool   `json:"equivalent"`
	UserCanonical    string `json:"userCanonical"`
	CorrectCanonical string `json:"correctCanonical"`
	MatchedBy        string `json:"matchedBy,omitempty"`
}

// CheckAnswer handles POST /api/answers/check. It compares two answers after
// normalization and, when asked to, falls back to the AI comparison.
func (h *APIHandler) CheckAnswer(c *gin.Context) {
	var req checkAnswerRequest
	if !h.bindJSON(c, &req) {
		return
	}
	resp := checkAnswerResponse{
		Equivalent:       normalize.Equivalent(req.User, req.Correct),
		UserCanonical:    normalize.Canonical(req.User),
		CorrectCanonical: normalize.Canonical(req.Correct),
	}
	if resp.Equivalent {
		resp.MatchedBy = models.MatchedLexical
	} else if req.UseAI && resp.UserCanonical != "" && resp.CorrectCanonical != "" {
		if h.Comparer == nil {
			h.respondError(c, apierr.ErrRemoteUnavailable)
			return
		}
		ok, err := h.Comparer.CompareMathAnswers(c.Request.Context(), req.User, req.Correct, req.Question)
		if err != nil {
			h.respondError(c, remoteError(err))
			return
		}
		if ok {
			resp.Equivalent = true
			resp.MatchedBy = models.MatchedAI
		}
	}
	c.JSON(http.StatusOK, resp)
}

// remoteError marks a failed AI call as a remote failure unless it is
// already classified.
func remoteError(err error) error {
	var apiErr *apierr.Error
	if errors.As(err, &apiErr) || errors.Is(err, apierr.ErrRemoteUnavailable) {
		return err
	}
	return apierr.Remote(err)
}
