package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"pyqtest-server-go/db"
	"pyqtest-server-go/models"
)

type questionRequest struct {
	SubjectID   string              `json:"subjectId"`
	ChapterID   string              `json:"chapterId"`
	TopicID     string              `json:"topicId"`
	SubtopicID  string              `json:"subtopicId"`
	Kind        models.QuestionKind `json:"kind" binding:"required"`
	Text        string              `json:"text" binding:"required"`
	Options     []models.Option     `json:"options"`
	Answers     []string            `json:"answers" binding:"required"`
	Difficulty  string              `json:"difficulty"`
	Explanation string              `json:"explanation"`
	Source      string              `json:"source"`
}

func (r questionRequest) question(id string) models.Question {
	return models.Question{
		ID:          id,
		SubjectID:   r.SubjectID,
		ChapterID:   r.ChapterID,
		TopicID:     r.TopicID,
		SubtopicID:  r.SubtopicID,
		Kind:        r.Kind,
		Text:        r.Text,
		Options:     r.Options,
		Answers:     r.Answers,
		Difficulty:  r.Difficulty,
		Explanation: r.Explanation,
		Source:      r.Source,
	}
}

// ListQuestions handles GET /api/questions?subjectId=&chapterId=&topicId=
func (h *APIHandler) ListQuestions(c *gin.Context) {
	questions, err := h.Store.ListQuestions(c.Request.Context(), db.QuestionFilter{
		SubjectID: c.Query("subjectId"),
		ChapterID: c.Query("chapterId"),
		TopicID:   c.Query("topicId"),
	})
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, questions)
}

// GetQuestion handles GET /api/questions/:id
func (h *APIHandler) GetQuestion(c *gin.Context) {
	q, err := h.Store.GetQuestion(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, q)
}

// AddQuestion handles POST /api/questions
func (h *APIHandler) AddQuestion(c *gin.Context) {
	var req questionRequest
	if !h.bindJSON(c, &req) {
		return
	}
	q, err := h.Store.AddQuestion(c.Request.Context(), req.question(""))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, q)
}

// UpdateQuestion handles PUT /api/questions/:id
func (h *APIHandler) UpdateQuestion(c *gin.Context) {
	var req questionRequest
	if !h.bindJSON(c, &req) {
		return
	}
	q, err := h.Store.UpdateQuestion(c.Request.Context(), req.question(c.Param("id")))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, q)
}

// DeleteQuestion handles DELETE /api/questions/:id
func (h *APIHandler) DeleteQuestion(c *gin.Context) {
	if err := h.Store.DeleteQuestion(c.Request.Context(), c.Param("id")); err != nil {
		h.respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
