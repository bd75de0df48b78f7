package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"pyqtest-server-go/models"
)

type subjectRequest struct {
	Name string `json:"name" binding:"required"`
	Code string `json:"code"`
}

type chapterRequest struct {
	Number int    `json:"number" binding:"required,min=1"`
	Name   string `json:"name" binding:"required"`
}

type topicRequest struct {
	Name    string `json:"name" binding:"required"`
	Order   int    `json:"order" binding:"min=0"`
	Content string `json:"content"`
}

type subtopicRequest struct {
	Name  string `json:"name" binding:"required"`
	Order int    `json:"order" binding:"min=0"`
}

// --- Subjects ---

// GetAllSubjects handles GET /api/subjects
func (h *APIHandler) GetAllSubjects(c *gin.Context) {
	subjects, err := h.Store.GetAllSubjects(c.Request.Context())
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, subjects)
}

// GetSubject handles GET /api/subjects/:id
func (h *APIHandler) GetSubject(c *gin.Context) {
	subject, err := h.Store.GetSubject(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, subject)
}

// AddSubject handles POST /api/subjects
func (h *APIHandler) AddSubject(c *gin.Context) {
	var req subjectRequest
	if !h.bindJSON(c, &req) {
		return
	}
	subject, err := h.Store.AddSubject(c.Request.Context(), models.Subject{Name: req.Name, Code: req.Code})
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, subject)
}

// UpdateSubject handles PUT /api/subjects/:id
func (h *APIHandler) UpdateSubject(c *gin.Context) {
	var req subjectRequest
	if !h.bindJSON(c, &req) {
		return
	}
	subject, err := h.Store.UpdateSubject(c.Request.Context(), models.Subject{ID: c.Param("id"), Name: req.Name, Code: req.Code})
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, subject)
}

// DeleteSubject handles DELETE /api/subjects/:id
func (h *APIHandler) DeleteSubject(c *gin.Context) {
	if err := h.Store.DeleteSubject(c.Request.Context(), c.Param("id")); err != nil {
		h.respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// --- Chapters ---

// GetChaptersBySubject handles GET /api/subjects/:id/chapters
func (h *APIHandler) GetChaptersBySubject(c *gin.Context) {
	ctx := c.Request.Context()
	subjectID := c.Param("id")
	if _, err := h.Store.GetSubject(ctx, subjectID); err != nil {
		h.respondError(c, err)
		return
	}
	chapters, err := h.Store.GetChaptersBySubject(ctx, subjectID)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, chapters)
}

// AddChapter handles POST /api/subjects/:id/chapters
func (h *APIHandler) AddChapter(c *gin.Context) {
	var req chapterRequest
	if !h.bindJSON(c, &req) {
		return
	}
	chapter, err := h.Store.AddChapter(c.Request.Context(), models.Chapter{
		SubjectID: c.Param("id"),
		Number:    req.Number,
		Name:      req.Name,
	})
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, chapter)
}

// GetChapter handles GET /api/chapters/:id
func (h *APIHandler) GetChapter(c *gin.Context) {
	chapter, err := h.Store.GetChapter(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, chapter)
}

// UpdateChapter handles PUT /api/chapters/:id
func (h *APIHandler) UpdateChapter(c *gin.Context) {
	var req chapterRequest
	if !h.bindJSON(c, &req) {
		return
	}
	chapter, err := h.Store.UpdateChapter(c.Request.Context(), models.Chapter{ID: c.Param("id"), Number: req.Number, Name: req.Name})
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, chapter)
}

// DeleteChapter handles DELETE /api/chapters/:id
func (h *APIHandler) DeleteChapter(c *gin.Context) {
	if err := h.Store.DeleteChapter(c.Request.Context(), c.Param("id")); err != nil {
		h.respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// --- Topics ---

// GetTopicsByChapter handles GET /api/chapters/:id/topics
func (h *APIHandler) GetTopicsByChapter(c *gin.Context) {
	ctx := c.Request.Context()
	chapterID := c.Param("id")
	if _, err := h.Store.GetChapter(ctx, chapterID); err != nil {
		h.respondError(c, err)
		return
	}
	topics, err := h.Store.GetTopicsByChapter(ctx, chapterID)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, topics)
}

// AddTopic handles POST /api/chapters/:id/topics
func (h *APIHandler) AddTopic(c *gin.Context) {
	var req topicRequest
	if !h.bindJSON(c, &req) {
		return
	}
	topic, err := h.Store.AddTopic(c.Request.Context(), models.Topic{
		ChapterID: c.Param("id"),
		Name:      req.Name,
		Order:     req.Order,
		Content:   req.Content,
	})
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, topic)
}

// GetTopic handles GET /api/topics/:id
func (h *APIHandler) GetTopic(c *gin.Context) {
	topic, err := h.Store.GetTopic(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, topic)
}

// UpdateTopic handles PUT /api/topics/:id
func (h *APIHandler) UpdateTopic(c *gin.Context) {
	var req topicRequest
	if !h.bindJSON(c, &req) {
		return
	}
	topic, err := h.Store.UpdateTopic(c.Request.Context(), models.Topic{
		ID:      c.Param("id"),
		Name:    req.Name,
		Order:   req.Order,
		Content: req.Content,
	})
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, topic)
}

// DeleteTopic handles DELETE /api/topics/:id
func (h *APIHandler) DeleteTopic(c *gin.Context) {
	if err := h.Store.DeleteTopic(c.Request.Context(), c.Param("id")); err != nil {
		h.respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// --- Subtopics ---

// GetSubtopic handles GET /api/subtopics/:id
func (h *APIHandler) GetSubtopic(c *gin.Context) {
	sub, err := h.Store.GetSubtopic(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, sub)
}

// GetSubtopicsByTopic handles GET /api/topics/:id/subtopics
func (h *APIHandler) GetSubtopicsByTopic(c *gin.Context) {
	ctx := c.Request.Context()
	topicID := c.Param("id")
	if _, err := h.Store.GetTopic(ctx, topicID); err != nil {
		h.respondError(c, err)
		return
	}
	subs, err := h.Store.GetSubtopicsByTopic(ctx, topicID)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, subs)
}

// AddSubtopic handles POST /api/topics/:id/subtopics
func (h *APIHandler) AddSubtopic(c *gin.Context) {
	var req subtopicRequest
	if !h.bindJSON(c, &req) {
		return
	}
	sub, err := h.Store.AddSubtopic(c.Request.Context(), models.Subtopic{TopicID: c.Param("id"), Name: req.Name, Order: req.Order})
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, sub)
}

// UpdateSubtopic handles PUT /api/subtopics/:id
func (h *APIHandler) UpdateSubtopic(c *gin.Context) {
	var req subtopicRequest
	if !h.bindJSON(c, &req) {
		return
	}
	sub, err := h.Store.UpdateSubtopic(c.Request.Context(), models.Subtopic{ID: c.Param("id"), Name: req.Name, Order: req.Order})
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, sub)
}

// DeleteSubtopic handles DELETE /api/subtopics/:id
func (h *APIHandler) DeleteSubtopic(c *gin.Context) {
	if err := h.Store.DeleteSubtopic(c.Request.Context(), c.Param("id")); err != nil {
		h.respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
