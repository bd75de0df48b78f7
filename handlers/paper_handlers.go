package handlers

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"pyqtest-server-go/apierr"
	"pyqtest-server-go/db"
	"pyqtest-server-go/extraction"
	"pyqtest-server-go/models"
	"pyqtest-server-go/sheets"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

type paperRequest struct {
	SubjectID       string                `json:"subjectId" binding:"required"`
	Title           string                `json:"title" binding:"required"`
	Exam            string                `json:"exam"`
	Year            int                   `json:"year"`
	DurationMinutes int                   `json:"durationMinutes" binding:"required,min=1"`
	Scheme          *models.MarkingScheme `json:"scheme"`
	PDFPath         string                `json:"pdfPath"`
}

type paperQuestionsRequest struct {
	QuestionIDs []string `json:"questionIds" binding:"required"`
}

type extractRequest struct {
	Text     string `json:"text" binding:"required"`
	Expected int    `json:"expected" binding:"min=0,max=500"`
}

type extractResponse struct {
	Paper  models.Paper      `json:"paper"`
	Report extraction.Report `json:"report"`
}

// ListPapers handles GET /api/papers?subjectId=
func (h *APIHandler) ListPapers(c *gin.Context) {
	papers, err := h.Store.ListPapers(c.Request.Context(), c.Query("subjectId"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, papers)
}

// AddPaper handles POST /api/papers
func (h *APIHandler) AddPaper(c *gin.Context) {
	var req paperRequest
	if !h.bindJSON(c, &req) {
		return
	}
	p := models.Paper{
		SubjectID:       req.SubjectID,
		Title:           req.Title,
		Exam:            req.Exam,
		Year:            req.Year,
		DurationMinutes: req.DurationMinutes,
		PDFPath:         req.PDFPath,
	}
	if req.Scheme != nil {
		p.Scheme = *req.Scheme
	}
	p, err := h.Store.AddPaper(c.Request.Context(), p)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, p)
}

// GetPaper handles GET /api/papers/:id. The paper's questions are included.
func (h *APIHandler) GetPaper(c *gin.Context) {
	ctx := c.Request.Context()
	p, err := h.Store.GetPaper(ctx, c.Param("id"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	questions, err := h.Store.PaperQuestions(ctx, p)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"paper": p, "questions": questions})
}

// SetPaperQuestions handles PUT /api/papers/:id/questions
func (h *APIHandler) SetPaperQuestions(c *gin.Context) {
	var req paperQuestionsRequest
	if !h.bindJSON(c, &req) {
		return
	}
	p, err := h.Store.SetPaperQuestions(c.Request.Context(), c.Param("id"), req.QuestionIDs)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, p)
}

// DeletePaper handles DELETE /api/papers/:id
func (h *APIHandler) DeletePaper(c *gin.Context) {
	if err := h.Store.DeletePaper(c.Request.Context(), c.Param("id")); err != nil {
		h.respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// ExtractPaperQuestions handles POST /api/papers/:id/extract. The parsed
// text of the paper PDF is sent to the AI extraction function; recovered
// questions are added to the bank and attached to the paper in number order.
func (h *APIHandler) ExtractPaperQuestions(c *gin.Context) {
	var req extractRequest
	if !h.bindJSON(c, &req) {
		return
	}
	ctx := c.Request.Context()
	p, err := h.Store.GetPaper(ctx, c.Param("id"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	if h.Extractor == nil {
		h.respondError(c, apierr.ErrRemoteUnavailable)
		return
	}
	if _, err := h.Store.SetExtractionStatus(ctx, p.ID, models.ExtractionProcessing, ""); err != nil {
		h.respondError(c, err)
		return
	}

	fail := func(reason string, err error) {
		if _, serr := h.Store.SetExtractionStatus(ctx, p.ID, models.ExtractionFailed, reason); serr != nil {
			h.log.Error("failed to record extraction failure", "paper_id", p.ID, "error", serr)
		}
		h.respondError(c, err)
	}

	extracted, err := h.Extractor.ExtractQuestions(ctx, req.Text, req.Expected)
	if err != nil {
		h.log.Warn("question extraction failed", "paper_id", p.ID, "error", err)
		fail(err.Error(), remoteError(err))
		return
	}
	numbered, report := extraction.Reconcile(p.SubjectID, extracted, req.Expected, db.ValidateQuestion)
	h.log.Info("questions extracted", "paper_id", p.ID,
		"expected", report.Expected, "recovered", report.Recovered, "missing", len(report.Missing))
	if len(numbered) == 0 {
		fail("no questions could be recovered", apierr.Validationf("no questions could be recovered from the paper text"))
		return
	}

	questions := make([]models.Question, len(numbered))
	for i, n := range numbered {
		questions[i] = n.Question
	}
	attached, err := h.Store.AttachExtractedQuestions(ctx, p.ID, questions)
	if err != nil {
		h.log.Warn("extracted questions could not be attached", "paper_id", p.ID, "error", err)
		fail(err.Error(), err)
		return
	}
	c.JSON(http.StatusOK, extractResponse{Paper: attached, Report: report})
}

// ListPaperResults handles GET /api/papers/:id/results
func (h *APIHandler) ListPaperResults(c *gin.Context) {
	results, err := h.Store.ListResultsByPaper(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, results)
}

// ExportPaperResults handles GET /api/papers/:id/results.xlsx
func (h *APIHandler) ExportPaperResults(c *gin.Context) {
	ctx := c.Request.Context()
	p, err := h.Store.GetPaper(ctx, c.Param("id"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	results, err := h.Store.ListResultsByPaper(ctx, p.ID)
	if err != nil {
		h.respondError(c, err)
		return
	}
	writeAttachment(c, fileName(p.Title, "results"))
	if err := sheets.WriteResults(c.Writer, results); err != nil {
		h.log.Error("failed to write results workbook", "paper_id", p.ID, "error", err)
	}
}

func writeAttachment(c *gin.Context, name string) {
	c.Header("Content-Type", xlsxContentType)
	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, name))
	c.Status(http.StatusOK)
}

// fileName builds a download name such as "jee-main-2023-results.xlsx"
func fileName(title, suffix string) string {
	slug := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			return r
		case r >= 'A' && r <= 'Z':
			return r + ('a' - 'A')
		default:
			return '-'
		}
	}, strings.TrimSpace(title))
	slug = strings.Trim(slug, "-")
	for strings.Contains(slug, "--") {
		slug = strings.ReplaceAll(slug, "--", "-")
	}
	if slug == "" {
		return suffix + ".xlsx"
	}
	return slug + "-" + suffix + ".xlsx"
}
