package handlers

import (
	"fmt"
	"mime/multipart"
	"net/http"
	"sort"

	"github.com/gin-gonic/gin"

	"pyqtest-server-go/apierr"
	"pyqtest-server-go/sheets"
)

// uploadedSheet returns the subjectId form field and the uploaded "file".
// The caller closes the file.
func (h *APIHandler) uploadedSheet(c *gin.Context) (string, multipart.File, bool) {
	subjectID := c.PostForm("subjectId")
	if subjectID == "" {
		h.respondError(c, apierr.Validationf("missing 'subjectId' in form data"))
		return "", nil, false
	}
	file, header, err := c.Request.FormFile("file")
	if err != nil {
		h.respondError(c, apierr.Validationf("error retrieving uploaded file: %v", err))
		return "", nil, false
	}
	h.log.Info("received spreadsheet upload", "file", header.Filename, "size", header.Size, "subject_id", subjectID)
	return subjectID, file, true
}

// mergeIssues joins parse and import issues in row order
func mergeIssues(parsed, applied []sheets.RowIssue) []sheets.RowIssue {
	all := make([]sheets.RowIssue, 0, len(parsed)+len(applied))
	all = append(all, parsed...)
	all = append(all, applied...)
	sort.SliceStable(all, func(i, j int) bool { return all[i].Row < all[j].Row })
	return all
}

// ImportCurriculum handles POST /api/import/curriculum
func (h *APIHandler) ImportCurriculum(c *gin.Context) {
	subjectID, file, ok := h.uploadedSheet(c)
	if !ok {
		return
	}
	defer file.Close()

	rows, issues, err := sheets.ParseCurriculum(file)
	if err != nil {
		h.respondError(c, apierr.Validation(fmt.Errorf("could not read spreadsheet: %w", err)))
		return
	}
	out, err := h.Store.ImportCurriculum(c.Request.Context(), subjectID, rows)
	if err != nil {
		h.respondError(c, err)
		return
	}
	out.Issues = mergeIssues(issues, out.Issues)
	c.JSON(http.StatusOK, out)
}

// ImportQuestions handles POST /api/import/questions
func (h *APIHandler) ImportQuestions(c *gin.Context) {
	subjectID, file, ok := h.uploadedSheet(c)
	if !ok {
		return
	}
	defer file.Close()

	rows, issues, err := sheets.ParseQuestions(file)
	if err != nil {
		h.respondError(c, apierr.Validation(fmt.Errorf("could not read spreadsheet: %w", err)))
		return
	}
	out, err := h.Store.ImportQuestions(c.Request.Context(), subjectID, rows)
	if err != nil {
		h.respondError(c, err)
		return
	}
	out.Issues = mergeIssues(issues, out.Issues)
	c.JSON(http.StatusOK, out)
}

// ExportQuestions handles GET /api/subjects/:id/questions.xlsx
func (h *APIHandler) ExportQuestions(c *gin.Context) {
	ctx := c.Request.Context()
	subject, err := h.Store.GetSubject(ctx, c.Param("id"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	rows, err := h.Store.ExportQuestionRows(ctx, subject.ID)
	if err != nil {
		h.respondError(c, err)
		return
	}
	writeAttachment(c, fileName(subject.Name, "questions"))
	if err := sheets.WriteQuestions(c.Writer, rows); err != nil {
		h.log.Error("failed to write question workbook", "subject_id", subject.ID, "error", err)
	}
}
