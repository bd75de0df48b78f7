// Package sheets reads and writes the spreadsheets used for bulk curriculum
// and question-bank import and for exporting questions and results.
package sheets

import (
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"pyqtest-server-go/extraction"
	"pyqtest-server-go/models"
)

const (
	questionsSheet = "Questions"
	resultsSheet   = "Results"
)

var optionColumns = []string{"option_a", "option_b", "option_c", "option_d", "option_e", "option_f"}

// RowIssue explains why a spreadsheet row was skipped. Row is 1-based as
// shown by spreadsheet programs.
type RowIssue struct {
	Row    int    `json:"row"`
	Reason string `json:"reason"`
}

// CurriculumRow is one chapter/topic/subtopic line. Topic and subtopic are
// optional.
type CurriculumRow struct {
	Row           int
	ChapterNumber int
	ChapterName   string
	TopicName     string
	SubtopicName  string
}

// QuestionRow is one question line with its curriculum placement given by
// chapter number and topic name.
type QuestionRow struct {
	Row           int
	ChapterNumber int
	TopicName     string
	Question      models.Question
}

type table struct {
	header map[string]int
	rows   [][]string
}

func (t table) cell(row []string, col string) string {
	i, ok := t.header[col]
	if !ok || i >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[i])
}

// readTable loads the first sheet of an xlsx stream and indexes its header
// row. Header names are matched case-insensitively with spaces read as
// underscores.
func readTable(r io.Reader, required ...string) (table, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return table{}, fmt.Errorf("failed to open excel file: %w", err)
	}
	defer f.Close()

	sheetName := f.GetSheetName(0)
	if sheetName == "" {
		return table{}, errors.New("excel file does not contain any sheets")
	}
	rows, err := f.GetRows(sheetName)
	if err != nil {
		return table{}, fmt.Errorf("failed to get rows from sheet %s: %w", sheetName, err)
	}
	if len(rows) == 0 {
		return table{}, fmt.Errorf("sheet %s is empty", sheetName)
	}

	t := table{header: map[string]int{}, rows: rows[1:]}
	for i, h := range rows[0] {
		name := strings.ToLower(strings.Join(strings.Fields(h), "_"))
		if name != "" {
			t.header[name] = i
		}
	}
	var missing []string
	for _, col := range required {
		if _, ok := t.header[col]; !ok {
			missing = append(missing, col)
		}
	}
	if len(missing) > 0 {
		return table{}, fmt.Errorf("missing required columns: %s", strings.Join(missing, ", "))
	}
	return t, nil
}

func blank(row []string) bool {
	for _, c := range row {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}

// ParseCurriculum reads chapter_number, chapter_name, topic_name and
// subtopic_name columns.
func ParseCurriculum(r io.Reader) ([]CurriculumRow, []RowIssue, error) {
	t, err := readTable(r, "chapter_number", "chapter_name")
	if err != nil {
		return nil, nil, err
	}
	var out []CurriculumRow
	issues := []RowIssue{}
	for i, row := range t.rows {
		rowNum := i + 2
		if blank(row) {
			continue
		}
		number, err := strconv.Atoi(t.cell(row, "chapter_number"))
		if err != nil || number <= 0 {
			issues = append(issues, RowIssue{Row: rowNum, Reason: "chapter_number must be a positive whole number"})
			continue
		}
		cr := CurriculumRow{
			Row:           rowNum,
			ChapterNumber: number,
			ChapterName:   t.cell(row, "chapter_name"),
			TopicName:     t.cell(row, "topic_name"),
			SubtopicName:  t.cell(row, "subtopic_name"),
		}
		if cr.ChapterName == "" {
			issues = append(issues, RowIssue{Row: rowNum, Reason: "chapter_name is empty"})
			continue
		}
		if cr.SubtopicName != "" && cr.TopicName == "" {
			issues = append(issues, RowIssue{Row: rowNum, Reason: "subtopic given without a topic"})
			continue
		}
		out = append(out, cr)
	}
	return out, issues, nil
}

// ParseQuestions reads question rows. Required columns are kind, text and
// answer; chapter_number, topic_name, option_a..option_f, difficulty,
// explanation and source are optional.
func ParseQuestions(r io.Reader) ([]QuestionRow, []RowIssue, error) {
	t, err := readTable(r, "kind", "text", "answer")
	if err != nil {
		return nil, nil, err
	}
	var out []QuestionRow
	issues := []RowIssue{}
	for i, row := range t.rows {
		rowNum := i + 2
		if blank(row) {
			continue
		}
		kind := models.QuestionKind(strings.ToLower(t.cell(row, "kind")))
		if !kind.Valid() {
			issues = append(issues, RowIssue{Row: rowNum, Reason: fmt.Sprintf("unknown kind %q", t.cell(row, "kind"))})
			continue
		}
		qr := QuestionRow{Row: rowNum, TopicName: t.cell(row, "topic_name")}
		if raw := t.cell(row, "chapter_number"); raw != "" {
			n, err := strconv.Atoi(raw)
			if err != nil || n <= 0 {
				issues = append(issues, RowIssue{Row: rowNum, Reason: "chapter_number must be a positive whole number"})
				continue
			}
			qr.ChapterNumber = n
		}
		if qr.TopicName != "" && qr.ChapterNumber == 0 {
			issues = append(issues, RowIssue{Row: rowNum, Reason: "topic_name given without chapter_number"})
			continue
		}
		q := models.Question{
			Kind:        kind,
			Text:        t.cell(row, "text"),
			Answers:     extraction.SplitAnswer(kind, t.cell(row, "answer")),
			Difficulty:  t.cell(row, "difficulty"),
			Explanation: t.cell(row, "explanation"),
			Source:      t.cell(row, "source"),
		}
		if !kind.FreeText() {
			for j, col := range optionColumns {
				if text := t.cell(row, col); text != "" {
					q.Options = append(q.Options, models.Option{Key: string(rune('A' + j)), Text: text})
				}
			}
		}
		qr.Question = q
		out = append(out, qr)
	}
	return out, issues, nil
}

func writeSheet(w io.Writer, sheet string, header []interface{}, rows [][]interface{}) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName(f.GetSheetName(0), sheet); err != nil {
		return fmt.Errorf("rename sheet: %w", err)
	}
	if err := f.SetSheetRow(sheet, "A1", &header); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		row := row
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return fmt.Errorf("write row %d: %w", i+2, err)
		}
	}
	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}

// WriteQuestions writes rows in the layout ParseQuestions reads.
func WriteQuestions(w io.Writer, rows []QuestionRow) error {
	header := []interface{}{"chapter_number", "topic_name", "kind", "text"}
	for _, col := range optionColumns {
		header = append(header, col)
	}
	header = append(header, "answer", "difficulty", "explanation", "source")

	out := make([][]interface{}, 0, len(rows))
	for _, qr := range rows {
		q := qr.Question
		var chapter interface{} = ""
		if qr.ChapterNumber > 0 {
			chapter = qr.ChapterNumber
		}
		line := []interface{}{chapter, qr.TopicName, string(q.Kind), q.Text}
		opts := make(map[string]string, len(q.Options))
		for _, o := range q.Options {
			opts[o.Key] = o.Text
		}
		for j := range optionColumns {
			line = append(line, opts[string(rune('A'+j))])
		}
		answer := strings.Join(q.Answers, ", ")
		if q.Kind.FreeText() {
			answer = strings.Join(q.Answers, " "+extraction.AnswerSeparator+" ")
		}
		line = append(line, answer, q.Difficulty, q.Explanation, q.Source)
		out = append(out, line)
	}
	return writeSheet(w, questionsSheet, header, out)
}

// WriteResults writes one line per result.
func WriteResults(w io.Writer, results []models.Result) error {
	header := []interface{}{
		"student_id", "attempt_id", "submitted_at", "late",
		"score", "max_score", "correct", "incorrect", "partial", "unattempted", "accuracy",
	}
	out := make([][]interface{}, 0, len(results))
	for _, r := range results {
		out = append(out, []interface{}{
			r.StudentID, r.AttemptID, r.SubmittedAt.Format(time.RFC3339), r.Late,
			r.Score, r.MaxScore, r.Correct, r.Incorrect, r.Partial, r.Unattempted, r.Accuracy,
		})
	}
	return writeSheet(w, resultsSheet, header, out)
}
