package sheets

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"pyqtest-server-go/models"
)

// workbook builds an xlsx file with rows on its first sheet.
func workbook(t *testing.T, rows ...[]interface{}) *bytes.Buffer {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close()
	sheet := f.GetSheetName(0)
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		require.NoError(t, err)
		row := row
		require.NoError(t, f.SetSheetRow(sheet, cell, &row))
	}
	var buf bytes.Buffer
	_, err := f.WriteTo(&buf)
	require.NoError(t, err)
	return &buf
}

func TestParseCurriculum(t *testing.T) {
	buf := workbook(t,
		[]interface{}{"Chapter Number", "Chapter Name", "Topic Name", "Subtopic Name"},
		[]interface{}{1, "Kinematics", "Motion in 1D", "Uniform motion"},
		[]interface{}{1, "Kinematics", "Motion in 1D", "Relative velocity"},
		[]interface{}{2, "Laws of Motion"},
		[]interface{}{"two", "Bad number"},
		[]interface{}{3, ""},
		[]interface{}{4, "Work", "", "Orphan"},
	)

	rows, issues, err := ParseCurriculum(buf)
	require.NoError(t, err)

	require.Len(t, rows, 3)
	assert.Equal(t, CurriculumRow{Row: 2, ChapterNumber: 1, ChapterName: "Kinematics", TopicName: "Motion in 1D", SubtopicName: "Uniform motion"}, rows[0])
	assert.Equal(t, CurriculumRow{Row: 4, ChapterNumber: 2, ChapterName: "Laws of Motion"}, rows[2])
	assert.Equal(t, []RowIssue{
		{Row: 5, Reason: "chapter_number must be a positive whole number"},
		{Row: 6, Reason: "chapter_name is empty"},
		{Row: 7, Reason: "subtopic given without a topic"},
	}, issues)
}

func TestParseCurriculumMissingColumns(t *testing.T) {
	_, _, err := ParseCurriculum(workbook(t, []interface{}{"chapter_name"}))
	assert.EqualError(t, err, "missing required columns: chapter_number")
}

func TestParseQuestions(t *testing.T) {
	buf := workbook(t,
		[]interface{}{"chapter_number", "topic_name", "kind", "text", "option_a", "option_b", "option_c", "answer", "difficulty"},
		[]interface{}{1, "Motion in 1D", "single", "Speed is a", "scalar", "vector", "", "a", "easy"},
		[]interface{}{1, "", "multiple", "Pick vectors", "force", "mass", "velocity", "A, C", "medium"},
		[]interface{}{2, "", "integer", "Find n", "", "", "", "25", "hard"},
		[]interface{}{"", "", "essay", "Explain", "", "", "", "x", ""},
		[]interface{}{"", "Dangling", "numeric", "x?", "", "", "", "1", ""},
	)

	rows, issues, err := ParseQuestions(buf)
	require.NoError(t, err)

	require.Len(t, rows, 3)
	assert.Equal(t, 1, rows[0].ChapterNumber)
	assert.Equal(t, "Motion in 1D", rows[0].TopicName)
	assert.Equal(t, []models.Option{{Key: "A", Text: "scalar"}, {Key: "B", Text: "vector"}}, rows[0].Question.Options)
	assert.Equal(t, []string{"A"}, rows[0].Question.Answers)
	assert.Equal(t, []string{"A", "C"}, rows[1].Question.Answers)
	assert.Len(t, rows[1].Question.Options, 3)
	assert.Equal(t, models.KindInteger, rows[2].Question.Kind)
	assert.Nil(t, rows[2].Question.Options)

	require.Len(t, issues, 2)
	assert.Equal(t, 5, issues[0].Row)
	assert.Equal(t, "topic_name given without chapter_number", issues[1].Reason)
}

func TestWriteQuestionsRoundTrip(t *testing.T) {
	in := []QuestionRow{
		{ChapterNumber: 3, TopicName: "Limits", Question: models.Question{
			Kind: models.KindMultiple, Text: "Which hold?",
			Options: []models.Option{{Key: "A", Text: "p"}, {Key: "B", Text: "q"}, {Key: "C", Text: "r"}},
			Answers: []string{"A", "C"}, Difficulty: "hard",
		}},
		{Question: models.Question{Kind: models.KindNumeric, Text: "Half?", Answers: []string{"0.5", `\frac{1}{2}`}}},
	}

	var buf bytes.Buffer
	require.NoError(t, WriteQuestions(&buf, in))

	out, issues, err := ParseQuestions(&buf)
	require.NoError(t, err)
	assert.Empty(t, issues)
	require.Len(t, out, 2)
	assert.Equal(t, 3, out[0].ChapterNumber)
	assert.Equal(t, in[0].Question.Options, out[0].Question.Options)
	assert.Equal(t, in[0].Question.Answers, out[0].Question.Answers)
	assert.Equal(t, in[1].Question.Answers, out[1].Question.Answers)
}

func TestWriteResults(t *testing.T) {
	results := []models.Result{{
		AttemptID: "a1", StudentID: "s1",
		SubmittedAt: time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC),
		Grade:       models.Grade{Score: 12, MaxScore: 16, Correct: 3, Incorrect: 0, Unattempted: 1, Accuracy: 100},
	}}
	var buf bytes.Buffer
	require.NoError(t, WriteResults(&buf, results))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows(resultsSheet)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "student_id", rows[0][0])
	assert.Equal(t, []string{"s1", "a1", "2024-05-01T10:00:00Z", "FALSE", "12", "16", "3", "0", "0", "1", "100"}, rows[1])
}
