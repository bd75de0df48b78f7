package db

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pyqtest-server-go/models"
	"pyqtest-server-go/sheets"
)

func TestImportCurriculumReusesNodes(t *testing.T) {
	s, _ := newTestService(t)
	ctx := context.Background()
	subject := mustSubject(t, s, "Maths")
	mustChapter(t, s, subject.ID, 1, "Algebra")

	rows := []sheets.CurriculumRow{
		{Row: 2, ChapterNumber: 1, ChapterName: "Algebra", TopicName: "Matrices", SubtopicName: "Inverse"},
		{Row: 3, ChapterNumber: 1, ChapterName: "algebra", TopicName: "matrices", SubtopicName: "Rank"},
		{Row: 4, ChapterNumber: 1, ChapterName: "Algebra", TopicName: "Matrices", SubtopicName: "inverse"},
		{Row: 5, ChapterNumber: 2, ChapterName: "Calculus"},
		{Row: 6, ChapterNumber: 2, ChapterName: "Vectors", TopicName: "Dot product"},
	}
	out, err := s.ImportCurriculum(ctx, subject.ID, rows)
	require.NoError(t, err)
	assert.Equal(t, 1, out.ChaptersCreated)
	assert.Equal(t, 1, out.TopicsCreated)
	assert.Equal(t, 2, out.SubtopicsCreated)
	require.Len(t, out.Issues, 1)
	assert.Equal(t, 6, out.Issues[0].Row)
	assert.Contains(t, out.Issues[0].Reason, `chapter 2 is already named "Calculus"`)

	chapters, err := s.GetChaptersBySubject(ctx, subject.ID)
	require.NoError(t, err)
	require.Len(t, chapters, 2)
	topics, err := s.GetTopicsByChapter(ctx, chapters[0].ID)
	require.NoError(t, err)
	require.Len(t, topics, 1)
	subs, err := s.GetSubtopicsByTopic(ctx, topics[0].ID)
	require.NoError(t, err)
	assert.Len(t, subs, 2)

	// Importing the same rows again creates nothing.
	again, err := s.ImportCurriculum(ctx, subject.ID, rows[:4])
	require.NoError(t, err)
	assert.Zero(t, again.ChaptersCreated+again.TopicsCreated+again.SubtopicsCreated)
	assert.Empty(t, again.Issues)
}

func TestImportQuestionsAndExport(t *testing.T) {
	s, _ := newTestService(t)
	ctx := context.Background()
	subject := mustSubject(t, s, "Maths")
	ch := mustChapter(t, s, subject.ID, 4, "Integrals")
	_, err := s.AddTopic(ctx, models.Topic{ChapterID: ch.ID, Name: "Definite"})
	require.NoError(t, err)

	rows := []sheets.QuestionRow{
		{Row: 2, ChapterNumber: 4, TopicName: "definite", Question: models.Question{
			Kind: models.KindNumeric, Text: `\int_0^1 x\,dx`, Answers: []string{`\frac{1}{2}`, "0.5"},
		}},
		{Row: 3, ChapterNumber: 9, Question: models.Question{Kind: models.KindInteger, Text: "x", Answers: []string{"1"}}},
		{Row: 4, ChapterNumber: 4, TopicName: "Indefinite", Question: models.Question{Kind: models.KindInteger, Text: "x", Answers: []string{"1"}}},
		{Row: 5, Question: models.Question{Kind: models.KindSingle, Text: "x", Options: []models.Option{{Text: "a"}, {Text: "b"}}, Answers: []string{"Z"}}},
		{Row: 6, Question: models.Question{Kind: models.KindSingle, Text: "Pick a", Options: []models.Option{{Text: "a"}, {Text: "b"}}, Answers: []string{"a"}}},
	}
	out, err := s.ImportQuestions(ctx, subject.ID, rows)
	require.NoError(t, err)
	assert.Equal(t, 2, out.Imported)
	require.Len(t, out.Issues, 3)
	assert.Equal(t, []int{3, 4, 5}, []int{out.Issues[0].Row, out.Issues[1].Row, out.Issues[2].Row})

	exported, err := s.ExportQuestionRows(ctx, subject.ID)
	require.NoError(t, err)
	require.Len(t, exported, 2)
	var withChapter sheets.QuestionRow
	for _, r := range exported {
		if r.ChapterNumber != 0 {
			withChapter = r
		}
	}
	assert.Equal(t, 4, withChapter.ChapterNumber)
	assert.Equal(t, "Definite", withChapter.TopicName)
	assert.Equal(t, []string{`\frac{1}{2}`, "0.5"}, withChapter.Question.Answers)
}
