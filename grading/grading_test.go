package grading

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pyqtest-server-go/models"
)

type fakeComparer struct {
	mu    sync.Mutex
	calls int
	equal map[string]bool // user answer -> verdict
	err   error
}

func (f *fakeComparer) CompareMathAnswers(_ context.Context, user, _, _ string) (bool, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	if f.err != nil {
		return false, f.err
	}
	return f.equal[user], nil
}

func samplePaper() []models.Question {
	return []models.Question{
		{ID: "q1", ChapterID: "ch1", Kind: models.KindSingle, Answers: []string{"B"}},
		{ID: "q2", ChapterID: "ch1", Kind: models.KindMultiple, Answers: []string{"A", "C"}},
		{ID: "q3", ChapterID: "ch2", Kind: models.KindInteger, Answers: []string{"25"}},
		{ID: "q4", ChapterID: "ch2", Kind: models.KindNumeric, Answers: []string{`\frac{1}{2}`}},
	}
}

func TestGradeLexical(t *testing.T) {
	g := New()
	scheme := models.MarkingScheme{Correct: 4, Negative: 1}
	responses := map[string]models.Response{
		"q1": {Options: []string{"b"}},
		"q2": {Options: []string{"A", "C"}},
		"q3": {Value: "$25$"},
		"q4": {Value: "$(1)/(2)$"},
	}

	grade, err := g.Grade(context.Background(), scheme, samplePaper(), responses)
	require.NoError(t, err)

	assert.Equal(t, 16.0, grade.Score)
	assert.Equal(t, 16.0, grade.MaxScore)
	assert.Equal(t, 4, grade.Correct)
	assert.Equal(t, 100.0, grade.Accuracy)
	for _, v := range grade.Verdicts {
		assert.Equal(t, models.VerdictCorrect, v.Status, v.QuestionID)
	}
	assert.Equal(t, models.MatchedLexical, grade.Verdicts[2].MatchedBy)
	assert.Empty(t, grade.Verdicts[0].MatchedBy)
}

func TestGradeNegativeAndUnattempted(t *testing.T) {
	g := New()
	scheme := models.MarkingScheme{Correct: 4, Negative: 1}
	responses := map[string]models.Response{
		"q1": {Options: []string{"A"}},
		"q3": {Value: "24"},
		"q4": {Value: "   "},
	}

	grade, err := g.Grade(context.Background(), scheme, samplePaper(), responses)
	require.NoError(t, err)

	assert.Equal(t, -1.0, grade.Score)
	assert.Equal(t, 2, grade.Incorrect)
	assert.Equal(t, 2, grade.Unattempted)
	assert.Equal(t, 0.0, grade.Accuracy)
	assert.Equal(t, -1.0, grade.Verdicts[0].Awarded)
	assert.Equal(t, 0.0, grade.Verdicts[2].Awarded, "free-text answers carry no penalty by default")
	assert.Equal(t, models.VerdictUnattempted, grade.Verdicts[3].Status)
}

func TestGradeSingleRejectsMultiplePicks(t *testing.T) {
	grade, err := New().Grade(context.Background(), models.DefaultScheme, samplePaper()[:1],
		map[string]models.Response{"q1": {Options: []string{"B", "C"}}})
	require.NoError(t, err)
	assert.Equal(t, models.VerdictIncorrect, grade.Verdicts[0].Status)
}

func TestGradeMultiplePartial(t *testing.T) {
	questions := samplePaper()[1:2]
	responses := map[string]models.Response{"q2": {Options: []string{"A"}}}

	t.Run("enabled", func(t *testing.T) {
		scheme := models.MarkingScheme{Correct: 4, Negative: 2, PartialMultiple: true}
		grade, err := New().Grade(context.Background(), scheme, questions, responses)
		require.NoError(t, err)
		assert.Equal(t, models.VerdictPartial, grade.Verdicts[0].Status)
		assert.Equal(t, 2.0, grade.Score)
		assert.Equal(t, 1, grade.Partial)
	})

	t.Run("disabled", func(t *testing.T) {
		scheme := models.MarkingScheme{Correct: 4, Negative: 2}
		grade, err := New().Grade(context.Background(), scheme, questions, responses)
		require.NoError(t, err)
		assert.Equal(t, models.VerdictIncorrect, grade.Verdicts[0].Status)
		assert.Equal(t, -2.0, grade.Score)
	})

	t.Run("wrong key voids partial", func(t *testing.T) {
		scheme := models.MarkingScheme{Correct: 4, Negative: 2, PartialMultiple: true}
		grade, err := New().Grade(context.Background(), scheme, questions,
			map[string]models.Response{"q2": {Options: []string{"A", "D"}}})
		require.NoError(t, err)
		assert.Equal(t, models.VerdictIncorrect, grade.Verdicts[0].Status)
	})
}

func TestGradeFallsBackToComparer(t *testing.T) {
	cmp := &fakeComparer{equal: map[string]bool{"0.5": true}}
	g := New(WithComparer(cmp), WithWorkers(2))
	responses := map[string]models.Response{
		"q3": {Value: "25"},  // lexical, no remote call
		"q4": {Value: "0.5"}, // remote says equal
	}

	grade, err := g.Grade(context.Background(), models.DefaultScheme, samplePaper(), responses)
	require.NoError(t, err)

	assert.Equal(t, 1, cmp.calls)
	assert.Equal(t, models.VerdictCorrect, grade.Verdicts[3].Status)
	assert.Equal(t, models.MatchedAI, grade.Verdicts[3].MatchedBy)
	assert.Equal(t, 8.0, grade.Score)
}

func TestGradeComparerFailureIsNoted(t *testing.T) {
	cmp := &fakeComparer{err: errors.New("edge function returned 500")}
	g := New(WithComparer(cmp))

	grade, err := g.Grade(context.Background(), models.DefaultScheme, samplePaper(),
		map[string]models.Response{"q4": {Value: "0.5"}})
	require.NoError(t, err)

	v := grade.Verdicts[3]
	assert.Equal(t, models.VerdictIncorrect, v.Status)
	assert.Contains(t, v.Note, "edge function returned 500")
}

func TestGradeCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	cmp := &fakeComparer{err: context.Canceled}

	_, err := New(WithComparer(cmp)).Grade(ctx, models.DefaultScheme, samplePaper(),
		map[string]models.Response{"q4": {Value: "0.5"}})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestGradeChapterBreakdown(t *testing.T) {
	responses := map[string]models.Response{
		"q1": {Options: []string{"B"}},
		"q3": {Value: "7"},
	}
	grade, err := New().Grade(context.Background(), models.DefaultScheme, samplePaper(), responses)
	require.NoError(t, err)

	require.Len(t, grade.Chapters, 2)
	assert.Equal(t, models.ChapterScore{ChapterID: "ch1", Total: 2, Attempted: 1, Correct: 1, Score: 4}, grade.Chapters[0])
	assert.Equal(t, models.ChapterScore{ChapterID: "ch2", Total: 2, Attempted: 1, Correct: 0, Score: 0}, grade.Chapters[1])
	assert.Equal(t, 50.0, grade.Accuracy)
}
