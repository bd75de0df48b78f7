package extraction

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pyqtest-server-go/ai"
	"pyqtest-server-go/models"
)

func TestParseNumber(t *testing.T) {
	tests := map[string]int{
		"Q.12":        12,
		"12.":         12,
		"(3)":         3,
		"Question 7a": 7,
		"":            0,
		"Q.":          0,
	}
	for in, want := range tests {
		assert.Equal(t, want, ParseNumber(in), in)
	}
}

func TestReconcile(t *testing.T) {
	extracted := []ai.ExtractedQuestion{
		{Number: "Q.3", Kind: "integer", Text: "Find n", Answer: "25"},
		{Number: "Q.1", Kind: "single", Text: "Pick one", Options: []string{"1", "2", "3", "4"}, Answer: "(b)"},
		{Number: "Q.1", Kind: "single", Text: "Duplicate", Options: []string{"x"}},
		{Number: "", Text: "No label"},
		{Number: "Q.5", Text: "   "},
		{Number: "Q.4", Kind: "multiple", Text: "Pick many", Options: []string{"a", "b", "c"}, Answer: "A, C"},
	}

	out, report := Reconcile("sub1", extracted, 5, nil)

	require.Len(t, out, 3)
	assert.Equal(t, []int{1, 3, 4}, []int{out[0].Number, out[1].Number, out[2].Number})
	assert.Equal(t, "Pick one", out[0].Question.Text)
	assert.Equal(t, []string{"B"}, out[0].Question.Answers)
	assert.Equal(t, "D", out[0].Question.Options[3].Key)
	assert.Equal(t, models.KindInteger, out[1].Question.Kind)
	assert.Equal(t, []string{"A", "C"}, out[2].Question.Answers)
	assert.Equal(t, "sub1", out[2].Question.SubjectID)

	assert.Equal(t, Report{
		Expected:   5,
		Recovered:  3,
		Missing:    []int{2, 5},
		Duplicates: []int{1},
		Unnumbered: 1,
		Invalid:    1,
	}, report)
	assert.False(t, report.Complete())
}

func TestReconcileInfersExpected(t *testing.T) {
	_, report := Reconcile("s", []ai.ExtractedQuestion{
		{Number: "1", Text: "a"},
		{Number: "2", Text: "b"},
	}, 0, nil)
	assert.Equal(t, 2, report.Expected)
	assert.Empty(t, report.Missing)
	assert.True(t, report.Complete())
}

func TestReconcileCapsQuestionNumbers(t *testing.T) {
	out, report := Reconcile("s", []ai.ExtractedQuestion{
		{Number: "1", Text: "a"},
		{Number: "2", Text: "b"},
		{Number: "Q.20000000", Text: "stray"},
	}, 0, nil)
	require.Len(t, out, 2)
	assert.Equal(t, 1, report.Invalid)
	assert.Equal(t, 2, report.Expected)
	assert.Empty(t, report.Missing)

	_, report = Reconcile("s", []ai.ExtractedQuestion{{Number: "1", Text: "a"}}, 20000000, nil)
	assert.Equal(t, MaxQuestions, report.Expected)
	assert.Len(t, report.Missing, MaxQuestions-1)
}

func TestReconcileGuessesKind(t *testing.T) {
	out, _ := Reconcile("s", []ai.ExtractedQuestion{
		{Number: "1", Text: "with options", Options: []string{"p", "q"}},
		{Number: "2", Text: "no options", Answer: `\frac{1}{2}`},
	}, 2, nil)
	assert.Equal(t, models.KindSingle, out[0].Question.Kind)
	assert.Equal(t, models.KindNumeric, out[1].Question.Kind)
	assert.Equal(t, []string{`\frac{1}{2}`}, out[1].Question.Answers)
}

func TestReconcileValidateRejects(t *testing.T) {
	noAnswer := errors.New("no answer")
	out, report := Reconcile("s", []ai.ExtractedQuestion{
		{Number: "1", Text: "a", Answer: "3"},
		{Number: "2", Text: "b"},
	}, 2, func(q *models.Question) error {
		if len(q.Answers) == 0 {
			return noAnswer
		}
		return nil
	})
	assert.Len(t, out, 1)
	assert.Equal(t, 1, report.Invalid)
	assert.Equal(t, []int{2}, report.Missing)
}

func TestSplitAnswer(t *testing.T) {
	assert.Equal(t, []string{"A", "C"}, SplitAnswer(models.KindMultiple, "a;c"))
	assert.Equal(t, []string{"2 x 3"}, SplitAnswer(models.KindNumeric, " 2 x 3 "))
	assert.Equal(t, []string{"0.5", `\frac{1}{2}`}, SplitAnswer(models.KindNumeric, `0.5 || \frac{1}{2}`))
	assert.Equal(t, []string{"|x|"}, SplitAnswer(models.KindNumeric, "|x|"))
	assert.Equal(t, []string{}, SplitAnswer(models.KindSingle, ""))
}
