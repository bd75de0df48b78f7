// Package extraction turns AI-extracted paper questions into question bank
// entries and reports which question numbers were recovered.
package extraction

import (
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"pyqtest-server-go/ai"
	"pyqtest-server-go/models"
)

var questionNumber = regexp.MustCompile(`\d+`)

// MaxQuestions is the highest question number a paper may carry.
const MaxQuestions = 500

var optionKeys = []string{"A", "B", "C", "D", "E", "F"}

// Report describes how complete an extraction was. The counts are shown to
// the admin, who decides whether to re-run extraction or fix gaps by hand.
type Report struct {
	Expected   int   `json:"expected"`
	Recovered  int   `json:"recovered"`
	Missing    []int `json:"missing"`
	Duplicates []int `json:"duplicates"`
	Unnumbered int   `json:"unnumbered"`
	Invalid    int   `json:"invalid"`
}

// Complete reports whether every expected question was recovered.
func (r Report) Complete() bool {
	return len(r.Missing) == 0 && r.Recovered >= r.Expected
}

// Numbered is an extracted question with its parsed number.
type Numbered struct {
	Number   int
	Question models.Question
}

// ParseNumber reads the question number out of labels such as "Q.12",
// "12.", "(12)" or "Question 12". It returns 0 when no number is present.
func ParseNumber(label string) int {
	m := questionNumber.FindString(label)
	if m == "" {
		return 0
	}
	n, err := strconv.Atoi(m)
	if err != nil {
		return 0
	}
	return n
}

// Reconcile converts extracted questions for subjectID, keeps the first
// occurrence of each number, orders them by number and reports gaps
// against expected. expected <= 0 means the highest number seen, and
// expected is capped at MaxQuestions. Numbers above the cap count as
// invalid. When validate is set, questions it rejects count as invalid and
// missing.
func Reconcile(subjectID string, extracted []ai.ExtractedQuestion, expected int, validate func(*models.Question) error) ([]Numbered, Report) {
	var report Report
	seen := map[int]bool{}
	dup := map[int]bool{}
	out := make([]Numbered, 0, len(extracted))

	for _, eq := range extracted {
		n := ParseNumber(eq.Number)
		if n <= 0 {
			report.Unnumbered++
			continue
		}
		if n > MaxQuestions {
			report.Invalid++
			continue
		}
		if seen[n] {
			dup[n] = true
			continue
		}
		q, err := toQuestion(subjectID, eq)
		if err == nil && validate != nil {
			err = validate(&q)
		}
		if err != nil {
			report.Invalid++
			continue
		}
		seen[n] = true
		out = append(out, Numbered{Number: n, Question: q})
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Number < out[j].Number })

	if expected <= 0 && len(out) > 0 {
		expected = out[len(out)-1].Number
	}
	if expected > MaxQuestions {
		expected = MaxQuestions
	}
	report.Expected = expected
	report.Recovered = len(out)
	report.Missing = []int{}
	for n := 1; n <= expected; n++ {
		if !seen[n] {
			report.Missing = append(report.Missing, n)
		}
	}
	report.Duplicates = []int{}
	for n := range dup {
		report.Duplicates = append(report.Duplicates, n)
	}
	sort.Ints(report.Duplicates)
	return out, report
}

func toQuestion(subjectID string, eq ai.ExtractedQuestion) (models.Question, error) {
	text := strings.TrimSpace(eq.Text)
	if text == "" {
		return models.Question{}, fmt.Errorf("question %q has no text", eq.Number)
	}
	kind := models.QuestionKind(strings.ToLower(strings.TrimSpace(eq.Kind)))
	if !kind.Valid() {
		if len(eq.Options) > 0 {
			kind = models.KindSingle
		} else {
			kind = models.KindNumeric
		}
	}
	if !kind.FreeText() && len(eq.Options) > len(optionKeys) {
		return models.Question{}, fmt.Errorf("question %q has %d options", eq.Number, len(eq.Options))
	}

	q := models.Question{
		SubjectID: subjectID,
		Kind:      kind,
		Text:      text,
		Answers:   SplitAnswer(kind, eq.Answer),
	}
	if !kind.FreeText() {
		for i, o := range eq.Options {
			q.Options = append(q.Options, models.Option{Key: optionKeys[i], Text: strings.TrimSpace(o)})
		}
	}
	return q, nil
}

// AnswerSeparator separates alternative accepted free-text answers in a
// single cell, e.g. "0.5 || 1/2".
const AnswerSeparator = "||"

// SplitAnswer parses a raw answer cell. Objective answers may list several
// keys separated by commas or spaces ("A, C"); free-text answers are split
// on AnswerSeparator only.
func SplitAnswer(kind models.QuestionKind, raw string) []string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return []string{}
	}
	if kind.FreeText() {
		var answers []string
		for _, a := range strings.Split(raw, AnswerSeparator) {
			if a = strings.TrimSpace(a); a != "" {
				answers = append(answers, a)
			}
		}
		return answers
	}
	fields := strings.FieldsFunc(raw, func(r rune) bool {
		return r == ',' || r == ';' || r == ' ' || r == '/'
	})
	keys := make([]string, 0, len(fields))
	for _, f := range fields {
		keys = append(keys, strings.ToUpper(strings.Trim(f, "()")))
	}
	return keys
}
