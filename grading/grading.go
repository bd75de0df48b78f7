// Package grading scores a student's responses against a set of questions
// under a paper's marking scheme.
package grading

import (
	"context"
	"math"
	"strings"

	"golang.org/x/sync/errgroup"

	"pyqtest-server-go/logger"
	"pyqtest-server-go/models"
	"pyqtest-server-go/normalize"
)

// AnswerComparer decides equivalence of free-text answers that did not match
// lexically. The remote AI comparison endpoint implements it.
type AnswerComparer interface {
	CompareMathAnswers(ctx context.Context, user, correct, question string) (bool, error)
}

type Option func(*Grader)

func WithComparer(c AnswerComparer) Option { return func(g *Grader) { g.comparer = c } }
func WithWorkers(n int) Option             { return func(g *Grader) { g.workers = n } }
func WithLogger(l *logger.Logger) Option   { return func(g *Grader) { g.log = l } }

// Grader grades attempts. The zero configuration grades lexically only.
type Grader struct {
	comparer AnswerComparer
	workers  int
	log      *logger.Logger
}

func New(opts ...Option) *Grader {
	g := &Grader{workers: 4}
	for _, o := range opts {
		o(g)
	}
	if g.workers < 1 {
		g.workers = 1
	}
	if g.log == nil {
		g.log = logger.Nop()
	}
	return g
}

// Grade scores responses against questions. Questions without a response are
// unattempted. Comparer failures mark the answer incorrect and are noted on
// the verdict; only cancellation of ctx fails the whole run.
func (g *Grader) Grade(ctx context.Context, scheme models.MarkingScheme, questions []models.Question, responses map[string]models.Response) (models.Grade, error) {
	verdicts := make([]models.Verdict, len(questions))
	var pending []int
	for i, q := range questions {
		resp := responses[q.ID]
		v := models.Verdict{QuestionID: q.ID, ChapterID: q.ChapterID, Kind: q.Kind, Response: resp}
		switch {
		case !attempted(q.Kind, resp):
			v.Status = models.VerdictUnattempted
		case q.Kind.FreeText():
			if matchesAny(resp.Value, q.Answers) {
				v.Status = models.VerdictCorrect
				v.MatchedBy = models.MatchedLexical
			} else {
				v.Status = models.VerdictIncorrect
				if g.comparer != nil && len(q.Answers) > 0 {
					pending = append(pending, i)
				}
			}
		case q.Kind == models.KindMultiple:
			v.Status = gradeMultiple(resp.Options, q.Answers, scheme.PartialMultiple)
		default:
			v.Status = gradeSingle(resp.Options, q.Answers)
		}
		verdicts[i] = v
	}

	if len(pending) > 0 {
		if err := g.compareRemote(ctx, questions, verdicts, pending); err != nil {
			return models.Grade{}, err
		}
	}

	for i, q := range questions {
		verdicts[i].Awarded = award(scheme, q, verdicts[i])
	}
	return summarize(scheme, verdicts), nil
}

// compareRemote asks the comparer about each pending free-text verdict. Each
// goroutine writes only its own verdict slot.
func (g *Grader) compareRemote(ctx context.Context, questions []models.Question, verdicts []models.Verdict, pending []int) error {
	eg, egCtx := errgroup.WithContext(ctx)
	eg.SetLimit(g.workers)
	for _, idx := range pending {
		idx := idx
		eg.Go(func() error {
			q := questions[idx]
			v := &verdicts[idx]
			for _, correct := range q.Answers {
				ok, err := g.comparer.CompareMathAnswers(egCtx, v.Response.Value, correct, q.Text)
				if err != nil {
					if ctxErr := egCtx.Err(); ctxErr != nil {
						return ctxErr
					}
					g.log.Warn("answer comparison failed", "question_id", q.ID, "error", err)
					v.Note = "automatic comparison unavailable: " + err.Error()
					return nil
				}
				if ok {
					v.Status = models.VerdictCorrect
					v.MatchedBy = models.MatchedAI
					return nil
				}
			}
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return err
	}
	return ctx.Err()
}

func attempted(kind models.QuestionKind, resp models.Response) bool {
	if kind.FreeText() {
		return strings.TrimSpace(resp.Value) != ""
	}
	for _, o := range resp.Options {
		if strings.TrimSpace(o) != "" {
			return true
		}
	}
	return false
}

func matchesAny(value string, answers []string) bool {
	for _, a := range answers {
		if normalize.Equivalent(value, a) {
			return true
		}
	}
	return false
}

func gradeSingle(chosen, answers []string) models.VerdictStatus {
	picked := keySet(chosen)
	if len(picked) != 1 {
		return models.VerdictIncorrect
	}
	for k := range keySet(answers) {
		if picked[k] {
			return models.VerdictCorrect
		}
	}
	return models.VerdictIncorrect
}

func gradeMultiple(chosen, answers []string, partial bool) models.VerdictStatus {
	picked, correct := keySet(chosen), keySet(answers)
	hits := 0
	for k := range picked {
		if !correct[k] {
			return models.VerdictIncorrect
		}
		hits++
	}
	if hits == len(correct) {
		return models.VerdictCorrect
	}
	if partial && hits > 0 {
		return models.VerdictPartial
	}
	return models.VerdictIncorrect
}

func award(scheme models.MarkingScheme, q models.Question, v models.Verdict) float64 {
	switch v.Status {
	case models.VerdictCorrect:
		return scheme.Correct
	case models.VerdictPartial:
		picked, correct := keySet(v.Response.Options), keySet(q.Answers)
		return round2(scheme.Correct * float64(len(picked)) / float64(len(correct)))
	case models.VerdictIncorrect:
		if q.Kind.FreeText() {
			return penalty(scheme.NumericNegative)
		}
		return penalty(scheme.Negative)
	}
	return 0
}

func summarize(scheme models.MarkingScheme, verdicts []models.Verdict) models.Grade {
	grade := models.Grade{
		MaxScore: scheme.Correct * float64(len(verdicts)),
		Verdicts: verdicts,
		Chapters: []models.ChapterScore{},
	}
	chapterIdx := map[string]int{}
	for _, v := range verdicts {
		grade.Score += v.Awarded
		switch v.Status {
		case models.VerdictCorrect:
			grade.Correct++
		case models.VerdictIncorrect:
			grade.Incorrect++
		case models.VerdictPartial:
			grade.Partial++
		default:
			grade.Unattempted++
		}

		i, ok := chapterIdx[v.ChapterID]
		if !ok {
			i = len(grade.Chapters)
			chapterIdx[v.ChapterID] = i
			grade.Chapters = append(grade.Chapters, models.ChapterScore{ChapterID: v.ChapterID})
		}
		cs := &grade.Chapters[i]
		cs.Total++
		cs.Score += v.Awarded
		if v.Status != models.VerdictUnattempted {
			cs.Attempted++
		}
		if v.Status == models.VerdictCorrect {
			cs.Correct++
		}
	}
	grade.Score = round2(grade.Score)
	if n := len(verdicts) - grade.Unattempted; n > 0 {
		grade.Accuracy = round2(float64(grade.Correct) * 100 / float64(n))
	}
	return grade
}

func penalty(n float64) float64 {
	if n == 0 {
		return 0
	}
	return -n
}

func keySet(keys []string) map[string]bool {
	set := make(map[string]bool, len(keys))
	for _, k := range keys {
		k = strings.ToUpper(strings.TrimSpace(k))
		if k != "" {
			set[k] = true
		}
	}
	return set
}

func round2(f float64) float64 {
	return math.Round(f*100) / 100
}
