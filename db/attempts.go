package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/goccy/go-json"

	"pyqtest-server-go/apierr"
	"pyqtest-server-go/models"
)

func paperAttemptsKey(paperID string) string     { return key(paperPrefix, paperID, "attempts") }
func paperResultsKey(paperID string) string      { return key(paperPrefix, paperID, "results") }
func studentAttemptsKey(studentID string) string { return key(studentPrefix, studentID, "attempts") }
func studentResultsKey(studentID string) string  { return key(studentPrefix, studentID, "results") }

// Grader scores responses; grading.Grader implements it.
type Grader interface {
	Grade(ctx context.Context, scheme models.MarkingScheme, questions []models.Question, responses map[string]models.Response) (models.Grade, error)
}

// StartAttempt opens a timed attempt of a paper for a student. The deadline
// is the start time plus the paper duration.
func (s *RedisService) StartAttempt(ctx context.Context, paperID, studentID string) (models.Attempt, error) {
	if studentID == "" {
		return models.Attempt{}, apierr.Validationf("student ID is required")
	}
	p, err := s.GetPaper(ctx, paperID)
	if err != nil {
		return models.Attempt{}, err
	}
	if len(p.QuestionIDs) == 0 {
		return models.Attempt{}, apierr.Validationf("paper %q has no questions yet", p.Title)
	}
	start := s.now()
	a := models.Attempt{
		ID:        s.newID(),
		PaperID:   p.ID,
		StudentID: studentID,
		Status:    models.AttemptInProgress,
		StartedAt: start,
		Deadline:  start.Add(time.Duration(p.DurationMinutes) * time.Minute),
		Responses: map[string]models.Response{},
	}
	if err := s.setJSON(ctx, key(attemptPrefix, a.ID), a); err != nil {
		return models.Attempt{}, err
	}
	pipe := s.Client.TxPipeline()
	pipe.SAdd(ctx, paperAttemptsKey(p.ID), a.ID)
	pipe.SAdd(ctx, studentAttemptsKey(studentID), a.ID)
	if _, err := pipe.Exec(ctx); err != nil {
		return models.Attempt{}, fmt.Errorf("failed to index attempt %s: %w", a.ID, err)
	}
	s.log.Info("attempt started", "attempt_id", a.ID, "paper_id", p.ID, "student", studentID)
	return a, nil
}

// GetAttempt retrieves an attempt by its ID
func (s *RedisService) GetAttempt(ctx context.Context, attemptID string) (models.Attempt, error) {
	var a models.Attempt
	found, err := s.getJSON(ctx, key(attemptPrefix, attemptID), &a)
	if err != nil {
		return models.Attempt{}, err
	}
	if !found {
		return models.Attempt{}, notFound("attempt", attemptID)
	}
	if a.Responses == nil {
		a.Responses = map[string]models.Response{}
	}
	return a, nil
}

// mergeResponses copies responses into a after checking they answer
// questions of the paper. An empty response clears the saved one.
func mergeResponses(a *models.Attempt, p models.Paper, responses map[string]models.Response) error {
	inPaper := make(map[string]bool, len(p.QuestionIDs))
	for _, id := range p.QuestionIDs {
		inPaper[id] = true
	}
	for qid, r := range responses {
		if !inPaper[qid] {
			return apierr.Validationf("question %s is not part of this paper", qid)
		}
		if len(r.Options) == 0 && r.Value == "" {
			delete(a.Responses, qid)
			continue
		}
		a.Responses[qid] = r
	}
	return nil
}

// saveRetries bounds how often SaveResponses re-reads an attempt that
// changed under it.
const saveRetries = 3

// SaveResponses stores in-progress answers. Saving is refused once the
// attempt is submitted or its deadline has passed. The attempt and its
// result key are watched so a save racing a submission cannot overwrite it.
func (s *RedisService) SaveResponses(ctx context.Context, attemptID string, responses map[string]models.Response) (models.Attempt, error) {
	attemptKey, resultKey := key(attemptPrefix, attemptID), key(resultPrefix, attemptID)
	var saved models.Attempt
	txf := func(tx *redis.Tx) error {
		data, err := tx.Get(ctx, attemptKey).Bytes()
		if errors.Is(err, redis.Nil) {
			return notFound("attempt", attemptID)
		}
		if err != nil {
			return fmt.Errorf("failed to read %s from Redis: %w", attemptKey, err)
		}
		var a models.Attempt
		if err := json.Unmarshal(data, &a); err != nil {
			return fmt.Errorf("decode %s: %w", attemptKey, err)
		}
		if a.Responses == nil {
			a.Responses = map[string]models.Response{}
		}
		locked, err := tx.Exists(ctx, resultKey).Result()
		if err != nil {
			return fmt.Errorf("failed to read %s from Redis: %w", resultKey, err)
		}
		if a.Status == models.AttemptSubmitted || locked > 0 {
			return apierr.Conflictf("this attempt has already been submitted")
		}
		if s.now().After(a.Deadline) {
			return apierr.Validationf("time is up for this attempt, submit it to see the result")
		}
		p, err := s.GetPaper(ctx, a.PaperID)
		if err != nil {
			return err
		}
		if err := mergeResponses(&a, p, responses); err != nil {
			return err
		}
		out, err := json.Marshal(a)
		if err != nil {
			return fmt.Errorf("encode %s: %w", attemptKey, err)
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, attemptKey, out, 0)
			return nil
		})
		if err != nil {
			return err
		}
		saved = a
		return nil
	}

	for i := 0; i < saveRetries; i++ {
		err := s.Client.Watch(ctx, txf, attemptKey, resultKey)
		if err == nil {
			return saved, nil
		}
		if !errors.Is(err, redis.TxFailedErr) {
			return models.Attempt{}, err
		}
		s.log.Debug("attempt changed while saving, retrying", "attempt_id", attemptID, "try", i+1)
	}
	return models.Attempt{}, apierr.Conflictf("this attempt changed while saving, please try again")
}

// SubmitAttempt merges final responses, grades the attempt and stores the
// result. A submission after the deadline is graded but flagged late. A
// second submission fails with ErrConflict.
func (s *RedisService) SubmitAttempt(ctx context.Context, attemptID string, responses map[string]models.Response, g Grader) (models.Result, error) {
	a, err := s.GetAttempt(ctx, attemptID)
	if err != nil {
		return models.Result{}, err
	}
	if a.Status == models.AttemptSubmitted {
		return models.Result{}, apierr.Conflictf("this attempt has already been submitted")
	}
	p, err := s.GetPaper(ctx, a.PaperID)
	if err != nil {
		return models.Result{}, err
	}
	if err := mergeResponses(&a, p, responses); err != nil {
		return models.Result{}, err
	}
	questions, err := s.PaperQuestions(ctx, p)
	if err != nil {
		return models.Result{}, err
	}

	grade, err := g.Grade(ctx, p.Scheme, questions, a.Responses)
	if err != nil {
		return models.Result{}, fmt.Errorf("grade attempt %s: %w", a.ID, err)
	}

	submitted := s.now()
	res := models.Result{
		AttemptID:   a.ID,
		PaperID:     p.ID,
		StudentID:   a.StudentID,
		SubmittedAt: submitted,
		Late:        submitted.After(a.Deadline),
		Grade:       grade,
	}
	data, err := json.Marshal(res)
	if err != nil {
		return models.Result{}, fmt.Errorf("encode result: %w", err)
	}
	// The result key doubles as the submission lock.
	ok, err := s.Client.SetNX(ctx, key(resultPrefix, a.ID), data, 0).Result()
	if err != nil {
		return models.Result{}, fmt.Errorf("failed to store result for attempt %s: %w", a.ID, err)
	}
	if !ok {
		return models.Result{}, apierr.Conflictf("this attempt has already been submitted")
	}

	a.Status = models.AttemptSubmitted
	a.SubmittedAt = &submitted
	a.Late = res.Late
	if err := s.setJSON(ctx, key(attemptPrefix, a.ID), a); err != nil {
		return models.Result{}, err
	}
	score := float64(submitted.UnixNano())
	pipe := s.Client.TxPipeline()
	pipe.ZAdd(ctx, studentResultsKey(a.StudentID), &redis.Z{Score: score, Member: a.ID})
	pipe.ZAdd(ctx, paperResultsKey(p.ID), &redis.Z{Score: score, Member: a.ID})
	if _, err := pipe.Exec(ctx); err != nil {
		return models.Result{}, fmt.Errorf("failed to index result for attempt %s: %w", a.ID, err)
	}
	s.log.Info("attempt submitted", "attempt_id", a.ID, "score", res.Score, "max", res.MaxScore, "late", res.Late)
	return res, nil
}

// GetResult retrieves the result of a submitted attempt
func (s *RedisService) GetResult(ctx context.Context, attemptID string) (models.Result, error) {
	var r models.Result
	found, err := s.getJSON(ctx, key(resultPrefix, attemptID), &r)
	if err != nil {
		return models.Result{}, err
	}
	if !found {
		return models.Result{}, notFound("result for attempt", attemptID)
	}
	return r, nil
}

func (s *RedisService) resultsIn(ctx context.Context, zsetKey string) ([]models.Result, error) {
	ids, err := s.Client.ZRevRange(ctx, zsetKey, 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list results: %w", err)
	}
	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = key(resultPrefix, id)
	}
	results := make([]models.Result, 0, len(ids))
	if err := s.getJSONMany(ctx, keys, appendDecoded(&results)); err != nil {
		return nil, err
	}
	return results, nil
}

// ListResultsByStudent returns a student's results, newest first
func (s *RedisService) ListResultsByStudent(ctx context.Context, studentID string) ([]models.Result, error) {
	return s.resultsIn(ctx, studentResultsKey(studentID))
}

// ListResultsByPaper returns all results of a paper, newest first
func (s *RedisService) ListResultsByPaper(ctx context.Context, paperID string) ([]models.Result, error) {
	return s.resultsIn(ctx, paperResultsKey(paperID))
}

// StudentAnalytics aggregates all results of a student. Chapter accuracy is
// the share of attempted questions answered fully correct.
func (s *RedisService) StudentAnalytics(ctx context.Context, studentID string) (models.StudentAnalytics, error) {
	results, err := s.ListResultsByStudent(ctx, studentID)
	if err != nil {
		return models.StudentAnalytics{}, err
	}
	out := models.StudentAnalytics{StudentID: studentID, Chapters: []models.ChapterAccuracy{}}
	chapterIdx := map[string]int{}
	var pctSum float64
	for _, r := range results {
		out.Tests++
		var pct float64
		if r.MaxScore > 0 {
			pct = r.Score * 100 / r.MaxScore
		}
		pctSum += pct
		if out.Tests == 1 || pct > out.BestPct {
			out.BestPct = pct
		}
		for _, cs := range r.Chapters {
			i, ok := chapterIdx[cs.ChapterID]
			if !ok {
				i = len(out.Chapters)
				chapterIdx[cs.ChapterID] = i
				out.Chapters = append(out.Chapters, models.ChapterAccuracy{ChapterID: cs.ChapterID})
			}
			out.Chapters[i].Attempted += cs.Attempted
			out.Chapters[i].Correct += cs.Correct
		}
	}
	if out.Tests > 0 {
		out.AveragePct = round2(pctSum / float64(out.Tests))
		out.BestPct = round2(out.BestPct)
	}
	for i := range out.Chapters {
		c := &out.Chapters[i]
		if c.Attempted > 0 {
			c.Accuracy = round2(float64(c.Correct) * 100 / float64(c.Attempted))
		}
	}
	sortBy(out.Chapters, func(a, b models.ChapterAccuracy) bool { return a.Accuracy < b.Accuracy })
	return out, nil
}
