package db

import (
	"context"
	"fmt"
	"strings"

	"pyqtest-server-go/apierr"
	"pyqtest-server-go/models"
)

func subjectPapersKey(subjectID string) string { return key(subjectPrefix, subjectID, "papers") }

// AddPaper stores a new previous year paper. A zero marking scheme falls back
// to models.DefaultScheme.
func (s *RedisService) AddPaper(ctx context.Context, p models.Paper) (models.Paper, error) {
	if strings.TrimSpace(p.Title) == "" {
		return models.Paper{}, apierr.Validationf("paper title cannot be empty")
	}
	if p.DurationMinutes <= 0 {
		return models.Paper{}, apierr.Validationf("paper duration must be positive")
	}
	if p.Scheme.Correct < 0 || p.Scheme.Negative < 0 || p.Scheme.NumericNegative < 0 {
		return models.Paper{}, apierr.Validationf("marking scheme values cannot be negative")
	}
	exists, err := s.SubjectExists(ctx, p.SubjectID)
	if err != nil {
		return models.Paper{}, err
	}
	if !exists {
		return models.Paper{}, notFound("subject", p.SubjectID)
	}
	if p.ID == "" {
		p.ID = s.newID()
	}
	if p.Scheme == (models.MarkingScheme{}) {
		p.Scheme = models.DefaultScheme
	}
	if p.QuestionIDs == nil {
		p.QuestionIDs = []string{}
	}
	p.ExtractionStatus = models.ExtractionNone
	p.CreatedAt = s.now()

	if err := s.setJSON(ctx, key(paperPrefix, p.ID), p); err != nil {
		return models.Paper{}, err
	}
	pipe := s.Client.TxPipeline()
	pipe.SAdd(ctx, papersKey, p.ID)
	pipe.SAdd(ctx, subjectPapersKey(p.SubjectID), p.ID)
	if _, err := pipe.Exec(ctx); err != nil {
		return models.Paper{}, fmt.Errorf("failed to index paper %s: %w", p.ID, err)
	}
	s.log.Info("added paper", "paper_id", p.ID, "title", p.Title, "year", p.Year)
	return p, nil
}

// GetPaper retrieves a paper by its ID
func (s *RedisService) GetPaper(ctx context.Context, paperID string) (models.Paper, error) {
	var p models.Paper
	found, err := s.getJSON(ctx, key(paperPrefix, paperID), &p)
	if err != nil {
		return models.Paper{}, err
	}
	if !found {
		return models.Paper{}, notFound("paper", paperID)
	}
	return p, nil
}

// ListPapers returns the papers of a subject, or all papers when subjectID is
// empty, newest year first.
func (s *RedisService) ListPapers(ctx context.Context, subjectID string) ([]models.Paper, error) {
	setKey := papersKey
	if subjectID != "" {
		setKey = subjectPapersKey(subjectID)
	}
	ids, err := s.Client.SMembers(ctx, setKey).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list papers: %w", err)
	}
	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = key(paperPrefix, id)
	}
	papers := make([]models.Paper, 0, len(ids))
	if err := s.getJSONMany(ctx, keys, appendDecoded(&papers)); err != nil {
		return nil, err
	}
	sortBy(papers, func(a, b models.Paper) bool {
		if a.Year != b.Year {
			return a.Year > b.Year
		}
		return a.Title < b.Title
	})
	return papers, nil
}

// SetPaperQuestions replaces the ordered question list of a paper. Every
// question must exist and belong to the paper's subject.
func (s *RedisService) SetPaperQuestions(ctx context.Context, paperID string, questionIDs []string) (models.Paper, error) {
	p, err := s.GetPaper(ctx, paperID)
	if err != nil {
		return models.Paper{}, err
	}
	seen := make(map[string]bool, len(questionIDs))
	ids := make([]string, 0, len(questionIDs))
	for _, id := range questionIDs {
		if seen[id] {
			return models.Paper{}, apierr.Validationf("question %s is listed twice", id)
		}
		seen[id] = true
		ids = append(ids, id)
	}
	questions, err := s.GetQuestions(ctx, ids)
	if err != nil {
		return models.Paper{}, err
	}
	if len(questions) != len(ids) {
		return models.Paper{}, apierr.Validationf("%d of the listed questions do not exist", len(ids)-len(questions))
	}
	for _, q := range questions {
		if q.SubjectID != p.SubjectID {
			return models.Paper{}, apierr.Validationf("question %s belongs to another subject", q.ID)
		}
	}
	p.QuestionIDs = ids
	if err := s.setJSON(ctx, key(paperPrefix, p.ID), p); err != nil {
		return models.Paper{}, err
	}
	return p, nil
}

// SetExtractionStatus records the outcome of AI question extraction
func (s *RedisService) SetExtractionStatus(ctx context.Context, paperID string, status models.ExtractionStatus, reason string) (models.Paper, error) {
	p, err := s.GetPaper(ctx, paperID)
	if err != nil {
		return models.Paper{}, err
	}
	p.ExtractionStatus = status
	p.ExtractionError = reason
	if err := s.setJSON(ctx, key(paperPrefix, p.ID), p); err != nil {
		return models.Paper{}, err
	}
	return p, nil
}

// PaperQuestions loads the questions of a paper in paper order
func (s *RedisService) PaperQuestions(ctx context.Context, p models.Paper) ([]models.Question, error) {
	return s.GetQuestions(ctx, p.QuestionIDs)
}

// DeletePaper removes a paper. Stored results of past attempts are kept.
func (s *RedisService) DeletePaper(ctx context.Context, paperID string) error {
	p, err := s.GetPaper(ctx, paperID)
	if err != nil {
		return err
	}
	pipe := s.Client.TxPipeline()
	pipe.Del(ctx, key(paperPrefix, paperID))
	pipe.SRem(ctx, papersKey, paperID)
	pipe.SRem(ctx, subjectPapersKey(p.SubjectID), paperID)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to delete paper %s: %w", paperID, err)
	}
	return nil
}

// AttachExtractedQuestions stores questions recovered from the paper PDF in
// the bank, appends them to the paper in order and marks extraction
// completed. On any failure the questions saved so far are removed from the
// bank and the paper is marked failed.
func (s *RedisService) AttachExtractedQuestions(ctx context.Context, paperID string, questions []models.Question) (models.Paper, error) {
	p, err := s.GetPaper(ctx, paperID)
	if err != nil {
		return models.Paper{}, err
	}
	ids := append([]string{}, p.QuestionIDs...)
	var saved []string
	for i, q := range questions {
		q.SubjectID = p.SubjectID
		if q.Source == "" {
			q.Source = p.Title
		}
		added, err := s.AddQuestion(ctx, q)
		if err != nil {
			return models.Paper{}, s.abandonExtraction(ctx, paperID, saved,
				fmt.Errorf("question %d of %d could not be saved: %w", i+1, len(questions), err))
		}
		saved = append(saved, added.ID)
		ids = append(ids, added.ID)
	}
	if _, err := s.SetPaperQuestions(ctx, paperID, ids); err != nil {
		return models.Paper{}, s.abandonExtraction(ctx, paperID, saved,
			fmt.Errorf("extracted questions could not be attached: %w", err))
	}
	return s.SetExtractionStatus(ctx, paperID, models.ExtractionCompleted, "")
}

func (s *RedisService) abandonExtraction(ctx context.Context, paperID string, saved []string, cause error) error {
	for _, id := range saved {
		if err := s.DeleteQuestion(ctx, id); err != nil {
			s.log.Error("failed to remove orphaned question", "paper_id", paperID, "question_id", id, "error", err)
		}
	}
	if _, err := s.SetExtractionStatus(ctx, paperID, models.ExtractionFailed, cause.Error()); err != nil {
		s.log.Error("failed to record extraction failure", "paper_id", paperID, "error", err)
	}
	return cause
}
