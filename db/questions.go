package db

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"pyqtest-server-go/apierr"
	"pyqtest-server-go/models"
	"pyqtest-server-go/normalize"
)

var canonicalInteger = regexp.MustCompile(`^[+-]?\d+$`)

func subjectQuestionsKey(subjectID string) string { return key(subjectPrefix, subjectID, "questions") }
func chapterQuestionsKey(chapterID string) string { return key(chapterPrefix, chapterID, "questions") }
func topicQuestionsKey(topicID string) string     { return key(topicPrefix, topicID, "questions") }

// QuestionFilter narrows ListQuestions. The most specific non-empty field wins.
type QuestionFilter struct {
	SubjectID string
	ChapterID string
	TopicID   string
}

// ValidateQuestion checks the shape of q and fills in missing option keys.
func ValidateQuestion(q *models.Question) error {
	if !q.Kind.Valid() {
		return apierr.Validationf("unknown question kind %q", q.Kind)
	}
	if strings.TrimSpace(q.Text) == "" {
		return apierr.Validationf("question text cannot be empty")
	}
	answers := q.Answers[:0:0]
	for _, a := range q.Answers {
		if a = strings.TrimSpace(a); a != "" {
			answers = append(answers, a)
		}
	}
	q.Answers = answers
	if len(q.Answers) == 0 {
		return apierr.Validationf("question needs at least one correct answer")
	}

	if q.Kind.FreeText() {
		q.Options = nil
		if q.Kind == models.KindInteger {
			for _, a := range q.Answers {
				if !canonicalInteger.MatchString(normalize.Canonical(a)) {
					return apierr.Validationf("answer %q is not an integer", a)
				}
			}
		}
		return nil
	}

	if len(q.Options) < 2 {
		return apierr.Validationf("%s question needs at least two options", q.Kind)
	}
	keys := make(map[string]bool, len(q.Options))
	for i := range q.Options {
		k := strings.ToUpper(strings.TrimSpace(q.Options[i].Key))
		if k == "" {
			k = string(rune('A' + i))
		}
		if keys[k] {
			return apierr.Validationf("duplicate option key %q", k)
		}
		keys[k] = true
		q.Options[i].Key = k
	}
	for i, a := range q.Answers {
		a = strings.ToUpper(a)
		if !keys[a] {
			return apierr.Validationf("answer %q is not one of the options", a)
		}
		q.Answers[i] = a
	}
	if q.Kind == models.KindSingle && len(q.Answers) != 1 {
		return apierr.Validationf("single-choice question must have exactly one answer")
	}
	return nil
}

// checkQuestionRefs verifies that the curriculum nodes q points at exist and
// belong together.
func (s *RedisService) checkQuestionRefs(ctx context.Context, q models.Question) error {
	exists, err := s.SubjectExists(ctx, q.SubjectID)
	if err != nil {
		return err
	}
	if !exists {
		return notFound("subject", q.SubjectID)
	}
	if q.ChapterID != "" {
		ch, err := s.GetChapter(ctx, q.ChapterID)
		if err != nil {
			return err
		}
		if ch.SubjectID != q.SubjectID {
			return apierr.Validationf("chapter %s does not belong to subject %s", ch.ID, q.SubjectID)
		}
	}
	if q.TopicID != "" {
		t, err := s.GetTopic(ctx, q.TopicID)
		if err != nil {
			return err
		}
		if t.ChapterID != q.ChapterID {
			return apierr.Validationf("topic %s does not belong to chapter %s", t.ID, q.ChapterID)
		}
	}
	if q.SubtopicID != "" {
		st, err := s.GetSubtopic(ctx, q.SubtopicID)
		if err != nil {
			return err
		}
		if st.TopicID != q.TopicID {
			return apierr.Validationf("subtopic %s does not belong to topic %s", st.ID, q.TopicID)
		}
	}
	return nil
}

// AddQuestion validates and stores a question in the bank
func (s *RedisService) AddQuestion(ctx context.Context, q models.Question) (models.Question, error) {
	if err := ValidateQuestion(&q); err != nil {
		return models.Question{}, err
	}
	if err := s.checkQuestionRefs(ctx, q); err != nil {
		return models.Question{}, err
	}
	if q.ID == "" {
		q.ID = s.newID()
	}
	q.CreatedAt = s.now()
	if err := s.saveQuestion(ctx, q, nil); err != nil {
		return models.Question{}, err
	}
	return q, nil
}

// saveQuestion writes q and moves its index entries away from prev, if any
func (s *RedisService) saveQuestion(ctx context.Context, q models.Question, prev *models.Question) error {
	if err := s.setJSON(ctx, key(questionPrefix, q.ID), q); err != nil {
		return err
	}
	pipe := s.Client.TxPipeline()
	if prev != nil {
		if prev.ChapterID != "" {
			pipe.SRem(ctx, chapterQuestionsKey(prev.ChapterID), q.ID)
		}
		if prev.TopicID != "" {
			pipe.SRem(ctx, topicQuestionsKey(prev.TopicID), q.ID)
		}
	}
	pipe.SAdd(ctx, subjectQuestionsKey(q.SubjectID), q.ID)
	if q.ChapterID != "" {
		pipe.SAdd(ctx, chapterQuestionsKey(q.ChapterID), q.ID)
	}
	if q.TopicID != "" {
		pipe.SAdd(ctx, topicQuestionsKey(q.TopicID), q.ID)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to index question %s: %w", q.ID, err)
	}
	return nil
}

// GetQuestion retrieves a question by its ID
func (s *RedisService) GetQuestion(ctx context.Context, questionID string) (models.Question, error) {
	var q models.Question
	found, err := s.getJSON(ctx, key(questionPrefix, questionID), &q)
	if err != nil {
		return models.Question{}, err
	}
	if !found {
		return models.Question{}, notFound("question", questionID)
	}
	return q, nil
}

// GetQuestions loads questions by ID in the given order. Missing questions
// are skipped.
func (s *RedisService) GetQuestions(ctx context.Context, ids []string) ([]models.Question, error) {
	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = key(questionPrefix, id)
	}
	questions := make([]models.Question, 0, len(ids))
	if err := s.getJSONMany(ctx, keys, appendDecoded(&questions)); err != nil {
		return nil, err
	}
	return questions, nil
}

// ListQuestions returns the questions matching f, oldest first
func (s *RedisService) ListQuestions(ctx context.Context, f QuestionFilter) ([]models.Question, error) {
	var setKey string
	switch {
	case f.TopicID != "":
		setKey = topicQuestionsKey(f.TopicID)
	case f.ChapterID != "":
		setKey = chapterQuestionsKey(f.ChapterID)
	case f.SubjectID != "":
		setKey = subjectQuestionsKey(f.SubjectID)
	default:
		return nil, apierr.Validationf("a subject, chapter or topic is required")
	}
	ids, err := s.Client.SMembers(ctx, setKey).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list questions: %w", err)
	}
	questions, err := s.GetQuestions(ctx, ids)
	if err != nil {
		return nil, err
	}
	sortBy(questions, func(a, b models.Question) bool {
		if a.CreatedAt.Equal(b.CreatedAt) {
			return a.ID < b.ID
		}
		return a.CreatedAt.Before(b.CreatedAt)
	})
	return questions, nil
}

// UpdateQuestion replaces a question's content. The subject cannot change.
func (s *RedisService) UpdateQuestion(ctx context.Context, q models.Question) (models.Question, error) {
	prev, err := s.GetQuestion(ctx, q.ID)
	if err != nil {
		return models.Question{}, err
	}
	q.SubjectID = prev.SubjectID
	q.CreatedAt = prev.CreatedAt
	if err := ValidateQuestion(&q); err != nil {
		return models.Question{}, err
	}
	if err := s.checkQuestionRefs(ctx, q); err != nil {
		return models.Question{}, err
	}
	if err := s.saveQuestion(ctx, q, &prev); err != nil {
		return models.Question{}, err
	}
	return q, nil
}

// DeleteQuestion removes a question from the bank. Papers that reference it
// skip it from then on.
func (s *RedisService) DeleteQuestion(ctx context.Context, questionID string) error {
	q, err := s.GetQuestion(ctx, questionID)
	if err != nil {
		return err
	}
	pipe := s.Client.TxPipeline()
	pipe.Del(ctx, key(questionPrefix, questionID))
	pipe.SRem(ctx, subjectQuestionsKey(q.SubjectID), questionID)
	if q.ChapterID != "" {
		pipe.SRem(ctx, chapterQuestionsKey(q.ChapterID), questionID)
	}
	if q.TopicID != "" {
		pipe.SRem(ctx, topicQuestionsKey(q.TopicID), questionID)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to delete question %s: %w", questionID, err)
	}
	return nil
}
