package db

import (
	"context"
	"errors"
	"fmt"

	"github.com/go-redis/redis/v8"

	"pyqtest-server-go/models"
)

// SeedIfEmpty adds a sample subject, curriculum, question bank and paper when
// the store holds no subjects yet. It reports whether seeding happened.
func (s *RedisService) SeedIfEmpty(ctx context.Context) (bool, error) {
	count, err := s.Client.SCard(ctx, subjectsKey).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return false, fmt.Errorf("could not check for existing data (key %s): %w", subjectsKey, err)
	}
	if count > 0 {
		s.log.Info("existing data found, skipping seed", "key", subjectsKey, "count", count)
		return false, nil
	}
	s.log.Info("no subjects found, adding sample data", "key", subjectsKey)
	if err := s.seedInitialData(ctx); err != nil {
		return false, err
	}
	return true, nil
}

func (s *RedisService) seedInitialData(ctx context.Context) error {
	subject, err := s.AddSubject(ctx, models.Subject{Name: "Mathematics", Code: "MATH"})
	if err != nil {
		return fmt.Errorf("seed subject: %w", err)
	}

	chapters := []struct {
		number int
		name   string
		topics []string
	}{
		{1, "Sets, Relations and Functions", []string{"Sets", "Functions"}},
		{2, "Complex Numbers and Quadratic Equations", []string{"Quadratic Equations"}},
		{3, "Integral Calculus", []string{"Definite Integrals"}},
	}
	chapterIDs := map[int]string{}
	topicIDs := map[string]string{}
	for _, c := range chapters {
		ch, err := s.AddChapter(ctx, models.Chapter{SubjectID: subject.ID, Number: c.number, Name: c.name})
		if err != nil {
			return fmt.Errorf("seed chapter %d: %w", c.number, err)
		}
		chapterIDs[c.number] = ch.ID
		for _, name := range c.topics {
			t, err := s.AddTopic(ctx, models.Topic{ChapterID: ch.ID, Name: name})
			if err != nil {
				return fmt.Errorf("seed topic %q: %w", name, err)
			}
			topicIDs[name] = t.ID
		}
	}

	questions := []models.Question{
		{
			ChapterID: chapterIDs[1], TopicID: topicIDs["Sets"], Kind: models.KindSingle,
			Text: "If $A = \\{1, 2, 3\\}$, how many subsets does $A$ have?",
			Options: []models.Option{{Text: "3"}, {Text: "6"}, {Text: "8"}, {Text: "9"}},
			Answers: []string{"C"}, Difficulty: "easy",
		},
		{
			ChapterID: chapterIDs[2], TopicID: topicIDs["Quadratic Equations"], Kind: models.KindMultiple,
			Text:    "Which of the following are roots of $x^2 - 5x + 6 = 0$?",
			Options: []models.Option{{Text: "1"}, {Text: "2"}, {Text: "3"}, {Text: "6"}},
			Answers: []string{"B", "C"}, Difficulty: "easy",
		},
		{
			ChapterID: chapterIDs[2], TopicID: topicIDs["Quadratic Equations"], Kind: models.KindInteger,
			Text:    "The sum of the roots of $2x^2 - 8x + 3 = 0$ is",
			Answers: []string{"4"}, Difficulty: "easy",
		},
		{
			ChapterID: chapterIDs[3], TopicID: topicIDs["Definite Integrals"], Kind: models.KindNumeric,
			Text:        "Evaluate $\\int_0^{\\pi/2} \\sin x \\cos x \\, dx$.",
			Answers:     []string{"\\frac{1}{2}", "0.5"},
			Difficulty:  "medium",
			Explanation: "Substitute $u = \\sin x$.",
		},
	}
	ids := make([]string, 0, len(questions))
	for i, q := range questions {
		q.SubjectID = subject.ID
		q.Source = "Sample paper"
		saved, err := s.AddQuestion(ctx, q)
		if err != nil {
			return fmt.Errorf("seed question %d: %w", i+1, err)
		}
		ids = append(ids, saved.ID)
	}

	paper, err := s.AddPaper(ctx, models.Paper{
		SubjectID:       subject.ID,
		Title:           "Sample paper",
		Exam:            "JEE Main",
		Year:            2024,
		DurationMinutes: 30,
	})
	if err != nil {
		return fmt.Errorf("seed paper: %w", err)
	}
	if _, err := s.SetPaperQuestions(ctx, paper.ID, ids); err != nil {
		return fmt.Errorf("seed paper questions: %w", err)
	}
	s.log.Info("sample data added", "subject_id", subject.ID, "paper_id", paper.ID, "questions", len(ids))
	return nil
}
