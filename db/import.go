package db

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"pyqtest-server-go/apierr"
	"pyqtest-server-go/models"
	"pyqtest-server-go/sheets"
)

// CurriculumImport summarises a curriculum spreadsheet import
type CurriculumImport struct {
	ChaptersCreated  int               `json:"chaptersCreated"`
	TopicsCreated    int               `json:"topicsCreated"`
	SubtopicsCreated int               `json:"subtopicsCreated"`
	Issues           []sheets.RowIssue `json:"issues"`
}

// QuestionImport summarises a question-bank spreadsheet import
type QuestionImport struct {
	Imported int               `json:"imported"`
	Issues   []sheets.RowIssue `json:"issues"`
}

// ImportCurriculum creates the chapters, topics and subtopics named by rows
// under a subject, reusing nodes that already exist. A row that cannot be
// applied is reported and skipped; only store failures abort the import.
func (s *RedisService) ImportCurriculum(ctx context.Context, subjectID string, rows []sheets.CurriculumRow) (CurriculumImport, error) {
	out := CurriculumImport{Issues: []sheets.RowIssue{}}
	if _, err := s.GetSubject(ctx, subjectID); err != nil {
		return out, err
	}

	for _, row := range rows {
		chapter, created, err := s.ensureChapter(ctx, subjectID, row.ChapterNumber, row.ChapterName)
		if err != nil {
			if issue, ok := rowIssue(row.Row, err); ok {
				out.Issues = append(out.Issues, issue)
				continue
			}
			return out, err
		}
		if created {
			out.ChaptersCreated++
		}
		if row.TopicName == "" {
			continue
		}

		topic, err := s.FindTopicByName(ctx, chapter.ID, row.TopicName)
		if errors.Is(err, apierr.ErrNotFound) {
			topic, err = s.AddTopic(ctx, models.Topic{ChapterID: chapter.ID, Name: row.TopicName})
			if err == nil {
				out.TopicsCreated++
			}
		}
		if err != nil {
			if issue, ok := rowIssue(row.Row, err); ok {
				out.Issues = append(out.Issues, issue)
				continue
			}
			return out, err
		}
		if row.SubtopicName == "" {
			continue
		}

		existing, err := s.GetSubtopicsByTopic(ctx, topic.ID)
		if err != nil {
			return out, err
		}
		if hasSubtopic(existing, row.SubtopicName) {
			continue
		}
		if _, err := s.AddSubtopic(ctx, models.Subtopic{TopicID: topic.ID, Name: row.SubtopicName}); err != nil {
			return out, err
		}
		out.SubtopicsCreated++
	}
	s.log.Info("curriculum import finished", "subject_id", subjectID,
		"chapters", out.ChaptersCreated, "topics", out.TopicsCreated, "subtopics", out.SubtopicsCreated, "issues", len(out.Issues))
	return out, nil
}

// ensureChapter returns the chapter with number, creating it when missing.
// An existing chapter under a different name is reported as a conflict.
func (s *RedisService) ensureChapter(ctx context.Context, subjectID string, number int, name string) (models.Chapter, bool, error) {
	ch, err := s.FindChapterByNumber(ctx, subjectID, number)
	if err == nil {
		if nameKey(ch.Name) != nameKey(name) {
			return models.Chapter{}, false, apierr.Conflictf("chapter %d is already named %q", number, ch.Name)
		}
		return ch, false, nil
	}
	if !errors.Is(err, apierr.ErrNotFound) {
		return models.Chapter{}, false, err
	}
	ch, err = s.AddChapter(ctx, models.Chapter{SubjectID: subjectID, Number: number, Name: name})
	if err != nil {
		return models.Chapter{}, false, err
	}
	return ch, true, nil
}

func hasSubtopic(subs []models.Subtopic, name string) bool {
	for _, st := range subs {
		if nameKey(st.Name) == nameKey(name) {
			return true
		}
	}
	return false
}

// rowIssue turns user-facing errors into a row issue. Store failures are not
// row issues.
func rowIssue(row int, err error) (sheets.RowIssue, bool) {
	var apiErr *apierr.Error
	if errors.As(err, &apiErr) || errors.Is(err, apierr.ErrConflict) || errors.Is(err, apierr.ErrNotFound) {
		return sheets.RowIssue{Row: row, Reason: err.Error()}, true
	}
	return sheets.RowIssue{}, false
}

// ImportQuestions adds question rows to a subject's bank. Chapters and topics
// are looked up by number and name and must already exist.
func (s *RedisService) ImportQuestions(ctx context.Context, subjectID string, rows []sheets.QuestionRow) (QuestionImport, error) {
	out := QuestionImport{Issues: []sheets.RowIssue{}}
	if _, err := s.GetSubject(ctx, subjectID); err != nil {
		return out, err
	}
	for _, row := range rows {
		q := row.Question
		q.SubjectID = subjectID
		if row.ChapterNumber > 0 {
			ch, err := s.FindChapterByNumber(ctx, subjectID, row.ChapterNumber)
			if err != nil {
				if issue, ok := rowIssue(row.Row, err); ok {
					out.Issues = append(out.Issues, issue)
					continue
				}
				return out, err
			}
			q.ChapterID = ch.ID
			if row.TopicName != "" {
				t, err := s.FindTopicByName(ctx, ch.ID, row.TopicName)
				if err != nil {
					if issue, ok := rowIssue(row.Row, err); ok {
						out.Issues = append(out.Issues, issue)
						continue
					}
					return out, err
				}
				q.TopicID = t.ID
			}
		}
		if _, err := s.AddQuestion(ctx, q); err != nil {
			if issue, ok := rowIssue(row.Row, err); ok {
				out.Issues = append(out.Issues, issue)
				continue
			}
			return out, fmt.Errorf("import question on row %d: %w", row.Row, err)
		}
		out.Imported++
	}
	s.log.Info("question import finished", "subject_id", subjectID, "imported", out.Imported, "issues", len(out.Issues))
	return out, nil
}

// ExportQuestionRows lists a subject's questions with their chapter number
// and topic name resolved, ready for sheets.WriteQuestions.
func (s *RedisService) ExportQuestionRows(ctx context.Context, subjectID string) ([]sheets.QuestionRow, error) {
	if _, err := s.GetSubject(ctx, subjectID); err != nil {
		return nil, err
	}
	questions, err := s.ListQuestions(ctx, QuestionFilter{SubjectID: subjectID})
	if err != nil {
		return nil, err
	}
	chapters := map[string]models.Chapter{}
	topics := map[string]models.Topic{}
	rows := make([]sheets.QuestionRow, 0, len(questions))
	for _, q := range questions {
		row := sheets.QuestionRow{Question: q}
		if q.ChapterID != "" {
			ch, ok := chapters[q.ChapterID]
			if !ok {
				if ch, err = s.GetChapter(ctx, q.ChapterID); err != nil && !errors.Is(err, apierr.ErrNotFound) {
					return nil, err
				}
				chapters[q.ChapterID] = ch
			}
			row.ChapterNumber = ch.Number
		}
		if q.TopicID != "" {
			t, ok := topics[q.TopicID]
			if !ok {
				if t, err = s.GetTopic(ctx, q.TopicID); err != nil && !errors.Is(err, apierr.ErrNotFound) {
					return nil, err
				}
				topics[q.TopicID] = t
			}
			row.TopicName = strings.TrimSpace(t.Name)
		}
		rows = append(rows, row)
	}
	return rows, nil
}
