package db

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/go-redis/redis/v8"

	"pyqtest-server-go/apierr"
	"pyqtest-server-go/models"
)

func subjectChaptersKey(subjectID string) string { return key(subjectPrefix, subjectID, "chapters") }
func chapterNumbersKey(subjectID string) string  { return key(subjectPrefix, subjectID, "chapter_numbers") }
func chapterTopicsKey(chapterID string) string   { return key(chapterPrefix, chapterID, "topics") }
func topicNamesKey(chapterID string) string      { return key(chapterPrefix, chapterID, "topic_names") }
func topicSubtopicsKey(topicID string) string    { return key(topicPrefix, topicID, "subtopics") }

func nameKey(name string) string { return strings.ToLower(strings.TrimSpace(name)) }

// --- Subjects ---

// AddSubject stores a new subject and returns it with its ID set
func (s *RedisService) AddSubject(ctx context.Context, subject models.Subject) (models.Subject, error) {
	if strings.TrimSpace(subject.Name) == "" {
		return models.Subject{}, apierr.Validationf("subject name cannot be empty")
	}
	if subject.ID == "" {
		subject.ID = s.newID()
	}
	subject.CreatedAt = s.now()

	pipe := s.Client.TxPipeline()
	pipe.SAdd(ctx, subjectsKey, subject.ID)
	pipe.HSet(ctx, key(subjectPrefix, subject.ID), subjectFields(subject))
	if _, err := pipe.Exec(ctx); err != nil {
		return models.Subject{}, fmt.Errorf("failed to add subject to Redis: %w", err)
	}
	s.log.Info("added subject", "subject_id", subject.ID, "name", subject.Name)
	return subject, nil
}

func subjectFields(subject models.Subject) map[string]interface{} {
	return map[string]interface{}{
		"id":        subject.ID,
		"name":      subject.Name,
		"code":      subject.Code,
		"createdAt": subject.CreatedAt.Format(time.RFC3339Nano),
	}
}

func subjectFromHash(data map[string]string) models.Subject {
	created, _ := time.Parse(time.RFC3339Nano, data["createdAt"])
	return models.Subject{
		ID:        data["id"],
		Name:      data["name"],
		Code:      data["code"],
		CreatedAt: created,
	}
}

// GetSubject retrieves a subject by its ID
func (s *RedisService) GetSubject(ctx context.Context, subjectID string) (models.Subject, error) {
	data, err := s.Client.HGetAll(ctx, key(subjectPrefix, subjectID)).Result()
	if err != nil {
		return models.Subject{}, fmt.Errorf("failed to get subject from Redis: %w", err)
	}
	if len(data) == 0 {
		return models.Subject{}, notFound("subject", subjectID)
	}
	return subjectFromHash(data), nil
}

// SubjectExists checks if a subject ID exists in the subjects set
func (s *RedisService) SubjectExists(ctx context.Context, subjectID string) (bool, error) {
	exists, err := s.Client.SIsMember(ctx, subjectsKey, subjectID).Result()
	if err != nil {
		return false, fmt.Errorf("failed to check subject existence: %w", err)
	}
	return exists, nil
}

// GetAllSubjects retrieves all subjects ordered by name
func (s *RedisService) GetAllSubjects(ctx context.Context) ([]models.Subject, error) {
	ids, err := s.Client.SMembers(ctx, subjectsKey).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to get subject IDs from Redis: %w", err)
	}
	hashes, err := s.hashesOf(ctx, subjectPrefix, ids)
	if err != nil {
		return nil, err
	}
	subjects := make([]models.Subject, 0, len(hashes))
	for _, h := range hashes {
		subjects = append(subjects, subjectFromHash(h))
	}
	sortBy(subjects, func(a, b models.Subject) bool { return a.Name < b.Name })
	return subjects, nil
}

// UpdateSubject changes the name and code of a subject
func (s *RedisService) UpdateSubject(ctx context.Context, subject models.Subject) (models.Subject, error) {
	if strings.TrimSpace(subject.Name) == "" {
		return models.Subject{}, apierr.Validationf("subject name cannot be empty")
	}
	current, err := s.GetSubject(ctx, subject.ID)
	if err != nil {
		return models.Subject{}, err
	}
	current.Name, current.Code = subject.Name, subject.Code
	if err := s.Client.HSet(ctx, key(subjectPrefix, current.ID), subjectFields(current)).Err(); err != nil {
		return models.Subject{}, fmt.Errorf("failed to update subject: %w", err)
	}
	return current, nil
}

// DeleteSubject removes a subject and its whole chapter tree
func (s *RedisService) DeleteSubject(ctx context.Context, subjectID string) error {
	if _, err := s.GetSubject(ctx, subjectID); err != nil {
		return err
	}
	chapterIDs, err := s.Client.ZRange(ctx, subjectChaptersKey(subjectID), 0, -1).Result()
	if err != nil {
		return fmt.Errorf("failed to list chapters of subject %s: %w", subjectID, err)
	}
	for _, id := range chapterIDs {
		if err := s.DeleteChapter(ctx, id); err != nil && !errors.Is(err, apierr.ErrNotFound) {
			return err
		}
	}
	pipe := s.Client.TxPipeline()
	pipe.SRem(ctx, subjectsKey, subjectID)
	pipe.Del(ctx, key(subjectPrefix, subjectID), subjectChaptersKey(subjectID), chapterNumbersKey(subjectID))
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to delete subject %s: %w", subjectID, err)
	}
	s.log.Info("deleted subject", "subject_id", subjectID, "chapters", len(chapterIDs))
	return nil
}

// --- Chapters ---

// AddChapter stores a chapter under its subject. The chapter number must be
// positive and unused within the subject.
func (s *RedisService) AddChapter(ctx context.Context, chapter models.Chapter) (models.Chapter, error) {
	if strings.TrimSpace(chapter.Name) == "" || chapter.Number <= 0 {
		return models.Chapter{}, apierr.Validationf("chapter name and a positive number are required")
	}
	exists, err := s.SubjectExists(ctx, chapter.SubjectID)
	if err != nil {
		return models.Chapter{}, err
	}
	if !exists {
		return models.Chapter{}, notFound("subject", chapter.SubjectID)
	}
	if chapter.ID == "" {
		chapter.ID = s.newID()
	}

	if err := s.claimChapterNumber(ctx, chapter.SubjectID, chapter.Number, chapter.ID); err != nil {
		return models.Chapter{}, err
	}
	pipe := s.Client.TxPipeline()
	pipe.ZAdd(ctx, subjectChaptersKey(chapter.SubjectID), &redis.Z{Score: float64(chapter.Number), Member: chapter.ID})
	pipe.HSet(ctx, key(chapterPrefix, chapter.ID), chapterFields(chapter))
	if _, err := pipe.Exec(ctx); err != nil {
		s.Client.HDel(ctx, chapterNumbersKey(chapter.SubjectID), strconv.Itoa(chapter.Number))
		return models.Chapter{}, fmt.Errorf("failed to add chapter to Redis: %w", err)
	}
	return chapter, nil
}

// claimChapterNumber reserves number for chapterID within a subject
func (s *RedisService) claimChapterNumber(ctx context.Context, subjectID string, number int, chapterID string) error {
	ok, err := s.Client.HSetNX(ctx, chapterNumbersKey(subjectID), strconv.Itoa(number), chapterID).Result()
	if err != nil {
		return fmt.Errorf("failed to reserve chapter number: %w", err)
	}
	if !ok {
		return apierr.Conflictf("a chapter with number %d already exists in this subject", number)
	}
	return nil
}

func chapterFields(c models.Chapter) map[string]interface{} {
	return map[string]interface{}{
		"id":        c.ID,
		"subjectId": c.SubjectID,
		"number":    c.Number,
		"name":      c.Name,
	}
}

func chapterFromHash(data map[string]string) models.Chapter {
	n, _ := strconv.Atoi(data["number"])
	return models.Chapter{
		ID:        data["id"],
		SubjectID: data["subjectId"],
		Number:    n,
		Name:      data["name"],
	}
}

// GetChapter retrieves a chapter by its ID
func (s *RedisService) GetChapter(ctx context.Context, chapterID string) (models.Chapter, error) {
	data, err := s.Client.HGetAll(ctx, key(chapterPrefix, chapterID)).Result()
	if err != nil {
		return models.Chapter{}, fmt.Errorf("failed to get chapter from Redis: %w", err)
	}
	if len(data) == 0 {
		return models.Chapter{}, notFound("chapter", chapterID)
	}
	return chapterFromHash(data), nil
}

// GetChaptersBySubject lists the chapters of a subject ordered by number
func (s *RedisService) GetChaptersBySubject(ctx context.Context, subjectID string) ([]models.Chapter, error) {
	ids, err := s.Client.ZRange(ctx, subjectChaptersKey(subjectID), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to get chapters of subject %s: %w", subjectID, err)
	}
	hashes, err := s.hashesOf(ctx, chapterPrefix, ids)
	if err != nil {
		return nil, err
	}
	chapters := make([]models.Chapter, 0, len(hashes))
	for _, h := range hashes {
		chapters = append(chapters, chapterFromHash(h))
	}
	return chapters, nil
}

// FindChapterByNumber returns the chapter of a subject with the given number
func (s *RedisService) FindChapterByNumber(ctx context.Context, subjectID string, number int) (models.Chapter, error) {
	id, err := s.Client.HGet(ctx, chapterNumbersKey(subjectID), strconv.Itoa(number)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return models.Chapter{}, apierr.NotFoundf("chapter %d not found in subject %s", number, subjectID)
		}
		return models.Chapter{}, fmt.Errorf("failed to look up chapter number: %w", err)
	}
	return s.GetChapter(ctx, id)
}

// UpdateChapter renames or renumbers a chapter
func (s *RedisService) UpdateChapter(ctx context.Context, chapter models.Chapter) (models.Chapter, error) {
	if strings.TrimSpace(chapter.Name) == "" || chapter.Number <= 0 {
		return models.Chapter{}, apierr.Validationf("chapter name and a positive number are required")
	}
	current, err := s.GetChapter(ctx, chapter.ID)
	if err != nil {
		return models.Chapter{}, err
	}
	if chapter.Number != current.Number {
		if err := s.claimChapterNumber(ctx, current.SubjectID, chapter.Number, current.ID); err != nil {
			return models.Chapter{}, err
		}
	}
	oldNumber := current.Number
	current.Name, current.Number = chapter.Name, chapter.Number

	pipe := s.Client.TxPipeline()
	pipe.HSet(ctx, key(chapterPrefix, current.ID), chapterFields(current))
	pipe.ZAdd(ctx, subjectChaptersKey(current.SubjectID), &redis.Z{Score: float64(current.Number), Member: current.ID})
	if oldNumber != current.Number {
		pipe.HDel(ctx, chapterNumbersKey(current.SubjectID), strconv.Itoa(oldNumber))
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return models.Chapter{}, fmt.Errorf("failed to update chapter %s: %w", current.ID, err)
	}
	return current, nil
}

// DeleteChapter removes a chapter with its topics and subtopics
func (s *RedisService) DeleteChapter(ctx context.Context, chapterID string) error {
	chapter, err := s.GetChapter(ctx, chapterID)
	if err != nil {
		return err
	}
	topicIDs, err := s.Client.ZRange(ctx, chapterTopicsKey(chapterID), 0, -1).Result()
	if err != nil {
		return fmt.Errorf("failed to list topics of chapter %s: %w", chapterID, err)
	}
	for _, id := range topicIDs {
		if err := s.DeleteTopic(ctx, id); err != nil && !errors.Is(err, apierr.ErrNotFound) {
			return err
		}
	}
	pipe := s.Client.TxPipeline()
	pipe.ZRem(ctx, subjectChaptersKey(chapter.SubjectID), chapterID)
	pipe.HDel(ctx, chapterNumbersKey(chapter.SubjectID), strconv.Itoa(chapter.Number))
	pipe.Del(ctx, key(chapterPrefix, chapterID), chapterTopicsKey(chapterID), topicNamesKey(chapterID))
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to delete chapter %s: %w", chapterID, err)
	}
	return nil
}

// --- Topics ---

// AddTopic stores a topic under its chapter. Topic names are unique within a
// chapter, compared case-insensitively. A zero Order appends the topic.
func (s *RedisService) AddTopic(ctx context.Context, topic models.Topic) (models.Topic, error) {
	if strings.TrimSpace(topic.Name) == "" {
		return models.Topic{}, apierr.Validationf("topic name cannot be empty")
	}
	if _, err := s.GetChapter(ctx, topic.ChapterID); err != nil {
		return models.Topic{}, err
	}
	if topic.ID == "" {
		topic.ID = s.newID()
	}
	if topic.Order <= 0 {
		n, err := s.Client.ZCard(ctx, chapterTopicsKey(topic.ChapterID)).Result()
		if err != nil {
			return models.Topic{}, fmt.Errorf("failed to count topics: %w", err)
		}
		topic.Order = int(n) + 1
	}

	ok, err := s.Client.HSetNX(ctx, topicNamesKey(topic.ChapterID), nameKey(topic.Name), topic.ID).Result()
	if err != nil {
		return models.Topic{}, fmt.Errorf("failed to reserve topic name: %w", err)
	}
	if !ok {
		return models.Topic{}, apierr.Conflictf("a topic named %q already exists in this chapter", topic.Name)
	}

	pipe := s.Client.TxPipeline()
	pipe.ZAdd(ctx, chapterTopicsKey(topic.ChapterID), &redis.Z{Score: float64(topic.Order), Member: topic.ID})
	pipe.HSet(ctx, key(topicPrefix, topic.ID), topicFields(topic))
	if _, err := pipe.Exec(ctx); err != nil {
		s.Client.HDel(ctx, topicNamesKey(topic.ChapterID), nameKey(topic.Name))
		return models.Topic{}, fmt.Errorf("failed to add topic to Redis: %w", err)
	}
	return topic, nil
}

func topicFields(t models.Topic) map[string]interface{} {
	return map[string]interface{}{
		"id":        t.ID,
		"chapterId": t.ChapterID,
		"name":      t.Name,
		"order":     t.Order,
		"content":   t.Content,
	}
}

func topicFromHash(data map[string]string) models.Topic {
	order, _ := strconv.Atoi(data["order"])
	return models.Topic{
		ID:        data["id"],
		ChapterID: data["chapterId"],
		Name:      data["name"],
		Order:     order,
		Content:   data["content"],
	}
}

// GetTopic retrieves a topic by its ID
func (s *RedisService) GetTopic(ctx context.Context, topicID string) (models.Topic, error) {
	data, err := s.Client.HGetAll(ctx, key(topicPrefix, topicID)).Result()
	if err != nil {
		return models.Topic{}, fmt.Errorf("failed to get topic from Redis: %w", err)
	}
	if len(data) == 0 {
		return models.Topic{}, notFound("topic", topicID)
	}
	return topicFromHash(data), nil
}

// FindTopicByName returns the topic of a chapter with the given name
func (s *RedisService) FindTopicByName(ctx context.Context, chapterID, name string) (models.Topic, error) {
	id, err := s.Client.HGet(ctx, topicNamesKey(chapterID), nameKey(name)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return models.Topic{}, apierr.NotFoundf("topic %q not found in chapter %s", name, chapterID)
		}
		return models.Topic{}, fmt.Errorf("failed to look up topic name: %w", err)
	}
	return s.GetTopic(ctx, id)
}

// GetTopicsByChapter lists the topics of a chapter in order
func (s *RedisService) GetTopicsByChapter(ctx context.Context, chapterID string) ([]models.Topic, error) {
	ids, err := s.Client.ZRange(ctx, chapterTopicsKey(chapterID), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to get topics of chapter %s: %w", chapterID, err)
	}
	hashes, err := s.hashesOf(ctx, topicPrefix, ids)
	if err != nil {
		return nil, err
	}
	topics := make([]models.Topic, 0, len(hashes))
	for _, h := range hashes {
		topics = append(topics, topicFromHash(h))
	}
	return topics, nil
}

// UpdateTopic changes name, order and content of a topic
func (s *RedisService) UpdateTopic(ctx context.Context, topic models.Topic) (models.Topic, error) {
	if strings.TrimSpace(topic.Name) == "" {
		return models.Topic{}, apierr.Validationf("topic name cannot be empty")
	}
	current, err := s.GetTopic(ctx, topic.ID)
	if err != nil {
		return models.Topic{}, err
	}
	renamed := nameKey(topic.Name) != nameKey(current.Name)
	if renamed {
		ok, err := s.Client.HSetNX(ctx, topicNamesKey(current.ChapterID), nameKey(topic.Name), current.ID).Result()
		if err != nil {
			return models.Topic{}, fmt.Errorf("failed to reserve topic name: %w", err)
		}
		if !ok {
			return models.Topic{}, apierr.Conflictf("a topic named %q already exists in this chapter", topic.Name)
		}
	}
	oldName := current.Name
	current.Name, current.Content = topic.Name, topic.Content
	if topic.Order > 0 {
		current.Order = topic.Order
	}

	pipe := s.Client.TxPipeline()
	pipe.HSet(ctx, key(topicPrefix, current.ID), topicFields(current))
	pipe.ZAdd(ctx, chapterTopicsKey(current.ChapterID), &redis.Z{Score: float64(current.Order), Member: current.ID})
	if renamed {
		pipe.HDel(ctx, topicNamesKey(current.ChapterID), nameKey(oldName))
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return models.Topic{}, fmt.Errorf("failed to update topic %s: %w", current.ID, err)
	}
	return current, nil
}

// DeleteTopic removes a topic and its subtopics
func (s *RedisService) DeleteTopic(ctx context.Context, topicID string) error {
	topic, err := s.GetTopic(ctx, topicID)
	if err != nil {
		return err
	}
	subtopicIDs, err := s.Client.ZRange(ctx, topicSubtopicsKey(topicID), 0, -1).Result()
	if err != nil {
		return fmt.Errorf("failed to list subtopics of topic %s: %w", topicID, err)
	}
	pipe := s.Client.TxPipeline()
	for _, id := range subtopicIDs {
		pipe.Del(ctx, key(subtopicPrefix, id))
	}
	pipe.ZRem(ctx, chapterTopicsKey(topic.ChapterID), topicID)
	pipe.HDel(ctx, topicNamesKey(topic.ChapterID), nameKey(topic.Name))
	pipe.Del(ctx, key(topicPrefix, topicID), topicSubtopicsKey(topicID))
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to delete topic %s: %w", topicID, err)
	}
	return nil
}

// --- Subtopics ---

// AddSubtopic stores a subtopic under its topic. A zero Order appends it.
func (s *RedisService) AddSubtopic(ctx context.Context, sub models.Subtopic) (models.Subtopic, error) {
	if strings.TrimSpace(sub.Name) == "" {
		return models.Subtopic{}, apierr.Validationf("subtopic name cannot be empty")
	}
	if _, err := s.GetTopic(ctx, sub.TopicID); err != nil {
		return models.Subtopic{}, err
	}
	if sub.ID == "" {
		sub.ID = s.newID()
	}
	if sub.Order <= 0 {
		n, err := s.Client.ZCard(ctx, topicSubtopicsKey(sub.TopicID)).Result()
		if err != nil {
			return models.Subtopic{}, fmt.Errorf("failed to count subtopics: %w", err)
		}
		sub.Order = int(n) + 1
	}
	pipe := s.Client.TxPipeline()
	pipe.ZAdd(ctx, topicSubtopicsKey(sub.TopicID), &redis.Z{Score: float64(sub.Order), Member: sub.ID})
	pipe.HSet(ctx, key(subtopicPrefix, sub.ID), subtopicFields(sub))
	if _, err := pipe.Exec(ctx); err != nil {
		return models.Subtopic{}, fmt.Errorf("failed to add subtopic to Redis: %w", err)
	}
	return sub, nil
}

func subtopicFields(st models.Subtopic) map[string]interface{} {
	return map[string]interface{}{
		"id":      st.ID,
		"topicId": st.TopicID,
		"name":    st.Name,
		"order":   st.Order,
	}
}

func subtopicFromHash(data map[string]string) models.Subtopic {
	order, _ := strconv.Atoi(data["order"])
	return models.Subtopic{
		ID:      data["id"],
		TopicID: data["topicId"],
		Name:    data["name"],
		Order:   order,
	}
}

// GetSubtopic retrieves a subtopic by its ID
func (s *RedisService) GetSubtopic(ctx context.Context, subtopicID string) (models.Subtopic, error) {
	data, err := s.Client.HGetAll(ctx, key(subtopicPrefix, subtopicID)).Result()
	if err != nil {
		return models.Subtopic{}, fmt.Errorf("failed to get subtopic from Redis: %w", err)
	}
	if len(data) == 0 {
		return models.Subtopic{}, notFound("subtopic", subtopicID)
	}
	return subtopicFromHash(data), nil
}

// GetSubtopicsByTopic lists the subtopics of a topic in order
func (s *RedisService) GetSubtopicsByTopic(ctx context.Context, topicID string) ([]models.Subtopic, error) {
	ids, err := s.Client.ZRange(ctx, topicSubtopicsKey(topicID), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to get subtopics of topic %s: %w", topicID, err)
	}
	hashes, err := s.hashesOf(ctx, subtopicPrefix, ids)
	if err != nil {
		return nil, err
	}
	subs := make([]models.Subtopic, 0, len(hashes))
	for _, h := range hashes {
		subs = append(subs, subtopicFromHash(h))
	}
	return subs, nil
}

// UpdateSubtopic changes the name and order of a subtopic
func (s *RedisService) UpdateSubtopic(ctx context.Context, sub models.Subtopic) (models.Subtopic, error) {
	if strings.TrimSpace(sub.Name) == "" {
		return models.Subtopic{}, apierr.Validationf("subtopic name cannot be empty")
	}
	current, err := s.GetSubtopic(ctx, sub.ID)
	if err != nil {
		return models.Subtopic{}, err
	}
	current.Name = sub.Name
	if sub.Order > 0 {
		current.Order = sub.Order
	}
	pipe := s.Client.TxPipeline()
	pipe.HSet(ctx, key(subtopicPrefix, current.ID), subtopicFields(current))
	pipe.ZAdd(ctx, topicSubtopicsKey(current.TopicID), &redis.Z{Score: float64(current.Order), Member: current.ID})
	if _, err := pipe.Exec(ctx); err != nil {
		return models.Subtopic{}, fmt.Errorf("failed to update subtopic %s: %w", current.ID, err)
	}
	return current, nil
}

// DeleteSubtopic removes a subtopic
func (s *RedisService) DeleteSubtopic(ctx context.Context, subtopicID string) error {
	sub, err := s.GetSubtopic(ctx, subtopicID)
	if err != nil {
		return err
	}
	pipe := s.Client.TxPipeline()
	pipe.ZRem(ctx, topicSubtopicsKey(sub.TopicID), subtopicID)
	pipe.Del(ctx, key(subtopicPrefix, subtopicID))
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to delete subtopic %s: %w", subtopicID, err)
	}
	return nil
}
