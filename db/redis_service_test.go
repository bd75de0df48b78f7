package db

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pyqtest-server-go/models"
)

type testClock struct{ t time.Time }

func (c *testClock) Now() time.Time          { return c.t }
func (c *testClock) Advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestService(t *testing.T) (*RedisService, *testClock) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	clock := &testClock{t: time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)}
	s := NewRedisService(client, nil)
	s.now = clock.Now
	return s, clock
}

func mustSubject(t *testing.T, s *RedisService, name string) models.Subject {
	t.Helper()
	subject, err := s.AddSubject(context.Background(), models.Subject{Name: name})
	require.NoError(t, err)
	return subject
}

func mustChapter(t *testing.T, s *RedisService, subjectID string, number int, name string) models.Chapter {
	t.Helper()
	ch, err := s.AddChapter(context.Background(), models.Chapter{SubjectID: subjectID, Number: number, Name: name})
	require.NoError(t, err)
	return ch
}

func TestKey(t *testing.T) {
	assert.Equal(t, "subject:s1", key(subjectPrefix, "s1"))
	assert.Equal(t, "chapter:c1:topic_names", key(chapterPrefix, "c1", "topic_names"))
}

func TestGetJSONManySkipsMissing(t *testing.T) {
	s, _ := newTestService(t)
	ctx := context.Background()
	require.NoError(t, s.setJSON(ctx, "paper:a", models.Paper{ID: "a"}))
	require.NoError(t, s.setJSON(ctx, "paper:c", models.Paper{ID: "c"}))

	var papers []models.Paper
	require.NoError(t, s.getJSONMany(ctx, []string{"paper:a", "paper:b", "paper:c"}, appendDecoded(&papers)))
	require.Len(t, papers, 2)
	assert.Equal(t, "a", papers[0].ID)
	assert.Equal(t, "c", papers[1].ID)
}

func TestSeedIfEmpty(t *testing.T) {
	s, _ := newTestService(t)
	ctx := context.Background()

	seeded, err := s.SeedIfEmpty(ctx)
	require.NoError(t, err)
	assert.True(t, seeded)

	subjects, err := s.GetAllSubjects(ctx)
	require.NoError(t, err)
	require.Len(t, subjects, 1)

	papers, err := s.ListPapers(ctx, subjects[0].ID)
	require.NoError(t, err)
	require.Len(t, papers, 1)
	assert.Len(t, papers[0].QuestionIDs, 4)

	seeded, err = s.SeedIfEmpty(ctx)
	require.NoError(t, err)
	assert.False(t, seeded)
}
