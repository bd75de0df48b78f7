package models

import "time"

// Subject is the root of the curriculum tree
type Subject struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Code      string    `json:"code,omitempty"` // Short code, e.g. "PHY"
	CreatedAt time.Time `json:"createdAt"`
}

// Chapter belongs to a subject. Number is unique within the subject.
type Chapter struct {
	ID        string `json:"id"`
	SubjectID string `json:"subjectId"`
	Number    int    `json:"number"`
	Name      string `json:"name"`
}

// Topic belongs to a chapter. Name is unique within the chapter.
type Topic struct {
	ID        string `json:"id"`
	ChapterID string `json:"chapterId"`
	Name      string `json:"name"`
	Order     int    `json:"order"`
	Content   string `json:"content,omitempty"` // MMD body shown to students
}

// Subtopic belongs to a topic
type Subtopic struct {
	ID      string `json:"id"`
	TopicID string `json:"topicId"`
	Name    string `json:"name"`
	Order   int    `json:"order"`
}

// QuestionKind decides how a response is graded
type QuestionKind string

const (
	KindSingle   QuestionKind = "single"   // one option key
	KindMultiple QuestionKind = "multiple" // any number of option keys
	KindInteger  QuestionKind = "integer"  // free-text integer answer
	KindNumeric  QuestionKind = "numeric"  // free-text numeric or symbolic answer
)

// Valid reports whether k is a known kind
func (k QuestionKind) Valid() bool {
	switch k {
	case KindSingle, KindMultiple, KindInteger, KindNumeric:
		return true
	}
	return false
}

// FreeText reports whether answers of kind k are typed rather than picked
func (k QuestionKind) FreeText() bool {
	return k == KindInteger || k == KindNumeric
}

// Option is one choice of an objective question
type Option struct {
	Key  string `json:"key"` // "A", "B", ...
	Text string `json:"text"`
}

// Question lives in the question bank and may be attached to papers.
// Answers holds option keys for objective kinds and the accepted answer
// strings for free-text kinds.
type Question struct {
	ID          string       `json:"id"`
	SubjectID   string       `json:"subjectId"`
	ChapterID   string       `json:"chapterId,omitempty"`
	TopicID     string       `json:"topicId,omitempty"`
	SubtopicID  string       `json:"subtopicId,omitempty"`
	Kind        QuestionKind `json:"kind"`
	Text        string       `json:"text"`
	Options     []Option     `json:"options,omitempty"`
	Answers     []string     `json:"answers"`
	Difficulty  string       `json:"difficulty,omitempty"`
	Explanation string       `json:"explanation,omitempty"`
	Source      string       `json:"source,omitempty"` // e.g. "JEE Main 2023 Shift 1"
	CreatedAt   time.Time    `json:"createdAt"`
}

// MarkingScheme is applied per paper
type MarkingScheme struct {
	Correct         float64 `json:"correct"`         // awarded for a correct answer
	Negative        float64 `json:"negative"`        // deducted for a wrong objective answer
	NumericNegative float64 `json:"numericNegative"` // deducted for a wrong free-text answer
	PartialMultiple bool    `json:"partialMultiple"` // partial credit on multiple-choice
}

// DefaultScheme is +4/-1 with no penalty on free-text answers
var DefaultScheme = MarkingScheme{Correct: 4, Negative: 1}

// ExtractionStatus tracks AI question extraction for a paper
type ExtractionStatus string

const (
	ExtractionNone       ExtractionStatus = "none"
	ExtractionProcessing ExtractionStatus = "processing"
	ExtractionCompleted  ExtractionStatus = "completed"
	ExtractionFailed     ExtractionStatus = "failed"
)

// Paper is a previous year paper that students can attempt as a timed test
type Paper struct {
	ID               string           `json:"id"`
	SubjectID        string           `json:"subjectId"`
	Title            string           `json:"title"`
	Exam             string           `json:"exam,omitempty"`
	Year             int              `json:"year"`
	DurationMinutes  int              `json:"durationMinutes"`
	Scheme           MarkingScheme    `json:"scheme"`
	PDFPath          string           `json:"pdfPath,omitempty"` // storage bucket path of the source PDF
	ExtractionStatus ExtractionStatus `json:"extractionStatus"`
	ExtractionError  string           `json:"extractionError,omitempty"`
	QuestionIDs      []string         `json:"questionIds"`
	CreatedAt        time.Time        `json:"createdAt"`
}

// Response is what a student entered for one question
type Response struct {
	Options []string `json:"options,omitempty"`
	Value   string   `json:"value,omitempty"`
}

// AttemptStatus is the lifecycle state of an attempt
type AttemptStatus string

const (
	AttemptInProgress AttemptStatus = "in_progress"
	AttemptSubmitted  AttemptStatus = "submitted"
)

// Attempt is one student's sitting of a paper
type Attempt struct {
	ID          string              `json:"id"`
	PaperID     string              `json:"paperId"`
	StudentID   string              `json:"studentId"`
	Status      AttemptStatus       `json:"status"`
	StartedAt   time.Time           `json:"startedAt"`
	Deadline    time.Time           `json:"deadline"`
	SubmittedAt *time.Time          `json:"submittedAt,omitempty"`
	Late        bool                `json:"late"`
	Responses   map[string]Response `json:"responses"` // questionID -> response
}

// VerdictStatus is the grading outcome of one question
type VerdictStatus string

const (
	VerdictCorrect     VerdictStatus = "correct"
	VerdictIncorrect   VerdictStatus = "incorrect"
	VerdictPartial     VerdictStatus = "partial"
	VerdictUnattempted VerdictStatus = "unattempted"
)

// Match methods for a correct free-text answer
const (
	MatchedLexical = "lexical"
	MatchedAI      = "ai"
)

// Verdict is the grading of one question
type Verdict struct {
	QuestionID string        `json:"questionId"`
	ChapterID  string        `json:"chapterId,omitempty"`
	Kind       QuestionKind  `json:"kind"`
	Status     VerdictStatus `json:"status"`
	Awarded    float64       `json:"awarded"`
	MatchedBy  string        `json:"matchedBy,omitempty"`
	Note       string        `json:"note,omitempty"`
	Response   Response      `json:"response"`
}

// ChapterScore aggregates verdicts of one chapter
type ChapterScore struct {
	ChapterID string  `json:"chapterId"`
	Total     int     `json:"total"`
	Attempted int     `json:"attempted"`
	Correct   int     `json:"correct"`
	Score     float64 `json:"score"`
}

// Grade is the graded outcome of a set of responses
type Grade struct {
	Score       float64        `json:"score"`
	MaxScore    float64        `json:"maxScore"`
	Correct     int            `json:"correct"`
	Incorrect   int            `json:"incorrect"`
	Partial     int            `json:"partial"`
	Unattempted int            `json:"unattempted"`
	Accuracy    float64        `json:"accuracy"` // percent of attempted answered fully correct
	Verdicts    []Verdict      `json:"verdicts"`
	Chapters    []ChapterScore `json:"chapters"`
}

// Result is a stored grade for a submitted attempt
type Result struct {
	AttemptID   string    `json:"attemptId"`
	PaperID     string    `json:"paperId"`
	StudentID   string    `json:"studentId"`
	SubmittedAt time.Time `json:"submittedAt"`
	Late        bool      `json:"late"`
	Grade
}

// ChapterAccuracy is a student's accuracy on one chapter over all results
type ChapterAccuracy struct {
	ChapterID string  `json:"chapterId"`
	Attempted int     `json:"attempted"`
	Correct   int     `json:"correct"`
	Accuracy  float64 `json:"accuracy"`
}

// StudentAnalytics summarises a student's results
type StudentAnalytics struct {
	StudentID  string            `json:"studentId"`
	Tests      int               `json:"tests"`
	AveragePct float64           `json:"averagePct"` // mean of score/maxScore, in percent
	BestPct    float64           `json:"bestPct"`
	Chapters   []ChapterAccuracy `json:"chapters"`
}
