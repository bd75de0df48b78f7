package handlers

import "github.com/gin-gonic/gin"

// RegisterRoutes sets up the API routes under api
func (h *APIHandler) RegisterRoutes(api *gin.RouterGroup) {
	api.GET("/ping", h.PingHandler)
	api.POST("/answers/check", h.CheckAnswer)

	// Curriculum
	api.GET("/subjects", h.GetAllSubjects)
	api.POST("/subjects", h.AddSubject)
	api.GET("/subjects/:id", h.GetSubject)
	api.PUT("/subjects/:id", h.UpdateSubject)
	api.DELETE("/subjects/:id", h.DeleteSubject)
	api.GET("/subjects/:id/chapters", h.GetChaptersBySubject)
	api.POST("/subjects/:id/chapters", h.AddChapter)
	api.GET("/subjects/:id/questions.xlsx", h.ExportQuestions)

	api.GET("/chapters/:id", h.GetChapter)
	api.PUT("/chapters/:id", h.UpdateChapter)
	api.DELETE("/chapters/:id", h.DeleteChapter)
	api.GET("/chapters/:id/topics", h.GetTopicsByChapter)
	api.POST("/chapters/:id/topics", h.AddTopic)

	api.GET("/topics/:id", h.GetTopic)
	api.PUT("/topics/:id", h.UpdateTopic)
	api.DELETE("/topics/:id", h.DeleteTopic)
	api.GET("/topics/:id/subtopics", h.GetSubtopicsByTopic)
	api.POST("/topics/:id/subtopics", h.AddSubtopic)

	api.GET("/subtopics/:id", h.GetSubtopic)
	api.PUT("/subtopics/:id", h.UpdateSubtopic)
	api.DELETE("/subtopics/:id", h.DeleteSubtopic)

	// Question bank
	api.GET("/questions", h.ListQuestions)
	api.POST("/questions", h.AddQuestion)
	api.GET("/questions/:id", h.GetQuestion)
	api.PUT("/questions/:id", h.UpdateQuestion)
	api.DELETE("/questions/:id", h.DeleteQuestion)

	// Previous year papers
	api.GET("/papers", h.ListPapers)
	api.POST("/papers", h.AddPaper)
	api.GET("/papers/:id", h.GetPaper)
	api.DELETE("/papers/:id", h.DeletePaper)
	api.PUT("/papers/:id/questions", h.SetPaperQuestions)
	api.POST("/papers/:id/extract", h.ExtractPaperQuestions)
	api.GET("/papers/:id/results", h.ListPaperResults)
	api.GET("/papers/:id/results.xlsx", h.ExportPaperResults)
	api.POST("/papers/:id/attempts", h.StartAttempt)

	// Attempts and results
	api.GET("/attempts/:id", h.GetAttempt)
	api.PUT("/attempts/:id/answers", h.SaveResponses)
	api.POST("/attempts/:id/submit", h.SubmitAttempt)
	api.GET("/attempts/:id/result", h.GetResult)
	api.GET("/students/:id/results", h.ListStudentResults)
	api.GET("/students/:id/analytics", h.GetStudentAnalytics)

	// Spreadsheet import
	api.POST("/import/curriculum", h.ImportCurriculum)
	api.POST("/import/questions", h.ImportQuestions)
}
