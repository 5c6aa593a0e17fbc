package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/testing-system/testing-service/internal/services"
	"github.com/testing-system/testing-service/internal/utils"
)

type HandlerManager struct {
	testHandler     *TestHandler
	questionHandler *QuestionHandler
	scoringHandler  *ScoringHandler
	importHandler   *ImportHandler
}

func NewHandlerManager(
	testService services.TestService,
	orderService services.TestQuestionService,
	questionService services.QuestionService,
	scoringService services.ScoringService,
	importService services.ImportService,
	logger utils.Logger,
) *HandlerManager {
	return &HandlerManager{
		testHandler:     NewTestHandler(testService, orderService, logger),
		questionHandler: NewQuestionHandler(questionService, logger),
		scoringHandler:  NewScoringHandler(scoringService, logger),
		importHandler:   NewImportHandler(importService, logger),
	}
}

// SetupRoutes sets up all API routes
func (hm *HandlerManager) SetupRoutes(router *gin.Engine) {
	router.GET("/health", HealthCheck)

	v1 := router.Group("/api/v1")
	{
		tests := v1.Group("/tests")
		{
			tests.POST("", hm.testHandler.CreateTest)
			tests.GET("", hm.testHandler.ListTests)
			tests.GET("/:id", hm.testHandler.GetTest)
			tests.PUT("/:id", hm.testHandler.UpdateTest)
			tests.DELETE("/:id", hm.testHandler.DeleteTest)

			// Ordered question management
			tests.GET("/:id/questions", hm.testHandler.GetTestQuestions)
			tests.PUT("/:id/questions/reorder", hm.testHandler.ReorderTestQuestions)
			tests.POST("/:id/questions/:question_id", hm.testHandler.AddQuestionToTest)
			tests.DELETE("/:id/questions/:question_id", hm.testHandler.RemoveQuestionFromTest)

			// Answers and results
			tests.POST("/:id/questions/:question_id/answer", hm.scoringHandler.SubmitAnswer)
			tests.POST("/:id/questions/:question_id/verify/:user_id", hm.scoringHandler.VerifyTextAnswer)
			tests.POST("/:id/answers", hm.scoringHandler.SubmitAllAnswers)
			tests.GET("/:id/result", hm.scoringHandler.GetOwnResult)
			tests.GET("/:id/results/:user_id", hm.scoringHandler.GetResult)
			tests.POST("/:id/results/:user_id/recompute", hm.scoringHandler.RecomputeScore)
		}

		questions := v1.Group("/questions")
		{
			questions.POST("", hm.questionHandler.CreateQuestion)
			questions.GET("", hm.questionHandler.ListQuestions)
			questions.GET("/:id", hm.questionHandler.GetQuestion)
			questions.PUT("/:id", hm.questionHandler.UpdateQuestion)
			questions.DELETE("/:id", hm.questionHandler.DeleteQuestion)
			questions.GET("/:id/answers", hm.scoringHandler.GetQuestionAnswers)
		}

		users := v1.Group("/users")
		{
			users.GET("/:id/tests", hm.testHandler.GetStartedTests)
			users.GET("/:id/results", hm.testHandler.GetUserResults)
		}

		importGroup := v1.Group("/import")
		{
			importGroup.POST("", hm.importHandler.ImportBatch)
			importGroup.POST("/file", hm.importHandler.ImportFile)
		}
	}
}

// HealthCheck returns service liveness
func HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "healthy",
		"service": "testing-service",
	})
}
