package routes

import (
	"errors"
	"net/http"

	"islamic-qa-platform/internal/logger"
	"islamic-qa-platform/internal/queue"
	"islamic-qa-platform/internal/retrieval"
	"islamic-qa-platform/internal/store"
	"islamic-qa-platform/models"
	"islamic-qa-platform/utils"

	"github.com/gin-gonic/gin"
	"github.com/hibiken/asynq"
)

type ingestRequest struct {
	Language       string `json:"language"`
	QuestionText   string `json:"question_text" binding:"required"`
	AnswerText     string `json:"answer_text" binding:"required"`
	SourceName     string `json:"source_name" binding:"required"`
	SourceURL      string `json:"source_url"`
	ScholarName    string `json:"scholar_name"`
	Category       string `json:"category"`
	SourcePriority int    `json:"source_priority"`
	IsVerified     bool   `json:"is_verified"`
}

// SetupDocumentRoutes registers ingestion and index administration
// endpoints. asynqClient may be nil; indexing then stays inline-only.
func SetupDocumentRoutes(router *gin.Engine, engine *retrieval.Engine, docs store.DocumentStore, asynqClient *asynq.Client) {
	v1 := router.Group("/api/v1")

	v1.POST("/documents", func(c *gin.Context) {
		var req ingestRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			utils.RespondWithBadRequest(c, "invalid document payload", err.Error())
			return
		}

		doc := &models.Document{
			Language:       req.Language,
			QuestionText:   req.QuestionText,
			AnswerText:     req.AnswerText,
			SourceName:     req.SourceName,
			SourceURL:      req.SourceURL,
			ScholarName:    req.ScholarName,
			Category:       req.Category,
			SourcePriority: req.SourcePriority,
			IsVerified:     req.IsVerified,
		}

		outcome, err := engine.Ingest(c.Request.Context(), doc)
		if err != nil {
			logger.Error("ingestion failed", "error", err)
			utils.RespondWithInternalError(c, "ingestion failed", nil)
			return
		}

		switch outcome.Status {
		case models.IngestAccepted:
			// Inline indexing may have been deferred; retry via the queue.
			if asynqClient != nil && doc.EmbeddingVersion == "" {
				enqueueIndexTask(asynqClient, outcome.DocumentID)
			}
			c.JSON(http.StatusCreated, outcome)
		case models.IngestDuplicate:
			c.JSON(http.StatusOK, outcome)
		default:
			c.JSON(http.StatusBadRequest, outcome)
		}
	})

	v1.DELETE("/documents/:id", func(c *gin.Context) {
		id := c.Param("id")

		if err := docs.Deactivate(c.Request.Context(), id); err != nil {
			if errors.Is(err, store.ErrNotFound) {
				utils.RespondWithNotFound(c, "document not found")
				return
			}
			utils.RespondWithInternalError(c, "deactivation failed", nil)
			return
		}
		engine.RemoveDocument(id)

		c.JSON(http.StatusOK, gin.H{"status": "deactivated", "document_id": id})
	})

	v1.POST("/admin/reindex", func(c *gin.Context) {
		if engine.RebuildRunning() {
			utils.RespondWithConflict(c, "a rebuild is already running", nil)
			return
		}

		if asynqClient == nil {
			utils.RespondWithInternalError(c, "task queue unavailable", nil)
			return
		}

		task, err := queue.NewRebuildIndexTask(c.ClientIP())
		if err != nil {
			utils.RespondWithInternalError(c, "failed to create rebuild task", nil)
			return
		}
		if _, err := asynqClient.Enqueue(task); err != nil {
			utils.RespondWithInternalError(c, "failed to schedule rebuild", nil)
			return
		}

		c.JSON(http.StatusAccepted, gin.H{"status": "scheduled"})
	})

	v1.GET("/admin/reindex/status", func(c *gin.Context) {
		c.JSON(http.StatusOK, engine.Health())
	})
}

func enqueueIndexTask(client *asynq.Client, documentID string) {
	task, err := queue.NewIndexDocumentTask(documentID)
	if err != nil {
		logger.Error("failed to create index task", "document_id", documentID, "error", err)
		return
	}
	if _, err := client.Enqueue(task); err != nil {
		logger.Error("failed to enqueue index task", "document_id", documentID, "error", err)
	}
}
