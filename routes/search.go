package routes

import (
	"net/http"
	"strconv"

	"islamic-qa-platform/internal/retrieval"
	"islamic-qa-platform/models"
	"islamic-qa-platform/utils"

	"github.com/gin-gonic/gin"
)

type searchRequest struct {
	Query    string            `json:"query" binding:"required"`
	Language string            `json:"language"`
	K        int               `json:"k"`
	Filters  map[string]string `json:"filters"`
}

// SetupSearchRoutes registers the retrieval endpoints.
func SetupSearchRoutes(router *gin.Engine, engine *retrieval.Engine) {
	v1 := router.Group("/api/v1")

	v1.POST("/search", func(c *gin.Context) {
		var req searchRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			utils.RespondWithBadRequest(c, "query is required", err.Error())
			return
		}

		runSearch(c, engine, req)
	})

	// GET variant for simple integrations: /api/v1/search?q=...&lang=ar&k=5
	v1.GET("/search", func(c *gin.Context) {
		query := c.Query("q")
		if query == "" {
			utils.RespondWithBadRequest(c, "query parameter q is required", nil)
			return
		}

		k := 0
		if raw := c.Query("k"); raw != "" {
			parsed, err := strconv.Atoi(raw)
			if err != nil {
				utils.RespondWithBadRequest(c, "k must be an integer", nil)
				return
			}
			k = parsed
		}

		req := searchRequest{
			Query:    query,
			Language: c.Query("lang"),
			K:        k,
		}
		if category := c.Query("category"); category != "" {
			req.Filters = map[string]string{"category": category}
		}

		runSearch(c, engine, req)
	})
}

func runSearch(c *gin.Context, engine *retrieval.Engine, req searchRequest) {
	result, err := engine.Retrieve(c.Request.Context(), req.Query, req.Language, req.K, req.Filters)
	if err != nil {
		if c.Request.Context().Err() != nil {
			// Client went away; no response will be read.
			c.Abort()
			return
		}
		utils.RespondWithInternalError(c, "retrieval failed", nil)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"query":       result.Query,
		"language":    result.Language,
		"matches":     toMatchPayload(result.Matches),
		"degraded":    result.Degraded,
		"degraded_by": result.DegradedBy,
		"computed_at": result.ComputedAt,
	})
}

type matchPayload struct {
	DocumentID   string                 `json:"document_id"`
	QuestionText string                 `json:"question_text"`
	AnswerText   string                 `json:"answer_text"`
	Language     string                 `json:"language"`
	SourceName   string                 `json:"source_name"`
	SourceURL    string                 `json:"source_url,omitempty"`
	ScholarName  string                 `json:"scholar_name,omitempty"`
	Category     string                 `json:"category,omitempty"`
	IsVerified   bool                   `json:"is_verified"`
	Similarity   float64                `json:"similarity"`
	Confidence   models.ConfidenceLabel `json:"confidence"`
}

func toMatchPayload(matches []models.Match) []matchPayload {
	out := make([]matchPayload, len(matches))
	for i, m := range matches {
		out[i] = matchPayload{
			DocumentID:   m.Document.ID,
			QuestionText: m.Document.QuestionText,
			AnswerText:   m.Document.AnswerText,
			Language:     m.Document.Language,
			SourceName:   m.Document.SourceName,
			SourceURL:    m.Document.SourceURL,
			ScholarName:  m.Document.ScholarName,
			Category:     m.Document.Category,
			IsVerified:   m.Document.IsVerified,
			Similarity:   m.Similarity,
			Confidence:   m.Confidence,
		}
	}
	return out
}
