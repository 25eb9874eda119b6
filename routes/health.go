package routes

import (
	"net/http"

	"islamic-qa-platform/internal/retrieval"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

// SetupHealthRoutes registers liveness and readiness probes. The health
// payload carries the engine snapshot so operators can watch index size,
// cache hit rate and rebuild state.
func SetupHealthRoutes(router *gin.Engine, engine *retrieval.Engine, mongoClient *mongo.Client, rdb *redis.Client) {
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status": "ok",
			"engine": engine.Health(),
		})
	})

	router.GET("/ready", func(c *gin.Context) {
		ctx := c.Request.Context()

		if err := mongoClient.Ping(ctx, readpref.Primary()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "mongo unreachable"})
			return
		}
		if rdb != nil {
			if err := rdb.Ping(ctx).Err(); err != nil {
				c.JSON(http.StatusServiceUnavailable, gin.H{"status": "redis unreachable"})
				return
			}
		}

		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})
}
