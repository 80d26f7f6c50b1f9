package middleware

import (
	"bytes"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/brightpath/agency-api/internal/service"
)

type bodyRecorder struct {
	gin.ResponseWriter
	body bytes.Buffer
}

func (w *bodyRecorder) Write(b []byte) (int, error) {
	w.body.Write(b)
	return w.ResponseWriter.Write(b)
}

// ReportCache caches successful GET responses of the report routes in Redis.
// Reports tolerate short staleness; the TTL bounds it.
func ReportCache(client *redis.Client, ttl time.Duration, metrics *service.MetricsService, logger *zap.Logger) gin.HandlerFunc {
	if logger == nil {
		logger = zap.NewNop()
	}
	return func(c *gin.Context) {
		if client == nil || c.Request.Method != http.MethodGet {
			c.Next()
			return
		}
		key := "report:" + c.Request.URL.Path
		if raw := c.Request.URL.RawQuery; raw != "" {
			key += "?" + raw
		}

		cached, err := client.Get(c.Request.Context(), key).Bytes()
		if err == nil {
			metrics.RecordCacheOperation(true)
			c.Header("X-Cache", "HIT")
			c.Data(http.StatusOK, "application/json; charset=utf-8", cached)
			c.Abort()
			return
		}
		if err != redis.Nil {
			logger.Warn("report cache lookup failed", zap.String("key", key), zap.Error(err))
		}
		metrics.RecordCacheOperation(false)

		recorder := &bodyRecorder{ResponseWriter: c.Writer}
		c.Writer = recorder
		c.Header("X-Cache", "MISS")
		c.Next()

		if c.Writer.Status() == http.StatusOK && recorder.body.Len() > 0 {
			if err := client.Set(c.Request.Context(), key, recorder.body.Bytes(), ttl).Err(); err != nil {
				logger.Warn("report cache store failed", zap.String("key", key), zap.Error(err))
			}
		}
	}
}
