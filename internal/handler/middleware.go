package handler

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/haullog/internal/logging"
	"go.uber.org/zap"
)

// APIKeyHeader 是共享密钥所在的请求头。
const APIKeyHeader = "X-API-Key"

// APIKeyRequired 要求请求携带与配置完全一致的 X-API-Key。
// 缺失、不匹配或服务端未配置密钥时统一返回 401。
func APIKeyRequired(apiKey string, logger *zap.Logger) gin.HandlerFunc {
	logger = logging.OrNop(logger).Named("auth")
	expected := []byte(strings.TrimSpace(apiKey))

	return func(c *gin.Context) {
		provided := []byte(c.GetHeader(APIKeyHeader))
		if len(expected) == 0 || subtle.ConstantTimeCompare(provided, expected) != 1 {
			logger.Warn("unauthorized api request",
				zap.String("client_ip", c.ClientIP()),
				zap.String("path", c.Request.URL.Path),
			)
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}
		c.Next()
	}
}
