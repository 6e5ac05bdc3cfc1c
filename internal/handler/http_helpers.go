package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/haullog/internal/service"
	"github.com/shopspring/decimal"
)

func respondError(c *gin.Context, status int, message string) {
	c.JSON(status, gin.H{"error": message})
}

// respondServiceError 将校验错误映射为 400，其余视为存储错误返回 500。
func respondServiceError(c *gin.Context, err error, message string) {
	var verr *service.ValidationError
	if errors.As(err, &verr) {
		c.JSON(http.StatusBadRequest, gin.H{"error": verr.Error(), "field": verr.Field})
		return
	}
	_ = c.Error(err)
	c.JSON(http.StatusInternalServerError, gin.H{"error": message, "details": err.Error()})
}

func bindJSON(c *gin.Context, dst interface{}, message string) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		body := gin.H{"error": message}
		var typeErr *json.UnmarshalTypeError
		if errors.As(err, &typeErr) && typeErr.Field != "" {
			body["field"] = typeErr.Field
			body["error"] = fmt.Sprintf("%s: must be a %s", typeErr.Field, typeErr.Type.String())
		}
		c.JSON(http.StatusBadRequest, body)
		return false
	}
	return true
}

func parseDateQuery(c *gin.Context, key string) (time.Time, error) {
	raw := strings.TrimSpace(c.Query(key))
	if raw == "" {
		return time.Time{}, nil
	}
	parsed, err := time.Parse(service.DateLayout, raw)
	if err != nil {
		return time.Time{}, &service.ValidationError{Field: key, Message: "must be a date in YYYY-MM-DD format"}
	}
	return parsed, nil
}

func parseIntQuery(c *gin.Context, key string, fallback int) (int, error) {
	raw := strings.TrimSpace(c.Query(key))
	if raw == "" {
		return fallback, nil
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return 0, &service.ValidationError{Field: key, Message: "must be an integer"}
	}
	return value, nil
}

func formInt(c *gin.Context, key string) (*int, error) {
	raw := strings.TrimSpace(c.PostForm(key))
	if raw == "" {
		return nil, nil
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return nil, &service.ValidationError{Field: key, Message: "must be an integer"}
	}
	return &value, nil
}

func formDecimal(c *gin.Context, key string) (decimal.NullDecimal, error) {
	raw := strings.TrimSpace(c.PostForm(key))
	if raw == "" {
		return decimal.NullDecimal{}, nil
	}
	value, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.NullDecimal{}, &service.ValidationError{Field: key, Message: "must be a number"}
	}
	return decimal.NewNullDecimal(value), nil
}

// formBool 兼容表单下拉框的 Yes/No 以及复选框的 on。
func formBool(c *gin.Context, key string) bool {
	switch strings.ToLower(strings.TrimSpace(c.PostForm(key))) {
	case "yes", "y", "true", "1", "on":
		return true
	default:
		return false
	}
}
