package handlers

import (
	"github.com/gin-gonic/gin"
)

// Banner clear windows in milliseconds. Success notices clear faster than
// errors so failures stay visible longer.
const (
	successClearAfterMs = 3000
	errorClearAfterMs   = 5000
)

// Banner is a transient operator notice attached to mutation responses.
type Banner struct {
	Kind         string `json:"kind"`
	Message      string `json:"message"`
	ClearAfterMs int    `json:"clear_after_ms"`
}

func successBanner(message string) Banner {
	return Banner{Kind: "success", Message: message, ClearAfterMs: successClearAfterMs}
}

func errorBanner(message string) Banner {
	return Banner{Kind: "error", Message: message, ClearAfterMs: errorClearAfterMs}
}

func sendError(c *gin.Context, status int, message string) {
	c.JSON(status, gin.H{
		"status": "error",
		"error":  message,
		"banner": errorBanner(message),
	})
}

func sendSuccess(c *gin.Context, status int, message string, data interface{}) {
	c.JSON(status, gin.H{
		"status": "success",
		"data":   data,
		"banner": successBanner(message),
	})
}
