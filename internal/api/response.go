package api

import (
	"strconv"

	"codesherpa/internal/middleware"

	"github.com/gin-gonic/gin"
)

// Envelope is the body of every REST response
type Envelope struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data"`
	Message string      `json:"message"`
}

func respond(c *gin.Context, status int, data interface{}, message string) {
	c.JSON(status, Envelope{Success: true, Data: data, Message: message})
}

func fail(c *gin.Context, status int, message string) {
	c.AbortWithStatusJSON(status, Envelope{Success: false, Data: nil, Message: message})
}

// currentUserID reads the id stored by RequireAuth
func currentUserID(c *gin.Context) (uint, bool) {
	return middleware.GetUserID(c)
}

// idParam parses a positive numeric path parameter
func idParam(c *gin.Context, name string) (uint, bool) {
	id, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil || id == 0 {
		return 0, false
	}
	return uint(id), true
}
