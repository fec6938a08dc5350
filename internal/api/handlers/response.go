// Package handlers adapts HTTP requests to service calls.
//
// Go Learning Note — Thin Handlers:
// A handler binds the request, calls one service method and maps the
// result. Business rules never live here, so every rule is testable without
// an HTTP server.
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"masjidgo/internal/logger"
	"masjidgo/internal/services"
)

const codeInternal = "INTERNAL_ERROR"

// statusByKind maps refusal kinds to HTTP status codes. State conflicts are
// client errors the caller can resolve, so they are 400 rather than 409.
var statusByKind = map[services.ErrorKind]int{
	services.KindValidation:    http.StatusBadRequest,
	services.KindNotFound:      http.StatusNotFound,
	services.KindStateConflict: http.StatusBadRequest,
	services.KindProximity:     http.StatusForbidden,
}

// writeError renders err as {"error", "code"}. Anything that is not a
// business refusal is logged and reported as a 500 without details.
func writeError(c *gin.Context, log *logger.Logger, err error) {
	se, ok := services.AsError(err)
	if !ok {
		_ = c.Error(err)
		log.Error("request failed", "method", c.Request.Method, "path", c.FullPath(), "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error", "code": codeInternal})
		return
	}

	status, ok := statusByKind[se.Kind]
	if !ok {
		status = http.StatusBadRequest
	}
	body := gin.H{"error": se.Message, "code": se.Code}
	if se.Kind == services.KindProximity {
		body["distance_meters"] = se.DistanceMeters
		body["radius_meters"] = se.RadiusMeters
	}
	c.JSON(status, body)
}

// badRequest reports a binding failure.
func badRequest(c *gin.Context, msg string) {
	c.JSON(http.StatusBadRequest, gin.H{"error": msg, "code": services.CodeValidation})
}

// pageQuery is the common limit/offset pair of list endpoints.
type pageQuery struct {
	Limit  int `form:"limit" binding:"omitempty,min=0"`
	Offset int `form:"offset" binding:"omitempty,min=0"`
}

// coordinates is a lat/lng pair. Pointers tell a missing value apart from
// the equator or the prime meridian.
type coordinates struct {
	Lat *float64 `json:"lat" form:"lat" binding:"required"`
	Lng *float64 `json:"lng" form:"lng" binding:"required"`
}
