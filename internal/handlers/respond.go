package handlers

import (
	"log"

	"sportsblock/internal/apperrors"

	"github.com/gin-gonic/gin"
)

// respondError writes the uniform error envelope. Unknown errors are logged
// and surfaced as opaque 500s; taxonomy errors map to their own statuses.
func respondError(c *gin.Context, err error) {
	appErr := apperrors.From(err)
	if appErr.Code == apperrors.CodeInternal {
		log.Printf("Internal error on %s %s: %v", c.Request.Method, c.Request.URL.Path, err)
	}
	c.JSON(appErr.HTTPStatus(), gin.H{"error": appErr})
}
