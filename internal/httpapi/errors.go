package httpapi

import (
	"log"
	"net/http"

	"github.com/gin-gonic/gin"

	"classattend/internal/apperr"
)

// httpStatus maps the error taxonomy onto the wire statuses.
func httpStatus(err error) int {
	switch apperr.KindOf(err) {
	case apperr.KindValidation:
		return http.StatusNotAcceptable
	case apperr.KindAuthentication, apperr.KindAuthorization:
		return http.StatusUnauthorized
	case apperr.KindNotFound:
		return http.StatusNotFound
	case apperr.KindConflict:
		return http.StatusConflict
	case apperr.KindStateConflict:
		return http.StatusMethodNotAllowed
	case apperr.KindBiometricReject:
		return http.StatusNotAcceptable
	default:
		return http.StatusInternalServerError
	}
}

// fail writes the classified error. Unexpected failures are logged with
// their cause and surfaced as a generic message.
func fail(c *gin.Context, err error) {
	status := httpStatus(err)
	if status == http.StatusInternalServerError {
		log.Printf("%s %s: %v", c.Request.Method, c.Request.URL.Path, err)
		c.JSON(status, gin.H{"message": "something went wrong"})
		return
	}
	c.JSON(status, gin.H{"message": err.Error()})
}
