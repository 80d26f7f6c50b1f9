package handler

import (
	"github.com/gin-gonic/gin"

	appErrors "github.com/brightpath/agency-api/pkg/errors"
)

// actorHeader carries the caller's identity. Authentication sits in front of
// this API; the gateway injects the verified actor ID here.
const actorHeader = "X-Actor-ID"

func actorID(c *gin.Context) (string, error) {
	id := c.GetHeader(actorHeader)
	if id == "" {
		return "", appErrors.Clone(appErrors.ErrValidation, "missing "+actorHeader+" header")
	}
	return id, nil
}
