package server

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	assetsapp "github.com/atlasmarkets/refdata/internal/domains/assets/application"
	sourcesapp "github.com/atlasmarkets/refdata/internal/domains/datasources/application"
	ingestionapp "github.com/atlasmarkets/refdata/internal/domains/ingestion/application"
	tsapp "github.com/atlasmarkets/refdata/internal/domains/timeseries/application"
	sharederrors "github.com/atlasmarkets/refdata/internal/shared/errors"
)

// responder translates the service error taxonomy into RFC 7807
// responses: validation failures to 400, then the version store's
// not-found/conflict/storage mapping.
var responder = sharederrors.NewChainedResponder("",
	mapInvalidInput,
	sharederrors.MapVersioningError,
)

func mapInvalidInput(err error) (sharederrors.ProblemDetail, bool) {
	switch {
	case errors.Is(err, assetsapp.ErrInvalidInput),
		errors.Is(err, sourcesapp.ErrInvalidInput),
		errors.Is(err, tsapp.ErrInvalidInput),
		errors.Is(err, tsapp.ErrInvalidRange),
		errors.Is(err, ingestionapp.ErrInvalidInput):
		return sharederrors.ErrValidation.WithDetail(err.Error()), true
	default:
		return sharederrors.ProblemDetail{}, false
	}
}

// respondServiceError maps an application error through the responder.
func respondServiceError(c *gin.Context, err error) {
	if err == nil {
		return
	}
	responder.RespondError(c, err)
}

// respondError answers transport-level failures such as malformed
// payloads or unparseable parameters.
func respondError(c *gin.Context, status int, err error) {
	if err == nil {
		return
	}
	switch status {
	case http.StatusBadRequest:
		responder.Respond(c, sharederrors.ErrBadRequest.WithDetail(err.Error()))
	case http.StatusNotFound:
		responder.Respond(c, sharederrors.ErrNotFound.WithDetail(err.Error()))
	default:
		responder.Respond(c, sharederrors.ErrInternal.WithDetail(err.Error()))
	}
}
