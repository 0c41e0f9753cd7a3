package syncer

import (
	"fmt"

	"github.com/pkg/errors"

	"github.com/BearBump/ParcelDesk/internal/integrations/track17"
	"github.com/BearBump/ParcelDesk/internal/models"
)

type ErrorKind string

const (
	KindNone       ErrorKind = ""
	KindTransport  ErrorKind = "transport"
	KindAPI        ErrorKind = "api"
	KindNotFound   ErrorKind = "not_found"
	KindValidation ErrorKind = "validation"
	KindInternal   ErrorKind = "internal"
)

func KindOf(err error) ErrorKind {
	if err == nil {
		return KindNone
	}
	if e, ok := track17.AsError(err); ok {
		if e.Kind == track17.KindTransport {
			return KindTransport
		}
		return KindAPI
	}
	var ve *models.ValidationError
	if errors.As(err, &ve) {
		return KindValidation
	}
	if errors.Is(err, models.ErrNotFound) {
		return KindNotFound
	}
	return KindInternal
}

// Message is the user-facing text for a failed sync cycle.
func Message(err error) string {
	if err == nil {
		return ""
	}
	if e, ok := track17.AsError(err); ok {
		return fmt.Sprintf("API Error (%d): %s", e.Code, e.Message)
	}
	return err.Error()
}

// mutationMessage prefixes remote failures with what the user was trying to do.
// Local failures (validation, missing package) are shown as-is.
func mutationMessage(action string, err error) string {
	if e, ok := track17.AsError(err); ok {
		return fmt.Sprintf("Failed to %s: %s", action, e.Message)
	}
	var ve *models.ValidationError
	if errors.As(err, &ve) {
		return ve.Error()
	}
	if errors.Is(err, models.ErrNotFound) {
		return models.ErrNotFound.Error()
	}
	return fmt.Sprintf("Failed to %s: %s", action, err.Error())
}
