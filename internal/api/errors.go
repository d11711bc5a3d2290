package api

import (
	"errors"

	domainerrors "github.com/giannitedesco/minotaur/internal/errors"
	"github.com/giannitedesco/minotaur/pkg/inotify"
)

// fromInotify maps an inotify error onto the API's error codes. The
// inotify code travels in the details so clients can tell cases apart.
func fromInotify(err error) error {
	var ie *inotify.Error
	if !errors.As(err, &ie) {
		return err
	}

	var code domainerrors.Code
	switch ie.Code {
	case inotify.CodeNotFound, inotify.CodeInvalidDescriptor:
		code = domainerrors.CodeNotFound
	case inotify.CodeAlreadyExists:
		code = domainerrors.CodeAlreadyExists
	case inotify.CodePermissionDenied:
		code = domainerrors.CodeForbidden
	case inotify.CodeResourceExhausted, inotify.CodeSessionClosed:
		code = domainerrors.CodeUnavailable
	case inotify.CodeUnsupported:
		code = domainerrors.CodeNotImplemented
	default:
		code = domainerrors.CodeInternal
	}

	return domainerrors.Wrap(err, code, "inotify "+ie.Op+" failed").
		WithDetails(map[string]string{"inotify_code": string(ie.Code)})
}
