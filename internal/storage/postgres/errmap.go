package postgres

import (
	"strings"

	"github.com/lib/pq"

	hxerrors "github.com/hustlexp/hustlexp-core/internal/errors"
)

// wrapDBError classifies a raw database/sql error into a *errors.DomainError,
// generalizing the teacher's relationaldb.WrapError message-sniffing
// classifier. Storage-kernel trigger rejections surface their stable HX
// code verbatim (§7 "invariant codes are stable: tests match them exactly");
// unique-constraint violations become conflicts; everything else is wrapped
// as an internal error.
func wrapDBError(operation string, err error) *hxerrors.DomainError {
	if err == nil {
		return nil
	}

	if pqErr, ok := err.(*pq.Error); ok {
		if code, ok := extractHXCode(pqErr.Message); ok {
			return hxerrors.NewInvariantError(code, pqErr.Message, err)
		}
		switch pqErr.Code.Name() {
		case "unique_violation":
			return hxerrors.NewConflictError(hxerrors.CodeAlreadyExists, operation+": unique constraint violated", err)
		case "foreign_key_violation":
			return hxerrors.NewValidationError(operation + ": referenced row does not exist")
		}
	}

	if code, ok := extractHXCode(err.Error()); ok {
		return hxerrors.NewInvariantError(code, err.Error(), err)
	}

	return hxerrors.NewInternalError(operation+": database error", err)
}

// extractHXCode looks for a leading "HX###:" token in a trigger-raised
// error message, which is how each trigger function in
// internal/storage/postgres/migrations reports its invariant code.
func extractHXCode(message string) (hxerrors.Code, bool) {
	idx := strings.Index(message, "HX")
	if idx == -1 {
		return "", false
	}
	rest := message[idx:]
	colon := strings.Index(rest, ":")
	if colon == -1 || colon > 7 {
		return "", false
	}
	candidate := rest[:colon]
	switch hxerrors.Code(candidate) {
	case hxerrors.CodeHX001, hxerrors.CodeHX002, hxerrors.CodeHX004, hxerrors.CodeHX101, hxerrors.CodeHX102,
		hxerrors.CodeHX201, hxerrors.CodeHX301, hxerrors.CodeHX401, hxerrors.CodeHX501,
		hxerrors.CodeHX701, hxerrors.CodeHX702, hxerrors.CodeHX801, hxerrors.CodeHX810,
		hxerrors.CodeHX811, hxerrors.CodeHX902:
		return hxerrors.Code(candidate), true
	default:
		return "", false
	}
}
