package service

import (
	"errors"
	"net/http"

	apperrors "github.com/spec-kit/ticket-portal/pkg/util/errorutil"
	"github.com/spec-kit/ticket-portal/pkg/util/validation"
)

// Service errors carry the message shown to the user. Compare with errors.Is.
var (
	ErrFieldsRequired       = apperrors.NewValidationError("All fields are required.", nil)
	ErrInvalidEmail         = apperrors.NewValidationError("Please enter a valid email address.", nil)
	ErrInvalidUsername      = apperrors.NewValidationError("Username may not contain spaces, colons or brackets.", nil)
	ErrPasswordTooLong      = apperrors.NewValidationError("Password must be at most 72 bytes long.", nil)
	ErrUsernameTaken        = apperrors.NewConflict("Username already exists.", nil)
	ErrInvalidCredentials   = apperrors.NewUnauthorized("Username/password is incorrect.")
	ErrTicketFieldsRequired = apperrors.NewValidationError("Please fill in all fields.", nil)
	ErrDuplicateTicket      = apperrors.NewConflict("You already submitted this ticket.", nil)
	ErrTicketNotOwned       = apperrors.NewDomainError("NOT_FOUND", "Ticket not found or not owned by you.", http.StatusNotFound, nil)
	ErrTicketNotFound       = apperrors.NewDomainError("NOT_FOUND", "Ticket not found.", http.StatusNotFound, nil)
	ErrTicketActive         = apperrors.NewConflict("This ticket is already active.", nil)
	ErrTicketClosed         = apperrors.NewConflict("This ticket is closed. Reopen it to add a comment.", nil)
	ErrIllegalTransition    = apperrors.NewConflict("Only open or reopened tickets can be resolved or discarded.", nil)
	ErrTicketChanged        = apperrors.NewConflict("This ticket was changed by someone else. Reload and try again.", nil)
	ErrReopenComment        = apperrors.NewValidationError("Please enter a comment explaining why you are reopening the ticket.", nil)
	ErrCommentRequired      = apperrors.NewValidationError("Please enter a comment.", nil)
	ErrReplyRequired        = apperrors.NewValidationError("Please enter a reply.", nil)
	ErrUnknownStatus        = apperrors.NewValidationError("Unknown ticket status.", nil)
)

// checkInput validates tagged input. Missing values map to required, bad
// addresses to ErrInvalidEmail, oversized passwords to ErrPasswordTooLong, anything else to a detailed validation error.
func checkInput(input interface{}, required error) error {
	err := validation.Struct(input)
	if err == nil {
		return nil
	}
	var fieldErrs validation.Errors
	if !errors.As(err, &fieldErrs) {
		return apperrors.NewInternalError(err)
	}
	switch {
	case fieldErrs.Has("required"):
		return required
	case fieldErrs.Has("email"):
		return ErrInvalidEmail
	case fieldErrs.Has("maxbytes"):
		return ErrPasswordTooLong
	case fieldErrs.Has("excludesall"), fieldErrs.Has("nospace"):
		return ErrInvalidUsername
	default:
		return apperrors.NewValidationError(fieldErrs.Error(), fieldErrs.Details())
	}
}
