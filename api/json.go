package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/nasermirzaei89/myboard/authentication"
	authcontext "github.com/nasermirzaei89/myboard/authentication/context"
	"github.com/nasermirzaei89/myboard/authorization"
	"github.com/nasermirzaei89/myboard/contents"
	"github.com/nasermirzaei89/myboard/discuss"
)

const maxRequestBodySize = 1 << 20

type errorResponse struct {
	Error string `json:"error"`
}

type InvalidRequestBodyError struct {
	Err error
}

func (err InvalidRequestBodyError) Error() string {
	return fmt.Sprintf("invalid request body: %s", err.Err)
}

func (err InvalidRequestBodyError) Unwrap() error {
	return err.Err
}

func readJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)

	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()

	err := dec.Decode(dst)
	if err != nil {
		if errors.Is(err, io.EOF) {
			return &InvalidRequestBodyError{Err: errors.New("body must not be empty")}
		}

		return &InvalidRequestBodyError{Err: err}
	}

	return nil
}

func writeJSON(w http.ResponseWriter, r *http.Request, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	err := json.NewEncoder(w).Encode(v)
	if err != nil {
		slog.ErrorContext(r.Context(), "failed to encode response", "error", err)
	}
}

// errorStatus maps err to the response status and the message shown to the client.
func errorStatus(r *http.Request, err error) (int, string) {
	var (
		accessDeniedError        *authorization.AccessDeniedError
		commentNotFoundError     *discuss.CommentNotFoundError
		postNotFoundError        *contents.PostNotFoundError
		memberNotFoundError      *authentication.MemberNotFoundError
		commentRemovedError      *discuss.CommentRemovedError
		memberAlreadyExistsError *authentication.MemberAlreadyExistsError
		invalidCommentError      *discuss.InvalidCommentError
		replyDepthExceededError  *discuss.ReplyDepthExceededError
		parentPostMismatchError  *discuss.ParentPostMismatchError
		invalidPostError         *contents.InvalidPostError
		invalidMemberError       *authentication.InvalidMemberError
		invalidRequestBodyError  *InvalidRequestBodyError
		invalidTokenError        *authentication.InvalidTokenError
	)

	switch {
	case errors.As(err, &accessDeniedError):
		if !isAuthenticated(r) {
			return http.StatusUnauthorized, "authentication required"
		}

		return http.StatusForbidden, "access denied"
	case errors.As(err, &commentNotFoundError):
		return http.StatusNotFound, "comment not found"
	case errors.As(err, &postNotFoundError):
		return http.StatusNotFound, "post not found"
	case errors.As(err, &memberNotFoundError):
		return http.StatusNotFound, "member not found"
	case errors.As(err, &commentRemovedError),
		errors.As(err, &memberAlreadyExistsError):
		return http.StatusConflict, err.Error()
	case errors.As(err, &invalidCommentError),
		errors.As(err, &replyDepthExceededError),
		errors.As(err, &parentPostMismatchError),
		errors.As(err, &invalidPostError),
		errors.As(err, &invalidMemberError),
		errors.As(err, &invalidRequestBodyError),
		errors.Is(err, authentication.ErrWrongPassword):
		return http.StatusBadRequest, err.Error()
	case errors.As(err, &invalidTokenError),
		errors.Is(err, authentication.ErrInvalidCredentials),
		errors.Is(err, authentication.ErrCurrentMemberNotFound):
		return http.StatusUnauthorized, err.Error()
	default:
		return http.StatusInternalServerError, "internal error occurred"
	}
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, message := errorStatus(r, err)

	if status == http.StatusInternalServerError {
		slog.ErrorContext(
			r.Context(),
			"failed to handle request",
			"method",
			r.Method,
			"path",
			r.URL.Path,
			"subject",
			authcontext.GetSubject(r.Context()),
			"error",
			err,
		)
	}

	writeJSON(w, r, status, errorResponse{Error: message})
}
