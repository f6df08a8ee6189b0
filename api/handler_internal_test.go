package api

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/nasermirzaei89/myboard/authentication"
	authcontext "github.com/nasermirzaei89/myboard/authentication/context"
	"github.com/nasermirzaei89/myboard/authorization"
	"github.com/nasermirzaei89/myboard/contents"
	"github.com/nasermirzaei89/myboard/discuss"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCommentThreads(t *testing.T) {
	t.Parallel()

	now := time.Now()
	ptr := func(s string) *string { return &s }

	comments := []*discuss.Comment{
		{ID: "a", PostID: "p", Content: "first", CreatedAt: now},
		{ID: "b", PostID: "p", ParentID: ptr("a"), Content: "reply", CreatedAt: now},
		{ID: "c", PostID: "p", Content: "gone", Removed: true, CreatedAt: now},
		{ID: "d", PostID: "p", ParentID: ptr("a"), Content: "removed reply", Removed: true, CreatedAt: now},
		{ID: "e", PostID: "p", ParentID: ptr("c"), Content: "late reply", CreatedAt: now},
	}

	threads := commentThreads(comments)
	require.Len(t, threads, 2)

	assert.Equal(t, "a", threads[0].ID)
	assert.Equal(t, "first", threads[0].Content)
	require.Len(t, threads[0].Replies, 2)
	assert.Equal(t, "b", threads[0].Replies[0].ID)
	assert.Equal(t, "d", threads[0].Replies[1].ID)
	assert.True(t, threads[0].Replies[1].Removed)
	assert.Empty(t, threads[0].Replies[1].Content)

	assert.Equal(t, "c", threads[1].ID)
	assert.True(t, threads[1].Removed)
	assert.Empty(t, threads[1].Content)
	require.Len(t, threads[1].Replies, 1)
	assert.Equal(t, "e", threads[1].Replies[0].ID)

	assert.Empty(t, commentThreads(nil))
}

func TestErrorStatus(t *testing.T) {
	t.Parallel()

	wrap := func(err error) error {
		return fmt.Errorf("failed to call next method: %w", err)
	}

	tests := []struct {
		name          string
		err           error
		authenticated bool
		expected      int
	}{
		{
			name:     "access denied for anonymous",
			err:      wrap(&authorization.AccessDeniedError{Subject: authcontext.Anonymous}),
			expected: http.StatusUnauthorized,
		},
		{
			name:          "access denied for member",
			err:           wrap(&authorization.AccessDeniedError{Subject: "member"}),
			authenticated: true,
			expected:      http.StatusForbidden,
		},
		{
			name:     "comment not found",
			err:      wrap(&discuss.CommentNotFoundError{ID: "x"}),
			expected: http.StatusNotFound,
		},
		{
			name:     "post not found",
			err:      wrap(&contents.PostNotFoundError{ID: "x"}),
			expected: http.StatusNotFound,
		},
		{
			name:     "member not found",
			err:      wrap(&authentication.MemberNotFoundError{ID: "x"}),
			expected: http.StatusNotFound,
		},
		{
			name:     "comment removed",
			err:      wrap(&discuss.CommentRemovedError{ID: "x"}),
			expected: http.StatusConflict,
		},
		{
			name:     "username taken",
			err:      &authentication.MemberAlreadyExistsError{Username: "alice"},
			expected: http.StatusConflict,
		},
		{
			name:     "reply depth",
			err:      wrap(&discuss.ReplyDepthExceededError{ParentID: "x"}),
			expected: http.StatusBadRequest,
		},
		{
			name:     "parent on another post",
			err:      wrap(&discuss.ParentPostMismatchError{ParentID: "x", PostID: "p"}),
			expected: http.StatusBadRequest,
		},
		{
			name:     "invalid post",
			err:      &contents.InvalidPostError{Field: "title", Reason: "required"},
			expected: http.StatusBadRequest,
		},
		{
			name:     "wrong password",
			err:      authentication.ErrWrongPassword,
			expected: http.StatusBadRequest,
		},
		{
			name:     "invalid token",
			err:      &authentication.InvalidTokenError{Reason: "expired"},
			expected: http.StatusUnauthorized,
		},
		{
			name:     "invalid credentials",
			err:      authentication.ErrInvalidCredentials,
			expected: http.StatusUnauthorized,
		},
		{
			name:     "anything else",
			err:      errors.New("disk on fire"),
			expected: http.StatusInternalServerError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			r := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.authenticated {
				r = r.WithContext(authcontext.WithSubject(r.Context(), "member"))
			}

			status, message := errorStatus(r, tt.err)
			assert.Equal(t, tt.expected, status)
			assert.NotEmpty(t, message)

			if status == http.StatusInternalServerError {
				assert.NotContains(t, message, "disk on fire")
			}
		})
	}
}
