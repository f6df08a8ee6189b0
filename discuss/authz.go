package discuss

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/nasermirzaei89/myboard/authorization"
)

const (
	ActionCreateComment   = "createComment"
	ActionSaveComment     = "saveComment"
	ActionGetComment      = "getComment"
	ActionListComments    = "listComments"
	ActionListAllComments = "listAllComments"
	ActionCountComments   = "countComments"
	ActionUpdateComment   = "updateComment"
	ActionRemoveComment   = "removeComment"
)

type AuthorizationMiddleware struct {
	authzClient *authorization.Client
	next        Service
}

var _ Service = (*AuthorizationMiddleware)(nil)

func NewAuthorizationMiddleware(authzClient *authorization.Client, next Service) *AuthorizationMiddleware {
	return &AuthorizationMiddleware{
		authzClient: authzClient,
		next:        next,
	}
}

func (mw *AuthorizationMiddleware) CreateComment(ctx context.Context, req CreateCommentRequest) (*Comment, error) {
	err := mw.authzClient.CheckAccess(ctx, ServiceName, req.PostID, ActionCreateComment)
	if err != nil {
		return nil, fmt.Errorf("failed to check authorization: %w", err)
	}

	comment, err := mw.next.CreateComment(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("failed to call next method: %w", err)
	}

	err = mw.authzClient.AddPolicyForSubject(
		ctx,
		comment.AuthorID,
		ServiceName,
		comment.ID,
		ActionUpdateComment,
		ActionRemoveComment,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to grant author access: %w", err)
	}

	return comment, nil
}

func (mw *AuthorizationMiddleware) SaveComment(ctx context.Context, comment *Comment) error {
	err := mw.authzClient.CheckAccess(ctx, ServiceName, comment.ID, ActionSaveComment)
	if err != nil {
		return fmt.Errorf("failed to check authorization: %w", err)
	}

	err = mw.next.SaveComment(ctx, comment)
	if err != nil {
		return fmt.Errorf("failed to call next method: %w", err)
	}

	return nil
}

func (mw *AuthorizationMiddleware) GetComment(ctx context.Context, commentID string) (*Comment, error) {
	err := mw.authzClient.CheckAccess(ctx, ServiceName, commentID, ActionGetComment)
	if err != nil {
		return nil, fmt.Errorf("failed to check authorization: %w", err)
	}

	comment, err := mw.next.GetComment(ctx, commentID)
	if err != nil {
		return nil, fmt.Errorf("failed to call next method: %w", err)
	}

	return comment, nil
}

func (mw *AuthorizationMiddleware) ListComments(ctx context.Context, postID string) ([]*Comment, error) {
	err := mw.authzClient.CheckAccess(ctx, ServiceName, postID, ActionListComments)
	if err != nil {
		return nil, fmt.Errorf("failed to check authorization: %w", err)
	}

	comments, err := mw.next.ListComments(ctx, postID)
	if err != nil {
		return nil, fmt.Errorf("failed to call next method: %w", err)
	}

	return comments, nil
}

func (mw *AuthorizationMiddleware) ListAllComments(ctx context.Context) ([]*Comment, error) {
	err := mw.authzClient.CheckAccess(ctx, ServiceName, "", ActionListAllComments)
	if err != nil {
		return nil, fmt.Errorf("failed to check authorization: %w", err)
	}

	comments, err := mw.next.ListAllComments(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to call next method: %w", err)
	}

	return comments, nil
}

func (mw *AuthorizationMiddleware) CountComments(ctx context.Context, postID string) (int, error) {
	err := mw.authzClient.CheckAccess(ctx, ServiceName, postID, ActionCountComments)
	if err != nil {
		return 0, fmt.Errorf("failed to check authorization: %w", err)
	}

	count, err := mw.next.CountComments(ctx, postID)
	if err != nil {
		return 0, fmt.Errorf("failed to call next method: %w", err)
	}

	return count, nil
}

func (mw *AuthorizationMiddleware) UpdateComment(ctx context.Context, req UpdateCommentRequest) (*Comment, error) {
	err := mw.checkCommentAccess(ctx, req.CommentID, ActionUpdateComment)
	if err != nil {
		return nil, err
	}

	comment, err := mw.next.UpdateComment(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("failed to call next method: %w", err)
	}

	return comment, nil
}

func (mw *AuthorizationMiddleware) RemoveComment(ctx context.Context, commentID string) ([]*Comment, error) {
	err := mw.checkCommentAccess(ctx, commentID, ActionRemoveComment)
	if err != nil {
		return nil, err
	}

	purged, err := mw.next.RemoveComment(ctx, commentID)
	if err != nil {
		return nil, fmt.Errorf("failed to call next method: %w", err)
	}

	revokeAuthorAccess(ctx, mw.authzClient, purged)

	return purged, nil
}

// revokeAuthorAccess takes back what CreateComment granted the authors of purged comments.
func revokeAuthorAccess(ctx context.Context, authzClient *authorization.Client, purged []*Comment) {
	for _, comment := range purged {
		err := authzClient.RemovePolicyForSubject(
			ctx,
			comment.AuthorID,
			ServiceName,
			comment.ID,
			ActionUpdateComment,
			ActionRemoveComment,
		)
		if err != nil {
			slog.ErrorContext(ctx, "failed to remove policies of purged comment", "commentId", comment.ID, "error", err)
		}
	}
}

// checkCommentAccess reports a missing comment as not found rather than as denied access.
func (mw *AuthorizationMiddleware) checkCommentAccess(ctx context.Context, commentID, action string) error {
	err := mw.authzClient.CheckAccess(ctx, ServiceName, commentID, action)
	if err == nil {
		return nil
	}

	var accessDeniedErr *authorization.AccessDeniedError
	if !errors.As(err, &accessDeniedErr) {
		return fmt.Errorf("failed to check authorization: %w", err)
	}

	_, findErr := mw.next.GetComment(ctx, commentID)
	if findErr != nil {
		var notFoundErr *CommentNotFoundError
		if errors.As(findErr, &notFoundErr) {
			return fmt.Errorf("failed to find comment: %w", findErr)
		}
	}

	return fmt.Errorf("failed to check authorization: %w", err)
}

// SweepableService is a Service that can also sweep inert threads.
type SweepableService interface {
	Service
	Sweepable
}

// SweepAuthorizationMiddleware revokes the policies of swept comments. It also drops the
// policies of comments deleted without going through the service, such as by a post or
// member delete cascade.
type SweepAuthorizationMiddleware struct {
	authzClient *authorization.Client
	next        SweepableService
}

var _ Sweepable = (*SweepAuthorizationMiddleware)(nil)

func NewSweepAuthorizationMiddleware(
	authzClient *authorization.Client,
	next SweepableService,
) *SweepAuthorizationMiddleware {
	return &SweepAuthorizationMiddleware{
		authzClient: authzClient,
		next:        next,
	}
}

func (mw *SweepAuthorizationMiddleware) Sweep(ctx context.Context) ([]*Comment, error) {
	purged, err := mw.next.Sweep(ctx)

	revokeAuthorAccess(ctx, mw.authzClient, purged)

	if err != nil {
		return purged, fmt.Errorf("failed to call next method: %w", err)
	}

	err = mw.dropStalePolicies(ctx)
	if err != nil {
		return purged, err
	}

	return purged, nil
}

// dropStalePolicies removes the policies granted on comments that no longer exist.
func (mw *SweepAuthorizationMiddleware) dropStalePolicies(ctx context.Context) error {
	objects, err := mw.authzClient.ListObjects(ctx, ServiceName)
	if err != nil {
		return fmt.Errorf("failed to list comment policies: %w", err)
	}

	for _, commentID := range objects {
		_, err = mw.next.GetComment(ctx, commentID)
		if err == nil {
			continue
		}

		var notFoundErr *CommentNotFoundError
		if !errors.As(err, &notFoundErr) {
			return fmt.Errorf("failed to find comment: %w", err)
		}

		err = mw.authzClient.RemoveObjectPolicies(ctx, ServiceName, commentID)
		if err != nil {
			return fmt.Errorf("failed to remove policies of comment %q: %w", commentID, err)
		}

		slog.DebugContext(ctx, "removed policies of deleted comment", "commentId", commentID)
	}

	return nil
}
