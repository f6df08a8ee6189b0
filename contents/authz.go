package contents

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/nasermirzaei89/myboard/authorization"
)

const (
	ActionCreatePost = "createPost"
	ActionGetPost    = "getPost"
	ActionListPosts  = "listPosts"
	ActionUpdatePost = "updatePost"
	ActionDeletePost = "deletePost"
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

func (mw *AuthorizationMiddleware) CreatePost(ctx context.Context, req CreatePostRequest) (*Post, error) {
	err := mw.authzClient.CheckAccess(ctx, ServiceName, "", ActionCreatePost)
	if err != nil {
		return nil, fmt.Errorf("failed to check authorization: %w", err)
	}

	post, err := mw.next.CreatePost(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("failed to call next method: %w", err)
	}

	err = mw.authzClient.AddPolicyForSubject(ctx, post.AuthorID, ServiceName, post.ID, ActionUpdatePost, ActionDeletePost)
	if err != nil {
		return nil, fmt.Errorf("failed to grant author access: %w", err)
	}

	return post, nil
}

func (mw *AuthorizationMiddleware) GetPost(ctx context.Context, postID string) (*Post, error) {
	err := mw.authzClient.CheckAccess(ctx, ServiceName, postID, ActionGetPost)
	if err != nil {
		return nil, fmt.Errorf("failed to check authorization: %w", err)
	}

	post, err := mw.next.GetPost(ctx, postID)
	if err != nil {
		return nil, fmt.Errorf("failed to call next method: %w", err)
	}

	return post, nil
}

func (mw *AuthorizationMiddleware) ListPosts(ctx context.Context, params *ListPostsParams) ([]*Post, error) {
	err := mw.authzClient.CheckAccess(ctx, ServiceName, "", ActionListPosts)
	if err != nil {
		return nil, fmt.Errorf("failed to check authorization: %w", err)
	}

	posts, err := mw.next.ListPosts(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("failed to call next method: %w", err)
	}

	return posts, nil
}

func (mw *AuthorizationMiddleware) UpdatePost(ctx context.Context, req UpdatePostRequest) (*Post, error) {
	err := mw.checkPostAccess(ctx, req.PostID, ActionUpdatePost)
	if err != nil {
		return nil, err
	}

	post, err := mw.next.UpdatePost(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("failed to call next method: %w", err)
	}

	return post, nil
}

func (mw *AuthorizationMiddleware) DeletePost(ctx context.Context, postID string) error {
	err := mw.checkPostAccess(ctx, postID, ActionDeletePost)
	if err != nil {
		return err
	}

	err = mw.next.DeletePost(ctx, postID)
	if err != nil {
		return fmt.Errorf("failed to call next method: %w", err)
	}

	err = mw.authzClient.RemoveObjectPolicies(ctx, ServiceName, postID)
	if err != nil {
		slog.ErrorContext(ctx, "failed to remove policies of deleted post", "postId", postID, "error", err)
	}

	return nil
}

// checkPostAccess reports a missing post as not found rather than as denied access.
func (mw *AuthorizationMiddleware) checkPostAccess(ctx context.Context, postID, action string) error {
	err := mw.authzClient.CheckAccess(ctx, ServiceName, postID, action)
	if err == nil {
		return nil
	}

	var accessDeniedErr *authorization.AccessDeniedError
	if !errors.As(err, &accessDeniedErr) {
		return fmt.Errorf("failed to check authorization: %w", err)
	}

	_, findErr := mw.next.GetPost(ctx, postID)
	if findErr != nil {
		var notFoundErr *PostNotFoundError
		if errors.As(findErr, &notFoundErr) {
			return fmt.Errorf("failed to find post: %w", findErr)
		}
	}

	return fmt.Errorf("failed to check authorization: %w", err)
}
