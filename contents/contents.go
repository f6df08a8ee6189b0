package contents

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
)

const ServiceName = "github.com/nasermirzaei89/myboard/contents"

const (
	maxTitleLength    = 100
	maxFilePathLength = 500
)

type Service interface {
	CreatePost(ctx context.Context, req CreatePostRequest) (post *Post, err error)
	GetPost(ctx context.Context, postID string) (post *Post, err error)
	ListPosts(ctx context.Context, params *ListPostsParams) (posts []*Post, err error)
	UpdatePost(ctx context.Context, req UpdatePostRequest) (post *Post, err error)
	DeletePost(ctx context.Context, postID string) (err error)
}

type BaseService struct {
	postRepo PostRepository
	now      func() time.Time
}

var _ Service = (*BaseService)(nil)

func NewService(postRepo PostRepository) *BaseService {
	return &BaseService{
		postRepo: postRepo,
		now:      time.Now,
	}
}

func validatePost(title, content, filePath string) error {
	if strings.TrimSpace(title) == "" {
		return &InvalidPostError{Field: "title", Reason: "must not be empty"}
	}

	if utf8.RuneCountInString(title) > maxTitleLength {
		return &InvalidPostError{Field: "title", Reason: fmt.Sprintf("must be at most %d characters", maxTitleLength)}
	}

	if strings.TrimSpace(content) == "" {
		return &InvalidPostError{Field: "content", Reason: "must not be empty"}
	}

	if utf8.RuneCountInString(filePath) > maxFilePathLength {
		return &InvalidPostError{
			Field:  "filePath",
			Reason: fmt.Sprintf("must be at most %d characters", maxFilePathLength),
		}
	}

	return nil
}

type CreatePostRequest struct {
	AuthorID string
	Title    string
	Content  string
	FilePath string
}

func (svc *BaseService) CreatePost(ctx context.Context, req CreatePostRequest) (*Post, error) {
	err := validatePost(req.Title, req.Content, req.FilePath)
	if err != nil {
		return nil, err
	}

	post := &Post{
		ID:        uuid.NewString(),
		AuthorID:  req.AuthorID,
		Title:     req.Title,
		Content:   req.Content,
		FilePath:  req.FilePath,
		CreatedAt: svc.now(),
	}

	err = svc.postRepo.Insert(ctx, post)
	if err != nil {
		return nil, fmt.Errorf("failed to create post: %w", err)
	}

	return post, nil
}

func (svc *BaseService) GetPost(ctx context.Context, postID string) (*Post, error) {
	post, err := svc.postRepo.Find(ctx, postID)
	if err != nil {
		return nil, fmt.Errorf("failed to find post: %w", err)
	}

	return post, nil
}

func (svc *BaseService) ListPosts(ctx context.Context, params *ListPostsParams) ([]*Post, error) {
	if params == nil {
		params = &ListPostsParams{}
	}

	posts, err := svc.postRepo.List(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("failed to list posts: %w", err)
	}

	return posts, nil
}

// UpdatePostRequest changes only the fields that are set.
type UpdatePostRequest struct {
	PostID   string
	Title    *string
	Content  *string
	FilePath *string
}

func (svc *BaseService) UpdatePost(ctx context.Context, req UpdatePostRequest) (*Post, error) {
	post, err := svc.postRepo.Find(ctx, req.PostID)
	if err != nil {
		return nil, fmt.Errorf("failed to find post: %w", err)
	}

	if req.Title != nil {
		post.Title = *req.Title
	}

	if req.Content != nil {
		post.Content = *req.Content
	}

	if req.FilePath != nil {
		post.FilePath = *req.FilePath
	}

	err = validatePost(post.Title, post.Content, post.FilePath)
	if err != nil {
		return nil, err
	}

	timeNow := svc.now()
	post.UpdatedAt = &timeNow

	err = svc.postRepo.Update(ctx, post)
	if err != nil {
		return nil, fmt.Errorf("failed to update post: %w", err)
	}

	return post, nil
}

// DeletePost deletes the post together with all of its comments.
func (svc *BaseService) DeletePost(ctx context.Context, postID string) error {
	err := svc.postRepo.Delete(ctx, postID)
	if err != nil {
		return fmt.Errorf("failed to delete post: %w", err)
	}

	return nil
}
