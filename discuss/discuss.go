package discuss

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/im7mortal/kmutex"
)

const ServiceName = "github.com/nasermirzaei89/myboard/discuss"

const maxContentLength = 10_000

type Service interface {
	CreateComment(ctx context.Context, req CreateCommentRequest) (comment *Comment, err error)
	SaveComment(ctx context.Context, comment *Comment) (err error)
	GetComment(ctx context.Context, commentID string) (comment *Comment, err error)
	ListComments(ctx context.Context, postID string) (comments []*Comment, err error)
	ListAllComments(ctx context.Context) (comments []*Comment, err error)
	CountComments(ctx context.Context, postID string) (count int, err error)
	UpdateComment(ctx context.Context, req UpdateCommentRequest) (comment *Comment, err error)
	RemoveComment(ctx context.Context, commentID string) (purged []*Comment, err error)
}

// Sweepable purges threads that are left eligible for purge.
type Sweepable interface {
	Sweep(ctx context.Context) (purged []*Comment, err error)
}

type BaseService struct {
	commentRepo CommentRepository
	threadLocks *kmutex.Kmutex
	now         func() time.Time
}

var _ Service = (*BaseService)(nil)

func NewService(commentRepo CommentRepository) *BaseService {
	return &BaseService{
		commentRepo: commentRepo,
		threadLocks: kmutex.New(),
		now:         time.Now,
	}
}

type CreateCommentRequest struct {
	PostID   string
	AuthorID string
	Content  string
	ParentID string
}

func validateContent(content string) error {
	if strings.TrimSpace(content) == "" {
		return &InvalidCommentError{Field: "content", Reason: "must not be empty"}
	}

	if utf8.RuneCountInString(content) > maxContentLength {
		return &InvalidCommentError{Field: "content", Reason: fmt.Sprintf("must be at most %d characters", maxContentLength)}
	}

	return nil
}

// CreateComment stores a new comment. A reply is checked against its parent and inserted
// under the parent's thread lock in one transaction, so the parent cannot be removed in between.
func (svc *BaseService) CreateComment(ctx context.Context, req CreateCommentRequest) (*Comment, error) {
	err := validateContent(req.Content)
	if err != nil {
		return nil, err
	}

	comment := &Comment{
		PostID:   req.PostID,
		AuthorID: req.AuthorID,
		Content:  req.Content,
	}

	if req.ParentID == "" {
		comment.CreatedAt = svc.now()

		err = svc.commentRepo.Save(ctx, comment)
		if err != nil {
			return nil, fmt.Errorf("failed to save comment: %w", err)
		}

		return comment, nil
	}

	svc.threadLocks.Lock(req.ParentID)
	defer svc.threadLocks.Unlock(req.ParentID)

	err = svc.commentRepo.Transaction(ctx, func(repo CommentRepository) error {
		parent, err := repo.Find(ctx, req.ParentID)
		if err != nil {
			return fmt.Errorf("failed to find parent comment: %w", err)
		}

		switch {
		case parent.IsReply():
			return &ReplyDepthExceededError{ParentID: parent.ID}
		case parent.PostID != req.PostID:
			return &ParentPostMismatchError{ParentID: parent.ID, PostID: req.PostID}
		case parent.Removed:
			return &CommentRemovedError{ID: parent.ID}
		}

		comment.ParentID = &parent.ID
		comment.CreatedAt = svc.now()

		err = repo.Save(ctx, comment)
		if err != nil {
			return fmt.Errorf("failed to save comment: %w", err)
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	return comment, nil
}

func (svc *BaseService) SaveComment(ctx context.Context, comment *Comment) error {
	err := svc.commentRepo.Save(ctx, comment)
	if err != nil {
		return fmt.Errorf("failed to save comment: %w", err)
	}

	return nil
}

func (svc *BaseService) GetComment(ctx context.Context, commentID string) (*Comment, error) {
	comment, err := svc.commentRepo.Find(ctx, commentID)
	if err != nil {
		return nil, fmt.Errorf("failed to find comment: %w", err)
	}

	return comment, nil
}

func (svc *BaseService) ListComments(ctx context.Context, postID string) ([]*Comment, error) {
	comments, err := svc.commentRepo.List(ctx, &ListCommentsParams{PostID: postID})
	if err != nil {
		return nil, fmt.Errorf("failed to list comments: %w", err)
	}

	return comments, nil
}

func (svc *BaseService) ListAllComments(ctx context.Context) ([]*Comment, error) {
	comments, err := svc.commentRepo.List(ctx, &ListCommentsParams{})
	if err != nil {
		return nil, fmt.Errorf("failed to list comments: %w", err)
	}

	return comments, nil
}

func (svc *BaseService) CountComments(ctx context.Context, postID string) (int, error) {
	count, err := svc.commentRepo.Count(ctx, &ListCommentsParams{PostID: postID})
	if err != nil {
		return 0, fmt.Errorf("failed to count comments: %w", err)
	}

	return count, nil
}

type UpdateCommentRequest struct {
	CommentID string
	Content   string
}

func (svc *BaseService) UpdateComment(ctx context.Context, req UpdateCommentRequest) (*Comment, error) {
	err := validateContent(req.Content)
	if err != nil {
		return nil, err
	}

	comment, err := svc.commentRepo.Find(ctx, req.CommentID)
	if err != nil {
		return nil, fmt.Errorf("failed to find comment: %w", err)
	}

	err = comment.UpdateContent(req.Content, svc.now())
	if err != nil {
		return nil, err
	}

	err = svc.commentRepo.Save(ctx, comment)
	if err != nil {
		return nil, fmt.Errorf("failed to save comment: %w", err)
	}

	return comment, nil
}

// RemoveComment soft-deletes the comment and purges every comment the removal made
// eligible, all in one transaction, and returns the purged comments. Removals within a
// thread are serialized.
func (svc *BaseService) RemoveComment(ctx context.Context, commentID string) ([]*Comment, error) {
	comment, err := svc.commentRepo.Find(ctx, commentID)
	if err != nil {
		return nil, fmt.Errorf("failed to find comment: %w", err)
	}

	threadID := comment.ThreadID()

	svc.threadLocks.Lock(threadID)
	defer svc.threadLocks.Unlock(threadID)

	var purged []*Comment

	err = svc.commentRepo.Transaction(ctx, func(repo CommentRepository) error {
		comment, err := repo.Find(ctx, commentID)
		if err != nil {
			return fmt.Errorf("failed to find comment: %w", err)
		}

		comment.Remove(svc.now())

		err = repo.Save(ctx, comment)
		if err != nil {
			return fmt.Errorf("failed to save comment: %w", err)
		}

		rel, err := loadRelatives(ctx, repo, comment)
		if err != nil {
			return fmt.Errorf("failed to load relatives: %w", err)
		}

		purged = comment.EligibleForPurge(rel)

		for _, c := range purged {
			err = repo.Delete(ctx, c.ID)
			if err != nil {
				return fmt.Errorf("failed to delete comment %q: %w", c.ID, err)
			}
		}

		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to remove comment: %w", err)
	}

	slog.DebugContext(ctx, "comment removed", "commentId", commentID, "purged", len(purged))

	return purged, nil
}

func loadRelatives(ctx context.Context, repo CommentRepository, comment *Comment) (Relatives, error) {
	var rel Relatives

	if comment.ParentID == nil {
		children, err := repo.List(ctx, &ListCommentsParams{ParentID: &comment.ID})
		if err != nil {
			return rel, fmt.Errorf("failed to list children: %w", err)
		}

		rel.Children = children

		return rel, nil
	}

	parent, err := repo.Find(ctx, *comment.ParentID)
	if err != nil {
		var notFoundErr *CommentNotFoundError
		if errors.As(err, &notFoundErr) {
			return rel, nil
		}

		return rel, fmt.Errorf("failed to find parent: %w", err)
	}

	siblings, err := repo.List(ctx, &ListCommentsParams{ParentID: &parent.ID})
	if err != nil {
		return rel, fmt.Errorf("failed to list siblings: %w", err)
	}

	rel.Parent = parent
	rel.Siblings = siblings

	return rel, nil
}

// ListPurgeable lists every comment of an inert thread: a removed top-level comment whose
// replies are all removed. Such threads are left behind when the rule could not run.
func (svc *BaseService) ListPurgeable(ctx context.Context) ([]*Comment, error) {
	removed := true

	roots, err := svc.commentRepo.List(ctx, &ListCommentsParams{TopLevel: true, Removed: &removed})
	if err != nil {
		return nil, fmt.Errorf("failed to list removed comments: %w", err)
	}

	result := make([]*Comment, 0)

	for _, root := range roots {
		rel, err := loadRelatives(ctx, svc.commentRepo, root)
		if err != nil {
			return nil, fmt.Errorf("failed to load relatives: %w", err)
		}

		result = append(result, root.EligibleForPurge(rel)...)
	}

	return result, nil
}

// Sweep purges every inert thread and returns the deleted comments. On error, the comments
// of the threads swept so far are still returned.
func (svc *BaseService) Sweep(ctx context.Context) ([]*Comment, error) {
	removed := true

	roots, err := svc.commentRepo.List(ctx, &ListCommentsParams{TopLevel: true, Removed: &removed})
	if err != nil {
		return nil, fmt.Errorf("failed to list removed comments: %w", err)
	}

	purged := make([]*Comment, 0)

	for _, root := range roots {
		deleted, err := svc.sweepThread(ctx, root.ID)
		if err != nil {
			return purged, fmt.Errorf("failed to sweep thread %q: %w", root.ID, err)
		}

		purged = append(purged, deleted...)
	}

	return purged, nil
}

func (svc *BaseService) sweepThread(ctx context.Context, threadID string) ([]*Comment, error) {
	svc.threadLocks.Lock(threadID)
	defer svc.threadLocks.Unlock(threadID)

	var deleted []*Comment

	err := svc.commentRepo.Transaction(ctx, func(repo CommentRepository) error {
		root, err := repo.Find(ctx, threadID)
		if err != nil {
			var notFoundErr *CommentNotFoundError
			if errors.As(err, &notFoundErr) {
				return nil
			}

			return fmt.Errorf("failed to find comment: %w", err)
		}

		rel, err := loadRelatives(ctx, repo, root)
		if err != nil {
			return fmt.Errorf("failed to load relatives: %w", err)
		}

		eligible := root.EligibleForPurge(rel)

		for _, c := range eligible {
			err = repo.Delete(ctx, c.ID)
			if err != nil {
				return fmt.Errorf("failed to delete comment %q: %w", c.ID, err)
			}
		}

		deleted = eligible

		return nil
	})
	if err != nil {
		return nil, err
	}

	return deleted, nil
}
