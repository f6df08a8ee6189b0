package discuss

import (
	"context"
	"fmt"
	"time"
)

type Comment struct {
	ID        string
	PostID    string
	AuthorID  string
	ParentID  *string
	Content   string
	Removed   bool
	CreatedAt time.Time
	UpdatedAt *time.Time
}

// IsReply reports whether the comment points at a parent comment.
func (c *Comment) IsReply() bool {
	return c.ParentID != nil
}

// ThreadID returns the id of the top-level comment the comment belongs to.
func (c *Comment) ThreadID() string {
	if c.ParentID != nil {
		return *c.ParentID
	}

	return c.ID
}

// Remove marks the comment removed. The flag is never reset.
func (c *Comment) Remove(at time.Time) {
	c.Removed = true
	c.UpdatedAt = &at
}

func (c *Comment) UpdateContent(content string, at time.Time) error {
	if c.Removed {
		return &CommentRemovedError{ID: c.ID}
	}

	c.Content = content
	c.UpdatedAt = &at

	return nil
}

// Relatives is the part of a thread the purge rule looks at. Parent and Siblings are
// set for a reply, Children for a top-level comment.
type Relatives struct {
	Parent   *Comment
	Siblings []*Comment
	Children []*Comment
}

// EligibleForPurge returns the comments that must be hard-deleted now that c has been
// removed. Replies are listed before the top-level comment they belong to.
func (c *Comment) EligibleForPurge(rel Relatives) []*Comment {
	if !c.Removed {
		return nil
	}

	result := make([]*Comment, 0)

	if c.ParentID != nil && rel.Parent != nil {
		if rel.Parent.Removed && c.allRemoved(rel.Siblings) {
			result = append(result, rel.Siblings...)
			result = append(result, rel.Parent)
		}
	}

	if c.ParentID == nil {
		if c.allRemoved(rel.Children) {
			result = append(result, rel.Children...)
			result = append(result, c)
		}
	}

	return result
}

// allRemoved reports whether no comment in list is still active. c's own state wins over
// a stale copy of it in list.
func (c *Comment) allRemoved(list []*Comment) bool {
	for _, other := range list {
		if other.ID == c.ID {
			continue
		}

		if !other.Removed {
			return false
		}
	}

	return true
}

type CommentRepository interface {
	Find(ctx context.Context, id string) (comment *Comment, err error)
	List(ctx context.Context, params *ListCommentsParams) (comments []*Comment, err error)
	Count(ctx context.Context, params *ListCommentsParams) (count int, err error)
	Save(ctx context.Context, comment *Comment) (err error)
	Delete(ctx context.Context, id string) (err error)
	Transaction(ctx context.Context, fn func(repo CommentRepository) error) (err error)
}

// ListCommentsParams filters List and Count. The zero value matches every comment.
type ListCommentsParams struct {
	PostID   string
	ParentID *string
	TopLevel bool
	Removed  *bool
}

type CommentNotFoundError struct {
	ID string
}

func (err CommentNotFoundError) Error() string {
	return fmt.Sprintf("comment with id %q not found", err.ID)
}

type CommentRemovedError struct {
	ID string
}

func (err CommentRemovedError) Error() string {
	return fmt.Sprintf("comment with id %q is removed", err.ID)
}

type ReplyDepthExceededError struct {
	ParentID string
}

func (err ReplyDepthExceededError) Error() string {
	return fmt.Sprintf("comment with id %q is a reply and cannot be replied to", err.ParentID)
}

type ParentPostMismatchError struct {
	ParentID string
	PostID   string
}

func (err ParentPostMismatchError) Error() string {
	return fmt.Sprintf("comment with id %q does not belong to post %q", err.ParentID, err.PostID)
}

type InvalidCommentError struct {
	Field  string
	Reason string
}

func (err InvalidCommentError) Error() string {
	return fmt.Sprintf("invalid comment %s: %s", err.Field, err.Reason)
}
