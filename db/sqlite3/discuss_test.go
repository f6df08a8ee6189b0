package sqlite3_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/nasermirzaei89/myboard/db/sqlite3"
	"github.com/nasermirzaei89/myboard/discuss"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDiscussService_RemoveComment(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	db := newTestDB(t)
	svc := discuss.NewService(sqlite3.NewCommentRepository(db))

	member := insertMember(t, db, "alice")
	post := insertPost(t, db, member.ID)

	create := func(parentID string) *discuss.Comment {
		comment, err := svc.CreateComment(ctx, discuss.CreateCommentRequest{
			PostID:   post.ID,
			AuthorID: member.ID,
			Content:  "content",
			ParentID: parentID,
		})
		require.NoError(t, err)

		return comment
	}

	requireState := func(id string, removed bool) {
		comment, err := svc.GetComment(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, removed, comment.Removed)
	}

	remove := func(id string) []*discuss.Comment {
		purged, err := svc.RemoveComment(ctx, id)
		require.NoError(t, err)

		return purged
	}

	requireGone := func(id string) {
		_, err := svc.GetComment(ctx, id)
		notFoundErr := &discuss.CommentNotFoundError{}
		require.ErrorAs(t, err, &notFoundErr)
	}

	t.Run("childless top-level comment is purged", func(t *testing.T) {
		c := create("")

		purged := remove(c.ID)
		require.Len(t, purged, 1)
		assert.Equal(t, c.ID, purged[0].ID)
		requireGone(c.ID)
	})

	t.Run("thread purged with its last reply", func(t *testing.T) {
		a := create("")
		b := create(a.ID)
		c := create(a.ID)
		d := create(a.ID)
		e := create(a.ID)

		for _, r := range []*discuss.Comment{b, c, d} {
			remove(r.ID)
			requireState(r.ID, true)
			requireState(a.ID, false)
		}

		remove(a.ID)
		requireState(a.ID, true)

		children, err := sqlite3.NewCommentRepository(db).Count(ctx, &discuss.ListCommentsParams{ParentID: &a.ID})
		require.NoError(t, err)
		assert.Equal(t, 4, children)

		purged := remove(e.ID)
		assert.Len(t, purged, 5)

		for _, x := range []*discuss.Comment{a, b, c, d, e} {
			requireGone(x.ID)
		}
	})

	t.Run("concurrent removals within a thread", func(t *testing.T) {
		a := create("")
		thread := []*discuss.Comment{a, create(a.ID), create(a.ID), create(a.ID)}

		var wg sync.WaitGroup

		errs := make([]error, len(thread))

		for i, c := range thread {
			wg.Add(1)

			go func() {
				defer wg.Done()

				_, errs[i] = svc.RemoveComment(ctx, c.ID)
			}()
		}

		wg.Wait()

		for _, err := range errs {
			require.NoError(t, err)
		}

		for _, c := range thread {
			requireGone(c.ID)
		}
	})

	t.Run("sweep purges inert threads", func(t *testing.T) {
		a := create("")
		b := create(a.ID)

		for _, c := range []*discuss.Comment{a, b} {
			c.Remove(c.CreatedAt)
			require.NoError(t, svc.SaveComment(ctx, c))
		}

		purgeable, err := svc.ListPurgeable(ctx)
		require.NoError(t, err)
		assert.Len(t, purgeable, 2)

		swept, err := svc.Sweep(ctx)
		require.NoError(t, err)
		assert.Len(t, swept, 2)

		requireGone(a.ID)
		requireGone(b.ID)
	})

	t.Run("reply racing the removal of its parent", func(t *testing.T) {
		for range 20 {
			a := create("")

			var (
				wg        sync.WaitGroup
				reply     *discuss.Comment
				createErr error
				removeErr error
			)

			wg.Add(2)

			go func() {
				defer wg.Done()

				reply, createErr = svc.CreateComment(ctx, discuss.CreateCommentRequest{
					PostID:   post.ID,
					AuthorID: member.ID,
					Content:  "reply",
					ParentID: a.ID,
				})
			}()

			go func() {
				defer wg.Done()

				_, removeErr = svc.RemoveComment(ctx, a.ID)
			}()

			wg.Wait()

			require.NoError(t, removeErr)

			if createErr != nil {
				removedErr := &discuss.CommentRemovedError{}
				notFoundErr := &discuss.CommentNotFoundError{}
				require.True(t,
					errors.As(createErr, &removedErr) || errors.As(createErr, &notFoundErr),
					"unexpected error: %v", createErr,
				)

				requireGone(a.ID)

				continue
			}

			requireState(a.ID, true)
			requireState(reply.ID, false)
		}
	})
}
