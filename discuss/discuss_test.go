package discuss_test

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/nasermirzaei89/myboard/discuss"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memRepo struct {
	mu       sync.Mutex
	comments map[string]discuss.Comment
	seq      int
	order    map[string]int
	failOn   string
}

var _ discuss.CommentRepository = (*memRepo)(nil)

func newMemRepo() *memRepo {
	return &memRepo{
		comments: map[string]discuss.Comment{},
		order:    map[string]int{},
	}
}

func (repo *memRepo) Find(_ context.Context, id string) (*discuss.Comment, error) {
	repo.mu.Lock()
	defer repo.mu.Unlock()

	c, ok := repo.comments[id]
	if !ok {
		return nil, &discuss.CommentNotFoundError{ID: id}
	}

	return &c, nil
}

func (repo *memRepo) match(c discuss.Comment, params *discuss.ListCommentsParams) bool {
	switch {
	case params == nil:
		return true
	case params.PostID != "" && c.PostID != params.PostID:
		return false
	case params.ParentID != nil && (c.ParentID == nil || *c.ParentID != *params.ParentID):
		return false
	case params.TopLevel && c.ParentID != nil:
		return false
	case params.Removed != nil && c.Removed != *params.Removed:
		return false
	default:
		return true
	}
}

func (repo *memRepo) List(_ context.Context, params *discuss.ListCommentsParams) ([]*discuss.Comment, error) {
	repo.mu.Lock()
	defer repo.mu.Unlock()

	result := make([]*discuss.Comment, 0)

	for _, c := range repo.comments {
		if repo.match(c, params) {
			result = append(result, &c)
		}
	}

	sort.Slice(result, func(i, j int) bool {
		return repo.order[result[i].ID] < repo.order[result[j].ID]
	})

	return result, nil
}

func (repo *memRepo) Count(ctx context.Context, params *discuss.ListCommentsParams) (int, error) {
	comments, err := repo.List(ctx, params)
	if err != nil {
		return 0, err
	}

	return len(comments), nil
}

func (repo *memRepo) Save(_ context.Context, comment *discuss.Comment) error {
	repo.mu.Lock()
	defer repo.mu.Unlock()

	if comment.ID == "" {
		comment.ID = uuid.NewString()
		repo.seq++
		repo.order[comment.ID] = repo.seq
	} else if _, ok := repo.comments[comment.ID]; !ok {
		return &discuss.CommentNotFoundError{ID: comment.ID}
	}

	repo.comments[comment.ID] = *comment

	return nil
}

var errInjected = errors.New("injected failure")

func (repo *memRepo) Delete(_ context.Context, id string) error {
	repo.mu.Lock()
	defer repo.mu.Unlock()

	if id == repo.failOn {
		return errInjected
	}

	if _, ok := repo.comments[id]; !ok {
		return &discuss.CommentNotFoundError{ID: id}
	}

	delete(repo.comments, id)

	return nil
}

// Transaction restores the previous state when fn fails.
func (repo *memRepo) Transaction(_ context.Context, fn func(repo discuss.CommentRepository) error) error {
	repo.mu.Lock()
	snapshot := make(map[string]discuss.Comment, len(repo.comments))
	for id, c := range repo.comments {
		snapshot[id] = c
	}
	repo.mu.Unlock()

	err := fn(repo)
	if err != nil {
		repo.mu.Lock()
		repo.comments = snapshot
		repo.mu.Unlock()

		return err
	}

	return nil
}

// gatedRepo holds the first reply insert until release is closed.
type gatedRepo struct {
	*memRepo
	gated   chan struct{}
	release chan struct{}
	once    sync.Once
}

func newGatedRepo() *gatedRepo {
	return &gatedRepo{
		memRepo: newMemRepo(),
		gated:   make(chan struct{}),
		release: make(chan struct{}),
	}
}

func (repo *gatedRepo) Save(ctx context.Context, comment *discuss.Comment) error {
	if comment.ID == "" && comment.ParentID != nil {
		repo.once.Do(func() {
			close(repo.gated)
			<-repo.release
		})
	}

	return repo.memRepo.Save(ctx, comment)
}

func (repo *gatedRepo) Transaction(ctx context.Context, fn func(repo discuss.CommentRepository) error) error {
	return repo.memRepo.Transaction(ctx, func(discuss.CommentRepository) error {
		return fn(repo)
	})
}

func createComment(t *testing.T, svc discuss.Service, postID, parentID string) *discuss.Comment {
	t.Helper()

	comment, err := svc.CreateComment(context.Background(), discuss.CreateCommentRequest{
		PostID:   postID,
		AuthorID: "author",
		Content:  "content",
		ParentID: parentID,
	})
	require.NoError(t, err)

	return comment
}

func removeComment(t *testing.T, svc discuss.Service, id string) []*discuss.Comment {
	t.Helper()

	purged, err := svc.RemoveComment(context.Background(), id)
	require.NoError(t, err)

	return purged
}

func requireNotFound(t *testing.T, svc discuss.Service, id string) {
	t.Helper()

	_, err := svc.GetComment(context.Background(), id)
	notFoundErr := &discuss.CommentNotFoundError{}
	require.ErrorAs(t, err, &notFoundErr, "comment %s should be purged", id)
}

func requireRemoved(t *testing.T, svc discuss.Service, id string) *discuss.Comment {
	t.Helper()

	c, err := svc.GetComment(context.Background(), id)
	require.NoError(t, err)
	assert.True(t, c.Removed)

	return c
}

func TestBaseService_CreateComment(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	svc := discuss.NewService(newMemRepo())

	parent := createComment(t, svc, "post1", "")
	assert.NotEmpty(t, parent.ID)
	assert.False(t, parent.IsReply())

	child := createComment(t, svc, "post1", parent.ID)
	require.NotNil(t, child.ParentID)
	assert.Equal(t, parent.ID, *child.ParentID)

	t.Run("empty content", func(t *testing.T) {
		_, err := svc.CreateComment(ctx, discuss.CreateCommentRequest{PostID: "post1", Content: " "})
		invalidErr := &discuss.InvalidCommentError{}
		require.ErrorAs(t, err, &invalidErr)
	})

	t.Run("reply to reply", func(t *testing.T) {
		_, err := svc.CreateComment(ctx, discuss.CreateCommentRequest{PostID: "post1", Content: "x", ParentID: child.ID})
		depthErr := &discuss.ReplyDepthExceededError{}
		require.ErrorAs(t, err, &depthErr)
	})

	t.Run("parent on another post", func(t *testing.T) {
		_, err := svc.CreateComment(ctx, discuss.CreateCommentRequest{PostID: "post2", Content: "x", ParentID: parent.ID})
		mismatchErr := &discuss.ParentPostMismatchError{}
		require.ErrorAs(t, err, &mismatchErr)
	})

	t.Run("missing parent", func(t *testing.T) {
		_, err := svc.CreateComment(ctx, discuss.CreateCommentRequest{PostID: "post1", Content: "x", ParentID: "nope"})
		notFoundErr := &discuss.CommentNotFoundError{}
		require.ErrorAs(t, err, &notFoundErr)
	})

	t.Run("reply to removed parent", func(t *testing.T) {
		_, err := svc.RemoveComment(ctx, parent.ID)
		require.NoError(t, err)

		_, err = svc.CreateComment(ctx, discuss.CreateCommentRequest{PostID: "post1", Content: "x", ParentID: parent.ID})
		removedErr := &discuss.CommentRemovedError{}
		require.ErrorAs(t, err, &removedErr)
	})
}

func TestBaseService_CreateComment_ParentRemovedMeanwhile(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	repo := newGatedRepo()
	svc := discuss.NewService(repo)

	parent := createComment(t, svc, "post1", "")

	var reply *discuss.Comment

	created := make(chan error, 1)

	go func() {
		var err error

		reply, err = svc.CreateComment(ctx, discuss.CreateCommentRequest{
			PostID:   "post1",
			AuthorID: "author",
			Content:  "reply",
			ParentID: parent.ID,
		})
		created <- err
	}()

	<-repo.gated

	removed := make(chan error, 1)

	go func() {
		_, err := svc.RemoveComment(ctx, parent.ID)
		removed <- err
	}()

	removedEarly := false

	select {
	case <-removed:
		removedEarly = true
	case <-time.After(50 * time.Millisecond):
	}

	close(repo.release)

	require.False(t, removedEarly, "parent removal finished while its reply insert was pending")
	require.NoError(t, <-created)
	require.NoError(t, <-removed)

	requireRemoved(t, svc, parent.ID)

	got, err := svc.GetComment(ctx, reply.ID)
	require.NoError(t, err)
	assert.False(t, got.Removed)
	require.NotNil(t, got.ParentID)
	assert.Equal(t, parent.ID, *got.ParentID)
}

func TestBaseService_UpdateComment(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	svc := discuss.NewService(newMemRepo())

	parent := createComment(t, svc, "post1", "")
	child := createComment(t, svc, "post1", parent.ID)

	updated, err := svc.UpdateComment(ctx, discuss.UpdateCommentRequest{CommentID: child.ID, Content: "edited"})
	require.NoError(t, err)
	assert.Equal(t, "edited", updated.Content)
	assert.NotNil(t, updated.UpdatedAt)

	_, err = svc.RemoveComment(ctx, child.ID)
	require.NoError(t, err)

	_, err = svc.UpdateComment(ctx, discuss.UpdateCommentRequest{CommentID: child.ID, Content: "again"})
	removedErr := &discuss.CommentRemovedError{}
	require.ErrorAs(t, err, &removedErr)

	_, err = svc.UpdateComment(ctx, discuss.UpdateCommentRequest{CommentID: "missing", Content: "again"})
	notFoundErr := &discuss.CommentNotFoundError{}
	require.ErrorAs(t, err, &notFoundErr)
}

func TestBaseService_RemoveComment_NotFound(t *testing.T) {
	t.Parallel()

	svc := discuss.NewService(newMemRepo())

	_, err := svc.RemoveComment(context.Background(), "missing")
	notFoundErr := &discuss.CommentNotFoundError{}
	require.ErrorAs(t, err, &notFoundErr)
}

func TestBaseService_RemoveComment_ChildlessTopLevel(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	svc := discuss.NewService(newMemRepo())

	c := createComment(t, svc, "post1", "")

	purged, err := svc.RemoveComment(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{c.ID}, ids(purged))

	requireNotFound(t, svc, c.ID)

	all, err := svc.ListAllComments(ctx)
	require.NoError(t, err)
	assert.Empty(t, all)
}

func TestBaseService_RemoveComment_ReplyUnderLiveParent(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	svc := discuss.NewService(newMemRepo())

	parent := createComment(t, svc, "post1", "")
	child := createComment(t, svc, "post1", parent.ID)

	_, err := svc.RemoveComment(ctx, child.ID)
	require.NoError(t, err)

	requireRemoved(t, svc, child.ID)

	got, err := svc.GetComment(ctx, parent.ID)
	require.NoError(t, err)
	assert.False(t, got.Removed)
}

func TestBaseService_RemoveComment_ParentKeptByLiveReply(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	svc := discuss.NewService(newMemRepo())

	parent := createComment(t, svc, "post1", "")
	createComment(t, svc, "post1", parent.ID)
	createComment(t, svc, "post1", parent.ID)

	_, err := svc.RemoveComment(ctx, parent.ID)
	require.NoError(t, err)

	requireRemoved(t, svc, parent.ID)

	count, err := svc.CountComments(ctx, "post1")
	require.NoError(t, err)
	assert.Equal(t, 3, count)
}

func TestBaseService_RemoveComment_CascadeOnLastReply(t *testing.T) {
	t.Parallel()

	for _, n := range []int{1, 2, 5} {
		t.Run(fmt.Sprintf("%d replies", n), func(t *testing.T) {
			t.Parallel()

			ctx := context.Background()
			svc := discuss.NewService(newMemRepo())

			parent := createComment(t, svc, "post1", "")

			replies := make([]*discuss.Comment, 0, n)
			for range n {
				replies = append(replies, createComment(t, svc, "post1", parent.ID))
			}

			removeComment(t, svc, parent.ID)

			for i, r := range replies {
				removeComment(t, svc, r.ID)

				if i < n-1 {
					requireRemoved(t, svc, parent.ID)

					for _, done := range replies[:i+1] {
						requireRemoved(t, svc, done.ID)
					}

					continue
				}

				requireNotFound(t, svc, parent.ID)

				for _, done := range replies {
					requireNotFound(t, svc, done.ID)
				}
			}
		})
	}
}

func permutations(items []int) [][]int {
	if len(items) <= 1 {
		return [][]int{append([]int(nil), items...)}
	}

	result := make([][]int, 0)

	for i := range items {
		rest := make([]int, 0, len(items)-1)
		rest = append(rest, items[:i]...)
		rest = append(rest, items[i+1:]...)

		for _, p := range permutations(rest) {
			result = append(result, append([]int{items[i]}, p...))
		}
	}

	return result
}

// Index 0 is the parent, 1 to 3 are its replies.
func TestBaseService_RemoveComment_OrderIndependent(t *testing.T) {
	t.Parallel()

	for _, order := range permutations([]int{0, 1, 2, 3}) {
		t.Run(fmt.Sprint(order), func(t *testing.T) {
			t.Parallel()

			ctx := context.Background()
			svc := discuss.NewService(newMemRepo())

			parent := createComment(t, svc, "post1", "")
			thread := []*discuss.Comment{
				parent,
				createComment(t, svc, "post1", parent.ID),
				createComment(t, svc, "post1", parent.ID),
				createComment(t, svc, "post1", parent.ID),
			}

			for _, i := range order {
				removeComment(t, svc, thread[i].ID)
			}

			for _, c := range thread {
				requireNotFound(t, svc, c.ID)
			}

			all, err := svc.ListAllComments(ctx)
			require.NoError(t, err)
			assert.Empty(t, all)
		})
	}
}

func TestBaseService_RemoveComment_Scenario(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	svc := discuss.NewService(newMemRepo())

	a := createComment(t, svc, "post1", "")
	b := createComment(t, svc, "post1", a.ID)
	c := createComment(t, svc, "post1", a.ID)
	d := createComment(t, svc, "post1", a.ID)
	e := createComment(t, svc, "post1", a.ID)

	for _, r := range []*discuss.Comment{b, c, d} {
		removeComment(t, svc, r.ID)
		requireRemoved(t, svc, r.ID)

		got, err := svc.GetComment(ctx, a.ID)
		require.NoError(t, err)
		assert.False(t, got.Removed)
	}

	removeComment(t, svc, a.ID)
	requireRemoved(t, svc, a.ID)

	count, err := svc.CountComments(ctx, "post1")
	require.NoError(t, err)
	assert.Equal(t, 5, count)

	purged := removeComment(t, svc, e.ID)
	assert.ElementsMatch(t, []string{a.ID, b.ID, c.ID, d.ID, e.ID}, ids(purged))
	assert.Equal(t, a.ID, purged[len(purged)-1].ID)

	for _, x := range []*discuss.Comment{a, b, c, d, e} {
		requireNotFound(t, svc, x.ID)
	}
}

func TestBaseService_RemoveComment_RollsBack(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	repo := newMemRepo()
	svc := discuss.NewService(repo)

	parent := createComment(t, svc, "post1", "")
	child := createComment(t, svc, "post1", parent.ID)

	removeComment(t, svc, parent.ID)

	repo.failOn = parent.ID

	_, err := svc.RemoveComment(ctx, child.ID)
	require.ErrorIs(t, err, errInjected)

	got, err := svc.GetComment(ctx, child.ID)
	require.NoError(t, err)
	assert.False(t, got.Removed)

	requireRemoved(t, svc, parent.ID)
}

func TestBaseService_RemoveComment_Concurrent(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	svc := discuss.NewService(newMemRepo())

	parent := createComment(t, svc, "post1", "")
	thread := []*discuss.Comment{
		parent,
		createComment(t, svc, "post1", parent.ID),
		createComment(t, svc, "post1", parent.ID),
	}

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
		requireNotFound(t, svc, c.ID)
	}
}

func TestBaseService_SweepAndListPurgeable(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	repo := newMemRepo()
	svc := discuss.NewService(repo)

	inert := createComment(t, svc, "post1", "")
	inertReply := createComment(t, svc, "post1", inert.ID)
	alive := createComment(t, svc, "post1", "")
	aliveReply := createComment(t, svc, "post1", alive.ID)

	// leave an inert thread behind, as an out-of-process writer could
	for _, c := range []*discuss.Comment{inert, inertReply, alive} {
		c.Remove(c.CreatedAt)
		require.NoError(t, svc.SaveComment(ctx, c))
	}

	purgeable, err := svc.ListPurgeable(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{inertReply.ID, inert.ID}, ids(purgeable))

	swept, err := svc.Sweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{inertReply.ID, inert.ID}, ids(swept))

	requireNotFound(t, svc, inert.ID)
	requireNotFound(t, svc, inertReply.ID)
	requireRemoved(t, svc, alive.ID)

	_, err = svc.GetComment(ctx, aliveReply.ID)
	require.NoError(t, err)

	swept, err = svc.Sweep(ctx)
	require.NoError(t, err)
	assert.Empty(t, swept)
}
