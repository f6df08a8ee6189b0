package contents_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	fileadapter "github.com/casbin/casbin/v2/persist/file-adapter"
	"github.com/google/uuid"
	authcontext "github.com/nasermirzaei89/myboard/authentication/context"
	"github.com/nasermirzaei89/myboard/authorization"
	"github.com/nasermirzaei89/myboard/authorization/casbin"
	"github.com/nasermirzaei89/myboard/contents"
	"github.com/stretchr/testify/require"
)

func TestAuthorizationMiddleware(t *testing.T) {
	ctx := context.Background()

	tmpDir := t.TempDir()
	tmpFile := filepath.Join(tmpDir, "policy.csv")
	content := []byte(`g, system:anonymous, system:unauthenticated

p, system:authenticated, github.com/nasermirzaei89/myboard/contents, -, createPost
p, system:authenticated, github.com/nasermirzaei89/myboard/contents, *, getPost
p, system:unauthenticated, github.com/nasermirzaei89/myboard/contents, *, getPost
p, system:authenticated, github.com/nasermirzaei89/myboard/contents, -, listPosts
p, system:unauthenticated, github.com/nasermirzaei89/myboard/contents, -, listPosts
p, role:admin, github.com/nasermirzaei89/myboard/contents, *, deletePost
`)

	err := os.WriteFile(tmpFile, content, 0o600)
	require.NoError(t, err)

	provider, err := casbin.NewAuthorizationProvider(fileadapter.NewAdapter(tmpFile))
	require.NoError(t, err)

	authzSvc, err := authorization.NewService(provider)
	require.NoError(t, err)

	client := authorization.NewClient(authzSvc)
	svc := contents.NewAuthorizationMiddleware(client, contents.NewService(&postRepo{}))

	authorID := uuid.NewString()
	otherID := uuid.NewString()
	adminID := uuid.NewString()

	require.NoError(t, client.AddToGroup(ctx, authorID, authcontext.Authenticated))
	require.NoError(t, client.AddToGroup(ctx, otherID, authcontext.Authenticated))
	require.NoError(t, client.AddToGroup(ctx, adminID, authcontext.Authenticated, authcontext.Admin))

	authorCtx := authcontext.WithSubject(ctx, authorID)
	otherCtx := authcontext.WithSubject(ctx, otherID)
	adminCtx := authcontext.WithSubject(ctx, adminID)

	accessDeniedErr := &authorization.AccessDeniedError{}
	notFoundErr := &contents.PostNotFoundError{}

	_, err = svc.CreatePost(ctx, contents.CreatePostRequest{AuthorID: authorID, Title: "t", Content: "c"})
	require.ErrorAs(t, err, &accessDeniedErr)

	post, err := svc.CreatePost(authorCtx, contents.CreatePostRequest{AuthorID: authorID, Title: "t", Content: "c"})
	require.NoError(t, err)

	_, err = svc.GetPost(ctx, post.ID)
	require.NoError(t, err)

	_, err = svc.ListPosts(ctx, nil)
	require.NoError(t, err)

	title := "edited"

	_, err = svc.UpdatePost(otherCtx, contents.UpdatePostRequest{PostID: post.ID, Title: &title})
	require.ErrorAs(t, err, &accessDeniedErr)

	_, err = svc.UpdatePost(authorCtx, contents.UpdatePostRequest{PostID: post.ID, Title: &title})
	require.NoError(t, err)

	_, err = svc.UpdatePost(otherCtx, contents.UpdatePostRequest{PostID: uuid.NewString(), Title: &title})
	require.ErrorAs(t, err, &notFoundErr)

	err = svc.DeletePost(otherCtx, post.ID)
	require.ErrorAs(t, err, &accessDeniedErr)

	err = svc.DeletePost(authorCtx, post.ID)
	require.NoError(t, err)

	require.False(t, client.Can(ctx, authorID, contents.ServiceName, post.ID, contents.ActionUpdatePost))

	adminPost, err := svc.CreatePost(authorCtx, contents.CreatePostRequest{AuthorID: authorID, Title: "t", Content: "c"})
	require.NoError(t, err)

	err = svc.DeletePost(adminCtx, adminPost.ID)
	require.NoError(t, err)
}
