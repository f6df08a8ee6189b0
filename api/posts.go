package api

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"time"

	authcontext "github.com/nasermirzaei89/myboard/authentication/context"
	"github.com/nasermirzaei89/myboard/contents"
)

type postResponse struct {
	ID            string     `json:"id"`
	AuthorID      string     `json:"authorId"`
	Title         string     `json:"title"`
	Content       string     `json:"content"`
	ContentHTML   string     `json:"contentHtml"`
	FilePath      string     `json:"filePath,omitempty"`
	CommentsCount int        `json:"commentsCount"`
	CreatedAt     time.Time  `json:"createdAt"`
	UpdatedAt     *time.Time `json:"updatedAt,omitempty"`
}

func (h *Handler) renderMarkdown(source string) (string, error) {
	var buf bytes.Buffer

	err := h.markdown.Convert([]byte(source), &buf)
	if err != nil {
		return "", fmt.Errorf("failed to convert markdown: %w", err)
	}

	return buf.String(), nil
}

func (h *Handler) newPostResponse(ctx context.Context, post *contents.Post) (*postResponse, error) {
	contentHTML, err := h.renderMarkdown(post.Content)
	if err != nil {
		return nil, err
	}

	commentsCount, err := h.discussSvc.CountComments(ctx, post.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to count comments: %w", err)
	}

	return &postResponse{
		ID:            post.ID,
		AuthorID:      post.AuthorID,
		Title:         post.Title,
		Content:       post.Content,
		ContentHTML:   contentHTML,
		FilePath:      post.FilePath,
		CommentsCount: commentsCount,
		CreatedAt:     post.CreatedAt,
		UpdatedAt:     post.UpdatedAt,
	}, nil
}

func (h *Handler) writePost(w http.ResponseWriter, r *http.Request, status int, post *contents.Post) {
	res, err := h.newPostResponse(r.Context(), post)
	if err != nil {
		writeError(w, r, err)

		return
	}

	writeJSON(w, r, status, res)
}

type createPostRequest struct {
	Title    string `json:"title"`
	Content  string `json:"content"`
	FilePath string `json:"filePath"`
}

func (h *Handler) HandleCreatePost() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body createPostRequest

		err := readJSON(w, r, &body)
		if err != nil {
			writeError(w, r, err)

			return
		}

		post, err := h.contentsSvc.CreatePost(r.Context(), contents.CreatePostRequest{
			AuthorID: authcontext.GetSubject(r.Context()),
			Title:    body.Title,
			Content:  body.Content,
			FilePath: body.FilePath,
		})
		if err != nil {
			writeError(w, r, err)

			return
		}

		h.writePost(w, r, http.StatusCreated, post)
	})
}

func (h *Handler) HandleListPosts() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		posts, err := h.contentsSvc.ListPosts(r.Context(), &contents.ListPostsParams{
			AuthorID: r.URL.Query().Get("authorId"),
		})
		if err != nil {
			writeError(w, r, err)

			return
		}

		res := make([]*postResponse, 0, len(posts))

		for _, post := range posts {
			item, err := h.newPostResponse(r.Context(), post)
			if err != nil {
				writeError(w, r, err)

				return
			}

			res = append(res, item)
		}

		writeJSON(w, r, http.StatusOK, res)
	})
}

func (h *Handler) HandleGetPost() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		post, err := h.contentsSvc.GetPost(r.Context(), r.PathValue("postId"))
		if err != nil {
			writeError(w, r, err)

			return
		}

		h.writePost(w, r, http.StatusOK, post)
	})
}

type updatePostRequest struct {
	Title    *string `json:"title"`
	Content  *string `json:"content"`
	FilePath *string `json:"filePath"`
}

func (h *Handler) HandleUpdatePost() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body updatePostRequest

		err := readJSON(w, r, &body)
		if err != nil {
			writeError(w, r, err)

			return
		}

		post, err := h.contentsSvc.UpdatePost(r.Context(), contents.UpdatePostRequest{
			PostID:   r.PathValue("postId"),
			Title:    body.Title,
			Content:  body.Content,
			FilePath: body.FilePath,
		})
		if err != nil {
			writeError(w, r, err)

			return
		}

		h.writePost(w, r, http.StatusOK, post)
	})
}

func (h *Handler) HandleDeletePost() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		err := h.contentsSvc.DeletePost(r.Context(), r.PathValue("postId"))
		if err != nil {
			writeError(w, r, err)

			return
		}

		w.WriteHeader(http.StatusNoContent)
	})
}
