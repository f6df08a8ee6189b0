package api

import (
	"context"
	"log/slog"
	"net/http"
	"runtime/debug"

	"github.com/gorilla/sessions"
	"github.com/nasermirzaei89/myboard/authentication"
	"github.com/nasermirzaei89/myboard/contents"
	"github.com/nasermirzaei89/myboard/discuss"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

const TracerName = "github.com/nasermirzaei89/myboard/api"

type Handler struct {
	mux         *http.ServeMux
	handler     http.Handler
	authSvc     *authentication.Service
	contentsSvc contents.Service
	discussSvc  discuss.Service
	cookieStore *sessions.CookieStore
	sessionName string
	markdown    goldmark.Markdown
	tracer      trace.Tracer
}

var _ http.Handler = (*Handler)(nil)

// NewHandler builds the JSON API. A nil tracerProvider falls back to the global one.
func NewHandler(
	authSvc *authentication.Service,
	contentsSvc contents.Service,
	discussSvc discuss.Service,
	cookieStore *sessions.CookieStore,
	sessionName string,
	tracerProvider trace.TracerProvider,
) *Handler {
	if tracerProvider == nil {
		tracerProvider = otel.GetTracerProvider()
	}

	h := &Handler{
		mux:         nil,
		handler:     nil,
		authSvc:     authSvc,
		contentsSvc: contentsSvc,
		discussSvc:  discussSvc,
		cookieStore: cookieStore,
		sessionName: sessionName,
		markdown: goldmark.New(
			goldmark.WithExtensions(
				extension.GFM, // tables, strikethrough, task lists
			),
		),
		tracer: tracerProvider.Tracer(TracerName),
	}

	{
		h.mux = &http.ServeMux{}
		h.handler = h.mux

		h.registerRoutes()
	}

	{
		h.handler = h.authMiddleware(h.handler)
		h.handler = h.tracingMiddleware(h.handler)
		h.handler = recoverMiddleware(h.handler)
	}

	return h
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.handler.ServeHTTP(w, r)
}

func (h *Handler) registerRoutes() {
	h.mux.Handle("POST /signup", h.HandleSignUp())
	h.mux.Handle("POST /login", h.HandleLogin())
	h.mux.Handle("POST /token/refresh", h.HandleRefreshToken())
	h.mux.Handle("POST /logout", h.HandleLogout())

	h.mux.Handle("GET /members/me", authenticatedOnly(h.HandleGetCurrentMember()))
	h.mux.Handle("PATCH /members/me", authenticatedOnly(h.HandleUpdateProfile()))
	h.mux.Handle("PUT /members/me/password", authenticatedOnly(h.HandleChangePassword()))
	h.mux.Handle("DELETE /members/me", authenticatedOnly(h.HandleWithdraw()))
	h.mux.Handle("GET /members/{memberId}", h.HandleGetMember())

	h.mux.Handle("POST /posts", h.HandleCreatePost())
	h.mux.Handle("GET /posts", h.HandleListPosts())
	h.mux.Handle("GET /posts/{postId}", h.HandleGetPost())
	h.mux.Handle("PATCH /posts/{postId}", h.HandleUpdatePost())
	h.mux.Handle("DELETE /posts/{postId}", h.HandleDeletePost())

	h.mux.Handle("POST /posts/{postId}/comments", h.HandleCreateComment())
	h.mux.Handle("GET /posts/{postId}/comments", h.HandleListComments())
	h.mux.Handle("GET /comments", h.HandleListAllComments())
	h.mux.Handle("GET /comments/{commentId}", h.HandleGetComment())
	h.mux.Handle("PATCH /comments/{commentId}", h.HandleUpdateComment())
	h.mux.Handle("DELETE /comments/{commentId}", h.HandleRemoveComment())

	h.mux.Handle("/", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, r, http.StatusNotFound, errorResponse{Error: "route not found"})
	}))
}

func recoverMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func(ctx context.Context) {
			if err := recover(); err != nil {
				slog.ErrorContext(
					ctx,
					"recovered from panic",
					"error",
					err,
					"stack",
					string(debug.Stack()),
				)

				writeJSON(w, r, http.StatusInternalServerError, errorResponse{Error: "internal error occurred"})
			}
		}(r.Context())

		next.ServeHTTP(w, r)
	})
}
