package httpapi

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	validatorv10 "github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"valorant-store/internal/auth"
	"valorant-store/internal/order"
	"valorant-store/internal/validation"
	"valorant-store/internal/websocket"
)

type OrderService interface {
	Create(ctx context.Context, caller order.Caller, items []order.ItemInput) (*order.Order, error)
	ListForUser(ctx context.Context, caller order.Caller) ([]order.Order, error)
	Get(ctx context.Context, caller order.Caller, id uuid.UUID) (*order.Order, error)
}

type AuthService interface {
	Register(ctx context.Context, in auth.RegisterInput) (*auth.Session, error)
	Login(ctx context.Context, in auth.LoginInput) (*auth.Session, error)
}

type TokenVerifier interface {
	Verify(token string) (*auth.Claims, error)
}

// Deps are the collaborators of the HTTP API. Feed and Ready are optional.
type Deps struct {
	Orders      OrderService
	Auth        AuthService
	Tokens      TokenVerifier
	Feed        *websocket.Hub
	Ready       func(ctx context.Context) error
	CORSOrigins []string
	Logger      *slog.Logger
}

type Server struct {
	orders   OrderService
	auth     AuthService
	tokens   TokenVerifier
	ready    func(ctx context.Context) error
	validate *validatorv10.Validate
	origins  map[string]bool
	logger   *slog.Logger
	router   chi.Router
}

func NewServer(d Deps) *Server {
	s := &Server{
		orders:   d.Orders,
		auth:     d.Auth,
		tokens:   d.Tokens,
		ready:    d.Ready,
		validate: validation.New(),
		origins:  make(map[string]bool, len(d.CORSOrigins)),
		logger:   d.Logger,
	}
	for _, o := range d.CORSOrigins {
		s.origins[o] = true
	}

	var feed http.Handler
	if d.Feed != nil {
		feed = websocket.NewHandler(d.Feed, callerUsername, s.originAllowed, d.Logger)
	}
	s.routes(feed)
	return s
}

func (s *Server) routes(feed http.Handler) {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.logRequests)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowOriginFunc:  func(_ *http.Request, origin string) bool { return s.originAllowed(origin) },
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders:   []string{"Authorization", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           600,
	}))

	r.Get("/health", s.health)

	r.Route("/auth", func(r chi.Router) {
		r.Post("/register", s.register)
		r.Post("/login", s.login)
	})

	r.Route("/orders", func(r chi.Router) {
		if feed != nil {
			r.With(s.requireAuth(true)).Get("/ws", feed.ServeHTTP)
		}
		r.Group(func(r chi.Router) {
			r.Use(s.requireAuth(false))
			r.Post("/", s.createOrder)
			r.Get("/", s.listOrders)
			r.Get("/{id}", s.getOrder)
		})
	})

	s.router = r
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	if s.ready != nil {
		if err := s.ready(r.Context()); err != nil {
			s.logger.WarnContext(r.Context(), "readiness check failed", "err", err)
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
