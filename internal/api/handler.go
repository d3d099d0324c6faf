package api

import (
	"context"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/kbukum/shopstream/bus"
	"github.com/kbukum/shopstream/internal/messaging"
	"github.com/kbukum/shopstream/internal/shop"
	"github.com/kbukum/shopstream/logger"
	"github.com/kbukum/shopstream/observability"
	"github.com/kbukum/shopstream/pipeline"
	"github.com/kbukum/shopstream/server"
	"github.com/kbukum/shopstream/sse"
	"github.com/kbukum/shopstream/validation"
)

// MaxNameLength bounds user names accepted by the API.
const MaxNameLength = 64

// DeadLetterSource exposes failed bus messages. *bus.Bus satisfies it.
type DeadLetterSource interface {
	DeadLetters() []bus.DeadLetter
}

// Option configures a Handler.
type Option func(*Handler)

// WithMetrics records stream metrics.
func WithMetrics(m *observability.Metrics) Option {
	return func(h *Handler) { h.rec.metrics = m }
}

// WithLogger sets the handler logger.
func WithLogger(l *logger.Logger) Option {
	return func(h *Handler) { h.rec.log = l }
}

// WithKeepAlive sets the SSE keep-alive interval.
func WithKeepAlive(d time.Duration) Option {
	return func(h *Handler) { h.keepAlive = d }
}

// Handler serves the storefront routes.
type Handler struct {
	svc       *shop.Service
	dead      DeadLetterSource
	hub       *sse.Hub
	rec       streamRecorder
	keepAlive time.Duration
}

// NewHandler creates a Handler.
func NewHandler(svc *shop.Service, dead DeadLetterSource, hub *sse.Hub, opts ...Option) *Handler {
	h := &Handler{
		svc:       svc,
		dead:      dead,
		hub:       hub,
		rec:       streamRecorder{log: logger.WithComponent("api")},
		keepAlive: sse.DefaultKeepAlive,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Register mounts the routes under /shop. Streamed routes accept a "limit"
// query parameter that ends the stream after that many items.
func (h *Handler) Register(r gin.IRouter) {
	g := r.Group("/shop")
	g.POST("/users/:name", h.CreateUser)
	g.POST("/users", h.AddUser)
	g.GET("/user/:name", h.UserName)
	g.GET("/users", h.Users)
	g.GET("/products", h.Products)
	g.GET("/orders/:user", h.OrdersForUser)
	g.GET("/orders", h.OrdersPerUser)
	g.GET("/recommendations", h.Recommendations)
	g.GET("/random-recommendation", h.RandomRecommendation)
	g.GET("/random-recommendations", h.RandomRecommendations)
	g.GET("/read-chunk", h.ReadChunk)
	g.GET("/greetings", h.Greetings)
	g.GET("/dead-letters", h.DeadLetters)
}

func validateName(name string) error {
	return validation.New().
		Required("name", name).
		MaxLength("name", name, MaxNameLength).
		Username("name", name).
		Validate()
}

// CreateUser inserts the user named in the path.
func (h *Handler) CreateUser(c *gin.Context) {
	name := c.Param("name")
	if err := validateName(name); err != nil {
		server.RespondWithError(c, err)
		return
	}
	id, err := h.svc.CreateUser(name).Await(c.Request.Context())
	if err != nil {
		server.RespondWithError(c, err)
		return
	}
	server.RespondCreated(c, gin.H{"id": id, "name": name})
}

type addUserRequest struct {
	Name string `json:"name" binding:"required"`
}

// AddUser inserts the user from the JSON body and reports the outcome as
// a status line, failure included.
func (h *Handler) AddUser(c *gin.Context) {
	var req addUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		server.RespondWithError(c, validation.New().AddError("name", "is required").Validate())
		return
	}
	RespondDeferred(c, h.svc.AddUser(req.Name))
}

// UserName resolves the user name, "anonymous" when unknown.
func (h *Handler) UserName(c *gin.Context) {
	RespondDeferred(c, h.svc.UserName(c.Param("name")))
}

// Users streams user names as NDJSON.
func (h *Handler) Users(c *gin.Context) {
	streamJSON(h, c, "users", h.svc.UserNames())
}

// Products streams the catalog as NDJSON.
func (h *Handler) Products(c *gin.Context) {
	streamJSON(h, c, "products", h.svc.Products())
}

// OrdersForUser streams one user's orders as NDJSON.
func (h *Handler) OrdersForUser(c *gin.Context) {
	streamJSON(h, c, "orders_for_user", h.svc.OrdersForUser(c.Param("user")))
}

// OrdersPerUser streams every user's orders as NDJSON.
func (h *Handler) OrdersPerUser(c *gin.Context) {
	streamJSON(h, c, "orders", h.svc.OrdersPerUser())
}

// Recommendations streams a recommended product per tick as SSE.
func (h *Handler) Recommendations(c *gin.Context) {
	streamEvents(h, c, "recommendations", "recommendation", h.svc.Recommendations())
}

// RandomRecommendation pairs a random user with a product.
func (h *Handler) RandomRecommendation(c *gin.Context) {
	RespondDeferred(c, h.svc.RandomRecommendation())
}

// RandomRecommendations streams a random user per tick as SSE.
func (h *Handler) RandomRecommendations(c *gin.Context) {
	streamEvents(h, c, "random_recommendations", "recommendation", h.svc.RandomRecommendations())
}

// ReadChunk streams a stored file as text, one chunk per tick.
func (h *Handler) ReadChunk(c *gin.Context) {
	p, ok := limited(c, h.svc.ReadChunk(c.Query("path")))
	if !ok {
		return
	}
	started := time.Now()
	n, err := StreamText(c, p)
	h.rec.record(c.Request.Context(), "read_chunk", started, n, err)
}

// Greetings subscribes the client to bus greetings.
func (h *Handler) Greetings(c *gin.Context) {
	sse.ServeHub(h.hub, c.Writer, c.Request, messaging.GreetingsTopic)
}

// DeadLetters lists messages whose handler failed.
func (h *Handler) DeadLetters(c *gin.Context) {
	letters := h.dead.DeadLetters()
	if letters == nil {
		letters = []bus.DeadLetter{}
	}
	server.RespondOK(c, letters)
}

// limited bounds p by the optional "limit" query parameter.
func limited[T any](c *gin.Context, p *pipeline.Pipeline[T]) (*pipeline.Pipeline[T], bool) {
	raw, ok := c.GetQuery("limit")
	if !ok {
		return p, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 {
		server.RespondWithError(c, validation.New().AddError("limit", "must be a positive integer").Validate())
		return nil, false
	}
	return pipeline.Take(p, n), true
}

func streamJSON[T any](h *Handler, c *gin.Context, name string, p *pipeline.Pipeline[T]) {
	p, ok := limited(c, p)
	if !ok {
		return
	}
	started := time.Now()
	n, err := StreamNDJSON(c, p)
	h.rec.record(c.Request.Context(), name, started, n, err)
}

func streamEvents[T any](h *Handler, c *gin.Context, name, event string, p *pipeline.Pipeline[T]) {
	p, ok := limited(c, p)
	if !ok {
		return
	}
	started := time.Now()
	var n atomic.Int64
	counted := pipeline.Tap(p, func(_ context.Context, _ T) error {
		n.Add(1)
		return nil
	})
	err := sse.Stream(c.Writer, c.Request, counted,
		sse.WithEventName(event),
		sse.WithKeepAlive(h.keepAlive),
		sse.WithStreamLogger(h.rec.log),
	)
	h.rec.record(c.Request.Context(), name, started, n.Load(), err)
}
