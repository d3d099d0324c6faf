package shop

import (
	"context"
	"sync/atomic"
	"time"
	"unicode"

	"github.com/kbukum/shopstream/deferred"
	"github.com/kbukum/shopstream/errors"
	"github.com/kbukum/shopstream/logger"
	"github.com/kbukum/shopstream/pipeline"
	"github.com/kbukum/shopstream/resilience"
	"github.com/kbukum/shopstream/tuple"
)

// UserChannel is the bus channel user lookups publish greeting seeds to.
const UserChannel = "userChannel"

// Anonymous is the name reported for unknown users.
const Anonymous = "anonymous"

// TimestampLayout formats the clock in streamed recommendations.
const TimestampLayout = "2006-01-02T15:04:05.000"

// Publisher hands payloads to a named bus channel.
type Publisher interface {
	Publish(channel string, payload any) error
}

// Option configures a Service.
type Option func(*Service)

// WithClock replaces time.Now for streamed timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithLogger sets the service logger.
func WithLogger(l *logger.Logger) Option {
	return func(s *Service) { s.log = l }
}

// Service composes the stores into the storefront operations.
type Service struct {
	users    *UserStore
	products *ProductStore
	orders   *OrderStore
	files    *FileSource
	bus      Publisher
	cfg      Config
	log      *logger.Logger
	now      func() time.Time
	dropped  atomic.Int64
}

// NewService wires the stores, the file source and the bus publisher.
func NewService(cfg Config, users *UserStore, products *ProductStore, orders *OrderStore,
	files *FileSource, bus Publisher, opts ...Option) *Service {
	cfg.ApplyDefaults()
	s := &Service{
		users:    users,
		products: products,
		orders:   orders,
		files:    files,
		bus:      bus,
		cfg:      cfg,
		log:      logger.WithComponent("shop"),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Dropped reports the ticks discarded by recommendation streams while a
// lookup was still running.
func (s *Service) Dropped() int64 {
	return s.dropped.Load()
}

// CreateUser inserts a user and logs the outcome.
func (s *Service) CreateUser(name string) *deferred.Deferred[uint] {
	d := deferred.Invoke(s.users.Create(name), func(id uint) {
		s.log.Info("New user created", logger.Fields(logger.FieldUser, name, "id", id))
	})
	return deferred.InvokeOnFailure(d, func(err error) {
		s.log.Warn("Cannot create the user", logger.Fields(logger.FieldUser, name, logger.FieldError, err.Error()))
	})
}

// AddUser inserts a user and always resolves to a status line.
func (s *Service) AddUser(name string) *deferred.Deferred[string] {
	d := deferred.Transform(s.users.Create(name), func(uint) string {
		return "New User " + name + " inserted"
	})
	return deferred.RecoverWith(d, func(err error) string {
		if appErr, ok := errors.AsAppError(err); ok {
			return "User not inserted: " + appErr.Message
		}
		return "User not inserted: " + err.Error()
	})
}

// UserName publishes the greeting seed on UserChannel and resolves to the
// name of the user, or Anonymous when the lookup fails.
func (s *Service) UserName(name string) *deferred.Deferred[string] {
	return deferred.From(func(ctx context.Context) (string, error) {
		if err := s.bus.Publish(UserChannel, s.cfg.GreetingSeed); err != nil {
			s.log.Warn("Greeting seed not published", logger.Fields(
				logger.FieldChannel, UserChannel,
				logger.FieldError, err.Error(),
			))
		}
		lookup := deferred.Transform(s.users.FindByName(name), func(u UserProfile) string { return u.Name })
		return deferred.RecoverWithItem(lookup, Anonymous).Await(ctx)
	})
}

// UserNames streams the names of all users.
func (s *Service) UserNames() *pipeline.Pipeline[string] {
	return pipeline.Map(s.users.StreamAll(), func(_ context.Context, u UserProfile) (string, error) {
		return u.Name, nil
	})
}

// Products streams the catalog with every word capitalized.
func (s *Service) Products() *pipeline.Pipeline[ProductModel] {
	return pipeline.Map(s.products.StreamAll(), func(_ context.Context, p Product) (ProductModel, error) {
		return ProductModel{Name: capitalizeWords(p.Name)}, nil
	})
}

// OrdersForUser streams the orders of the user called name. An unknown
// user fails the stream with NOT_FOUND.
func (s *Service) OrdersForUser(name string) *pipeline.Pipeline[Order] {
	return pipeline.FlatMapDeferred(s.users.FindByName(name), func(_ context.Context, u UserProfile) (*pipeline.Pipeline[Order], error) {
		return s.orders.ForUser(u), nil
	})
}

// OrdersPerUser streams every user's orders, one user after the other.
func (s *Service) OrdersPerUser() *pipeline.Pipeline[Order] {
	return pipeline.ConcatMap(s.users.StreamAll(), func(_ context.Context, u UserProfile) (*pipeline.Pipeline[Order], error) {
		return s.orders.ForUser(u), nil
	})
}

// Recommendations emits one recommended product per tick. Ticks arriving
// while a lookup is running are dropped.
func (s *Service) Recommendations() *pipeline.Pipeline[Product] {
	ticks := pipeline.OnOverflowDrop(pipeline.Ticker(s.cfg.TickPeriod),
		pipeline.WithDropCounter[int64](&s.dropped))
	return pipeline.ConcatMapDeferred(ticks, func(_ context.Context, _ int64) *deferred.Deferred[Product] {
		return s.recommended()
	})
}

// RandomRecommendation pairs a random user with a recommended product.
func (s *Service) RandomRecommendation() *deferred.Deferred[string] {
	both := deferred.CombineAll2(s.users.RandomOne(), s.recommended())
	return deferred.Transform(both, func(t tuple.Tuple2[UserProfile, Product]) string {
		return "Hello " + t.Item1().Name + ", we recommend you " + t.Item2().Name
	})
}

// RandomRecommendations emits "<name> : <timestamp>" for a random user on
// every tick.
func (s *Service) RandomRecommendations() *pipeline.Pipeline[string] {
	users := pipeline.ConcatMapDeferred(pipeline.Ticker(s.cfg.TickPeriod), func(_ context.Context, _ int64) *deferred.Deferred[UserProfile] {
		return s.users.RandomOne()
	})
	users = pipeline.Tap(users, func(_ context.Context, u UserProfile) error {
		s.log.Debug("Random user picked", logger.Fields(logger.FieldUser, u.Name, "at", s.now().Format(TimestampLayout)))
		return nil
	})
	return pipeline.Map(users, func(_ context.Context, u UserProfile) (string, error) {
		return u.Name + " : " + s.now().Format(TimestampLayout), nil
	})
}

// chunkReadAhead is how many chunks ReadChunk reads before their tick.
const chunkReadAhead = 2

// ReadChunk streams the stored file at path, one chunk per tick. An empty
// path reads the configured chunk file.
func (s *Service) ReadChunk(path string) *pipeline.Pipeline[string] {
	if path == "" {
		path = s.cfg.ChunkFile
	}
	chunks := pipeline.Buffer(s.files.Open(path), chunkReadAhead)
	paced := pipeline.Zip2(pipeline.Ticker(s.cfg.TickPeriod), chunks)
	return pipeline.Map(paced, func(_ context.Context, t tuple.Tuple2[int64, []byte]) (string, error) {
		return string(t.Item2()), nil
	})
}

// recommended wraps the product lookup in the configured retry policy.
func (s *Service) recommended() *deferred.Deferred[Product] {
	return resilience.RetryDeferred(s.cfg.Retry, s.products.RecommendedOne())
}

// capitalizeWords upper-cases the first letter and every letter that
// follows whitespace.
func capitalizeWords(name string) string {
	runes := []rune(name)
	for i := range runes {
		if i == 0 || unicode.IsSpace(runes[i-1]) {
			runes[i] = unicode.ToUpper(runes[i])
		}
	}
	return string(runes)
}
