// Package lorem is a mock document search backend that answers with lorem
// ipsum text. Used for testing and development without a real backend,
// search index or identity provider.
package lorem

import (
	"net/http"
	"sync"
	"time"

	loremgen "github.com/bozaro/golorem"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	docsearch "github.com/haowjy/docsearch-go"
	"github.com/haowjy/docsearch-go/internal/logging"
)

// Default credentials accepted by POST /auth/login.
const (
	DefaultIDToken = "mock-id-token"
	DefaultCode    = "mock-auth-code"
)

// Server is the mock backend. Create with NewServer and serve Handler.
type Server struct {
	idToken      string
	code         string
	signingKey   []byte
	tokenTTL     time.Duration
	wordDelay    time.Duration
	chunks       int
	citations    int
	failStatus   int
	streamErrMsg string
	logger       *zap.Logger

	user docsearch.User
	docs []docsearch.Document

	genMu     sync.Mutex // golorem is not safe for concurrent use
	generator *loremgen.Lorem

	histMu  sync.Mutex
	history map[string][]docsearch.HistoryEntry // by user id, newest first

	engine *gin.Engine
}

// Option configures a Server.
type Option func(*Server)

// WithIDToken sets the federated id_token the server accepts.
func WithIDToken(token string) Option {
	return func(s *Server) {
		s.idToken = token
	}
}

// WithCode sets the authorization code the server accepts.
func WithCode(code string) Option {
	return func(s *Server) {
		s.code = code
	}
}

// WithSigningKey sets the HS256 key for access tokens. A random key is
// used by default, so tokens do not survive a restart.
func WithSigningKey(key []byte) Option {
	return func(s *Server) {
		s.signingKey = key
	}
}

// WithTokenTTL sets the lifetime of issued access tokens (default 1h).
func WithTokenTTL(ttl time.Duration) Option {
	return func(s *Server) {
		s.tokenTTL = ttl
	}
}

// WithWordDelay sets the pause between streamed answer chunks.
// - 0 (default): as fast as possible
// - 33ms: roughly 30 words/second
// - 100ms: roughly 10 words/second
func WithWordDelay(d time.Duration) Option {
	return func(s *Server) {
		s.wordDelay = d
	}
}

// WithChunks sets how many answer_chunk events each streamed answer has.
func WithChunks(n int) Option {
	return func(s *Server) {
		s.chunks = n
	}
}

// WithCitations sets how many citation events each streamed answer has.
func WithCitations(n int) Option {
	return func(s *Server) {
		s.citations = n
	}
}

// WithFailStream makes GET /search/stream respond with status and an empty body.
func WithFailStream(status int) Option {
	return func(s *Server) {
		s.failStatus = status
	}
}

// WithStreamError makes GET /search/stream send an error event with message
// after the answer text and end the stream there.
func WithStreamError(message string) Option {
	return func(s *Server) {
		s.streamErrMsg = message
	}
}

// WithLogger sets the request logger.
func WithLogger(l *zap.Logger) Option {
	return func(s *Server) {
		s.logger = logging.OrNop(l)
	}
}

// WithDocuments replaces the generated corpus.
func WithDocuments(docs []docsearch.Document) Option {
	return func(s *Server) {
		s.docs = docs
	}
}

// NewServer creates a mock backend with a generated corpus.
func NewServer(opts ...Option) *Server {
	name := "Mock Reader"
	s := &Server{
		idToken:    DefaultIDToken,
		code:       DefaultCode,
		signingKey: []byte(uuid.NewString()),
		tokenTTL:   time.Hour,
		chunks:     12,
		citations:  3,
		logger:     zap.NewNop(),
		generator:  loremgen.New(),
		history:    make(map[string][]docsearch.HistoryEntry),
		user: docsearch.User{
			ID:        "3f8f8f9e-6f1a-4c55-9b0e-5a1d2f4c7e01",
			Email:     "reader@example.com",
			Name:      &name,
			GoogleID:  "mock-google-sub",
			CreatedAt: time.Now().UTC().Format(time.RFC3339),
		},
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.docs == nil {
		s.docs = s.generateCorpus(defaultCorpusSize)
	}
	s.engine = s.routes()
	return s
}

// Handler returns the HTTP handler serving the API under /api.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// User returns the single user every successful login maps to.
func (s *Server) User() docsearch.User {
	return s.user
}

// Documents returns the corpus.
func (s *Server) Documents() []docsearch.Document {
	return s.docs
}

func (s *Server) routes() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), s.requestLogger())

	api := r.Group("/api")
	api.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	auth := api.Group("/auth")
	auth.POST("/login", s.handleLogin)
	auth.GET("/me", s.requireUser, s.handleMe)

	api.GET("/search/stream", s.handleSearchStream)
	api.POST("/search", s.optionalUser, s.handleSearch)

	docs := api.Group("/documents")
	docs.GET("/", s.handleFilterMetadata)
	docs.GET("/:id", s.handleDocument)
	docs.GET("/:id/related", s.handleRelated)

	hist := api.Group("/history", s.requireUser)
	hist.GET("/", s.handleListHistory)
	hist.DELETE("/:id", s.handleDeleteHistory)
	hist.DELETE("/", s.handleClearHistory)

	return r
}

func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.logger.Debug("request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("duration", time.Since(start)),
			zap.String("request_id", c.GetHeader("X-Request-ID")),
		)
	}
}

// abort writes the backend's error body.
func abort(c *gin.Context, status int, message string) {
	c.AbortWithStatusJSON(status, gin.H{"error": message})
}
