package lorem

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"

	docsearch "github.com/haowjy/docsearch-go"
)

const userKey = "lorem.user"

func (s *Server) handleLogin(c *gin.Context) {
	var req docsearch.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abort(c, http.StatusUnprocessableEntity, "Invalid request body")
		return
	}

	switch {
	case !req.Valid():
		abort(c, http.StatusUnauthorized, "Provide either 'code' or 'id_token'")
		return
	case req.IDToken != "" && req.IDToken != s.idToken:
		abort(c, http.StatusUnauthorized, "Invalid Google token")
		return
	case req.IDToken == "" && req.Code != s.code:
		abort(c, http.StatusUnauthorized, "Invalid authorization code")
		return
	}

	token, err := s.IssueToken(time.Now().Add(s.tokenTTL))
	if err != nil {
		s.logger.Error("failed to sign token", zap.Error(err))
		abort(c, http.StatusInternalServerError, "Internal server error")
		return
	}

	c.JSON(http.StatusOK, docsearch.AuthResponse{
		AccessToken: token,
		TokenType:   "bearer",
		ExpiresIn:   int(s.tokenTTL.Seconds()),
		User:        s.user,
	})
}

func (s *Server) handleMe(c *gin.Context) {
	c.JSON(http.StatusOK, c.MustGet(userKey))
}

// IssueToken signs an access token for the mock user expiring at exp.
func (s *Server) IssueToken(exp time.Time) (string, error) {
	claims := jwt.MapClaims{
		"sub":   s.user.ID,
		"email": s.user.Email,
		"iat":   time.Now().Unix(),
		"exp":   exp.Unix(),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.signingKey)
}

// authenticate resolves the bearer token of the request to a user.
func (s *Server) authenticate(c *gin.Context) (*docsearch.User, error) {
	header := c.GetHeader("Authorization")
	raw, ok := strings.CutPrefix(header, "Bearer ")
	raw = strings.TrimSpace(raw)
	if !ok || raw == "" {
		return nil, errors.New("missing bearer token")
	}

	token, err := jwt.Parse(raw, func(t *jwt.Token) (interface{}, error) {
		return s.signingKey, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithExpirationRequired())
	if err != nil {
		return nil, err
	}

	sub, err := token.Claims.GetSubject()
	if err != nil || sub != s.user.ID {
		return nil, errors.New("unknown subject")
	}
	user := s.user
	return &user, nil
}

// requireUser rejects requests without a valid token.
func (s *Server) requireUser(c *gin.Context) {
	user, err := s.authenticate(c)
	if err != nil {
		s.logger.Debug("rejected token", zap.Error(err))
		abort(c, http.StatusUnauthorized, "Invalid or expired token")
		return
	}
	c.Set(userKey, user)
	c.Next()
}

// optionalUser records the user when the token is valid and otherwise
// serves the request anonymously.
func (s *Server) optionalUser(c *gin.Context) {
	if user, err := s.authenticate(c); err == nil {
		c.Set(userKey, user)
	}
	c.Next()
}

func currentUser(c *gin.Context) *docsearch.User {
	v, ok := c.Get(userKey)
	if !ok {
		return nil
	}
	return v.(*docsearch.User)
}
