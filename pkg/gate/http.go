package gate

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	lru "github.com/hashicorp/golang-lru"
	"go.aavaz.network/pulse/pkg/engage"
	"go.aavaz.network/pulse/pkg/metrics"
	"go.aavaz.network/pulse/pkg/notify"
	"go.aavaz.network/pulse/pkg/ratelimit"
	"go.aavaz.network/pulse/pkg/store"
	"go.aavaz.network/pulse/pkg/types"
	"go.uber.org/zap"
)

// Server exposes the gate over HTTP.
//
// Authentication is an external collaborator: callers are identified by the
// X-User-ID header a fronting auth layer is expected to set.
type Server struct {
	Gate          *Gate
	Engage        *engage.Service
	Notifications *notify.Reader
	Log           *zap.Logger

	// Per-client rate limiting.
	RateTarget float32 // requests per second per client
	RateWindow uint    // seconds

	limiters *lru.Cache
}

// NewServer creates the HTTP server wiring.
func NewServer(g *Gate, e *engage.Service, n *notify.Reader, log *zap.Logger) (*Server, error) {
	limiters, err := lru.New(4096)
	if err != nil {
		return nil, err
	}
	return &Server{
		Gate:          g,
		Engage:        e,
		Notifications: n,
		Log:           log,
		RateTarget:    10,
		RateWindow:    10,
		limiters:      limiters,
	}, nil
}

// Router builds the gin engine with all routes.
func (s *Server) Router() *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery(), s.rateLimit())
	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	router.GET("/metrics", gin.WrapH(metrics.Handler()))
	api := router.Group("/api")
	api.GET("/feed", s.getFeed)
	api.POST("/posts/:id/likes/toggle", s.toggleLike)
	api.GET("/notifications", s.listNotifications)
	return router
}

func (s *Server) subject(c *gin.Context) (int64, bool) {
	userID, err := strconv.ParseInt(c.GetHeader("X-User-ID"), 10, 64)
	if err != nil || userID <= 0 {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing or invalid X-User-ID"})
		return 0, false
	}
	return userID, true
}

func (s *Server) getFeed(c *gin.Context) {
	userID, ok := s.subject(c)
	if !ok {
		return
	}
	feedType := types.FeedType(c.DefaultQuery("type", string(types.FeedMain)))
	page, err := strconv.Atoi(c.DefaultQuery("page", "0"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": ErrBadPage.Error()})
		return
	}
	result, err := s.Gate.FeedPage(c.Request.Context(), userID, feedType, page)
	switch {
	case errors.Is(err, ErrBadPage) || errors.Is(err, ErrBadFeedType):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	case err != nil:
		s.Log.Error("Feed read failed", zap.Int64("user", userID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "feed read failed"})
		return
	}
	message := "Feed fetched from cache"
	if !result.Cached {
		message = "Feed generation started, please check again shortly"
	}
	c.JSON(http.StatusOK, gin.H{"message": message, "data": result})
}

func (s *Server) toggleLike(c *gin.Context) {
	userID, ok := s.subject(c)
	if !ok {
		return
	}
	postID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || postID <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid post id"})
		return
	}
	liked, err := s.Engage.ToggleLike(c.Request.Context(), userID, postID)
	switch {
	case errors.Is(err, store.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "post not found"})
		return
	case err != nil:
		s.Log.Error("Like toggle failed",
			zap.Int64("user", userID), zap.Int64("post", postID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "like toggle failed"})
		return
	}
	message := "Post unliked successfully"
	if liked {
		message = "Post liked successfully"
	}
	c.JSON(http.StatusOK, gin.H{"message": message, "data": gin.H{"liked": liked}})
}

func (s *Server) listNotifications(c *gin.Context) {
	userID, ok := s.subject(c)
	if !ok {
		return
	}
	notifications, err := s.Notifications.List(c.Request.Context(), userID)
	if err != nil {
		s.Log.Error("Notification list failed", zap.Int64("user", userID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "notification list failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Fetched notifications", "data": notifications})
}

func (s *Server) rateLimit() gin.HandlerFunc {
	return func(c *gin.Context) {
		key := c.GetHeader("X-User-ID")
		if key == "" {
			key = c.ClientIP()
		}
		limiter := s.limiterFor(key)
		if wait := limiter.Count(time.Now().Unix(), 1); wait > 0 {
			c.Header("Retry-After", fmt.Sprintf("%d", int(wait/time.Second)+1))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "rate limit exceeded"})
			return
		}
		c.Next()
	}
}

func (s *Server) limiterFor(key string) *ratelimit.Limiter {
	if v, ok := s.limiters.Get(key); ok {
		return v.(*ratelimit.Limiter)
	}
	l := ratelimit.NewLimiter(s.RateTarget, s.RateWindow)
	s.limiters.Add(key, l)
	return l
}
