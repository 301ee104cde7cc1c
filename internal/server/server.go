package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"forumdigest/internal/digest"
	"forumdigest/internal/domain"
	"forumdigest/internal/fanout"
)

// Server exposes the event webhooks the forum platform calls on content
// creation, plus a manual digest trigger, health and metrics.
type Server struct {
	engine *gin.Engine
	http   *http.Server
	fanout *fanout.Fanout
	cycle  *digest.Cycle
	log    *slog.Logger
}

func New(
	addr string,
	jwtSecret string,
	fanout *fanout.Fanout,
	cycle *digest.Cycle,
	log *slog.Logger,
) *Server {
	engine := gin.New()
	engine.Use(gin.Recovery())

	s := &Server{
		engine: engine,
		http: &http.Server{
			Addr:    addr,
			Handler: engine,
		},
		fanout: fanout,
		cycle:  cycle,
		log:    log,
	}
	s.setupRoutes(jwtSecret)

	return s
}

func (s *Server) setupRoutes(jwtSecret string) {
	api := s.engine.Group("/api/v1")
	api.Use(jwtAuth(jwtSecret))
	{
		events := api.Group("/events")
		{
			events.POST("/topics", s.handleTopicCreated)
			events.POST("/replies", s.handleReplyCreated)
		}

		api.POST("/digest/run", s.handleDigestRun)
	}

	s.engine.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	s.engine.GET("/metrics", gin.WrapH(promhttp.Handler()))
}

func (s *Server) Start() error {
	if err := s.http.ListenAndServe(); err != nil &&
		!errors.Is(err, http.ErrServerClosed) {
		return err
	}

	return nil
}

func (s *Server) Stop(ctx context.Context) error {
	return s.http.Shutdown(ctx)
}

type topicEventRequest struct {
	TopicID  int64 `json:"topic_id"  binding:"required"`
	ForumID  int64 `json:"forum_id"  binding:"required"`
	AuthorID int64 `json:"author_id" binding:"required"`
}

type replyEventRequest struct {
	ReplyID  int64 `json:"reply_id"  binding:"required"`
	TopicID  int64 `json:"topic_id"  binding:"required"`
	ForumID  int64 `json:"forum_id"  binding:"required"`
	AuthorID int64 `json:"author_id" binding:"required"`
}

func (s *Server) handleTopicCreated(c *gin.Context) {
	var req topicEventRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})

		return
	}

	event := domain.TopicEvent{
		TopicID:  req.TopicID,
		ForumID:  req.ForumID,
		AuthorID: req.AuthorID,
	}

	if err := s.fanout.TopicCreated(c.Request.Context(), event); err != nil {
		s.log.ErrorContext(c.Request.Context(), "Failed to fan out topic event",
			"error", err,
			"topicID", event.TopicID,
			"forumID", event.ForumID)
		c.JSON(http.StatusBadGateway, gin.H{"error": "fan-out failed"})

		return
	}

	c.JSON(http.StatusAccepted, gin.H{"status": "accepted"})
}

func (s *Server) handleReplyCreated(c *gin.Context) {
	var req replyEventRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})

		return
	}

	event := domain.ReplyEvent{
		ReplyID:  req.ReplyID,
		TopicID:  req.TopicID,
		ForumID:  req.ForumID,
		AuthorID: req.AuthorID,
	}

	if err := s.fanout.ReplyCreated(c.Request.Context(), event); err != nil {
		s.log.ErrorContext(c.Request.Context(), "Failed to fan out reply event",
			"error", err,
			"replyID", event.ReplyID,
			"topicID", event.TopicID)
		c.JSON(http.StatusBadGateway, gin.H{"error": "fan-out failed"})

		return
	}

	c.JSON(http.StatusAccepted, gin.H{"status": "accepted"})
}

func (s *Server) handleDigestRun(c *gin.Context) {
	if err := s.cycle.Run(c.Request.Context()); err != nil {
		// Per-user failures are non-fatal; the cycle still completed.
		s.log.ErrorContext(c.Request.Context(), "Digest cycle finished with failures",
			"error", err)
	}

	c.JSON(http.StatusOK, gin.H{"status": "done"})
}
