package api

import (
	"net/http"
	"strconv"

	"github.com/CampusClimb/OpportunityHub/internal/scheduler"
	"github.com/CampusClimb/OpportunityHub/internal/storage"
	"github.com/gin-gonic/gin"
)

type Server struct {
	store *storage.Store
	sched *scheduler.Scheduler
}

func NewServer(store *storage.Store, sched *scheduler.Scheduler) *Server {
	return &Server{store: store, sched: sched}
}

func (s *Server) RegisterRoutes(r *gin.Engine) {
	r.GET("/health", s.health)

	v1 := r.Group("/api/v1")
	{
		v1.GET("/opportunities", s.listOpportunities)
		v1.POST("/fetch", s.triggerFetch)
		v1.GET("/fetch/logs", s.fetchLogs)
	}
}

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) listOpportunities(c *gin.Context) {
	typ := c.Query("type")
	category := c.Query("category")
	source := c.Query("source")

	limitStr := c.DefaultQuery("limit", "20")
	limit, err := strconv.Atoi(limitStr)
	if err != nil || limit <= 0 {
		limit = 20
	}

	items, err := s.store.ListOpportunities(typ, category, source, limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"code":    "internal_error",
			"message": "internal server error",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"code":    "ok",
		"message": "success",
		"data":    items,
	})
}

// triggerFetch 手动触发一轮采集，同步返回本轮统计
func (s *Server) triggerFetch(c *gin.Context) {
	stats := s.sched.RunOnce(c.Request.Context())
	c.JSON(http.StatusOK, gin.H{
		"code":    "ok",
		"message": "success",
		"data":    stats,
	})
}

func (s *Server) fetchLogs(c *gin.Context) {
	limitStr := c.DefaultQuery("limit", "20")
	limit, err := strconv.Atoi(limitStr)
	if err != nil || limit <= 0 {
		limit = 20
	}

	c.JSON(http.StatusOK, gin.H{
		"code":    "ok",
		"message": "success",
		"data":    s.sched.RecentRuns(limit),
	})
}
