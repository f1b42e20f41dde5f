package main

import (
	"crypto/subtle"
	"log"
	"net/http"

	"github.com/CampusClimb/OpportunityHub/internal/aifilter"
	"github.com/CampusClimb/OpportunityHub/internal/api"
	"github.com/CampusClimb/OpportunityHub/internal/collector"
	"github.com/CampusClimb/OpportunityHub/internal/config"
	"github.com/CampusClimb/OpportunityHub/internal/dedup"
	"github.com/CampusClimb/OpportunityHub/internal/scheduler"
	"github.com/CampusClimb/OpportunityHub/internal/storage"
	"github.com/gin-gonic/gin"
)

func main() {
	cfg := config.Load()

	store, err := storage.NewStore(cfg.PostgresDSN, cfg.RedisAddr)
	if err != nil {
		log.Fatalf("init store failed: %v", err)
	}

	fetchers := collector.BuildFetchers(cfg)
	if len(fetchers) == 0 {
		log.Printf("warn: no fetchers enabled, scheduled runs will be empty")
	}

	gate := aifilter.New(cfg.AIFilter)
	engine := dedup.New(store)

	s, err := scheduler.New(cfg.CronSpec, fetchers, gate, engine, cfg.FetchConcurrency)
	if err != nil {
		log.Fatalf("init scheduler failed: %v", err)
	}
	s.Start()

	// API
	r := gin.Default()
	// 若配置了全局访问密码，则启用 Basic Auth 保护（/health 仍然免认证）
	if cfg.BasicAuthUser != "" && cfg.BasicAuthPass != "" {
		r.Use(basicAuthMiddleware(cfg.BasicAuthUser, cfg.BasicAuthPass))
	}

	apiServer := api.NewServer(store, s)
	apiServer.RegisterRoutes(r)

	addr := ":" + cfg.AppPort
	log.Printf("starting api server at %s ...", addr)
	if err := r.Run(addr); err != nil {
		log.Fatalf("server exit: %v", err)
	}
}

// basicAuthMiddleware 为整个站点增加一个简单的 Basic Auth 访问密码。
// 仅当配置了 APP_BASIC_USER / APP_BASIC_PASS 时启用。
// /health 不做认证，便于健康检查。
func basicAuthMiddleware(user, pass string) gin.HandlerFunc {
	const realm = "Restricted"
	uBytes := []byte(user)
	pBytes := []byte(pass)

	return func(c *gin.Context) {
		if c.Request.URL.Path == "/health" {
			c.Next()
			return
		}
		u, p, ok := c.Request.BasicAuth()
		if !ok ||
			subtle.ConstantTimeCompare([]byte(u), uBytes) != 1 ||
			subtle.ConstantTimeCompare([]byte(p), pBytes) != 1 {
			c.Header("WWW-Authenticate", `Basic realm="`+realm+`"`)
			c.AbortWithStatus(http.StatusUnauthorized)
			return
		}
		c.Next()
	}
}
