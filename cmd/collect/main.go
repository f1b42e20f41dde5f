package main

import (
	"context"
	"log"

	"github.com/CampusClimb/OpportunityHub/internal/aifilter"
	"github.com/CampusClimb/OpportunityHub/internal/collector"
	"github.com/CampusClimb/OpportunityHub/internal/config"
	"github.com/CampusClimb/OpportunityHub/internal/dedup"
	"github.com/CampusClimb/OpportunityHub/internal/scheduler"
	"github.com/CampusClimb/OpportunityHub/internal/storage"
)

// 一个仅执行一次采集任务的命令行入口：适合手动触发采集
func main() {
	cfg := config.Load()

	store, err := storage.NewStore(cfg.PostgresDSN, cfg.RedisAddr)
	if err != nil {
		log.Fatalf("init store failed: %v", err)
	}

	fetchers := collector.BuildFetchers(cfg)
	if len(fetchers) == 0 {
		log.Fatalf("no fetchers enabled, check ENABLED_FETCHERS")
	}

	gate := aifilter.New(cfg.AIFilter)
	engine := dedup.New(store)

	s, err := scheduler.New(cfg.CronSpec, fetchers, gate, engine, cfg.FetchConcurrency)
	if err != nil {
		log.Fatalf("init scheduler failed: %v", err)
	}

	// 只执行一轮采集任务后退出
	stats := s.RunOnce(context.Background())
	if stats.TotalErrors > 0 {
		log.Printf("run finished with %d errors", stats.TotalErrors)
	}
}
