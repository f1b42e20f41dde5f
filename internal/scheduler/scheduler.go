package scheduler

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/CampusClimb/OpportunityHub/internal/aifilter"
	"github.com/CampusClimb/OpportunityHub/internal/collector"
	"github.com/CampusClimb/OpportunityHub/internal/storage"
	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
)

// 运行日志只在内存里保留最近 N 轮，供运维排查，不落盘
const maxRunLogEntries = 50

// SourceStats 单个数据源在一轮采集中的结果
type SourceStats struct {
	Source       string `json:"source"`
	Fetched      int    `json:"fetched"`
	New          int    `json:"new"`
	Updated      int    `json:"updated"`
	Filtered     int    `json:"filtered"` // 被分类闸门拒绝的数量
	Errors       int    `json:"errors"`
	ErrorMessage string `json:"errorMessage,omitempty"`
}

// RunStats 一轮采集的聚合结果
type RunStats struct {
	RunID         string                  `json:"runId"`
	Timestamp     time.Time               `json:"timestamp"`
	Sources       map[string]*SourceStats `json:"sources"`
	TotalFetched  int                     `json:"totalFetched"`
	TotalNew      int                     `json:"totalNew"`
	TotalUpdated  int                     `json:"totalUpdated"`
	TotalFiltered int                     `json:"totalFiltered"`
	TotalErrors   int                     `json:"totalErrors"`
}

// Gate 分类闸门的最小接口，*aifilter.Filter 实现之
type Gate interface {
	ShouldAdmit(ctx context.Context, cand *collector.Candidate) (bool, aifilter.Result)
}

// Upserter 去重引擎的最小接口，*dedup.Deduplicator 实现之
type Upserter interface {
	Upsert(cand *collector.Candidate) (*storage.Opportunity, bool, error)
}

type Scheduler struct {
	cron        *cron.Cron
	fetchers    []collector.Fetcher
	gate        Gate
	upserter    Upserter
	concurrency int

	mu     sync.Mutex
	runLog []RunStats
}

func New(spec string, fetchers []collector.Fetcher, gate Gate, upserter Upserter, concurrency int) (*Scheduler, error) {
	if concurrency <= 0 {
		concurrency = 4
	}

	c := cron.New()
	s := &Scheduler{
		cron:        c,
		fetchers:    fetchers,
		gate:        gate,
		upserter:    upserter,
		concurrency: concurrency,
	}

	if _, err := c.AddFunc(spec, func() { s.RunOnce(context.Background()) }); err != nil {
		return nil, err
	}

	return s, nil
}

func (s *Scheduler) Start() {
	s.cron.Start()
	// 延迟执行首轮采集，避免与服务启动争抢资源
	const startupDelay = 15 * time.Second
	time.AfterFunc(startupDelay, func() {
		go s.RunOnce(context.Background())
	})
}

func (s *Scheduler) Stop() {
	s.cron.Stop()
}

// RunOnce 执行一轮完整采集：并发跑各数据源，源内部顺序走
// 闸门 → 去重，聚合统计后写入运行日志。任何情况下都返回统计对象。
func (s *Scheduler) RunOnce(ctx context.Context) RunStats {
	log.Println("start ingestion run...")

	stats := RunStats{
		RunID:     uuid.NewString(),
		Timestamp: time.Now().UTC(),
		Sources:   make(map[string]*SourceStats, len(s.fetchers)),
	}

	var (
		wg  sync.WaitGroup
		mu  sync.Mutex
		sem = make(chan struct{}, s.concurrency)
	)

	for _, f := range s.fetchers {
		// 源边界是协作式取消点；已在跑的源让它自然结束或超时
		if ctx.Err() != nil {
			log.Printf("ingestion run canceled, skipping remaining sources")
			break
		}

		fetcher := f
		wg.Add(1)
		sem <- struct{}{}
		go func() {
			defer wg.Done()
			defer func() { <-sem }()

			src := s.runSource(ctx, fetcher)

			mu.Lock()
			stats.Sources[src.Source] = src
			stats.TotalFetched += src.Fetched
			stats.TotalNew += src.New
			stats.TotalUpdated += src.Updated
			stats.TotalFiltered += src.Filtered
			stats.TotalErrors += src.Errors
			mu.Unlock()
		}()
	}
	wg.Wait()

	s.appendRunLog(stats)

	log.Printf("ingestion run done: fetched=%d new=%d updated=%d filtered=%d errors=%d",
		stats.TotalFetched, stats.TotalNew, stats.TotalUpdated, stats.TotalFiltered, stats.TotalErrors)
	return stats
}

// runSource 跑完一个数据源的完整管道；所有失败都收敛为计数，
// 绝不让单个源的问题冒泡到整轮采集
func (s *Scheduler) runSource(ctx context.Context, fetcher collector.Fetcher) (src *SourceStats) {
	name := fetcher.Name()
	src = &SourceStats{Source: name}

	// 最后防线：fetcher 实现里的 panic 也只能算这个源的错误
	defer func() {
		if r := recover(); r != nil {
			src.Errors++
			src.ErrorMessage = fmt.Sprintf("panic: %v", r)
			log.Printf("source %s panicked: %v", name, r)
		}
	}()

	log.Printf("fetch from %s...", name)
	candidates, err := fetcher.Fetch()
	if err != nil {
		src.Errors++
		src.ErrorMessage = err.Error()
		log.Printf("fetch %s error: %v", name, err)
		return src
	}
	src.Fetched = len(candidates)

	for i := range candidates {
		cand := &candidates[i]

		// 规范化后仍无标题的候选在进闸门前丢弃，按校验错误计数
		if cand.Title == "" {
			src.Errors++
			continue
		}

		admitted, res := s.gate.ShouldAdmit(ctx, cand)
		if !admitted {
			src.Filtered++
			if res.Verdict == aifilter.VerdictIndeterminate {
				// fail-closed 拒绝：原因值得留痕，但不算源错误
				log.Printf("%s: %q rejected (classifier unavailable)", name, cand.Title)
			}
			continue
		}

		_, isNew, err := s.upserter.Upsert(cand)
		if err != nil {
			src.Errors++
			log.Printf("save %s candidate %q error: %v", name, cand.Title, err)
			continue
		}
		if isNew {
			src.New++
		} else {
			src.Updated++
		}
	}

	log.Printf("%s done: fetched=%d new=%d updated=%d filtered=%d errors=%d",
		name, src.Fetched, src.New, src.Updated, src.Filtered, src.Errors)
	return src
}

func (s *Scheduler) appendRunLog(stats RunStats) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.runLog = append(s.runLog, stats)
	if len(s.runLog) > maxRunLogEntries {
		s.runLog = s.runLog[len(s.runLog)-maxRunLogEntries:]
	}
}

// RecentRuns 返回最近的运行日志（新的在后），limit<=0 时用默认值
func (s *Scheduler) RecentRuns(limit int) []RunStats {
	if limit <= 0 || limit > maxRunLogEntries {
		limit = maxRunLogEntries
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	start := 0
	if len(s.runLog) > limit {
		start = len(s.runLog) - limit
	}
	out := make([]RunStats, len(s.runLog)-start)
	copy(out, s.runLog[start:])
	return out
}
