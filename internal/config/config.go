package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	AppPort string

	PostgresDSN string
	RedisAddr   string

	CronSpec string

	// 站点整体访问密码（可选），两者均配置时启用 Basic Auth
	BasicAuthUser string
	BasicAuthPass string

	// 数据源配置
	EnabledFetchers  []string // 为空表示全部启用
	RedditSubreddits []string
	RSSFeeds         []string
	JoobleAPIKey     string
	MeetupAPIKey     string

	// 采集并发上限：限制同时运行的数据源数量，避免打爆分类端点和出站连接
	FetchConcurrency int

	// AI 过滤（分类闸门）配置
	AIFilter AIFilterConfig
}

// AIFilterConfig 控制候选记录入库前的 AI 分类闸门
type AIFilterConfig struct {
	Enabled bool

	OllamaBaseURL string
	Model         string

	// 分类调用的独立超时：模型冷启动很慢，必须显著大于普通抓取超时
	Timeout time.Duration

	// 低于该置信度的 accept 一律按噪声拒绝
	MinConfidence float64

	// 分类器不可用时的策略：true = 直接拒绝（默认，宁缺毋滥）；
	// false = 走确定性的关键词兜底过滤
	RejectOnError bool

	// 跳过分类的可信结构化数据源
	SkipSources []string
}

func Load() *Config {
	cfg := &Config{
		AppPort:     getEnv("APP_PORT", "9000"),
		PostgresDSN: getEnv("POSTGRES_DSN", "host=localhost user=opportunityhub password=opportunityhub dbname=opportunityhub port=5432 sslmode=disable TimeZone=UTC"),
		RedisAddr:   getEnv("REDIS_ADDR", "localhost:6380"),
		CronSpec:    getEnv("CRON_SPEC", "0 */6 * * *"),

		BasicAuthUser: getEnv("APP_BASIC_USER", ""),
		BasicAuthPass: getEnv("APP_BASIC_PASS", ""),

		EnabledFetchers:  getEnvList("ENABLED_FETCHERS", nil),
		RedditSubreddits: getEnvList("REDDIT_SUBREDDITS", []string{"jobbit", "remotejs", "jobopenings", "internships"}),
		RSSFeeds:         getEnvList("RSS_FEEDS", nil),
		JoobleAPIKey:     getEnv("JOOBLE_API_KEY", ""),
		MeetupAPIKey:     getEnv("MEETUP_API_KEY", ""),

		FetchConcurrency: getEnvInt("FETCH_CONCURRENCY", 4),

		AIFilter: AIFilterConfig{
			Enabled:       getEnvBool("AI_FILTER_ENABLED", true),
			OllamaBaseURL: getEnv("OLLAMA_BASE_URL", "http://localhost:11434"),
			Model:         getEnv("OLLAMA_MODEL", "llama2"),
			Timeout:       time.Duration(getEnvInt("AI_FILTER_TIMEOUT", 120)) * time.Second,
			MinConfidence: getEnvFloat("AI_FILTER_MIN_CONFIDENCE", 0.7),
			RejectOnError: getEnvBool("AI_FILTER_REJECT_ON_ERROR", true),
			SkipSources:   getEnvList("AI_FILTER_SKIP_SOURCES", []string{"graphql_jobs", "jooble"}),
		},
	}

	log.Printf("config loaded: port=%s cron=%s ai_filter=%v concurrency=%d",
		cfg.AppPort, cfg.CronSpec, cfg.AIFilter.Enabled, cfg.FetchConcurrency)
	return cfg
}

// IsFetcherEnabled 判断某个数据源是否启用；未配置 ENABLED_FETCHERS 时默认全部启用
func (c *Config) IsFetcherEnabled(name string) bool {
	if len(c.EnabledFetchers) == 0 {
		return true
	}
	for _, f := range c.EnabledFetchers {
		if f == name {
			return true
		}
	}
	return false
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getEnvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			return n
		}
		log.Printf("config: invalid %s=%q, using default %d", key, v, def)
	}
	return def
}

func getEnvFloat(key string, def float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil && f >= 0 && f <= 1 {
			return f
		}
		log.Printf("config: invalid %s=%q, using default %v", key, v, def)
	}
	return def
}

func getEnvBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		return strings.EqualFold(v, "true") || v == "1"
	}
	return def
}

// getEnvList 解析逗号分隔列表，忽略空白项
func getEnvList(key string, def []string) []string {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return def
	}
	return out
}
