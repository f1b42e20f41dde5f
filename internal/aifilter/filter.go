package aifilter

import (
	"context"
	"log"

	"github.com/CampusClimb/OpportunityHub/internal/collector"
	"github.com/CampusClimb/OpportunityHub/internal/config"
)

// Classifier 抽象分类端点调用，便于测试时注入假实现
type Classifier interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// Filter 是闸门的对外入口，聚合配置、分类客户端与兜底过滤
type Filter struct {
	cfg    config.AIFilterConfig
	client Classifier
}

func New(cfg config.AIFilterConfig) *Filter {
	return &Filter{
		cfg:    cfg,
		client: NewClient(cfg.OllamaBaseURL, cfg.Model, cfg.Timeout),
	}
}

// NewWithClassifier 用于测试：注入假的分类端点
func NewWithClassifier(cfg config.AIFilterConfig, client Classifier) *Filter {
	return &Filter{cfg: cfg, client: client}
}

// Classify 调用分类端点并解析结果。
// 传输/超时失败返回 indeterminate 并带上原因，绝不静默 accept。
func (f *Filter) Classify(ctx context.Context, title, description, source string) Result {
	text, err := f.client.Generate(ctx, buildPrompt(title, description, source))
	if err != nil {
		return Result{
			Verdict:    VerdictIndeterminate,
			Confidence: 0,
			Reasoning:  "classifier unavailable",
			Err:        err,
		}
	}
	return parseResponse(text)
}

// ShouldAdmit 决定候选记录能否进入去重与存储。
// 返回本次的分类结果便于上层记录原因。
func (f *Filter) ShouldAdmit(ctx context.Context, cand *collector.Candidate) (bool, Result) {
	// 可信的结构化数据源直接放行：分类是降噪和省钱的手段，不是正确性要求
	for _, s := range f.cfg.SkipSources {
		if s == cand.Source {
			return true, Result{Verdict: VerdictAccept, Confidence: 1, Reasoning: "trusted source, classification skipped"}
		}
	}

	// 全局关闭分类时的显式逃生阀
	if !f.cfg.Enabled {
		return true, Result{Verdict: VerdictAccept, Confidence: 1, Reasoning: "ai filter disabled"}
	}

	if cand.Title == "" {
		return false, Result{Verdict: VerdictReject, Confidence: 1, Reasoning: "empty title"}
	}

	res := f.Classify(ctx, cand.Title, cand.Description, cand.Source)
	switch res.Verdict {
	case VerdictAccept:
		// 低置信度的 yes 按噪声处理
		if res.Confidence >= f.cfg.MinConfidence {
			return true, res
		}
		res.Verdict = VerdictReject
		res.Reasoning = "confidence below minimum: " + res.Reasoning
		return false, res
	case VerdictReject:
		return false, res
	default:
		// 分类器不可用：默认 fail-closed，配置放开时走关键词兜底
		if f.cfg.RejectOnError {
			log.Printf("aifilter: classifier error for %q from %s, rejecting: %v", cand.Title, cand.Source, res.Err)
			return false, res
		}
		log.Printf("aifilter: classifier error for %q from %s, using keyword fallback: %v", cand.Title, cand.Source, res.Err)
		return fallbackAdmit(cand.Title, cand.Description), res
	}
}
