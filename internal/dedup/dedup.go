// Package dedup 负责把候选记录落到存储：先查重（精确身份 → 模糊标题），
// 命中则按“非空才覆盖”的规则更新，未命中则创建新记录。
package dedup

import (
	"fmt"
	"hash/fnv"
	"strings"
	"sync"
	"time"

	"github.com/CampusClimb/OpportunityHub/internal/collector"
	"github.com/CampusClimb/OpportunityHub/internal/storage"
)

// 默认的标题相似度阈值，与运营侧调参保持一致
const defaultSimilarityThreshold = 0.85

// Store 是去重引擎对持久化层的全部要求；两个查询都必须排除软删除记录
type Store interface {
	FindByIdentity(source, sourceID string) (*storage.Opportunity, error)
	FindBySimilarity(title, company, typ string) ([]storage.Opportunity, error)
	Create(o *storage.Opportunity) error
	Update(o *storage.Opportunity) error
}

type Deduplicator struct {
	store     Store
	threshold float64

	// 写路径按逻辑键分段串联：防止多个源并发抓到同一条机会时重复建档。
	// 这是管道唯一需要的互斥边界。
	locks [64]sync.Mutex
}

func New(store Store) *Deduplicator {
	return &Deduplicator{store: store, threshold: defaultSimilarityThreshold}
}

// Resolve 查找候选对应的既有记录。匹配顺序：
//  1. (source, source_id) 精确命中——源提供 ID 时的强身份键
//  2. 同类型 + 公司包含匹配的候选集，再过标题相似度阈值
func (d *Deduplicator) Resolve(cand *collector.Candidate) (*storage.Opportunity, bool, error) {
	if cand.Source != "" && cand.SourceID != "" {
		existing, err := d.store.FindByIdentity(cand.Source, cand.SourceID)
		if err != nil {
			return nil, false, fmt.Errorf("dedup: find by identity: %w", err)
		}
		if existing != nil {
			return existing, true, nil
		}
	}

	title := strings.TrimSpace(cand.Title)
	company := strings.TrimSpace(cand.Company)
	if title != "" && company != "" {
		matches, err := d.store.FindBySimilarity(title, company, cand.Type)
		if err != nil {
			return nil, false, fmt.Errorf("dedup: find by similarity: %w", err)
		}
		for i := range matches {
			if titlesSimilar(title, matches[i].Title, d.threshold) {
				return &matches[i], true, nil
			}
		}
	}

	return nil, false, nil
}

// Upsert 落库：命中时更新（isNew=false），未命中时创建（isNew=true）
func (d *Deduplicator) Upsert(cand *collector.Candidate) (*storage.Opportunity, bool, error) {
	lock := &d.locks[d.lockIndex(cand)]
	lock.Lock()
	defer lock.Unlock()

	existing, isDup, err := d.Resolve(cand)
	if err != nil {
		return nil, false, err
	}

	now := time.Now().UTC()

	if isDup && existing != nil {
		applyNonEmpty(existing, cand)
		existing.LastFetched = now
		existing.AutoFetched = true
		if err := d.store.Update(existing); err != nil {
			return nil, false, fmt.Errorf("dedup: update existing: %w", err)
		}
		return existing, false, nil
	}

	o := storage.FromCandidate(cand)
	if o.Title == "" {
		return nil, false, fmt.Errorf("dedup: candidate missing title")
	}
	// 必填字段兜底：缺公司/地点给占位值，缺描述用标题顶上，不让整批失败
	if o.Company == "" {
		o.Company = "Unknown Company"
	}
	if o.Location == "" {
		o.Location = "Remote"
	}
	if o.Description == "" {
		o.Description = o.Title
	}
	o.AutoFetched = true
	o.LastFetched = now

	if err := d.store.Create(o); err != nil {
		return nil, false, fmt.Errorf("dedup: create: %w", err)
	}
	return o, true, nil
}

// applyNonEmpty 用候选的非空字段覆盖既有记录，绝不用空值抹掉已有数据；
// 持久化身份与创建时间保持不变
func applyNonEmpty(existing *storage.Opportunity, cand *collector.Candidate) {
	if cand.Title != "" {
		existing.Title = cand.Title
	}
	if cand.Company != "" {
		existing.Company = cand.Company
	}
	if cand.Location != "" {
		existing.Location = cand.Location
	}
	if cand.Type != "" {
		existing.Type = cand.Type
	}
	if cand.Category != "" {
		existing.Category = cand.Category
	}
	if cand.Description != "" {
		existing.Description = cand.Description
	}
	if cand.Requirements != "" {
		existing.Requirements = cand.Requirements
	}
	if cand.Salary != "" {
		existing.Salary = cand.Salary
	}
	if cand.Deadline != nil {
		existing.Deadline = cand.Deadline
	}
	if cand.ApplicationURL != "" {
		existing.ApplicationURL = cand.ApplicationURL
	}
	if cand.SourceURL != "" {
		existing.SourceURL = cand.SourceURL
	}
	if len(cand.RawData) > 0 {
		existing.ExtraData = cand.RawData
	}
}

// lockIndex 把逻辑键映射到分段锁：有源内 ID 用强身份键，否则用模糊键
func (d *Deduplicator) lockIndex(cand *collector.Candidate) int {
	var key string
	if cand.Source != "" && cand.SourceID != "" {
		key = cand.Source + "|" + cand.SourceID
	} else {
		key = strings.ToLower(cand.Title) + "|" + strings.ToLower(cand.Company) + "|" + cand.Type
	}
	h := fnv.New32a()
	_, _ = h.Write([]byte(key))
	return int(h.Sum32() % uint32(len(d.locks)))
}
