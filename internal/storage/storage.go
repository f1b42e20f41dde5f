package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/CampusClimb/OpportunityHub/internal/collector"
	"github.com/redis/go-redis/v9"
	"gorm.io/datatypes"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

// Opportunity 机会记录表。管道只做软删除语义下的查重与更新，
// 物理删除是管理操作，不在这里发生。
type Opportunity struct {
	ID       uint   `gorm:"primaryKey" json:"id"`
	Title    string `gorm:"size:512;index" json:"title"`
	Company  string `gorm:"size:256;index" json:"company"`
	Location string `gorm:"size:256" json:"location"`
	Type     string `gorm:"size:32;index" json:"type"`     // job / internship / workshop / conference / competition
	Category string `gorm:"size:64;index" json:"category"` // 关键词推导的分类标签
	// 描述在采集侧已截断到 500 字符，这里的 600 是入库前的双保险
	Description    string            `gorm:"size:600" json:"description"`
	Requirements   string            `gorm:"size:600" json:"requirements,omitempty"`
	Salary         string            `gorm:"size:128" json:"salary,omitempty"`
	Deadline       *time.Time        `json:"deadline,omitempty"`
	ApplicationURL string            `gorm:"size:1024" json:"applicationUrl"`
	Source         string            `gorm:"size:64;index:idx_source_sid" json:"source"`
	SourceID       string            `gorm:"size:256;index:idx_source_sid" json:"sourceId"`
	SourceURL      string            `gorm:"size:1024" json:"sourceUrl"`
	ExtraData      datatypes.JSONMap `gorm:"type:jsonb" json:"extraData"`

	IsDeleted   bool      `gorm:"index;default:false" json:"isDeleted"`
	AutoFetched bool      `gorm:"default:false" json:"autoFetched"` // 区分管道写入与人工录入
	LastFetched time.Time `json:"lastFetched"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

type Store struct {
	DB    *gorm.DB
	Redis *redis.Client
}

func NewStore(dsn, redisAddr string) (*Store, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		return nil, err
	}

	if err := db.AutoMigrate(&Opportunity{}); err != nil {
		return nil, err
	}

	rdb := redis.NewClient(&redis.Options{
		Addr: redisAddr,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		log.Printf("warn: redis ping failed: %v", err)
	}

	return &Store{DB: db, Redis: rdb}, nil
}

// toValidUTF8 将字符串规范为合法 UTF-8，避免 PostgreSQL invalid byte sequence 错误
func toValidUTF8(s string) string {
	return strings.ToValidUTF8(s, "�")
}

// truncateRunesDB 按 rune 数截断，确保不会超过数据库字段长度。
// 这是对采集侧截断的双保险，防止外部服务返回异常长文本导致入库失败。
func truncateRunesDB(s string, limit int) string {
	if limit <= 0 {
		return ""
	}
	s = strings.TrimSpace(s)
	rs := []rune(s)
	if len(rs) <= limit {
		return s
	}
	return string(rs[:limit])
}

// sanitize 入库前的字段清洗
func sanitize(o *Opportunity) {
	o.Title = truncateRunesDB(toValidUTF8(o.Title), 512)
	o.Company = truncateRunesDB(toValidUTF8(o.Company), 256)
	o.Location = truncateRunesDB(toValidUTF8(o.Location), 256)
	o.Description = truncateRunesDB(toValidUTF8(o.Description), 600)
	o.Requirements = truncateRunesDB(toValidUTF8(o.Requirements), 600)
	o.Salary = truncateRunesDB(toValidUTF8(o.Salary), 128)
}

// FindByIdentity 按 (source, source_id) 精确查重，软删除记录不参与匹配
func (s *Store) FindByIdentity(source, sourceID string) (*Opportunity, error) {
	var o Opportunity
	err := s.DB.Where("source = ? AND source_id = ? AND is_deleted = ?", source, sourceID, false).
		First(&o).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &o, nil
}

// FindBySimilarity 返回同类型、公司双向包含匹配的候选集，标题相似度
// 阈值判定留给去重引擎。标题不做 SQL 包含预筛：近似标题（比如
// "Engineering" 与 "Engineer"）互不包含，预筛会把真重复挡在外面。
func (s *Store) FindBySimilarity(title, company, typ string) ([]Opportunity, error) {
	var list []Opportunity
	err := s.DB.Where(
		"type = ? AND is_deleted = ? AND (company ILIKE ? OR ? ILIKE '%' || company || '%')",
		typ, false, "%"+company+"%", company,
	).Limit(25).Find(&list).Error
	if err != nil {
		return nil, err
	}
	return list, nil
}

func (s *Store) Create(o *Opportunity) error {
	sanitize(o)
	return s.DB.Create(o).Error
}

func (s *Store) Update(o *Opportunity) error {
	sanitize(o)
	return s.DB.Save(o).Error
}

// ListOpportunities 按类型/分类/数据源筛选返回机会列表，使用 Redis 做短 TTL 缓存
func (s *Store) ListOpportunities(typ, category, source string, limit int) ([]Opportunity, error) {
	if limit <= 0 || limit > 1000 {
		limit = 20
	}

	ctx := context.Background()
	cacheKey := fmt.Sprintf("opps:list:%s:%s:%s:%d", typ, category, source, limit)

	if s.Redis != nil {
		if bs, err := s.Redis.Get(ctx, cacheKey).Bytes(); err == nil {
			var cached []Opportunity
			if err := json.Unmarshal(bs, &cached); err == nil {
				return cached, nil
			}
		}
	}

	var list []Opportunity
	db := s.DB.Model(&Opportunity{}).Where("is_deleted = ?", false)
	if typ != "" {
		db = db.Where("type = ?", typ)
	}
	if category != "" {
		db = db.Where("category = ?", category)
	}
	if source != "" {
		db = db.Where("source = ?", source)
	}
	if err := db.Order("last_fetched DESC").Limit(limit).Find(&list).Error; err != nil {
		return nil, err
	}

	// 回写缓存（5 分钟），减轻抓取后读放大
	const listCacheTTL = 5 * time.Minute
	if s.Redis != nil && len(list) > 0 {
		if bs, err := json.Marshal(list); err == nil {
			_ = s.Redis.Set(ctx, cacheKey, bs, listCacheTTL).Err()
		}
	}

	return list, nil
}

// FromCandidate 将候选记录转换为存储记录（不含持久化身份）
func FromCandidate(c *collector.Candidate) *Opportunity {
	return &Opportunity{
		Title:          c.Title,
		Company:        c.Company,
		Location:       c.Location,
		Type:           c.Type,
		Category:       c.Category,
		Description:    c.Description,
		Requirements:   c.Requirements,
		Salary:         c.Salary,
		Deadline:       c.Deadline,
		ApplicationURL: c.ApplicationURL,
		Source:         c.Source,
		SourceID:       c.SourceID,
		SourceURL:      c.SourceURL,
		ExtraData:      datatypes.JSONMap(c.RawData),
	}
}
