package collector

import "time"

// 机会类型枚举值
const (
	TypeJob         = "job"
	TypeInternship  = "internship"
	TypeWorkshop    = "workshop"
	TypeConference  = "conference"
	TypeCompetition = "competition"
)

// Candidate 统一采集后的候选机会记录，尚未通过分类闸门与去重
type Candidate struct {
	Title       string
	Company     string
	Location    string
	Type        string // job / internship / workshop / conference / competition
	Category    string // 关键词推导的分类标签
	Description string
	// 可选字段：缺失时保持零值，去重更新时不会用空值覆盖已有数据
	Requirements   string
	Salary         string
	Deadline       *time.Time
	ApplicationURL string
	Source         string // 数据源标识，由 Fetcher 填写
	SourceID       string // 数据源内的唯一 ID，可为空
	SourceURL      string
	RawData        map[string]any
}

// Fetcher 抽象每一个数据源。Fetch 返回 error 只用于计数与降级，
// 单个源失败不允许影响整轮采集。
type Fetcher interface {
	Name() string
	Fetch() ([]Candidate, error)
}
