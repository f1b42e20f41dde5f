package collector

import (
	"regexp"
	"strings"
	"time"

	"github.com/microcosm-cc/bluemonday"
)

// 描述统一截断到 500 字符：限制下游分类 prompt 的大小
const maxDescriptionRunes = 500

var stripPolicy = bluemonday.StrictPolicy()

// 类型关键词按优先级匹配：实习 > 会议 > 工作坊 > 竞赛 > 工作，先命中先赢
var typeKeywords = []struct {
	typ      string
	keywords []string
}{
	{TypeInternship, []string{"internship", "intern "}},
	{TypeConference, []string{"conference", "summit"}},
	{TypeWorkshop, []string{"workshop", "bootcamp", "seminar"}},
	{TypeCompetition, []string{"competition", "hackathon", "contest", "challenge"}},
	{TypeJob, []string{"job", "position", "career", "hiring", "job opening"}},
}

var categoryKeywords = []struct {
	category string
	keywords []string
}{
	{"Technology", []string{"software", "developer", "programming", "coding", "python", "javascript", "java", "backend", "frontend", "tech", "computer"}},
	{"Business", []string{"business", "marketing", "sales", "finance", "management", "analyst"}},
	{"Design", []string{"design", "ui", "ux", "graphic", "creative", "art"}},
	{"Education", []string{"education", "teaching", "research", "academic"}},
}

// Categorize 根据标题与描述中的关键词推导分类标签，不匹配时返回 General
func Categorize(title, description string) string {
	text := strings.ToLower(title + " " + description)
	for _, set := range categoryKeywords {
		for _, kw := range set.keywords {
			if strings.Contains(text, kw) {
				return set.category
			}
		}
	}
	return "General"
}

// ClassifyType 根据内容推导机会类型；都不匹配时按数据源兜底
// （活动类源默认 workshop，其余默认 job）
func ClassifyType(title, description, sourceHint string) string {
	text := strings.ToLower(title + " " + description)
	for _, set := range typeKeywords {
		for _, kw := range set.keywords {
			if strings.Contains(text, kw) {
				return set.typ
			}
		}
	}

	hint := strings.ToLower(sourceHint)
	if strings.Contains(hint, "meetup") || strings.Contains(hint, "eventbrite") || strings.Contains(hint, "event") {
		return TypeWorkshop
	}
	return TypeJob
}

// 已知的日期格式，按常见程度排序；全部失败时返回 nil 而不是报错
var dateLayouts = []string{
	time.RFC3339,
	"2006-01-02",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	time.RFC1123,
	time.RFC1123Z,
	"Mon, 2 Jan 2006 15:04:05 MST",
	"Mon, 2 Jan 2006 15:04:05 -0700",
	"2 Jan 2006",
	"02 Jan 2006",
	"01/02/2006",
}

// ParseDate 尽力解析多种日期格式，失败时返回 nil（宁可缺日期也不中断条目）
func ParseDate(raw string) *time.Time {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return &t
		}
	}
	return nil
}

var (
	tagPattern        = regexp.MustCompile(`<[^>]+>`)
	whitespacePattern = regexp.MustCompile(`\s+`)
)

// StripHTML 去掉描述中的 HTML 标签并压缩空白
func StripHTML(text string) string {
	if text == "" {
		return ""
	}
	out := stripPolicy.Sanitize(text)
	// 兜底：策略处理不了的残缺标签直接用正则清除
	out = tagPattern.ReplaceAllString(out, "")
	out = whitespacePattern.ReplaceAllString(out, " ")
	return strings.TrimSpace(out)
}

// TruncateDescription 按 rune 截断描述，控制下游 prompt 与存储字段大小
func TruncateDescription(s string) string {
	s = strings.TrimSpace(s)
	rs := []rune(s)
	if len(rs) <= maxDescriptionRunes {
		return s
	}
	return string(rs[:maxDescriptionRunes]) + "..."
}

// ExtractCompany 从标题中提取公司名（例如 "Software Engineer at Google"），
// 用于数据源没有明确公司字段时的兜底
func ExtractCompany(title string) string {
	if idx := strings.LastIndex(title, " at "); idx != -1 {
		if company := strings.TrimSpace(title[idx+len(" at "):]); company != "" {
			return company
		}
	}
	if parts := strings.Split(title, " - "); len(parts) > 1 {
		if company := strings.TrimSpace(parts[len(parts)-1]); company != "" {
			return company
		}
	}
	return "Unknown Company"
}

var locationPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)location[:\s]+([A-Z][a-z]+(?:\s*,\s*[A-Z]{2})?)`),
	regexp.MustCompile(`(?i)based in ([A-Z][a-z]+(?:\s*,\s*[A-Z]{2})?)`),
	regexp.MustCompile(`([A-Z][a-z]+,\s*[A-Z]{2})`),
}

// ExtractLocation 从描述文本中尽力提取地点；匹配不到时返回空串，由调用方兜底
func ExtractLocation(description string) string {
	for _, p := range locationPatterns {
		if m := p.FindStringSubmatch(description); m != nil {
			return strings.TrimSpace(m[1])
		}
	}
	return ""
}
