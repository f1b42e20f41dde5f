package aifilter

import "strings"

// 关键词兜底过滤：只在 RejectOnError=false 且分类器不可用时使用。
// 刻意保守——宁可漏掉真机会，也不放进噪声。

var interrogativeWords = []string{
	"how", "what", "where", "when", "why", "who", "which",
	"can", "should", "is", "are", "does", "do", "any",
}

var adviceSeekingPhrases = []string{
	"advice", "any suggestions", "recommendations", "tips",
	"help me", "how do i", "how to find", "looking for advice",
}

// 雇主一侧的强招聘/机会用语，至少命中一个才放行
var hiringPhrases = []string{
	"[hiring]", "hiring", "we are hiring", "we're hiring", "now hiring",
	"job opening", "open position", "position available", "vacancy",
	"apply now", "applications open", "apply at", "join our team",
	"internship program", "we are looking for", "we're looking for",
	"workshop", "conference", "hackathon",
}

func containsAny(text string, phrases []string) bool {
	for _, p := range phrases {
		if strings.Contains(text, p) {
			return true
		}
	}
	return false
}

// fallbackAdmit 确定性的关键词判定，返回是否放行
func fallbackAdmit(title, description string) bool {
	titleLower := strings.ToLower(strings.TrimSpace(title))
	if titleLower == "" {
		return false
	}
	text := titleLower + " " + strings.ToLower(description)

	hasHiring := containsAny(text, hiringPhrases)

	// 疑问句开头且没有招聘用语同现 → 提问贴
	firstWord := titleLower
	if idx := strings.IndexAny(firstWord, " ?,"); idx != -1 {
		firstWord = firstWord[:idx]
	}
	for _, q := range interrogativeWords {
		if firstWord == q && !hasHiring {
			return false
		}
	}
	if strings.HasSuffix(titleLower, "?") && !hasHiring {
		return false
	}

	// 求建议贴
	if containsAny(text, adviceSeekingPhrases) && !hasHiring {
		return false
	}

	// "for hire" 是求职者自我推销，除非同时带 [hiring] 标签
	if strings.Contains(text, "for hire") && !strings.Contains(text, "[hiring]") {
		return false
	}

	return hasHiring
}
