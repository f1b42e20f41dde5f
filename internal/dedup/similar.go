package dedup

import (
	"strings"

	"github.com/agnivade/levenshtein"
)

// titlesSimilar 判断两个标题是否指向同一条机会。
// 主判据是归一化编辑距离比值；完全相等、互相包含、词集重叠
// 作为次级判据兜底（短标题下编辑距离比值偏严）。
func titlesSimilar(a, b string, threshold float64) bool {
	a = strings.ToLower(strings.TrimSpace(a))
	b = strings.ToLower(strings.TrimSpace(b))
	if a == "" || b == "" {
		return false
	}

	if a == b {
		return true
	}

	maxLen := len([]rune(a))
	if l := len([]rune(b)); l > maxLen {
		maxLen = l
	}
	dist := levenshtein.ComputeDistance(a, b)
	if sim := 1 - float64(dist)/float64(maxLen); sim >= threshold {
		return true
	}

	if strings.Contains(a, b) || strings.Contains(b, a) {
		return true
	}

	return tokenOverlap(a, b) >= threshold
}

// tokenOverlap 词集交集占较大词集的比例
func tokenOverlap(a, b string) float64 {
	wa := strings.Fields(a)
	wb := strings.Fields(b)
	if len(wa) == 0 || len(wb) == 0 {
		return 0
	}

	set := make(map[string]struct{}, len(wa))
	for _, w := range wa {
		set[w] = struct{}{}
	}

	overlap := 0
	seen := make(map[string]struct{}, len(wb))
	for _, w := range wb {
		if _, dup := seen[w]; dup {
			continue
		}
		seen[w] = struct{}{}
		if _, ok := set[w]; ok {
			overlap++
		}
	}

	max := len(set)
	if len(seen) > max {
		max = len(seen)
	}
	return float64(overlap) / float64(max)
}
