package processor

// Levenshtein 按 rune 计算编辑距离，只保留两行状态
func Levenshtein(a, b string) int {
	ra, rb := []rune(a), []rune(b)
	if len(ra) == 0 {
		return len(rb)
	}
	if len(rb) == 0 {
		return len(ra)
	}

	prev := make([]int, len(rb)+1)
	curr := make([]int, len(rb)+1)
	for j := range prev {
		prev[j] = j
	}

	for i := 1; i <= len(ra); i++ {
		curr[0] = i
		for j := 1; j <= len(rb); j++ {
			if ra[i-1] == rb[j-1] {
				curr[j] = prev[j-1]
				continue
			}
			curr[j] = 1 + min(prev[j-1], prev[j], curr[j-1])
		}
		prev, curr = curr, prev
	}
	return prev[len(rb)]
}

// Similarity 返回 (maxLen - distance) / maxLen，取值 [0,1]；两个空串视为完全相同
func Similarity(a, b string) float64 {
	maxLen := max(len([]rune(a)), len([]rune(b)))
	if maxLen == 0 {
		return 1.0
	}
	return float64(maxLen-Levenshtein(a, b)) / float64(maxLen)
}
