// Package utils 提供通用工具函数
package utils

import "unicode/utf8"

// RuneLen 按字符计长度
func RuneLen(s string) int {
	return utf8.RuneCountInString(s)
}

// TruncateByRunes 截断到最多 maxRunes 个字符
func TruncateByRunes(s string, maxRunes int) string {
	if maxRunes <= 0 {
		return ""
	}
	if utf8.RuneCountInString(s) <= maxRunes {
		return s
	}
	n := 0
	for i := range s {
		if n == maxRunes {
			return s[:i]
		}
		n++
	}
	return s
}
