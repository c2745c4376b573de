package utils

import (
	"html"
	"strings"
	"unicode"
)

// likeEscaper 转义 LIKE 模式里的通配符
var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// EscapeLike 把用户输入转成安全的 LIKE 片段
// 通配符按字面匹配,调用方自行拼接前后的 %
func EscapeLike(input string) string {
	return likeEscaper.Replace(input)
}

// SanitizeString 清理字符串,HTML 转义并移除控制字符(保留换行和制表符)
func SanitizeString(input string) string {
	sanitized := html.EscapeString(input)

	var result strings.Builder
	for _, r := range sanitized {
		if unicode.IsControl(r) && r != '\n' && r != '\t' {
			continue
		}
		result.WriteRune(r)
	}

	return result.String()
}
