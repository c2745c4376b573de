package utils_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/liyang960414/erp-sub001/internal/utils"
)

// TestEscapeLike 测试 LIKE 通配符转义
func TestEscapeLike(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"plain", "plain"},
		{"50%", `50\%`},
		{"a_b", `a\_b`},
		{`back\slash`, `back\\slash`},
		{`%_\`, `\%\_\\`},
		{"", ""},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, utils.EscapeLike(c.in), "input %q", c.in)
	}
}

// TestSanitizeString 测试 HTML 转义与控制字符过滤
func TestSanitizeString(t *testing.T) {
	assert.Equal(t, "&lt;script&gt;", utils.SanitizeString("<script>"))
	assert.Equal(t, "line1\nline2\tend", utils.SanitizeString("line1\nline2\tend"))
	assert.Equal(t, "ab", utils.SanitizeString("a\x00\x1bb"))
	assert.Equal(t, "中文名称", utils.SanitizeString("中文名称"))
}
