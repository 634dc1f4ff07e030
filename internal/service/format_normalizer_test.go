package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAreEquivalent(t *testing.T) {
	fn := NewFormatNormalizer()

	tests := []struct {
		name string
		a, b string
		want bool
	}{
		{"stars to digit", "★★★★★", "5", true},
		{"stars with empties", "★★★☆☆", "3", true},
		{"digit to chinese stars", "3", "三星", true},
		{"star count differs", "★★★★", "5", false},
		{"chinese yes to english", "是", "yes", true},
		{"chinese no to english", "否", "No", true},
		{"yes vs no", "是", "否", false},
		{"percent to fraction", "50%", "0.5", true},
		{"percent vs plain number", "50%", "50", false},
		{"thousands separator", "1,000", "1000", true},
		{"currency and decimals", "¥1,000", "1000.00", true},
		{"numbers differ", "100", "105", false},
		{"date separators", "2024/1/5", "2024-01-05", true},
		{"chinese date", "2024年1月5日", "2024-01-05", true},
		{"dates differ", "2024-01-05", "2024-01-06", false},
		{"full width digits", "１２３", "123", true},
		{"phone formatting", "138-0013-8000", "13800138000", true},
		{"whitespace", "  hello  world ", "hello world", true},
		{"status change", "正常", "停产", false},
		{"empty vs zero", "", "0", false},
		{"digit is not boolean", "1", "是", false},
		{"misgrouped separator is not thousands", "1,2", "12", false},
		{"nan is text", "NaN", "nan", false},
		{"exponent is text", "1e3", "1000", false},
		{"have is not yes", "有", "是", false},
		{"none is not no", "无", "否", false},
		{"not is not no", "不", "no", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, fn.AreEquivalent(tt.a, tt.b))
			assert.Equal(t, tt.want, fn.AreEquivalent(tt.b, tt.a), "equivalence must be symmetric")
		})
	}
}

func TestDetectFormat(t *testing.T) {
	fn := NewFormatNormalizer()

	tests := map[string]string{
		"":           "empty",
		"2024-01-05": "date",
		"85%":        "percent",
		"1,200.50":   "number",
		"★★★":        "rating",
		"是":          "boolean",
		"项目进行中":      "text",
		"inf":        "text",
		"NaN":        "text",
		"1,2":        "text",
	}
	for in, want := range tests {
		assert.Equal(t, want, fn.DetectFormat(in), "value %q", in)
	}
}

func TestParseHelpers(t *testing.T) {
	fn := NewFormatNormalizer()

	n, ok := fn.ParseNumber("80%")
	assert.True(t, ok)
	assert.InDelta(t, 80.0, n, 1e-9)

	_, ok = fn.ParseNumber("abc")
	assert.False(t, ok)

	n, ok = fn.ParseNumber("¥ 1,234.5")
	assert.True(t, ok)
	assert.InDelta(t, 1234.5, n, 1e-9)

	for _, v := range []string{"inf", "-Infinity", "NaN", "1e5", "1,2", "12,34,567", "0x1F"} {
		_, ok = fn.ParseNumber(v)
		assert.False(t, ok, "value %q", v)
	}

	d, ok := fn.ParseDate("2025年3月1日")
	assert.True(t, ok)
	assert.Equal(t, "2025-03-01", d.Format("2006-01-02"))

	stars, ok := fn.StarCount("★★☆")
	assert.True(t, ok)
	assert.Equal(t, 2, stars)

	_, ok = fn.StarCount("很多")
	assert.False(t, ok)
}
