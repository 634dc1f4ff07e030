package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeHeader(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"负责人", "负责人"},
		{" 负责人 ", "负责人"},
		{"邓总指导登记（日更新）", "邓总指导登记"},
		{"邓总指导登记(日更新)", "邓总指导登记"},
		{"关键ＫＲ对齐", "关键kr对齐"},
		{"Start_Time", "starttime"},
		{"", ""},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, NormalizeHeader(tt.in))
		})
	}
}

func TestLevenshteinRatio(t *testing.T) {
	assert.InDelta(t, 1.0, LevenshteinRatio("", ""), 1e-9)
	assert.InDelta(t, 1.0, LevenshteinRatio("Owner", "owner"), 1e-9)
	assert.InDelta(t, 0.0, LevenshteinRatio("abc", "xyz"), 1e-9)
	// one substitution over three runes
	assert.InDelta(t, 2.0/3.0, LevenshteinRatio("负责人", "监责人"), 1e-9)
}

func TestTextSimilarity(t *testing.T) {
	assert.InDelta(t, 1.0, TextSimilarity("完成进度", "完成进度"), 1e-9)
	assert.GreaterOrEqual(t, TextSimilarity("具体计划内容", "具体计划的内容"), DefaultFuzzyThreshold)
	assert.Less(t, TextSimilarity("协助人", "监督人"), 0.5)
	assert.Less(t, TextSimilarity("任务发起时间", "预计完成时间"), DefaultFuzzyThreshold)
}

func TestColumnLetter(t *testing.T) {
	tests := map[int]string{0: "A", 1: "B", 25: "Z", 26: "AA", 27: "AB", 51: "AZ", 52: "BA", 701: "ZZ", 702: "AAA"}
	for in, want := range tests {
		assert.Equal(t, want, columnLetter(in), "index %d", in)
	}
	assert.Equal(t, "", columnLetter(-1))
}
