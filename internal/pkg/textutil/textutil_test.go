package textutil

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTokenize(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected []string
	}{
		{
			name:     "普通英文句子",
			input:    "What apartments are available?",
			expected: []string{"what", "apartments", "are", "available"},
		},
		{
			name:     "包含数字",
			input:    "2BHK flats under 50 lakhs",
			expected: []string{"2bhk", "flats", "under", "50", "lakhs"},
		},
		{
			name:     "空字符串",
			input:    "",
			expected: nil,
		},
		{
			name:     "仅标点",
			input:    "?!...",
			expected: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, Tokenize(tt.input))
		})
	}
}

func TestJaccardSimilarity(t *testing.T) {
	tests := []struct {
		name     string
		a        string
		b        string
		expected float64
	}{
		{
			name:     "完全相同",
			a:        "luxury apartments in pune",
			b:        "luxury apartments in pune",
			expected: 1.0,
		},
		{
			name:     "无重叠",
			a:        "contact phone email",
			b:        "residential towers amenities",
			expected: 0.0,
		},
		{
			name:     "部分重叠",
			a:        "apartments in pune",
			b:        "apartments in mumbai",
			expected: 0.5,
		},
		{
			name:     "空文本",
			a:        "",
			b:        "anything",
			expected: 0.0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.expected, JaccardSimilarity(tt.a, tt.b), 1e-9)
		})
	}
}

func TestOverlapRatio(t *testing.T) {
	t.Run("a 完全被 b 覆盖", func(t *testing.T) {
		assert.InDelta(t, 1.0, OverlapRatio("pune projects", "all pune projects listed here"), 1e-9)
	})

	t.Run("覆盖一半", func(t *testing.T) {
		assert.InDelta(t, 0.5, OverlapRatio("pune mumbai", "pune only"), 1e-9)
	})

	t.Run("空输入", func(t *testing.T) {
		assert.Zero(t, OverlapRatio("", "content"))
	})
}

func TestSignificantTerms(t *testing.T) {
	terms := SignificantTerms("What are the amenities in the luxury tower?", 3)
	assert.Equal(t, []string{"amenities", "luxury", "tower"}, terms)

	assert.Empty(t, SignificantTerms("is it in the", 3))
}

func TestExtractNumbers(t *testing.T) {
	assert.Equal(t, []string{"120", "3.5", "2024"}, ExtractNumbers("120 units, 3.5 acres, delivered 2024"))
	assert.Empty(t, ExtractNumbers("no digits here"))
}

func TestExtractCapitalizedSpans(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected []string
	}{
		{
			name:     "句中的专有名词",
			input:    "tell me about Green Valley Heights in Pune",
			expected: []string{"Green Valley Heights", "Pune"},
		},
		{
			name:     "句首单词不算实体",
			input:    "Where is the office",
			expected: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, ExtractCapitalizedSpans(tt.input))
		})
	}
}

func TestCollapseWhitespace(t *testing.T) {
	assert.Equal(t, "a b c", CollapseWhitespace("  a \t b \n c  "))
	assert.Equal(t, "", CollapseWhitespace("   "))
}

func TestTruncateString(t *testing.T) {
	assert.Equal(t, "你好", TruncateString("你好世界", 2))
	assert.Equal(t, "short", TruncateString("short", 10))
}

func TestHashString(t *testing.T) {
	h1 := HashString("same input")
	h2 := HashString("same input")
	h3 := HashString("other input")

	assert.Equal(t, h1, h2)
	assert.NotEqual(t, h1, h3)
	assert.Len(t, h1, 32)
}
