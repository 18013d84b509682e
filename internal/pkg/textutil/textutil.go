// Package textutil 提供检索和答案校验相关的文本处理工具函数。
package textutil

import (
	"crypto/md5"
	"encoding/hex"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

var (
	wordRegex   = regexp.MustCompile(`[a-z0-9]+`)
	numberRegex = regexp.MustCompile(`\d+(?:\.\d+)?`)
)

// stopwords 是参与词项重叠计算时忽略的高频词。
var stopwords = map[string]struct{}{
	"a": {}, "an": {}, "the": {}, "is": {}, "are": {}, "was": {}, "were": {},
	"be": {}, "been": {}, "do": {}, "does": {}, "did": {}, "have": {}, "has": {},
	"had": {}, "of": {}, "in": {}, "on": {}, "at": {}, "to": {}, "for": {},
	"with": {}, "by": {}, "from": {}, "and": {}, "or": {}, "not": {}, "no": {},
	"it": {}, "its": {}, "this": {}, "that": {}, "these": {}, "those": {},
	"what": {}, "which": {}, "who": {}, "whom": {}, "where": {}, "when": {},
	"how": {}, "why": {}, "can": {}, "could": {}, "will": {}, "would": {},
	"should": {}, "about": {}, "as": {}, "im": {}, "me": {}, "my": {},
	"you": {}, "your": {}, "we": {}, "our": {}, "they": {}, "their": {},
}

// Tokenize 将文本转为小写后按字母数字序列切分为词元。
func Tokenize(s string) []string {
	return wordRegex.FindAllString(strings.ToLower(s), -1)
}

// TokenSet 返回文本的去重词元集合。
func TokenSet(s string) map[string]struct{} {
	set := make(map[string]struct{})
	for _, tok := range Tokenize(s) {
		set[tok] = struct{}{}
	}
	return set
}

// SignificantTerms 返回文本中去除停用词后长度大于 minLen 的词元。
func SignificantTerms(s string, minLen int) []string {
	var terms []string
	for _, tok := range Tokenize(s) {
		if len(tok) <= minLen {
			continue
		}
		if _, ok := stopwords[tok]; ok {
			continue
		}
		terms = append(terms, tok)
	}
	return terms
}

// JaccardSimilarity 计算两段文本词元集合的 Jaccard 相似度，范围 [0, 1]。
func JaccardSimilarity(a, b string) float64 {
	setA := TokenSet(a)
	setB := TokenSet(b)
	if len(setA) == 0 || len(setB) == 0 {
		return 0
	}

	intersection := 0
	for tok := range setA {
		if _, ok := setB[tok]; ok {
			intersection++
		}
	}
	union := len(setA) + len(setB) - intersection
	if union == 0 {
		return 0
	}
	return float64(intersection) / float64(union)
}

// OverlapRatio 计算 a 的词元被 b 覆盖的比例，范围 [0, 1]。
// 与 Jaccard 不同，该值只关心 a 中有多少词元出现在 b 中。
func OverlapRatio(a, b string) float64 {
	setA := TokenSet(a)
	if len(setA) == 0 {
		return 0
	}
	setB := TokenSet(b)

	covered := 0
	for tok := range setA {
		if _, ok := setB[tok]; ok {
			covered++
		}
	}
	return float64(covered) / float64(len(setA))
}

// ExtractNumbers 提取文本中的数值词元（整数与小数）。
func ExtractNumbers(s string) []string {
	return numberRegex.FindAllString(s, -1)
}

// ExtractCapitalizedSpans 提取连续的首字母大写词组，跳过句首单词。
// 用于粗粒度的实体识别。
func ExtractCapitalizedSpans(s string) []string {
	var spans []string
	var current []string

	words := strings.Fields(s)
	for i, word := range words {
		trimmed := strings.TrimFunc(word, func(r rune) bool {
			return !unicode.IsLetter(r) && !unicode.IsDigit(r)
		})
		r, _ := utf8.DecodeRuneInString(trimmed)
		if trimmed != "" && unicode.IsUpper(r) && i > 0 {
			current = append(current, trimmed)
			continue
		}
		if len(current) > 0 {
			spans = append(spans, strings.Join(current, " "))
			current = nil
		}
	}
	if len(current) > 0 {
		spans = append(spans, strings.Join(current, " "))
	}
	return spans
}

// CollapseWhitespace 去除首尾空白并将连续空白压缩为单个空格。
func CollapseWhitespace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// HashString 计算字符串的 MD5 哈希值。
func HashString(s string) string {
	hash := md5.Sum([]byte(s))
	return hex.EncodeToString(hash[:])
}

// TruncateString 截断字符串到指定的最大 Unicode 字符数。
func TruncateString(s string, maxLen int) string {
	if utf8.RuneCountInString(s) <= maxLen {
		return s
	}
	runes := []rune(s)
	return string(runes[:maxLen])
}

// ContainsString 检查字符串切片是否包含指定元素。
func ContainsString(slice []string, item string) bool {
	for _, v := range slice {
		if v == item {
			return true
		}
	}
	return false
}
