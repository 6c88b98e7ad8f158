// Package analysis はカタログデータの分析機能を提供する。
// 利益率・競争度スコアの算出、価格トレンド分析、および外部AIによる
// インサイト生成を含む。
package analysis

import (
	"math"
	"regexp"
	"strconv"
	"strings"
)

// 競争度スコアの算出パラメータ。
const (
	baseCompetitionScore = 50.0

	reviewCountHighThreshold   = 10000
	reviewCountMediumThreshold = 5000
	reviewCountLowThreshold    = 1000

	ratingHighThreshold = 4.5
	ratingLowThreshold  = 4.0
)

// costRatio は販売価格に対する想定原価の割合。
const costRatio = 0.6

// CompetitionLevel は競争度の区分。
type CompetitionLevel string

const (
	CompetitionLow    CompetitionLevel = "low"
	CompetitionMedium CompetitionLevel = "medium"
	CompetitionHigh   CompetitionLevel = "high"
)

var (
	priceCleanPattern  = regexp.MustCompile(`[$,]`)
	digitsParsePattern = regexp.MustCompile(`\d+`)
)

// ParsePrice は価格表記から数値を取り出す。
// "$"とカンマを除去してパースし、読み取れない場合は0を返す。
func ParsePrice(priceText string) float64 {
	if priceText == "" {
		return 0
	}
	cleaned := priceCleanPattern.ReplaceAllString(priceText, "")
	price, err := strconv.ParseFloat(strings.TrimSpace(cleaned), 64)
	if err != nil {
		return 0
	}
	return price
}

// ParseReviewCount はレビュー数表記から整数値を取り出す。
// カンマを除去した上で最初の数字列を採用する。読み取れない場合は0を返す。
func ParseReviewCount(text string) int {
	if text == "" {
		return 0
	}
	m := digitsParsePattern.FindString(strings.ReplaceAll(text, ",", ""))
	if m == "" {
		return 0
	}
	n, err := strconv.Atoi(m)
	if err != nil {
		return 0
	}
	return n
}

// MarginRate は想定原価（価格の60%）に対する利益率（%）を算出する。
// 価格が0以下の場合は0を返す。小数点以下2桁に丸める。
func MarginRate(price float64) float64 {
	if price <= 0 {
		return 0
	}
	cost := price * costRatio
	margin := (price - cost) / cost * 100
	return round2(margin)
}

// CompetitionScore はレビュー数と評価から競争度スコアを算出する。
// 基準値50に対し、レビュー数が多いほど・評価が高いほど加点され、
// [0, 100] の範囲にクランプされる。
func CompetitionScore(reviewCount int, rating float64) float64 {
	score := baseCompetitionScore

	switch {
	case reviewCount > reviewCountHighThreshold:
		score += 30
	case reviewCount > reviewCountMediumThreshold:
		score += 20
	case reviewCount > reviewCountLowThreshold:
		score += 10
	}

	switch {
	case rating >= ratingHighThreshold:
		score += 20
	case rating >= ratingLowThreshold:
		score += 10
	}

	return math.Min(100, math.Max(0, score))
}

// LevelForScore は競争度スコアを区分に変換する。
// 30未満はlow、60未満はmedium、それ以上はhigh。
func LevelForScore(score float64) CompetitionLevel {
	switch {
	case score < 30:
		return CompetitionLow
	case score < 60:
		return CompetitionMedium
	default:
		return CompetitionHigh
	}
}

// round2 は小数点以下2桁に丸める。
func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
