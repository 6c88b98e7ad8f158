package analysis

import (
	"sort"
	"time"

	"github.com/hitoshi/prodscout/internal/model"
)

// トレンド判定のしきい値。後半平均が前半平均の±5%を超えて変動した場合に
// increasing/decreasingと判定する。
const trendChangeRatio = 0.05

// PriceTrend は価格トレンド分析の結果。
type PriceTrend struct {
	AveragePrice      float64       `json:"average_price"`
	MinPrice          float64       `json:"min_price"`
	MaxPrice          float64       `json:"max_price"`
	PriceDistribution []PriceBucket `json:"price_distribution"`
	Trend             string        `json:"trend"`
	TrendPercentage   float64       `json:"trend_percentage"`
	SampleCount       int           `json:"sample_count"`
}

// PriceBucket は価格帯ごとの商品数。
type PriceBucket struct {
	Range string `json:"range"`
	Count int    `json:"count"`
}

// priceBucketBounds は価格分布の区間境界（上限、昇順）。
var priceBucketBounds = []struct {
	label string
	upper float64
}{
	{"0-20", 20},
	{"20-50", 50},
	{"50-100", 100},
	{"100-200", 200},
}

const lastBucketLabel = "200+"

// AnalyzePriceTrend は商品一覧から価格トレンドを分析する。
// 価格が読み取れない商品はサンプルから除外する。トレンドは取り込み時刻順に
// 並べた前半と後半の平均価格を比較して判定する。
func AnalyzePriceTrend(products []*model.Product) PriceTrend {
	type sample struct {
		price float64
		at    time.Time
	}

	var samples []sample
	for _, p := range products {
		price := ParsePrice(p.Price)
		if price <= 0 {
			continue
		}
		samples = append(samples, sample{price: price, at: p.CreatedAt})
	}

	trend := PriceTrend{Trend: "stable", PriceDistribution: emptyBuckets()}
	if len(samples) == 0 {
		return trend
	}

	total := 0.0
	trend.MinPrice = samples[0].price
	trend.MaxPrice = samples[0].price
	for _, s := range samples {
		total += s.price
		if s.price < trend.MinPrice {
			trend.MinPrice = s.price
		}
		if s.price > trend.MaxPrice {
			trend.MaxPrice = s.price
		}
		bucketFor(trend.PriceDistribution, s.price)
	}
	trend.SampleCount = len(samples)
	trend.AveragePrice = round2(total / float64(len(samples)))
	trend.MinPrice = round2(trend.MinPrice)
	trend.MaxPrice = round2(trend.MaxPrice)

	// 前半と後半の平均比較によるトレンド判定
	sort.Slice(samples, func(i, j int) bool { return samples[i].at.Before(samples[j].at) })
	mid := len(samples) / 2
	if mid == 0 {
		return trend
	}

	firstHalf := 0.0
	for _, s := range samples[:mid] {
		firstHalf += s.price
	}
	firstHalf /= float64(mid)

	secondHalf := 0.0
	for _, s := range samples[mid:] {
		secondHalf += s.price
	}
	secondHalf /= float64(len(samples) - mid)

	switch {
	case secondHalf > firstHalf*(1+trendChangeRatio):
		trend.Trend = "increasing"
	case secondHalf < firstHalf*(1-trendChangeRatio):
		trend.Trend = "decreasing"
	}
	if firstHalf > 0 {
		trend.TrendPercentage = round2((secondHalf - firstHalf) / firstHalf * 100)
	}

	return trend
}

// emptyBuckets はゼロ件の価格帯一覧を生成する。
func emptyBuckets() []PriceBucket {
	buckets := make([]PriceBucket, 0, len(priceBucketBounds)+1)
	for _, b := range priceBucketBounds {
		buckets = append(buckets, PriceBucket{Range: b.label})
	}
	return append(buckets, PriceBucket{Range: lastBucketLabel})
}

// bucketFor は価格に対応する価格帯のカウントを進める。
func bucketFor(buckets []PriceBucket, price float64) {
	for i, b := range priceBucketBounds {
		if price < b.upper {
			buckets[i].Count++
			return
		}
	}
	buckets[len(buckets)-1].Count++
}
