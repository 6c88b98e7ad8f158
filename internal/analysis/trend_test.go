package analysis

import (
	"testing"
	"time"

	"github.com/hitoshi/prodscout/internal/model"
)

func productAt(price string, at time.Time) *model.Product {
	return &model.Product{Price: price, CreatedAt: at}
}

func TestAnalyzePriceTrend_Increasing(t *testing.T) {
	base := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	products := []*model.Product{
		productAt("$10.00", base),
		productAt("$10.00", base.Add(1*time.Hour)),
		productAt("$20.00", base.Add(2*time.Hour)),
		productAt("$20.00", base.Add(3*time.Hour)),
	}

	trend := AnalyzePriceTrend(products)

	if trend.Trend != "increasing" {
		t.Errorf("上昇トレンドと判定されるべきです: got %q", trend.Trend)
	}
	if trend.TrendPercentage != 100 {
		t.Errorf("変動率が異なります: got %v", trend.TrendPercentage)
	}
	if trend.AveragePrice != 15 {
		t.Errorf("平均価格が異なります: got %v", trend.AveragePrice)
	}
	if trend.MinPrice != 10 || trend.MaxPrice != 20 {
		t.Errorf("価格レンジが異なります: min=%v max=%v", trend.MinPrice, trend.MaxPrice)
	}
	if trend.SampleCount != 4 {
		t.Errorf("サンプル数が異なります: got %d", trend.SampleCount)
	}
}

func TestAnalyzePriceTrend_Decreasing(t *testing.T) {
	base := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	products := []*model.Product{
		productAt("$30.00", base),
		productAt("$30.00", base.Add(1*time.Hour)),
		productAt("$15.00", base.Add(2*time.Hour)),
		productAt("$15.00", base.Add(3*time.Hour)),
	}

	trend := AnalyzePriceTrend(products)
	if trend.Trend != "decreasing" {
		t.Errorf("下降トレンドと判定されるべきです: got %q", trend.Trend)
	}
	if trend.TrendPercentage != -50 {
		t.Errorf("変動率が異なります: got %v", trend.TrendPercentage)
	}
}

// TestAnalyzePriceTrend_Stable は±5%以内の変動がstableと判定されることを
// 検証する。
func TestAnalyzePriceTrend_Stable(t *testing.T) {
	base := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	products := []*model.Product{
		productAt("$100.00", base),
		productAt("$104.00", base.Add(1*time.Hour)),
	}

	trend := AnalyzePriceTrend(products)
	if trend.Trend != "stable" {
		t.Errorf("安定トレンドと判定されるべきです: got %q", trend.Trend)
	}
}

func TestAnalyzePriceTrend_SkipsUnparsablePrices(t *testing.T) {
	base := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	products := []*model.Product{
		productAt("$25.00", base),
		productAt("", base.Add(1*time.Hour)),
		productAt("価格不明", base.Add(2*time.Hour)),
	}

	trend := AnalyzePriceTrend(products)
	if trend.SampleCount != 1 {
		t.Errorf("価格の読めない商品は除外されるべきです: got %d", trend.SampleCount)
	}
	if trend.Trend != "stable" {
		t.Errorf("サンプル1件はstableであるべきです: got %q", trend.Trend)
	}
}

func TestAnalyzePriceTrend_Empty(t *testing.T) {
	trend := AnalyzePriceTrend(nil)

	if trend.Trend != "stable" {
		t.Errorf("空入力はstableであるべきです: got %q", trend.Trend)
	}
	if trend.SampleCount != 0 || trend.AveragePrice != 0 {
		t.Errorf("空入力の統計は0であるべきです: %+v", trend)
	}
	if len(trend.PriceDistribution) != 5 {
		t.Fatalf("価格帯は5区分であるべきです: got %d", len(trend.PriceDistribution))
	}
	for _, b := range trend.PriceDistribution {
		if b.Count != 0 {
			t.Errorf("空入力の価格帯カウントは0であるべきです: %+v", b)
		}
	}
}

func TestAnalyzePriceTrend_Distribution(t *testing.T) {
	base := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	products := []*model.Product{
		productAt("$5.00", base),
		productAt("$25.00", base),
		productAt("$75.00", base),
		productAt("$150.00", base),
		productAt("$500.00", base),
	}

	trend := AnalyzePriceTrend(products)

	want := map[string]int{"0-20": 1, "20-50": 1, "50-100": 1, "100-200": 1, "200+": 1}
	for _, b := range trend.PriceDistribution {
		if b.Count != want[b.Range] {
			t.Errorf("価格帯 %q のカウントが異なります: got %d, want %d",
				b.Range, b.Count, want[b.Range])
		}
	}
}
