package fingerprint

import (
	"strings"
	"testing"

	"github.com/hitoshi/prodscout/internal/model"
)

func baseProduct() *model.ExtractedProduct {
	return &model.ExtractedProduct{
		Name:            "Cotton T-Shirt Black M",
		Price:           "$19.99",
		Rating:          4.5,
		ReviewCountText: "(2,317)",
		ImageURL:        "https://m.media-amazon.com/images/I/abc.jpg",
		ProductURL:      "https://www.amazon.com/dp/B00TEST",
		Description:     "Size: M | Color: Black | Material: Cotton",
	}
}

// TestHash_Deterministic は同一タプルに対してハッシュが安定であることを検証する。
func TestHash_Deterministic(t *testing.T) {
	p := baseProduct()
	sourceURL := "https://www.amazon.com/"

	first := Hash(p, sourceURL)
	second := Hash(p, sourceURL)

	if first != second {
		t.Errorf("同一タプルのハッシュが一致しない: %s != %s", first, second)
	}
	if len(first) != 64 {
		t.Errorf("SHA-256の16進ダイジェスト長は64であるべき: got %d", len(first))
	}
}

// TestHash_ChangesWhenAnyCoreFieldChanges はコアフィールドを1つ変更すると
// ハッシュが変化することを検証する。
func TestHash_ChangesWhenAnyCoreFieldChanges(t *testing.T) {
	sourceURL := "https://www.amazon.com/"
	base := Hash(baseProduct(), sourceURL)

	mutations := map[string]func(*model.ExtractedProduct){
		"name":            func(p *model.ExtractedProduct) { p.Name = "Other Shirt" },
		"price":           func(p *model.ExtractedProduct) { p.Price = "$29.99" },
		"rating":          func(p *model.ExtractedProduct) { p.Rating = 4.6 },
		"reviewCountText": func(p *model.ExtractedProduct) { p.ReviewCountText = "(999)" },
		"imageUrl":        func(p *model.ExtractedProduct) { p.ImageURL = "https://m.media-amazon.com/images/I/zzz.jpg" },
		"productUrl":      func(p *model.ExtractedProduct) { p.ProductURL = "https://www.amazon.com/dp/B00OTHER" },
		"description":     func(p *model.ExtractedProduct) { p.Description = "Size: L" },
	}

	for field, mutate := range mutations {
		p := baseProduct()
		mutate(p)
		if got := Hash(p, sourceURL); got == base {
			t.Errorf("%s の変更でハッシュが変化しなかった", field)
		}
	}

	if got := Hash(baseProduct(), "https://www.amazon.co.jp/"); got == base {
		t.Error("sourceUrl の変更でハッシュが変化しなかった")
	}
}

// TestHash_EmptyFieldsDistinguishable は隣接する空フィールドが
// 値の移動と区別されることを検証する（区切りバイトの効果）。
func TestHash_EmptyFieldsDistinguishable(t *testing.T) {
	a := &model.ExtractedProduct{Name: "ab", Price: ""}
	b := &model.ExtractedProduct{Name: "a", Price: "b"}

	if Hash(a, "") == Hash(b, "") {
		t.Error("フィールド境界の異なるタプルが同一ハッシュになった")
	}
}

// TestHash_MissingFieldsCoerceToEmpty は欠損フィールドが空文字列として
// 扱われ、エラーにならないことを検証する。
func TestHash_MissingFieldsCoerceToEmpty(t *testing.T) {
	p := &model.ExtractedProduct{Name: "Name Only"}

	digest := Hash(p, "")
	if digest == "" {
		t.Fatal("欠損フィールドを含むタプルでもハッシュを返すべき")
	}
}

// TestProductID_Format は商品IDの形式を検証する。
func TestProductID_Format(t *testing.T) {
	digest := Hash(baseProduct(), "https://www.amazon.com/")

	id := ProductID(digest)
	if !strings.HasPrefix(id, "prod-") {
		t.Errorf("商品IDは prod- で始まるべき: %s", id)
	}
	if len(id) != len("prod-")+12 {
		t.Errorf("商品IDはダイジェスト先頭12文字を使うべき: %s", id)
	}
}

// TestRatingString_ZeroIsEmpty は未設定の評価が空文字列になることを検証する。
func TestRatingString_ZeroIsEmpty(t *testing.T) {
	if got := ratingString(0); got != "" {
		t.Errorf("rating 0 は空文字列であるべき: got %q", got)
	}
	if got := ratingString(4.5); got != "4.5" {
		t.Errorf("rating 4.5 の文字列化が不正: got %q", got)
	}
}
