package extractor

import (
	"log/slog"
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/hitoshi/prodscout/internal/model"
)

// 詳細ページの各フィールドを特定するセレクタカスケード。優先順に評価する。
var (
	breadcrumbSelectors = []string{
		`#wayfinding-breadcrumbs_feature_div ul.a-unordered-list li span`,
		`.a-breadcrumb li span a`,
		`#wayfinding-breadcrumbs li span`,
		`[aria-label*="breadcrumb"] a`,
	}
	titleSelectors = []string{
		`#productTitle`,
		`h1.a-size-large`,
		`span#productTitle`,
		`h1.a-product-title`,
	}
	detailRatingSelectors = []string{
		`[data-hook="rating-out-of-text"]`,
		`span.a-icon-alt`,
		`#acrPopover span`,
		`.a-icon-alt`,
	}
	reviewCountSelectors = []string{
		`#acrCustomerReviewText`,
		`#acrCustomerReviewLink`,
		`[data-hook="total-review-count"]`,
		`a[href*="#customerReviews"]`,
	}
	detailPriceSelectors = []string{
		`.a-price-whole`,
		`#priceblock_ourprice`,
		`#priceblock_dealprice`,
		`.a-price .a-offscreen`,
		`span.a-price-whole`,
		`.a-color-price`,
	}
	colorSelectors = []string{
		`#variation_color_name ul li`,
		`#color_name_0 .a-button-inner`,
		`[data-csa-c-content-id="twister"] .a-button-inner`,
		`.swatchElement span[data-asin]`,
	}
	sizeSelectors = []string{
		`#variation_size_name select option`,
		`#size_name_0 .a-button-text`,
		`[data-csa-c-content-id="twister_size_name"] .a-button-text`,
		`select[name*="size"] option`,
	}
	aboutSelectors = []string{
		`#feature-bullets`,
		`#productDescription`,
		`[data-feature-name="productDescription"]`,
		`.a-section.a-spacing-medium`,
	}
	detailImageSelectors = []string{
		`#landingImage`,
		`#main-image`,
		`[data-main-image]`,
		`img[data-a-dynamic-image]`,
	}
)

var (
	detailRatingPattern = regexp.MustCompile(`(?i)(\d+\.?\d*)\s*out of 5`)
	reviewDigitsPattern = regexp.MustCompile(`([\d,]+)`)
	boughtPattern       = regexp.MustCompile(`(?i)([\d,]+[KMBkmb]?\+?)\s*bought in past month`)
	detailPricePattern  = regexp.MustCompile(`\$?([\d,]+\.?\d*)`)
	colorPricePattern   = regexp.MustCompile(`\$([\d,]+\.?\d*)`)
)

const (
	// maxSpecRows はフォールバック形式の商品詳細として採用する最大件数。
	maxSpecRows = 5
	// maxAboutItems は"About This Item"として採用する最大件数。
	maxAboutItems = 10
	// minAboutItemLength は箇条書きとして採用する最小文字数。短すぎる項目はノイズとして除外する。
	minAboutItemLength = 20
)

// DetailExtractorService は商品詳細ページからの抽出インターフェースを定義する。
type DetailExtractorService interface {
	// Extract は詳細ページから抽出できたフィールドのみを持つ部分レコードを返す。
	// 検索結果ページ由来のレコードとの統合はMergeで行う。
	Extract(doc *goquery.Document) *model.ExtractedProduct
}

// detailExtractor はDetailExtractorServiceの実装。
type detailExtractor struct {
	logger *slog.Logger
}

// NewDetailExtractor はDetailExtractorServiceの新しいインスタンスを生成する。
func NewDetailExtractor(logger *slog.Logger) *detailExtractor {
	return &detailExtractor{logger: logger}
}

// Extract は詳細ページから抽出できたフィールドのみを持つ部分レコードを返す。
func (e *detailExtractor) Extract(doc *goquery.Document) *model.ExtractedProduct {
	if doc == nil {
		return nil
	}

	p := &model.ExtractedProduct{}

	p.CategoryPath = extractCategoryPath(doc)
	p.Name = firstSelectorText(doc, titleSelectors)
	p.Rating = extractDetailRating(doc)
	p.ReviewCountText = extractDetailReviewCount(doc)
	p.ReviewCount = parseReviewCount(p.ReviewCountText)
	p.BoughtInPastMonth = extractBoughtInPastMonth(doc)
	p.Price = extractDetailPrice(doc)
	p.ColorOptions = extractColorOptions(doc)
	p.SizeOptions = extractSizeOptions(doc)
	p.ProductDetails = extractProductDetails(doc)
	p.AboutThisItem = extractAboutThisItem(doc)
	p.ImageURL = extractDetailImage(doc)

	return p
}

// extractCategoryPath はパンくずリストからカテゴリパスを抽出する。
// "Home"に相当する項目は除外し、残りを " > " で連結する。
func extractCategoryPath(doc *goquery.Document) string {
	for _, selector := range breadcrumbSelectors {
		var crumbs []string
		doc.Find(selector).Each(func(_ int, link *goquery.Selection) {
			text := strings.TrimSpace(link.Text())
			if text != "" && strings.ToLower(text) != "home" {
				crumbs = append(crumbs, text)
			}
		})
		if len(crumbs) > 0 {
			return strings.Join(crumbs, " > ")
		}
	}
	return ""
}

// firstSelectorText はカスケード内で最初にヒットした要素のテキストを返す。
func firstSelectorText(doc *goquery.Document, selectors []string) string {
	for _, selector := range selectors {
		sel := doc.Find(selector).First()
		if sel.Length() > 0 {
			return strings.TrimSpace(sel.Text())
		}
	}
	return ""
}

// extractDetailRating は詳細ページの評価値を抽出する。
// "4.5 out of 5" 形式の表記から小数値を読み取る。
func extractDetailRating(doc *goquery.Document) float64 {
	for _, selector := range detailRatingSelectors {
		sel := doc.Find(selector).First()
		if sel.Length() == 0 {
			continue
		}
		text := strings.TrimSpace(sel.Text())
		if m := detailRatingPattern.FindStringSubmatch(text); m != nil {
			if rating, err := strconv.ParseFloat(m[1], 64); err == nil {
				return rating
			}
		}
		// 最初にヒットした要素で判定を打ち切る（数値が読めなくても次のセレクタへ進まない）
		return 0
	}
	return 0
}

// extractDetailReviewCount は詳細ページのレビュー数表記を抽出する。
// "2,317 ratings" のような表記から数値部分を取り出す。
func extractDetailReviewCount(doc *goquery.Document) string {
	for _, selector := range reviewCountSelectors {
		sel := doc.Find(selector).First()
		if sel.Length() == 0 {
			continue
		}
		text := strings.TrimSpace(sel.Text())
		if m := reviewDigitsPattern.FindStringSubmatch(text); m != nil {
			return m[1]
		}
		return ""
	}
	return ""
}

// extractBoughtInPastMonth はページ全文から購入実績表記を抽出する。
// "500+ bought in past month" のような表記の数量部分を返す。
func extractBoughtInPastMonth(doc *goquery.Document) string {
	if m := boughtPattern.FindStringSubmatch(doc.Text()); m != nil {
		return m[1]
	}
	return ""
}

// extractDetailPrice は詳細ページの現在価格を抽出する。
// 数値部分を読み取り "$" 付きの正規化表記で返す。
func extractDetailPrice(doc *goquery.Document) string {
	for _, selector := range detailPriceSelectors {
		sel := doc.Find(selector).First()
		if sel.Length() == 0 {
			continue
		}
		text := strings.TrimSpace(sel.Text())
		if m := detailPricePattern.FindStringSubmatch(text); m != nil && m[1] != "" {
			return "$" + m[1]
		}
	}
	return ""
}

// extractColorOptions はカラーバリエーションを抽出する。
// 各要素から名称（altまたはテキスト）と価格表記（あれば）を読み取る。
func extractColorOptions(doc *goquery.Document) []model.ColorOption {
	for _, selector := range colorSelectors {
		elements := doc.Find(selector)
		if elements.Length() == 0 {
			continue
		}
		var options []model.ColorOption
		elements.Each(func(_ int, el *goquery.Selection) {
			var option model.ColorOption
			nameEl := el.Find(`span, img[alt], .a-button-text`).First()
			if nameEl.Length() > 0 {
				if alt, ok := nameEl.Attr("alt"); ok && alt != "" {
					option.Name = alt
				} else {
					option.Name = strings.TrimSpace(nameEl.Text())
				}
			}
			if m := colorPricePattern.FindStringSubmatch(el.Text()); m != nil {
				option.Price = "$" + m[1]
			}
			if option.Name != "" || option.Price != "" {
				options = append(options, option)
			}
		})
		if len(options) > 0 {
			return options
		}
	}
	return nil
}

// sizePlaceholders はサイズ選択UIのプレースホルダー表記。選択肢としては採用しない。
var sizePlaceholders = map[string]bool{
	"select": true,
	"choose": true,
	"size":   true,
}

// extractSizeOptions はサイズバリエーションを抽出する。
func extractSizeOptions(doc *goquery.Document) []string {
	for _, selector := range sizeSelectors {
		elements := doc.Find(selector)
		if elements.Length() == 0 {
			continue
		}
		var sizes []string
		elements.Each(func(_ int, el *goquery.Selection) {
			text := strings.TrimSpace(el.Text())
			if text != "" && !sizePlaceholders[strings.ToLower(text)] {
				sizes = append(sizes, text)
			}
		})
		if len(sizes) > 0 {
			return sizes
		}
	}
	return nil
}

// extractProductDetails は商品詳細（スペック表）を抽出する。
// 第1戦略: 詳細テーブルのth/tdペア。第2戦略: 箇条書き・説明文の
// 先頭5件を " | " で連結し "description" キーに格納する。
func extractProductDetails(doc *goquery.Document) map[string]string {
	details := make(map[string]string)
	doc.Find(`#productDetails_detailBullets_sections1 tr, .prodDetTable tr`).Each(func(_ int, row *goquery.Selection) {
		key := strings.TrimSpace(row.Find("th").First().Text())
		value := strings.TrimSpace(row.Find("td").First().Text())
		if key != "" && value != "" {
			details[key] = value
		}
	})
	if len(details) > 0 {
		return details
	}

	var sections []string
	doc.Find(`#feature-bullets ul li span.a-list-item, #productDescription p`).EachWithBreak(func(i int, el *goquery.Selection) bool {
		if i >= maxSpecRows {
			return false
		}
		if text := strings.TrimSpace(el.Text()); text != "" {
			sections = append(sections, text)
		}
		return true
	})
	if len(sections) > 0 {
		details["description"] = strings.Join(sections, " | ")
		return details
	}
	return nil
}

// extractAboutThisItem は"About This Item"の箇条書きを抽出する。
// 20文字以下の項目はノイズとして除外し、最大10件まで採用する。
func extractAboutThisItem(doc *goquery.Document) []string {
	for _, selector := range aboutSelectors {
		section := doc.Find(selector).First()
		if section.Length() == 0 {
			continue
		}
		var items []string
		section.Find("li span, p").EachWithBreak(func(i int, el *goquery.Selection) bool {
			if i >= maxAboutItems {
				return false
			}
			if text := strings.TrimSpace(el.Text()); len(text) > minAboutItemLength {
				items = append(items, text)
			}
			return true
		})
		if len(items) > 0 {
			return items
		}
	}
	return nil
}

// extractDetailImage は高解像度の商品画像URLを抽出する。
func extractDetailImage(doc *goquery.Document) string {
	for _, selector := range detailImageSelectors {
		el := doc.Find(selector).First()
		if el.Length() == 0 {
			continue
		}
		src, ok := el.Attr("src")
		if !ok || src == "" {
			src, _ = el.Attr("data-src")
		}
		if src != "" {
			return src
		}
	}
	return ""
}
