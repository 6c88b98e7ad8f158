// Package extractor は検索結果ページと商品詳細ページからの
// 商品フィールド抽出を提供する。各フィールドは固定順の抽出戦略
// カスケードで評価され、最初に成功した戦略の値を採用する。
// 抽出の失敗はエラーではなく、フィールドのゼロ値として表現される。
package extractor

import (
	"log/slog"
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"

	"github.com/hitoshi/prodscout/internal/model"
)

// containerSelectors は検索結果ページから商品コンテナを特定するセレクタ。
// 優先順に評価し、最初にヒットしたセレクタの結果だけを採用する。
var containerSelectors = []string{
	`[data-component-type="s-search-result"]`,
	`.s-result-item`,
	`[data-asin]`,
}

var (
	pricePattern         = regexp.MustCompile(`\$[\d,]+\.?\d*`)
	listingRatingPattern = regexp.MustCompile(`(\d+\.\d+)`)
	reviewParenPattern   = regexp.MustCompile(`\(\d+\)`)
	productLinkPattern   = regexp.MustCompile(`/dp/|/gp/product/`)
	digitsPattern        = regexp.MustCompile(`[\d,]+`)
)

// minNameLength はフォールバック戦略で商品名として採用する最小文字数。
const minNameLength = 10

// ListingExtractorService は検索結果ページからの商品抽出インターフェースを定義する。
type ListingExtractorService interface {
	// Extract は検索結果ページから商品候補を抽出する。
	// 商品名が特定できなかったアイテムは結果から除外される。
	Extract(doc *goquery.Document) []*model.ExtractedProduct
}

// listingExtractor はListingExtractorServiceの実装。
type listingExtractor struct {
	logger   *slog.Logger
	baseURL  string
	maxItems int
}

// NewListingExtractor はListingExtractorServiceの新しいインスタンスを生成する。
// baseURLは相対リンクの解決に、maxItemsは1ページあたりの処理上限に使用する。
func NewListingExtractor(logger *slog.Logger, baseURL string, maxItems int) *listingExtractor {
	return &listingExtractor{
		logger:   logger,
		baseURL:  strings.TrimSuffix(baseURL, "/"),
		maxItems: maxItems,
	}
}

// Extract は検索結果ページから商品候補を抽出する。
// コンテナセレクタを優先順に試し、ヒットしたコンテナの先頭maxItems件を処理する。
func (e *listingExtractor) Extract(doc *goquery.Document) []*model.ExtractedProduct {
	if doc == nil {
		return nil
	}

	var containers *goquery.Selection
	for _, selector := range containerSelectors {
		sel := doc.Find(selector)
		if sel.Length() > 0 {
			containers = sel
			break
		}
	}
	if containers == nil {
		e.logger.Warn("商品コンテナが見つかりませんでした")
		return nil
	}

	e.logger.Info("商品コンテナを検出しました", slog.Int("container_count", containers.Length()))

	products := make([]*model.ExtractedProduct, 0, e.maxItems)
	containers.EachWithBreak(func(i int, item *goquery.Selection) bool {
		if i >= e.maxItems {
			return false
		}
		if p := e.extractItem(item); p != nil {
			products = append(products, p)
		}
		return true
	})

	return products
}

// extractItem は単一の商品コンテナから各フィールドを抽出する。
// 商品名が特定できない場合はnilを返す。
func (e *listingExtractor) extractItem(item *goquery.Selection) *model.ExtractedProduct {
	name := extractName(item)
	if name == "" {
		return nil
	}

	p := &model.ExtractedProduct{
		Name:     name,
		Platform: model.PlatformAmazon,
	}

	p.Price = extractListingPrice(item)
	p.Rating = extractListingRating(item)
	p.ReviewCountText = extractReviewCountText(item)
	p.ReviewCount = parseReviewCount(p.ReviewCountText)
	p.ImageURL = extractListingImage(item)
	p.ProductURL = e.extractProductURL(item)
	p.Description = BuildDescription(name, ExtractFeatures(name))

	return p
}

// extractName は商品名を抽出する。
// 第1戦略: h2配下のリンク内span。第2戦略: h2/h3テキストのうち
// 10文字を超え"Featured"を含まない最初のもの。
func extractName(item *goquery.Selection) string {
	if name := strings.TrimSpace(item.Find("h2 a span").First().Text()); name != "" {
		return name
	}

	var name string
	item.Find("h2, h3").EachWithBreak(func(_ int, heading *goquery.Selection) bool {
		text := strings.TrimSpace(heading.Text())
		if utf8.RuneCountInString(text) > minNameLength && !strings.Contains(text, "Featured") {
			name = text
			return false
		}
		return true
	})
	return name
}

// extractListingPrice は価格表記を抽出する。
// 第1戦略: "$"と数字を含む最初のspanのテキスト。
// 第2戦略: コンテナ全文に対する価格パターンのマッチ。
func extractListingPrice(item *goquery.Selection) string {
	var price string
	item.Find("span").EachWithBreak(func(_ int, span *goquery.Selection) bool {
		text := strings.TrimSpace(span.Text())
		if strings.Contains(text, "$") && strings.ContainsAny(text, "0123456789") {
			price = text
			return false
		}
		return true
	})
	if price != "" {
		return price
	}
	return pricePattern.FindString(item.Text())
}

// extractListingRating は5点満点の評価値を抽出する。
// "out of 5 stars"を含むspanから小数値を読み取る。見つからなければ0を返す。
func extractListingRating(item *goquery.Selection) float64 {
	var rating float64
	item.Find("span").EachWithBreak(func(_ int, span *goquery.Selection) bool {
		text := strings.TrimSpace(span.Text())
		if !strings.Contains(text, "out of 5 stars") {
			return true
		}
		if m := listingRatingPattern.FindStringSubmatch(text); m != nil {
			if parsed, err := strconv.ParseFloat(m[1], 64); err == nil {
				rating = parsed
				return false
			}
		}
		return true
	})
	return rating
}

// extractReviewCountText はレビュー数の原文表記を抽出する。
// 括弧付き数字（例 "(1,234)"）を含む最初のspanのテキストを採用する。
func extractReviewCountText(item *goquery.Selection) string {
	var text string
	item.Find("span").EachWithBreak(func(_ int, span *goquery.Selection) bool {
		t := strings.TrimSpace(span.Text())
		if reviewParenPattern.MatchString(t) {
			text = t
			return false
		}
		return true
	})
	return text
}

// parseReviewCount はレビュー数表記から整数値を取り出す。
// カンマは除去する。数値が読み取れない場合は0を返す。
func parseReviewCount(text string) int {
	m := digitsPattern.FindString(text)
	if m == "" {
		return 0
	}
	n, err := strconv.Atoi(strings.ReplaceAll(m, ",", ""))
	if err != nil {
		return 0
	}
	return n
}

// extractListingImage は商品画像URLを抽出する。
// 最初のimg要素のsrc属性（なければdata-src属性）のうち、
// ソースサイトのCDNを指すものだけを採用する。
func extractListingImage(item *goquery.Selection) string {
	img := item.Find("img").First()
	src, ok := img.Attr("src")
	if !ok || src == "" {
		src, _ = img.Attr("data-src")
	}
	if strings.Contains(src, "amazon") {
		return src
	}
	return ""
}

// extractProductURL は商品詳細ページのURLを抽出する。
// 商品詳細パス（/dp/ または /gp/product/）を含む最初のリンクを採用し、
// 相対パスはベースURLに対して解決する。
func (e *listingExtractor) extractProductURL(item *goquery.Selection) string {
	var productURL string
	item.Find("a[href]").EachWithBreak(func(_ int, link *goquery.Selection) bool {
		href, _ := link.Attr("href")
		if !productLinkPattern.MatchString(href) {
			return true
		}
		if strings.HasPrefix(href, "/") {
			productURL = e.baseURL + href
		} else {
			productURL = href
		}
		return false
	})
	return productURL
}
