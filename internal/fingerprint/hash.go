// Package fingerprint は商品レコードのコンテンツフィンガープリントを計算する。
// 固定順のコアフィールドタプルからSHA-256ダイジェストを生成し、
// 外部公開用の不透明な商品IDもこのダイジェストから導出する。
package fingerprint

import (
	"crypto/sha256"
	"fmt"
	"strconv"

	"github.com/hitoshi/prodscout/internal/model"
)

// productIDPrefix は外部公開用商品IDのプレフィックス。
const productIDPrefix = "prod-"

// productIDHashLen は商品IDに使用するダイジェストの先頭文字数。
const productIDHashLen = 12

// fieldSeparator は各フィールドの直後に付加する区切りバイト。
// 隣接する空フィールドと形の異なるタプルを区別可能にする。
const fieldSeparator = 0x1f

// Hash はコアフィールドの固定順タプルからSHA-256ダイジェストを計算する。
// 各要素は文字列形式に強制され（欠損は空文字列）、要素ごとに区切りバイトを
// 付加したバイト列をハッシュする。同一タプルは常に同一のダイジェストを返す。
func Hash(p *model.ExtractedProduct, sourceURL string) string {
	values := coreTuple(p, sourceURL)

	h := sha256.New()
	for _, v := range values {
		h.Write([]byte(v))
		h.Write([]byte{fieldSeparator})
	}
	return fmt.Sprintf("%x", h.Sum(nil))
}

// ProductID はコンテンツハッシュから外部公開用の不透明な商品IDを導出する。
// ダイジェストの先頭12文字に "prod-" を付加した形式。
func ProductID(contentHash string) string {
	if len(contentHash) < productIDHashLen {
		return productIDPrefix + contentHash
	}
	return productIDPrefix + contentHash[:productIDHashLen]
}

// coreTuple はハッシュ対象のコアフィールドを固定順で返す。
// 順序: name, price, rating（文字列化）, reviewCountText, imageUrl,
// productUrl, description, sourceUrl。
func coreTuple(p *model.ExtractedProduct, sourceURL string) []string {
	return []string{
		p.Name,
		p.Price,
		ratingString(p.Rating),
		p.ReviewCountText,
		p.ImageURL,
		p.ProductURL,
		p.Description,
		sourceURL,
	}
}

// ratingString は評価値を文字列化する。未設定（0）は空文字列になる。
func ratingString(rating float64) string {
	if rating == 0 {
		return ""
	}
	return strconv.FormatFloat(rating, 'f', -1, 64)
}
