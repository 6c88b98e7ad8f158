package extractor

import (
	"regexp"
	"strings"
)

// 商品名から特徴を推定するための正規表現。評価順は サイズ → カラー → 素材 で固定。
var (
	sizePattern     = regexp.MustCompile(`(XS|S|M|L|XL|XXL|XXXL|\d+\.?\d*[xX]\d+\.?\d*)`)
	colorPattern    = regexp.MustCompile(`(?i)(Black|White|Red|Blue|Green|Yellow|Pink|Purple|Orange|Brown|Gray|Grey|Navy|Beige|Cream)`)
	materialPattern = regexp.MustCompile(`(?i)(Cotton|Polyester|Wool|Silk|Leather|Denim|Linen|Rayon|Spandex|Nylon)`)
)

// maxDescriptionNameLength は特徴が見つからない場合に説明文へ転用する商品名の最大長。
const maxDescriptionNameLength = 100

// Features は商品名からヒューリスティックに推定した属性を表す。
// 検出できなかった属性は空文字列のまま残る。
type Features struct {
	Size     string
	Color    string
	Material string
}

// ExtractFeatures は商品名からサイズ・カラー・素材を推定する。
// 各属性は最初にマッチした部分文字列を採用する。
func ExtractFeatures(productName string) Features {
	var f Features
	if m := sizePattern.FindStringSubmatch(productName); m != nil {
		f.Size = m[1]
	}
	if m := colorPattern.FindStringSubmatch(productName); m != nil {
		f.Color = m[1]
	}
	if m := materialPattern.FindStringSubmatch(productName); m != nil {
		f.Material = m[1]
	}
	return f
}

// BuildDescription は推定した特徴から説明文を合成する。
// 特徴が1つも検出できなかった場合は商品名の先頭100文字（超過時は"..."付き）を返す。
// 切り詰めはルーン単位で行い、マルチバイト文字の途中で切らない。
func BuildDescription(productName string, features Features) string {
	parts := make([]string, 0, 3)
	if features.Size != "" {
		parts = append(parts, "Size: "+features.Size)
	}
	if features.Color != "" {
		parts = append(parts, "Color: "+features.Color)
	}
	if features.Material != "" {
		parts = append(parts, "Material: "+features.Material)
	}

	if len(parts) > 0 {
		return strings.Join(parts, " | ")
	}
	if runes := []rune(productName); len(runes) > maxDescriptionNameLength {
		return string(runes[:maxDescriptionNameLength]) + "..."
	}
	return productName
}
