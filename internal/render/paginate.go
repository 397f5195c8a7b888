package render

import "math"

// PageSlice はキャンバスを縦に切り出した1ページ分の範囲です。
type PageSlice struct {
	Index  int     `json:"index"`
	Offset float64 `json:"offset"`
	Height float64 `json:"height"`
}

// 浮動小数点の誤差で1ページ余分に増えないようにするための許容幅
const pageEpsilon = 1e-6

// PageCountFor は高さ total の内容に必要なページ数です。内容が空でも1ページを返します。
func PageCountFor(total, pageHeight float64) int {
	if pageHeight <= 0 || total <= 0 {
		return 1
	}
	n := int(math.Ceil(total/pageHeight - pageEpsilon))
	if n < 1 {
		return 1
	}
	return n
}

// Paginate は高さ total の内容を pageHeight ごとに区切ります。
// i ページ目は Offset = i*pageHeight から始まり、最後のページは残りの高さだけを持ちます。
func Paginate(total, pageHeight float64) []PageSlice {
	n := PageCountFor(total, pageHeight)
	pages := make([]PageSlice, n)
	for i := range pages {
		offset := float64(i) * pageHeight
		height := math.Max(0, math.Min(pageHeight, total-offset))
		pages[i] = PageSlice{Index: i, Offset: offset, Height: height}
	}
	return pages
}
