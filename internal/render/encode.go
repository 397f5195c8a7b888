package render

import (
	"bytes"
	"fmt"

	"github.com/go-pdf/fpdf"
)

const (
	fontFamily = "Helvetica"
	// px (96dpi) から pt への換算
	pxToPt       = 0.75
	markerRadius = 6.0
	markerGap    = 14.0
	creator      = "exam-forge"
)

// Encode は Layout を A4 の PDF に書き出します。キャンバスはページ幅に合わせて縮尺し、
// Pages の範囲ごとに1ページを出力します。途中で失敗した場合は部分的な出力を返しません。
func Encode(l *Layout) (data []byte, err error) {
	defer func() {
		if r := recover(); r != nil {
			data = nil
			err = newError("PDFの生成中に異常が発生しました", fmt.Errorf("%v", r))
		}
	}()

	if l == nil || len(l.Pages) == 0 {
		return nil, newError("出力するページがありません", nil)
	}

	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(0, 0, 0)
	pdf.SetAutoPageBreak(false, 0)
	pdf.SetCreator(creator, true)
	pdf.SetTitle(l.Title, true)
	pdf.SetCreationDate(l.GeneratedAt)
	pdf.SetModificationDate(l.GeneratedAt)
	pdf.SetCatalogSort(true)

	tr := pdf.UnicodeTranslatorFromDescriptor("")
	pageWidth, _ := pdf.GetPageSize()
	width := l.Width
	if width <= 0 {
		width = CanvasWidth
	}
	scale := pageWidth / width

	for _, page := range l.Pages {
		pdf.AddPage()
		if page.Height <= 0 {
			continue
		}
		pdf.ClipRect(0, 0, pageWidth, page.Height*scale, false)
		for _, line := range l.Lines {
			if line.Y+line.Height <= page.Offset || line.Y >= page.Offset+page.Height {
				continue
			}
			drawLine(pdf, tr, line, page.Offset, pageWidth, scale)
		}
		pdf.ClipEnd()
	}

	if err := pdf.Error(); err != nil {
		return nil, newError("PDFの生成に失敗しました", err)
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, newError("PDFの書き出しに失敗しました", err)
	}
	return buf.Bytes(), nil
}

func drawLine(pdf *fpdf.Fpdf, tr func(string) string, line Line, offset, pageWidth, scale float64) {
	spec, ok := styles[line.Style]
	if !ok {
		spec = styles[StyleMeta]
	}
	fontStyle := ""
	if spec.bold {
		fontStyle = "B"
	}
	pdf.SetFont(fontFamily, fontStyle, spec.fontSize*pxToPt)

	top := line.Y - offset
	baseline := (top + line.Height/2 + spec.fontSize*0.35) * scale
	text := tr(line.Text)

	x := line.X * scale
	if line.Centered {
		x = (pageWidth - pdf.GetStringWidth(text)) / 2
	}

	if line.Choice {
		// 白抜きの円（マーク欄）
		pdf.SetLineWidth(0.3)
		pdf.SetDrawColor(0, 0, 0)
		pdf.Circle((line.X-markerGap)*scale, (top+line.Height/2)*scale, markerRadius*scale, "D")
	}
	pdf.SetTextColor(0, 0, 0)
	pdf.Text(x, baseline, text)
}
