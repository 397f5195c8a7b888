package render

import (
	"bytes"
	"fmt"

	"github.com/gabriel-vasile/mimetype"
	pdfapi "github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
)

// MimeType は出力ファイルの Content-Type です。
const MimeType = "application/pdf"

func init() {
	// pdfcpu がユーザー設定ディレクトリを作らないようにする
	model.ConfigPath = "disable"
}

func verifyConfig() *model.Configuration {
	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed
	return conf
}

// Verify は生成した PDF を検証し、ページ数が want と一致するか確認します。
func Verify(data []byte, want int) error {
	if mt := mimetype.Detect(data); !mt.Is(MimeType) {
		return newError("出力がPDFではありません", fmt.Errorf("detected %s", mt.String()))
	}
	if err := pdfapi.Validate(bytes.NewReader(data), verifyConfig()); err != nil {
		return newError("PDFの検証に失敗しました", err)
	}
	got, err := pdfapi.PageCount(bytes.NewReader(data), verifyConfig())
	if err != nil {
		return newError("ページ数を取得できませんでした", err)
	}
	if got != want {
		return newError("ページ数が一致しません", fmt.Errorf("got %d pages, want %d", got, want))
	}
	return nil
}

// Render は Layout を PDF に書き出し、検証まで行います。
func Render(l *Layout) ([]byte, error) {
	data, err := Encode(l)
	if err != nil {
		return nil, err
	}
	if err := Verify(data, l.PageCount()); err != nil {
		return nil, err
	}
	return data, nil
}
