package render

import "fmt"

// Future は別の goroutine で進む PDF 生成の結果です。取り消しはできません。
type Future struct {
	done chan struct{}
	data []byte
	err  error
}

// EncodeAsync は Render をバックグラウンドで実行します。呼び出し側はすぐに戻ります。
// l は呼び出し後に変更しないでください。
func EncodeAsync(l *Layout) *Future {
	return Go(func() ([]byte, error) {
		return Render(l)
	})
}

// Go は fn をバックグラウンドで実行し、その結果を Future として返します。
// fn が panic した場合は RENDER_FAILED のエラーとして返します。
func Go(fn func() ([]byte, error)) *Future {
	f := &Future{done: make(chan struct{})}
	go func() {
		defer close(f.done)
		defer func() {
			if r := recover(); r != nil {
				f.data = nil
				f.err = newError("PDFの生成中に異常が発生しました", fmt.Errorf("%v", r))
			}
		}()
		f.data, f.err = fn()
	}()
	return f
}

// Done は生成が終わると閉じられるチャネルを返します。
func (f *Future) Done() <-chan struct{} {
	return f.done
}

// Wait は生成の完了を待って結果を返します。
func (f *Future) Wait() ([]byte, error) {
	<-f.done
	return f.data, f.err
}
