package exam

// DefaultTitle はエディタを開いた直後の試験タイトルです。
const DefaultTitle = "Sample Exam"

// Exam は試験1件分の状態です。Questions の順序がそのまま表示・出力順になります。
type Exam struct {
	Title     string
	Questions []Question

	nextID int64
}

// New は空の Exam を作成します。
func New() Exam {
	return Exam{Title: DefaultTitle, Questions: []Question{}, nextID: 1}
}

// AddQuestion は種別ごとの初期値で設問を作り、末尾に追加します。
func (e Exam) AddQuestion(kind Kind) (Exam, Question, error) {
	body, err := defaultBody(kind)
	if err != nil {
		return e, Question{}, err
	}

	next := e.clone()
	if next.nextID < 1 {
		next.nextID = 1
	}
	for _, q := range next.Questions {
		if q.ID >= next.nextID {
			next.nextID = q.ID + 1
		}
	}
	q := Question{
		ID:     next.nextID,
		Points: 1,
		Body:   body,
	}
	next.nextID++
	next.Questions = append(next.Questions, q)
	return next, q, nil
}

// UpdateQuestion は id が一致する設問を同じ位置で置き換えます。
// 該当がなければ何もしません。ID と種別は変更できず、種別が異なる置き換えは無視します。
// 配点が1未満なら直前の値を残します。
func (e Exam) UpdateQuestion(id int64, q Question) Exam {
	idx := e.indexOf(id)
	if idx < 0 {
		return e
	}
	current := e.Questions[idx]
	if q.Kind() != current.Kind() {
		return e
	}
	q.ID = current.ID
	if q.Points < 1 {
		q.Points = current.Points
	}

	next := e.clone()
	next.Questions[idx] = q
	return next
}

// DeleteQuestion は id が一致する最初の設問を取り除きます。該当がなければ何もしません。
func (e Exam) DeleteQuestion(id int64) Exam {
	idx := e.indexOf(id)
	if idx < 0 {
		return e
	}
	next := e.clone()
	next.Questions = append(next.Questions[:idx], next.Questions[idx+1:]...)
	return next
}

// SetTitle はタイトルを置き換えます。空文字も受け付けます。
func (e Exam) SetTitle(title string) Exam {
	next := e.clone()
	next.Title = title
	return next
}

// Question は id の設問を返します。
func (e Exam) Question(id int64) (Question, bool) {
	idx := e.indexOf(id)
	if idx < 0 {
		return Question{}, false
	}
	return e.Questions[idx], true
}

// TotalPoints は全設問の配点合計です。
func (e Exam) TotalPoints() int {
	total := 0
	for _, q := range e.Questions {
		total += q.Points
	}
	return total
}

func (e Exam) indexOf(id int64) int {
	for i, q := range e.Questions {
		if q.ID == id {
			return i
		}
	}
	return -1
}

// clone は Questions を別の配列にコピーします。Body は値型なので浅いコピーで足ります。
func (e Exam) clone() Exam {
	next := e
	next.Questions = make([]Question, len(e.Questions))
	copy(next.Questions, e.Questions)
	return next
}
