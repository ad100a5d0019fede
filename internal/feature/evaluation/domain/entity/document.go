package entity

// Document はユーザーが選択した評価対象のファイルです。
type Document struct {
	Name        string // 元のファイル名
	ContentType string // 申告されたContent-Type（空の場合あり）
	MIMEType    string // 検証時に判定したMIMEタイプ
	Data        []byte
}

// Size はファイルサイズ（バイト）を返します。
func (d Document) Size() int64 {
	return int64(len(d.Data))
}
