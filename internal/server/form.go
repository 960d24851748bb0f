package server

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// ErrMalformedForm はフォームのフィールドが解釈できない場合のエラー
var ErrMalformedForm = errors.New("不正なフォームフィールド")

// フォームのフィールド名
const (
	fieldUsername = "username"
	fieldMessage  = "message"
)

// submission はフォームから取り出した投稿内容
// フィールドが無い場合は nil
type submission struct {
	Username *string
	Message  *string
}

// parseSubmission は application/x-www-form-urlencoded の本文を解析する
//
// "=" を含まないフィールドやパーセントエンコードが壊れているフィールドは捨て、
// 捨てたフィールドを ErrMalformedForm を含むエラーとして返す。
// エラーが返っても submission には正しく読めたフィールドが入っている。
// 同じフィールドが複数ある場合は最初の値を使う。
func parseSubmission(body string) (submission, error) {
	values := url.Values{}
	var errs []error

	for _, field := range strings.Split(body, "&") {
		if field == "" {
			continue
		}

		key, value, ok := strings.Cut(field, "=")
		if !ok {
			errs = append(errs, fmt.Errorf("%w: %q に \"=\" がありません", ErrMalformedForm, field))
			continue
		}

		k, err := url.QueryUnescape(key)
		if err != nil {
			errs = append(errs, fmt.Errorf("%w: %q: %w", ErrMalformedForm, field, err))
			continue
		}
		v, err := url.QueryUnescape(value)
		if err != nil {
			errs = append(errs, fmt.Errorf("%w: %q: %w", ErrMalformedForm, field, err))
			continue
		}

		values.Add(k, v)
	}

	var sub submission
	if values.Has(fieldUsername) {
		v := values.Get(fieldUsername)
		sub.Username = &v
	}
	if values.Has(fieldMessage) {
		v := values.Get(fieldMessage)
		sub.Message = &v
	}

	return sub, errors.Join(errs...)
}
