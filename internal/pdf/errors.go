package pdf

import (
	"errors"
	"fmt"
)

// 抽出処理の各段階で発生するエラーです。
// HTTP 境界ではこれらは握りつぶされ、「画像なし」または「画像が減る」として扱われます。
var (
	// ErrParse はPDFの読み込み・検証に失敗したことを表します。
	ErrParse = errors.New("pdf: failed to parse document")
	// ErrPage はページ内の画像列挙に失敗したことを表します。以降のページは処理されません。
	ErrPage = errors.New("pdf: failed to enumerate page images")
	// ErrDecode はJPEG2000画像のデコード・変換・再エンコードに失敗したことを表します。
	ErrDecode = errors.New("pdf: failed to normalize image")
	// ErrWrite は抽出画像の書き込みに失敗したことを表します。
	ErrWrite = errors.New("pdf: failed to write image")
)

// エラーコード（クライアント入力エラー）。
const (
	CodeNoFilePart      = "NO_FILE_PART"
	CodeNoSelectedFile  = "NO_SELECTED_FILE"
	CodeInvalidFileType = "INVALID_FILE_TYPE"
	CodeLimitExceeded   = "LIMIT_EXCEEDED"
)

// Error はクライアントへ返すエラーを表します。Message はそのままレスポンスに載ります。
type Error struct {
	Code    string
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func newError(code, message string, err error) *Error {
	return &Error{Code: code, Message: message, Err: err}
}

var (
	errNoFilePart      = newError(CodeNoFilePart, "No file part", nil)
	errNoSelectedFile  = newError(CodeNoSelectedFile, "No selected file", nil)
	errInvalidFileType = newError(CodeInvalidFileType, "Invalid file type", nil)
	errFileTooLarge    = newError(CodeLimitExceeded, "File size exceeds 2 MB limit", nil)
)
