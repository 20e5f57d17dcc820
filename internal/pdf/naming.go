package pdf

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"strings"
)

// Role は抽出順で決まる画像の役割です。
//
// 1枚目を本人写真、2枚目を署名とみなすのは業務上の取り決めであり、
// 画像の内容からは判定しません。
type Role string

const (
	RoleUser  Role = "user-image"
	RoleSign  Role = "sign-image"
	RoleExtra Role = "extra-image"
)

// レスポンスの images オブジェクトのキー。
const (
	imagesKeyUser  = "user-image"
	imagesKeySign  = "sign-image"
	imagesKeyExtra = "extra-images"
)

// RandomDigits はファイル名に使う乱数桁数です。
const RandomDigits = 30

// RoleForPosition は0始まりの位置から役割を返します。
func RoleForPosition(position int) Role {
	switch position {
	case 0:
		return RoleUser
	case 1:
		return RoleSign
	default:
		return RoleExtra
	}
}

// filenamePrefix は役割ごとのファイル名接頭辞です。
func (r Role) filenamePrefix() string {
	switch r {
	case RoleUser:
		return "user-img-"
	case RoleSign:
		return "sign-img-"
	default:
		return ""
	}
}

// NameGenerator はファイル名用の数字列を生成します。
type NameGenerator interface {
	Digits(n int) (string, error)
}

// DigitNameGenerator は crypto/rand による10進数字列を生成します。
type DigitNameGenerator struct{}

var ten = big.NewInt(10)

// Digits は長さ n の10進数字列を返します。先頭の0も保持します。
func (DigitNameGenerator) Digits(n int) (string, error) {
	var b strings.Builder
	b.Grow(n)
	for i := 0; i < n; i++ {
		d, err := rand.Int(rand.Reader, ten)
		if err != nil {
			return "", fmt.Errorf("乱数の生成に失敗しました: %w", err)
		}
		b.WriteByte(byte('0' + d.Int64()))
	}
	return b.String(), nil
}

// outputFilename は位置・乱数・拡張子から出力ファイル名を組み立てます。ext はドット付きです。
func outputFilename(position int, digits, ext string) string {
	return RoleForPosition(position).filenamePrefix() + digits + ext
}

// RoleMap は抽出順のURL一覧からレスポンスの images オブジェクトを組み立てます。
// 空なら nil を返します。
func RoleMap(urls []string) map[string]any {
	if len(urls) == 0 {
		return nil
	}
	images := map[string]any{
		imagesKeyUser: urls[0],
	}
	if len(urls) >= 2 {
		images[imagesKeySign] = urls[1]
	}
	if len(urls) > 2 {
		images[imagesKeyExtra] = append([]string(nil), urls[2:]...)
	}
	return images
}
