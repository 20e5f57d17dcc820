package pdf

import (
	"bytes"
	"encoding/hex"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"strings"

	"golang.org/x/crypto/blake2b"
	xdraw "golang.org/x/image/draw"
)

// Fingerprint は画像ペイロードの内容ハッシュ（BLAKE2b-256）です。重複判定のキーになります。
type Fingerprint [blake2b.Size256]byte

func fingerprintOf(data []byte) Fingerprint {
	return blake2b.Sum256(data)
}

func (f Fingerprint) String() string {
	return hex.EncodeToString(f[:])
}

// JPXDecoder はJPEG2000ペイロードをデコードします。
// width はPDF側で宣言された画像の幅（ピクセル）で、0なら不明です。
type JPXDecoder interface {
	DecodeJPX(data []byte, width int) (image.Image, error)
}

// JPXDecoderFunc は関数を JPXDecoder として扱うためのアダプタです。
type JPXDecoderFunc func(data []byte, width int) (image.Image, error)

func (f JPXDecoderFunc) DecodeJPX(data []byte, width int) (image.Image, error) {
	return f(data, width)
}

const normalizedExt = ".png"

// isJPXExt はJPEG2000系の拡張子かどうかを返します。ext は小文字・ドット付きです。
func isJPXExt(ext string) bool {
	return ext == ".jp2" || ext == ".jpx"
}

// normalizeJPX はJPEG2000ペイロードをPNGへ変換します。
// 失敗した場合は ErrDecode をラップしたエラーを返し、元のバイト列は返しません。
func normalizeJPX(dec JPXDecoder, data []byte, width int) ([]byte, error) {
	if dec == nil {
		return nil, fmt.Errorf("%w: no JPEG2000 decoder configured", ErrDecode)
	}
	img, err := dec.DecodeJPX(data, width)
	if err != nil {
		return nil, fmt.Errorf("%w: decode: %w", ErrDecode, err)
	}
	if img == nil || img.Bounds().Empty() {
		return nil, fmt.Errorf("%w: decoded image is empty", ErrDecode)
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, toRGB(img)); err != nil {
		return nil, fmt.Errorf("%w: encode: %w", ErrDecode, err)
	}
	return buf.Bytes(), nil
}

// toRGB はパレット画像・アルファ付き画像を不透明なRGB画像へ変換します。
// アルファは合成せずに捨てます。それ以外の画像はそのまま返します。
func toRGB(src image.Image) image.Image {
	if !needsRGBConversion(src) {
		return src
	}
	b := src.Bounds()
	dst := image.NewNRGBA(b)
	switch s := src.(type) {
	case *image.NRGBA:
		for y := b.Min.Y; y < b.Max.Y; y++ {
			copy(dst.Pix[dst.PixOffset(b.Min.X, y):dst.PixOffset(b.Max.X, y)], s.Pix[s.PixOffset(b.Min.X, y):s.PixOffset(b.Max.X, y)])
		}
	case *image.Paletted:
		palette := make([]color.NRGBA, len(s.Palette))
		for i, c := range s.Palette {
			palette[i] = color.NRGBAModel.Convert(c).(color.NRGBA)
		}
		for y := b.Min.Y; y < b.Max.Y; y++ {
			for x := b.Min.X; x < b.Max.X; x++ {
				idx := int(s.ColorIndexAt(x, y))
				if idx < len(palette) {
					dst.SetNRGBA(x, y, palette[idx])
				}
			}
		}
	default:
		xdraw.Draw(dst, b, src, b.Min, xdraw.Src)
	}
	for i := 3; i < len(dst.Pix); i += 4 {
		dst.Pix[i] = 0xff
	}
	return dst
}

func needsRGBConversion(img image.Image) bool {
	switch img.(type) {
	case *image.Paletted, *image.RGBA, *image.NRGBA, *image.RGBA64, *image.NRGBA64:
		return true
	default:
		return false
	}
}

// extOf は宣言名の拡張子を小文字・ドット付きで返します。拡張子がなければ空文字です。
func extOf(name string) string {
	idx := strings.LastIndexByte(name, '.')
	if idx <= 0 || idx == len(name)-1 {
		return ""
	}
	return strings.ToLower(name[idx:])
}
