package pdf

import (
	"encoding/binary"
	"fmt"
	"image"
	"os"

	"github.com/gen2brain/go-fitz"
)

// FitzDecoder は MuPDF (go-fitz) でJPEG2000をデコードします。
// MuPDF はJP2/J2Kコードストリームを1ページの画像ドキュメントとして開けます。
type FitzDecoder struct {
	// TempDir はコードストリームを一時的に書き出すディレクトリです。空ならOS既定です。
	TempDir string
}

// DecodeJPX は data をデコードします。
//
// 出力のピクセル幅はコードストリームのヘッダーにある幅、読めなければ宣言幅 width です。
// MuPDF のページ寸法は解像度ボックスに依存するので、DPI は幅から逆算します。
func (d FitzDecoder) DecodeJPX(data []byte, width int) (image.Image, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("JPEG2000のデータが空です")
	}
	if w, _, ok := jpxPixelSize(data); ok {
		width = w
	}

	tmp, err := os.CreateTemp(d.TempDir, "jpx-*.jp2")
	if err != nil {
		return nil, fmt.Errorf("一時ファイルの作成に失敗しました: %w", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return nil, fmt.Errorf("一時ファイルへの書き込みに失敗しました: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return nil, fmt.Errorf("一時ファイルのクローズに失敗しました: %w", err)
	}

	doc, err := fitz.New(tmpPath)
	if err != nil {
		return nil, fmt.Errorf("JPEG2000を開けませんでした: %w", err)
	}
	defer doc.Close()

	if doc.NumPage() < 1 {
		return nil, fmt.Errorf("JPEG2000にページがありません")
	}

	dpi := 72.0
	if width > 0 {
		if bound, err := doc.Bound(0); err == nil && bound.Dx() > 0 {
			dpi = 72.0 * float64(width) / float64(bound.Dx())
		}
	}

	// Bound は整数ポイントに丸められるので、幅が合うまで DPI を補正して描き直す
	var img image.Image
	for attempt := 0; attempt < maxRenderAttempts; attempt++ {
		rgba, err := doc.ImageDPI(0, dpi)
		if err != nil {
			return nil, fmt.Errorf("JPEG2000のラスタライズに失敗しました: %w", err)
		}
		img = rgba
		got := rgba.Bounds().Dx()
		if width <= 0 || got == width || got == 0 {
			break
		}
		dpi *= float64(width) / float64(got)
	}
	return img, nil
}

const maxRenderAttempts = 3

var (
	jp2Signature = []byte{0x00, 0x00, 0x00, 0x0c, 'j', 'P', ' ', ' ', 0x0d, 0x0a, 0x87, 0x0a}
	j2kSOCSIZ    = []byte{0xff, 0x4f, 0xff, 0x51}
)

// jpxPixelSize はJP2の ihdr ボックス、または生コードストリームの SIZ マーカーから画素寸法を読みます。
func jpxPixelSize(data []byte) (width, height int, ok bool) {
	switch {
	case len(data) >= len(j2kSOCSIZ) && string(data[:4]) == string(j2kSOCSIZ):
		// SOC, SIZ, Lsiz(2) Rsiz(2) Xsiz(4) Ysiz(4) XOsiz(4) YOsiz(4)
		if len(data) < 4+4+16 {
			return 0, 0, false
		}
		siz := data[8:]
		x, y := binary.BigEndian.Uint32(siz[0:]), binary.BigEndian.Uint32(siz[4:])
		xo, yo := binary.BigEndian.Uint32(siz[8:]), binary.BigEndian.Uint32(siz[12:])
		if x <= xo || y <= yo {
			return 0, 0, false
		}
		return int(x - xo), int(y - yo), true
	case len(data) >= len(jp2Signature) && string(data[:len(jp2Signature)]) == string(jp2Signature):
		return findIHDR(data[len(jp2Signature):])
	}
	return 0, 0, false
}

func findIHDR(b []byte) (int, int, bool) {
	for len(b) >= 8 {
		size := uint64(binary.BigEndian.Uint32(b))
		typ := string(b[4:8])
		header := uint64(8)
		switch size {
		case 0:
			size = uint64(len(b))
		case 1:
			if len(b) < 16 {
				return 0, 0, false
			}
			size, header = binary.BigEndian.Uint64(b[8:]), 16
		}
		if size < header || size > uint64(len(b)) {
			return 0, 0, false
		}
		body := b[header:size]
		switch typ {
		case "jp2h":
			return findIHDR(body)
		case "ihdr":
			if len(body) < 8 {
				return 0, 0, false
			}
			h, w := binary.BigEndian.Uint32(body[0:]), binary.BigEndian.Uint32(body[4:])
			if w == 0 || h == 0 {
				return 0, 0, false
			}
			return int(w), int(h), true
		}
		b = b[size:]
	}
	return 0, 0, false
}
