package pdf

import (
	"bytes"
	"compress/zlib"
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
)

// testImage はテスト用PDFに埋め込む画像XObjectです。
type testImage struct {
	filter string // DCTDecode or JPXDecode
	data   []byte
	width  int
	height int
}

type testPage struct {
	images []testImage
	// draw は描画する images の添字を描画順に並べたものです。nil なら全画像を順に描画します。
	draw []int
	// reverseObjects が true なら、後ろの画像ほど小さいオブジェクト番号になります。
	reverseObjects bool
	thumb          *testImage
}

func jpegImage(t *testing.T, c color.Color) testImage {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 8, 8))
	for y := 0; y < 8; y++ {
		for x := 0; x < 8; x++ {
			img.Set(x, y, c)
		}
	}
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: 90}); err != nil {
		t.Fatalf("failed to encode jpeg: %v", err)
	}
	return testImage{filter: "DCTDecode", data: buf.Bytes(), width: 8, height: 8}
}

// jpxImage は JPXDecode として埋め込むペイロードです（テストではPNGをJPEG2000の代わりに使う）。
func jpxImage(t *testing.T, img image.Image) testImage {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("failed to encode png: %v", err)
	}
	b := img.Bounds()
	return testImage{filter: "JPXDecode", data: buf.Bytes(), width: b.Dx(), height: b.Dy()}
}

// flateImage は FlateDecode の DeviceRGB 画像です（pdfcpu はPNGとして書き出す）。
func flateImage(t *testing.T, c color.RGBA, w, h int) testImage {
	t.Helper()
	raw := make([]byte, 0, w*h*3)
	for i := 0; i < w*h; i++ {
		raw = append(raw, c.R, c.G, c.B)
	}
	var buf bytes.Buffer
	zw := zlib.NewWriter(&buf)
	if _, err := zw.Write(raw); err != nil {
		t.Fatalf("failed to compress image: %v", err)
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("failed to compress image: %v", err)
	}
	return testImage{filter: "FlateDecode", data: buf.Bytes(), width: w, height: h}
}

func rawJPX(data []byte, w, h int) testImage {
	return testImage{filter: "JPXDecode", data: data, width: w, height: h}
}

// buildPDF は画像XObjectを持つ最小限のPDFを組み立てます。
func buildPDF(t *testing.T, pages ...testPage) []byte {
	t.Helper()

	type object struct {
		body   string
		stream []byte
	}
	objects := []object{{}, {}} // 1: Catalog, 2: Pages（後で埋める）

	add := func(o object) int {
		objects = append(objects, o)
		return len(objects)
	}

	pageRefs := make([]string, 0, len(pages))
	for _, p := range pages {
		var resources, content strings.Builder
		imageRefs := make([]int, len(p.images))
		for k := range p.images {
			i := k
			if p.reverseObjects {
				i = len(p.images) - 1 - k
			}
			img := p.images[i]
			imageRefs[i] = add(object{body: imageDict(img), stream: img.data})
		}
		thumbRef := ""
		if p.thumb != nil {
			thumbRef = fmt.Sprintf("/Thumb %d 0 R ", add(object{body: imageDict(*p.thumb), stream: p.thumb.data}))
		}

		resources.WriteString("<< ")
		if len(imageRefs) > 0 {
			resources.WriteString("/XObject << ")
			for i, ref := range imageRefs {
				fmt.Fprintf(&resources, "/Im%d %d 0 R ", i+1, ref)
			}
			draw := p.draw
			if draw == nil {
				for i := range p.images {
					draw = append(draw, i)
				}
			}
			for k, i := range draw {
				fmt.Fprintf(&content, "q 50 0 0 50 %d 10 cm /Im%d Do Q\n", 10+k*60, i+1)
			}
			resources.WriteString(">> ")
		}
		resources.WriteString(">>")

		contentData := []byte(content.String())
		contentRef := add(object{body: fmt.Sprintf("<< /Length %d >>", len(contentData)), stream: contentData})
		pageRef := add(object{body: fmt.Sprintf("<< /Type /Page /Parent 2 0 R /MediaBox [0 0 612 792] %s/Resources %s /Contents %d 0 R >>",
			thumbRef, resources.String(), contentRef)})
		pageRefs = append(pageRefs, fmt.Sprintf("%d 0 R", pageRef))
	}

	objects[0] = object{body: "<< /Type /Catalog /Pages 2 0 R >>"}
	objects[1] = object{body: fmt.Sprintf("<< /Type /Pages /Kids [%s] /Count %d >>", strings.Join(pageRefs, " "), len(pageRefs))}

	var buf bytes.Buffer
	buf.WriteString("%PDF-1.7\n%\xe2\xe3\xcf\xd3\n")
	offsets := make([]int, len(objects))
	for i, o := range objects {
		offsets[i] = buf.Len()
		fmt.Fprintf(&buf, "%d 0 obj\n%s\n", i+1, o.body)
		if o.stream != nil {
			buf.WriteString("stream\n")
			buf.Write(o.stream)
			buf.WriteString("\nendstream\n")
		}
		buf.WriteString("endobj\n")
	}

	xrefOffset := buf.Len()
	fmt.Fprintf(&buf, "xref\n0 %d\n", len(objects)+1)
	buf.WriteString("0000000000 65535 f \n")
	for _, off := range offsets {
		fmt.Fprintf(&buf, "%010d 00000 n \n", off)
	}
	fmt.Fprintf(&buf, "trailer\n<< /Size %d /Root 1 0 R >>\nstartxref\n%d\n%%%%EOF\n", len(objects)+1, xrefOffset)
	return buf.Bytes()
}

func imageDict(img testImage) string {
	return fmt.Sprintf("<< /Type /XObject /Subtype /Image /Width %d /Height %d /ColorSpace /DeviceRGB /BitsPerComponent 8 /Filter /%s /Length %d >>",
		img.width, img.height, img.filter, len(img.data))
}

func writePDF(t *testing.T, pages ...testPage) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "input.pdf")
	if err := os.WriteFile(path, buildPDF(t, pages...), 0o640); err != nil {
		t.Fatalf("failed to write pdf: %v", err)
	}
	return path
}

// seqNames は決定的な数字列を返す NameGenerator です。
type seqNames struct {
	mu sync.Mutex
	n  int
}

func (s *seqNames) Digits(n int) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.n++
	return fmt.Sprintf("%0*d", n, s.n), nil
}

// pngDecoder はテスト用の JPXDecoder で、ペイロードをPNGとしてデコードします。
var pngDecoder = JPXDecoderFunc(func(data []byte, _ int) (image.Image, error) {
	return png.Decode(bytes.NewReader(data))
})

func solidNRGBA(w, h int, c color.NRGBA) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetNRGBA(x, y, c)
		}
	}
	return img
}
