package pdf

import (
	"sort"
	"strconv"

	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
)

// drawnXObjects はページのコンテンツストリームから `/Name Do` で描画される
// XObject のリソース名を、最初に現れた順に返します。
// 文字列・コメント・インライン画像（BI ... ID ... EI）の中身は読み飛ばします。
func drawnXObjects(content []byte) []string {
	var (
		order    []string
		seen     = map[string]bool{}
		lastName string
		haveName bool
	)

	n := len(content)
	for i := 0; i < n; {
		c := content[i]
		switch {
		case isPDFSpace(c):
			i++
		case c == '%':
			for i < n && content[i] != '\n' && content[i] != '\r' {
				i++
			}
		case c == '(':
			i = skipLiteralString(content, i)
			haveName = false
		case c == '<':
			if i+1 < n && content[i+1] == '<' {
				i += 2
			} else {
				for i < n && content[i] != '>' {
					i++
				}
				i++
			}
			haveName = false
		case c == '>' || c == '[' || c == ']' || c == '{' || c == '}' || c == ')':
			i++
			haveName = false
		case c == '/':
			j := i + 1
			for j < n && isPDFRegular(content[j]) {
				j++
			}
			lastName, haveName = decodePDFName(content[i+1:j]), true
			i = j
		default:
			j := i
			for j < n && isPDFRegular(content[j]) {
				j++
			}
			if j == i {
				j++
			}
			switch string(content[i:j]) {
			case "Do":
				if haveName && !seen[lastName] {
					seen[lastName] = true
					order = append(order, lastName)
				}
			case "ID":
				j = skipInlineImageData(content, j)
			}
			haveName = false
			i = j
		}
	}
	return order
}

func skipLiteralString(b []byte, i int) int {
	depth := 0
	for ; i < len(b); i++ {
		switch b[i] {
		case '\\':
			i++
		case '(':
			depth++
		case ')':
			depth--
			if depth == 0 {
				return i + 1
			}
		}
	}
	return len(b)
}

// skipInlineImageData は ID 直後から、空白に挟まれた EI の直後まで進めます。
func skipInlineImageData(b []byte, i int) int {
	for j := i + 1; j+1 < len(b); j++ {
		if b[j] != 'E' || b[j+1] != 'I' || !isPDFSpace(b[j-1]) {
			continue
		}
		if j+2 == len(b) || isPDFSpace(b[j+2]) || isPDFDelimiter(b[j+2]) {
			return j + 2
		}
	}
	return len(b)
}

func decodePDFName(raw []byte) string {
	out := make([]byte, 0, len(raw))
	for i := 0; i < len(raw); i++ {
		if raw[i] == '#' && i+2 < len(raw) {
			if v, err := strconv.ParseUint(string(raw[i+1:i+3]), 16, 8); err == nil {
				out = append(out, byte(v))
				i += 2
				continue
			}
		}
		out = append(out, raw[i])
	}
	return string(out)
}

func isPDFSpace(c byte) bool {
	switch c {
	case ' ', '\t', '\n', '\r', '\f', 0:
		return true
	}
	return false
}

func isPDFDelimiter(c byte) bool {
	switch c {
	case '(', ')', '<', '>', '[', ']', '{', '}', '/', '%':
		return true
	}
	return false
}

func isPDFRegular(c byte) bool {
	return !isPDFSpace(c) && !isPDFDelimiter(c)
}

// orderByDraw は画像を描画順に並べ替えます。
// 描画されない画像（フォーム内でのみ使われる等）はその後ろにオブジェクト番号順で続きます。
// サムネイル（/Thumb）はページ内容ではないため除外します。
func orderByDraw(images []model.Image, drawn []string) []model.Image {
	rank := make(map[string]int, len(drawn))
	for i, name := range drawn {
		rank[name] = i
	}

	out := make([]model.Image, 0, len(images))
	for _, img := range images {
		if img.Thumb || img.Reader == nil {
			continue
		}
		out = append(out, img)
	}

	sort.SliceStable(out, func(i, j int) bool {
		ri, okI := rank[out[i].Name]
		rj, okJ := rank[out[j].Name]
		switch {
		case okI && okJ:
			if ri != rj {
				return ri < rj
			}
		case okI != okJ:
			return okI
		}
		return out[i].ObjNr < out[j].ObjNr
	})
	return out
}
