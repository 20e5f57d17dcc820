// Package pdf はPDFからの画像抽出と、そのアップロードAPIを提供します。
package pdf

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/gabriel-vasile/mimetype"
	pdfapi "github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"github.com/rs/zerolog"

	"github.com/yourusername/images-extractor/internal/storage"
)

var disableConfigDirOnce sync.Once

// ImageWriter は抽出画像の書き込み先です。storage.Local が実装します。
type ImageWriter interface {
	Save(name string, data []byte) error
}

// SkipReason は画像が出力されなかった理由です。
type SkipReason string

const (
	SkipDuplicate SkipReason = "duplicate"
	SkipRead      SkipReason = "read"
	SkipDecode    SkipReason = "decode"
	SkipWrite     SkipReason = "write"
)

// Skip は出力されなかった画像の記録です。
type Skip struct {
	Page   int        `json:"page"`
	Name   string     `json:"name"`
	Reason SkipReason `json:"reason"`
	Detail string     `json:"detail,omitempty"`
	Err    error      `json:"-"`
}

// OutputImage は書き込まれた画像です。
type OutputImage struct {
	Filename    string `json:"filename"`
	Role        Role   `json:"role"`
	Position    int    `json:"position"`
	Page        int    `json:"page"`
	SourceName  string `json:"sourceName"`
	Fingerprint string `json:"fingerprint"`
	Size        int64  `json:"size"`
	Normalized  bool   `json:"normalized,omitempty"`
}

// Report は1回の抽出結果です。Files は抽出順（ページ順→ページ内順）です。
type Report struct {
	Pages   int           `json:"pages"`
	Files   []OutputImage `json:"files"`
	Skipped []Skip        `json:"skipped,omitempty"`
}

// Filenames は出力ファイル名を抽出順で返します。
func (r *Report) Filenames() []string {
	if r == nil {
		return []string{}
	}
	names := make([]string, len(r.Files))
	for i, f := range r.Files {
		names[i] = f.Filename
	}
	return names
}

// Extractor はPDFに埋め込まれた画像を重複なく取り出し、位置に応じた名前で保存します。
type Extractor struct {
	names   NameGenerator
	decoder JPXDecoder
	logger  *zerolog.Logger
}

// ExtractorOption は Extractor の設定を変更します。
type ExtractorOption func(*Extractor)

// WithNameGenerator はファイル名の乱数生成器を差し替えます。
func WithNameGenerator(g NameGenerator) ExtractorOption {
	return func(e *Extractor) { e.names = g }
}

// WithJPXDecoder はJPEG2000デコーダを差し替えます。
func WithJPXDecoder(d JPXDecoder) ExtractorOption {
	return func(e *Extractor) { e.decoder = d }
}

// WithLogger はロガーを設定します。
func WithLogger(l *zerolog.Logger) ExtractorOption {
	return func(e *Extractor) {
		if l != nil {
			e.logger = l
		}
	}
}

// NewExtractor は Extractor を生成します。
func NewExtractor(opts ...ExtractorOption) *Extractor {
	nop := zerolog.Nop()
	e := &Extractor{
		names:   DigitNameGenerator{},
		decoder: FitzDecoder{},
		logger:  &nop,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Extract は documentPath の画像を outputDir に書き出し、出力ファイル名を抽出順で返します。
//
// 解析失敗は空の結果として扱われ、呼び出し側には返しません（ログのみ）。
// 「画像のないPDF」と「壊れたPDF」は区別されません。
func (e *Extractor) Extract(documentPath, outputDir string) []string {
	report, err := e.Run(context.Background(), documentPath, storage.NewLocal(outputDir))
	if err != nil {
		e.logger.Error().Err(err).Str("document", documentPath).Msg("failed to extract images")
	}
	return report.Filenames()
}

// Run は抽出を行い、ステップごとの結果を Report として返します。
//
// 戻り値のエラーは ErrParse / ErrPage またはコンテキストのエラーをラップします。
// エラー時も、それまでに書き込んだ画像は Report に含まれ、ディスク上に残ります。
func (e *Extractor) Run(ctx context.Context, documentPath string, out ImageWriter) (*Report, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	report := &Report{Files: []OutputImage{}}

	pdfCtx, err := readDocument(documentPath)
	if err != nil {
		return report, fmt.Errorf("%w: %w", ErrParse, err)
	}
	report.Pages = pdfCtx.PageCount

	seen := make(map[Fingerprint]struct{})
	position := 0

	for pageNr := 1; pageNr <= pdfCtx.PageCount; pageNr++ {
		images, err := pageImages(pdfCtx, pageNr)
		if err != nil {
			return report, fmt.Errorf("%w: page %d: %w", ErrPage, pageNr, err)
		}

		for _, img := range images {
			if err := ctx.Err(); err != nil {
				return report, err
			}

			declared := declaredName(img)
			data, err := io.ReadAll(img)
			if err != nil {
				e.skip(report, Skip{Page: pageNr, Name: declared, Reason: SkipRead, Err: err})
				continue
			}

			fp := fingerprintOf(data)
			if _, dup := seen[fp]; dup {
				e.skip(report, Skip{Page: pageNr, Name: declared, Reason: SkipDuplicate})
				continue
			}
			seen[fp] = struct{}{}

			ext := extOf(declared)
			if ext == "" {
				ext = mimetype.Detect(data).Extension()
			}

			normalized := false
			if isJPXExt(ext) {
				converted, err := normalizeJPX(e.decoder, data, img.Width)
				if err != nil {
					e.skip(report, Skip{Page: pageNr, Name: declared, Reason: SkipDecode, Err: err})
					continue
				}
				data, ext, normalized = converted, normalizedExt, true
			}

			digits, err := e.names.Digits(RandomDigits)
			if err != nil {
				e.skip(report, Skip{Page: pageNr, Name: declared, Reason: SkipWrite, Err: fmt.Errorf("%w: %w", ErrWrite, err)})
				continue
			}
			filename := outputFilename(position, digits, ext)
			if err := out.Save(filename, data); err != nil {
				e.skip(report, Skip{Page: pageNr, Name: declared, Reason: SkipWrite, Err: fmt.Errorf("%w: %w", ErrWrite, err)})
				continue
			}

			report.Files = append(report.Files, OutputImage{
				Filename:    filename,
				Role:        RoleForPosition(position),
				Position:    position,
				Page:        pageNr,
				SourceName:  declared,
				Fingerprint: fp.String(),
				Size:        int64(len(data)),
				Normalized:  normalized,
			})
			e.logger.Debug().
				Int("page", pageNr).
				Str("source", declared).
				Str("filename", filename).
				Int("position", position).
				Msg("image extracted")
			position++
		}
	}

	return report, nil
}

func (e *Extractor) skip(report *Report, s Skip) {
	if s.Err != nil {
		s.Detail = s.Err.Error()
	}
	report.Skipped = append(report.Skipped, s)

	evt := e.logger.Debug()
	if s.Reason != SkipDuplicate {
		evt = e.logger.Error().Err(s.Err)
	}
	evt.Int("page", s.Page).Str("source", s.Name).Str("reason", string(s.Reason)).Msg("image skipped")
}

// readDocument はPDFを読み込み、緩い検証モードで検証・最適化します。
// ページごとの画像一覧（ctx.Optimize.PageImages）は最適化で作られます。
func readDocument(path string) (*model.Context, error) {
	disableConfigDirOnce.Do(pdfapi.DisableConfigDir)

	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed
	conf.Cmd = model.EXTRACTIMAGES

	ctx, err := pdfapi.ReadValidateAndOptimize(f, conf)
	if err != nil {
		return nil, err
	}
	if err := ctx.EnsurePageCount(); err != nil {
		return nil, err
	}
	return ctx, nil
}

// pageImages はページ内の画像をコンテンツストリームでの描画順に返します。
// Width は画像辞書の宣言値で補います（非スタブ抽出では設定されないため）。
func pageImages(ctx *model.Context, pageNr int) ([]model.Image, error) {
	byObj, err := pdfcpu.ExtractPageImages(ctx, pageNr, false)
	if err != nil {
		return nil, err
	}
	if len(byObj) == 0 {
		return nil, nil
	}

	images := make([]model.Image, 0, len(byObj))
	for objNr, img := range byObj {
		if img.Width == 0 {
			img.Width = declaredWidth(ctx, objNr)
		}
		images = append(images, img)
	}

	var drawn []string
	if r, err := pdfcpu.ExtractPageContent(ctx, pageNr); err == nil {
		if content, err := io.ReadAll(r); err == nil {
			drawn = drawnXObjects(content)
		}
	}
	return orderByDraw(images, drawn), nil
}

func declaredWidth(ctx *model.Context, objNr int) int {
	if ctx.Optimize == nil {
		return 0
	}
	obj, ok := ctx.Optimize.ImageObjects[objNr]
	if !ok || obj == nil || obj.ImageDict == nil {
		return 0
	}
	o, found := obj.ImageDict.Find("Width")
	if !found {
		return 0
	}
	w, err := ctx.DereferenceInteger(o)
	if err != nil || w == nil {
		return 0
	}
	return w.Value()
}

// declaredName はリソース名とpdfcpuが判定した形式から宣言名（例: Im1.jpx）を作ります。
func declaredName(img model.Image) string {
	if img.FileType == "" {
		return img.Name
	}
	return img.Name + "." + img.FileType
}

// IsParseError はエラーがPDF解析失敗によるものかを返します。
func IsParseError(err error) bool {
	return errors.Is(err, ErrParse)
}
