package pdf

import (
	"context"
	"errors"
	"fmt"
	"mime/multipart"
	"os"
	"path/filepath"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/rs/zerolog"

	"github.com/yourusername/images-extractor/internal/history"
	"github.com/yourusername/images-extractor/internal/storage"
)

// Recorder は抽出記録の保存先です。nil なら記録しません。
type Recorder interface {
	Save(ctx context.Context, record *history.Record) error
}

// ServiceOptions は Service の生成設定です。
type ServiceOptions struct {
	UploadDir   string
	ImagesDir   string
	MaxFileSize int64
	Extractor   *Extractor
	Names       NameGenerator
	Recorder    Recorder
	Logger      *zerolog.Logger
}

// Service はアップロードされたPDFを一時保存し、画像を抽出して一時ファイルを削除します。
type Service struct {
	uploads     *storage.Local
	images      *storage.Local
	maxFileSize int64
	extractor   *Extractor
	names       NameGenerator
	recorder    Recorder
	logger      *zerolog.Logger
}

// Extraction はアップロード1件の処理結果です。
type Extraction struct {
	ID        string
	Filenames []string
	Report    *Report
	Err       error // 抽出中のエラー（解析失敗など）。レスポンスには反映しません。
}

// NewService は Service を生成し、保存先ディレクトリを作成します。
func NewService(opts ServiceOptions) (*Service, error) {
	if opts.MaxFileSize <= 0 {
		return nil, fmt.Errorf("MaxFileSize must be positive")
	}
	logger := opts.Logger
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	extractor := opts.Extractor
	if extractor == nil {
		extractor = NewExtractor(WithLogger(logger))
	}
	names := opts.Names
	if names == nil {
		names = DigitNameGenerator{}
	}

	s := &Service{
		uploads:     storage.NewLocal(opts.UploadDir),
		images:      storage.NewLocal(opts.ImagesDir),
		maxFileSize: opts.MaxFileSize,
		extractor:   extractor,
		names:       names,
		recorder:    opts.Recorder,
		logger:      logger,
	}
	if err := s.uploads.EnsureDir(); err != nil {
		return nil, err
	}
	if err := s.images.EnsureDir(); err != nil {
		return nil, err
	}
	return s, nil
}

// MaxFileSize はアップロードの上限サイズ（バイト、境界値を含む）を返します。
func (s *Service) MaxFileSize() int64 {
	return s.maxFileSize
}

// ValidateUpload は拡張子とサイズを検証します。
func (s *Service) ValidateUpload(file *multipart.FileHeader) error {
	if file == nil {
		return errNoFilePart
	}
	if file.Filename == "" {
		return errNoSelectedFile
	}
	if !allowedFile(file.Filename) {
		return errInvalidFileType
	}
	if file.Size > s.maxFileSize {
		s.logger.Info().
			Str("filename", file.Filename).
			Str("size", humanize.IBytes(uint64(file.Size))).
			Str("limit", humanize.IBytes(uint64(s.maxFileSize))).
			Msg("upload rejected: too large")
		return errFileTooLarge
	}
	return nil
}

// ExtractUpload はアップロードを検証・一時保存し、画像を抽出します。
//
// 抽出中のエラーは Extraction.Err に入り、戻り値のエラーにはなりません。
// 戻り値のエラーは入力エラー（*Error）か一時保存の失敗です。
func (s *Service) ExtractUpload(ctx context.Context, id string, file *multipart.FileHeader) (*Extraction, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if err := s.ValidateUpload(file); err != nil {
		return nil, err
	}

	storedName, err := s.storeUpload(file)
	if err != nil {
		return nil, err
	}
	storedPath, _ := s.uploads.Path(storedName)

	report, runErr := s.extractor.Run(ctx, storedPath, s.images)
	if runErr != nil {
		s.logger.Error().Err(runErr).Str("request_id", id).Str("filename", file.Filename).Msg("failed to extract images")
	}

	if err := s.uploads.Remove(storedName); err != nil {
		s.logger.Error().Err(err).Str("path", storedPath).Msg("failed to delete uploaded pdf")
	}

	extraction := &Extraction{
		ID:        id,
		Filenames: report.Filenames(),
		Report:    report,
		Err:       runErr,
	}
	s.logger.Info().
		Str("request_id", id).
		Str("filename", file.Filename).
		Str("size", humanize.IBytes(uint64(file.Size))).
		Int("pages", report.Pages).
		Int("images", len(extraction.Filenames)).
		Int("skipped", len(report.Skipped)).
		Msg("extraction finished")

	s.record(ctx, file, extraction)
	return extraction, nil
}

// OpenImage は抽出済み画像を開きます。存在しない・不正な名前の場合は fs.ErrNotExist を返します。
func (s *Service) OpenImage(name string) (*os.File, error) {
	return s.images.Open(name)
}

func (s *Service) storeUpload(file *multipart.FileHeader) (string, error) {
	digits, err := s.names.Digits(RandomDigits)
	if err != nil {
		return "", err
	}
	name := digits + ".pdf"

	src, err := file.Open()
	if err != nil {
		return "", fmt.Errorf("アップロードファイルのオープンに失敗しました: %w", err)
	}
	defer src.Close()

	if _, err := s.uploads.SaveFrom(name, src); err != nil {
		return "", fmt.Errorf("アップロードファイルの保存に失敗しました: %w", err)
	}
	return name, nil
}

func (s *Service) record(ctx context.Context, file *multipart.FileHeader, extraction *Extraction) {
	if s.recorder == nil || extraction.ID == "" {
		return
	}
	report := extraction.Report
	record := &history.Record{
		ID:          extraction.ID,
		SourceName:  filepath.Base(file.Filename),
		SourceSize:  file.Size,
		Pages:       report.Pages,
		TotalImages: len(report.Files),
		Images:      make([]history.ImageEntry, len(report.Files)),
		ParseFailed: errors.Is(extraction.Err, ErrParse),
	}
	for i, f := range report.Files {
		record.Images[i] = history.ImageEntry{
			Filename:    f.Filename,
			Role:        string(f.Role),
			Page:        f.Page,
			Fingerprint: f.Fingerprint,
			Size:        f.Size,
		}
	}
	for _, sk := range report.Skipped {
		record.Skipped = append(record.Skipped, history.SkipEntry{Page: sk.Page, Name: sk.Name, Reason: string(sk.Reason)})
	}
	if err := s.recorder.Save(ctx, record); err != nil {
		s.logger.Error().Err(err).Str("request_id", extraction.ID).Msg("failed to save extraction record")
	}
}

// allowedFile は拡張子が pdf かどうかを返します（大文字小文字は区別しません）。
func allowedFile(filename string) bool {
	idx := strings.LastIndexByte(filename, '.')
	if idx < 0 {
		return false
	}
	return strings.ToLower(filename[idx+1:]) == "pdf"
}
