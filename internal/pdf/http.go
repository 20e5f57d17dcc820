package pdf

import (
	"context"
	"embed"
	"errors"
	"html/template"
	"io"
	"io/fs"
	"mime"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/render"

	"github.com/yourusername/images-extractor/internal/history"
	"github.com/yourusername/images-extractor/internal/logging"
)

// multipartOverhead はマルチパートの境界・ヘッダー分としてボディ上限に上乗せするバイト数です。
const multipartOverhead = 64 * 1024

//go:embed templates/index.html
var templatesFS embed.FS

var uploadPage = template.Must(template.ParseFS(templatesFS, "templates/index.html"))

// ExtractService はアップロードの抽出とダウンロードを提供します。
type ExtractService interface {
	MaxFileSize() int64
	ExtractUpload(ctx context.Context, id string, file *multipart.FileHeader) (*Extraction, error)
	OpenImage(name string) (*os.File, error)
}

// HistoryReader は抽出記録を参照します。
type HistoryReader interface {
	Get(ctx context.Context, id string) (*history.Record, error)
}

// HandlerOptions はレスポンス組み立て用の設定です。
type HandlerOptions struct {
	ChannelTag    string
	PublicBaseURL string
	History       HistoryReader // nil なら履歴APIは常に 404
}

// RegisterRoutes はすべてのエンドポイントを登録します。
func RegisterRoutes(router gin.IRouter, svc ExtractService, opts HandlerOptions) {
	router.GET("/", HomeHandler(opts))
	router.POST("/images", UploadHandler(svc, opts))
	router.GET("/images/:filename", DownloadHandler(svc, opts))
	router.GET("/upload", UploadPageHandler(opts))
	router.GET("/api/extractions/:id", ExtractionRecordHandler(opts))
}

// HomeHandler は GET / のハンドラーを返します。
func HomeHandler(opts HandlerOptions) gin.HandlerFunc {
	return func(c *gin.Context) {
		respond(c, opts, http.StatusOK, gin.H{"status": "Images Extractor Active"})
	}
}

// UploadHandler は POST /images のハンドラーを返します。
func UploadHandler(svc ExtractService, opts HandlerOptions) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, svc.MaxFileSize()+multipartOverhead)

		file, err := formFile(c)
		if c.Request.MultipartForm != nil {
			defer c.Request.MultipartForm.RemoveAll()
		}
		if err != nil {
			respondWithError(c, opts, err)
			return
		}

		extraction, err := svc.ExtractUpload(c.Request.Context(), logging.RequestIDFrom(c), file)
		if err != nil {
			respondWithError(c, opts, err)
			return
		}

		if len(extraction.Filenames) == 0 {
			respond(c, opts, http.StatusOK, gin.H{"message": "No images found in the PDF"})
			return
		}

		urls := make([]string, len(extraction.Filenames))
		for i, name := range extraction.Filenames {
			urls[i] = downloadURL(c, opts.PublicBaseURL, name)
		}
		respond(c, opts, http.StatusOK, gin.H{
			"message":     "Images extracted successfully",
			"totalImages": strconv.Itoa(len(urls)),
			"images":      RoleMap(urls),
		})
	}
}

// DownloadHandler は GET /images/:filename のハンドラーを返します。
func DownloadHandler(svc ExtractService, opts HandlerOptions) gin.HandlerFunc {
	return func(c *gin.Context) {
		name := c.Param("filename")
		file, err := svc.OpenImage(name)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				respond(c, opts, http.StatusNotFound, gin.H{"error": "File not found"})
				return
			}
			respondWithError(c, opts, err)
			return
		}
		defer file.Close()

		info, err := file.Stat()
		if err != nil {
			respondWithError(c, opts, err)
			return
		}

		contentType := "application/octet-stream"
		if mt, err := mimetype.DetectReader(file); err == nil {
			contentType = mt.String()
		}
		if _, err := file.Seek(0, io.SeekStart); err != nil {
			respondWithError(c, opts, err)
			return
		}

		c.Header("Content-Disposition", contentDisposition(name))
		c.DataFromReader(http.StatusOK, info.Size(), contentType, file, nil)
	}
}

// UploadPageHandler は GET /upload のハンドラーを返します。
func UploadPageHandler(opts HandlerOptions) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Render(http.StatusOK, render.HTML{
			Template: uploadPage,
			Name:     "index.html",
			Data:     gin.H{"Channel": opts.ChannelTag},
		})
	}
}

// ExtractionRecordHandler は GET /api/extractions/:id のハンドラーを返します。
func ExtractionRecordHandler(opts HandlerOptions) gin.HandlerFunc {
	return func(c *gin.Context) {
		if opts.History == nil {
			respond(c, opts, http.StatusNotFound, gin.H{"error": "Extraction history is disabled"})
			return
		}
		record, err := opts.History.Get(c.Request.Context(), c.Param("id"))
		if err != nil {
			respondWithError(c, opts, err)
			return
		}
		if record == nil {
			respond(c, opts, http.StatusNotFound, gin.H{"error": "Extraction not found"})
			return
		}
		respond(c, opts, http.StatusOK, gin.H{"extraction": record})
	}
}

// formFile はマルチパートの file フィールドを取り出します。
func formFile(c *gin.Context) (*multipart.FileHeader, error) {
	form, err := c.MultipartForm()
	if err != nil {
		if isBodyTooLarge(err) {
			return nil, errFileTooLarge
		}
		return nil, errNoFilePart
	}
	if files := form.File["file"]; len(files) > 0 {
		if files[0].Filename == "" {
			return nil, errNoSelectedFile
		}
		return files[0], nil
	}
	// filename="" のパートはファイルではなく値として扱われる
	if _, ok := form.Value["file"]; ok {
		return nil, errNoSelectedFile
	}
	return nil, errNoFilePart
}

// contentDisposition は name を正しくクォート（非ASCIIは RFC 2231 形式）した attachment ヘッダー値を返します。
func contentDisposition(name string) string {
	if v := mime.FormatMediaType("attachment", map[string]string{"filename": name}); v != "" {
		return v
	}
	return "attachment"
}

func isBodyTooLarge(err error) bool {
	var maxErr *http.MaxBytesError
	if errors.As(err, &maxErr) {
		return true
	}
	return strings.Contains(err.Error(), "request body too large")
}

func respond(c *gin.Context, opts HandlerOptions, status int, payload gin.H) {
	payload["TG_Channel"] = opts.ChannelTag
	c.IndentedJSON(status, payload)
}

func respondWithError(c *gin.Context, opts HandlerOptions, err error) {
	var apiErr *Error
	switch {
	case errors.As(err, &apiErr):
		respond(c, opts, http.StatusBadRequest, gin.H{"error": apiErr.Message})
	case errors.Is(err, context.Canceled):
		respond(c, opts, http.StatusRequestTimeout, gin.H{"error": "Request canceled"})
	default:
		_ = c.Error(err)
		respond(c, opts, http.StatusInternalServerError, gin.H{"error": "Internal server error"})
	}
}

// downloadURL は外部から解決可能なダウンロードURLを組み立てます。
func downloadURL(c *gin.Context, base, name string) string {
	if base == "" {
		scheme := "http"
		if c.Request.TLS != nil {
			scheme = "https"
		}
		if proto := c.GetHeader("X-Forwarded-Proto"); proto != "" {
			scheme = strings.TrimSpace(strings.Split(proto, ",")[0])
		}
		base = scheme + "://" + c.Request.Host
	}
	return strings.TrimRight(base, "/") + "/images/" + url.PathEscape(name)
}
