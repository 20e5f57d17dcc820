// Package history は抽出結果の短期記録を Redis に保存します。
//
// 記録は TTL 付きで、画像そのものの永続化は行いません。
package history

import "time"

// ImageEntry は記録に含まれる出力画像1件分の情報です。
type ImageEntry struct {
	Filename    string `json:"filename"`
	Role        string `json:"role"`
	Page        int    `json:"page"`
	Fingerprint string `json:"fingerprint"`
	Size        int64  `json:"size"`
}

// SkipEntry は出力されなかった画像の情報です。
type SkipEntry struct {
	Page   int    `json:"page"`
	Name   string `json:"name"`
	Reason string `json:"reason"`
}

// Record は1回のアップロード・抽出の記録です。
type Record struct {
	ID          string       `json:"id"`
	SourceName  string       `json:"sourceName"`
	SourceSize  int64        `json:"sourceSize"`
	Pages       int          `json:"pages"`
	TotalImages int          `json:"totalImages"`
	Images      []ImageEntry `json:"images"`
	Skipped     []SkipEntry  `json:"skipped,omitempty"`
	ParseFailed bool         `json:"parseFailed,omitempty"`
	CreatedAt   time.Time    `json:"createdAt"`
	ExpiresAt   time.Time    `json:"expiresAt"`
}
