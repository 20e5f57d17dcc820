// Package storage はストレージ抽象化レイヤーを提供します。
//
// 現在はローカルファイルシステムのみをサポートします。
// 保存先ディレクトリは起動時に固定され、ファイル名は単一のパス要素に限定されます。
package storage

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// ErrInvalidName はファイル名が単一のパス要素でない場合に返されます。
var ErrInvalidName = errors.New("storage: invalid file name")

// Local はディレクトリ直下にファイルを保存するローカルストレージです。
type Local struct {
	Root string
	Perm os.FileMode
}

// NewLocal は Root 配下を保存先とする Local を返します。
func NewLocal(root string) *Local {
	return &Local{Root: root, Perm: 0o644}
}

// EnsureDir は保存先ディレクトリを作成します（既存なら何もしません）。
func (l *Local) EnsureDir() error {
	if err := os.MkdirAll(l.Root, 0o755); err != nil {
		return fmt.Errorf("保存先ディレクトリの作成に失敗しました: %w", err)
	}
	return nil
}

// Path は name の保存先パスを返します。
func (l *Local) Path(name string) (string, error) {
	if err := validateName(name); err != nil {
		return "", err
	}
	return filepath.Join(l.Root, name), nil
}

// Save は data を name として書き込みます。既存ファイルは上書きしません。
func (l *Local) Save(name string, data []byte) error {
	path, err := l.Path(name)
	if err != nil {
		return err
	}
	perm := l.Perm
	if perm == 0 {
		perm = 0o644
	}
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_EXCL, perm)
	if err != nil {
		return err
	}
	if _, err := file.Write(data); err != nil {
		file.Close()
		_ = os.Remove(path)
		return err
	}
	return file.Close()
}

// SaveFrom は r の内容を name として書き込み、書き込んだバイト数を返します。
func (l *Local) SaveFrom(name string, r io.Reader) (int64, error) {
	path, err := l.Path(name)
	if err != nil {
		return 0, err
	}
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_EXCL, 0o640)
	if err != nil {
		return 0, err
	}
	n, err := io.Copy(file, r)
	if err != nil {
		file.Close()
		_ = os.Remove(path)
		return n, err
	}
	return n, file.Close()
}

// Open は name を読み取り用に開きます。存在しない場合は fs.ErrNotExist を返します。
func (l *Local) Open(name string) (*os.File, error) {
	path, err := l.Path(name)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", os.ErrNotExist, err)
	}
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	info, err := file.Stat()
	if err != nil {
		file.Close()
		return nil, err
	}
	if info.IsDir() {
		file.Close()
		return nil, os.ErrNotExist
	}
	return file, nil
}

// Remove は name を削除します。
func (l *Local) Remove(name string) error {
	path, err := l.Path(name)
	if err != nil {
		return err
	}
	return os.Remove(path)
}

func validateName(name string) error {
	switch {
	case name == "", name == ".", name == "..":
		return ErrInvalidName
	case strings.ContainsAny(name, `/\`), strings.ContainsRune(name, 0):
		return ErrInvalidName
	case filepath.Base(name) != name:
		return ErrInvalidName
	}
	return nil
}
