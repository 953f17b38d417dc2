package fileutil

import (
	"archive/zip"
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"
)

// FileSystem は実ファイルシステムとパック（embed/zip）を統一的に扱うインターフェース
type FileSystem interface {
	// Open はファイルを開く（大文字小文字を無視）
	Open(name string) (fs.File, error)
	// ReadFile はファイルの内容を読み込む（大文字小文字を無視）
	ReadFile(name string) ([]byte, error)
	// ReadDir はディレクトリの内容を読み込む
	ReadDir(name string) ([]fs.DirEntry, error)
	// FindFile は大文字小文字を無視してファイルを検索し、実際のパスを返す
	FindFile(dir, filename string) (string, error)
	// Sub はdirをルートとするFileSystemを返す
	Sub(dir string) FileSystem
	// BasePath はベースパスを返す
	BasePath() string
	// IsPacked はembedやzipなど読み取り専用のパックかどうかを返す
	IsPacked() bool
}

// RealFS は実ファイルシステムへのアクセスを提供する
type RealFS struct {
	basePath string
}

// NewRealFS は実ファイルシステム用のFileSystemを作成する
func NewRealFS(basePath string) *RealFS {
	return &RealFS{basePath: basePath}
}

func (r *RealFS) Open(name string) (fs.File, error) {
	actual, err := r.locate(name)
	if err != nil {
		return nil, err
	}
	return os.Open(actual)
}

func (r *RealFS) ReadFile(name string) ([]byte, error) {
	actual, err := r.locate(name)
	if err != nil {
		return nil, err
	}
	return os.ReadFile(actual)
}

func (r *RealFS) ReadDir(name string) ([]fs.DirEntry, error) {
	return os.ReadDir(r.resolve(name))
}

func (r *RealFS) FindFile(dir, filename string) (string, error) {
	return FindFileCaseInsensitive(r.resolve(dir), filename)
}

func (r *RealFS) Sub(dir string) FileSystem {
	return NewRealFS(r.resolve(dir))
}

func (r *RealFS) BasePath() string {
	return r.basePath
}

func (r *RealFS) IsPacked() bool {
	return false
}

func (r *RealFS) resolve(name string) string {
	// 先頭の "/" や "\" を除去
	clean := strings.TrimLeft(name, `/\`)
	if filepath.IsAbs(name) {
		clean = name
	}
	if r.basePath == "" || filepath.IsAbs(clean) {
		return filepath.Clean(clean)
	}
	return filepath.Join(r.basePath, clean)
}

func (r *RealFS) locate(name string) (string, error) {
	p := r.resolve(name)
	if _, err := os.Stat(p); err == nil {
		return p, nil
	}
	return FindFileCaseInsensitive(filepath.Dir(p), filepath.Base(p))
}

// PackFS は読み取り専用のfs.FS（embed.FS、zip.Reader）へのアクセスを提供する
type PackFS struct {
	fsys     fs.FS
	basePath string
}

// NewPackFS はfs.FS用のFileSystemを作成する
func NewPackFS(fsys fs.FS, basePath string) *PackFS {
	return &PackFS{fsys: fsys, basePath: strings.Trim(basePath, "/")}
}

// NewZipFS はメモリ上のzipアーカイブからFileSystemを作成する
func NewZipFS(data []byte) (*PackFS, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("failed to open zip archive: %w", err)
	}
	return NewPackFS(zr, ""), nil
}

// OpenZip はzipファイルを開く。返されたio.Closerは呼び出し元で閉じる
func OpenZip(name string) (*PackFS, io.Closer, error) {
	zr, err := zip.OpenReader(name)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open zip archive %s: %w", name, err)
	}
	return NewPackFS(zr, ""), zr, nil
}

func (p *PackFS) Open(name string) (fs.File, error) {
	actual, err := p.locate(name)
	if err != nil {
		return nil, err
	}
	return p.fsys.Open(actual)
}

func (p *PackFS) ReadFile(name string) ([]byte, error) {
	actual, err := p.locate(name)
	if err != nil {
		return nil, err
	}
	return fs.ReadFile(p.fsys, actual)
}

func (p *PackFS) ReadDir(name string) ([]fs.DirEntry, error) {
	return fs.ReadDir(p.fsys, p.resolve(name))
}

func (p *PackFS) FindFile(dir, filename string) (string, error) {
	return FindFileCaseInsensitiveFS(p.fsys, p.resolve(dir), filename)
}

func (p *PackFS) Sub(dir string) FileSystem {
	return &PackFS{fsys: p.fsys, basePath: p.resolve(dir)}
}

func (p *PackFS) BasePath() string {
	return p.basePath
}

func (p *PackFS) IsPacked() bool {
	return true
}

// Unwrap は内部のfs.FSを返す
func (p *PackFS) Unwrap() fs.FS {
	return p.fsys
}

func (p *PackFS) resolve(name string) string {
	// fs.FSは "/" 区切りのみ
	clean := strings.Trim(strings.ReplaceAll(name, `\`, "/"), "/")
	if clean == "" {
		clean = "."
	}
	return path.Join(p.basePath, clean)
}

func (p *PackFS) locate(name string) (string, error) {
	actual := p.resolve(name)
	if f, err := p.fsys.Open(actual); err == nil {
		f.Close()
		return actual, nil
	}
	return FindFileCaseInsensitiveFS(p.fsys, path.Dir(actual), path.Base(actual))
}

// WalkDir はディレクトリを再帰的に走査する
// 返されるパスはベースパスからの相対パス（"/" 区切り）
func WalkDir(fsys FileSystem, root string, fn fs.WalkDirFunc) error {
	switch f := fsys.(type) {
	case *PackFS:
		start := f.resolve(root)
		return fs.WalkDir(f.fsys, start, func(p string, d fs.DirEntry, err error) error {
			return fn(relative(f.basePath, p), d, err)
		})
	case *RealFS:
		start := f.resolve(root)
		return filepath.WalkDir(start, func(p string, d fs.DirEntry, err error) error {
			rel := p
			if f.basePath != "" {
				if r, relErr := filepath.Rel(f.basePath, p); relErr == nil {
					rel = r
				}
			}
			return fn(filepath.ToSlash(rel), d, err)
		})
	}
	return errors.New("unsupported file system type")
}

func relative(base, p string) string {
	if base == "" || base == "." {
		return p
	}
	if p == base {
		return "."
	}
	return strings.TrimPrefix(p, base+"/")
}
