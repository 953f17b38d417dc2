package window

import (
	"bytes"
	"fmt"
	"image"
	_ "image/jpeg" // JPEG デコーダを登録
	_ "image/png"  // PNG デコーダを登録

	_ "golang.org/x/image/bmp" // BMP デコーダを登録

	"github.com/zurustar/dtxview/pkg/fileutil"
)

// LoadPreview は#PREIMAGEの画像を読み込む（BMP/PNG/JPEG対応）
// ファイル名は大文字小文字を区別せずに探す
func LoadPreview(fsys fileutil.FileSystem, name string) (image.Image, error) {
	if name == "" {
		return nil, fmt.Errorf("no preview image")
	}
	data, err := fsys.ReadFile(name)
	if err != nil {
		return nil, fmt.Errorf("failed to read preview image %s: %w", name, err)
	}
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to decode preview image %s: %w", name, err)
	}
	return img, nil
}
