package pdf

import (
	"context"
	"encoding/binary"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yourusername/images-extractor/internal/storage"
)

// testdata/test.jp2 は 1x1 ピクセル、RGB 8bit のJP2です。
func readJP2Fixture(t *testing.T) []byte {
	t.Helper()
	data, err := os.ReadFile(filepath.Join("testdata", "test.jp2"))
	require.NoError(t, err)
	return data
}

func TestJPXPixelSize(t *testing.T) {
	w, h, ok := jpxPixelSize(readJP2Fixture(t))
	require.True(t, ok)
	assert.Equal(t, 1, w)
	assert.Equal(t, 1, h)

	// 生コードストリーム: SOC SIZ Lsiz Rsiz Xsiz Ysiz XOsiz YOsiz
	cs := []byte{0xff, 0x4f, 0xff, 0x51, 0x00, 0x2f, 0x00, 0x00}
	for _, v := range []uint32{340, 220, 7, 20} {
		cs = binary.BigEndian.AppendUint32(cs, v)
	}
	w, h, ok = jpxPixelSize(cs)
	require.True(t, ok)
	assert.Equal(t, 333, w)
	assert.Equal(t, 200, h)

	_, _, ok = jpxPixelSize([]byte("not a jpeg2000 codestream"))
	assert.False(t, ok)
	_, _, ok = jpxPixelSize(cs[:10])
	assert.False(t, ok)
}

func TestFitzDecoderDecodesJP2(t *testing.T) {
	img, err := FitzDecoder{TempDir: t.TempDir()}.DecodeJPX(readJP2Fixture(t), 0)
	require.NoError(t, err)
	assert.Equal(t, 1, img.Bounds().Dx())
	assert.Equal(t, 1, img.Bounds().Dy())

	// 宣言幅がヘッダーと食い違ってもコードストリームの画素数で出力する
	img, err = FitzDecoder{TempDir: t.TempDir()}.DecodeJPX(readJP2Fixture(t), 40)
	require.NoError(t, err)
	assert.Equal(t, 1, img.Bounds().Dx())
}

func TestFitzDecoderRejectsInvalidPayload(t *testing.T) {
	_, err := FitzDecoder{TempDir: t.TempDir()}.DecodeJPX(nil, 0)
	assert.Error(t, err)

	_, err = FitzDecoder{TempDir: t.TempDir()}.DecodeJPX([]byte("not a jpeg2000 codestream"), 4)
	assert.Error(t, err)
}

func TestExtractRealJP2WithFitz(t *testing.T) {
	data := readJP2Fixture(t)
	direct, err := FitzDecoder{TempDir: t.TempDir()}.DecodeJPX(data, 1)
	require.NoError(t, err)
	want := color.NRGBAModel.Convert(direct.At(direct.Bounds().Min.X, direct.Bounds().Min.Y)).(color.NRGBA)
	want.A = 0xff

	path := writePDF(t, testPage{images: []testImage{rawJPX(data, 1, 1), jpegImage(t, red)}})
	out := t.TempDir()

	ex := NewExtractor(WithNameGenerator(&seqNames{}), WithJPXDecoder(FitzDecoder{TempDir: t.TempDir()}))
	report, err := ex.Run(context.Background(), path, storage.NewLocal(out))
	require.NoError(t, err)
	require.Len(t, report.Files, 2)

	first := report.Files[0]
	assert.Equal(t, RoleUser, first.Role)
	assert.Equal(t, ".png", filepath.Ext(first.Filename))
	assert.True(t, first.Normalized)

	entries, err := os.ReadDir(out)
	require.NoError(t, err)
	for _, e := range entries {
		ext := filepath.Ext(e.Name())
		assert.NotEqual(t, ".jp2", ext)
		assert.NotEqual(t, ".jpx", ext)
	}

	f, err := os.Open(filepath.Join(out, first.Filename))
	require.NoError(t, err)
	defer f.Close()
	decoded, err := png.Decode(f)
	require.NoError(t, err)
	require.Equal(t, 1, decoded.Bounds().Dx())
	assert.Equal(t, want, color.NRGBAModel.Convert(decoded.At(0, 0)))
}
