package horde_test

import (
	"archive/zip"
	"bytes"
	"encoding/base64"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/kashguard/go-horde-sdk/internal/horde"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInputVolumes(t *testing.T) {
	hf, err := horde.HuggingfaceInputVolume{RepoID: "org/model", AllowPatterns: []string{"*.json"}}.ToVolume("/volume/model")
	require.NoError(t, err)
	assert.Equal(t, horde.Volume{
		VolumeType:    horde.VolumeTypeHuggingface,
		RepoID:        "org/model",
		AllowPatterns: []string{"*.json"},
		RelativePath:  "model",
	}, hf)

	inline, err := horde.InlineInputVolume{Contents: "UEsFBg=="}.ToVolume("/volume/")
	require.NoError(t, err)
	assert.Equal(t, horde.Volume{VolumeType: horde.VolumeTypeInline, Contents: "UEsFBg=="}, inline)

	single, err := horde.HTTPInputVolume{URL: "https://example.com/a.bin"}.ToVolume("/volume/in/a.bin")
	require.NoError(t, err)
	assert.Equal(t, "in/a.bin", single.RelativePath)
	assert.Equal(t, horde.VolumeTypeSingleFile, single.VolumeType)

	for _, bad := range []string{"/data/a", "/volume", "/volume/../etc/passwd", "/volume/a//b"} {
		_, err := horde.HTTPInputVolume{URL: "https://example.com"}.ToVolume(bad)
		assert.Error(t, err, bad)
	}

	_, err = horde.HTTPInputVolume{URL: "https://example.com"}.ToVolume("/volume/")
	assert.Error(t, err, "a single file needs a file name")
}

func TestOutputVolumes(t *testing.T) {
	post, err := horde.HTTPOutputVolume{
		URL:        "https://bucket.example/",
		FormFields: map[string]string{"key": "out.txt"},
	}.ToUpload("/output/out.txt")
	require.NoError(t, err)
	assert.Equal(t, horde.Upload{
		OutputUploadType: horde.UploadTypeSingleFilePost,
		RelativePath:     "out.txt",
		URL:              "https://bucket.example/",
		FormFields:       map[string]string{"key": "out.txt"},
	}, post)

	put, err := horde.HTTPOutputVolume{HTTPMethod: "put", URL: "https://bucket.example/out.txt"}.ToUpload("/output/out.txt")
	require.NoError(t, err)
	assert.Equal(t, horde.UploadTypeSingleFilePut, put.OutputUploadType)

	_, err = horde.HTTPOutputVolume{URL: "https://bucket.example/"}.ToUpload("/output/")
	assert.Error(t, err)
}

func TestNewInlineInputVolumeFromPath(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "sub"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.txt"), []byte("alpha"), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "sub", "b.txt"), []byte("beta"), 0o600))

	vol, err := horde.NewInlineInputVolumeFromPath(dir)
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"a.txt": "alpha", "sub/b.txt": "beta"}, unzipContents(t, vol.Contents))

	single, err := horde.NewInlineInputVolumeFromPath(filepath.Join(dir, "a.txt"))
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"a.txt": "alpha"}, unzipContents(t, single.Contents))

	// an existing archive is passed through untouched
	archive, err := base64.StdEncoding.DecodeString(vol.Contents)
	require.NoError(t, err)
	archivePath := filepath.Join(t.TempDir(), "data.zip")
	require.NoError(t, os.WriteFile(archivePath, archive, 0o600))

	passthrough, err := horde.NewInlineInputVolumeFromPath(archivePath)
	require.NoError(t, err)
	assert.Equal(t, vol.Contents, passthrough.Contents)

	_, err = horde.NewInlineInputVolumeFromPath(filepath.Join(dir, "missing"))
	assert.Error(t, err)
}

func unzipContents(t *testing.T, contents string) map[string]string {
	t.Helper()

	raw, err := base64.StdEncoding.DecodeString(contents)
	require.NoError(t, err)

	zr, err := zip.NewReader(bytes.NewReader(raw), int64(len(raw)))
	require.NoError(t, err)

	files := map[string]string{}
	for _, f := range zr.File {
		rc, err := f.Open()
		require.NoError(t, err)
		b, err := io.ReadAll(rc)
		require.NoError(t, err)
		require.NoError(t, rc.Close())
		files[f.Name] = string(b)
	}
	return files
}
