package archive

import (
	"context"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/klauspost/compress/zip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"video-splitter/constant"
	"video-splitter/entities"
)

func readArchive(t *testing.T, path string) map[string][]byte {
	t.Helper()
	r, err := zip.OpenReader(path)
	require.NoError(t, err)
	defer r.Close()

	files := make(map[string][]byte)
	for _, f := range r.File {
		rc, err := f.Open()
		require.NoError(t, err)
		body, err := io.ReadAll(rc)
		require.NoError(t, err)
		rc.Close()
		files[f.Name] = body
	}
	return files
}

func TestPackageRoundTrip(t *testing.T) {
	src := t.TempDir()
	for _, name := range []string{"segment_000.mp4", "segment_001.mp4", "segment_002.mp4", "upload.mp4", "args.log"} {
		require.NoError(t, os.WriteFile(filepath.Join(src, name), []byte("data-"+name), 0o644))
	}
	zipPath := filepath.Join(t.TempDir(), "out.zip")
	doc := &entities.SegmentationMetadata{
		OriginalVideo:  "talk.mp4",
		TotalDuration:  250,
		SegmentCount:   99,
		ProcessingTime: time.Now(),
	}

	count, err := Package(context.Background(), src, zipPath, doc)
	require.NoError(t, err)
	assert.Equal(t, 3, count)

	files := readArchive(t, zipPath)
	assert.Len(t, files, 4)
	assert.Equal(t, []byte("data-segment_001.mp4"), files["segment_001.mp4"])
	assert.NotContains(t, files, "upload.mp4")

	var embedded entities.SegmentationMetadata
	require.NoError(t, json.Unmarshal(files[constant.MetadataFileName], &embedded))
	segmentFiles := 0
	for name := range files {
		if strings.HasPrefix(name, constant.SegmentPrefix) {
			segmentFiles++
		}
	}
	assert.Equal(t, segmentFiles, embedded.SegmentCount)
	assert.Equal(t, "talk.mp4", embedded.OriginalVideo)

	_, err = os.Stat(zipPath + ".part")
	assert.True(t, os.IsNotExist(err))
}

func TestPackageMissingSourceDir(t *testing.T) {
	zipPath := filepath.Join(t.TempDir(), "out.zip")

	_, err := Package(context.Background(), filepath.Join(t.TempDir(), "missing"), zipPath, &entities.SegmentationMetadata{})

	require.Error(t, err)
	_, statErr := os.Stat(zipPath)
	assert.True(t, os.IsNotExist(statErr))
}
