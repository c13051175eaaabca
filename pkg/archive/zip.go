package archive

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/zip"
	"github.com/rs/zerolog"
	"video-splitter/constant"
	"video-splitter/entities"
)

// Package bundles every segment file under sourceDir plus the metadata document
// into a deflated zip at zipPath. All entries sit at the archive root. Files not
// named segment_* are left out. The document's SegmentCount is set to the number
// of segment entries written. Returns that count.
func Package(ctx context.Context, sourceDir, zipPath string, doc *entities.SegmentationMetadata) (int, error) {
	partPath := zipPath + ".part"
	out, err := os.Create(partPath)
	if err != nil {
		return 0, fmt.Errorf("create archive: %w", err)
	}

	written, err := writeArchive(out, sourceDir, doc)
	if closeErr := out.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		_ = os.Remove(partPath)
		return 0, err
	}

	if err := os.Rename(partPath, zipPath); err != nil {
		_ = os.Remove(partPath)
		return 0, fmt.Errorf("finalize archive: %w", err)
	}

	zerolog.Ctx(ctx).Info().Str("archive", zipPath).Int("segment_count", written).Msg("archive created")
	return written, nil
}

func writeArchive(out io.Writer, sourceDir string, doc *entities.SegmentationMetadata) (int, error) {
	zw := zip.NewWriter(out)
	written := 0

	err := filepath.WalkDir(sourceDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !strings.HasPrefix(d.Name(), constant.SegmentPrefix) {
			return nil
		}
		if err := addFile(zw, path, d.Name()); err != nil {
			return fmt.Errorf("add %s: %w", d.Name(), err)
		}
		written++
		return nil
	})
	if err != nil {
		return 0, err
	}

	doc.SegmentCount = written
	body, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return 0, fmt.Errorf("encode metadata: %w", err)
	}
	w, err := zw.CreateHeader(&zip.FileHeader{Name: constant.MetadataFileName, Method: zip.Deflate})
	if err != nil {
		return 0, err
	}
	if _, err := w.Write(body); err != nil {
		return 0, err
	}

	if err := zw.Close(); err != nil {
		return 0, fmt.Errorf("close archive: %w", err)
	}
	return written, nil
}

func addFile(zw *zip.Writer, path, name string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return err
	}
	header, err := zip.FileInfoHeader(info)
	if err != nil {
		return err
	}
	header.Name = name
	header.Method = zip.Deflate

	w, err := zw.CreateHeader(header)
	if err != nil {
		return err
	}
	_, err = io.Copy(w, f)
	return err
}
