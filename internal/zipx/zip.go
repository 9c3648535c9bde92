// Package zipx archives event directories for upload and computes the
// content digests that correlate archives with upload tickets.
package zipx

import (
	"archive/zip"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/klauspost/compress/flate"
	"github.com/spf13/afero"
)

// ArchiveDir zips every regular file under srcDir (recursively) into dstPath,
// preserving slash-separated relative paths as entry names, and returns the
// SHA-256 hex digest of the produced archive. The digest is computed while
// writing, so the archive is never re-read.
func ArchiveDir(fs afero.Fs, srcDir, dstPath string) (string, error) {
	info, err := fs.Stat(srcDir)
	if err != nil {
		return "", fmt.Errorf("stat %s: %w", srcDir, err)
	}
	if !info.IsDir() {
		return "", fmt.Errorf("%s is not a directory", srcDir)
	}

	out, err := fs.Create(dstPath)
	if err != nil {
		return "", fmt.Errorf("create archive %s: %w", dstPath, err)
	}

	h := sha256.New()
	zw := zip.NewWriter(io.MultiWriter(out, h))
	zw.RegisterCompressor(zip.Deflate, func(w io.Writer) (io.WriteCloser, error) {
		return flate.NewWriter(w, flate.BestSpeed)
	})

	walkErr := afero.Walk(fs, srcDir, func(path string, fi os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if fi.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(srcDir, path)
		if err != nil {
			return err
		}
		return addFile(fs, zw, path, filepath.ToSlash(rel), fi)
	})

	if cerr := zw.Close(); walkErr == nil {
		walkErr = cerr
	}
	if cerr := out.Close(); walkErr == nil {
		walkErr = cerr
	}
	if walkErr != nil {
		_ = fs.Remove(dstPath)
		return "", fmt.Errorf("archive %s: %w", srcDir, walkErr)
	}

	return hex.EncodeToString(h.Sum(nil)), nil
}

func addFile(fs afero.Fs, zw *zip.Writer, path, name string, fi os.FileInfo) error {
	hdr, err := zip.FileInfoHeader(fi)
	if err != nil {
		return err
	}
	hdr.Name = name
	hdr.Method = zip.Deflate

	w, err := zw.CreateHeader(hdr)
	if err != nil {
		return err
	}

	f, err := fs.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	_, err = io.Copy(w, f)
	return err
}

// FileDigest returns the SHA-256 hex digest of the file at path.
func FileDigest(fs afero.Fs, path string) (string, error) {
	f, err := fs.Open(path)
	if err != nil {
		return "", fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", fmt.Errorf("hash %s: %w", path, err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
