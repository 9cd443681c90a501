package archive

import (
	"archive/tar"
	"archive/zip"
	"compress/gzip"
	"context"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"time"
)

func ensureDir(path string) error {
	return os.MkdirAll(path, 0o755)
}

// writeArchive produces a real archive of the source at the destination,
// named by timestamp so repeated apply passes never clobber each other.
func (v *Verifier) writeArchive(ctx context.Context) (string, error) {
	stamp := time.Now().UTC().Format("20060102T150405Z")
	var name string
	switch v.policy.Format {
	case FormatZip:
		name = "fieldline-" + stamp + ".zip"
	case FormatTarGz:
		name = "fieldline-" + stamp + ".tar.gz"
	default:
		return "", fmt.Errorf("unsupported archive format: %q", v.policy.Format)
	}

	out := filepath.Join(v.policy.Destination, name)
	f, err := os.Create(out)
	if err != nil {
		return "", fmt.Errorf("creating archive %s: %w", out, err)
	}
	defer f.Close()

	switch v.policy.Format {
	case FormatZip:
		err = packZip(ctx, f, v.policy.Source)
	case FormatTarGz:
		err = packTarGz(ctx, f, v.policy.Source)
	}
	if err != nil {
		os.Remove(out)
		return "", fmt.Errorf("writing archive %s: %w", out, err)
	}
	return out, nil
}

func packZip(ctx context.Context, w io.Writer, source string) error {
	zw := zip.NewWriter(w)
	err := walkRegular(ctx, source, func(rel, path string, info fs.FileInfo) error {
		hdr, err := zip.FileInfoHeader(info)
		if err != nil {
			return err
		}
		hdr.Name = rel
		hdr.Method = zip.Deflate
		dst, err := zw.CreateHeader(hdr)
		if err != nil {
			return err
		}
		return copyFile(dst, path)
	})
	if err != nil {
		zw.Close()
		return err
	}
	return zw.Close()
}

func packTarGz(ctx context.Context, w io.Writer, source string) error {
	gzw := gzip.NewWriter(w)
	tw := tar.NewWriter(gzw)
	err := walkRegular(ctx, source, func(rel, path string, info fs.FileInfo) error {
		hdr, err := tar.FileInfoHeader(info, "")
		if err != nil {
			return err
		}
		hdr.Name = rel
		if err := tw.WriteHeader(hdr); err != nil {
			return err
		}
		return copyFile(tw, path)
	})
	if err != nil {
		tw.Close()
		gzw.Close()
		return err
	}
	if err := tw.Close(); err != nil {
		gzw.Close()
		return err
	}
	return gzw.Close()
}

func walkRegular(ctx context.Context, root string, fn func(rel, path string, info fs.FileInfo) error) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if d.IsDir() || !d.Type().IsRegular() {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		return fn(filepath.ToSlash(rel), path, info)
	})
}

func copyFile(dst io.Writer, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	_, err = io.Copy(dst, f)
	return err
}
