package archive

import (
	"archive/tar"
	"context"
	"fmt"
	"io"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
)

func writeTarGz(ctx context.Context, w io.Writer, srcDir string) error {
	gz := gzip.NewWriter(w)
	if err := writeTar(ctx, gz, srcDir); err != nil {
		_ = gz.Close()
		return err
	}
	return gz.Close()
}

func writeTarZst(ctx context.Context, w io.Writer, srcDir string) error {
	zw, err := zstd.NewWriter(w)
	if err != nil {
		return err
	}
	if err := writeTar(ctx, zw, srcDir); err != nil {
		_ = zw.Close()
		return err
	}
	return zw.Close()
}

func writeTar(ctx context.Context, w io.Writer, srcDir string) error {
	tw := tar.NewWriter(w)
	err := walk(ctx, srcDir, func(e entry) error {
		hdr, err := tar.FileInfoHeader(e.info, e.link)
		if err != nil {
			return err
		}
		hdr.Name = e.rel
		if e.info.IsDir() {
			hdr.Name += "/"
		}
		hdr.Uname, hdr.Gname = "", ""
		hdr.Uid, hdr.Gid = 0, 0
		if err := tw.WriteHeader(hdr); err != nil {
			return fmt.Errorf("tar header %s: %w", e.rel, err)
		}
		if !e.info.Mode().IsRegular() {
			return nil
		}
		return copyFile(tw, e.path)
	})
	if err != nil {
		_ = tw.Close()
		return err
	}
	return tw.Close()
}
