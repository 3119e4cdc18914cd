package archive

import (
	"context"
	"fmt"
	"io"

	"github.com/klauspost/compress/zip"
)

func writeZip(ctx context.Context, w io.Writer, srcDir string) error {
	zw := zip.NewWriter(w)
	err := walk(ctx, srcDir, func(e entry) error {
		hdr, err := zip.FileInfoHeader(e.info)
		if err != nil {
			return err
		}
		hdr.Name = e.rel
		switch {
		case e.info.IsDir():
			hdr.Name += "/"
			hdr.Method = zip.Store
		case e.link != "":
			hdr.Method = zip.Store
		default:
			hdr.Method = zip.Deflate
		}
		fw, err := zw.CreateHeader(hdr)
		if err != nil {
			return fmt.Errorf("zip header %s: %w", e.rel, err)
		}
		switch {
		case e.info.IsDir():
			return nil
		case e.link != "":
			_, err = io.WriteString(fw, e.link)
			return err
		default:
			return copyFile(fw, e.path)
		}
	})
	if err != nil {
		_ = zw.Close()
		return err
	}
	return zw.Close()
}
