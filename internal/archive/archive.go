// Package archive packs snapshot directories into files in the delivery area.
//
// Packages are named {name}-{tag}.{ext}. They are written in a staging
// directory and renamed into the delivery area once complete, so a package
// file in the delivery area is always whole.
package archive

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	shiperrors "git.home.luguber.info/inful/tagshipper/internal/errors"
	"git.home.luguber.info/inful/tagshipper/internal/logfields"
)

// PartialSuffix marks archives that are still being written.
const PartialSuffix = ".partial"

// maxNameAttempts bounds the search for a free package name.
const maxNameAttempts = 1000

// Package is a completed archive waiting for delivery.
type Package struct {
	Tag    string
	Path   string
	Format Format
	Size   int64
}

// Name returns the package file name.
func (p Package) Name() string { return filepath.Base(p.Path) }

// Archiver writes packages for one project into one directory.
type Archiver struct {
	dir     string
	staging string
	name    string
	format  Format
}

// New returns an Archiver writing name-prefixed packages of format into dir.
// Packages are assembled in staging, which must be on the same filesystem
// as dir and private to this Archiver.
func New(dir, staging, name string, format Format) *Archiver {
	if format == "" {
		format = FormatZip
	}
	return &Archiver{dir: dir, staging: staging, name: name, format: format}
}

// Format returns the package format.
func (a *Archiver) Format() Format { return a.format }

// Dir returns the delivery area.
func (a *Archiver) Dir() string { return a.dir }

// FileName returns the package file name for tag. Path separators in tag are
// replaced so the package always lands directly in the delivery area.
func (a *Archiver) FileName(tag string) string {
	return fmt.Sprintf("%s-%s.%s", a.name, flatten(tag), a.format.Ext())
}

func flatten(tag string) string {
	return strings.NewReplacer("/", "_", "\\", "_").Replace(tag)
}

// destination returns a free path in the delivery area for tag. A package
// that is still waiting there is never replaced: flattened names can collide
// ("a/b" and "a_b"), so a numbered name is chosen instead.
func (a *Archiver) destination(tag string) (string, error) {
	final := filepath.Join(a.dir, a.FileName(tag))
	if _, err := os.Lstat(final); os.IsNotExist(err) {
		return final, nil
	} else if err != nil {
		return "", err
	}
	for n := 2; n <= maxNameAttempts; n++ {
		candidate := filepath.Join(a.dir, fmt.Sprintf("%s-%s-%d.%s", a.name, flatten(tag), n, a.format.Ext()))
		if _, err := os.Lstat(candidate); os.IsNotExist(err) {
			slog.Warn("Package name already pending, using numbered name",
				logfields.Tag(tag), logfields.File(filepath.Base(final)), slog.String("chosen", filepath.Base(candidate)))
			return candidate, nil
		} else if err != nil {
			return "", err
		}
	}
	return "", fmt.Errorf("no free package name for %s", filepath.Base(final))
}

// Archive packs srcDir for tag. Failures are archive-category ShipperErrors;
// no partial file is left behind.
func (a *Archiver) Archive(ctx context.Context, srcDir, tag string) (Package, error) {
	start := time.Now()
	final := filepath.Join(a.dir, a.FileName(tag))

	if err := os.MkdirAll(a.dir, 0o750); err != nil {
		return Package{}, shiperrors.ArchiveError(tag, final, fmt.Errorf("create delivery directory: %w", err))
	}
	if err := os.MkdirAll(a.staging, 0o750); err != nil {
		return Package{}, shiperrors.ArchiveError(tag, final, fmt.Errorf("create staging directory: %w", err))
	}

	tmp, err := os.CreateTemp(a.staging, a.FileName(tag)+".*"+PartialSuffix)
	if err != nil {
		return Package{}, shiperrors.ArchiveError(tag, final, err)
	}
	tmpPath := tmp.Name()
	fail := func(err error) (Package, error) {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
		return Package{}, shiperrors.ArchiveError(tag, final, err)
	}

	if err := a.write(ctx, tmp, srcDir); err != nil {
		return fail(err)
	}
	if err := tmp.Sync(); err != nil {
		return fail(err)
	}
	if err := tmp.Close(); err != nil {
		return fail(err)
	}
	if err := os.Chmod(tmpPath, 0o640); err != nil {
		return fail(err)
	}
	dest, err := a.destination(tag)
	if err != nil {
		return fail(err)
	}
	final = dest
	if err := os.Rename(tmpPath, final); err != nil {
		return fail(err)
	}

	info, err := os.Stat(final)
	if err != nil {
		return Package{}, shiperrors.ArchiveError(tag, final, err)
	}
	pkg := Package{Tag: tag, Path: final, Format: a.format, Size: info.Size()}
	slog.Info("Package created", logfields.Tag(tag), logfields.File(pkg.Name()), logfields.Bytes(pkg.Size), logfields.Since(start))
	return pkg, nil
}

func (a *Archiver) write(ctx context.Context, w io.Writer, srcDir string) error {
	switch a.format {
	case FormatZip:
		return writeZip(ctx, w, srcDir)
	case FormatTarGz:
		return writeTarGz(ctx, w, srcDir)
	case FormatTarZst:
		return writeTarZst(ctx, w, srcDir)
	default:
		return fmt.Errorf("unsupported archive format %q", a.format)
	}
}

// SweepPartial empties the staging directory of archives left half-written
// by an interrupted process.
func (a *Archiver) SweepPartial() (int, error) {
	entries, err := os.ReadDir(a.staging)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, err
	}
	removed := 0
	for _, e := range entries {
		path := filepath.Join(a.staging, e.Name())
		if err := os.RemoveAll(path); err != nil {
			return removed, err
		}
		slog.Warn("Removed partial package", logfields.Path(path))
		removed++
	}
	return removed, nil
}

// entry is one item of a snapshot walk.
type entry struct {
	rel  string // slash separated, relative to the root
	path string
	info fs.FileInfo
	link string // symlink target
}

// walk visits every directory, regular file and symlink below root in lexical order.
func walk(ctx context.Context, root string, visit func(entry) error) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if path == root {
			return nil
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		e := entry{rel: filepath.ToSlash(rel), path: path, info: info}
		switch mode := info.Mode(); {
		case mode.IsDir(), mode.IsRegular():
		case mode&fs.ModeSymlink != 0:
			if e.link, err = os.Readlink(path); err != nil {
				return err
			}
		default:
			slog.Debug("Skipping special file", logfields.Path(path))
			return nil
		}
		return visit(e)
	})
}

func copyFile(w io.Writer, path string) error {
	// #nosec G304 -- path comes from walking the snapshot directory
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer func() { _ = f.Close() }()
	_, err = io.Copy(w, f)
	return err
}
