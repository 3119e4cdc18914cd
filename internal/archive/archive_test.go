package archive

import (
	"archive/tar"
	"context"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"testing"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zip"
	"github.com/klauspost/compress/zstd"
	"github.com/stretchr/testify/require"

	shiperrors "git.home.luguber.info/inful/tagshipper/internal/errors"
)

func makeTree(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	files := map[string]string{
		"README.md":       "# project",
		"docs/guide.md":   "guide",
		"docs/deep/x.txt": "deep",
		"bin/run.sh":      "#!/bin/sh\n",
		"empty-dir/.keep": "",
	}
	for name, content := range files {
		p := filepath.Join(root, filepath.FromSlash(name))
		require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o750))
		require.NoError(t, os.WriteFile(p, []byte(content), 0o600))
	}
	require.NoError(t, os.Chmod(filepath.Join(root, "bin", "run.sh"), 0o700))
	if runtime.GOOS != "windows" {
		require.NoError(t, os.Symlink("README.md", filepath.Join(root, "link.md")))
	}
	return root
}

// readBack returns name -> content for regular files and name -> "->target" for symlinks.
func readBack(t *testing.T, pkg Package) map[string]string {
	t.Helper()
	out := map[string]string{}
	switch pkg.Format {
	case FormatZip:
		zr, err := zip.OpenReader(pkg.Path)
		require.NoError(t, err)
		defer func() { _ = zr.Close() }()
		for _, f := range zr.File {
			if f.FileInfo().IsDir() {
				out[f.Name] = "<dir>"
				continue
			}
			rc, err := f.Open()
			require.NoError(t, err)
			data, err := io.ReadAll(rc)
			require.NoError(t, err)
			_ = rc.Close()
			if f.Mode()&os.ModeSymlink != 0 {
				out[f.Name] = "->" + string(data)
				continue
			}
			out[f.Name] = string(data)
		}
	default:
		fh, err := os.Open(pkg.Path)
		require.NoError(t, err)
		defer func() { _ = fh.Close() }()
		var r io.Reader
		if pkg.Format == FormatTarGz {
			gz, err := gzip.NewReader(fh)
			require.NoError(t, err)
			r = gz
		} else {
			zr, err := zstd.NewReader(fh)
			require.NoError(t, err)
			defer zr.Close()
			r = zr
		}
		tr := tar.NewReader(r)
		for {
			hdr, err := tr.Next()
			if err == io.EOF {
				break
			}
			require.NoError(t, err)
			switch hdr.Typeflag {
			case tar.TypeDir:
				out[hdr.Name] = "<dir>"
			case tar.TypeSymlink:
				out[hdr.Name] = "->" + hdr.Linkname
			default:
				data, err := io.ReadAll(tr)
				require.NoError(t, err)
				out[hdr.Name] = string(data)
			}
		}
	}
	return out
}

func TestArchive_AllFormats(t *testing.T) {
	for _, format := range []Format{FormatZip, FormatTarGz, FormatTarZst} {
		t.Run(string(format), func(t *testing.T) {
			src := makeTree(t)
			root := t.TempDir()
			dest, staging := filepath.Join(root, "to_send"), filepath.Join(root, ".partial")

			pkg, err := New(dest, staging, "proj", format).Archive(context.Background(), src, "v1.0")
			require.NoError(t, err)
			require.Equal(t, filepath.Join(dest, "proj-v1.0."+string(format)), pkg.Path)
			require.Equal(t, "v1.0", pkg.Tag)
			require.Positive(t, pkg.Size)

			contents := readBack(t, pkg)
			require.Equal(t, "# project", contents["README.md"])
			require.Equal(t, "guide", contents["docs/guide.md"])
			require.Equal(t, "deep", contents["docs/deep/x.txt"])
			require.Equal(t, "<dir>", contents["docs/"])
			require.Contains(t, contents, "empty-dir/.keep")
			if runtime.GOOS != "windows" {
				require.Equal(t, "->README.md", contents["link.md"])
			}

			entries, err := os.ReadDir(dest)
			require.NoError(t, err)
			require.Len(t, entries, 1, "only the finished package may be visible")
			staged, err := os.ReadDir(staging)
			require.NoError(t, err)
			require.Empty(t, staged)
		})
	}
}

func TestArchive_ZipKeepsExecutableBit(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("no unix modes")
	}
	src := makeTree(t)
	pkg, err := New(t.TempDir(), t.TempDir(), "proj", FormatZip).Archive(context.Background(), src, "v1")
	require.NoError(t, err)

	zr, err := zip.OpenReader(pkg.Path)
	require.NoError(t, err)
	defer func() { _ = zr.Close() }()
	for _, f := range zr.File {
		if f.Name == "bin/run.sh" {
			require.NotZero(t, f.Mode().Perm()&0o100)
			return
		}
	}
	t.Fatal("bin/run.sh missing from archive")
}

func TestArchive_EntriesAreRelative(t *testing.T) {
	src := makeTree(t)
	pkg, err := New(t.TempDir(), t.TempDir(), "proj", FormatTarGz).Archive(context.Background(), src, "v1")
	require.NoError(t, err)
	names := make([]string, 0)
	for n := range readBack(t, pkg) {
		names = append(names, n)
		require.False(t, filepath.IsAbs(n), n)
		require.NotContains(t, n, filepath.Base(src))
	}
	sort.Strings(names)
	require.Equal(t, "README.md", names[0])
}

func TestArchive_FlattensSlashTags(t *testing.T) {
	a := New(t.TempDir(), t.TempDir(), "proj", FormatZip)
	require.Equal(t, "proj-release_2.0.zip", a.FileName("release/2.0"))
	pkg, err := a.Archive(context.Background(), makeTree(t), "release/2.0")
	require.NoError(t, err)
	require.Equal(t, a.Dir(), filepath.Dir(pkg.Path))
}

func TestArchive_CollidingNamesDoNotReplacePendingPackage(t *testing.T) {
	a := New(t.TempDir(), t.TempDir(), "proj", FormatZip)
	src := makeTree(t)

	first, err := a.Archive(context.Background(), src, "a/b")
	require.NoError(t, err)
	second, err := a.Archive(context.Background(), src, "a_b")
	require.NoError(t, err)

	require.Equal(t, "proj-a_b.zip", first.Name())
	require.Equal(t, "proj-a_b-2.zip", second.Name())
	require.FileExists(t, first.Path)
	require.FileExists(t, second.Path)

	third, err := a.Archive(context.Background(), src, "a/b")
	require.NoError(t, err)
	require.Equal(t, "proj-a_b-3.zip", third.Name())
}

func TestArchive_FailureLeavesNothing(t *testing.T) {
	dest, staging := t.TempDir(), t.TempDir()
	_, err := New(dest, staging, "proj", FormatZip).Archive(context.Background(), filepath.Join(t.TempDir(), "missing"), "v1")
	require.Error(t, err)
	require.True(t, shiperrors.IsCategory(err, shiperrors.CategoryArchive))
	require.Equal(t, shiperrors.ScopeTag, shiperrors.ScopeOf(err))

	for _, dir := range []string{dest, staging} {
		entries, err := os.ReadDir(dir)
		require.NoError(t, err)
		require.Empty(t, entries, dir)
	}
}

func TestArchive_CanceledContext(t *testing.T) {
	dest := t.TempDir()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := New(dest, t.TempDir(), "proj", FormatTarZst).Archive(ctx, makeTree(t), "v1")
	require.Error(t, err)
	entries, _ := os.ReadDir(dest)
	require.Empty(t, entries)
}

func TestArchive_UnwritableDestination(t *testing.T) {
	blocker := filepath.Join(t.TempDir(), "file")
	require.NoError(t, os.WriteFile(blocker, nil, 0o600))
	_, err := New(filepath.Join(blocker, "to_send"), t.TempDir(), "proj", FormatZip).Archive(context.Background(), makeTree(t), "v1")
	require.True(t, shiperrors.IsCategory(err, shiperrors.CategoryArchive))
}

func TestSweepPartial(t *testing.T) {
	dest, staging := t.TempDir(), t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(staging, "proj-v1.zip.123.partial"), []byte("x"), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dest, "notes.partial"), []byte("x"), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dest, "proj-v0.zip"), []byte("x"), 0o600))

	a := New(dest, staging, "proj", FormatZip)
	n, err := a.SweepPartial()
	require.NoError(t, err)
	require.Equal(t, 1, n)
	require.FileExists(t, filepath.Join(dest, "proj-v0.zip"))
	require.FileExists(t, filepath.Join(dest, "notes.partial"), "the delivery area is left to the drain")

	n, err = New(dest, filepath.Join(staging, "missing"), "proj", FormatZip).SweepPartial()
	require.NoError(t, err)
	require.Zero(t, n)
}

func TestParseFormat(t *testing.T) {
	for in, want := range map[string]Format{"": FormatZip, "ZIP": FormatZip, "tgz": FormatTarGz, " tar.gz ": FormatTarGz, "zstd": FormatTarZst, "tar.zst": FormatTarZst} {
		got, err := ParseFormat(in)
		require.NoError(t, err, in)
		require.Equal(t, want, got, in)
	}
	_, err := ParseFormat("rar")
	require.Error(t, err)
}

func TestNew_DefaultFormat(t *testing.T) {
	require.Equal(t, FormatZip, New("d", "s", "p", "").Format())
}
