package archive

import (
	"fmt"
	"strings"
)

// Format is a package file format.
type Format string

const (
	FormatZip    Format = "zip"
	FormatTarGz  Format = "tar.gz"
	FormatTarZst Format = "tar.zst"
)

var formatAliases = map[string]Format{
	"zip":     FormatZip,
	"tar.gz":  FormatTarGz,
	"tgz":     FormatTarGz,
	"tar.zst": FormatTarZst,
	"tzst":    FormatTarZst,
	"zstd":    FormatTarZst,
}

// ParseFormat maps user input to a Format. Empty input selects zip.
func ParseFormat(raw string) (Format, error) {
	cleaned := strings.ToLower(strings.TrimSpace(raw))
	if cleaned == "" {
		return FormatZip, nil
	}
	if f, ok := formatAliases[cleaned]; ok {
		return f, nil
	}
	return "", fmt.Errorf("unsupported archive format %q (want zip, tar.gz or tar.zst)", raw)
}

// Ext returns the file extension without the leading dot.
func (f Format) Ext() string { return string(f) }
