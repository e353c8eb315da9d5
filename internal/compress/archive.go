package compress

import (
	"fmt"
	"io"
	"strings"
)

// Archive formats understood by NewArchiveWriter.
const (
	FormatZip = "zip"
	FormatTar = "tar"
)

var contentTypes = map[string]string{
	FormatZip: "application/zip",
	FormatTar: "application/x-tar",
}

// ContentType returns the media type of an archive format.
func ContentType(format string) (string, bool) {
	ct, ok := contentTypes[strings.ToLower(format)]
	return ct, ok
}

// NewArchiveWriter wraps w so that written bytes become fileName inside an
// archive of the given format.
func NewArchiveWriter(w io.Writer, format, fileName string) (io.WriteCloser, error) {
	switch strings.ToLower(format) {
	case FormatZip:
		return NewZipWriter(w, fileName)
	case FormatTar:
		return NewTarWriter(w, fileName), nil
	default:
		return nil, fmt.Errorf("unsupported archive type %q", format)
	}
}
