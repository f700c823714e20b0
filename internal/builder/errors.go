package builder

import (
	"errors"
	"fmt"

	"github.com/minipack/minipack/internal/extract"
	"github.com/minipack/minipack/internal/resolve"
	"github.com/minipack/minipack/internal/transform"
)

// FileReadError reports an entry or dependency that could not be read.
type FileReadError struct {
	Path string
	Err  error
}

func (e *FileReadError) Error() string {
	return fmt.Sprintf("failed to read module %s: %v", e.Path, e.Err)
}

func (e *FileReadError) Unwrap() error {
	return e.Err
}

const (
	KindFileRead           = "file_read"
	KindModuleNotFound     = "module_not_found"
	KindParse              = "parse"
	KindTransform          = "transform"
	KindExternalResolution = "external_resolution"
	KindInternal           = "internal"
)

// ErrorKind classifies a build error, for metrics labels and build stats.
func ErrorKind(err error) string {
	var (
		fr *FileReadError
		pe *extract.ParseError
		te *transform.Error
		ee *resolve.ExternalError
	)
	switch {
	case errors.As(err, &fr):
		return KindFileRead
	case errors.Is(err, resolve.ErrModuleNotFound):
		return KindModuleNotFound
	case errors.As(err, &pe):
		return KindParse
	case errors.As(err, &te):
		return KindTransform
	case errors.As(err, &ee):
		return KindExternalResolution
	default:
		return KindInternal
	}
}
