package builder

import (
	"context"

	"github.com/minipack/minipack/internal/builder"
	"github.com/minipack/minipack/internal/extract"
	"github.com/minipack/minipack/internal/hooks"
	"github.com/minipack/minipack/internal/logging"
	"github.com/minipack/minipack/internal/resolve"
	"github.com/minipack/minipack/internal/service"
	"github.com/minipack/minipack/internal/transform"
)

type (
	Options = builder.Options
	Entry   = builder.Entry
	Rule    = transform.Rule
	Result  = builder.Result
	Module  = builder.Module
	Chunk   = builder.Chunk

	Compiler  = service.Compiler
	Callback  = service.Callback
	AssetDiff = service.AssetDiff

	Hooks      = hooks.Hooks
	BuildInfo  = hooks.Build
	Plugin     = hooks.Plugin
	PluginFunc = hooks.PluginFunc
)

// Error types of a failed build.
type (
	FileReadError  = builder.FileReadError
	NotFoundError  = resolve.NotFoundError
	ExternalError  = resolve.ExternalError
	ParseError     = extract.ParseError
	TransformError = transform.Error
)

var (
	ErrModuleNotFound        = resolve.ErrModuleNotFound
	ErrUnregisteredTransform = transform.ErrUnregistered
)

const (
	KindFileRead           = builder.KindFileRead
	KindModuleNotFound     = builder.KindModuleNotFound
	KindParse              = builder.KindParse
	KindTransform          = builder.KindTransform
	KindExternalResolution = builder.KindExternalResolution
	KindInternal           = builder.KindInternal
)

// NewCompiler returns a compiler that logs nothing.
func NewCompiler(opts Options) *Compiler {
	return service.NewCompiler(opts, logging.NewNoOpLogger())
}

// Build runs one build in memory.
func Build(ctx context.Context, opts Options) (*Result, error) {
	return NewCompiler(opts).Compile(ctx)
}

// ErrorKind classifies a build error.
func ErrorKind(err error) string {
	return builder.ErrorKind(err)
}

// Transforms returns the names of the available transforms.
func Transforms() []string {
	return transform.Names()
}
