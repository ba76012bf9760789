package convert

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/unkn0wn-root/devwebgen/internal/bundle"
	"github.com/unkn0wn-root/devwebgen/internal/collection"
	"github.com/unkn0wn-root/devwebgen/internal/devweb"
	"github.com/unkn0wn-root/devwebgen/internal/scriptwriter"
)

type Reader interface {
	Load(ctx context.Context, path string) (*collection.Collection, error)
	LoadEnvironment(path string) ([]collection.Variable, error)
}

type Generator interface {
	Generate(ctx context.Context, in devweb.Input) (*devweb.Script, error)
}

type Writer interface {
	WriteBundle(
		ctx context.Context,
		dir string,
		files []bundle.File,
		opts scriptwriter.Options,
	) ([]string, error)
}

// FileReader loads collections from disk. JSON documents are also checked
// against the structural schema; findings land in the collection warnings.
type FileReader struct{}

func (FileReader) Load(ctx context.Context, path string) (*collection.Collection, error) {
	coll, err := collection.Load(ctx, path)
	if err != nil {
		return nil, err
	}
	if strings.EqualFold(filepath.Ext(path), ".json") {
		if data, err := os.ReadFile(path); err == nil {
			coll.Warnings = append(coll.Warnings, collection.Validate(data)...)
		}
	}
	return coll, nil
}

func (FileReader) LoadEnvironment(path string) ([]collection.Variable, error) {
	return collection.LoadEnvironment(path)
}

type DiskWriter struct{}

func (DiskWriter) WriteBundle(
	ctx context.Context,
	dir string,
	files []bundle.File,
	opts scriptwriter.Options,
) ([]string, error) {
	return scriptwriter.WriteBundle(ctx, dir, files, opts)
}
