package collection

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/unkn0wn-root/devwebgen/internal/errdef"
)

const (
	bruExt          = ".bru"
	brunoConfigFile = "bruno.json"
	collectionBru   = "collection.bru"
	folderBru       = "folder.bru"
	environmentsDir = "environments"
)

// Load reads a collection from a file or a Bruno collection directory.
// JSON files go to the JSON reader and .bru files to the text reader; other
// extensions are sniffed.
func Load(ctx context.Context, path string) (*Collection, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	info, err := os.Stat(path)
	if err != nil {
		return nil, errdef.Wrap(errdef.CodeFilesystem, err, "stat %s", path)
	}
	if info.IsDir() {
		return loadBruDir(ctx, path)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errdef.Wrap(errdef.CodeFilesystem, err, "read %s", path)
	}
	var format Format
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		format = FormatPostman
	case bruExt:
		format = FormatBru
	}
	coll, err := Decode(data, format)
	if err != nil {
		return nil, errdef.Wrap(errdef.CodeParse, err, "parse %s", filepath.Base(path))
	}
	if format == FormatBru && coll.Name == defaultRequestName {
		coll.Name = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}
	return coll, nil
}

type bruEntry struct {
	file *bruFile
	base string
}

// loadBruDir walks a Bruno collection directory. Within a directory requests
// are ordered by meta seq then file name, followed by subdirectories by name.
func loadBruDir(ctx context.Context, root string) (*Collection, error) {
	coll := &Collection{Name: filepath.Base(root), Format: FormatBru}
	if data, err := os.ReadFile(filepath.Join(root, brunoConfigFile)); err == nil {
		var cfg struct {
			Name string `json:"name"`
		}
		if json.Unmarshal(data, &cfg) == nil && cfg.Name != "" {
			coll.Name = cfg.Name
		}
	}
	if data, err := os.ReadFile(filepath.Join(root, collectionBru)); err == nil {
		f := parseBru(data)
		coll.Variables = append(coll.Variables, f.vars...)
		coll.Scripts = appendScripts(coll.Scripts, f.preScript, f.postScript, f.tests)
		if block := f.collectionAuth(); block != nil {
			coll.Auth = block
			coll.AuthOwners = append(coll.AuthOwners, AuthOwner{
				Name:  string(AuthLevelCollection),
				Level: AuthLevelCollection,
				Block: block,
			})
		}
	}
	if err := walkBruDir(ctx, coll, root, "", 0); err != nil {
		return nil, err
	}
	if len(coll.Requests) == 0 {
		return nil, errdef.New(errdef.CodeParse, "no .bru requests under %s", root)
	}
	return coll, nil
}

func walkBruDir(ctx context.Context, coll *Collection, dir, folder string, depth int) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return errdef.Wrap(errdef.CodeFilesystem, err, "read dir %s", dir)
	}
	var (
		files []bruEntry
		dirs  []string
	)
	for _, e := range entries {
		name := e.Name()
		if strings.HasPrefix(name, ".") {
			continue
		}
		if e.IsDir() {
			if depth == 0 && name == environmentsDir {
				continue
			}
			dirs = append(dirs, name)
			continue
		}
		if !strings.EqualFold(filepath.Ext(name), bruExt) || name == collectionBru {
			continue
		}
		data, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			return errdef.Wrap(errdef.CodeFilesystem, err, "read %s", name)
		}
		f := parseBru(data)
		if name == folderBru {
			coll.Scripts = appendScripts(coll.Scripts, f.preScript, f.postScript, f.tests)
			if block := f.collectionAuth(); block != nil {
				coll.AuthOwners = append(coll.AuthOwners, AuthOwner{
					Name:   filepath.Base(dir),
					Folder: parentFolder(folder),
					Level:  AuthLevelFolder,
					Block:  block,
				})
			}
			continue
		}
		files = append(files, bruEntry{file: f, base: strings.TrimSuffix(name, filepath.Ext(name))})
	}
	sort.SliceStable(files, func(i, j int) bool {
		if files[i].file.seq != files[j].file.seq {
			return files[i].file.seq < files[j].file.seq
		}
		return files[i].base < files[j].base
	})
	for _, e := range files {
		if e.file.name == "" {
			e.file.name = e.base
		}
		req := e.file.request(len(coll.Requests), folder, depth)
		coll.Variables = append(coll.Variables, e.file.vars...)
		if req.Auth != nil {
			coll.AuthOwners = append(coll.AuthOwners, AuthOwner{
				Name:   req.Name,
				Folder: folder,
				Level:  AuthLevelRequest,
				Block:  req.Auth,
			})
		}
		coll.Requests = append(coll.Requests, req)
	}
	sort.Strings(dirs)
	for _, name := range dirs {
		sub := name
		if folder != "" {
			sub = folder + "/" + name
		}
		if err := walkBruDir(ctx, coll, filepath.Join(dir, name), sub, depth+1); err != nil {
			return err
		}
	}
	return nil
}

func parentFolder(folder string) string {
	if i := strings.LastIndex(folder, "/"); i >= 0 {
		return folder[:i]
	}
	return ""
}

func appendScripts(dst []string, scripts ...string) []string {
	for _, s := range scripts {
		if strings.TrimSpace(s) != "" {
			dst = append(dst, s)
		}
	}
	return dst
}
