package action

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"

	"github.com/docker/go-units"
	"github.com/lonitor/lonitor/internal/errors"
	"golang.org/x/sys/unix"
)

const defaultDropCaches = "/proc/sys/vm/drop_caches"

// RAMCache drops the kernel page cache.
type RAMCache interface {
	Drop(ctx context.Context) error
}

// DropCaches flushes dirty pages and writes 3 (page cache, dentries, inodes)
// to the drop_caches control file. Needs root.
type DropCaches struct {
	Path string
	sync func()
}

func (d *DropCaches) Drop(ctx context.Context) error {
	path := d.Path
	if path == "" {
		path = defaultDropCaches
	}
	if err := ctx.Err(); err != nil {
		return errors.New().Wrap(errors.ErrTimeout, err)
	}

	f, err := os.OpenFile(path, os.O_WRONLY, 0)
	if err != nil {
		return classifyWrite(err)
	}
	defer f.Close()

	if d.sync != nil {
		d.sync()
	} else {
		unix.Sync()
	}
	if _, err := f.WriteString("3\n"); err != nil {
		return classifyWrite(err)
	}
	return nil
}

// StorageCache clears on-disk cache directories.
type StorageCache interface {
	Clear(ctx context.Context) (ClearResult, error)
}

type ClearResult struct {
	Removed int
	Freed   int64
	Denied  int
}

func (r ClearResult) String() string {
	return "removed " + strconv.Itoa(r.Removed) + " entries, freed " + units.HumanSize(float64(r.Freed))
}

// CacheDirs removes the entries inside each directory, keeping the directory.
// Missing directories are skipped.
type CacheDirs struct {
	Dirs []string
}

func (c *CacheDirs) Clear(ctx context.Context) (ClearResult, error) {
	errFactory := errors.New()

	var res ClearResult
	if len(c.Dirs) == 0 {
		return res, errFactory.WithMessage(errors.ErrUnsupported, "no cache directories configured")
	}
	for _, dir := range c.Dirs {
		if !filepath.IsAbs(dir) || filepath.Clean(dir) == "/" {
			return res, errFactory.WithData(errors.ErrInvalidArgument, dir)
		}
	}

	var lastDenied error
	for _, dir := range c.Dirs {
		entries, err := os.ReadDir(dir)
		if os.IsNotExist(err) {
			continue
		}
		if err != nil {
			if os.IsPermission(err) {
				res.Denied++
				lastDenied = err
				continue
			}
			return res, errFactory.Wrap(errors.ErrExternalTool, err).WithData(res.String())
		}
		for _, e := range entries {
			if err := ctx.Err(); err != nil {
				return res, errFactory.Wrap(errors.ErrTimeout, err).WithData(res.String())
			}
			path := filepath.Join(dir, e.Name())
			size := treeSize(path)
			if err := os.RemoveAll(path); err != nil {
				if os.IsPermission(err) {
					res.Denied++
					lastDenied = err
					continue
				}
				return res, errFactory.Wrap(errors.ErrExternalTool, err).WithData(res.String())
			}
			res.Removed++
			res.Freed += size
		}
	}
	if res.Denied > 0 {
		return res, errFactory.Wrap(errors.ErrPermissionDenied, lastDenied).
			WithData(res.String() + ", " + strconv.Itoa(res.Denied) + " denied")
	}
	return res, nil
}

func treeSize(root string) int64 {
	var total int64
	_ = filepath.WalkDir(root, func(_ string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if d.Type().IsRegular() {
			if info, err := d.Info(); err == nil {
				total += info.Size()
			}
		}
		return nil
	})
	return total
}
