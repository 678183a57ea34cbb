// Package filemover implements the external file-mover collaborator of
// spec §4.5: given a fileset descriptor, relocate its files to another
// provider's root directory. The spec treats the file-mover as an
// out-of-scope external collaborator, "consumed through the interface
// in §4.5" — there is no ecosystem library in the example pack for
// cross-host file transfer, so the one concrete implementation here
// moves files on a shared or NFS-style filesystem path, which is what
// every locally-runnable deployment of this provider actually needs.
package filemover

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/kvfabric/kvfabric/pkg/errs"
	"github.com/kvfabric/kvfabric/pkg/types"
)

// Mover relocates a fileset to a destination root, optionally removing
// the source files once the copy is confirmed.
type Mover interface {
	Move(ctx context.Context, fs *types.FilesetDescriptor, dstRoot string, removeSrc bool) error
}

// LocalMover copies fileset files between paths reachable from this
// process — the common case for whole-database migration between
// providers sharing a volume or an NFS mount. dst_addr/dst_provider
// routing (spec §4.5's move(fileset, dst_addr, dst_provider, ...)) is
// handled one layer up, in pkg/migration, which resolves those to a
// concrete dstRoot before calling Move.
type LocalMover struct{}

// NewLocal constructs a LocalMover.
func NewLocal() *LocalMover { return &LocalMover{} }

// Move copies every file named in fs (or the entire fs.Root tree when
// fs.Files is empty, as LSM backends use it) into dstRoot, preserving
// relative paths, then removes the source files if removeSrc is set.
func (m *LocalMover) Move(ctx context.Context, fs *types.FilesetDescriptor, dstRoot string, removeSrc bool) error {
	if fs == nil {
		return errs.New(errs.FileMove)
	}
	if err := os.MkdirAll(dstRoot, 0o755); err != nil {
		return errs.Wrap(errs.FileMove, err)
	}

	names := fs.Files
	if len(names) == 0 {
		var err error
		names, err = walkRelative(fs.Root)
		if err != nil {
			return errs.Wrap(errs.FileMove, err)
		}
	}

	for _, name := range names {
		if err := ctx.Err(); err != nil {
			return errs.Wrap(errs.FileMove, err)
		}
		src := filepath.Join(fs.Root, name)
		dst := filepath.Join(dstRoot, name)
		if err := copyFile(src, dst); err != nil {
			return errs.Wrap(errs.FileMove, fmt.Errorf("copying %s: %w", name, err))
		}
	}

	if removeSrc {
		for _, name := range names {
			_ = os.Remove(filepath.Join(fs.Root, name))
		}
	}
	return nil
}

func walkRelative(root string) ([]string, error) {
	var out []string
	err := filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		out = append(out, rel)
		return nil
	})
	return out, err
}

func copyFile(src, dst string) error {
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return err
	}
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	defer out.Close()

	if _, err := io.Copy(out, in); err != nil {
		return err
	}
	return out.Sync()
}
