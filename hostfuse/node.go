package hostfuse

import (
	"os"
	"path"
	"syscall"

	"bazil.org/fuse"
	fusefs "bazil.org/fuse/fs"
	"golang.org/x/net/context"

	"github.com/eriq-augustine/vaultdrive/drivecore"
	"github.com/eriq-augustine/vaultdrive/metadata"
	"github.com/eriq-augustine/vaultdrive/util"
)

// BlockSize is the block size reported to the host, matching the teacher's
// FUSE_BLOCKSIZE (bin/elfs-fuse/main.go).
const BlockSize = 512

// Node is one directory entry (file or directory) as seen by the host,
// generalized from the teacher's single fuseDirent type (which only ever
// served a read-only tree) into a node that also handles creation,
// deletion, and rename.
type Node struct {
	core *drivecore.Core
	path string
	meta *metadata.MetaData
}

var _ fusefs.Node = (*Node)(nil)

// Attr fills out the host-facing attributes for this entry.
func (this *Node) Attr(ctx context.Context, attr *fuse.Attr) error {
	attr.Inode = 0
	attr.Size = this.meta.EndOfFile
	attr.Blocks = util.CeilUint64(float64(this.meta.EndOfFile) / BlockSize)
	attr.Atime = this.meta.LastAccessTime
	attr.Mtime = this.meta.LastWriteTime
	attr.Ctime = this.meta.CreationTime
	attr.Crtime = this.meta.CreationTime
	attr.Nlink = this.meta.Nlink
	attr.BlockSize = BlockSize

	if this.meta.IsDirectory() {
		attr.Mode = os.ModeDir | 0755
	} else {
		attr.Mode = 0644
		if this.meta.Attributes&metadata.AttrReadOnly != 0 {
			attr.Mode = 0444
		}
	}

	return nil
}

var _ fusefs.NodeStringLookuper = (*Node)(nil)

// Lookup resolves a single named child, matching the teacher's
// fuseDirent.Lookup.
func (this *Node) Lookup(ctx context.Context, name string) (fusefs.Node, error) {
	if !this.meta.IsDirectory() {
		return nil, fuse.ENOENT
	}

	childPath := path.Join(this.path, name)

	meta, err := this.core.GetFileInfo(childPath)
	if err != nil {
		return nil, translateError(err)
	}

	return &Node{core: this.core, path: childPath, meta: meta}, nil
}

var _ fusefs.HandleReadDirAller = (*Node)(nil)

// ReadDirAll lists every non-hidden child, matching the teacher's
// fuseDirent.ReadDirAll but backed by a masked enumeration instead of a
// flat List call.
func (this *Node) ReadDirAll(ctx context.Context) ([]fuse.Dirent, error) {
	if !this.meta.IsDirectory() {
		return nil, fuse.ENOENT
	}

	enumID, err := this.core.BeginEnumeration(this.path, "*")
	if err != nil {
		return nil, translateError(err)
	}
	defer this.core.CloseEnumeration(enumID)

	entries := make([]fuse.Dirent, 0)
	for {
		meta, ok, err := this.core.NextEnumeration(enumID)
		if err != nil {
			return nil, translateError(err)
		}
		if !ok {
			break
		}

		direntType := fuse.DT_File
		if meta.IsDirectory() {
			direntType = fuse.DT_Dir
		}

		entries = append(entries, fuse.Dirent{
			Inode: 0,
			Type:  direntType,
			Name:  meta.Name,
		})
	}

	return entries, nil
}

var _ fusefs.NodeCreater = (*Node)(nil)

// Create makes a new file inside this directory and opens it for writing.
func (this *Node) Create(ctx context.Context, req *fuse.CreateRequest, resp *fuse.CreateResponse) (
	fusefs.Node, fusefs.Handle, error) {
	childPath := path.Join(this.path, req.Name)

	meta, err := this.core.Create(childPath, false)
	if err != nil {
		return nil, nil, translateError(err)
	}

	handle, err := this.core.Open(childPath)
	if err != nil {
		return nil, nil, translateError(err)
	}

	node := &Node{core: this.core, path: childPath, meta: meta}
	return node, &FileHandle{core: this.core, node: node, handle: handle}, nil
}

var _ fusefs.NodeMkdirer = (*Node)(nil)

// Mkdir creates a new subdirectory inside this directory.
func (this *Node) Mkdir(ctx context.Context, req *fuse.MkdirRequest) (fusefs.Node, error) {
	childPath := path.Join(this.path, req.Name)

	meta, err := this.core.Create(childPath, true)
	if err != nil {
		return nil, translateError(err)
	}

	return &Node{core: this.core, path: childPath, meta: meta}, nil
}

var _ fusefs.NodeRemover = (*Node)(nil)

// Remove deletes a child file or (empty) directory.
func (this *Node) Remove(ctx context.Context, req *fuse.RemoveRequest) error {
	childPath := path.Join(this.path, req.Name)

	ok, err := this.core.CanFileBeDeleted(childPath)
	if err != nil {
		return translateError(err)
	}
	if !ok {
		return fuse.Errno(syscall.ENOTEMPTY)
	}

	if err := this.core.Delete(childPath); err != nil {
		return translateError(err)
	}

	return nil
}

var _ fusefs.NodeRenamer = (*Node)(nil)

// Rename moves/renames a child of this directory into newDir.
func (this *Node) Rename(ctx context.Context, req *fuse.RenameRequest, newDir fusefs.Node) error {
	destination, ok := newDir.(*Node)
	if !ok {
		return fuse.EIO
	}

	oldPath := path.Join(this.path, req.OldName)
	newPath := path.Join(destination.path, req.NewName)

	if _, err := this.core.RenameOrMove(oldPath, newPath); err != nil {
		return translateError(err)
	}

	return nil
}

var _ fusefs.NodeOpener = (*Node)(nil)

// Open opens this node's content for reading and/or writing.
func (this *Node) Open(ctx context.Context, req *fuse.OpenRequest, resp *fuse.OpenResponse) (
	fusefs.Handle, error) {
	if this.meta.IsDirectory() {
		return nil, fuse.Errno(syscall.EISDIR)
	}

	handle, err := this.core.Open(this.path)
	if err != nil {
		return nil, translateError(err)
	}

	return &FileHandle{core: this.core, node: this, handle: handle}, nil
}

var _ fusefs.NodeSetattrer = (*Node)(nil)

// Setattr applies a size change (truncate) requested outside of an open
// file handle's own Setattr path.
func (this *Node) Setattr(ctx context.Context, req *fuse.SetattrRequest, resp *fuse.SetattrResponse) error {
	if !req.Valid.Size() {
		return nil
	}

	handle, err := this.core.Open(this.path)
	if err != nil {
		return translateError(err)
	}

	if err := this.core.SetAllocationSize(handle, req.Size); err != nil {
		return translateError(err)
	}

	return translateError(this.core.Close(handle))
}

