package hostfuse

import (
	"bazil.org/fuse"
	fusefs "bazil.org/fuse/fs"
	"golang.org/x/net/context"

	"github.com/eriq-augustine/vaultdrive/drivecore"
)

// FS is the fs.FS root implementation, generalized from the teacher's
// fuseFS (bin/elfs-fuse/main.go) to a full read/write filesystem.
type FS struct {
	core *drivecore.Core
}

var _ fusefs.FS = (*FS)(nil)

// Root returns the node for the drive's root directory.
func (this *FS) Root() (fusefs.Node, error) {
	meta, err := this.core.GetFileInfo("/")
	if err != nil {
		return nil, translateError(err)
	}

	return &Node{core: this.core, path: "/", meta: meta}, nil
}

var _ fusefs.FSStatfser = (*FS)(nil)

// Statfs reports the volume_size callback's total/free pair.
func (this *FS) Statfs(ctx context.Context, req *fuse.StatfsRequest, resp *fuse.StatfsResponse) error {
	total, free := this.core.VolumeSize()

	resp.Blocks = total / BlockSize
	resp.Bfree = free / BlockSize
	resp.Bavail = free / BlockSize
	resp.Bsize = BlockSize

	return nil
}
