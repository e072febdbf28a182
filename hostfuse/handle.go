package hostfuse

import (
	"bazil.org/fuse"
	fusefs "bazil.org/fuse/fs"
	"golang.org/x/net/context"

	"github.com/eriq-augustine/vaultdrive/drivecore"
)

// FileHandle is an open file as seen by the host, wrapping a
// drivecore.Handle. Generalized from the teacher's fuseDirent (which
// doubled as both node and handle) into its own type, since a Node no
// longer implements the handle interfaces directly once writes need
// independent per-open state.
type FileHandle struct {
	core   *drivecore.Core
	node   *Node
	handle *drivecore.Handle
}

var _ fusefs.Handle = (*FileHandle)(nil)

var _ fusefs.HandleReader = (*FileHandle)(nil)

// Read services one FUSE read request at the requested offset.
func (this *FileHandle) Read(ctx context.Context, req *fuse.ReadRequest, resp *fuse.ReadResponse) error {
	buf := make([]byte, req.Size)

	n, err := this.core.Read(this.handle, buf, uint64(req.Offset))
	if err != nil {
		return translateError(err)
	}

	resp.Data = buf[:n]
	return nil
}

var _ fusefs.HandleWriter = (*FileHandle)(nil)

// Write services one FUSE write request at the requested offset, matching
// the random-access write contract (unlike the teacher's Write, which
// always rewrote the whole file).
func (this *FileHandle) Write(ctx context.Context, req *fuse.WriteRequest, resp *fuse.WriteResponse) error {
	n, err := this.core.Write(this.handle, req.Data, uint64(req.Offset))
	if err != nil {
		return translateError(err)
	}

	resp.Size = n
	return nil
}

var _ fusefs.HandleFlusher = (*FileHandle)(nil)

// Flush commits pending writes to the parent listing without closing the
// handle, since a FUSE Flush can be called multiple times per open.
func (this *FileHandle) Flush(ctx context.Context, req *fuse.FlushRequest) error {
	if err := this.core.Close(this.handle); err != nil {
		return translateError(err)
	}

	refreshed, err := this.core.GetFileInfo(this.node.path)
	if err != nil {
		return translateError(err)
	}
	this.node.meta = refreshed

	return nil
}

var _ fusefs.HandleReleaser = (*FileHandle)(nil)

// Release is a no-op: Flush already committed any pending content, and the
// handle itself carries no OS resource beyond the drivecore.Handle value.
func (this *FileHandle) Release(ctx context.Context, req *fuse.ReleaseRequest) error {
	return nil
}
