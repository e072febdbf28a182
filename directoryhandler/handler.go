package directoryhandler

import (
	"strings"

	"github.com/pkg/errors"

	"github.com/eriq-augustine/vaultdrive/chunkstore"
	"github.com/eriq-augustine/vaultdrive/dirid"
	"github.com/eriq-augustine/vaultdrive/dirlisting"
	"github.com/eriq-augustine/vaultdrive/metadata"
	"github.com/eriq-augustine/vaultdrive/session"
)

// rootSentinelName is the name the drive's actual root directory is filed
// under inside the synthetic root-parent listing, matching the "/" path
// segment maidsafe's GetParentAndGrandparent special-cases.
const rootSentinelName = "/"

// Handler owns the whole directory tree above a Chunk Store: bootstrapping
// the root from a Session, and resolving/mutating directories by path.
type Handler struct {
	store        chunkstore.Store
	session      *session.Session
	uniqueUserID dirid.ID
	rootParentID dirid.ID
}

// New bootstraps or recovers a Handler from the (keyword, pin, password)
// triple, following the first-run/subsequent-run split in
// original_source/directory_listing_handler.cc's constructor.
func New(store chunkstore.Store, keyword session.Keyword, pin session.Pin, password session.Password) (
	*Handler, *session.Session, error) {
	sess, isNew, err := session.Bootstrap(store, keyword, pin, password)
	if err != nil {
		if isNew {
			return nil, nil, errors.Wrap(ErrUninitialised, err.Error())
		}
		return nil, nil, errors.Wrap(ErrInvalidCredentials, err.Error())
	}

	handler := &Handler{
		store:        store,
		session:      sess,
		uniqueUserID: sess.UniqueUserID,
		rootParentID: sess.RootParentID,
	}

	if isNew {
		if err := handler.bootstrapRoot(); err != nil {
			return nil, nil, errors.Wrap(ErrUninitialised, err.Error())
		}
	}

	return handler, sess, nil
}

func (this *Handler) bootstrapRoot() error {
	rootDirID := dirid.New()
	rootMeta := metadata.New(rootSentinelName, true, &rootDirID)

	rootParentData := dirlisting.NewData(this.uniqueUserID, this.rootParentID)
	if err := rootParentData.Listing.AddChild(rootMeta); err != nil {
		return errors.WithStack(err)
	}

	if err := this.PutToStorage(this.rootParentID, rootParentData); err != nil {
		return errors.WithStack(err)
	}

	rootData := dirlisting.NewData(this.rootParentID, rootDirID)
	if err := this.PutToStorage(rootDirID, rootData); err != nil {
		return errors.WithStack(err)
	}

	return nil
}

// node is one resolved step in a path walk: the directory found at this
// step, its own id, the id of the listing it was found in (its parent),
// and the MetaData entry describing it as filed in that parent (nil only
// for the synthetic root-parent step, which has no entry of its own).
type node struct {
	ParentID    dirid.ID
	DirectoryID dirid.ID
	Data        *dirlisting.Data
	Meta        *metadata.MetaData
}

func splitPath(path string) []string {
	trimmed := strings.Trim(path, "/")
	if trimmed == "" {
		return nil
	}
	return strings.Split(trimmed, "/")
}

// resolveChain walks from the root-parent down through every path segment,
// returning the full chain of resolved directories (chain[0] is the
// synthetic root-parent, chain[len-1] is the target). Every segment must
// name a directory; resolveChain never resolves through a file.
func (this *Handler) resolveChain(path string) ([]*node, error) {
	rootParentData, err := this.RetrieveFromStorage(this.uniqueUserID, this.rootParentID)
	if err != nil {
		return nil, errors.WithStack(err)
	}

	chain := []*node{{
		ParentID:    this.uniqueUserID,
		DirectoryID: this.rootParentID,
		Data:        rootParentData,
		Meta:        nil,
	}}

	segments := append([]string{rootSentinelName}, splitPath(path)...)

	for _, segment := range segments {
		current := chain[len(chain)-1]

		childMeta, err := current.Data.Listing.GetChild(segment)
		if err != nil {
			return nil, errors.Wrap(ErrNotFound, path)
		}

		if !childMeta.IsDirectory() {
			return nil, errors.Wrap(ErrNotADirectory, path)
		}

		childData, err := this.RetrieveFromStorage(current.DirectoryID, *childMeta.DirectoryID)
		if err != nil {
			return nil, errors.WithStack(err)
		}

		chain = append(chain, &node{
			ParentID:    current.DirectoryID,
			DirectoryID: *childMeta.DirectoryID,
			Data:        childData,
			Meta:        childMeta,
		})
	}

	return chain, nil
}

// GetFromPath resolves the directory at path, returning its listing data
// and its own directory id.
func (this *Handler) GetFromPath(path string) (*dirlisting.Data, dirid.ID, error) {
	chain, err := this.resolveChain(path)
	if err != nil {
		return nil, dirid.Empty, errors.WithStack(err)
	}

	target := chain[len(chain)-1]
	return target.Data, target.DirectoryID, nil
}

// RootMetaData returns the root directory's own entry, as filed under the
// "/" sentinel in the synthetic root-parent listing. This is the only
// MetaData describing the root itself, since the root has no ordinary
// parent to hold it.
func (this *Handler) RootMetaData() (*metadata.MetaData, error) {
	rootParentData, err := this.RetrieveFromStorage(this.uniqueUserID, this.rootParentID)
	if err != nil {
		return nil, errors.WithStack(err)
	}

	meta, err := rootParentData.Listing.GetChild(rootSentinelName)
	if err != nil {
		return nil, errors.Wrap(ErrNotFound, rootSentinelName)
	}

	return meta, nil
}

// ResolveEntry looks up a single named entry (file or directory) inside the
// directory at parentPath, without requiring the entry itself to be a
// directory.
func (this *Handler) ResolveEntry(parentPath string, name string) (*metadata.MetaData, dirid.ID, error) {
	chain, err := this.resolveChain(parentPath)
	if err != nil {
		return nil, dirid.Empty, errors.WithStack(err)
	}

	target := chain[len(chain)-1]

	meta, err := target.Data.Listing.GetChild(name)
	if err != nil {
		return nil, dirid.Empty, errors.Wrap(ErrNotFound, name)
	}

	return meta, target.DirectoryID, nil
}

// ResolveEntryWithLineage is ResolveEntry plus the id of the directory that
// holds parentPath's own entry, so a caller opening a file handle can
// capture both ends of its containing lineage without re-walking the tree.
// If parentPath is the root, grandparentID is the synthetic root-parent id.
func (this *Handler) ResolveEntryWithLineage(parentPath string, name string) (
	meta *metadata.MetaData, grandparentID dirid.ID, parentID dirid.ID, err error) {
	chain, err := this.resolveChain(parentPath)
	if err != nil {
		return nil, dirid.Empty, dirid.Empty, errors.WithStack(err)
	}

	target := chain[len(chain)-1]

	meta, err = target.Data.Listing.GetChild(name)
	if err != nil {
		return nil, dirid.Empty, dirid.Empty, errors.Wrap(ErrNotFound, name)
	}

	grandparentID = target.ParentID

	return meta, grandparentID, target.DirectoryID, nil
}
