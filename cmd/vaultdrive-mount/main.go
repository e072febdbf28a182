package main

// Mount a vault drive on the local filesystem via FUSE.

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/pflag"

	"github.com/eriq-augustine/vaultdrive/chunkstore"
	"github.com/eriq-augustine/vaultdrive/drivecore"
	"github.com/eriq-augustine/vaultdrive/hostfuse"
	"github.com/eriq-augustine/vaultdrive/session"
)

const (
	connectorTypeLocal = "local"
	connectorTypeS3    = "s3"

	defaultAwsCredPath = "config/vaultdrive-aws-credentials"
	defaultAwsEndpoint = ""
	defaultAwsProfile  = "vaultdrive"
	defaultAwsRegion   = "us-east-1"

	defaultMaxDiskSize = 1 << 40 // 1 TiB

	unmountDeadline = 5 * time.Second
)

// Args holds every flag needed to bootstrap a chunk store and mount it.
type Args struct {
	AwsCredPath   string
	AwsEndpoint   string
	AwsProfile    string
	AwsRegion     string
	ConnectorType string
	Path          string
	MaxDiskSize   uint64
	Keyword       session.Keyword
	Pin           session.Pin
	Password      session.Password
	DriveName     string
	Force         bool
	Mountpoint    string
}

func parseArgs() (*Args, error) {
	connectorType := pflag.StringP("type", "t", connectorTypeLocal, "Chunk store type ('local' or 's3')")
	awsCredPath := pflag.StringP("aws-creds", "c", defaultAwsCredPath, "Path to AWS credentials")
	awsEndpoint := pflag.StringP("aws-endpoint", "e", defaultAwsEndpoint, "Accepted but unused: the S3 store always connects to the standard AWS S3 endpoint for --aws-region")
	awsProfile := pflag.StringP("aws-profile", "l", defaultAwsProfile, "AWS profile to use")
	awsRegion := pflag.StringP("aws-region", "r", defaultAwsRegion, "AWS region to use")
	path := pflag.StringP("path", "p", "", "Path to the local chunk store directory, or S3 bucket name")
	maxDiskSize := pflag.Uint64P("max-size", "s", defaultMaxDiskSize, "Maximum number of bytes the chunk store may hold")
	keyword := pflag.StringP("keyword", "k", "", "Login keyword")
	pin := pflag.StringP("pin", "n", "", "Login pin")
	password := pflag.StringP("password", "w", "", "Login password")
	driveName := pflag.StringP("name", "d", "vaultdrive", "Volume name reported to the host")
	force := pflag.BoolP("force", "f", false, "Force the chunk store to open regardless of a stale lock")
	mountpoint := pflag.StringP("mountpoint", "m", "", "Directory to mount the drive at")

	pflag.Parse()

	if *path == "" {
		return nil, errors.New("path required")
	}

	if *keyword == "" {
		return nil, errors.New("keyword required")
	}

	if *mountpoint == "" {
		return nil, errors.New("mountpoint required")
	}

	if *connectorType != connectorTypeLocal && *connectorType != connectorTypeS3 {
		return nil, errors.Errorf("unknown chunk store type: %s", *connectorType)
	}

	return &Args{
		AwsCredPath:   *awsCredPath,
		AwsEndpoint:   *awsEndpoint,
		AwsProfile:    *awsProfile,
		AwsRegion:     *awsRegion,
		ConnectorType: *connectorType,
		Path:          *path,
		MaxDiskSize:   *maxDiskSize,
		Keyword:       session.Keyword(*keyword),
		Pin:           session.Pin(*pin),
		Password:      session.Password(*password),
		DriveName:     *driveName,
		Force:         *force,
		Mountpoint:    *mountpoint,
	}, nil
}

func newStore(args *Args) (chunkstore.Store, error) {
	if args.ConnectorType == connectorTypeS3 {
		return chunkstore.NewS3Store(args.Path, args.AwsCredPath, args.AwsProfile, args.AwsRegion,
			args.MaxDiskSize, args.Force)
	}

	return chunkstore.NewLocalStore(args.Path, args.MaxDiskSize, args.Force)
}

func main() {
	args, err := parseArgs()
	if err != nil {
		pflag.Usage()
		fmt.Printf("Error parsing args: %+v\n", err)
		os.Exit(1)
	}

	store, err := newStore(args)
	if err != nil {
		fmt.Printf("%+v\n", errors.Wrap(err, "failed to open chunk store"))
		os.Exit(2)
	}

	core, err := drivecore.NewCore(store, args.Keyword, args.Pin, args.Password, args.DriveName)
	if err != nil {
		store.Close()
		fmt.Printf("%+v\n", errors.Wrap(err, "failed to bootstrap drive"))
		os.Exit(3)
	}

	shim := hostfuse.NewShim(args.DriveName)

	if err := core.Mount(shim, args.Mountpoint); err != nil {
		store.Close()
		fmt.Printf("%+v\n", errors.Wrap(err, "failed to mount"))
		os.Exit(4)
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		shutdown(core, shim, store)
		os.Exit(0)
	}()

	if err := shim.Serve(core); err != nil {
		fmt.Printf("%+v\n", errors.Wrap(err, "serve failed"))
	}

	core.OnEject()
	shutdown(core, shim, store)
}

func shutdown(core *drivecore.Core, shim *hostfuse.Shim, store chunkstore.Store) {
	if err := core.Unmount(shim, unmountDeadline); err != nil {
		fmt.Printf("%+v\n", errors.Wrap(err, "failed to unmount cleanly"))
	}

	if err := core.Clean(shim); err != nil {
		fmt.Printf("%+v\n", errors.Wrap(err, "failed to clean up mount state"))
	}

	if err := store.Close(); err != nil {
		fmt.Printf("%+v\n", errors.Wrap(err, "failed to close chunk store"))
	}
}
