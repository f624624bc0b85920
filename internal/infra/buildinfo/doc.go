// Package buildinfo exposes version information injected at build time:
//
//	go build -ldflags "-X github.com/kubedash/kubedash-go/internal/infra/buildinfo.Version=v1.2.0 \
//	    -X github.com/kubedash/kubedash-go/internal/infra/buildinfo.Commit=$(git rev-parse --short HEAD)"
//
// Commit and BuildTime fall back to the VCS stamp recorded by the Go
// toolchain when they are not set.
package buildinfo
