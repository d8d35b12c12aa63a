// Package buildinfo provides build information for chaingate binaries.
//
// Values are injected via ldflags:
//
//	go build -ldflags "-X github.com/yndnr/chaingate/internal/infra/buildinfo.Version=v1.0.0"
//
// When Commit is not injected it falls back to the VCS revision embedded
// by the Go toolchain, if any.
package buildinfo
