// Package version reports the speechgate build.
//
// Release builds stamp the values with -ldflags:
//
//	go build -ldflags "-X github.com/kbukum/speechgate/version.Version=1.2.0" ./cmd/speechgate
//
// Unstamped builds fall back to the VCS settings recorded by the Go toolchain.
package version
