// Package version holds build information injected with
// go build -ldflags "-X appforge/pkg/version.Version=v0.3.0".
package version

//nolint:gochecknoglobals // ldflags targets
var (
	Version = "dev"
	Commit  = "none"
	Date    = "unknown"
)
