package version //nolint:revive // package name intentionally matches build-info convention

import "fmt"

//nolint:gochecknoglobals //version information is set at build time
var (
	Repository string
	Version    string
	Commit     string
	Date       string
)

// String describes the build, with "dev" standing in for unset fields.
func String() string {
	return fmt.Sprintf("%s (commit %s, built %s)", orDev(Version), orDev(Commit), orDev(Date))
}

func orDev(v string) string {
	if v == "" {
		return "dev"
	}
	return v
}
