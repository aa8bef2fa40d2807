package version

// Set via -ldflags at build time.
var (
	Version = "0.1.0"
	Commit  = "dev"
)

func Short() string {
	return Version
}

func Full() string {
	return Version + " (" + Commit + ")"
}
