package version

// Version is overridden at build time with -ldflags "-X ...version.Version=v1.2.3".
var Version = "dev"

// UserAgent is sent on every Gnip request.
func UserAgent() string {
	return "powertrack-cli/" + Version
}
