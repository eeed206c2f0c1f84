// ABOUTME: Version constants for the sales coach client
// ABOUTME: Reported in logs, the status API and the TUI header
package version

// Version is overridden at build time with -ldflags "-X .../internal/version.Version=..."
var Version = "0.1.0"

const (
	Product      = "Sales Coach"
	Manufacturer = "harperreed"
)

// String returns the product and version
func String() string {
	return Product + " " + Version
}
