package track

// Version information for the call tracking runtime.
const (
	// Version is the current version of the tracking runtime.
	Version = "0.1.0"

	// VersionMajor is the major version number.
	VersionMajor = 0

	// VersionMinor is the minor version number.
	VersionMinor = 1

	// VersionPatch is the patch version number.
	VersionPatch = 0
)

// Info provides runtime information about the default session.
type Info struct {
	// Version is the runtime version string.
	Version string

	// Mode is the delivery mode of the default session.
	Mode Mode

	// Active indicates whether the default session accepts events.
	Active bool

	// SessionID is the current or last session ID.
	SessionID string
}

// GetInfo returns information about the tracking runtime.
//
// Example:
//
//	info := track.GetInfo()
//	fmt.Printf("calltrack %s (%s)\n", info.Version, info.Mode)
func GetInfo() Info {
	s := current()
	return Info{
		Version:   Version,
		Mode:      s.Config().Mode,
		Active:    s.IsActive(),
		SessionID: s.ID(),
	}
}
