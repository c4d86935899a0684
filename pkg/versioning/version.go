// Package versioning reports the cwgen build version and the schema IDL
// versions this build understands.
package versioning

import (
	"fmt"
	"runtime"
	"runtime/debug"

	"github.com/Masterminds/semver/v3"
)

// Version is the generator version, stamped at build time with
// -ldflags "-X github.com/permissionlessweb/bs-accounts/pkg/versioning.Version=1.2.3".
var Version = "0.1.0"

// Commit is the VCS revision, stamped at build time or read from build info.
var Commit = ""

// SupportedIDL is the idl_version range accepted by the ingestor.
const SupportedIDL = "^1.0.0-0"

// Info describes the running build.
type Info struct {
	Version   string `json:"version"`
	Commit    string `json:"commit,omitempty"`
	GoVersion string `json:"go_version"`
	IDL       string `json:"idl"`
}

// Current returns the build information.
func Current() Info {
	commit := Commit
	if commit == "" {
		if bi, ok := debug.ReadBuildInfo(); ok {
			for _, s := range bi.Settings {
				if s.Key == "vcs.revision" {
					commit = s.Value
				}
			}
		}
	}
	return Info{
		Version:   Version,
		Commit:    commit,
		GoVersion: runtime.Version(),
		IDL:       SupportedIDL,
	}
}

// Semver parses Version. Unparseable development stamps report 0.0.0.
func Semver() *semver.Version {
	v, err := semver.NewVersion(Version)
	if err != nil {
		return semver.New(0, 0, 0, "dev", "")
	}
	return v
}

// CheckIDL validates an idl_version declared by a schema file.
func CheckIDL(v string) error {
	parsed, err := semver.NewVersion(v)
	if err != nil {
		return fmt.Errorf("invalid idl_version %q: %w", v, err)
	}
	c, err := semver.NewConstraint(SupportedIDL)
	if err != nil {
		return err
	}
	if !c.Check(parsed) {
		return fmt.Errorf("unsupported idl_version %s, want %s", parsed, SupportedIDL)
	}
	return nil
}

// IsSemver reports whether v parses as a semantic version.
func IsSemver(v string) bool {
	_, err := semver.NewVersion(v)
	return err == nil
}
