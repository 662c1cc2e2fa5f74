package ir

import (
	"fmt"

	"github.com/Masterminds/semver/v3"
)

// Version constants for the bundle format and engine.
const (
	// FormatVersion is the semantic version of the bundle JSON shape.
	FormatVersion = "1.0.0"

	// FormatConstraint is the range of bundle format versions this build can replay.
	FormatConstraint = "^1"

	// EngineVersion is the bor engine version.
	EngineVersion = "0.1.0"
)

var formatConstraint = mustConstraint(FormatConstraint)

func mustConstraint(c string) *semver.Constraints {
	constraint, err := semver.NewConstraint(c)
	if err != nil {
		panic(err)
	}
	return constraint
}

// CheckFormatVersion reports whether a bundle written with format version v can
// be replayed by this build. An empty version is treated as 1.0.0; bundles from
// before the field existed share the 1.x shape.
func CheckFormatVersion(v string) error {
	if v == "" {
		v = FormatVersion
	}
	ver, err := semver.NewVersion(v)
	if err != nil {
		return fmt.Errorf("format version %q: %w", v, err)
	}
	if !formatConstraint.Check(ver) {
		return fmt.Errorf("format version %s does not satisfy %s", ver, FormatConstraint)
	}
	return nil
}
