package pluggable

import (
	"fmt"

	"github.com/Masterminds/semver/v3"
)

// CoreVersion is the orchestrator's own semantic version, checked against
// the minCoreVersion/maxCoreVersion bounds modules declare. Hosts embedding
// a differently-versioned core override it with WithCoreVersion.
const CoreVersion = "1.0.0"

// VersionChecker validates semantic-version strings and range constraints.
// It is used by registration and by the conflict/upgrade report generators.
type VersionChecker struct {
	core *semver.Version
}

// NewVersionChecker creates a checker pinned to the given core version.
func NewVersionChecker(coreVersion string) (*VersionChecker, error) {
	core, err := semver.NewVersion(coreVersion)
	if err != nil {
		return nil, fmt.Errorf("invalid core version %q: %w", coreVersion, err)
	}
	return &VersionChecker{core: core}, nil
}

// ValidateVersion reports whether v parses as valid semver.
func (c *VersionChecker) ValidateVersion(v string) error {
	if _, err := semver.NewVersion(v); err != nil {
		return fmt.Errorf("invalid semver %q: %w", v, err)
	}
	return nil
}

// ValidateConstraint reports whether expr parses as a valid range
// expression, e.g. "^1.0.0", "~2.3", ">=1.0.0 <2.0.0".
func (c *VersionChecker) ValidateConstraint(expr string) error {
	if _, err := semver.NewConstraint(expr); err != nil {
		return fmt.Errorf("invalid version constraint %q: %w", expr, err)
	}
	return nil
}

// CheckConstraint reports whether version satisfies the range expression.
func (c *VersionChecker) CheckConstraint(version, constraint string) (bool, error) {
	v, err := semver.NewVersion(version)
	if err != nil {
		return false, fmt.Errorf("invalid semver %q: %w", version, err)
	}
	rng, err := semver.NewConstraint(constraint)
	if err != nil {
		return false, fmt.Errorf("invalid version constraint %q: %w", constraint, err)
	}
	return rng.Check(v), nil
}

// CompareVersions returns -1, 0 or 1 when a is respectively lower than,
// equal to or greater than b.
func (c *VersionChecker) CompareVersions(a, b string) (int, error) {
	va, err := semver.NewVersion(a)
	if err != nil {
		return 0, fmt.Errorf("invalid semver %q: %w", a, err)
	}
	vb, err := semver.NewVersion(b)
	if err != nil {
		return 0, fmt.Errorf("invalid semver %q: %w", b, err)
	}
	return va.Compare(vb), nil
}

// CheckCoreBounds enforces a module's minCoreVersion/maxCoreVersion against
// the checker's own core version. Empty bounds are unconstrained.
func (c *VersionChecker) CheckCoreBounds(moduleID, minVersion, maxVersion string) error {
	if minVersion != "" {
		minV, err := semver.NewVersion(minVersion)
		if err != nil {
			return fmt.Errorf("invalid minCoreVersion %q: %w", minVersion, err)
		}
		if c.core.LessThan(minV) {
			return &VersionIncompatibilityError{
				ModuleID: moduleID,
				Required: ">=" + minVersion,
				Actual:   c.core.String(),
			}
		}
	}
	if maxVersion != "" {
		maxV, err := semver.NewVersion(maxVersion)
		if err != nil {
			return fmt.Errorf("invalid maxCoreVersion %q: %w", maxVersion, err)
		}
		if c.core.GreaterThan(maxV) {
			return &VersionIncompatibilityError{
				ModuleID: moduleID,
				Required: "<=" + maxVersion,
				Actual:   c.core.String(),
			}
		}
	}
	return nil
}

// DependencyConflict is one violated constraint found by the read-only
// conflict scan.
type DependencyConflict struct {
	ModuleID   string `json:"moduleId"`
	Dependency string `json:"dependency"`
	Constraint string `json:"constraint"`
	Actual     string `json:"actual"`
	Optional   bool   `json:"optional"`
}

// UpgradeSuggestion recommends moving a dependency to a version range that
// would satisfy every registered constraint on it.
type UpgradeSuggestion struct {
	ModuleID       string   `json:"moduleId"`
	CurrentVersion string   `json:"currentVersion"`
	Constraints    []string `json:"constraints"`
	RequiredBy     []string `json:"requiredBy"`
}
