package enterprise

import (
	"errors"
	"slices"
	"time"
)

//nolint:gochecknoglobals // sentinel error
var ErrLicenseExpired = errors.New("enterprise: license expired")

//nolint:gochecknoglobals // sentinel error
var ErrNoLicense = errors.New("enterprise: no license configured")

// FeatureAudits unlocks the audit addon.
const FeatureAudits = "audits"

// License lists the addons an installation has paid for.
type License struct {
	ID        string
	Features  []string  // enabled addon flags
	ExpiresAt time.Time // zero never expires
}

// Validator answers addon questions for the running installation.
// Self-hosted installations have every addon enabled.
type Validator struct {
	license    *License
	selfHosted bool
	now        func() time.Time
}

// NewValidator creates a Validator. A nil license with selfHosted false
// enables nothing.
func NewValidator(license *License, selfHosted bool) *Validator {
	return &Validator{license: license, selfHosted: selfHosted, now: time.Now}
}

// Validate checks if the license is present and not expired.
func (v *Validator) Validate() error {
	if v.license == nil {
		return ErrNoLicense
	}

	if !v.license.ExpiresAt.IsZero() && v.now().After(v.license.ExpiresAt) {
		return ErrLicenseExpired
	}

	return nil
}

// HasFeature checks if the license lists a feature, ignoring expiry.
func (v *Validator) HasFeature(feature string) bool {
	if v.license == nil {
		return false
	}

	return slices.Contains(v.license.Features, feature)
}

// FeatureEnabled reports whether requests may use an addon right now.
func (v *Validator) FeatureEnabled(feature string) bool {
	if v.selfHosted {
		return true
	}

	return v.Validate() == nil && v.HasFeature(feature)
}
