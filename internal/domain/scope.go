package domain

import "fmt"

// LocationScope describes a location audit.
type LocationScope struct {
	LocationName          string `json:"location_name"`
	IncludeChildLocations bool   `json:"include_child_locations"`
}

// KitScope describes a kit audit.
type KitScope struct {
	KitName string `json:"kit_name"`
}

// ScopeMeta is a tagged union keyed by Type: exactly the variant matching
// Type is set.
type ScopeMeta struct {
	Type     AuditType      `json:"type"`
	Location *LocationScope `json:"location,omitempty"`
	Kit      *KitScope      `json:"kit,omitempty"`
}

func NewLocationScope(name string, includeChildren bool) ScopeMeta {
	return ScopeMeta{
		Type:     AuditTypeLocation,
		Location: &LocationScope{LocationName: name, IncludeChildLocations: includeChildren},
	}
}

func NewKitScope(name string) ScopeMeta {
	return ScopeMeta{Type: AuditTypeKit, Kit: &KitScope{KitName: name}}
}

// ValidateFor checks that the union is well formed and matches the audit type.
// A zero variant for the right type is filled with an empty value.
func (m *ScopeMeta) ValidateFor(t AuditType) error {
	if m.Type != t {
		return fmt.Errorf("audit: scope type %q does not match audit type %q: %w", m.Type, t, ErrValidation)
	}

	switch t {
	case AuditTypeLocation:
		if m.Kit != nil {
			return fmt.Errorf("audit: location scope carries kit fields: %w", ErrValidation)
		}
		if m.Location == nil {
			m.Location = &LocationScope{}
		}
	case AuditTypeKit:
		if m.Location != nil {
			return fmt.Errorf("audit: kit scope carries location fields: %w", ErrValidation)
		}
		if m.Kit == nil {
			m.Kit = &KitScope{}
		}
	default:
		return fmt.Errorf("audit: unknown scope type %q: %w", t, ErrValidation)
	}

	return nil
}

// DisplayName is the name of the audited context, used as a default audit name.
func (m ScopeMeta) DisplayName() string {
	switch {
	case m.Location != nil && m.Location.LocationName != "":
		return "Audit: " + m.Location.LocationName
	case m.Kit != nil && m.Kit.KitName != "":
		return "Audit: " + m.Kit.KitName
	case m.Type == AuditTypeKit:
		return "Kit audit"
	default:
		return "Location audit"
	}
}
