package billing

import (
	"slices"
	"time"
)

// CapabilitySet is the list of product capabilities unlocked by a
// subscription state.
type CapabilitySet []Capability

// Has reports whether the capability is part of the set.
func (cs CapabilitySet) Has(c Capability) bool {
	return slices.Contains(cs, c)
}

// BaseCapabilities is the free tier: a limited seed inventory and the
// wishlist, nothing paid.
var BaseCapabilities = CapabilitySet{
	CapabilityWishlist,
}

// FullCapabilities is everything a paying (or trialing, or lifetime)
// subscriber gets.
var FullCapabilities = CapabilitySet{
	CapabilitySeedVault,
	CapabilityPlantingJournal,
	CapabilityWishlist,
	CapabilityPhotoAttachments,
	CapabilityCSVExport,
	CapabilityVarietyInsights,
	CapabilityPrioritySupport,
}

// Features maps the subscriber's current state to its capability set.
// Lifetime members get the full set unconditionally. Otherwise a running
// trial or an unexpired paid period unlocks the full set; everything else
// falls back to the base set. Pure function, no I/O, called on every
// request that needs paid-vs-free.
func Features(s *Subscriber, now time.Time) CapabilitySet {
	if s == nil {
		return BaseCapabilities
	}
	if s.Lifetime {
		return FullCapabilities
	}
	if s.IsTrialing(now) || s.IsPaidUp(now) {
		return FullCapabilities
	}
	return BaseCapabilities
}
