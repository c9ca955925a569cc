package billing

// Status represents the paid-access state of a subscriber.
type Status string

const (
	StatusNone      Status = "none"      // never trialed or subscribed
	StatusTrial     Status = "trial"     // time-boxed full access, not yet paid
	StatusActive    Status = "active"    // paid period, end date in the future when set
	StatusCanceling Status = "canceling" // paid period runs out, no renewal attempted
	StatusCancelled Status = "cancelled" // cancelled by the user or the provider
	StatusExpired   Status = "expired"   // paid or trial period ran out
	StatusLifetime  Status = "lifetime"  // permanent paid access, admin-granted
)

// Valid reports whether s is one of the known statuses.
func (s Status) Valid() bool {
	switch s {
	case StatusNone, StatusTrial, StatusActive, StatusCanceling,
		StatusCancelled, StatusExpired, StatusLifetime:
		return true
	}
	return false
}

// Capability is a product capability unlocked by a subscription state.
type Capability string

const (
	CapabilitySeedVault        Capability = "seed_vault"         // unlimited seed records
	CapabilityPlantingJournal  Capability = "planting_journal"   // planting timelines and notes
	CapabilityWishlist         Capability = "wishlist"           // seed wishlist
	CapabilityPhotoAttachments Capability = "photo_attachments"  // photos on seeds and plantings
	CapabilityCSVExport        Capability = "csv_export"         // inventory export
	CapabilityVarietyInsights  Capability = "variety_insights"   // encyclopedia cross-references
	CapabilityPrioritySupport  Capability = "priority_support"
)

// PaymentDetails carries the provider references and amount recorded when a
// payment event activates or renews a subscription. All fields are optional;
// empty values leave the stored references untouched.
type PaymentDetails struct {
	CustomerRef     string
	InstrumentRef   string
	SubscriptionRef string
	Amount          int // whole currency units, informational only
}
