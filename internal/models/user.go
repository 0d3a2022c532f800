package models

import "time"

// EntitlementStatus is the explicit lifecycle state of an entitlement.
// Denied is never persisted: a denied request is removed from the user's
// list entirely, so absence is the only observable "denied" state.
type EntitlementStatus string

const (
	EntitlementPending  EntitlementStatus = "pending"
	EntitlementApproved EntitlementStatus = "approved"
)

// Entitlement records one user's access (or pending request for access) to
// one study material. Display fields are denormalized from the material at
// request time. StartDate/ExpiryDate are RFC3339 strings and stay empty
// until the request is approved.
type Entitlement struct {
	UserID         string `bson:"userId" json:"userId"`
	MaterialID     string `bson:"materialId" json:"materialId"`
	Title          string `bson:"title" json:"title"`
	Description    string `bson:"description" json:"description"`
	ImageURL       string `bson:"imageUrl" json:"imageUrl"`
	VideoURL       string `bson:"videoUrl,omitempty" json:"videoUrl,omitempty"`
	Link           string `bson:"link,omitempty" json:"link,omitempty"`
	Public         bool   `bson:"public" json:"public"`
	Approved       bool   `bson:"approved" json:"approved"`
	RequestedAt    string `bson:"requestedAt" json:"requestedAt"`
	StartDate      string `bson:"startDate" json:"startDate"`
	ExpiryDate     string `bson:"expiryDate" json:"expiryDate"`
	ValidityMonths *int   `bson:"validityMonths,omitempty" json:"validityMonths,omitempty"`
}

// Status reports the tagged state behind the persisted approved flag.
func (e Entitlement) Status() EntitlementStatus {
	if e.Approved {
		return EntitlementApproved
	}
	return EntitlementPending
}

// ExpiredAt reports whether an approved entitlement has lapsed at the given
// instant. Pending entitlements and entitlements without an expiry never
// count as expired.
func (e Entitlement) ExpiredAt(now time.Time) bool {
	if !e.Approved || e.ExpiryDate == "" {
		return false
	}
	exp, err := time.Parse(time.RFC3339, e.ExpiryDate)
	if err != nil {
		return false
	}
	return now.After(exp)
}

// Alert kinds shown on the user's notice board.
const (
	AlertRequestSent    = "RequestSent"
	AlertAccessAccepted = "AccessAccepted"
	AlertAccessDenied   = "AccessDenied"
	AlertAccessExpired  = "AccessExpired"
)

// Alert is a user-visible notice appended by the access workflow.
type Alert struct {
	Kind    string `bson:"kind" json:"kind"`
	Heading string `bson:"heading" json:"heading"`
	Text    string `bson:"text" json:"text"`
	Time    string `bson:"time" json:"time"`
}

// User is the platform account record. The embedded entitlement list is the
// source of truth for what the user may watch; insertion order is request
// order.
type User struct {
	UserID         string        `bson:"userId" json:"userId"`
	Name           string        `bson:"name" json:"name"`
	Email          string        `bson:"email" json:"email"`
	Phone          string        `bson:"phone,omitempty" json:"phone,omitempty"`
	Address        string        `bson:"address,omitempty" json:"address,omitempty"`
	Password       string        `bson:"password" json:"-"`
	Verified       bool          `bson:"verified" json:"verified"`
	Allowed        bool          `bson:"allowed" json:"allowed"`
	Admin          bool          `bson:"admin,omitempty" json:"admin,omitempty"`
	MyEntitlements []Entitlement `bson:"myEntitlements" json:"myEntitlements"`
	Alerts         []Alert       `bson:"alerts" json:"alerts"`
	CreatedAt      time.Time     `bson:"createdAt" json:"createdAt"`
	UpdatedAt      time.Time     `bson:"updatedAt" json:"updatedAt"`
}

// EntitlementFor returns the user's entitlement for the material, if any.
// Linear scan: entitlement lists stay small (tens of items).
func (u *User) EntitlementFor(materialID string) (Entitlement, bool) {
	for _, e := range u.MyEntitlements {
		if e.MaterialID == materialID {
			return e, true
		}
	}
	return Entitlement{}, false
}
