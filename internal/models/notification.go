package models

// PendingRequest is the admin-queue work item for one unresolved access
// request. It mirrors the entitlement's denormalized display fields plus a
// snapshot of the requester's profile. It is created together with the
// embedded entitlement in one atomic batch and deleted by the batch that
// resolves it; it is never updated in place.
type PendingRequest struct {
	RequestID      string `bson:"requestId" json:"requestId"`
	AdminID        string `bson:"adminId" json:"adminId"`
	Message        string `bson:"message" json:"message"`
	UserID         string `bson:"userId" json:"userId"`
	UserName       string `bson:"userName" json:"userName"`
	UserEmail      string `bson:"userEmail" json:"userEmail"`
	UserAllowed    bool   `bson:"userAllowed" json:"userAllowed"`
	UserVerified   bool   `bson:"userVerified" json:"userVerified"`
	MaterialID     string `bson:"materialId" json:"materialId"`
	Title          string `bson:"title" json:"title"`
	Description    string `bson:"description" json:"description"`
	ImageURL       string `bson:"imageUrl" json:"imageUrl"`
	VideoURL       string `bson:"videoUrl,omitempty" json:"videoUrl,omitempty"`
	Link           string `bson:"link,omitempty" json:"link,omitempty"`
	Public         bool   `bson:"public" json:"public"`
	Approved       bool   `bson:"approved" json:"approved"`
	ValidityMonths *int   `bson:"validityMonths,omitempty" json:"validityMonths,omitempty"`
	Date           string `bson:"date" json:"date"`
	StartDate      string `bson:"startDate,omitempty" json:"startDate,omitempty"`
	ExpiryDate     string `bson:"expiryDate,omitempty" json:"expiryDate,omitempty"`
}
