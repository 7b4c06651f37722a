package models

import "time"

// InvitationStatus is the guest's answer to an invitation
type InvitationStatus string

// Invitation statuses as stored in mongo
const (
	InvitationPending  InvitationStatus = "PENDING"
	InvitationAccepted InvitationStatus = "ACCEPTED"
	InvitationDeclined InvitationStatus = "DECLINED"
)

// Invitation holds the structure for the invitations collection in mongo. QRToken is
// the credential scanned at the door and is only meaningful together with EventID.
type Invitation struct {
	InvitationID string           `json:"invitationId" bson:"invitationId"`
	EventID      string           `json:"eventId" bson:"eventId"`
	UserID       string           `json:"userId" bson:"userId"`
	Status       InvitationStatus `json:"status" bson:"status"`
	QRToken      string           `json:"qrToken" bson:"qrToken"`
	CheckedIn    bool             `json:"checkedIn" bson:"checkedIn"`
	CheckedInAt  *time.Time       `json:"checkedInAt" bson:"checkedInAt"`
	CreatedAt    time.Time        `json:"createdAt" bson:"createdAt"`
}

// CheckInStats summarizes door activity for a host
type CheckInStats struct {
	EventID   string `json:"eventId"`
	Guests    int    `json:"guests"`
	Accepted  int64  `json:"accepted"`
	CheckedIn int64  `json:"checkedIn"`
}
