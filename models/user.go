package models

import "time"

// User holds the structure for the users collection in mongo
type User struct {
	UserID      string    `json:"userId" bson:"userId"`
	DisplayName string    `json:"displayName" bson:"displayName"`
	Email       string    `json:"email" bson:"email"`
	PhotoURL    string    `json:"photoUrl" bson:"photoUrl"`
	Bio         string    `json:"bio" bson:"bio"`
	Instagram   string    `json:"instagram" bson:"instagram"`
	Twitter     string    `json:"twitter" bson:"twitter"`
	TikTok      string    `json:"tiktok" bson:"tiktok"`
	CreatedAt   time.Time `json:"createdAt" bson:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt" bson:"updatedAt"`
}

// UserProfile holds the user-editable profile fields. Nil fields are left untouched.
type UserProfile struct {
	DisplayName *string `json:"displayName"`
	PhotoURL    *string `json:"photoUrl"`
	Bio         *string `json:"bio"`
	Instagram   *string `json:"instagram"`
	Twitter     *string `json:"twitter"`
	TikTok      *string `json:"tiktok"`
}

// Identity is the caller as resolved from an identity provider token
type Identity struct {
	UserID   string
	Name     string
	Email    string
	PhotoURL string
}
