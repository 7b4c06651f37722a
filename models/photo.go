package models

import "time"

// Photo holds the structure for the photos collection in mongo
type Photo struct {
	PhotoID      string    `json:"photoId" bson:"photoId"`
	EventID      string    `json:"eventId" bson:"eventId"`
	UploaderID   string    `json:"uploaderId" bson:"uploaderId"`
	UploaderName string    `json:"uploaderName" bson:"uploaderName"`
	ImageURL     string    `json:"imageUrl" bson:"imageUrl"`
	ThumbnailURL string    `json:"thumbnailUrl" bson:"thumbnailUrl"`
	UploadedAt   time.Time `json:"uploadedAt" bson:"uploadedAt"`
}
