package domain

import (
	"time"
)

// Attachment stores metadata about a file (photo or video) the client attached
// to a TrainingDiary. The actual file resides in S3.
type Attachment struct {
	ID          string    `bson:"id" json:"id"`
	ObjectKey   string    `bson:"objectKey" json:"-"` // Key in the bucket, internal use
	FileName    string    `bson:"fileName" json:"fileName"`
	ContentType string    `bson:"contentType" json:"contentType"`
	Size        int64     `bson:"size" json:"size"`
	UploadedAt  time.Time `bson:"uploadedAt" json:"uploadedAt"`
}
