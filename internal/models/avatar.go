package models

import "time"

// UploadInfo describes a presigned PUT upload the client has to perform.
type UploadInfo struct {
	UploadURL      string
	AvatarKey      string
	Expires        time.Duration
	RequiredHeader map[string]string
}
