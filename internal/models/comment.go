package models

import (
	"time"

	"github.com/google/uuid"
)

// Comment is a course discussion entry stored in MongoDB.
//   - ParentID is empty for root comments;
//   - Level is the depth in the thread, roots have 0;
//   - IsDeleted marks a soft delete, Content is blanked at that moment.
type Comment struct {
	ID           string
	CourseID     string
	ParentID     string
	UserID       uuid.UUID
	Username     string
	Content      string
	Level        int32
	RepliesCount int32
	IsDeleted    bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// ListParams holds cursor pagination input.
type ListParams struct {
	PageSize  int32
	PageToken string
}

// CommentPage is one page of comments.
type CommentPage struct {
	Items         []Comment
	NextPageToken string
}
