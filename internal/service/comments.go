package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/pribylovaa/training-center/internal/models"
	"github.com/pribylovaa/training-center/internal/pkg/log"
)

const maxCommentLen = 2000

// CreateCommentInput creates a root comment (ParentID empty, CourseID required)
// or a reply (ParentID set, the course is inherited from the parent).
type CreateCommentInput struct {
	CourseID string
	ParentID string
	UserID   uuid.UUID
	Username string
	Content  string
}

// CreateComment validates and stores a comment.
func (s *Service) CreateComment(ctx context.Context, in CreateCommentInput) (*models.Comment, error) {
	const op = "service.comments.CreateComment"

	if s.comments == nil {
		return nil, fmt.Errorf("%s: %w", op, ErrUnavailable)
	}

	lg := log.From(ctx).With(
		slog.String("op", op),
		slog.String("course_id", in.CourseID),
		slog.String("parent_id", in.ParentID),
	)

	in.CourseID = strings.TrimSpace(in.CourseID)
	in.ParentID = strings.TrimSpace(in.ParentID)
	in.Username = strings.TrimSpace(in.Username)
	in.Content = strings.TrimSpace(in.Content)

	switch {
	case in.UserID == uuid.Nil:
		lg.Warn("invalid_argument", slog.String("field", "user_id"))
		return nil, fmt.Errorf("%s: %w", op, ErrInvalidArgument)
	case in.Content == "" || len([]rune(in.Content)) > maxCommentLen:
		lg.Warn("invalid_argument", slog.String("field", "content"))
		return nil, fmt.Errorf("%s: %w", op, ErrInvalidArgument)
	case in.ParentID == "" && in.CourseID == "":
		lg.Warn("invalid_argument", slog.String("field", "course_id"))
		return nil, fmt.Errorf("%s: %w", op, ErrInvalidArgument)
	}

	out, err := s.comments.CreateComment(ctx, models.Comment{
		CourseID: in.CourseID,
		ParentID: in.ParentID,
		UserID:   in.UserID,
		Username: in.Username,
		Content:  in.Content,
	})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, mapStorageErr(err))
	}

	return out, nil
}

// DeleteComment soft-deletes a comment.
func (s *Service) DeleteComment(ctx context.Context, id string) error {
	const op = "service.comments.DeleteComment"

	if s.comments == nil {
		return fmt.Errorf("%s: %w", op, ErrUnavailable)
	}

	id = strings.TrimSpace(id)
	if id == "" {
		return fmt.Errorf("%s: %w", op, ErrInvalidArgument)
	}

	if err := s.comments.DeleteComment(ctx, id); err != nil {
		return fmt.Errorf("%s: %w", op, mapStorageErr(err))
	}

	log.From(ctx).Info("comment_deleted", slog.String("id", id))

	return nil
}

// ListCourseComments returns a page of root comments of a course, newest first.
func (s *Service) ListCourseComments(ctx context.Context, courseID string, p models.ListParams) (*models.CommentPage, error) {
	const op = "service.comments.ListCourseComments"

	if s.comments == nil {
		return nil, fmt.Errorf("%s: %w", op, ErrUnavailable)
	}

	courseID = strings.TrimSpace(courseID)
	if courseID == "" || p.PageSize < 0 {
		return nil, fmt.Errorf("%s: %w", op, ErrInvalidArgument)
	}

	page, err := s.comments.ListByCourse(ctx, courseID, p)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, mapStorageErr(err))
	}

	return page, nil
}

// ListReplies returns a page of direct replies, oldest first.
func (s *Service) ListReplies(ctx context.Context, parentID string, p models.ListParams) (*models.CommentPage, error) {
	const op = "service.comments.ListReplies"

	if s.comments == nil {
		return nil, fmt.Errorf("%s: %w", op, ErrUnavailable)
	}

	parentID = strings.TrimSpace(parentID)
	if parentID == "" || p.PageSize < 0 {
		return nil, fmt.Errorf("%s: %w", op, ErrInvalidArgument)
	}

	page, err := s.comments.ListReplies(ctx, parentID, p)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, mapStorageErr(err))
	}

	return page, nil
}

// Comment returns a single comment.
func (s *Service) Comment(ctx context.Context, id string) (*models.Comment, error) {
	const op = "service.comments.Comment"

	if s.comments == nil {
		return nil, fmt.Errorf("%s: %w", op, ErrUnavailable)
	}

	id = strings.TrimSpace(id)
	if id == "" {
		return nil, fmt.Errorf("%s: %w", op, ErrInvalidArgument)
	}

	c, err := s.comments.CommentByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, mapStorageErr(err))
	}

	return c, nil
}
