package mongo

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	mongodriver "go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/pribylovaa/training-center/internal/models"
	"github.com/pribylovaa/training-center/internal/storage"
)

type commentDoc struct {
	ID           primitive.ObjectID `bson:"_id,omitempty"`
	CourseID     string             `bson:"course_id"`
	ParentID     string             `bson:"parent_id"`
	UserID       string             `bson:"user_id"`
	Username     string             `bson:"username"`
	Content      string             `bson:"content"`
	Level        int32              `bson:"level"`
	RepliesCount int32              `bson:"replies_count"`
	IsDeleted    bool               `bson:"is_deleted"`
	CreatedAt    time.Time          `bson:"created_at"`
	UpdatedAt    time.Time          `bson:"updated_at"`
}

func (d commentDoc) model() models.Comment {
	uid, _ := uuid.Parse(d.UserID)

	return models.Comment{
		ID:           d.ID.Hex(),
		CourseID:     d.CourseID,
		ParentID:     d.ParentID,
		UserID:       uid,
		Username:     d.Username,
		Content:      d.Content,
		Level:        d.Level,
		RepliesCount: d.RepliesCount,
		IsDeleted:    d.IsDeleted,
		CreatedAt:    d.CreatedAt.UTC(),
		UpdatedAt:    d.UpdatedAt.UTC(),
	}
}

// MongoDB DateTime keeps milliseconds.
func toMS(t time.Time) time.Time { return t.UTC().Truncate(time.Millisecond) }

// encodeCursor packs (created_at, _id) into an opaque page token.
func encodeCursor(t time.Time, id primitive.ObjectID) string {
	raw := strconv.FormatInt(t.UTC().UnixNano(), 10) + "|" + id.Hex()

	return base64.RawURLEncoding.EncodeToString([]byte(raw))
}

func decodeCursor(token string) (time.Time, primitive.ObjectID, error) {
	res, err := base64.RawURLEncoding.DecodeString(strings.TrimSpace(token))
	if err != nil {
		return time.Time{}, primitive.NilObjectID, err
	}

	parts := strings.SplitN(string(res), "|", 2)
	if len(parts) != 2 {
		return time.Time{}, primitive.NilObjectID, errors.New("bad parts")
	}

	nanos, err := strconv.ParseInt(parts[0], 10, 64)
	if err != nil {
		return time.Time{}, primitive.NilObjectID, err
	}

	oid, err := primitive.ObjectIDFromHex(parts[1])
	if err != nil {
		return time.Time{}, primitive.NilObjectID, err
	}

	return time.Unix(0, nanos).UTC(), oid, nil
}

// limit clamps the requested page size to [DefaultPage, MaxPage].
func (m *Mongo) limit(pageSize int32) int64 {
	lim := pageSize
	if lim <= 0 {
		lim = m.limits.DefaultPage
	}

	if lim > m.limits.MaxPage {
		lim = m.limits.MaxPage
	}

	return int64(lim)
}

// CreateComment inserts a root comment or a reply.
// A reply inherits course_id from its parent and bumps the parent's replies_count.
func (m *Mongo) CreateComment(ctx context.Context, c models.Comment) (*models.Comment, error) {
	const op = "storage.mongo.CreateComment"

	now := toMS(time.Now())
	doc := commentDoc{
		CourseID:  strings.TrimSpace(c.CourseID),
		ParentID:  strings.TrimSpace(c.ParentID),
		UserID:    c.UserID.String(),
		Username:  c.Username,
		Content:   c.Content,
		CreatedAt: now,
		UpdatedAt: now,
	}

	var parentOID primitive.ObjectID
	if doc.ParentID != "" {
		oid, err := primitive.ObjectIDFromHex(doc.ParentID)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, storage.ErrParentNotFound)
		}

		var parent commentDoc
		if err := m.comments.FindOne(ctx, bson.D{{Key: "_id", Value: oid}}).Decode(&parent); err != nil {
			if errors.Is(err, mongodriver.ErrNoDocuments) {
				return nil, fmt.Errorf("%s: %w", op, storage.ErrParentNotFound)
			}

			return nil, fmt.Errorf("%s: find parent: %w", op, err)
		}

		if parent.Level+1 > m.limits.MaxDepth {
			return nil, fmt.Errorf("%s: %w", op, storage.ErrMaxDepthExceeded)
		}

		doc.CourseID = parent.CourseID
		doc.Level = parent.Level + 1
		parentOID = oid
	}

	res, err := m.comments.InsertOne(ctx, doc)
	if err != nil {
		return nil, fmt.Errorf("%s: insert: %w", op, err)
	}

	oid, ok := res.InsertedID.(primitive.ObjectID)
	if !ok {
		return nil, fmt.Errorf("%s: inserted id type %T", op, res.InsertedID)
	}
	doc.ID = oid

	if !parentOID.IsZero() {
		_, err := m.comments.UpdateByID(ctx, parentOID, bson.D{
			{Key: "$inc", Value: bson.D{{Key: "replies_count", Value: 1}}},
			{Key: "$set", Value: bson.D{{Key: "updated_at", Value: toMS(time.Now())}}},
		})
		if err != nil {
			return nil, fmt.Errorf("%s: bump replies: %w", op, err)
		}
	}

	out := doc.model()
	return &out, nil
}

// DeleteComment soft-deletes a comment and blanks its content.
func (m *Mongo) DeleteComment(ctx context.Context, id string) error {
	const op = "storage.mongo.DeleteComment"

	oid, err := primitive.ObjectIDFromHex(strings.TrimSpace(id))
	if err != nil {
		return fmt.Errorf("%s: %w", op, storage.ErrNotFound)
	}

	res, err := m.comments.UpdateByID(ctx, oid, bson.D{
		{Key: "$set", Value: bson.D{
			{Key: "is_deleted", Value: true},
			{Key: "content", Value: ""},
			{Key: "updated_at", Value: toMS(time.Now())},
		}},
	})
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	if res.MatchedCount == 0 {
		return fmt.Errorf("%s: %w", op, storage.ErrNotFound)
	}

	return nil
}

// CommentByID returns a comment. A malformed id is reported as not found.
func (m *Mongo) CommentByID(ctx context.Context, id string) (*models.Comment, error) {
	const op = "storage.mongo.CommentByID"

	oid, err := primitive.ObjectIDFromHex(strings.TrimSpace(id))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, storage.ErrNotFound)
	}

	var doc commentDoc
	if err := m.comments.FindOne(ctx, bson.D{{Key: "_id", Value: oid}}).Decode(&doc); err != nil {
		if errors.Is(err, mongodriver.ErrNoDocuments) {
			return nil, fmt.Errorf("%s: %w", op, storage.ErrNotFound)
		}

		return nil, fmt.Errorf("%s: %w", op, err)
	}

	out := doc.model()
	return &out, nil
}

// ListByCourse returns root comments of a course, created_at DESC, _id DESC.
func (m *Mongo) ListByCourse(ctx context.Context, courseID string, p models.ListParams) (*models.CommentPage, error) {
	const op = "storage.mongo.ListByCourse"

	courseID = strings.TrimSpace(courseID)
	if courseID == "" {
		return nil, fmt.Errorf("%s: %w", op, storage.ErrInvalidArgument)
	}

	filter := bson.D{
		{Key: "course_id", Value: courseID},
		{Key: "parent_id", Value: ""},
	}

	page, err := m.list(ctx, filter, p, -1)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return page, nil
}

// ListReplies returns direct replies of a comment, created_at ASC, _id ASC.
func (m *Mongo) ListReplies(ctx context.Context, parentID string, p models.ListParams) (*models.CommentPage, error) {
	const op = "storage.mongo.ListReplies"

	parentOID, err := primitive.ObjectIDFromHex(strings.TrimSpace(parentID))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, storage.ErrNotFound)
	}

	page, err := m.list(ctx, bson.D{{Key: "parent_id", Value: parentOID.Hex()}}, p, 1)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return page, nil
}

// list runs a keyset query. dir is 1 for ascending, -1 for descending.
func (m *Mongo) list(ctx context.Context, filter bson.D, p models.ListParams, dir int) (*models.CommentPage, error) {
	cmp := "$gt"
	if dir < 0 {
		cmp = "$lt"
	}

	if strings.TrimSpace(p.PageToken) != "" {
		t, oid, err := decodeCursor(p.PageToken)
		if err != nil {
			return nil, storage.ErrInvalidCursor
		}

		filter = append(filter, bson.E{Key: "$or", Value: bson.A{
			bson.D{{Key: "created_at", Value: bson.D{{Key: cmp, Value: t}}}},
			bson.D{
				{Key: "created_at", Value: t},
				{Key: "_id", Value: bson.D{{Key: cmp, Value: oid}}},
			},
		}})
	}

	limit := m.limit(p.PageSize)
	findOpts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: dir}, {Key: "_id", Value: dir}}).
		SetLimit(limit)

	cur, err := m.comments.Find(ctx, filter, findOpts)
	if err != nil {
		return nil, fmt.Errorf("find: %w", err)
	}
	defer cur.Close(ctx)

	var (
		items []models.Comment
		last  commentDoc
	)
	for cur.Next(ctx) {
		var doc commentDoc
		if err := cur.Decode(&doc); err != nil {
			return nil, fmt.Errorf("decode: %w", err)
		}
		items = append(items, doc.model())
		last = doc
	}

	if err := cur.Err(); err != nil {
		return nil, fmt.Errorf("cursor: %w", err)
	}

	var next string
	if int64(len(items)) == limit {
		next = encodeCursor(last.CreatedAt, last.ID)
	}

	return &models.CommentPage{Items: items, NextPageToken: next}, nil
}
