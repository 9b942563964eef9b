package mongo

import (
	"context"
	"encoding/base64"
	"fmt"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/pribylovaa/training-center/internal/config"
	"github.com/pribylovaa/training-center/internal/models"
	"github.com/pribylovaa/training-center/internal/storage"
)

const testTimeout = 10 * time.Second

// TestMain starts one MongoDB container per package when integration tests are on.
// Each test gets its own database (see mustNewMongo).
func TestMain(m *testing.M) {
	if os.Getenv("GO_TEST_INTEGRATION") == "" {
		os.Exit(m.Run())
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	mongoC, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "mongo:7.0",
			ExposedPorts: []string{"27017/tcp"},
			WaitingFor:   wait.ForLog("Waiting for connections").WithStartupTimeout(90 * time.Second),
		},
		Started: true,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to start mongo testcontainer: %v\n", err)
		os.Exit(1)
	}

	host, err := mongoC.Host(ctx)
	if err != nil {
		_ = mongoC.Terminate(ctx)
		fmt.Fprintf(os.Stderr, "failed to get container host: %v\n", err)
		os.Exit(1)
	}

	port, err := mongoC.MappedPort(ctx, "27017/tcp")
	if err != nil {
		_ = mongoC.Terminate(ctx)
		fmt.Fprintf(os.Stderr, "failed to get mapped port: %v\n", err)
		os.Exit(1)
	}

	_ = os.Setenv("MONGO_URL", fmt.Sprintf("mongodb://%s:%s", host, port.Port()))

	code := m.Run()

	_ = mongoC.Terminate(context.Background())
	os.Exit(code)
}

func testLimits() config.CommentsConfig {
	return config.CommentsConfig{DefaultPage: 2, MaxPage: 100, MaxDepth: 3}
}

func mustNewMongo(t *testing.T) *Mongo {
	t.Helper()
	if os.Getenv("GO_TEST_INTEGRATION") == "" {
		t.Skip("integration tests are disabled (set GO_TEST_INTEGRATION=1)")
	}

	uri := strings.TrimRight(os.Getenv("MONGO_URL"), "/") + "/comments_test_" + strings.ReplaceAll(uuid.NewString(), "-", "")

	ctx, cancel := context.WithTimeout(context.Background(), testTimeout)
	defer cancel()

	m, err := New(ctx, uri, testLimits())
	require.NoError(t, err, "MONGO_URL=%s", uri)

	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), testTimeout)
		defer cancel()
		_ = m.db.Drop(ctx)
		_ = m.Close(ctx)
	})

	return m
}

func newComment(course, parent, content string) models.Comment {
	return models.Comment{
		CourseID: course,
		ParentID: parent,
		UserID:   uuid.New(),
		Username: "student",
		Content:  content,
	}
}

func TestCursor_RoundTrip(t *testing.T) {
	t.Parallel()

	now := time.Now().UTC()
	oid := primitive.NewObjectID()

	gotT, gotID, err := decodeCursor(encodeCursor(now, oid))
	require.NoError(t, err)
	require.True(t, gotT.Equal(now))
	require.Equal(t, oid, gotID)
}

func TestCursor_Invalid(t *testing.T) {
	t.Parallel()

	for _, tok := range []string{
		"%%%",
		"bm9waXBl",
		encodeB64("abc|" + primitive.NewObjectID().Hex()),
		encodeB64("123|zz"),
	} {
		_, _, err := decodeCursor(tok)
		require.Error(t, err, tok)
	}
}

func encodeB64(s string) string {
	return base64.RawURLEncoding.EncodeToString([]byte(s))
}

func TestLimit_Clamp(t *testing.T) {
	t.Parallel()

	m := &Mongo{limits: config.CommentsConfig{DefaultPage: 20, MaxPage: 50}}
	require.EqualValues(t, 20, m.limit(0))
	require.EqualValues(t, 20, m.limit(-3))
	require.EqualValues(t, 7, m.limit(7))
	require.EqualValues(t, 50, m.limit(500))
}

func TestDatabaseFromURI(t *testing.T) {
	t.Parallel()

	require.Equal(t, "tc", databaseFromURI("mongodb://localhost:27017/tc"))
	require.Equal(t, "tc", databaseFromURI("mongodb://localhost:27017/tc?replicaSet=rs0"))
	require.Equal(t, defaultDBName, databaseFromURI("mongodb://localhost:27017"))
	require.Equal(t, defaultDBName, databaseFromURI("mongodb://localhost:27017/"))
	require.Equal(t, defaultDBName, databaseFromURI("::bad"))
}

func TestNew_EmptyURL(t *testing.T) {
	t.Parallel()

	_, err := New(context.Background(), "", testLimits())
	require.Error(t, err)
}

func TestIntegration_CreateRootAndReply(t *testing.T) {
	m := mustNewMongo(t)
	ctx := context.Background()

	root, err := m.CreateComment(ctx, newComment("go-101", "", "first"))
	require.NoError(t, err)
	require.NotEmpty(t, root.ID)
	require.EqualValues(t, 0, root.Level)
	require.False(t, root.CreatedAt.IsZero())

	// course id of a reply always follows the parent.
	reply, err := m.CreateComment(ctx, newComment("other-course", root.ID, "re"))
	require.NoError(t, err)
	require.Equal(t, "go-101", reply.CourseID)
	require.EqualValues(t, 1, reply.Level)

	got, err := m.CommentByID(ctx, root.ID)
	require.NoError(t, err)
	require.EqualValues(t, 1, got.RepliesCount)
	require.Equal(t, root.UserID, got.UserID)
}

func TestIntegration_CreateComment_ParentErrors(t *testing.T) {
	m := mustNewMongo(t)
	ctx := context.Background()

	_, err := m.CreateComment(ctx, newComment("c", "not-an-oid", "x"))
	require.ErrorIs(t, err, storage.ErrParentNotFound)

	_, err = m.CreateComment(ctx, newComment("c", primitive.NewObjectID().Hex(), "x"))
	require.ErrorIs(t, err, storage.ErrParentNotFound)
}

func TestIntegration_CreateComment_MaxDepth(t *testing.T) {
	m := mustNewMongo(t)
	ctx := context.Background()

	parent, err := m.CreateComment(ctx, newComment("c", "", "l0"))
	require.NoError(t, err)
	for i := 1; i <= 3; i++ {
		parent, err = m.CreateComment(ctx, newComment("c", parent.ID, "deeper"))
		require.NoError(t, err)
		require.EqualValues(t, i, parent.Level)
	}

	_, err = m.CreateComment(ctx, newComment("c", parent.ID, "too deep"))
	require.ErrorIs(t, err, storage.ErrMaxDepthExceeded)
}

func TestIntegration_DeleteComment(t *testing.T) {
	m := mustNewMongo(t)
	ctx := context.Background()

	c, err := m.CreateComment(ctx, newComment("c", "", "secret"))
	require.NoError(t, err)

	require.NoError(t, m.DeleteComment(ctx, c.ID))

	got, err := m.CommentByID(ctx, c.ID)
	require.NoError(t, err)
	require.True(t, got.IsDeleted)
	require.Empty(t, got.Content)

	require.ErrorIs(t, m.DeleteComment(ctx, primitive.NewObjectID().Hex()), storage.ErrNotFound)
	require.ErrorIs(t, m.DeleteComment(ctx, "bad"), storage.ErrNotFound)

	_, err = m.CommentByID(ctx, "bad")
	require.ErrorIs(t, err, storage.ErrNotFound)
}

func TestIntegration_ListByCourse_Paginates(t *testing.T) {
	m := mustNewMongo(t)
	ctx := context.Background()

	var ids []string
	for i := 0; i < 5; i++ {
		c, err := m.CreateComment(ctx, newComment("go-101", "", fmt.Sprintf("c%d", i)))
		require.NoError(t, err)
		ids = append(ids, c.ID)
		time.Sleep(2 * time.Millisecond)
	}
	_, err := m.CreateComment(ctx, newComment("go-101", ids[0], "reply is not a root"))
	require.NoError(t, err)
	_, err = m.CreateComment(ctx, newComment("rust-101", "", "other course"))
	require.NoError(t, err)

	var seen []string
	token := ""
	for pages := 0; pages < 10; pages++ {
		page, err := m.ListByCourse(ctx, "go-101", models.ListParams{PageToken: token})
		require.NoError(t, err)
		for _, c := range page.Items {
			seen = append(seen, c.ID)
		}
		if page.NextPageToken == "" {
			break
		}
		token = page.NextPageToken
	}

	require.Equal(t, []string{ids[4], ids[3], ids[2], ids[1], ids[0]}, seen)

	_, err = m.ListByCourse(ctx, "go-101", models.ListParams{PageToken: "%%%"})
	require.ErrorIs(t, err, storage.ErrInvalidCursor)

	_, err = m.ListByCourse(ctx, "  ", models.ListParams{})
	require.ErrorIs(t, err, storage.ErrInvalidArgument)
}

func TestIntegration_ListReplies_Ascending(t *testing.T) {
	m := mustNewMongo(t)
	ctx := context.Background()

	root, err := m.CreateComment(ctx, newComment("c", "", "root"))
	require.NoError(t, err)

	var ids []string
	for i := 0; i < 3; i++ {
		r, err := m.CreateComment(ctx, newComment("c", root.ID, fmt.Sprintf("r%d", i)))
		require.NoError(t, err)
		ids = append(ids, r.ID)
		time.Sleep(2 * time.Millisecond)
	}

	first, err := m.ListReplies(ctx, root.ID, models.ListParams{PageSize: 2})
	require.NoError(t, err)
	require.Len(t, first.Items, 2)
	require.Equal(t, ids[0], first.Items[0].ID)
	require.NotEmpty(t, first.NextPageToken)

	second, err := m.ListReplies(ctx, root.ID, models.ListParams{PageSize: 2, PageToken: first.NextPageToken})
	require.NoError(t, err)
	require.Len(t, second.Items, 1)
	require.Equal(t, ids[2], second.Items[0].ID)
	require.Empty(t, second.NextPageToken)

	_, err = m.ListReplies(ctx, "bad", models.ListParams{})
	require.ErrorIs(t, err, storage.ErrNotFound)
}
