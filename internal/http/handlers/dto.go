package handlers

import (
	"time"

	"github.com/pribylovaa/training-center/internal/models"
)

// REST request and response bodies. Field names follow the web client.

type registerRequest struct {
	Email       string `json:"email"`
	Password    string `json:"password"`
	DisplayName string `json:"displayName"`
}

type loginRequest struct {
	Identifier string `json:"identifier"`
	Password   string `json:"password"`
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

type authResponse struct {
	Token        string        `json:"token"`
	RefreshToken string        `json:"refreshToken"`
	User         *userResponse `json:"user,omitempty"`
}

type verifyResponse struct {
	Success bool         `json:"success"`
	User    userResponse `json:"user"`
}

type userResponse struct {
	ID          string `json:"id"`
	Role        string `json:"role"`
	DisplayName string `json:"displayName"`
	Email       string `json:"email,omitempty"`
	AvatarURL   string `json:"avatarUrl,omitempty"`
}

type userEnvelope struct {
	User userResponse `json:"user"`
}

type updateProfileRequest struct {
	DisplayName string `json:"displayName"`
}

type presignRequest struct {
	ContentType   string `json:"contentType"`
	ContentLength int64  `json:"contentLength"`
}

type presignResponse struct {
	UploadURL       string            `json:"uploadUrl"`
	AvatarKey       string            `json:"avatarKey"`
	ExpiresIn       int64             `json:"expiresIn"`
	RequiredHeaders map[string]string `json:"requiredHeaders"`
}

type confirmRequest struct {
	AvatarKey string `json:"avatarKey"`
}

type adminPatchRequest struct {
	Role   *string `json:"role"`
	Active *bool   `json:"active"`
}

type createCommentRequest struct {
	Content  string `json:"content"`
	ParentID string `json:"parentId"`
}

type commentResponse struct {
	ID           string    `json:"id"`
	CourseID     string    `json:"courseId"`
	ParentID     string    `json:"parentId,omitempty"`
	UserID       string    `json:"userId"`
	Username     string    `json:"username"`
	Content      string    `json:"content"`
	Level        int32     `json:"level"`
	RepliesCount int32     `json:"repliesCount"`
	IsDeleted    bool      `json:"isDeleted"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

type commentEnvelope struct {
	Comment commentResponse `json:"comment"`
}

type commentPageResponse struct {
	Items         []commentResponse `json:"items"`
	NextPageToken string            `json:"nextPageToken,omitempty"`
}

func userFromModel(u *models.User) userResponse {
	return userResponse{
		ID:          u.ID.String(),
		Role:        string(u.Role),
		DisplayName: u.DisplayName,
		Email:       u.Email,
		AvatarURL:   u.AvatarURL,
	}
}

func userFromClaims(c *models.Claims) userResponse {
	return userResponse{
		ID:          c.UserID.String(),
		Role:        string(c.Role),
		DisplayName: c.DisplayName,
	}
}

func authFromModel(p *models.TokenPair, u *models.User) authResponse {
	out := authResponse{Token: p.AccessToken, RefreshToken: p.RefreshToken}
	if u != nil {
		ur := userFromModel(u)
		out.User = &ur
	}

	return out
}

func commentFromModel(c *models.Comment) commentResponse {
	return commentResponse{
		ID:           c.ID,
		CourseID:     c.CourseID,
		ParentID:     c.ParentID,
		UserID:       c.UserID.String(),
		Username:     c.Username,
		Content:      c.Content,
		Level:        c.Level,
		RepliesCount: c.RepliesCount,
		IsDeleted:    c.IsDeleted,
		CreatedAt:    c.CreatedAt,
		UpdatedAt:    c.UpdatedAt,
	}
}

func pageFromModel(p *models.CommentPage) commentPageResponse {
	out := commentPageResponse{
		Items:         make([]commentResponse, 0, len(p.Items)),
		NextPageToken: p.NextPageToken,
	}
	for i := range p.Items {
		out.Items = append(out.Items, commentFromModel(&p.Items[i]))
	}

	return out
}
