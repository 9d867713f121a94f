package handler

import (
	"github.com/labstack/echo/v4"

	"classifieds/internal/domain/entity"
	"classifieds/internal/domain/repository"
	"classifieds/internal/usecase"
	"classifieds/pkg/errors"
	"classifieds/pkg/response"
)

const maxAttachmentSize = 10 << 20

type ChatHandler struct {
	chatUseCase *usecase.ChatUseCase
}

func NewChatHandler(chatUseCase *usecase.ChatUseCase) *ChatHandler {
	return &ChatHandler{
		chatUseCase: chatUseCase,
	}
}

type listingRefRequest struct {
	ListingID string  `json:"listing_id" validate:"required"`
	Title     string  `json:"title"`
	Price     float64 `json:"price" validate:"gte=0"`
	ImageURL  string  `json:"image_url" validate:"omitempty,url"`
}

type startSessionRequest struct {
	OtherUserID string             `json:"other_user_id" validate:"required"`
	Context     *listingRefRequest `json:"context" validate:"omitempty"`
}

type updateSessionRequest struct {
	IsActive *bool `json:"is_active" validate:"required"`
}

type mediaRequest struct {
	URL      string `json:"url" validate:"required,url"`
	PublicID string `json:"public_id"`
}

type sendMessageRequest struct {
	Content string        `json:"content" validate:"required"`
	Kind    string        `json:"kind" validate:"omitempty,oneof=text image file"`
	Media   *mediaRequest `json:"media" validate:"omitempty"`
}

func (h *ChatHandler) ListSessions(c echo.Context) error {
	userID := c.Get("uid").(string)

	sessions, err := h.chatUseCase.ListSessions(c.Request().Context(), userID)
	if err != nil {
		return response.Error(c, err)
	}
	return response.Success(c, sessions)
}

func (h *ChatHandler) StartSession(c echo.Context) error {
	var req startSessionRequest
	if err := c.Bind(&req); err != nil {
		return response.Error(c, err)
	}
	if err := c.Validate(&req); err != nil {
		return response.Error(c, err)
	}

	userID := c.Get("uid").(string)

	input := usecase.StartSessionInput{OtherUserID: req.OtherUserID}
	if req.Context != nil {
		input.Context = &entity.ListingRef{
			ListingID: req.Context.ListingID,
			Title:     req.Context.Title,
			Price:     req.Context.Price,
			ImageURL:  req.Context.ImageURL,
		}
	}

	session, created, err := h.chatUseCase.StartOrGetSession(c.Request().Context(), userID, input)
	if err != nil {
		return response.Error(c, err)
	}
	if created {
		return response.Created(c, session)
	}
	return response.Success(c, session)
}

func (h *ChatHandler) GetSession(c echo.Context) error {
	userID := c.Get("uid").(string)

	session, err := h.chatUseCase.GetSession(c.Request().Context(), c.Param("id"), userID)
	if err != nil {
		return response.Error(c, err)
	}
	return response.Success(c, session)
}

// UpdateSession only accepts is_active. Unknown fields are ignored.
func (h *ChatHandler) UpdateSession(c echo.Context) error {
	var req updateSessionRequest
	if err := c.Bind(&req); err != nil {
		return response.Error(c, err)
	}
	if err := c.Validate(&req); err != nil {
		return response.Error(c, err)
	}

	userID := c.Get("uid").(string)

	session, err := h.chatUseCase.UpdateSession(c.Request().Context(), c.Param("id"), userID, repository.SessionUpdate{
		IsActive: req.IsActive,
	})
	if err != nil {
		return response.Error(c, err)
	}
	return response.Success(c, session)
}

// GetMessages returns the full log and marks it read for the caller.
func (h *ChatHandler) GetMessages(c echo.Context) error {
	userID := c.Get("uid").(string)

	messages, err := h.chatUseCase.GetMessageLog(c.Request().Context(), c.Param("id"), userID)
	if err != nil {
		return response.Error(c, err)
	}
	return response.Success(c, messages)
}

func (h *ChatHandler) SendMessage(c echo.Context) error {
	var req sendMessageRequest
	if err := c.Bind(&req); err != nil {
		return response.Error(c, err)
	}
	if err := c.Validate(&req); err != nil {
		return response.Error(c, err)
	}

	userID := c.Get("uid").(string)

	input := usecase.SendMessageInput{
		SessionID: c.Param("id"),
		Content:   req.Content,
		Kind:      entity.MessageKind(req.Kind),
	}
	if req.Media != nil {
		input.Media = &entity.MediaRef{URL: req.Media.URL, PublicID: req.Media.PublicID}
	}

	message, err := h.chatUseCase.SendMessage(c.Request().Context(), userID, input)
	if err != nil {
		return response.Error(c, err)
	}
	return response.Created(c, message)
}

// UploadAttachment takes a multipart "file" and returns the media reference
// to put on an image or file message.
func (h *ChatHandler) UploadAttachment(c echo.Context) error {
	userID := c.Get("uid").(string)

	fileHeader, err := c.FormFile("file")
	if err != nil {
		return response.Error(c, errors.InvalidArgument("file is required", err))
	}
	if fileHeader.Size > maxAttachmentSize {
		return response.Error(c, errors.InvalidArgument("file exceeds 10MB", nil))
	}

	file, err := fileHeader.Open()
	if err != nil {
		return response.Error(c, errors.InvalidArgument("could not read file", err))
	}
	defer file.Close()

	contentType := fileHeader.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	ref, err := h.chatUseCase.UploadAttachment(c.Request().Context(), c.Param("id"), userID, file, contentType)
	if err != nil {
		return response.Error(c, err)
	}
	return response.Created(c, ref)
}
