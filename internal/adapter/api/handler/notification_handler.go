package handler

import (
	"strconv"

	"github.com/labstack/echo/v4"

	"classifieds/internal/domain/entity"
	"classifieds/internal/usecase"
	"classifieds/pkg/response"
	"classifieds/pkg/utils"
)

type NotificationHandler struct {
	notificationUseCase *usecase.NotificationUseCase
}

func NewNotificationHandler(notificationUseCase *usecase.NotificationUseCase) *NotificationHandler {
	return &NotificationHandler{
		notificationUseCase: notificationUseCase,
	}
}

type createNotificationRequest struct {
	RecipientID string                 `json:"recipient_id" validate:"required"`
	SenderID    string                 `json:"sender_id"`
	Type        string                 `json:"type" validate:"required,oneof=new_message post_approved post_rejected post_expired payment_success payment_failed system"`
	Title       string                 `json:"title" validate:"required,max=200"`
	Message     string                 `json:"message" validate:"max=2000"`
	Data        map[string]interface{} `json:"data"`
	Link        string                 `json:"link"`
}

// GetNotifications supports ?unread_only=true&page=&limit=.
func (h *NotificationHandler) GetNotifications(c echo.Context) error {
	userID := c.Get("uid").(string)
	unreadOnly, _ := strconv.ParseBool(c.QueryParam("unread_only"))
	pagination := utils.GetPaginationParams(c)

	notifications, total, err := h.notificationUseCase.List(c.Request().Context(), userID, unreadOnly, pagination)
	if err != nil {
		return response.Error(c, err)
	}
	return response.Paginated(c, notifications, total, pagination.Page, pagination.PageSize)
}

func (h *NotificationHandler) GetUnreadCount(c echo.Context) error {
	userID := c.Get("uid").(string)

	count, err := h.notificationUseCase.CountUnread(c.Request().Context(), userID)
	if err != nil {
		return response.Error(c, err)
	}
	return response.Success(c, map[string]int64{"unread_count": count})
}

func (h *NotificationHandler) MarkAsRead(c echo.Context) error {
	userID := c.Get("uid").(string)

	notification, err := h.notificationUseCase.MarkRead(c.Request().Context(), c.Param("id"), userID)
	if err != nil {
		return response.Error(c, err)
	}
	return response.Success(c, notification)
}

func (h *NotificationHandler) MarkAllAsRead(c echo.Context) error {
	userID := c.Get("uid").(string)

	updated, err := h.notificationUseCase.MarkAllRead(c.Request().Context(), userID)
	if err != nil {
		return response.Error(c, err)
	}
	return response.Success(c, map[string]int{"updated": updated})
}

func (h *NotificationHandler) DeleteNotification(c echo.Context) error {
	userID := c.Get("uid").(string)

	if err := h.notificationUseCase.Delete(c.Request().Context(), c.Param("id"), userID); err != nil {
		return response.Error(c, err)
	}
	return response.Success(c, map[string]string{"message": "Notification deleted"})
}

// CreateNotification lets trusted collaborators (moderation, payments) file
// a notification for any user.
func (h *NotificationHandler) CreateNotification(c echo.Context) error {
	var req createNotificationRequest
	if err := c.Bind(&req); err != nil {
		return response.Error(c, err)
	}
	if err := c.Validate(&req); err != nil {
		return response.Error(c, err)
	}

	notification, err := h.notificationUseCase.Create(c.Request().Context(), usecase.CreateNotificationInput{
		RecipientID: req.RecipientID,
		SenderID:    req.SenderID,
		Type:        entity.NotificationType(req.Type),
		Title:       req.Title,
		Message:     req.Message,
		Data:        req.Data,
		Link:        req.Link,
	})
	if err != nil {
		return response.Error(c, err)
	}
	return response.Created(c, notification)
}
