package service

import (
	"context"
	"strconv"

	"shelfmate/internal/models"

	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/messaging"
	"go.uber.org/zap"
	"google.golang.org/api/option"
)

// FCMService sends push notifications via Firebase Cloud Messaging.
type FCMService struct {
	client *messaging.Client
	log    *zap.Logger
}

// NewFCMService creates an FCM service. Returns nil if Firebase is not configured.
func NewFCMService(ctx context.Context, serviceAccountPath string, log *zap.Logger) *FCMService {
	if serviceAccountPath == "" {
		return nil
	}
	opt := option.WithCredentialsFile(serviceAccountPath)
	app, err := firebase.NewApp(ctx, nil, opt)
	if err != nil {
		log.Error("fcm: init firebase app", zap.Error(err))
		return nil
	}
	client, err := app.Messaging(ctx)
	if err != nil {
		log.Error("fcm: messaging client", zap.Error(err))
		return nil
	}
	return &FCMService{client: client, log: log}
}

func (s *FCMService) Name() string { return "fcm" }

// Push sends msg to the recipient's registered device, if any.
func (s *FCMService) Push(ctx context.Context, recipient *models.Member, msg PushMessage) error {
	if s == nil || recipient.FCMToken == "" {
		return nil
	}
	data := map[string]string{
		"type":            msg.Type,
		"notification_id": strconv.FormatUint(uint64(msg.NotificationID), 10),
	}
	if msg.MatchID != 0 {
		data["match_id"] = strconv.FormatUint(uint64(msg.MatchID), 10)
	}
	return s.Send(ctx, recipient.FCMToken, msg.Title, msg.Body, data)
}

// Send sends a push notification to the given FCM token.
func (s *FCMService) Send(ctx context.Context, token string, title, body string, data map[string]string) error {
	if s == nil || token == "" {
		return nil
	}
	message := &messaging.Message{
		Notification: &messaging.Notification{
			Title: title,
			Body:  body,
		},
		Data:  data,
		Token: token,
		Android: &messaging.AndroidConfig{
			Priority: "high",
			Notification: &messaging.AndroidNotification{
				Sound: "default",
			},
		},
		APNS: &messaging.APNSConfig{
			Payload: &messaging.APNSPayload{
				Aps: &messaging.Aps{
					Sound: "default",
				},
			},
		},
	}
	if _, err := s.client.Send(ctx, message); err != nil {
		s.log.Warn("fcm: send", zap.Error(err))
		return err
	}
	return nil
}
