package gateway

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// ConsoleGateway logs messages instead of sending them. Development only.
type ConsoleGateway struct {
	logger *logrus.Logger
}

func NewConsoleGateway(logger *logrus.Logger) *ConsoleGateway {
	return &ConsoleGateway{logger: logger}
}

func (g *ConsoleGateway) Send(_ context.Context, mobile, message, senderID string) (string, error) {
	messageID := fmt.Sprintf("console-%s", uuid.NewString())

	g.logger.WithFields(logrus.Fields{
		"mobile":     mobile,
		"sender_id":  senderID,
		"message":    message,
		"message_id": messageID,
	}).Info("SMS sent (console mode)")

	return messageID, nil
}
