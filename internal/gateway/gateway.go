// Package gateway contains the SMS delivery providers. Providers are a
// closed set of kinds resolved through a constructor table; adding one means
// adding a kind and a constructor, not another string branch.
package gateway

import (
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/eduotp/eduotp/internal/service"
	"github.com/sirupsen/logrus"
)

type Kind string

const (
	KindSNS     Kind = "sns"
	KindConsole Kind = "console"
)

var constructors = map[Kind]func(aws.Config, *logrus.Logger) service.DeliveryGateway{
	KindSNS:     func(cfg aws.Config, logger *logrus.Logger) service.DeliveryGateway { return NewSNSGateway(cfg, logger) },
	KindConsole: func(_ aws.Config, logger *logrus.Logger) service.DeliveryGateway { return NewConsoleGateway(logger) },
}

// New resolves a provider kind to a configured gateway.
func New(kind Kind, awsCfg aws.Config, logger *logrus.Logger) (service.DeliveryGateway, error) {
	ctor, ok := constructors[kind]
	if !ok {
		return nil, fmt.Errorf("unknown SMS provider %q", kind)
	}
	return ctor(awsCfg, logger), nil
}
