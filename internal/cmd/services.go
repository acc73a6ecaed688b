package main

import (
	"github.com/jonboulle/clockwork"

	"github.com/mcdev12/pollroom/internal/gateway"
)

type Services struct {
	Gateway *gateway.Service
}

func setupServices(config *Config) *Services {
	gatewayConfig := gateway.Config{
		ConnectionConfig: gateway.DefaultConnectionConfig(),
		PollDurationSec:  config.Poll.DurationSec,
	}

	return &Services{
		Gateway: gateway.NewService(gatewayConfig, clockwork.NewRealClock()),
	}
}
