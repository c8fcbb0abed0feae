package services

import (
	"fmt"

	"ticket-ledger/internal/services/gateway"
	"ticket-ledger/internal/services/gateway/paystack"
	"ticket-ledger/internal/services/gateway/sandbox"
	"ticket-ledger/monitoring"
	"ticket-ledger/utils"
)

// PaymentGateway is a configured provider behind a circuit breaker.
type PaymentGateway struct {
	gateway.Gateway

	// Webhooks is nil when the provider does not post webhooks.
	Webhooks WebhookParser

	// Sandbox is set only for the sandbox provider.
	Sandbox *sandbox.Gateway
}

// GatewayFactory builds gateways by provider name.
type GatewayFactory struct {
	monitor *monitoring.Monitor
}

func NewGatewayFactory(monitor *monitoring.Monitor) *GatewayFactory {
	return &GatewayFactory{monitor: monitor}
}

// CreateGateway builds the provider from its config: *paystack.Config for
// paystack, the checkout URL string for sandbox.
func (f *GatewayFactory) CreateGateway(provider gateway.Provider, config any) (*PaymentGateway, error) {
	switch provider {
	case gateway.ProviderPaystack:
		cfg, ok := config.(*paystack.Config)
		if !ok {
			return nil, fmt.Errorf("invalid paystack config type, expected *paystack.Config")
		}
		client, err := paystack.New(cfg)
		if err != nil {
			return nil, err
		}
		return &PaymentGateway{
			Gateway:  f.guard(client),
			Webhooks: client,
		}, nil

	case gateway.ProviderSandbox:
		checkoutURL, ok := config.(string)
		if !ok {
			return nil, fmt.Errorf("invalid sandbox config type, expected checkout url string")
		}
		sb := sandbox.New(checkoutURL)
		return &PaymentGateway{
			Gateway: f.guard(sb),
			Sandbox: sb,
		}, nil

	default:
		return nil, fmt.Errorf("unsupported payment gateway provider %q, expected one of %v", provider, f.SupportedProviders())
	}
}

func (f *GatewayFactory) SupportedProviders() []gateway.Provider {
	return []gateway.Provider{
		gateway.ProviderPaystack,
		gateway.ProviderSandbox,
	}
}

func (f *GatewayFactory) guard(g gateway.Gateway) gateway.Gateway {
	cb := utils.NewCircuitBreaker(string(g.Provider()), utils.WithTripThreshold(10, 0.6))
	return gateway.WithCircuitBreaker(g, cb, f.monitor)
}
