package core

import "context"

// DeliveryChannel performs the external side effect of an Action stage:
// sending a generated reply back over Telegram, Gmail or any other
// transport. Whether the send is a threaded reply or a new message is
// decided solely by the presence of correlation identifiers.
type DeliveryChannel interface {
	// Deliver sends text to the destination described by corr.
	Deliver(ctx context.Context, corr Correlation, text string) error

	// Name identifies the channel in logs and DeliveryError values.
	Name() string
}
