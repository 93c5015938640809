package notification

import "context"

// Sender delivers one rendered message to one recipient over one channel.
// Failures wrapping ErrInvalidRecipient or ErrPermanentDelivery are final;
// any other error is retried.
type Sender interface {
	Name() string
	Send(ctx context.Context, to, subject, htmlBody string) error
}

// DeadLetterPublisher announces records that will never be delivered.
type DeadLetterPublisher interface {
	PublishDeadLetter(ctx context.Context, rec *Record) error
}
