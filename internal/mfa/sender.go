package mfa

import (
	"context"
	"errors"
	"log"
)

// Delivery channels accepted by SendOTP.
const (
	ChannelEmail = "email"
	ChannelSMS   = "sms"
)

// ErrUnsupportedChannel means the sender cannot deliver on the requested channel.
var ErrUnsupportedChannel = errors.New("unsupported delivery channel")

// Sender delivers a one-time code to an identity over a channel.
type Sender interface {
	Send(ctx context.Context, channel, identity, code string) error
}

// LogSender writes the code to the process log instead of delivering it.
// It exposes the code, so it must only be wired in dev.
type LogSender struct{}

// NewLogSender returns a Sender that logs codes. Dev only.
func NewLogSender() *LogSender {
	return &LogSender{}
}

// Send logs the code.
func (s *LogSender) Send(ctx context.Context, channel, identity, code string) error {
	log.Printf("mfa: otp channel=%s identity=%s code=%s", channel, identity, code)
	return nil
}

// RouterSender dispatches per channel, falling back to Default for channels
// without a dedicated sender.
type RouterSender struct {
	byChannel map[string]Sender
	fallback  Sender
}

// NewRouterSender returns a sender routing each channel to its entry in
// byChannel, or to fallback.
func NewRouterSender(byChannel map[string]Sender, fallback Sender) *RouterSender {
	return &RouterSender{byChannel: byChannel, fallback: fallback}
}

// Send routes the code to the channel's sender.
func (s *RouterSender) Send(ctx context.Context, channel, identity, code string) error {
	if snd, ok := s.byChannel[channel]; ok {
		return snd.Send(ctx, channel, identity, code)
	}
	if s.fallback == nil {
		return ErrUnsupportedChannel
	}
	return s.fallback.Send(ctx, channel, identity, code)
}

// FuncSender adapts a function to the Sender interface. Used in tests to
// capture delivered codes.
type FuncSender func(ctx context.Context, channel, identity, code string) error

// Send calls the wrapped function.
func (f FuncSender) Send(ctx context.Context, channel, identity, code string) error {
	return f(ctx, channel, identity, code)
}
