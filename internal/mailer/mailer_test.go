package mailer

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFormatCents(t *testing.T) {
	assert.Equal(t, "12.50", FormatCents(1250))
	assert.Equal(t, "0.05", FormatCents(5))
	assert.Equal(t, "1000.00", FormatCents(100000))
}

func TestOrderReceived(t *testing.T) {
	msg := OrderReceived("Nimal", "o-1", 2500, []string{"2 x Tuna"})
	assert.Contains(t, msg.Subject, "o-1")
	assert.Contains(t, msg.Body, "2 x Tuna")
	assert.Contains(t, msg.Body, "25.00")
}

func TestSendHonoursCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	s := NewSMTPSender("localhost", 2525, "from@example.com", "", "")
	assert.ErrorIs(t, s.Send(ctx, "to@example.com", "hi", "body"), context.Canceled)
}

func TestDiscard(t *testing.T) {
	assert.NoError(t, Discard{}.Send(context.Background(), "a@b.c", "s", "m"))
}
