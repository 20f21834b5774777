package mail

import (
	"context"
	"errors"
	"net/smtp"
	"testing"

	"github.com/mrz1836/postmark"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cryptogate/cryptogate/internal/pkg/config"
)

func validMessage() Message {
	return Message{To: "ops@merchant.example", Subject: "Usage alert", HTMLBody: "<p>95%</p>", Tag: "usage-alert"}
}

func TestMessageValidate(t *testing.T) {
	assert.NoError(t, validMessage().Validate())
	assert.ErrorIs(t, Message{Subject: "x"}.Validate(), ErrInvalidMessage)
	assert.ErrorIs(t, Message{To: "a@b.c"}.Validate(), ErrInvalidMessage)
}

func TestNewSender(t *testing.T) {
	s, err := NewSender(config.MailConfig{Driver: config.MailDriverDisabled})
	require.NoError(t, err)
	assert.False(t, s.Enabled())

	s, err = NewSender(config.MailConfig{Driver: config.MailDriverSMTP, SMTPHost: "localhost", SMTPPort: "25"})
	require.NoError(t, err)
	assert.IsType(t, &SMTPSender{}, s)

	_, err = NewSender(config.MailConfig{Driver: config.MailDriverPostmark, From: "a@b.c"})
	assert.Error(t, err)

	_, err = NewSender(config.MailConfig{Driver: "pigeon"})
	assert.Error(t, err)
}

func TestSMTPSender(t *testing.T) {
	s := NewSMTPSender(config.MailConfig{SMTPHost: "mail.local", SMTPPort: "2525", From: "alerts@gateway.example"})

	var gotAddr string
	var gotTo []string
	var gotBody []byte
	s.send = func(addr string, a smtp.Auth, from string, to []string, msg []byte) error {
		gotAddr, gotTo, gotBody = addr, to, msg
		return nil
	}

	require.NoError(t, s.Send(context.Background(), validMessage()))
	assert.Equal(t, "mail.local:2525", gotAddr)
	assert.Equal(t, []string{"ops@merchant.example"}, gotTo)
	assert.Contains(t, string(gotBody), "Subject: Usage alert\r\n")
	assert.Contains(t, string(gotBody), "Content-Type: text/html")

	s.send = func(string, smtp.Auth, string, []string, []byte) error { return errors.New("connection refused") }
	assert.ErrorIs(t, s.Send(context.Background(), validMessage()), ErrSendFailed)
}

type fakePostmark struct {
	sent []postmark.Email
	resp postmark.EmailResponse
	err  error
}

func (f *fakePostmark) SendEmail(ctx context.Context, email postmark.Email) (postmark.EmailResponse, error) {
	f.sent = append(f.sent, email)
	return f.resp, f.err
}

func TestPostmarkSender(t *testing.T) {
	fake := &fakePostmark{}
	s := &PostmarkSender{client: fake, from: "alerts@gateway.example", stream: "outbound"}

	require.NoError(t, s.Send(context.Background(), validMessage()))
	require.Len(t, fake.sent, 1)
	assert.Equal(t, "alerts@gateway.example", fake.sent[0].From)
	assert.Equal(t, "usage-alert", fake.sent[0].Tag)
	assert.Equal(t, "outbound", fake.sent[0].MessageStream)

	fake.resp = postmark.EmailResponse{ErrorCode: 406, Message: "inactive recipient"}
	err := s.Send(context.Background(), validMessage())
	assert.ErrorIs(t, err, ErrSendFailed)
	assert.Contains(t, err.Error(), "406")
}

func TestDisabledDropsMessages(t *testing.T) {
	assert.NoError(t, Disabled{}.Send(context.Background(), validMessage()))
	assert.Error(t, Disabled{}.Send(context.Background(), Message{}))
}
