package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSES struct {
	inputs []*ses.SendEmailInput
	err    error
}

func (f *fakeSES) SendEmail(ctx context.Context, params *ses.SendEmailInput, optFns ...func(*ses.Options)) (*ses.SendEmailOutput, error) {
	f.inputs = append(f.inputs, params)
	if f.err != nil {
		return nil, f.err
	}
	return &ses.SendEmailOutput{MessageId: aws.String("msg-1")}, nil
}

func TestSESNotifier_Lockout(t *testing.T) {
	client := &fakeSES{}
	n := &SESNotifier{client: client, fromAddress: "security@example.com", logger: testLogger()}

	until := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	require.NoError(t, n.NotifyLockout(context.Background(), "owner@example.com", until))

	require.Len(t, client.inputs, 1)
	input := client.inputs[0]
	assert.Equal(t, "security@example.com", aws.ToString(input.Source))
	assert.Equal(t, []string{"owner@example.com"}, input.Destination.ToAddresses)
	assert.Contains(t, aws.ToString(input.Message.Subject.Data), "locked")
	assert.Contains(t, aws.ToString(input.Message.Body.Text.Data), until.Format(time.RFC1123))
}

func TestSESNotifier_TwoFactorChanged(t *testing.T) {
	client := &fakeSES{}
	n := &SESNotifier{client: client, fromAddress: "security@example.com", logger: testLogger()}

	require.NoError(t, n.NotifyTwoFactorChanged(context.Background(), "owner@example.com", false))
	assert.Equal(t, "Two-factor authentication disabled", aws.ToString(client.inputs[0].Message.Subject.Data))
}

func TestSESNotifier_SendError(t *testing.T) {
	client := &fakeSES{err: errors.New("throttled")}
	n := &SESNotifier{client: client, fromAddress: "security@example.com", logger: testLogger()}

	err := n.NotifyPasswordChanged(context.Background(), "owner@example.com", time.Now())
	assert.ErrorContains(t, err, "throttled")
}
