package notify_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/chris/escrow-settlement/pkg/notify"
	"github.com/chris/escrow-settlement/pkg/notify/mocks"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

type fakeSQS struct {
	input *sqs.SendMessageInput
	err   error
}

func (f *fakeSQS) SendMessage(_ context.Context, in *sqs.SendMessageInput, _ ...func(*sqs.Options)) (*sqs.SendMessageOutput, error) {
	f.input = in
	return &sqs.SendMessageOutput{}, f.err
}

func TestSQSNotifier(t *testing.T) {
	t.Run("Success", func(t *testing.T) {
		client := &fakeSQS{}
		notifier := notify.NewSQSNotifier(client, "https://sqs.local/queue")

		err := notifier.Notify(context.Background(), notify.Notification{
			UserID: "seller", Type: notify.TypeEscrowFunded, Message: "funded",
			RelatedIDs: map[string]string{"payment_id": "p1"},
		})

		assert.NoError(t, err)
		assert.Equal(t, "https://sqs.local/queue", *client.input.QueueUrl)
		var decoded notify.Notification
		assert.NoError(t, json.Unmarshal([]byte(*client.input.MessageBody), &decoded))
		assert.Equal(t, "p1", decoded.RelatedIDs["payment_id"])
		assert.Equal(t, "escrow_funded", *client.input.MessageAttributes["type"].StringValue)
	})

	t.Run("SendMessage Fails", func(t *testing.T) {
		notifier := notify.NewSQSNotifier(&fakeSQS{err: errors.New("denied")}, "q")

		err := notifier.Notify(context.Background(), notify.Notification{UserID: "u"})

		assert.Error(t, err)
		assert.Contains(t, err.Error(), "failed to send message to SQS")
	})
}

func TestMulti(t *testing.T) {
	first := new(mocks.Notifier)
	second := new(mocks.Notifier)
	first.On("Notify", mock.Anything, mock.Anything).Return(errors.New("queue down"))
	second.On("Notify", mock.Anything, mock.Anything).Return(nil)

	err := notify.Multi{first, second}.Notify(context.Background(), notify.Notification{UserID: "u"})

	assert.ErrorContains(t, err, "queue down")
	first.AssertExpectations(t)
	second.AssertExpectations(t)
}

func TestSendSkipsAnonymousAndSwallowsErrors(t *testing.T) {
	notifier := new(mocks.Notifier)
	notifier.On("Notify", mock.Anything, mock.MatchedBy(func(n notify.Notification) bool {
		return n.UserID == "seller" && !n.CreatedAt.IsZero()
	})).Return(errors.New("boom")).Once()

	notify.Send(context.Background(), notifier,
		notify.Notification{UserID: "seller", Type: notify.TypeReceiptConfirmed},
		notify.Notification{UserID: "", Type: notify.TypeReceiptConfirmed},
	)

	notifier.AssertExpectations(t)
	notify.Send(context.Background(), nil, notify.Notification{UserID: "x"})
}
