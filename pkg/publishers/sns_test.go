package publishers

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/samvad-hq/fileio-go/internal/domain"
)

type fakeSNSClient struct {
	input *sns.PublishInput
	err   error
}

func (f *fakeSNSClient) Publish(_ context.Context, params *sns.PublishInput, _ ...func(*sns.Options)) (*sns.PublishOutput, error) {
	f.input = params
	if f.err != nil {
		return nil, f.err
	}
	return &sns.PublishOutput{MessageId: aws.String("msg-123")}, nil
}

func TestSNSPublisherPublishSuccess(t *testing.T) {
	client := &fakeSNSClient{}
	pub := &snsPublisher{
		id:       "topic",
		topicARN: "arn:aws:sns:::topic",
		client:   client,
		log:      noopLogger{},
	}

	err := pub.Publish(context.Background(), NewEvent(EventDeleted, domain.FileRecord{Key: "k1", Name: "a.txt"}))
	if err != nil {
		t.Fatalf("Publish returned error: %v", err)
	}
	if client.input == nil {
		t.Fatalf("client was not called")
	}
	if got := aws.ToString(client.input.TopicArn); got != "arn:aws:sns:::topic" {
		t.Fatalf("TopicArn = %s", got)
	}
	attr, ok := client.input.MessageAttributes["event_type"]
	if !ok || aws.ToString(attr.StringValue) != "deleted" {
		t.Fatalf("event_type attribute missing or wrong: %#v", attr)
	}
	if attr.DataType == nil || aws.ToString(attr.DataType) != "String" {
		t.Fatalf("DataType should be String, got %#v", attr.DataType)
	}
	if !strings.Contains(aws.ToString(client.input.Message), `"key":"k1"`) {
		t.Fatalf("Message missing key: %s", aws.ToString(client.input.Message))
	}
}

func TestSNSPublisherPublishError(t *testing.T) {
	pub := &snsPublisher{
		topicARN: "arn:aws:sns:::topic",
		client:   &fakeSNSClient{err: errors.New("boom")},
		log:      noopLogger{},
	}

	if err := pub.Publish(context.Background(), Event{Type: EventUploaded, Key: "k1"}); err == nil {
		t.Fatalf("expected error from Publish")
	}
}
