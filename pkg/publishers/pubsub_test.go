package publishers

import (
	"context"
	"encoding/json"
	"testing"

	"cloud.google.com/go/pubsub"
	"cloud.google.com/go/pubsub/pstest"
	"github.com/samvad-hq/fileio-go/internal/domain"
)

func TestPubSubPublisherPublishes(t *testing.T) {
	// Use the in-memory Pub/Sub emulator.
	server := pstest.NewServer()
	defer server.Close()
	t.Setenv("PUBSUB_EMULATOR_HOST", server.Addr)

	ctx := context.Background()
	client, err := pubsub.NewClient(ctx, "test-project")
	if err != nil {
		t.Fatalf("create client: %v", err)
	}
	defer client.Close()
	if _, err := client.CreateTopic(ctx, "file-events"); err != nil {
		t.Fatalf("create topic: %v", err)
	}

	pub, err := newPubSubPublisher(ctx, PublisherConfig{
		ID:   "gcp",
		Type: TypePubSub,
		PubSub: &PubSubPublisherConfig{
			ProjectID: "test-project",
			Topic:     "file-events",
		},
	}, nil)
	if err != nil {
		t.Fatalf("newPubSubPublisher: %v", err)
	}
	defer pub.(closer).Close()

	if err := pub.Publish(ctx, NewEvent(EventExpired, domain.FileRecord{Key: "k1"})); err != nil {
		t.Fatalf("Publish: %v", err)
	}

	msgs := server.Messages()
	if len(msgs) != 1 {
		t.Fatalf("expected 1 message, got %d", len(msgs))
	}
	if msgs[0].Attributes["event_type"] != "expired" || msgs[0].Attributes["file_key"] != "k1" {
		t.Fatalf("unexpected attributes %v", msgs[0].Attributes)
	}
	var evt Event
	if err := json.Unmarshal(msgs[0].Data, &evt); err != nil {
		t.Fatalf("decode message: %v", err)
	}
	if evt.Type != EventExpired || evt.Key != "k1" {
		t.Fatalf("unexpected event %+v", evt)
	}
}
