//go:build integration

package webhook

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shenikar/sos_dispatch_system/pkg/testutil/containers"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWebhookQueue_PublishAndDeliver(t *testing.T) {
	rc := containers.NewRedisContainer(t)

	delivered := make(chan string, 1)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		delivered <- r.Header.Get("X-Webhook-Signature") + "|" + string(body)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	worker, _ := newTestWorker(server.URL)
	worker.redisClient = rc.Client

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	worker.Start(ctx)

	publisher := NewRedisWebhookPublisher(rc.Client)
	require.NoError(t, publisher.Publish(ctx, WebhookEvent{
		EventID:   "evt-1",
		Type:      "sos:created",
		SOSID:     uuid.New(),
		CityScope: "manila",
		Timestamp: time.Now().UTC(),
	}))

	select {
	case got := <-delivered:
		assert.Contains(t, got, `"type":"sos:created"`)
		assert.NotEqual(t, '|', got[0])
	case <-time.After(10 * time.Second):
		t.Fatal("webhook was not delivered")
	}
}
