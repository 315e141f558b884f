package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"testing"

	"lexiflow/internal/cache"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

type recordingPublisher struct {
	channel string
	msg     any
	err     error
}

func (p *recordingPublisher) Publish(_ context.Context, channel string, message any) error {
	p.channel, p.msg = channel, message
	return p.err
}

func TestDeepLink(t *testing.T) {
	require.Equal(t, "https://app.example/documents/abc/study", DeepLink("https://app.example/", "abc"))
}

func TestRedisSinkPublishesOnReadyChannel(t *testing.T) {
	pub := &recordingPublisher{}
	ev := Event{UserID: "u1", DocumentID: "d1", DeepLink: "x"}
	require.NoError(t, NewRedisSink(pub).Notify(context.Background(), ev))
	require.Equal(t, ReadyChannel, pub.channel)
	require.Equal(t, ev, pub.msg)

	pub.err = errors.New("down")
	require.Error(t, NewRedisSink(pub).Notify(context.Background(), ev))
}

func TestFromCacheFallsBackToLog(t *testing.T) {
	var buf bytes.Buffer
	sink := FromCache(cache.NewMemoryClient(16), zerolog.New(&buf))
	_, isLog := sink.(*LogSink)
	require.True(t, isLog)

	require.NoError(t, sink.Notify(context.Background(), Event{UserID: "u1", DocumentID: "d1"}))
	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	require.Equal(t, "d1", line["document_id"])
}
