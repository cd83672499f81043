package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"wedding-manager/internal/logger"
	"wedding-manager/internal/models"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingWriter struct {
	msgs []kafka.Message
	err  error
}

func (w *recordingWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	if w.err != nil {
		return w.err
	}
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func (w *recordingWriter) Close() error { return nil }

func TestPublishJSONSetsTopicAndKey(t *testing.T) {
	w := &recordingWriter{}
	p := &Producer{writer: w, logger: logger.Nop(), timeout: defaultTimeout}

	dto := models.NewChangeEventDto(models.ActionVoided, "event-1", "t1", "t2")
	require.NoError(t, p.PublishJSON("wedding.tickets.changed", "event-1", dto))

	require.Len(t, w.msgs, 1)
	assert.Equal(t, "wedding.tickets.changed", w.msgs[0].Topic)
	assert.Equal(t, "event-1", string(w.msgs[0].Key))

	var got models.ChangeEventDto
	require.NoError(t, json.Unmarshal(w.msgs[0].Value, &got))
	assert.Equal(t, models.ActionVoided, got.Action)
	assert.Equal(t, []string{"t1", "t2"}, got.TicketIDs)
}

func TestPublishWrapsWriterError(t *testing.T) {
	boom := errors.New("broker down")
	p := &Producer{writer: &recordingWriter{err: boom}, logger: logger.Nop(), timeout: defaultTimeout}

	err := p.Publish("wedding.events.changed", "e", []byte("{}"))
	assert.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "wedding.events.changed")
}

func TestNoopPublisher(t *testing.T) {
	var p Publisher = NoopPublisher{}
	assert.NoError(t, p.PublishJSON("any", "k", map[string]string{"a": "b"}))
	assert.NoError(t, p.Close())
}
