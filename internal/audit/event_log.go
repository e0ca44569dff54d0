package audit

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"atlasgym/pkg/eventstore"

	"github.com/google/uuid"
)

const (
	streamType   = "history"
	eventCleared = "HistoryCleared"
)

// HistoryStream is the aggregate id every audit entry is appended to.
var HistoryStream = uuid.NewSHA1(uuid.NameSpaceOID, []byte("atlasgym/history"))

// EventLog appends entries to an event store stream. Clearing appends a
// marker; List returns what follows the latest marker.
type EventLog struct {
	es *eventstore.EventStore
}

func NewEventLog(es *eventstore.EventStore) *EventLog {
	return &EventLog{es: es}
}

func (l *EventLog) append(ctx context.Context, eventType string, data any, user string) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("encode audit event: %w", err)
	}
	ev := eventstore.Event{EventType: eventType, EventData: payload, Metadata: map[string]string{"user": user}}

	for attempt := 0; ; attempt++ {
		version, err := l.es.GetCurrentVersion(ctx, HistoryStream)
		if err != nil {
			return err
		}
		err = l.es.AppendEvents(ctx, HistoryStream, streamType, version, []eventstore.Event{ev})
		if errors.Is(err, eventstore.ErrConcurrencyConflict) && attempt == 0 {
			continue
		}
		return err
	}
}

func (l *EventLog) Record(ctx context.Context, e Entry) error {
	return l.append(ctx, e.Type, e, e.User)
}

func (l *EventLog) List(ctx context.Context) ([]Entry, error) {
	events, err := l.es.LoadEvents(ctx, HistoryStream, 0, 0)
	if err != nil {
		return nil, err
	}
	var out []Entry
	for _, ev := range events {
		if ev.EventType == eventCleared {
			out = out[:0]
			continue
		}
		var e Entry
		if err := json.Unmarshal(ev.EventData, &e); err != nil {
			return nil, fmt.Errorf("decode audit event %d: %w", ev.ID, err)
		}
		e.ID = fmt.Sprint(ev.ID)
		out = append(out, e)
	}
	sortNewestFirst(out)
	return out, nil
}

func (l *EventLog) Clear(ctx context.Context) error {
	return l.append(ctx, eventCleared, struct{}{}, "")
}
