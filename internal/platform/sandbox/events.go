package sandbox

import (
	"context"

	"github.com/schoolhealth/nurse-console/internal/platform/gateway"
	"github.com/schoolhealth/nurse-console/internal/platform/middleware"
	"github.com/schoolhealth/nurse-console/internal/platform/websocket"
)

var eventKinds = []string{gateway.KindInventory, gateway.KindMedicationRequests, gateway.KindVaccinationSessions}

// eventRecorder turns successful writes into change events. Seeding touches
// every kind.
func eventRecorder(hub *websocket.Hub) middleware.AuditRecorder {
	return middleware.AuditRecorderFunc(func(entry middleware.AuditEntry) error {
		if entry.StatusCode >= 400 {
			return nil
		}
		ev := websocket.Event{
			Type:      websocket.EventChanged,
			RecordID:  entry.RecordID,
			Action:    entry.Action,
			Actor:     entry.UserID,
			Timestamp: entry.Timestamp,
		}
		if entry.Action == "delete" {
			ev.Type = websocket.EventDeleted
		}

		topics := []string{entry.Kind}
		if entry.Kind == "sandbox" {
			if entry.RecordID != "seed" {
				return nil
			}
			topics = eventKinds
			ev.RecordID = ""
			ev.Action = "seed"
		}
		for _, topic := range topics {
			ev.Topic = topic
			if err := hub.Publish(context.Background(), ev); err != nil {
				return err
			}
		}
		return nil
	})
}
