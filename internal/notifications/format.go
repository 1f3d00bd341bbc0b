package notifications

import (
	"fmt"
	"strings"
	"time"
)

// format renders an event. Payload keys:
//
//	run_failed:      name, photoID, summary
//	duplicate_found: name, photoID, duplicateOf
//	batch_completed: processed, failed, duration (time.Duration)
//	error:           context, error
func format(event Event, payload Payload) (message, bool) {
	switch event {
	case EventRunFailed:
		return message{
			title: "Lightbox - Enrichment Failed",
			body: fmt.Sprintf("❌ %s (#%d): %s",
				payloadString(payload, "name"), payloadInt(payload, "photoID"), payloadString(payload, "summary")),
			tags:     []string{"lightbox", "enrich", "failed"},
			priority: "high",
		}, true
	case EventDuplicateFound:
		return message{
			title: "Lightbox - Duplicate Photo",
			body: fmt.Sprintf("🔁 %s (#%d) duplicates photo #%d",
				payloadString(payload, "name"), payloadInt(payload, "photoID"), payloadInt(payload, "duplicateOf")),
			tags: []string{"lightbox", "duplicate"},
		}, true
	case EventBatchCompleted:
		processed := payloadInt(payload, "processed")
		failed := payloadInt(payload, "failed")
		duration := payloadDuration(payload, "duration").Round(time.Second)
		if failed == 0 {
			return message{
				title: "Lightbox - Batch Complete",
				body:  fmt.Sprintf("✅ Enriched %d photos in %s", processed, duration),
				tags:  []string{"lightbox", "batch", "completed"},
			}, true
		}
		return message{
			title: "Lightbox - Batch Complete (with errors)",
			body:  fmt.Sprintf("Enriched %d photos, %d failed in %s", processed, failed, duration),
			tags:  []string{"lightbox", "batch", "completed"},
		}, true
	case EventError:
		var b strings.Builder
		b.WriteString("❌ Error")
		if label := payloadString(payload, "context"); label != "" {
			b.WriteString(" with ")
			b.WriteString(label)
		}
		b.WriteString(": ")
		if text := payloadString(payload, "error"); text != "" {
			b.WriteString(text)
		} else {
			b.WriteString("unknown")
		}
		return message{
			title:    "Lightbox - Error",
			body:     b.String(),
			tags:     []string{"lightbox", "error", "alert"},
			priority: "high",
		}, true
	case EventTest:
		return message{
			title:    "Lightbox - Test",
			body:     "🧪 Notification system test",
			tags:     []string{"lightbox", "test"},
			priority: "low",
		}, true
	default:
		return message{}, false
	}
}

func payloadString(payload Payload, key string) string {
	switch v := payload[key].(type) {
	case string:
		return strings.TrimSpace(v)
	case error:
		return strings.TrimSpace(v.Error())
	case fmt.Stringer:
		return strings.TrimSpace(v.String())
	case nil:
		return ""
	default:
		return fmt.Sprint(v)
	}
}

func payloadInt(payload Payload, key string) int {
	switch v := payload[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	default:
		return 0
	}
}

func payloadDuration(payload Payload, key string) time.Duration {
	if d, ok := payload[key].(time.Duration); ok && d > 0 {
		return d
	}
	return 0
}
