package worker

import (
	"strconv"
	"time"

	"github.com/glizzus/lavanode/internal/lavalink"
)

// EventRecord is a node event flattened for the event stream.
type EventRecord struct {
	// ID is the stream entry id, empty until the record was read back.
	ID      string
	Kind    string
	GuildID string
	At      time.Time
	Fields  map[string]string
}

// RecordFromEvent flattens e. Events that are not worth keeping, such as
// frequent player updates, report false.
func RecordFromEvent(e lavalink.Event, at time.Time) (EventRecord, bool) {
	rec := EventRecord{Kind: e.Kind().String(), At: at.UTC(), Fields: map[string]string{}}

	switch ev := e.(type) {
	case lavalink.TrackStarted:
		rec.GuildID = ev.GuildID
		trackFields(rec.Fields, ev.Track.Identifier, ev.Track.Title, ev.Track.Author, ev.Track.Duration(), ev.Track.URI)
	case lavalink.TrackFinished:
		rec.GuildID = ev.GuildID
		rec.Fields["identifier"] = ev.Track.Identifier
		rec.Fields["reason"] = string(ev.Reason)
	case lavalink.TrackStuck:
		rec.GuildID = ev.GuildID
		rec.Fields["identifier"] = ev.Track.Identifier
		rec.Fields["thresholdMs"] = strconv.FormatInt(ev.Threshold.Milliseconds(), 10)
	case lavalink.TrackException:
		rec.GuildID = ev.GuildID
		rec.Fields["identifier"] = ev.Track.Identifier
		rec.Fields["error"] = ev.Error
		rec.Fields["severity"] = ev.Severity
	case lavalink.WebSocketClosed:
		rec.GuildID = ev.GuildID
		rec.Fields["code"] = strconv.Itoa(ev.Code)
		rec.Fields["reason"] = ev.Reason
		rec.Fields["byRemote"] = strconv.FormatBool(ev.ByRemote)
	case lavalink.ChannelDisconnected:
		rec.GuildID = ev.GuildID
		rec.Fields["channelID"] = ev.ChannelID
		rec.Fields["vacated"] = strconv.FormatBool(ev.Vacated)
		rec.Fields["nodeLost"] = strconv.FormatBool(ev.NodeLost)
	case lavalink.StatsReceived:
		s := ev.Stats
		rec.Fields["players"] = strconv.Itoa(s.Players)
		rec.Fields["playingPlayers"] = strconv.Itoa(s.PlayingPlayers)
		rec.Fields["uptimeMs"] = strconv.FormatInt(s.UptimeMs, 10)
		rec.Fields["memoryUsed"] = strconv.FormatInt(s.Memory.Used, 10)
		rec.Fields["cpuCores"] = strconv.Itoa(s.CPU.Cores)
		rec.Fields["systemLoad"] = strconv.FormatFloat(s.CPU.SystemLoad, 'f', -1, 64)
		rec.Fields["lavalinkLoad"] = strconv.FormatFloat(s.CPU.LavalinkLoad, 'f', -1, 64)
	case lavalink.NodeConnected:
		rec.Fields["reconnected"] = strconv.FormatBool(ev.Reconnected)
	case lavalink.NodeDisconnected:
		rec.Fields["clean"] = strconv.FormatBool(ev.Clean)
		rec.Fields["code"] = strconv.Itoa(ev.Code)
	default:
		return EventRecord{}, false
	}
	return rec, true
}

func trackFields(f map[string]string, identifier, title, author string, length time.Duration, uri string) {
	f["identifier"] = identifier
	f["title"] = title
	f["author"] = author
	f["lengthMs"] = strconv.FormatInt(length.Milliseconds(), 10)
	if uri != "" {
		f["uri"] = uri
	}
}

// Values is the record as stream entry values.
func (r EventRecord) Values() map[string]any {
	values := make(map[string]any, len(r.Fields)+3)
	for k, v := range r.Fields {
		values[k] = v
	}
	values["kind"] = r.Kind
	values["guildID"] = r.GuildID
	values["at"] = r.At.Format(time.RFC3339Nano)
	return values
}

// RecordFromValues is the inverse of Values.
func RecordFromValues(id string, values map[string]any) EventRecord {
	rec := EventRecord{ID: id, Fields: map[string]string{}}
	for k, raw := range values {
		v, _ := raw.(string)
		switch k {
		case "kind":
			rec.Kind = v
		case "guildID":
			rec.GuildID = v
		case "at":
			rec.At, _ = time.Parse(time.RFC3339Nano, v)
		default:
			rec.Fields[k] = v
		}
	}
	return rec
}

// Int reads a numeric field, zero when absent or malformed.
func (r EventRecord) Int(field string) int64 {
	n, _ := strconv.ParseInt(r.Fields[field], 10, 64)
	return n
}

func (r EventRecord) Float(field string) float64 {
	f, _ := strconv.ParseFloat(r.Fields[field], 64)
	return f
}
