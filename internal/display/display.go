// Package display hosts the collaborators that present parsed records and
// rate readings.
package display

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/dumacp/go-downlink/internal/nmea/sentence"
	"github.com/dumacp/go-downlink/internal/pubsub"
	"github.com/dumacp/go-logs/pkg/logs"
)

//Display accepts parsed records and rate strings.
type Display interface {
	Record(s sentence.Sentence)
	Rate(path string, value string)
}

//Log writes rates and, when Verbose, every record to the info logger.
//Records with invalid fields are always logged as warnings.
type Log struct {
	Verbose bool
}

func (l Log) Record(s sentence.Sentence) {
	if v, ok := s.(*sentence.ADC); ok && !v.Valid() {
		logs.LogWarn.Printf("%s (invalid fields)", v)
		return
	}
	if !l.Verbose {
		return
	}
	switch v := s.(type) {
	case *sentence.ADC:
		logs.LogInfo.Println(v)
	case *sentence.Fix:
		logs.LogInfo.Printf("<GPGGA> lat=%.6f lng=%.6f alt=%.1f sats=%d", v.Lat, v.Lng, v.Altitude, v.Sats)
	default:
		logs.LogInfo.Printf("<%s> %s", s.Kind(), s.Raw())
	}
}

func (l Log) Rate(path, value string) {
	logs.LogInfo.Printf("rate %s: %s", path, value)
}

//Publisher is the MQTT side of the MQTT display.
type Publisher interface {
	Publish(topic string, msg []byte)
}

type event struct {
	TimeStamp float64   `json:"timeStamp"`
	Value     string    `json:"value"`
	Type      string    `json:"type"`
	Channels  []int     `json:"channels,omitempty"`
	Position  *position `json:"position,omitempty"`
}

type position struct {
	Lat      float64 `json:"lat"`
	Lng      float64 `json:"lng"`
	Altitude float64 `json:"alt"`
}

//MQTT publishes every record as a JSON event under telemetry/<kind> and
//every rate under telemetry/rate/<path>.
type MQTT struct {
	pub Publisher
	now func() time.Time
}

func NewMQTT(pub Publisher) *MQTT {
	return &MQTT{pub: pub, now: time.Now}
}

func (m *MQTT) timeStamp() float64 {
	t := m.now()
	return float64(t.Unix()) + float64(t.Nanosecond())/1e9
}

func (m *MQTT) Record(s sentence.Sentence) {
	ev := event{
		TimeStamp: m.timeStamp(),
		Value:     s.Raw(),
		Type:      s.Kind().String(),
	}
	switch v := s.(type) {
	case *sentence.ADC:
		ev.Channels = v.Channels[:]
	case *sentence.Fix:
		ev.Position = &position{Lat: v.Lat, Lng: v.Lng, Altitude: v.Altitude}
	}
	data, err := json.Marshal(ev)
	if err != nil {
		logs.LogError.Printf("record event: %s", err)
		return
	}
	m.pub.Publish(pubsub.TopicTelemetry+"/"+strings.ToLower(ev.Type), data)
}

func (m *MQTT) Rate(path, value string) {
	data, err := json.Marshal(event{
		TimeStamp: m.timeStamp(),
		Value:     value,
		Type:      "RATE",
	})
	if err != nil {
		logs.LogError.Printf("rate event: %s", err)
		return
	}
	m.pub.Publish(pubsub.TopicRate+"/"+path, data)
}

//Multi hands every call to each display in order.
type Multi []Display

func (m Multi) Record(s sentence.Sentence) {
	for _, d := range m {
		d.Record(s)
	}
}

func (m Multi) Rate(path, value string) {
	for _, d := range m {
		d.Rate(path, value)
	}
}
