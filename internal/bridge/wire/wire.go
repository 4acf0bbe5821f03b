// Package wire defines the JSON message contract spoken over a
// session's duplex channels. Every frame is a JSON object with a type
// tag and an optional payload; unrecognized types are ignored by the
// receiver so clients can extend the channel without breaking the
// service.
package wire

import (
	"encoding/json"

	jsoniter "github.com/json-iterator/go"
	"github.com/tidwall/gjson"
)

// Message types understood by the service.
const (
	// TypeDataSampleRequest asks connected rendering clients for a
	// fresh data sample. Carries no payload.
	TypeDataSampleRequest = "DATA_SAMPLE_REQUEST"

	// TypeDataSampleResponse carries a data sample from a rendering
	// client. The payload is an arbitrary JSON value.
	TypeDataSampleResponse = "DATA_SAMPLE_RESPONSE"

	// TypeChartUpdate pushes a generated chart specification to every
	// channel in a session.
	TypeChartUpdate = "CHART_UPDATE"
)

var jsonit = jsoniter.ConfigCompatibleWithStandardLibrary

// Message is the envelope for every channel frame.
type Message struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// ChartUpdate is the payload of a TypeChartUpdate message and the
// structured output of the chart generator.
type ChartUpdate struct {
	Explanation        string         `json:"explanation"`
	ChartConfig        map[string]any `json:"chartConfig,omitempty"`
	DataSource         map[string]any `json:"dataSource,omitempty"`
	DisplayFormat      map[string]any `json:"displayFormat,omitempty"`
	DataTransformation map[string]any `json:"dataTransformation,omitempty"`
}

// MessageType returns the type tag of a raw frame without decoding the
// whole message. Returns an empty string for frames that are not JSON
// objects or carry no type.
func MessageType(raw []byte) string {
	return gjson.GetBytes(raw, "type").String()
}

// MessagePayload extracts the raw payload of a frame, or nil if the
// frame has none.
func MessagePayload(raw []byte) json.RawMessage {
	r := gjson.GetBytes(raw, "payload")
	if !r.Exists() {
		return nil
	}
	return json.RawMessage(r.Raw)
}

// MessagePayloadField extracts one field of a frame's payload, or nil
// if the field is absent.
func MessagePayloadField(raw []byte, field string) json.RawMessage {
	r := gjson.GetBytes(raw, "payload."+field)
	if !r.Exists() {
		return nil
	}
	return json.RawMessage(r.Raw)
}

// NewSampleRequest encodes a DATA_SAMPLE_REQUEST frame.
func NewSampleRequest() []byte {
	// static shape, cannot fail
	b, _ := jsonit.Marshal(&Message{Type: TypeDataSampleRequest})
	return b
}

// NewChartUpdate encodes a CHART_UPDATE frame carrying update.
func NewChartUpdate(update *ChartUpdate) ([]byte, error) {
	payload, err := jsonit.Marshal(update)
	if err != nil {
		return nil, err
	}
	return jsonit.Marshal(&Message{Type: TypeChartUpdate, Payload: payload})
}
