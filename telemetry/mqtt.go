package telemetry

import (
	"encoding/json"
	"fmt"
	"log"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/noorbagus/asdp-boat-sub002/gesture"
)

// Publisher pushes stroke and link events to an MQTT broker. A nil Publisher
// is valid and publishes nothing, so the bridge runs unchanged without a
// broker configured.
type Publisher struct {
	client mqtt.Client
	topic  string
}

// strokeMessage is the JSON payload for one stroke event.
type strokeMessage struct {
	Side  string  `json:"side"`
	Angle float64 `json:"angle"`
	TS    int64   `json:"ts"`
}

// linkMessage is the JSON payload for a link transition.
type linkMessage struct {
	Link string `json:"link"`
}

// NewPublisher connects to the broker. An empty broker URL returns a nil
// Publisher and no error.
func NewPublisher(broker, clientID, topic string) (*Publisher, error) {
	if broker == "" {
		return nil, nil
	}

	opts := mqtt.NewClientOptions().
		AddBroker(broker).
		SetClientID(clientID)

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return nil, fmt.Errorf("mqtt connect: %w", token.Error())
	}
	log.Printf("MQTT: connected to %s", broker)

	return &Publisher{client: client, topic: topic}, nil
}

// PublishStroke publishes one stroke event, fire-and-forget at QoS 0.
func (p *Publisher) PublishStroke(ev gesture.StrokeEvent) {
	if p == nil {
		return
	}
	p.publish(p.topic+"/stroke", strokeMessage{
		Side:  ev.Side.String(),
		Angle: ev.Angle,
		TS:    ev.At.UnixMilli(),
	})
}

// PublishLink publishes a link state transition.
func (p *Publisher) PublishLink(state string) {
	if p == nil {
		return
	}
	p.publish(p.topic+"/link", linkMessage{Link: state})
}

func (p *Publisher) publish(topic string, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		log.Printf("MQTT: marshal: %v", err)
		return
	}
	p.client.Publish(topic, 0, false, data)
}

// Close disconnects from the broker.
func (p *Publisher) Close() {
	if p == nil {
		return
	}
	p.client.Disconnect(250)
}
