// Package eventstreamutils selects and constructs an eventstream.Publisher from configuration.
package eventstreamutils

import (
	"fmt"

	"github.com/papercomputeco/ollamatrace/pkg/eventstream"
	"github.com/papercomputeco/ollamatrace/pkg/eventstream/kafka"
	"github.com/papercomputeco/ollamatrace/pkg/eventstream/nop"
)

type NewPublisherOpts struct {
	Provider string
	Brokers  []string
	Topic    string
}

// NewPublisher returns the publisher named by Provider. An empty provider or
// "none" yields the no-op publisher.
func NewPublisher(o *NewPublisherOpts) (eventstream.Publisher, error) {
	switch o.Provider {
	case "", "none":
		return nop.NewPublisher(), nil
	case "kafka":
		p, err := kafka.NewPublisher(kafka.Config{
			Brokers: o.Brokers,
			Topic:   o.Topic,
		})
		if err != nil {
			return nil, err
		}
		return p, nil
	default:
		return nil, fmt.Errorf("unsupported eventstream provider: %s", o.Provider)
	}
}
