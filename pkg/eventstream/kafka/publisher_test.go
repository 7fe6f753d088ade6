package kafka_test

import (
	"context"
	"encoding/json"
	"errors"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	kafkago "github.com/segmentio/kafka-go"

	"github.com/papercomputeco/ollamatrace/pkg/eventstream"
	"github.com/papercomputeco/ollamatrace/pkg/eventstream/kafka"
	"github.com/papercomputeco/ollamatrace/pkg/tracked"
)

type recordingWriter struct {
	messages []kafkago.Message
	err      error
	closed   bool
}

func (w *recordingWriter) WriteMessages(_ context.Context, msgs ...kafkago.Message) error {
	if w.err != nil {
		return w.err
	}
	w.messages = append(w.messages, msgs...)
	return nil
}

func (w *recordingWriter) Close() error {
	w.closed = true
	return nil
}

var _ = Describe("Publisher", func() {
	var (
		writer    *recordingWriter
		publisher *kafka.Publisher
		event     *eventstream.CallTrackedEvent
	)

	BeforeEach(func() {
		writer = &recordingWriter{}
		publisher = kafka.NewPublisherWithWriter(writer, "ollamatrace.calls")
		event = eventstream.NewCallTrackedEvent(
			eventstream.EventSource{ServiceName: "ollamatrace"},
			&tracked.Call{ID: "call-1", Name: "call_ollama"},
		)
	})

	Describe("NewPublisher", func() {
		It("requires brokers", func() {
			_, err := kafka.NewPublisher(kafka.Config{Topic: "t"})
			Expect(err).To(MatchError(ContainSubstring("broker")))
		})

		It("requires a topic", func() {
			_, err := kafka.NewPublisher(kafka.Config{Brokers: []string{"localhost:9092"}})
			Expect(err).To(MatchError(ContainSubstring("topic")))
		})

		It("builds a publisher from valid config", func() {
			p, err := kafka.NewPublisher(kafka.Config{
				Brokers: []string{"localhost:9092"},
				Topic:   "ollamatrace.calls",
			})
			Expect(err).NotTo(HaveOccurred())
			Expect(p.Close()).To(Succeed())
		})
	})

	It("writes one message keyed by call ID", func() {
		Expect(publisher.PublishCall(context.Background(), event)).To(Succeed())
		Expect(writer.messages).To(HaveLen(1))

		msg := writer.messages[0]
		Expect(string(msg.Key)).To(Equal("call-1"))

		var decoded eventstream.CallTrackedEvent
		Expect(json.Unmarshal(msg.Value, &decoded)).To(Succeed())
		Expect(decoded.EventType).To(Equal(eventstream.EventTypeCallTracked))
		Expect(decoded.Call.Name).To(Equal("call_ollama"))
	})

	It("returns ErrNilCallEvent for nil events", func() {
		err := publisher.PublishCall(context.Background(), nil)
		Expect(err).To(MatchError(eventstream.ErrNilCallEvent))
		Expect(writer.messages).To(BeEmpty())
	})

	It("wraps writer failures", func() {
		writer.err = errors.New("broker unavailable")
		err := publisher.PublishCall(context.Background(), event)
		Expect(err).To(MatchError(ContainSubstring("broker unavailable")))
	})

	It("closes the writer", func() {
		Expect(publisher.Close()).To(Succeed())
		Expect(writer.closed).To(BeTrue())
	})
})
