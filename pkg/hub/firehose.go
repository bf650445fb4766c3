package hub

import (
	"context"
	"log"

	"github.com/segmentio/kafka-go"

	"github.com/huddlechat/huddle/pkg/metrics"
)

// Firehose mirrors published events to a Kafka topic for downstream
// consumers (archiver, analytics). It sits strictly after local fan-out and
// is best-effort: a saturated buffer drops events rather than slowing the
// hub.
type Firehose struct {
	writer *kafka.Writer
	buf    chan []byte
	done   chan struct{}
}

func NewFirehose(brokers []string, topic string) *Firehose {
	f := &Firehose{
		writer: &kafka.Writer{
			Addr:     kafka.TCP(brokers...),
			Topic:    topic,
			Balancer: &kafka.LeastBytes{},
		},
		buf:  make(chan []byte, 1024),
		done: make(chan struct{}),
	}
	go f.run()
	return f
}

// Offer queues an event for mirroring without blocking the caller.
func (f *Firehose) Offer(data []byte) {
	select {
	case f.buf <- data:
	default:
		metrics.FirehoseDropped.Inc()
	}
}

func (f *Firehose) run() {
	for data := range f.buf {
		err := f.writer.WriteMessages(context.Background(), kafka.Message{Value: data})
		if err != nil {
			log.Printf("firehose: failed to write event: %v", err)
		}
	}
	close(f.done)
}

func (f *Firehose) Close() error {
	close(f.buf)
	<-f.done
	return f.writer.Close()
}
