package kafka

import (
	"context"
	"log"

	"github.com/goccy/go-json"
	"github.com/segmentio/kafka-go"
)

// Kafka 生产者服务，向下游广播信号和仓位事件
// 定义接口，方便测试和替换
type ProducerService interface {
	Produce(ctx context.Context, key string, event any) error
	Close()
}

type kafkaProducer struct {
	writer *kafka.Writer
}

func NewKafkaProducer(brokerURL, topic string) ProducerService {
	w := &kafka.Writer{
		Addr:     kafka.TCP(brokerURL),
		Topic:    topic,
		Balancer: &kafka.LeastBytes{}, // 保证写入负载均衡
	}
	return &kafkaProducer{writer: w}
}

// Produce 序列化为JSON并写入。失败只记日志，事件流不阻塞交易主链路
func (p *kafkaProducer) Produce(ctx context.Context, key string, event any) error {
	data, err := json.Marshal(event)
	if err != nil {
		return err
	}
	err = p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(key),
		Value: data,
	})
	if err != nil {
		log.Printf("kafka produce error: %v", err)
	}
	return err
}

func (p *kafkaProducer) Close() {
	if p.writer != nil {
		_ = p.writer.Close()
	}
}
