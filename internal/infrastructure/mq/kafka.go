package mq

import (
	"loyaltysystem/internal/config"

	"github.com/IBM/sarama"
	"go.uber.org/zap"
)

var KafkaProducer sarama.SyncProducer

// InitKafka creates the sync producer used by the outbox sender.
func InitKafka(cfg *config.KafkaConfig) sarama.SyncProducer {
	kafkaConfig := sarama.NewConfig()
	kafkaConfig.Producer.RequiredAcks = sarama.WaitForAll
	kafkaConfig.Producer.Retry.Max = 3
	kafkaConfig.Producer.Return.Successes = true

	producer, err := sarama.NewSyncProducer(cfg.Brokers, kafkaConfig)
	if err != nil {
		zap.L().Fatal("failed to create kafka producer", zap.Error(err))
	}

	KafkaProducer = producer
	zap.L().Info("kafka producer ready", zap.Strings("brokers", cfg.Brokers))
	return producer
}

// SendMessage publishes one event. Key is the code value so all events for a
// code land on the same partition in order.
func SendMessage(topic, key, value string) error {
	msg := &sarama.ProducerMessage{
		Topic: topic,
		Key:   sarama.StringEncoder(key),
		Value: sarama.StringEncoder(value),
	}

	_, _, err := KafkaProducer.SendMessage(msg)
	return err
}

func CloseKafka() {
	if KafkaProducer != nil {
		KafkaProducer.Close()
	}
}
