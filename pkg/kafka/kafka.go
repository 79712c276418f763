package kafka

import (
	"github.com/confluentinc/confluent-kafka-go/v2/kafka"

	"github.com/stagepass/sp-ticketing/config"
)

// NewProducer builds a confluent kafka producer from the application config.
func NewProducer() *kafka.Producer {
	c := config.Get()

	producer, err := kafka.NewProducer(&kafka.ConfigMap{
		"bootstrap.servers": c.Kafka.BootstrapServers,
		"client.id":         c.Kafka.ClientID,
		"acks":              "all",
	})
	if err != nil {
		panic(err)
	}

	return producer
}
