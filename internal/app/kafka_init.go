package app

import (
	"fmt"
	"strings"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/sockstore/internal/messaging/kafka"
)

// initKafkaProducer создаёт producer, если заданы брокеры.
// Без брокеров возвращает nil, nil. Ошибка подключения возвращается вызывающему:
// он решает, продолжать ли без публикации событий.
func initKafkaProducer(brokers []string, topic string, logger *log.Entry) (*kafka.Producer, error) {
	brokerList := make([]string, 0, len(brokers))
	for _, broker := range brokers {
		if broker = strings.TrimSpace(broker); broker != "" {
			brokerList = append(brokerList, broker)
		}
	}
	if len(brokerList) == 0 {
		return nil, nil
	}

	producer, err := kafka.NewProducer(brokerList, topic)
	if err != nil {
		return nil, fmt.Errorf("kafka producer %v: %w", brokerList, err)
	}

	logger.WithFields(log.Fields{"brokers": brokerList, "topic": topic}).Info("kafka producer initialized")
	return producer, nil
}

// closeKafka закрывает producer, если он был создан.
func closeKafka(producer *kafka.Producer, logger *log.Entry) {
	if producer == nil {
		return
	}

	if err := producer.Close(); err != nil {
		logger.WithError(err).Warn("failed to close kafka producer")
	} else {
		logger.Info("kafka producer closed")
	}
}
