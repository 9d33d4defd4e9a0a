package config

import (
	"encoding/base64"
	"fmt"
	"time"
)

const (
	DefaultReminderInterval = time.Hour
	DefaultExpiryThreshold  = 3
)

type Config struct {
	DatabaseDSN         string
	ServerAddr          string
	SigningKey          []byte
	AllowedOrigins      []string
	FCMCredentialsFile  string
	ReminderInterval    time.Duration
	ExpiryThresholdDays int
}

func decodeSigningSecret(base64Secret string) ([]byte, error) {
	return base64.StdEncoding.DecodeString(base64Secret)
}

func NewConfig(serverAddr, databaseDSN, base64Secret string, allowedOrigins []string, fcmCredentialsFile string, reminderInterval time.Duration, expiryThresholdDays int) (*Config, error) {
	if serverAddr == "" {
		return nil, fmt.Errorf("server address cannot be empty")
	}
	if databaseDSN == "" {
		return nil, fmt.Errorf("database DSN cannot be empty")
	}
	if base64Secret == "" {
		return nil, fmt.Errorf("signing secret cannot be empty")
	}
	if reminderInterval <= 0 {
		reminderInterval = DefaultReminderInterval
	}
	if expiryThresholdDays <= 0 {
		expiryThresholdDays = DefaultExpiryThreshold
	}

	// Decode the base64 encoded signing secret
	signingKey, err := decodeSigningSecret(base64Secret)
	if err != nil {
		return nil, fmt.Errorf("decode signing secret: %w", err)
	}

	return &Config{
		DatabaseDSN:         databaseDSN,
		ServerAddr:          serverAddr,
		SigningKey:          signingKey,
		AllowedOrigins:      allowedOrigins,
		FCMCredentialsFile:  fcmCredentialsFile,
		ReminderInterval:    reminderInterval,
		ExpiryThresholdDays: expiryThresholdDays,
	}, nil
}
