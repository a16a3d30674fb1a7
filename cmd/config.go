package main

import "time"

type Config struct {
	Host                 string        `env:"HOST,default=localhost"`
	Port                 int           `env:"PORT,default=5000"`
	BadgerFilepath       string        `env:"BADGER_FILEPATH,required=true"`
	LogLevel             string        `env:"LOG_LEVEL,default=INFO"`
	ConnectionBufferSize int           `env:"CONNECTION_BUFFER_SIZE,default=16"`
	MetricInterval       time.Duration `env:"METRIC_INTERVAL,default=30s"`
	DebugPort            int           `env:"DEBUG_PORT"` // 0 disables the inspector
	ImageUploadURL       string        `env:"IMAGE_UPLOAD_URL,default=https://api.imgbb.com/1/upload"`
	ImageUploadKey       string        `env:"IMAGE_UPLOAD_KEY"`
}
