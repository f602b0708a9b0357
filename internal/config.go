package internal

import (
	"fmt"
	"time"
)

type Config struct {
	Host     string `env:"HOST,default=localhost"`
	Port     int    `env:"PORT,default=8080"`
	GrpcPort int    `env:"GRPC_PORT,default=9090"`
	LogLevel string `env:"LOG_LEVEL,default=INFO"`

	BadgerFilepath string `env:"BADGER_FILEPATH,required=true"`
	BlugeFilepath  string `env:"BLUGE_FILEPATH,required=true"`
	UploadsDir     string `env:"UPLOADS_DIR,default=uploads"`

	JwtSecret         string        `env:"JWT_SECRET,required=true"`
	AuthTokenDuration time.Duration `env:"AUTH_TOKEN_DURATION,default=24h"`
	SecureCookie      bool          `env:"SECURE_COOKIE,default=false"`
	AllowedOrigin     string        `env:"ALLOWED_ORIGIN"`

	PingInterval         time.Duration `env:"PING_INTERVAL,default=5s"`
	PongGrace            time.Duration `env:"PONG_GRACE,default=1s"`
	ConnectionBufferSize int           `env:"CONNECTION_BUFFER_SIZE,default=256"`
	DeliveryTimeout      time.Duration `env:"DELIVERY_TIMEOUT,default=5s"`
	MaxFrameBytes        int64         `env:"MAX_FRAME_BYTES,default=10485760"`

	LimitMessages    *int   `env:"LIMIT_MESSAGES"`
	CharReplacement  string `env:"CHARACTER_REPLACEMENT,default=*"`
	EnableModeration bool   `env:"ENABLE_MODERATION,default=false"`

	StatsInterval   time.Duration `env:"STATS_INTERVAL,default=10s"`
	RestartInterval time.Duration `env:"RESTART_INTERVAL,default=1s"`
}

func CharacterRune(str string) (rune, error) {
	r := []rune(str)
	if len(r) != 1 {
		return 0, fmt.Errorf(
			"CHARACTER_REPLACEMENT must be a single character, got %q",
			str,
		)
	}
	return r[0], nil
}
