package config

import (
	"fmt"
	"net"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
	"gopkg.in/yaml.v3"
)

// 実行環境の名前です。ロガーの出力形式を決めます。
const (
	EnvLocal = "local"
	EnvDev   = "dev"
	EnvProd  = "prod"
)

// Config はアプリケーション全体の設定を表現します。
type Config struct {
	Env       string          `yaml:"env" env:"APP_ENV"`
	Server    ServerConfig    `yaml:"server"`
	Database  DatabaseConfig  `yaml:"database"`
	Redis     RedisConfig     `yaml:"redis"`
	Kafka     KafkaConfig     `yaml:"kafka"`
	Auth      AuthConfig      `yaml:"auth"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
}

// ServerConfig は HTTP API と gRPC ヘルスサーバーに関する設定です。
type ServerConfig struct {
	HTTPAddr           string        `yaml:"http_addr" env:"SERVER_HTTP_ADDR"`
	GRPCAddr           string        `yaml:"grpc_addr" env:"SERVER_GRPC_ADDR"`
	ReadTimeout        time.Duration `yaml:"-"`
	WriteTimeout       time.Duration `yaml:"-"`
	IdleTimeout        time.Duration `yaml:"-"`
	ShutdownTimeout    time.Duration `yaml:"-"`
	ReadTimeoutRaw     string        `yaml:"read_timeout"`
	WriteTimeoutRaw    string        `yaml:"write_timeout"`
	IdleTimeoutRaw     string        `yaml:"idle_timeout"`
	ShutdownTimeoutRaw string        `yaml:"shutdown_timeout"`
}

// DatabaseConfig は PostgreSQL 接続に関する設定です。
type DatabaseConfig struct {
	Host               string        `yaml:"host" env:"DATABASE_HOST"`
	Port               int           `yaml:"port" env:"DATABASE_PORT"`
	User               string        `yaml:"user" env:"DATABASE_USER"`
	Password           string        `yaml:"password" env:"DATABASE_PASSWORD"`
	Name               string        `yaml:"name" env:"DATABASE_NAME"`
	SSLMode            string        `yaml:"ssl_mode" env:"DATABASE_SSL_MODE"`
	MaxOpenConns       int           `yaml:"max_open_conns"`
	MaxIdleConns       int           `yaml:"max_idle_conns"`
	ConnMaxLifetime    time.Duration `yaml:"-"`
	ConnMaxIdleTime    time.Duration `yaml:"-"`
	ConnMaxLifetimeRaw string        `yaml:"conn_max_lifetime"`
	ConnMaxIdleTimeRaw string        `yaml:"conn_max_idle_time"`
}

// RedisConfig はスロットロック用 Redis の設定です。Addr が空ならロックを使いません。
type RedisConfig struct {
	Addr       string        `yaml:"addr" env:"REDIS_ADDR"`
	Password   string        `yaml:"password" env:"REDIS_PASSWORD"`
	DB         int           `yaml:"db" env:"REDIS_DB"`
	LockTTL    time.Duration `yaml:"-"`
	LockTTLRaw string        `yaml:"lock_ttl"`
}

// Enabled は Redis が設定されているかどうかを返します。
func (r RedisConfig) Enabled() bool {
	return r.Addr != ""
}

// KafkaConfig はアウトボックス配信先の設定です。Brokers が空なら配信しません。
type KafkaConfig struct {
	Brokers         []string      `yaml:"brokers" env:"KAFKA_BROKERS" env-separator:","`
	TopicPrefix     string        `yaml:"topic_prefix" env:"KAFKA_TOPIC_PREFIX"`
	BatchSize       int           `yaml:"batch_size"`
	PollInterval    time.Duration `yaml:"-"`
	PollIntervalRaw string        `yaml:"poll_interval"`
}

// Enabled はブローカーが設定されているかどうかを返します。
func (k KafkaConfig) Enabled() bool {
	return len(k.Brokers) > 0
}

// AuthConfig は Bearer トークン検証の設定です。
type AuthConfig struct {
	JWTSecret string `yaml:"jwt_secret" env:"AUTH_JWT_SECRET"`
}

// TelemetryConfig は OpenTelemetry の設定です。
type TelemetryConfig struct {
	Enabled      bool    `yaml:"enabled" env:"OTEL_ENABLED"`
	OTLPEndpoint string  `yaml:"otlp_endpoint" env:"OTEL_EXPORTER_OTLP_ENDPOINT"`
	SampleRatio  float64 `yaml:"sample_ratio"`
	ServiceName  string  `yaml:"service_name" env:"OTEL_SERVICE_NAME"`
}

// Load は指定されたパスから設定ファイルを読み込み、環境変数で上書きします。
func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read file %s: %w", path, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return nil, fmt.Errorf("config: parse yaml: %w", err)
	}

	if err := cleanenv.ReadEnv(&cfg); err != nil {
		return nil, fmt.Errorf("config: read env: %w", err)
	}

	if err := cfg.validateAndNormalize(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (c *Config) validateAndNormalize() error {
	switch c.Env {
	case "":
		c.Env = EnvLocal
	case EnvLocal, EnvDev, EnvProd:
	default:
		return fmt.Errorf("config: env must be one of local, dev, prod")
	}

	if err := c.Server.validateAndNormalize(); err != nil {
		return err
	}
	if err := c.Database.validateAndNormalize(); err != nil {
		return err
	}
	if err := c.Redis.validateAndNormalize(); err != nil {
		return err
	}
	if err := c.Kafka.validateAndNormalize(); err != nil {
		return err
	}

	if strings.TrimSpace(c.Auth.JWTSecret) == "" {
		return fmt.Errorf("config: auth.jwt_secret must be set")
	}

	return c.Telemetry.validateAndNormalize()
}

func (s *ServerConfig) validateAndNormalize() error {
	if s.HTTPAddr == "" {
		return fmt.Errorf("config: server.http_addr must be set")
	}

	fields := []struct {
		name string
		raw  string
		dst  *time.Duration
		def  time.Duration
	}{
		{"read_timeout", s.ReadTimeoutRaw, &s.ReadTimeout, 5 * time.Second},
		{"write_timeout", s.WriteTimeoutRaw, &s.WriteTimeout, 10 * time.Second},
		{"idle_timeout", s.IdleTimeoutRaw, &s.IdleTimeout, 60 * time.Second},
		{"shutdown_timeout", s.ShutdownTimeoutRaw, &s.ShutdownTimeout, 10 * time.Second},
	}
	for _, f := range fields {
		d, err := parseDurationAllowEmpty(f.raw)
		if err != nil {
			return fmt.Errorf("config: server.%s: %w", f.name, err)
		}
		if d == 0 {
			d = f.def
		}
		*f.dst = d
	}

	return nil
}

func (d *DatabaseConfig) validateAndNormalize() error {
	if d.Host == "" {
		return fmt.Errorf("config: database.host must be set")
	}
	if d.Port == 0 {
		return fmt.Errorf("config: database.port must be set")
	}
	if d.User == "" {
		return fmt.Errorf("config: database.user must be set")
	}
	if d.Password == "" {
		return fmt.Errorf("config: database.password must be set")
	}
	if d.Name == "" {
		return fmt.Errorf("config: database.name must be set")
	}
	if d.SSLMode == "" {
		d.SSLMode = "disable"
	}

	lifetime, err := parseDurationAllowEmpty(d.ConnMaxLifetimeRaw)
	if err != nil {
		return fmt.Errorf("config: database.conn_max_lifetime: %w", err)
	}
	d.ConnMaxLifetime = lifetime

	idleTime, err := parseDurationAllowEmpty(d.ConnMaxIdleTimeRaw)
	if err != nil {
		return fmt.Errorf("config: database.conn_max_idle_time: %w", err)
	}
	d.ConnMaxIdleTime = idleTime

	return nil
}

func (r *RedisConfig) validateAndNormalize() error {
	ttl, err := parseDurationAllowEmpty(r.LockTTLRaw)
	if err != nil {
		return fmt.Errorf("config: redis.lock_ttl: %w", err)
	}
	if ttl == 0 {
		ttl = 10 * time.Second
	}
	r.LockTTL = ttl
	return nil
}

func (k *KafkaConfig) validateAndNormalize() error {
	interval, err := parseDurationAllowEmpty(k.PollIntervalRaw)
	if err != nil {
		return fmt.Errorf("config: kafka.poll_interval: %w", err)
	}
	if interval == 0 {
		interval = time.Second
	}
	k.PollInterval = interval

	if k.BatchSize <= 0 {
		k.BatchSize = 100
	}
	if k.TopicPrefix == "" {
		k.TopicPrefix = "gym"
	}
	return nil
}

func (t *TelemetryConfig) validateAndNormalize() error {
	if t.ServiceName == "" {
		t.ServiceName = "gym-appointments"
	}
	if t.SampleRatio < 0 || t.SampleRatio > 1 {
		return fmt.Errorf("config: telemetry.sample_ratio must be within [0, 1]")
	}
	if t.Enabled && t.OTLPEndpoint == "" {
		return fmt.Errorf("config: telemetry.otlp_endpoint must be set when telemetry is enabled")
	}
	return nil
}

func parseDurationAllowEmpty(raw string) (time.Duration, error) {
	if raw == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, err
	}
	return d, nil
}

// DSN は pgx 用の接続文字列を返します。認証情報は URL エスケープされます。
func (d DatabaseConfig) DSN() string {
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(d.User, d.Password),
		Host:     net.JoinHostPort(d.Host, strconv.Itoa(d.Port)),
		Path:     "/" + d.Name,
		RawQuery: url.Values{"sslmode": []string{d.SSLMode}}.Encode(),
	}
	return u.String()
}
