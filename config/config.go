package config

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	App           AppConfig           `mapstructure:"app"`
	Server        ServerConfig        `mapstructure:"server"`
	Log           LogConfig           `mapstructure:"log"`
	Database      DatabaseConfig      `mapstructure:"database"`
	Redis         RedisConfig         `mapstructure:"redis"`
	JWT           JWTConfig           `mapstructure:"jwt"`
	Storage       StorageConfig       `mapstructure:"storage"`
	OSS           OSSConfig           `mapstructure:"oss"`
	Minio         MinioConfig         `mapstructure:"minio"`
	OAuth         OAuthConfig         `mapstructure:"oauth"`
	Email         EmailConfig         `mapstructure:"email"`
	Queue         QueueConfig         `mapstructure:"queue"`
	CORS          CORSConfig          `mapstructure:"cors"`
	RateLimit     RateLimitConfig     `mapstructure:"rate_limit"`
	Transcription TranscriptionConfig `mapstructure:"transcription"`
	LLM           LLMConfig           `mapstructure:"llm"`
	Recorder      RecorderConfig      `mapstructure:"recorder"`
}

type AppConfig struct {
	Timezone string `mapstructure:"timezone"`
	DemoMode bool   `mapstructure:"demo_mode"` // 回退转写时附带演示指标
}

// Location 解析配置的时区，无效时回退到本地时区
func (c AppConfig) Location() *time.Location {
	if c.Timezone == "" {
		return time.Local
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.Local
	}
	return loc
}

type ServerConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
	Mode string `mapstructure:"mode"`
}

type LogConfig struct {
	Level      string `mapstructure:"level"`
	Filename   string `mapstructure:"filename"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days"`
	Console    bool   `mapstructure:"console"`
}

type DatabaseConfig struct {
	Driver       string `mapstructure:"driver"` // mysql, sqlite
	Host         string `mapstructure:"host"`
	Port         int    `mapstructure:"port"`
	Username     string `mapstructure:"username"`
	Password     string `mapstructure:"password"`
	Database     string `mapstructure:"database"`
	MaxIdleConns int    `mapstructure:"max_idle_conns"`
	MaxOpenConns int    `mapstructure:"max_open_conns"`
}

type RedisConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	PoolSize int    `mapstructure:"pool_size"`
}

type JWTConfig struct {
	Secret      string `mapstructure:"secret"`
	ExpireHours int    `mapstructure:"expire_hours"`
}

type StorageConfig struct {
	Backend string `mapstructure:"backend"` // oss, minio
}

type OSSConfig struct {
	Endpoint        string `mapstructure:"endpoint"`
	AccessKeyID     string `mapstructure:"access_key_id"`
	AccessKeySecret string `mapstructure:"access_key_secret"`
	BucketName      string `mapstructure:"bucket_name"`
	CDNDomain       string `mapstructure:"cdn_domain"`
}

type MinioConfig struct {
	Endpoint   string `mapstructure:"endpoint"`
	AccessKey  string `mapstructure:"access_key"`
	SecretKey  string `mapstructure:"secret_key"`
	Bucket     string `mapstructure:"bucket"`
	UseSSL     bool   `mapstructure:"use_ssl"`
	PublicBase string `mapstructure:"public_base"`
}

type OAuthConfig struct {
	Github GithubOAuthConfig `mapstructure:"github"`
}

type GithubOAuthConfig struct {
	ClientID     string `mapstructure:"client_id"`
	ClientSecret string `mapstructure:"client_secret"`
	RedirectURI  string `mapstructure:"redirect_uri"`
	FrontendURL  string `mapstructure:"frontend_url"`
}

type EmailConfig struct {
	SMTPHost string `mapstructure:"smtp_host"`
	SMTPPort int    `mapstructure:"smtp_port"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	From     string `mapstructure:"from"`
}

type QueueConfig struct {
	ConversationQueue string `mapstructure:"conversation_queue"`
	MaxWorkers        int    `mapstructure:"max_workers"`
}

type CORSConfig struct {
	AllowedOrigins []string `mapstructure:"allowed_origins"`
	AllowedMethods []string `mapstructure:"allowed_methods"`
	AllowedHeaders []string `mapstructure:"allowed_headers"`
}

type RateLimitConfig struct {
	Analyze string `mapstructure:"analyze"` // ulule 格式，例如 "10-M"
}

type TranscriptionConfig struct {
	Endpoint       string `mapstructure:"endpoint"`
	APIKey         string `mapstructure:"api_key"`
	Model          string `mapstructure:"model"`
	TimeoutSeconds int    `mapstructure:"timeout_seconds"`
}

type LLMConfig struct {
	BaseURL        string  `mapstructure:"base_url"`
	APIKey         string  `mapstructure:"api_key"` // 用户未配置密钥时使用
	Model          string  `mapstructure:"model"`
	SystemPrompt   string  `mapstructure:"system_prompt"`
	Temperature    float32 `mapstructure:"temperature"`
	MaxTokens      int     `mapstructure:"max_tokens"`
	TimeoutSeconds int     `mapstructure:"timeout_seconds"`
}

type RecorderConfig struct {
	Store             string `mapstructure:"store"` // memory, redis
	RecordingTTLMins  int    `mapstructure:"recording_ttl_minutes"`
	MaxRecordingBytes int64  `mapstructure:"max_recording_bytes"`
	MimeType          string `mapstructure:"mime_type"`
	InFlightTTLSecs   int    `mapstructure:"in_flight_ttl_seconds"`
	SessionIdleMins   int    `mapstructure:"session_idle_minutes"`
}

// RecordingTTL 录音在临时存储中的保留时间
func (c RecorderConfig) RecordingTTL() time.Duration {
	if c.RecordingTTLMins <= 0 {
		return 30 * time.Minute
	}
	return time.Duration(c.RecordingTTLMins) * time.Minute
}

// InFlightTTL 分析进行中标记的过期时间
func (c RecorderConfig) InFlightTTL() time.Duration {
	if c.InFlightTTLSecs <= 0 {
		return 2 * time.Minute
	}
	return time.Duration(c.InFlightTTLSecs) * time.Second
}

// SessionIdleTTL 录音会话空闲多久后被回收
func (c RecorderConfig) SessionIdleTTL() time.Duration {
	if c.SessionIdleMins <= 0 {
		return 30 * time.Minute
	}
	return time.Duration(c.SessionIdleMins) * time.Minute
}

func Load(configPath string) (*Config, error) {
	// 优先尝试读取 config.local.yaml（包含真实密钥，不提交到git）
	dir := filepath.Dir(configPath)
	localConfigPath := filepath.Join(dir, "config.local.yaml")

	if _, err := os.Stat(localConfigPath); err == nil {
		configPath = localConfigPath
	}

	v := viper.New()
	v.SetConfigFile(configPath)
	v.SetConfigType("yaml")

	// 环境变量覆盖
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.demo_mode", true)
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.mode", "debug")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.console", true)
	v.SetDefault("database.driver", "mysql")
	v.SetDefault("jwt.expire_hours", 72)
	v.SetDefault("storage.backend", "oss")
	v.SetDefault("queue.conversation_queue", "conversation_jobs")
	v.SetDefault("queue.max_workers", 2)
	v.SetDefault("rate_limit.analyze", "10-M")
	v.SetDefault("transcription.timeout_seconds", 60)
	v.SetDefault("llm.base_url", "https://api.openai.com/v1")
	v.SetDefault("llm.model", "gpt-4o-mini")
	v.SetDefault("llm.temperature", 0.7)
	v.SetDefault("llm.max_tokens", 1000)
	v.SetDefault("llm.timeout_seconds", 60)
	v.SetDefault("recorder.store", "memory")
	v.SetDefault("recorder.recording_ttl_minutes", 30)
	v.SetDefault("recorder.max_recording_bytes", 50*1024*1024)
	v.SetDefault("recorder.mime_type", "audio/webm")
	v.SetDefault("recorder.in_flight_ttl_seconds", 120)
	v.SetDefault("recorder.session_idle_minutes", 30)
}
