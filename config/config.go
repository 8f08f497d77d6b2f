// Package config 加载调试代理的配置
// 按优先级加载：命令行标志 > 环境变量(JDWP_*) > 配置文件 > 默认值
package config

import (
	"fmt"
	"time"

	e "github.com/fansqz/go-jdwp/error"
	"github.com/spf13/viper"
)

// EnvPrefix 环境变量前缀，例如 JDWP_ADDRESS
const EnvPrefix = "JDWP"

// 配置项的key
const (
	KeyAddress          = "address"
	KeyServer           = "server"
	KeySuspend          = "suspend"
	KeyAttachTimeout    = "attach_timeout"
	KeyAcceptTimeout    = "accept_timeout"
	KeyHandshakeTimeout = "handshake_timeout"
	KeyIdleTimeout      = "idle_timeout"
	KeyMaxRequests      = "max_requests"
	KeyIDSize           = "id_size"
	KeyLogLevel         = "log_level"
	KeyLogFormat        = "log_format"
	KeyLogFile          = "log_file"
	KeyMetricsAddress   = "metrics_address"
)

// Config 调试代理的配置
type Config struct {
	// Address 监听或连接的地址，格式为 ""、"port" 或 "host:port"
	Address string
	// Server 为true时监听等待调试器连接，否则主动连接调试器
	Server bool
	// Suspend VM_START事件是否挂起所有线程
	Suspend bool

	AttachTimeout    time.Duration
	AcceptTimeout    time.Duration
	HandshakeTimeout time.Duration
	// IdleTimeout 调试器在这段时间内没有发送任何数据包时断开连接，0表示不限制
	IdleTimeout time.Duration

	MaxRequests int
	IDSize      int

	LogLevel  string
	LogFormat string
	LogFile   string

	// MetricsAddress Prometheus指标的监听地址，为空时不暴露
	MetricsAddress string
}

// SetDefaults 设置默认值
func SetDefaults(v *viper.Viper) {
	v.SetDefault(KeyAddress, "8000")
	v.SetDefault(KeyServer, true)
	v.SetDefault(KeySuspend, true)
	v.SetDefault(KeyAttachTimeout, 10*time.Second)
	v.SetDefault(KeyAcceptTimeout, time.Duration(0))
	v.SetDefault(KeyHandshakeTimeout, 10*time.Second)
	v.SetDefault(KeyIdleTimeout, time.Duration(0))
	v.SetDefault(KeyMaxRequests, 0)
	v.SetDefault(KeyIDSize, 8)
	v.SetDefault(KeyLogLevel, "info")
	v.SetDefault(KeyLogFormat, "text")
	v.SetDefault(KeyLogFile, "")
	v.SetDefault(KeyMetricsAddress, "")
}

// New 创建带默认值和环境变量绑定的viper实例
func New() *viper.Viper {
	v := viper.New()
	SetDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.AutomaticEnv()
	return v
}

// ReadFile 读取yaml配置文件
func ReadFile(v *viper.Viper, path string) error {
	if path == "" {
		return nil
	}
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return fmt.Errorf("read config file %s: %w", path, err)
	}
	return nil
}

// Load 从viper读取配置并校验
func Load(v *viper.Viper) (*Config, error) {
	c := &Config{
		Address:          v.GetString(KeyAddress),
		Server:           v.GetBool(KeyServer),
		Suspend:          v.GetBool(KeySuspend),
		AttachTimeout:    v.GetDuration(KeyAttachTimeout),
		AcceptTimeout:    v.GetDuration(KeyAcceptTimeout),
		HandshakeTimeout: v.GetDuration(KeyHandshakeTimeout),
		IdleTimeout:      v.GetDuration(KeyIdleTimeout),
		MaxRequests:      v.GetInt(KeyMaxRequests),
		IDSize:           v.GetInt(KeyIDSize),
		LogLevel:         v.GetString(KeyLogLevel),
		LogFormat:        v.GetString(KeyLogFormat),
		LogFile:          v.GetString(KeyLogFile),
		MetricsAddress:   v.GetString(KeyMetricsAddress),
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

// Validate 校验配置
func (c *Config) Validate() error {
	timeouts := map[string]time.Duration{
		KeyAttachTimeout:    c.AttachTimeout,
		KeyAcceptTimeout:    c.AcceptTimeout,
		KeyHandshakeTimeout: c.HandshakeTimeout,
		KeyIdleTimeout:      c.IdleTimeout,
	}
	for key, timeout := range timeouts {
		if timeout < 0 {
			return fmt.Errorf("%w: %s is negative", e.ErrIllegalArgument, key)
		}
	}
	if c.MaxRequests < 0 {
		return fmt.Errorf("%w: %s is negative", e.ErrIllegalArgument, KeyMaxRequests)
	}
	if c.IDSize < 1 || c.IDSize > 8 {
		return fmt.Errorf("%w: %s must be between 1 and 8", e.ErrIllegalArgument, KeyIDSize)
	}
	if !c.Server && c.Address == "" {
		return fmt.Errorf("%w: address is required to attach", e.ErrIllegalArgument)
	}
	switch c.LogFormat {
	case "text", "json":
	default:
		return fmt.Errorf("%w: unknown %s %q", e.ErrIllegalArgument, KeyLogFormat, c.LogFormat)
	}
	return nil
}
