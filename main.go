package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fansqz/go-jdwp/config"
	"github.com/fansqz/go-jdwp/utils/gosync"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

// 定义版本号
const Version = "1.0.1"

var cfgFile string

var rootCmd = &cobra.Command{
	Use:     "jdwp-agent",
	Short:   "JDWP debug agent",
	Version: Version,
	Long: `jdwp-agent 通过JDWP协议和调试器通信，管理调试器注册的事件请求并发送组合事件。

使用示例:
  # 监听8000端口，等待调试器连接
  jdwp-agent --address 8000 --server=true --suspend=true

  # 主动连接调试器
  jdwp-agent --address 127.0.0.1:5005 --server=false`,
	SilenceUsage: true,
	RunE:         run,
}

// flagKeys 命令行标志和配置项的对应关系
var flagKeys = map[string]string{
	"address":           config.KeyAddress,
	"server":            config.KeyServer,
	"suspend":           config.KeySuspend,
	"attach-timeout":    config.KeyAttachTimeout,
	"accept-timeout":    config.KeyAcceptTimeout,
	"handshake-timeout": config.KeyHandshakeTimeout,
	"idle-timeout":      config.KeyIdleTimeout,
	"max-requests":      config.KeyMaxRequests,
	"id-size":           config.KeyIDSize,
	"log-level":         config.KeyLogLevel,
	"log-format":        config.KeyLogFormat,
	"log-file":          config.KeyLogFile,
	"metrics-address":   config.KeyMetricsAddress,
}

func init() {
	flags := rootCmd.Flags()
	flags.StringVar(&cfgFile, "config", "", "配置文件路径（yaml）")
	flags.String("address", "8000", "监听或连接的地址：port 或 host:port")
	flags.Bool("server", true, "监听等待调试器连接，false时主动连接调试器")
	flags.Bool("suspend", true, "VM_START事件挂起所有线程")
	flags.Duration("attach-timeout", 10*time.Second, "连接调试器的超时时间")
	flags.Duration("accept-timeout", 0, "等待调试器连接的超时时间，0表示一直等待")
	flags.Duration("handshake-timeout", 10*time.Second, "握手超时时间")
	flags.Duration("idle-timeout", 0, "调试器空闲多久之后断开连接，0表示不限制")
	flags.Int("max-requests", 0, "最多可以注册的事件请求数量，0表示不限制")
	flags.Int("id-size", 8, "对象、类型、方法、字段、栈帧ID的字节长度")
	flags.String("log-level", "info", "日志级别")
	flags.String("log-format", "text", "日志格式（text、json）")
	flags.String("log-file", "", "日志文件，默认输出到标准错误")
	flags.String("metrics-address", "", "Prometheus指标的监听地址，例如 :9090")
}

// loadConfig 按优先级加载配置：命令行标志 > 环境变量 > 配置文件
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	v := config.New()
	for name, key := range flagKeys {
		// 只有显式指定的标志才覆盖其他来源
		if flag := cmd.Flags().Lookup(name); flag != nil && flag.Changed {
			if err := v.BindPFlag(key, flag); err != nil {
				return nil, err
			}
		}
	}
	if err := config.ReadFile(v, cfgFile); err != nil {
		return nil, err
	}
	return config.Load(v)
}

func run(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if err = SetupLogger(cfg); err != nil {
		return err
	}
	defer CloseLogger()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if cfg.MetricsAddress != "" {
		serveMetrics(ctx, cfg.MetricsAddress)
	}

	server, err := NewServer(cfg)
	if err != nil {
		return err
	}
	server.OnListening = func(port string) {
		fmt.Printf("Listening for transport dt_socket at address: %s\n", port)
	}
	return server.Run(ctx)
}

// serveMetrics 暴露 /metrics
func serveMetrics(ctx context.Context, address string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{Addr: address, Handler: mux}
	gosync.Go(ctx, "metrics-server", func(ctx context.Context) {
		logrus.Infof("[serveMetrics] listening on %s", address)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logrus.Errorf("[serveMetrics] fail, err = %v", err)
		}
	})
	gosync.Go(ctx, "metrics-shutdown", func(ctx context.Context) {
		<-ctx.Done()
		_ = srv.Close()
	})
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
