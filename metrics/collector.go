// Package metrics 定义调试代理的 Prometheus 指标
// 传输层和事件请求管理都会更新这里的指标，由 agent 的 --metrics-address 暴露
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "jdwp_agent"

var (
	// PacketsRead 读取到的数据包数量，标签 type: command/reply
	PacketsRead = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "transport",
		Name:      "packets_read_total",
		Help:      "Number of JDWP packets read from the debugger connection.",
	}, []string{"type"})

	// PacketsWritten 写出的数据包数量，标签 type: command/reply
	PacketsWritten = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "transport",
		Name:      "packets_written_total",
		Help:      "Number of JDWP packets written to the debugger connection.",
	}, []string{"type"})

	// TransportErrors 传输层错误数量，标签 type: 错误类型
	TransportErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "transport",
		Name:      "errors_total",
		Help:      "Number of failed transport operations by error type.",
	}, []string{"type"})

	// Handshakes 握手次数，标签 result: ok/fail
	Handshakes = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "transport",
		Name:      "handshakes_total",
		Help:      "Number of JDWP handshakes by result.",
	}, []string{"result"})

	// ActiveRequests 当前注册的事件请求数量，标签 kind: 事件类型
	ActiveRequests = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "requests",
		Name:      "active",
		Help:      "Number of registered event requests by event kind.",
	}, []string{"kind"})

	// CompositeEvents 生成的组合事件数量，标签 suspend_policy
	CompositeEvents = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "events",
		Name:      "composite_total",
		Help:      "Number of composite events emitted by suspend policy.",
	}, []string{"suspend_policy"})

	// MatchedEvents 命中请求的事件数量，标签 kind: 事件类型
	MatchedEvents = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "events",
		Name:      "matched_total",
		Help:      "Number of request matches by event kind.",
	}, []string{"kind"})
)

// PacketType 返回数据包的指标标签
func PacketType(reply bool) string {
	if reply {
		return "reply"
	}
	return "command"
}
