package transport

import (
	"fmt"
	"net"
	"strconv"
	"strings"

	e "github.com/fansqz/go-jdwp/error"
)

const (
	anyHost   = "0.0.0.0"
	localHost = "127.0.0.1"
)

// socketAddress 解析后的地址
type socketAddress struct {
	Host string
	Port int
}

func (a socketAddress) String() string {
	return net.JoinHostPort(a.Host, strconv.Itoa(a.Port))
}

// decodeAddress 解析 ""、"port"、"host:port"、"[ipv6]:port" 格式的地址
// 没有指定host时，监听使用通配地址，连接使用回环地址
func decodeAddress(address string, isServer bool) (socketAddress, error) {
	defaultHost := localHost
	if isServer {
		defaultHost = anyHost
	}
	if address == "" {
		return socketAddress{Host: defaultHost}, nil
	}
	host, portStr := defaultHost, address
	if i := strings.LastIndex(address, ":"); i >= 0 {
		host, portStr = address[:i], address[i+1:]
		// IPv6地址带方括号，例如 [::1]:9000
		if strings.HasPrefix(host, "[") && strings.HasSuffix(host, "]") {
			host = host[1 : len(host)-1]
		}
		if host == "" {
			host = defaultHost
		}
	}
	port, err := strconv.Atoi(portStr)
	if err != nil || port < 0 || port > 65535 {
		return socketAddress{}, fmt.Errorf("%w: invalid port %q", e.ErrIllegalArgument, portStr)
	}
	return socketAddress{Host: host, Port: port}, nil
}
