package node

import (
	"net"
	"os"
	"strings"
)

// determineHost picks the address this node advertises for its XML-RPC
// endpoint, honoring ROS_HOSTNAME and ROS_IP. The second return value
// reports whether the address is only reachable locally.
func determineHost() (string, bool) {
	if hostname, ok := os.LookupEnv("ROS_HOSTNAME"); ok {
		return hostname, hostname == "localhost"
	}
	if ip, ok := os.LookupEnv("ROS_IP"); ok {
		return ip, isLoopbackAddress(ip)
	}
	if hostname, err := os.Hostname(); err == nil && hostname != "localhost" {
		return hostname, false
	}
	if addrs, err := net.InterfaceAddrs(); err == nil {
		for _, addr := range addrs {
			if ipnet, ok := addr.(*net.IPNet); ok && !ipnet.IP.IsLoopback() {
				return ipnet.IP.String(), false
			}
		}
	}
	return "127.0.0.1", true
}

func isLoopbackAddress(addr string) bool {
	return addr == "::1" || addr == "localhost" || strings.HasPrefix(addr, "127.")
}
