package node

import (
	"os"
	"testing"
)

func TestDetermineHost(t *testing.T) {
	unset := func(key string) {
		if old, ok := os.LookupEnv(key); ok {
			t.Cleanup(func() { os.Setenv(key, old) })
			os.Unsetenv(key)
		}
	}
	unset("ROS_HOSTNAME")
	unset("ROS_IP")

	t.Setenv("ROS_HOSTNAME", "localhost")
	host, localOnly := determineHost()
	if host != "localhost" || !localOnly {
		t.Errorf("ROS_HOSTNAME=localhost: got %s, localOnly=%v", host, localOnly)
	}

	t.Setenv("ROS_HOSTNAME", "hostname.in.env.var")
	host, localOnly = determineHost()
	if host != "hostname.in.env.var" || localOnly {
		t.Errorf("ROS_HOSTNAME: got %s, localOnly=%v", host, localOnly)
	}

	// ROS_HOSTNAME takes precedence over ROS_IP.
	t.Setenv("ROS_IP", "1.2.3.4")
	host, _ = determineHost()
	if host != "hostname.in.env.var" {
		t.Errorf("ROS_HOSTNAME should win over ROS_IP, got %s", host)
	}

	os.Unsetenv("ROS_HOSTNAME")
	host, localOnly = determineHost()
	if host != "1.2.3.4" || localOnly {
		t.Errorf("ROS_IP: got %s, localOnly=%v", host, localOnly)
	}

	t.Setenv("ROS_IP", "127.0.0.1")
	host, localOnly = determineHost()
	if host != "127.0.0.1" || !localOnly {
		t.Errorf("loopback ROS_IP: got %s, localOnly=%v", host, localOnly)
	}
}
