package device

import (
	"context"
	"runtime"
	"time"

	probing "github.com/prometheus-community/pro-bing"
)

// Ping sends count ICMP echo requests to host and reports whether any
// reply arrived before timeout, with the average round trip time.
func Ping(ctx context.Context, host string, count int, timeout time.Duration) (bool, time.Duration, error) {
	pinger, err := probing.NewPinger(host)
	if err != nil {
		return false, 0, err
	}
	if count <= 0 {
		count = 1
	}
	pinger.Count = count
	pinger.Timeout = timeout
	pinger.SetPrivileged(runtime.GOOS == "windows")

	done := make(chan error, 1)
	go func() { done <- pinger.Run() }()

	select {
	case err := <-done:
		if err != nil {
			return false, 0, err
		}
	case <-ctx.Done():
		pinger.Stop()
		<-done
		return false, 0, ctx.Err()
	}

	stats := pinger.Statistics()
	return stats.PacketsRecv > 0, stats.AvgRtt, nil
}
