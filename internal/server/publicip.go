package server

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"
)

// DefaultIPLookupURL is the service queried for the host's public
// address.
const DefaultIPLookupURL = "https://api.ipify.org"

// ResolvePublicIP fetches the host's public address, retrying with a
// growing delay until ctx expires. The result is process state held
// by the façade, resolved once at startup.
func ResolvePublicIP(ctx context.Context, client *http.Client, url string) (string, error) {
	if client == nil {
		client = &http.Client{Timeout: 5 * time.Second}
	}
	if url == "" {
		url = DefaultIPLookupURL
	}

	delay := time.Second
	for {
		ip, err := fetchIP(ctx, client, url)
		if err == nil {
			return ip, nil
		}
		select {
		case <-ctx.Done():
			return "", fmt.Errorf("resolve public ip: %w (last error: %v)", ctx.Err(), err)
		case <-time.After(delay):
		}
		if delay < 30*time.Second {
			delay *= 2
		}
	}
}

func fetchIP(ctx context.Context, client *http.Client, url string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", err
	}
	resp, err := client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("ip lookup returned %s", resp.Status)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, 64))
	if err != nil {
		return "", err
	}
	ip := strings.TrimSpace(string(body))
	if net.ParseIP(ip) == nil {
		return "", fmt.Errorf("ip lookup returned %q", ip)
	}
	return ip, nil
}

// NetworkIP returns the host's primary interface address, used as the
// bind address for the log listener.
func NetworkIP() string {
	conn, err := net.Dial("udp", "8.8.8.8:53")
	if err != nil {
		return "0.0.0.0"
	}
	defer conn.Close()
	return conn.LocalAddr().(*net.UDPAddr).IP.String()
}
