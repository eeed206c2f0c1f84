// ABOUTME: mDNS service discovery for live coaching relays
// ABOUTME: Advertises a relay on the LAN and browses for one from the client
package discovery

import (
	"context"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/hashicorp/mdns"
	"github.com/rs/zerolog"
)

const (
	// ServiceType is the mDNS service advertised by live relays
	ServiceType = "_salescoach._tcp"

	// DefaultPath is the WebSocket path advertised when none is configured
	DefaultPath = "/live"

	browseTimeout = 3 * time.Second
)

// Config holds discovery configuration
type Config struct {
	ServiceName string
	Port        int
	Path        string
	Logger      zerolog.Logger
}

// Manager handles mDNS operations
type Manager struct {
	config  Config
	ctx     context.Context
	cancel  context.CancelFunc
	servers chan *ServerInfo
}

// ServerInfo describes a discovered relay
type ServerInfo struct {
	Name string
	Host string
	Port int
	Path string
}

// Endpoint returns the WebSocket URL of the relay
func (s *ServerInfo) Endpoint() string {
	return fmt.Sprintf("ws://%s%s", net.JoinHostPort(s.Host, fmt.Sprint(s.Port)), s.Path)
}

// NewManager creates a discovery manager
func NewManager(config Config) *Manager {
	if config.Path == "" {
		config.Path = DefaultPath
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &Manager{
		config:  config,
		ctx:     ctx,
		cancel:  cancel,
		servers: make(chan *ServerInfo, 10),
	}
}

// Advertise advertises this relay via mDNS
func (m *Manager) Advertise() error {
	ips, err := getLocalIPs()
	if err != nil {
		return fmt.Errorf("failed to get local IPs: %w", err)
	}

	service, err := mdns.NewMDNSService(
		m.config.ServiceName,
		ServiceType,
		"",
		"",
		m.config.Port,
		ips,
		[]string{"path=" + m.config.Path},
	)
	if err != nil {
		return fmt.Errorf("failed to create service: %w", err)
	}

	server, err := mdns.NewServer(&mdns.Config{Zone: service})
	if err != nil {
		return fmt.Errorf("failed to create mdns server: %w", err)
	}

	m.config.Logger.Info().
		Str("name", m.config.ServiceName).
		Int("port", m.config.Port).
		Str("type", ServiceType).
		Msg("Advertising mDNS service")

	go func() {
		<-m.ctx.Done()
		server.Shutdown()
	}()

	return nil
}

// Browse searches for relays until Stop
func (m *Manager) Browse() {
	go m.browseLoop()
}

// browseLoop continuously browses for relays
func (m *Manager) browseLoop() {
	for {
		select {
		case <-m.ctx.Done():
			return
		default:
		}

		entries := make(chan *mdns.ServiceEntry, 10)
		done := make(chan struct{})

		go func() {
			defer close(done)
			for entry := range entries {
				server := entryToServer(entry)
				if server == nil {
					continue
				}

				m.config.Logger.Info().
					Str("name", server.Name).
					Str("endpoint", server.Endpoint()).
					Msg("Discovered relay")

				select {
				case m.servers <- server:
				case <-m.ctx.Done():
				}
			}
		}()

		params := mdns.DefaultParams(ServiceType)
		params.Timeout = browseTimeout
		params.Entries = entries
		params.DisableIPv6 = true

		if err := mdns.Query(params); err != nil {
			m.config.Logger.Debug().Err(err).Msg("mDNS query failed")
		}
		close(entries)
		<-done
	}
}

// entryToServer converts an mDNS entry, returning nil when it has no IPv4 address
func entryToServer(entry *mdns.ServiceEntry) *ServerInfo {
	if entry == nil || entry.AddrV4 == nil {
		return nil
	}

	path := DefaultPath
	for _, field := range entry.InfoFields {
		if v, ok := strings.CutPrefix(field, "path="); ok && v != "" {
			path = v
		}
	}

	return &ServerInfo{
		Name: entry.Name,
		Host: entry.AddrV4.String(),
		Port: entry.Port,
		Path: path,
	}
}

// Servers returns the channel of discovered relays
func (m *Manager) Servers() <-chan *ServerInfo {
	return m.servers
}

// Discover browses until a relay is found or ctx ends
func (m *Manager) Discover(ctx context.Context) (*ServerInfo, error) {
	m.Browse()
	defer m.Stop()

	select {
	case server := <-m.servers:
		return server, nil
	case <-ctx.Done():
		return nil, fmt.Errorf("no relay found: %w", ctx.Err())
	}
}

// Stop stops the discovery manager
func (m *Manager) Stop() {
	m.cancel()
}

// getLocalIPs returns local IP addresses
func getLocalIPs() ([]net.IP, error) {
	var ips []net.IP

	ifaces, err := net.Interfaces()
	if err != nil {
		return nil, err
	}

	for _, iface := range ifaces {
		if iface.Flags&net.FlagUp == 0 || iface.Flags&net.FlagLoopback != 0 {
			continue
		}

		addrs, err := iface.Addrs()
		if err != nil {
			continue
		}

		for _, addr := range addrs {
			if ipnet, ok := addr.(*net.IPNet); ok && !ipnet.IP.IsLoopback() {
				if ipnet.IP.To4() != nil {
					ips = append(ips, ipnet.IP)
				}
			}
		}
	}

	return ips, nil
}
