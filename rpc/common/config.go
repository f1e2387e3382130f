package common

import (
	"fmt"
	"strconv"
	"strings"
)

// --------------------------------------------------------------------------
// Transport configuration structs
// --------------------------------------------------------------------------

// SocketConf holds socket buffer settings shared by the stream transports
type SocketConf struct {
	WriteBufferSize int // bytes, 0 keeps the OS default
	ReadBufferSize  int // bytes, 0 keeps the OS default
}

// TCPConf holds tcp specific socket options
type TCPConf struct {
	TCPNoDelay      bool
	TCPKeepAliveSec int
	TCPLingerSec    int
}

// ClientTransportConfig holds the settings the client transports use when dialing
type ClientTransportConfig struct {
	DialTimeoutSecond int
	SocketConf
	TCPConf
}

// ServerTransportConfig holds the settings the server transports use for accepted connections
type ServerTransportConfig struct {
	Endpoint string
	SocketConf
	TCPConf
}

// --------------------------------------------------------------------------
// RPC client configuration struct
// --------------------------------------------------------------------------

// DefaultURL is the endpoint used when no url is configured
const DefaultURL = "wss://api.taskfire.io"

// ClientConfig holds all configuration parameters for a client connection
type ClientConfig struct {
	// URL of the task-queue service. The scheme selects the transport (ws, wss, tcp, unix).
	URL string
	// Token authenticates the client, it is required
	Token string
	// ProjectID is injected into every request as projectId unless the request sets one
	ProjectID string
	// Debug logs every send and receive event
	Debug bool

	// TimeoutSecond expires pending requests after the given time, 0 disables expiry
	TimeoutSecond int
	// MaxPending caps the number of in-flight requests, 0 means unbounded
	MaxPending int
	// SendRate limits outgoing requests per second, 0 means unlimited
	SendRate float64
	// SendBurst is the token bucket size used together with SendRate
	SendBurst int

	Transport ClientTransportConfig
}

// String returns a formatted string representation of the client configuration
func (c *ClientConfig) String() string {
	var sb strings.Builder

	// Create helper functions for consistent formatting
	addSection := func(title string) {
		sb.WriteString("\n")
		sb.WriteString(fmt.Sprintf("%s\n", strings.ToUpper(title)))
	}

	addField := func(name, value string) {
		sb.WriteString(fmt.Sprintf("  %-22s: %s\n", name, value))
	}

	addSection("Client Configuration")
	addField("URL", c.URL)
	addField("Token", maskToken(c.Token))
	if c.ProjectID != "" {
		addField("Project", c.ProjectID)
	}
	addField("Debug", strconv.FormatBool(c.Debug))

	addSection("Requests")
	if c.TimeoutSecond > 0 {
		addField("Timeout", fmt.Sprintf("%d sec", c.TimeoutSecond))
	} else {
		addField("Timeout", "none")
	}
	if c.MaxPending > 0 {
		addField("Max Pending", strconv.Itoa(c.MaxPending))
	} else {
		addField("Max Pending", "unbounded")
	}
	if c.SendRate > 0 {
		addField("Send Rate", fmt.Sprintf("%.2f/sec (burst %d)", c.SendRate, c.SendBurst))
	} else {
		addField("Send Rate", "unlimited")
	}

	addSection("Transport")
	addField("Dial Timeout", fmt.Sprintf("%d sec", c.Transport.DialTimeoutSecond))
	addField("Write Buffer", fmt.Sprintf("%d bytes", c.Transport.WriteBufferSize))
	addField("Read Buffer", fmt.Sprintf("%d bytes", c.Transport.ReadBufferSize))
	addField("TCP No Delay", strconv.FormatBool(c.Transport.TCPNoDelay))

	return sb.String()
}

// maskToken keeps the last four characters of the token visible
func maskToken(token string) string {
	if token == "" {
		return "(none)"
	}
	if len(token) <= 4 {
		return "****"
	}
	return strings.Repeat("*", len(token)-4) + token[len(token)-4:]
}

// --------------------------------------------------------------------------
// Development server configuration struct
// --------------------------------------------------------------------------

// ServerConfig holds the configuration of the development task-queue server
type ServerConfig struct {
	// Transport settings, Endpoint is a host:port or a socket path
	Transport ServerTransportConfig

	// TimeoutSecond bounds reads and writes on a session, 0 disables deadlines
	TimeoutSecond int64

	// WorkersPerSession bounds how many requests of one session are handled concurrently
	WorkersPerSession int

	// WorkIntervalMs pushes a heartbeat WORK envelope to every session, 0 disables it
	WorkIntervalMs int

	// Token is the expected api token, empty accepts every client
	Token string

	// Logging configuration
	LogLevel string
}

// String returns a formatted string representation of the configuration
func (c *ServerConfig) String() string {
	var sb strings.Builder

	addSection := func(title string) {
		sb.WriteString("\n")
		sb.WriteString(fmt.Sprintf("%s\n", strings.ToUpper(title)))
	}

	addField := func(name, value string) {
		sb.WriteString(fmt.Sprintf("  %-22s: %s\n", name, value))
	}

	addSection("Task Queue Server")
	addField("Endpoint", c.Transport.Endpoint)
	addField("Timeout", fmt.Sprintf("%d sec", c.TimeoutSecond))
	addField("Workers Per Session", strconv.Itoa(c.WorkersPerSession))
	if c.WorkIntervalMs > 0 {
		addField("Work Interval", fmt.Sprintf("%d ms", c.WorkIntervalMs))
	} else {
		addField("Work Interval", "disabled")
	}
	addField("Token", maskToken(c.Token))

	addSection("Logging")
	addField("Log Level", c.LogLevel)

	return sb.String()
}
