package util

import (
	"fmt"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/taskfire/taskfire-go/rpc/client"
	"github.com/taskfire/taskfire-go/rpc/common"
	"github.com/taskfire/taskfire-go/rpc/serializer"
	"github.com/taskfire/taskfire-go/rpc/transport"
	"github.com/taskfire/taskfire-go/rpc/transport/tcp"
	"github.com/taskfire/taskfire-go/rpc/transport/unix"
	"github.com/taskfire/taskfire-go/rpc/transport/ws"
	"net/url"
	"strings"
)

const (
	// Wrap is the number of characters to Wrap the help text at
	Wrap int = 50

	// EnvPrefix is the prefix of all environment variables read by the cli
	EnvPrefix = "taskfire"
)

// WrapString wraps a string at Wrap characters
func WrapString(text string) string {
	var wrappedLines []string
	var currentLine strings.Builder
	lineWidth := 0

	for _, word := range strings.Fields(text) {
		wordWidth := len(word)

		// Check if we need to wrap
		if lineWidth > 0 && lineWidth+1+wordWidth > Wrap {
			wrappedLines = append(wrappedLines, currentLine.String())
			currentLine.Reset()
			lineWidth = 0
		}

		if lineWidth > 0 {
			currentLine.WriteString(" ")
			lineWidth++
		}

		currentLine.WriteString(word)
		lineWidth += wordWidth
	}

	if currentLine.Len() > 0 {
		wrappedLines = append(wrappedLines, currentLine.String())
	}

	return strings.Join(wrappedLines, "\n")
}

// SetupRPCClientFlags adds the connection flags to a command
func SetupRPCClientFlags(cmd *cobra.Command) {
	key := "url"
	cmd.PersistentFlags().String(key, common.DefaultURL, WrapString("URL of the task-queue service. The scheme selects the transport (ws, wss, tcp, unix)"))

	key = "token"
	cmd.PersistentFlags().String(key, "", WrapString("API token used to authenticate (required, prefer TASKFIRE_TOKEN)"))

	key = "project-id"
	cmd.PersistentFlags().String(key, "", WrapString("Project id added to every request that does not set one"))

	key = "debug"
	cmd.PersistentFlags().Bool(key, false, WrapString("Log every send and receive event"))

	key = "timeout"
	cmd.PersistentFlags().Int(key, 30, WrapString("Seconds after which a request without reply fails (0 disables expiry)"))

	key = "max-pending"
	cmd.PersistentFlags().Int(key, 0, WrapString("Maximum number of requests awaiting a reply (0 means unbounded)"))

	key = "send-rate"
	cmd.PersistentFlags().Float64(key, 0, WrapString("Maximum requests per second (0 means unlimited)"))

	key = "send-burst"
	cmd.PersistentFlags().Int(key, 1, WrapString("Burst size used together with send-rate"))

	key = "transport-dial-timeout"
	cmd.PersistentFlags().Int(key, 10, WrapString("Seconds to wait for the connection to open"))

	key = "transport-write-buffer"
	cmd.PersistentFlags().Int(key, 64, WrapString("The size of the write buffer for the transport (in KB)"))

	key = "transport-read-buffer"
	cmd.PersistentFlags().Int(key, 64, WrapString("The size of the read buffer for the transport (in KB)"))

	key = "transport-tcp-nodelay"
	cmd.PersistentFlags().Bool(key, true, WrapString("Whether to enable TCP_NODELAY (tcp only)"))

	key = "transport-tcp-keepalive"
	cmd.PersistentFlags().Int(key, 0, WrapString("The keepalive interval for the transport (in seconds, tcp only)"))

	key = "transport-tcp-linger"
	cmd.PersistentFlags().Int(key, 0, WrapString("The linger time for the transport (in seconds, tcp only)"))
}

// InitConfig loads env files and makes viper read TASKFIRE_* environment variables
func InitConfig() {
	// load env files
	_ = godotenv.Load(".env")
	_ = godotenv.Load(".env.local")

	// initialize viper
	viper.SetEnvPrefix(EnvPrefix)
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv() // read in environment variables that match
}

// GetClientConfig reads client configuration from viper
func GetClientConfig() *common.ClientConfig {
	conf := &common.ClientConfig{
		URL:           viper.GetString("url"),
		Token:         viper.GetString("token"),
		ProjectID:     viper.GetString("project-id"),
		Debug:         viper.GetBool("debug"),
		TimeoutSecond: viper.GetInt("timeout"),
		MaxPending:    viper.GetInt("max-pending"),
		SendRate:      viper.GetFloat64("send-rate"),
		SendBurst:     viper.GetInt("send-burst"),
		Transport: common.ClientTransportConfig{
			DialTimeoutSecond: viper.GetInt("transport-dial-timeout"),
			SocketConf: common.SocketConf{
				WriteBufferSize: viper.GetInt("transport-write-buffer") * 1024,
				ReadBufferSize:  viper.GetInt("transport-read-buffer") * 1024,
			},
			TCPConf: common.TCPConf{
				TCPKeepAliveSec: viper.GetInt("transport-tcp-keepalive"),
				TCPLingerSec:    viper.GetInt("transport-tcp-linger"),
				TCPNoDelay:      viper.GetBool("transport-tcp-nodelay"),
			},
		},
	}

	return conf
}

// GetSerializer creates the serializer of the envelope protocol
func GetSerializer() serializer.IRPCSerializer {
	return serializer.NewJSONSerializer()
}

// GetTransport creates the client transport matching the scheme of rawURL
func GetTransport(rawURL string) (transport.IRPCClientTransport, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("invalid url %q: %w", rawURL, err)
	}

	switch u.Scheme {
	case "ws", "wss":
		return ws.NewWSClientTransport(), nil
	case "tcp":
		return tcp.NewTCPClientTransport(), nil
	case "unix":
		return unix.NewUnixClientTransport(), nil
	default:
		return nil, fmt.Errorf("unsupported url scheme %q (expected ws, wss, tcp or unix)", u.Scheme)
	}
}

// GetServerTransport creates the server transport with the given name
func GetServerTransport(name string) (transport.IRPCServerTransport, error) {
	switch name {
	case "ws":
		return ws.NewWSServerTransport(), nil
	case "tcp":
		return tcp.NewTCPDefaultServerTransport(), nil
	case "unix":
		return unix.NewUnixDefaultServerTransport(), nil
	default:
		return nil, fmt.Errorf("invalid transport %s (expected ws, tcp or unix)", name)
	}
}

// BindCommandFlags binds a command's flags to viper
func BindCommandFlags(cmd *cobra.Command) error {
	return viper.BindPFlags(cmd.Flags())
}

// InitLogging sets the level of all package loggers from the log-level flag
func InitLogging() error {
	return common.InitLoggers(viper.GetString("log-level"))
}

// NewClient binds the flags of cmd and connects a client with the resulting configuration
func NewClient(cmd *cobra.Command, opts ...client.Option) (*client.Client, error) {
	if err := BindCommandFlags(cmd); err != nil {
		return nil, err
	}
	if err := InitLogging(); err != nil {
		return nil, err
	}

	config := GetClientConfig()
	if config.Token == "" {
		return nil, fmt.Errorf("%w: set --token or TASKFIRE_TOKEN", common.ErrMissingToken)
	}

	t, err := GetTransport(config.URL)
	if err != nil {
		return nil, err
	}

	return client.NewClient(*config, t, GetSerializer(), opts...)
}
