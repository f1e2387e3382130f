package serve

import (
	"fmt"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/taskfire/taskfire-go/cmd/util"
	"github.com/taskfire/taskfire-go/rpc/common"
	"github.com/taskfire/taskfire-go/rpc/server"
	"os"
	"os/signal"
	"syscall"
)

var (
	serveCmdConfig = &common.ServerConfig{}
	ServeCmd       = &cobra.Command{
		Use:   "serve",
		Short: "Start the development task-queue server",
		Long: `Start a development server that speaks the task-queue envelope protocol. Every request
is answered with an echo of the request; the optional "status" and "delayMs" fields choose the reply status
and delay. With --work-interval-ms the server pushes heartbeat work to every connection.

The configuration can be set via command line flags or environment variables. The format of the environment
variables is TASKFIRE_<flag> (e.g. TASKFIRE_WORK_INTERVAL_MS=1000)`,
		Args:    cobra.NoArgs,
		PreRunE: processConfig,
		RunE:    run,
	}
)

func init() {
	// add flags
	key := "transport"
	ServeCmd.PersistentFlags().String(key, "ws", util.WrapString("Transport to serve (ws, tcp, unix)"))

	key = "endpoint"
	ServeCmd.PersistentFlags().String(key, "127.0.0.1:8080", util.WrapString("The address on which the server will listen (e.g. 0.0.0.0:8080, /tmp/taskfire.sock, ...)"))

	key = "timeout"
	ServeCmd.PersistentFlags().Int64(key, 5, util.WrapString("Write timeout per session in seconds (0 disables it)"))

	key = "workers-per-session"
	ServeCmd.PersistentFlags().Int(key, 16, util.WrapString("How many requests of one connection are handled concurrently"))

	key = "work-interval-ms"
	ServeCmd.PersistentFlags().Int(key, 0, util.WrapString("Push a heartbeat work envelope to every connection at this interval (0 disables it)"))

	key = "token"
	ServeCmd.PersistentFlags().String(key, "", util.WrapString("Token the clients must present, empty accepts every token"))

	key = "write-buffer"
	ServeCmd.PersistentFlags().Int(key, 512, util.WrapString("The size of the socket write buffer (in KB, tcp and unix only)"))

	key = "read-buffer"
	ServeCmd.PersistentFlags().Int(key, 512, util.WrapString("The size of the socket read buffer (in KB, tcp and unix only)"))

	key = "tcp-nodelay"
	ServeCmd.PersistentFlags().Bool(key, true, util.WrapString("Whether to enable TCP_NODELAY (tcp only)"))
}

// processConfig reads the configuration from the command line flags and environment variables and converts them to the server configuration
func processConfig(cmd *cobra.Command, _ []string) error {
	// bind the flags to viper
	if err := util.BindCommandFlags(cmd); err != nil {
		return err
	}

	serveCmdConfig.Transport = common.ServerTransportConfig{
		Endpoint: viper.GetString("endpoint"),
		SocketConf: common.SocketConf{
			WriteBufferSize: viper.GetInt("write-buffer") * 1024,
			ReadBufferSize:  viper.GetInt("read-buffer") * 1024,
		},
		TCPConf: common.TCPConf{
			TCPNoDelay: viper.GetBool("tcp-nodelay"),
		},
	}
	serveCmdConfig.TimeoutSecond = viper.GetInt64("timeout")
	serveCmdConfig.WorkersPerSession = viper.GetInt("workers-per-session")
	serveCmdConfig.WorkIntervalMs = viper.GetInt("work-interval-ms")
	serveCmdConfig.Token = viper.GetString("token")
	serveCmdConfig.LogLevel = viper.GetString("log-level")

	if serveCmdConfig.Transport.Endpoint == "" {
		return fmt.Errorf("endpoint is required")
	}
	if serveCmdConfig.WorkIntervalMs < 0 {
		return fmt.Errorf("work-interval-ms must not be negative")
	}

	return common.InitLoggers(serveCmdConfig.LogLevel)
}

// run starts the development server and blocks until it is interrupted
func run(_ *cobra.Command, _ []string) error {
	t, err := util.GetServerTransport(viper.GetString("transport"))
	if err != nil {
		return err
	}

	serv := server.NewRPCServer(
		*serveCmdConfig,
		t,
		util.GetSerializer(),
		server.EchoHandler,
	)
	if err := serv.Start(); err != nil {
		return err
	}

	fmt.Println(serveCmdConfig.String())
	fmt.Printf("listening on %s (%s)\n", serv.Addr(), viper.GetString("transport"))

	// shut down on interrupt, Serve returns once the transport closed
	signals := make(chan os.Signal, 1)
	signal.Notify(signals, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(signals)
	go func() {
		if _, ok := <-signals; ok {
			fmt.Println("shutting down...")
			_ = serv.Close()
		}
	}()

	return serv.Serve()
}
