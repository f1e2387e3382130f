package cmd

import (
	"fmt"
	"github.com/spf13/cobra"
	"github.com/taskfire/taskfire-go/cmd/listen"
	"github.com/taskfire/taskfire-go/cmd/perf"
	"github.com/taskfire/taskfire-go/cmd/request"
	"github.com/taskfire/taskfire-go/cmd/serve"
	"github.com/taskfire/taskfire-go/cmd/util"
	"os"
)

const (
	Version = "0.4.2"
)

var (

	// RootCmd represents the base command when called without any subcommands
	RootCmd = &cobra.Command{
		Use:   "taskfire",
		Short: "client for the taskfire task-queue service",
		Long: fmt.Sprintf(`taskfire (v%s)

Command line client for the taskfire task-queue service. Requests and replies
are multiplexed over a single connection; work pushed by the service can be
printed as it arrives.`, Version),
		SilenceUsage: true,
	}
	versionCmd = &cobra.Command{
		Use:   "version",
		Short: "Print the version number of taskfire",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("taskfire v%s\n", Version)
		},
	}
)

func init() {
	// initialize viper
	cobra.OnInitialize(util.InitConfig)

	// Add Commands
	RootCmd.AddCommand(request.RequestCmd)
	RootCmd.AddCommand(listen.ListenCmd)
	RootCmd.AddCommand(perf.PerfCmd)
	RootCmd.AddCommand(serve.ServeCmd)
	RootCmd.AddCommand(versionCmd)

	// Add Flags
	key := "log-level"
	RootCmd.PersistentFlags().String(key, "warn", util.WrapString("level at which logs will be output (debug, info, warn, error)"))
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the RootCmd.
func Execute() {
	if err := RootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
