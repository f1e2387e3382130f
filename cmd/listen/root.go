package listen

import (
	"context"
	"encoding/json"
	"fmt"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/taskfire/taskfire-go/cmd/util"
	"github.com/taskfire/taskfire-go/rpc/client"
	"github.com/taskfire/taskfire-go/rpc/common"
	"github.com/taskfire/taskfire-go/rpc/sink"
	"os"
	"os/signal"
	"syscall"
	"time"
)

var (
	// ListenCmd prints WORK pushes until interrupted
	ListenCmd = &cobra.Command{
		Use:   "listen",
		Short: "Print work pushed by the task-queue service",
		Long: `Open a connection and print every WORK envelope the service pushes until the
command is interrupted. An optional subscribe request is sent once the connection is open.`,
		Example: `  taskfire listen --subscribe '{"action":"worker.subscribe","queue":"emails"}'`,
		Args:    cobra.NoArgs,
		RunE:    run,
	}
)

func init() {
	util.SetupRPCClientFlags(ListenCmd)

	key := "subscribe"
	ListenCmd.Flags().String(key, "", util.WrapString("JSON request sent after the connection opened (e.g. to subscribe to a queue)"))

	key = "count"
	ListenCmd.Flags().Int(key, 0, util.WrapString("Exit after this many work envelopes (0 means run until interrupted)"))
}

func run(cmd *cobra.Command, _ []string) error {
	queue := sink.NewQueue()
	defer queue.Close()

	c, err := util.NewClient(cmd, client.WithSink(queue))
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = c.Close(closeCtx, nil)
	}()

	if err := c.WaitOpen(ctx); err != nil {
		return err
	}
	fmt.Fprintf(os.Stderr, "connected to %s, waiting for work (ctrl-c to stop)\n", viper.GetString("url"))

	if raw := viper.GetString("subscribe"); raw != "" {
		var req common.Request
		if err := json.Unmarshal([]byte(raw), &req); err != nil {
			return fmt.Errorf("subscribe must be a JSON object: %w", err)
		}
		if req == nil {
			return fmt.Errorf("subscribe must be a JSON object")
		}
		env, err := c.Do(ctx, req)
		if err != nil {
			return fmt.Errorf("subscribe failed: %w", err)
		}
		fmt.Fprintf(os.Stderr, "subscribed (status %d)\n", env.Status)
	}

	limit := viper.GetInt("count")
	received := 0
	for {
		select {
		case <-ctx.Done():
			return nil
		case env, ok := <-queue.Recv():
			if !ok {
				return nil
			}
			received++
			fmt.Printf("%s %s\n", time.Now().Format(time.RFC3339), string(env.Payload))
			if limit > 0 && received >= limit {
				return nil
			}
		case <-c.Done():
			code, reason := c.CloseStatus()
			return fmt.Errorf("connection closed (%d %s)", code, reason)
		}
	}
}
