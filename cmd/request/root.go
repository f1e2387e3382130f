package request

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/taskfire/taskfire-go/cmd/util"
	"github.com/taskfire/taskfire-go/rpc/common"
	"os"
	"os/signal"
	"syscall"
	"time"
)

var (
	// RequestCmd sends one logical request and prints the reply
	RequestCmd = &cobra.Command{
		Use:   "request [json]",
		Short: "Send one request to the task-queue service",
		Long: `Send one request to the task-queue service and print the reply.
The request is a JSON object, e.g. '{"action":"queue.list"}'. Use "-" to read it from stdin.
Replies with an error status (400-599) make the command fail.`,
		Example: `  taskfire request '{"action":"task.create","queue":"emails","payload":{"to":"a@b.c"}}'`,
		Args:    cobra.ExactArgs(1),
		RunE:    run,
	}
)

func init() {
	util.SetupRPCClientFlags(RequestCmd)

	key := "raw"
	RequestCmd.Flags().Bool(key, false, util.WrapString("Print the reply payload as received instead of indented"))
}

func run(cmd *cobra.Command, args []string) error {
	req, err := parseRequest(args[0])
	if err != nil {
		return err
	}

	c, err := util.NewClient(cmd)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	env, reqErr := c.Do(ctx, req)

	closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = c.Close(closeCtx, nil)

	var statusErr *common.StatusError
	switch {
	case errors.As(reqErr, &statusErr):
		printEnvelope(&statusErr.Envelope)
		return reqErr
	case reqErr != nil:
		return reqErr
	}

	printEnvelope(env)
	return nil
}

// parseRequest decodes the json argument, "-" reads it from stdin
func parseRequest(arg string) (common.Request, error) {
	data := []byte(arg)
	if arg == "-" {
		var buf bytes.Buffer
		if _, err := buf.ReadFrom(os.Stdin); err != nil {
			return nil, fmt.Errorf("failed to read request from stdin: %w", err)
		}
		data = buf.Bytes()
	}

	var req common.Request
	if err := json.Unmarshal(data, &req); err != nil {
		return nil, fmt.Errorf("request must be a JSON object: %w", err)
	}
	if req == nil {
		return nil, fmt.Errorf("request must be a JSON object")
	}
	return req, nil
}

// printEnvelope prints the status line and the payload of a reply
func printEnvelope(env *common.Envelope) {
	if env == nil {
		return
	}
	fmt.Printf("status %d (request #%d)\n", env.Status, env.RequestID)
	if len(env.Payload) == 0 {
		return
	}

	if viper.GetBool("raw") {
		fmt.Println(string(env.Payload))
		return
	}
	var out bytes.Buffer
	if err := json.Indent(&out, env.Payload, "", "  "); err != nil {
		fmt.Println(string(env.Payload))
		return
	}
	fmt.Println(out.String())
}
