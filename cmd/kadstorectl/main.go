// Command kadstorectl is a thin command-line client over a running
// node's transport endpoint: put/get/delete/findnode/exit. Grounded on
// adityasissodiya-d7024e/labs/kademlia/cli.go's RunLine command dispatch,
// adapted from an in-process Kademlia handle to a remote gRPC dial.
package main

import (
	"bufio"
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/artifactmesh/kadstore/blueprint"
	grpctransport "github.com/artifactmesh/kadstore/transport/grpc"
	"github.com/artifactmesh/kadstore/wire"
)

// CLI is a thin command layer over a node's transport endpoint. It does
// not own the node's lifecycle; it only issues wire requests to it.
type CLI struct {
	client *grpctransport.Client
	addr   string
	out    io.Writer
}

// NewCLI constructs a CLI that dials addr for every command.
func NewCLI(client *grpctransport.Client, addr string, out io.Writer) *CLI {
	return &CLI{client: client, addr: addr, out: out}
}

// RunLine executes a single command line: "put <hex-key> <value>",
// "get <hex-key>", "delete <hex-key>", or "findnode <hex-key>".
func (cli *CLI) RunLine(ctx context.Context, line string) error {
	line = strings.TrimSpace(line)
	if line == "" {
		return nil
	}
	cmd, arg := splitOnce(line)
	switch strings.ToLower(cmd) {
	case "put":
		keyHex, value := splitOnce(arg)
		key, err := blueprint.KeyFromHex(keyHex)
		if err != nil {
			fmt.Fprintln(cli.out, "ERR invalid key")
			return err
		}
		envelope, err := json.Marshal(blueprint.Envelope{Payload: []byte(value), Timestamp: time.Now()})
		if err != nil {
			return err
		}
		resp, err := cli.exchange(ctx, wire.Store, wire.Payload{Key: key.String(), Value: envelope})
		if err != nil {
			fmt.Fprintln(cli.out, "ERR", err)
			return err
		}
		fmt.Fprintln(cli.out, "OK", resp.Payload.ID)
		return nil

	case "get":
		key, err := blueprint.KeyFromHex(strings.TrimSpace(arg))
		if err != nil {
			fmt.Fprintln(cli.out, "ERR invalid key")
			return err
		}
		resp, err := cli.exchange(ctx, wire.FindValue, wire.Payload{Key: key.String()})
		if err != nil || len(resp.Payload.Value) == 0 {
			fmt.Fprintln(cli.out, "NOTFOUND")
			return err
		}
		var envelope blueprint.Envelope
		if err := json.Unmarshal(resp.Payload.Value, &envelope); err != nil {
			fmt.Fprintln(cli.out, "ERR", err)
			return err
		}
		if envelope.Payload == nil {
			fmt.Fprintln(cli.out, "NOTFOUND")
			return nil
		}
		fmt.Fprintln(cli.out, string(envelope.Payload))
		return nil

	case "delete":
		key, err := blueprint.KeyFromHex(strings.TrimSpace(arg))
		if err != nil {
			fmt.Fprintln(cli.out, "ERR invalid key")
			return err
		}
		envelope, err := json.Marshal(blueprint.Envelope{Timestamp: time.Now()})
		if err != nil {
			return err
		}
		if _, err := cli.exchange(ctx, wire.Delete, wire.Payload{Key: key.String(), Value: envelope}); err != nil {
			fmt.Fprintln(cli.out, "ERR", err)
			return err
		}
		fmt.Fprintln(cli.out, "OK")
		return nil

	case "findnode":
		key, err := blueprint.KeyFromHex(strings.TrimSpace(arg))
		if err != nil {
			fmt.Fprintln(cli.out, "ERR invalid key")
			return err
		}
		resp, err := cli.exchange(ctx, wire.FindNode, wire.Payload{Key: key.String()})
		if err != nil {
			fmt.Fprintln(cli.out, "ERR", err)
			return err
		}
		fmt.Fprintln(cli.out, string(resp.Payload.Data))
		return nil

	case "exit":
		return io.EOF

	default:
		fmt.Fprintln(cli.out, "ERR unknown command")
		return errors.New("kadstorectl: unknown command " + cmd)
	}
}

func (cli *CLI) exchange(ctx context.Context, dt wire.DHTType, payload wire.Payload) (wire.Message, error) {
	payload.Sender = "kadstorectl"
	payload.Timestamp = time.Now()
	payload.ID = hex.EncodeToString([]byte(fmt.Sprintf("%d", time.Now().UnixNano())))
	req := wire.NewRequest(dt, payload)
	b, err := wire.Marshal(req)
	if err != nil {
		return wire.Message{}, err
	}
	respBytes, err := cli.client.Send(ctx, cli.addr, b)
	if err != nil {
		return wire.Message{}, err
	}
	return wire.Unmarshal(respBytes)
}

// Run starts a simple REPL on in until EOF or "exit".
func (cli *CLI) Run(ctx context.Context, in io.Reader) error {
	scanner := bufio.NewScanner(in)
	for scanner.Scan() {
		if err := cli.RunLine(ctx, scanner.Text()); errors.Is(err, io.EOF) {
			return nil
		}
	}
	return scanner.Err()
}

func splitOnce(s string) (string, string) {
	s = strings.TrimSpace(s)
	i := strings.IndexAny(s, " \t")
	if i < 0 {
		return s, ""
	}
	return s[:i], strings.TrimSpace(s[i+1:])
}

func main() {
	addr := flag.String("addr", "127.0.0.1:4001", "node transport address")
	flag.Parse()

	client := grpctransport.NewClient()
	defer client.Close()

	cli := NewCLI(client, *addr, os.Stdout)
	if err := cli.Run(context.Background(), os.Stdin); err != nil {
		fmt.Fprintln(os.Stderr, "kadstorectl:", err)
		os.Exit(1)
	}
}
