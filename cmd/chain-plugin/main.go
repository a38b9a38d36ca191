// Command chain-plugin relays a SeedLink client's received miniSEED
// records to a Unix FIFO, one record per write(2), for consumption by
// a downstream chain of plugins (spec.md §6, SPEC_FULL §10.4).
package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/damb/slink/pkg/client"
	"github.com/damb/slink/pkg/v3"
)

const defaultFifoPath = "/var/tmp/slink/plugin.fifo"

func main() {
	var fifoPath string
	flag.StringVar(&fifoPath, "o", defaultFifoPath, "FIFO (named pipe) `path` SeedLink records are written to")
	flag.StringVar(&fifoPath, "fifo", defaultFifoPath, "FIFO (named pipe) `path` SeedLink records are written to")

	var streamsArg string
	flag.StringVar(&streamsArg, "S", "", "comma-separated `STREAMS` list, e.g. 'IU_KONO:BHE BHN,GE_WLF'")
	flag.StringVar(&streamsArg, "streams", "", "comma-separated `STREAMS` list, e.g. 'IU_KONO:BHE BHN,GE_WLF'")

	var batch bool
	flag.BoolVar(&batch, "b", false, "enable pipelining by batching commands")
	flag.BoolVar(&batch, "batch", false, "enable pipelining by batching commands")

	var daemonize bool
	flag.BoolVar(&daemonize, "D", false, "run as daemon")
	flag.BoolVar(&daemonize, "daemonize", false, "run as daemon")

	flag.Parse()

	if !filepath.IsAbs(fifoPath) {
		fmt.Fprintf(os.Stderr, "invalid FIFO path %q: must be absolute\n", fifoPath)
		os.Exit(1)
	}
	args := flag.Args()
	if len(args) != 1 {
		fmt.Fprintln(os.Stderr, "usage: chain-plugin [flags] URL")
		os.Exit(1)
	}
	url := args[0]

	if daemonize {
		// Actual process daemonization (fork + detach from the
		// controlling terminal) is an external collaborator concern
		// (spec.md §1); the flag is accepted for CLI contract
		// compatibility and routes logging to a file instead.
		logFile, err := os.OpenFile("/tmp/chain-plugin.log", os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
		if err != nil {
			log.Fatalf("opening daemon log file: %v", err)
		}
		log.SetOutput(logFile)
	}

	conn, err := client.Dial(url, client.DialOptions{Timeout: 2 * time.Second})
	if err != nil {
		log.Fatalf("failed to connect to %s: %v", url, err)
	}

	var configs []v3.StationConfig
	if streamsArg != "" {
		configs, err = parseStreams(streamsArg)
		if err != nil {
			log.Fatalf("invalid -S/--streams argument: %v", err)
		}
	}
	if err := conn.Session().Configure(v3.ConfigureOptions{Streams: configs, Mode: v3.RealTime, Batch: batch}); err != nil {
		log.Fatalf("configuring streams: %v", err)
	}

	if err := ensureFifo(fifoPath); err != nil {
		log.Fatalf("preparing FIFO %s: %v", fifoPath, err)
	}
	tx, err := os.OpenFile(fifoPath, os.O_WRONLY, 0)
	if err != nil {
		log.Fatalf("opening FIFO %s: %v", fifoPath, err)
	}
	defer tx.Close()

	stream := conn.NewPacketStream(0)
	for {
		ev, ok, err := stream.Next()
		if err != nil {
			log.Fatalf("stream error: %v", err)
		}
		if !ok {
			break
		}
		if ev.Kind != client.EventGenericData {
			continue
		}
		seq, _ := ev.Data.Sequence()
		log.Debugf("received packet: seq %d", seq)
		if _, err := tx.Write(ev.Data.Record()); err != nil {
			log.Fatalf("writing to FIFO: %v", err)
		}
	}
}

// ensureFifo creates fifoPath with mode 0700 if it does not yet exist,
// creating its parent directory as needed. An existing path is left
// untouched (never truncated) provided it already is a FIFO.
func ensureFifo(fifoPath string) error {
	if dir := filepath.Dir(fifoPath); dir != "." {
		if err := os.MkdirAll(dir, 0700); err != nil {
			return err
		}
	}
	info, err := os.Stat(fifoPath)
	if err == nil {
		if info.Mode()&os.ModeNamedPipe == 0 {
			return fmt.Errorf("existing path has incompatible file type: %s", fifoPath)
		}
		return nil
	}
	if !os.IsNotExist(err) {
		return err
	}
	return syscall.Mkfifo(fifoPath, 0700)
}

// parseStreams parses a comma-separated NET_STA[:SEL SEL ...] list, as
// accepted by the -S/--streams flag.
func parseStreams(arg string) ([]v3.StationConfig, error) {
	var configs []v3.StationConfig
	for _, tok := range strings.Split(arg, ",") {
		netSta, selStr, hasSel := strings.Cut(tok, ":")
		net, sta, ok := strings.Cut(netSta, "_")
		if !ok {
			return nil, fmt.Errorf("invalid stream configuration %q: want NET_STA[:SEL ...]", tok)
		}
		cfg := v3.StationConfig{Net: net, Station: sta}
		if hasSel {
			cfg.Selectors = strings.Fields(selStr)
		}
		configs = append(configs, cfg)
	}
	return configs, nil
}
