// Command wfrelay runs the Whiteflag message-relay core: it loads a YAML
// deployment configuration, wires the blockchain adapters, datastores, and
// the tx/rx pipelines, and serves until interrupted. Structured the way the
// teacher's cmd/arcsign wires its services in main(), adapted from a
// one-shot wallet CLI to a long-running daemon.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/whiteflagprotocol/wfrelay/internal/blockchain"
	"github.com/whiteflagprotocol/wfrelay/internal/blockchain/btcadapter"
	"github.com/whiteflagprotocol/wfrelay/internal/blockchain/ethadapter"
	"github.com/whiteflagprotocol/wfrelay/internal/config"
	"github.com/whiteflagprotocol/wfrelay/internal/confirmation"
	"github.com/whiteflagprotocol/wfrelay/internal/datastore"
	"github.com/whiteflagprotocol/wfrelay/internal/datastore/filestore"
	"github.com/whiteflagprotocol/wfrelay/internal/datastore/mongostore"
	"github.com/whiteflagprotocol/wfrelay/internal/events"
	"github.com/whiteflagprotocol/wfrelay/internal/logging"
	"github.com/whiteflagprotocol/wfrelay/internal/message"
	"github.com/whiteflagprotocol/wfrelay/internal/metrics"
	"github.com/whiteflagprotocol/wfrelay/internal/ratelimit"
	"github.com/whiteflagprotocol/wfrelay/internal/reference"
	"github.com/whiteflagprotocol/wfrelay/internal/retrieval"
	"github.com/whiteflagprotocol/wfrelay/internal/rxpipeline"
	"github.com/whiteflagprotocol/wfrelay/internal/state"
	"github.com/whiteflagprotocol/wfrelay/internal/txpipeline"
	"github.com/whiteflagprotocol/wfrelay/internal/wfcrypto"
)

const version = "0.1.0"

func main() {
	configPath := flag.String("config", "wfrelay.yaml", "path to the deployment configuration file")
	flag.Parse()

	log := logging.NewStderr(logging.LevelInfo)
	log.Info("wfrelay starting", map[string]any{"version": version, "config": *configPath})

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Error("failed to load configuration", map[string]any{"error": err.Error()})
		os.Exit(1)
	}

	rt, err := wire(cfg, log)
	if err != nil {
		log.Error("failed to wire services", map[string]any{"error": err.Error()})
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if cfg.Confirmation.Enabled {
		go rt.Confirmation.Run(ctx)
	}

	log.Info("wfrelay ready", map[string]any{
		"blockchains": rt.Adapters.Names(),
	})

	<-ctx.Done()
	log.Info("wfrelay shutting down", nil)
	if err := rt.Store.CloseAll(context.Background()); err != nil {
		log.Error("error closing datastores", map[string]any{"error": err.Error()})
	}
}

// runtime bundles every wired component a caller (the signal loop above,
// or an embedding test) needs to drive the relay core.
type runtime struct {
	State        *state.State
	Adapters     *blockchain.Registry
	Store        *datastore.Registry
	Bus          *events.Bus
	TxPipeline   *txpipeline.Pipeline
	RxPipeline   *rxpipeline.Pipeline
	Retrieval    *retrieval.Retrieval
	Confirmation *confirmation.Tracker
	Metrics      metrics.RelayMetrics
}

func wire(cfg *config.Config, log *logging.Logger) (*runtime, error) {
	st := state.New()
	bus := events.New()
	adapters := blockchain.NewRegistry()
	store := datastore.NewRegistry(log)
	metricsRecorder := metrics.NewPrometheusMetrics()

	for _, bc := range cfg.Blockchains {
		st.UpsertBlockchain(bc.Name, bc.Active)
		if !bc.Active {
			continue
		}
		adapter, err := buildAdapter(bc, metricsRecorder)
		if err != nil {
			return nil, fmt.Errorf("blockchain %q: %w", bc.Name, err)
		}
		adapters.Register(bc.Name, adapter, bc.Active)
	}

	for _, ds := range cfg.Datastores {
		if !ds.Active {
			continue
		}
		s, err := buildStore(ds)
		if err != nil {
			return nil, fmt.Errorf("datastore %q: %w", ds.Name, err)
		}
		if err := s.Init(context.Background()); err != nil {
			return nil, fmt.Errorf("datastore %q: init: %w", ds.Name, err)
		}
		store.Register(s, ds.Primary)
		store.SubscribeMirror(bus, s)
	}

	policy := reference.DefaultPolicy()
	lookup := datastoreLookup(store)

	tx := &txpipeline.Pipeline{
		Config: txpipeline.Config{
			ReferenceCheckEnabled: cfg.Protocol.TxVerifyReference,
			TestOnly:              cfg.Protocol.TxTestMessagesOnly,
		},
		Policy:    policy,
		Lookup:    lookup,
		Keys:      st.Keys(),
		Encrypt:   wfcrypto.Encrypt,
		Adapters:  adapters,
		SendState: blockchain.NewMemorySendStateStore(),
		Bus:       bus,
		Log:       log,
		Metrics:   metricsRecorder,
	}

	rx := &rxpipeline.Pipeline{
		Config: rxpipeline.Config{
			ReferenceCheckEnabled: cfg.Protocol.RxVerifyReference,
			AuthCheckEnabled:      cfg.Protocol.RxVerifyOriginator,
			MaxKeySearchAttempts:  rxpipeline.DefaultMaxKeySearchAttempts,
			KeySearchWindow:       rxpipeline.DefaultKeySearchWindow,
		},
		Keys:    st.Keys(),
		Decrypt: wfcrypto.Decrypt,
		Limiter: ratelimit.New(rxpipeline.DefaultMaxKeySearchAttempts, rxpipeline.DefaultKeySearchWindow),
		Policy:  policy,
		Lookup:  lookup,
		Bus:     bus,
		Log:     log,
		Metrics: metricsRecorder,
	}

	retr := &retrieval.Retrieval{Store: store, Adapters: adapters, Bus: bus}

	tracker := &confirmation.Tracker{
		Interval:          cfg.Confirmation.Interval,
		ConfirmBlockDepth: cfg.Confirmation.MaxBlockDepth,
		UpdateEachBlock:   cfg.Confirmation.UpdateEachBlock,
		State:             st,
		Store:             store,
		Adapters:          adapters,
		Bus:               bus,
		Log:               log,
	}
	tracker.Subscribe()

	return &runtime{
		State: st, Adapters: adapters, Store: store, Bus: bus,
		TxPipeline: tx, RxPipeline: rx, Retrieval: retr, Confirmation: tracker,
		Metrics: metricsRecorder,
	}, nil
}

func datastoreLookup(store *datastore.Registry) reference.Lookup {
	return func(blockchainName, hash string) (*message.Message, error) {
		primary, err := store.Primary()
		if err != nil {
			return nil, err
		}
		found, err := primary.GetMessages(context.Background(), datastore.MessageFilter{
			TransactionHash: hash, Blockchain: blockchainName,
		})
		if err != nil {
			return nil, err
		}
		if len(found) == 0 {
			return nil, nil
		}
		return found[0], nil
	}
}

func buildAdapter(bc config.BlockchainConfig, metricsRecorder metrics.RelayMetrics) (blockchain.Adapter, error) {
	rpcURL := fmt.Sprintf("%s://%s:%d%s", bc.RPC.Protocol, bc.RPC.Host, bc.RPC.Port, bc.RPC.Path)

	switch bc.Module {
	case "ethereum":
		ctx, cancel := context.WithTimeout(context.Background(), dialTimeout(bc.RPC.Timeout))
		defer cancel()
		adapter, err := ethadapter.New(ctx, bc.Name, rpcURL)
		if err != nil {
			return nil, err
		}
		adapter.Metrics = metricsRecorder
		return adapter, nil
	case "bitcoin":
		network := "mainnet"
		if bc.Testnet {
			network = "testnet3"
		}
		adapter, err := btcadapter.New(bc.Name, rpcURL, bc.Username, bc.Password, network)
		if err != nil {
			return nil, err
		}
		adapter.Metrics = metricsRecorder
		return adapter, nil
	default:
		return nil, fmt.Errorf("unrecognised blockchain module %q", bc.Module)
	}
}

func dialTimeout(configured time.Duration) time.Duration {
	if configured <= 0 {
		return 10 * time.Second
	}
	return configured
}

func buildStore(ds config.DatastoreConfig) (datastore.Store, error) {
	switch ds.Module {
	case "file":
		return filestore.New(ds.Name, ds.Directory), nil
	case "mongodb":
		uri := fmt.Sprintf("%s://%s:%d", orDefault(ds.DBProtocol, "mongodb"), ds.DBHost, ds.DBPort)
		return mongostore.New(ds.Name, uri, ds.Database), nil
	default:
		return nil, fmt.Errorf("unrecognised datastore module %q", ds.Module)
	}
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}
