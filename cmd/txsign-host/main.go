// Command txsign-host is a demo driver for the signing core: it walks a fixture transaction
//   through a txsign.Dispatcher exactly as a real host would over the device link, and publishes
//   each stage transition to any connected websocket client for live observation. It is not part
//   of the signing core; a real integration replaces the fixture loader with the actual device
//   transport.
package main

import (
	"context"
	"encoding/json"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/tokenized/signcore/bitcoin"
	"github.com/tokenized/signcore/coin"
	"github.com/tokenized/signcore/confirm"
	"github.com/tokenized/signcore/logger"
	"github.com/tokenized/signcore/threads"
	"github.com/tokenized/signcore/txsign"
	"github.com/tokenized/signcore/txsign/proto"

	"github.com/gorilla/websocket"
	"github.com/kelseyhightower/envconfig"
)

var (
	buildVersion = "unknown"
	buildDate    = "unknown"
)

type config struct {
	Coin struct {
		Symbol      string `default:"BCH" envconfig:"COIN_SYMBOL"`
		StorageRoot string `default:"" envconfig:"COIN_STORAGE_ROOT"`
		Bucket      string `default:"" envconfig:"COIN_STORAGE_BUCKET"`
	}
	Host struct {
		MasterKey string `envconfig:"MASTER_KEY"`
		Listen    string `default:":8733" envconfig:"LISTEN"`
	}
	Fixture struct {
		Path string `default:"" envconfig:"FIXTURE_PATH"`
	}
}

func main() {
	logConfig := logger.NewDevelopmentConfig()
	ctx := logger.ContextWithLogConfig(context.Background(), logConfig)

	var cfg config
	if err := envconfig.Process("TXSIGN", &cfg); err != nil {
		logger.Fatal(ctx, "Parsing config : %s", err)
	}
	logger.Info(ctx, "Build %s (%s)", buildVersion, buildDate)

	coinStore, err := coin.NewStore(cfg.Coin.Bucket, cfg.Coin.StorageRoot)
	if err != nil {
		logger.Fatal(ctx, "Opening coin store : %s", err)
	}
	coinParams, err := coinStore.Get(ctx, cfg.Coin.Symbol)
	if err != nil {
		logger.Fatal(ctx, "Unknown coin %s : %s", cfg.Coin.Symbol, err)
	}

	root, err := loadMasterKey(cfg.Host.MasterKey)
	if err != nil {
		logger.Fatal(ctx, "Loading master key : %s", err)
	}

	hub := newStatusHub()
	mux := http.NewServeMux()
	mux.HandleFunc("/status", hub.serveWS)
	server := &http.Server{Addr: cfg.Host.Listen, Handler: mux}

	var wait sync.WaitGroup
	threadList := threads.Threads{
		threads.NewThreadWithoutStop("http", func(ctx context.Context) error {
			logger.Info(ctx, "Listening on %s", cfg.Host.Listen)
			if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				return err
			}
			return nil
		}),
	}
	for _, t := range threadList {
		t.SetWait(&wait)
	}
	threadList.Start(ctx)

	fixture, err := loadFixture(cfg.Fixture.Path)
	if err != nil {
		logger.Fatal(ctx, "Loading fixture : %s", err)
	}

	dispatcher := txsign.NewDispatcher(confirm.NewCLI())
	runFixture(ctx, dispatcher, fixture, coinParams, root, hub)

	signals := make(chan os.Signal, 1)
	signal.Notify(signals, os.Interrupt, syscall.SIGTERM)
	<-signals

	logger.Info(ctx, "Shutting down")
	server.Shutdown(ctx)
	threadList.Stop(ctx)
	wait.Wait()
}

func loadMasterKey(s string) (bitcoin.ExtendedKey, error) {
	if s == "" {
		return bitcoin.GenerateMasterExtendedKey()
	}
	return bitcoin.ExtendedKeyFromStr58(s)
}

// statusHub broadcasts stage-transition events to connected websocket clients, grounded on the
//   teacher's spv_channel.go websocket client (here run in reverse, as a server).
type statusHub struct {
	upgrader websocket.Upgrader
	mu       sync.Mutex
	conns    map[*websocket.Conn]bool
}

func newStatusHub() *statusHub {
	return &statusHub{conns: map[*websocket.Conn]bool{}}
}

func (h *statusHub) serveWS(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	h.mu.Lock()
	h.conns[conn] = true
	h.mu.Unlock()
}

func (h *statusHub) publish(event string, stage txsign.Stage) {
	msg, err := json.Marshal(struct {
		Event string `json:"event"`
		Stage string `json:"stage"`
	}{Event: event, Stage: stage.String()})
	if err != nil {
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for conn := range h.conns {
		if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
			conn.Close()
			delete(h.conns, conn)
		}
	}
}

// fixture is the in-memory stand-in for a real host's transaction data, loaded once and replayed
//   through the dispatcher step by step.
type fixture struct {
	Params txsign.InitParams
	Acks   []*proto.TxAck
}

func loadFixture(path string) (*fixture, error) {
	if path == "" {
		return nil, nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var raw struct {
		InputsCount  uint32         `json:"inputs_count"`
		OutputsCount uint32         `json:"outputs_count"`
		Version      int32          `json:"version"`
		LockTime     uint32         `json:"lock_time"`
		Acks         []*proto.TxAck `json:"acks"`
	}
	if err := json.NewDecoder(f).Decode(&raw); err != nil {
		return nil, err
	}

	return &fixture{
		Params: txsign.InitParams{
			InputsCount: raw.InputsCount, OutputsCount: raw.OutputsCount,
			Version: raw.Version, LockTime: raw.LockTime,
		},
		Acks: raw.Acks,
	}, nil
}

func runFixture(ctx context.Context, d *txsign.Dispatcher, f *fixture, c coin.Params,
	root bitcoin.ExtendedKey, hub *statusHub) {

	if f == nil {
		logger.Info(ctx, "No fixture configured; dispatcher idle")
		return
	}

	f.Params.Coin = c
	f.Params.Root = root

	req, err := d.Begin(ctx, f.Params)
	if err != nil {
		logger.Error(ctx, "Begin : %s", err)
		return
	}
	hub.publish("begin", txsign.StageRequestInput)

	for _, ack := range f.Acks {
		req, err = d.Step(ctx, ack)
		if err != nil {
			logger.Error(ctx, "Step : %s", err)
			return
		}
		if req.RequestType == proto.RequestTxFinished {
			hub.publish("finished", txsign.StageRequestInput)
			return
		}
		hub.publish("step", d.Stage())
	}
}
