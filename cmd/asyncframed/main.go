// Command asyncframed bootstraps one process's Manager, selector pools,
// IPC talker, and FileManager from a config file, mirroring the
// teacher's cmd/ layout (one small main per deployable binary) but with
// urfave/cli/v2 driving flag parsing instead of the teacher's own v1
// wrapper.
package main

import (
	"fmt"
	"net"
	"net/http"
	"os"
	"time"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	awss3 "github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/urfave/cli/v2"

	"github.com/nabbar-internal/asyncframe/internal/alog"
	"github.com/nabbar-internal/asyncframe/internal/ametrics"
	"github.com/nabbar-internal/asyncframe/internal/codec"
	"github.com/nabbar-internal/asyncframe/internal/config"
	"github.com/nabbar-internal/asyncframe/internal/dispatch"
	"github.com/nabbar-internal/asyncframe/internal/executer"
	"github.com/nabbar-internal/asyncframe/internal/filemgr"
	"github.com/nabbar-internal/asyncframe/internal/filemgr/backend/localfs"
	"github.com/nabbar-internal/asyncframe/internal/filemgr/backend/s3"
	"github.com/nabbar-internal/asyncframe/internal/filemgr/index"
	"github.com/nabbar-internal/asyncframe/internal/handle"
	"github.com/nabbar-internal/asyncframe/internal/ipc"
	"github.com/nabbar-internal/asyncframe/internal/manager"
	"github.com/nabbar-internal/asyncframe/internal/object"
	"github.com/nabbar-internal/asyncframe/internal/selector"
	"github.com/nabbar-internal/asyncframe/internal/selector/objsel"
	"github.com/nabbar-internal/asyncframe/internal/service"
)

func main() {
	app := &cli.App{
		Name:  "asyncframed",
		Usage: "run an asyncframe process: services, IPC talker, and file manager",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "config", Aliases: []string{"c"}, Usage: "path to config file"},
			&cli.IntFlag{Name: "metrics-port", Value: 9090, Usage: "prometheus /metrics listen port"},
		},
		Action: run,
	}
	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(c *cli.Context) error {
	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return err
	}

	log := alog.New(cfg.Log.Dir, "asyncframed")
	log.SetAlsoStderr(cfg.Log.AlsoStderr)
	defer log.Flush()
	rootLog = log

	reg := prometheus.NewRegistry()
	metrics := ametrics.New(reg)
	go serveMetrics(c.Int("metrics-port"), reg, log)

	m := manager.New(handle.Default)
	manager.PrepareGoroutine(m)
	defer manager.UnprepareGoroutine()

	// One service hosting one demo object, driven by one object-selector
	// worker: enough to exercise Insert/Signal/Lookup/Stop end to end
	// alongside the IPC and file-manager wiring below.
	svc := service.New(0, handle.Default, 1)
	m.AddService(svc)
	pool := selector.NewPool(1, 64, objsel.New)
	m.AddPool(0, pool)

	worker := &rootWorker{}
	root := object.New(worker)
	if _, err := svc.Insert(root); err != nil {
		return fmt.Errorf("asyncframed: insert root object: %w", err)
	}
	if !pool.Push(root) {
		return fmt.Errorf("asyncframed: root object selector pool full")
	}

	ex := executer.New(worker)
	worker.ex = ex

	addr := &net.UDPAddr{Port: int(cfg.IPC.BasePort)}
	conn, err := net.ListenUDP("udp", addr)
	if err != nil {
		return fmt.Errorf("asyncframed: listen udp: %w", err)
	}
	defer conn.Close()

	var policy ipc.ConnectPolicy
	if cfg.IPC.JWTSecret != "" {
		policy = ipc.NewHMACPolicy([]byte(cfg.IPC.JWTSecret), cfg.IPC.JWTIssuer, time.Minute)
	}
	talker := ipc.NewTalker(conn, cfg.IPC.BasePort, policy).WithMetrics(metrics)

	disp := &dispatch.Dispatcher{Registry: codec.DefaultRegistry, Manager: m, ConnectorID: uint64(cfg.IPC.BasePort)}
	talker.WithSink(disp.Sink)

	local, err := localfs.New(cfg.FileManager.LocalRoot, cfg.FileManager.LocalLRU)
	if err != nil {
		return fmt.Errorf("asyncframed: localfs backend: %w", err)
	}
	idx, err := index.Open(cfg.FileManager.IndexPath)
	if err != nil {
		return fmt.Errorf("asyncframed: file index: %w", err)
	}
	defer idx.Close()

	fm := filemgr.New(local, executer.FileNotifier{Executer: ex}).WithMetrics(metrics)

	if cfg.FileManager.S3Bucket != "" {
		awsCfg, err := awsconfig.LoadDefaultConfig(c.Context)
		if err != nil {
			return fmt.Errorf("asyncframed: load aws config: %w", err)
		}
		fm.RegisterScheme("s3", s3.New(cfg.FileManager.S3Bucket, awss3.NewFromConfig(awsCfg)))
	}

	log.Infof("asyncframed listening: ipc base port %d", cfg.IPC.BasePort)

	ticker := time.NewTicker(50 * time.Millisecond)
	defer ticker.Stop()
	for now := range ticker.C {
		talker.Tick(now)
	}
	pool.Stop()
	svc.Stop(true)
	return nil
}

func serveMetrics(port int, reg *prometheus.Registry, log *alog.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	addr := fmt.Sprintf(":%d", port)
	log.Infof("metrics listening on %s", addr)
	if err := http.ListenAndServe(addr, mux); err != nil {
		log.Errorf("metrics server: %v", err)
	}
}
