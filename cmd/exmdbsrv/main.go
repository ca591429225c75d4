// Command exmdbsrv is the exmdb RPC server entry point: it loads
// configuration, opens the reference sqlite store, optionally wires an
// LDAP resource pool and a Prometheus metrics endpoint, and serves
// rop.Gateway over gob-encoded net/rpc connections.
//
// Grounded on cmd/spilld/main.go: flag parsing into a hostname-aware
// config, listener setup, a Logf func field threaded through every
// component instead of a logging library, and signal-driven graceful
// shutdown.
package main

import (
	"context"
	"log"
	"net"
	"net/rpc"
	"os"
	"os/signal"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/obsidiangroup/gromox-sub002/exmdb/ldappool"
	"github.com/obsidiangroup/gromox-sub002/exmdb/sqlitestore"
	"github.com/obsidiangroup/gromox-sub002/internal/auditlog"
	"github.com/obsidiangroup/gromox-sub002/internal/config"
	"github.com/obsidiangroup/gromox-sub002/internal/metrics"
	"github.com/obsidiangroup/gromox-sub002/logon"
	"github.com/obsidiangroup/gromox-sub002/rop"
)

var version = "unknown" // filled in by "-ldflags=-X main.version=<val>"

func main() {
	log.SetFlags(0)

	f := config.ParseFlags()
	cfg, err := config.LoadWithFlags(f)
	if err != nil {
		log.Fatalf("exmdbsrv: config: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("exmdbsrv: invalid config: %v", err)
	}

	log.Printf("exmdbsrv, version %s, starting at %s", version, time.Now())

	store := sqlitestore.Open(cfg.StoreRoot)
	defer store.Close()

	var pool *ldappool.Pool
	if len(cfg.LDAP.Addresses) > 0 {
		pool = ldappool.New(ldappool.Config{
			URL:      cfg.LDAP.Addresses[0],
			BindDN:   cfg.LDAP.BindDN,
			BindPass: cfg.LDAP.BindPass,
		}, cfg.LDAP.PoolSize)
		defer pool.Clear()
	}

	var collector metrics.Collector = metrics.NoopCollector{}
	if cfg.Metrics.Enabled {
		prom := metrics.NewPrometheusCollector(prometheus.DefaultRegisterer)
		collector = prom
		metricsServer := &metrics.HTTPServer{Addr: cfg.Metrics.Address, Path: cfg.Metrics.Path}
		go func() {
			if err := metricsServer.Start(context.Background()); err != nil {
				log.Printf("exmdbsrv: metrics server: %v", err)
			}
		}()
	}

	audit := &auditlog.Logger{Logf: log.Printf}

	ln, err := net.Listen("tcp", cfg.Listen)
	if err != nil {
		log.Fatalf("exmdbsrv: listen %s: %v", cfg.Listen, err)
	}
	log.Printf("exmdbsrv: listening on %s", ln.Addr())

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		interrupt := make(chan os.Signal, 1)
		signal.Notify(interrupt, os.Interrupt)
		<-interrupt
		cancel()
	}()

	go acceptLoop(ctx, ln, store, collector, audit)

	<-ctx.Done()
	log.Printf("exmdbsrv: shutting down")
	ln.Close()
}

// acceptLoop accepts one connection per inbound logon session: each
// connection is handed a fresh rop.Session (and handle.Map) wrapped in
// a dedicated net/rpc.Server, so sessions never share handle tables
// (spec.md §5 "handle-map operations are serialized" per session, not
// globally).
func acceptLoop(ctx context.Context, ln net.Listener, store *sqlitestore.Store, collector metrics.Collector, audit *auditlog.Logger) {
	for {
		conn, err := ln.Accept()
		if err != nil {
			select {
			case <-ctx.Done():
				return
			default:
				log.Printf("exmdbsrv: accept: %v", err)
				continue
			}
		}
		collector.SessionOpened()
		go serveConn(conn, store, collector, audit)
	}
}

func serveConn(conn net.Conn, store *sqlitestore.Store, collector metrics.Collector, audit *auditlog.Logger) {
	defer conn.Close()
	defer collector.SessionClosed()

	// TODO: negotiate the logon (principal, dir, owner/kind) from the
	// client's first frame instead of a placeholder private logon;
	// exmdbsrv's wire handshake is intentionally out of this pass.
	lg := logon.New(logon.Private, "placeholder", true, 0, conn.RemoteAddr().String(), uuid.New())
	session := rop.NewSession(lg, store, nil)

	srv := rpc.NewServer()
	if err := srv.RegisterName("exmdb", &rop.Gateway{Session: session}); err != nil {
		log.Printf("exmdbsrv: register: %v", err)
		return
	}
	audit.Verb("exmdbsrv.Connect", "Success", time.Now(), nil, map[string]interface{}{"remote": conn.RemoteAddr().String()})
	srv.ServeConn(conn)
}
