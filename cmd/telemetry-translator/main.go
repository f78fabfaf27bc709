// Command telemetry-translator runs the BDCL/SCL-to-DCM translator: it
// subscribes to the inbound NATS subjects, runs every message through
// the TSD processor and translator registry, and forwards the results
// to the DCM websocket sink pool and the history sink. Bootstrap is
// flag parsing, config.Init, then a WaitGroup/signal-channel shutdown.
package main

import (
	"flag"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/indoorassets/telemetry-translator/internal/bus"
	"github.com/indoorassets/telemetry-translator/internal/config"
	"github.com/indoorassets/telemetry-translator/internal/core"
	"github.com/indoorassets/telemetry-translator/internal/decode"
	"github.com/indoorassets/telemetry-translator/internal/decode/ble"
	"github.com/indoorassets/telemetry-translator/internal/history"
	"github.com/indoorassets/telemetry-translator/internal/metrics"
	"github.com/indoorassets/telemetry-translator/internal/sink"
	"github.com/indoorassets/telemetry-translator/pkg/log"
	"github.com/nats-io/nats.go"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/fsnotify/fsnotify"
)

func main() {
	var flagConfigFile string
	var flagLogDate bool
	flag.StringVar(&flagConfigFile, "config", "./config.json", "Path to the process configuration file")
	flag.BoolVar(&flagLogDate, "logdate", false, "Prefix log lines with a timestamp (off by default; assumes systemd journal timestamps)")
	flag.Parse()

	log.SetLogDateTime(flagLogDate)
	config.Init(flagConfigFile)
	log.SetLevel(config.Keys.LogLevel)

	rtls := ble.NewRangeResolver()
	watchBLEConfig(rtls)

	c := core.NewCore(core.WithSkipLogger(func(id core.CompoundID, measTime int64) {
		log.Warnf("[CORE] device %d field %q: measurement %d rejected as too new", id.Device, id.Field, measTime)
		metrics.SamplesSkipped.WithLabelValues("too-new").Inc()
	}))
	factory := decode.NewFactory(c.TSD, c.TickInterp, rtls)
	c.SetRegistryResolver(factory.For)

	sinkPool := sink.NewPool(config.Keys.DCM.BaseURL, config.Keys.DCM.OutboundQueueLimit, config.Keys.DCM.ReconnectDuration())
	if err := sinkPool.Start(); err != nil {
		log.Fatalf("[SINK] %v", err)
	}

	var historySink *history.Sink

	b, err := bus.Connect(config.Keys.Nats.Address, c.Process, routedSink{sinkPool, func(chunks []core.FieldChunk) {
		if historySink != nil {
			historySink.Publish(chunks)
		}
	}}, natsOptions()...)
	if err != nil {
		log.Fatalf("[BUS] %v", err)
	}

	if config.Keys.History.Subject != "" {
		historySink = history.NewSink(b.Connection(), config.Keys.History.Subject, config.Keys.History.Database)
	}

	if err := b.Subscribe(config.Keys.Nats.BDCLSubject, config.Keys.Nats.SCLSubject); err != nil {
		log.Fatalf("[BUS] %v", err)
	}

	scheduler := startMaintenance(c, rtls)

	go func() {
		log.Infof("[CORE] metrics listening at %s", config.Keys.MetricsListenAddr)
		http.Handle("/metrics", promhttp.Handler())
		if err := http.ListenAndServe(config.Keys.MetricsListenAddr, nil); err != nil {
			log.Warnf("[CORE] metrics server: %v", err)
		}
	}()

	var wg sync.WaitGroup
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	wg.Add(1)
	go func() {
		defer wg.Done()
		<-sigs
		log.Infof("[CORE] shutting down")
		_ = scheduler.Shutdown()
		b.Close()
		sinkPool.Close()
	}()

	log.Infof("[CORE] running")
	wg.Wait()
	log.Infof("[CORE] shutdown complete")
}

func natsOptions() []nats.Option {
	var opts []nats.Option
	if config.Keys.Nats.Username != "" && config.Keys.Nats.Password != "" {
		opts = append(opts, nats.UserInfo(config.Keys.Nats.Username, config.Keys.Nats.Password))
	}
	if config.Keys.Nats.CredsFilePath != "" {
		opts = append(opts, nats.UserCredentials(config.Keys.Nats.CredsFilePath))
	}
	return opts
}

// routedSink adapts the DCM sink pool (patches) and the history sink
// (chunks) to the single bus.Sink interface bus.Bus expects.
type routedSink struct {
	patches *sink.Pool
	history func(chunks []core.FieldChunk)
}

func (r routedSink) AcceptPatches(patches []core.Patch)     { r.patches.AcceptPatches(patches) }
func (r routedSink) AcceptHistory(chunks []core.FieldChunk) { r.history(chunks) }

// startMaintenance schedules background jobs: a periodic dedup sweep
// belt-and-braces on top of the per-message check, and a BLE-RTLS
// config re-read every 5 s as a poll fallback alongside the fsnotify
// watch.
func startMaintenance(c *core.Core, rtls *ble.RangeResolver) gocron.Scheduler {
	s, err := gocron.NewScheduler()
	if err != nil {
		log.Fatalf("[CORE] creating scheduler: %v", err)
	}

	_, err = s.NewJob(gocron.DurationJob(core.DedupCleanupInterval),
		gocron.NewTask(func() {
			n := c.SweepDedupNow(time.Now())
			if n > 0 {
				log.Debugf("[CORE] dedup sweep removed %d stale entries", n)
			}
			metrics.DedupWindowSize.Set(float64(c.Dedup.Len()))
		}))
	if err != nil {
		log.Fatalf("[CORE] scheduling dedup sweep: %v", err)
	}

	_, err = s.NewJob(gocron.DurationJob(config.Keys.BLERTLS.RereadDuration()),
		gocron.NewTask(func() {
			reloadBLEConfig(rtls)
		}))
	if err != nil {
		log.Fatalf("[CORE] scheduling BLE config poll: %v", err)
	}

	s.Start()
	return s
}

// watchBLEConfig installs an fsnotify watch on the BLE-RTLS config
// file so edits are picked up immediately, in addition to the gocron
// poll fallback started by startMaintenance (the file may not exist
// yet, or may live on a filesystem fsnotify cannot watch).
func watchBLEConfig(rtls *ble.RangeResolver) {
	reloadBLEConfig(rtls)

	w, err := fsnotify.NewWatcher()
	if err != nil {
		log.Warnf("[BLE] creating config watcher: %v", err)
		return
	}
	if err := w.Add(config.Keys.BLERTLS.ConfigPath); err != nil {
		log.Debugf("[BLE] watching %s: %v (relying on poll fallback)", config.Keys.BLERTLS.ConfigPath, err)
		return
	}

	go func() {
		for {
			select {
			case ev, ok := <-w.Events:
				if !ok {
					return
				}
				log.Debugf("[BLE] config event %s", ev)
				reloadBLEConfig(rtls)
			case err, ok := <-w.Errors:
				if !ok {
					return
				}
				log.Warnf("[BLE] config watcher: %v", err)
			}
		}
	}()
}

func reloadBLEConfig(rtls *ble.RangeResolver) {
	raw, err := os.ReadFile(config.Keys.BLERTLS.ConfigPath)
	if err != nil {
		if !os.IsNotExist(err) {
			log.Warnf("[BLE] reading %s: %v", config.Keys.BLERTLS.ConfigPath, err)
		}
		return
	}
	if err := rtls.LoadConfigJSON(raw); err != nil {
		log.Warnf("[BLE] parsing %s: %v", config.Keys.BLERTLS.ConfigPath, err)
	}
}
