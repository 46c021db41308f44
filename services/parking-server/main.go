package main

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

const (
	serviceName     = "parking-server"
	connectTimeout  = 30 * time.Second
	shutdownTimeout = 10 * time.Second
)

func main() {
	// 1. Načtení konfigurace
	cfg, err := LoadConfig()
	if err != nil {
		slog.Error("Kritická chyba: Neplatná konfigurace", "error", err)
		os.Exit(1)
	}

	// 2. Logger: Stdout + MQTT (logs/parking-server).
	// Writer do MQTT jen bufferuje, klienta dostane až po připojení (krok 9).
	mqttWriter := NewMqttLogWriter(serviceName, 1024)
	logger := slog.New(slog.NewJSONHandler(io.MultiWriter(os.Stdout, mqttWriter), &slog.HandlerOptions{Level: cfg.LogLevel}))
	slog.SetDefault(logger)
	logger.Info("Startuji Parking Server", "port", cfg.HTTPPort, "store", cfg.StoreBackend)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 3. Metriky
	metrics := NewMetrics()

	// 4. Úložiště
	var store Store
	switch cfg.StoreBackend {
	case "memory":
		mem := NewMemoryStore()
		mem.SeedDemo()
		store = mem
		logger.Warn("Běžím s úložištěm v paměti, data se po restartu ztratí")
	default:
		pg, err := NewPostgresStore(ctx, cfg.PostgresURL)
		if err != nil {
			logger.Error("Kritická chyba: Nelze se připojit k DB", "error", err)
			os.Exit(1)
		}
		if err := pg.Migrate(ctx); err != nil {
			logger.Error("Kritická chyba: Migrace schématu selhala", "error", err)
			os.Exit(1)
		}
		store = pg
	}
	defer store.Close()

	// 5. Živá cache ve Valkey (volitelná, server běží i bez ní)
	var (
		live     LiveStateSink
		occCache OccupancyCache
	)
	if cfg.ValkeyAddr != "" {
		lc, err := NewLiveCache(ctx, cfg.ValkeyAddr)
		if err != nil {
			logger.Warn("Valkey nedostupný, obsazenost se bude číst z úložiště", "error", err)
		} else {
			defer lc.Close()
			live, occCache = lc, lc
		}
	}

	// 6. Číselník parkovišť. Musíme ho mít dřív, než začneme poslouchat MQTT.
	dir := NewDirectory(store, logger)
	if err := dir.Load(ctx); err != nil {
		logger.Error("Kritická chyba: Nepodařilo se načíst parkoviště", "error", err)
		os.Exit(1)
	}
	go dir.StartAutoRefresh(ctx, cfg.DirectoryRefresh)

	// 7. Broadcast Hub
	hub := NewHub(cfg.SubscriberQueueSize, logger, metrics)

	// 8. Ingest: Ingress + Dispatcher (jeden writer na parkoviště)
	ingress := NewIngress(IngressConfig{
		Store:        store,
		Directory:    dir,
		Hub:          hub,
		Live:         live,
		SpotTopic:    cfg.SpotStateTopic,
		LotTopic:     cfg.LotEventTopic,
		WriteTimeout: cfg.WriteTimeout,
		Logger:       logger,
		Metrics:      metrics,
	})
	dispatcher := NewDispatcher(cfg.IngestWorkers, cfg.IngestQueueSize, ingress.Handle, logger)
	dispatcher.Start(ctx)

	// 9. MQTT klient. Subscribe proběhne v OnConnect (i po každém reconnectu).
	client := mqtt.NewClient(BusOptions(cfg, dispatcher, logger, metrics))
	token := client.Connect()
	if !token.WaitTimeout(connectTimeout) || token.Error() != nil {
		logger.Error("Kritická chyba: Selhalo připojení k MQTT", "broker", cfg.MQTTBroker, "error", token.Error())
		os.Exit(1)
	}
	go mqttWriter.Run(ctx, client)

	// 10. Systémové metriky (gopsutil -> Prometheus)
	go NewSystemSampler(metrics, cfg.MonitorInterval, logger).Run(ctx)

	// 11. HTTP: snapshot API, SSE/WebSocket, health, metrics
	streams := NewStreamHandler(hub, dir, cfg.HeartbeatInterval, cfg.CORSOrigin, logger)
	api := NewAPIHandler(NewSnapshotService(store, occCache, logger), streams, metrics, logger)
	mux := http.NewServeMux()
	api.RegisterRoutes(mux)

	// WriteTimeout nenastavujeme: streamy jsou dlouhá spojení, zápisy hlídají vlastní deadline.
	server := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           CorsMiddleware(cfg.CORSOrigin, mux),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		logger.Info("HTTP server naslouchá", "address", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("Server spadl", "error", err)
			os.Exit(1)
		}
	}()

	// 12. Graceful Shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan
	logger.Info("Ukončuji službu...")

	// Nejdřív přestaneme přijímat zprávy, pak doběhnou rozpracované zápisy.
	client.Disconnect(250)
	dispatcher.Stop()

	// Odpojení odběratelů ukončí SSE/WS smyčky, Shutdown pak nečeká na streamy.
	hub.Close()
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP server se neukončil čistě", "error", err)
	}
	cancel()
}
