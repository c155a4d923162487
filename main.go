package main

import (
	"context"
	"log"
	"log/slog"
	"os"
	"strings"
	"time"

	"benemax/bus"
	"benemax/config"
	"benemax/connection"
	"benemax/controllers"
	"benemax/db"
	"benemax/delivery"
	"benemax/dispatch"
	"benemax/observe"
	"benemax/router"
	"benemax/transport"
	"benemax/workers"

	"github.com/gin-gonic/gin"
)

func main() {
	configPath := getenv("CONFIG_PATH", "config.json")
	cfg := config.Get(configPath)

	db.SetConfigurations(cfg)
	database, err := db.Connect()
	if err != nil {
		log.Fatal(err)
	}
	defer database.Close()

	sink := observe.NewSlogSink(slog.Default())

	var publisher bus.Publisher = bus.NoOp{}
	if cfg.Amqp.URL != "" {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
		publisher, err = bus.New(ctx, bus.ConnectionOptions{
			URL:      cfg.Amqp.URL,
			Exchange: cfg.Amqp.Exchange,
		})
		cancel()
		if err != nil {
			log.Fatal(err)
		}
		defer publisher.Close()
	}

	webhooks := delivery.NewService(delivery.ServiceOptions{
		DB:              database,
		Bus:             publisher,
		Sink:            sink,
		DefaultAttempts: cfg.Delivery.DefaultAttempts,
		DefaultDelayMs:  cfg.Delivery.DefaultRetryDelayMs,
	})

	tr := buildTransport()

	registry := connection.NewRegistry(connection.RegistryOptions{
		DB:         database,
		Transport:  tr,
		Notifier:   webhooks,
		Sink:       sink,
		PairingTTL: time.Duration(cfg.Connection.PairingTTLSeconds) * time.Second,
	})
	if err := registry.Restore(); err != nil {
		log.Fatal(err)
	}

	dispatcher := dispatch.NewDispatcher(dispatch.DispatcherOptions{
		DB:        database,
		Registry:  registry,
		Transport: tr,
		Triggers:  dispatch.StaticTriggerStore{},
		Notifier:  webhooks,
		Sink:      sink,
	})

	worker := workers.NewDeliveryWorker(workers.WorkerOptions{
		DB:     database,
		Poster: workers.NewHTTPPoster(time.Duration(cfg.Delivery.HttpTimeoutMs) * time.Millisecond),
		Sink:   sink,
		Bus:    publisher,
		Tick:   time.Duration(cfg.Delivery.WorkerTickMs) * time.Millisecond,
	})
	worker.Start()
	defer worker.Stop()

	r := gin.New()
	r.Use(db.SetDBtoContext(database))
	r.Use(controllers.SetCoreToContext(&controllers.Core{
		Registry:   registry,
		Dispatcher: dispatcher,
		Webhooks:   webhooks,
	}))
	router.Initialize(r, cfg, controllers.StaticAuthProviderFromEnv())

	log.Printf("Benemax listening on :%s", cfg.ApiPort)
	log.Fatal(r.Run(":" + cfg.ApiPort))
}

// buildTransport escolhe o transporte real (WhatsApp Cloud API via env) ou o
// loopback de dev quando POC_NO_WHATSAPP=true ou as credenciais faltam.
func buildTransport() transport.Transport {
	token := strings.TrimSpace(os.Getenv("WHATSAPP_ACCESS_TOKEN"))
	phoneID := strings.TrimSpace(os.Getenv("WHATSAPP_PHONE_NUMBER_ID"))

	if strings.EqualFold(getenv("POC_NO_WHATSAPP", "false"), "true") || token == "" || phoneID == "" {
		log.Printf("transport: using loopback (no WhatsApp credentials)")
		return &transport.Loopback{}
	}
	return &transport.WhatsAppClient{
		AccessToken:   token,
		ApiVersion:    getenv("WHATSAPP_API_VERSION", "v24.0"),
		PhoneNumberID: phoneID,
	}
}

func getenv(key, def string) string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	return v
}
