package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	complaintshandler "github.com/gateflow-app/gateflow/domains/complaints/be/handler"
	complaintsrepo "github.com/gateflow-app/gateflow/domains/complaints/be/repo"
	complaintsservice "github.com/gateflow-app/gateflow/domains/complaints/be/service"
	flatscache "github.com/gateflow-app/gateflow/domains/flats/be/cache"
	flatsrepo "github.com/gateflow-app/gateflow/domains/flats/be/repo"
	guardshandler "github.com/gateflow-app/gateflow/domains/guards/be/handler"
	guardsrepo "github.com/gateflow-app/gateflow/domains/guards/be/repo"
	guardsservice "github.com/gateflow-app/gateflow/domains/guards/be/service"
	noticeshandler "github.com/gateflow-app/gateflow/domains/notices/be/handler"
	noticesrepo "github.com/gateflow-app/gateflow/domains/notices/be/repo"
	noticesservice "github.com/gateflow-app/gateflow/domains/notices/be/service"
	residentshandler "github.com/gateflow-app/gateflow/domains/residents/be/handler"
	residentsrepo "github.com/gateflow-app/gateflow/domains/residents/be/repo"
	residentsservice "github.com/gateflow-app/gateflow/domains/residents/be/service"
	visitorshandler "github.com/gateflow-app/gateflow/domains/visitors/be/handler"
	visitorsrepo "github.com/gateflow-app/gateflow/domains/visitors/be/repo"
	visitorsservice "github.com/gateflow-app/gateflow/domains/visitors/be/service"
	platformlogging "github.com/gateflow-app/gateflow/platform/go/logging"
	platformmiddleware "github.com/gateflow-app/gateflow/platform/go/middleware"
	"github.com/gateflow-app/gateflow/platform/go/notify"
	"github.com/gateflow-app/gateflow/platform/go/sheetstore"
)

type config struct {
	Port            string        `env:"PORT" envDefault:"3000"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"10s"`
	RequestTimeout  time.Duration `env:"REQUEST_TIMEOUT" envDefault:"15s"`
	LogLevel        string        `env:"LOG_LEVEL" envDefault:"info"`

	SpreadsheetID   string `env:"SPREADSHEET_ID,required"`
	CredentialsFile string `env:"SHEETS_CREDENTIALS_FILE"`

	FlatsTable      string `env:"FLATS_SHEET" envDefault:"Flats"`
	GuardsTable     string `env:"GUARDS_SHEET" envDefault:"Guards"`
	VisitorsTable   string `env:"VISITORS_SHEET" envDefault:"Visitors"`
	ResidentsTable  string `env:"RESIDENTS_SHEET" envDefault:"Residents"`
	NoticesTable    string `env:"NOTICES_SHEET" envDefault:"Notices"`
	ComplaintsTable string `env:"COMPLAINTS_SHEET" envDefault:"Complaints"`

	FlatCacheTTL time.Duration `env:"FLAT_CACHE_TTL" envDefault:"300s"`

	FirebaseCredentialsFile string `env:"FIREBASE_CREDENTIALS_FILE"`

	WhatsAppToken         string `env:"WHATSAPP_TOKEN"`
	WhatsAppPhoneNumberID string `env:"WHATSAPP_PHONE_NUMBER_ID"`
	WhatsAppAPIVersion    string `env:"WHATSAPP_API_VERSION" envDefault:"v21.0"`
	ApprovalTemplate      string `env:"WHATSAPP_APPROVAL_TEMPLATE"`
	TemplateLang          string `env:"WHATSAPP_TEMPLATE_LANG" envDefault:"en"`
}

func main() {
	ctx := context.Background()

	var cfg config
	if err := env.Parse(&cfg); err != nil {
		log.Fatalf("load config: %v", err)
	}

	logger, err := platformlogging.NewLogger(platformlogging.Config{
		Component: "gate-api",
		Level:     cfg.LogLevel,
	})
	if err != nil {
		log.Fatalf("init zap logger: %v", err)
	}
	defer func() {
		_ = logger.Sync()
	}()

	store, err := sheetstore.NewClient(ctx, sheetstore.ClientConfig{
		SpreadsheetID:   cfg.SpreadsheetID,
		CredentialsFile: cfg.CredentialsFile,
	})
	if err != nil {
		logger.Fatal("init sheets store", zap.Error(err))
	}

	flatsRepo := flatsrepo.NewSheetRepository(store, cfg.FlatsTable, logger)
	guardsRepo := guardsrepo.NewSheetRepository(store, cfg.GuardsTable, logger)
	entriesRepo := visitorsrepo.NewSheetRepository(store, cfg.VisitorsTable, logger)
	residentsRepo := residentsrepo.NewSheetRepository(store, cfg.ResidentsTable, logger)
	noticesRepo := noticesrepo.NewSheetRepository(store, cfg.NoticesTable, logger)
	complaintsRepo := complaintsrepo.NewSheetRepository(store, cfg.ComplaintsTable, logger)

	unitResolver := flatscache.New(flatsRepo, cfg.FlatCacheTTL, logger)

	publisher, err := notify.NewFCMPublisher(ctx, cfg.FirebaseCredentialsFile)
	if err != nil {
		logger.Fatal("init fcm publisher", zap.Error(err))
	}

	var messenger notify.Messenger
	if cfg.WhatsAppToken != "" && cfg.WhatsAppPhoneNumberID != "" {
		whatsapp, err := notify.NewWhatsAppMessenger(notify.WhatsAppConfig{
			Token:         cfg.WhatsAppToken,
			PhoneNumberID: cfg.WhatsAppPhoneNumberID,
			APIVersion:    cfg.WhatsAppAPIVersion,
		})
		if err != nil {
			logger.Fatal("init whatsapp messenger", zap.Error(err))
		}
		messenger = whatsapp
	} else {
		logger.Warn("whatsapp messenger disabled, missing token or phone number id")
	}

	fanout := notify.NewFanout(publisher, messenger, notify.FanoutConfig{
		ApprovalTemplate: cfg.ApprovalTemplate,
		TemplateLang:     cfg.TemplateLang,
	}, logger)

	visitorsService := visitorsservice.New(entriesRepo, guardsRepo, unitResolver, fanout, logger)
	guardsService := guardsservice.New(guardsRepo, flatsRepo)
	residentsService := residentsservice.New(residentsRepo, visitorsService, logger)
	noticesService := noticesservice.New(noticesRepo, logger)
	complaintsService := complaintsservice.New(complaintsRepo, logger)

	guardsHTTPHandler := guardshandler.New(guardsService, visitorsService, logger)
	visitorsHTTPHandler := visitorshandler.New(visitorsService, logger)
	residentsHTTPHandler := residentshandler.New(residentsService, logger)
	noticesHTTPHandler := noticeshandler.New(noticesService, logger)
	complaintsHTTPHandler := complaintshandler.New(complaintsService, logger)

	rootRouter := chi.NewRouter()

	rootRouter.Use(
		chimw.RequestID,
		chimw.RealIP,
		chimw.Recoverer,
		chimw.Timeout(cfg.RequestTimeout),
		platformmiddleware.DefaultCORS(),
	)

	rootRouter.Use(platformlogging.RequestLogger(logger))

	rootRouter.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	rootRouter.Get("/readyz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	rootRouter.Route("/api", func(r chi.Router) {
		r.Mount("/guards", guardsHTTPHandler.Routes())
		r.Mount("/visitors", visitorsHTTPHandler.Routes())
		r.Mount("/residents", residentsHTTPHandler.Routes())
		r.Mount("/notices", noticesHTTPHandler.Routes())
		r.Mount("/complaints", complaintsHTTPHandler.Routes())
	})

	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      rootRouter,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  2 * time.Minute,
	}

	go func() {
		logger.Info("starting gate api server", zap.String("port", cfg.Port))
		if err := server.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("server listen failed", zap.Error(err))
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt)
	<-stop

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", zap.Error(err))
	}
}
