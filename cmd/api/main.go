package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"cloud.google.com/go/pubsub"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"

	"github.com/loziogigio/vinc-pim-sub016/internal/handlers"
	"github.com/loziogigio/vinc-pim-sub016/internal/payments"
	"github.com/loziogigio/vinc-pim-sub016/internal/platform/auth"
	"github.com/loziogigio/vinc-pim-sub016/internal/platform/config"
	pfirestore "github.com/loziogigio/vinc-pim-sub016/internal/platform/firestore"
	"github.com/loziogigio/vinc-pim-sub016/internal/platform/jobs"
	"github.com/loziogigio/vinc-pim-sub016/internal/platform/observability"
	"github.com/loziogigio/vinc-pim-sub016/internal/platform/secrets"
	"github.com/loziogigio/vinc-pim-sub016/internal/repositories"
	firestoreRepo "github.com/loziogigio/vinc-pim-sub016/internal/repositories/firestore"
	"github.com/loziogigio/vinc-pim-sub016/internal/services"
)

func main() {
	ctx := context.Background()
	startedAt := time.Now().UTC()

	baseLogger, err := observability.NewLogger()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialise logger: %v\n", err)
		os.Exit(1)
	}
	defer func() {
		_ = baseLogger.Sync()
	}()

	logger := baseLogger.Named("api")
	ctx = observability.WithLogger(ctx, logger)

	envValues, err := config.EnvironmentValues()
	if err != nil {
		logger.Fatal("failed to read environment values", zap.Error(err))
	}

	fetcher, err := newSecretFetcher(ctx, logger, envValues)
	if err != nil {
		logger.Fatal("failed to initialise secret fetcher", zap.Error(err))
	}
	defer func() {
		if err := fetcher.Close(); err != nil {
			logger.Warn("secret fetcher close error", zap.Error(err))
		}
	}()

	cfg, err := config.Load(ctx,
		config.WithSecretResolver(config.SecretResolverFunc(fetcher.Resolve)),
		config.WithRequiredSecrets(requiredSecretNames(envValues)...),
	)
	if err != nil {
		var missing *config.MissingSecretsError
		if errors.As(err, &missing) {
			logger.Fatal("missing required secrets", zap.Strings("secrets", missing.RedactedNames()))
		}
		logger.Fatal("failed to load configuration", zap.Error(err))
	}

	firestoreOpts := []pfirestore.ProviderOption{pfirestore.WithDialTimeout(10 * time.Second)}
	if credentialsFile := strings.TrimSpace(envValues["API_GOOGLE_CREDENTIALS_FILE"]); credentialsFile != "" {
		firestoreOpts = append(firestoreOpts, pfirestore.WithClientOptions(option.WithCredentialsFile(credentialsFile)))
	}
	firestoreProvider := pfirestore.NewProvider(cfg.Firestore, firestoreOpts...)
	firestoreClient, err := firestoreProvider.Client(ctx)
	if err != nil {
		logger.Fatal("failed to initialise firestore client", zap.Error(err))
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := firestoreProvider.Close(closeCtx); err != nil {
			logger.Warn("firestore close error", zap.Error(err))
		}
	}()

	orderRepo, err := firestoreRepo.NewOrderRepository(firestoreProvider)
	if err != nil {
		logger.Fatal("failed to initialise order repository", zap.Error(err))
	}
	transactionRepo, err := firestoreRepo.NewTransactionRepository(firestoreProvider)
	if err != nil {
		logger.Fatal("failed to initialise transaction repository", zap.Error(err))
	}
	webhookEventRepo, err := firestoreRepo.NewWebhookEventRepository(firestoreProvider)
	if err != nil {
		logger.Fatal("failed to initialise webhook event repository", zap.Error(err))
	}
	shippingConfigRepo, err := firestoreRepo.NewShippingConfigRepository(firestoreProvider)
	if err != nil {
		logger.Fatal("failed to initialise shipping config repository", zap.Error(err))
	}
	settingsRepo, err := firestoreRepo.NewSettingsRepository(firestoreProvider)
	if err != nil {
		logger.Fatal("failed to initialise settings repository", zap.Error(err))
	}
	counterRepo, err := firestoreRepo.NewCounterRepository(firestoreProvider)
	if err != nil {
		logger.Fatal("failed to initialise counter repository", zap.Error(err))
	}

	providerRegistry := payments.NewRegistry()
	if strings.TrimSpace(cfg.PSP.StripeAPIKey) != "" {
		stripeProvider, err := payments.NewStripeProvider(payments.StripeProviderConfig{
			APIKey:        cfg.PSP.StripeAPIKey,
			WebhookSecret: cfg.PSP.StripeWebhookSecret,
			AccountID:     cfg.PSP.StripeAccountID,
			Logger:        newServiceLogger(logger.Named("stripe")),
		})
		if err != nil {
			logger.Fatal("failed to initialise stripe provider", zap.Error(err))
		}
		if err := providerRegistry.Register(stripeProvider); err != nil {
			logger.Fatal("failed to register stripe provider", zap.Error(err))
		}
	}
	if strings.TrimSpace(cfg.PSP.PayPalClientID) != "" {
		paypalProvider, err := payments.NewPayPalProvider(payments.PayPalProviderConfig{
			ClientID:   cfg.PSP.PayPalClientID,
			Secret:     cfg.PSP.PayPalSecret,
			WebhookID:  cfg.PSP.PayPalWebhookID,
			BaseURL:    cfg.PSP.PayPalBaseURL,
			Logger:     newServiceLogger(logger.Named("paypal")),
			HTTPLogger: observability.NewPrintfAdapter(logger.Named("paypal-http")),
		})
		if err != nil {
			logger.Fatal("failed to initialise paypal provider", zap.Error(err))
		}
		if err := providerRegistry.Register(paypalProvider); err != nil {
			logger.Fatal("failed to register paypal provider", zap.Error(err))
		}
	}
	if len(providerRegistry.Names()) == 0 {
		logger.Warn("no payment providers configured; charges will be rejected")
	}

	var publisher services.OrderEventPublisher
	var pubsubTopic *pubsub.Topic
	if cfg.PubSub.Enabled {
		pubsubClient, err := pubsub.NewClient(ctx, cfg.PubSub.ProjectID)
		if err != nil {
			logger.Fatal("failed to initialise pubsub client", zap.Error(err))
		}
		defer func() {
			if err := pubsubClient.Close(); err != nil {
				logger.Warn("pubsub close error", zap.Error(err))
			}
		}()

		pubsubTopic = pubsubClient.Topic(cfg.PubSub.OrderEventsTopic)
		defer pubsubTopic.Stop()

		publisher, err = jobs.NewPubSubOrderEventPublisher(pubsubTopic)
		if err != nil {
			logger.Fatal("failed to initialise order event publisher", zap.Error(err))
		}
	}

	serviceLogger := newServiceLogger(logger.Named("services"))

	orderService, err := services.NewOrderService(services.OrderServiceDeps{
		Orders:                orderRepo,
		Counters:              counterRepo,
		Publisher:             publisher,
		Logger:                serviceLogger,
		QuotationValidityDays: cfg.Commerce.QuotationValidityDays,
	})
	if err != nil {
		logger.Fatal("failed to initialise order service", zap.Error(err))
	}

	shippingService, err := services.NewShippingService(services.ShippingServiceDeps{
		Orders:  orderRepo,
		Configs: shippingConfigRepo,
	})
	if err != nil {
		logger.Fatal("failed to initialise shipping service", zap.Error(err))
	}

	paymentService, err := services.NewPaymentService(services.PaymentServiceDeps{
		Transactions: transactionRepo,
		Orders:       orderRepo,
		Providers:    providerRegistry,
		Logger:       serviceLogger,
	})
	if err != nil {
		logger.Fatal("failed to initialise payment service", zap.Error(err))
	}

	webhookService, err := services.NewWebhookService(services.WebhookServiceDeps{
		Transactions:          transactionRepo,
		Events:                webhookEventRepo,
		Settings:              settingsRepo,
		Providers:             providerRegistry,
		Publisher:             publisher,
		Logger:                serviceLogger,
		DefaultCommissionRate: cfg.Commerce.DefaultCommissionRate,
	})
	if err != nil {
		logger.Fatal("failed to initialise webhook service", zap.Error(err))
	}

	healthChecks := []repositories.DependencyCheck{
		{
			Name: "firestore",
			Check: func(ctx context.Context) error {
				iter := firestoreClient.Collections(ctx)
				if _, err := iter.Next(); err != nil && !errors.Is(err, iterator.Done) {
					return err
				}
				return nil
			},
		},
	}
	if pubsubTopic != nil {
		topic := pubsubTopic
		healthChecks = append(healthChecks, repositories.DependencyCheck{
			Name: "pubsub",
			Check: func(ctx context.Context) error {
				exists, err := topic.Exists(ctx)
				if err != nil {
					return err
				}
				if !exists {
					return fmt.Errorf("topic %s does not exist", topic.ID())
				}
				return nil
			},
		})
	}
	healthRepo, err := repositories.NewDependencyHealthRepository(healthChecks)
	if err != nil {
		logger.Fatal("failed to initialise health repository", zap.Error(err))
	}
	systemService, err := services.NewSystemService(services.SystemServiceDeps{Health: healthRepo})
	if err != nil {
		logger.Fatal("failed to initialise system service", zap.Error(err))
	}

	authenticator := auth.NewGatewayAuthenticator(
		auth.WithTenantHeader(cfg.Gateway.TenantHeader),
		auth.WithUserHeader(cfg.Gateway.UserHeader),
		auth.WithRoleHeader(cfg.Gateway.RoleHeader),
	)

	orderHandlers := handlers.NewOrderHandlers(orderService)
	shippingHandlers := handlers.NewShippingHandlers(shippingService)
	paymentHandlers := handlers.NewPaymentHandlers(paymentService)
	webhookHandlers := handlers.NewWebhookHandlers(webhookService)
	healthHandlers := handlers.NewHealthHandlers(
		handlers.WithHealthSystemService(systemService),
		handlers.WithHealthStartedAt(startedAt),
	)

	projectID := cfg.Firestore.ProjectID
	middlewares := []func(http.Handler) http.Handler{
		observability.InjectLoggerMiddleware(logger.Named("http")),
		observability.TraceMiddleware(projectID),
		observability.RecoveryMiddleware(logger.Named("http")),
		observability.RequestLoggerMiddleware(projectID),
	}

	router := handlers.NewRouter(
		handlers.WithMiddlewares(middlewares...),
		handlers.WithHealthHandlers(healthHandlers),
		handlers.WithAPIMiddlewares(authenticator.RequireIdentity()),
		handlers.WithOrderRoutes(func(r chi.Router) {
			orderHandlers.Routes(r)
			shippingHandlers.OrderRoutes(r)
			paymentHandlers.OrderRoutes(r)
		}),
		handlers.WithPaymentRoutes(paymentHandlers.Routes),
		handlers.WithShippingConfigRoutes(shippingHandlers.ConfigRoutes),
		handlers.WithWebhookRoutes(webhookHandlers.Routes),
	)

	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)

	serverLogger := logger.Named("http").With(zap.String("addr", server.Addr))
	go func() {
		serverLogger.Info("commerce api listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverLogger.Fatal("http server error", zap.Error(err))
		}
	}()

	<-shutdown
	logger.Info("shutdown signal received; draining requests")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", zap.Error(err))
	}
}

// newServiceLogger adapts the zap logger to the map-based event logger the
// services use.
func newServiceLogger(logger *zap.Logger) func(ctx context.Context, event string, fields map[string]any) {
	return func(ctx context.Context, event string, fields map[string]any) {
		contextual := observability.FromContext(ctx)
		if contextual == nil {
			contextual = logger
		}
		zapFields := make([]zap.Field, 0, len(fields))
		for key, value := range fields {
			zapFields = append(zapFields, zap.Any(key, value))
		}
		contextual.Info(event, zapFields...)
	}
}

func newSecretFetcher(ctx context.Context, logger *zap.Logger, env map[string]string) (*secrets.Fetcher, error) {
	lookup := func(key string) string {
		if env == nil {
			return ""
		}
		return strings.TrimSpace(env[key])
	}

	defaultProject := lookup("API_SECRET_DEFAULT_PROJECT_ID")
	if defaultProject == "" {
		defaultProject = lookup("API_FIRESTORE_PROJECT_ID")
	}
	fallbackPath := lookup("API_SECRET_FALLBACK_FILE")
	if fallbackPath == "" {
		fallbackPath = ".secrets.local"
	}
	credentialsFile := lookup("API_GOOGLE_CREDENTIALS_FILE")

	opts := []secrets.Option{
		secrets.WithLogger(logger.Named("secrets")),
		secrets.WithFallbackFile(fallbackPath),
	}
	if defaultProject != "" {
		opts = append(opts, secrets.WithDefaultProject(defaultProject))
	}
	if credentialsFile != "" {
		opts = append(opts, secrets.WithClientOptions(option.WithCredentialsFile(credentialsFile)))
	}

	return secrets.NewFetcher(ctx, opts...)
}

// requiredSecretNames derives the secrets the deployment must resolve from
// the providers it actually enables.
func requiredSecretNames(env map[string]string) []string {
	var required []string
	if env == nil {
		return required
	}
	if strings.TrimSpace(env["API_PSP_STRIPE_API_KEY"]) != "" {
		required = append(required, "PSP.StripeAPIKey")
		if strings.TrimSpace(env["API_PSP_STRIPE_WEBHOOK_SECRET"]) != "" {
			required = append(required, "PSP.StripeWebhookSecret")
		}
	}
	if strings.TrimSpace(env["API_PSP_PAYPAL_SECRET"]) != "" {
		required = append(required, "PSP.PayPalSecret")
	}
	return required
}
