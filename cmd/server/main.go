package main

import (
	"context"
	"errors"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"go.uber.org/zap"
	"google.golang.org/grpc"

	"bikecare/backend/internal/audit"
	auditrepo "bikecare/backend/internal/audit/repository"
	"bikecare/backend/internal/config"
	"bikecare/backend/internal/cookiesession"
	"bikecare/backend/internal/db"
	healthhandler "bikecare/backend/internal/health/handler"
	"bikecare/backend/internal/identity/allowlist"
	identityhandler "bikecare/backend/internal/identity/handler"
	"bikecare/backend/internal/identity/provider/firebase"
	"bikecare/backend/internal/identity/provider/oauth"
	"bikecare/backend/internal/identity/service"
	applog "bikecare/backend/internal/logger"
	"bikecare/backend/internal/otp"
	"bikecare/backend/internal/otp/sms"
	"bikecare/backend/internal/policy/engine"
	"bikecare/backend/internal/security"
	"bikecare/backend/internal/server"
	"bikecare/backend/internal/server/middleware"
	"bikecare/backend/internal/session"
	sessionrepo "bikecare/backend/internal/session/repository"
	"bikecare/backend/internal/telemetry"
	"bikecare/backend/internal/telemetry/eventstream"
	otelsetup "bikecare/backend/internal/telemetry/otel"
	userrepo "bikecare/backend/internal/user/repository"
)

const (
	serviceName         = "bikecare-api"
	shutdownTimeout     = 15 * time.Second
	healthWatchInterval = 10 * time.Second
)

// stores are the persistence backends chosen from config.
type stores struct {
	users    userrepo.Repository
	sessions sessionrepo.Repository
	audit    auditrepo.Repository
	otp      otp.Store
	cookies  cookiesession.Store
	checks   []healthhandler.Check
	closers  []func() error
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	logger, err := applog.New(cfg.Env, cfg.LogLevel)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()
	zap.ReplaceGlobals(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	codec, err := security.NewCodec(cfg.JWTSecret, cfg.TokenIssuer, cfg.TokenAudience)
	if err != nil {
		logger.Fatal("credential codec", zap.Error(err))
	}

	providers, err := otelsetup.NewProviders(ctx, otelsetup.Settings{
		Endpoint:    cfg.OTLPEndpoint,
		ServiceName: serviceName,
		Environment: cfg.Env,
		Insecure:    cfg.OTLPInsecure,
	})
	if err != nil {
		logger.Fatal("telemetry", zap.Error(err))
	}
	providers.SetGlobal()
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		_ = providers.Shutdown(sctx)
	}()

	st, err := openStores(cfg, logger)
	if err != nil {
		logger.Fatal("storage", zap.Error(err))
	}
	defer func() {
		for _, c := range st.closers {
			_ = c()
		}
	}()

	policySource, err := cfg.AdminPolicy()
	if err != nil {
		logger.Fatal("admin policy", zap.Error(err))
	}
	policy := engine.NewOPAEvaluator(policySource, logger)
	if err := policy.HealthCheck(ctx); err != nil {
		logger.Fatal("admin policy does not compile", zap.Error(err))
	}
	st.checks = append(st.checks, healthhandler.PolicyCheck("policy", policy))

	admins := allowlist.New(cfg.AdminEmailList(), cfg.AdminPhoneList())

	emitters := []telemetry.EventEmitter{otelsetup.NewEventEmitter(providers.LoggerProvider)}
	if kp := eventstream.NewPublisher(cfg.KafkaBrokerList(), cfg.AuthEventsTopic); kp != nil {
		emitters = append(emitters, kp)
		defer func() { _ = kp.Close() }()
		logger.Info("auth event stream enabled", zap.String("topic", cfg.AuthEventsTopic))
	}
	auditTrail := audit.NewWriter(st.audit, middleware.ClientIPFrom, logger)
	dispatcher := telemetry.NewDispatcher(telemetry.Fanout(emitters...), cfg.EventMaxInFlight, logger)
	events := &service.Recorder{
		Audit:    auditTrail,
		Events:   dispatcher,
		ClientIP: middleware.ClientIPFrom,
	}

	sender := sms.New(sms.Config{
		Provider:         cfg.SMSProvider,
		TwilioAccountSID: cfg.TwilioAccountSID,
		TwilioAuthToken:  cfg.TwilioAuthToken,
		TwilioFromNumber: cfg.TwilioFromNumber,
		SMSLocalAPIKey:   cfg.SMSLocalAPIKey,
		SMSLocalBaseURL:  cfg.SMSLocalBaseURL,
		SMSLocalSender:   cfg.SMSLocalSender,
	}, logger)
	otpSvc := otp.NewService(st.otp, sender, otp.Config{
		AdminPhone:       cfg.AdminPhone,
		AdminBypass:      cfg.OTPAdminBypass,
		SendLimitPerHour: cfg.OTPSendLimitPerHour,
	}, logger)
	sessions := session.NewService(st.sessions, cfg.PhoneSessionDuration(), logger)

	var (
		idTokens middleware.IDTokenVerifier
		minter   service.CustomTokenMinter
	)
	if cfg.FirebaseProjectID != "" {
		idTokens = firebase.NewVerifier(cfg.FirebaseProjectID, cfg.FirebaseCertsURL, nil, logger)
		m, err := firebase.NewTokenMinter(cfg.FirebaseClientEmail, cfg.FirebasePrivateKey)
		switch {
		case err == nil:
			minter = m
		case errors.Is(err, firebase.ErrNotConfigured):
			logger.Info("custom token minting disabled, verified phones receive phone sessions")
		default:
			logger.Fatal("firebase service account", zap.Error(err))
		}
	}

	oauthClient := oauth.NewClient(oauth.Config{
		ClientID:     cfg.OAuthClientID,
		ClientSecret: cfg.OAuthClientSecret,
		AuthorizeURL: cfg.OAuthAuthorizeURL,
		TokenURL:     cfg.OAuthTokenURL,
		UserInfoURL:  cfg.OAuthUserInfoURL,
		RedirectURL:  cfg.OAuthRedirectURL,
		Scopes:       cfg.OAuthScopeList(),
	}, nil, logger)
	if !oauthClient.Configured() {
		logger.Warn("oauth provider not configured, /api/auth/oauth/* will fail")
	}

	cookies := cookiesession.NewManager(st.cookies, cfg.CookieSessionDuration(), cfg.CookieSecure)
	h := identityhandler.New(identityhandler.Deps{
		Phone:    service.NewPhoneAuthService(otpSvc, st.users, sessions, minter, admins, events, logger),
		OAuth:    service.NewOAuthService(oauthClient, codec, st.users, admins, cfg.OAuthClientCallbackURL, events, logger),
		Password: service.NewPasswordLoginService(st.users, security.NewHasher(cfg.BcryptCost), admins, events),
		Admin:    service.NewAdminService(st.users, sessions, otpSvc, events, logger),
		Cookies:  cookies,
		Sessions: sessions,
		Audit:    st.audit,
		Events:   events,
		Logger:   logger,
	})
	health := healthhandler.NewHandler(st.checks...)
	router := server.NewRouter(server.Deps{
		Auth:   h,
		Health: health,
		Resolver: middleware.NewResolver(middleware.ResolverConfig{
			Sessions: sessions,
			Firebase: idTokens,
			Codec:    codec,
			Admins:   admins,
			Logger:   logger,
		}),
		Cookies: cookies,
		Admins:  admins,
		Users:   st.users,
		Policy:  policy,
		Audit:   auditTrail,
		Events:  events,
		Logger:  logger,
	})

	httpSrv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		logger.Info("HTTP server listening", zap.String("addr", cfg.HTTPAddr))
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("http serve", zap.Error(err))
		}
	}()

	var grpcSrv *grpc.Server
	if cfg.GRPCAddr != "" {
		lis, err := net.Listen("tcp", cfg.GRPCAddr)
		if err != nil {
			logger.Fatal("grpc listen", zap.Error(err))
		}
		grpcSrv = grpc.NewServer(grpc.StatsHandler(otelgrpc.NewServerHandler()))
		hs := healthhandler.RegisterGRPC(grpcSrv, health)
		go healthhandler.Watch(ctx, hs, health, healthWatchInterval)
		go func() {
			logger.Info("gRPC health server listening", zap.String("addr", cfg.GRPCAddr))
			if err := grpcSrv.Serve(lis); err != nil {
				logger.Error("grpc serve", zap.Error(err))
			}
		}()
	}

	<-ctx.Done()
	logger.Info("shutting down")
	sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := httpSrv.Shutdown(sctx); err != nil {
		logger.Warn("http shutdown", zap.Error(err))
	}
	if grpcSrv != nil {
		grpcSrv.GracefulStop()
	}
	if err := dispatcher.Drain(sctx); err != nil {
		logger.Warn("auth events not drained", zap.Error(err))
	}
	if n := dispatcher.Dropped(); n > 0 {
		logger.Warn("auth events dropped under load", zap.Int64("count", n))
	}
	logger.Info("server stopped")
}

// openStores picks Postgres and Redis backends when configured and in-memory ones otherwise.
// Memory backends are refused in production.
func openStores(cfg *config.Config, logger *zap.Logger) (*stores, error) {
	st := &stores{}
	if cfg.DatabaseURL != "" {
		conn, err := db.Open(cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		st.users = userrepo.NewPostgresRepository(conn)
		st.sessions = sessionrepo.NewPostgresRepository(conn)
		st.audit = auditrepo.NewPostgresRepository(conn)
		st.checks = append(st.checks, healthhandler.PingCheck("postgres", conn))
		st.closers = append(st.closers, conn.Close)
	} else {
		if cfg.IsProduction() {
			return nil, db.ErrEmptyDSN
		}
		logger.Warn("DATABASE_URL not set, using in-memory repositories")
		st.users = userrepo.NewMemoryRepository()
		st.sessions = sessionrepo.NewMemoryRepository()
		st.audit = auditrepo.NewMemoryRepository()
	}

	if cfg.RedisURL != "" {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			return nil, err
		}
		rdb := redis.NewClient(opts)
		st.otp = otp.NewRedisStore(rdb)
		st.cookies = cookiesession.NewRedisStore(rdb)
		st.checks = append(st.checks, healthhandler.Check{Name: "redis", Fn: func(ctx context.Context) error {
			return rdb.Ping(ctx).Err()
		}})
		st.closers = append(st.closers, rdb.Close)
	} else {
		logger.Warn("REDIS_URL not set, OTP and cookie sessions are kept in process memory")
		st.otp = otp.NewMemoryStore()
		st.cookies = cookiesession.NewMemoryStore()
	}
	return st, nil
}
