// Server runs the HTTP API: login gating, TOTP enrollment, IP allow-list and
// approval management. Configure via env or .env (see .env.example).
package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	allowlistrepo "accessgate/internal/allowlist/repository"
	allowlistservice "accessgate/internal/allowlist/service"
	approvalrepo "accessgate/internal/approval/repository"
	approvalservice "accessgate/internal/approval/service"
	"accessgate/internal/attempt"
	"accessgate/internal/audit"
	auditrepo "accessgate/internal/audit/repository"
	authservice "accessgate/internal/auth/service"
	"accessgate/internal/config"
	"accessgate/internal/db"
	enrollrepo "accessgate/internal/enrollment/repository"
	enrollservice "accessgate/internal/enrollment/service"
	"accessgate/internal/events"
	"accessgate/internal/events/otel"
	"accessgate/internal/events/producer"
	gateservice "accessgate/internal/gate/service"
	"accessgate/internal/policy/engine"
	policyrepo "accessgate/internal/policy/repository"
	"accessgate/internal/security"
	"accessgate/internal/server"
	"accessgate/internal/server/handler"
	"accessgate/internal/server/middleware"
	sessionrepo "accessgate/internal/session/repository"
	settingsrepo "accessgate/internal/settings/repository"
	userrepo "accessgate/internal/user/repository"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	if cfg.DatabaseURL == "" {
		log.Fatal("DATABASE_URL is not set; create a .env from .env.example or set DATABASE_URL")
	}
	if cfg.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	conn, err := db.Open(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("db: %v", err)
	}
	defer conn.Close()

	privKey, err := security.ParsePrivateKey(cfg.JWTPrivateKey)
	if err != nil {
		log.Fatalf("JWT_PRIVATE_KEY: %v", err)
	}
	pubKey, err := security.ParsePublicKey(cfg.JWTPublicKey)
	if err != nil {
		log.Fatalf("JWT_PUBLIC_KEY: %v", err)
	}
	tokens := security.NewTokenProvider(privKey, pubKey, cfg.JWTIssuer, cfg.JWTAudience, cfg.AccessTTL(), cfg.RefreshTTL())
	hasher := security.NewHasher(cfg.BcryptCost)

	ctx := context.Background()
	providers, err := otel.NewProviders(ctx, cfg.OTLPEndpoint, "accessgate", cfg.OTLPInsecure)
	if err != nil {
		log.Fatalf("otel: %v", err)
	}
	providers.SetGlobal()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := providers.Shutdown(shutdownCtx); err != nil {
			log.Printf("otel shutdown: %v", err)
		}
	}()

	// Event emission: Kafka when brokers are configured, OTLP logs otherwise.
	var emitter events.EventEmitter
	kafkaProducer, err := producer.NewKafkaProducer(cfg.KafkaBrokersList(), cfg.EventsKafkaTopic)
	if err != nil {
		log.Fatalf("kafka: %v", err)
	}
	if kafkaProducer != nil {
		defer kafkaProducer.Close()
		emitter = kafkaProducer
	} else {
		emitter = otel.NewEventEmitter(providers.LoggerProvider)
	}

	users := userrepo.NewPostgresRepository(conn)
	sessions := sessionrepo.NewPostgresRepository(conn)
	enrollments := enrollrepo.NewPostgresRepository(conn)
	allowlist := allowlistrepo.NewPostgresRepository(conn)
	approvals := approvalrepo.NewPostgresRepository(conn)
	settings := settingsrepo.NewPostgresRepository(conn)
	policies := policyrepo.NewPostgresRepository(conn)
	auditLogs := auditrepo.NewPostgresRepository(conn)

	evaluator := engine.NewOPAEvaluator(policies)
	attempts := attempt.NewStore(cfg.RateLimitMaxFailures, cfg.RateLimitWindow())

	gateSvc := gateservice.NewService(users, enrollments, allowlist, approvals, settings, evaluator, attempts)
	enrollSvc := enrollservice.NewService(enrollments, settings, evaluator, attempts, cfg.TOTPIssuer)
	approvalSvc := approvalservice.NewService(approvals, allowlist)
	authSvc := authservice.NewAuthService(users, sessions, gateSvc, hasher, tokens, cfg.RefreshTTL())

	auditLogger := audit.NewLogger(auditLogs, middleware.GetClientIP)

	janitorCtx, stopJanitor := context.WithCancel(ctx)
	defer stopJanitor()
	go allowlistservice.NewJanitor(allowlist, settings, time.Hour).Run(janitorCtx)

	router := server.NewRouter(server.Deps{
		Tokens:     tokens,
		Auth:       handler.NewAuthHandler(authSvc, auditLogger, emitter),
		Enrollment: handler.NewEnrollmentHandler(enrollSvc, auditLogger, emitter),
		Gate:       handler.NewGateHandler(gateSvc, auditLogger),
		Approvals:  handler.NewApprovalHandler(approvalSvc, auditLogger, emitter),
		Allowlist:  handler.NewAllowlistHandler(allowlist, auditLogger),
		Settings:   handler.NewSettingsHandler(settings, auditLogger),
		Policies:   handler.NewPolicyHandler(policies, auditLogger),
		AuditLogs:  handler.NewAuditHandler(auditLogs),
		Health:     handler.NewHealthHandler(conn, evaluator),
	})

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Printf("HTTP server listening on %s", cfg.HTTPAddr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("serve: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	log.Println("shutting down HTTP server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("shutdown: %v", err)
	}
	// Give in-flight async event emits a chance to finish.
	time.Sleep(events.ShutdownDrainDuration)
	log.Println("HTTP server stopped")
}
