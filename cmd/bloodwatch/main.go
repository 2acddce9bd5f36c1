// cmd/bloodwatch/main.go
package main

import (
	"context"
	"fmt"
	"net/http"
	_ "net/http/pprof"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"bloodconnect/internal/api"
	"bloodconnect/internal/common/config"
	"bloodconnect/internal/common/database"
	"bloodconnect/internal/common/logger"
	"bloodconnect/internal/common/observability"
	"bloodconnect/internal/identity"
	"bloodconnect/internal/models"
	"bloodconnect/internal/notify"
	"bloodconnect/internal/session"
)

// retryWithBackoff attempts to execute a function with exponential backoff.
func retryWithBackoff(operation func() error, maxRetries int, initialDelay time.Duration, log *zap.Logger, operationName string) error {
	var err error
	delay := initialDelay

	for i := 0; i < maxRetries; i++ {
		err = operation()
		if err == nil {
			return nil
		}

		if i < maxRetries-1 {
			log.Warn(fmt.Sprintf("%s failed, retrying...", operationName),
				zap.Error(err),
				zap.Int("attempt", i+1),
				zap.Int("maxRetries", maxRetries),
				zap.Duration("nextRetryIn", delay),
			)
			time.Sleep(delay)
			delay *= 2
		}
	}

	return fmt.Errorf("%s failed after %d attempts: %w", operationName, maxRetries, err)
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config load failed: %v\n", err)
		os.Exit(1)
	}

	zapLog := logger.New(cfg.Logging.Level, cfg.Logging.Format)
	defer zapLog.Sync()
	log := logger.NewZapAdapter(zapLog)

	zapLog.Info("Starting bloodwatch...",
		zap.String("backend", cfg.Backend.GetBaseURL()),
		zap.String("environment", cfg.App.Environment),
	)

	obs := observability.New("bloodwatch")
	defer obs.Shutdown()

	ctx := context.Background()

	// --- Optional Redis seen-tracker store ---
	var seen notify.SeenTracker = notify.NewMemorySeenTracker()
	if cfg.Redis.Enabled {
		rdb, err := database.NewRedis(cfg.Redis)
		if err != nil {
			zapLog.Fatal("redis client creation failed", zap.Error(err))
		}
		err = retryWithBackoff(func() error {
			pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
			defer cancel()
			return rdb.Ping(pingCtx)
		}, 10, 2*time.Second, zapLog, "Redis connection")
		if err != nil {
			zapLog.Fatal("redis failed after retries", zap.Error(err))
		}
		defer rdb.Close()
		seen = notify.NewRedisSeenTracker(rdb.GetClient(), 0)
		zapLog.Info("Redis connected successfully")
	}

	// --- Identity provider and backend clients ---
	idClient := identity.NewClient(
		cfg.Identity.GetBaseURL(),
		cfg.Identity.APIKey,
		config.GetDuration(cfg.Identity.Timeout),
	)
	backend := api.NewClient(
		cfg.Backend.GetBaseURL(),
		config.GetDuration(cfg.Backend.Timeout),
		idClient,
		log,
	)

	store := session.NewStore(idClient, backend, log)
	defer store.Close()

	// --- Notification poller, announcing each notification once ---
	poller := notify.NewPoller(
		&notify.Config{Interval: config.GetDuration(cfg.Notifications.PollInterval)},
		backend,
		log,
		func(snapshot models.NotificationSnapshot) {
			start := time.Now()
			announce(ctx, log, seen, snapshot)
			obs.RecordSnapshotFetched(ctx, "applied")
			obs.RecordHandleDuration(ctx, time.Since(start), "applied")
		},
	)
	defer poller.Stop()

	// The poller is bound to the session's identity: restart on identity
	// change, stop on sign-out.
	activeIdentity := ""
	unsubscribe := store.Subscribe(func(sess models.Session) {
		if sess.IsLoading {
			return
		}
		if sess.IsAnonymous() {
			if activeIdentity != "" {
				activeIdentity = ""
				poller.Stop()
			}
			return
		}
		if sess.IdentityID != activeIdentity {
			activeIdentity = sess.IdentityID
			poller.Start(sess)
		}
	})
	defer unsubscribe()

	// --- Sign in the watch account ---
	if cfg.Watch.Email == "" || cfg.Watch.Password == "" {
		zapLog.Fatal("watch.email and watch.password are required")
	}

	err = retryWithBackoff(func() error {
		signInCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
		defer cancel()
		_, err := store.SignIn(signInCtx, cfg.Watch.Email, cfg.Watch.Password)
		return err
	}, 5, 2*time.Second, zapLog, "Sign-in")
	if err != nil {
		zapLog.Fatal("sign-in failed after retries", zap.Error(err))
	}

	sess := store.Current()
	zapLog.Info("Signed in",
		zap.String("identityId", sess.IdentityID),
		zap.String("role", string(sess.Role)),
	)
	if sess.Role == models.RoleUnresolved {
		zapLog.Warn("role could not be resolved; watching notifications without a dashboard role")
	}

	// --- Metrics endpoint ---
	if cfg.Metrics.Enabled {
		go func() {
			mux := http.NewServeMux()
			mux.Handle("/metrics", promhttp.Handler())
			zapLog.Info("Metrics server listening", zap.String("address", cfg.Metrics.ListenAddress))
			if err := http.ListenAndServe(cfg.Metrics.ListenAddress, mux); err != nil {
				zapLog.Error("metrics server stopped", zap.Error(err))
			}
		}()
	}

	// --- Wait for shutdown ---
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	zapLog.Info("Shutting down", zap.String("signal", sig.String()))

	poller.Stop()
	signOutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := store.SignOut(signOutCtx); err != nil {
		zapLog.Warn("sign-out failed", zap.Error(err))
	}
}

// announce logs each unread notification the first time it is seen.
func announce(ctx context.Context, log logger.Logger, seen notify.SeenTracker, snapshot models.NotificationSnapshot) {
	for _, n := range snapshot.Items {
		first, err := seen.FirstSight(ctx, n.RecipientID, n.ID)
		if err != nil {
			log.WithError(err).Warn("seen tracker failed, announcing anyway", map[string]interface{}{
				"notificationId": n.ID,
			})
			first = true
		}
		if !first {
			continue
		}
		log.Info("notification", map[string]interface{}{
			"notificationId": n.ID,
			"type":           n.Type,
			"message":        n.Message,
			"createdAt":      n.CreatedAt,
		})
	}
}
