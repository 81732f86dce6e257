package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/vendora/booking-platform/internal/config"
	"github.com/vendora/booking-platform/internal/db"
	"github.com/vendora/booking-platform/internal/gateway"
	"github.com/vendora/booking-platform/internal/model"
	"github.com/vendora/booking-platform/internal/notify"
	"github.com/vendora/booking-platform/internal/obs"
	"github.com/vendora/booking-platform/internal/repository"
	"github.com/vendora/booking-platform/internal/service"
	transport "github.com/vendora/booking-platform/internal/transport/http"
)

func main() {
	// 1. Конфиг из env (.env подхватывается автоматически).
	appCfg, err := config.LoadAppConfig()
	if err != nil {
		log.Fatalf("load app config: %v", err)
	}
	dbCfg, err := config.LoadDBConfig()
	if err != nil {
		log.Fatalf("load db config: %v", err)
	}

	// 2. Трейсинг (опционально).
	if appCfg.OTLPEndpoint != "" {
		shutdown := obs.InitTracer("booking-core", appCfg.OTLPEndpoint, appCfg.Env)
		defer func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = shutdown(ctx)
		}()
	}

	// 3. БД и миграции.
	gormDB, err := db.NewGormDB(dbCfg)
	if err != nil {
		log.Fatalf("init db: %v", err)
	}
	if err := model.AutoMigrate(gormDB); err != nil {
		log.Fatalf("auto migrate: %v", err)
	}
	sqlDB, err := gormDB.DB()
	if err != nil {
		log.Fatalf("sql DB: %v", err)
	}
	defer sqlDB.Close()

	// 4. Репозитории.
	bookingRepo := repository.NewGormBookingRepository(gormDB)
	webhookRepo := repository.NewGormWebhookEventRepository(gormDB)
	auditRepo := repository.NewGormAuditRepository(gormDB)
	tenantRepo := repository.NewGormTenantRepository(gormDB)

	// 5. Коллабораторы: платёжный шлюз и уведомления.
	pg := gateway.NewMidtransGateway(appCfg.MidtransServerKey, appCfg.MidtransProduction)

	var notifier notify.Notifier = notify.Noop{}
	if appCfg.AMQPURL != "" {
		amqpNotifier, err := notify.NewAMQPNotifier(appCfg.AMQPURL, appCfg.AMQPExchange)
		if err != nil {
			log.Fatalf("init notifier: %v", err)
		}
		defer amqpNotifier.Close()
		notifier = amqpNotifier
	}

	// 6. Сервисы ядра.
	auditSvc := service.NewAuditService(auditRepo)
	stateMachine := service.NewBookingStateMachine(bookingRepo, auditSvc)
	reservationSvc := service.NewReservationService(gormDB, bookingRepo, tenantRepo, stateMachine, auditSvc)
	webhookSvc := service.NewWebhookService(gormDB, webhookRepo, bookingRepo, stateMachine, auditSvc, notifier)
	checkoutSvc := service.NewCheckoutService(gormDB, tenantRepo, bookingRepo, reservationSvc, pg, auditSvc)

	// 7. Фоновое сметание просроченных PENDING-броней.
	sweepCtx, stopSweep := context.WithCancel(context.Background())
	defer stopSweep()
	go runSweeper(sweepCtx, reservationSvc,
		time.Duration(appCfg.SweepIntervalMin)*time.Minute,
		time.Duration(appCfg.SweepPendingTTLMin)*time.Minute,
	)

	// 8. HTTP-сервер.
	router := transport.NewRouter(checkoutSvc, webhookSvc, reservationSvc, tenantRepo)
	srv := &http.Server{
		Addr:    appCfg.HTTPAddr,
		Handler: router,
	}

	go func() {
		log.Printf("booking core listening on %s", appCfg.HTTPAddr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("http serve: %v", err)
		}
	}()

	// 9. Грейсфул-шатдаун по сигналу.
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	log.Println("shutting down...")
	stopSweep()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Printf("http shutdown: %v", err)
	}
}

// runSweeper периодически освобождает даты, по которым вебхук так и
// не пришёл.
func runSweeper(ctx context.Context, svc *service.ReservationService, interval, ttl time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			released, err := svc.ReleaseStaleReservations(ctx, ttl)
			if err != nil {
				log.Printf("[sweeper] release stale reservations: %v", err)
				continue
			}
			if released > 0 {
				log.Printf("[sweeper] released %d stale reservations", released)
			}
		}
	}
}
