package main

import (
	"context"
	"log"
	"math/rand/v2"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/cloudwego/hertz/pkg/app/server"

	httpadapter "mash/internal/adapter/http"
	metricsinmem "mash/internal/adapter/metrics/inmemory"
	gormrepo "mash/internal/adapter/repo/gorm"
	"mash/internal/app/action"
	"mash/internal/app/auth"
	"mash/internal/app/envelope"
	"mash/internal/app/events"
	"mash/internal/app/perm"
	"mash/internal/app/rules"
	"mash/internal/app/tick"
	"mash/internal/app/world"
	"mash/internal/config"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	if cfg.DBDSN == "" {
		log.Fatal("MASH_DB_DSN is required")
	}

	db, err := gormrepo.OpenPostgres(cfg.DBDSN)
	if err != nil {
		log.Fatalf("open postgres: %v", err)
	}
	if err := gormrepo.AutoMigrate(context.Background(), db); err != nil {
		log.Fatalf("migrate: %v", err)
	}

	agents := gormrepo.NewAgentRepo(db)
	templates := gormrepo.NewTemplateRepo(db)
	instances := gormrepo.NewInstanceRepo(db)
	queue := gormrepo.NewQueueRepo(db)
	eventsRepo := gormrepo.NewEventRepo(db)
	linkUsage := gormrepo.NewLinkUsageRepo(db)
	worldState := gormrepo.NewWorldStateRepo(db)
	txManager := gormrepo.NewTxManager(db)

	lock := &sync.Mutex{}
	recorder := metricsinmem.NewRecorder()

	resolver := perm.Resolver{Agents: agents, Templates: templates, Instances: instances}
	bus := events.Bus{Agents: agents, Events: eventsRepo, Metrics: recorder}
	worldSvc := world.World{
		Agents:    agents,
		Templates: templates,
		Instances: instances,
		Perm:      resolver,
		Bus:       bus,
	}
	evaluator := rules.Evaluator{
		Agents:    agents,
		Templates: templates,
		Instances: instances,
		Perm:      resolver,
		World:     worldSvc,
		Bus:       bus,
	}
	actionUC := action.UseCase{
		Lock:          lock,
		TxManager:     txManager,
		Agents:        agents,
		Templates:     templates,
		Instances:     instances,
		Queue:         queue,
		LinkUsage:     linkUsage,
		WorldState:    worldState,
		Perm:          resolver,
		World:         worldSvc,
		Bus:           bus,
		Evaluator:     evaluator,
		Metrics:       recorder,
		Rand:          rand.IntN,
		MaxAP:         cfg.MaxAP,
		MaxBuyPerTick: cfg.MaxBuyPerTick,
		MaxBuyPerCall: cfg.MaxBuyPerCall,
	}
	authUC := auth.UseCase{
		Agents:    agents,
		Instances: instances,
		TxManager: txManager,
		MaxAP:     cfg.MaxAP,
	}
	envBuilder := envelope.Builder{
		Lock:         lock,
		TxManager:    txManager,
		Agents:       agents,
		Events:       eventsRepo,
		WorldState:   worldState,
		TickInterval: cfg.TickInterval(),
	}
	engine := &tick.Engine{
		Lock:        lock,
		TxManager:   txManager,
		Agents:      agents,
		Instances:   instances,
		Queue:       queue,
		Events:      eventsRepo,
		WorldState:  worldState,
		Action:      actionUC,
		Evaluator:   evaluator,
		Bus:         bus,
		Metrics:     recorder,
		Interval:    cfg.TickInterval(),
		IdleTimeout: cfg.IdleTimeout(),
		EventTTL:    cfg.EventTTL(),
		MaxAP:       cfg.MaxAP,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	go engine.Run(ctx)

	h := httpadapter.Handler{
		AuthUC:     authUC,
		ActionUC:   actionUC,
		Envelope:   envBuilder,
		Tick:       engine,
		WorldState: worldState,
		KPI:        recorder,
		StartedAt:  time.Now(),
	}
	s := server.Default(server.WithHostPorts(cfg.Addr))
	h.RegisterRoutes(s)

	log.Printf("mash server listening on %s (tick every %s)", cfg.Addr, cfg.TickInterval())
	s.Spin()
}
