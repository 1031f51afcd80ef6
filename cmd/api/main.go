package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"devsign.org/internal/assembly"
	"devsign.org/internal/audit"
	"devsign.org/internal/auth"
	"devsign.org/internal/board"
	"devsign.org/internal/directory"
	"devsign.org/internal/engagement"
	"devsign.org/internal/event"
	"devsign.org/internal/filestore"
	"devsign.org/internal/httpapi"
	"devsign.org/internal/member"
	"devsign.org/internal/notice"
	"devsign.org/internal/obs"
	"devsign.org/internal/settings"
	"devsign.org/internal/store/pg"
)

var version = "0.3.1"

func main() {
	obs.Init()

	secret := os.Getenv("DEVSIGN_JWT_SECRET")
	if secret == "" {
		log.Fatal("DEVSIGN_JWT_SECRET is required")
	}
	tokens, err := auth.NewAuthority(secret)
	if err != nil {
		log.Fatalf("token authority: %v", err)
	}

	uploadDir := envOr("DEVSIGN_UPLOAD_DIR", "uploads")
	files, err := filestore.New(uploadDir, envList("DEVSIGN_LEGACY_UPLOAD_DIRS")...)
	if err != nil {
		log.Fatalf("file store: %v", err)
	}

	dir := directory.New(envOr("DEVSIGN_DIRECTORY_URL", "http://localhost:8081"))
	access := audit.NewMemAccessLog()
	hero := settings.NewContainer(settings.Hero{})

	// Storage: Postgres when a DSN is configured, in-memory otherwise.
	var (
		memberStore member.Store      = member.NewMemStore()
		boardStore  board.Store       = board.NewMemStore()
		ledger      engagement.Ledger = engagement.NewInMemory()
		ready       httpapi.ReadyProbe
	)
	if dsn := os.Getenv("DEVSIGN_PG_DSN"); dsn != "" {
		pgStore, err := pg.Open(dsn)
		if err != nil {
			log.Fatalf("open db: %v", err)
		}
		defer func() { _ = pgStore.Close() }()
		memberStore = pg.NewMemberStore(pgStore)
		boardStore = pg.NewBoardStore(pgStore)
		ledger = pg.NewEngagementStore(pgStore)
		ready = httpapi.ReadyProbe{DB: pgStore.DB()}
	}

	members := member.NewService(memberStore, tokens, dir, access)
	boards := board.NewService(boardStore, ledger, members, access)
	events := event.NewService(event.NewMemStore(), ledger, access)
	notices := notice.NewService(notice.NewMemStore(), ledger, access)
	assemblies := assembly.NewService(assembly.NewMemStore(), files, members, access)

	api := httpapi.New(httpapi.Deps{
		Tokens:     tokens,
		Members:    members,
		Boards:     boards,
		Events:     events,
		Notices:    notices,
		Assemblies: assemblies,
		Hero:       hero,
		Access:     access,
		Ready:      ready,
		Version:    version,
	})

	srv := &http.Server{
		Addr:              envOr("DEVSIGN_ADDR", ":8080"),
		Handler:           api.Handler(),
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 15 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	log.Printf("Starting devsign-api %s on %s", version, srv.Addr)

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	<-stop
	log.Println("Shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_ = srv.Shutdown(ctx)
	log.Println("Stopped")
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envList(key string) []string {
	raw := os.Getenv(key)
	if raw == "" {
		return nil
	}
	var out []string
	for _, p := range strings.Split(raw, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
