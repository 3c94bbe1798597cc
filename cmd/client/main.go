package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/yichenzhou/tablemate/internal/backend"
	"github.com/yichenzhou/tablemate/internal/config"
	"github.com/yichenzhou/tablemate/internal/geocode"
	"github.com/yichenzhou/tablemate/internal/handler"
	"github.com/yichenzhou/tablemate/internal/model/profile"
	"github.com/yichenzhou/tablemate/internal/realtime"
	"github.com/yichenzhou/tablemate/internal/service/aicontext"
	"github.com/yichenzhou/tablemate/internal/service/collections"
	"github.com/yichenzhou/tablemate/internal/service/directory"
	locationService "github.com/yichenzhou/tablemate/internal/service/location"
	"github.com/yichenzhou/tablemate/internal/service/presence"
	"github.com/yichenzhou/tablemate/internal/service/session"
	"github.com/yichenzhou/tablemate/internal/store"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := godotenv.Load(); err != nil {
		log.Printf("warning: failed to load .env file: %v", err)
		log.Println("continuing with system environment variables only")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	tokens := backend.StaticTokenSource(cfg.Backend.Token)
	api := backend.NewClient(cfg.Backend.BaseURL, tokens)
	streams := realtime.NewClient(cfg.Backend.WSURL, tokens)
	resolver := geocode.NewClient(cfg.Backend.GeocodeURL, "tablemate-client")

	var mirror *store.Store
	if cfg.Mirror.Enabled {
		mirror, err = store.Open(cfg.Mirror.Path)
		if err != nil {
			log.Printf("warning: mirror unavailable, continuing without local persistence: %v", err)
			mirror = nil
		}
	}

	dir := directory.NewService(api)
	tracker := presence.NewTracker(cfg.User.ID, cfg.User.Name)

	coll := collections.NewService(api, mirrorOrNil(mirror))
	locCache := locationService.NewCache(resolver, snapshotStoreOrNil(mirror))
	defer locCache.Close()

	if mirror != nil {
		seedFromMirror(mirror, coll, locCache)
	}

	userProfile := profile.Profile{
		ID:          cfg.User.ID,
		Name:        cfg.User.Name,
		FirstName:   cfg.User.FirstName,
		Preferences: cfg.User.Preferences,
		PriceRange:  cfg.User.PriceRange,
	}
	contexts := aicontext.NewBuilder(userProfile, locCache, coll)

	sess := session.NewService(streams, api, tracker, coll, contexts)
	defer sess.Leave()

	// Converge the mirrored state on the backend before serving.
	if err := coll.FetchAll(ctx); err != nil {
		log.Printf("warning: initial collections fetch failed: %v", err)
	}
	dir.Fetch(ctx)

	router := handler.NewRouter(handler.Deps{
		API:         api,
		Directory:   dir,
		Session:     sess,
		Tracker:     tracker,
		Location:    locCache,
		Collections: coll,
		Contexts:    contexts,
	})

	startServer(ctx, cfg.Server, router)
}

// mirrorOrNil avoids handing a typed nil pointer to an interface field.
func mirrorOrNil(m *store.Store) collections.Mirror {
	if m == nil {
		return nil
	}
	return m
}

func snapshotStoreOrNil(m *store.Store) locationService.SnapshotStore {
	if m == nil {
		return nil
	}
	return m
}

func seedFromMirror(mirror *store.Store, coll *collections.Service, locCache *locationService.Cache) {
	saved, err := mirror.SavedLocations()
	if err != nil {
		log.Printf("warning: loading mirrored favorites: %v", err)
	}
	discoveries, err := mirror.Discoveries()
	if err != nil {
		log.Printf("warning: loading mirrored discoveries: %v", err)
	}
	coll.Seed(saved, discoveries)

	snap, err := mirror.LastSnapshot()
	if err != nil {
		log.Printf("warning: loading mirrored location: %v", err)
	} else if snap != nil {
		locCache.Seed(*snap)
	}
}

func startServer(ctx context.Context, serverCfg config.ServerConfig, router http.Handler) {
	srv := &http.Server{
		Addr:              serverCfg.Addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	log.Printf("Tablemate sync engine listening on %s", serverCfg.Addr)
	if err := runServer(ctx, srv); err != nil {
		log.Fatalf("server error: %v", err)
	}
}

func runServer(ctx context.Context, srv *http.Server) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		err := <-errCh
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
