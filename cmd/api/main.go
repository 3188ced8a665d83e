package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"crystal-bloomery/internal/commerce"
	"crystal-bloomery/internal/config"
	"crystal-bloomery/internal/db"
	"crystal-bloomery/internal/httpserver"
	sessionrepo "crystal-bloomery/internal/repository/session"
	cartsvc "crystal-bloomery/internal/service/cart"
	newslettersvc "crystal-bloomery/internal/service/newsletter"
)

func main() {
	cfg := config.FromEnv()
	logger := log.New(os.Stdout, "[api] ", log.LstdFlags|log.LUTC|log.Lshortfile)

	ctx := context.Background()
	dbpool, err := db.Connect(ctx, cfg.DBConnString)
	if err != nil {
		logger.Fatalf("connect to db: %v", err)
	}
	defer dbpool.Close()

	gateway := commerce.New(commerce.Config{
		Endpoint:     cfg.CommerceAPIURL,
		Token:        cfg.CommerceAPIToken,
		CheckoutHost: cfg.CheckoutHost,
	}, logger)
	sessions := sessionrepo.NewPostgres(dbpool)
	cartService := cartsvc.New(gateway, sessions, logger)
	newsletterService := newslettersvc.New(newslettersvc.Config{
		Endpoint: cfg.NewsletterAPIURL,
		APIKey:   cfg.NewsletterAPIKey,
		ListID:   cfg.NewsletterListID,
	}, logger)

	srv := httpserver.New(cfg.HTTPAddr, logger, dbpool, httpserver.Deps{
		CartSvc:       cartService,
		NewsletterSvc: newsletterService,
		MaxQuantity:   cfg.CartMaxQuantity,
		CORSOrigins:   cfg.CORSOrigins,
	})

	serverErr := make(chan error, 1)
	go func() {
		logger.Printf("starting http server on %s", cfg.HTTPAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	stopCh := make(chan os.Signal, 1)
	signal.Notify(stopCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-stopCh:
		logger.Printf("received signal %s, shutting down", sig)
	case err := <-serverErr:
		logger.Printf("server error: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Printf("graceful shutdown failed: %v", err)
	} else {
		logger.Printf("server stopped")
	}
}
