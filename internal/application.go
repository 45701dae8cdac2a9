package application

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/rocketscienceinc/gomoku-lan/internal/apperror"
	"github.com/rocketscienceinc/gomoku-lan/internal/config"
	"github.com/rocketscienceinc/gomoku-lan/internal/entity"
	"github.com/rocketscienceinc/gomoku-lan/internal/match"
	"github.com/rocketscienceinc/gomoku-lan/internal/mirror"
	"github.com/rocketscienceinc/gomoku-lan/internal/presenter"
	"github.com/rocketscienceinc/gomoku-lan/internal/repository"
	"github.com/rocketscienceinc/gomoku-lan/internal/repository/storage"
	"github.com/rocketscienceinc/gomoku-lan/internal/service"
	"github.com/rocketscienceinc/gomoku-lan/transport/rest"
	"github.com/rocketscienceinc/gomoku-lan/transport/websocket"
)

var ErrUnknownMode = errors.New("unknown mode")

type snapshotPublisher interface {
	Publish(snapshot entity.MatchSnapshot)
}

// player is either side of the match as seen by the outer layers.
type player interface {
	presenter.InputHandler
	Snapshot() entity.MatchSnapshot
}

// RunApp - runs the application.
func RunApp(logger *slog.Logger, conf *config.Config, in io.Reader, out io.Writer) error {
	log := logger.With("component", "app")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigs)
	go func() {
		select {
		case sig := <-sigs:
			log.Info("Received signal, shutting down", "signal", sig)
			cancel()
		case <-ctx.Done():
		}
	}()

	var (
		wg        sync.WaitGroup
		snapshots snapshotPublisher
	)

	if conf.Redis.Enabled {
		redisStorage, err := storage.NewRedisStorage(ctx, conf.Redis.GetRedisAddr(), conf.Redis.DB)
		if err != nil {
			return fmt.Errorf("could not connect to redis storage: %w", err)
		}

		defer func() {
			if err = redisStorage.Close(); err != nil {
				log.Error("could not close redis storage", "error", err)
			}
		}()

		matchRepo := repository.NewMatchRepository(redisStorage.Connection, conf.Redis.TTL)
		publisher := service.NewSnapshotPublisher(logger, matchRepo)
		snapshots = publisher

		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := publisher.Run(ctx); err != nil {
				log.Error("snapshot publisher error", "error", err)
			}
		}()
	}

	// Background workers must stop before redis is closed.
	defer func() {
		cancel()
		wg.Wait()
	}()

	console := presenter.NewConsole(out)
	hub := websocket.NewHub(logger)
	defer hub.Close()

	view := presenter.Multi(console, hub)

	errCh := make(chan error, 3)

	var (
		local  player
		closed <-chan struct{}
	)

	switch conf.Mode {
	case config.ModeHost:
		ctrl, err := match.NewController(logger, view, snapshots, match.Options{
			HostName:    conf.PlayerName,
			GridSize:    conf.GridSize,
			ReadTimeout: conf.ReadTimeout,
		})
		if err != nil {
			return fmt.Errorf("could not create match: %w", err)
		}

		ln, err := net.Listen("tcp", conf.GameAddr())
		if err != nil {
			return fmt.Errorf("could not listen on %s: %w", conf.GameAddr(), err)
		}

		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := ctrl.Serve(ctx, ln); err != nil {
				errCh <- fmt.Errorf("game server error: %w", err)
			}
		}()

		log.Info("hosting match", "match", ctrl.ID(), "addr", conf.GameAddr())
		local, closed = ctrl, ctrl.Closed()
	case config.ModeJoin:
		remote := mirror.New(logger, view, snapshots, mirror.Options{
			Name:        conf.PlayerName,
			Addr:        conf.GameAddr(),
			ReadTimeout: conf.ReadTimeout,
		})

		log.Info("joining match", "match", remote.ID(), "addr", conf.GameAddr())

		wg.Add(1)
		go func() {
			defer wg.Done()
			errCh <- remote.Run(ctx)
		}()

		local = remote
	default:
		return fmt.Errorf("%w: %s", ErrUnknownMode, conf.Mode)
	}

	hub.Bind(local)

	if conf.HTTPEnabled() {
		server := rest.New(logger, conf.HTTPPort, local, hub)

		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := server.Start(ctx); err != nil {
				errCh <- fmt.Errorf("HTTP server error: %w", err)
			}
		}()
	}

	go func() {
		if err := console.ReadInput(ctx, in, local); err != nil {
			log.Warn("console input stopped", "error", err)
		}
	}()

	select {
	case err := <-errCh:
		switch {
		case err == nil:
			log.Info("match ended")
			return nil
		case errors.Is(err, apperror.ErrServerBusy), errors.Is(err, apperror.ErrConnectionLost):
			log.Warn("match ended", "reason", err)
			return nil
		default:
			return err
		}
	case <-closed:
		log.Info("Player left, shutting down")
		return nil
	case <-ctx.Done():
		log.Info("Application context canceled, shutting down")
		return nil
	}
}
