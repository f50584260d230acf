package cmd

import (
	"context"
	"errors"
	"testing"
	"time"

	coreconfig "github.com/m3rciful/lovematch/core/config"
	coretelegram "github.com/m3rciful/lovematch/core/telegram"
)

type carrier struct{ cfg *coreconfig.Config }

func (c carrier) CoreConfig() *coreconfig.Config { return c.cfg }

type app struct {
	services []Service
}

func (a *app) TelegramRunOptions() (coretelegram.RunOptions, error) {
	return coretelegram.RunOptions{}, nil
}

func (a *app) Services() []Service { return a.services }

func TestResolveConfigPathOrder(t *testing.T) {
	t.Setenv("LM_CONFIG", "/env.yaml")
	got, err := ResolveConfigPath(Options{ConfigPath: "/flag.yaml", ConfigEnvVar: "LM_CONFIG"})
	if err != nil || got != "/flag.yaml" {
		t.Fatalf("flag path: %q %v", got, err)
	}
	got, _ = ResolveConfigPath(Options{ConfigEnvVar: "LM_CONFIG", DefaultConfigPath: "/default.yaml"})
	if got != "/env.yaml" {
		t.Fatalf("env path: %q", got)
	}
	t.Setenv("LM_CONFIG", "")
	got, _ = ResolveConfigPath(Options{ConfigEnvVar: "LM_CONFIG", DefaultConfigPath: "/default.yaml"})
	if got != "/default.yaml" {
		t.Fatalf("default path: %q", got)
	}
	if _, err := ResolveConfigPath(Options{ConfigEnvVar: "LM_CONFIG"}); err == nil {
		t.Fatal("expected error without any path")
	}
}

func TestRunStopsServicesWhenBotReturns(t *testing.T) {
	serviceStopped := make(chan struct{})
	a := &app{services: []Service{func(ctx context.Context) error {
		<-ctx.Done()
		close(serviceStopped)
		return nil
	}}}

	err := Run(Options{
		ConfigPath: "unused.yaml",
		LoadConfig: func(string) (ConfigCarrier, error) {
			return carrier{cfg: &coreconfig.Config{}}, nil
		},
		Bootstrap:      func(ConfigCarrier) (TelegramApp, error) { return a, nil },
		ShutdownLogger: func() error { return nil },
		RunTelegram: func(ctx context.Context, opts coretelegram.RunOptions) error {
			if err := opts.OnStart(ctx, coretelegram.Runtime{}); err != nil {
				return err
			}
			return opts.OnStop(ctx, coretelegram.Runtime{})
		},
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	select {
	case <-serviceStopped:
	default:
		t.Fatal("service was not stopped")
	}
}

func TestRunPropagatesServiceError(t *testing.T) {
	boom := errors.New("listen failed")
	a := &app{services: []Service{func(context.Context) error { return boom }}}

	err := Run(Options{
		ConfigPath: "unused.yaml",
		LoadConfig: func(string) (ConfigCarrier, error) {
			return carrier{cfg: &coreconfig.Config{}}, nil
		},
		Bootstrap:      func(ConfigCarrier) (TelegramApp, error) { return a, nil },
		ShutdownLogger: func() error { return nil },
		RunTelegram: func(ctx context.Context, _ coretelegram.RunOptions) error {
			<-ctx.Done()
			return nil
		},
	})
	if !errors.Is(err, boom) {
		t.Fatalf("err = %v, want %v", err, boom)
	}
}

func TestAnnounceLifecycleKeepsAppHooks(t *testing.T) {
	boom := errors.New("store not ready")
	var stopped bool
	ro := coretelegram.RunOptions{
		OnStart: func(context.Context, coretelegram.Runtime) error { return boom },
		OnStop: func(context.Context, coretelegram.Runtime) error {
			stopped = true
			return nil
		},
	}
	announceLifecycle(&ro, time.Now())

	if err := ro.OnStart(context.Background(), coretelegram.Runtime{}); !errors.Is(err, boom) {
		t.Fatalf("OnStart err = %v, want %v", err, boom)
	}
	if err := ro.OnStop(context.Background(), coretelegram.Runtime{}); err != nil || !stopped {
		t.Fatalf("OnStop err = %v, stopped = %v", err, stopped)
	}
}
