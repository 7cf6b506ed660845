// Command regionalert imports region recipients from CSV and fans SMS
// alerts out to them.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"os/signal"
	"runtime"
	"runtime/debug"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/JonMunkholm/regionalert/internal/config"
	"github.com/JonMunkholm/regionalert/internal/logging"
	"github.com/JonMunkholm/regionalert/internal/notify"
	"github.com/JonMunkholm/regionalert/internal/store"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		stop()
		os.Exit(1)
	}
}

func version() string {
	v := "dev"
	if info, ok := debug.ReadBuildInfo(); ok && info.Main.Version != "" && info.Main.Version != "(devel)" {
		v = info.Main.Version
	}
	return fmt.Sprintf("%s %s/%s", v, runtime.GOOS, runtime.GOARCH)
}

// app is the state shared by every subcommand once configuration is loaded.
type app struct {
	cfg    *config.Config
	logger *slog.Logger
}

func newRootCmd() *cobra.Command {
	a := &app{}
	var envFile string

	root := &cobra.Command{
		Use:           "regionalert",
		Short:         "Import region recipients and fan out SMS alerts",
		Version:       version(),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.load(envFile, cmd.ErrOrStderr())
		},
	}
	root.PersistentFlags().StringVar(&envFile, "env-file", ".env", "dotenv file read before the environment; values in it win")

	root.AddCommand(
		newServeCmd(a),
		newImportCmd(a),
		newConsumeCmd(a),
		newSchemaCmd(a),
	)
	return root
}

// load reads the dotenv file, loads configuration and sets up logging.
// A missing dotenv file is not an error.
func (a *app) load(envFile string, logOut io.Writer) error {
	envLoaded := false
	if envFile != "" {
		if err := godotenv.Overload(envFile); err != nil {
			if !errors.Is(err, fs.ErrNotExist) {
				return fmt.Errorf("load %s: %w", envFile, err)
			}
		} else {
			envLoaded = true
		}
	}

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	a.cfg = cfg
	a.logger = logging.Setup(logOut, cfg.Logging.Level, cfg.Logging.Format)

	a.logger.Debug("configuration loaded", "env_file", envFile, "env_file_loaded", envLoaded, "config", cfg.String())
	return nil
}

func (a *app) openStore(ctx context.Context) (store.Store, error) {
	db := a.cfg.Database
	return store.Open(ctx, store.Config{
		Driver:          db.Driver,
		URL:             db.URL,
		SQLitePath:      db.SQLitePath,
		MaxConns:        db.MaxConns,
		MinConns:        db.MinConns,
		MaxConnLifetime: db.MaxConnLifetime,
		MaxConnIdleTime: db.MaxConnIdleTime,
		BusyTimeout:     db.SQLiteBusyTimeout,
	}, a.logger)
}

func (a *app) openChannel(ctx context.Context) (notify.Channel, error) {
	q := a.cfg.Queue
	return notify.Open(ctx, notify.Config{
		Backend: q.Backend,
		Buffer:  q.Buffer,
		Redis: notify.RedisConfig{
			Addr:     q.RedisAddr,
			Password: q.RedisPassword,
			DB:       q.RedisDB,
			Key:      q.RedisKey,
		},
		Kafka: notify.KafkaConfig{
			Brokers: q.KafkaBrokers,
			Topic:   q.KafkaTopic,
			GroupID: q.KafkaGroupID,
		},
	}, a.logger)
}

func (a *app) newConsumer(ch notify.Channel) (*notify.Consumer, error) {
	sms := a.cfg.SMS
	sender, err := notify.NewSender(sms.Provider, notify.HTTPSenderConfig{
		URL:      sms.URL,
		APIKey:   sms.APIKey,
		SenderID: sms.SenderID,
		Timeout:  sms.Timeout,
	}, a.logger)
	if err != nil {
		return nil, err
	}
	return notify.NewConsumer(ch, sender, notify.ConsumerConfig{
		Workers:     a.cfg.Queue.Workers,
		SendTimeout: a.cfg.Queue.SendTimeout,
	}, a.logger), nil
}
