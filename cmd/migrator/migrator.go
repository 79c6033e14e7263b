package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/NordCoder/Aurum/internal/obs"
	"github.com/NordCoder/Aurum/migrations"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
	"go.uber.org/zap"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	l, err := obs.NewLogger(&obs.LogConfig{Level: "info", App: "aurum/migrator"})
	if err != nil {
		panic(err)
	}
	defer func() { _ = l.Sync() }()

	dsn := os.Getenv("DB_DSN")
	if dsn == "" {
		l.Fatal("DB_DSN is empty")
	}
	command := "up"
	if len(os.Args) > 1 {
		command = os.Args[1]
	}

	goose.SetBaseFS(migrations.FS)
	goose.SetLogger(zap.NewStdLog(l))
	if err := goose.SetDialect("postgres"); err != nil {
		l.Fatal("set dialect", zap.Error(err))
	}
	db, err := goose.OpenDBWithDriver("pgx", dsn)
	if err != nil {
		l.Fatal("open db", zap.Error(err))
	}
	defer db.Close()

	if err := goose.RunContext(ctx, command, db, "."); err != nil {
		l.Fatal("migrate", zap.String("command", command), zap.Error(err))
	}
	l.Info("migrations done", zap.String("command", command))
}
