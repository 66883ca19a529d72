package logging

import (
	"io"
	"log/slog"
	"os"

	"github.com/ogurasousui/gym-appointments/internal/platform/config"
)

// New は実行環境に応じたロガーを生成します。
// local は色付きのテキスト、dev と prod は JSON で出力します。
func New(env string) *slog.Logger {
	return newLogger(env, os.Stdout)
}

func newLogger(env string, out io.Writer) *slog.Logger {
	switch env {
	case config.EnvDev:
		return slog.New(slog.NewJSONHandler(out, &slog.HandlerOptions{Level: slog.LevelDebug}))
	case config.EnvProd:
		return slog.New(slog.NewJSONHandler(out, &slog.HandlerOptions{Level: slog.LevelInfo}))
	default:
		return slog.New(NewPrettyHandler(out, &slog.HandlerOptions{Level: slog.LevelDebug}))
	}
}

// Err はエラーを slog 属性に変換します。
func Err(err error) slog.Attr {
	if err == nil {
		return slog.Attr{Key: "error", Value: slog.StringValue("")}
	}
	return slog.String("error", err.Error())
}
