// Command evaluate はピッチデックを評価エンドポイントに送信し、結果をターミナルに表示します。
//
//	evaluate [flags] <file.pdf|file.png|file.jpg>
//	evaluate --check
//	evaluate --startup-id <id>
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/mattn/go-isatty"
	"github.com/spf13/pflag"

	"deck_evaluator/internal/app/di"
	"deck_evaluator/internal/config"
	"deck_evaluator/internal/feature/evaluation/domain/entity"
	"deck_evaluator/internal/feature/evaluation/report"
	"deck_evaluator/internal/feature/evaluation/usecase"
	"deck_evaluator/internal/platform/logging"
)

// 終了コード
const (
	exitOK          = 0
	exitFailed      = 1
	exitUsage       = 2
	exitInterrupted = 130
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	fs := pflag.NewFlagSet("evaluate", pflag.ContinueOnError)
	fs.SetOutput(stderr)
	configFile := fs.String("config", "", "YAML設定ファイルのパス")
	endpoint := fs.String("endpoint", "", "評価エンドポイントのベースURL")
	token := fs.String("token", "", "Bearerトークン")
	timeout := fs.Duration("timeout", 0, "送信1回あたりの待機上限（例: 90s）")
	check := fs.Bool("check", false, "評価エンドポイントのヘルスチェックだけを行う")
	startupID := fs.String("startup-id", "", "保存済みの評価をstartup_idで取得して表示する")
	asJSON := fs.Bool("json", false, "評価結果をJSONで出力する")
	noColor := fs.Bool("no-color", false, "色付けを無効にする")
	fs.Usage = func() {
		_, _ = fmt.Fprintln(stderr, "usage: evaluate [flags] <file.pdf|file.png|file.jpg>")
		_, _ = fmt.Fprintln(stderr, "       evaluate [flags] --startup-id <id>")
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return exitOK
		}
		_, _ = fmt.Fprintln(stderr, "error:", err)
		fs.Usage()
		return exitUsage
	}

	cfg, err := config.Load(config.LoadOptions{ConfigFile: *configFile})
	if err != nil {
		_, _ = fmt.Fprintln(stderr, "error:", err)
		return exitUsage
	}
	if fs.Changed("endpoint") {
		cfg.EndpointURL = *endpoint
	}
	if fs.Changed("token") {
		cfg.Token = *token
	}
	if fs.Changed("timeout") {
		cfg.Timeout = *timeout
	}
	if err := cfg.Validate(); err != nil {
		_, _ = fmt.Fprintln(stderr, "error:", err)
		return exitUsage
	}

	if _, err := logging.Setup(stderr, cfg.LogLevel, cfg.LogFormat); err != nil {
		_, _ = fmt.Fprintln(stderr, "error:", err)
		return exitUsage
	}

	client := di.NewEvaluator(cfg)

	color := !*noColor && os.Getenv("NO_COLOR") == "" && isTerminal(stdout)

	if *check {
		return runCheck(ctx, client, cfg.EndpointURL, stdout, stderr)
	}
	if fs.Changed("startup-id") {
		if fs.NArg() != 0 {
			fs.Usage()
			return exitUsage
		}
		return runStartup(ctx, client, *startupID, stdout, stderr, *asJSON, color)
	}

	if fs.NArg() != 1 {
		fs.Usage()
		return exitUsage
	}
	path := fs.Arg(0)
	data, err := os.ReadFile(path)
	if err != nil {
		_, _ = fmt.Fprintln(stderr, "error:", err)
		return exitFailed
	}
	doc := entity.Document{Name: filepath.Base(path), Data: data}

	sess := usecase.NewSession(client,
		usecase.WithTimeout(cfg.Timeout),
		usecase.WithMaxFileSize(cfg.MaxFileSize),
	)
	if err := sess.Start(ctx, doc); err != nil {
		_, _ = fmt.Fprintln(stderr, usecase.UserMessage(err))
		return exitFailed
	}

	events, stopWatch := sess.Watch()
	printed := make(chan struct{})
	go func() {
		defer close(printed)
		printProgress(stderr, doc.Name, events, isTerminal(stderr))
	}()

	if err := sess.Wait(ctx); err != nil || ctx.Err() != nil {
		// 中断されたら送信を取り消す
		sess.Reset()
		stopWatch()
		<-printed
		_, _ = fmt.Fprintln(stderr, "\ninterrupted")
		return exitInterrupted
	}
	stopWatch()
	<-printed

	if sess.State() != entity.StateSuccess {
		_, _ = fmt.Fprintln(stderr, usecase.UserMessage(sess.Err()))
		return exitFailed
	}

	return writeResult(stdout, sess.Result(), *asJSON, color)
}

// writeResult は評価結果をJSONまたはテキストレポートで出力します。
func writeResult(w io.Writer, result *entity.EvaluationResult, asJSON, color bool) int {
	if asJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		if err := enc.Encode(result); err != nil {
			slog.Error("評価結果の出力に失敗", "error", err)
			return exitFailed
		}
		return exitOK
	}
	if err := report.WriteText(w, report.Build(result), color); err != nil {
		slog.Error("評価結果の出力に失敗", "error", err)
		return exitFailed
	}
	return exitOK
}

// startupFetcher は runStartup が使う評価クライアントの部分です。
type startupFetcher interface {
	Startup(ctx context.Context, id string) (*entity.EvaluationResult, error)
}

func runStartup(ctx context.Context, client startupFetcher, id string, stdout, stderr io.Writer, asJSON, color bool) int {
	if strings.TrimSpace(id) == "" {
		_, _ = fmt.Fprintln(stderr, "error: --startup-id must not be empty")
		return exitUsage
	}
	result, err := client.Startup(ctx, id)
	if err != nil {
		_, _ = fmt.Fprintln(stderr, usecase.UserMessage(err))
		slog.Debug("保存済み評価の取得に失敗", "startup_id", id, "error", err)
		return exitFailed
	}
	return writeResult(stdout, result, asJSON, color)
}

// pinger は runCheck が使う評価クライアントの部分です。
type pinger interface {
	Ping(ctx context.Context) error
}

func runCheck(ctx context.Context, client pinger, endpoint string, stdout, stderr io.Writer) int {
	if err := client.Ping(ctx); err != nil {
		_, _ = fmt.Fprintf(stderr, "%s: %s\n", endpoint, usecase.UserMessage(err))
		slog.Debug("ヘルスチェックに失敗", "endpoint", endpoint, "error", err)
		return exitFailed
	}
	_, _ = fmt.Fprintf(stdout, "%s: reachable\n", endpoint)
	return exitOK
}

// printProgress は進捗を表示します。端末では1行を上書きし、そうでなければ段階が変わるたびに1行出力します。
func printProgress(w io.Writer, name string, events <-chan entity.ProgressEvent, tty bool) {
	last := entity.Stage(-1)
	for ev := range events {
		if tty {
			_, _ = fmt.Fprintf(w, "\r%s: %-22s %3.0f%%", name, ev.Stage.Label(), ev.Percent())
			continue
		}
		if ev.Stage != last {
			_, _ = fmt.Fprintf(w, "%s: %s\n", name, ev.Stage.Label())
			last = ev.Stage
		}
	}
	if tty {
		_, _ = fmt.Fprintln(w)
	}
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}
