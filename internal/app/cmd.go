package app

import (
	"flag"
	"fmt"
	"io"
)

// Command はアプリケーションの起動モードを表す。
type Command string

const (
	// CommandServe はAPIサーバーモードで起動することを示す。
	CommandServe Command = "serve"
	// CommandWorker は取得スケジューラと週次レポートジョブを常駐実行することを示す。
	CommandWorker Command = "worker"
	// CommandMigrate はデータベースマイグレーションを実行することを示す。
	CommandMigrate Command = "migrate"
	// CommandSeed は初期ソース一覧を登録することを示す。
	CommandSeed Command = "seed"
	// CommandIngest は取り込みを1回だけ実行することを示す。
	CommandIngest Command = "ingest"
	// CommandReport は週次レポートを1回だけ生成することを示す。
	CommandReport Command = "report"
	// CommandHealthcheck はヘルスチェックを実行することを示す。
	// distroless環境でのDockerヘルスチェック用。
	CommandHealthcheck Command = "healthcheck"
)

// ParseCommand はコマンドライン引数からサブコマンドを解析する。
// 引数が空またはサポート外のコマンドの場合はCommandServeを返す。
func ParseCommand(args []string) Command {
	if len(args) == 0 {
		return CommandServe
	}

	switch args[0] {
	case "worker":
		return CommandWorker
	case "serve":
		return CommandServe
	case "migrate":
		return CommandMigrate
	case "seed":
		return CommandSeed
	case "ingest":
		return CommandIngest
	case "report":
		return CommandReport
	case "healthcheck":
		return CommandHealthcheck
	default:
		return CommandServe
	}
}

// ingestOptions はingestサブコマンドのオプション。
type ingestOptions struct {
	SourceID string
}

// reportOptions はreportサブコマンドのオプション。nilは現在のISO週を意味する。
type reportOptions struct {
	Week *int
	Year *int
}

// subcommandArgs はサブコマンド名を除いた引数を返す。
func subcommandArgs(args []string) []string {
	if len(args) <= 1 {
		return nil
	}
	return args[1:]
}

// parseIngestOptions は "ingest [-source ID]" の引数を解析する。
func parseIngestOptions(args []string, errOut io.Writer) (ingestOptions, error) {
	fs := flag.NewFlagSet("ingest", flag.ContinueOnError)
	fs.SetOutput(errOut)
	source := fs.String("source", "", "取り込むソースのID（省略時は取得期限を過ぎた全ソース）")
	if err := fs.Parse(args); err != nil {
		return ingestOptions{}, fmt.Errorf("invalid ingest arguments: %w", err)
	}
	return ingestOptions{SourceID: *source}, nil
}

// parseReportOptions は "report [-week N -year Y]" の引数を解析する。
// 指定されなかったフラグはnilのままにする。
func parseReportOptions(args []string, errOut io.Writer) (reportOptions, error) {
	fs := flag.NewFlagSet("report", flag.ContinueOnError)
	fs.SetOutput(errOut)
	week := fs.Int("week", 0, "ISO週番号（1〜53）")
	year := fs.Int("year", 0, "年（2000〜9999）")
	if err := fs.Parse(args); err != nil {
		return reportOptions{}, fmt.Errorf("invalid report arguments: %w", err)
	}

	var opts reportOptions
	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "week":
			opts.Week = week
		case "year":
			opts.Year = year
		}
	})
	return opts, nil
}
