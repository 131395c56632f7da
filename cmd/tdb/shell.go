package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"strings"

	json "github.com/goccy/go-json"
	"github.com/peterh/liner"
	"github.com/tobsdb/tobsql"
	"github.com/tobsdb/tobsql/internal/conn"
	"github.com/tobsdb/tobsql/pkg"
)

const history_file = ".tdb_history"

func runShell(ctx context.Context, db *tobsql.DB) error {
	line := liner.NewLiner()
	defer line.Close()
	line.SetCtrlCAborts(true)

	history_path := path.Join(os.TempDir(), history_file)
	if home, err := os.UserHomeDir(); err == nil {
		history_path = path.Join(home, history_file)
	}
	if f, err := os.Open(history_path); err == nil {
		line.ReadHistory(f)
		f.Close()
	}
	defer func() {
		f, err := os.Create(history_path)
		if err != nil {
			pkg.WarnLog("failed to save shell history:", err)
			return
		}
		defer f.Close()
		line.WriteHistory(f)
	}()

	for {
		input, err := line.Prompt("tdb> ")
		if errors.Is(err, liner.ErrPromptAborted) || errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}

		input = strings.TrimSpace(input)
		if input == "" {
			continue
		}
		line.AppendHistory(input)
		if input == "exit" || input == "quit" {
			return nil
		}

		var res conn.Response
		if strings.HasPrefix(input, "{") {
			res = conn.Handle(ctx, db, []byte(input))
		} else {
			fields := strings.Fields(input)
			args := make([]any, len(fields)-1)
			for i, f := range fields[1:] {
				args[i] = f
			}
			res = conn.HandleRequest(ctx, db, conn.Request{
				Action:  conn.RequestActionExtend,
				Command: fields[0],
				Args:    args,
			})
		}

		out, err := json.MarshalIndent(res, "", "  ")
		if err != nil {
			return err
		}
		fmt.Println(string(out))
	}
}
