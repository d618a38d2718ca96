package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/chzyer/readline"
	"github.com/dustin/go-humanize"

	"github.com/ajxchapman/goswatch/internal/cache"
)

// runInspect opens an interactive cache browser over cachePath: `get
// <key>`, `get-file <key>`, `keys` (prints nothing useful without a
// key index, so it prints usage instead), and `quit`. Grounded on the
// teacher's chat REPL's readline.NewEx/Readline loop shape.
func runInspect(cachePath string, _ []string) {
	cc, err := cache.Open(cachePath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "inspect: open cache: %v\n", err)
		os.Exit(1)
	}
	defer cc.Close()

	rl, err := readline.NewEx(&readline.Config{
		Prompt:          "\033[36minspect>\033[0m ",
		InterruptPrompt: "^C",
		EOFPrompt:       "quit",
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "inspect: %v\n", err)
		os.Exit(1)
	}
	defer rl.Close()

	fmt.Fprintln(os.Stdout, "lookout inspect - commands: get <key>, get-file <key>, quit")

	for {
		line, err := rl.Readline()
		if err == readline.ErrInterrupt {
			continue
		}
		if err == io.EOF {
			return
		}
		if err != nil {
			fmt.Fprintf(os.Stderr, "inspect: %v\n", err)
			return
		}

		fields := strings.Fields(strings.TrimSpace(line))
		if len(fields) == 0 {
			continue
		}

		switch fields[0] {
		case "quit", "exit":
			return
		case "get":
			if len(fields) != 2 {
				fmt.Fprintln(os.Stderr, "usage: get <key>")
				continue
			}
			insp, err := cc.Inspect(fields[1])
			if err != nil {
				fmt.Fprintf(os.Stderr, "get: %v\n", err)
				continue
			}
			fmt.Fprintf(os.Stdout, "hash=%s entry=%v (present=%v) file-present=%v file-encrypted=%v\n",
				insp.Hash, insp.Entry, insp.HasEntry, insp.HasFile, insp.FileEncrypted)
		case "get-file":
			if len(fields) != 2 {
				fmt.Fprintln(os.Stderr, "usage: get-file <key>")
				continue
			}
			value, err := cc.GetFile(fields[1], nil)
			if err != nil {
				fmt.Fprintf(os.Stderr, "get-file: %v\n", err)
				continue
			}
			if raw, ok := value.([]byte); ok {
				fmt.Fprintf(os.Stdout, "%s (%s)\n", raw, humanize.Bytes(uint64(len(raw))))
				continue
			}
			fmt.Fprintf(os.Stdout, "%v\n", value)
		case "keys":
			fmt.Fprintln(os.Stderr, "keys: no key index is kept; use get <key> or get-file <key>")
		default:
			fmt.Fprintf(os.Stderr, "unknown command %q\n", fields[0])
		}
	}
}
