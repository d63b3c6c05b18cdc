package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"

	"github.com/Fekinox/xo-grid/pkg/client"
	"github.com/Fekinox/xo-grid/pkg/grid"
	"github.com/Fekinox/xo-grid/pkg/message"
)

var (
	username = flag.String("username", "foobar", "username")
	host     = flag.String("host", "localhost", "server host")
	port     = flag.Int("port", 3000, "server port")
)

func main() {
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app := tview.NewApplication()

	status := tview.NewTextView().SetDynamicColors(true)
	logView := tview.NewTextView().
		SetDynamicColors(false).
		SetScrollable(true).
		SetChangedFunc(func() {
			app.Draw()
		})
	logView.SetBorder(true).SetTitle(" messages ")

	// tview owns the terminal, so log lines go to the message pane
	log.SetOutput(logView)
	log.SetFlags(log.Ltime)

	board := NewBoardUI()
	cl := client.NewClient(*host, *port, *username)

	send := func(text string) {
		if err := cl.Send(text); err != nil {
			fmt.Fprintln(logView, "send:", err)
		}
	}
	board.OnMark = func(pos grid.Pos) {
		send(fmt.Sprintf("mark %d %d", pos.X, pos.Y))
	}

	setStatus := func(conn client.ConnectionState) {
		line := fmt.Sprintf("[yellow]%s[-] @ %s:%d, %s", *username, *host, *port, conn)
		if st, ok := board.State(); ok {
			line += fmt.Sprintf(" | lobby %s, %s, %d in a row, %s to move (%s)",
				st.Lobby, st.Mode, st.WinLength, st.Turn, st.Players[st.Turn.String()])
		}
		status.SetText(line)
	}
	cl.OnStateChange = func(s client.ConnectionState) {
		app.QueueUpdateDraw(func() { setStatus(s) })
	}

	input := tview.NewInputField().SetLabel("> ").SetFieldWidth(0)
	input.SetDoneFunc(func(key tcell.Key) {
		if key != tcell.KeyEnter {
			return
		}
		text := strings.TrimSpace(input.GetText())
		input.SetText("")
		switch text {
		case "":
			return
		case "quit", "exit":
			app.Stop()
			return
		}
		fmt.Fprintln(logView, "> "+text)
		send(text)
	})

	body := tview.NewFlex().
		AddItem(board.Box, 0, 2, false).
		AddItem(logView, 0, 1, false)
	root := tview.NewFlex().SetDirection(tview.FlexRow).
		AddItem(status, 1, 0, false).
		AddItem(body, 0, 1, false).
		AddItem(input, 1, 0, true)

	go func() {
		for msg := range cl.Inbound() {
			if bs, ok := message.ParseBoardState(msg.Data); ok {
				board.SetState(bs)
				app.QueueUpdateDraw(func() { setStatus(cl.State()) })
				continue
			}
			fmt.Fprintln(logView, string(msg.Data))
		}
	}()

	go func() {
		err := cl.Run(ctx)
		if err != nil && !errors.Is(err, client.ErrQuit) {
			fmt.Fprintln(os.Stderr, err)
		}
		app.Stop()
	}()

	setStatus(client.Disconnected)
	if err := app.SetRoot(root, true).EnableMouse(true).Run(); err != nil {
		log.SetOutput(os.Stderr)
		log.Fatal(err)
	}

	stop()
	<-cl.Done()
}
