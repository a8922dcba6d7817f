package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	transporthttp "github.com/mateusz-kowalczyk-12/shared-canvas/internal/transport/http"
)

func main() {
	if err := run(); err != nil {
		log.Printf("canvas_observe: %v", err)
		os.Exit(1)
	}
}

func run() error {
	addr := flag.String("addr", "ws://localhost:8080/ws/observe", "observer WebSocket address")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	conn, _, err := websocket.Dial(ctx, *addr, nil)
	if err != nil {
		return fmt.Errorf("dial: %w", err)
	}
	defer conn.Close(websocket.StatusNormalClosure, "bye")

	for {
		var ev transporthttp.ObserveEvent
		if err := wsjson.Read(ctx, conn, &ev); err != nil {
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return fmt.Errorf("read: %w", err)
		}

		fmt.Printf("%-6s id=%-3d session=%.8s color=%s", ev.Type, ev.ID, ev.Session, ev.Color)
		if len(ev.Points) > 0 {
			fmt.Printf(" points=%d", len(ev.Points))
		}
		if ev.Reason != "" {
			fmt.Printf(" reason=%s", ev.Reason)
		}
		fmt.Println()
	}
}
